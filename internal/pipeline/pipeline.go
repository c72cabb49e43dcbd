// Package pipeline wires the narrative engine together: extraction,
// introduction heuristics, deduplication, hydration, the clarification gate
// and plan assembly on the way in, and the execution scheduler on the way
// out.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/dealdesk/internal/clarify"
	"github.com/ppiankov/dealdesk/internal/execute"
	"github.com/ppiankov/dealdesk/internal/extract"
	"github.com/ppiankov/dealdesk/internal/hydrate"
	"github.com/ppiankov/dealdesk/internal/llm"
	"github.com/ppiankov/dealdesk/internal/match"
	"github.com/ppiankov/dealdesk/internal/model"
	"github.com/ppiankov/dealdesk/internal/plan"
	"github.com/ppiankov/dealdesk/internal/store"
	"github.com/ppiankov/dealdesk/internal/web"
)

// Pipeline orchestrates one narrative turn
type Pipeline struct {
	extractor      *extract.Extractor
	hydrator       *hydrate.Hydrator
	executor       *execute.Executor
	modelDigest    string
	modelNarrative string
}

// New creates a pipeline from its stages
func New(extractor *extract.Extractor, hydrator *hydrate.Hydrator, executor *execute.Executor) *Pipeline {
	return &Pipeline{
		extractor:      extractor,
		hydrator:       hydrator,
		executor:       executor,
		modelDigest:    extract.BuildModelDigest(),
		modelNarrative: extract.BuildModelNarrative(),
	}
}

// NewPipeline builds the production pipeline over s. A missing or broken
// LLM configuration is not an error: extraction degrades to warnings and
// web search is disabled.
func NewPipeline(cfg *model.Config, s store.Store) *Pipeline {
	var provider llm.Provider
	if cfg.LLM.Provider != "" {
		p, err := llm.NewProvider(llm.ConfigFromModel(cfg))
		switch {
		case errors.Is(err, llm.ErrNotConfigured):
			zap.L().Info("pipeline: LLM not configured", zap.Error(err))
		case err != nil:
			zap.L().Warn("pipeline: failed to initialize LLM provider", zap.Error(err))
		default:
			provider = p
		}
	}

	return New(
		extract.NewExtractor(provider, cfg.LLM.Model, cfg.LLM.MaxTokens),
		hydrate.New(match.NewMatcher(s), web.NewFetcherFromConfig(cfg, provider), cfg.Concurrency.HydrationWorkers),
		execute.New(s),
	)
}

// BuildNarrativePlan turns narrative text into a reviewable plan. It never
// fails: extraction, search and store problems end up as plan warnings or
// action issues.
func (p *Pipeline) BuildNarrativePlan(ctx context.Context, narrative string) model.NarrativePlan {
	narrative = strings.TrimSpace(narrative)
	logger := zap.L().With(zap.Int("narrativeLength", len(narrative)))

	// 1. LLM extraction
	extracted := p.extractor.ExtractActionsFromNarrative(ctx, extract.Input{
		Narrative:      narrative,
		ModelDigest:    p.modelDigest,
		ModelNarrative: p.modelNarrative,
	})
	warnings := append([]string{}, extracted.Warnings...)

	// 2. Introduction heuristics run regardless of what the model found
	actions, heuristicWarnings := extract.ApplyIntroductionHeuristics(narrative, extracted.Actions)
	warnings = append(warnings, heuristicWarnings...)

	// 3. Merge duplicates from the two passes
	actions, merged := extract.DedupeActions(actions)
	if merged > 0 {
		warnings = append(warnings, fmt.Sprintf("Consolidated %d duplicate actions", merged))
	}

	// 4. Resolve against the store and the web
	actions = p.hydrator.HydrateActions(ctx, actions)

	// 5. Gate and assemble
	decision := clarify.Decide(narrative, actions, extracted.Warnings)
	result := plan.Build(plan.Input{
		Narrative:   narrative,
		ModelDigest: p.modelDigest,
		Summary:     extracted.Summary,
		Actions:     actions,
		Warnings:    warnings,
		Decision:    decision,
	})

	logger.Info("pipeline: plan built",
		zap.String("phase", string(result.Phase)),
		zap.Int("actions", len(result.Actions)),
		zap.Int("warnings", len(result.Warnings)))
	return result
}

// ExecuteNarrativePlan executes a reviewed plan. It never fails: every
// action gets a result in the report.
func (p *Pipeline) ExecuteNarrativePlan(ctx context.Context, narrativePlan model.NarrativePlan) model.ExecutionReport {
	report := p.executor.ExecuteNarrativePlan(ctx, narrativePlan)
	zap.L().Info("pipeline: plan executed",
		zap.Int("executed", report.Executed),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped))
	return report
}

// ErrClarificationPending is returned by CheckExecutable for plans still
// waiting on answers
var ErrClarificationPending = errors.New("plan is waiting for clarification")

// CheckExecutable reports whether a plan may be handed to the executor.
// CLARIFICATION plans must be answered and rebuilt first.
func CheckExecutable(p model.NarrativePlan) error {
	if p.Phase == model.PhaseClarification {
		return fmt.Errorf("%w: %d open question(s)", ErrClarificationPending, len(p.Warnings))
	}
	return nil
}
