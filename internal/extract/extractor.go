// Package extract turns narrative text into typed actions: the LLM
// extraction pass, the introduction heuristics layered after it and the
// deduplicator that merges the two.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/dealdesk/internal/llm"
	"github.com/ppiankov/dealdesk/internal/model"
)

// Warnings returned instead of errors
const (
	WarningNoCredential = "No LLM credential is configured; nothing was extracted by the model."
	WarningLLMFailed    = "The extraction model could not be reached; nothing was extracted by the model."
	WarningUnparsable   = "The extraction model returned a response that is not valid JSON; nothing was extracted by the model."
)

// Input is one extraction request
type Input struct {
	Narrative      string
	ModelDigest    string
	ModelNarrative string
}

// Result is the extraction output. Actions is never nil.
type Result struct {
	Summary  string
	Actions  []model.Action
	Warnings []string
}

// Extractor sends narratives to the LLM and parses its actions
type Extractor struct {
	provider  llm.Provider
	model     string
	maxTokens int
}

// NewExtractor creates an extractor. A nil provider means no credential is
// configured and every extraction degrades to a warning.
func NewExtractor(provider llm.Provider, model string, maxTokens int) *Extractor {
	return &Extractor{provider: provider, model: model, maxTokens: maxTokens}
}

type extractionResponse struct {
	Summary  string            `json:"summary"`
	Actions  []json.RawMessage `json:"actions"`
	Warnings []json.RawMessage `json:"warnings"`
}

// ExtractActionsFromNarrative runs one extraction. It never fails: every
// failure becomes an empty action list with an explanatory warning.
func (e *Extractor) ExtractActionsFromNarrative(ctx context.Context, in Input) Result {
	result := Result{Actions: []model.Action{}, Warnings: []string{}}
	if strings.TrimSpace(in.Narrative) == "" {
		return result
	}
	if e == nil || e.provider == nil {
		result.Warnings = append(result.Warnings, WarningNoCredential)
		return result
	}

	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt(),
		UserPrompt:   buildUserPrompt(in),
		SchemaName:   "narrative_actions",
		Schema:       actionSchema,
		Model:        e.model,
		MaxTokens:    e.maxTokens,
	})
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			result.Warnings = append(result.Warnings, WarningNoCredential)
			return result
		}
		zap.L().Warn("extract: completion failed", zap.String("provider", e.provider.Name()), zap.Error(err))
		result.Warnings = append(result.Warnings, WarningLLMFailed)
		return result
	}

	parsed, ok := parseResponse(resp.OutputText)
	if !ok {
		zap.L().Warn("extract: unparsable completion", zap.Int("length", len(resp.OutputText)))
		result.Warnings = append(result.Warnings, WarningUnparsable)
		return result
	}

	result.Summary = clean(parsed.Summary)
	for _, w := range parsed.Warnings {
		var text string
		if json.Unmarshal(w, &text) == nil && clean(text) != "" {
			result.Warnings = append(result.Warnings, clean(text))
		}
	}

	dropped := 0
	for _, item := range parsed.Actions {
		var raw map[string]any
		if json.Unmarshal(item, &raw) != nil {
			dropped++
			continue
		}
		action, ok := parseAction(raw)
		if !ok {
			dropped++
			continue
		}
		result.Actions = append(result.Actions, action)
	}
	if dropped > 0 {
		zap.L().Debug("extract: dropped unparsable actions", zap.Int("dropped", dropped))
	}
	return result
}

func parseResponse(text string) (extractionResponse, bool) {
	var parsed extractionResponse
	object, ok := llm.ExtractJSONObject(text)
	if !ok {
		return parsed, false
	}
	if err := json.Unmarshal([]byte(object), &parsed); err != nil {
		// Tolerate an "actions" field that is not an array
		var loose map[string]json.RawMessage
		if json.Unmarshal([]byte(object), &loose) != nil {
			return parsed, false
		}
		parsed = extractionResponse{}
		_ = json.Unmarshal(loose["summary"], &parsed.Summary)
		_ = json.Unmarshal(loose["actions"], &parsed.Actions)
		_ = json.Unmarshal(loose["warnings"], &parsed.Warnings)
	}
	return parsed, true
}

func buildUserPrompt(in Input) string {
	var b strings.Builder
	if in.ModelDigest != "" {
		b.WriteString("DATA MODEL\n")
		b.WriteString(in.ModelDigest)
		b.WriteString("\n")
	}
	if in.ModelNarrative != "" {
		b.WriteString("ABOUT THE DATA\n")
		b.WriteString(in.ModelNarrative)
		b.WriteString("\n\n")
	}
	b.WriteString("NARRATIVE\n")
	b.WriteString(strings.TrimSpace(in.Narrative))
	b.WriteString("\n")
	return b.String()
}
