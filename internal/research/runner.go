// Package research drains the research queue: entities created from the web
// get their blank fields filled from a fresh web search.
package research

import (
	"context"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/dealdesk/internal/model"
	"github.com/ppiankov/dealdesk/internal/normalize"
	"github.com/ppiankov/dealdesk/internal/store"
	"github.com/ppiankov/dealdesk/internal/worker"
)

// MaxAttempts is how often a job is tried before it is marked failed
const MaxAttempts = 3

// ErrNoCandidates is recorded when the web search finds nothing usable
var ErrNoCandidates = eris.New("research: no web candidates")

// WebFetcher finds web candidates for a name
type WebFetcher interface {
	FetchWebCandidates(ctx context.Context, entityType model.EntityType, query string) []model.WebCandidate
}

// Summary counts the outcome of one drain
type Summary struct {
	Processed int `json:"processed"`
	Done      int `json:"done"`
	Retrying  int `json:"retrying"`
	Failed    int `json:"failed"`
}

// Runner drains pending research jobs
type Runner struct {
	store     store.Store
	web       WebFetcher
	workers   int
	batchSize int
}

// NewRunner creates a runner
func NewRunner(s store.Store, web WebFetcher, workers, batchSize int) *Runner {
	if workers <= 0 {
		workers = 1
	}
	return &Runner{store: s, web: web, workers: workers, batchSize: batchSize}
}

// Drain processes up to one batch of pending jobs concurrently
func (r *Runner) Drain(ctx context.Context) (Summary, error) {
	jobs, err := r.store.ListResearchJobs(ctx, model.ResearchPending, r.batchSize)
	if err != nil {
		return Summary{}, err
	}

	outcomes, errs := worker.Map(ctx, r.workers, jobs, func(ctx context.Context, _ int, job model.ResearchJob) (string, error) {
		return r.process(ctx, job)
	})

	var summary Summary
	for i, status := range outcomes {
		if errs[i] != nil {
			zap.L().Warn("research: job not recorded", zap.String("jobId", jobs[i].ID), zap.Error(errs[i]))
			continue
		}
		summary.Processed++
		switch status {
		case model.ResearchDone:
			summary.Done++
		case model.ResearchFailed:
			summary.Failed++
		default:
			summary.Retrying++
		}
	}
	return summary, nil
}

// process runs one job and records its outcome. The returned error is set
// only when the outcome itself could not be stored.
func (r *Runner) process(ctx context.Context, job model.ResearchJob) (string, error) {
	logger := zap.L().With(zap.String("jobId", job.ID), zap.String("entityId", job.EntityID))

	status, lastError := model.ResearchDone, ""
	if err := r.research(ctx, job); err != nil {
		lastError = err.Error()
		status = model.ResearchPending
		if job.Attempts+1 >= MaxAttempts {
			status = model.ResearchFailed
		}
		logger.Warn("research: job failed", zap.Int("attempt", job.Attempts+1), zap.Error(err))
	}

	if err := r.store.MarkResearchJob(ctx, job.ID, status, lastError); err != nil {
		return "", err
	}
	return status, nil
}

func (r *Runner) research(ctx context.Context, job model.ResearchJob) error {
	rec, err := r.store.GetEntity(ctx, job.EntityType, job.EntityID)
	if err != nil {
		return err
	}
	if r.web == nil {
		return ErrNoCandidates
	}

	candidate, ok := BestCandidate(rec.Name, r.web.FetchWebCandidates(ctx, rec.EntityType, rec.Name))
	if !ok {
		return ErrNoCandidates
	}

	patch := BlankFieldPatch(*rec, candidate)
	if patch.IsEmpty() {
		return nil
	}
	_, err = r.store.UpdateEntity(ctx, rec.EntityType, rec.ID, patch)
	return err
}

// BestCandidate prefers a candidate with the same normalized name, then the
// first one
func BestCandidate(name string, candidates []model.WebCandidate) (model.WebCandidate, bool) {
	if len(candidates) == 0 {
		return model.WebCandidate{}, false
	}
	for _, c := range candidates {
		if normalize.Equal(c.Name, name) {
			return c, true
		}
	}
	return candidates[0], true
}

// BlankFieldPatch copies candidate values into fields the record leaves blank
func BlankFieldPatch(rec model.EntityRecord, c model.WebCandidate) model.EntityPatch {
	var patch model.EntityPatch
	fill := func(dst *string, current, value string) {
		if strings.TrimSpace(current) == "" {
			*dst = strings.TrimSpace(value)
		}
	}
	fill(&patch.Website, rec.Website, c.Website)
	fill(&patch.HeadquartersCity, rec.HeadquartersCity, c.HeadquartersCity)
	fill(&patch.HeadquartersState, rec.HeadquartersState, c.HeadquartersState)
	fill(&patch.HeadquartersCountry, rec.HeadquartersCountry, c.HeadquartersCountry)
	fill(&patch.Description, rec.Description, c.Summary)
	return patch
}

// Watch drains the queue on schedule until ctx is cancelled. schedule is a
// standard cron spec or a descriptor such as "@every 10m".
func (r *Runner) Watch(ctx context.Context, schedule string) error {
	spec, err := cron.ParseStandard(schedule)
	if err != nil {
		return eris.Wrapf(err, "research: invalid schedule %q", schedule)
	}

	c := cron.New()
	c.Schedule(spec, cron.FuncJob(func() {
		summary, err := r.Drain(ctx)
		if err != nil {
			zap.L().Error("research: drain failed", zap.Error(err))
			return
		}
		zap.L().Info("research: drain finished",
			zap.Int("processed", summary.Processed),
			zap.Int("done", summary.Done),
			zap.Int("retrying", summary.Retrying),
			zap.Int("failed", summary.Failed))
	}))
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
