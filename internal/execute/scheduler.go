// Package execute runs the actions of a reviewed NarrativePlan against the
// entity store in dependency order.
//
// Replaying a plan that already ran is not idempotent: CREATE_ENTITY
// actions that create from the web or from the draft create a second
// record. Only USE_EXISTING creates, updates, contacts and links converge.
package execute

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/dealdesk/internal/hydrate"
	"github.com/ppiankov/dealdesk/internal/model"
	"github.com/ppiankov/dealdesk/internal/store"
)

// Executor runs plans against a store
type Executor struct {
	store store.Store
}

// New creates an executor
func New(s store.Store) *Executor {
	return &Executor{store: s}
}

// pass is the state of one execution run
type pass struct {
	status  map[string]model.ExecutionStatus
	refs    map[string]model.CreatedEntityReference
	lookup  hydrate.CreateLookup
	planned map[string]model.Action
	created []model.CreatedEntityReference
}

// ExecuteNarrativePlan executes every included action exactly once, in a
// stable topological order. It never returns an error: each failure is
// recorded on the action's result and independent actions keep running.
func (e *Executor) ExecuteNarrativePlan(ctx context.Context, plan model.NarrativePlan) model.ExecutionReport {
	actions := []model.Action(plan.Actions)
	p := &pass{
		status:  make(map[string]model.ExecutionStatus, len(actions)),
		refs:    make(map[string]model.CreatedEntityReference),
		lookup:  hydrate.BuildCreateLookup(actions),
		planned: make(map[string]model.Action, len(actions)),
		created: []model.CreatedEntityReference{},
	}
	results := make([]model.ExecutionResult, 0, len(actions))

	var included []model.Action
	for _, action := range actions {
		if action == nil {
			continue
		}
		id := action.Base().ID
		p.planned[id] = action
		if !action.Base().Include {
			p.status[id] = model.StatusSkipped
			results = append(results, model.ExecutionResult{
				ActionID: id,
				Kind:     action.Kind(),
				Status:   model.StatusSkipped,
				Message:  "Excluded from execution.",
			})
			continue
		}
		included = append(included, action)
	}

	ordered, cyclic := Order(included, p.lookup)
	for _, action := range ordered {
		results = append(results, e.run(ctx, p, action))
	}
	for _, action := range cyclic {
		p.status[action.Base().ID] = model.StatusFailed
		results = append(results, model.ExecutionResult{
			ActionID: action.Base().ID,
			Kind:     action.Kind(),
			Status:   model.StatusFailed,
			Message:  "Dependency cycle: action was never ready to run.",
		})
	}

	return buildReport(results, p.created)
}

func (e *Executor) run(ctx context.Context, p *pass, action model.Action) model.ExecutionResult {
	id := action.Base().ID
	result := model.ExecutionResult{ActionID: id, Kind: action.Kind()}

	for _, dep := range GetDependencyActionIDs(action) {
		if reason, blocked := p.blockedBy(dep); blocked {
			p.status[id] = model.StatusFailed
			result.Status = model.StatusFailed
			result.Message = fmt.Sprintf("Blocked by dependency %s: %s.", dep, reason)
			return result
		}
	}

	message, record, err := e.execute(ctx, p, action)
	if err != nil {
		zap.L().Warn("execute: action failed",
			zap.String("actionId", id),
			zap.String("kind", string(action.Kind())),
			zap.Error(err))
		p.status[id] = model.StatusFailed
		result.Status = model.StatusFailed
		result.Message = err.Error()
		return result
	}

	p.status[id] = model.StatusExecuted
	result.Status = model.StatusExecuted
	result.Message = message
	result.Record = record
	return result
}

func (p *pass) blockedBy(dep string) (string, bool) {
	action, ok := p.planned[dep]
	if !ok {
		return "not part of this plan", true
	}
	if !action.Base().Include {
		return "excluded from execution", true
	}
	switch p.status[dep] {
	case model.StatusExecuted:
		return "", false
	case model.StatusFailed:
		return "failed", true
	default:
		return "did not execute", true
	}
}

func (e *Executor) execute(ctx context.Context, p *pass, action model.Action) (string, any, error) {
	switch a := action.(type) {
	case model.CreateEntityAction:
		return e.createEntity(ctx, p, a)
	case model.UpdateEntityAction:
		return e.updateEntity(ctx, p, a)
	case model.AddContactAction:
		return e.addContact(ctx, p, a)
	case model.LinkCompanyCoInvestorAction:
		return e.linkCompanyCoInvestor(ctx, p, a)
	}
	return "", nil, fmt.Errorf("unsupported action kind %s", action.Kind())
}

func buildReport(results []model.ExecutionResult, created []model.CreatedEntityReference) model.ExecutionReport {
	report := model.ExecutionReport{Results: results, CreatedEntities: created}
	for _, r := range results {
		switch r.Status {
		case model.StatusExecuted:
			report.Executed++
		case model.StatusFailed:
			report.Failed++
		case model.StatusSkipped:
			report.Skipped++
		}
	}
	report.Summary = fmt.Sprintf("Executed %d, failed %d, skipped %d of %d action(s).",
		report.Executed, report.Failed, report.Skipped, len(results))
	return report
}
