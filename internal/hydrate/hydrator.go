// Package hydrate enriches extracted actions with existing-record matches,
// web candidates and a concrete selection strategy.
package hydrate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/dealdesk/internal/match"
	"github.com/ppiankov/dealdesk/internal/model"
	"github.com/ppiankov/dealdesk/internal/normalize"
	"github.com/ppiankov/dealdesk/internal/worker"
)

// DefaultWorkers bounds concurrent action hydration
const DefaultWorkers = 4

// Matcher finds existing records for a name
type Matcher interface {
	FetchEntityMatches(ctx context.Context, entityType model.EntityType, name string) ([]model.EntityMatch, error)
}

// WebFetcher finds web candidates for a name. It never fails.
type WebFetcher interface {
	FetchWebCandidates(ctx context.Context, entityType model.EntityType, query string) []model.WebCandidate
}

// CreateLookup maps an entity type and normalized name to the id of the
// CREATE_ENTITY action in the same batch that will produce it
type CreateLookup map[string]string

// BuildCreateLookup indexes the CREATE_ENTITY actions of a batch. The first
// action wins when two create the same name.
func BuildCreateLookup(actions []model.Action) CreateLookup {
	lookup := make(CreateLookup)
	for _, action := range actions {
		create, ok := action.(model.CreateEntityAction)
		if !ok {
			continue
		}
		key := lookupKey(create.EntityType, create.Draft.Name)
		if _, exists := lookup[key]; !exists {
			lookup[key] = create.ID
		}
	}
	return lookup
}

// Find returns the create action id for a name, if any
func (l CreateLookup) Find(entityType model.EntityType, name string) (string, bool) {
	id, ok := l[lookupKey(entityType, name)]
	return id, ok
}

func lookupKey(entityType model.EntityType, name string) string {
	return string(entityType) + "|" + normalize.Key(name, entityType)
}

// Hydrator resolves actions against the store and the web
type Hydrator struct {
	matcher Matcher
	web     WebFetcher
	workers int
}

// New creates a hydrator. A nil web fetcher disables web candidates.
func New(matcher Matcher, web WebFetcher, workers int) *Hydrator {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Hydrator{matcher: matcher, web: web, workers: workers}
}

// HydrateActions hydrates every action concurrently and returns them in
// input order. Hydrating one action never depends on another's result.
func (h *Hydrator) HydrateActions(ctx context.Context, actions []model.Action) []model.Action {
	lookup := BuildCreateLookup(actions)
	hydrated, errs := worker.Map(ctx, h.workers, actions, func(ctx context.Context, _ int, action model.Action) (model.Action, error) {
		return h.HydrateAction(ctx, action, lookup), nil
	})

	for i, err := range errs {
		if err != nil || hydrated[i] == nil {
			base := actions[i].Base().AddIssue("Hydration did not complete; matches were not checked.")
			hydrated[i] = actions[i].WithBase(base)
		}
	}
	return hydrated
}

// HydrateAction hydrates a single action
func (h *Hydrator) HydrateAction(ctx context.Context, action model.Action, lookup CreateLookup) model.Action {
	switch a := action.(type) {
	case model.CreateEntityAction:
		return h.hydrateCreate(ctx, a, lookup)
	case model.UpdateEntityAction:
		return h.hydrateUpdate(ctx, a, lookup)
	case model.AddContactAction:
		return h.hydrateContact(ctx, a, lookup)
	case model.LinkCompanyCoInvestorAction:
		return h.hydrateLink(ctx, a, lookup)
	}
	return action
}

func (h *Hydrator) hydrateCreate(ctx context.Context, a model.CreateEntityAction, lookup CreateLookup) model.Action {
	matches := h.matches(ctx, a.EntityType, a.Draft.Name, &a.ActionBase)
	a.ExistingMatches = matches
	a.WebCandidates = h.webCandidates(ctx, a.EntityType, a.Draft.Name)

	if top, ok := match.AutoMatch(matches); ok {
		a.Selection = model.UseExisting(top.ID)
	} else {
		switch len(a.WebCandidates) {
		case 0:
			a.Selection = model.CreateManual()
		case 1:
			a.Selection = model.CreateFromWeb(0)
		default:
			a.Selection = model.CreateFromWeb(-1)
			a.ActionBase = a.AddIssue(fmt.Sprintf("Found %d web candidates for %s %q; choose one.",
				len(a.WebCandidates), a.EntityType.Label(), a.Draft.Name))
		}
		if top, ok := model.TopMatch(matches); ok {
			a.ActionBase = a.AddIssue(fmt.Sprintf("Possible existing %s %q (%.0f%% match); confirm it or create a new record.",
				a.EntityType.Label(), top.Name, top.Confidence*100))
		}
	}

	if a.EntityType == model.EntityCompany {
		a = h.resolveLeadSource(ctx, a, lookup)
	}
	return a
}

// resolveLeadSource turns a lead-source health system name into an id when
// it matches at or above the auto-match threshold. Below it the name stays
// and the candidates are kept for a human to confirm.
func (h *Hydrator) resolveLeadSource(ctx context.Context, a model.CreateEntityAction, lookup CreateLookup) model.CreateEntityAction {
	name := a.Draft.LeadSourceHealthSystemName
	if name == "" || a.Draft.LeadSourceHealthSystemID != "" {
		return a
	}
	if a.Draft.LeadSourceType == "" {
		a.Draft.LeadSourceType = model.LeadSourceHealthSystem
	}

	matches := h.matches(ctx, model.EntityHealthSystem, name, &a.ActionBase)
	if top, ok := match.AutoMatch(matches); ok {
		a.Draft.LeadSourceHealthSystemID = top.ID
		a.Draft.LeadSourceHealthSystemName = top.Name
		a.LeadSourceMatches = nil
		return a
	}
	if _, ok := lookup.Find(model.EntityHealthSystem, name); ok {
		return a
	}
	if len(matches) > 0 {
		a.LeadSourceMatches = matches
		a.ActionBase = a.AddIssue(fmt.Sprintf("Lead source health system %q needs confirmation.", name))
	}
	return a
}

func (h *Hydrator) hydrateUpdate(ctx context.Context, a model.UpdateEntityAction, lookup CreateLookup) model.Action {
	a.TargetMatches = h.matches(ctx, a.EntityType, a.TargetName, &a.ActionBase)
	a.SelectedTargetID, a.LinkedCreateActionID = "", ""

	if top, ok := match.AutoMatch(a.TargetMatches); ok {
		a.SelectedTargetID = top.ID
	} else if id, ok := lookup.Find(a.EntityType, a.TargetName); ok {
		a.LinkedCreateActionID = id
	} else {
		a.ActionBase = a.AddIssue(UnresolvedIssue(a.EntityType, a.TargetName))
	}

	if a.EntityType == model.EntityCompany && a.Patch.LeadSourceHealthSystemName != "" && a.Patch.LeadSourceHealthSystemID == "" {
		matches := h.matches(ctx, model.EntityHealthSystem, a.Patch.LeadSourceHealthSystemName, &a.ActionBase)
		if top, ok := match.AutoMatch(matches); ok {
			a.Patch.LeadSourceHealthSystemID = top.ID
			a.Patch.LeadSourceHealthSystemName = top.Name
		} else if _, ok := lookup.Find(model.EntityHealthSystem, a.Patch.LeadSourceHealthSystemName); !ok && len(matches) > 0 {
			a.ActionBase = a.AddIssue(fmt.Sprintf("Lead source health system %q needs confirmation.", a.Patch.LeadSourceHealthSystemName))
		}
	}
	return a
}

func (h *Hydrator) hydrateContact(ctx context.Context, a model.AddContactAction, lookup CreateLookup) model.Action {
	a.ParentMatches = h.matches(ctx, a.ParentType, a.ParentName, &a.ActionBase)
	a.SelectedParentID, a.LinkedCreateActionID = "", ""

	if top, ok := match.AutoMatch(a.ParentMatches); ok {
		a.SelectedParentID = top.ID
	} else if id, ok := lookup.Find(a.ParentType, a.ParentName); ok {
		a.LinkedCreateActionID = id
	} else {
		a.ActionBase = a.AddIssue(UnresolvedIssue(a.ParentType, a.ParentName))
	}
	return a
}

func (h *Hydrator) hydrateLink(ctx context.Context, a model.LinkCompanyCoInvestorAction, lookup CreateLookup) model.Action {
	a.CompanyMatches = h.matches(ctx, model.EntityCompany, a.CompanyName, &a.ActionBase)
	a.CoInvestorMatches = h.matches(ctx, model.EntityCoInvestor, a.CoInvestorName, &a.ActionBase)
	a.SelectedCompanyID, a.CompanyCreateActionID = "", ""
	a.SelectedCoInvestorID, a.CoInvestorCreateActionID = "", ""
	a.HealthSystemConflict = nil

	if top, ok := match.AutoMatch(a.CompanyMatches); ok {
		a.SelectedCompanyID = top.ID
	} else if id, ok := lookup.Find(model.EntityCompany, a.CompanyName); ok {
		a.CompanyCreateActionID = id
	} else {
		a.ActionBase = a.AddIssue(UnresolvedIssue(model.EntityCompany, a.CompanyName))
	}

	if top, ok := match.AutoMatch(a.CoInvestorMatches); ok {
		a.SelectedCoInvestorID = top.ID
	} else if id, ok := lookup.Find(model.EntityCoInvestor, a.CoInvestorName); ok {
		a.CoInvestorCreateActionID = id
	} else {
		a.ActionBase = a.AddIssue(UnresolvedIssue(model.EntityCoInvestor, a.CoInvestorName))
	}

	healthSystems := h.matches(ctx, model.EntityHealthSystem, a.CoInvestorName, &a.ActionBase)
	if top, ok := match.AutoMatch(healthSystems); ok {
		conflict := top
		a.HealthSystemConflict = &conflict
		a.ActionBase = a.AddIssue(MisclassificationIssue(a.CoInvestorName, top.Name))
	}
	return a
}

// UnresolvedIssue is recorded when a referenced record resolves neither to
// an existing record nor to a create in the same plan
func UnresolvedIssue(entityType model.EntityType, name string) string {
	return fmt.Sprintf("No existing %s matches %q and the plan does not create it.", entityType.Label(), name)
}

// MisclassificationIssue is recorded when a co-investor name matches an
// existing health system
func MisclassificationIssue(coInvestor, healthSystem string) string {
	return fmt.Sprintf("Co-investor %q matches existing health system %q; health systems cannot be linked as co-investors.", coInvestor, healthSystem)
}

// matches fetches existing-record matches. A store failure becomes an issue
// on the action and an empty match list.
func (h *Hydrator) matches(ctx context.Context, entityType model.EntityType, name string, base *model.ActionBase) []model.EntityMatch {
	if h.matcher == nil {
		return []model.EntityMatch{}
	}
	matches, err := h.matcher.FetchEntityMatches(ctx, entityType, name)
	if err != nil {
		zap.L().Warn("hydrate: match lookup failed",
			zap.String("entityType", string(entityType)),
			zap.String("name", name),
			zap.Error(err))
		*base = base.AddIssue(fmt.Sprintf("Could not search existing %s records for %q.", entityType.Label(), name))
		return []model.EntityMatch{}
	}
	return matches
}

func (h *Hydrator) webCandidates(ctx context.Context, entityType model.EntityType, name string) []model.WebCandidate {
	if h.web == nil {
		return []model.WebCandidate{}
	}
	candidates := h.web.FetchWebCandidates(ctx, entityType, name)
	if candidates == nil {
		return []model.WebCandidate{}
	}
	return candidates
}
