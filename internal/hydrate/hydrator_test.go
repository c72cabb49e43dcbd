package hydrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/ppiankov/dealdesk/internal/match"
	"github.com/ppiankov/dealdesk/internal/model"
	"github.com/ppiankov/dealdesk/internal/normalize"
	"github.com/ppiankov/dealdesk/internal/store/sqlite"
)

// fakeMatcher returns canned matches keyed by entity type and normalized name
type fakeMatcher struct {
	mu      sync.Mutex
	matches map[string][]model.EntityMatch
	err     error
	calls   int
}

func (m *fakeMatcher) set(entityType model.EntityType, name string, matches ...model.EntityMatch) {
	if m.matches == nil {
		m.matches = map[string][]model.EntityMatch{}
	}
	m.matches[string(entityType)+"|"+normalize.ForLookup(name)] = matches
}

func (m *fakeMatcher) FetchEntityMatches(ctx context.Context, entityType model.EntityType, name string) ([]model.EntityMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if got, ok := m.matches[string(entityType)+"|"+normalize.ForLookup(name)]; ok {
		return got, nil
	}
	return []model.EntityMatch{}, nil
}

type fakeWeb map[string][]model.WebCandidate

func (w fakeWeb) FetchWebCandidates(ctx context.Context, entityType model.EntityType, query string) []model.WebCandidate {
	return w[query]
}

func newCreate(id string, entityType model.EntityType, name string) model.CreateEntityAction {
	return model.CreateEntityAction{
		ActionBase: model.ActionBase{ID: id, Include: true, Issues: []string{}},
		EntityType: entityType,
		Draft:      model.EntityDraft{Name: name},
		Selection:  model.CreateManual(),
	}
}

func TestHydrateCreate_ThresholdMonotonicity(t *testing.T) {
	confidences := []float64{match.ScoreExact, match.ScorePrefix, match.ScoreSubstring, 0.7999, match.ScoreStrongOverlap, match.ScorePartialOverlap, match.ScoreWeak}

	for _, confidence := range confidences {
		t.Run(fmt.Sprintf("%.4f", confidence), func(t *testing.T) {
			matcher := &fakeMatcher{}
			matcher.set(model.EntityCompany, "CarePilot",
				model.EntityMatch{ID: "top", EntityType: model.EntityCompany, Name: "CarePilot", Confidence: confidence},
				model.EntityMatch{ID: "second", EntityType: model.EntityCompany, Name: "CarePilot Labs", Confidence: confidence - 0.1},
			)
			web := fakeWeb{"CarePilot": {{Name: "CarePilot"}}}

			got := New(matcher, web, 1).HydrateAction(context.Background(), newCreate("a", model.EntityCompany, "CarePilot"), CreateLookup{}).(model.CreateEntityAction)

			if confidence >= match.AutoMatchConfidenceThreshold {
				if got.Selection.Mode != model.SelectUseExisting || got.Selection.ExistingID != "top" {
					t.Errorf("expected USE_EXISTING top, got %+v", got.Selection)
				}
				return
			}
			if got.Selection.Mode == model.SelectUseExisting {
				t.Errorf("confidence %.4f must not auto-select, got %+v", confidence, got.Selection)
			}
		})
	}
}

func TestHydrateCreate_WebSelection(t *testing.T) {
	web := fakeWeb{
		"One": {{Name: "One"}},
		"Two": {{Name: "Two A"}, {Name: "Two B"}},
	}
	h := New(&fakeMatcher{}, web, 1)

	one := h.HydrateAction(context.Background(), newCreate("1", model.EntityCompany, "One"), CreateLookup{}).(model.CreateEntityAction)
	if one.Selection.Mode != model.SelectCreateFromWeb || one.Selection.WebCandidateIndex == nil || *one.Selection.WebCandidateIndex != 0 {
		t.Errorf("single candidate should be auto-selected, got %+v", one.Selection)
	}

	two := h.HydrateAction(context.Background(), newCreate("2", model.EntityCompany, "Two"), CreateLookup{}).(model.CreateEntityAction)
	if two.Selection.Mode != model.SelectCreateFromWeb || two.Selection.WebCandidateIndex != nil {
		t.Errorf("multiple candidates need a human choice, got %+v", two.Selection)
	}
	if len(two.Issues) != 1 {
		t.Errorf("expected a choice issue, got %v", two.Issues)
	}

	none := h.HydrateAction(context.Background(), newCreate("3", model.EntityCompany, "None"), CreateLookup{}).(model.CreateEntityAction)
	if none.Selection.Mode != model.SelectCreateManual || none.WebCandidates == nil {
		t.Errorf("expected CREATE_MANUAL with empty candidates, got %+v", none)
	}

	noWeb := New(&fakeMatcher{}, nil, 1).HydrateAction(context.Background(), newCreate("4", model.EntityCompany, "One"), CreateLookup{}).(model.CreateEntityAction)
	if noWeb.Selection.Mode != model.SelectCreateManual {
		t.Errorf("nil web fetcher should fall back to manual, got %+v", noWeb.Selection)
	}
}

func TestHydrateCreate_LeadSource(t *testing.T) {
	matcher := &fakeMatcher{}
	matcher.set(model.EntityHealthSystem, "Mercy General", model.EntityMatch{ID: "hs-1", Name: "Mercy General", Confidence: match.ScoreExact})
	matcher.set(model.EntityHealthSystem, "Acme Health", model.EntityMatch{ID: "hs-2", Name: "Acme Health Partners", Confidence: match.ScorePartialOverlap})
	h := New(matcher, nil, 1)

	withDraft := func(leadSource string) model.CreateEntityAction {
		a := newCreate("c", model.EntityCompany, "CarePilot")
		a.Draft.LeadSourceHealthSystemName = leadSource
		return a
	}

	resolved := h.HydrateAction(context.Background(), withDraft("Mercy General"), CreateLookup{}).(model.CreateEntityAction)
	if resolved.Draft.LeadSourceHealthSystemID != "hs-1" || resolved.Draft.LeadSourceType != model.LeadSourceHealthSystem || len(resolved.LeadSourceMatches) != 0 {
		t.Errorf("expected resolved lead source, got %+v", resolved.Draft)
	}

	ambiguous := h.HydrateAction(context.Background(), withDraft("Acme Health"), CreateLookup{}).(model.CreateEntityAction)
	if ambiguous.Draft.LeadSourceHealthSystemID != "" || ambiguous.Draft.LeadSourceHealthSystemName != "Acme Health" {
		t.Errorf("sub-threshold lead source must keep the name only, got %+v", ambiguous.Draft)
	}
	if len(ambiguous.LeadSourceMatches) != 1 {
		t.Errorf("expected lead source candidates, got %v", ambiguous.LeadSourceMatches)
	}

	lookup := BuildCreateLookup([]model.Action{newCreate("hs", model.EntityHealthSystem, "Acme Health")})
	sameBatch := h.HydrateAction(context.Background(), withDraft("Acme Health"), lookup).(model.CreateEntityAction)
	if len(sameBatch.LeadSourceMatches) != 0 || len(sameBatch.Issues) != 0 {
		t.Errorf("same-batch health system should not need confirmation, got %+v", sameBatch)
	}
}

func TestHydrateUpdateAndContact(t *testing.T) {
	matcher := &fakeMatcher{}
	matcher.set(model.EntityCompany, "Vitalize Care", model.EntityMatch{ID: "co-1", Name: "Vitalize Care", Confidence: match.ScoreExact})
	h := New(matcher, nil, 1)
	lookup := BuildCreateLookup([]model.Action{newCreate("create-cp", model.EntityCompany, "CarePilot")})

	update := func(target string) model.UpdateEntityAction {
		return model.UpdateEntityAction{
			ActionBase: model.ActionBase{ID: "u", Include: true, Issues: []string{}},
			EntityType: model.EntityCompany,
			TargetName: target,
			Patch:      model.EntityPatch{CompanyType: model.CompanyTypeStartup},
		}
	}

	existing := h.HydrateAction(context.Background(), update("Vitalize Care"), lookup).(model.UpdateEntityAction)
	if existing.SelectedTargetID != "co-1" || existing.LinkedCreateActionID != "" {
		t.Errorf("expected existing target, got %+v", existing)
	}

	linked := h.HydrateAction(context.Background(), update("a company called CarePilot"), lookup).(model.UpdateEntityAction)
	if linked.LinkedCreateActionID != "create-cp" || len(linked.Issues) != 0 {
		t.Errorf("expected same-batch link, got %+v", linked)
	}

	unresolved := h.HydrateAction(context.Background(), update("Ghost Co"), lookup).(model.UpdateEntityAction)
	if unresolved.SelectedTargetID != "" || unresolved.LinkedCreateActionID != "" || len(unresolved.Issues) != 1 {
		t.Errorf("expected unresolved issue, got %+v", unresolved)
	}

	contact := h.HydrateAction(context.Background(), model.AddContactAction{
		ActionBase: model.ActionBase{ID: "ct", Include: true, Issues: []string{}},
		ParentType: model.EntityCompany,
		ParentName: "CarePilot",
		RoleType:   model.RoleCompanyContact,
		Contact:    model.Contact{Name: "Jane Doe"},
	}, lookup).(model.AddContactAction)
	if contact.LinkedCreateActionID != "create-cp" {
		t.Errorf("expected contact parent from same batch, got %+v", contact)
	}
}

func TestHydrateLink(t *testing.T) {
	matcher := &fakeMatcher{}
	matcher.set(model.EntityCompany, "CarePilot", model.EntityMatch{ID: "co-1", Name: "CarePilot", Confidence: match.ScoreExact})
	matcher.set(model.EntityHealthSystem, "Mercy General", model.EntityMatch{ID: "hs-1", Name: "Mercy General", Confidence: match.ScoreExact})
	h := New(matcher, nil, 1)

	lookup := BuildCreateLookup([]model.Action{newCreate("create-summit", model.EntityCoInvestor, "Summit Ventures")})
	link := func(coInvestor string) model.LinkCompanyCoInvestorAction {
		return model.LinkCompanyCoInvestorAction{
			ActionBase:       model.ActionBase{ID: "l", Include: true, Issues: []string{}},
			CompanyName:      "CarePilot",
			CoInvestorName:   coInvestor,
			RelationshipType: model.RelationshipInvestor,
		}
	}

	ok := h.HydrateAction(context.Background(), link("Summit Ventures"), lookup).(model.LinkCompanyCoInvestorAction)
	if ok.SelectedCompanyID != "co-1" || ok.CoInvestorCreateActionID != "create-summit" || ok.HealthSystemConflict != nil || len(ok.Issues) != 0 {
		t.Errorf("unexpected link hydration: %+v", ok)
	}

	conflict := h.HydrateAction(context.Background(), link("Mercy General"), lookup).(model.LinkCompanyCoInvestorAction)
	if conflict.HealthSystemConflict == nil || conflict.HealthSystemConflict.ID != "hs-1" {
		t.Fatalf("expected health system conflict, got %+v", conflict)
	}
	found := false
	for _, issue := range conflict.Issues {
		if strings.Contains(issue, "health system") && strings.Contains(issue, "Mercy General") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected misclassification issue, got %v", conflict.Issues)
	}
}

func TestHydrate_MatcherFailureBecomesIssue(t *testing.T) {
	h := New(&fakeMatcher{err: errors.New("db down")}, nil, 1)
	got := h.HydrateAction(context.Background(), newCreate("a", model.EntityCompany, "CarePilot"), CreateLookup{}).(model.CreateEntityAction)
	if got.Selection.Mode != model.SelectCreateManual || len(got.Issues) != 1 {
		t.Errorf("expected manual selection with an issue, got %+v", got)
	}
}

func TestHydrateActions_PreservesOrder(t *testing.T) {
	var actions []model.Action
	for i := 0; i < 20; i++ {
		actions = append(actions, newCreate(fmt.Sprintf("a%02d", i), model.EntityCompany, fmt.Sprintf("Company %d", i)))
	}

	got := New(&fakeMatcher{}, nil, 4).HydrateActions(context.Background(), actions)
	if len(got) != len(actions) {
		t.Fatalf("expected %d actions, got %d", len(actions), len(got))
	}
	for i := range got {
		if got[i].Base().ID != actions[i].Base().ID {
			t.Errorf("order changed at %d: %s", i, got[i].Base().ID)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cancelled := New(&fakeMatcher{}, nil, 2).HydrateActions(ctx, actions)
	for i, a := range cancelled {
		if a == nil || a.Base().ID != actions[i].Base().ID {
			t.Fatalf("cancelled hydration lost action %d", i)
		}
	}
}

func TestHydrate_ExistingHealthSystemFromStore(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.New(ctx, "sqlite://:memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer db.Close(ctx)
	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}
	mercy, err := db.CreateEntity(ctx, model.EntityHealthSystem, model.EntityFields{Name: "Mercy General"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	h := New(match.NewMatcher(db), fakeWeb{"Mercy General": {{Name: "Mercy General Hospital"}, {Name: "Mercy General Health"}}}, 2)
	got := h.HydrateActions(ctx, []model.Action{newCreate("a", model.EntityHealthSystem, "Mercy General")})[0].(model.CreateEntityAction)

	if got.Selection.Mode != model.SelectUseExisting || got.Selection.ExistingID != mercy.ID {
		t.Errorf("expected USE_EXISTING %s, got %+v", mercy.ID, got.Selection)
	}
	if len(got.ExistingMatches) == 0 || got.ExistingMatches[0].Confidence != match.ScoreExact {
		t.Errorf("expected exact top match, got %+v", got.ExistingMatches)
	}
	if len(got.Issues) != 0 {
		t.Errorf("auto-matched create should carry no issues, got %v", got.Issues)
	}
}
