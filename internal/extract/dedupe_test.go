package extract

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ppiankov/dealdesk/internal/model"
)

func create(id string, entityType model.EntityType, draft model.EntityDraft, confidence float64) model.CreateEntityAction {
	return model.CreateEntityAction{
		ActionBase: model.ActionBase{ID: id, Include: true, Confidence: confidence, Rationale: "r-" + id, Issues: []string{}},
		EntityType: entityType,
		Draft:      draft,
		Selection:  model.CreateManual(),
	}
}

func TestDedupeActions_CollapsesFillerVariants(t *testing.T) {
	actions := []model.Action{
		create("a", model.EntityCompany, model.EntityDraft{Name: "Acme Inc", Website: "https://acme.example"}, 0.6),
		create("b", model.EntityCompany, model.EntityDraft{Name: "a company called Acme Inc", Website: "https://other.example", HeadquartersCity: "Austin"}, 0.9),
	}

	out, merged := DedupeActions(actions)
	if len(out) != 1 || merged != 1 {
		t.Fatalf("expected one action after dedupe, got %d (merged %d)", len(out), merged)
	}

	got := out[0].(model.CreateEntityAction)
	if got.ID != "a" {
		t.Errorf("expected first id to survive, got %s", got.ID)
	}
	if got.Draft.Website != "https://acme.example" || got.Draft.HeadquartersCity != "Austin" {
		t.Errorf("unexpected merged draft %+v", got.Draft)
	}
	if got.Confidence != 0.9 || got.Rationale != "r-a r-b" {
		t.Errorf("unexpected merged envelope %+v", got.ActionBase)
	}
}

func TestDedupeActions_MergeRules(t *testing.T) {
	amount := 1e6
	first := model.LinkCompanyCoInvestorAction{
		ActionBase:       model.ActionBase{ID: "l1", Include: false, Confidence: 0.5, Issues: []string{"one"}},
		CompanyName:      "CarePilot",
		CoInvestorName:   "Summit Ventures",
		RelationshipType: model.RelationshipInvestor,
		Notes:            "Seed round.",
	}
	second := model.LinkCompanyCoInvestorAction{
		ActionBase:          model.ActionBase{ID: "l2", Include: true, Confidence: 0.4, Issues: []string{"one", "two"}},
		CompanyName:         "carepilot",
		CoInvestorName:      "the fund Summit Ventures",
		RelationshipType:    model.RelationshipInvestor,
		Notes:               "Summit Ventures introduced the team to CarePilot.",
		InvestmentAmountUSD: &amount,
	}
	partner := second
	partner.ID = "l3"
	partner.RelationshipType = model.RelationshipPartner

	out, merged := DedupeActions([]model.Action{first, second, partner})
	if len(out) != 2 || merged != 1 {
		t.Fatalf("expected relationship type to keep links apart, got %d actions", len(out))
	}

	got := out[0].(model.LinkCompanyCoInvestorAction)
	if !got.Include || got.Confidence != 0.5 {
		t.Errorf("include should OR and confidence MAX: %+v", got.ActionBase)
	}
	if diff := cmp.Diff([]string{"one", "two"}, got.Issues); diff != "" {
		t.Errorf("issues not unioned (-want +got):\n%s", diff)
	}
	if got.Notes != "Seed round. Summit Ventures introduced the team to CarePilot." {
		t.Errorf("notes = %q", got.Notes)
	}
	if got.InvestmentAmountUSD == nil || *got.InvestmentAmountUSD != amount {
		t.Errorf("amount not filled: %v", got.InvestmentAmountUSD)
	}
}

func TestDedupeActions_Converges(t *testing.T) {
	narrative := "Summit Ventures introduced us to Acme Health intro to CarePilot. Summit Ventures introduced us to CarePilot."
	extracted := []model.Action{
		create("x", model.EntityCoInvestor, model.EntityDraft{Name: "Summit Ventures"}, 0.8),
		model.AddContactAction{
			ActionBase: model.ActionBase{ID: "c1", Include: true, Issues: []string{}},
			ParentType: model.EntityCompany,
			ParentName: "CarePilot",
			RoleType:   model.RoleCompanyContact,
			Contact:    model.Contact{Name: "Jane Doe"},
		},
		model.AddContactAction{
			ActionBase: model.ActionBase{ID: "c2", Include: true, Issues: []string{}},
			ParentType: model.EntityCompany,
			ParentName: "Care Pilot",
			RoleType:   model.RoleCompanyContact,
			Contact:    model.Contact{Name: "Jane Doe", Email: "jane@carepilot.example"},
		},
	}
	actions, _ := ApplyIntroductionHeuristics(narrative, extracted)

	once, _ := DedupeActions(actions)
	twice, merged := DedupeActions(once)
	if merged != 0 {
		t.Errorf("second pass merged %d actions", merged)
	}
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("dedupe did not converge (-once +twice):\n%s", diff)
	}

	keys := map[string]bool{}
	for _, a := range once {
		key := DedupeKey(a)
		if keys[key] {
			t.Errorf("duplicate key %s after dedupe", key)
		}
		keys[key] = true
	}
	// co-investor, company, link, and two contacts for distinct parents
	if len(once) != 5 {
		t.Errorf("expected 5 actions, got %d", len(once))
	}
}
