package clarify

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ppiankov/dealdesk/internal/model"
)

func base(id string) model.ActionBase {
	return model.ActionBase{ID: id, Include: true, Issues: []string{}}
}

func unresolvedUpdate() model.UpdateEntityAction {
	return model.UpdateEntityAction{
		ActionBase: base("u1"),
		EntityType: model.EntityCompany,
		TargetName: "Ghost Co",
		Patch:      model.EntityPatch{CompanyType: model.CompanyTypeStartup},
	}
}

func TestBuildActionClarificationQuestion(t *testing.T) {
	idx := 0
	tests := []struct {
		name   string
		action model.Action
		want   bool
	}{
		{"unresolved update", unresolvedUpdate(), true},
		{"update with target", model.UpdateEntityAction{ActionBase: base("u"), EntityType: model.EntityCompany, TargetName: "X", SelectedTargetID: "id"}, false},
		{"update linked to create", model.UpdateEntityAction{ActionBase: base("u"), EntityType: model.EntityCompany, TargetName: "X", LinkedCreateActionID: "c"}, false},
		{"excluded update", model.UpdateEntityAction{ActionBase: model.ActionBase{ID: "u"}, EntityType: model.EntityCompany, TargetName: "X"}, false},
		{"create using existing", model.CreateEntityAction{
			ActionBase:      base("c"),
			EntityType:      model.EntityHealthSystem,
			Draft:           model.EntityDraft{Name: "Mercy General"},
			ExistingMatches: []model.EntityMatch{{ID: "hs", Name: "Mercy General", Confidence: 0.98}},
			Selection:       model.UseExisting("hs"),
		}, false},
		{"create with weak match", model.CreateEntityAction{
			ActionBase:      base("c"),
			EntityType:      model.EntityCompany,
			Draft:           model.EntityDraft{Name: "Acme"},
			ExistingMatches: []model.EntityMatch{{ID: "x", Name: "Acme Holdings Group", Confidence: 0.64}},
			Selection:       model.CreateManual(),
		}, true},
		{"create with one web candidate", model.CreateEntityAction{
			ActionBase:    base("c"),
			EntityType:    model.EntityCompany,
			Draft:         model.EntityDraft{Name: "Acme"},
			WebCandidates: []model.WebCandidate{{Name: "Acme"}},
			Selection:     model.Selection{Mode: model.SelectCreateFromWeb, WebCandidateIndex: &idx},
		}, false},
		{"create with ambiguous web candidates", model.CreateEntityAction{
			ActionBase:    base("c"),
			EntityType:    model.EntityCompany,
			Draft:         model.EntityDraft{Name: "Acme"},
			WebCandidates: []model.WebCandidate{{Name: "Acme A"}, {Name: "Acme B"}},
			Selection:     model.CreateFromWeb(-1),
		}, true},
		{"create with unconfirmed lead source", model.CreateEntityAction{
			ActionBase:        base("c"),
			EntityType:        model.EntityCompany,
			Draft:             model.EntityDraft{Name: "CarePilot", LeadSourceHealthSystemName: "Acme Health"},
			Selection:         model.CreateManual(),
			LeadSourceMatches: []model.EntityMatch{{ID: "hs", Name: "Acme Health Partners", Confidence: 0.64}},
		}, true},
		{"contact without parent", model.AddContactAction{
			ActionBase: base("ct"),
			ParentType: model.EntityCompany,
			ParentName: "Nowhere",
			Contact:    model.Contact{Name: "Jane"},
		}, true},
		{"link with health system conflict", model.LinkCompanyCoInvestorAction{
			ActionBase:           base("l"),
			CompanyName:          "CarePilot",
			CoInvestorName:       "Mercy General",
			SelectedCompanyID:    "co",
			SelectedCoInvestorID: "ci",
			HealthSystemConflict: &model.EntityMatch{ID: "hs", Name: "Mercy General", Confidence: 0.98},
		}, true},
		{"resolved link", model.LinkCompanyCoInvestorAction{
			ActionBase:               base("l"),
			CompanyName:              "CarePilot",
			CoInvestorName:           "Summit Ventures",
			CompanyCreateActionID:    "c1",
			CoInvestorCreateActionID: "c2",
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, ok := BuildActionClarificationQuestion(tt.action)
			if ok != tt.want {
				t.Fatalf("got (%q, %v), want ok=%v", q, ok, tt.want)
			}
			if ok && q == "" {
				t.Error("expected a non-empty question")
			}
		})
	}
}

func TestConflictQuestionNamesHealthSystem(t *testing.T) {
	q, _ := BuildActionClarificationQuestion(model.LinkCompanyCoInvestorAction{
		ActionBase:           base("l"),
		CompanyName:          "CarePilot",
		CoInvestorName:       "Mercy",
		HealthSystemConflict: &model.EntityMatch{Name: "Mercy General"},
	})
	if !strings.Contains(q, "health system") || !strings.Contains(q, "Mercy General") {
		t.Errorf("unexpected question %q", q)
	}
}

func TestBuildClarificationQuestionQueue(t *testing.T) {
	actions := []model.Action{unresolvedUpdate(), unresolvedUpdate()}
	warnings := []string{
		"Consolidated 2 duplicate actions",
		"Please confirm the investment amount",
		"Which Summit do you mean?",
		"please confirm the investment amount.",
		"Nothing else to report",
	}

	got := BuildClarificationQuestionQueue(actions, warnings)
	if len(got) != 3 {
		t.Fatalf("expected 3 questions, got %d: %v", len(got), got)
	}
	if !strings.Contains(got[0], "Ghost Co") {
		t.Errorf("action questions should come first, got %v", got)
	}
	if diff := cmp.Diff([]string{"Please confirm the investment amount", "Which Summit do you mean?"}, got[1:]); diff != "" {
		t.Errorf("warning questions mismatch (-want +got):\n%s", diff)
	}
}

func TestIsClarificationWarning(t *testing.T) {
	tests := map[string]bool{
		"Do you want me to link them?":            true,
		"Should I create a new record":            true,
		"which fund led the round":                true,
		"Consolidated 3 duplicate actions":        false,
		"Inferred 2 action(s) from introductions": false,
		"Is this right?":                          true,
	}
	for in, want := range tests {
		if got := IsClarificationWarning(in); got != want {
			t.Errorf("IsClarificationWarning(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestDecide(t *testing.T) {
	ambiguous := []model.Action{unresolvedUpdate()}

	// an unresolved update with no linked create asks and blocks execution
	got := Decide("Mark Ghost Co as a startup", ambiguous, nil)
	if got.Phase != model.PhaseClarification || len(got.Questions) != 1 {
		t.Errorf("expected CLARIFICATION with one question, got %+v", got)
	}

	bypass := Decide("Mark Ghost Co as a startup. Requirements confirmed!", ambiguous, nil)
	if bypass.Phase != model.PhasePlan || !bypass.Bypassed {
		t.Errorf("expected lock phrase to bypass the gate, got %+v", bypass)
	}

	empty := Decide("hello", nil, []string{"Which company?"})
	if empty.Phase != model.PhasePlan {
		t.Errorf("questions without actions must not block, got %+v", empty)
	}

	clear := Decide("hello", []model.Action{model.UpdateEntityAction{ActionBase: base("u"), EntityType: model.EntityCompany, TargetName: "X", SelectedTargetID: "id"}}, nil)
	if clear.Phase != model.PhasePlan || len(clear.Questions) != 0 {
		t.Errorf("resolved actions should produce a plan, got %+v", clear)
	}
}

func TestHasLockPhrase(t *testing.T) {
	tests := map[string]bool{
		"Please BUILD EXECUTION PLAN now":       true,
		"ok, proceed with the plan":             true,
		"requirements-confirmed":                true,
		"the requirements were not confirmed":   false,
		"I will build execution planning later": false,
		"":                                      false,
	}
	for in, want := range tests {
		if got := HasLockPhrase(in); got != want {
			t.Errorf("HasLockPhrase(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestBuildClarificationSummary(t *testing.T) {
	actions := []model.Action{
		model.CreateEntityAction{
			ActionBase:      base("c"),
			EntityType:      model.EntityHealthSystem,
			Draft:           model.EntityDraft{Name: "Mercy General"},
			ExistingMatches: []model.EntityMatch{{ID: "hs", Name: "Mercy General", Confidence: 0.98}},
			Selection:       model.UseExisting("hs"),
		},
		unresolvedUpdate(),
	}
	summary := BuildClarificationSummary(actions, []string{"q"})
	for _, want := range []string{"Resolved automatically", "Mercy General", "98% match", "Pending", "Ghost Co"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
}
