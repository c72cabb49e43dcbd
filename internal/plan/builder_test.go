package plan

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ppiankov/dealdesk/internal/clarify"
	"github.com/ppiankov/dealdesk/internal/model"
)

func TestBuild_EmptyPlan(t *testing.T) {
	p := Build(Input{Narrative: "nothing here", Decision: clarify.Decision{Phase: model.PhasePlan}})
	if p.Phase != model.PhasePlan {
		t.Errorf("expected PLAN, got %s", p.Phase)
	}
	if p.Actions == nil || len(p.Actions) != 0 {
		t.Errorf("expected empty non-nil actions, got %v", p.Actions)
	}
	if diff := cmp.Diff([]string{NothingActionableWarning}, p.Warnings); diff != "" {
		t.Errorf("warnings mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_PlanExcludesQuestions(t *testing.T) {
	actions := []model.Action{
		model.CreateEntityAction{ActionBase: model.ActionBase{ID: "a", Include: true}, EntityType: model.EntityCompany, Draft: model.EntityDraft{Name: "Acme"}},
		model.UpdateEntityAction{ActionBase: model.ActionBase{ID: "b"}, EntityType: model.EntityCompany, TargetName: "Acme"},
	}
	p := Build(Input{
		Narrative: "Acme",
		Summary:   "One new company.",
		Actions:   actions,
		Warnings: []string{
			"Consolidated 1 duplicate actions",
			"consolidated 1 duplicate actions.",
			"Should I also add the CEO?",
			"  ",
		},
		Decision: clarify.Decision{Phase: model.PhasePlan},
	})

	if diff := cmp.Diff([]string{"Consolidated 1 duplicate actions"}, p.Warnings); diff != "" {
		t.Errorf("warnings mismatch (-want +got):\n%s", diff)
	}
	if !strings.HasPrefix(p.Summary, "One new company.") || !strings.Contains(p.Summary, "2 action(s) ready, 1 included") {
		t.Errorf("unexpected summary %q", p.Summary)
	}
}

func TestBuild_Clarification(t *testing.T) {
	actions := []model.Action{
		model.UpdateEntityAction{ActionBase: model.ActionBase{ID: "u", Include: true}, EntityType: model.EntityCompany, TargetName: "Ghost Co"},
	}
	questions := clarify.BuildClarificationQuestionQueue(actions, nil)
	p := Build(Input{
		Actions:  actions,
		Warnings: []string{"Consolidated 1 duplicate actions"},
		Decision: clarify.Decision{Phase: model.PhaseClarification, Questions: questions},
	})

	if p.Phase != model.PhaseClarification {
		t.Fatalf("expected CLARIFICATION, got %s", p.Phase)
	}
	if diff := cmp.Diff(questions, p.Warnings); diff != "" {
		t.Errorf("clarification warnings should be the question queue (-want +got):\n%s", diff)
	}
	if !strings.Contains(p.Summary, "Ghost Co") {
		t.Errorf("summary should preview pending actions, got %q", p.Summary)
	}
}

func TestBuild_BypassAddsWarning(t *testing.T) {
	p := Build(Input{
		Actions:  []model.Action{model.UpdateEntityAction{ActionBase: model.ActionBase{ID: "u", Include: true}}},
		Decision: clarify.Decision{Phase: model.PhasePlan, Questions: []string{"Which company?"}, Bypassed: true},
	})
	if len(p.Warnings) != 1 || !strings.Contains(p.Warnings[0], "1 open question") {
		t.Errorf("expected bypass warning, got %v", p.Warnings)
	}
}

func TestCleanWarnings(t *testing.T) {
	got := CleanWarnings([]string{" a  b ", "A B", "", "c"})
	if diff := cmp.Diff([]string{"a b", "c"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if CleanWarnings(nil) == nil {
		t.Error("expected non-nil slice")
	}
}
