package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNarrativePlanJSONRoundTrip(t *testing.T) {
	idx := 0
	amount := 2_500_000.0
	plan := NarrativePlan{
		Narrative:   "Mercy General introduced us to CarePilot.",
		Phase:       PhasePlan,
		Summary:     "2 actions",
		ModelDigest: "digest",
		Warnings:    []string{},
		Actions: ActionList{
			CreateEntityAction{
				ActionBase: ActionBase{ID: "a1", Include: true, Confidence: 0.9, Issues: []string{}},
				EntityType: EntityCompany,
				Draft:      EntityDraft{Name: "CarePilot", LeadSourceType: LeadSourceHealthSystem},
				WebCandidates: []WebCandidate{
					{Name: "CarePilot", Website: "https://carepilot.example"},
				},
				Selection: Selection{Mode: SelectCreateFromWeb, WebCandidateIndex: &idx},
			},
			LinkCompanyCoInvestorAction{
				ActionBase:          ActionBase{ID: "a2", Include: false, Confidence: 0.5, Issues: []string{"x"}},
				CompanyName:         "CarePilot",
				CoInvestorName:      "Summit Ventures",
				RelationshipType:    RelationshipInvestor,
				InvestmentAmountUSD: &amount,
			},
		},
	}

	data, err := json.Marshal(plan)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded NarrativePlan
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if diff := cmp.Diff(plan, decoded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeActionUnknownKind(t *testing.T) {
	_, err := DecodeAction([]byte(`{"kind":"DELETE_EVERYTHING","id":"x"}`))
	if !errors.Is(err, ErrUnknownActionKind) {
		t.Fatalf("expected ErrUnknownActionKind, got %v", err)
	}
}

func TestAddIssueDoesNotAlias(t *testing.T) {
	base := ActionBase{Issues: make([]string, 1, 4)}
	base.Issues[0] = "first"

	a := base.AddIssue("second")
	b := base.AddIssue("third")

	if a.Issues[1] != "second" || b.Issues[1] != "third" {
		t.Errorf("issues alias shared backing array: %v %v", a.Issues, b.Issues)
	}
	if got := a.AddIssue("second"); len(got.Issues) != 2 {
		t.Errorf("expected duplicate issue to be ignored, got %v", got.Issues)
	}
}

func TestFillFrom(t *testing.T) {
	yes := true
	draft := EntityDraft{Name: "CarePilot", Website: "https://a.example"}
	other := EntityDraft{Name: "Care Pilot Inc", Website: "https://b.example", HeadquartersCity: "Austin", IsAllianceMember: &yes}

	got := draft.FillFrom(other)
	if got.Name != "CarePilot" || got.Website != "https://a.example" {
		t.Errorf("set fields were overwritten: %+v", got)
	}
	if got.HeadquartersCity != "Austin" || got.IsAllianceMember == nil || !*got.IsAllianceMember {
		t.Errorf("empty fields were not filled: %+v", got)
	}
	if !(EntityPatch{}).IsEmpty() || got.IsEmpty() {
		t.Error("IsEmpty mismatch")
	}
}

func TestClampConfidence(t *testing.T) {
	for in, want := range map[float64]float64{-1: 0, 0.5: 0.5, 3: 1} {
		if got := ClampConfidence(in); got != want {
			t.Errorf("ClampConfidence(%v) = %v, want %v", in, got, want)
		}
	}
}
