package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/dealdesk/internal/execute"
	"github.com/ppiankov/dealdesk/internal/extract"
	"github.com/ppiankov/dealdesk/internal/hydrate"
	"github.com/ppiankov/dealdesk/internal/llm"
	"github.com/ppiankov/dealdesk/internal/match"
	"github.com/ppiankov/dealdesk/internal/model"
	"github.com/ppiankov/dealdesk/internal/store"
	"github.com/ppiankov/dealdesk/internal/store/sqlite"
)

type scriptedProvider struct {
	output string
	err    error
}

func (p *scriptedProvider) Name() string                         { return "scripted" }
func (p *scriptedProvider) IsAvailable(ctx context.Context) bool { return true }

func (p *scriptedProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &llm.CompletionResponse{OutputText: p.output}, nil
}

func newTestPipeline(t *testing.T, provider llm.Provider) (*Pipeline, store.Store) {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.New(ctx, "sqlite://:memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(ctx) })
	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return New(
		extract.NewExtractor(provider, "", 0),
		hydrate.New(match.NewMatcher(db), nil, 2),
		execute.New(db),
	), db
}

func hasWarning(p model.NarrativePlan, substr string) bool {
	for _, w := range p.Warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func TestBuild_HealthSystemIntroduction(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	plan := p.BuildNarrativePlan(context.Background(), "Acme Health introduced us to Vitalize Care")

	if plan.Phase != model.PhasePlan {
		t.Fatalf("expected PLAN, got %s: %v", plan.Phase, plan.Warnings)
	}
	var company *model.CreateEntityAction
	for _, a := range plan.Actions {
		switch a := a.(type) {
		case model.CreateEntityAction:
			if a.EntityType == model.EntityCompany && a.Draft.Name == "Vitalize Care" {
				company = &a
			}
		case model.LinkCompanyCoInvestorAction:
			t.Errorf("a health system introducer must not produce a co-investor link: %+v", a)
		}
	}
	if company == nil {
		t.Fatalf("expected a company create, got %+v", plan.Actions)
	}
	if company.Draft.LeadSourceType != model.LeadSourceHealthSystem || company.Draft.LeadSourceHealthSystemName != "Acme Health" {
		t.Errorf("unexpected lead source: %+v", company.Draft)
	}
	if !hasWarning(plan, "No LLM credential") {
		t.Errorf("expected the no-credential warning, got %v", plan.Warnings)
	}
	if plan.ModelDigest == "" {
		t.Error("expected model digest on the plan")
	}
}

func TestBuild_CoInvestorIntroductionThenExecute(t *testing.T) {
	ctx := context.Background()
	p, db := newTestPipeline(t, nil)
	plan := p.BuildNarrativePlan(ctx, "Summit Ventures introduced us to CarePilot.")

	var coInvestor, company, link bool
	for _, a := range plan.Actions {
		switch a := a.(type) {
		case model.CreateEntityAction:
			coInvestor = coInvestor || (a.EntityType == model.EntityCoInvestor && a.Draft.Name == "Summit Ventures")
			company = company || (a.EntityType == model.EntityCompany && a.Draft.Name == "CarePilot")
		case model.LinkCompanyCoInvestorAction:
			link = a.CompanyName == "CarePilot" && a.CoInvestorName == "Summit Ventures" && strings.Contains(a.Notes, "introduced")
			if a.CompanyCreateActionID == "" || a.CoInvestorCreateActionID == "" {
				t.Errorf("link should depend on same-batch creates: %+v", a)
			}
		}
	}
	if !coInvestor || !company || !link {
		t.Fatalf("missing actions (coInvestor=%v company=%v link=%v): %+v", coInvestor, company, link, plan.Actions)
	}
	if plan.Phase != model.PhasePlan {
		t.Fatalf("expected PLAN, got %s: %v", plan.Phase, plan.Warnings)
	}

	// plans round-trip through the caller as JSON
	data, err := json.Marshal(plan)
	if err != nil {
		t.Fatal(err)
	}
	var decoded model.NarrativePlan
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}

	report := p.ExecuteNarrativePlan(ctx, decoded)
	if report.Executed != 3 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Results[len(report.Results)-1].Kind != model.KindLinkCompanyCoInvestor {
		t.Errorf("link should run after both creates: %+v", report.Results)
	}

	companies, err := db.FindEntities(ctx, model.EntityCompany, "CarePilot", 5)
	if err != nil || len(companies) != 1 {
		t.Fatalf("expected one company, got %+v (%v)", companies, err)
	}
	if companies[0].LeadSourceType != model.LeadSourceOther || companies[0].LeadSourceOther != "Summit Ventures" {
		t.Errorf("expected lead source backfilled from the introduction, got %+v", companies[0])
	}
}

func TestBuild_UnresolvedUpdateAsksAndLockPhraseBypasses(t *testing.T) {
	provider := &scriptedProvider{output: `{"summary":"Update Ghost Co","actions":[
		{"kind":"UPDATE_ENTITY","entityType":"COMPANY","targetName":"Ghost Co","patch":{"companyType":"STARTUP"},"confidence":0.9}
	]}`}
	p, _ := newTestPipeline(t, provider)

	asked := p.BuildNarrativePlan(context.Background(), "Mark Ghost Co as a startup")
	if asked.Phase != model.PhaseClarification {
		t.Fatalf("expected CLARIFICATION, got %s", asked.Phase)
	}
	if len(asked.Warnings) != 1 || !strings.Contains(asked.Warnings[0], "Ghost Co") {
		t.Errorf("expected one question about Ghost Co, got %v", asked.Warnings)
	}

	locked := p.BuildNarrativePlan(context.Background(), "Mark Ghost Co as a startup. Requirements confirmed.")
	if locked.Phase != model.PhasePlan {
		t.Errorf("expected lock phrase to force PLAN, got %s", locked.Phase)
	}
}

func TestBuild_DuplicateExtractionIsConsolidated(t *testing.T) {
	provider := &scriptedProvider{output: `{"actions":[
		{"kind":"CREATE_ENTITY","entityType":"COMPANY","draft":{"name":"Acme Inc"}},
		{"kind":"CREATE_ENTITY","entityType":"COMPANY","draft":{"name":"a company called Acme Inc"}}
	]}`}
	p, _ := newTestPipeline(t, provider)

	plan := p.BuildNarrativePlan(context.Background(), "Add Acme Inc. Add a company called Acme Inc.")
	if len(plan.Actions) != 1 {
		t.Fatalf("expected one action after dedup, got %d", len(plan.Actions))
	}
	if !hasWarning(plan, "Consolidated 1 duplicate") {
		t.Errorf("expected consolidation warning, got %v", plan.Warnings)
	}
}

func TestNoCrash(t *testing.T) {
	ctx := context.Background()
	providers := map[string]llm.Provider{
		"nil":     nil,
		"failing": &scriptedProvider{err: errors.New("boom")},
		"garbage": &scriptedProvider{output: "not json at all"},
		"wrong":   &scriptedProvider{output: `{"actions":"nope","warnings":{}}`},
	}
	narratives := []string{"", "   ", "hello", "introduced us to", "Mercy introduced us to Mercy"}

	for name, provider := range providers {
		t.Run(name, func(t *testing.T) {
			p, _ := newTestPipeline(t, provider)
			for _, n := range narratives {
				plan := p.BuildNarrativePlan(ctx, n)
				if plan.Actions == nil || plan.Warnings == nil {
					t.Errorf("plan for %q has nil slices: %+v", n, plan)
				}
				report := p.ExecuteNarrativePlan(ctx, plan)
				if report.Results == nil {
					t.Errorf("report for %q has nil results", n)
				}
			}
			if report := p.ExecuteNarrativePlan(ctx, model.NarrativePlan{}); report.Executed != 0 {
				t.Errorf("empty plan executed actions: %+v", report)
			}
		})
	}
}

func TestRenderers(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	plan := p.BuildNarrativePlan(context.Background(), "Summit Ventures introduced us to CarePilot.")

	md := PlanMarkdown(plan)
	for _, want := range []string{"# Narrative Plan", "CREATE_ENTITY", "LINK_COMPANY_CO_INVESTOR", "Summit Ventures"} {
		if !strings.Contains(md, want) {
			t.Errorf("plan markdown missing %q", want)
		}
	}

	report := p.ExecuteNarrativePlan(context.Background(), plan)
	if md := ReportMarkdown(report); !strings.Contains(md, "EXECUTED") || !strings.Contains(md, "created company") {
		t.Errorf("unexpected report markdown:\n%s", md)
	}

	var buf bytes.Buffer
	r := NewRenderer(&buf)
	if err := r.WriteJSON(plan, "-"); err != nil {
		t.Fatal(err)
	}
	var decoded model.NarrativePlan
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("rendered JSON does not decode: %v", err)
	}
	buf.Reset()
	r.PrintReportSummary(report)
	if !strings.Contains(buf.String(), report.Summary) {
		t.Errorf("summary not printed: %s", buf.String())
	}
}

func TestCheckExecutable(t *testing.T) {
	if err := CheckExecutable(model.NarrativePlan{Phase: model.PhasePlan}); err != nil {
		t.Errorf("PLAN should be executable: %v", err)
	}
	err := CheckExecutable(model.NarrativePlan{Phase: model.PhaseClarification, Warnings: []string{"q"}})
	if !errors.Is(err, ErrClarificationPending) {
		t.Errorf("expected ErrClarificationPending, got %v", err)
	}
}
