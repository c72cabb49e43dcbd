package web

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ppiankov/dealdesk/internal/llm"
	"github.com/ppiankov/dealdesk/internal/model"
)

type stubProvider struct {
	output string
	err    error
	last   llm.CompletionRequest
}

func (p *stubProvider) Name() string { return "stub" }
func (p *stubProvider) IsAvailable(ctx context.Context) bool { return true }

func (p *stubProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.last = req
	if p.err != nil {
		return nil, p.err
	}
	return &llm.CompletionResponse{OutputText: p.output}, nil
}

func TestHealthSystemSearcher(t *testing.T) {
	provider := &stubProvider{output: `Here you go: {"healthSystems":[{"name":"Mercy General","website":"mercy.example.org","city":"Sacramento","state":"CA","country":"USA","description":"Hospital network","sources":["https://a.example"]}]}`}
	got, err := NewHealthSystemSearcher(provider, "").Search(context.Background(), "Mercy", 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	want := []model.WebCandidate{{
		Name: "Mercy General", Website: "mercy.example.org", HeadquartersCity: "Sacramento",
		HeadquartersState: "CA", HeadquartersCountry: "USA", Summary: "Hospital network",
		SourceURLs: []string{"https://a.example"},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if provider.last.SchemaName != "health_system_search" || len(provider.last.Schema) == 0 {
		t.Errorf("expected schema on request, got %+v", provider.last)
	}
}

func TestCompanySearcher(t *testing.T) {
	provider := &stubProvider{output: `{"companies":[{"companyName":"CarePilot","url":"https://carepilot.example","headquarters":{"city":"Austin","state":"TX","country":"USA"},"summary":"Care navigation","citations":[{"url":"https://news.example/1"},{"url":"https://news.example/2"}]}]}`}
	got, err := NewCompanySearcher(provider, "").Search(context.Background(), "CarePilot", 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 1 || got[0].HeadquartersCity != "Austin" || len(got[0].SourceURLs) != 2 {
		t.Errorf("unexpected candidates: %+v", got)
	}
}

func TestCoInvestorSearcher(t *testing.T) {
	provider := &stubProvider{output: `{"investors":[{"firm":"Summit Ventures","homepage":"summit.example","location":"Boston, MA, USA","thesis":"Digital health","links":[]}]}`}
	got, err := NewCoInvestorSearcher(provider, "").Search(context.Background(), "Summit", 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 1 || got[0].HeadquartersCity != "Boston" || got[0].HeadquartersState != "MA" || got[0].HeadquartersCountry != "USA" {
		t.Errorf("unexpected candidates: %+v", got)
	}
}

func TestSearcherErrors(t *testing.T) {
	if _, err := NewCompanySearcher(&stubProvider{err: errors.New("boom")}, "").Search(context.Background(), "x", 1); err == nil {
		t.Error("expected provider error")
	}
	if _, err := NewCompanySearcher(&stubProvider{output: "no json here"}, "").Search(context.Background(), "x", 1); err == nil {
		t.Error("expected error for output without JSON")
	}
}

func TestSplitLocation(t *testing.T) {
	tests := []struct {
		in      string
		city    string
		state   string
		country string
	}{
		{"", "", "", ""},
		{"Boston", "Boston", "", ""},
		{"Boston, MA", "Boston", "MA", ""},
		{" Boston , MA , USA ", "Boston", "MA", "USA"},
	}
	for _, tt := range tests {
		city, state, country := splitLocation(tt.in)
		if city != tt.city || state != tt.state || country != tt.country {
			t.Errorf("splitLocation(%q) = %q, %q, %q", tt.in, city, state, country)
		}
	}
}
