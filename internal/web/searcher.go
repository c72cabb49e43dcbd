// Package web finds candidate organisations outside the store. Each entity
// type has its own searcher with its own raw result shape; the Fetcher
// normalizes them into model.WebCandidate.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/dealdesk/internal/llm"
	"github.com/ppiankov/dealdesk/internal/model"
)

// Searcher looks organisations of one kind up by name
type Searcher interface {
	// Name identifies the searcher in cache keys, rate limits and logs
	Name() string

	// Search returns candidates for query, best first
	Search(ctx context.Context, query string, limit int) ([]model.WebCandidate, error)
}

// completeJSON runs one structured completion and decodes the object it returns
func completeJSON(ctx context.Context, provider llm.Provider, req llm.CompletionRequest, v any) error {
	resp, err := provider.Complete(ctx, req)
	if err != nil {
		return err
	}
	object, ok := llm.ExtractJSONObject(resp.OutputText)
	if !ok {
		return eris.New("web: search response contains no JSON object")
	}
	if err := json.Unmarshal([]byte(object), v); err != nil {
		return eris.Wrap(err, "web: decode search response")
	}
	return nil
}

const searchSystemPrompt = `You look up real organisations for a venture investment team.
Return only organisations you are confident exist. Never invent websites.
Leave a field empty when you do not know it.`

// HealthSystemSearcher finds hospital networks and health systems
type HealthSystemSearcher struct {
	provider llm.Provider
	model    string
}

// NewHealthSystemSearcher creates a health system searcher backed by provider
func NewHealthSystemSearcher(provider llm.Provider, model string) *HealthSystemSearcher {
	return &HealthSystemSearcher{provider: provider, model: model}
}

type healthSystemResults struct {
	HealthSystems []struct {
		Name        string   `json:"name"`
		Website     string   `json:"website"`
		City        string   `json:"city"`
		State       string   `json:"state"`
		Country     string   `json:"country"`
		Description string   `json:"description"`
		Sources     []string `json:"sources"`
	} `json:"healthSystems"`
}

var healthSystemSchema = json.RawMessage(`{
  "type": "object",
  "additionalProperties": false,
  "required": ["healthSystems"],
  "properties": {
    "healthSystems": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["name", "website", "city", "state", "country", "description", "sources"],
        "properties": {
          "name": {"type": "string"},
          "website": {"type": "string"},
          "city": {"type": "string"},
          "state": {"type": "string"},
          "country": {"type": "string"},
          "description": {"type": "string"},
          "sources": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`)

func (s *HealthSystemSearcher) Name() string { return "health_system_search" }

func (s *HealthSystemSearcher) Search(ctx context.Context, query string, limit int) ([]model.WebCandidate, error) {
	var raw healthSystemResults
	err := completeJSON(ctx, s.provider, llm.CompletionRequest{
		SystemPrompt: searchSystemPrompt,
		UserPrompt:   fmt.Sprintf("Find up to %d US health systems or hospital networks matching %q.", limit, query),
		SchemaName:   "health_system_search",
		Schema:       healthSystemSchema,
		Model:        s.model,
	}, &raw)
	if err != nil {
		return nil, err
	}

	out := make([]model.WebCandidate, 0, len(raw.HealthSystems))
	for _, hs := range raw.HealthSystems {
		out = append(out, model.WebCandidate{
			Name:                hs.Name,
			Website:             hs.Website,
			HeadquartersCity:    hs.City,
			HeadquartersState:   hs.State,
			HeadquartersCountry: hs.Country,
			Summary:             hs.Description,
			SourceURLs:          hs.Sources,
		})
	}
	return out, nil
}

// CompanySearcher finds startups and operating companies
type CompanySearcher struct {
	provider llm.Provider
	model    string
}

// NewCompanySearcher creates a company searcher backed by provider
func NewCompanySearcher(provider llm.Provider, model string) *CompanySearcher {
	return &CompanySearcher{provider: provider, model: model}
}

type companyResults struct {
	Companies []struct {
		CompanyName  string `json:"companyName"`
		URL          string `json:"url"`
		Headquarters struct {
			City    string `json:"city"`
			State   string `json:"state"`
			Country string `json:"country"`
		} `json:"headquarters"`
		Summary   string `json:"summary"`
		Citations []struct {
			URL string `json:"url"`
		} `json:"citations"`
	} `json:"companies"`
}

var companySchema = json.RawMessage(`{
  "type": "object",
  "additionalProperties": false,
  "required": ["companies"],
  "properties": {
    "companies": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["companyName", "url", "headquarters", "summary", "citations"],
        "properties": {
          "companyName": {"type": "string"},
          "url": {"type": "string"},
          "headquarters": {
            "type": "object",
            "additionalProperties": false,
            "required": ["city", "state", "country"],
            "properties": {
              "city": {"type": "string"},
              "state": {"type": "string"},
              "country": {"type": "string"}
            }
          },
          "summary": {"type": "string"},
          "citations": {
            "type": "array",
            "items": {
              "type": "object",
              "additionalProperties": false,
              "required": ["url"],
              "properties": {"url": {"type": "string"}}
            }
          }
        }
      }
    }
  }
}`)

func (s *CompanySearcher) Name() string { return "company_search" }

func (s *CompanySearcher) Search(ctx context.Context, query string, limit int) ([]model.WebCandidate, error) {
	var raw companyResults
	err := completeJSON(ctx, s.provider, llm.CompletionRequest{
		SystemPrompt: searchSystemPrompt,
		UserPrompt:   fmt.Sprintf("Find up to %d healthcare startups or companies matching %q.", limit, query),
		SchemaName:   "company_search",
		Schema:       companySchema,
		Model:        s.model,
	}, &raw)
	if err != nil {
		return nil, err
	}

	out := make([]model.WebCandidate, 0, len(raw.Companies))
	for _, c := range raw.Companies {
		sources := make([]string, 0, len(c.Citations))
		for _, citation := range c.Citations {
			sources = append(sources, citation.URL)
		}
		out = append(out, model.WebCandidate{
			Name:                c.CompanyName,
			Website:             c.URL,
			HeadquartersCity:    c.Headquarters.City,
			HeadquartersState:   c.Headquarters.State,
			HeadquartersCountry: c.Headquarters.Country,
			Summary:             c.Summary,
			SourceURLs:          sources,
		})
	}
	return out, nil
}

// CoInvestorSearcher finds venture funds and other investors
type CoInvestorSearcher struct {
	provider llm.Provider
	model    string
}

// NewCoInvestorSearcher creates a co-investor searcher backed by provider
func NewCoInvestorSearcher(provider llm.Provider, model string) *CoInvestorSearcher {
	return &CoInvestorSearcher{provider: provider, model: model}
}

type coInvestorResults struct {
	Investors []struct {
		Firm     string   `json:"firm"`
		Homepage string   `json:"homepage"`
		Location string   `json:"location"`
		Thesis   string   `json:"thesis"`
		Links    []string `json:"links"`
	} `json:"investors"`
}

var coInvestorSchema = json.RawMessage(`{
  "type": "object",
  "additionalProperties": false,
  "required": ["investors"],
  "properties": {
    "investors": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["firm", "homepage", "location", "thesis", "links"],
        "properties": {
          "firm": {"type": "string"},
          "homepage": {"type": "string"},
          "location": {"type": "string", "description": "City, State, Country"},
          "thesis": {"type": "string"},
          "links": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`)

func (s *CoInvestorSearcher) Name() string { return "co_investor_search" }

func (s *CoInvestorSearcher) Search(ctx context.Context, query string, limit int) ([]model.WebCandidate, error) {
	var raw coInvestorResults
	err := completeJSON(ctx, s.provider, llm.CompletionRequest{
		SystemPrompt: searchSystemPrompt,
		UserPrompt:   fmt.Sprintf("Find up to %d venture capital firms, funds or corporate investors matching %q.", limit, query),
		SchemaName:   "co_investor_search",
		Schema:       coInvestorSchema,
		Model:        s.model,
	}, &raw)
	if err != nil {
		return nil, err
	}

	out := make([]model.WebCandidate, 0, len(raw.Investors))
	for _, inv := range raw.Investors {
		city, state, country := splitLocation(inv.Location)
		out = append(out, model.WebCandidate{
			Name:                inv.Firm,
			Website:             inv.Homepage,
			HeadquartersCity:    city,
			HeadquartersState:   state,
			HeadquartersCountry: country,
			Summary:             inv.Thesis,
			SourceURLs:          inv.Links,
		})
	}
	return out, nil
}

// splitLocation splits "City, State, Country". Two parts are read as city
// and state, one part as a city.
func splitLocation(location string) (city, state, country string) {
	var parts []string
	for _, p := range strings.Split(location, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	switch len(parts) {
	case 0:
	case 1:
		city = parts[0]
	case 2:
		city, state = parts[0], parts[1]
	default:
		city, state, country = parts[0], parts[1], strings.Join(parts[2:], ", ")
	}
	return city, state, country
}
