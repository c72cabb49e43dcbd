package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/dealdesk/internal/model"
	"github.com/ppiankov/dealdesk/internal/pipeline"
)

type BuildNarrativePlanInput struct {
	Narrative string `json:"narrative" jsonschema:"free-form analyst notes to turn into CRM actions"`
}

type ExecuteNarrativePlanInput struct {
	Plan  string `json:"plan" jsonschema:"plan JSON exactly as returned by build_narrative_plan, optionally edited"`
	Force bool   `json:"force,omitempty" jsonschema:"execute even when the plan is waiting for clarification"`
}

type SearchEntitiesInput struct {
	Type string `json:"type" jsonschema:"HEALTH_SYSTEM, COMPANY or CO_INVESTOR"`
	Name string `json:"name" jsonschema:"name to match"`
}

type ActionSummaryOutput struct {
	ID         string   `json:"id"`
	Kind       string   `json:"kind"`
	Include    bool     `json:"include"`
	Confidence float64  `json:"confidence"`
	Issues     []string `json:"issues"`
}

type PlanOutput struct {
	Phase    string                `json:"phase"`
	Summary  string                `json:"summary"`
	Warnings []string              `json:"warnings"`
	Actions  []ActionSummaryOutput `json:"actions"`
	Plan     string                `json:"plan"`
}

type ResultOutput struct {
	ActionID string `json:"actionId"`
	Kind     string `json:"kind"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

type EntityRefOutput struct {
	ActionID   string `json:"actionId"`
	EntityType string `json:"entityType"`
	ID         string `json:"id"`
	Name       string `json:"name"`
	Created    bool   `json:"created"`
}

type ReportOutput struct {
	Summary         string            `json:"summary"`
	Executed        int               `json:"executed"`
	Failed          int               `json:"failed"`
	Skipped         int               `json:"skipped"`
	Results         []ResultOutput    `json:"results"`
	CreatedEntities []EntityRefOutput `json:"createdEntities"`
}

type MatchOutput struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Website    string  `json:"website,omitempty"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

type SearchEntitiesOutput struct {
	Matches []MatchOutput `json:"matches"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "build_narrative_plan",
		Description: "Turn narrative text into a reviewable plan of create, update, contact and link actions",
	}, s.handleBuildNarrativePlan)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "execute_narrative_plan",
		Description: "Execute a reviewed plan against the CRM store in dependency order",
	}, s.handleExecuteNarrativePlan)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "search_entities",
		Description: "Find existing health systems, companies or co-investors by name",
	}, s.handleSearchEntities)
}

func (s *Server) handleBuildNarrativePlan(ctx context.Context, req *sdk.CallToolRequest, input BuildNarrativePlanInput) (*sdk.CallToolResult, PlanOutput, error) {
	if strings.TrimSpace(input.Narrative) == "" {
		return nil, PlanOutput{}, fmt.Errorf("narrative is required")
	}
	plan := s.engine.BuildNarrativePlan(ctx, input.Narrative)
	out, err := planOutputFromModel(plan)
	if err != nil {
		return nil, PlanOutput{}, err
	}
	return nil, out, nil
}

func (s *Server) handleExecuteNarrativePlan(ctx context.Context, req *sdk.CallToolRequest, input ExecuteNarrativePlanInput) (*sdk.CallToolResult, ReportOutput, error) {
	if strings.TrimSpace(input.Plan) == "" {
		return nil, ReportOutput{}, fmt.Errorf("plan is required")
	}
	var plan model.NarrativePlan
	if err := json.Unmarshal([]byte(input.Plan), &plan); err != nil {
		return nil, ReportOutput{}, fmt.Errorf("decode plan: %w", err)
	}
	if !input.Force {
		if err := pipeline.CheckExecutable(plan); err != nil {
			return nil, ReportOutput{}, err
		}
	}
	return nil, reportOutputFromModel(s.engine.ExecuteNarrativePlan(ctx, plan)), nil
}

func (s *Server) handleSearchEntities(ctx context.Context, req *sdk.CallToolRequest, input SearchEntitiesInput) (*sdk.CallToolResult, SearchEntitiesOutput, error) {
	entityType := model.EntityType(strings.ToUpper(strings.TrimSpace(input.Type)))
	if !entityType.Valid() {
		return nil, SearchEntitiesOutput{}, fmt.Errorf("type must be one of HEALTH_SYSTEM, COMPANY, CO_INVESTOR")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, SearchEntitiesOutput{}, fmt.Errorf("name is required")
	}
	matches, err := s.matcher.FetchEntityMatches(ctx, entityType, input.Name)
	if err != nil {
		return nil, SearchEntitiesOutput{}, err
	}

	output := make([]MatchOutput, 0, len(matches))
	for _, m := range matches {
		output = append(output, MatchOutput{ID: m.ID, Name: m.Name, Website: m.Website, Confidence: m.Confidence, Reason: m.Reason})
	}
	return nil, SearchEntitiesOutput{Matches: output}, nil
}

func planOutputFromModel(plan model.NarrativePlan) (PlanOutput, error) {
	data, err := json.Marshal(plan)
	if err != nil {
		return PlanOutput{}, fmt.Errorf("encode plan: %w", err)
	}

	out := PlanOutput{
		Phase:    string(plan.Phase),
		Summary:  plan.Summary,
		Warnings: append([]string{}, plan.Warnings...),
		Actions:  make([]ActionSummaryOutput, 0, len(plan.Actions)),
		Plan:     string(data),
	}
	for _, action := range plan.Actions {
		base := action.Base()
		out.Actions = append(out.Actions, ActionSummaryOutput{
			ID:         base.ID,
			Kind:       string(action.Kind()),
			Include:    base.Include,
			Confidence: base.Confidence,
			Issues:     append([]string{}, base.Issues...),
		})
	}
	return out, nil
}

func reportOutputFromModel(report model.ExecutionReport) ReportOutput {
	out := ReportOutput{
		Summary:         report.Summary,
		Executed:        report.Executed,
		Failed:          report.Failed,
		Skipped:         report.Skipped,
		Results:         make([]ResultOutput, 0, len(report.Results)),
		CreatedEntities: make([]EntityRefOutput, 0, len(report.CreatedEntities)),
	}
	for _, r := range report.Results {
		out.Results = append(out.Results, ResultOutput{
			ActionID: r.ActionID,
			Kind:     string(r.Kind),
			Status:   string(r.Status),
			Message:  r.Message,
		})
	}
	for _, ref := range report.CreatedEntities {
		out.CreatedEntities = append(out.CreatedEntities, EntityRefOutput{
			ActionID:   ref.ActionID,
			EntityType: string(ref.EntityType),
			ID:         ref.ID,
			Name:       ref.Name,
			Created:    ref.Created,
		})
	}
	return out
}
