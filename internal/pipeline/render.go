package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/dealdesk/internal/model"
)

// Renderer writes plans and reports as JSON or Markdown files and prints
// short summaries
type Renderer struct {
	out io.Writer
}

// NewRenderer creates a renderer printing summaries to out
func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out}
}

// WriteJSON writes v as indented JSON to path; "-" writes to the output
func (r *Renderer) WriteJSON(v any, path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "render: marshal json")
	}
	return r.write(append(data, '\n'), path)
}

// WriteMarkdown writes rendered Markdown to path; "-" writes to the output
func (r *Renderer) WriteMarkdown(markdown, path string) error {
	return r.write([]byte(markdown), path)
}

func (r *Renderer) write(data []byte, path string) error {
	if path == "-" {
		_, err := r.out.Write(data)
		return eris.Wrap(err, "render: write output")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "render: write %s", path)
	}
	return nil
}

// PrintPlanSummary prints the phase, summary and warnings of a plan
func (r *Renderer) PrintPlanSummary(p model.NarrativePlan) {
	fmt.Fprintf(r.out, "\nPhase: %s (%d action(s))\n", p.Phase, len(p.Actions))
	if p.Summary != "" {
		fmt.Fprintf(r.out, "%s\n", p.Summary)
	}
	label := "Warnings"
	if p.Phase == model.PhaseClarification {
		label = "Questions"
	}
	if len(p.Warnings) > 0 {
		fmt.Fprintf(r.out, "\n%s:\n", label)
		for i, w := range p.Warnings {
			fmt.Fprintf(r.out, "  %d. %s\n", i+1, w)
		}
	}
	fmt.Fprintln(r.out)
}

// PrintReportSummary prints one line per result and the totals
func (r *Renderer) PrintReportSummary(report model.ExecutionReport) {
	fmt.Fprintln(r.out)
	for _, res := range report.Results {
		fmt.Fprintf(r.out, "  %s %-26s %s  %s\n", statusMark(res.Status), res.Kind, res.ActionID, res.Message)
	}
	fmt.Fprintf(r.out, "\n%s\n\n", report.Summary)
}

func statusMark(s model.ExecutionStatus) string {
	switch s {
	case model.StatusExecuted:
		return "✓"
	case model.StatusFailed:
		return "✗"
	default:
		return "-"
	}
}

// PlanMarkdown renders a plan for human review
func PlanMarkdown(p model.NarrativePlan) string {
	var b strings.Builder
	b.WriteString("# Narrative Plan\n\n")
	fmt.Fprintf(&b, "**Phase:** %s\n\n", p.Phase)
	if p.Narrative != "" {
		b.WriteString("## Narrative\n\n")
		for _, line := range strings.Split(p.Narrative, "\n") {
			b.WriteString("> " + line + "\n")
		}
		b.WriteString("\n")
	}
	if p.Summary != "" {
		b.WriteString("## Summary\n\n" + p.Summary + "\n\n")
	}

	if len(p.Warnings) > 0 {
		if p.Phase == model.PhaseClarification {
			b.WriteString("## Questions\n\n")
		} else {
			b.WriteString("## Warnings\n\n")
		}
		for _, w := range p.Warnings {
			b.WriteString("- " + w + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("## Actions\n\n")
	if len(p.Actions) == 0 {
		b.WriteString("_No actions._\n")
	}
	for i, action := range p.Actions {
		writeActionMarkdown(&b, i+1, action)
	}
	return b.String()
}

func writeActionMarkdown(b *strings.Builder, n int, action model.Action) {
	base := action.Base()
	include := "included"
	if !base.Include {
		include = "excluded"
	}
	fmt.Fprintf(b, "### %d. %s (%s, %.0f%% confidence)\n\n", n, action.Kind(), include, base.Confidence*100)
	fmt.Fprintf(b, "- ID: `%s`\n", base.ID)

	switch a := action.(type) {
	case model.CreateEntityAction:
		fmt.Fprintf(b, "- Create %s **%s**\n", a.EntityType.Label(), a.Draft.Name)
		fmt.Fprintf(b, "- Selection: %s", a.Selection.Mode)
		switch {
		case a.Selection.ExistingID != "":
			fmt.Fprintf(b, " `%s`", a.Selection.ExistingID)
		case a.Selection.WebCandidateIndex != nil:
			fmt.Fprintf(b, " #%d", *a.Selection.WebCandidateIndex+1)
		}
		b.WriteString("\n")
		if a.Draft.LeadSourceHealthSystemName != "" {
			fmt.Fprintf(b, "- Lead source: %s\n", a.Draft.LeadSourceHealthSystemName)
		}
		writeMatches(b, "Existing matches", a.ExistingMatches)
		if len(a.WebCandidates) > 0 {
			b.WriteString("- Web candidates:\n")
			for i, c := range a.WebCandidates {
				fmt.Fprintf(b, "  %d. %s %s\n", i+1, c.Name, c.Website)
			}
		}
	case model.UpdateEntityAction:
		fmt.Fprintf(b, "- Update %s **%s**\n", a.EntityType.Label(), a.TargetName)
		writeMatches(b, "Target matches", a.TargetMatches)
	case model.AddContactAction:
		fmt.Fprintf(b, "- Add %s (%s) to %s **%s**\n", a.Contact.Name, a.RoleType, a.ParentType.Label(), a.ParentName)
		writeMatches(b, "Parent matches", a.ParentMatches)
	case model.LinkCompanyCoInvestorAction:
		fmt.Fprintf(b, "- Link company **%s** with co-investor **%s** (%s)\n", a.CompanyName, a.CoInvestorName, a.RelationshipType)
		if a.InvestmentAmountUSD != nil {
			fmt.Fprintf(b, "- Amount: $%.0f\n", *a.InvestmentAmountUSD)
		}
		if a.Notes != "" {
			fmt.Fprintf(b, "- Notes: %s\n", a.Notes)
		}
	}

	if base.Rationale != "" {
		fmt.Fprintf(b, "- Rationale: %s\n", base.Rationale)
	}
	for _, issue := range base.Issues {
		fmt.Fprintf(b, "- ⚠ %s\n", issue)
	}
	b.WriteString("\n")
}

func writeMatches(b *strings.Builder, label string, matches []model.EntityMatch) {
	if len(matches) == 0 {
		return
	}
	fmt.Fprintf(b, "- %s:\n", label)
	for _, m := range matches {
		fmt.Fprintf(b, "  - %s (%.0f%%, %s)\n", m.Name, m.Confidence*100, m.Reason)
	}
}

// ReportMarkdown renders an execution report
func ReportMarkdown(report model.ExecutionReport) string {
	var b strings.Builder
	b.WriteString("# Execution Report\n\n")
	b.WriteString(report.Summary + "\n\n")
	b.WriteString("| Status | Kind | Action | Message |\n")
	b.WriteString("|--------|------|--------|---------|\n")
	for _, r := range report.Results {
		fmt.Fprintf(&b, "| %s | %s | `%s` | %s |\n", r.Status, r.Kind, r.ActionID, strings.ReplaceAll(r.Message, "|", "\\|"))
	}
	if len(report.CreatedEntities) > 0 {
		b.WriteString("\n## Entities\n\n")
		for _, ref := range report.CreatedEntities {
			verb := "used"
			if ref.Created {
				verb = "created"
			}
			fmt.Fprintf(&b, "- %s %s **%s** `%s`\n", verb, ref.EntityType.Label(), ref.Name, ref.ID)
		}
	}
	return b.String()
}
