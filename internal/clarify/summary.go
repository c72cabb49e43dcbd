package clarify

import (
	"fmt"
	"strings"

	"github.com/ppiankov/dealdesk/internal/model"
)

// BuildClarificationSummary renders the running summary shown with a
// CLARIFICATION plan: what was resolved automatically and what is pending.
func BuildClarificationSummary(actions []model.Action, questions []string) string {
	var resolved, pending []string
	for _, action := range actions {
		if !action.Base().Include {
			continue
		}
		if line, ok := resolvedLine(action); ok {
			resolved = append(resolved, line)
		}
		if _, ok := BuildActionClarificationQuestion(action); ok {
			pending = append(pending, pendingLine(action))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d question(s) need an answer before this plan can run.", len(questions))
	if len(resolved) > 0 {
		b.WriteString("\nResolved automatically:")
		for _, line := range resolved {
			b.WriteString("\n- " + line)
		}
	}
	if len(pending) > 0 {
		b.WriteString("\nPending:")
		for _, line := range pending {
			b.WriteString("\n- " + line)
		}
	}
	return b.String()
}

func resolvedLine(action model.Action) (string, bool) {
	switch a := action.(type) {
	case model.CreateEntityAction:
		if a.Selection.Mode != model.SelectUseExisting {
			return "", false
		}
		for _, m := range a.ExistingMatches {
			if m.ID == a.Selection.ExistingID {
				return fmt.Sprintf("%s %q uses existing record %q (%s)", a.EntityType.Label(), a.Draft.Name, m.Name, percent(m.Confidence)), true
			}
		}
		return fmt.Sprintf("%s %q uses existing record %s", a.EntityType.Label(), a.Draft.Name, a.Selection.ExistingID), true
	case model.UpdateEntityAction:
		if a.SelectedTargetID == "" {
			return "", false
		}
		return fmt.Sprintf("update of %s %q targets an existing record", a.EntityType.Label(), a.TargetName), true
	case model.AddContactAction:
		if a.SelectedParentID == "" {
			return "", false
		}
		return fmt.Sprintf("contact %s attaches to existing %s %q", a.Contact.Name, a.ParentType.Label(), a.ParentName), true
	case model.LinkCompanyCoInvestorAction:
		if a.SelectedCompanyID == "" || a.SelectedCoInvestorID == "" {
			return "", false
		}
		return fmt.Sprintf("link %q to %q uses existing records", a.CompanyName, a.CoInvestorName), true
	}
	return "", false
}

func pendingLine(action model.Action) string {
	switch a := action.(type) {
	case model.CreateEntityAction:
		return fmt.Sprintf("create %s %q (%d existing match(es), %d web candidate(s))",
			a.EntityType.Label(), a.Draft.Name, len(a.ExistingMatches), len(a.WebCandidates))
	case model.UpdateEntityAction:
		return fmt.Sprintf("update %s %q", a.EntityType.Label(), a.TargetName)
	case model.AddContactAction:
		return fmt.Sprintf("add contact %s to %s %q", a.Contact.Name, a.ParentType.Label(), a.ParentName)
	case model.LinkCompanyCoInvestorAction:
		return fmt.Sprintf("link company %q with co-investor %q", a.CompanyName, a.CoInvestorName)
	}
	return string(action.Kind())
}
