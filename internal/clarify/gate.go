// Package clarify decides whether a hydrated plan needs a human answer
// before it can be executed, and phrases the questions to ask.
package clarify

import (
	"fmt"
	"strings"

	"github.com/ppiankov/dealdesk/internal/match"
	"github.com/ppiankov/dealdesk/internal/model"
	"github.com/ppiankov/dealdesk/internal/normalize"
)

// maxWebChoices bounds how many web candidates a question lists
const maxWebChoices = 5

// lockPhrases assert that the human wants a plan now. They are compared
// after ForLookup normalization.
var lockPhrases = []string{
	"build execution plan",
	"build the execution plan",
	"requirements confirmed",
	"requirements are confirmed",
	"proceed with plan",
	"proceed with the plan",
	"go ahead and execute",
	"no more questions",
}

// questionPrefixes mark extractor warnings that ask the human something
var questionPrefixes = []string{"please confirm", "do you want", "should i", "which "}

// Decision is the gate outcome for one narrative turn
type Decision struct {
	Phase     model.PlanPhase
	Questions []string
	// Bypassed is set when a lock phrase skipped outstanding questions
	Bypassed bool
}

// Decide runs the gate. A lock phrase forces PLAN. Otherwise any question
// against a non-empty action list forces CLARIFICATION.
func Decide(narrative string, actions []model.Action, extractionWarnings []string) Decision {
	questions := BuildClarificationQuestionQueue(actions, extractionWarnings)
	if HasLockPhrase(narrative) {
		return Decision{Phase: model.PhasePlan, Questions: questions, Bypassed: len(questions) > 0}
	}
	if len(actions) > 0 && len(questions) > 0 {
		return Decision{Phase: model.PhaseClarification, Questions: questions}
	}
	return Decision{Phase: model.PhasePlan, Questions: questions}
}

// HasLockPhrase reports whether narrative explicitly asks to skip clarification
func HasLockPhrase(narrative string) bool {
	text := " " + normalize.ForLookup(narrative) + " "
	for _, phrase := range lockPhrases {
		if strings.Contains(text, " "+phrase+" ") {
			return true
		}
	}
	return false
}

// IsClarificationWarning reports whether an extractor warning reads as a
// question or an explicit confirmation request
func IsClarificationWarning(warning string) bool {
	if strings.Contains(warning, "?") {
		return true
	}
	lower := strings.ToLower(strings.TrimSpace(warning))
	for _, prefix := range questionPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// BuildClarificationQuestionQueue collects at most one question per action,
// then the question-style extractor warnings. The queue is deduplicated by
// normalized text and keeps first-seen order.
func BuildClarificationQuestionQueue(actions []model.Action, extractionWarnings []string) []string {
	queue := []string{}
	seen := make(map[string]struct{})
	push := func(q string) {
		q = strings.TrimSpace(q)
		key := normalize.ForLookup(q)
		if key == "" {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		queue = append(queue, q)
	}

	for _, action := range actions {
		if q, ok := BuildActionClarificationQuestion(action); ok {
			push(q)
		}
	}
	for _, w := range extractionWarnings {
		if IsClarificationWarning(w) {
			push(w)
		}
	}
	return queue
}

// BuildActionClarificationQuestion derives the question a human must answer
// before action can run. Excluded actions never ask.
func BuildActionClarificationQuestion(action model.Action) (string, bool) {
	if action == nil || !action.Base().Include {
		return "", false
	}
	switch a := action.(type) {
	case model.CreateEntityAction:
		return createQuestion(a)
	case model.UpdateEntityAction:
		if a.SelectedTargetID != "" || a.LinkedCreateActionID != "" {
			return "", false
		}
		return unresolvedQuestion(fmt.Sprintf("Which %s should I update for %q?", a.EntityType.Label(), a.TargetName), a.TargetMatches), true
	case model.AddContactAction:
		if a.SelectedParentID != "" || a.LinkedCreateActionID != "" {
			return "", false
		}
		return unresolvedQuestion(fmt.Sprintf("Which %s should %s be added to as a contact (%q)?", a.ParentType.Label(), a.Contact.Name, a.ParentName), a.ParentMatches), true
	case model.LinkCompanyCoInvestorAction:
		return linkQuestion(a)
	}
	return "", false
}

func createQuestion(a model.CreateEntityAction) (string, bool) {
	if a.Selection.Mode != model.SelectUseExisting {
		if top, ok := model.TopMatch(a.ExistingMatches); ok && !match.IsAutoMatch(top.Confidence) {
			return fmt.Sprintf("Is %s %q the existing record %q (%s)? Reply to use it, or confirm a new record.",
				a.EntityType.Label(), a.Draft.Name, top.Name, percent(top.Confidence)), true
		}
		if a.Selection.Mode == model.SelectCreateFromWeb && a.Selection.WebCandidateIndex == nil && len(a.WebCandidates) > 1 {
			return fmt.Sprintf("Which web result should I use for %s %q? %s",
				a.EntityType.Label(), a.Draft.Name, listCandidates(a.WebCandidates)), true
		}
	}
	if a.EntityType == model.EntityCompany && a.Draft.LeadSourceHealthSystemID == "" {
		if top, ok := model.TopMatch(a.LeadSourceMatches); ok {
			return fmt.Sprintf("Is the lead source for %q the health system %q (%s)?",
				a.Draft.Name, top.Name, percent(top.Confidence)), true
		}
	}
	return "", false
}

func linkQuestion(a model.LinkCompanyCoInvestorAction) (string, bool) {
	if a.HealthSystemConflict != nil {
		return fmt.Sprintf("%q matches the existing health system %q. Is it really a co-investor of %q, or should it be the company's lead source?",
			a.CoInvestorName, a.HealthSystemConflict.Name, a.CompanyName), true
	}
	if a.SelectedCompanyID == "" && a.CompanyCreateActionID == "" {
		return unresolvedQuestion(fmt.Sprintf("Which company should %q be linked to (%q)?", a.CoInvestorName, a.CompanyName), a.CompanyMatches), true
	}
	if a.SelectedCoInvestorID == "" && a.CoInvestorCreateActionID == "" {
		return unresolvedQuestion(fmt.Sprintf("Which co-investor should be linked to %q (%q)?", a.CompanyName, a.CoInvestorName), a.CoInvestorMatches), true
	}
	return "", false
}

func unresolvedQuestion(q string, matches []model.EntityMatch) string {
	if top, ok := model.TopMatch(matches); ok {
		return fmt.Sprintf("%s Closest existing record: %q (%s).", q, top.Name, percent(top.Confidence))
	}
	return q + " No existing record matches and the plan does not create one."
}

func listCandidates(candidates []model.WebCandidate) string {
	var parts []string
	for i, c := range candidates {
		if i == maxWebChoices {
			parts = append(parts, fmt.Sprintf("and %d more", len(candidates)-maxWebChoices))
			break
		}
		label := fmt.Sprintf("%d) %s", i+1, c.Name)
		if c.Website != "" {
			label += " (" + c.Website + ")"
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, "; ")
}

func percent(confidence float64) string {
	return fmt.Sprintf("%.0f%% match", confidence*100)
}
