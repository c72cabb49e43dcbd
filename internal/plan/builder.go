// Package plan assembles the NarrativePlan returned for one narrative turn.
package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/dealdesk/internal/clarify"
	"github.com/ppiankov/dealdesk/internal/model"
	"github.com/ppiankov/dealdesk/internal/normalize"
)

// NothingActionableWarning is the PLAN warning for a turn with no actions
const NothingActionableWarning = "Nothing actionable was found in the narrative."

// Input is everything the builder needs from earlier stages
type Input struct {
	Narrative   string
	ModelDigest string
	// Summary is the extractor's own summary, possibly empty
	Summary  string
	Actions  []model.Action
	Warnings []string
	Decision clarify.Decision
}

// Build assembles the plan. In CLARIFICATION the warnings are the question
// queue. In PLAN they are the cleaned operational warnings with every
// question-style warning removed.
func Build(in Input) model.NarrativePlan {
	actions := in.Actions
	if actions == nil {
		actions = []model.Action{}
	}

	p := model.NarrativePlan{
		Narrative:   in.Narrative,
		Phase:       in.Decision.Phase,
		ModelDigest: in.ModelDigest,
		Actions:     model.ActionList(actions),
	}

	if p.Phase == model.PhaseClarification {
		p.Warnings = CleanWarnings(in.Decision.Questions)
		p.Summary = clarify.BuildClarificationSummary(actions, p.Warnings)
		return p
	}

	p.Phase = model.PhasePlan
	var warnings []string
	for _, w := range in.Warnings {
		if !clarify.IsClarificationWarning(w) {
			warnings = append(warnings, w)
		}
	}
	if len(actions) == 0 {
		warnings = append(warnings, NothingActionableWarning)
	}
	if in.Decision.Bypassed {
		warnings = append(warnings, fmt.Sprintf("Proceeding without answers to %d open question(s); review action issues before executing.", len(in.Decision.Questions)))
	}
	p.Warnings = CleanWarnings(warnings)
	p.Summary = planSummary(in.Summary, actions)
	return p
}

// CleanWarnings trims, drops empty entries and removes duplicates by
// normalized text, keeping first-seen order. It never returns nil.
func CleanWarnings(warnings []string) []string {
	out := []string{}
	seen := make(map[string]struct{})
	for _, w := range warnings {
		w = strings.Join(strings.Fields(w), " ")
		key := normalize.ForLookup(w)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, w)
	}
	return out
}

func planSummary(extracted string, actions []model.Action) string {
	if len(actions) == 0 {
		if s := strings.TrimSpace(extracted); s != "" {
			return s
		}
		return "No actions."
	}

	counts := make(map[model.ActionKind]int)
	included := 0
	for _, a := range actions {
		counts[a.Kind()]++
		if a.Base().Include {
			included++
		}
	}
	kinds := make([]string, 0, len(counts))
	for kind, n := range counts {
		kinds = append(kinds, fmt.Sprintf("%d %s", n, kind))
	}
	sort.Strings(kinds)

	line := fmt.Sprintf("%d action(s) ready, %d included: %s.", len(actions), included, strings.Join(kinds, ", "))
	if s := strings.TrimSpace(extracted); s != "" {
		return s + "\n" + line
	}
	return line
}
