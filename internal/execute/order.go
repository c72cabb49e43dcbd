package execute

import (
	"github.com/ppiankov/dealdesk/internal/hydrate"
	"github.com/ppiankov/dealdesk/internal/model"
)

// GetDependencyActionIDs returns the same-batch CREATE_ENTITY actions an
// action needs to have executed first. A reference that resolved to an
// existing record never creates a dependency.
func GetDependencyActionIDs(action model.Action) []string {
	var deps []string
	switch a := action.(type) {
	case model.UpdateEntityAction:
		if a.SelectedTargetID == "" && a.LinkedCreateActionID != "" {
			deps = append(deps, a.LinkedCreateActionID)
		}
	case model.AddContactAction:
		if a.SelectedParentID == "" && a.LinkedCreateActionID != "" {
			deps = append(deps, a.LinkedCreateActionID)
		}
	case model.LinkCompanyCoInvestorAction:
		if a.SelectedCompanyID == "" && a.CompanyCreateActionID != "" {
			deps = append(deps, a.CompanyCreateActionID)
		}
		if a.SelectedCoInvestorID == "" && a.CoInvestorCreateActionID != "" {
			deps = append(deps, a.CoInvestorCreateActionID)
		}
	}
	return deps
}

// orderingHints are soft edges: a company whose lead source is created in
// the same batch runs after it, but does not fail when it fails.
func orderingHints(action model.Action, lookup hydrate.CreateLookup) []string {
	var hints []string
	switch a := action.(type) {
	case model.CreateEntityAction:
		if a.EntityType == model.EntityCompany && a.Draft.LeadSourceHealthSystemID == "" && a.Draft.LeadSourceHealthSystemName != "" {
			if id, ok := lookup.Find(model.EntityHealthSystem, a.Draft.LeadSourceHealthSystemName); ok && id != a.ID {
				hints = append(hints, id)
			}
		}
	case model.UpdateEntityAction:
		if a.Patch.LeadSourceHealthSystemID == "" && a.Patch.LeadSourceHealthSystemName != "" {
			if id, ok := lookup.Find(model.EntityHealthSystem, a.Patch.LeadSourceHealthSystemName); ok {
				hints = append(hints, id)
			}
		}
	}
	return hints
}

// Order sorts actions topologically with Kahn's algorithm. Among ready
// actions the lowest original index runs first, so unrelated actions keep
// their authored order. Edges to actions outside the list are ignored here
// and reported when the action runs. Actions stuck on a cycle are returned
// separately in their original order.
func Order(actions []model.Action, lookup hydrate.CreateLookup) (ordered, cyclic []model.Action) {
	index := make(map[string]int, len(actions))
	for i, a := range actions {
		index[a.Base().ID] = i
	}

	inDegree := make([]int, len(actions))
	dependents := make([][]int, len(actions))
	for i, a := range actions {
		seen := make(map[int]struct{})
		edges := append(GetDependencyActionIDs(a), orderingHints(a, lookup)...)
		for _, dep := range edges {
			j, ok := index[dep]
			if !ok || j == i {
				continue
			}
			if _, dup := seen[j]; dup {
				continue
			}
			seen[j] = struct{}{}
			inDegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	done := make([]bool, len(actions))
	for {
		next := -1
		for i := range actions {
			if !done[i] && inDegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			break
		}
		done[next] = true
		ordered = append(ordered, actions[next])
		for _, d := range dependents[next] {
			inDegree[d]--
		}
	}

	for i, a := range actions {
		if !done[i] {
			cyclic = append(cyclic, a)
		}
	}
	return ordered, cyclic
}
