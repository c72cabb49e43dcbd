package extract

import (
	"strings"

	"github.com/ppiankov/dealdesk/internal/model"
	"github.com/ppiankov/dealdesk/internal/normalize"
)

// DedupeKey identifies the logical entity, update or link an action targets
func DedupeKey(action model.Action) string {
	switch a := action.(type) {
	case model.CreateEntityAction:
		return "create|" + string(a.EntityType) + "|" + normalize.Key(a.Draft.Name, a.EntityType)
	case model.UpdateEntityAction:
		return "update|" + string(a.EntityType) + "|" + normalize.Key(a.TargetName, a.EntityType)
	case model.AddContactAction:
		return "contact|" + string(a.ParentType) + "|" + normalize.Key(a.ParentName, a.ParentType) + "|" + normalize.ForLookup(a.Contact.Name)
	case model.LinkCompanyCoInvestorAction:
		return "link|" + normalize.Key(a.CompanyName, model.EntityCompany) + "|" +
			normalize.Key(a.CoInvestorName, model.EntityCoInvestor) + "|" + string(a.RelationshipType)
	}
	return ""
}

// DedupeActions merges actions sharing a DedupeKey into the first of them
// and returns the merged list and how many actions were folded away. Earlier
// actions win conflicting fields; later actions fill gaps.
func DedupeActions(actions []model.Action) ([]model.Action, int) {
	out := make([]model.Action, 0, len(actions))
	index := make(map[string]int, len(actions))
	merged := 0

	for _, action := range actions {
		key := DedupeKey(action)
		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, action)
			continue
		}
		out[i] = mergeActions(out[i], action)
		merged++
	}
	return out, merged
}

func mergeActions(first, second model.Action) model.Action {
	base := mergeBase(first.Base(), second.Base())

	switch a := first.(type) {
	case model.CreateEntityAction:
		b := second.(model.CreateEntityAction)
		a.Draft = a.Draft.FillFrom(b.Draft)
		if len(a.ExistingMatches) == 0 {
			a.ExistingMatches = b.ExistingMatches
		}
		if len(a.WebCandidates) == 0 {
			a.WebCandidates = b.WebCandidates
		}
		return a.WithBase(base)
	case model.UpdateEntityAction:
		b := second.(model.UpdateEntityAction)
		a.Patch = a.Patch.FillFrom(b.Patch)
		return a.WithBase(base)
	case model.AddContactAction:
		b := second.(model.AddContactAction)
		a.Contact = fillContact(a.Contact, b.Contact)
		if a.RoleType == "" {
			a.RoleType = b.RoleType
		}
		return a.WithBase(base)
	case model.LinkCompanyCoInvestorAction:
		b := second.(model.LinkCompanyCoInvestorAction)
		a.Notes = joinUnique(a.Notes, b.Notes)
		if a.InvestmentAmountUSD == nil && b.InvestmentAmountUSD != nil {
			amount := *b.InvestmentAmountUSD
			a.InvestmentAmountUSD = &amount
		}
		return a.WithBase(base)
	}
	return first
}

func mergeBase(a, b model.ActionBase) model.ActionBase {
	out := a
	out.Include = a.Include || b.Include
	if b.Confidence > out.Confidence {
		out.Confidence = b.Confidence
	}
	out.Rationale = joinUnique(a.Rationale, b.Rationale)
	for _, issue := range b.Issues {
		out = out.AddIssue(issue)
	}
	if out.Issues == nil {
		out.Issues = []string{}
	}
	return out
}

func fillContact(a, b model.Contact) model.Contact {
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&a.Title, b.Title)
	fill(&a.Email, b.Email)
	fill(&a.Phone, b.Phone)
	fill(&a.LinkedInURL, b.LinkedInURL)
	return a
}

// joinUnique appends b to a unless a already contains it
func joinUnique(a, b string) string {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	switch {
	case b == "" || strings.Contains(a, b):
		return a
	case a == "" || strings.Contains(b, a):
		return b
	}
	return a + " " + b
}
