// Package match finds existing store records that plausibly correspond to a
// name mentioned in a narrative.
package match

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/dealdesk/internal/model"
	"github.com/ppiankov/dealdesk/internal/normalize"
)

// AutoMatchConfidenceThreshold is the confidence at or above which an
// existing record is used without asking a human.
const AutoMatchConfidenceThreshold = 0.80

// MaxMatches caps the candidates returned per lookup
const MaxMatches = 8

// Scores assigned by ScoreNameMatch
const (
	ScoreExact          = 0.98
	ScorePrefix         = 0.86
	ScoreSubstring      = 0.80
	ScoreStrongOverlap  = 0.74
	ScorePartialOverlap = 0.64
	ScoreWeak           = 0.52
)

// storeQueryLimit bounds rows fetched per store query before scoring
const storeQueryLimit = 50

// maxTokenQueries bounds the extra per-token store queries
const maxTokenQueries = 3

// Finder is the read side of the entity store the matcher needs
type Finder interface {
	FindEntities(ctx context.Context, entityType model.EntityType, nameFilter string, limit int) ([]model.EntityRecord, error)
}

// Matcher scores store records against a query name
type Matcher struct {
	finder Finder
}

// NewMatcher creates a matcher over the given store
func NewMatcher(finder Finder) *Matcher {
	return &Matcher{finder: finder}
}

// FetchEntityMatches returns up to MaxMatches existing records for name,
// sorted by descending confidence. No match is not an error.
func (m *Matcher) FetchEntityMatches(ctx context.Context, entityType model.EntityType, name string) ([]model.EntityMatch, error) {
	raw := strings.Join(strings.Fields(name), " ")
	cleaned := normalize.Name(name, entityType)
	if cleaned == "" || !entityType.Valid() {
		return []model.EntityMatch{}, nil
	}

	queries := []string{raw}
	if cleaned != raw {
		queries = append(queries, cleaned)
	}
	queries = append(queries, significantTokens(cleaned)...)

	byID := make(map[string]model.EntityMatch)
	for _, q := range queries {
		records, err := m.finder.FindEntities(ctx, entityType, q, storeQueryLimit)
		if err != nil {
			return nil, eris.Wrapf(err, "match: find %s %q", entityType, q)
		}
		for _, rec := range records {
			confidence, reason := bestScore(rec.Name, raw, cleaned)
			if prev, ok := byID[rec.ID]; ok && prev.Confidence >= confidence {
				continue
			}
			byID[rec.ID] = matchFromRecord(rec, confidence, reason)
		}
	}

	matches := make([]model.EntityMatch, 0, len(byID))
	for _, match := range byID {
		matches = append(matches, match)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		if matches[i].Name != matches[j].Name {
			return matches[i].Name < matches[j].Name
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > MaxMatches {
		matches = matches[:MaxMatches]
	}
	return matches, nil
}

// ScoreNameMatch scores how well candidate matches query
func ScoreNameMatch(query, candidate string) (float64, string) {
	q := normalize.ForLookup(query)
	c := normalize.ForLookup(candidate)
	if q == "" || c == "" {
		return 0, "empty name"
	}

	switch {
	case q == c:
		return ScoreExact, "Exact name match"
	case strings.HasPrefix(c, q) || strings.HasPrefix(q, c):
		return ScorePrefix, "Name prefix match"
	case strings.Contains(c, q) || strings.Contains(q, c):
		return ScoreSubstring, "Name contains query"
	}

	ratio := tokenOverlap(strings.Fields(q), strings.Fields(c))
	switch {
	case ratio >= 0.75:
		return ScoreStrongOverlap, "Strong token overlap"
	case ratio >= 0.5:
		return ScorePartialOverlap, "Partial token overlap"
	default:
		return ScoreWeak, "Weak name similarity"
	}
}

// IsAutoMatch reports whether confidence clears the auto-match threshold
func IsAutoMatch(confidence float64) bool {
	return confidence >= AutoMatchConfidenceThreshold
}

// AutoMatch returns the top match when it clears the threshold
func AutoMatch(matches []model.EntityMatch) (model.EntityMatch, bool) {
	top, ok := model.TopMatch(matches)
	if !ok || !IsAutoMatch(top.Confidence) {
		return model.EntityMatch{}, false
	}
	return top, true
}

func bestScore(candidate string, queries ...string) (float64, string) {
	best, reason := 0.0, ""
	for _, q := range queries {
		score, why := ScoreNameMatch(q, candidate)
		if score > best {
			best, reason = score, why
		}
	}
	return best, reason
}

func tokenOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(b))
	for _, t := range b {
		set[t] = struct{}{}
	}
	shared := 0
	seen := make(map[string]struct{}, len(a))
	for _, t := range a {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := set[t]; ok {
			shared++
		}
	}
	denom := len(seen)
	if len(set) > denom {
		denom = len(set)
	}
	return float64(shared) / float64(denom)
}

// stopTokens are too common in organisation names to be useful store filters
var stopTokens = map[string]struct{}{
	"the": {}, "and": {}, "inc": {}, "llc": {}, "ltd": {}, "corp": {}, "co": {},
	"health": {}, "healthcare": {}, "system": {}, "systems": {}, "group": {},
	"capital": {}, "ventures": {}, "partners": {}, "fund": {}, "medical": {},
	"center": {}, "hospital": {}, "care": {}, "of": {},
}

func significantTokens(name string) []string {
	tokens := normalize.Tokens(name)
	if len(tokens) < 2 {
		return nil
	}
	var out []string
	for _, t := range tokens {
		if len(t) < 3 {
			continue
		}
		if _, stop := stopTokens[t]; stop {
			continue
		}
		out = append(out, t)
		if len(out) == maxTokenQueries {
			break
		}
	}
	return out
}

func matchFromRecord(rec model.EntityRecord, confidence float64, reason string) model.EntityMatch {
	return model.EntityMatch{
		ID:                  rec.ID,
		EntityType:          rec.EntityType,
		Name:                rec.Name,
		Website:             rec.Website,
		HeadquartersCity:    rec.HeadquartersCity,
		HeadquartersState:   rec.HeadquartersState,
		HeadquartersCountry: rec.HeadquartersCountry,
		Confidence:          confidence,
		Reason:              reason,
	}
}
