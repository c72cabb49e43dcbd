// Package normalize canonicalizes free-text entity names taken from
// narratives and LLM output.
package normalize

import (
	"strings"
	"unicode"

	"github.com/ppiankov/dealdesk/internal/model"
)

// trimChars are stripped from both ends of a name
const trimChars = " \t\r\n\"'`“”‘’«».,;:!?()[]{}<>*_-–—/\\|~#"

var commonFillers = []string{
	"an organization called",
	"an organization named",
	"an org called",
	"someone called",
	"someone named",
	"something called",
	"one called",
	"called",
	"named",
}

var typeFillers = map[model.EntityType][]string{
	model.EntityCompany: {
		"a company called",
		"a company named",
		"the company called",
		"the company named",
		"company called",
		"company named",
		"a startup called",
		"a startup named",
		"the startup called",
		"the startup named",
		"startup called",
		"startup named",
		"the company",
		"the startup",
	},
	model.EntityCoInvestor: {
		"a co-investor called",
		"a co-investor named",
		"co-investor called",
		"co-investor named",
		"a coinvestor named",
		"coinvestor named",
		"an investor called",
		"an investor named",
		"investor called",
		"investor named",
		"a fund called",
		"a fund named",
		"fund called",
		"fund named",
		"a vc called",
		"a vc named",
		"the co-investor",
		"the investor",
		"the fund",
	},
	model.EntityHealthSystem: {
		"a health system called",
		"a health system named",
		"health system called",
		"health system named",
		"the health system called",
		"the health system named",
		"a hospital called",
		"a hospital named",
		"the hospital called",
		"the hospital named",
		"a health system",
		"the health system",
	},
}

// Name cleans a raw name fragment for display and storage: collapses
// whitespace, strips surrounding punctuation and quotes, and removes filler
// prefixes such as "a company called". An empty entityType applies the
// fillers of every type. Name is idempotent.
func Name(raw string, entityType model.EntityType) string {
	fillers := fillersFor(entityType)
	current := raw
	for {
		next := stripFiller(trim(collapse(current)), fillers)
		if next == current {
			return next
		}
		current = next
	}
}

// ForLookup builds a comparison key: lower case, alphanumerics only, single
// spaces. Keys are never displayed.
func ForLookup(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range strings.ToLower(value) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return collapse(b.String())
}

// Key is ForLookup(Name(raw, entityType))
func Key(raw string, entityType model.EntityType) string {
	return ForLookup(Name(raw, entityType))
}

// Tokens splits a lookup key into words
func Tokens(value string) []string {
	return strings.Fields(ForLookup(value))
}

// Equal reports whether two names are the same after lookup normalization
func Equal(a, b string) bool {
	return ForLookup(a) == ForLookup(b)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func trim(s string) string {
	return strings.Trim(s, trimChars)
}

func stripFiller(s string, fillers []string) string {
	for _, filler := range fillers {
		if len(s) <= len(filler) || s[len(filler)] != ' ' {
			continue
		}
		if !strings.EqualFold(s[:len(filler)], filler) {
			continue
		}
		rest := strings.TrimSpace(s[len(filler):])
		if trim(rest) == "" {
			continue
		}
		return rest
	}
	return s
}

func fillersFor(entityType model.EntityType) []string {
	var out []string
	if entityType.Valid() {
		out = append(out, typeFillers[entityType]...)
	} else {
		for _, t := range model.EntityTypes {
			out = append(out, typeFillers[t]...)
		}
	}
	return append(out, commonFillers...)
}
