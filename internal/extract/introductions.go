package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ppiankov/dealdesk/internal/model"
	"github.com/ppiankov/dealdesk/internal/normalize"
)

// heuristicConfidence is assigned to actions synthesized from introduction language
const heuristicConfidence = 0.75

var investorVocabulary = map[string]struct{}{
	"fund": {}, "funds": {}, "ventures": {}, "venture": {}, "capital": {}, "vc": {}, "vcs": {},
	"investor": {}, "investors": {}, "investments": {}, "partners": {}, "holdings": {},
	"equity": {}, "angel": {}, "angels": {},
}

var healthSystemVocabulary = map[string]struct{}{
	"health": {}, "healthcare": {}, "hospital": {}, "hospitals": {}, "medical": {},
	"clinic": {}, "clinics": {}, "medicine": {}, "physicians": {}, "healthsystem": {},
}

var (
	// "<introducer> introduced us to <company>"
	introducedToPattern = regexp.MustCompile(`(?i)^(.*?)\b(?:introduced|intro'd|introed|referred|connected)\s+(?:us|me|the\s+team|our\s+team|the\s+firm)\s+(?:to|with)\s+(.+)$`)
	// "<company> was introduced (to us) by <introducer>"
	introducedByPattern = regexp.MustCompile(`(?i)^(.+?)\s+(?:was|were|got)\s+(?:introduced|referred)\s+(?:to\s+(?:us|me|the\s+team)\s+)?(?:by|via|through)\s+(.+)$`)
	// "<introducer> intro to <company>"
	introToPattern = regexp.MustCompile(`(?i)^(.*?)\s+intro(?:'d)?\s+to\s+(.+)$`)
	// chain separator inside the introduced segment
	chainSeparator = regexp.MustCompile(`(?i)\s+(?:intro(?:'d|duced)?(?:\s+us)?\s+to|who\s+introduced\s+us\s+to|who\s+referred\s+us\s+to)\s+`)
	// explicit lead source statements
	leadSourcePattern = regexp.MustCompile(`(?i)\blead\s+source\s+(?:is|was|=|:)\s+(.+)$`)
	// text that ends a name inside a clause
	clauseTerminator = regexp.MustCompile(`(?i)(?:,|\(|\s+-\s+|\s+(?:and|who|which|that|for|about|because|since|last|this|next|on|in)\s+)`)
)

// Introduction is one introduction found in a narrative
type Introduction struct {
	Introducer     string
	IntroducerType model.EntityType
	Company        string
	// LeadSourceHealthSystem is the health system the company came from, if any
	LeadSourceHealthSystem string
	Sentence               string
}

// InferIntroducerType classifies an introducer by name. Health-system
// vocabulary wins only when investor vocabulary is absent.
func InferIntroducerType(name string) model.EntityType {
	var investor, health bool
	for _, token := range normalize.Tokens(name) {
		if _, ok := investorVocabulary[token]; ok {
			investor = true
		}
		if _, ok := healthSystemVocabulary[token]; ok {
			health = true
		}
	}
	if health && !investor {
		return model.EntityHealthSystem
	}
	return model.EntityCoInvestor
}

// FindIntroductions scans narrative for introduction language
func FindIntroductions(narrative string) []Introduction {
	sentences := splitSentences(narrative)

	var explicitLeadSource string
	for _, s := range sentences {
		if m := leadSourcePattern.FindStringSubmatch(s); m != nil {
			explicitLeadSource = leadSourceName(m[1])
		}
	}

	var intros []Introduction
	for _, sentence := range sentences {
		intro, ok := parseIntroduction(sentence)
		if !ok {
			continue
		}
		if explicitLeadSource != "" {
			intro.LeadSourceHealthSystem = explicitLeadSource
		}
		intros = append(intros, intro)
	}
	return intros
}

func parseIntroduction(sentence string) (Introduction, bool) {
	var introducerText, companyText string
	if m := introducedToPattern.FindStringSubmatch(sentence); m != nil {
		introducerText, companyText = m[1], m[2]
	} else if m := introducedByPattern.FindStringSubmatch(sentence); m != nil {
		companyText, introducerText = m[1], m[2]
		companyText = lastClause(companyText)
	} else if m := introToPattern.FindStringSubmatch(sentence); m != nil {
		introducerText, companyText = m[1], m[2]
	} else {
		return Introduction{}, false
	}

	introducer := normalize.Name(cutClause(lastClause(introducerText)), "")
	chain := chainSeparator.Split(companyText, -1)
	company := normalize.Name(cutClause(chain[len(chain)-1]), model.EntityCompany)
	if introducer == "" || company == "" || normalize.Equal(introducer, company) || isPronoun(introducer) {
		return Introduction{}, false
	}

	intro := Introduction{
		Introducer:     introducer,
		IntroducerType: InferIntroducerType(introducer),
		Company:        company,
		Sentence:       strings.TrimSpace(sentence),
	}
	if intro.IntroducerType == model.EntityHealthSystem {
		intro.LeadSourceHealthSystem = introducer
	}
	// intermediate hops of an "A intro to B intro to C" chain
	for i := len(chain) - 2; i >= 0 && intro.LeadSourceHealthSystem == ""; i-- {
		hop := normalize.Name(cutClause(chain[i]), "")
		if hop != "" && InferIntroducerType(hop) == model.EntityHealthSystem {
			intro.LeadSourceHealthSystem = hop
		}
	}
	return intro, true
}

// ApplyIntroductionHeuristics synthesizes the actions introduction language
// implies and appends them to actions. Duplicates of extracted actions are
// left for the deduplicator to merge.
func ApplyIntroductionHeuristics(narrative string, actions []model.Action) ([]model.Action, []string) {
	intros := FindIntroductions(narrative)
	if len(intros) == 0 {
		return actions, []string{}
	}

	out := make([]model.Action, 0, len(actions)+3*len(intros))
	out = append(out, actions...)
	synthesized := 0
	for _, intro := range intros {
		rationale := fmt.Sprintf("Introduction language: %q", intro.Sentence)

		draft := model.EntityDraft{Name: intro.Company}
		if intro.LeadSourceHealthSystem != "" {
			draft.LeadSourceType = model.LeadSourceHealthSystem
			draft.LeadSourceHealthSystemName = intro.LeadSourceHealthSystem
		}
		out = append(out, newCreate(model.EntityCompany, draft, rationale))
		synthesized++

		if intro.IntroducerType != model.EntityCoInvestor {
			continue
		}
		out = append(out, newCreate(model.EntityCoInvestor, model.EntityDraft{Name: intro.Introducer}, rationale))
		out = append(out, model.LinkCompanyCoInvestorAction{
			ActionBase:        newBase(rationale),
			CompanyName:       intro.Company,
			CoInvestorName:    intro.Introducer,
			RelationshipType:  model.RelationshipInvestor,
			Notes:             IntroductionNote(intro.Introducer, intro.Company),
			CompanyMatches:    []model.EntityMatch{},
			CoInvestorMatches: []model.EntityMatch{},
		})
		synthesized += 2
	}

	warnings := []string{fmt.Sprintf("Inferred %d action(s) from introduction language", synthesized)}
	return out, warnings
}

// IntroductionNote is the link note recorded for an introduction
func IntroductionNote(introducer, company string) string {
	return fmt.Sprintf("%s introduced the team to %s.", introducer, company)
}

var introducerInNote = regexp.MustCompile(`(?i)^\s*(.+?)\s+(?:introduced|intro'd|referred|connected)\b`)

// IntroducerFromText returns the introducer named in text containing
// introduction language, or ""
func IntroducerFromText(text string) string {
	for _, sentence := range splitSentences(text) {
		if intro, ok := parseIntroduction(sentence); ok {
			return intro.Introducer
		}
		if m := introducerInNote.FindStringSubmatch(sentence); m != nil {
			if name := normalize.Name(lastClause(m[1]), ""); name != "" && !isPronoun(name) {
				return name
			}
		}
	}
	return ""
}

// HasIntroductionLanguage reports whether text mentions an introduction
func HasIntroductionLanguage(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range []string{"introduc", "intro'd", "intro to", "referred"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func newBase(rationale string) model.ActionBase {
	return model.ActionBase{
		ID:         uuid.NewString(),
		Include:    true,
		Rationale:  rationale,
		Confidence: heuristicConfidence,
		Issues:     []string{},
	}
}

func newCreate(entityType model.EntityType, draft model.EntityDraft, rationale string) model.CreateEntityAction {
	return model.CreateEntityAction{
		ActionBase:      newBase(rationale),
		EntityType:      entityType,
		Draft:           draft,
		ExistingMatches: []model.EntityMatch{},
		WebCandidates:   []model.WebCandidate{},
		Selection:       model.CreateManual(),
	}
}

func leadSourceName(text string) string {
	name := cutClause(text)
	for _, suffix := range []string{" health system", " hospital system"} {
		if len(name) > len(suffix) && strings.EqualFold(name[len(name)-len(suffix):], suffix) {
			name = name[:len(name)-len(suffix)]
		}
	}
	return normalize.Name(name, model.EntityHealthSystem)
}

// lastClause keeps the text after the last comma, colon or opening quote,
// and drops leading connectives such as "and" or "then"
func lastClause(s string) string {
	if i := strings.LastIndexAny(s, ",:(\"“"); i >= 0 {
		_, size := utf8.DecodeRuneInString(s[i:])
		s = s[i+size:]
	}
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"and ", "then ", "so ", "also ", "today ", "yesterday "} {
		if len(s) > len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
			s = strings.TrimSpace(s[len(prefix):])
		}
	}
	return s
}

// cutClause keeps the text before the first clause terminator
func cutClause(s string) string {
	if loc := clauseTerminator.FindStringIndex(s); loc != nil && loc[0] > 0 {
		s = s[:loc[0]]
	}
	return strings.TrimSpace(s)
}

func isPronoun(s string) bool {
	switch strings.ToLower(s) {
	case "he", "she", "they", "we", "i", "it", "someone", "somebody", "who":
		return true
	}
	return false
}

// splitSentences splits on sentence punctuation followed by whitespace, and
// on newlines and semicolons. Single-letter abbreviations do not end a sentence.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, strings.TrimRight(s, ".!? "))
		}
		current.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		switch r {
		case '\n', ';':
			flush()
			continue
		}
		current.WriteRune(r)
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && runes[i+1] != ' ' && runes[i+1] != '\t' {
			continue
		}
		if r == '.' && endsWithAbbreviation(current.String()) {
			continue
		}
		flush()
	}
	flush()
	return sentences
}

func endsWithAbbreviation(s string) bool {
	s = strings.TrimSuffix(s, ".")
	i := strings.LastIndexAny(s, " \t")
	word := s[i+1:]
	switch strings.ToLower(word) {
	case "inc", "co", "corp", "ltd", "st", "dr", "mr", "ms", "mrs", "jr", "sr", "llc":
		return true
	}
	return len([]rune(word)) == 1
}
