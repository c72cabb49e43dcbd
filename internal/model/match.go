package model

// EntityMatch is a candidate existing record for a name. Matches are
// recomputed on every hydration and never persisted.
type EntityMatch struct {
	ID                  string     `json:"id"`
	EntityType          EntityType `json:"entityType"`
	Name                string     `json:"name"`
	Website             string     `json:"website,omitempty"`
	HeadquartersCity    string     `json:"headquartersCity,omitempty"`
	HeadquartersState   string     `json:"headquartersState,omitempty"`
	HeadquartersCountry string     `json:"headquartersCountry,omitempty"`
	Confidence          float64    `json:"confidence"`
	Reason              string     `json:"reason"`
}

// WebCandidate is a candidate entity found by an external search
type WebCandidate struct {
	Name                string   `json:"name"`
	Website             string   `json:"website"`
	HeadquartersCity    string   `json:"headquartersCity"`
	HeadquartersState   string   `json:"headquartersState"`
	HeadquartersCountry string   `json:"headquartersCountry"`
	Summary             string   `json:"summary"`
	SourceURLs          []string `json:"sourceUrls"`
}

// Fields converts the candidate into a draft field bag
func (c WebCandidate) Fields() EntityFields {
	return EntityFields{
		Name:                c.Name,
		Website:             c.Website,
		HeadquartersCity:    c.HeadquartersCity,
		HeadquartersState:   c.HeadquartersState,
		HeadquartersCountry: c.HeadquartersCountry,
		Description:         c.Summary,
	}
}

// TopMatch returns the highest-confidence match, assuming matches are sorted
func TopMatch(matches []EntityMatch) (EntityMatch, bool) {
	if len(matches) == 0 {
		return EntityMatch{}, false
	}
	return matches[0], true
}
