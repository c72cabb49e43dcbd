package store

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/ppiankov/dealdesk/internal/model"
	"github.com/ppiankov/dealdesk/internal/normalize"
)

// DefaultLimit bounds list queries that pass a non-positive limit
const DefaultLimit = 50

// Attributes holds the entity fields kept in the JSON attributes column
type Attributes struct {
	InvestmentFocus  string `json:"investmentFocus,omitempty"`
	IsLimitedPartner bool   `json:"isLimitedPartner,omitempty"`
	IsAllianceMember bool   `json:"isAllianceMember,omitempty"`
}

// EncodeAttributes extracts and marshals the attribute fields of r
func EncodeAttributes(r model.EntityRecord) ([]byte, error) {
	data, err := json.Marshal(Attributes{
		InvestmentFocus:  r.InvestmentFocus,
		IsLimitedPartner: r.IsLimitedPartner,
		IsAllianceMember: r.IsAllianceMember,
	})
	return data, eris.Wrap(err, "store: encode attributes")
}

// DecodeAttributes copies stored attributes onto r
func DecodeAttributes(data []byte, r *model.EntityRecord) error {
	if len(data) == 0 {
		return nil
	}
	var a Attributes
	if err := json.Unmarshal(data, &a); err != nil {
		return eris.Wrap(err, "store: decode attributes")
	}
	r.InvestmentFocus = a.InvestmentFocus
	r.IsLimitedPartner = a.IsLimitedPartner
	r.IsAllianceMember = a.IsAllianceMember
	return nil
}

// NewID returns a fresh record id
func NewID() string {
	return uuid.NewString()
}

// NameKey is the value stored in name_normalized columns and compared by
// FindEntities
func NameKey(name string) string {
	return normalize.ForLookup(name)
}

// NewEntityRecord validates fields and builds the record to insert
func NewEntityRecord(entityType model.EntityType, fields model.EntityFields, now time.Time) (model.EntityRecord, error) {
	if !entityType.Valid() {
		return model.EntityRecord{}, eris.Errorf("store: invalid entity type %q", entityType)
	}
	name := normalize.Name(fields.Name, entityType)
	if name == "" {
		return model.EntityRecord{}, eris.Errorf("store: %s name is required", entityType.Label())
	}

	rec := model.EntityRecord{
		ID:         NewID(),
		EntityType: entityType,
		Name:       name,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	rec = ApplyPatch(rec, fields)
	rec.Name = name
	return rec, validate(rec)
}

// ApplyPatch overwrites every field set on patch. The name is normalized;
// an empty patch name keeps the current name.
func ApplyPatch(rec model.EntityRecord, patch model.EntityPatch) model.EntityRecord {
	set := func(dst *string, src string) {
		if src = strings.TrimSpace(src); src != "" {
			*dst = src
		}
	}
	if name := normalize.Name(patch.Name, rec.EntityType); name != "" {
		rec.Name = name
	}
	set(&rec.Website, patch.Website)
	set(&rec.HeadquartersCity, patch.HeadquartersCity)
	set(&rec.HeadquartersState, patch.HeadquartersState)
	set(&rec.HeadquartersCountry, patch.HeadquartersCountry)
	set(&rec.Description, patch.Description)
	set(&rec.PrimaryCategory, patch.PrimaryCategory)
	set(&rec.InvestmentFocus, patch.InvestmentFocus)

	if patch.IsLimitedPartner != nil {
		rec.IsLimitedPartner = *patch.IsLimitedPartner
	}
	if patch.IsAllianceMember != nil {
		rec.IsAllianceMember = *patch.IsAllianceMember
	}

	// Company type and lead source exist on companies only
	if rec.EntityType != model.EntityCompany {
		return rec
	}
	set(&rec.CompanyType, strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(patch.CompanyType), "-", "_")))

	switch patch.LeadSourceType {
	case model.LeadSourceHealthSystem:
		rec.LeadSourceType = model.LeadSourceHealthSystem
		if patch.LeadSourceHealthSystemID != "" {
			rec.LeadSourceHealthSystemID = patch.LeadSourceHealthSystemID
		}
		rec.LeadSourceOther = ""
	case model.LeadSourceOther:
		rec.LeadSourceType = model.LeadSourceOther
		rec.LeadSourceHealthSystemID = ""
		set(&rec.LeadSourceOther, patch.LeadSourceOther)
	default:
		if patch.LeadSourceHealthSystemID != "" {
			rec.LeadSourceType = model.LeadSourceHealthSystem
			rec.LeadSourceHealthSystemID = patch.LeadSourceHealthSystemID
			rec.LeadSourceOther = ""
		}
	}
	return rec
}

// ValidateUpdate checks a patched record before it is written
func ValidateUpdate(rec model.EntityRecord) error {
	return validate(rec)
}

func validate(rec model.EntityRecord) error {
	switch rec.CompanyType {
	case "", model.CompanyTypeStartup, model.CompanyTypeSpinOut, model.CompanyTypeDenovo:
	default:
		return eris.Errorf("store: invalid company type %q", rec.CompanyType)
	}
	if rec.LeadSourceType == model.LeadSourceHealthSystem && rec.LeadSourceHealthSystemID == "" {
		return eris.New("store: health system lead source requires a health system id")
	}
	return nil
}

// FormatTime renders timestamps for text columns
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime parses a FormatTime value; unparsable values yield the zero time
func ParseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// NormalizeLimit applies DefaultLimit to non-positive limits
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
