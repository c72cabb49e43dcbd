package model

import "time"

// EntityType is one of the three store entity kinds an action can target
type EntityType string

const (
	EntityHealthSystem EntityType = "HEALTH_SYSTEM"
	EntityCompany      EntityType = "COMPANY"
	EntityCoInvestor   EntityType = "CO_INVESTOR"
)

// EntityTypes lists every supported entity type in display order
var EntityTypes = []EntityType{EntityHealthSystem, EntityCompany, EntityCoInvestor}

// Valid reports whether t is one of the supported entity types
func (t EntityType) Valid() bool {
	switch t {
	case EntityHealthSystem, EntityCompany, EntityCoInvestor:
		return true
	}
	return false
}

// Label returns the lower-case human name used in questions and messages
func (t EntityType) Label() string {
	switch t {
	case EntityHealthSystem:
		return "health system"
	case EntityCompany:
		return "company"
	case EntityCoInvestor:
		return "co-investor"
	default:
		return "entity"
	}
}

// LeadSourceType records where a company came from
type LeadSourceType string

const (
	LeadSourceHealthSystem LeadSourceType = "HEALTH_SYSTEM"
	LeadSourceOther        LeadSourceType = "OTHER"
)

// Company types recognised in drafts and patches
const (
	CompanyTypeStartup = "STARTUP"
	CompanyTypeSpinOut = "SPIN_OUT"
	CompanyTypeDenovo  = "DENOVO"
)

// EntityFields is the optional field bag shared by drafts (to-be-created
// records) and patches (changes to existing records). Empty values mean
// "not specified".
type EntityFields struct {
	Name                       string         `json:"name,omitempty"`
	Website                    string         `json:"website,omitempty"`
	HeadquartersCity           string         `json:"headquartersCity,omitempty"`
	HeadquartersState          string         `json:"headquartersState,omitempty"`
	HeadquartersCountry        string         `json:"headquartersCountry,omitempty"`
	Description                string         `json:"description,omitempty"`
	CompanyType                string         `json:"companyType,omitempty"`
	PrimaryCategory            string         `json:"primaryCategory,omitempty"`
	LeadSourceType             LeadSourceType `json:"leadSourceType,omitempty"`
	LeadSourceHealthSystemID   string         `json:"leadSourceHealthSystemId,omitempty"`
	LeadSourceHealthSystemName string         `json:"leadSourceHealthSystemName,omitempty"`
	LeadSourceOther            string         `json:"leadSourceOther,omitempty"`
	InvestmentFocus            string         `json:"investmentFocus,omitempty"`
	IsLimitedPartner           *bool          `json:"isLimitedPartner,omitempty"`
	IsAllianceMember           *bool          `json:"isAllianceMember,omitempty"`
}

// EntityDraft describes an entity that does not exist yet
type EntityDraft = EntityFields

// EntityPatch describes changes to an existing entity
type EntityPatch = EntityFields

// IsEmpty reports whether no field is set
func (f EntityFields) IsEmpty() bool {
	return f == EntityFields{}
}

// FillFrom returns a copy of f where every empty field takes the value from
// other. Fields already set on f are never overwritten.
func (f EntityFields) FillFrom(other EntityFields) EntityFields {
	out := f
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&out.Name, other.Name)
	fill(&out.Website, other.Website)
	fill(&out.HeadquartersCity, other.HeadquartersCity)
	fill(&out.HeadquartersState, other.HeadquartersState)
	fill(&out.HeadquartersCountry, other.HeadquartersCountry)
	fill(&out.Description, other.Description)
	fill(&out.CompanyType, other.CompanyType)
	fill(&out.PrimaryCategory, other.PrimaryCategory)
	if out.LeadSourceType == "" {
		out.LeadSourceType = other.LeadSourceType
	}
	fill(&out.LeadSourceHealthSystemID, other.LeadSourceHealthSystemID)
	fill(&out.LeadSourceHealthSystemName, other.LeadSourceHealthSystemName)
	fill(&out.LeadSourceOther, other.LeadSourceOther)
	fill(&out.InvestmentFocus, other.InvestmentFocus)
	if out.IsLimitedPartner == nil && other.IsLimitedPartner != nil {
		v := *other.IsLimitedPartner
		out.IsLimitedPartner = &v
	}
	if out.IsAllianceMember == nil && other.IsAllianceMember != nil {
		v := *other.IsAllianceMember
		out.IsAllianceMember = &v
	}
	return out
}

// EntityRecord is a persisted health system, company or co-investor
type EntityRecord struct {
	ID                       string         `json:"id"`
	EntityType               EntityType     `json:"entityType"`
	Name                     string         `json:"name"`
	Website                  string         `json:"website,omitempty"`
	HeadquartersCity         string         `json:"headquartersCity,omitempty"`
	HeadquartersState        string         `json:"headquartersState,omitempty"`
	HeadquartersCountry      string         `json:"headquartersCountry,omitempty"`
	Description              string         `json:"description,omitempty"`
	CompanyType              string         `json:"companyType,omitempty"`
	PrimaryCategory          string         `json:"primaryCategory,omitempty"`
	LeadSourceType           LeadSourceType `json:"leadSourceType,omitempty"`
	LeadSourceHealthSystemID string         `json:"leadSourceHealthSystemId,omitempty"`
	LeadSourceOther          string         `json:"leadSourceOther,omitempty"`
	InvestmentFocus          string         `json:"investmentFocus,omitempty"`
	IsLimitedPartner         bool           `json:"isLimitedPartner,omitempty"`
	IsAllianceMember         bool           `json:"isAllianceMember,omitempty"`
	CreatedAt                time.Time      `json:"createdAt"`
	UpdatedAt                time.Time      `json:"updatedAt"`
}

// ContactRoleType is the role a contact plays for its parent entity
type ContactRoleType string

const (
	RoleExecutive       ContactRoleType = "EXECUTIVE"
	RoleVenturePartner  ContactRoleType = "VENTURE_PARTNER"
	RoleInvestorPartner ContactRoleType = "INVESTOR_PARTNER"
	RoleCompanyContact  ContactRoleType = "COMPANY_CONTACT"
	RoleOther           ContactRoleType = "OTHER"
)

// Contact is the person described by an ADD_CONTACT action
type Contact struct {
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	LinkedInURL string `json:"linkedinUrl,omitempty"`
}

// ContactRecord is a persisted contact
type ContactRecord struct {
	ID string `json:"id"`
	Contact
	CreatedAt time.Time `json:"createdAt"`
}

// ContactLink ties a contact to a parent entity with a role
type ContactLink struct {
	ParentType EntityType      `json:"parentType"`
	ParentID   string          `json:"parentId"`
	ContactID  string          `json:"contactId"`
	RoleType   ContactRoleType `json:"roleType"`
	Contact    *ContactRecord  `json:"contact,omitempty"`
}

// RelationshipType qualifies a company/co-investor link
type RelationshipType string

const (
	RelationshipInvestor RelationshipType = "INVESTOR"
	RelationshipPartner  RelationshipType = "PARTNER"
	RelationshipOther    RelationshipType = "OTHER"
)

// CompanyCoInvestorLink is a persisted company/co-investor relationship
type CompanyCoInvestorLink struct {
	ID                  string           `json:"id"`
	CompanyID           string           `json:"companyId"`
	CoInvestorID        string           `json:"coInvestorId"`
	RelationshipType    RelationshipType `json:"relationshipType"`
	Notes               string           `json:"notes,omitempty"`
	InvestmentAmountUSD *float64         `json:"investmentAmountUsd,omitempty"`
	CreatedAt           time.Time        `json:"createdAt"`
	UpdatedAt           time.Time        `json:"updatedAt"`
}

// ResearchJob is a queued enrichment request for a newly created entity
type ResearchJob struct {
	ID         string     `json:"id"`
	EntityType EntityType `json:"entityType"`
	EntityID   string     `json:"entityId"`
	Status     string     `json:"status"`
	Attempts   int        `json:"attempts"`
	LastError  string     `json:"lastError,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Research job statuses
const (
	ResearchPending = "PENDING"
	ResearchDone    = "DONE"
	ResearchFailed  = "FAILED"
)
