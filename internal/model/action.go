package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ActionKind discriminates the NarrativeAction union
type ActionKind string

const (
	KindCreateEntity          ActionKind = "CREATE_ENTITY"
	KindUpdateEntity          ActionKind = "UPDATE_ENTITY"
	KindAddContact            ActionKind = "ADD_CONTACT"
	KindLinkCompanyCoInvestor ActionKind = "LINK_COMPANY_CO_INVESTOR"
)

// ErrUnknownActionKind is returned when decoding an action with an unsupported kind
var ErrUnknownActionKind = errors.New("unknown action kind")

// SelectionMode controls how a CREATE_ENTITY action is satisfied
type SelectionMode string

const (
	SelectUseExisting   SelectionMode = "USE_EXISTING"
	SelectCreateFromWeb SelectionMode = "CREATE_FROM_WEB"
	SelectCreateManual  SelectionMode = "CREATE_MANUAL"
)

// Selection is the chosen strategy for a CREATE_ENTITY action.
// ExistingID is set only for USE_EXISTING, WebCandidateIndex only for
// CREATE_FROM_WEB (nil means a human still has to pick).
type Selection struct {
	Mode              SelectionMode `json:"mode"`
	ExistingID        string        `json:"existingId,omitempty"`
	WebCandidateIndex *int          `json:"webCandidateIndex,omitempty"`
}

// UseExisting selects an existing record
func UseExisting(id string) Selection {
	return Selection{Mode: SelectUseExisting, ExistingID: id}
}

// CreateFromWeb selects a web candidate; pass a negative index to leave it unset
func CreateFromWeb(index int) Selection {
	s := Selection{Mode: SelectCreateFromWeb}
	if index >= 0 {
		s.WebCandidateIndex = &index
	}
	return s
}

// CreateManual creates the record from the draft alone
func CreateManual() Selection {
	return Selection{Mode: SelectCreateManual}
}

// ActionBase is the envelope every action carries
type ActionBase struct {
	ID         string   `json:"id"`
	Include    bool     `json:"include"`
	Rationale  string   `json:"rationale"`
	Confidence float64  `json:"confidence"`
	Issues     []string `json:"issues"`
}

// AddIssue returns a copy of the envelope with issue appended once
func (b ActionBase) AddIssue(issue string) ActionBase {
	for _, existing := range b.Issues {
		if existing == issue {
			return b
		}
	}
	issues := make([]string, 0, len(b.Issues)+1)
	issues = append(issues, b.Issues...)
	b.Issues = append(issues, issue)
	return b
}

// Action is the NarrativeAction sum type. The unexported method seals it to
// the four kinds below; consumers switch on the concrete type.
type Action interface {
	Kind() ActionKind
	Base() ActionBase
	WithBase(ActionBase) Action
	sealedAction()
}

// CreateEntityAction proposes a new (or reused) health system, company or co-investor
type CreateEntityAction struct {
	ActionBase
	EntityType      EntityType     `json:"entityType"`
	Draft           EntityDraft    `json:"draft"`
	ExistingMatches []EntityMatch  `json:"existingMatches"`
	WebCandidates   []WebCandidate `json:"webCandidates"`
	Selection       Selection      `json:"selection"`
	// LeadSourceMatches holds sub-threshold candidates for a company's
	// health-system lead source hint.
	LeadSourceMatches []EntityMatch `json:"leadSourceMatches,omitempty"`
}

// UpdateEntityAction patches an existing or same-batch entity
type UpdateEntityAction struct {
	ActionBase
	EntityType           EntityType    `json:"entityType"`
	TargetName           string        `json:"targetName"`
	Patch                EntityPatch   `json:"patch"`
	TargetMatches        []EntityMatch `json:"targetMatches"`
	SelectedTargetID     string        `json:"selectedTargetId,omitempty"`
	LinkedCreateActionID string        `json:"linkedCreateActionId,omitempty"`
}

// AddContactAction attaches a contact to a parent entity
type AddContactAction struct {
	ActionBase
	ParentType           EntityType      `json:"parentType"`
	ParentName           string          `json:"parentName"`
	RoleType             ContactRoleType `json:"roleType"`
	Contact              Contact         `json:"contact"`
	ParentMatches        []EntityMatch   `json:"parentMatches"`
	SelectedParentID     string          `json:"selectedParentId,omitempty"`
	LinkedCreateActionID string          `json:"linkedCreateActionId,omitempty"`
}

// LinkCompanyCoInvestorAction relates a company and a co-investor
type LinkCompanyCoInvestorAction struct {
	ActionBase
	CompanyName              string           `json:"companyName"`
	CoInvestorName           string           `json:"coInvestorName"`
	RelationshipType         RelationshipType `json:"relationshipType"`
	Notes                    string           `json:"notes,omitempty"`
	InvestmentAmountUSD      *float64         `json:"investmentAmountUsd,omitempty"`
	CompanyMatches           []EntityMatch    `json:"companyMatches"`
	CoInvestorMatches        []EntityMatch    `json:"coInvestorMatches"`
	SelectedCompanyID        string           `json:"selectedCompanyId,omitempty"`
	SelectedCoInvestorID     string           `json:"selectedCoInvestorId,omitempty"`
	CompanyCreateActionID    string           `json:"companyCreateActionId,omitempty"`
	CoInvestorCreateActionID string           `json:"coInvestorCreateActionId,omitempty"`
	// HealthSystemConflict is set when the co-investor name matches an
	// existing health system above the auto-match threshold.
	HealthSystemConflict *EntityMatch `json:"healthSystemConflict,omitempty"`
}

func (CreateEntityAction) Kind() ActionKind          { return KindCreateEntity }
func (UpdateEntityAction) Kind() ActionKind          { return KindUpdateEntity }
func (AddContactAction) Kind() ActionKind            { return KindAddContact }
func (LinkCompanyCoInvestorAction) Kind() ActionKind { return KindLinkCompanyCoInvestor }

func (a CreateEntityAction) Base() ActionBase          { return a.ActionBase }
func (a UpdateEntityAction) Base() ActionBase          { return a.ActionBase }
func (a AddContactAction) Base() ActionBase            { return a.ActionBase }
func (a LinkCompanyCoInvestorAction) Base() ActionBase { return a.ActionBase }

func (a CreateEntityAction) WithBase(b ActionBase) Action {
	a.ActionBase = b
	return a
}

func (a UpdateEntityAction) WithBase(b ActionBase) Action {
	a.ActionBase = b
	return a
}

func (a AddContactAction) WithBase(b ActionBase) Action {
	a.ActionBase = b
	return a
}

func (a LinkCompanyCoInvestorAction) WithBase(b ActionBase) Action {
	a.ActionBase = b
	return a
}

func (CreateEntityAction) sealedAction()          {}
func (UpdateEntityAction) sealedAction()          {}
func (AddContactAction) sealedAction()            {}
func (LinkCompanyCoInvestorAction) sealedAction() {}

func (a CreateEntityAction) MarshalJSON() ([]byte, error) {
	type alias CreateEntityAction
	return json.Marshal(struct {
		Kind ActionKind `json:"kind"`
		alias
	}{KindCreateEntity, alias(a)})
}

func (a UpdateEntityAction) MarshalJSON() ([]byte, error) {
	type alias UpdateEntityAction
	return json.Marshal(struct {
		Kind ActionKind `json:"kind"`
		alias
	}{KindUpdateEntity, alias(a)})
}

func (a AddContactAction) MarshalJSON() ([]byte, error) {
	type alias AddContactAction
	return json.Marshal(struct {
		Kind ActionKind `json:"kind"`
		alias
	}{KindAddContact, alias(a)})
}

func (a LinkCompanyCoInvestorAction) MarshalJSON() ([]byte, error) {
	type alias LinkCompanyCoInvestorAction
	return json.Marshal(struct {
		Kind ActionKind `json:"kind"`
		alias
	}{KindLinkCompanyCoInvestor, alias(a)})
}

// ActionList is a JSON-decodable list of actions
type ActionList []Action

// UnmarshalJSON decodes each element by its "kind" discriminator
func (l *ActionList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(ActionList, 0, len(raw))
	for i, item := range raw {
		action, err := DecodeAction(item)
		if err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
		out = append(out, action)
	}
	*l = out
	return nil
}

// DecodeAction decodes a single action from its JSON form
func DecodeAction(data []byte) (Action, error) {
	var head struct {
		Kind ActionKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	switch head.Kind {
	case KindCreateEntity:
		var a CreateEntityAction
		err := json.Unmarshal(data, &a)
		return a, err
	case KindUpdateEntity:
		var a UpdateEntityAction
		err := json.Unmarshal(data, &a)
		return a, err
	case KindAddContact:
		var a AddContactAction
		err := json.Unmarshal(data, &a)
		return a, err
	case KindLinkCompanyCoInvestor:
		var a LinkCompanyCoInvestorAction
		err := json.Unmarshal(data, &a)
		return a, err
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownActionKind, head.Kind)
	}
}

// ClampConfidence bounds c to [0, 1]
func ClampConfidence(c float64) float64 {
	if c < 0 || c != c {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
