package execute

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/dealdesk/internal/match"
	"github.com/ppiankov/dealdesk/internal/model"
	"github.com/ppiankov/dealdesk/internal/store"
)

func (e *Executor) createEntity(ctx context.Context, p *pass, a model.CreateEntityAction) (string, any, error) {
	var rec *model.EntityRecord
	var message string
	created := true

	switch a.Selection.Mode {
	case model.SelectUseExisting:
		if a.Selection.ExistingID == "" {
			return "", nil, eris.Errorf("no existing %s selected for %q", a.EntityType.Label(), a.Draft.Name)
		}
		existing, err := e.store.GetEntity(ctx, a.EntityType, a.Selection.ExistingID)
		if err != nil {
			return "", nil, err
		}
		rec, created = existing, false
		message = fmt.Sprintf("Using existing %s %q.", a.EntityType.Label(), rec.Name)

	case model.SelectCreateFromWeb:
		candidate, err := selectedCandidate(a)
		if err != nil {
			return "", nil, err
		}
		draft := a.Draft.FillFrom(candidate.Fields())
		rec, err = e.insert(ctx, p, a.EntityType, draft)
		if err != nil {
			return "", nil, err
		}
		message = fmt.Sprintf("Created %s %q from web result %s.", a.EntityType.Label(), rec.Name, describeCandidate(candidate))
		if _, err := e.store.EnqueueResearch(ctx, a.EntityType, rec.ID); err != nil {
			zap.L().Warn("execute: research enqueue failed",
				zap.String("entityType", string(a.EntityType)),
				zap.String("entityId", rec.ID),
				zap.Error(err))
		}

	case model.SelectCreateManual, "":
		var err error
		rec, err = e.insert(ctx, p, a.EntityType, a.Draft)
		if err != nil {
			return "", nil, err
		}
		message = fmt.Sprintf("Created %s %q.", a.EntityType.Label(), rec.Name)

	default:
		return "", nil, eris.Errorf("unknown selection mode %q", a.Selection.Mode)
	}

	ref := model.CreatedEntityReference{
		ActionID:   a.ID,
		EntityType: a.EntityType,
		ID:         rec.ID,
		Name:       rec.Name,
		Created:    created,
	}
	p.refs[a.ID] = ref
	p.created = append(p.created, ref)
	return message, rec, nil
}

func (e *Executor) insert(ctx context.Context, p *pass, entityType model.EntityType, draft model.EntityDraft) (*model.EntityRecord, error) {
	if entityType == model.EntityCompany {
		draft = e.resolveLeadSource(ctx, p, draft)
	}
	return e.store.CreateEntity(ctx, entityType, draft)
}

// selectedCandidate returns the chosen web candidate. A missing index with
// exactly one candidate selects it.
func selectedCandidate(a model.CreateEntityAction) (model.WebCandidate, error) {
	idx := a.Selection.WebCandidateIndex
	switch {
	case idx == nil && len(a.WebCandidates) == 1:
		return a.WebCandidates[0], nil
	case idx == nil:
		return model.WebCandidate{}, eris.Errorf("no web candidate selected for %s %q (%d available)",
			a.EntityType.Label(), a.Draft.Name, len(a.WebCandidates))
	case *idx < 0 || *idx >= len(a.WebCandidates):
		return model.WebCandidate{}, eris.Errorf("web candidate index %d out of range for %s %q",
			*idx, a.EntityType.Label(), a.Draft.Name)
	}
	return a.WebCandidates[*idx], nil
}

func describeCandidate(c model.WebCandidate) string {
	if c.Website != "" {
		return c.Website
	}
	return fmt.Sprintf("%q", c.Name)
}

// resolveLeadSource turns a lead-source health system name into an id: a
// health system this pass created or reused first, then an existing record
// at or above the auto-match threshold. An unresolved name is kept as a
// free-text OTHER lead source.
func (e *Executor) resolveLeadSource(ctx context.Context, p *pass, fields model.EntityFields) model.EntityFields {
	name := strings.TrimSpace(fields.LeadSourceHealthSystemName)
	if fields.LeadSourceHealthSystemID != "" {
		fields.LeadSourceType = model.LeadSourceHealthSystem
		return fields
	}
	if name == "" {
		if fields.LeadSourceType == model.LeadSourceHealthSystem {
			fields.LeadSourceType = ""
		}
		return fields
	}
	if fields.LeadSourceType == model.LeadSourceOther {
		if fields.LeadSourceOther == "" {
			fields.LeadSourceOther = name
		}
		return fields
	}

	if actionID, ok := p.lookup.Find(model.EntityHealthSystem, name); ok {
		if ref, ok := p.refs[actionID]; ok {
			fields.LeadSourceType = model.LeadSourceHealthSystem
			fields.LeadSourceHealthSystemID = ref.ID
			return fields
		}
	}

	matches, err := match.NewMatcher(e.store).FetchEntityMatches(ctx, model.EntityHealthSystem, name)
	if err != nil {
		zap.L().Warn("execute: lead source lookup failed", zap.String("name", name), zap.Error(err))
	}
	if top, ok := match.AutoMatch(matches); ok {
		fields.LeadSourceType = model.LeadSourceHealthSystem
		fields.LeadSourceHealthSystemID = top.ID
		return fields
	}

	fields.LeadSourceType = model.LeadSourceOther
	fields.LeadSourceOther = name
	return fields
}

func (e *Executor) updateEntity(ctx context.Context, p *pass, a model.UpdateEntityAction) (string, any, error) {
	if a.Patch.IsEmpty() {
		return "", nil, eris.Errorf("nothing to update on %s %q", a.EntityType.Label(), a.TargetName)
	}
	id, err := p.resolveID(a.SelectedTargetID, a.LinkedCreateActionID, a.EntityType, a.TargetName)
	if err != nil {
		return "", nil, err
	}

	patch := a.Patch
	if a.EntityType == model.EntityCompany {
		patch = e.resolveLeadSource(ctx, p, patch)
	}
	rec, err := e.store.UpdateEntity(ctx, a.EntityType, id, patch)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("Updated %s %q.", a.EntityType.Label(), rec.Name), rec, nil
}

// addContact resolves or creates the contact and attaches its role in one
// transaction so a failed role never leaves an orphaned contact.
func (e *Executor) addContact(ctx context.Context, p *pass, a model.AddContactAction) (string, any, error) {
	if strings.TrimSpace(a.Contact.Name) == "" {
		return "", nil, eris.New("contact name is required")
	}
	parentID, err := p.resolveID(a.SelectedParentID, a.LinkedCreateActionID, a.ParentType, a.ParentName)
	if err != nil {
		return "", nil, err
	}
	role := a.RoleType
	if role == "" {
		role = model.RoleOther
	}

	var link model.ContactLink
	err = e.store.WithTx(ctx, func(tx store.Store) error {
		if _, err := tx.GetEntity(ctx, a.ParentType, parentID); err != nil {
			return err
		}
		contact, err := tx.FindContact(ctx, a.Contact.Name, a.Contact.Email)
		if errors.Is(err, store.ErrNotFound) {
			contact, err = tx.CreateContact(ctx, a.Contact)
		}
		if err != nil {
			return err
		}
		link = model.ContactLink{ParentType: a.ParentType, ParentID: parentID, ContactID: contact.ID, RoleType: role, Contact: contact}
		return tx.UpsertContactRole(ctx, link)
	})
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("Added %s as %s of %s %q.", a.Contact.Name, role, a.ParentType.Label(), a.ParentName), link, nil
}

func (e *Executor) linkCompanyCoInvestor(ctx context.Context, p *pass, a model.LinkCompanyCoInvestorAction) (string, any, error) {
	companyID, err := p.resolveID(a.SelectedCompanyID, a.CompanyCreateActionID, model.EntityCompany, a.CompanyName)
	if err != nil {
		return "", nil, err
	}
	coInvestorID, err := p.resolveID(a.SelectedCoInvestorID, a.CoInvestorCreateActionID, model.EntityCoInvestor, a.CoInvestorName)
	if err != nil {
		return "", nil, err
	}

	var saved *model.CompanyCoInvestorLink
	err = e.store.WithTx(ctx, func(tx store.Store) error {
		var err error
		saved, err = tx.UpsertCompanyCoInvestorLink(ctx, model.CompanyCoInvestorLink{
			CompanyID:           companyID,
			CoInvestorID:        coInvestorID,
			RelationshipType:    a.RelationshipType,
			Notes:               a.Notes,
			InvestmentAmountUSD: a.InvestmentAmountUSD,
		})
		return err
	})
	if err != nil {
		return "", nil, err
	}

	message := fmt.Sprintf("Linked company %q with co-investor %q.", a.CompanyName, a.CoInvestorName)
	if source, ok := e.backfillLeadSource(ctx, a, companyID, coInvestorID); ok {
		message += " Lead source set to " + source + "."
	}
	return message, saved, nil
}

// resolveID picks the existing-record id, else the id the referenced create
// action produced earlier in this pass
func (p *pass) resolveID(selectedID, createActionID string, entityType model.EntityType, name string) (string, error) {
	if selectedID != "" {
		return selectedID, nil
	}
	if createActionID != "" {
		if ref, ok := p.refs[createActionID]; ok {
			return ref.ID, nil
		}
		return "", eris.Errorf("%s %q: create action %s produced no record", entityType.Label(), name, createActionID)
	}
	return "", eris.Errorf("%s %q is not resolved to a record", entityType.Label(), name)
}
