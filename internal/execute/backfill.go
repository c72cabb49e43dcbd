package execute

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/dealdesk/internal/extract"
	"github.com/ppiankov/dealdesk/internal/match"
	"github.com/ppiankov/dealdesk/internal/model"
	"github.com/ppiankov/dealdesk/internal/normalize"
)

// backfillLeadSource sets a company's lead source after a link whose notes
// or rationale describe an introduction. It only touches companies without
// a lead source and never fails the link: errors are logged and dropped.
func (e *Executor) backfillLeadSource(ctx context.Context, a model.LinkCompanyCoInvestorAction, companyID, coInvestorID string) (string, bool) {
	text := a.Notes
	if !extract.HasIntroductionLanguage(text) {
		text = a.Rationale
	}
	if !extract.HasIntroductionLanguage(text) {
		return "", false
	}

	logger := zap.L().With(zap.String("companyId", companyID), zap.String("actionId", a.ID))
	company, err := e.store.GetEntity(ctx, model.EntityCompany, companyID)
	if err != nil {
		logger.Warn("execute: lead source backfill skipped", zap.Error(err))
		return "", false
	}
	if company.LeadSourceType != "" {
		return "", false
	}

	introducer := extract.IntroducerFromText(text)
	if introducer == "" {
		introducer = a.CoInvestorName
	}
	patch := e.introducerLeadSource(ctx, introducer, coInvestorID, normalize.Equal(introducer, a.CoInvestorName))

	if _, err := e.store.UpdateEntity(ctx, model.EntityCompany, companyID, patch); err != nil {
		logger.Warn("execute: lead source backfill failed", zap.String("introducer", introducer), zap.Error(err))
		return "", false
	}
	if patch.LeadSourceType == model.LeadSourceHealthSystem {
		return fmt.Sprintf("health system %s", patch.LeadSourceHealthSystemID), true
	}
	return fmt.Sprintf("%q", patch.LeadSourceOther), true
}

// introducerLeadSource resolves the introducer as a health system: through
// the co-investor's venture partner record when the introducer is the linked
// co-investor, then by name. Anything else is a free-text OTHER source.
func (e *Executor) introducerLeadSource(ctx context.Context, introducer, coInvestorID string, isCoInvestor bool) model.EntityPatch {
	if isCoInvestor {
		hsID, err := e.store.FindVenturePartnerHealthSystem(ctx, coInvestorID)
		if err != nil {
			zap.L().Warn("execute: venture partner lookup failed", zap.String("coInvestorId", coInvestorID), zap.Error(err))
		}
		if hsID != "" {
			return model.EntityPatch{LeadSourceType: model.LeadSourceHealthSystem, LeadSourceHealthSystemID: hsID}
		}
	}

	if !isCoInvestor || extract.InferIntroducerType(introducer) == model.EntityHealthSystem {
		matches, err := match.NewMatcher(e.store).FetchEntityMatches(ctx, model.EntityHealthSystem, introducer)
		if err != nil {
			zap.L().Warn("execute: introducer lookup failed", zap.String("introducer", introducer), zap.Error(err))
		}
		if top, ok := match.AutoMatch(matches); ok {
			return model.EntityPatch{LeadSourceType: model.LeadSourceHealthSystem, LeadSourceHealthSystemID: top.ID}
		}
	}
	return model.EntityPatch{LeadSourceType: model.LeadSourceOther, LeadSourceOther: introducer}
}
