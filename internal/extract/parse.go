package extract

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/ppiankov/dealdesk/internal/model"
	"github.com/ppiankov/dealdesk/internal/normalize"
)

// defaultConfidence is used when the model omits or garbles a confidence
const defaultConfidence = 0.7

// kindLinkCompanyHealthSystem is a shape the model sometimes proposes but the
// store has no table for. It is rewritten into a lead-source update.
const kindLinkCompanyHealthSystem model.ActionKind = "LINK_COMPANY_HEALTH_SYSTEM"

// LeadSourceSubstitutionIssue explains a rewritten company/health-system link
const LeadSourceSubstitutionIssue = "Company/health system links are stored as the company's lead source; converted to a lead-source update."

var kindSynonyms = map[string]model.ActionKind{
	"CREATE_ENTITY":              model.KindCreateEntity,
	"CREATE":                     model.KindCreateEntity,
	"NEW_ENTITY":                 model.KindCreateEntity,
	"ADD_ENTITY":                 model.KindCreateEntity,
	"UPDATE_ENTITY":              model.KindUpdateEntity,
	"UPDATE":                     model.KindUpdateEntity,
	"EDIT":                       model.KindUpdateEntity,
	"PATCH":                      model.KindUpdateEntity,
	"SET":                        model.KindUpdateEntity,
	"ADD_CONTACT":                model.KindAddContact,
	"CONTACT":                    model.KindAddContact,
	"CREATE_CONTACT":             model.KindAddContact,
	"LINK_COMPANY_CO_INVESTOR":   model.KindLinkCompanyCoInvestor,
	"LINK_COMPANY_COINVESTOR":    model.KindLinkCompanyCoInvestor,
	"LINK_CO_INVESTOR":           model.KindLinkCompanyCoInvestor,
	"LINK_INVESTOR":              model.KindLinkCompanyCoInvestor,
	"ADD_INVESTOR":               model.KindLinkCompanyCoInvestor,
	"ADD_INVESTMENT":             model.KindLinkCompanyCoInvestor,
	"LINK":                       model.KindLinkCompanyCoInvestor,
	"LINK_COMPANY_HEALTH_SYSTEM": kindLinkCompanyHealthSystem,
	"LINK_HEALTH_SYSTEM":         kindLinkCompanyHealthSystem,
	"SET_LEAD_SOURCE":            kindLinkCompanyHealthSystem,
}

// parseActionKind maps the model's kind text onto a supported kind. It
// accepts any casing and separator and falls back to verb prefixes.
func parseActionKind(raw string) (model.ActionKind, bool) {
	key := canonicalToken(raw)
	if key == "" {
		return "", false
	}
	if kind, ok := kindSynonyms[key]; ok {
		return kind, true
	}

	verb, _, _ := strings.Cut(key, "_")
	switch {
	case strings.Contains(key, "CONTACT") || strings.Contains(key, "PERSON"):
		if isCreateVerb(verb) {
			return model.KindAddContact, true
		}
	case verb == "LINK" || verb == "CONNECT" || verb == "RELATE":
		if strings.Contains(key, "HEALTH") || strings.Contains(key, "HOSPITAL") {
			return kindLinkCompanyHealthSystem, true
		}
		return model.KindLinkCompanyCoInvestor, true
	case isCreateVerb(verb):
		return model.KindCreateEntity, true
	case verb == "UPDATE" || verb == "EDIT" || verb == "MODIFY" || verb == "CHANGE" || verb == "SET" || verb == "MARK":
		return model.KindUpdateEntity, true
	}
	return "", false
}

func isCreateVerb(verb string) bool {
	switch verb {
	case "CREATE", "ADD", "NEW", "INSERT":
		return true
	}
	return false
}

// parseEntityType recognises entity type names and their common synonyms
func parseEntityType(raw string) (model.EntityType, bool) {
	key := strings.ReplaceAll(normalize.ForLookup(raw), " ", "")
	switch key {
	case "healthsystem", "healthsystems", "hospital", "hospitals", "hs", "provider", "healthsystemprovider", "idn":
		return model.EntityHealthSystem, true
	case "company", "companies", "startup", "startups", "portfoliocompany", "spinout", "denovo":
		return model.EntityCompany, true
	case "coinvestor", "coinvestors", "investor", "investors", "fund", "vc", "venturefirm", "firm", "investmentfirm":
		return model.EntityCoInvestor, true
	}
	return "", false
}

// inferEntityTypeFromActionSource finds the entity type an action targets:
// an explicit type field first, then the kind text suffix, then fields only
// one entity type carries
func inferEntityTypeFromActionSource(raw rawObject, kindText string, fields model.EntityFields) (model.EntityType, bool) {
	for _, key := range []string{"entityType", "entity_type", "type", "entity", "targetType", "target_type"} {
		if t, ok := parseEntityType(raw.str(key)); ok {
			return t, true
		}
	}

	kind := canonicalToken(kindText)
	switch {
	case strings.Contains(kind, "HEALTH_SYSTEM") || strings.Contains(kind, "HOSPITAL"):
		return model.EntityHealthSystem, true
	case strings.Contains(kind, "INVESTOR") || strings.Contains(kind, "FUND"):
		return model.EntityCoInvestor, true
	case strings.Contains(kind, "COMPANY") || strings.Contains(kind, "STARTUP"):
		return model.EntityCompany, true
	}

	switch {
	case fields.CompanyType != "" || fields.PrimaryCategory != "" || fields.LeadSourceType != "" || fields.LeadSourceHealthSystemName != "":
		return model.EntityCompany, true
	case fields.InvestmentFocus != "":
		return model.EntityCoInvestor, true
	case fields.IsLimitedPartner != nil || fields.IsAllianceMember != nil:
		return model.EntityHealthSystem, true
	}
	return "", false
}

func parseRoleType(raw string, parentType model.EntityType) model.ContactRoleType {
	switch canonicalToken(raw) {
	case "EXECUTIVE", "EXEC", "LEADERSHIP":
		return model.RoleExecutive
	case "VENTURE_PARTNER":
		return model.RoleVenturePartner
	case "INVESTOR_PARTNER", "INVESTOR", "PARTNER":
		return model.RoleInvestorPartner
	case "COMPANY_CONTACT", "FOUNDER", "COFOUNDER", "CEO":
		return model.RoleCompanyContact
	case "OTHER":
		return model.RoleOther
	}
	switch parentType {
	case model.EntityHealthSystem:
		return model.RoleExecutive
	case model.EntityCoInvestor:
		return model.RoleInvestorPartner
	default:
		return model.RoleCompanyContact
	}
}

func parseRelationshipType(raw string) model.RelationshipType {
	switch canonicalToken(raw) {
	case "PARTNER", "PARTNERSHIP":
		return model.RelationshipPartner
	case "OTHER":
		return model.RelationshipOther
	default:
		return model.RelationshipInvestor
	}
}

func parseCompanyType(raw string) string {
	switch strings.ReplaceAll(canonicalToken(raw), "_", "") {
	case "STARTUP":
		return model.CompanyTypeStartup
	case "SPINOUT", "SPINOFF":
		return model.CompanyTypeSpinOut
	case "DENOVO":
		return model.CompanyTypeDenovo
	}
	return ""
}

func parseLeadSourceType(raw string) model.LeadSourceType {
	if t, ok := parseEntityType(raw); ok && t == model.EntityHealthSystem {
		return model.LeadSourceHealthSystem
	}
	if canonicalToken(raw) == "OTHER" {
		return model.LeadSourceOther
	}
	return ""
}

// parseFields reads an entity field bag, accepting camelCase and snake_case
// keys and a few common aliases. Every string passes through the normalizer.
func parseFields(raw rawObject, entityType model.EntityType) model.EntityFields {
	fields := model.EntityFields{
		Name:                       normalize.Name(raw.str("name", "entityName", "entity_name"), entityType),
		Website:                    clean(raw.str("website", "url", "homepage")),
		HeadquartersCity:           clean(raw.str("headquartersCity", "headquarters_city", "hqCity", "city")),
		HeadquartersState:          clean(raw.str("headquartersState", "headquarters_state", "hqState", "state")),
		HeadquartersCountry:        clean(raw.str("headquartersCountry", "headquarters_country", "hqCountry", "country")),
		Description:                clean(raw.str("description", "summary")),
		CompanyType:                parseCompanyType(raw.str("companyType", "company_type")),
		PrimaryCategory:            clean(raw.str("primaryCategory", "primary_category", "category")),
		LeadSourceType:             parseLeadSourceType(raw.str("leadSourceType", "lead_source_type")),
		LeadSourceHealthSystemName: normalize.Name(raw.str("leadSourceHealthSystemName", "lead_source_health_system_name", "leadSourceHealthSystem", "leadSource", "lead_source"), model.EntityHealthSystem),
		LeadSourceOther:            clean(raw.str("leadSourceOther", "lead_source_other")),
		InvestmentFocus:            clean(raw.str("investmentFocus", "investment_focus")),
		IsLimitedPartner:           raw.boolPtr("isLimitedPartner", "is_limited_partner"),
		IsAllianceMember:           raw.boolPtr("isAllianceMember", "is_alliance_member"),
	}
	if fields.LeadSourceHealthSystemName != "" && fields.LeadSourceType == "" {
		fields.LeadSourceType = model.LeadSourceHealthSystem
	}
	if fields.LeadSourceType == model.LeadSourceOther && fields.LeadSourceOther == "" {
		fields.LeadSourceOther = fields.LeadSourceHealthSystemName
	}
	if fields.LeadSourceType == model.LeadSourceOther {
		fields.LeadSourceHealthSystemName = ""
	}
	return fields
}

// stripForeignFields drops fields the entity type does not carry
func stripForeignFields(f model.EntityFields, entityType model.EntityType) model.EntityFields {
	if entityType != model.EntityCompany {
		f.CompanyType = ""
		f.PrimaryCategory = ""
		f.LeadSourceType = ""
		f.LeadSourceHealthSystemName = ""
		f.LeadSourceOther = ""
	}
	if entityType != model.EntityCoInvestor {
		f.InvestmentFocus = ""
	}
	if entityType != model.EntityHealthSystem {
		f.IsLimitedPartner = nil
		f.IsAllianceMember = nil
	}
	return f
}

// parseAction converts one raw action object. ok is false when the object
// cannot be turned into a supported action.
func parseAction(raw rawObject) (model.Action, bool) {
	kindText := raw.str("kind", "type", "action", "actionType", "action_type")
	kind, ok := parseActionKind(kindText)
	if !ok {
		return nil, false
	}

	base := model.ActionBase{
		ID:         uuid.NewString(),
		Include:    true,
		Rationale:  clean(raw.str("rationale", "reason", "explanation")),
		Confidence: model.ClampConfidence(raw.float("confidence", defaultConfidence)),
		Issues:     []string{},
	}

	switch kind {
	case model.KindCreateEntity:
		return parseCreate(raw, kindText, base)
	case model.KindUpdateEntity:
		return parseUpdate(raw, kindText, base)
	case model.KindAddContact:
		return parseContact(raw, base)
	case model.KindLinkCompanyCoInvestor:
		return parseLink(raw, base)
	case kindLinkCompanyHealthSystem:
		return parseCompanyHealthSystemLink(raw, base)
	}
	return nil, false
}

func parseCreate(raw rawObject, kindText string, base model.ActionBase) (model.Action, bool) {
	draftSource := raw.merged("draft", "fields", "entity", "data")
	entityType, ok := inferEntityTypeFromActionSource(raw, kindText, parseFields(draftSource, ""))
	if !ok {
		return nil, false
	}

	draft := stripForeignFields(parseFields(draftSource, entityType), entityType)
	if draft.Name == "" {
		return nil, false
	}

	return model.CreateEntityAction{
		ActionBase:      base,
		EntityType:      entityType,
		Draft:           draft,
		ExistingMatches: []model.EntityMatch{},
		WebCandidates:   []model.WebCandidate{},
		Selection:       model.CreateManual(),
	}, true
}

func parseUpdate(raw rawObject, kindText string, base model.ActionBase) (model.Action, bool) {
	patchSource := raw.obj("patch", "fields", "updates", "changes", "data")
	entityType, ok := inferEntityTypeFromActionSource(raw, kindText, parseFields(patchSource, ""))
	if !ok {
		return nil, false
	}

	target := normalize.Name(raw.str("targetName", "target_name", "target", "entityName", "name"), entityType)
	if target == "" {
		return nil, false
	}

	patch := stripForeignFields(parseFields(patchSource, entityType), entityType)
	if normalize.Equal(patch.Name, target) {
		patch.Name = ""
	}
	if patch.IsEmpty() {
		return nil, false
	}

	return model.UpdateEntityAction{
		ActionBase:    base,
		EntityType:    entityType,
		TargetName:    target,
		Patch:         patch,
		TargetMatches: []model.EntityMatch{},
	}, true
}

func parseContact(raw rawObject, base model.ActionBase) (model.Action, bool) {
	var parentType model.EntityType
	for _, key := range []string{"parentType", "parent_type", "entityType", "entity_type"} {
		if t, ok := parseEntityType(raw.str(key)); ok {
			parentType = t
			break
		}
	}
	if parentType == "" {
		return nil, false
	}

	parentName := normalize.Name(raw.str("parentName", "parent_name", "parent", "organization", "entityName"), parentType)
	source := raw.merged("contact", "person")
	contact := model.Contact{
		Name:        normalize.Name(source.str("name", "contactName", "contact_name", "fullName"), ""),
		Title:       clean(source.str("title", "role", "position")),
		Email:       strings.ToLower(clean(source.str("email"))),
		Phone:       clean(source.str("phone", "phoneNumber")),
		LinkedInURL: clean(source.str("linkedinUrl", "linkedin_url", "linkedin")),
	}
	if parentName == "" || contact.Name == "" {
		return nil, false
	}

	return model.AddContactAction{
		ActionBase:    base,
		ParentType:    parentType,
		ParentName:    parentName,
		RoleType:      parseRoleType(raw.str("roleType", "role_type", "role"), parentType),
		Contact:       contact,
		ParentMatches: []model.EntityMatch{},
	}, true
}

func parseLink(raw rawObject, base model.ActionBase) (model.Action, bool) {
	company := normalize.Name(raw.str("companyName", "company_name", "company"), model.EntityCompany)
	coInvestor := normalize.Name(raw.str("coInvestorName", "co_investor_name", "coInvestor", "investorName", "investor", "fund"), model.EntityCoInvestor)
	if company == "" || coInvestor == "" {
		return nil, false
	}

	return model.LinkCompanyCoInvestorAction{
		ActionBase:          base,
		CompanyName:         company,
		CoInvestorName:      coInvestor,
		RelationshipType:    parseRelationshipType(raw.str("relationshipType", "relationship_type", "relationship")),
		Notes:               clean(raw.str("notes", "note")),
		InvestmentAmountUSD: raw.amount("investmentAmountUsd", "investment_amount_usd", "amount", "investmentAmount"),
		CompanyMatches:      []model.EntityMatch{},
		CoInvestorMatches:   []model.EntityMatch{},
	}, true
}

func parseCompanyHealthSystemLink(raw rawObject, base model.ActionBase) (model.Action, bool) {
	company := normalize.Name(raw.str("companyName", "company_name", "company", "targetName"), model.EntityCompany)
	healthSystem := normalize.Name(raw.str("healthSystemName", "health_system_name", "healthSystem", "leadSource"), model.EntityHealthSystem)
	if company == "" || healthSystem == "" {
		return nil, false
	}

	return model.UpdateEntityAction{
		ActionBase: base.AddIssue(LeadSourceSubstitutionIssue),
		EntityType: model.EntityCompany,
		TargetName: company,
		Patch: model.EntityPatch{
			LeadSourceType:             model.LeadSourceHealthSystem,
			LeadSourceHealthSystemName: healthSystem,
		},
		TargetMatches: []model.EntityMatch{},
	}, true
}

// canonicalToken upper-cases s and joins its words with underscores.
// camelCase boundaries count as word breaks.
func canonicalToken(s string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range s {
		switch {
		case r == '-' || r == '_' || r == '/' || r == '.':
			r = ' '
		case unicode.IsUpper(r) && prevLower:
			b.WriteRune(' ')
		}
		prevLower = unicode.IsLower(r)
		b.WriteRune(r)
	}
	return strings.ToUpper(strings.Join(strings.Fields(b.String()), "_"))
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// rawObject is one untrusted JSON object from the model
type rawObject map[string]any

// str returns the first non-empty string (or number) under keys
func (o rawObject) str(keys ...string) string {
	for _, key := range keys {
		switch v := o[key].(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// obj returns the first nested object under keys, or an empty object
func (o rawObject) obj(keys ...string) rawObject {
	for _, key := range keys {
		if v, ok := o[key].(map[string]any); ok {
			return rawObject(v)
		}
	}
	return rawObject{}
}

// merged overlays the first nested object under keys onto o's top-level
// fields; nested values win
func (o rawObject) merged(keys ...string) rawObject {
	out := make(rawObject, len(o))
	for k, v := range o {
		out[k] = v
	}
	for k, v := range o.obj(keys...) {
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		out[k] = v
	}
	return out
}

func (o rawObject) float(key string, fallback float64) float64 {
	switch v := o[key].(type) {
	case float64:
		return v
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return fallback
}

func (o rawObject) boolPtr(keys ...string) *bool {
	for _, key := range keys {
		switch v := o[key].(type) {
		case bool:
			return &v
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				return &b
			}
		}
	}
	return nil
}

// amount reads a USD amount given as a number or as text like "$2.5M"
func (o rawObject) amount(keys ...string) *float64 {
	for _, key := range keys {
		switch v := o[key].(type) {
		case float64:
			if v > 0 {
				return &v
			}
		case string:
			if f, ok := parseAmount(v); ok {
				return &f
			}
		}
	}
	return nil
}

func parseAmount(s string) (float64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("$", "", ",", "", "usd", "", " ", "").Replace(s)
	multiplier := 1.0
	switch {
	case strings.HasSuffix(s, "bn"):
		multiplier, s = 1e9, strings.TrimSuffix(s, "bn")
	case strings.HasSuffix(s, "b"):
		multiplier, s = 1e9, strings.TrimSuffix(s, "b")
	case strings.HasSuffix(s, "mm"):
		multiplier, s = 1e6, strings.TrimSuffix(s, "mm")
	case strings.HasSuffix(s, "m"):
		multiplier, s = 1e6, strings.TrimSuffix(s, "m")
	case strings.HasSuffix(s, "k"):
		multiplier, s = 1e3, strings.TrimSuffix(s, "k")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return f * multiplier, true
}
