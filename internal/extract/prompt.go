package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/dealdesk/internal/match"
	"github.com/ppiankov/dealdesk/internal/model"
)

// SystemPrompt is the fixed conversational contract sent with every narrative
const SystemPrompt = `You turn a venture analyst's free-form notes into structured CRM actions.

Rules:
- Only use these action kinds: CREATE_ENTITY, UPDATE_ENTITY, ADD_CONTACT, LINK_COMPANY_CO_INVESTOR.
- Never propose deleting anything.
- Entity types are exactly HEALTH_SYSTEM, COMPANY and CO_INVESTOR.
- A health system (hospital network, provider system) is never a co-investor. Investment arms of
  health systems are co-investors only when the notes name the investment vehicle explicitly.
- "X introduced us to Y" means Y is a company whose lead source is X. Record it as the company's
  lead source, not as an investor link, unless X is explicitly an investment vehicle (a fund,
  ventures arm, capital firm).
- Existing records matched with at least %d%% confidence are reused; do not propose creating them again.
- Ask at most one clarification question per turn. Put it in "warnings" as a question ending in "?".
- Put facts you are unsure of in "warnings", never in invented field values.
- Leave fields empty when the notes do not state them.

Return one JSON object with "summary", "actions" and "warnings".`

// actionSchema describes the object the model returns. Parsing is permissive,
// so the schema is guidance rather than a strict contract.
var actionSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "summary": {"type": "string"},
    "warnings": {"type": "array", "items": {"type": "string"}},
    "actions": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "kind": {"type": "string", "enum": ["CREATE_ENTITY", "UPDATE_ENTITY", "ADD_CONTACT", "LINK_COMPANY_CO_INVESTOR"]},
          "entityType": {"type": "string", "enum": ["HEALTH_SYSTEM", "COMPANY", "CO_INVESTOR"]},
          "rationale": {"type": "string"},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1},
          "draft": {"$ref": "#/$defs/fields"},
          "targetName": {"type": "string"},
          "patch": {"$ref": "#/$defs/fields"},
          "parentType": {"type": "string", "enum": ["HEALTH_SYSTEM", "COMPANY", "CO_INVESTOR"]},
          "parentName": {"type": "string"},
          "roleType": {"type": "string", "enum": ["EXECUTIVE", "VENTURE_PARTNER", "INVESTOR_PARTNER", "COMPANY_CONTACT", "OTHER"]},
          "contact": {
            "type": "object",
            "properties": {
              "name": {"type": "string"},
              "title": {"type": "string"},
              "email": {"type": "string"},
              "phone": {"type": "string"},
              "linkedinUrl": {"type": "string"}
            }
          },
          "companyName": {"type": "string"},
          "coInvestorName": {"type": "string"},
          "relationshipType": {"type": "string", "enum": ["INVESTOR", "PARTNER", "OTHER"]},
          "notes": {"type": "string"},
          "investmentAmountUsd": {"type": "number"}
        },
        "required": ["kind"]
      }
    }
  },
  "required": ["summary", "actions", "warnings"],
  "$defs": {
    "fields": {
      "type": "object",
      "properties": {
        "name": {"type": "string"},
        "website": {"type": "string"},
        "headquartersCity": {"type": "string"},
        "headquartersState": {"type": "string"},
        "headquartersCountry": {"type": "string"},
        "description": {"type": "string"},
        "companyType": {"type": "string", "enum": ["STARTUP", "SPIN_OUT", "DENOVO"]},
        "primaryCategory": {"type": "string"},
        "leadSourceType": {"type": "string", "enum": ["HEALTH_SYSTEM", "OTHER"]},
        "leadSourceHealthSystemName": {"type": "string"},
        "leadSourceOther": {"type": "string"},
        "investmentFocus": {"type": "string"},
        "isLimitedPartner": {"type": "boolean"},
        "isAllianceMember": {"type": "boolean"}
      }
    }
  }
}`)

// Schema returns the JSON schema of the extraction response
func Schema() json.RawMessage {
	return actionSchema
}

func systemPrompt() string {
	return fmt.Sprintf(SystemPrompt, int(match.AutoMatchConfidenceThreshold*100))
}

type digestField struct {
	name  string
	types []model.EntityType
	note  string
}

var digestFields = []digestField{
	{"name", model.EntityTypes, "required"},
	{"website", model.EntityTypes, ""},
	{"headquartersCity", model.EntityTypes, ""},
	{"headquartersState", model.EntityTypes, ""},
	{"headquartersCountry", model.EntityTypes, ""},
	{"description", model.EntityTypes, ""},
	{"isLimitedPartner", []model.EntityType{model.EntityHealthSystem}, "boolean"},
	{"isAllianceMember", []model.EntityType{model.EntityHealthSystem}, "boolean"},
	{"companyType", []model.EntityType{model.EntityCompany}, "STARTUP | SPIN_OUT | DENOVO"},
	{"primaryCategory", []model.EntityType{model.EntityCompany}, ""},
	{"leadSourceType", []model.EntityType{model.EntityCompany}, "HEALTH_SYSTEM | OTHER"},
	{"leadSourceHealthSystemName", []model.EntityType{model.EntityCompany}, "health system name when leadSourceType is HEALTH_SYSTEM"},
	{"leadSourceOther", []model.EntityType{model.EntityCompany}, "free text when leadSourceType is OTHER"},
	{"investmentFocus", []model.EntityType{model.EntityCoInvestor}, ""},
}

// BuildModelDigest renders the entity kinds, fields, enums and business
// rules in the compact form sent to the model with every narrative
func BuildModelDigest() string {
	var b strings.Builder
	b.WriteString("ENTITIES\n")
	for _, t := range model.EntityTypes {
		fmt.Fprintf(&b, "%s:", t)
		for _, f := range digestFields {
			if !hasType(f.types, t) {
				continue
			}
			b.WriteString(" " + f.name)
			if f.note != "" {
				b.WriteString(" (" + f.note + ")")
			}
			b.WriteString(";")
		}
		b.WriteString("\n")
	}

	b.WriteString("CONTACT: name (required); title; email; phone; linkedinUrl\n")
	fmt.Fprintf(&b, "CONTACT ROLES: %s | %s | %s | %s | %s\n",
		model.RoleExecutive, model.RoleVenturePartner, model.RoleInvestorPartner, model.RoleCompanyContact, model.RoleOther)
	fmt.Fprintf(&b, "LINK COMPANY<->CO_INVESTOR: relationshipType %s | %s | %s; notes; investmentAmountUsd\n",
		model.RelationshipInvestor, model.RelationshipPartner, model.RelationshipOther)
	b.WriteString("VENTURE PARTNER: a co-investor may be the investment arm of one health system\n")

	b.WriteString("RULES\n")
	b.WriteString("- health systems and co-investors are distinct; never link a health system as a co-investor\n")
	b.WriteString("- company <-> health system relationships are stored only as the company lead source\n")
	b.WriteString("- introductions set the introduced company's lead source\n")
	fmt.Fprintf(&b, "- existing records at >= %.2f match confidence are reused automatically\n", match.AutoMatchConfidenceThreshold)
	b.WriteString("- no deletes\n")
	return b.String()
}

// BuildModelNarrative renders the same model as prose
func BuildModelNarrative() string {
	return strings.Join([]string{
		"The CRM tracks three kinds of organisations: health systems, companies and co-investors.",
		"Health systems are hospital networks that source deals and may be limited partners or alliance members.",
		"Companies are the startups, spin-outs and de novo ventures the team evaluates; each company records a lead source, which is either a health system or free text.",
		"Co-investors are funds and investment firms that invest alongside the team; a co-investor can be the venture arm of a health system.",
		"Contacts are people attached to any organisation with a role such as executive, venture partner or company contact.",
		"Companies are linked to the co-investors that invested in or partnered on them, optionally with an amount.",
		"When someone introduces the team to a company, that introducer is the company's lead source.",
	}, " ")
}

func hasType(types []model.EntityType, t model.EntityType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
