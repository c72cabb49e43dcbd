package extract

import (
	"testing"

	"github.com/ppiankov/dealdesk/internal/model"
)

func TestParseActionKind(t *testing.T) {
	tests := []struct {
		in   string
		want model.ActionKind
		ok   bool
	}{
		{"CREATE_ENTITY", model.KindCreateEntity, true},
		{"create entity", model.KindCreateEntity, true},
		{"Create-Health-System", model.KindCreateEntity, true},
		{"new_company", model.KindCreateEntity, true},
		{"updateEntity", model.KindUpdateEntity, true},
		{"update entity", model.KindUpdateEntity, true},
		{"mark_company", model.KindUpdateEntity, true},
		{"add contact", model.KindAddContact, true},
		{"add-company-contact", model.KindAddContact, true},
		{"link company co-investor", model.KindLinkCompanyCoInvestor, true},
		{"connect_investor", model.KindLinkCompanyCoInvestor, true},
		{"link company health system", kindLinkCompanyHealthSystem, true},
		{"delete_entity", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := parseActionKind(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseActionKind(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestInferEntityTypeFromActionSource(t *testing.T) {
	tests := []struct {
		name   string
		raw    rawObject
		kind   string
		fields model.EntityFields
		want   model.EntityType
		ok     bool
	}{
		{"explicit type", rawObject{"entityType": "Health System"}, "CREATE_ENTITY", model.EntityFields{}, model.EntityHealthSystem, true},
		{"synonym", rawObject{"entity_type": "VC"}, "CREATE", model.EntityFields{}, model.EntityCoInvestor, true},
		{"kind suffix", rawObject{}, "CREATE_COMPANY", model.EntityFields{}, model.EntityCompany, true},
		{"company fields", rawObject{}, "CREATE", model.EntityFields{CompanyType: model.CompanyTypeStartup}, model.EntityCompany, true},
		{"investor fields", rawObject{}, "CREATE", model.EntityFields{InvestmentFocus: "digital health"}, model.EntityCoInvestor, true},
		{"unknown", rawObject{"entityType": "planet"}, "CREATE", model.EntityFields{}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := inferEntityTypeFromActionSource(tt.raw, tt.kind, tt.fields)
			if got != tt.want || ok != tt.ok {
				t.Errorf("got %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestParseFields_LeadSource(t *testing.T) {
	f := parseFields(rawObject{"name": "CarePilot", "leadSource": "the health system Mercy General"}, model.EntityCompany)
	if f.LeadSourceType != model.LeadSourceHealthSystem || f.LeadSourceHealthSystemName != "Mercy General" {
		t.Errorf("unexpected lead source: %+v", f)
	}

	f = parseFields(rawObject{"name": "CarePilot", "leadSourceType": "other", "leadSourceHealthSystemName": "Conference"}, model.EntityCompany)
	if f.LeadSourceType != model.LeadSourceOther || f.LeadSourceOther != "Conference" || f.LeadSourceHealthSystemName != "" {
		t.Errorf("unexpected other lead source: %+v", f)
	}
}

func TestStripForeignFields(t *testing.T) {
	yes := true
	f := model.EntityFields{Name: "Summit", CompanyType: "STARTUP", InvestmentFocus: "health", IsAllianceMember: &yes}
	got := stripForeignFields(f, model.EntityCoInvestor)
	if got.CompanyType != "" || got.IsAllianceMember != nil || got.InvestmentFocus != "health" {
		t.Errorf("unexpected fields: %+v", got)
	}
}

func TestParseAmount(t *testing.T) {
	tests := map[string]float64{
		"$2.5M":     2_500_000,
		"1,000,000": 1_000_000,
		"750k":      750_000,
		"3 mm":      3_000_000,
		"2bn USD":   2_000_000_000,
		"unknown":   0,
		"-5":        0,
	}
	for in, want := range tests {
		got, ok := parseAmount(in)
		if want == 0 {
			if ok {
				t.Errorf("parseAmount(%q) should fail, got %v", in, got)
			}
			continue
		}
		if !ok || got != want {
			t.Errorf("parseAmount(%q) = %v, %v; want %v", in, got, ok, want)
		}
	}
}
