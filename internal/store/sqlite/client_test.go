package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/ppiankov/dealdesk/internal/model"
	"github.com/ppiankov/dealdesk/internal/store"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()
	c, err := New(ctx, "sqlite://:memory:")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := c.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(ctx) })
	return c
}

func TestParseDSN(t *testing.T) {
	tests := []struct {
		input  string
		want   string
		memory bool
	}{
		{"sqlite://:memory:", ":memory:", true},
		{"sqlite://./dealdesk.db", "./dealdesk.db", false},
		{"sqlite:///var/lib/dealdesk.db", "/var/lib/dealdesk.db", false},
		{"sqlite://data/deal%20desk.db?_pragma=busy_timeout(5000)", "./data/deal desk.db?_pragma=busy_timeout(5000)", false},
	}

	for _, tt := range tests {
		got, memory, err := parseDSN(tt.input)
		if err != nil {
			t.Errorf("parseDSN(%q) failed: %v", tt.input, err)
			continue
		}
		if got != tt.want || memory != tt.memory {
			t.Errorf("parseDSN(%q) = %q, %v; want %q, %v", tt.input, got, memory, tt.want, tt.memory)
		}
	}

	if _, _, err := parseDSN("postgres://localhost/db"); err == nil {
		t.Error("expected error for non-sqlite scheme")
	}
}

func TestEntityLifecycle(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	hs, err := c.CreateEntity(ctx, model.EntityHealthSystem, model.EntityFields{Name: "the health system Mercy General", HeadquartersCity: "Austin"})
	if err != nil {
		t.Fatalf("create health system: %v", err)
	}
	if hs.Name != "Mercy General" {
		t.Errorf("expected normalized name, got %q", hs.Name)
	}

	yes := true
	co, err := c.CreateEntity(ctx, model.EntityCompany, model.EntityFields{
		Name:                     "CarePilot",
		CompanyType:              "startup",
		LeadSourceType:           model.LeadSourceHealthSystem,
		LeadSourceHealthSystemID: hs.ID,
		IsAllianceMember:         &yes,
	})
	if err != nil {
		t.Fatalf("create company: %v", err)
	}

	got, err := c.GetEntity(ctx, model.EntityCompany, co.ID)
	if err != nil {
		t.Fatalf("get company: %v", err)
	}
	if got.CompanyType != model.CompanyTypeStartup || got.LeadSourceHealthSystemID != hs.ID || !got.IsAllianceMember {
		t.Errorf("unexpected company %+v", got)
	}

	if _, err := c.GetEntity(ctx, model.EntityHealthSystem, co.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for wrong type, got %v", err)
	}

	updated, err := c.UpdateEntity(ctx, model.EntityCompany, co.ID, model.EntityPatch{
		LeadSourceType:  model.LeadSourceOther,
		LeadSourceOther: "Conference",
		Website:         "https://carepilot.example",
	})
	if err != nil {
		t.Fatalf("update company: %v", err)
	}
	if updated.LeadSourceType != model.LeadSourceOther || updated.LeadSourceHealthSystemID != "" || updated.LeadSourceOther != "Conference" {
		t.Errorf("unexpected lead source after update %+v", updated)
	}
	if updated.Name != "CarePilot" {
		t.Errorf("expected name kept, got %q", updated.Name)
	}
}

func TestCreateEntityValidation(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	if _, err := c.CreateEntity(ctx, model.EntityCompany, model.EntityFields{Name: "  "}); err == nil {
		t.Error("expected error for empty name")
	}
	if _, err := c.CreateEntity(ctx, model.EntityCompany, model.EntityFields{Name: "X", CompanyType: "UNICORN"}); err == nil {
		t.Error("expected error for invalid company type")
	}
	if _, err := c.CreateEntity(ctx, model.EntityCompany, model.EntityFields{Name: "X", LeadSourceHealthSystemID: "missing"}); err == nil {
		t.Error("expected error for unknown lead source health system")
	}
	if _, err := c.CreateEntity(ctx, model.EntityCompany, model.EntityFields{Name: "X", LeadSourceType: model.LeadSourceHealthSystem}); err == nil {
		t.Error("expected error for health system lead source without id")
	}
}

func TestFindEntities(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	for _, name := range []string{"Mercy General Campus", "Mercy General", "Summit Health"} {
		if _, err := c.CreateEntity(ctx, model.EntityHealthSystem, model.EntityFields{Name: name}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	if _, err := c.CreateEntity(ctx, model.EntityCompany, model.EntityFields{Name: "Mercy General"}); err != nil {
		t.Fatalf("create company: %v", err)
	}

	records, err := c.FindEntities(ctx, model.EntityHealthSystem, "MERCY-general", 10)
	if err != nil {
		t.Fatalf("FindEntities failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 health systems, got %d", len(records))
	}
	if records[0].Name != "Mercy General" {
		t.Errorf("expected exact match first, got %q", records[0].Name)
	}

	all, err := c.FindEntities(ctx, model.EntityHealthSystem, "", 0)
	if err != nil || len(all) != 3 {
		t.Errorf("expected 3 records for empty filter, got %d (%v)", len(all), err)
	}
}

func TestContactsAndRoles(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	co, _ := c.CreateEntity(ctx, model.EntityCompany, model.EntityFields{Name: "CarePilot"})

	if _, err := c.FindContact(ctx, "Jane Doe", ""); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	contact, err := c.CreateContact(ctx, model.Contact{Name: "Jane Doe", Email: "Jane@CarePilot.example"})
	if err != nil {
		t.Fatalf("create contact: %v", err)
	}

	byEmail, err := c.FindContact(ctx, "someone else", "jane@carepilot.example")
	if err != nil || byEmail.ID != contact.ID {
		t.Fatalf("expected lookup by email, got %+v %v", byEmail, err)
	}
	byName, err := c.FindContact(ctx, "jane  doe", "")
	if err != nil || byName.ID != contact.ID {
		t.Fatalf("expected lookup by name, got %+v %v", byName, err)
	}

	link := model.ContactLink{ParentType: model.EntityCompany, ParentID: co.ID, ContactID: contact.ID, RoleType: model.RoleCompanyContact}
	for i := 0; i < 2; i++ {
		if err := c.UpsertContactRole(ctx, link); err != nil {
			t.Fatalf("upsert role: %v", err)
		}
	}

	roles, err := c.ListContactRoles(ctx, model.EntityCompany, co.ID)
	if err != nil {
		t.Fatalf("list roles: %v", err)
	}
	if len(roles) != 1 || roles[0].Contact == nil || roles[0].Contact.Name != "Jane Doe" {
		t.Errorf("unexpected roles %+v", roles)
	}
}

func TestCompanyCoInvestorLinkUpsert(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	co, _ := c.CreateEntity(ctx, model.EntityCompany, model.EntityFields{Name: "CarePilot"})
	inv, _ := c.CreateEntity(ctx, model.EntityCoInvestor, model.EntityFields{Name: "Summit Ventures"})

	amount := 1_000_000.0
	first, err := c.UpsertCompanyCoInvestorLink(ctx, model.CompanyCoInvestorLink{
		CompanyID: co.ID, CoInvestorID: inv.ID, Notes: "led seed", InvestmentAmountUSD: &amount,
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if first.RelationshipType != model.RelationshipInvestor {
		t.Errorf("expected default relationship INVESTOR, got %s", first.RelationshipType)
	}

	second, err := c.UpsertCompanyCoInvestorLink(ctx, model.CompanyCoInvestorLink{
		CompanyID: co.ID, CoInvestorID: inv.ID, RelationshipType: model.RelationshipPartner,
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID || second.Notes != "led seed" || second.InvestmentAmountUSD == nil || *second.InvestmentAmountUSD != amount {
		t.Errorf("expected existing notes and amount kept, got %+v", second)
	}
	if second.RelationshipType != model.RelationshipPartner {
		t.Errorf("expected relationship updated, got %s", second.RelationshipType)
	}

	if _, err := c.UpsertCompanyCoInvestorLink(ctx, model.CompanyCoInvestorLink{CompanyID: inv.ID, CoInvestorID: co.ID}); err == nil {
		t.Error("expected error when ids have the wrong entity types")
	}

	links, err := c.ListCompanyCoInvestorLinks(ctx, co.ID)
	if err != nil || len(links) != 1 {
		t.Errorf("expected one link, got %d (%v)", len(links), err)
	}
}

func TestVenturePartners(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	hs, _ := c.CreateEntity(ctx, model.EntityHealthSystem, model.EntityFields{Name: "Mercy General"})
	inv, _ := c.CreateEntity(ctx, model.EntityCoInvestor, model.EntityFields{Name: "Mercy Ventures"})

	id, err := c.FindVenturePartnerHealthSystem(ctx, inv.ID)
	if err != nil || id != "" {
		t.Fatalf("expected no partner, got %q %v", id, err)
	}
	if err := c.UpsertVenturePartner(ctx, inv.ID, hs.ID); err != nil {
		t.Fatalf("upsert partner: %v", err)
	}
	id, err = c.FindVenturePartnerHealthSystem(ctx, inv.ID)
	if err != nil || id != hs.ID {
		t.Errorf("expected %s, got %q %v", hs.ID, id, err)
	}
}

func TestResearchQueue(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	co, _ := c.CreateEntity(ctx, model.EntityCompany, model.EntityFields{Name: "CarePilot"})

	job, err := c.EnqueueResearch(ctx, model.EntityCompany, co.ID)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	again, err := c.EnqueueResearch(ctx, model.EntityCompany, co.ID)
	if err != nil || again.ID != job.ID {
		t.Fatalf("expected pending job reused, got %+v %v", again, err)
	}

	pending, err := c.ListResearchJobs(ctx, model.ResearchPending, 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected one pending job, got %d (%v)", len(pending), err)
	}

	if err := c.MarkResearchJob(ctx, job.ID, model.ResearchDone, ""); err != nil {
		t.Fatalf("mark: %v", err)
	}
	done, _ := c.ListResearchJobs(ctx, model.ResearchDone, 10)
	if len(done) != 1 || done[0].Attempts != 1 {
		t.Errorf("expected one done job with one attempt, got %+v", done)
	}
	if err := c.MarkResearchJob(ctx, "missing", model.ResearchDone, ""); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	boom := errors.New("boom")
	err := c.WithTx(ctx, func(tx store.Store) error {
		if _, err := tx.CreateEntity(ctx, model.EntityCompany, model.EntityFields{Name: "Ghost Co"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	records, _ := c.FindEntities(ctx, model.EntityCompany, "Ghost", 10)
	if len(records) != 0 {
		t.Errorf("expected rollback, found %d records", len(records))
	}

	err = c.WithTx(ctx, func(tx store.Store) error {
		return tx.WithTx(ctx, func(inner store.Store) error {
			_, err := inner.CreateEntity(ctx, model.EntityCompany, model.EntityFields{Name: "Real Co"})
			return err
		})
	})
	if err != nil {
		t.Fatalf("nested tx failed: %v", err)
	}
	records, _ = c.FindEntities(ctx, model.EntityCompany, "Real", 10)
	if len(records) != 1 {
		t.Errorf("expected commit, found %d records", len(records))
	}
}
