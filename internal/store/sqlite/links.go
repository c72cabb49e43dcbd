package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/dealdesk/internal/model"
	"github.com/ppiankov/dealdesk/internal/store"
)

const linkColumns = `id, company_id, co_investor_id, relationship_type, notes, investment_amount_usd, created_at, updated_at`

func scanLink(row rowScanner) (*model.CompanyCoInvestorLink, error) {
	var (
		link                 model.CompanyCoInvestorLink
		amount               sql.NullFloat64
		createdAt, updatedAt string
	)
	if err := row.Scan(&link.ID, &link.CompanyID, &link.CoInvestorID, &link.RelationshipType, &link.Notes, &amount, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if amount.Valid {
		v := amount.Float64
		link.InvestmentAmountUSD = &v
	}
	link.CreatedAt = store.ParseTime(createdAt)
	link.UpdatedAt = store.ParseTime(updatedAt)
	return &link, nil
}

// UpsertCompanyCoInvestorLink creates or refreshes the link between a
// company and a co-investor. Empty notes and a nil amount keep stored values.
func (c *Client) UpsertCompanyCoInvestorLink(ctx context.Context, link model.CompanyCoInvestorLink) (*model.CompanyCoInvestorLink, error) {
	if _, err := c.GetEntity(ctx, model.EntityCompany, link.CompanyID); err != nil {
		return nil, err
	}
	if _, err := c.GetEntity(ctx, model.EntityCoInvestor, link.CoInvestorID); err != nil {
		return nil, err
	}
	if link.RelationshipType == "" {
		link.RelationshipType = model.RelationshipInvestor
	}

	var amount sql.NullFloat64
	if link.InvestmentAmountUSD != nil {
		amount = sql.NullFloat64{Float64: *link.InvestmentAmountUSD, Valid: true}
	}
	now := c.timestamp()

	_, err := c.q.ExecContext(ctx, `
	INSERT INTO company_co_investor_links (id, company_id, co_investor_id, relationship_type, notes, investment_amount_usd, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (company_id, co_investor_id) DO UPDATE SET
		relationship_type = excluded.relationship_type,
		notes = CASE WHEN excluded.notes = '' THEN company_co_investor_links.notes ELSE excluded.notes END,
		investment_amount_usd = COALESCE(excluded.investment_amount_usd, company_co_investor_links.investment_amount_usd),
		updated_at = excluded.updated_at
	`, store.NewID(), link.CompanyID, link.CoInvestorID, string(link.RelationshipType), link.Notes, amount, now, now)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: upsert company co-investor link")
	}

	row := c.q.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM company_co_investor_links WHERE company_id = ? AND co_investor_id = ?`,
		link.CompanyID, link.CoInvestorID)
	saved, err := scanLink(row)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: reload company co-investor link")
	}
	return saved, nil
}

// ListCompanyCoInvestorLinks returns the co-investor links of a company
func (c *Client) ListCompanyCoInvestorLinks(ctx context.Context, companyID string) ([]model.CompanyCoInvestorLink, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT `+linkColumns+` FROM company_co_investor_links WHERE company_id = ? ORDER BY created_at, id`, companyID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list company co-investor links")
	}
	defer func() { _ = rows.Close() }()

	links := make([]model.CompanyCoInvestorLink, 0)
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan company co-investor link")
		}
		links = append(links, *link)
	}
	return links, eris.Wrap(rows.Err(), "sqlite: iterate company co-investor links")
}

// FindVenturePartnerHealthSystem returns the earliest health system paired
// with the co-investor, or ""
func (c *Client) FindVenturePartnerHealthSystem(ctx context.Context, coInvestorID string) (string, error) {
	var id string
	err := c.q.QueryRowContext(ctx,
		`SELECT health_system_id FROM venture_partners WHERE co_investor_id = ? ORDER BY created_at, health_system_id LIMIT 1`,
		coInvestorID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrap(err, "sqlite: find venture partner")
	}
	return id, nil
}

// UpsertVenturePartner pairs a co-investor with its originating health system
func (c *Client) UpsertVenturePartner(ctx context.Context, coInvestorID, healthSystemID string) error {
	if _, err := c.GetEntity(ctx, model.EntityCoInvestor, coInvestorID); err != nil {
		return err
	}
	if _, err := c.GetEntity(ctx, model.EntityHealthSystem, healthSystemID); err != nil {
		return err
	}
	_, err := c.q.ExecContext(ctx, `
	INSERT INTO venture_partners (co_investor_id, health_system_id, created_at)
	VALUES (?, ?, ?)
	ON CONFLICT (co_investor_id, health_system_id) DO NOTHING
	`, coInvestorID, healthSystemID, c.timestamp())
	return eris.Wrap(err, "sqlite: upsert venture partner")
}
