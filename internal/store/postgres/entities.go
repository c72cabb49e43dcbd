package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/ppiankov/dealdesk/internal/model"
	"github.com/ppiankov/dealdesk/internal/store"
)

const entityColumns = `id, entity_type, name, website, headquarters_city, headquarters_state,
	headquarters_country, description, company_type, primary_category, lead_source_type,
	lead_source_health_system_id, lead_source_other, attributes, created_at, updated_at`

func scanEntity(row pgx.Row) (*model.EntityRecord, error) {
	var (
		rec          model.EntityRecord
		leadSourceID *string
		attrs        []byte
	)
	err := row.Scan(
		&rec.ID,
		&rec.EntityType,
		&rec.Name,
		&rec.Website,
		&rec.HeadquartersCity,
		&rec.HeadquartersState,
		&rec.HeadquartersCountry,
		&rec.Description,
		&rec.CompanyType,
		&rec.PrimaryCategory,
		&rec.LeadSourceType,
		&leadSourceID,
		&rec.LeadSourceOther,
		&attrs,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if leadSourceID != nil {
		rec.LeadSourceHealthSystemID = *leadSourceID
	}
	if err := store.DecodeAttributes(attrs, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindEntities returns entities whose normalized name equals or contains the
// normalized filter, exact matches first
func (c *Client) FindEntities(ctx context.Context, entityType model.EntityType, nameFilter string, limit int) ([]model.EntityRecord, error) {
	key := store.NameKey(nameFilter)

	query := `
SELECT ` + entityColumns + `
FROM entities
WHERE entity_type = $1
  AND ($2 = '' OR strpos(name_normalized, $2) > 0)
ORDER BY CASE WHEN name_normalized = $2 THEN 0 ELSE 1 END, name, id
LIMIT $3
`

	rows, err := c.q.Query(ctx, query, string(entityType), key, store.NormalizeLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find entities")
	}
	defer rows.Close()

	records := make([]model.EntityRecord, 0)
	for rows.Next() {
		rec, err := scanEntity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan entity")
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate entities")
	}
	return records, nil
}

// GetEntity loads one entity by type and id
func (c *Client) GetEntity(ctx context.Context, entityType model.EntityType, id string) (*model.EntityRecord, error) {
	row := c.q.QueryRow(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = $1 AND entity_type = $2`,
		id, string(entityType),
	)
	rec, err := scanEntity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", entityType.Label(), id, store.ErrNotFound)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get entity")
	}
	return rec, nil
}

// CreateEntity inserts a new entity built from fields
func (c *Client) CreateEntity(ctx context.Context, entityType model.EntityType, fields model.EntityFields) (*model.EntityRecord, error) {
	rec, err := store.NewEntityRecord(entityType, fields, c.timestamp())
	if err != nil {
		return nil, err
	}
	if err := c.checkLeadSource(ctx, rec); err != nil {
		return nil, err
	}

	attrs, err := store.EncodeAttributes(rec)
	if err != nil {
		return nil, err
	}

	_, err = c.q.Exec(ctx, `
INSERT INTO entities (id, entity_type, name, name_normalized, website, headquarters_city,
    headquarters_state, headquarters_country, description, company_type, primary_category,
    lead_source_type, lead_source_health_system_id, lead_source_other, attributes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
`,
		rec.ID,
		string(rec.EntityType),
		rec.Name,
		store.NameKey(rec.Name),
		rec.Website,
		rec.HeadquartersCity,
		rec.HeadquartersState,
		rec.HeadquartersCountry,
		rec.Description,
		rec.CompanyType,
		rec.PrimaryCategory,
		string(rec.LeadSourceType),
		nullable(rec.LeadSourceHealthSystemID),
		rec.LeadSourceOther,
		attrs,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create entity")
	}
	return &rec, nil
}

// UpdateEntity applies patch to an existing entity
func (c *Client) UpdateEntity(ctx context.Context, entityType model.EntityType, id string, patch model.EntityPatch) (*model.EntityRecord, error) {
	current, err := c.GetEntity(ctx, entityType, id)
	if err != nil {
		return nil, err
	}

	rec := store.ApplyPatch(*current, patch)
	rec.UpdatedAt = c.timestamp()
	if err := store.ValidateUpdate(rec); err != nil {
		return nil, err
	}
	if err := c.checkLeadSource(ctx, rec); err != nil {
		return nil, err
	}

	attrs, err := store.EncodeAttributes(rec)
	if err != nil {
		return nil, err
	}

	_, err = c.q.Exec(ctx, `
UPDATE entities SET
    name = $1, name_normalized = $2, website = $3, headquarters_city = $4, headquarters_state = $5,
    headquarters_country = $6, description = $7, company_type = $8, primary_category = $9,
    lead_source_type = $10, lead_source_health_system_id = $11, lead_source_other = $12,
    attributes = $13, updated_at = $14
WHERE id = $15
`,
		rec.Name,
		store.NameKey(rec.Name),
		rec.Website,
		rec.HeadquartersCity,
		rec.HeadquartersState,
		rec.HeadquartersCountry,
		rec.Description,
		rec.CompanyType,
		rec.PrimaryCategory,
		string(rec.LeadSourceType),
		nullable(rec.LeadSourceHealthSystemID),
		rec.LeadSourceOther,
		attrs,
		rec.UpdatedAt,
		rec.ID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: update entity")
	}
	return &rec, nil
}

func (c *Client) checkLeadSource(ctx context.Context, rec model.EntityRecord) error {
	if rec.LeadSourceHealthSystemID == "" {
		return nil
	}
	if _, err := c.GetEntity(ctx, model.EntityHealthSystem, rec.LeadSourceHealthSystemID); err != nil {
		return eris.Wrapf(err, "lead source health system %s", rec.LeadSourceHealthSystemID)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
