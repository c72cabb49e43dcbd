package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/dealdesk/internal/model"
	"github.com/ppiankov/dealdesk/internal/store"
)

const entityColumns = `id, entity_type, name, website, headquarters_city, headquarters_state,
	headquarters_country, description, company_type, primary_category, lead_source_type,
	lead_source_health_system_id, lead_source_other, attributes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*model.EntityRecord, error) {
	var (
		rec                  model.EntityRecord
		leadSourceID         sql.NullString
		attrs                string
		createdAt, updatedAt string
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
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.LeadSourceHealthSystemID = leadSourceID.String
	rec.CreatedAt = store.ParseTime(createdAt)
	rec.UpdatedAt = store.ParseTime(updatedAt)
	if err := store.DecodeAttributes([]byte(attrs), &rec); err != nil {
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
	WHERE entity_type = ?
	  AND (? = '' OR instr(name_normalized, ?) > 0)
	ORDER BY CASE WHEN name_normalized = ? THEN 0 ELSE 1 END, name, id
	LIMIT ?
	`

	rows, err := c.q.QueryContext(ctx, query, string(entityType), key, key, key, store.NormalizeLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find entities")
	}
	defer func() { _ = rows.Close() }()

	records := make([]model.EntityRecord, 0)
	for rows.Next() {
		rec, err := scanEntity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan entity")
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate entities")
	}
	return records, nil
}

// GetEntity loads one entity by type and id
func (c *Client) GetEntity(ctx context.Context, entityType model.EntityType, id string) (*model.EntityRecord, error) {
	row := c.q.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = ? AND entity_type = ?`,
		id, string(entityType),
	)
	rec, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", entityType.Label(), id, store.ErrNotFound)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get entity")
	}
	return rec, nil
}

// CreateEntity inserts a new entity built from fields
func (c *Client) CreateEntity(ctx context.Context, entityType model.EntityType, fields model.EntityFields) (*model.EntityRecord, error) {
	rec, err := store.NewEntityRecord(entityType, fields, c.now())
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

	_, err = c.q.ExecContext(ctx, `
	INSERT INTO entities (id, entity_type, name, name_normalized, website, headquarters_city,
		headquarters_state, headquarters_country, description, company_type, primary_category,
		lead_source_type, lead_source_health_system_id, lead_source_other, attributes, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
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
		nullString(rec.LeadSourceHealthSystemID),
		rec.LeadSourceOther,
		string(attrs),
		store.FormatTime(rec.CreatedAt),
		store.FormatTime(rec.UpdatedAt),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: create entity")
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
	rec.UpdatedAt = c.now()
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

	_, err = c.q.ExecContext(ctx, `
	UPDATE entities SET
		name = ?, name_normalized = ?, website = ?, headquarters_city = ?, headquarters_state = ?,
		headquarters_country = ?, description = ?, company_type = ?, primary_category = ?,
		lead_source_type = ?, lead_source_health_system_id = ?, lead_source_other = ?,
		attributes = ?, updated_at = ?
	WHERE id = ?
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
		nullString(rec.LeadSourceHealthSystemID),
		rec.LeadSourceOther,
		string(attrs),
		store.FormatTime(rec.UpdatedAt),
		rec.ID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: update entity")
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

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
