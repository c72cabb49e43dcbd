package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/ppiankov/dealdesk/internal/model"
	"github.com/ppiankov/dealdesk/internal/store"
)

const contactColumns = `id, name, title, email, phone, linkedin_url, created_at`

func scanContact(row pgx.Row) (*model.ContactRecord, error) {
	var rec model.ContactRecord
	if err := row.Scan(&rec.ID, &rec.Name, &rec.Title, &rec.Email, &rec.Phone, &rec.LinkedInURL, &rec.CreatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindContact looks a contact up by email when given, else by normalized name
func (c *Client) FindContact(ctx context.Context, name, email string) (*model.ContactRecord, error) {
	var row pgx.Row
	if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
		row = c.q.QueryRow(ctx,
			`SELECT `+contactColumns+` FROM contacts WHERE lower(email) = $1 ORDER BY created_at LIMIT 1`, email)
	} else {
		row = c.q.QueryRow(ctx,
			`SELECT `+contactColumns+` FROM contacts WHERE name_normalized = $1 ORDER BY created_at LIMIT 1`, store.NameKey(name))
	}

	rec, err := scanContact(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("contact %q: %w", name, store.ErrNotFound)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find contact")
	}
	return rec, nil
}

// CreateContact inserts a contact
func (c *Client) CreateContact(ctx context.Context, contact model.Contact) (*model.ContactRecord, error) {
	contact.Name = strings.TrimSpace(contact.Name)
	if contact.Name == "" {
		return nil, eris.New("postgres: contact name is required")
	}

	rec := model.ContactRecord{ID: store.NewID(), Contact: contact, CreatedAt: c.timestamp()}
	_, err := c.q.Exec(ctx, `
INSERT INTO contacts (id, name, name_normalized, title, email, phone, linkedin_url, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`, rec.ID, rec.Name, store.NameKey(rec.Name), rec.Title, strings.TrimSpace(rec.Email), rec.Phone, rec.LinkedInURL, rec.CreatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create contact")
	}
	return &rec, nil
}

// UpsertContactRole links a contact to a parent entity; repeating it is a no-op
func (c *Client) UpsertContactRole(ctx context.Context, link model.ContactLink) error {
	_, err := c.q.Exec(ctx, `
INSERT INTO contact_roles (parent_type, parent_id, contact_id, role_type, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (parent_type, parent_id, contact_id, role_type) DO NOTHING
`, string(link.ParentType), link.ParentID, link.ContactID, string(link.RoleType), c.timestamp())
	return eris.Wrap(err, "postgres: upsert contact role")
}

// ListContactRoles returns the contacts attached to a parent entity
func (c *Client) ListContactRoles(ctx context.Context, parentType model.EntityType, parentID string) ([]model.ContactLink, error) {
	rows, err := c.q.Query(ctx, `
SELECT r.parent_type, r.parent_id, r.contact_id, r.role_type,
    c.id, c.name, c.title, c.email, c.phone, c.linkedin_url, c.created_at
FROM contact_roles r
JOIN contacts c ON c.id = r.contact_id
WHERE r.parent_type = $1 AND r.parent_id = $2
ORDER BY r.created_at, c.name
`, string(parentType), parentID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list contact roles")
	}
	defer rows.Close()

	links := make([]model.ContactLink, 0)
	for rows.Next() {
		var link model.ContactLink
		var contact model.ContactRecord
		if err := rows.Scan(&link.ParentType, &link.ParentID, &link.ContactID, &link.RoleType,
			&contact.ID, &contact.Name, &contact.Title, &contact.Email, &contact.Phone, &contact.LinkedInURL, &contact.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan contact role")
		}
		link.Contact = &contact
		links = append(links, link)
	}
	return links, eris.Wrap(rows.Err(), "postgres: iterate contact roles")
}
