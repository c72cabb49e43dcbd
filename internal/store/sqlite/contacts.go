package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/dealdesk/internal/model"
	"github.com/ppiankov/dealdesk/internal/store"
)

const contactColumns = `id, name, title, email, phone, linkedin_url, created_at`

func scanContact(row rowScanner) (*model.ContactRecord, error) {
	var rec model.ContactRecord
	var createdAt string
	if err := row.Scan(&rec.ID, &rec.Name, &rec.Title, &rec.Email, &rec.Phone, &rec.LinkedInURL, &createdAt); err != nil {
		return nil, err
	}
	rec.CreatedAt = store.ParseTime(createdAt)
	return &rec, nil
}

// FindContact looks a contact up by email when given, else by normalized name
func (c *Client) FindContact(ctx context.Context, name, email string) (*model.ContactRecord, error) {
	var row *sql.Row
	if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
		row = c.q.QueryRowContext(ctx,
			`SELECT `+contactColumns+` FROM contacts WHERE lower(email) = ? ORDER BY created_at LIMIT 1`, email)
	} else {
		row = c.q.QueryRowContext(ctx,
			`SELECT `+contactColumns+` FROM contacts WHERE name_normalized = ? ORDER BY created_at LIMIT 1`, store.NameKey(name))
	}

	rec, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("contact %q: %w", name, store.ErrNotFound)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find contact")
	}
	return rec, nil
}

// CreateContact inserts a contact
func (c *Client) CreateContact(ctx context.Context, contact model.Contact) (*model.ContactRecord, error) {
	contact.Name = strings.TrimSpace(contact.Name)
	if contact.Name == "" {
		return nil, eris.New("sqlite: contact name is required")
	}

	rec := model.ContactRecord{ID: store.NewID(), Contact: contact, CreatedAt: c.now()}
	_, err := c.q.ExecContext(ctx, `
	INSERT INTO contacts (id, name, name_normalized, title, email, phone, linkedin_url, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Name, store.NameKey(rec.Name), rec.Title, strings.TrimSpace(rec.Email), rec.Phone, rec.LinkedInURL, store.FormatTime(rec.CreatedAt))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: create contact")
	}
	return &rec, nil
}

// UpsertContactRole links a contact to a parent entity; repeating it is a no-op
func (c *Client) UpsertContactRole(ctx context.Context, link model.ContactLink) error {
	_, err := c.q.ExecContext(ctx, `
	INSERT INTO contact_roles (parent_type, parent_id, contact_id, role_type, created_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (parent_type, parent_id, contact_id, role_type) DO NOTHING
	`, string(link.ParentType), link.ParentID, link.ContactID, string(link.RoleType), c.timestamp())
	if err != nil {
		return eris.Wrap(err, "sqlite: upsert contact role")
	}
	return nil
}

// ListContactRoles returns the contacts attached to a parent entity
func (c *Client) ListContactRoles(ctx context.Context, parentType model.EntityType, parentID string) ([]model.ContactLink, error) {
	rows, err := c.q.QueryContext(ctx, `
	SELECT r.parent_type, r.parent_id, r.contact_id, r.role_type,
		c.id, c.name, c.title, c.email, c.phone, c.linkedin_url, c.created_at
	FROM contact_roles r
	JOIN contacts c ON c.id = r.contact_id
	WHERE r.parent_type = ? AND r.parent_id = ?
	ORDER BY r.created_at, c.name
	`, string(parentType), parentID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list contact roles")
	}
	defer func() { _ = rows.Close() }()

	links := make([]model.ContactLink, 0)
	for rows.Next() {
		var link model.ContactLink
		var contact model.ContactRecord
		var createdAt string
		if err := rows.Scan(&link.ParentType, &link.ParentID, &link.ContactID, &link.RoleType,
			&contact.ID, &contact.Name, &contact.Title, &contact.Email, &contact.Phone, &contact.LinkedInURL, &createdAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan contact role")
		}
		contact.CreatedAt = store.ParseTime(createdAt)
		link.Contact = &contact
		links = append(links, link)
	}
	return links, eris.Wrap(rows.Err(), "sqlite: iterate contact roles")
}
