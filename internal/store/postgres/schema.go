package postgres

import (
	"context"

	"github.com/rotisserie/eris"
)

var ddl = []string{
	`CREATE TABLE IF NOT EXISTS entities (
	id                           TEXT PRIMARY KEY,
	entity_type                  TEXT NOT NULL,
	name                         TEXT NOT NULL,
	name_normalized              TEXT NOT NULL,
	website                      TEXT NOT NULL DEFAULT '',
	headquarters_city            TEXT NOT NULL DEFAULT '',
	headquarters_state           TEXT NOT NULL DEFAULT '',
	headquarters_country         TEXT NOT NULL DEFAULT '',
	description                  TEXT NOT NULL DEFAULT '',
	company_type                 TEXT NOT NULL DEFAULT '',
	primary_category             TEXT NOT NULL DEFAULT '',
	lead_source_type             TEXT NOT NULL DEFAULT '',
	lead_source_health_system_id TEXT REFERENCES entities(id) ON DELETE SET NULL,
	lead_source_other            TEXT NOT NULL DEFAULT '',
	attributes                   JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at                   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at                   TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS contacts (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	name_normalized TEXT NOT NULL,
	title           TEXT NOT NULL DEFAULT '',
	email           TEXT NOT NULL DEFAULT '',
	phone           TEXT NOT NULL DEFAULT '',
	linkedin_url    TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS contact_roles (
	parent_type TEXT NOT NULL,
	parent_id   TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
	contact_id  TEXT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
	role_type   TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT uq_contact_role UNIQUE (parent_type, parent_id, contact_id, role_type)
)`,
	`CREATE TABLE IF NOT EXISTS company_co_investor_links (
	id                    TEXT PRIMARY KEY,
	company_id            TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
	co_investor_id        TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
	relationship_type     TEXT NOT NULL,
	notes                 TEXT NOT NULL DEFAULT '',
	investment_amount_usd DOUBLE PRECISION,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT uq_company_co_investor UNIQUE (company_id, co_investor_id)
)`,
	`CREATE TABLE IF NOT EXISTS venture_partners (
	co_investor_id   TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
	health_system_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT uq_venture_partner UNIQUE (co_investor_id, health_system_id)
)`,
	`CREATE TABLE IF NOT EXISTS research_jobs (
	id          TEXT PRIMARY KEY,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
	status      TEXT NOT NULL,
	attempts    INTEGER NOT NULL DEFAULT 0,
	last_error  TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS idx_entities_type_name ON entities (entity_type, name_normalized)`,
	`CREATE INDEX IF NOT EXISTS idx_contacts_name ON contacts (name_normalized)`,
	`CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts (lower(email))`,
	`CREATE INDEX IF NOT EXISTS idx_contact_roles_parent ON contact_roles (parent_type, parent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_links_company ON company_co_investor_links (company_id)`,
	`CREATE INDEX IF NOT EXISTS idx_research_status ON research_jobs (status, created_at)`,
}

// EnsureSchema creates tables and indexes if they do not exist
func (c *Client) EnsureSchema(ctx context.Context) error {
	for _, stmt := range ddl {
		if _, err := c.q.Exec(ctx, stmt); err != nil {
			return eris.Wrap(err, "postgres: ensure schema")
		}
	}
	return nil
}
