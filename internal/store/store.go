// Package store defines the entity store contract the engine reads and
// mutates, with sqlite and postgres implementations in subpackages.
package store

import (
	"context"
	"errors"

	"github.com/ppiankov/dealdesk/internal/model"
)

// ErrNotFound is returned when a record lookup by id or key finds nothing
var ErrNotFound = errors.New("store: not found")

// Store is the persistence contract. Implementations must make every
// operation run on the transaction when called through WithTx.
type Store interface {
	Close(ctx context.Context) error
	EnsureSchema(ctx context.Context) error

	// FindEntities matches nameFilter case-insensitively against entity
	// names (equality or substring). An empty filter lists entities.
	FindEntities(ctx context.Context, entityType model.EntityType, nameFilter string, limit int) ([]model.EntityRecord, error)
	GetEntity(ctx context.Context, entityType model.EntityType, id string) (*model.EntityRecord, error)
	CreateEntity(ctx context.Context, entityType model.EntityType, fields model.EntityFields) (*model.EntityRecord, error)
	UpdateEntity(ctx context.Context, entityType model.EntityType, id string, patch model.EntityPatch) (*model.EntityRecord, error)

	FindContact(ctx context.Context, name, email string) (*model.ContactRecord, error)
	CreateContact(ctx context.Context, contact model.Contact) (*model.ContactRecord, error)
	UpsertContactRole(ctx context.Context, link model.ContactLink) error
	ListContactRoles(ctx context.Context, parentType model.EntityType, parentID string) ([]model.ContactLink, error)

	UpsertCompanyCoInvestorLink(ctx context.Context, link model.CompanyCoInvestorLink) (*model.CompanyCoInvestorLink, error)
	ListCompanyCoInvestorLinks(ctx context.Context, companyID string) ([]model.CompanyCoInvestorLink, error)

	// FindVenturePartnerHealthSystem returns the health system a co-investor
	// was set up with, or "" when it has none.
	FindVenturePartnerHealthSystem(ctx context.Context, coInvestorID string) (string, error)
	UpsertVenturePartner(ctx context.Context, coInvestorID, healthSystemID string) error

	EnqueueResearch(ctx context.Context, entityType model.EntityType, entityID string) (*model.ResearchJob, error)
	ListResearchJobs(ctx context.Context, status string, limit int) ([]model.ResearchJob, error)
	MarkResearchJob(ctx context.Context, id, status, lastError string) error

	// WithTx runs fn against a Store bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	// Nested calls reuse the outer transaction.
	WithTx(ctx context.Context, fn func(Store) error) error
}
