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

const researchColumns = `id, entity_type, entity_id, status, attempts, last_error, created_at, updated_at`

func scanResearchJob(row pgx.Row) (*model.ResearchJob, error) {
	var job model.ResearchJob
	if err := row.Scan(&job.ID, &job.EntityType, &job.EntityID, &job.Status, &job.Attempts, &job.LastError, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return nil, err
	}
	return &job, nil
}

// EnqueueResearch queues enrichment for an entity. An entity with a job
// already pending gets that job back.
func (c *Client) EnqueueResearch(ctx context.Context, entityType model.EntityType, entityID string) (*model.ResearchJob, error) {
	row := c.q.QueryRow(ctx,
		`SELECT `+researchColumns+` FROM research_jobs WHERE entity_type = $1 AND entity_id = $2 AND status = $3`,
		string(entityType), entityID, model.ResearchPending)
	job, err := scanResearchJob(row)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(err, "postgres: find pending research job")
	}

	now := c.timestamp()
	job = &model.ResearchJob{
		ID:         store.NewID(),
		EntityType: entityType,
		EntityID:   entityID,
		Status:     model.ResearchPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err = c.q.Exec(ctx, `
INSERT INTO research_jobs (id, entity_type, entity_id, status, attempts, last_error, created_at, updated_at)
VALUES ($1, $2, $3, $4, 0, '', $5, $5)
`, job.ID, string(job.EntityType), job.EntityID, job.Status, now)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: enqueue research")
	}
	return job, nil
}

// ListResearchJobs returns jobs in the given status, oldest first
func (c *Client) ListResearchJobs(ctx context.Context, status string, limit int) ([]model.ResearchJob, error) {
	rows, err := c.q.Query(ctx,
		`SELECT `+researchColumns+` FROM research_jobs WHERE status = $1 ORDER BY created_at, id LIMIT $2`,
		status, store.NormalizeLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list research jobs")
	}
	defer rows.Close()

	jobs := make([]model.ResearchJob, 0)
	for rows.Next() {
		job, err := scanResearchJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan research job")
		}
		jobs = append(jobs, *job)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: iterate research jobs")
}

// MarkResearchJob records an attempt and its outcome
func (c *Client) MarkResearchJob(ctx context.Context, id, status, lastError string) error {
	tag, err := c.q.Exec(ctx,
		`UPDATE research_jobs SET status = $1, last_error = $2, attempts = attempts + 1, updated_at = $3 WHERE id = $4`,
		status, lastError, c.timestamp(), id)
	if err != nil {
		return eris.Wrap(err, "postgres: mark research job")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("research job %s: %w", id, store.ErrNotFound)
	}
	return nil
}
