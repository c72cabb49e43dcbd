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

const researchColumns = `id, entity_type, entity_id, status, attempts, last_error, created_at, updated_at`

func scanResearchJob(row rowScanner) (*model.ResearchJob, error) {
	var job model.ResearchJob
	var createdAt, updatedAt string
	if err := row.Scan(&job.ID, &job.EntityType, &job.EntityID, &job.Status, &job.Attempts, &job.LastError, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	job.CreatedAt = store.ParseTime(createdAt)
	job.UpdatedAt = store.ParseTime(updatedAt)
	return &job, nil
}

// EnqueueResearch queues enrichment for an entity. An entity with a job
// already pending gets that job back.
func (c *Client) EnqueueResearch(ctx context.Context, entityType model.EntityType, entityID string) (*model.ResearchJob, error) {
	row := c.q.QueryRowContext(ctx,
		`SELECT `+researchColumns+` FROM research_jobs WHERE entity_type = ? AND entity_id = ? AND status = ?`,
		string(entityType), entityID, model.ResearchPending)
	job, err := scanResearchJob(row)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrap(err, "sqlite: find pending research job")
	}

	now := c.now()
	job = &model.ResearchJob{
		ID:         store.NewID(),
		EntityType: entityType,
		EntityID:   entityID,
		Status:     model.ResearchPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err = c.q.ExecContext(ctx, `
	INSERT INTO research_jobs (id, entity_type, entity_id, status, attempts, last_error, created_at, updated_at)
	VALUES (?, ?, ?, ?, 0, '', ?, ?)
	`, job.ID, string(job.EntityType), job.EntityID, job.Status, store.FormatTime(now), store.FormatTime(now))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: enqueue research")
	}
	return job, nil
}

// ListResearchJobs returns jobs in the given status, oldest first
func (c *Client) ListResearchJobs(ctx context.Context, status string, limit int) ([]model.ResearchJob, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT `+researchColumns+` FROM research_jobs WHERE status = ? ORDER BY created_at, id LIMIT ?`,
		status, store.NormalizeLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list research jobs")
	}
	defer func() { _ = rows.Close() }()

	jobs := make([]model.ResearchJob, 0)
	for rows.Next() {
		job, err := scanResearchJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan research job")
		}
		jobs = append(jobs, *job)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: iterate research jobs")
}

// MarkResearchJob records an attempt and its outcome
func (c *Client) MarkResearchJob(ctx context.Context, id, status, lastError string) error {
	res, err := c.q.ExecContext(ctx,
		`UPDATE research_jobs SET status = ?, last_error = ?, attempts = attempts + 1, updated_at = ? WHERE id = ?`,
		status, lastError, c.timestamp(), id)
	if err != nil {
		return eris.Wrap(err, "sqlite: mark research job")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("research job %s: %w", id, store.ErrNotFound)
	}
	return nil
}
