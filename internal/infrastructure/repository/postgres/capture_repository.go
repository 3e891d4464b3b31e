package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ikolomin/siterag/internal/core/domain"
)

// CaptureRepository persists capture job state.
type CaptureRepository struct {
	db *sql.DB
}

func NewCaptureRepository(db *sql.DB) *CaptureRepository {
	return &CaptureRepository{db: db}
}

func (r *CaptureRepository) Create(ctx context.Context, job *domain.CaptureJob) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO capture_jobs
  (id, url, mode, allow_backward_links, clear_existing, status,
   pages_indexed, passages_indexed, error_message, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`, job.ID, job.URL, string(job.Mode), job.AllowBackwardLinks, job.ClearExisting,
		string(job.Status), job.PagesIndexed, job.PassagesIndexed, job.Error,
		job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create capture job: %w", err)
	}
	return nil
}

func (r *CaptureRepository) GetByID(ctx context.Context, id string) (*domain.CaptureJob, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, url, mode, allow_backward_links, clear_existing, status,
       pages_indexed, passages_indexed, error_message, created_at, updated_at
FROM capture_jobs
WHERE id = $1
`, id)

	var job domain.CaptureJob
	var mode, status string
	err := row.Scan(&job.ID, &job.URL, &mode, &job.AllowBackwardLinks, &job.ClearExisting,
		&status, &job.PagesIndexed, &job.PassagesIndexed, &job.Error,
		&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get capture job", err)
		}
		return nil, fmt.Errorf("get capture job: %w", err)
	}
	job.Mode = domain.CaptureMode(mode)
	job.Status = domain.CaptureStatus(status)
	return &job, nil
}

func (r *CaptureRepository) UpdateStatus(ctx context.Context, id string, status domain.CaptureStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE capture_jobs
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update capture status: %w", err)
	}
	return ensureRowUpdated(res, "update capture status")
}

func (r *CaptureRepository) UpdateCounts(ctx context.Context, id string, pages, passages int) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE capture_jobs
SET pages_indexed = $2, passages_indexed = $3, updated_at = $4
WHERE id = $1
`, id, pages, passages, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update capture counts: %w", err)
	}
	return ensureRowUpdated(res, "update capture counts")
}

func ensureRowUpdated(res sql.Result, operation string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, operation, sql.ErrNoRows)
	}
	return nil
}
