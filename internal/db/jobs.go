package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bobarin/facelessrender/internal/models"
)

const renderJobColumns = `
	id, status, request, progress, output_path, output_url, storage_key,
	report, error_message, attempts, started_at, finished_at, created_at, updated_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRenderJob(row rowScanner) (*models.RenderJob, error) {
	job := &models.RenderJob{}
	err := row.Scan(
		&job.ID, &job.Status, &job.Request, &job.Progress,
		&job.OutputPath, &job.OutputURL, &job.StorageKey,
		&job.Report, &job.ErrorMessage, &job.Attempts,
		&job.StartedAt, &job.FinishedAt, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (db *DB) CreateRenderJob(ctx context.Context, job *models.RenderJob) error {
	query := `
		INSERT INTO render_jobs (id, status, request, progress, attempts)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		job.ID, job.Status, job.Request, job.Progress, job.Attempts,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
}

func (db *DB) GetRenderJob(ctx context.Context, id uuid.UUID) (*models.RenderJob, error) {
	query := `SELECT ` + renderJobColumns + ` FROM render_jobs WHERE id = $1`

	job, err := scanRenderJob(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("render job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get render job: %w", err)
	}
	return job, nil
}

// ListRenderJobs returns jobs ordered by creation date (newest first), with an
// optional status filter, and the total count for the same filter.
func (db *DB) ListRenderJobs(ctx context.Context, status string, limit, offset int) ([]models.RenderJob, int, error) {
	var (
		rows  *sql.Rows
		err   error
		total int
	)

	baseSelect := `SELECT ` + renderJobColumns + ` FROM render_jobs`

	if status != "" {
		query := baseSelect + ` WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		rows, err = db.QueryContext(ctx, query, status, limit, offset)
	} else {
		query := baseSelect + ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		rows, err = db.QueryContext(ctx, query, limit, offset)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list render jobs: %w", err)
	}
	defer rows.Close()

	jobs := []models.RenderJob{}
	for rows.Next() {
		job, err := scanRenderJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan render job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list render jobs: %w", err)
	}

	if status != "" {
		err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM render_jobs WHERE status = $1`, status).Scan(&total)
	} else {
		err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM render_jobs`).Scan(&total)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count render jobs: %w", err)
	}

	return jobs, total, nil
}

// MarkRunning moves a job to running and counts the attempt.
func (db *DB) MarkRunning(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE render_jobs
		SET status = $1, started_at = $2, progress = 0, attempts = attempts + 1,
		    error_message = NULL, updated_at = NOW()
		WHERE id = $3
	`
	return db.exec(ctx, query, models.JobStatusRunning, time.Now(), id)
}

func (db *DB) UpdateProgress(ctx context.Context, id uuid.UUID, progress float64) error {
	query := `UPDATE render_jobs SET progress = $1, updated_at = NOW() WHERE id = $2`
	return db.exec(ctx, query, progress, id)
}

// Complete stores the result of a successful render.
func (db *DB) Complete(ctx context.Context, id uuid.UUID, outputPath, outputURL, storageKey string, report models.JSONB) error {
	query := `
		UPDATE render_jobs
		SET status = $1, progress = 1, output_path = $2, output_url = NULLIF($3, ''),
		    storage_key = NULLIF($4, ''), report = $5, finished_at = $6, updated_at = NOW()
		WHERE id = $7
	`
	return db.exec(ctx, query, models.JobStatusSucceeded, outputPath, outputURL, storageKey, report, time.Now(), id)
}

func (db *DB) Fail(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE render_jobs
		SET status = $1, error_message = $2, finished_at = $3, updated_at = NOW()
		WHERE id = $4
	`
	return db.exec(ctx, query, models.JobStatusFailed, errorMessage, time.Now(), id)
}

func (db *DB) exec(ctx context.Context, query string, args ...any) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update render job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("render job: %w", ErrNotFound)
	}
	return nil
}
