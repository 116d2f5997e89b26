package db

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/bobarin/facelessrender/internal/models"
)

// openTestDB connects to TEST_DATABASE_URL or skips.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	d, err := New(url)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := d.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return d
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) == 0 {
		t.Fatal("no migrations embedded")
	}
}

func TestRenderJobLifecycle(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	req, _ := models.ToJSONB(models.RenderRequest{Topic: "tides"})
	job := &models.RenderJob{ID: uuid.New(), Status: models.JobStatusQueued, Request: req}
	if err := d.CreateRenderJob(ctx, job); err != nil {
		t.Fatalf("CreateRenderJob() error = %v", err)
	}
	if err := d.MarkRunning(ctx, job.ID); err != nil {
		t.Fatalf("MarkRunning() error = %v", err)
	}
	if err := d.UpdateProgress(ctx, job.ID, 0.45); err != nil {
		t.Fatalf("UpdateProgress() error = %v", err)
	}
	report := models.JSONB{"duration": 11.0}
	if err := d.Complete(ctx, job.ID, "/out/v.mp4", "", "", report); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	got, err := d.GetRenderJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetRenderJob() error = %v", err)
	}
	if got.Status != models.JobStatusSucceeded || got.Progress != 1 || got.Attempts != 1 {
		t.Errorf("unexpected job: %+v", got)
	}
	if got.OutputURL != nil {
		t.Errorf("empty URL should be stored as NULL, got %q", *got.OutputURL)
	}
	if got.Request["topic"] != "tides" {
		t.Errorf("request = %v", got.Request)
	}

	jobs, total, err := d.ListRenderJobs(ctx, string(models.JobStatusSucceeded), 10, 0)
	if err != nil {
		t.Fatalf("ListRenderJobs() error = %v", err)
	}
	if total < 1 || len(jobs) < 1 {
		t.Errorf("list returned %d/%d", len(jobs), total)
	}
}

func TestGetRenderJobNotFound(t *testing.T) {
	d := openTestDB(t)
	_, err := d.GetRenderJob(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := d.Fail(context.Background(), uuid.New(), "boom"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Fail on missing job: expected ErrNotFound, got %v", err)
	}
}
