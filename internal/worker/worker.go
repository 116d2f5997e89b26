package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bobarin/facelessrender/internal/models"
	"github.com/bobarin/facelessrender/internal/pipeline"
	"github.com/bobarin/facelessrender/internal/queue"
	"github.com/bobarin/facelessrender/internal/scenes"
	"github.com/bobarin/facelessrender/internal/storage"
)

// progressStep is the smallest progress change written back to the job row.
const progressStep = 0.05

// JobStore is the part of the database the worker needs.
type JobStore interface {
	GetRenderJob(ctx context.Context, id uuid.UUID) (*models.RenderJob, error)
	MarkRunning(ctx context.Context, id uuid.UUID) error
	UpdateProgress(ctx context.Context, id uuid.UUID, progress float64) error
	Complete(ctx context.Context, id uuid.UUID, outputPath, outputURL, storageKey string, report models.JSONB) error
	Fail(ctx context.Context, id uuid.UUID, errorMessage string) error
}

type JobQueue interface {
	DequeueRender(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Ack(ctx context.Context, job *queue.Job) error
}

// Renderer runs one render. A new one is built per job so progress reporting
// stays per job.
type Renderer interface {
	Run(ctx context.Context, scenes []models.Scene, style models.Style, settings models.Settings) (*pipeline.Result, error)
}

type RendererFactory func(onProgress func(float64)) (Renderer, error)

// PipelineRenderers builds orchestrators over shared dependencies.
func PipelineRenderers(deps pipeline.Deps) RendererFactory {
	return func(onProgress func(float64)) (Renderer, error) {
		o, err := pipeline.New(deps)
		if err != nil {
			return nil, err
		}
		o.OnProgress = onProgress
		return o, nil
	}
}

type Worker struct {
	db        JobStore
	queue     JobQueue
	renderers RendererFactory
	planner   scenes.TopicPlanner // Optional: nil rejects topic-only jobs
	publisher storage.Publisher   // Optional: nil keeps outputs local
	outputDir string
	music     string        // Default music bed when a request sets none (empty = no music)
	volume    float64
	workers   int
	uploadSem chan struct{} // Limits concurrent uploads across job goroutines
}

type Options struct {
	OutputDir     string
	DefaultMusic  string
	MusicVolume   float64
	RenderWorkers int // scene parallelism for requests that set none
	MaxUploads    int
}

func New(store JobStore, q JobQueue, renderers RendererFactory, planner scenes.TopicPlanner, publisher storage.Publisher, opts Options) *Worker {
	if opts.MaxUploads <= 0 {
		opts.MaxUploads = 2
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "output"
	}
	return &Worker{
		db:        store,
		queue:     q,
		renderers: renderers,
		planner:   planner,
		publisher: publisher,
		outputDir: opts.OutputDir,
		music:     opts.DefaultMusic,
		volume:    opts.MusicVolume,
		workers:   opts.RenderWorkers,
		uploadSem: make(chan struct{}, opts.MaxUploads),
	}
}

// uploadWithLimit wraps an upload call with a semaphore so finished jobs do not
// saturate the uplink together.
func (w *Worker) uploadWithLimit(ctx context.Context, label string, fn func() error) error {
	log.Printf("[Upload] %s waiting for upload slot...", label)
	select {
	case w.uploadSem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("upload cancelled while waiting for slot: %w", ctx.Err())
	}
	defer func() { <-w.uploadSem }()

	log.Printf("[Upload] %s uploading...", label)
	return fn()
}

// Start runs concurrency queue consumers until ctx is cancelled.
func (w *Worker) Start(ctx context.Context, concurrency int) {
	log.Printf("[Worker] Started with concurrency: %d", concurrency)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.processQueue(ctx)
		}()
	}

	<-ctx.Done()
	log.Println("[Worker] Shutting down...")
	wg.Wait()
}

func (w *Worker) processQueue(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			job, err := w.queue.DequeueRender(ctx, 5*time.Second)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("[Worker] Error dequeuing from %s: %v", queue.QueueRender, err)
				time.Sleep(time.Second)
				continue
			}
			if job == nil {
				continue // No job available, retry
			}
			if !w.Process(ctx, job.ID) {
				continue // interrupted: left in the processing list for Recover
			}
			ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			if err := w.queue.Ack(ackCtx, job); err != nil {
				log.Printf("[Worker] Warning: %v", err)
			}
			cancel()
		}
	}
}

// Process runs one render job end to end and records the outcome on its row.
// It returns false when shutdown interrupted the job before an outcome was stored.
func (w *Worker) Process(ctx context.Context, id uuid.UUID) bool {
	job, err := w.db.GetRenderJob(ctx, id)
	if err != nil {
		log.Printf("[Worker] Failed to load job %s: %v", id, err)
		return ctx.Err() == nil
	}
	if job.Status == models.JobStatusSucceeded || job.Status == models.JobStatusFailed {
		log.Printf("[Worker] Job %s already %s, skipping", id, job.Status)
		return true
	}

	log.Printf("[Worker] Processing render job %s (attempt %d)", id, job.Attempts+1)
	if err := w.db.MarkRunning(ctx, id); err != nil {
		log.Printf("[Worker] Failed to mark job %s running: %v", id, err)
		return ctx.Err() == nil
	}

	if err := w.handleRender(ctx, job); err != nil {
		if ctx.Err() != nil {
			log.Printf("[Worker] Job %s interrupted by shutdown", id)
			return false
		}
		log.Printf("[Worker] Job %s failed: %v", id, err)
		failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := w.db.Fail(failCtx, id, err.Error()); err != nil {
			log.Printf("[Worker] Failed to record failure for %s: %v", id, err)
		}
		return true
	}
	log.Printf("[Worker] Job %s completed successfully", id)
	return true
}

func (w *Worker) handleRender(ctx context.Context, job *models.RenderJob) error {
	id := job.ID
	req, err := decodeRequest(job.Request)
	if err != nil {
		return err
	}

	sceneList := req.Scenes
	if len(sceneList) == 0 {
		if w.planner == nil {
			return fmt.Errorf("topic requests need a text provider")
		}
		log.Printf("[Worker] Planning scenes for topic %q", req.Topic)
		sceneList, err = w.planner.Plan(ctx, req.Topic, scenes.Options{})
		if err != nil {
			return fmt.Errorf("failed to plan scenes: %w", err)
		}
	}

	settings := req.Settings
	// Service outputs always land in the job's own directory.
	settings.OutputDir = filepath.Join(w.outputDir, id.String())
	if settings.Music == nil && w.music != "" {
		settings.Music = &models.MusicSpec{Source: w.music}
		if settings.MusicVolume <= 0 {
			settings.MusicVolume = w.volume
		}
	}
	if settings.Workers <= 0 {
		settings.Workers = w.workers
	}

	r, err := w.renderers(w.progressWriter(ctx, id))
	if err != nil {
		return err
	}
	res, err := r.Run(ctx, sceneList, req.Style.WithPreset(), settings)
	if err != nil {
		return err
	}

	var url, key string
	if w.publisher != nil {
		key = storage.ObjectKey(id, res.OutputPath)
		var obj *storage.Object
		err := w.uploadWithLimit(ctx, id.String(), func() error {
			var err error
			obj, err = w.publisher.Publish(ctx, key, res.OutputPath, storage.ContentTypeFor(res.OutputPath))
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to publish output: %w", err)
		}
		url = obj.URL
	}

	report, err := models.ToJSONB(res)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := w.db.Complete(ctx, id, res.OutputPath, url, key, report); err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}
	return nil
}

// progressWriter forwards pipeline progress to the job row, skipping changes
// smaller than progressStep. The final 1.0 is left to Complete.
func (w *Worker) progressWriter(ctx context.Context, id uuid.UUID) func(float64) {
	last := 0.0
	return func(p float64) {
		if p >= 1 || p-last < progressStep {
			return
		}
		last = p
		if err := w.db.UpdateProgress(ctx, id, p); err != nil {
			log.Printf("[Worker] Warning: progress update for %s failed: %v", id, err)
		}
	}
}

func decodeRequest(raw models.JSONB) (*models.RenderRequest, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to read job request: %w", err)
	}
	var req models.RenderRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid job request: %w", err)
	}
	if len(req.Scenes) == 0 && req.Topic == "" {
		return nil, fmt.Errorf("invalid job request: %w", pipeline.ErrNoScenes)
	}
	return &req, nil
}

// Cleanup removes local outputs older than maxAge once they have been published.
func Cleanup(dir string, maxAge time.Duration) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		info, err := e.Info()
		if err != nil || !e.IsDir() || info.ModTime().After(cutoff) {
			continue
		}
		if _, err := uuid.Parse(e.Name()); err != nil {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err == nil {
			log.Printf("[Worker] Removed old output %s", e.Name())
		}
	}
}
