package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bobarin/facelessrender/internal/db"
	"github.com/bobarin/facelessrender/internal/models"
	"github.com/bobarin/facelessrender/internal/storage"
)

const (
	maxRequestBytes = 1 << 20
	maxScenes       = 200
)

// Store is the job persistence the handlers need.
type Store interface {
	CreateRenderJob(ctx context.Context, job *models.RenderJob) error
	GetRenderJob(ctx context.Context, id uuid.UUID) (*models.RenderJob, error)
	ListRenderJobs(ctx context.Context, status string, limit, offset int) ([]models.RenderJob, int, error)
	Fail(ctx context.Context, id uuid.UUID, errorMessage string) error
}

type Enqueuer interface {
	EnqueueRender(ctx context.Context, jobID uuid.UUID) error
}

type Handler struct {
	db        Store
	queue     Enqueuer
	publisher storage.Publisher // Optional: nil serves finished videos from local disk
	urlTTL    time.Duration
}

func NewHandler(store Store, q Enqueuer, publisher storage.Publisher, urlTTL time.Duration) *Handler {
	return &Handler{
		db:        store,
		queue:     q,
		publisher: publisher,
		urlTTL:    urlTTL,
	}
}

// CreateRender handles POST /v1/renders
func (h *Handler) CreateRender(w http.ResponseWriter, r *http.Request) {
	var req models.RenderRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if err := validateRequest(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	raw, err := models.ToJSONB(req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to encode request")
		return
	}
	job := &models.RenderJob{
		ID:      uuid.New(),
		Status:  models.JobStatusQueued,
		Request: raw,
	}
	if err := h.db.CreateRenderJob(r.Context(), job); err != nil {
		log.Printf("[API] Failed to create render job: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to create render job")
		return
	}

	if err := h.queue.EnqueueRender(r.Context(), job.ID); err != nil {
		log.Printf("[API] Failed to enqueue render job %s: %v", job.ID, err)
		h.db.Fail(r.Context(), job.ID, "failed to enqueue: "+err.Error())
		respondError(w, http.StatusInternalServerError, "Failed to enqueue render job")
		return
	}

	respondJSON(w, http.StatusCreated, models.CreateRenderResponse{
		JobID:  job.ID,
		Status: job.Status,
	})
}

func validateRequest(req *models.RenderRequest) error {
	if len(req.Scenes) == 0 && req.Topic == "" {
		return errors.New("either scenes or topic is required")
	}
	if len(req.Scenes) > maxScenes {
		return fmt.Errorf("too many scenes (max %d)", maxScenes)
	}
	seen := map[int]bool{}
	for _, s := range req.Scenes {
		if seen[s.SceneNumber] {
			return fmt.Errorf("duplicate scene_number %d", s.SceneNumber)
		}
		seen[s.SceneNumber] = true
	}
	res := req.Style.Resolution
	if res != (models.Resolution{}) {
		if _, err := models.ParseResolution(res.String()); err != nil {
			return err
		}
	}
	return nil
}

// ListRenders handles GET /v1/renders
// Query params:
//   - status: filter by job status (queued, running, succeeded, failed)
//   - limit:  max results per page (default 20, max 100)
//   - offset: number of results to skip (default 0)
func (h *Handler) ListRenders(w http.ResponseWriter, r *http.Request) {
	statusFilter := r.URL.Query().Get("status")
	if statusFilter != "" && !models.JobStatus(statusFilter).Valid() {
		respondError(w, http.StatusBadRequest, "Invalid status filter. Allowed: queued, running, succeeded, failed")
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	jobs, total, err := h.db.ListRenderJobs(r.Context(), statusFilter, limit, offset)
	if err != nil {
		log.Printf("[API] Failed to list render jobs: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to list renders")
		return
	}

	respondJSON(w, http.StatusOK, models.ListRendersResponse{
		Renders: jobs,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	})
}

// GetRender handles GET /v1/renders/{id}
func (h *Handler) GetRender(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// GetRenderDownload handles GET /v1/renders/{id}/download.
// Published outputs redirect to a fresh URL (or return it as JSON with ?redirect=false);
// local outputs are streamed.
func (h *Handler) GetRenderDownload(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}
	if job.Status != models.JobStatusSucceeded || job.OutputPath == nil {
		respondError(w, http.StatusConflict, "Video not ready")
		return
	}

	if h.publisher != nil && job.StorageKey != nil {
		url, err := h.publisher.URL(r.Context(), *job.StorageKey)
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Video no longer available")
			return
		}
		if err != nil {
			log.Printf("[API] Failed to create download URL for %s: %v", job.ID, err)
			respondError(w, http.StatusInternalServerError, "Failed to generate download URL")
			return
		}
		if r.URL.Query().Get("redirect") == "false" {
			respondJSON(w, http.StatusOK, models.DownloadResponse{URL: url, ExpiresIn: int(h.urlTTL.Seconds())})
			return
		}
		http.Redirect(w, r, url, http.StatusTemporaryRedirect)
		return
	}

	path := *job.OutputPath
	if _, err := os.Stat(path); err != nil {
		respondError(w, http.StatusNotFound, "Video no longer available")
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

func (h *Handler) loadJob(w http.ResponseWriter, r *http.Request) (*models.RenderJob, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid render ID")
		return nil, false
	}
	job, err := h.db.GetRenderJob(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Render not found")
		return nil, false
	}
	if err != nil {
		log.Printf("[API] Failed to get render job %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "Failed to get render")
		return nil, false
	}
	return job, true
}

// ListStylePresets handles GET /v1/presets/styles
func (h *Handler) ListStylePresets(w http.ResponseWriter, r *http.Request) {
	out := make([]models.Style, 0, len(models.StylePresets))
	for _, name := range models.PresetNames(models.StylePresets) {
		out = append(out, models.StylePresets[name].WithDefaults())
	}
	respondJSON(w, http.StatusOK, out)
}

type resolutionPreset struct {
	Name string `json:"name"`
	models.Resolution
}

// ListResolutionPresets handles GET /v1/presets/resolutions
func (h *Handler) ListResolutionPresets(w http.ResponseWriter, r *http.Request) {
	out := make([]resolutionPreset, 0, len(models.ResolutionPresets))
	for _, name := range models.PresetNames(models.ResolutionPresets) {
		out = append(out, resolutionPreset{Name: name, Resolution: models.ResolutionPresets[name]})
	}
	respondJSON(w, http.StatusOK, out)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
