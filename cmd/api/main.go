package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobarin/facelessrender/internal/api"
	"github.com/bobarin/facelessrender/internal/app"
	"github.com/bobarin/facelessrender/internal/config"
	"github.com/bobarin/facelessrender/internal/db"
	"github.com/bobarin/facelessrender/internal/queue"
	"github.com/bobarin/facelessrender/internal/scenes"
	"github.com/bobarin/facelessrender/internal/storage"
	"github.com/bobarin/facelessrender/internal/worker"
)

// Published outputs are kept locally this long before cleanup.
const localRetention = 24 * time.Hour

func main() {
	log.Println("Starting faceless render API...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	if err := database.Migrate(context.Background()); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Connected to database")

	// Connect to Redis queue
	q, err := queue.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()
	log.Println("Connected to Redis queue")

	// Initialize storage
	urlTTL := time.Duration(cfg.SignedURLTTLSeconds) * time.Second
	publisher, err := storage.New(context.Background(), storage.Config{
		Backend:            cfg.StorageBackend,
		SupabaseURL:        cfg.SupabaseURL,
		SupabaseServiceKey: cfg.SupabaseServiceKey,
		SupabaseBucket:     cfg.SupabaseStorageBucket,
		S3Bucket:           cfg.S3Bucket,
		S3Prefix:           cfg.S3Prefix,
		SignedURLTTL:       urlTTL,
	})
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	if publisher != nil {
		log.Printf("Publishing outputs to %s storage", cfg.StorageBackend)
	} else {
		log.Println("No STORAGE_BACKEND set, outputs stay on local disk")
	}

	// Create API handler
	handler := api.NewHandler(database, q, publisher, urlTTL)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set, API is unprotected (dev mode)")
	}

	// Start HTTP server
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start worker if enabled
	var workerCancel context.CancelFunc
	workerDone := make(chan struct{})
	if cfg.WorkerEnabled {
		log.Println("Worker enabled, starting background processing...")

		a, err := app.Build(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize render dependencies: %v", err)
		}

		// Topic-only requests need a text provider; without one they fail at render time.
		var planner scenes.TopicPlanner
		if p := a.Planner(0); p != nil {
			planner = p
		}

		w := worker.New(database, q, worker.PipelineRenderers(a.Deps), planner, publisher, worker.Options{
			OutputDir:     cfg.OutputDir,
			DefaultMusic:  cfg.BackgroundMusicPath,
			MusicVolume:   cfg.MusicVolume,
			RenderWorkers: cfg.RenderWorkers,
		})

		if n, err := q.Recover(context.Background()); err != nil {
			log.Printf("Warning: could not recover unacked jobs: %v", err)
		} else if n > 0 {
			log.Printf("Requeued %d unacked render jobs", n)
		}
		if waiting, _, err := q.Lengths(context.Background()); err == nil {
			log.Printf("Render queue: %d jobs waiting", waiting)
		}

		var workerCtx context.Context
		workerCtx, workerCancel = context.WithCancel(context.Background())
		go func() {
			defer close(workerDone)
			w.Start(workerCtx, cfg.MaxConcurrentJobs)
		}()

		if publisher != nil {
			go func() {
				ticker := time.NewTicker(time.Hour)
				defer ticker.Stop()
				for {
					select {
					case <-workerCtx.Done():
						return
					case <-ticker.C:
						worker.Cleanup(cfg.OutputDir, localRetention)
					}
				}
			}()
		}
	} else {
		close(workerDone)
	}

	// Start server in goroutine
	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop the worker; interrupted renders stay unacked and are requeued on the next start
	if workerCancel != nil {
		workerCancel()
	}

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	select {
	case <-workerDone:
	case <-ctx.Done():
		log.Println("Worker did not stop in time")
	}

	log.Println("Server exited")
}
