// Package storage publishes finished renders to object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("object not found")

// Object is a published file and the URL it can be fetched from.
type Object struct {
	Key string
	URL string
}

// Publisher uploads local files and hands out URLs for them.
type Publisher interface {
	Publish(ctx context.Context, key, localPath, contentType string) (*Object, error)
	// URL returns a fresh link for an already published key.
	URL(ctx context.Context, key string) (string, error)
}

// ObjectKey is the storage key of a file produced by a render job.
func ObjectKey(jobID uuid.UUID, localPath string) string {
	return path.Join(jobID.String(), filepath.Base(localPath))
}

// ContentTypeFor maps output file extensions to MIME types.
func ContentTypeFor(name string) string {
	switch filepath.Ext(name) {
	case ".mp4":
		return "video/mp4"
	case ".json":
		return "application/json"
	case ".mp3":
		return "audio/mpeg"
	}
	return "application/octet-stream"
}

// Config selects and configures a publisher.
type Config struct {
	Backend string // "supabase", "s3" or ""

	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseBucket     string

	S3Bucket string
	S3Prefix string

	// SignedURLTTL is how long generated links stay valid. Zero means public URLs
	// where the backend supports them.
	SignedURLTTL time.Duration
}

// New returns the configured publisher, or nil when outputs stay local.
func New(ctx context.Context, cfg Config) (Publisher, error) {
	switch cfg.Backend {
	case "supabase":
		return NewSupabase(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseBucket, cfg.SignedURLTTL), nil
	case "s3":
		return NewS3(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.SignedURLTTL)
	case "":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}
