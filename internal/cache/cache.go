package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"
)

// Store is a disk-backed asset cache keyed by content hash. Entries are written to a
// temp file in the same directory and renamed into place, so a reader never sees a
// partially written file. Concurrent fills of one key share a single producer call.
type Store struct {
	dir   string
	group singleflight.Group
}

func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache dir is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string { return s.dir }

// Key hashes the given parts into a stable cache key.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:24]
}

// Path returns where the entry for key with extension ext lives. ext includes the dot.
func (s *Store) Path(key, ext string) string {
	return filepath.Join(s.dir, key[:2], key+ext)
}

// Lookup returns the entry path when a non-empty entry exists.
func (s *Store) Lookup(key, ext string) (string, bool) {
	p := s.Path(key, ext)
	info, err := os.Stat(p)
	if err != nil || info.Size() == 0 {
		return "", false
	}
	return p, true
}

// Put stores data under key atomically and returns the entry path.
func (s *Store) Put(key, ext string, data []byte) (string, error) {
	return s.Fill(key, ext, func(tmpPath string) error {
		return os.WriteFile(tmpPath, data, 0644)
	})
}

// Fill runs produce against a temp path and renames the result into the entry.
// produce may write the file itself or hand the path to an external tool.
func (s *Store) Fill(key, ext string, produce func(tmpPath string) error) (string, error) {
	final := s.Path(key, ext)
	if err := os.MkdirAll(filepath.Dir(final), 0755); err != nil {
		return "", fmt.Errorf("failed to create cache shard: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(final), ".tmp-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create cache temp file: %w", err)
	}
	tmp := f.Name()
	f.Close()

	if err := produce(tmp); err != nil {
		os.Remove(tmp)
		return "", err
	}

	info, err := os.Stat(tmp)
	if err != nil || info.Size() == 0 {
		os.Remove(tmp)
		return "", fmt.Errorf("cache producer wrote no data for %s", key)
	}

	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to commit cache entry: %w", err)
	}
	return final, nil
}

// GetOrFill returns the cached entry for key, producing it at most once across
// concurrent callers when missing.
func (s *Store) GetOrFill(key, ext string, produce func(tmpPath string) error) (string, bool, error) {
	if p, ok := s.Lookup(key, ext); ok {
		return p, true, nil
	}

	v, err, _ := s.group.Do(key+ext, func() (interface{}, error) {
		if p, ok := s.Lookup(key, ext); ok {
			return p, nil
		}
		return s.Fill(key, ext, produce)
	})
	if err != nil {
		return "", false, err
	}
	return v.(string), false, nil
}

// ExtFor maps a MIME type or format name to a file extension.
func ExtFor(format string) string {
	format = strings.ToLower(format)
	switch {
	case strings.Contains(format, "mpeg"), format == "mp3":
		return ".mp3"
	case strings.Contains(format, "wav"):
		return ".wav"
	case strings.Contains(format, "ogg"), strings.Contains(format, "opus"):
		return ".ogg"
	case strings.Contains(format, "aac"):
		return ".aac"
	case strings.Contains(format, "jpeg"), format == "jpg":
		return ".jpg"
	case strings.Contains(format, "webp"):
		return ".webp"
	case strings.Contains(format, "png"):
		return ".png"
	case strings.Contains(format, "mp4"):
		return ".mp4"
	}
	return ".bin"
}
