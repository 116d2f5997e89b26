package cache

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
)

func TestKeyStable(t *testing.T) {
	a := Key("hello", "voice-1")
	b := Key("hello", "voice-1")
	c := Key("hellovoice-1")
	if a != b {
		t.Fatalf("key not stable: %s vs %s", a, b)
	}
	if a == c {
		t.Fatal("part boundaries must affect the key")
	}
	if len(a) != 24 {
		t.Fatalf("unexpected key length %d", len(a))
	}
}

func TestPutAndLookup(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	key := Key("asset")

	if _, ok := s.Lookup(key, ".bin"); ok {
		t.Fatal("expected miss on empty cache")
	}

	p, err := s.Put(key, ".bin", []byte("data"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok := s.Lookup(key, ".bin")
	if !ok || got != p {
		t.Fatalf("lookup = %q, %v; want %q", got, ok, p)
	}

	// no temp files left behind
	entries, _ := os.ReadDir(filepath.Dir(p))
	if len(entries) != 1 {
		t.Fatalf("expected exactly one file in shard, got %d", len(entries))
	}
}

func TestFillFailureLeavesNoEntry(t *testing.T) {
	t.Parallel()

	s, _ := New(t.TempDir())
	key := Key("broken")

	_, err := s.Fill(key, ".png", func(tmp string) error { return errors.New("boom") })
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := s.Lookup(key, ".png"); ok {
		t.Fatal("failed fill must not leave an entry")
	}

	_, err = s.Fill(key, ".png", func(tmp string) error { return nil })
	if err == nil {
		t.Fatal("empty output should be rejected")
	}
}

func TestGetOrFillProducesOnce(t *testing.T) {
	t.Parallel()

	s, _ := New(t.TempDir())
	key := Key("shared")

	var calls int32
	var wg sync.WaitGroup
	paths := make([]string, 8)
	for i := range paths {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, _, err := s.GetOrFill(key, ".txt", func(tmp string) error {
				atomic.AddInt32(&calls, 1)
				return os.WriteFile(tmp, []byte("x"), 0644)
			})
			if err != nil {
				t.Errorf("fill: %v", err)
			}
			paths[i] = p
		}(i)
	}
	wg.Wait()

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("producer called %d times, want 1", n)
	}
	for _, p := range paths {
		if p != paths[0] {
			t.Fatalf("callers got different paths: %v", paths)
		}
	}

	_, hit, err := s.GetOrFill(key, ".txt", func(string) error {
		t.Fatal("producer must not run on a hit")
		return nil
	})
	if err != nil || !hit {
		t.Fatalf("expected cache hit, got hit=%v err=%v", hit, err)
	}
}

func TestExtFor(t *testing.T) {
	cases := map[string]string{
		"audio/mpeg": ".mp3",
		"mp3":        ".mp3",
		"image/png":  ".png",
		"image/jpeg": ".jpg",
		"video/mp4":  ".mp4",
		"weird":      ".bin",
	}
	for in, want := range cases {
		if got := ExtFor(in); got != want {
			t.Errorf("ExtFor(%q) = %q, want %q", in, got, want)
		}
	}
}
