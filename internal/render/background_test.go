package render

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"strings"
	"testing"

	"github.com/bobarin/facelessrender/internal/models"
)

var fhd = models.Resolution{Width: 1920, Height: 1080}

func decodeImageFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeImage(data)
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.RGBA
		wantErr bool
	}{
		{"#FF0000", rgb(255, 0, 0), false},
		{"#f00", rgb(255, 0, 0), false},
		{"0x00FF00", rgb(0, 255, 0), false},
		{"336699", rgb(0x33, 0x66, 0x99), false},
		{"white", rgb(255, 255, 255), false},
		{" Gray ", rgb(128, 128, 128), false},
		{"not-a-color", color.RGBA{}, true},
		{"#12345", color.RGBA{}, true},
		{"", color.RGBA{}, true},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseColor(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestResolveInvalidColorFallsBack(t *testing.T) {
	r := &BackgroundResolver{Cache: newTestCache(t)}
	got := r.Resolve(context.Background(), models.Background{Type: models.BackgroundColor, Value: "not-a-color"}, fhd, 4)

	if !got.Outcome.IsFallback() {
		t.Fatalf("outcome = %v, want fallback", got.Outcome)
	}
	if got.Layer.Kind != LayerColor || got.Layer.Color != DefaultFill {
		t.Errorf("layer = %+v, want #333333 fill", got.Layer)
	}
	if ffmpegColor(got.Layer.Color) != "0x333333" {
		t.Errorf("fill = %s", ffmpegColor(got.Layer.Color))
	}
}

type stubFetcher struct {
	path string
	err  error
	hits int
}

func (s *stubFetcher) Fetch(ctx context.Context, url string) (string, error) {
	s.hits++
	return s.path, s.err
}

type stubImages struct {
	path string
}

func (s *stubImages) Image(ctx context.Context, prompt, style string) (string, error) {
	return s.path, nil
}

func TestResolveFallbackTotality(t *testing.T) {
	dir := t.TempDir()
	garbage := writeFile(t, dir, "garbage.png", []byte("definitely not an image"))
	huge := writeFile(t, dir, "huge.png", oversizedPNG(1<<29))

	specs := []models.Background{
		{Type: models.BackgroundColor},
		{Type: models.BackgroundColor, Value: "#GGHHII"},
		{Type: models.BackgroundImage, Value: "/does/not/exist.png"},
		{Type: models.BackgroundUpload, Value: garbage},
		{Type: models.BackgroundUpload, Value: huge},
		{Type: models.BackgroundImage, Value: huge},
		{Type: models.BackgroundImage},
		{Type: models.BackgroundAPI, Value: "sunset over mountains"},
		{Type: models.BackgroundAPI, Value: "https://example.com/a.jpg"},
		{Type: models.BackgroundAPI},
		{Type: "video", Value: "clip.mp4"},
	}

	for _, res := range []models.Resolution{fhd, {Width: 1080, Height: 1920}} {
		r := &BackgroundResolver{Cache: newTestCache(t), Fetcher: &stubFetcher{err: errors.New("boom")}}
		for _, spec := range specs {
			got := r.Resolve(context.Background(), spec, res, 3)
			if !got.Outcome.IsFallback() {
				t.Errorf("%+v: outcome = %v, want fallback", spec, got.Outcome)
			}
			if got.Layer.Width != res.Width || got.Layer.Height != res.Height || got.Layer.Duration != 3 {
				t.Errorf("%+v: layer geometry = %dx%d %.1fs", spec, got.Layer.Width, got.Layer.Height, got.Layer.Duration)
			}
			if got.Layer.Kind != LayerColor || got.Layer.Color != DefaultFill {
				t.Errorf("%+v: layer = %+v", spec, got.Layer)
			}
		}
	}
}

func TestDecodeImageRejectsOversizedHeader(t *testing.T) {
	if _, err := decodeImage(oversizedPNG(1 << 29)); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("err = %v", err)
	}
	// just over the budget is refused before any pixel is read
	if _, err := decodeImage(oversizedPNG(8193)); err == nil {
		t.Error("8193x8193 accepted")
	}
	if _, err := decodeImage(pngBytes(t, 4, 4)); err != nil {
		t.Errorf("small image: %v", err)
	}
}

func TestResolveImageCropsToFrame(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "wide.png", pngBytes(t, 400, 100))

	r := &BackgroundResolver{Cache: newTestCache(t)}
	res := models.Resolution{Width: 160, Height: 90}
	got := r.Resolve(context.Background(), models.Background{Type: models.BackgroundImage, Value: src}, res, 2)
	if got.Outcome.IsFallback() {
		t.Fatalf("unexpected fallback: %v", got.Outcome)
	}
	if got.Layer.Kind != LayerImage {
		t.Fatalf("kind = %s", got.Layer.Kind)
	}

	img, err := decodeImageFile(got.Layer.Path)
	if err != nil {
		t.Fatalf("decode normalized: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 160 || b.Dy() != 90 {
		t.Errorf("normalized size = %dx%d, want 160x90", b.Dx(), b.Dy())
	}

	again := r.Resolve(context.Background(), models.Background{Type: models.BackgroundUpload, Value: src}, res, 5)
	if again.Layer.Path != got.Layer.Path {
		t.Errorf("same content resolved to %s and %s", got.Layer.Path, again.Layer.Path)
	}
}

func TestResolveAPI(t *testing.T) {
	dir := t.TempDir()
	img := writeFile(t, dir, "fetched.png", pngBytes(t, 64, 64))

	fetcher := &stubFetcher{path: img}
	r := &BackgroundResolver{Cache: newTestCache(t), Fetcher: fetcher, Images: &stubImages{path: img}}
	res := models.Resolution{Width: 32, Height: 32}

	byURL := r.Resolve(context.Background(), models.Background{Type: models.BackgroundAPI, Value: "https://cdn.example.com/x.png"}, res, 1)
	if byURL.Outcome.IsFallback() || fetcher.hits != 1 {
		t.Errorf("url: outcome = %v, fetches = %d", byURL.Outcome, fetcher.hits)
	}

	byTerm := r.Resolve(context.Background(), models.Background{Type: models.BackgroundAPI, Value: "ocean"}, res, 1)
	if byTerm.Outcome.IsFallback() || byTerm.Layer.Kind != LayerImage {
		t.Errorf("search term: %+v", byTerm)
	}
	if fetcher.hits != 1 {
		t.Errorf("search term went through the fetcher")
	}
}

func TestResolveNoBackgroundUsesStyleFill(t *testing.T) {
	r := &BackgroundResolver{Cache: newTestCache(t), Fill: rgb(1, 2, 3)}
	got := r.Resolve(context.Background(), models.Background{}, fhd, 1)
	if got.Outcome.IsFallback() || got.Layer.Color != rgb(1, 2, 3) {
		t.Errorf("got %+v", got)
	}
}
