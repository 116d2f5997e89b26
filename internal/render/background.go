package render

import (
	"context"
	"fmt"
	"image/color"
	"log"
	"os"
	"strings"

	"github.com/bobarin/facelessrender/internal/cache"
	"github.com/bobarin/facelessrender/internal/models"
)

// Fetcher downloads remote media to a local file.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// ImageSource finds or generates an image for a search term and returns its local path.
type ImageSource interface {
	Image(ctx context.Context, prompt, style string) (string, error)
}

type LayerKind string

const (
	LayerColor LayerKind = "color"
	LayerImage LayerKind = "image"
)

// Layer is a background ready for compositing. Image layers point at a PNG that is
// already exactly Width x Height.
type Layer struct {
	Kind     LayerKind
	Color    color.RGBA
	Path     string
	Width    int
	Height   int
	Duration float64
	Motion   Motion
}

// Resolved pairs a layer with how it was obtained.
type Resolved struct {
	Layer   Layer
	Outcome Outcome
}

// BackgroundResolver turns a scene background spec into a layer. It never fails:
// anything unusable becomes a solid DefaultFill layer with a Fallback outcome.
type BackgroundResolver struct {
	Cache   *cache.Store
	Fetcher Fetcher     // optional
	Images  ImageSource // optional
	// Fill is used when a scene declares no background at all.
	Fill       color.RGBA
	ImageStyle string
}

func (r *BackgroundResolver) Resolve(ctx context.Context, spec models.Background, res models.Resolution, duration float64) Resolved {
	base := Layer{Width: res.Width, Height: res.Height, Duration: duration}

	switch models.BackgroundType(strings.ToLower(string(spec.Type))) {
	case "":
		if strings.TrimSpace(spec.Value) == "" {
			return r.solid(base, r.fill(), Ok())
		}
		return r.resolveColor(base, spec.Value)

	case models.BackgroundColor:
		return r.resolveColor(base, spec.Value)

	case models.BackgroundImage, models.BackgroundUpload:
		return r.resolveImageFile(base, spec.Value)

	case models.BackgroundAPI:
		return r.resolveAPI(ctx, base, spec.Value)
	}

	return r.fallback(base, "unknown background type %q", spec.Type)
}

func (r *BackgroundResolver) resolveColor(base Layer, value string) Resolved {
	c, err := ParseColor(value)
	if err != nil {
		return r.fallback(base, "%v", err)
	}
	return r.solid(base, c, Ok())
}

func (r *BackgroundResolver) resolveImageFile(base Layer, path string) Resolved {
	if strings.TrimSpace(path) == "" {
		return r.fallback(base, "image background has no path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return r.fallback(base, "read image %s: %v", path, err)
	}
	return r.normalize(base, data)
}

func (r *BackgroundResolver) resolveAPI(ctx context.Context, base Layer, value string) Resolved {
	value = strings.TrimSpace(value)
	if value == "" {
		return r.fallback(base, "api background has no value")
	}

	var path string
	var err error
	switch {
	case isURL(value):
		if r.Fetcher == nil {
			return r.fallback(base, "no fetcher configured for %s", value)
		}
		path, err = r.Fetcher.Fetch(ctx, value)
	case r.Images != nil:
		path, err = r.Images.Image(ctx, value, r.ImageStyle)
	default:
		return r.fallback(base, "no image source configured for %q", value)
	}
	if err != nil {
		return r.fallback(base, "api background %q: %v", value, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return r.fallback(base, "read api image: %v", err)
	}
	return r.normalize(base, data)
}

// normalize crops and scales image bytes to the frame and caches the PNG by content
// and target size.
func (r *BackgroundResolver) normalize(base Layer, data []byte) Resolved {
	key := cache.Key("background", string(data), fmt.Sprintf("%dx%d", base.Width, base.Height))
	path, _, err := r.Cache.GetOrFill(key, ".png", func(tmp string) error {
		img, err := decodeImage(data)
		if err != nil {
			return err
		}
		return writePNG(tmp, coverCrop(img, base.Width, base.Height))
	})
	if err != nil {
		return r.fallback(base, "%v", err)
	}

	base.Kind = LayerImage
	base.Path = path
	return Resolved{Layer: base, Outcome: Ok()}
}

func (r *BackgroundResolver) fill() color.RGBA {
	if r.Fill.A == 0 {
		return DefaultFill
	}
	return r.Fill
}

func (r *BackgroundResolver) solid(base Layer, c color.RGBA, o Outcome) Resolved {
	base.Kind = LayerColor
	base.Color = c
	return Resolved{Layer: base, Outcome: o}
}

func (r *BackgroundResolver) fallback(base Layer, format string, args ...any) Resolved {
	o := Fallback(format, args...)
	log.Printf("[Background] Warning: %s, using %s", o.Reason, ffmpegColor(DefaultFill))
	return r.solid(base, DefaultFill, o)
}

func isURL(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}
