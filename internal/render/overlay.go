package render

import (
	"fmt"
	"image/color"
	"log"
	"os"
	"strings"

	"github.com/bobarin/facelessrender/internal/cache"
	"github.com/bobarin/facelessrender/internal/models"
)

type OverlayKind string

const (
	OverlayImage    OverlayKind = "image"
	OverlayText     OverlayKind = "text"
	OverlaySubtitle OverlayKind = "subtitle"
)

type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
)

// Overlay is one composited layer. Geometry is in output pixels; X/Y is the
// top-left corner of the layer (for centered text only Y is used).
type Overlay struct {
	Name    string
	Kind    OverlayKind
	X, Y    int
	Width   int
	Height  int
	Opacity float64
	Start   float64
	End     float64
	// FadeOut is the length of the linear fade at the end of the window, 0 for none.
	FadeOut float64

	// image layers
	ImagePath string

	// text and subtitle layers
	Lines      []string
	FontSize   int
	LineHeight int
	Color      color.RGBA
	Accent     color.RGBA
	Align      Align
	Position   models.SubtitlePosition
	Highlights []string
	// BottomMargin lifts a bottom subtitle above the author/slogan block.
	BottomMargin int
}

// DroppedOverlay is an overlay that could not be built. Rendering continues without it.
type DroppedOverlay struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// OverlaySet holds layers in z-order, bottom first.
type OverlaySet struct {
	Layers  []Overlay
	Dropped []DroppedOverlay
}

func (s OverlaySet) Find(name string) (Overlay, bool) {
	for _, l := range s.Layers {
		if l.Name == name {
			return l, true
		}
	}
	return Overlay{}, false
}

const (
	logoWidthRatio      = 0.13
	watermarkWidthRatio = 0.12
	brandingOpacity     = 0.7
	watermarkOpacity    = 0.5
	titleWindow         = 5.0
	titleFade           = 1.0
	authorScale         = 0.6
	titleScale          = 2.0
	blockGap            = 10
	maxHighlights       = 3
)

// Compositor builds the branding and subtitle layers of a scene.
type Compositor struct {
	Font  *Font
	Cache *cache.Store
}

func (c *Compositor) Build(scene models.Scene, style models.Style, duration float64, first bool) (OverlaySet, error) {
	var set OverlaySet
	w, h, m := style.Resolution.Width, style.Resolution.Height, style.Margin
	textColor := colorOr(style.TextColor, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	accent := colorOr(style.AccentColor, textColor)
	textWidth := w - 2*m
	if textWidth < style.FontSize {
		textWidth = style.FontSize
	}

	// 1. logo, top-right
	if logo, ok := c.imageOverlay(&set, "logo", style.Logo, style.LogoPath, int(float64(w)*logoWidthRatio)); ok {
		logo.X, logo.Y = w-logo.Width-m, m
		logo.Opacity = brandingOpacity
		logo.End = duration
		set.Layers = append(set.Layers, logo)
	}

	// 2. title, first scene only
	if first && strings.TrimSpace(style.Title) != "" {
		size := int(float64(style.FontSize) * titleScale)
		lines := c.Font.Wrap(style.Title, size, textWidth)
		lh := c.Font.LineHeight(size)
		window := duration
		if window > titleWindow {
			window = titleWindow
		}
		fade := titleFade
		if window < fade {
			fade = window
		}
		set.Layers = append(set.Layers, Overlay{
			Name:       "title",
			Kind:       OverlayText,
			Y:          h/4 - len(lines)*lh/2,
			Width:      textWidth,
			Height:     len(lines) * lh,
			Opacity:    1,
			End:        window,
			FadeOut:    fade,
			Lines:      lines,
			FontSize:   size,
			LineHeight: lh,
			Color:      textColor,
			Align:      AlignCenter,
		})
	}

	// 3/4. author above slogan, both bottom-left; the block is laid out from the bottom up
	bottom := h - m
	var author, slogan *Overlay
	if strings.TrimSpace(style.Slogan) != "" {
		lines := c.Font.Wrap(style.Slogan, style.FontSize, textWidth)
		lh := c.Font.LineHeight(style.FontSize)
		slogan = &Overlay{
			Name: "slogan", Kind: OverlayText,
			X: m, Y: bottom - len(lines)*lh,
			Width: textWidth, Height: len(lines) * lh,
			Opacity: brandingOpacity, End: duration,
			Lines: lines, FontSize: style.FontSize, LineHeight: lh,
			Color: textColor, Align: AlignLeft,
		}
		bottom = slogan.Y - blockGap
	}
	if strings.TrimSpace(style.Author) != "" {
		size := int(float64(style.FontSize) * authorScale)
		if size < 1 {
			size = 1
		}
		lines := c.Font.Wrap(style.Author, size, textWidth)
		lh := c.Font.LineHeight(size)
		author = &Overlay{
			Name: "author", Kind: OverlayText,
			X: m, Y: bottom - len(lines)*lh,
			Width: textWidth, Height: len(lines) * lh,
			Opacity: brandingOpacity, End: duration,
			Lines: lines, FontSize: size, LineHeight: lh,
			Color: textColor, Align: AlignLeft,
		}
		bottom = author.Y - blockGap
	}
	if author != nil {
		set.Layers = append(set.Layers, *author)
	}
	if slogan != nil {
		set.Layers = append(set.Layers, *slogan)
	}

	// 5. watermark, bottom-right
	if wm, ok := c.imageOverlay(&set, "watermark", style.Watermark, style.WatermarkPath, int(float64(w)*watermarkWidthRatio)); ok {
		wm.X, wm.Y = w-wm.Width-m, h-wm.Height-m
		wm.Opacity = watermarkOpacity
		wm.End = duration
		set.Layers = append(set.Layers, wm)
	}

	// 6. subtitle, the only content layer
	script := strings.TrimSpace(scene.Script)
	if script == "" {
		return set, nil
	}
	position := style.SubtitlePosition
	if scene.SubtitlePosition == models.SubtitleBottom || scene.SubtitlePosition == models.SubtitleCenter {
		position = scene.SubtitlePosition
	}
	lines := c.Font.Wrap(script, style.FontSize, textWidth)
	if len(lines) == 0 {
		return set, fmt.Errorf("scene %d: subtitle produced no lines", scene.SceneNumber)
	}
	lh := c.Font.LineHeight(style.FontSize)
	sub := Overlay{
		Name:         "subtitle",
		Kind:         OverlaySubtitle,
		Width:        textWidth,
		Height:       len(lines) * lh,
		Opacity:      1,
		End:          duration,
		Lines:        lines,
		FontSize:     style.FontSize,
		LineHeight:   lh,
		Color:        textColor,
		Accent:       accent,
		Align:        AlignCenter,
		Position:     position,
		BottomMargin: h - bottom,
	}
	if position == models.SubtitleCenter {
		sub.Y = (h - sub.Height) / 2
	} else {
		sub.Y = bottom - sub.Height
	}
	if style.HighlightEntities {
		sub.Highlights = highlightWords(scene.Entities)
	}
	set.Layers = append(set.Layers, sub)
	return set, nil
}

// imageOverlay decodes an overlay image from bytes or a path, scales it to width and
// caches the PNG. Failures are recorded in set.Dropped.
func (c *Compositor) imageOverlay(set *OverlaySet, name string, data []byte, path string, width int) (Overlay, bool) {
	if len(data) == 0 && path == "" {
		return Overlay{}, false
	}
	drop := func(err error) (Overlay, bool) {
		log.Printf("[Overlay] Error: dropping %s: %v", name, err)
		set.Dropped = append(set.Dropped, DroppedOverlay{Name: name, Reason: err.Error()})
		return Overlay{}, false
	}

	if len(data) == 0 {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return drop(err)
		}
	}
	img, err := decodeImage(data)
	if err != nil {
		return drop(err)
	}

	scaled := fitWidth(img, width)
	key := cache.Key("overlay", string(data), fmt.Sprint(width))
	out, _, err := c.Cache.GetOrFill(key, ".png", func(tmp string) error {
		return writePNG(tmp, scaled)
	})
	if err != nil {
		return drop(err)
	}

	b := scaled.Bounds()
	return Overlay{
		Name:      name,
		Kind:      OverlayImage,
		Width:     b.Dx(),
		Height:    b.Dy(),
		ImagePath: out,
	}, true
}

// highlightWords returns up to three PERSON/ORG/GPE entity texts, in order.
func highlightWords(entities []models.Entity) []string {
	var out []string
	seen := map[string]bool{}
	for _, e := range entities {
		switch strings.ToUpper(e.Label) {
		case "PERSON", "ORG", "GPE":
		default:
			continue
		}
		t := strings.TrimSpace(e.Text)
		if t == "" || seen[strings.ToLower(t)] {
			continue
		}
		seen[strings.ToLower(t)] = true
		out = append(out, t)
		if len(out) == maxHighlights {
			break
		}
	}
	return out
}
