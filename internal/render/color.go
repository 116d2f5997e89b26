package render

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// DefaultFill is the dark gray used whenever a background cannot be resolved.
var DefaultFill = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xFF}

var namedColors = map[string]color.RGBA{
	"black": rgb(0, 0, 0),
	"white": rgb(255, 255, 255),
	"gray":  rgb(128, 128, 128),
	"grey":  rgb(128, 128, 128),
	"red":   rgb(255, 0, 0),
	"green": rgb(0, 128, 0),
	"blue":  rgb(0, 0, 255),
}

func rgb(r, g, b uint8) color.RGBA {
	return color.RGBA{R: r, G: g, B: b, A: 0xFF}
}

// ParseColor accepts #RGB, #RRGGBB, 0xRRGGBB, bare RRGGBB, or a few color names.
func ParseColor(s string) (color.RGBA, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return color.RGBA{}, fmt.Errorf("empty color")
	}
	if c, ok := namedColors[v]; ok {
		return c, nil
	}

	v = strings.TrimPrefix(v, "#")
	v = strings.TrimPrefix(v, "0x")
	if len(v) == 3 {
		v = string([]byte{v[0], v[0], v[1], v[1], v[2], v[2]})
	}
	if len(v) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	n, err := strconv.ParseUint(v, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	return color.RGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 0xFF}, nil
}

// colorOr parses s and falls back to def without reporting.
func colorOr(s string, def color.RGBA) color.RGBA {
	c, err := ParseColor(s)
	if err != nil {
		return def
	}
	return c
}

// ffmpegColor formats c for lavfi color sources and drawtext (0xRRGGBB).
func ffmpegColor(c color.RGBA) string {
	return fmt.Sprintf("0x%02X%02X%02X", c.R, c.G, c.B)
}

// assColor formats c in ASS &HAABBGGRR order with the given alpha (00 = opaque).
func assColor(c color.RGBA, alpha uint8) string {
	return fmt.Sprintf("&H%02X%02X%02X%02X", alpha, c.B, c.G, c.R)
}
