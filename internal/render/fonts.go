package render

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// Font is a parsed font file on disk. The path feeds ffmpeg, the parsed face drives
// line wrapping so both agree on text width.
type Font struct {
	Path   string
	Dir    string
	Family string
	parsed *opentype.Font
}

// LoadFont resolves a style font. name may be a file path or a family name looked up
// as <dir>/<name>.ttf|.otf. When nothing matches, the embedded Go Regular face is
// written to fallbackDir and used instead.
func LoadFont(name, dir, fallbackDir string) (*Font, Outcome) {
	for _, candidate := range fontCandidates(name, dir) {
		data, err := os.ReadFile(candidate)
		if err != nil {
			continue
		}
		f, err := parseFont(candidate, data)
		if err != nil {
			log.Printf("[Fonts] Warning: %s is not a usable font: %v", candidate, err)
			continue
		}
		return f, Ok()
	}

	reason := "no font configured"
	if name != "" {
		reason = fmt.Sprintf("font %q not found", name)
		log.Printf("[Fonts] Warning: %s, using Go Regular", reason)
	}

	f, err := embeddedFont(fallbackDir)
	if err != nil {
		// parsing the embedded face cannot fail in practice; keep metrics usable anyway
		log.Printf("[Fonts] Warning: failed to write fallback font: %v", err)
		parsed, _ := opentype.Parse(goregular.TTF)
		return &Font{Family: "Go", parsed: parsed}, Fallback("%s; fallback font not written", reason)
	}
	return f, Fallback("%s", reason)
}

func fontCandidates(name, dir string) []string {
	if name == "" {
		return nil
	}
	out := []string{name}
	if dir != "" && !strings.ContainsRune(name, os.PathSeparator) {
		base := filepath.Join(dir, name)
		out = append(out, base, base+".ttf", base+".otf", base+".TTF")
	}
	return out
}

func embeddedFont(dir string) (*Font, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "goregular.ttf")
	if info, err := os.Stat(path); err != nil || info.Size() != int64(len(goregular.TTF)) {
		tmp, err := os.CreateTemp(dir, ".font-*.ttf")
		if err != nil {
			return nil, err
		}
		if _, err := tmp.Write(goregular.TTF); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return nil, err
		}
		tmp.Close()
		if err := os.Rename(tmp.Name(), path); err != nil {
			os.Remove(tmp.Name())
			return nil, err
		}
	}
	return parseFont(path, goregular.TTF)
}

func parseFont(path string, data []byte) (*Font, error) {
	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, err
	}
	family, err := parsed.Name(&sfnt.Buffer{}, sfnt.NameIDFamily)
	if err != nil || family == "" {
		family = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &Font{Path: path, Dir: filepath.Dir(path), Family: family, parsed: parsed}, nil
}

// face returns a fresh face at px pixels. Faces are not safe for concurrent use.
func (f *Font) face(px int) (font.Face, error) {
	return opentype.NewFace(f.parsed, &opentype.FaceOptions{
		Size:    float64(px),
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

// LineHeight is the distance between baselines at px pixels.
func (f *Font) LineHeight(px int) int {
	face, err := f.face(px)
	if err != nil {
		return px * 6 / 5
	}
	defer face.Close()
	return face.Metrics().Height.Ceil()
}

// Wrap breaks text into lines no wider than maxWidth pixels at size px. Explicit
// newlines are kept; words longer than a line are split by rune.
func (f *Font) Wrap(text string, px, maxWidth int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	face, err := f.face(px)
	if err != nil {
		return strings.Split(text, "\n")
	}
	defer face.Close()

	limit := fixed.I(maxWidth)
	measure := func(s string) fixed.Int26_6 { return font.MeasureString(face, s) }

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			continue
		}
		line := ""
		for _, w := range words {
			for measure(w) > limit && utf8.RuneCountInString(w) > 1 {
				if line != "" {
					lines = append(lines, line)
					line = ""
				}
				head, rest := splitToWidth(w, limit, measure)
				lines = append(lines, head)
				w = rest
			}
			candidate := w
			if line != "" {
				candidate = line + " " + w
			}
			if line != "" && measure(candidate) > limit {
				lines = append(lines, line)
				line = w
				continue
			}
			line = candidate
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// splitToWidth returns the longest rune prefix of w that fits (at least one rune).
func splitToWidth(w string, limit fixed.Int26_6, measure func(string) fixed.Int26_6) (string, string) {
	runes := []rune(w)
	n := 1
	for n < len(runes) && measure(string(runes[:n+1])) <= limit {
		n++
	}
	return string(runes[:n]), string(runes[n:])
}
