package render

import (
	"fmt"
	"image/color"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bobarin/facelessrender/internal/models"
)

// ---------------------------------------------------------------------------
// ASS subtitle file for the scene subtitle layer
//
// The text arrives already wrapped with the same font metrics used for layout, so
// the script disables libass wrapping (WrapStyle 2) and joins lines with \N.
// Entity words are recolored inline with the accent color.
// ---------------------------------------------------------------------------

const (
	assColorBlack     = "&H00000000"
	assColorSemiBlack = "&H80000000"
)

// writeASS writes a single-event ASS script for the subtitle overlay.
func writeASS(path string, sub Overlay, family string, frameW, frameH int, duration float64) error {
	var sb strings.Builder

	sb.WriteString("[Script Info]\n")
	sb.WriteString("ScriptType: v4.00+\n")
	sb.WriteString(fmt.Sprintf("PlayResX: %d\n", frameW))
	sb.WriteString(fmt.Sprintf("PlayResY: %d\n", frameH))
	sb.WriteString("WrapStyle: 2\n")
	sb.WriteString("ScaledBorderAndShadow: yes\n")
	sb.WriteString("\n")

	alignment, marginV := 2, sub.BottomMargin
	if sub.Position == models.SubtitleCenter {
		alignment, marginV = 5, 0
	}
	marginH := (frameW - sub.Width) / 2
	if marginH < 0 {
		marginH = 0
	}

	sb.WriteString("[V4+ Styles]\n")
	sb.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	sb.WriteString(fmt.Sprintf(
		"Style: Default,%s,%d,%s,%s,%s,%s,0,0,0,0,100,100,0,0,1,%d,1,%d,%d,%d,%d,1\n",
		family, sub.FontSize,
		assColor(sub.Color, 0),
		assColor(sub.Color, 0),
		assColorBlack,
		assColorSemiBlack,
		outlineWidth(sub.FontSize),
		alignment, marginH, marginH, marginV,
	))
	sb.WriteString("\n")

	sb.WriteString("[Events]\n")
	sb.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	sb.WriteString(fmt.Sprintf(
		"Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
		formatASSTime(sub.Start),
		formatASSTime(duration),
		assText(sub.Lines, sub.Highlights, sub.Accent),
	))

	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write ASS subtitle file: %w", err)
	}
	return nil
}

func outlineWidth(fontSize int) int {
	if w := fontSize / 12; w > 2 {
		return w
	}
	return 2
}

// assText joins pre-wrapped lines and recolors highlight words.
func assText(lines, highlights []string, accent color.RGBA) string {
	tag := fmt.Sprintf("{\\1c&H%02X%02X%02X&}", accent.B, accent.G, accent.R)
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = escapeASS(line)
		for _, word := range highlights {
			line = highlightASS(line, escapeASS(word), tag)
		}
		out = append(out, line)
	}
	return strings.Join(out, "\\N")
}

// highlightASS wraps whole-word, case-insensitive matches of word in an override tag.
func highlightASS(line, word, tag string) string {
	if word == "" {
		return line
	}
	lower, lw := strings.ToLower(line), strings.ToLower(word)
	if len(lower) != len(line) {
		// case mapping changed byte offsets; leave the line alone
		return line
	}
	var sb strings.Builder
	i := 0
	for {
		j := strings.Index(lower[i:], lw)
		if j < 0 {
			sb.WriteString(line[i:])
			return sb.String()
		}
		j += i
		end := j + len(lw)
		if isWordBoundary(line, j, true) && isWordBoundary(line, end, false) {
			sb.WriteString(line[i:j])
			sb.WriteString(tag)
			sb.WriteString(line[j:end])
			sb.WriteString("{\\r}")
		} else {
			sb.WriteString(line[i:end])
		}
		i = end
	}
}

// isWordBoundary reports whether the rune touching byte offset i is not part of a word.
// before selects the rune ending at i rather than the one starting there.
func isWordBoundary(s string, i int, before bool) bool {
	var r rune
	if before {
		if i <= 0 {
			return true
		}
		r, _ = utf8.DecodeLastRuneInString(s[:i])
	} else {
		if i >= len(s) {
			return true
		}
		r, _ = utf8.DecodeRuneInString(s[i:])
	}
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// escapeASS keeps user text from being read as override blocks or line breaks.
func escapeASS(s string) string {
	s = strings.ReplaceAll(s, "\\", "＼")
	s = strings.ReplaceAll(s, "{", "\\{")
	s = strings.ReplaceAll(s, "}", "\\}")
	return s
}

// formatASSTime converts seconds to ASS timestamp format: H:MM:SS.CC (centiseconds)
func formatASSTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}

	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := int(seconds) % 60
	centiseconds := int((seconds - float64(int(seconds))) * 100)

	return fmt.Sprintf("%d:%02d:%02d.%02d", hours, minutes, secs, centiseconds)
}
