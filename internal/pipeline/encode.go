package pipeline

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bobarin/facelessrender/internal/models"
)

// outputName is the final file name for a style rendered at t.
func (o *Orchestrator) outputName(style models.Style) string {
	return fmt.Sprintf("video_%s_%dx%d_%s.mp4",
		slug(style.Name), style.Resolution.Width, style.Resolution.Height, o.now().Format("20060102_150405"))
}

// encode transcodes src into a temp file inside the output directory and renames it
// into place, so the final name only ever refers to a complete file.
func (o *Orchestrator) encode(ctx context.Context, src string, style models.Style, settings models.Settings) (string, error) {
	tmpFile, err := os.CreateTemp(settings.OutputDir, ".video-*.part")
	if err != nil {
		return "", fmt.Errorf("output directory not writable: %w", err)
	}
	tmp := tmpFile.Name()
	tmpFile.Close()

	log.Printf("[Pipeline] Encoding final video (bitrate=%s)", style.Bitrate)
	if err := o.deps.Runner.Run(ctx, encodeArgs(src, style, tmp)); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("final encode failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		os.Remove(tmp)
		return "", err
	}

	final := uniquePath(filepath.Join(settings.OutputDir, o.outputName(style)))
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to move output into place: %w", err)
	}
	return final, nil
}

func encodeArgs(src string, style models.Style, out string) []string {
	return []string{
		"-i", src,
		"-map", "0:v:0", "-map", "0:a:0",
		"-c:v", "libx264", "-preset", "medium",
		"-b:v", style.Bitrate, "-maxrate", style.Bitrate, "-bufsize", doubleBitrate(style.Bitrate),
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(style.FPS),
		"-c:a", "aac", "-b:a", "192k", "-ar", "44100",
		"-movflags", "+faststart",
		"-f", "mp4",
		out,
	}
}

// doubleBitrate turns "8M" into "16M" for the rate-control buffer.
func doubleBitrate(b string) string {
	num := strings.TrimRight(b, "kKmMgG")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil || n <= 0 {
		return b
	}
	return strconv.FormatFloat(n*2, 'f', -1, 64) + b[len(num):]
}

// verify probes the written file and warns when it does not match the timeline.
func (o *Orchestrator) verify(ctx context.Context, path string, want float64, style models.Style) {
	info, err := o.deps.Prober.Probe(ctx, path)
	if err != nil {
		log.Printf("[Pipeline] Warning: could not verify output: %v", err)
		return
	}
	frame := 1.0 / float64(style.FPS)
	if diff := math.Abs(info.Seconds() - want); diff > frame+1e-6 {
		log.Printf("[Pipeline] Warning: output duration %.3fs differs from timeline %.3fs", info.Seconds(), want)
	}
	if info.Width != 0 && (info.Width != style.Resolution.Width || info.Height != style.Resolution.Height) {
		log.Printf("[Pipeline] Warning: output is %dx%d, expected %s", info.Width, info.Height, style.Resolution)
	}
}

func uniquePath(p string) string {
	if _, err := os.Stat(p); os.IsNotExist(err) {
		return p
	}
	ext := filepath.Ext(p)
	base := strings.TrimSuffix(p, ext)
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

func slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case r == ' ' || r == '_':
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "custom"
	}
	return b.String()
}
