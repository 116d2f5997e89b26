package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Process wrappers around the ffmpeg / ffprobe binaries
// ---------------------------------------------------------------------------

// Runner executes one ffmpeg invocation. By convention the output file is the last argument.
type Runner interface {
	Run(ctx context.Context, args []string) error
}

// Prober inspects a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (*MediaInfo, error)
}

// MediaInfo is the subset of ffprobe output the renderer needs.
type MediaInfo struct {
	Duration time.Duration
	Width    int
	Height   int
	HasVideo bool
	HasAudio bool
}

// Seconds returns the duration as float seconds.
func (m *MediaInfo) Seconds() float64 {
	return m.Duration.Seconds()
}

// Exec runs the real binaries.
type Exec struct {
	ffmpeg  string
	ffprobe string
	verbose bool
}

func New(ffmpegPath, ffprobePath string, verbose bool) *Exec {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Exec{ffmpeg: ffmpegPath, ffprobe: ffprobePath, verbose: verbose}
}

const maxErrOutput = 2000

func (e *Exec) Run(ctx context.Context, args []string) error {
	full := append([]string{"-hide_banner", "-loglevel", "error", "-y"}, args...)
	if e.verbose {
		log.Printf("[FFmpeg] %s %s", e.ffmpeg, strings.Join(full, " "))
	}

	cmd := exec.CommandContext(ctx, e.ffmpeg, full...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("ffmpeg: %w\n%s", err, tail(string(out), maxErrOutput))
	}
	return nil
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
}

func (e *Exec) Probe(ctx context.Context, path string) (*MediaInfo, error) {
	cmd := exec.CommandContext(ctx, e.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration:stream=codec_type,width,height,duration",
		"-of", "json",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return parseProbe(out)
}

func parseProbe(out []byte) (*MediaInfo, error) {
	var po probeOutput
	if err := json.Unmarshal(out, &po); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &MediaInfo{}
	durStr := strings.TrimSpace(po.Format.Duration)
	for _, s := range po.Streams {
		switch s.CodecType {
		case "video":
			info.HasVideo = true
			if info.Width == 0 {
				info.Width, info.Height = s.Width, s.Height
			}
		case "audio":
			info.HasAudio = true
		}
		if durStr == "" || durStr == "N/A" {
			durStr = strings.TrimSpace(s.Duration)
		}
	}

	if durStr != "" && durStr != "N/A" {
		sec, err := strconv.ParseFloat(durStr, 64)
		if err != nil {
			return nil, fmt.Errorf("parse duration %q: %w", durStr, err)
		}
		info.Duration = time.Duration(sec * float64(time.Second))
	}
	return info, nil
}

// EscapePath escapes a file path for use inside a quoted filter option value.
func EscapePath(path string) string {
	path = strings.ReplaceAll(path, "\\", "\\\\")
	path = strings.ReplaceAll(path, ":", "\\:")
	path = strings.ReplaceAll(path, "'", "'\\''")
	return path
}

// Seconds formats a float second value with millisecond precision.
func Seconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

// OutputPath returns the last argument, which is the output file by convention.
func OutputPath(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[len(args)-1]
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
