package render

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/bobarin/facelessrender/internal/ffmpeg"
	"github.com/bobarin/facelessrender/internal/models"
)

var ErrNoClips = errors.New("no clips to chain")

// AppliedTransition is the join between scene From and scene To.
type AppliedTransition struct {
	From     int               `json:"from"`
	To       int               `json:"to"`
	Kind     models.Transition `json:"kind"`
	Duration float64           `json:"duration"`
	Offset   float64           `json:"offset"`
	Outcome  Outcome           `json:"outcome"`
}

// Timeline is the chained video. Starts[i] is where clip i begins; cross-fades
// overlap the outgoing clip, so Total = sum(durations) - sum(non-cut fades).
type Timeline struct {
	Path         string
	SceneNumbers []int
	Starts       []float64
	Durations    []float64
	Transitions  []AppliedTransition
	Total        float64
}

// xfadeNames maps transition kinds to ffmpeg xfade transitions.
var xfadeNames = map[models.Transition]string{
	models.TransitionFade:     "fade",
	models.TransitionDissolve: "dissolve",
	models.TransitionWipe:     "wipeleft",
	models.TransitionSlide:    "slideleft",
}

// PlanTimeline computes start times and joins without touching any files. A fade
// of zero gives each transition kind its own length.
func PlanTimeline(clips []*RenderedClip, def models.Transition, fade float64) Timeline {
	if !def.Valid() {
		def = models.TransitionFade
	}
	tl := Timeline{
		SceneNumbers: make([]int, len(clips)),
		Starts:       make([]float64, len(clips)),
		Durations:    make([]float64, len(clips)),
	}

	t := 0.0
	for i, c := range clips {
		tl.SceneNumbers[i] = c.SceneNumber
		tl.Starts[i] = t
		tl.Durations[i] = c.Duration
		if i == len(clips)-1 {
			t += c.Duration
			break
		}

		kind := c.Transition
		outcome := Ok()
		if kind == "" {
			kind = def
		}
		if !kind.Valid() {
			log.Printf("[Transitions] Warning: unknown transition %q after scene %d, using fade", kind, c.SceneNumber)
			outcome = Fallback("unknown transition %q", kind)
			kind = models.TransitionFade
		}

		f := 0.0
		if kind != models.TransitionCut {
			f = math.Min(kind.FadeDuration(fade), math.Min(c.Duration, clips[i+1].Duration)/2)
			if f <= 0 {
				kind, f = models.TransitionCut, 0
			}
		}

		tl.Transitions = append(tl.Transitions, AppliedTransition{
			From:     c.SceneNumber,
			To:       clips[i+1].SceneNumber,
			Kind:     kind,
			Duration: f,
			Offset:   t + c.Duration - f,
			Outcome:  outcome,
		})
		t += c.Duration - f
	}
	tl.Total = t
	return tl
}

// TransitionEngine joins rendered clips into one continuous file.
type TransitionEngine struct {
	Runner  ffmpeg.Runner
	TempDir string
}

func (e *TransitionEngine) Chain(ctx context.Context, clips []*RenderedClip, def models.Transition, fade float64) (*Timeline, error) {
	if len(clips) == 0 {
		return nil, ErrNoClips
	}
	tl := PlanTimeline(clips, def, fade)
	if len(clips) == 1 {
		tl.Path = clips[0].Path
		return &tl, nil
	}

	if err := os.MkdirAll(e.TempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	tl.Path = filepath.Join(e.TempDir, "timeline.mp4")

	log.Printf("[Transitions] Chaining %d clips, total %.3fs", len(clips), tl.Total)
	if err := e.Runner.Run(ctx, chainArgs(clips, tl)); err != nil {
		return nil, fmt.Errorf("chain transitions: %w", err)
	}
	return &tl, nil
}

// chainArgs builds the pairwise video graph (concat for cuts, xfade otherwise) and an
// audio graph that delays each clip's track to its start and sums them.
func chainArgs(clips []*RenderedClip, tl Timeline) []string {
	var args []string
	for _, c := range clips {
		args = append(args, "-i", c.Path)
	}

	var graph []string
	for i := range clips {
		graph = append(graph, fmt.Sprintf("[%d:v]settb=AVTB,setpts=PTS-STARTPTS,format=yuv420p[n%d]", i, i))
	}

	cur := "[n0]"
	for i, tr := range tl.Transitions {
		out := fmt.Sprintf("[x%d]", i+1)
		next := fmt.Sprintf("[n%d]", i+1)
		if tr.Kind == models.TransitionCut {
			graph = append(graph, fmt.Sprintf("%s%sconcat=n=2:v=1:a=0%s", cur, next, out))
		} else {
			graph = append(graph, fmt.Sprintf("%s%sxfade=transition=%s:duration=%s:offset=%s%s",
				cur, next, xfadeNames[tr.Kind], ffmpeg.Seconds(tr.Duration), ffmpeg.Seconds(tr.Offset), out))
		}
		cur = out
	}
	graph = append(graph, cur+"null[vout]")

	labels := make([]string, len(clips))
	for i := range clips {
		ms := int64(math.Round(tl.Starts[i] * 1000))
		labels[i] = fmt.Sprintf("[a%d]", i)
		graph = append(graph, fmt.Sprintf("[%d:a]aresample=44100,asetpts=PTS-STARTPTS,adelay=%d:all=1%s", i, ms, labels[i]))
	}
	graph = append(graph, fmt.Sprintf("%samix=inputs=%d:normalize=0:duration=longest,atrim=0:%s[aout]",
		strings.Join(labels, ""), len(clips), ffmpeg.Seconds(tl.Total)))

	args = append(args,
		"-filter_complex", strings.Join(graph, ";"),
		"-map", "[vout]",
		"-map", "[aout]",
		"-t", ffmpeg.Seconds(tl.Total),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "18",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		tl.Path,
	)
	return args
}
