package pipeline

import (
	"encoding/json"
	"log"
	"os"
	"strings"

	"github.com/bobarin/facelessrender/internal/models"
	"github.com/bobarin/facelessrender/internal/render"
)

// SceneReport is the annotated scene plus what happened to it during the run.
type SceneReport struct {
	models.RenderedScene
	AudioSource string                  `json:"audio_source"`
	Audio       render.Outcome          `json:"audio_outcome"`
	Background  render.Outcome          `json:"background_outcome"`
	Dropped     []render.DroppedOverlay `json:"dropped_overlays,omitempty"`
	Degraded    bool                    `json:"degraded,omitempty"`
	Rendered    bool                    `json:"rendered"`
	// Error is set when the scene could not be rendered and was left out.
	Error string `json:"error,omitempty"`
}

type Result struct {
	OutputPath  string                     `json:"output_path"`
	Duration    float64                    `json:"duration"`
	Style       string                     `json:"style"`
	Resolution  models.Resolution          `json:"resolution"`
	Scenes      []SceneReport              `json:"scenes"`
	Transitions []render.AppliedTransition `json:"transitions"`
	Music       render.Outcome             `json:"music"`
	Font        render.Outcome             `json:"font"`
	ReportPath  string                     `json:"-"`
}

// DroppedScenes returns the numbers of scenes left out of the output.
func (r *Result) DroppedScenes() []int {
	var out []int
	for _, s := range r.Scenes {
		if !s.Rendered {
			out = append(out, s.SceneNumber)
		}
	}
	return out
}

// Fallbacks counts every degraded outcome in the run.
func (r *Result) Fallbacks() int {
	n := 0
	for _, s := range r.Scenes {
		if s.Audio.IsFallback() {
			n++
		}
		if s.Background.IsFallback() {
			n++
		}
		n += len(s.Dropped)
	}
	for _, t := range r.Transitions {
		if t.Outcome.IsFallback() {
			n++
		}
	}
	if r.Music.IsFallback() {
		n++
	}
	return n
}

func buildReports(scenes []models.Scene, audio []sceneAudio, clips []*render.RenderedClip, errs []error, tl *render.Timeline, keptIdx []int) []SceneReport {
	starts := map[int]float64{}
	for k, i := range keptIdx {
		starts[i] = tl.Starts[k]
	}

	out := make([]SceneReport, len(scenes))
	for i, s := range scenes {
		r := SceneReport{
			RenderedScene: models.RenderedScene{Scene: s},
			AudioSource:   audio[i].source,
			Audio:         audio[i].outcome,
		}
		if audio[i].source == AudioSynthesized {
			r.AudioPath = audio[i].path
		}
		if c := clips[i]; c != nil {
			r.Rendered = true
			r.EffectiveDuration = c.Duration
			r.AudioDuration = c.AudioDuration
			r.Start = starts[i]
			r.Background = c.Background
			r.Dropped = c.Dropped
			r.Degraded = c.Degraded
			if c.Audio.IsFallback() {
				// resolved narration the renderer could not use
				r.AudioSource = AudioNone
				r.AudioPath = ""
				r.Audio = c.Audio
			}
		} else if errs[i] != nil {
			r.Error = errs[i].Error()
		}
		out[i] = r
	}
	return out
}

// writeReport stores the result as JSON next to the output and returns its path,
// or "" when it could not be written.
func writeReport(res *Result) string {
	path := strings.TrimSuffix(res.OutputPath, ".mp4") + ".report.json"
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		log.Printf("[Pipeline] Warning: could not encode report: %v", err)
		return ""
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Printf("[Pipeline] Warning: could not write report: %v", err)
		return ""
	}
	return path
}
