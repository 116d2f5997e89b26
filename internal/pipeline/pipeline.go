// Package pipeline runs a scene list through audio resolution, scene rendering,
// transition chaining, music mixing and the final encode.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bobarin/facelessrender/internal/cache"
	"github.com/bobarin/facelessrender/internal/ffmpeg"
	"github.com/bobarin/facelessrender/internal/models"
	"github.com/bobarin/facelessrender/internal/render"
	"github.com/bobarin/facelessrender/internal/services"
	"github.com/bobarin/facelessrender/internal/system"
)

// Synthesizer turns narration text into an audio file.
type Synthesizer interface {
	Synthesize(ctx context.Context, req services.SpeechRequest) (*services.Speech, error)
}

// Deps are the collaborators of a run. Speech, Images and Fetcher are optional.
type Deps struct {
	Runner  ffmpeg.Runner
	Prober  ffmpeg.Prober
	Speech  Synthesizer
	Images  render.ImageSource
	Fetcher render.Fetcher
	Cache   *cache.Store
	// FontDir is searched for style fonts given by family name.
	FontDir string
	// TempDir holds per-run work directories; empty means the OS default.
	TempDir string
}

type Orchestrator struct {
	deps Deps
	// OnProgress receives values in [0,1], never decreasing, ending at 1.0 on success.
	OnProgress func(float64)
	now        func() time.Time
}

func New(deps Deps) (*Orchestrator, error) {
	if deps.Runner == nil || deps.Prober == nil {
		return nil, fmt.Errorf("pipeline: ffmpeg runner and prober are required")
	}
	if deps.Cache == nil {
		return nil, fmt.Errorf("pipeline: cache is required")
	}
	return &Orchestrator{deps: deps, now: time.Now}, nil
}

// ProcessVideo renders scenes into one video file and returns its path.
func (o *Orchestrator) ProcessVideo(ctx context.Context, scenes []models.Scene, style models.Style, settings models.Settings) (string, error) {
	res, err := o.Run(ctx, scenes, style, settings)
	if err != nil {
		return "", err
	}
	return res.OutputPath, nil
}

// CompileVideo is ProcessVideo under its older name.
func (o *Orchestrator) CompileVideo(ctx context.Context, scenes []models.Scene, style models.Style, settings models.Settings) (string, error) {
	return o.ProcessVideo(ctx, scenes, style, settings)
}

// Run executes every stage and returns the output path with a per-scene report.
// Run-fatal failures are returned as *PipelineError.
func (o *Orchestrator) Run(ctx context.Context, scenes []models.Scene, style models.Style, settings models.Settings) (*Result, error) {
	prog := newProgress(o.OnProgress)

	// VALIDATE
	if len(scenes) == 0 {
		return nil, fail(StageValidate, ErrNoScenes)
	}
	ordered := make([]models.Scene, len(scenes))
	copy(ordered, scenes)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].SceneNumber < ordered[j].SceneNumber })

	style = style.WithDefaults()
	settings = settings.WithDefaults()
	workers := system.PoolSize(settings.Workers)
	if err := style.Resolution.Validate(); err != nil {
		return nil, fail(StageValidate, err)
	}

	if err := os.MkdirAll(settings.OutputDir, 0755); err != nil {
		return nil, fail(StageValidate, fmt.Errorf("output directory not writable: %w", err))
	}
	runDir, err := os.MkdirTemp(o.deps.TempDir, "faceless-run-*")
	if err != nil {
		return nil, fail(StageValidate, fmt.Errorf("failed to create run dir: %w", err))
	}
	defer os.RemoveAll(runDir)

	log.Printf("[Pipeline] Starting run: %d scenes, style=%s, %s@%dfps, workers=%d",
		len(ordered), style.Name, style.Resolution, style.FPS, workers)

	// RESOLVE_AUDIO
	audio, err := o.resolveAudio(ctx, ordered, settings, workers, prog.stage(0, 0.2, len(ordered)))
	if err != nil {
		return nil, fail(StageResolveAudio, err)
	}

	// RENDER_SCENES
	font, fontOutcome := render.LoadFont(style.Font, o.deps.FontDir, filepath.Join(o.deps.Cache.Dir(), "fonts"))
	fill, err := render.ParseColor(style.BackgroundColor)
	if err != nil {
		fill = render.DefaultFill
	}
	renderer := &render.Renderer{
		Runner: o.deps.Runner,
		Prober: o.deps.Prober,
		Backgrounds: &render.BackgroundResolver{
			Cache:      o.deps.Cache,
			Fetcher:    o.deps.Fetcher,
			Images:     o.deps.Images,
			Fill:       fill,
			ImageStyle: style.Name,
		},
		Overlays:           &render.Compositor{Font: font, Cache: o.deps.Cache},
		TempDir:            runDir,
		AudioBuffer:        settings.AudioBufferSeconds,
		DefaultTransition:  settings.DefaultTransition,
		TransitionDuration: settings.TransitionDuration,
	}

	clips, renderErrs, err := o.renderScenes(ctx, renderer, ordered, style, audio, workers, prog.stage(0.2, 0.7, len(ordered)))
	if err != nil {
		return nil, fail(StageRenderScenes, err)
	}

	var kept []*render.RenderedClip
	var keptIdx []int
	var firstErr error
	for i, c := range clips {
		if c != nil {
			kept = append(kept, c)
			keptIdx = append(keptIdx, i)
			continue
		}
		log.Printf("[Pipeline] Warning: dropping scene %d: %v", ordered[i].SceneNumber, renderErrs[i])
		if firstErr == nil {
			firstErr = renderErrs[i]
		}
	}
	if len(kept) == 0 {
		return nil, fail(StageRenderScenes, fmt.Errorf("%w: %v", ErrAllScenesDropped, firstErr))
	}

	// the title goes on the first scene that made it into the video
	if k := keptIdx[0]; k != 0 && strings.TrimSpace(style.Title) != "" {
		clip, err := renderer.Render(ctx, ordered[k], style, audio[k].path, true, k == len(ordered)-1)
		switch {
		case err == nil:
			clips[k], kept[0] = clip, clip
		case ctx.Err() != nil:
			return nil, fail(StageRenderScenes, ctx.Err())
		default:
			log.Printf("[Pipeline] Warning: scene %d: title render failed, keeping it untitled: %v", ordered[k].SceneNumber, err)
		}
	}

	// CHAIN_TRANSITIONS
	engine := &render.TransitionEngine{Runner: o.deps.Runner, TempDir: runDir}
	tl, err := engine.Chain(ctx, kept, settings.DefaultTransition, settings.TransitionDuration)
	if err != nil {
		return nil, fail(StageChain, err)
	}
	prog.set(0.8)

	// MIX_AUDIO
	perScene := map[int]*models.MusicSpec{}
	for _, s := range ordered {
		if s.Music != nil {
			perScene[s.SceneNumber] = s.Music
		}
	}
	mixer := &render.Mixer{
		Runner:          o.deps.Runner,
		Fetcher:         o.deps.Fetcher,
		TempDir:         runDir,
		NarrationVolume: settings.NarrationVolume,
	}
	mix := mixer.Mix(ctx, tl, render.PlanMusic(tl, settings.Music, perScene, settings.MusicVolume))
	if err := ctx.Err(); err != nil {
		return nil, fail(StageMixAudio, err)
	}
	prog.set(0.9)

	// ENCODE
	out, err := o.encode(ctx, mix.Path, style, settings)
	if err != nil {
		return nil, fail(StageEncode, err)
	}
	o.verify(ctx, out, tl.Total, style)

	res := &Result{
		OutputPath:  out,
		Duration:    tl.Total,
		Style:       style.Name,
		Resolution:  style.Resolution,
		Scenes:      buildReports(ordered, audio, clips, renderErrs, tl, keptIdx),
		Transitions: tl.Transitions,
		Music:       mix.Outcome,
		Font:        fontOutcome,
	}
	if settings.Report {
		res.ReportPath = writeReport(res)
	}

	prog.set(1.0)
	log.Printf("[Pipeline] Done: %s (%.3fs, %d/%d scenes)", out, tl.Total, len(kept), len(ordered))
	return res, nil
}

// Audio sources recorded in the scene report.
const (
	AudioProvided    = "provided"
	AudioSynthesized = "synthesized"
	AudioNone        = "none"
)

type sceneAudio struct {
	path    string
	source  string
	outcome render.Outcome
}

func (o *Orchestrator) resolveAudio(ctx context.Context, scenes []models.Scene, settings models.Settings, workers int, step func()) ([]sceneAudio, error) {
	out := make([]sceneAudio, len(scenes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, s := range scenes {
		g.Go(func() error {
			out[i] = o.audioFor(gctx, s, settings)
			step()
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *Orchestrator) audioFor(ctx context.Context, s models.Scene, settings models.Settings) sceneAudio {
	reason := ""
	if s.AudioPath != "" {
		info, err := os.Stat(s.AudioPath)
		if err == nil && !info.IsDir() && info.Size() > 0 {
			return sceneAudio{path: s.AudioPath, source: AudioProvided, outcome: render.Ok()}
		}
		reason = fmt.Sprintf("audio_path %s unusable", s.AudioPath)
		log.Printf("[Pipeline] Warning: scene %d: %s", s.SceneNumber, reason)
	}

	if strings.TrimSpace(s.Script) == "" || o.deps.Speech == nil {
		if reason != "" {
			return sceneAudio{source: AudioNone, outcome: render.Fallback("%s", reason)}
		}
		return sceneAudio{source: AudioNone, outcome: render.Ok()}
	}

	speech, err := o.deps.Speech.Synthesize(ctx, services.SpeechRequest{
		Text:     s.Script,
		VoiceID:  settings.VoiceID,
		Language: settings.Language,
		Speed:    settings.SpeechSpeed,
	})
	if err != nil {
		log.Printf("[Pipeline] Warning: scene %d: speech failed, rendering silent: %v", s.SceneNumber, err)
		return sceneAudio{source: AudioNone, outcome: render.Fallback("speech failed: %v", err)}
	}
	return sceneAudio{path: speech.Path, source: AudioSynthesized, outcome: render.Ok()}
}

// renderScenes renders in parallel and stores results by index, so the slice order is
// the scene order no matter which render finishes first.
func (o *Orchestrator) renderScenes(ctx context.Context, r *render.Renderer, scenes []models.Scene, style models.Style, audio []sceneAudio, workers int, step func()) ([]*render.RenderedClip, []error, error) {
	clips := make([]*render.RenderedClip, len(scenes))
	errs := make([]error, len(scenes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, s := range scenes {
		g.Go(func() error {
			clip, err := r.Render(gctx, s, style, audio[i].path, i == 0, i == len(scenes)-1)
			if gctx.Err() != nil {
				return gctx.Err()
			}
			clips[i], errs[i] = clip, err
			step()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return clips, errs, nil
}

// progress serializes callbacks and drops any value that would move backwards.
type progress struct {
	mu   sync.Mutex
	last float64
	fn   func(float64)
}

func newProgress(fn func(float64)) *progress {
	return &progress{last: -1, fn: fn}
}

func (p *progress) set(v float64) {
	v = min(max(v, 0), 1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if v <= p.last {
		return
	}
	p.last = v
	if p.fn != nil {
		p.fn(v)
	}
}

// stage returns a step function moving progress from lo to hi over n calls.
func (p *progress) stage(lo, hi float64, n int) func() {
	var mu sync.Mutex
	done := 0
	return func() {
		mu.Lock()
		done++
		v := lo + (hi-lo)*float64(done)/float64(max(n, 1))
		mu.Unlock()
		p.set(v)
	}
}
