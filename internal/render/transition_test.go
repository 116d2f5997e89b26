package render

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/bobarin/facelessrender/internal/models"
)

func clipsOf(durations []float64, transitions ...models.Transition) []*RenderedClip {
	clips := make([]*RenderedClip, len(durations))
	for i, d := range durations {
		clips[i] = &RenderedClip{Path: "/tmp/clip" + string(rune('a'+i)) + ".mp4", SceneNumber: i + 1, Duration: d}
		if i < len(transitions) {
			clips[i].Transition = transitions[i]
		}
	}
	return clips
}

func TestPlanTimelineConsumesFades(t *testing.T) {
	tl := PlanTimeline(clipsOf([]float64{4, 4, 4}), models.TransitionFade, 0.5)

	if math.Abs(tl.Total-11.0) > 1e-9 {
		t.Errorf("total = %v, want 11.0", tl.Total)
	}
	if len(tl.Transitions) != 2 {
		t.Fatalf("transitions = %d, want 2", len(tl.Transitions))
	}
	wantStarts := []float64{0, 3.5, 7}
	for i, s := range tl.Starts {
		if math.Abs(s-wantStarts[i]) > 1e-9 {
			t.Errorf("start[%d] = %v, want %v", i, s, wantStarts[i])
		}
	}
	if tl.Transitions[1].Offset != 7 {
		t.Errorf("second xfade offset = %v", tl.Transitions[1].Offset)
	}
}

func TestPlanTimelineMixedTransitions(t *testing.T) {
	tl := PlanTimeline(clipsOf([]float64{3, 3, 3, 3}, models.TransitionCut, models.TransitionSlide, "spiral"), models.TransitionFade, 0)

	if len(tl.Transitions) != 3 {
		t.Fatalf("transitions = %d", len(tl.Transitions))
	}
	if tl.Transitions[0].Kind != models.TransitionCut || tl.Transitions[0].Duration != 0 {
		t.Errorf("cut = %+v", tl.Transitions[0])
	}
	if slide := tl.Transitions[1]; slide.Kind != models.TransitionSlide || math.Abs(slide.Duration-0.7) > 1e-9 {
		t.Errorf("slide = %+v, want 0.7s", slide)
	}
	unknown := tl.Transitions[2]
	if unknown.Kind != models.TransitionFade || !unknown.Outcome.IsFallback() || math.Abs(unknown.Duration-0.5) > 1e-9 {
		t.Errorf("unknown transition = %+v", unknown)
	}
	if math.Abs(tl.Total-(12-1.2)) > 1e-9 {
		t.Errorf("total = %v", tl.Total)
	}
	for i := 1; i < len(tl.Starts); i++ {
		if tl.Starts[i] <= tl.Starts[i-1] {
			t.Errorf("starts not increasing: %v", tl.Starts)
		}
	}

	// a configured length overrides every kind
	tl = PlanTimeline(clipsOf([]float64{3, 3}, models.TransitionWipe), models.TransitionFade, 0.4)
	if got := tl.Transitions[0].Duration; math.Abs(got-0.4) > 1e-9 {
		t.Errorf("configured wipe = %v, want 0.4", got)
	}
}

func TestPlanTimelineClampsFade(t *testing.T) {
	tl := PlanTimeline(clipsOf([]float64{0.6, 5}), models.TransitionDissolve, 2)
	if got := tl.Transitions[0].Duration; math.Abs(got-0.3) > 1e-9 {
		t.Errorf("fade = %v, want 0.3", got)
	}
}

func TestChainSingleClipBypasses(t *testing.T) {
	runner := &fakeRunner{}
	e := &TransitionEngine{Runner: runner, TempDir: t.TempDir()}
	clips := clipsOf([]float64{4})

	tl, err := e.Chain(context.Background(), clips, models.TransitionFade, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if runner.count() != 0 || tl.Path != clips[0].Path || len(tl.Transitions) != 0 {
		t.Errorf("single clip: calls = %d, timeline = %+v", runner.count(), tl)
	}
}

func TestChainNoClips(t *testing.T) {
	e := &TransitionEngine{Runner: &fakeRunner{}, TempDir: t.TempDir()}
	if _, err := e.Chain(context.Background(), nil, models.TransitionFade, 0.5); !errors.Is(err, ErrNoClips) {
		t.Errorf("err = %v", err)
	}
}

func TestChainArgs(t *testing.T) {
	runner := &fakeRunner{}
	e := &TransitionEngine{Runner: runner, TempDir: t.TempDir()}
	_, err := e.Chain(context.Background(), clipsOf([]float64{4, 4, 4}, models.TransitionCut, models.TransitionWipe), models.TransitionFade, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	graph := argValue(runner.last(), "-filter_complex")
	for _, want := range []string{
		"[n0][n1]concat=n=2:v=1:a=0[x1]",
		"[x1][n2]xfade=transition=wipeleft:duration=0.500:offset=7.500[x2]",
		"adelay=4000:all=1",
		"adelay=7500:all=1",
		"amix=inputs=3:normalize=0:duration=longest,atrim=0:11.500[aout]",
	} {
		if !strings.Contains(graph, want) {
			t.Errorf("graph missing %q:\n%s", want, graph)
		}
	}
}

func TestChainFailure(t *testing.T) {
	runner := &fakeRunner{fail: func([]string) error { return errors.New("ffmpeg: exit status 1") }}
	e := &TransitionEngine{Runner: runner, TempDir: t.TempDir()}
	if _, err := e.Chain(context.Background(), clipsOf([]float64{1, 1}), models.TransitionFade, 0.5); err == nil {
		t.Fatal("expected error")
	}
}
