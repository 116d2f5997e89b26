package render

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bobarin/facelessrender/internal/models"
)

func TestEffectiveDuration(t *testing.T) {
	tests := []struct {
		name                             string
		declared, audio, buffer, reserve float64
		fps                              int
		want                             float64
	}{
		{"no audio", 4, 0, 0, 0, 30, 4},
		{"audio shorter", 5, 3, 0.5, 0, 30, 5},
		{"audio longer", 2, 3.2, 0, 0, 30, 3.2},
		{"audio plus buffer", 2, 3.2, 0.5, 0, 30, 3.7},
		{"rounds up to frame", 2, 3.21, 0, 0, 30, 97.0 / 30},
		{"exact frame stays", 3.2, 0, 0, 0, 25, 3.2},
		{"reserves outgoing fade", 2, 3.2, 0, 0.5, 30, 3.7},
		{"reserve with buffer", 2, 3.2, 0.2, 0.7, 30, 4.1},
		{"declared leaves room", 5, 3, 0.5, 0.5, 30, 5},
		{"declared too tight", 3.2, 3, 0, 0.5, 30, 3.5},
		{"silent ignores reserve", 4, 0, 0, 0.5, 30, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EffectiveDuration(tt.declared, tt.audio, tt.buffer, tt.reserve, tt.fps)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("got %.6f, want %.6f", got, tt.want)
			}
			if got < tt.declared || got < tt.audio {
				t.Errorf("duration %.3f below declared %.3f or audio %.3f", got, tt.declared, tt.audio)
			}
			if tt.audio > 0 && got-tt.audio < tt.reserve-1e-9 {
				t.Errorf("duration %.3f leaves less than %.3fs after narration", got, tt.reserve)
			}
		})
	}
}

func newTestRenderer(t *testing.T, runner *fakeRunner, prober *fakeProber) *Renderer {
	store := newTestCache(t)
	return &Renderer{
		Runner:            runner,
		Prober:            prober,
		Backgrounds:       &BackgroundResolver{Cache: store},
		Overlays:          &Compositor{Font: testFont(t), Cache: store},
		TempDir:           t.TempDir(),
		DefaultTransition: models.TransitionFade,
	}
}

func TestRenderExtendsToNarration(t *testing.T) {
	audio := writeFile(t, t.TempDir(), "hello.mp3", []byte("mp3"))
	runner := &fakeRunner{}
	r := newTestRenderer(t, runner, &fakeProber{durations: map[string]float64{audio: 3.2}})

	scene := models.Scene{SceneNumber: 1, Script: "Hello world", Duration: 2.0}
	clip, err := r.Render(context.Background(), scene, models.Style{}.WithDefaults(), audio, true, true)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if math.Abs(clip.Duration-3.2) > 1e-9 {
		t.Errorf("duration = %v, want 3.2", clip.Duration)
	}
	if !clip.HasAudio || clip.Transition != models.TransitionFade {
		t.Errorf("clip = %+v", clip)
	}

	args := runner.last()
	if argValue(args, "-t") != "3.200" {
		t.Errorf("-t = %s", argValue(args, "-t"))
	}
	if !hasArg(args, audio) || hasArg(args, "anullsrc") {
		t.Error("narration not attached")
	}
	if scene.Duration != 2.0 {
		t.Error("scene mutated")
	}
}

func TestRenderSilentScene(t *testing.T) {
	runner := &fakeRunner{}
	r := newTestRenderer(t, runner, &fakeProber{})
	empty := writeFile(t, t.TempDir(), "empty.mp3", nil)

	clip, err := r.Render(context.Background(), models.Scene{SceneNumber: 3, Script: "Quiet"}, models.Style{}.WithDefaults(), empty, false, false)
	if err != nil {
		t.Fatal(err)
	}
	if clip.HasAudio || clip.Duration != models.DefaultSceneDuration {
		t.Errorf("clip = %+v", clip)
	}
	if !clip.Audio.IsFallback() {
		t.Errorf("discarded narration reported as %+v", clip.Audio)
	}
	if !hasArg(runner.last(), "anullsrc") {
		t.Error("silent track missing")
	}

	// no narration at all is not a fallback
	clip, err = r.Render(context.Background(), models.Scene{SceneNumber: 4, Script: "Quiet"}, models.Style{}.WithDefaults(), "", false, false)
	if err != nil {
		t.Fatal(err)
	}
	if clip.Audio.IsFallback() {
		t.Errorf("audio = %+v, want ok", clip.Audio)
	}
}

func TestRenderUnprobeableNarration(t *testing.T) {
	// the prober knows nothing about this file
	audio := writeFile(t, t.TempDir(), "speech.mp3", []byte("not really audio"))
	runner := &fakeRunner{}
	r := newTestRenderer(t, runner, &fakeProber{})

	clip, err := r.Render(context.Background(), models.Scene{SceneNumber: 2, Script: "Hi", Duration: 2}, models.Style{}.WithDefaults(), audio, false, true)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if clip.HasAudio || clip.AudioDuration != 0 {
		t.Errorf("clip = %+v", clip)
	}
	if !clip.Audio.IsFallback() || !strings.Contains(clip.Audio.Reason, "not decodable") {
		t.Errorf("audio = %+v", clip.Audio)
	}
	if hasArg(runner.last(), audio) {
		t.Error("unusable narration attached")
	}
}

func TestRenderReservesOutgoingFade(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, dir, "one.mp3", []byte("mp3"))
	second := writeFile(t, dir, "two.mp3", []byte("mp3"))
	r := newTestRenderer(t, &fakeRunner{}, &fakeProber{durations: map[string]float64{first: 3.2, second: 2.5}})
	style := models.Style{}.WithDefaults()

	a, err := r.Render(context.Background(), models.Scene{SceneNumber: 1, Script: "One", Duration: 2}, style, first, true, false)
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Render(context.Background(), models.Scene{SceneNumber: 2, Script: "Two", Duration: 2, Transition: models.TransitionSlide}, style, second, false, true)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(a.Duration-3.7) > 1e-9 {
		t.Errorf("outgoing scene = %v, want 3.2 + 0.5 fade", a.Duration)
	}
	if math.Abs(b.Duration-2.5) > 1e-9 {
		t.Errorf("last scene = %v, want 2.5 with nothing reserved", b.Duration)
	}

	tl := PlanTimeline([]*RenderedClip{a, b}, models.TransitionFade, 0)
	if end := tl.Starts[0] + a.AudioDuration; end > tl.Starts[1]+1e-9 {
		t.Errorf("narration of scene 1 ends at %.3f, after scene 2 starts at %.3f", end, tl.Starts[1])
	}
}

func TestRenderDegradedRetry(t *testing.T) {
	runner := &fakeRunner{fail: func(args []string) error {
		if hasArg(args, "drawtext") {
			return errors.New("ffmpeg: exit status 1\nNo such filter")
		}
		return nil
	}}
	r := newTestRenderer(t, runner, &fakeProber{})
	style := models.Style{Title: "Title", Logo: pngBytes(t, 50, 50)}.WithDefaults()

	clip, err := r.Render(context.Background(), models.Scene{SceneNumber: 1, Script: "Hi", Background: models.Background{Type: models.BackgroundColor, Value: "#112233"}}, style, "", true, true)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if runner.count() != 2 || !clip.Degraded {
		t.Fatalf("calls = %d, degraded = %v", runner.count(), clip.Degraded)
	}
	args := runner.last()
	if hasArg(args, "0x112233") || !hasArg(args, "ass=") {
		t.Errorf("degraded graph = %v", args)
	}
	if len(clip.Dropped) != 2 {
		t.Errorf("dropped = %+v", clip.Dropped)
	}
}

func TestRenderSceneFatal(t *testing.T) {
	runner := &fakeRunner{fail: func([]string) error { return errors.New("ffmpeg: exit status 1") }}
	r := newTestRenderer(t, runner, &fakeProber{})
	if _, err := r.Render(context.Background(), models.Scene{SceneNumber: 9, Script: "x"}, models.Style{}.WithDefaults(), "", false, false); err == nil {
		t.Fatal("expected error")
	}
	if runner.count() != 2 {
		t.Errorf("calls = %d, want full + degraded", runner.count())
	}
}

func TestSceneArgsImageWithMotion(t *testing.T) {
	dir := t.TempDir()
	bg := Layer{Kind: LayerImage, Path: filepath.Join(dir, "bg.png"), Width: 1280, Height: 720, Duration: 2, Motion: MotionPanLeft}
	args := sceneArgs(sceneGraph{Background: bg, FPS: 30, Duration: 2, Output: filepath.Join(dir, "out.mp4")})

	if args[0] != "-i" || args[1] != bg.Path {
		t.Errorf("animated background must be a single frame input: %v", args[:4])
	}
	graph := argValue(args, "-filter_complex")
	if !strings.Contains(graph, "zoompan=") || !strings.Contains(graph, ":d=60:s=1280x720:fps=30") {
		t.Errorf("graph = %s", graph)
	}
}

func TestSceneArgsTextLayer(t *testing.T) {
	o := Overlay{Name: "title", Kind: OverlayText, Y: 100, LineHeight: 40, FontSize: 36, Opacity: 1, End: 5, FadeOut: 1, Align: AlignCenter, Lines: []string{"a", "b"}}
	graph := argValue(sceneArgs(sceneGraph{
		Background: Layer{Kind: LayerColor, Color: DefaultFill, Width: 640, Height: 360},
		Layers:     []graphLayer{{Overlay: o, textFiles: []string{"/t/0.txt", "/t/1.txt"}}},
		FontPath:   "/fonts/a.ttf",
		FPS:        30,
		Duration:   8,
		Output:     "/t/out.mp4",
	}), "-filter_complex")

	for _, want := range []string{
		"textfile='/t/0.txt'",
		"y=140",
		"x=(w-text_w)/2",
		"alpha='1.00*if(lt(t,5.000-1.000),1,max(0,(5.000-t)/1.000))'",
		"enable='between(t,0.000,5.000)'",
		"expansion=none",
	} {
		if !strings.Contains(graph, want) {
			t.Errorf("graph missing %q:\n%s", want, graph)
		}
	}
}

func TestMotionForSceneDeterministic(t *testing.T) {
	if MotionForScene(4) != MotionForScene(4) || MotionForScene(-3) == MotionNone {
		t.Error("motion not deterministic")
	}
	if MotionForScene(1) == MotionForScene(2) {
		t.Error("adjacent scenes share a motion")
	}
}

func TestWriteASS(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.ass")
	sub := Overlay{
		Lines:        []string{"Kaldi found coffee", "in {Ethiopia}"},
		Highlights:   []string{"Kaldi"},
		FontSize:     36,
		Width:        1820,
		Color:        rgb(255, 255, 255),
		Accent:       rgb(0xFF, 0xD3, 0x69),
		Position:     models.SubtitleBottom,
		BottomMargin: 50,
	}
	if err := writeASS(path, sub, "Go", 1920, 1080, 3.2); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	s := string(data)
	for _, want := range []string{
		"PlayResX: 1920",
		"WrapStyle: 2",
		",2,50,50,50,1",
		"0:00:03.20",
		`{\1c&H69D3FF&}Kaldi{\r} found coffee\Nin \{Ethiopia\}`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("ass missing %q:\n%s", want, s)
		}
	}
}
