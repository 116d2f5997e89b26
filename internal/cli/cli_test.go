package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bobarin/facelessrender/internal/config"
	"github.com/bobarin/facelessrender/internal/models"
	"github.com/bobarin/facelessrender/internal/pipeline"
)

func TestResolveRunPrecedence(t *testing.T) {
	sf := &config.SceneFile{
		Scenes:   []models.Scene{{SceneNumber: 1, Script: "Hi."}},
		Style:    &models.Style{Name: "modern", FPS: 24},
		Settings: &models.Settings{OutputDir: "from-scene-file", Workers: 2},
	}
	cfg := &config.Config{OutputDir: "output", BackgroundMusicPath: "bed.mp3", MusicVolume: 0.1}

	style, settings, err := resolveRun(sf, nil, renderFlags{}, cfg)
	if err != nil {
		t.Fatalf("resolveRun() error = %v", err)
	}
	if style.FPS != 24 || style.BackgroundColor != "#2C3333" {
		t.Errorf("scene file style not used: %+v", style)
	}
	if settings.OutputDir != "from-scene-file" || settings.Workers != 2 {
		t.Errorf("settings = %+v", settings)
	}
	if settings.Music == nil || settings.Music.Source != "bed.mp3" || settings.MusicVolume != 0.1 {
		t.Errorf("env music defaults not applied: %+v", settings)
	}

	rf := &config.RenderFile{
		Style:    models.Style{Name: "corporate", BackgroundColor: "#395B64"},
		Settings: models.Settings{TransitionDuration: 0.8},
	}
	flags := renderFlags{style: "Tech", resolution: "shorts", out: "flag-out", music: "song.mp3", workers: 3, report: true}
	style, settings, err = resolveRun(sf, rf, flags, cfg)
	if err != nil {
		t.Fatalf("resolveRun() error = %v", err)
	}
	if style.Name != "tech" || style.BackgroundColor != "#000000" || style.TextColor != "#00FF00" {
		t.Errorf("style flag not applied: %+v", style)
	}
	if style.Resolution != (models.Resolution{Width: 1080, Height: 1920}) {
		t.Errorf("resolution = %v", style.Resolution)
	}
	if settings.TransitionDuration != 0.8 {
		t.Errorf("settings file not used: %+v", settings)
	}
	if settings.OutputDir != "flag-out" || settings.Workers != 3 || !settings.Report {
		t.Errorf("flags not applied: %+v", settings)
	}
	if settings.Music.Source != "song.mp3" {
		t.Errorf("music = %+v", settings.Music)
	}
}

func TestResolveRunErrors(t *testing.T) {
	sf := &config.SceneFile{Scenes: []models.Scene{{SceneNumber: 1}}}
	if _, _, err := resolveRun(sf, nil, renderFlags{style: "neon"}, nil); err == nil || !strings.Contains(err.Error(), "casual") {
		t.Errorf("expected unknown style error listing presets, got %v", err)
	}
	if _, _, err := resolveRun(sf, nil, renderFlags{resolution: "999x"}, nil); err == nil {
		t.Error("expected resolution error")
	}
}

func TestAspectRatio(t *testing.T) {
	tests := []struct {
		res  models.Resolution
		want string
	}{
		{models.ResolutionPresets["fhd"], "16:9"},
		{models.ResolutionPresets["shorts"], "9:16"},
		{models.Resolution{Width: 1080, Height: 1080}, "1:1"},
	}
	for _, tt := range tests {
		if got := aspectRatio(tt.res); got != tt.want {
			t.Errorf("aspectRatio(%v) = %q, want %q", tt.res, got, tt.want)
		}
	}
}

func TestMarshalScenesReadsBack(t *testing.T) {
	in := []models.Scene{
		{SceneNumber: 1, Script: "Deep under the ocean.", Duration: 4.5,
			Background: models.Background{Type: models.BackgroundAPI, Value: "hydrothermal vent"}},
		{SceneNumber: 2, Script: "Life thrives without sunlight.", Transition: models.TransitionWipe},
	}
	data, err := marshalScenes(in)
	if err != nil {
		t.Fatal(err)
	}
	f, err := config.ParseScenes(data)
	if err != nil {
		t.Fatalf("ParseScenes() error = %v\n%s", err, data)
	}
	if len(f.Scenes) != 2 {
		t.Fatalf("scenes = %d", len(f.Scenes))
	}
	if f.Scenes[0].Background.Value != "hydrothermal vent" || f.Scenes[0].Duration != 4.5 {
		t.Errorf("scene 1 = %+v", f.Scenes[0])
	}
	if f.Scenes[1].Transition != models.TransitionWipe {
		t.Errorf("scene 2 = %+v", f.Scenes[1])
	}
}

func TestPlainProgress(t *testing.T) {
	var buf bytes.Buffer
	report := plainProgress(&buf)
	for _, p := range []float64{0.02, 0.05, 0.12, 0.15, 0.45, 0.95, 1} {
		report(p)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.Contains(lines[1], "Rendering scenes") || !strings.Contains(lines[3], "Done") {
		t.Errorf("lines = %q", lines)
	}
}

func TestStageLabel(t *testing.T) {
	tests := []struct {
		p    float64
		want string
	}{
		{0, "Resolving audio"},
		{0.3, "Rendering scenes"},
		{0.75, "Chaining transitions"},
		{0.85, "Mixing audio"},
		{0.95, "Encoding"},
		{1, "Done"},
	}
	for _, tt := range tests {
		if got := stageLabel(tt.p); got != tt.want {
			t.Errorf("stageLabel(%v) = %q, want %q", tt.p, got, tt.want)
		}
	}
}

func TestRenderModelUpdate(t *testing.T) {
	cancelled := false
	m := newRenderModel("scenes.yaml", 3, func() { cancelled = true })

	next, _ := m.Update(progressMsg(0.4))
	m = next.(renderModel)
	next, _ = m.Update(progressMsg(0.3))
	m = next.(renderModel)
	if m.progress != 0.4 {
		t.Errorf("progress went backwards: %v", m.progress)
	}
	if view := m.View(); !strings.Contains(view, "40%") || !strings.Contains(view, "3 scenes") {
		t.Errorf("view = %q", view)
	}

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = next.(renderModel)
	if !cancelled || !m.cancelling || cmd != nil {
		t.Error("ctrl+c should cancel the render and wait for it to stop")
	}
	if !strings.Contains(m.View(), "Cancelling") {
		t.Error("view should show cancelling")
	}

	next, cmd = m.Update(doneMsg{err: context.Canceled})
	m = next.(renderModel)
	if !errors.Is(m.err, context.Canceled) || cmd == nil {
		t.Errorf("done message should record the error and quit, err = %v", m.err)
	}
}

func TestRenderModelDone(t *testing.T) {
	m := newRenderModel("scenes.yaml", 1, nil)
	res := &pipeline.Result{OutputPath: "output/video.mp4", Duration: 5}
	next, _ := m.Update(doneMsg{result: res})
	m = next.(renderModel)
	if m.result != res || m.progress != 1 {
		t.Errorf("model = %+v", m)
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, &pipeline.Result{
		OutputPath: "output/video_tech.mp4",
		Duration:   12.34,
		Style:      "tech",
		Resolution: models.Resolution{Width: 1280, Height: 720},
		Scenes: []pipeline.SceneReport{
			{RenderedScene: models.RenderedScene{Scene: models.Scene{SceneNumber: 1}}, Rendered: true},
			{RenderedScene: models.RenderedScene{Scene: models.Scene{SceneNumber: 2}}},
		},
	})
	out := buf.String()
	for _, want := range []string{"output/video_tech.mp4", "12.3s", "1280x720", "scenes [2]"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestPresetsCommand(t *testing.T) {
	var buf bytes.Buffer
	root := newRootCommand()
	root.SetOut(&buf)
	root.SetArgs([]string{"presets"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"corporate", "#395B64", "shorts", "1080x1920"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("presets output missing %q", want)
		}
	}
}

func TestRenderRequiresFile(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"render"})
	if err := root.Execute(); err == nil {
		t.Error("expected an argument error")
	}
}
