package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONBMarshal(t *testing.T) {
	j := JSONB{
		"scenes": []string{"a", "b"},
		"style":  "modern",
	}

	data, err := j.Value()
	if err != nil {
		t.Fatalf("failed to marshal JSONB: %v", err)
	}

	if data == nil {
		t.Fatal("expected non-nil data")
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data.([]byte), &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["style"] != "modern" {
		t.Errorf("expected style=modern, got %v", result["style"])
	}
}

func TestJSONBScan(t *testing.T) {
	for _, input := range []interface{}{
		[]byte(`{"color": "blue", "size": 10}`),
		`{"color": "blue", "size": 10}`,
	} {
		var j JSONB
		if err := j.Scan(input); err != nil {
			t.Fatalf("failed to scan: %v", err)
		}

		if j["color"] != "blue" {
			t.Errorf("expected color=blue, got %v", j["color"])
		}

		if j["size"].(float64) != 10 {
			t.Errorf("expected size=10, got %v", j["size"])
		}
	}
}

func TestJSONBScanNil(t *testing.T) {
	j := JSONB{"x": 1}
	if err := j.Scan(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j != nil {
		t.Errorf("expected nil map, got %v", j)
	}
}

func TestDecodeScenesRejectsLegacyKeys(t *testing.T) {
	legacy := `[{"scene_number": 1, "text": "hello", "duration": 3}]`
	if _, err := DecodeScenesJSON(strings.NewReader(legacy)); err == nil {
		t.Fatal("expected legacy \"text\" key to be rejected")
	}

	ok := `[{"scene_number": 1, "script": "hello", "duration": 3, "background": {"type": "color", "value": "#000000"}}]`
	scenes, err := DecodeScenesJSON(strings.NewReader(ok))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(scenes) != 1 || scenes[0].Script != "hello" {
		t.Fatalf("unexpected scenes: %+v", scenes)
	}
	if scenes[0].Background.Type != BackgroundColor {
		t.Errorf("expected color background, got %q", scenes[0].Background.Type)
	}
}

func TestSceneDefaults(t *testing.T) {
	s := Scene{}
	if got := s.DeclaredDuration(); got != DefaultSceneDuration {
		t.Errorf("DeclaredDuration() = %v, want %v", got, DefaultSceneDuration)
	}
	if got := s.EffectiveTransition(TransitionFade); got != TransitionFade {
		t.Errorf("EffectiveTransition() = %q, want fade", got)
	}

	s.Transition = "SLIDE"
	if got := s.EffectiveTransition(TransitionFade); got != TransitionSlide {
		t.Errorf("EffectiveTransition() = %q, want slide", got)
	}
}

func TestParseResolution(t *testing.T) {
	tests := []struct {
		in      string
		want    Resolution
		wantErr bool
	}{
		{in: "fhd", want: Resolution{1920, 1080}},
		{in: "4K", want: Resolution{3840, 2160}},
		{in: "shorts", want: Resolution{1080, 1920}},
		{in: "640x360", want: Resolution{640, 360}},
		{in: "641x360", wantErr: true},
		{in: "wide", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseResolution(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseResolution(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseResolution(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseResolution(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStyleWithDefaults(t *testing.T) {
	s := Style{}.WithDefaults()

	if s.Resolution != (Resolution{1920, 1080}) {
		t.Errorf("resolution = %v", s.Resolution)
	}
	if s.FPS != 30 || s.FontSize != 36 || s.Margin != 50 || s.Bitrate != "8M" {
		t.Errorf("unexpected defaults: %+v", s)
	}
	if s.SubtitlePosition != SubtitleBottom {
		t.Errorf("subtitle position = %q", s.SubtitlePosition)
	}

	creative, ok := StylePreset("Creative")
	if !ok {
		t.Fatal("creative preset missing")
	}
	if creative.TextColor != "#FFD369" || creative.BackgroundColor != "#222831" {
		t.Errorf("unexpected creative preset: %+v", creative)
	}
}

func TestSettingsWithDefaults(t *testing.T) {
	s := Settings{AudioBufferSeconds: -1}.WithDefaults()
	if s.DefaultTransition != TransitionFade {
		t.Errorf("default transition = %q", s.DefaultTransition)
	}
	if s.TransitionDuration != 0 {
		t.Errorf("transition duration = %v, want 0 (per kind)", s.TransitionDuration)
	}
	if s.AudioBufferSeconds != 0 {
		t.Errorf("audio buffer = %v, want 0", s.AudioBufferSeconds)
	}
	if s.MusicVolume != DefaultMusicVolume || s.NarrationVolume != 1.0 {
		t.Errorf("volumes = %v/%v", s.MusicVolume, s.NarrationVolume)
	}
}

func TestTransitionFadeDuration(t *testing.T) {
	tests := []struct {
		kind       Transition
		configured float64
		want       float64
	}{
		{TransitionCut, 0, 0},
		{TransitionCut, 1, 0},
		{TransitionFade, 0, 0.5},
		{TransitionDissolve, 0, 0.5},
		{TransitionWipe, 0, 0.7},
		{TransitionSlide, 0, 0.7},
		{TransitionSlide, 0.3, 0.3},
		{TransitionFade, 1.2, 1.2},
	}
	for _, tt := range tests {
		if got := tt.kind.FadeDuration(tt.configured); got != tt.want {
			t.Errorf("%s(%v) = %v, want %v", tt.kind, tt.configured, got, tt.want)
		}
	}
}

func TestStyleWithPreset(t *testing.T) {
	s := Style{Name: "Tech", TextColor: "#FFFFFF"}.WithPreset()
	if s.Name != "tech" {
		t.Errorf("name = %q, want tech", s.Name)
	}
	if s.TextColor != "#FFFFFF" {
		t.Errorf("explicit text color overwritten: %q", s.TextColor)
	}
	if s.BackgroundColor != "#000000" {
		t.Errorf("background = %q, want preset #000000", s.BackgroundColor)
	}

	custom := Style{Name: "mine"}
	if got := custom.WithPreset(); got.BackgroundColor != "" {
		t.Errorf("unknown preset should not change style: %+v", got)
	}
}
