package models

import (
	"fmt"
	"sort"
	"strings"
)

type Resolution struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Style is the visual configuration of a render. It is read-only during a run.
type Style struct {
	Name             string           `json:"name,omitempty" yaml:"name,omitempty"`
	Resolution       Resolution       `json:"resolution" yaml:"resolution"`
	FPS              int              `json:"fps" yaml:"fps"`
	Font             string           `json:"font,omitempty" yaml:"font,omitempty"` // file path or family name
	FontSize         int              `json:"font_size" yaml:"font_size"`
	TextColor        string           `json:"text_color" yaml:"text_color"`
	BackgroundColor  string           `json:"background_color" yaml:"background_color"`
	AccentColor      string           `json:"accent_color,omitempty" yaml:"accent_color,omitempty"`
	Bitrate          string           `json:"bitrate" yaml:"bitrate"`
	SubtitlePosition SubtitlePosition `json:"subtitle_position" yaml:"subtitle_position"`
	Margin           int              `json:"margin" yaml:"margin"`

	// Global overlay metadata
	Title             string `json:"title,omitempty" yaml:"title,omitempty"`
	Author            string `json:"author,omitempty" yaml:"author,omitempty"`
	Slogan            string `json:"slogan,omitempty" yaml:"slogan,omitempty"`
	Logo              []byte `json:"logo,omitempty" yaml:"-"`
	LogoPath          string `json:"logo_path,omitempty" yaml:"logo_path,omitempty"`
	Watermark         []byte `json:"watermark,omitempty" yaml:"-"`
	WatermarkPath     string `json:"watermark_path,omitempty" yaml:"watermark_path,omitempty"`
	Animate           bool   `json:"animate,omitempty" yaml:"animate,omitempty"`
	HighlightEntities bool   `json:"highlight_entities,omitempty" yaml:"highlight_entities,omitempty"`
}

// Settings are the runtime options of a render.
type Settings struct {
	DefaultTransition  Transition `json:"default_transition" yaml:"default_transition"`
	TransitionDuration float64    `json:"transition_duration" yaml:"transition_duration"`
	AudioBufferSeconds float64    `json:"audio_buffer_seconds" yaml:"audio_buffer_seconds"`
	Music              *MusicSpec `json:"music,omitempty" yaml:"music,omitempty"`
	MusicVolume        float64    `json:"music_volume" yaml:"music_volume"`
	NarrationVolume    float64    `json:"narration_volume" yaml:"narration_volume"`
	VoiceID            string     `json:"voice_id,omitempty" yaml:"voice_id,omitempty"`
	Language           string     `json:"language,omitempty" yaml:"language,omitempty"`
	SpeechSpeed        float64    `json:"speech_speed,omitempty" yaml:"speech_speed,omitempty"`
	OutputDir          string     `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	Workers            int        `json:"workers,omitempty" yaml:"workers,omitempty"`
	Report             bool       `json:"report,omitempty" yaml:"report,omitempty"`
}

const (
	DefaultFPS                = 30
	DefaultFontSize           = 36
	DefaultMargin             = 50
	DefaultBitrate            = "8M"
	DefaultTransitionDuration = 0.5
	DefaultMusicVolume        = 0.2
	DefaultBackgroundColor    = "#333333"
)

// ResolutionPresets maps preset names to frame sizes.
var ResolutionPresets = map[string]Resolution{
	"hd":     {Width: 1280, Height: 720},
	"fhd":    {Width: 1920, Height: 1080},
	"4k":     {Width: 3840, Height: 2160},
	"shorts": {Width: 1080, Height: 1920},
}

// StylePresets are the built-in looks. Resolution and sizes are filled by WithDefaults.
var StylePresets = map[string]Style{
	"modern":    {Name: "modern", BackgroundColor: "#2C3333", TextColor: "#FFFFFF", AccentColor: "#A5C9CA"},
	"corporate": {Name: "corporate", BackgroundColor: "#395B64", TextColor: "#FFFFFF", AccentColor: "#E7F6F2"},
	"creative":  {Name: "creative", BackgroundColor: "#222831", TextColor: "#FFD369", AccentColor: "#FFD369"},
	"tech":      {Name: "tech", BackgroundColor: "#000000", TextColor: "#00FF00", AccentColor: "#00FF00"},
	"casual":    {Name: "casual", BackgroundColor: "#3F4E4F", TextColor: "#FFFFFF", AccentColor: "#DCD7C9"},
}

// PresetNames returns the sorted keys of a preset map.
func PresetNames[T any](m map[string]T) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// StylePreset looks up a preset by name (case-insensitive).
func StylePreset(name string) (Style, bool) {
	s, ok := StylePresets[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// WithPreset fills the colors s leaves unset from the preset named by s.Name.
// Styles with an unknown name are returned unchanged.
func (s Style) WithPreset() Style {
	p, ok := StylePreset(s.Name)
	if !ok {
		return s
	}
	s.Name = p.Name
	if s.BackgroundColor == "" {
		s.BackgroundColor = p.BackgroundColor
	}
	if s.TextColor == "" {
		s.TextColor = p.TextColor
	}
	if s.AccentColor == "" {
		s.AccentColor = p.AccentColor
	}
	return s
}

// ParseResolution accepts a preset name ("fhd") or an explicit "WxH".
func ParseResolution(s string) (Resolution, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if r, ok := ResolutionPresets[s]; ok {
		return r, nil
	}
	var r Resolution
	if _, err := fmt.Sscanf(s, "%dx%d", &r.Width, &r.Height); err != nil {
		return Resolution{}, fmt.Errorf("invalid resolution %q", s)
	}
	if err := r.Validate(); err != nil {
		return Resolution{}, err
	}
	return r, nil
}

// Validate rejects frame sizes the yuv420p encoder cannot take.
func (r Resolution) Validate() error {
	if r.Width <= 0 || r.Height <= 0 || r.Width%2 != 0 || r.Height%2 != 0 {
		return fmt.Errorf("invalid resolution %s: dimensions must be positive and even", r)
	}
	return nil
}

// WithDefaults returns a copy of s with every unset field filled in.
func (s Style) WithDefaults() Style {
	if s.Name == "" {
		s.Name = "custom"
	}
	if s.Resolution.Width <= 0 || s.Resolution.Height <= 0 {
		s.Resolution = ResolutionPresets["fhd"]
	}
	if s.FPS <= 0 {
		s.FPS = DefaultFPS
	}
	if s.FontSize <= 0 {
		s.FontSize = DefaultFontSize
	}
	if s.Margin <= 0 {
		s.Margin = DefaultMargin
	}
	if s.TextColor == "" {
		s.TextColor = "#FFFFFF"
	}
	if s.BackgroundColor == "" {
		s.BackgroundColor = DefaultBackgroundColor
	}
	if s.AccentColor == "" {
		s.AccentColor = s.TextColor
	}
	if s.Bitrate == "" {
		s.Bitrate = DefaultBitrate
	}
	if s.SubtitlePosition != SubtitleCenter {
		s.SubtitlePosition = SubtitleBottom
	}
	return s
}

// WithDefaults returns a copy of s with every unset field filled in.
func (s Settings) WithDefaults() Settings {
	if s.DefaultTransition == "" {
		s.DefaultTransition = TransitionFade
	}
	// zero leaves each transition kind at its own length
	if s.TransitionDuration < 0 {
		s.TransitionDuration = 0
	}
	if s.AudioBufferSeconds < 0 {
		s.AudioBufferSeconds = 0
	}
	if s.MusicVolume <= 0 {
		s.MusicVolume = DefaultMusicVolume
	}
	if s.NarrationVolume <= 0 {
		s.NarrationVolume = 1.0
	}
	if s.SpeechSpeed <= 0 {
		s.SpeechSpeed = 1.0
	}
	if s.Language == "" {
		s.Language = "en"
	}
	if s.OutputDir == "" {
		s.OutputDir = "output"
	}
	return s
}
