package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// BackgroundType selects how a scene background is resolved
type BackgroundType string

const (
	BackgroundColor  BackgroundType = "color"
	BackgroundImage  BackgroundType = "image"
	BackgroundUpload BackgroundType = "upload"
	BackgroundAPI    BackgroundType = "api"
)

// Transition is applied after a scene, into the next one
type Transition string

const (
	TransitionCut      Transition = "cut"
	TransitionFade     Transition = "fade"
	TransitionDissolve Transition = "dissolve"
	TransitionWipe     Transition = "wipe"
	TransitionSlide    Transition = "slide"
)

// Valid reports whether t is one of the known transition kinds.
func (t Transition) Valid() bool {
	switch t {
	case TransitionCut, TransitionFade, TransitionDissolve, TransitionWipe, TransitionSlide:
		return true
	}
	return false
}

// FadeDuration is how long a join of kind t overlaps the two scenes. A positive
// configured value applies to every non-cut kind; otherwise each kind has its own.
func (t Transition) FadeDuration(configured float64) float64 {
	switch t {
	case TransitionCut:
		return 0
	case TransitionWipe, TransitionSlide:
		if configured > 0 {
			return configured
		}
		return 0.7
	}
	if configured > 0 {
		return configured
	}
	return DefaultTransitionDuration
}

type SubtitlePosition string

const (
	SubtitleBottom SubtitlePosition = "bottom"
	SubtitleCenter SubtitlePosition = "center"
)

// DefaultSceneDuration is used when a scene declares no positive duration.
const DefaultSceneDuration = 5.0

type Background struct {
	Type  BackgroundType `json:"type" yaml:"type"`
	Value string         `json:"value" yaml:"value"`
}

// Entity is advisory NLP metadata attached by upstream text analysis
type Entity struct {
	Text  string `json:"text" yaml:"text"`
	Label string `json:"label" yaml:"label"`
}

// MusicSpec points at a background music source: a local file or an http(s) URL.
type MusicSpec struct {
	Source string   `json:"source" yaml:"source"`
	Volume *float64 `json:"volume,omitempty" yaml:"volume,omitempty"`
}

// Scene is the contract between script generation and the renderer.
// The pipeline never mutates a Scene; rendering produces a RenderedScene.
type Scene struct {
	SceneNumber      int              `json:"scene_number" yaml:"scene_number"`
	Script           string           `json:"script" yaml:"script"`
	Background       Background       `json:"background" yaml:"background"`
	Duration         float64          `json:"duration" yaml:"duration"`
	Transition       Transition       `json:"transition,omitempty" yaml:"transition,omitempty"`
	VisualPrompt     string           `json:"visual_prompt,omitempty" yaml:"visual_prompt,omitempty"`
	Entities         []Entity         `json:"entities,omitempty" yaml:"entities,omitempty"`
	Topics           []string         `json:"topics,omitempty" yaml:"topics,omitempty"`
	AudioPath        string           `json:"audio_path,omitempty" yaml:"audio_path,omitempty"`
	SubtitlePosition SubtitlePosition `json:"subtitle_position,omitempty" yaml:"subtitle_position,omitempty"`
	Music            *MusicSpec       `json:"music,omitempty" yaml:"music,omitempty"`
}

// DeclaredDuration returns the requested duration, substituting the default for
// missing or non-positive values.
func (s Scene) DeclaredDuration() float64 {
	if s.Duration <= 0 {
		return DefaultSceneDuration
	}
	return s.Duration
}

// EffectiveTransition returns the scene's outgoing transition, or def when unset.
// Unknown values are returned as-is so the transition engine can report them.
func (s Scene) EffectiveTransition(def Transition) Transition {
	if s.Transition == "" {
		return def
	}
	return Transition(strings.ToLower(string(s.Transition)))
}

// RenderedScene is the annotated copy of a scene produced by a render run.
type RenderedScene struct {
	Scene
	EffectiveDuration float64 `json:"effective_duration"`
	AudioDuration     float64 `json:"audio_duration,omitempty"`
	Start             float64 `json:"start"`
}

// DecodeScenesJSON decodes a scene list, rejecting unknown keys. Legacy aliases such
// as "text" or "content" are reported instead of being read as the script.
func DecodeScenesJSON(r io.Reader) ([]Scene, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var scenes []Scene
	if err := dec.Decode(&scenes); err != nil {
		return nil, fmt.Errorf("decode scenes: %w", err)
	}
	return scenes, nil
}

// DecodeSceneJSON is DecodeScenesJSON for a single object.
func DecodeSceneJSON(data []byte) (Scene, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var s Scene
	if err := dec.Decode(&s); err != nil {
		return Scene{}, fmt.Errorf("decode scene: %w", err)
	}
	return s, nil
}
