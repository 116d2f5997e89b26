package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/bobarin/facelessrender/internal/models"
)

// RenderFile is a settings file: a style (optionally naming a preset) plus run settings.
type RenderFile struct {
	Style    models.Style    `yaml:"style"`
	Settings models.Settings `yaml:"settings"`
}

// SceneFile is a scene list, optionally wrapped together with style and settings.
type SceneFile struct {
	Scenes   []models.Scene   `yaml:"scenes"`
	Style    *models.Style    `yaml:"style,omitempty"`
	Settings *models.Settings `yaml:"settings,omitempty"`
}

var legacyField = regexp.MustCompile(`field (text|content) not found in type models\.Scene`)

// LoadSettings reads a YAML (or JSON) settings file. Unknown keys are errors.
func LoadSettings(path string) (*RenderFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	var f RenderFile
	if err := decodeStrict(data, &f); err != nil {
		return nil, fmt.Errorf("invalid settings file %s: %w", path, err)
	}
	f.Style = f.Style.WithPreset()
	return &f, nil
}

// LoadScenes reads a scene file. The top level is either a list of scenes or a
// mapping with a "scenes" key and optional "style" and "settings".
func LoadScenes(path string) (*SceneFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenes: %w", err)
	}
	f, err := ParseScenes(data)
	if err != nil {
		return nil, fmt.Errorf("invalid scene file %s: %w", path, err)
	}
	return f, nil
}

// ParseScenes decodes scene file contents. See LoadScenes.
func ParseScenes(data []byte) (*SceneFile, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return nil, errors.New("file is empty")
	}

	var f SceneFile
	switch root.Content[0].Kind {
	case yaml.SequenceNode:
		err := decodeStrict(data, &f.Scenes)
		if err != nil {
			return nil, sceneError(err)
		}
	case yaml.MappingNode:
		if err := decodeStrict(data, &f); err != nil {
			return nil, sceneError(err)
		}
		if f.Style != nil {
			s := f.Style.WithPreset()
			f.Style = &s
		}
	default:
		return nil, errors.New("expected a list of scenes or a mapping with a scenes key")
	}

	if len(f.Scenes) == 0 {
		return nil, errors.New("no scenes found")
	}
	return &f, nil
}

func decodeStrict(data []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(v)
}

func sceneError(err error) error {
	if legacyField.MatchString(err.Error()) {
		return fmt.Errorf("%w (use \"script\" for narration text)", err)
	}
	return err
}
