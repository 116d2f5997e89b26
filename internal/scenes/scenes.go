// Package scenes turns narration scripts and topics into scene records.
package scenes

import (
	"context"
	"fmt"
	"log"
	"math"
	"regexp"
	"strings"

	"github.com/bobarin/facelessrender/internal/models"
	"github.com/bobarin/facelessrender/internal/services"
)

const (
	WordsPerSecond     = 2.5
	MinSceneDuration   = 5.0
	SentencesPerScene  = 2
	defaultTargetSecs  = 60
	maxVisualPromptLen = 160
)

var (
	// "Scene 3:", "Scene 3 -", optionally followed by a "[Shot label]"
	sceneLabel = regexp.MustCompile(`(?im)^\s*scene\s+\d+\s*[:\-.]\s*(\[[^\]]*\]\s*)?`)
	shotLabel  = regexp.MustCompile(`^\s*\[[^\]]*\]\s*`)
	spaces     = regexp.MustCompile(`\s+`)
)

// EstimateDuration returns the narration length of text at WordsPerSecond,
// never less than MinSceneDuration.
func EstimateDuration(text string) float64 {
	words := len(strings.Fields(text))
	d := float64(words) / WordsPerSecond
	return math.Max(MinSceneDuration, math.Round(d*100)/100)
}

// Options are applied to every scene produced by FromScript.
type Options struct {
	Background models.Background
	Transition models.Transition
}

// FromScript splits a script into scenes of SentencesPerScene sentences. Blank lines
// always end a scene, and "Scene N:" labels are removed from the narration.
func FromScript(script string, opts Options) []models.Scene {
	var out []models.Scene
	for _, para := range paragraphs(script) {
		var group []string
		flush := func() {
			if len(group) == 0 {
				return
			}
			text := strings.Join(group, " ")
			out = append(out, newScene(len(out)+1, text, opts))
			group = nil
		}
		for _, s := range splitSentences(para) {
			group = append(group, s)
			if len(group) >= SentencesPerScene {
				flush()
			}
		}
		flush()
	}
	return out
}

func newScene(n int, text string, opts Options) models.Scene {
	s := models.Scene{
		SceneNumber:  n,
		Script:       text,
		Duration:     EstimateDuration(text),
		Background:   opts.Background,
		Transition:   opts.Transition,
		VisualPrompt: visualPrompt(text),
	}
	if s.Background.Type == "" {
		s.Background = models.Background{Type: models.BackgroundAPI, Value: s.VisualPrompt}
	}
	return s
}

func paragraphs(script string) []string {
	script = strings.ReplaceAll(script, "\r\n", "\n")
	script = sceneLabel.ReplaceAllString(script, "\n\n")

	var out []string
	for _, p := range strings.Split(script, "\n\n") {
		p = shotLabel.ReplaceAllString(p, "")
		p = strings.TrimSpace(spaces.ReplaceAllString(p, " "))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitSentences breaks after '.', '!' or '?' (plus closing quotes) followed by whitespace.
func splitSentences(text string) []string {
	var out []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if !strings.ContainsRune(".!?", runes[i]) {
			continue
		}
		j := i + 1
		for j < len(runes) && strings.ContainsRune(`"')”’`, runes[j]) {
			j++
		}
		if j < len(runes) && runes[j] != ' ' {
			continue
		}
		if s := strings.TrimSpace(string(runes[start:j])); s != "" {
			out = append(out, s)
		}
		start = j
		i = j
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

func visualPrompt(text string) string {
	first := text
	if s := splitSentences(text); len(s) > 0 {
		first = s[0]
	}
	first = strings.TrimRight(first, ".!? ")
	if len(first) > maxVisualPromptLen {
		first = first[:maxVisualPromptLen]
		if i := strings.LastIndexByte(first, ' '); i > 0 {
			first = first[:i]
		}
	}
	return first
}

// ScenePlanner is implemented by providers that can return a structured scene list directly.
type ScenePlanner interface {
	GenerateScenes(ctx context.Context, topic string, targetSeconds int) ([]models.Scene, error)
}

// TopicPlanner turns a topic into a scene list.
type TopicPlanner interface {
	Plan(ctx context.Context, topic string, opts Options) ([]models.Scene, error)
}

// Planner builds scenes for a topic through a text generator.
type Planner struct {
	Text          services.TextGenerator
	TargetSeconds int
}

// Plan asks the provider for a structured plan when it supports one, and otherwise
// generates a plain script and splits it with FromScript.
func (p *Planner) Plan(ctx context.Context, topic string, opts Options) ([]models.Scene, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	target := p.TargetSeconds
	if target <= 0 {
		target = defaultTargetSecs
	}

	if planner, ok := p.Text.(ScenePlanner); ok {
		planned, err := planner.GenerateScenes(ctx, topic, target)
		if err == nil {
			return normalizePlan(planned, opts), nil
		}
		log.Printf("[Scenes] Warning: structured plan failed, falling back to script: %v", err)
	}

	prompt := fmt.Sprintf("Write a narration script of about %d words about: %s", int(float64(target)*WordsPerSecond), topic)
	script, err := p.Text.GenerateText(ctx, prompt, services.ContentScript)
	if err != nil {
		return nil, fmt.Errorf("failed to generate script: %w", err)
	}
	scenes := FromScript(script, opts)
	if len(scenes) == 0 {
		return nil, fmt.Errorf("generated script produced no scenes")
	}
	log.Printf("[Scenes] Planned %d scenes for %q", len(scenes), topic)
	return scenes, nil
}

func normalizePlan(planned []models.Scene, opts Options) []models.Scene {
	out := make([]models.Scene, 0, len(planned))
	for _, s := range planned {
		n := newScene(len(out)+1, s.Script, opts)
		if s.VisualPrompt != "" {
			n.VisualPrompt = s.VisualPrompt
			if opts.Background.Type == "" {
				n.Background.Value = s.VisualPrompt
			}
		}
		if s.Duration > n.Duration {
			n.Duration = s.Duration
		}
		out = append(out, n)
	}
	return out
}
