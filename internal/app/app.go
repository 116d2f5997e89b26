// Package app assembles providers, cache and ffmpeg into pipeline dependencies
// from the environment configuration. The API server and the CLI share it.
package app

import (
	"fmt"
	"log"

	"github.com/bobarin/facelessrender/internal/cache"
	"github.com/bobarin/facelessrender/internal/config"
	"github.com/bobarin/facelessrender/internal/fetch"
	"github.com/bobarin/facelessrender/internal/ffmpeg"
	"github.com/bobarin/facelessrender/internal/pipeline"
	"github.com/bobarin/facelessrender/internal/scenes"
	"github.com/bobarin/facelessrender/internal/services"
)

type App struct {
	Config *config.Config
	Cache  *cache.Store
	Deps   pipeline.Deps
	// Text is nil when no text provider key is configured.
	Text services.TextGenerator
}

// Build wires every configured provider. Missing keys disable the matching
// feature instead of failing: no speech means silent scenes, no images means
// api backgrounds without a URL fall back to the style color.
func Build(cfg *config.Config) (*App, error) {
	store, err := cache.New(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	a := &App{
		Config: cfg,
		Cache:  store,
		Deps: pipeline.Deps{
			Runner:  ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath, cfg.FFmpegVerbose),
			Prober:  ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath, cfg.FFmpegVerbose),
			Fetcher: fetch.New(store),
			Cache:   store,
			FontDir: cfg.FontDir,
			TempDir: cfg.TempDir,
		},
	}

	if provider, name := speechProvider(cfg); provider != nil {
		a.Deps.Speech = services.NewCachedSpeech(provider, name, store)
		log.Printf("[App] Speech provider: %s", name)
	} else {
		log.Printf("[App] Warning: no speech provider configured, scenes without audio_path render silent")
	}

	if provider, name := imageProvider(cfg); provider != nil {
		a.Deps.Images = services.NewCachedImages(provider, name, store)
		log.Printf("[App] Image provider: %s", name)
	}

	if text, err := TextProvider(cfg, cfg.TextProvider); err == nil {
		a.Text = text
	}
	return a, nil
}

// Orchestrator returns a fresh orchestrator over the shared dependencies.
func (a *App) Orchestrator() (*pipeline.Orchestrator, error) {
	return pipeline.New(a.Deps)
}

// Planner returns a topic planner, or nil when no text provider is configured.
func (a *App) Planner(targetSeconds int) *scenes.Planner {
	if a.Text == nil {
		return nil
	}
	return &scenes.Planner{Text: a.Text, TargetSeconds: targetSeconds}
}

// TextProvider builds the named text generator ("openai" or "gemini").
func TextProvider(cfg *config.Config, name string) (services.TextGenerator, error) {
	switch name {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not set")
		}
		return services.NewOpenAIService(cfg.OpenAIKey), nil
	case "gemini":
		if cfg.GeminiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is not set")
		}
		return services.NewGeminiService(cfg.GeminiKey), nil
	}
	return nil, fmt.Errorf("unknown text provider %q", name)
}

func speechProvider(cfg *config.Config) (services.SpeechProvider, string) {
	switch cfg.TTSProvider {
	case "elevenlabs":
		if cfg.ElevenLabsKey != "" {
			return services.NewElevenLabsService(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID), "elevenlabs"
		}
	case "cartesia":
		if cfg.CartesiaKey != "" {
			return services.NewCartesiaService(cfg.CartesiaKey, cfg.CartesiaURL, cfg.CartesiaVoiceID), "cartesia"
		}
	case "openai":
		if cfg.OpenAIKey != "" {
			return services.NewOpenAIService(cfg.OpenAIKey), "openai"
		}
	}
	return nil, ""
}

func imageProvider(cfg *config.Config) (services.ImageProvider, string) {
	switch cfg.ImageProvider {
	case "gemini":
		if cfg.GeminiKey != "" {
			return services.NewGeminiServiceWithStyleReference(cfg.GeminiKey, cfg.GeminiStyleReferenceImage).
				WithAspectRatio(cfg.ImageAspectRatio), "gemini"
		}
	case "openai":
		if cfg.OpenAIKey != "" {
			return services.NewOpenAIService(cfg.OpenAIKey), "openai"
		}
	}
	return nil, ""
}
