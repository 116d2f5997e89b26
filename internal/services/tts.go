package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/bobarin/facelessrender/internal/cache"
)

// ---------------------------------------------------------------------------
// SpeechProvider: common interface for text-to-speech providers
// ElevenLabs and OpenAI both implement it so the pipeline can use whichever
// is configured without knowing the underlying provider.
// ---------------------------------------------------------------------------

// SpeechRequest is one narration request. Empty fields use provider defaults.
type SpeechRequest struct {
	Text     string
	VoiceID  string
	Language string
	Speed    float64
}

// TTSResponse is the common response type from any TTS provider.
type TTSResponse struct {
	AudioData  []byte
	DurationMs int
	Format     string // "mp3", "wav", etc.
}

// SpeechProvider is the interface that any TTS provider must implement.
type SpeechProvider interface {
	GenerateSpeech(ctx context.Context, req SpeechRequest) (*TTSResponse, error)
}

// Speech is synthesized narration stored on disk.
type Speech struct {
	Path string
	// Duration is the provider's estimate; callers that need the exact length probe Path.
	Duration time.Duration
}

// CachedSpeech synthesizes through a provider and keeps the audio in a content cache,
// so identical requests reuse one file and hit the provider once.
type CachedSpeech struct {
	provider SpeechProvider
	name     string
	cache    *cache.Store
}

func NewCachedSpeech(provider SpeechProvider, providerName string, store *cache.Store) *CachedSpeech {
	return &CachedSpeech{provider: provider, name: providerName, cache: store}
}

func (c *CachedSpeech) Synthesize(ctx context.Context, req SpeechRequest) (*Speech, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fmt.Errorf("no text to synthesize")
	}
	key := cache.Key("speech", c.name, req.VoiceID, req.Language, fmt.Sprintf("%.2f", req.Speed), text)

	var estimate time.Duration
	path, hit, err := c.cache.GetOrFill(key, ".mp3", func(tmp string) error {
		resp, err := c.provider.GenerateSpeech(ctx, req)
		if err != nil {
			return err
		}
		if resp.Format != "" && cache.ExtFor(resp.Format) != ".mp3" {
			log.Printf("[TTS] Warning: provider returned %s audio, stored as .mp3 entry", resp.Format)
		}
		estimate = time.Duration(resp.DurationMs) * time.Millisecond
		return os.WriteFile(tmp, resp.AudioData, 0644)
	})
	if err != nil {
		return nil, fmt.Errorf("speech synthesis failed: %w", err)
	}
	if hit || estimate == 0 {
		estimate = time.Duration(estimateAudioDuration(text, req.Speed)) * time.Millisecond
	}
	return &Speech{Path: path, Duration: estimate}, nil
}

// estimateAudioDuration estimates duration based on text length and speed
// Average speaking rate is ~140 words per minute at normal speed (narration pace, not conversational)
func estimateAudioDuration(text string, speed float64) int {
	words := len(strings.Fields(text))
	if speed <= 0 {
		speed = 1.0
	}
	baseWPM := 140.0 // words per minute (narration baseline, slightly slower than conversation)

	// lower speed = fewer WPM = longer duration
	actualWPM := baseWPM * speed

	minutes := float64(words) / actualWPM
	return int(minutes * 60 * 1000) // Convert to milliseconds
}
