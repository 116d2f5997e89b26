package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/bobarin/facelessrender/internal/retry"
)

// ---------------------------------------------------------------------------
// ElevenLabs Text-to-Speech Service
// Uses ElevenLabs REST API to convert text into speech audio.
// Model: eleven_flash_v2_5 (Flash v2.5, fast, 32 languages)
// ---------------------------------------------------------------------------

const (
	elevenLabsBaseURL      = "https://api.elevenlabs.io"
	elevenLabsDefaultModel = "eleven_flash_v2_5"
	elevenLabsDefaultVoice = "pNInz6obpgDQGcFmaJgB" // Default voice ID
	elevenLabsOutputFormat = "mp3_44100_128"
)

// ElevenLabsService handles text-to-speech via ElevenLabs API.
type ElevenLabsService struct {
	apiKey   string
	voiceID  string
	modelID  string
	baseURL  string
	attempts int
	client   *http.Client
}

// Ensure ElevenLabsService implements SpeechProvider at compile time.
var _ SpeechProvider = (*ElevenLabsService)(nil)

// NewElevenLabsService creates an ElevenLabs service. An empty voiceID uses the default voice.
func NewElevenLabsService(apiKey, voiceID string) *ElevenLabsService {
	if voiceID == "" {
		voiceID = elevenLabsDefaultVoice
	}
	return &ElevenLabsService{
		apiKey:   apiKey,
		voiceID:  voiceID,
		modelID:  elevenLabsDefaultModel,
		baseURL:  elevenLabsBaseURL,
		attempts: retry.DefaultAttempts,
		client:   &http.Client{Timeout: 90 * time.Second},
	}
}

// WithBaseURL points the service at another endpoint (used by tests and proxies).
func (s *ElevenLabsService) WithBaseURL(url string) *ElevenLabsService {
	s.baseURL = url
	return s
}

// ---------------------------------------------------------------------------
// Request types
// ---------------------------------------------------------------------------

type elevenLabsRequest struct {
	Text          string                   `json:"text"`
	ModelID       string                   `json:"model_id"`
	LanguageCode  string                   `json:"language_code,omitempty"`
	VoiceSettings *elevenLabsVoiceSettings `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style,omitempty"`
	Speed           float64 `json:"speed,omitempty"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

// GenerateSpeech converts text to speech using ElevenLabs.
// req.VoiceID overrides the service-level default when non-empty.
func (s *ElevenLabsService) GenerateSpeech(ctx context.Context, req SpeechRequest) (*TTSResponse, error) {
	voice := s.voiceID
	if req.VoiceID != "" {
		voice = req.VoiceID
	}
	speed := req.Speed
	if speed <= 0 {
		speed = 1.0
	}

	reqBody := elevenLabsRequest{
		Text:         req.Text,
		ModelID:      s.modelID,
		LanguageCode: req.Language,
		VoiceSettings: &elevenLabsVoiceSettings{
			Stability:       0.60, // allows some emotional range
			SimilarityBoost: 0.80,
			Style:           0.35,
			Speed:           speed,
			UseSpeakerBoost: true,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ElevenLabs request: %w", err)
	}

	// POST /v1/text-to-speech/{voice_id}?output_format=mp3_44100_128
	url := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s", s.baseURL, voice, elevenLabsOutputFormat)

	log.Printf("[ElevenLabs] Generating speech (voiceID=%s, model=%s, textLen=%d, speed=%.2f)",
		voice, s.modelID, len(req.Text), speed)

	var lastErr error
	for attempt := 0; attempt < s.attempts; attempt++ {
		if attempt > 0 {
			delay := retry.Delay(attempt)
			log.Printf("[ElevenLabs] Retry %d/%d (waiting %v): %v", attempt, s.attempts-1, delay, lastErr)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("speech cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		audio, status, err := s.post(ctx, url, jsonData)
		if err == nil {
			durationMs := estimateAudioDuration(req.Text, speed)
			log.Printf("[ElevenLabs] Speech generated (%d bytes, estimated %dms)", len(audio), durationMs)
			return &TTSResponse{AudioData: audio, DurationMs: durationMs, Format: "mp3"}, nil
		}
		lastErr = err
		if !(retry.IsRetryableStatus(status) || (status == 0 && retry.IsRetryableError(err))) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("ElevenLabs failed after %d attempts: %w", s.attempts, lastErr)
}

func (s *ElevenLabsService) post(ctx context.Context, url string, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create ElevenLabs request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("ElevenLabs request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, resp.StatusCode, fmt.Errorf("ElevenLabs returned status %d: %s", resp.StatusCode, retry.Truncate(string(msg), 300))
	}

	// the response body is the audio file
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read ElevenLabs audio response: %w", err)
	}
	if len(audio) == 0 {
		return nil, resp.StatusCode, fmt.Errorf("ElevenLabs returned empty audio")
	}
	return audio, resp.StatusCode, nil
}
