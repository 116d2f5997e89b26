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

const (
	CartesiaAPIURL     = "https://api.cartesia.ai"
	CartesiaAPIVersion = "2024-06-10"

	cartesiaDefaultVoice = "a0e99841-438c-4a64-b679-ae501e7d6091"
	cartesiaModel        = "sonic-multilingual"
)

type CartesiaService struct {
	apiKey         string
	apiURL         string
	apiVersion     string
	defaultVoiceID string
	client         *http.Client
}

var _ SpeechProvider = (*CartesiaService)(nil)

// NewCartesiaService creates a Cartesia client. Empty apiURL and voiceID use the defaults.
func NewCartesiaService(apiKey, apiURL, voiceID string) *CartesiaService {
	if apiURL == "" {
		apiURL = CartesiaAPIURL
	}
	if voiceID == "" {
		voiceID = cartesiaDefaultVoice
	}
	return &CartesiaService{
		apiKey:         apiKey,
		apiURL:         apiURL,
		apiVersion:     CartesiaAPIVersion,
		defaultVoiceID: voiceID,
		client:         &http.Client{Timeout: 60 * time.Second},
	}
}

type cartesiaRequest struct {
	ModelID      string                    `json:"model_id"`
	Transcript   string                    `json:"transcript"`
	Voice        cartesiaVoiceSpecifier    `json:"voice"`
	Language     string                    `json:"language,omitempty"`
	OutputFormat cartesiaOutputFormat      `json:"output_format"`
	Config       *cartesiaGenerationConfig `json:"generation_config,omitempty"`
}

type cartesiaVoiceSpecifier struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type cartesiaOutputFormat struct {
	Container  string `json:"container"`
	SampleRate int    `json:"sample_rate"`
	BitRate    int    `json:"bit_rate,omitempty"`
}

type cartesiaGenerationConfig struct {
	Speed *float64 `json:"speed,omitempty"` // 0.6 to 1.5
}

func (s *CartesiaService) GenerateSpeech(ctx context.Context, req SpeechRequest) (*TTSResponse, error) {
	voice := s.defaultVoiceID
	if req.VoiceID != "" {
		voice = req.VoiceID
	}
	body := cartesiaRequest{
		ModelID:    cartesiaModel,
		Transcript: req.Text,
		Voice:      cartesiaVoiceSpecifier{Mode: "id", ID: voice},
		Language:   req.Language,
		OutputFormat: cartesiaOutputFormat{
			Container:  "mp3",
			SampleRate: 44100,
			BitRate:    192000,
		},
	}
	speed := req.Speed
	if speed <= 0 {
		speed = 1.0
	}
	if speed != 1.0 {
		clamped := min(max(speed, 0.6), 1.5)
		body.Config = &cartesiaGenerationConfig{Speed: &clamped}
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", s.apiURL+"/tts/bytes", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Cartesia-Version", s.apiVersion)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("cartesia request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("cartesia returned status %d: %s", resp.StatusCode, retry.Truncate(string(msg), 300))
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("cartesia returned empty audio")
	}

	log.Printf("[Cartesia] Speech generated (%d bytes, voice=%s)", len(audio), voice)
	return &TTSResponse{
		AudioData:  audio,
		DurationMs: estimateAudioDuration(req.Text, speed),
		Format:     "mp3",
	}, nil
}
