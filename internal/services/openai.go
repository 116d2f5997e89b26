package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/bobarin/facelessrender/internal/models"
	"github.com/bobarin/facelessrender/internal/retry"
)

const (
	openAITextModel  = "gpt-5-mini" // best for reasoning and cost efficiency
	openAIImageModel = openai.CreateImageModelDallE3
)

type OpenAIService struct {
	client *openai.Client
	voice  openai.SpeechVoice
}

var (
	_ TextGenerator  = (*OpenAIService)(nil)
	_ SpeechProvider = (*OpenAIService)(nil)
	_ ImageProvider  = (*OpenAIService)(nil)
)

func NewOpenAIService(apiKey string) *OpenAIService {
	return &OpenAIService{
		client: openai.NewClient(apiKey),
		voice:  openai.VoiceOnyx,
	}
}

// NewOpenAIServiceWithBaseURL targets an OpenAI-compatible endpoint.
func NewOpenAIServiceWithBaseURL(apiKey, baseURL string) *OpenAIService {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &OpenAIService{
		client: openai.NewClientWithConfig(cfg),
		voice:  openai.VoiceOnyx,
	}
}

// GenerateText runs one chat completion with a system prompt chosen by contentType.
func (s *OpenAIService) GenerateText(ctx context.Context, prompt, contentType string) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openAITextModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPromptFor(contentType)},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 1.0,
	})
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from openai")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("openai returned empty %s", contentType)
	}
	log.Printf("[OpenAI] Generated %s (%d chars)", contentType, len(text))
	return text, nil
}

// scenePlan is the JSON shape requested in JSON mode.
type scenePlan struct {
	Scenes []struct {
		Script       string  `json:"script"`
		VisualPrompt string  `json:"visual_prompt"`
		Duration     float64 `json:"duration"`
	} `json:"scenes"`
}

// GenerateScenes asks for a complete scene list for a topic using JSON mode.
func (s *OpenAIService) GenerateScenes(ctx context.Context, topic string, targetSeconds int) ([]models.Scene, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openAITextModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: scenePlanSystemPrompt(targetSeconds)},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Topic: %q\nTarget duration: %d seconds", topic, targetSeconds)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 1.0,
	})
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from openai")
	}

	raw := resp.Choices[0].Message.Content
	scenes, err := parseScenePlan(raw)
	if err != nil {
		log.Printf("[OpenAI plan] raw response: %s", retry.Truncate(raw, 2000))
		return nil, err
	}
	log.Printf("[OpenAI plan] plan generated: %d scenes", len(scenes))
	return scenes, nil
}

func parseScenePlan(raw string) ([]models.Scene, error) {
	var plan scenePlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	if len(plan.Scenes) == 0 {
		return nil, fmt.Errorf("plan has no scenes")
	}
	scenes := make([]models.Scene, 0, len(plan.Scenes))
	for i, p := range plan.Scenes {
		if strings.TrimSpace(p.Script) == "" {
			return nil, fmt.Errorf("scene %d missing required field: script", i+1)
		}
		scenes = append(scenes, models.Scene{
			SceneNumber:  i + 1,
			Script:       strings.TrimSpace(p.Script),
			Duration:     p.Duration,
			VisualPrompt: p.VisualPrompt,
		})
	}
	return scenes, nil
}

// GenerateSpeech uses the OpenAI speech endpoint. VoiceID is an OpenAI voice name.
func (s *OpenAIService) GenerateSpeech(ctx context.Context, req SpeechRequest) (*TTSResponse, error) {
	voice := s.voice
	if req.VoiceID != "" {
		voice = openai.SpeechVoice(req.VoiceID)
	}
	speed := req.Speed
	if speed <= 0 {
		speed = 1.0
	}

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          req.Text,
		Voice:          voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          speed,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech failed: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read openai speech: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("openai returned empty audio")
	}
	return &TTSResponse{
		AudioData:  audio,
		DurationMs: estimateAudioDuration(req.Text, speed),
		Format:     "mp3",
	}, nil
}

// GenerateImage renders a still for a background search term.
func (s *OpenAIService) GenerateImage(ctx context.Context, prompt, style string) ([]byte, string, error) {
	resp, err := s.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         composeImagePrompt(prompt, style),
		Model:          openAIImageModel,
		N:              1,
		Size:           openai.CreateImageSize1792x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, "", fmt.Errorf("openai image failed: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, "", fmt.Errorf("openai returned no image data")
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode base64 image: %w", err)
	}
	return data, "image/png", nil
}

// ---------------------------------------------------------------------------
// Prompts
// ---------------------------------------------------------------------------

func systemPromptFor(contentType string) string {
	switch contentType {
	case ContentScript:
		return `You write narration for short faceless explainer videos. Write plain spoken prose meant to be read aloud by a text-to-speech voice: short sentences, no headings, no stage directions, no markdown, no scene labels. Separate scenes with a blank line; each scene is two or three sentences.`
	case ContentTitle:
		return `You write short, punchy video titles. Reply with the title only, at most eight words, no quotes.`
	case ContentImagePrompt:
		return `You turn narration into a single-sentence description of a background image. Describe setting, subject, lighting and mood. Never include text, captions or logos in the image.`
	}
	return `You are a helpful writing assistant for video content.`
}

func scenePlanSystemPrompt(targetSeconds int) string {
	return fmt.Sprintf(`You plan short faceless explainer videos of about %d seconds.
Return a JSON object: {"scenes": [{"script": "...", "visual_prompt": "...", "duration": 6}]}.
- script: narration read aloud by text-to-speech. Two or three short conversational sentences. Never empty.
- visual_prompt: a short search phrase for the background image (setting, subject, mood). No text in the image.
- duration: seconds the scene should last, roughly words / 2.5.
Open with a hook and end with a satisfying conclusion.`, targetSeconds)
}

// composeImagePrompt appends the visual style to a scene description.
func composeImagePrompt(prompt, style string) string {
	var b strings.Builder
	b.WriteString(prompt)
	if style != "" {
		b.WriteString("\n\nVisual style: ")
		b.WriteString(style)
	}
	b.WriteString("\n\nNo text, captions, watermarks or logos. Landscape composition with a clear central subject.")
	return b.String()
}
