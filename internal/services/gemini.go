package services

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/bobarin/facelessrender/internal/retry"
)

const (
	geminiTextModel  = "gemini-2.5-flash"
	geminiImageModel = "gemini-2.5-flash-image"
)

// GeminiService generates narration text and background stills through the genai SDK.
type GeminiService struct {
	apiKey             string
	styleReferencePath string
	aspectRatio        string

	// The reference is read once and shared by concurrent scene renders.
	styleOnce  sync.Once
	styleImage []byte
	styleMime  string
	styleErr   error
}

var (
	_ TextGenerator = (*GeminiService)(nil)
	_ ImageProvider = (*GeminiService)(nil)
)

func NewGeminiService(apiKey string) *GeminiService {
	return &GeminiService{apiKey: apiKey, aspectRatio: "16:9"}
}

// NewGeminiServiceWithStyleReference attaches a reference image whose look every
// generated background should follow.
func NewGeminiServiceWithStyleReference(apiKey, styleReferencePath string) *GeminiService {
	s := NewGeminiService(apiKey)
	s.styleReferencePath = styleReferencePath
	return s
}

// WithAspectRatio sets the requested image aspect ratio ("16:9", "9:16", "1:1").
func (s *GeminiService) WithAspectRatio(ratio string) *GeminiService {
	if ratio != "" {
		s.aspectRatio = ratio
	}
	return s
}

func (s *GeminiService) newClient(ctx context.Context) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return client, nil
}

func (s *GeminiService) GenerateText(ctx context.Context, prompt, contentType string) (string, error) {
	client, err := s.newClient(ctx)
	if err != nil {
		return "", err
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPromptFor(contentType), genai.RoleUser),
	}
	resp, err := client.Models.GenerateContent(ctx, geminiTextModel, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini returned empty %s", contentType)
	}
	log.Printf("[Gemini] Generated %s (%d chars)", contentType, len(text))
	return text, nil
}

// GenerateImage renders one background still. When a style reference is configured it
// is sent alongside the prompt; a missing reference only logs a warning.
func (s *GeminiService) GenerateImage(ctx context.Context, prompt, style string) ([]byte, string, error) {
	client, err := s.newClient(ctx)
	if err != nil {
		return nil, "", err
	}

	parts := []*genai.Part{genai.NewPartFromText(composeImagePrompt(prompt, style))}
	if s.styleReferencePath != "" {
		data, mime, err := s.loadStyleReferenceImage()
		if err != nil {
			log.Printf("[Gemini] Warning: could not load style reference image: %v (proceeding without)", err)
		} else {
			parts = append(parts, genai.NewPartFromBytes(data, mime))
		}
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
		ImageConfig:        &genai.ImageConfig{AspectRatio: s.aspectRatio},
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := client.Models.GenerateContent(ctx, geminiImageModel, contents, config)
	if err != nil {
		return nil, "", fmt.Errorf("gemini image request failed: %w", err)
	}
	return imageFromResponse(resp)
}

func imageFromResponse(resp *genai.GenerateContentResponse) ([]byte, string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, "", fmt.Errorf("no candidates in response")
	}
	var textParts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			mime := part.InlineData.MIMEType
			if mime == "" {
				mime = http.DetectContentType(part.InlineData.Data)
			}
			return part.InlineData.Data, mime, nil
		}
		if part.Text != "" {
			textParts = append(textParts, part.Text)
		}
	}
	if len(textParts) > 0 {
		return nil, "", fmt.Errorf("gemini returned text instead of image: %s", retry.Truncate(textParts[0], 200))
	}
	return nil, "", fmt.Errorf("no image data found in response (got %d parts, none with inlineData)", len(resp.Candidates[0].Content.Parts))
}

func (s *GeminiService) loadStyleReferenceImage() ([]byte, string, error) {
	s.styleOnce.Do(func() {
		data, err := os.ReadFile(s.styleReferencePath)
		if err != nil {
			s.styleErr = fmt.Errorf("could not load style reference from %s: %w", s.styleReferencePath, err)
			return
		}
		s.styleMime = "image/jpeg"
		if strings.EqualFold(filepath.Ext(s.styleReferencePath), ".png") {
			s.styleMime = "image/png"
		}
		s.styleImage = data
		log.Printf("[Gemini] Loaded style reference image from %s (%d bytes)", s.styleReferencePath, len(data))
	})
	return s.styleImage, s.styleMime, s.styleErr
}
