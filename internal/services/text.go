package services

import "context"

// Content types understood by TextGenerator implementations.
const (
	ContentScript      = "script"
	ContentTitle       = "title"
	ContentImagePrompt = "image_prompt"
)

// TextGenerator is the common interface of the LLM providers.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt, contentType string) (string, error)
}
