package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/bobarin/facelessrender/internal/cache"
)

// ImageProvider generates a still image for a prompt and returns its bytes and MIME type.
type ImageProvider interface {
	GenerateImage(ctx context.Context, prompt, style string) ([]byte, string, error)
}

// CachedImages fronts an ImageProvider with the content cache. Identical prompt/style
// pairs resolve to the same file and reach the provider once.
type CachedImages struct {
	provider ImageProvider
	name     string
	cache    *cache.Store
}

func NewCachedImages(provider ImageProvider, providerName string, store *cache.Store) *CachedImages {
	return &CachedImages{provider: provider, name: providerName, cache: store}
}

// Image returns the path of a cached or freshly generated image.
func (c *CachedImages) Image(ctx context.Context, prompt, style string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", fmt.Errorf("empty image prompt")
	}
	key := cache.Key("image", c.name, style, prompt)

	// Entries are stored with a neutral extension; decoders sniff the content.
	path, hit, err := c.cache.GetOrFill(key, ".img", func(tmp string) error {
		data, mime, err := c.provider.GenerateImage(ctx, prompt, style)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return fmt.Errorf("provider returned empty image")
		}
		log.Printf("[Images] Generated %s image for %q (%d bytes)", mime, truncatePrompt(prompt), len(data))
		return os.WriteFile(tmp, data, 0644)
	})
	if err != nil {
		return "", fmt.Errorf("image generation failed: %w", err)
	}
	if hit {
		log.Printf("[Images] Cache hit for %q", truncatePrompt(prompt))
	}
	return path, nil
}

func truncatePrompt(p string) string {
	if len(p) <= 60 {
		return p
	}
	return p[:60] + "..."
}
