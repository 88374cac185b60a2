// Package imagen generates featured images with the Google Imagen API.
package imagen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pressgen/pressgen/internal/common"
	"github.com/ternarybob/arbor"
	"google.golang.org/genai"
)

// minSnippetLength is the minimum content snippet size before descriptive
// words are pulled into the image prompt.
const minSnippetLength = 100

// stopWords are common words excluded when mining the content snippet for
// descriptive prompt material.
var stopWords = map[string]bool{
	"about": true, "should": true, "would": true, "could": true,
	"their": true, "there": true, "these": true, "those": true,
}

// Service implements the ImageGenerator interface using Google Imagen via
// the Gemini API. Image generation is best effort: callers treat a failure
// here as a post without a featured image, not a failed task.
type Service struct {
	config  *common.ImagenConfig
	logger  arbor.ILogger
	client  *genai.Client
	timeout time.Duration
	retry   *common.RetryConfig

	// generate performs one API round trip; tests override it
	generate func(ctx context.Context, prompt string) ([]byte, error)
}

// NewService creates an Imagen service from configuration.
func NewService(ctx context.Context, imagenConfig *common.ImagenConfig, logger arbor.ILogger) (*Service, error) {
	if imagenConfig.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required (set via GEMINI_API_KEY or imagen.api_key in config)")
	}

	if imagenConfig.Model == "" {
		imagenConfig.Model = "imagen-3.0-generate-002"
	}

	timeout, err := time.ParseDuration(imagenConfig.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", imagenConfig.Timeout, err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  imagenConfig.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	s := &Service{
		config:  imagenConfig,
		logger:  logger,
		client:  client,
		timeout: timeout,
		retry:   common.NewDefaultRetryConfig(),
	}
	s.generate = s.generateImageBytes

	logger.Debug().
		Str("model", imagenConfig.Model).
		Dur("timeout", timeout).
		Msg("Imagen service initialized")

	return s, nil
}

// GenerateImage produces a 16:9 featured image for the keyword. The content
// snippet, when long enough, seeds the prompt with descriptive words from
// the generated article.
func (s *Service) GenerateImage(ctx context.Context, keyword string, contentSnippet string) ([]byte, error) {
	if keyword == "" {
		return nil, fmt.Errorf("image keyword is empty")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prompt := buildImagePrompt(keyword, contentSnippet)
	s.logger.Debug().Str("keyword", keyword).Str("prompt", prompt).Msg("Generating featured image")

	var imageBytes []byte
	err := common.Retry(timeoutCtx, s.retry, nil, func() error {
		var genErr error
		imageBytes, genErr = s.generate(timeoutCtx, prompt)
		return genErr
	})
	if err != nil {
		return nil, fmt.Errorf("image generation failed for '%s': %w", keyword, err)
	}

	s.logger.Info().
		Str("keyword", keyword).
		Int("bytes", len(imageBytes)).
		Msg("Featured image generated")

	return imageBytes, nil
}

// generateImageBytes performs one Imagen API round trip.
func (s *Service) generateImageBytes(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := s.client.Models.GenerateImages(ctx, s.config.Model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    "16:9",
	})
	if err != nil {
		return nil, fmt.Errorf("Imagen API call failed: %w", err)
	}

	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, fmt.Errorf("Imagen API returned no images")
	}

	imageBytes := resp.GeneratedImages[0].Image.ImageBytes
	if len(imageBytes) == 0 {
		return nil, fmt.Errorf("Imagen API returned an empty image")
	}

	return imageBytes, nil
}

// buildImagePrompt assembles a photorealistic scene prompt for the keyword.
// Keyword categories pick a setting; descriptive words mined from the
// article snippet add scene elements.
func buildImagePrompt(keyword string, contentSnippet string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a photorealistic 16:9 image showcasing %s. ", keyword)

	lower := strings.ToLower(keyword)
	switch {
	case containsAny(lower, "chair", "stool", "seating"):
		fmt.Fprintf(&b, "Show a stylish, comfortable %s in a modern man cave setting with ambient lighting. ", keyword)
	case containsAny(lower, "bar", "counter"):
		fmt.Fprintf(&b, "Show a well-designed %s with decorative lighting, high-end finishes, and bar accessories. ", keyword)
	case containsAny(lower, "table", "desk"):
		fmt.Fprintf(&b, "Show a premium %s made of quality materials in an elegant home office or game room setting. ", keyword)
	case containsAny(lower, "light", "lamp", "lighting"):
		fmt.Fprintf(&b, "Show attractive %s creating a warm ambiance in a stylish entertainment space. ", keyword)
	case containsAny(lower, "decor", "sign", "art", "wall"):
		fmt.Fprintf(&b, "Show trendy %s displayed in a modern basement or game room with complementary furniture. ", keyword)
	default:
		fmt.Fprintf(&b, "Show %s in an upscale home environment with complementary decor and warm lighting. ", keyword)
	}

	if words := descriptiveWords(contentSnippet, 5); len(words) > 0 {
		fmt.Fprintf(&b, "Include elements of %s. ", strings.Join(words, ", "))
	}

	b.WriteString("Create a clean, professional image with high-quality lighting, proper perspective, " +
		"and realistic textures. No text overlays or watermarks. Suitable as a featured image for a blog post.")

	return b.String()
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// descriptiveWords pulls up to max longer words from the snippet, skipping
// common filler. Short snippets contribute nothing.
func descriptiveWords(snippet string, max int) []string {
	if len(snippet) <= minSnippetLength {
		return nil
	}

	var selected []string
	for _, word := range strings.Fields(strings.ToLower(snippet)) {
		if len(word) > 5 && !stopWords[word] {
			selected = append(selected, word)
			if len(selected) == max {
				break
			}
		}
	}
	return selected
}
