package imagen

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pressgen/pressgen/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	s, err := NewService(context.Background(), &common.ImagenConfig{
		APIKey:  "test-key",
		Model:   "imagen-3.0-generate-002",
		Timeout: "10s",
	}, common.GetLogger())
	require.NoError(t, err)

	s.retry = &common.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	return s
}

func TestNewService_RequiresAPIKey(t *testing.T) {
	_, err := NewService(context.Background(), &common.ImagenConfig{Timeout: "2m"}, common.GetLogger())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")
}

func TestNewService_RejectsBadTimeout(t *testing.T) {
	_, err := NewService(context.Background(), &common.ImagenConfig{APIKey: "k", Timeout: "later"}, common.GetLogger())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid timeout")
}

func TestGenerateImage_ReturnsBytes(t *testing.T) {
	s := newTestService(t)

	var gotPrompt string
	s.generate = func(ctx context.Context, prompt string) ([]byte, error) {
		gotPrompt = prompt
		return []byte{0xFF, 0xD8, 0xFF}, nil
	}

	imageBytes, err := s.GenerateImage(context.Background(), "man cave bar stools", "")

	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF}, imageBytes)
	assert.Contains(t, gotPrompt, "man cave bar stools")
}

func TestGenerateImage_RequiresKeyword(t *testing.T) {
	s := newTestService(t)

	_, err := s.GenerateImage(context.Background(), "", "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "keyword is empty")
}

func TestGenerateImage_RetriesTransientFailures(t *testing.T) {
	s := newTestService(t)

	calls := 0
	s.generate = func(ctx context.Context, prompt string) ([]byte, error) {
		calls++
		if calls < 2 {
			return nil, errors.New("Imagen API call failed: 503 temporarily unavailable")
		}
		return []byte{0x01}, nil
	}

	imageBytes, err := s.GenerateImage(context.Background(), "man cave lighting", "")

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []byte{0x01}, imageBytes)
}

func TestGenerateImage_PermanentFailure(t *testing.T) {
	s := newTestService(t)

	calls := 0
	s.generate = func(ctx context.Context, prompt string) ([]byte, error) {
		calls++
		return nil, errors.New("Imagen API call failed: 400 prompt rejected")
	}

	_, err := s.GenerateImage(context.Background(), "man cave bar stools", "")

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Contains(t, err.Error(), "image generation failed for 'man cave bar stools'")
}

func TestBuildImagePrompt_KeywordCategories(t *testing.T) {
	tests := []struct {
		name    string
		keyword string
		want    string
	}{
		{"seating", "man cave bar stools", "modern man cave setting with ambient lighting"},
		{"bar", "home bar cabinet", "bar accessories"},
		{"table", "poker table", "home office or game room"},
		{"lighting", "neon lamp", "warm ambiance"},
		{"decor", "vintage wall signs", "modern basement or game room"},
		{"fallback", "mini fridge", "upscale home environment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt := buildImagePrompt(tt.keyword, "")
			assert.Contains(t, prompt, tt.keyword)
			assert.Contains(t, prompt, tt.want)
			assert.Contains(t, prompt, "No text overlays or watermarks")
		})
	}
}

func TestBuildImagePrompt_SeatingBeatsBar(t *testing.T) {
	// "bar stools" matches both the seating and bar categories; seating wins
	prompt := buildImagePrompt("bar stools", "")
	assert.Contains(t, prompt, "man cave setting")
	assert.NotContains(t, prompt, "bar accessories")
}

func TestBuildImagePrompt_UsesContentSnippet(t *testing.T) {
	snippet := "Discover premium leather upholstery and adjustable swivel designs that " +
		"should transform their entertainment corner into something special entirely"

	prompt := buildImagePrompt("man cave bar stools", snippet)

	assert.Contains(t, prompt, "Include elements of")
	assert.Contains(t, prompt, "premium")
	assert.Contains(t, prompt, "leather")
	// Stop words never make it into the prompt material
	assert.NotContains(t, prompt, "should,")
}

func TestBuildImagePrompt_ShortSnippetIgnored(t *testing.T) {
	prompt := buildImagePrompt("man cave bar stools", "premium leather upholstery")

	assert.NotContains(t, prompt, "Include elements of")
}

func TestDescriptiveWords(t *testing.T) {
	snippet := "wonderful amazing tiny about their fantastic incredible stunning gorgeous " +
		strings.Repeat("pad soft low dim ", 5)

	words := descriptiveWords(snippet, 5)

	require.Len(t, words, 5)
	assert.Equal(t, []string{"wonderful", "amazing", "fantastic", "incredible", "stunning"}, words)
}
