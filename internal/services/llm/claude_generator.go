// Package llm generates SEO article text with the Anthropic Claude API.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pressgen/pressgen/internal/common"
	"github.com/pressgen/pressgen/internal/interfaces"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

// qualityThreshold is the fraction of the target word count a draft must
// reach to be accepted without another attempt.
const qualityThreshold = 0.9

// ClaudeGenerator implements the ContentGenerator interface using the
// Anthropic Claude API. Each generation runs a quality loop: drafts below
// 90% of the target word count trigger another attempt, and the best draft
// seen is returned as degraded output when the attempt budget runs out.
type ClaudeGenerator struct {
	config      *common.ClaudeConfig
	logger      arbor.ILogger
	client      anthropic.Client
	limiter     *rate.Limiter
	timeout     time.Duration
	maxTokens   int
	maxAttempts int
	retry       *common.RetryConfig

	// complete performs one API round trip; tests override it
	complete func(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// NewClaudeGenerator creates a Claude content generator from configuration.
func NewClaudeGenerator(claudeConfig *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeGenerator, error) {
	if claudeConfig.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required (set via ANTHROPIC_API_KEY or claude.api_key in config)")
	}

	if claudeConfig.Model == "" {
		claudeConfig.Model = "claude-haiku-3-5-20241022"
	}

	timeout, err := time.ParseDuration(claudeConfig.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", claudeConfig.Timeout, err)
	}

	// Minimum interval between API calls, shared across all tasks in this
	// process
	minInterval, err := time.ParseDuration(claudeConfig.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit duration '%s': %w", claudeConfig.RateLimit, err)
	}

	maxTokens := claudeConfig.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	maxAttempts := claudeConfig.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	g := &ClaudeGenerator{
		config:      claudeConfig,
		logger:      logger,
		client:      anthropic.NewClient(option.WithAPIKey(claudeConfig.APIKey)),
		limiter:     rate.NewLimiter(rate.Every(minInterval), 1),
		timeout:     timeout,
		maxTokens:   maxTokens,
		maxAttempts: maxAttempts,
		retry:       common.NewDefaultRetryConfig(),
	}
	g.complete = g.generateCompletion

	logger.Debug().
		Str("model", claudeConfig.Model).
		Dur("timeout", timeout).
		Dur("min_interval", minInterval).
		Int("max_tokens", maxTokens).
		Int("max_attempts", maxAttempts).
		Msg("Claude content generator initialized")

	return g, nil
}

// Generate produces article text for the request. It returns an error only
// when no draft at all could be produced; a draft below the quality
// threshold comes back with Degraded set and the last failure recorded.
func (g *ClaudeGenerator) Generate(ctx context.Context, req interfaces.GenerationRequest) (*interfaces.GenerationResult, error) {
	if req.Prompt == "" {
		return nil, fmt.Errorf("generation prompt is empty")
	}
	if req.TargetWordCount <= 0 {
		return nil, fmt.Errorf("target word count must be positive, got %d", req.TargetWordCount)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	systemPrompt := buildSystemPrompt(req.TargetWordCount)
	userPrompt := buildUserPrompt(req)
	minWords := int(float64(req.TargetWordCount) * qualityThreshold)

	var best string
	bestWords := 0
	var lastFailure string

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if err := g.limiter.Wait(timeoutCtx); err != nil {
			break // Timeout while throttled; fall through to best-so-far
		}

		var draft string
		err := common.Retry(timeoutCtx, g.retry, nil, func() error {
			var completeErr error
			draft, completeErr = g.complete(timeoutCtx, systemPrompt, userPrompt)
			return completeErr
		})
		if err != nil {
			lastFailure = err.Error()
			g.logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Str("keyword", req.Keyword).
				Msg("Claude generation attempt failed")
			continue
		}

		words := countWords(draft)
		g.logger.Debug().
			Int("attempt", attempt).
			Int("word_count", words).
			Int("target", req.TargetWordCount).
			Msg("Claude draft received")

		if words > bestWords {
			best = draft
			bestWords = words
		}

		if words >= minWords {
			return &interfaces.GenerationResult{
				Content:   draft,
				WordCount: words,
			}, nil
		}

		lastFailure = fmt.Sprintf("draft reached %d of %d words", words, req.TargetWordCount)
	}

	if best == "" {
		return nil, fmt.Errorf("content generation produced no text: %s", lastFailure)
	}

	g.logger.Warn().
		Int("word_count", bestWords).
		Int("target", req.TargetWordCount).
		Str("keyword", req.Keyword).
		Msg("Returning best draft below quality threshold")

	return &interfaces.GenerationResult{
		Content:        best,
		WordCount:      bestWords,
		Degraded:       true,
		DegradedReason: fmt.Sprintf("best attempt reached %d of %d words (%s)", bestWords, req.TargetWordCount, lastFailure),
	}, nil
}

// generateCompletion performs one Claude API round trip.
func (g *ClaudeGenerator) generateCompletion(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.config.Model),
		MaxTokens: int64(g.maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}
	if g.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(g.config.Temperature))
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("Claude API call failed: %w", err)
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			response.WriteString(block.Text)
		}
	}

	if response.Len() == 0 {
		return "", fmt.Errorf("no response generated from Claude API")
	}

	return response.String(), nil
}

// buildSystemPrompt instructs the model to act as an SEO writer producing
// HTML body content at the requested length.
func buildSystemPrompt(targetWordCount int) string {
	return fmt.Sprintf(`You are an expert SEO content writer producing publication-ready blog articles.

Requirements:
- Write approximately %d words. This is a hard requirement; count carefully.
- Format the article as clean HTML body content using <h2>, <h3>, <p>, <ul>, and <li> tags only.
- Do not include <html>, <head>, <body> tags, a top-level <h1>, markdown, or any commentary about the article.
- Write naturally for readers first while working the target keyword into headings and body text.`, targetWordCount)
}

// buildUserPrompt combines the brief's prompt with keyword guidance.
func buildUserPrompt(req interfaces.GenerationRequest) string {
	var b strings.Builder
	b.WriteString(req.Prompt)
	if req.Keyword != "" {
		fmt.Fprintf(&b, "\n\nTarget keyword: %s", req.Keyword)
	}
	fmt.Fprintf(&b, "\nTarget word count: %d", req.TargetWordCount)
	return b.String()
}

// countWords counts words in the draft with HTML tags stripped so markup
// does not inflate the quality check.
func countWords(content string) int {
	var b strings.Builder
	inTag := false
	for _, r := range content {
		switch {
		case r == '<':
			inTag = true
			b.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return len(strings.Fields(b.String()))
}
