// -----------------------------------------------------------------------
// Content Pipeline - Drives a claimed task through generation, image,
// and publish stages to a terminal outcome
// -----------------------------------------------------------------------

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/pressgen/pressgen/internal/interfaces"
	"github.com/pressgen/pressgen/internal/models"
	"github.com/ternarybob/arbor"
)

// snippetLength is how much article text feeds the image prompt.
const snippetLength = 500

// CallbackTarget identifies where a task's terminal notification goes.
// A nil target means the payload never validated and no callback is owed.
type CallbackTarget struct {
	BriefID     string
	CallbackURL string
}

// Pipeline processes one claimed task to a terminal outcome.
type Pipeline interface {
	Type() models.TaskType
	Run(ctx context.Context, task *models.Task) (models.TaskOutcome, *CallbackTarget)
}

// ContentPipeline implements the generate_content pipeline:
// validate payload -> generate article text -> featured image (best
// effort) -> publish WordPress draft -> aggregate outcome.
type ContentPipeline struct {
	generator interfaces.ContentGenerator
	images    interfaces.ImageGenerator
	publisher interfaces.Publisher
	logger    arbor.ILogger
}

// NewContentPipeline creates the generate_content pipeline.
// The image generator may be nil, in which case the image stage is skipped.
func NewContentPipeline(generator interfaces.ContentGenerator, images interfaces.ImageGenerator, publisher interfaces.Publisher, logger arbor.ILogger) *ContentPipeline {
	return &ContentPipeline{
		generator: generator,
		images:    images,
		publisher: publisher,
		logger:    logger,
	}
}

// Type returns the task type this pipeline handles.
func (p *ContentPipeline) Type() models.TaskType {
	return models.TaskTypeGenerateContent
}

// Run drives the task through all stages. It never panics outward; the
// dispatcher's recovery boundary handles anything unexpected.
func (p *ContentPipeline) Run(ctx context.Context, task *models.Task) (models.TaskOutcome, *CallbackTarget) {
	// Stage 1: validate payload. A malformed payload is terminally invalid
	// before any external call, and without a trusted callback URL no
	// notification is sent.
	var payload models.GenerationPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return models.TaskOutcome{
			Status:       models.TaskStatusError,
			ErrorMessage: fmt.Sprintf("Invalid or empty payload received: %v", err),
		}, nil
	}
	if missing := payload.MissingFields(); len(missing) > 0 {
		return models.TaskOutcome{
			Status:       models.TaskStatusError,
			ErrorMessage: fmt.Sprintf("Payload missing required keys: %s", strings.Join(missing, ", ")),
		}, nil
	}

	target := &CallbackTarget{
		BriefID:     payload.BriefID,
		CallbackURL: payload.CallbackURL,
	}

	// Stage 2: generate article text
	p.logger.Info().
		Str("task_id", task.ID).
		Str("keyword", payload.Keyword).
		Int("target_word_count", payload.TargetWordCount).
		Msg("Generating content")

	startTime := time.Now()
	result, err := p.generator.Generate(ctx, interfaces.GenerationRequest{
		Keyword:         payload.Keyword,
		Prompt:          payload.Prompt,
		TargetWordCount: payload.TargetWordCount,
	})
	if err != nil {
		return models.TaskOutcome{
			Status:       models.TaskStatusError,
			ErrorMessage: fmt.Sprintf("Content generation failed: %v", err),
		}, target
	}

	p.logger.Info().
		Str("task_id", task.ID).
		Int("word_count", result.WordCount).
		Bool("degraded", result.Degraded).
		Dur("duration", time.Since(startTime)).
		Msg("Content generated")

	// Stage 3: featured image, best effort. Failure never fails the task.
	imageID := p.generateFeaturedImage(ctx, task.ID, payload.Keyword, result.Content)

	// Duplicate probe is informational only; the requester decides what to
	// do with multiple drafts for the same keyword.
	if existing, probeErr := p.publisher.CheckContentExists(ctx, payload.Keyword); probeErr != nil {
		p.logger.Warn().Err(probeErr).Str("task_id", task.ID).Msg("Duplicate content probe failed")
	} else if existing != nil {
		p.logger.Warn().
			Str("task_id", task.ID).
			Int("existing_post_id", existing.ID).
			Str("keyword", payload.Keyword).
			Msg("Content for keyword already exists, creating draft anyway")
	}

	// Stage 4: publish draft. Failure here is terminal even though text
	// generation succeeded.
	post, err := p.publisher.CreatePost(ctx, interfaces.PostInput{
		Title:           postTitle(payload.Keyword),
		Content:         result.Content,
		Keyword:         payload.Keyword,
		FeaturedMediaID: imageID,
	})
	if err != nil {
		return models.TaskOutcome{
			Status:       models.TaskStatusError,
			ImageID:      imageID,
			ErrorMessage: fmt.Sprintf("Content generated (%d words), but WP post creation failed: %v", result.WordCount, err),
		}, target
	}

	p.logger.Info().
		Str("task_id", task.ID).
		Int("post_id", post.ID).
		Str("post_url", post.URL).
		Msg("WordPress draft created")

	// Stage 5: aggregate. Publish success is sufficient for success; a
	// degraded draft keeps its marker in the error message without
	// downgrading the status.
	outcome := models.TaskOutcome{
		Status:  models.TaskStatusCompleted,
		PostID:  post.ID,
		PostURL: post.URL,
		ImageID: imageID,
	}
	if result.Degraded {
		outcome.ErrorMessage = fmt.Sprintf("Draft published below target word count (%d of %d words): %s",
			result.WordCount, payload.TargetWordCount, result.DegradedReason)
	}

	return outcome, target
}

// generateFeaturedImage runs the best-effort image stage and returns the
// uploaded media ID, or 0 when anything failed.
func (p *ContentPipeline) generateFeaturedImage(ctx context.Context, taskID, keyword, content string) int {
	if p.images == nil {
		return 0
	}

	snippet := content
	if len(snippet) > snippetLength {
		snippet = snippet[:snippetLength]
	}

	data, err := p.images.GenerateImage(ctx, keyword, snippet)
	if err != nil {
		p.logger.Warn().Err(err).Str("task_id", taskID).Msg("Featured image generation failed, continuing without image")
		return 0
	}

	filename := fmt.Sprintf("%s-featured.jpg", slugify(keyword))
	mediaID, err := p.publisher.UploadMedia(ctx, data, filename, postTitle(keyword))
	if err != nil {
		p.logger.Warn().Err(err).Str("task_id", taskID).Msg("Featured image upload failed, continuing without image")
		return 0
	}

	p.logger.Info().
		Str("task_id", taskID).
		Int("media_id", mediaID).
		Msg("Featured image uploaded")
	return mediaID
}

// postTitle capitalizes each word of the keyword for use as a draft title.
func postTitle(keyword string) string {
	words := strings.Fields(keyword)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// slugify lowercases the keyword and replaces runs of non-alphanumerics
// with single hyphens.
func slugify(keyword string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(keyword) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteRune('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
