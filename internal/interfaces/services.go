package interfaces

import (
	"context"
)

// GenerationRequest describes a single content generation job for the
// content generator.
type GenerationRequest struct {
	Keyword         string
	Prompt          string
	TargetWordCount int
}

// GenerationResult is the outcome of a content generation call.
// Degraded is true when the generator exhausted its quality attempts and
// returned its best available draft below the acceptance threshold.
type GenerationResult struct {
	Content   string
	WordCount int
	Degraded  bool
	// DegradedReason carries the last quality or API error when Degraded is set.
	DegradedReason string
}

// ContentGenerator produces article text for a generation request.
type ContentGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error)
}

// ImageGenerator produces featured image bytes for a keyword.
// The snippet gives the generator article context to draw details from.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, keyword string, snippet string) ([]byte, error)
}

// PostInput is the draft post submitted to the publisher.
type PostInput struct {
	Title           string
	Content         string
	Keyword         string
	FeaturedMediaID int
}

// PublishedPost identifies a post created by the publisher.
type PublishedPost struct {
	ID   int
	URL  string
	Slug string
}

// Publisher creates draft posts and uploads media on the target site.
type Publisher interface {
	CreatePost(ctx context.Context, post PostInput) (*PublishedPost, error)
	UploadMedia(ctx context.Context, data []byte, filename string, title string) (int, error)
	CheckContentExists(ctx context.Context, keyword string) (*PublishedPost, error)
}

// CallbackNotification is the payload delivered to the requester's
// callback endpoint after a task reaches a terminal state.
type CallbackNotification struct {
	TaskID           string `json:"task_id"`
	BriefID          string `json:"brief_id"`
	Status           string `json:"status"`
	GeneratedPostID  int    `json:"generated_post_id,omitempty"`
	GeneratedPostURL string `json:"generated_post_url,omitempty"`
	FeaturedImageID  int    `json:"featured_image_id,omitempty"`
	ErrorMessage     string `json:"error_message,omitempty"`
}

// Notifier delivers terminal-state notifications to a callback URL.
type Notifier interface {
	Notify(ctx context.Context, callbackURL string, notification CallbackNotification) error
}
