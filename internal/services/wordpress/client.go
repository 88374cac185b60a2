// Package wordpress provides a client for the WordPress REST API.
package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pressgen/pressgen/internal/interfaces"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 60 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 5
)

// Client is a WordPress REST API client authenticated with an application
// password.
type Client struct {
	baseURL     string
	user        string
	appPassword string
	httpClient  *http.Client
	logger      arbor.ILogger
	limiter     *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout sets a custom HTTP timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// NewClient creates a new WordPress REST API client. baseURL is the site's
// REST root, e.g. https://site.example/wp-json.
func NewClient(baseURL string, user string, appPassword string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		user:        user,
		appPassword: appPassword,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an error from the WordPress REST API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wordpress API error: %s (status %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// postResponse is the subset of the wp/v2 post object the pipeline needs.
type postResponse struct {
	ID    int    `json:"id"`
	Link  string `json:"link"`
	Slug  string `json:"slug"`
	Title struct {
		Rendered string `json:"rendered"`
	} `json:"title"`
}

// mediaResponse is the subset of the wp/v2 media object the pipeline needs.
type mediaResponse struct {
	ID        int    `json:"id"`
	SourceURL string `json:"source_url"`
}

// CreatePost creates a draft post and returns its identity.
func (c *Client) CreatePost(ctx context.Context, post interfaces.PostInput) (*interfaces.PublishedPost, error) {
	if post.Title == "" {
		return nil, fmt.Errorf("post title is empty")
	}
	if post.Content == "" {
		return nil, fmt.Errorf("post content is empty")
	}

	body := map[string]interface{}{
		"title":   post.Title,
		"content": post.Content,
		"status":  "draft",
	}
	if post.FeaturedMediaID > 0 {
		body["featured_media"] = post.FeaturedMediaID
	}

	var created postResponse
	if err := c.do(ctx, http.MethodPost, "/wp/v2/posts", nil, body, &created); err != nil {
		return nil, fmt.Errorf("failed to create post '%s': %w", post.Title, err)
	}

	if c.logger != nil {
		c.logger.Info().
			Int("post_id", created.ID).
			Str("link", created.Link).
			Msg("Draft post created")
	}

	return &interfaces.PublishedPost{
		ID:   created.ID,
		URL:  created.Link,
		Slug: created.Slug,
	}, nil
}

// UploadMedia uploads image bytes to the media library and returns the
// attachment ID. Title is reused as alt text.
func (c *Client) UploadMedia(ctx context.Context, data []byte, filename string, title string) (int, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("media data is empty")
	}
	if filename == "" {
		return 0, fmt.Errorf("media filename is empty")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limit exceeded: %w", err)
	}

	endpoint := "/wp/v2/media"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.SetBasicAuth(c.user, c.appPassword)
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
			Endpoint:   endpoint,
		}
	}

	var media mediaResponse
	if err := json.NewDecoder(resp.Body).Decode(&media); err != nil {
		return 0, fmt.Errorf("failed to decode media response: %w", err)
	}

	if title != "" {
		// Alt text is a follow-up update; upload success stands even if it fails
		if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/wp/v2/media/%d", media.ID), nil, map[string]interface{}{
			"title":    title,
			"alt_text": title,
			"caption":  title,
		}, &mediaResponse{}); err != nil && c.logger != nil {
			c.logger.Warn().Err(err).Int("media_id", media.ID).Msg("Failed to set media alt text")
		}
	}

	if c.logger != nil {
		c.logger.Info().
			Int("media_id", media.ID).
			Str("filename", filename).
			Msg("Media uploaded")
	}

	return media.ID, nil
}

// CheckContentExists searches published and draft posts for the keyword and
// returns the first match, or nil when nothing similar exists.
func (c *Client) CheckContentExists(ctx context.Context, keyword string) (*interfaces.PublishedPost, error) {
	params := url.Values{}
	params.Set("search", keyword)
	params.Set("per_page", "1")
	params.Set("status", "any")
	params.Set("_fields", "id,link,slug,title")

	var results []postResponse
	if err := c.do(ctx, http.MethodGet, "/wp/v2/posts", params, nil, &results); err != nil {
		return nil, fmt.Errorf("failed to search posts for '%s': %w", keyword, err)
	}

	if len(results) == 0 {
		return nil, nil
	}

	return &interfaces.PublishedPost{
		ID:   results[0].ID,
		URL:  results[0].Link,
		Slug: results[0].Slug,
	}, nil
}

// do performs a JSON request against the API.
func (c *Client) do(ctx context.Context, method string, path string, params url.Values, body interface{}, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL = fmt.Sprintf("%s?%s", reqURL, params.Encode())
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.SetBasicAuth(c.user, c.appPassword)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.logger != nil {
		c.logger.Debug().
			Str("method", method).
			Str("url", c.baseURL+path).
			Msg("WordPress API request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
			Endpoint:   path,
		}
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
