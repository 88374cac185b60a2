package wordpress

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pressgen/pressgen/internal/common"
	"github.com/pressgen/pressgen/internal/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(serverURL string) *Client {
	return NewClient(serverURL, "wp-user", "app-password", WithLogger(common.GetLogger()), WithRateLimit(1000))
}

func TestCreatePost(t *testing.T) {
	var gotBody map[string]interface{}
	var gotUser, gotPass string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/wp/v2/posts", r.URL.Path)
		gotUser, gotPass, _ = r.BasicAuth()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":   101,
			"link": "https://site.example/?p=101",
			"slug": "man-cave-bar-stools",
		})
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	post, err := c.CreatePost(context.Background(), interfaces.PostInput{
		Title:           "Man Cave Bar Stools",
		Content:         "<h2>Top Picks</h2><p>...</p>",
		Keyword:         "man cave bar stools",
		FeaturedMediaID: 42,
	})

	require.NoError(t, err)
	assert.Equal(t, 101, post.ID)
	assert.Equal(t, "https://site.example/?p=101", post.URL)
	assert.Equal(t, "man-cave-bar-stools", post.Slug)

	assert.Equal(t, "wp-user", gotUser)
	assert.Equal(t, "app-password", gotPass)
	assert.Equal(t, "Man Cave Bar Stools", gotBody["title"])
	assert.Equal(t, "draft", gotBody["status"])
	assert.Equal(t, float64(42), gotBody["featured_media"])
}

func TestCreatePost_WithoutFeaturedMedia(t *testing.T) {
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]interface{}{"id": 102})
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.CreatePost(context.Background(), interfaces.PostInput{
		Title:   "Man Cave Bar Stools",
		Content: "<p>...</p>",
	})

	require.NoError(t, err)
	_, hasMedia := gotBody["featured_media"]
	assert.False(t, hasMedia)
}

func TestCreatePost_ValidatesInput(t *testing.T) {
	c := newTestClient("https://site.example/wp-json")

	_, err := c.CreatePost(context.Background(), interfaces.PostInput{Content: "<p>...</p>"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title is empty")

	_, err = c.CreatePost(context.Background(), interfaces.PostInput{Title: "T"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content is empty")
}

func TestCreatePost_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"rest_cannot_create"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.CreatePost(context.Background(), interfaces.PostInput{Title: "T", Content: "<p>x</p>"})

	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "/wp/v2/posts", apiErr.Endpoint)
}

func TestUploadMedia(t *testing.T) {
	imageData := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	var uploads, updates int
	var gotDisposition, gotContentType string
	var gotUpdate map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/wp/v2/media":
			uploads++
			gotDisposition = r.Header.Get("Content-Disposition")
			gotContentType = r.Header.Get("Content-Type")
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]interface{}{"id": 42, "source_url": "https://site.example/img.jpg"})
		case "/wp/v2/media/42":
			updates++
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotUpdate))
			json.NewEncoder(w).Encode(map[string]interface{}{"id": 42})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	mediaID, err := c.UploadMedia(context.Background(), imageData, "man-cave-bar-stools-featured.jpg", "Man Cave Bar Stools")

	require.NoError(t, err)
	assert.Equal(t, 42, mediaID)
	assert.Equal(t, 1, uploads)
	assert.Equal(t, 1, updates)
	assert.Equal(t, `attachment; filename="man-cave-bar-stools-featured.jpg"`, gotDisposition)
	assert.Equal(t, "image/jpeg", gotContentType)
	assert.Equal(t, "Man Cave Bar Stools", gotUpdate["alt_text"])
}

func TestUploadMedia_AltTextFailureIsNotFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/wp/v2/media" {
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]interface{}{"id": 42})
			return
		}
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	mediaID, err := c.UploadMedia(context.Background(), []byte{0x01}, "img.jpg", "Title")

	require.NoError(t, err)
	assert.Equal(t, 42, mediaID)
}

func TestUploadMedia_ValidatesInput(t *testing.T) {
	c := newTestClient("https://site.example/wp-json")

	_, err := c.UploadMedia(context.Background(), nil, "img.jpg", "Title")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data is empty")

	_, err = c.UploadMedia(context.Background(), []byte{0x01}, "", "Title")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "filename is empty")
}

func TestUploadMedia_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "file type not allowed", http.StatusUnsupportedMediaType)
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.UploadMedia(context.Background(), []byte{0x01}, "img.jpg", "Title")

	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnsupportedMediaType, apiErr.StatusCode)
}

func TestCheckContentExists_Found(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/wp/v2/posts", r.URL.Path)
		assert.Equal(t, "man cave bar stools", r.URL.Query().Get("search"))
		assert.Equal(t, "1", r.URL.Query().Get("per_page"))
		assert.Equal(t, "any", r.URL.Query().Get("status"))
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"id": 99, "link": "https://site.example/?p=99", "slug": "existing-post"},
		})
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	existing, err := c.CheckContentExists(context.Background(), "man cave bar stools")

	require.NoError(t, err)
	require.NotNil(t, existing)
	assert.Equal(t, 99, existing.ID)
	assert.Equal(t, "existing-post", existing.Slug)
}

func TestCheckContentExists_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]interface{}{})
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	existing, err := c.CheckContentExists(context.Background(), "man cave bar stools")

	require.NoError(t, err)
	assert.Nil(t, existing)
}

func TestCheckContentExists_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.CheckContentExists(context.Background(), "man cave bar stools")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to search posts")
}

func TestAPIErrorMessage(t *testing.T) {
	err := &APIError{StatusCode: 403, Message: "forbidden", Endpoint: "/wp/v2/posts"}
	assert.Equal(t, "wordpress API error: forbidden (status 403, endpoint: /wp/v2/posts)", err.Error())
}
