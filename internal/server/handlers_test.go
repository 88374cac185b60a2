package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pressgen/pressgen/internal/app"
	"github.com/pressgen/pressgen/internal/common"
	"github.com/pressgen/pressgen/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "test-plugin-token"

// stubTaskStorage implements interfaces.TaskStorage with function fields so
// each test controls only the calls it expects.
type stubTaskStorage struct {
	enqueueFn func(ctx context.Context, taskType models.TaskType, payload []byte) (string, error)
	getTaskFn func(ctx context.Context, taskID string) (*models.Task, error)
}

func (s *stubTaskStorage) Enqueue(ctx context.Context, taskType models.TaskType, payload []byte) (string, error) {
	return s.enqueueFn(ctx, taskType, payload)
}

func (s *stubTaskStorage) ClaimBatch(ctx context.Context, limit int, maxRetries int) ([]*models.Task, error) {
	return nil, nil
}

func (s *stubTaskStorage) MarkProcessing(ctx context.Context, taskID string, attempts int) (bool, error) {
	return false, nil
}

func (s *stubTaskStorage) UpdateStatus(ctx context.Context, taskID string, status models.TaskStatus, attempts int, errorMessage string) (bool, error) {
	return false, nil
}

func (s *stubTaskStorage) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	return s.getTaskFn(ctx, taskID)
}

func (s *stubTaskStorage) CountByStatus(ctx context.Context, status models.TaskStatus) (int, error) {
	return 0, nil
}

func newTestHandler(storage *stubTaskStorage) http.Handler {
	cfg := common.NewDefaultConfig()
	cfg.Webhook.PluginToken = testToken

	s := New(&app.App{
		Config:      cfg,
		Logger:      common.GetLogger(),
		TaskStorage: storage,
	})
	return s.withMiddleware(s.router)
}

func validBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"brief_id":          "brief-1",
		"prompt":            "Write a buying guide for man cave bar stools.",
		"target_word_count": 1000,
		"keyword":           "man cave bar stools",
		"callback_url":      "https://site.example/wp-json/seo-brief/v1/callback",
	})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func doRequest(handler http.Handler, method, path, token string, body *bytes.Buffer) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("X-Plugin-Token", token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestTriggerGeneration_Queued(t *testing.T) {
	var gotType models.TaskType
	var gotPayload []byte
	storage := &stubTaskStorage{
		enqueueFn: func(ctx context.Context, taskType models.TaskType, payload []byte) (string, error) {
			gotType = taskType
			gotPayload = payload
			return "task_abc", nil
		},
	}
	handler := newTestHandler(storage)

	rec := doRequest(handler, http.MethodPost, "/trigger-generation", testToken, validBody(t))

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "queued", resp["status"])
	assert.Equal(t, "task_abc", resp["task_id"])

	assert.Equal(t, models.TaskTypeGenerateContent, gotType)

	var payload models.GenerationPayload
	require.NoError(t, json.Unmarshal(gotPayload, &payload))
	assert.Equal(t, "brief-1", payload.BriefID)
	assert.Equal(t, 1000, payload.TargetWordCount)
	assert.Empty(t, payload.MissingFields())
}

func TestTriggerGeneration_MissingToken(t *testing.T) {
	handler := newTestHandler(&stubTaskStorage{})

	rec := doRequest(handler, http.MethodPost, "/trigger-generation", "", validBody(t))

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "X-Plugin-Token")
}

func TestTriggerGeneration_WrongToken(t *testing.T) {
	handler := newTestHandler(&stubTaskStorage{})

	rec := doRequest(handler, http.MethodPost, "/trigger-generation", "wrong-token", validBody(t))

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTriggerGeneration_InvalidJSON(t *testing.T) {
	handler := newTestHandler(&stubTaskStorage{})

	rec := doRequest(handler, http.MethodPost, "/trigger-generation", testToken, bytes.NewBufferString("{not json"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid JSON body")
}

func TestTriggerGeneration_MissingFields(t *testing.T) {
	handler := newTestHandler(&stubTaskStorage{})

	body, err := json.Marshal(map[string]interface{}{
		"prompt":       "Write something.",
		"callback_url": "https://site.example/callback",
	})
	require.NoError(t, err)

	rec := doRequest(handler, http.MethodPost, "/trigger-generation", testToken, bytes.NewBuffer(body))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "brief_id")
	assert.Contains(t, rec.Body.String(), "target_word_count")
	assert.Contains(t, rec.Body.String(), "keyword")
}

func TestTriggerGeneration_InvalidCallbackURL(t *testing.T) {
	handler := newTestHandler(&stubTaskStorage{})

	body, err := json.Marshal(map[string]interface{}{
		"brief_id":          "brief-1",
		"prompt":            "Write something.",
		"target_word_count": 1000,
		"keyword":           "man cave bar stools",
		"callback_url":      "not a url",
	})
	require.NoError(t, err)

	rec := doRequest(handler, http.MethodPost, "/trigger-generation", testToken, bytes.NewBuffer(body))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "callback_url")
}

func TestTriggerGeneration_StorageFailure(t *testing.T) {
	storage := &stubTaskStorage{
		enqueueFn: func(ctx context.Context, taskType models.TaskType, payload []byte) (string, error) {
			return "", errors.New("disk full")
		},
	}
	handler := newTestHandler(storage)

	rec := doRequest(handler, http.MethodPost, "/trigger-generation", testToken, validBody(t))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "failed to enqueue task")
}

func TestTriggerGeneration_MethodNotAllowed(t *testing.T) {
	handler := newTestHandler(&stubTaskStorage{})

	rec := doRequest(handler, http.MethodGet, "/trigger-generation", testToken, nil)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGetTask(t *testing.T) {
	storage := &stubTaskStorage{
		getTaskFn: func(ctx context.Context, taskID string) (*models.Task, error) {
			require.Equal(t, "task_abc", taskID)
			return &models.Task{
				ID:        "task_abc",
				Type:      models.TaskTypeGenerateContent,
				Status:    models.TaskStatusCompleted,
				Attempts:  1,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}, nil
		},
	}
	handler := newTestHandler(storage)

	rec := doRequest(handler, http.MethodGet, "/tasks/task_abc", testToken, nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var task models.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
	assert.Equal(t, "task_abc", task.ID)
	assert.Equal(t, models.TaskStatusCompleted, task.Status)
}

func TestGetTask_NotFound(t *testing.T) {
	storage := &stubTaskStorage{
		getTaskFn: func(ctx context.Context, taskID string) (*models.Task, error) {
			return nil, errors.New("task not found: " + taskID)
		},
	}
	handler := newTestHandler(storage)

	rec := doRequest(handler, http.MethodGet, "/tasks/task_missing", testToken, nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTask_RequiresID(t *testing.T) {
	handler := newTestHandler(&stubTaskStorage{})

	rec := doRequest(handler, http.MethodGet, "/tasks/", testToken, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz_NoTokenRequired(t *testing.T) {
	handler := newTestHandler(&stubTaskStorage{})

	rec := doRequest(handler, http.MethodGet, "/healthz", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestVersion_NoTokenRequired(t *testing.T) {
	handler := newTestHandler(&stubTaskStorage{})

	rec := doRequest(handler, http.MethodGet, "/version", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "version")
}
