package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pressgen/pressgen/internal/common"
	"github.com/pressgen/pressgen/internal/models"
)

// triggerGenerationRequest is the webhook body enqueued as a generation
// task. Field names mirror the task payload so the pipeline can decode the
// same JSON.
type triggerGenerationRequest struct {
	BriefID         string `json:"brief_id" validate:"required"`
	Prompt          string `json:"prompt" validate:"required"`
	TargetWordCount int    `json:"target_word_count" validate:"required,gt=0"`
	Keyword         string `json:"keyword" validate:"required"`
	CallbackURL     string `json:"callback_url" validate:"required,url"`
}

// jsonFieldNames maps struct field names to their wire names for
// validation error messages.
var jsonFieldNames = map[string]string{
	"BriefID":         "brief_id",
	"Prompt":          "prompt",
	"TargetWordCount": "target_word_count",
	"Keyword":         "keyword",
	"CallbackURL":     "callback_url",
}

// triggerGenerationHandler accepts a generation brief and enqueues it.
// The response is 202: processing happens in the background and the result
// is delivered to the callback URL.
func (s *Server) triggerGenerationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req triggerGenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.validate.Struct(&req); err != nil {
		var fields []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, verr := range verrs {
				if name, known := jsonFieldNames[verr.Field()]; known {
					fields = append(fields, name)
				} else {
					fields = append(fields, verr.Field())
				}
			}
		}
		writeError(w, http.StatusBadRequest, "missing or invalid fields: "+strings.Join(fields, ", "))
		return
	}

	payload, err := json.Marshal(models.GenerationPayload{
		BriefID:         req.BriefID,
		Prompt:          req.Prompt,
		TargetWordCount: req.TargetWordCount,
		Keyword:         req.Keyword,
		CallbackURL:     req.CallbackURL,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode task payload")
		return
	}

	taskID, err := s.app.TaskStorage.Enqueue(r.Context(), models.TaskTypeGenerateContent, payload)
	if err != nil {
		s.app.Logger.Error().Err(err).Str("brief_id", req.BriefID).Msg("Failed to enqueue generation task")
		writeError(w, http.StatusInternalServerError, "failed to enqueue task")
		return
	}

	s.app.Logger.Info().
		Str("task_id", taskID).
		Str("brief_id", req.BriefID).
		Str("keyword", req.Keyword).
		Msg("Generation task queued")

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "queued",
		"task_id": taskID,
	})
}

// getTaskHandler returns the stored task record for /tasks/{id}.
func (s *Server) getTaskHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	taskID := strings.TrimPrefix(r.URL.Path, "/tasks/")
	if taskID == "" || strings.Contains(taskID, "/") {
		writeError(w, http.StatusBadRequest, "task ID is required")
		return
	}

	task, err := s.app.TaskStorage.GetTask(r.Context(), taskID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		s.app.Logger.Error().Err(err).Str("task_id", taskID).Msg("Failed to load task")
		writeError(w, http.StatusInternalServerError, "failed to load task")
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// healthHandler reports liveness.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// versionHandler reports the build version.
func (s *Server) versionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.Build,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
