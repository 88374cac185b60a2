package server

import "net/http"

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Webhook - enqueue a content generation task
	mux.HandleFunc("/trigger-generation", s.triggerGenerationHandler)

	// Task status lookup - /tasks/{id}
	mux.HandleFunc("/tasks/", s.getTaskHandler)

	// System
	mux.HandleFunc("/healthz", s.healthHandler)
	mux.HandleFunc("/version", s.versionHandler)

	return mux
}
