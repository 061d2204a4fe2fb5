package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	if err := s.db.QuickCheck(ctx); err != nil {
		s.log.Error().Err(err).Msg("Health check failed")
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	s.writeJSON(w, code, map[string]interface{}{
		"status":  status,
		"service": "stockapp",
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}
