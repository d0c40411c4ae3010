package api

import (
	"net/http"
	"time"
)

// handleIndex handles the index route
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	response := Response{
		Data: map[string]interface{}{
			"name":    "arrivals API",
			"version": "1.0.0",
			"time":    time.Now().Format(time.RFC3339),
		},
		Meta: map[string]interface{}{
			"links": map[string]string{
				"status":   "/status",
				"stop":     "/stops/{id}",
				"routes":   "/stops/{id}/routes",
				"arrivals": "/stops/{id}/arrivals",
				"schedule": "/stops/{id}/schedule?day=0",
			},
		},
	}

	s.sendResponse(w, response)
}

// handleStatus exposes dataset freshness for the landing page.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.sendResponse(w, Response{Data: s.svc.Freshness()})
}
