package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// handleStop handles the single stop endpoint
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	stop, err := s.svc.Stop(id)
	if err != nil {
		s.sendError(w, err)
		return
	}

	s.sendResponse(w, Response{Data: stop})
}

// handleStopRoutes handles the routes-serving-a-stop endpoint
func (s *Server) handleStopRoutes(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	routes, err := s.svc.RoutesForStop(id)
	if err != nil {
		s.sendError(w, err)
		return
	}

	s.sendResponse(w, Response{Data: routes})
}
