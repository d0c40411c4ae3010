package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/simplytransit/arrivals/internal/query"
)

// Server exposes the query facade over HTTP for the presentation
// layer.
type Server struct {
	svc     *query.Service
	metrics http.Handler
}

// NewServer creates a new API server. metricsHandler may be nil.
func NewServer(svc *query.Service, metricsHandler http.Handler) *Server {
	return &Server{
		svc:     svc,
		metrics: metricsHandler,
	}
}

// Router creates and returns the HTTP router
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", s.handleIndex).Methods("GET")
	r.HandleFunc("/status", s.handleStatus).Methods("GET")
	r.HandleFunc("/stops/{id}", s.handleStop).Methods("GET")
	r.HandleFunc("/stops/{id}/routes", s.handleStopRoutes).Methods("GET")
	r.HandleFunc("/stops/{id}/arrivals", s.handleRealtimeArrivals).Methods("GET")
	r.HandleFunc("/stops/{id}/schedule", s.handleScheduledArrivals).Methods("GET")

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods("GET")
	}

	return s.corsMiddleware(r)
}

// corsMiddleware adds CORS headers to all responses
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
