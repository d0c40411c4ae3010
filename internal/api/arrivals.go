package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/simplytransit/arrivals/internal/models"
)

// arrivalResource is the wire form of a reconciled arrival, shaped to
// the fields the stop page consumes.
type arrivalResource struct {
	Route            *models.Route       `json:"route"`
	TripID           string              `json:"trip_id"`
	ScheduledArrival string              `json:"scheduled_arrival_time"`
	RealArrival      *string             `json:"real_arrival_time,omitempty"`
	DelaySeconds     *int64              `json:"delay,omitempty"`
	ETAText          string              `json:"real_eta_text"`
	Status           models.OnTimeStatus `json:"on_time_status"`
}

func arrivalToResource(a models.ReconciledArrival) arrivalResource {
	res := arrivalResource{
		Route:            a.Route,
		TripID:           a.TripID,
		ScheduledArrival: a.Scheduled.Format(time.RFC3339),
		ETAText:          a.ETAText,
		Status:           a.Status,
	}
	if a.Real != nil {
		real := a.Real.Format(time.RFC3339)
		res.RealArrival = &real
	}
	if a.Delay != nil {
		secs := int64(a.Delay.Seconds())
		res.DelaySeconds = &secs
	}
	return res
}

// handleRealtimeArrivals handles the reconciled arrivals endpoint.
// Optional query parameters: at (RFC 3339, defaults to now),
// window_start and window_end (Go durations, e.g. -2m and 60m).
func (s *Server) handleRealtimeArrivals(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	now, err := parseAt(r)
	if err != nil {
		s.sendError(w, err)
		return
	}
	window, err := parseWindow(r)
	if err != nil {
		s.sendError(w, err)
		return
	}

	arrivals, err := s.svc.RealtimeArrivals(r.Context(), id, now, window)
	if err != nil {
		s.sendError(w, err)
		return
	}

	resources := make([]arrivalResource, len(arrivals))
	for i, a := range arrivals {
		resources[i] = arrivalToResource(a)
	}

	s.sendResponse(w, Response{
		Data: resources,
		Meta: map[string]interface{}{
			"stop_id": id,
			"at":      now.Format(time.RFC3339),
		},
	})
}

// handleScheduledArrivals handles the day-selectable schedule table
// endpoint. Query parameters: day (0-6, Monday-indexed, required),
// route (optional filter), offset and limit (pagination).
func (s *Server) handleScheduledArrivals(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	day, err := parseDay(r)
	if err != nil {
		s.sendError(w, err)
		return
	}
	page, err := parsePage(r)
	if err != nil {
		s.sendError(w, err)
		return
	}
	routeID := r.URL.Query().Get("route")

	rows, err := s.svc.ScheduledArrivals(r.Context(), id, day, routeID, page)
	if err != nil {
		s.sendError(w, err)
		return
	}

	s.sendResponse(w, Response{
		Data: rows,
		Meta: map[string]interface{}{
			"stop_id": id,
			"day":     day,
		},
	})
}
