package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/simplytransit/arrivals/internal/models"
	"github.com/simplytransit/arrivals/internal/query"
	"github.com/simplytransit/arrivals/internal/reconcile"
)

// parseAt reads the reference instant, defaulting to now.
func parseAt(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("at")
	if raw == "" {
		return time.Now(), nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, &models.ValidationError{Param: "at", Reason: "must be RFC 3339"}
	}
	return at, nil
}

// parseWindow reads window_start/window_end durations. Both absent
// means the facade default; one without the other is an error.
func parseWindow(r *http.Request) (reconcile.Window, error) {
	rawStart := r.URL.Query().Get("window_start")
	rawEnd := r.URL.Query().Get("window_end")
	if rawStart == "" && rawEnd == "" {
		return reconcile.Window{}, nil
	}
	if rawStart == "" || rawEnd == "" {
		return reconcile.Window{}, &models.ValidationError{Param: "window", Reason: "window_start and window_end must both be set"}
	}
	start, err := time.ParseDuration(rawStart)
	if err != nil {
		return reconcile.Window{}, &models.ValidationError{Param: "window_start", Reason: "must be a duration, e.g. -2m"}
	}
	end, err := time.ParseDuration(rawEnd)
	if err != nil {
		return reconcile.Window{}, &models.ValidationError{Param: "window_end", Reason: "must be a duration, e.g. 60m"}
	}
	return reconcile.Window{Start: start, End: end}, nil
}

// parseDay reads the required Monday-indexed day-of-week parameter.
func parseDay(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("day")
	if raw == "" {
		return 0, &models.ValidationError{Param: "day", Reason: "required, 0-6 Monday-indexed"}
	}
	day, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &models.ValidationError{Param: "day", Reason: "must be an integer 0-6"}
	}
	return day, nil
}

// parsePage reads pagination parameters. Bounds checking is left to
// the facade.
func parsePage(r *http.Request) (query.Page, error) {
	var page query.Page
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return page, &models.ValidationError{Param: "offset", Reason: "must be an integer"}
		}
		page.Offset = offset
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return page, &models.ValidationError{Param: "limit", Reason: "must be an integer"}
		}
		page.Limit = limit
	}
	return page, nil
}
