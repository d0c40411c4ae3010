package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Stop represents a transit stop
type Stop struct {
	ID        string  `json:"id"`
	Code      string  `json:"code,omitempty"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Route represents a transit route
type Route struct {
	ID        string `json:"id"`
	ShortName string `json:"short_name"`
	LongName  string `json:"long_name,omitempty"`
}

// Trip represents a single scheduled run of a route
type Trip struct {
	ID        string `json:"id"`
	RouteID   string `json:"route_id"`
	ServiceID string `json:"service_id"`
}

// Service describes the days of week a trip's service runs on.
// Weekdays is Monday-indexed: Weekdays[0] is Monday, Weekdays[6] is Sunday.
type Service struct {
	ID       string
	Weekdays [7]bool
}

// RunsOn reports whether the service operates on the given weekday
// (0 = Monday .. 6 = Sunday).
func (s *Service) RunsOn(day int) bool {
	if day < 0 || day > 6 {
		return false
	}
	return s.Weekdays[day]
}

// MondayIndex converts a time.Weekday (Sunday-indexed) to the
// Monday-indexed day number used throughout the query surface.
func MondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// ClockTime is a scheduled wall-clock time of day in seconds since
// midnight. Values at or past 24:00:00 are valid and denote trips that
// run past midnight on their service day.
type ClockTime int

// ParseClockTime parses an "HH:MM:SS" string. Hours may exceed 23.
func ParseClockTime(s string) (ClockTime, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	sec, err := strconv.Atoi(parts[2])
	if err != nil || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return ClockTime(h*3600 + m*60 + sec), nil
}

// On combines the time of day with a reference date, producing an
// absolute instant in the date's location.
func (c ClockTime) On(date time.Time) time.Time {
	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return midnight.Add(time.Duration(c) * time.Second)
}

func (c ClockTime) String() string {
	s := int(c)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s/60)%60, s%60)
}

// MarshalJSON renders the time of day as "HH:MM:SS".
func (c ClockTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

// StaticStopTime is a scheduled arrival of a trip at a stop
type StaticStopTime struct {
	TripID  string
	StopID  string
	Arrival ClockTime
}

// TripStopKey identifies a realtime update by trip and stop
type TripStopKey struct {
	TripID string
	StopID string
}

// RealtimeUpdate is a normalized live arrival prediction for one
// (trip, stop) pair. FeedTimestamp is the source feed's timestamp, not
// the time the record was received; it decides which of two updates for
// the same key wins.
type RealtimeUpdate struct {
	TripID        string
	StopID        string
	Arrival       time.Time
	FeedTimestamp time.Time
}

// Key returns the update's (trip, stop) identity.
func (u RealtimeUpdate) Key() TripStopKey {
	return TripStopKey{TripID: u.TripID, StopID: u.StopID}
}

// OnTimeStatus classifies a reconciled arrival against its schedule.
type OnTimeStatus int

const (
	StatusUnknown OnTimeStatus = iota
	StatusEarly
	StatusOnTime
	StatusLate
)

func (s OnTimeStatus) String() string {
	switch s {
	case StatusEarly:
		return "EARLY"
	case StatusOnTime:
		return "ON_TIME"
	case StatusLate:
		return "LATE"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON renders the status as its string form.
func (s OnTimeStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// ReconciledArrival is the result of joining one scheduled stop-time
// with any matching realtime update. It is computed per query and never
// stored. Real and Delay are nil exactly when Status is StatusUnknown.
type ReconciledArrival struct {
	Route     *Route
	TripID    string
	Scheduled time.Time
	Real      *time.Time
	Delay     *time.Duration
	ETAText   string
	Status    OnTimeStatus
}

// EffectiveArrival returns the realtime arrival when present, otherwise
// the scheduled arrival. Results are ordered by this instant.
func (a ReconciledArrival) EffectiveArrival() time.Time {
	if a.Real != nil {
		return *a.Real
	}
	return a.Scheduled
}
