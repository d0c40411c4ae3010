package schedule

import (
	"fmt"
	"sort"
	"time"

	"github.com/simplytransit/arrivals/internal/models"
)

// Snapshot is an immutable view of the static schedule. All maps and
// slices are built once by a Builder and never mutated afterwards, so a
// Snapshot is safe to share between any number of readers.
type Snapshot struct {
	loadedAt time.Time

	stops    map[string]*models.Stop
	routes   map[string]*models.Route
	trips    map[string]*models.Trip
	services map[string]*models.Service

	stopTimesByStop map[string][]models.StaticStopTime
	stopTimeByKey   map[models.TripStopKey]models.ClockTime
	routesByStop    map[string][]*models.Route
}

// LoadedAt is the instant the snapshot was built, exposed as dataset
// freshness metadata.
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

func (s *Snapshot) Stop(id string) *models.Stop { return s.stops[id] }

func (s *Snapshot) Route(id string) *models.Route { return s.routes[id] }

func (s *Snapshot) Trip(id string) *models.Trip { return s.trips[id] }

// Service returns the day-of-week applicability for a service ID.
func (s *Snapshot) Service(id string) *models.Service { return s.services[id] }

// StopTimesForStop returns all scheduled stop-times at a stop, ordered
// by time of day. The returned slice must not be modified.
func (s *Snapshot) StopTimesForStop(stopID string) []models.StaticStopTime {
	return s.stopTimesByStop[stopID]
}

// StopTime returns the scheduled arrival for a (trip, stop) pair.
func (s *Snapshot) StopTime(key models.TripStopKey) (models.ClockTime, bool) {
	ct, ok := s.stopTimeByKey[key]
	return ct, ok
}

// RoutesForStop returns the routes serving a stop, ordered by short
// name. The returned slice must not be modified.
func (s *Snapshot) RoutesForStop(stopID string) []*models.Route {
	return s.routesByStop[stopID]
}

// Builder accumulates dataset records and produces a validated
// Snapshot. It is not safe for concurrent use.
type Builder struct {
	stops     []*models.Stop
	routes    []*models.Route
	trips     []*models.Trip
	services  []*models.Service
	stopTimes []models.StaticStopTime
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) AddStop(stop *models.Stop)          { b.stops = append(b.stops, stop) }
func (b *Builder) AddRoute(route *models.Route)       { b.routes = append(b.routes, route) }
func (b *Builder) AddTrip(trip *models.Trip)          { b.trips = append(b.trips, trip) }
func (b *Builder) AddService(svc *models.Service)     { b.services = append(b.services, svc) }
func (b *Builder) AddStopTime(st models.StaticStopTime) { b.stopTimes = append(b.stopTimes, st) }

// Build validates referential integrity and assembles the lookup
// indexes. A dataset that references missing stops, routes or trips is
// rejected with a LoadError and produces no snapshot.
func (b *Builder) Build(now time.Time) (*Snapshot, error) {
	snap := &Snapshot{
		loadedAt:        now,
		stops:           make(map[string]*models.Stop, len(b.stops)),
		routes:          make(map[string]*models.Route, len(b.routes)),
		trips:           make(map[string]*models.Trip, len(b.trips)),
		services:        make(map[string]*models.Service, len(b.services)),
		stopTimesByStop: make(map[string][]models.StaticStopTime),
		stopTimeByKey:   make(map[models.TripStopKey]models.ClockTime, len(b.stopTimes)),
		routesByStop:    make(map[string][]*models.Route),
	}

	for _, stop := range b.stops {
		snap.stops[stop.ID] = stop
	}
	for _, route := range b.routes {
		snap.routes[route.ID] = route
	}
	for _, svc := range b.services {
		snap.services[svc.ID] = svc
	}
	for _, trip := range b.trips {
		if _, ok := snap.routes[trip.RouteID]; !ok {
			return nil, &models.LoadError{
				Reason: fmt.Sprintf("trip %q references unknown route %q", trip.ID, trip.RouteID),
			}
		}
		snap.trips[trip.ID] = trip
	}

	routeSeen := make(map[string]map[string]bool)
	for _, st := range b.stopTimes {
		if _, ok := snap.stops[st.StopID]; !ok {
			return nil, &models.LoadError{
				Reason: fmt.Sprintf("stop time references unknown stop %q", st.StopID),
			}
		}
		trip, ok := snap.trips[st.TripID]
		if !ok {
			return nil, &models.LoadError{
				Reason: fmt.Sprintf("stop time references unknown trip %q", st.TripID),
			}
		}

		snap.stopTimesByStop[st.StopID] = append(snap.stopTimesByStop[st.StopID], st)
		snap.stopTimeByKey[models.TripStopKey{TripID: st.TripID, StopID: st.StopID}] = st.Arrival

		if routeSeen[st.StopID] == nil {
			routeSeen[st.StopID] = make(map[string]bool)
		}
		if !routeSeen[st.StopID][trip.RouteID] {
			routeSeen[st.StopID][trip.RouteID] = true
			snap.routesByStop[st.StopID] = append(snap.routesByStop[st.StopID], snap.routes[trip.RouteID])
		}
	}

	for _, sts := range snap.stopTimesByStop {
		sort.Slice(sts, func(i, j int) bool { return sts[i].Arrival < sts[j].Arrival })
	}
	for _, routes := range snap.routesByStop {
		sort.Slice(routes, func(i, j int) bool {
			if routes[i].ShortName != routes[j].ShortName {
				return routes[i].ShortName < routes[j].ShortName
			}
			return routes[i].ID < routes[j].ID
		})
	}

	return snap, nil
}
