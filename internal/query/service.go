// Package query is the read-only facade consumed by the presentation
// layer. It validates parameters, delegates to the reconciler and the
// schedule snapshot, and translates internal errors into the facade's
// error kinds.
package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bluele/gcache"

	"github.com/simplytransit/arrivals/internal/models"
	"github.com/simplytransit/arrivals/internal/reconcile"
	"github.com/simplytransit/arrivals/internal/schedule"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 500
	maxWindowSpan    = 24 * time.Hour
)

// DefaultWindow is the realtime window used when the caller does not
// supply one: arrivals from 2 minutes ago to 60 minutes out.
var DefaultWindow = reconcile.Window{Start: -2 * time.Minute, End: 60 * time.Minute}

// RealtimeStatus is what the facade needs to know about feed health.
type RealtimeStatus interface {
	FetchedAt() time.Time
	Degraded() bool
}

// Page bounds a scheduled-arrivals query. A zero Limit means the
// default page size.
type Page struct {
	Offset int
	Limit  int
}

// ScheduledArrival is one row of the day-selectable schedule table.
type ScheduledArrival struct {
	Route   *models.Route    `json:"route"`
	TripID  string           `json:"trip_id"`
	Arrival models.ClockTime `json:"scheduled_arrival"`
}

// Freshness is the "last updated" metadata shown on the landing page.
type Freshness struct {
	StaticLoadedAt    time.Time `json:"static_updated_at"`
	RealtimeFetchedAt time.Time `json:"realtime_updated_at"`
	RealtimeDegraded  bool      `json:"realtime_degraded"`
}

// Service is the query facade.
type Service struct {
	store *schedule.Store
	rec   *reconcile.Reconciler
	rt    RealtimeStatus
	due   time.Duration

	cache gcache.Cache
	ttl   time.Duration
}

// NewService builds the facade. cacheSize and ttl bound the
// scheduled-arrivals result cache; a ttl of zero disables it.
func NewService(store *schedule.Store, rec *reconcile.Reconciler, rt RealtimeStatus, due time.Duration, cacheSize int, ttl time.Duration) *Service {
	if due <= 0 {
		due = reconcile.DefaultDueThreshold
	}
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	return &Service{
		store: store,
		rec:   rec,
		rt:    rt,
		due:   due,
		cache: gcache.New(cacheSize).LRU().Build(),
		ttl:   ttl,
	}
}

// Stop returns a stop by ID.
func (s *Service) Stop(id string) (*models.Stop, error) {
	snap := s.store.Snapshot()
	if snap == nil {
		return nil, fmt.Errorf("no schedule snapshot loaded")
	}
	stop := snap.Stop(id)
	if stop == nil {
		return nil, &models.NotFoundError{Kind: "stop", ID: id}
	}
	return stop, nil
}

// RoutesForStop returns the routes serving a stop, ordered by short
// name.
func (s *Service) RoutesForStop(id string) ([]*models.Route, error) {
	snap := s.store.Snapshot()
	if snap == nil {
		return nil, fmt.Errorf("no schedule snapshot loaded")
	}
	if snap.Stop(id) == nil {
		return nil, &models.NotFoundError{Kind: "stop", ID: id}
	}
	return snap.RoutesForStop(id), nil
}

// RealtimeArrivals returns reconciled arrivals for a stop in the given
// window around now. When the feed is degraded, realtime fields are
// stripped and every arrival reports UNKNOWN with a scheduled-time ETA
// rather than serving stale predictions.
func (s *Service) RealtimeArrivals(ctx context.Context, stopID string, now time.Time, w reconcile.Window) ([]models.ReconciledArrival, error) {
	if w.Start == 0 && w.End == 0 {
		w = DefaultWindow
	}
	if err := validateWindow(w); err != nil {
		return nil, err
	}

	arrivals, err := s.rec.Reconcile(ctx, stopID, now, w)
	if err != nil {
		return nil, err
	}

	if s.rt != nil && s.rt.Degraded() {
		for i := range arrivals {
			arrivals[i].Real = nil
			arrivals[i].Delay = nil
			arrivals[i].Status = models.StatusUnknown
			arrivals[i].ETAText = reconcile.ETAText(now, arrivals[i].Scheduled, s.due)
		}
	}
	return arrivals, nil
}

// ScheduledArrivals returns the static schedule rows for a stop on a
// day of week (0 = Monday .. 6 = Sunday), optionally filtered to one
// route, paginated.
func (s *Service) ScheduledArrivals(ctx context.Context, stopID string, day int, routeID string, page Page) ([]ScheduledArrival, error) {
	if day < 0 || day > 6 {
		return nil, &models.ValidationError{Param: "day", Reason: "must be 0-6, Monday-indexed"}
	}
	if err := normalizePage(&page); err != nil {
		return nil, err
	}

	snap := s.store.Snapshot()
	if snap == nil {
		return nil, fmt.Errorf("no schedule snapshot loaded")
	}
	if snap.Stop(stopID) == nil {
		return nil, &models.NotFoundError{Kind: "stop", ID: stopID}
	}
	if routeID != "" && snap.Route(routeID) == nil {
		return nil, &models.NotFoundError{Kind: "route", ID: routeID}
	}

	// Keyed on snapshot load time so a dataset refresh invalidates.
	key := fmt.Sprintf("%s|%d|%s|%d|%d|%d", stopID, day, routeID, page.Offset, page.Limit, snap.LoadedAt().UnixNano())
	if s.ttl > 0 {
		if cached, err := s.cache.Get(key); err == nil {
			return cached.([]ScheduledArrival), nil
		}
	}

	var rows []ScheduledArrival
	for _, st := range snap.StopTimesForStop(stopID) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		trip := snap.Trip(st.TripID)
		if routeID != "" && trip.RouteID != routeID {
			continue
		}
		svc := snap.Service(trip.ServiceID)
		if svc == nil || !svc.RunsOn(day) {
			continue
		}
		rows = append(rows, ScheduledArrival{
			Route:   snap.Route(trip.RouteID),
			TripID:  st.TripID,
			Arrival: st.Arrival,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Arrival != rows[j].Arrival {
			return rows[i].Arrival < rows[j].Arrival
		}
		if rows[i].Route.ShortName != rows[j].Route.ShortName {
			return rows[i].Route.ShortName < rows[j].Route.ShortName
		}
		return rows[i].TripID < rows[j].TripID
	})

	rows = paginate(rows, page)
	if s.ttl > 0 {
		s.cache.SetWithExpire(key, rows, s.ttl)
	}
	return rows, nil
}

// Freshness returns the dataset "last updated" metadata.
func (s *Service) Freshness() Freshness {
	f := Freshness{StaticLoadedAt: s.store.LoadedAt()}
	if s.rt != nil {
		f.RealtimeFetchedAt = s.rt.FetchedAt()
		f.RealtimeDegraded = s.rt.Degraded()
	}
	return f
}

func validateWindow(w reconcile.Window) error {
	if w.End <= w.Start {
		return &models.ValidationError{Param: "window", Reason: "end must be after start"}
	}
	if w.End-w.Start > maxWindowSpan {
		return &models.ValidationError{Param: "window", Reason: "span exceeds 24h"}
	}
	return nil
}

func normalizePage(p *Page) error {
	if p.Offset < 0 {
		return &models.ValidationError{Param: "offset", Reason: "must not be negative"}
	}
	if p.Limit == 0 {
		p.Limit = defaultPageLimit
	}
	if p.Limit < 0 || p.Limit > maxPageLimit {
		return &models.ValidationError{Param: "limit", Reason: fmt.Sprintf("must be 1-%d", maxPageLimit)}
	}
	return nil
}

func paginate(rows []ScheduledArrival, p Page) []ScheduledArrival {
	if p.Offset >= len(rows) {
		return []ScheduledArrival{}
	}
	end := p.Offset + p.Limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[p.Offset:end]
}
