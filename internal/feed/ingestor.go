package feed

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/simplytransit/arrivals/internal/events"
	"github.com/simplytransit/arrivals/internal/metrics"
	"github.com/simplytransit/arrivals/internal/models"
)

// DegradedThreshold is the number of consecutive poll failures after
// which the feed is reported degraded and the facade marks results
// UNKNOWN instead of serving stale predictions.
const DegradedThreshold = 3

// Config holds the ingestor's tunables.
type Config struct {
	URL         string
	Timeout     time.Duration
	GraceWindow time.Duration
}

// Ingestor polls a GTFS-realtime TripUpdates feed and maintains the
// live realtime map. It is the map's sole writer; each poll's results
// are applied as one atomic batch so readers always see a consistent
// point-in-time view.
type Ingestor struct {
	cfg     Config
	client  *http.Client
	metrics *metrics.Collector
	events  *events.Publisher

	mu        sync.RWMutex
	updates   map[models.TripStopKey]models.RealtimeUpdate
	fetchedAt time.Time
	failures  int
}

func NewIngestor(cfg Config, m *metrics.Collector, ev *events.Publisher) *Ingestor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.GraceWindow <= 0 {
		cfg.GraceWindow = 10 * time.Minute
	}
	return &Ingestor{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		metrics: m,
		events:  ev,
		updates: make(map[models.TripStopKey]models.RealtimeUpdate),
	}
}

// Poll runs one poll cycle: purge expired records, fetch the feed, and
// apply the new batch. A fetch failure keeps the previous map unchanged
// and counts toward the degraded threshold.
func (g *Ingestor) Poll(ctx context.Context) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	g.purgeExpired(start)

	batch, err := g.fetch(ctx)
	if err != nil {
		g.mu.Lock()
		g.failures++
		failures := g.failures
		g.mu.Unlock()

		degraded := failures >= DegradedThreshold
		if g.metrics != nil {
			g.metrics.ObservePoll(time.Since(start), 0, failures, degraded, err)
		}
		if failures == DegradedThreshold {
			log.Printf("realtime feed degraded after %d consecutive failures", failures)
			g.events.Publish(events.TypeFeedDegraded, err.Error())
		} else {
			g.events.Publish(events.TypeFeedFailed, err.Error())
		}
		return &models.FeedFetchError{URL: g.cfg.URL, Err: err}
	}

	records := g.apply(batch, start)
	if g.metrics != nil {
		g.metrics.ObservePoll(time.Since(start), records, 0, false, nil)
	}
	g.events.Publish(events.TypeFeedUpdated, fmt.Sprintf("%d records", records))
	return nil
}

// Lookup returns the current realtime update for a (trip, stop) pair.
func (g *Ingestor) Lookup(tripID, stopID string) (models.RealtimeUpdate, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	u, ok := g.updates[models.TripStopKey{TripID: tripID, StopID: stopID}]
	return u, ok
}

// FetchedAt returns the time of the last successful poll.
func (g *Ingestor) FetchedAt() time.Time {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.fetchedAt
}

// Degraded reports whether the feed has failed enough consecutive
// polls to be considered unreliable.
func (g *Ingestor) Degraded() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.failures >= DegradedThreshold
}

// Records returns the number of realtime records currently held.
func (g *Ingestor) Records() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.updates)
}

// purgeExpired drops records whose arrival is older than the grace
// window, bounding the map's memory between polls.
func (g *Ingestor) purgeExpired(now time.Time) {
	cutoff := now.Add(-g.cfg.GraceWindow)
	g.mu.Lock()
	defer g.mu.Unlock()
	for key, u := range g.updates {
		if u.Arrival.Before(cutoff) {
			delete(g.updates, key)
		}
	}
}

// apply merges a fetched batch into a fresh map and swaps it in as one
// atomic unit. An incoming record only overwrites an existing one if
// its feed timestamp is newer, which protects against out-of-order
// delivery across polls.
func (g *Ingestor) apply(batch []models.RealtimeUpdate, now time.Time) int {
	g.mu.RLock()
	next := make(map[models.TripStopKey]models.RealtimeUpdate, len(g.updates)+len(batch))
	for key, u := range g.updates {
		next[key] = u
	}
	g.mu.RUnlock()

	for _, u := range batch {
		key := u.Key()
		if existing, ok := next[key]; ok && existing.FeedTimestamp.After(u.FeedTimestamp) {
			continue
		}
		next[key] = u
	}

	g.mu.Lock()
	g.updates = next
	g.fetchedAt = now
	g.failures = 0
	g.mu.Unlock()
	return len(next)
}

func (g *Ingestor) fetch(ctx context.Context) ([]models.RealtimeUpdate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return decodeTripUpdates(data)
}

// decodeTripUpdates normalizes a GTFS-realtime feed message into
// per-(trip, stop) update records. Entities without a trip ID, stop ID
// or arrival time carry nothing we can reconcile and are skipped, as
// are stop-time updates whose stop is SKIPPED or has NO_DATA; an
// arrival time on those is not a usable prediction.
func decodeTripUpdates(data []byte) ([]models.RealtimeUpdate, error) {
	fm := &gtfsrt.FeedMessage{}
	if err := proto.Unmarshal(data, fm); err != nil {
		return nil, fmt.Errorf("parsing trip updates feed: %w", err)
	}

	var headerTS int64
	if fm.Header != nil && fm.Header.Timestamp != nil {
		headerTS = int64(*fm.Header.Timestamp)
	}

	var updates []models.RealtimeUpdate
	for _, entity := range fm.Entity {
		tu := entity.TripUpdate
		if tu == nil || tu.Trip == nil || tu.Trip.TripId == nil {
			continue
		}
		tripID := *tu.Trip.TripId

		ts := headerTS
		if tu.Timestamp != nil {
			ts = int64(*tu.Timestamp)
		}

		for _, stu := range tu.StopTimeUpdate {
			if stu.StopId == nil || stu.Arrival == nil || stu.Arrival.Time == nil {
				continue
			}
			if stu.ScheduleRelationship != nil {
				switch *stu.ScheduleRelationship {
				case gtfsrt.TripUpdate_StopTimeUpdate_SKIPPED,
					gtfsrt.TripUpdate_StopTimeUpdate_NO_DATA:
					continue
				}
			}
			updates = append(updates, models.RealtimeUpdate{
				TripID:        tripID,
				StopID:        *stu.StopId,
				Arrival:       time.Unix(*stu.Arrival.Time, 0),
				FeedTimestamp: time.Unix(ts, 0),
			})
		}
	}
	return updates, nil
}
