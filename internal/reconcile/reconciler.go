// Package reconcile joins the static schedule with the live realtime
// map, producing the per-stop arrival predictions the site displays.
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/simplytransit/arrivals/internal/metrics"
	"github.com/simplytransit/arrivals/internal/models"
	"github.com/simplytransit/arrivals/internal/schedule"
)

const (
	// DefaultOnTimeBand is the ± delay band classified ON_TIME. The
	// boundary itself belongs to the tighter band: a delay of exactly
	// one band is EARLY or LATE, not ON_TIME.
	DefaultOnTimeBand = time.Minute

	// DefaultDueThreshold is how far past its effective arrival a trip
	// is still rendered "due" rather than "arrived".
	DefaultDueThreshold = time.Minute
)

// Window is a query time window relative to a reference instant,
// typically a small negative start and a larger positive end, e.g.
// -2m to +60m.
type Window struct {
	Start time.Duration
	End   time.Duration
}

// RealtimeSource is the read side of the realtime map.
type RealtimeSource interface {
	Lookup(tripID, stopID string) (models.RealtimeUpdate, bool)
}

// Reconciler computes arrival predictions for a stop. It reads the
// schedule store and the realtime source but owns neither.
type Reconciler struct {
	store   *schedule.Store
	rt      RealtimeSource
	band    time.Duration
	due     time.Duration
	metrics *metrics.Collector
}

func New(store *schedule.Store, rt RealtimeSource, band, due time.Duration, m *metrics.Collector) *Reconciler {
	if band <= 0 {
		band = DefaultOnTimeBand
	}
	if due <= 0 {
		due = DefaultDueThreshold
	}
	return &Reconciler{store: store, rt: rt, band: band, due: due, metrics: m}
}

// Reconcile returns the arrivals at a stop whose scheduled time falls
// within [now+w.Start, now+w.End], each joined with its realtime
// update when one exists. Results are ordered by effective arrival,
// ties broken by route short name. A stop with no trips in the window
// yields an empty slice, not an error.
func (r *Reconciler) Reconcile(ctx context.Context, stopID string, now time.Time, w Window) ([]models.ReconciledArrival, error) {
	started := time.Now()

	snap := r.store.Snapshot()
	if snap == nil {
		return nil, fmt.Errorf("no schedule snapshot loaded")
	}
	if snap.Stop(stopID) == nil {
		return nil, &models.NotFoundError{Kind: "stop", ID: stopID}
	}

	windowStart := now.Add(w.Start)
	windowEnd := now.Add(w.End)

	var out []models.ReconciledArrival

	// Stop times are wall-clock times of day. Trips that run past
	// midnight carry clock values over 24h on the previous service
	// day, so both today and yesterday are candidate service days.
	for _, day := range []time.Time{now.AddDate(0, 0, -1), now} {
		weekday := models.MondayIndex(day.Weekday())

		for _, st := range snap.StopTimesForStop(stopID) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			trip := snap.Trip(st.TripID)
			svc := snap.Service(trip.ServiceID)
			if svc == nil || !svc.RunsOn(weekday) {
				continue
			}

			sched := st.Arrival.On(day)
			if sched.Before(windowStart) || sched.After(windowEnd) {
				continue
			}

			arrival := models.ReconciledArrival{
				Route:     snap.Route(trip.RouteID),
				TripID:    st.TripID,
				Scheduled: sched,
				Status:    models.StatusUnknown,
			}
			if u, ok := r.rt.Lookup(st.TripID, st.StopID); ok {
				real := u.Arrival
				delay := real.Sub(sched)
				arrival.Real = &real
				arrival.Delay = &delay
				arrival.Status = Classify(delay, r.band)
			}
			arrival.ETAText = ETAText(now, arrival.EffectiveArrival(), r.due)

			out = append(out, arrival)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].EffectiveArrival(), out[j].EffectiveArrival()
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		if out[i].Route.ShortName != out[j].Route.ShortName {
			return out[i].Route.ShortName < out[j].Route.ShortName
		}
		return out[i].TripID < out[j].TripID
	})

	if r.metrics != nil {
		r.metrics.ReconcileDuration.Observe(time.Since(started).Seconds())
	}
	return out, nil
}

// Classify maps a delay onto the four-way status. The band boundary
// belongs to the tighter band: delay = -band is EARLY, delay = band is
// LATE.
func Classify(delay, band time.Duration) models.OnTimeStatus {
	switch {
	case delay <= -band:
		return models.StatusEarly
	case delay >= band:
		return models.StatusLate
	default:
		return models.StatusOnTime
	}
}

// ETAText renders the rider-facing relative arrival text. Arrivals up
// to a minute out (or up to the due threshold in the past) read "due";
// older than that reads "arrived". It never renders a negative "in".
func ETAText(now, arrival time.Time, due time.Duration) string {
	diff := arrival.Sub(now)
	switch {
	case diff < -due:
		return "arrived"
	case diff < time.Minute:
		return "due"
	default:
		mins := int(diff.Round(time.Minute) / time.Minute)
		return fmt.Sprintf("in %d min", mins)
	}
}
