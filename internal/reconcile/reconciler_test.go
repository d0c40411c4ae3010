package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/simplytransit/arrivals/internal/models"
	"github.com/simplytransit/arrivals/internal/schedule"
)

// 2026-03-02 is a Monday.
var monday0800 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

var testWindow = Window{Start: -2 * time.Minute, End: 60 * time.Minute}

type fakeRealtime map[models.TripStopKey]models.RealtimeUpdate

func (f fakeRealtime) Lookup(tripID, stopID string) (models.RealtimeUpdate, bool) {
	u, ok := f[models.TripStopKey{TripID: tripID, StopID: stopID}]
	return u, ok
}

func clock(t *testing.T, s string) models.ClockTime {
	t.Helper()
	ct, err := models.ParseClockTime(s)
	if err != nil {
		t.Fatal(err)
	}
	return ct
}

// newTestStore builds a store with one stop served by two routes. Stop
// times at S1: 07:57 (outside a -2m window at 08:00), 08:00, 08:10,
// and 08:58 (inside a +60m window).
func newTestStore(t *testing.T) *schedule.Store {
	t.Helper()
	b := schedule.NewBuilder()
	b.AddStop(&models.Stop{ID: "S1", Name: "Main Street"})
	b.AddRoute(&models.Route{ID: "R1", ShortName: "145"})
	b.AddRoute(&models.Route{ID: "R2", ShortName: "46A"})
	b.AddService(&models.Service{ID: "DAILY", Weekdays: [7]bool{true, true, true, true, true, true, true}})
	b.AddTrip(&models.Trip{ID: "T-early", RouteID: "R1", ServiceID: "DAILY"})
	b.AddTrip(&models.Trip{ID: "T-now", RouteID: "R1", ServiceID: "DAILY"})
	b.AddTrip(&models.Trip{ID: "T-soon", RouteID: "R2", ServiceID: "DAILY"})
	b.AddTrip(&models.Trip{ID: "T-later", RouteID: "R1", ServiceID: "DAILY"})
	b.AddStopTime(models.StaticStopTime{TripID: "T-early", StopID: "S1", Arrival: clock(t, "07:57:00")})
	b.AddStopTime(models.StaticStopTime{TripID: "T-now", StopID: "S1", Arrival: clock(t, "08:00:00")})
	b.AddStopTime(models.StaticStopTime{TripID: "T-soon", StopID: "S1", Arrival: clock(t, "08:10:00")})
	b.AddStopTime(models.StaticStopTime{TripID: "T-later", StopID: "S1", Arrival: clock(t, "08:58:00")})

	snap, err := b.Build(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	store := schedule.NewStore()
	store.Replace(snap)
	return store
}

func TestReconcileWindowFiltering(t *testing.T) {
	r := New(newTestStore(t), fakeRealtime{}, 0, 0, nil)

	arrivals, err := r.Reconcile(context.Background(), "S1", monday0800, testWindow)
	if err != nil {
		t.Fatal(err)
	}

	// 07:57 is before 07:58; 08:58 is within 09:00.
	if len(arrivals) != 3 {
		t.Fatalf("expected 3 arrivals, got %d", len(arrivals))
	}
	for _, a := range arrivals {
		if a.TripID == "T-early" {
			t.Error("07:57 stop time should be excluded from [-2m, +60m] at 08:00")
		}
	}
	if arrivals[len(arrivals)-1].TripID != "T-later" {
		t.Errorf("08:58 stop time should be included, got %v as last arrival", arrivals[len(arrivals)-1].TripID)
	}
}

func TestReconcileNoRealtimeIsUnknown(t *testing.T) {
	r := New(newTestStore(t), fakeRealtime{}, 0, 0, nil)

	arrivals, err := r.Reconcile(context.Background(), "S1", monday0800, testWindow)
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range arrivals {
		if a.Status != models.StatusUnknown {
			t.Errorf("trip %s: status = %v, want UNKNOWN", a.TripID, a.Status)
		}
		if a.Real != nil || a.Delay != nil {
			t.Errorf("trip %s: realtime fields must be absent without a feed match", a.TripID)
		}
		if a.ETAText == "" {
			t.Errorf("trip %s: ETA text must fall back to scheduled time", a.TripID)
		}
	}
}

func TestReconcileDelayClassification(t *testing.T) {
	sched := monday0800 // T-now is scheduled at 08:00:00

	tests := []struct {
		name       string
		realOffset time.Duration
		want       models.OnTimeStatus
	}{
		{"45s late is on time", 45 * time.Second, models.StatusOnTime},
		{"130s late is late", 130 * time.Second, models.StatusLate},
		{"59s early is on time", -59 * time.Second, models.StatusOnTime},
		{"exactly 60s late is late", time.Minute, models.StatusLate},
		{"exactly 60s early is early", -time.Minute, models.StatusEarly},
		{"2min early is early", -2 * time.Minute, models.StatusEarly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := fakeRealtime{
				{TripID: "T-now", StopID: "S1"}: {
					TripID:        "T-now",
					StopID:        "S1",
					Arrival:       sched.Add(tt.realOffset),
					FeedTimestamp: monday0800,
				},
			}
			r := New(newTestStore(t), rt, 0, 0, nil)

			arrivals, err := r.Reconcile(context.Background(), "S1", monday0800, testWindow)
			if err != nil {
				t.Fatal(err)
			}

			var found *models.ReconciledArrival
			for i := range arrivals {
				if arrivals[i].TripID == "T-now" {
					found = &arrivals[i]
				}
			}
			if found == nil {
				t.Fatal("T-now missing from results")
			}
			if found.Status != tt.want {
				t.Errorf("status = %v, want %v", found.Status, tt.want)
			}
			if found.Real == nil || found.Delay == nil {
				t.Fatal("realtime fields must be present with a feed match")
			}
			if *found.Delay != tt.realOffset {
				t.Errorf("delay = %v, want %v", *found.Delay, tt.realOffset)
			}
		})
	}
}

func TestReconcileRealtimePresentIffStatusKnown(t *testing.T) {
	rt := fakeRealtime{
		{TripID: "T-soon", StopID: "S1"}: {
			TripID:        "T-soon",
			StopID:        "S1",
			Arrival:       monday0800.Add(12 * time.Minute),
			FeedTimestamp: monday0800,
		},
	}
	r := New(newTestStore(t), rt, 0, 0, nil)

	arrivals, err := r.Reconcile(context.Background(), "S1", monday0800, testWindow)
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range arrivals {
		hasReal := a.Real != nil
		known := a.Status != models.StatusUnknown
		if hasReal != known {
			t.Errorf("trip %s: real present = %v but status = %v", a.TripID, hasReal, a.Status)
		}
	}
}

func TestReconcileOrderingDeterministic(t *testing.T) {
	// Give two trips the same effective arrival; route short name must
	// break the tie, and repeated queries must agree.
	b := schedule.NewBuilder()
	b.AddStop(&models.Stop{ID: "S1", Name: "Main Street"})
	b.AddRoute(&models.Route{ID: "R-b", ShortName: "46A"})
	b.AddRoute(&models.Route{ID: "R-a", ShortName: "145"})
	b.AddService(&models.Service{ID: "DAILY", Weekdays: [7]bool{true, true, true, true, true, true, true}})
	b.AddTrip(&models.Trip{ID: "T-b", RouteID: "R-b", ServiceID: "DAILY"})
	b.AddTrip(&models.Trip{ID: "T-a", RouteID: "R-a", ServiceID: "DAILY"})
	b.AddStopTime(models.StaticStopTime{TripID: "T-b", StopID: "S1", Arrival: clock(t, "08:15:00")})
	b.AddStopTime(models.StaticStopTime{TripID: "T-a", StopID: "S1", Arrival: clock(t, "08:15:00")})
	snap, err := b.Build(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	store := schedule.NewStore()
	store.Replace(snap)

	r := New(store, fakeRealtime{}, 0, 0, nil)

	var first []models.ReconciledArrival
	for i := 0; i < 10; i++ {
		arrivals, err := r.Reconcile(context.Background(), "S1", monday0800, testWindow)
		if err != nil {
			t.Fatal(err)
		}
		if len(arrivals) != 2 {
			t.Fatalf("expected 2 arrivals, got %d", len(arrivals))
		}
		if arrivals[0].Route.ShortName != "145" || arrivals[1].Route.ShortName != "46A" {
			t.Fatalf("tie not broken by route short name: %s, %s",
				arrivals[0].Route.ShortName, arrivals[1].Route.ShortName)
		}
		if first == nil {
			first = arrivals
			continue
		}
		for j := range arrivals {
			if arrivals[j].TripID != first[j].TripID {
				t.Fatal("ordering is not deterministic across identical queries")
			}
		}
	}
}

func TestReconcileOrderedByEffectiveArrival(t *testing.T) {
	// A big delay on the 08:00 trip pushes it after the 08:10 one.
	rt := fakeRealtime{
		{TripID: "T-now", StopID: "S1"}: {
			TripID:        "T-now",
			StopID:        "S1",
			Arrival:       monday0800.Add(15 * time.Minute),
			FeedTimestamp: monday0800,
		},
	}
	r := New(newTestStore(t), rt, 0, 0, nil)

	arrivals, err := r.Reconcile(context.Background(), "S1", monday0800, testWindow)
	if err != nil {
		t.Fatal(err)
	}
	if len(arrivals) != 3 {
		t.Fatalf("expected 3 arrivals, got %d", len(arrivals))
	}
	if arrivals[0].TripID != "T-soon" || arrivals[1].TripID != "T-now" {
		t.Errorf("expected delayed trip ordered by realtime arrival, got %s then %s",
			arrivals[0].TripID, arrivals[1].TripID)
	}
}

func TestReconcileUnknownStop(t *testing.T) {
	r := New(newTestStore(t), fakeRealtime{}, 0, 0, nil)

	_, err := r.Reconcile(context.Background(), "S-missing", monday0800, testWindow)
	var notFound *models.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %T: %v", err, err)
	}
}

func TestReconcileEmptyWindow(t *testing.T) {
	r := New(newTestStore(t), fakeRealtime{}, 0, 0, nil)

	// 3am: no trips within [-2m, +60m].
	at := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	arrivals, err := r.Reconcile(context.Background(), "S1", at, testWindow)
	if err != nil {
		t.Fatalf("empty window must not be an error: %v", err)
	}
	if len(arrivals) != 0 {
		t.Errorf("expected empty sequence, got %d arrivals", len(arrivals))
	}
}

func TestReconcileSkipsNonServiceDays(t *testing.T) {
	b := schedule.NewBuilder()
	b.AddStop(&models.Stop{ID: "S1", Name: "Main Street"})
	b.AddRoute(&models.Route{ID: "R1", ShortName: "145"})
	// Weekend-only service; reference instant is a Monday.
	b.AddService(&models.Service{ID: "WE", Weekdays: [7]bool{false, false, false, false, false, true, true}})
	b.AddTrip(&models.Trip{ID: "T1", RouteID: "R1", ServiceID: "WE"})
	b.AddStopTime(models.StaticStopTime{TripID: "T1", StopID: "S1", Arrival: clock(t, "08:10:00")})
	snap, err := b.Build(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	store := schedule.NewStore()
	store.Replace(snap)

	r := New(store, fakeRealtime{}, 0, 0, nil)
	arrivals, err := r.Reconcile(context.Background(), "S1", monday0800, testWindow)
	if err != nil {
		t.Fatal(err)
	}
	if len(arrivals) != 0 {
		t.Errorf("weekend-only trip returned on a Monday: %v", arrivals)
	}
}

func TestReconcileOvernightTrip(t *testing.T) {
	b := schedule.NewBuilder()
	b.AddStop(&models.Stop{ID: "S1", Name: "Main Street"})
	b.AddRoute(&models.Route{ID: "N1", ShortName: "N145"})
	b.AddService(&models.Service{ID: "DAILY", Weekdays: [7]bool{true, true, true, true, true, true, true}})
	b.AddTrip(&models.Trip{ID: "T-night", RouteID: "N1", ServiceID: "DAILY"})
	// 24:20 on the previous service day is 00:20 on the query day.
	b.AddStopTime(models.StaticStopTime{TripID: "T-night", StopID: "S1", Arrival: clock(t, "24:20:00")})
	snap, err := b.Build(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	store := schedule.NewStore()
	store.Replace(snap)

	r := New(store, fakeRealtime{}, 0, 0, nil)
	at := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC) // Tuesday 00:00
	arrivals, err := r.Reconcile(context.Background(), "S1", at, testWindow)
	if err != nil {
		t.Fatal(err)
	}
	if len(arrivals) != 1 {
		t.Fatalf("expected the overnight trip, got %d arrivals", len(arrivals))
	}
	want := time.Date(2026, 3, 3, 0, 20, 0, 0, time.UTC)
	if !arrivals[0].Scheduled.Equal(want) {
		t.Errorf("scheduled = %v, want %v", arrivals[0].Scheduled, want)
	}
}

func TestReconcileCancelled(t *testing.T) {
	r := New(newTestStore(t), fakeRealtime{}, 0, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Reconcile(ctx, "S1", monday0800, testWindow); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestClassifyConfigurableBand(t *testing.T) {
	// A 2-minute band reclassifies a 90s delay as on time.
	if got := Classify(90*time.Second, 2*time.Minute); got != models.StatusOnTime {
		t.Errorf("Classify(90s, band 2m) = %v, want ON_TIME", got)
	}
	if got := Classify(2*time.Minute, 2*time.Minute); got != models.StatusLate {
		t.Errorf("Classify(2m, band 2m) = %v, want LATE", got)
	}
}

func TestETAText(t *testing.T) {
	now := monday0800
	due := time.Minute

	tests := []struct {
		offset time.Duration
		want   string
	}{
		{4 * time.Minute, "in 4 min"},
		{3*time.Minute + 40*time.Second, "in 4 min"},
		{time.Minute, "in 1 min"},
		{30 * time.Second, "due"},
		{0, "due"},
		{-30 * time.Second, "due"},
		{-time.Minute, "due"},
		{-90 * time.Second, "arrived"},
	}
	for _, tt := range tests {
		if got := ETAText(now, now.Add(tt.offset), due); got != tt.want {
			t.Errorf("ETAText(offset %v) = %q, want %q", tt.offset, got, tt.want)
		}
	}
}
