package schedule

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/simplytransit/arrivals/internal/models"
)

type stopRow struct {
	ID        string  `db:"stop_id"`
	Code      string  `db:"stop_code"`
	Name      string  `db:"stop_name"`
	Latitude  float64 `db:"stop_lat"`
	Longitude float64 `db:"stop_lon"`
}

type routeRow struct {
	ID        string `db:"route_id"`
	ShortName string `db:"route_short_name"`
	LongName  string `db:"route_long_name"`
}

type tripRow struct {
	ID        string `db:"trip_id"`
	RouteID   string `db:"route_id"`
	ServiceID string `db:"service_id"`
}

type calendarRow struct {
	ServiceID string `db:"service_id"`
	Monday    int    `db:"monday"`
	Tuesday   int    `db:"tuesday"`
	Wednesday int    `db:"wednesday"`
	Thursday  int    `db:"thursday"`
	Friday    int    `db:"friday"`
	Saturday  int    `db:"saturday"`
	Sunday    int    `db:"sunday"`
}

type stopTimeRow struct {
	TripID      string `db:"trip_id"`
	StopID      string `db:"stop_id"`
	ArrivalTime string `db:"arrival_time"`
}

// Loader builds schedule snapshots from a GTFS-shaped SQLite database,
// the format the nightly import job produces.
type Loader struct {
	path string
}

func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads the dataset and builds a validated snapshot. The caller
// decides whether to install it; on error the previous snapshot should
// stay in place.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	log.Printf("loading static schedule from %s", l.path)

	db, err := sqlx.ConnectContext(ctx, "sqlite3", l.path)
	if err != nil {
		return nil, &models.LoadError{Reason: "opening dataset", Err: err}
	}
	defer db.Close()

	b := NewBuilder()

	var stops []stopRow
	if err := db.SelectContext(ctx, &stops, `SELECT stop_id, stop_code, stop_name, stop_lat, stop_lon FROM stops`); err != nil {
		return nil, &models.LoadError{Reason: "reading stops", Err: err}
	}
	for _, r := range stops {
		b.AddStop(&models.Stop{
			ID:        r.ID,
			Code:      r.Code,
			Name:      r.Name,
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
		})
	}

	var routes []routeRow
	if err := db.SelectContext(ctx, &routes, `SELECT route_id, route_short_name, route_long_name FROM routes`); err != nil {
		return nil, &models.LoadError{Reason: "reading routes", Err: err}
	}
	for _, r := range routes {
		b.AddRoute(&models.Route{ID: r.ID, ShortName: r.ShortName, LongName: r.LongName})
	}

	var trips []tripRow
	if err := db.SelectContext(ctx, &trips, `SELECT trip_id, route_id, service_id FROM trips`); err != nil {
		return nil, &models.LoadError{Reason: "reading trips", Err: err}
	}
	for _, r := range trips {
		b.AddTrip(&models.Trip{ID: r.ID, RouteID: r.RouteID, ServiceID: r.ServiceID})
	}

	var calendars []calendarRow
	if err := db.SelectContext(ctx, &calendars, `SELECT service_id, monday, tuesday, wednesday, thursday, friday, saturday, sunday FROM calendar`); err != nil {
		return nil, &models.LoadError{Reason: "reading calendar", Err: err}
	}
	for _, r := range calendars {
		b.AddService(&models.Service{
			ID: r.ServiceID,
			Weekdays: [7]bool{
				r.Monday == 1, r.Tuesday == 1, r.Wednesday == 1,
				r.Thursday == 1, r.Friday == 1, r.Saturday == 1, r.Sunday == 1,
			},
		})
	}

	var stopTimes []stopTimeRow
	if err := db.SelectContext(ctx, &stopTimes, `SELECT trip_id, stop_id, arrival_time FROM stop_times`); err != nil {
		return nil, &models.LoadError{Reason: "reading stop times", Err: err}
	}
	for _, r := range stopTimes {
		arrival, err := models.ParseClockTime(r.ArrivalTime)
		if err != nil {
			return nil, &models.LoadError{
				Reason: fmt.Sprintf("stop time for trip %q", r.TripID),
				Err:    err,
			}
		}
		b.AddStopTime(models.StaticStopTime{TripID: r.TripID, StopID: r.StopID, Arrival: arrival})
	}

	snap, err := b.Build(time.Now())
	if err != nil {
		return nil, err
	}

	log.Printf("loaded %d stops, %d routes, %d trips, %d stop times",
		len(stops), len(routes), len(trips), len(stopTimes))
	return snap, nil
}
