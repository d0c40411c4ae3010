package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the process's Prometheus registry and the
// instruments for the feed ingestor, dataset refresher and reconciler.
type Collector struct {
	reg *prometheus.Registry

	PollsTotal       prometheus.Counter
	PollErrors       prometheus.Counter
	PollDuration     prometheus.Histogram
	RealtimeRecords  prometheus.Gauge
	FeedFailures     prometheus.Gauge
	FeedDegraded     prometheus.Gauge
	FeedFetchedAt    prometheus.Gauge

	RefreshesTotal   prometheus.Counter
	RefreshErrors    prometheus.Counter
	SnapshotLoadedAt prometheus.Gauge

	ReconcileDuration prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		PollsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arrivals_feed_polls_total",
			Help: "Total realtime feed polls attempted.",
		}),
		PollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arrivals_feed_poll_errors_total",
			Help: "Total realtime feed polls that failed.",
		}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arrivals_feed_poll_duration_seconds",
			Help:    "Duration of realtime feed poll cycles.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		RealtimeRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arrivals_realtime_records",
			Help: "Realtime update records currently held.",
		}),
		FeedFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arrivals_feed_consecutive_failures",
			Help: "Consecutive realtime poll failures.",
		}),
		FeedDegraded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arrivals_feed_degraded",
			Help: "1 when the realtime feed is in degraded state.",
		}),
		FeedFetchedAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arrivals_feed_fetched_at_seconds",
			Help: "Unix time of the last successful realtime poll.",
		}),
		RefreshesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arrivals_static_refreshes_total",
			Help: "Total static dataset refreshes attempted.",
		}),
		RefreshErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arrivals_static_refresh_errors_total",
			Help: "Total static dataset refreshes rejected.",
		}),
		SnapshotLoadedAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arrivals_snapshot_loaded_at_seconds",
			Help: "Unix time the current schedule snapshot was loaded.",
		}),
		ReconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arrivals_reconcile_duration_seconds",
			Help:    "Duration of per-stop arrival reconciliations.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
	}

	reg.MustRegister(
		c.PollsTotal, c.PollErrors, c.PollDuration,
		c.RealtimeRecords, c.FeedFailures, c.FeedDegraded, c.FeedFetchedAt,
		c.RefreshesTotal, c.RefreshErrors, c.SnapshotLoadedAt,
		c.ReconcileDuration,
	)

	return c
}

// ObservePoll records one poll cycle outcome.
func (c *Collector) ObservePoll(d time.Duration, records, failures int, degraded bool, err error) {
	c.PollsTotal.Inc()
	c.PollDuration.Observe(d.Seconds())
	c.FeedFailures.Set(float64(failures))
	if degraded {
		c.FeedDegraded.Set(1)
	} else {
		c.FeedDegraded.Set(0)
	}
	if err != nil {
		c.PollErrors.Inc()
		return
	}
	c.RealtimeRecords.Set(float64(records))
	c.FeedFetchedAt.Set(float64(time.Now().Unix()))
}

// ObserveRefresh records one static refresh outcome.
func (c *Collector) ObserveRefresh(loadedAt time.Time, err error) {
	c.RefreshesTotal.Inc()
	if err != nil {
		c.RefreshErrors.Inc()
		return
	}
	c.SnapshotLoadedAt.Set(float64(loadedAt.Unix()))
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}
