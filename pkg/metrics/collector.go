// Package metrics exposes statement statistics to Prometheus and serves the
// operator HTTP endpoints.
package metrics

import (
	"math"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pg-sharding/pgprof/pkg/monitor"
	"github.com/pg-sharding/pgprof/pkg/redact"
	"github.com/pg-sharding/pgprof/pkg/tracker"
)

// Collector reads the store and the tracker at scrape time. Nothing is
// recorded twice: the monitors stay the single source of truth.
type Collector struct {
	store     *monitor.Store
	tracker   *tracker.Tracker
	quantiles []float64

	hits      *prometheus.Desc
	total     *prometheus.Desc
	min       *prometheus.Desc
	max       *prometheus.Desc
	quantile  *prometheus.Desc
	active    *prometheus.Desc
	open      *prometheus.Desc
	closed    *prometheus.Desc
	evictions *prometheus.Desc
	monitors  *prometheus.Desc
}

var _ prometheus.Collector = &Collector{}

func NewCollector(store *monitor.Store, t *tracker.Tracker, quantiles []float64) *Collector {
	query := []string{"query"}
	return &Collector{
		store:     store,
		tracker:   t,
		quantiles: quantiles,

		hits: prometheus.NewDesc("pgprof_query_hits_total",
			"Number of executions per statement template", query, nil),
		total: prometheus.NewDesc("pgprof_query_duration_seconds_total",
			"Total execution time per statement template", query, nil),
		min: prometheus.NewDesc("pgprof_query_duration_seconds_min",
			"Fastest execution per statement template", query, nil),
		max: prometheus.NewDesc("pgprof_query_duration_seconds_max",
			"Slowest execution per statement template", query, nil),
		quantile: prometheus.NewDesc("pgprof_query_duration_seconds",
			"Execution time quantiles per statement template", []string{"query", "quantile"}, nil),
		active: prometheus.NewDesc("pgprof_query_active",
			"Executions currently in flight per statement template", query, nil),
		open: prometheus.NewDesc("pgprof_open_connections",
			"Connections opened and not yet closed", nil, nil),
		closed: prometheus.NewDesc("pgprof_closed_connections_total",
			"Connections closed", nil, nil),
		evictions: prometheus.NewDesc("pgprof_monitor_evictions_total",
			"Monitors dropped because the store was full", nil, nil),
		monitors: prometheus.NewDesc("pgprof_monitors",
			"Monitors currently held by the store", nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.total
	ch <- c.min
	ch <- c.max
	ch <- c.quantile
	ch <- c.active
	ch <- c.open
	ch <- c.closed
	ch <- c.evictions
	ch <- c.monitors
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.store.Snapshot(c.quantiles...)
	ch <- prometheus.MustNewConstMetric(c.monitors, prometheus.GaugeValue, float64(len(stats)))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(c.store.Evictions()))

	// redaction can fold two templates into one label; the slower one wins
	seen := make(map[string]struct{}, len(stats))
	for _, st := range stats {
		q := redact.SQL(st.Label)
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}

		ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(st.Hits), q)
		ch <- prometheus.MustNewConstMetric(c.total, prometheus.CounterValue, st.Total.Seconds(), q)
		ch <- prometheus.MustNewConstMetric(c.min, prometheus.GaugeValue, st.Min.Seconds(), q)
		ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, st.Max.Seconds(), q)
		ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(st.Active), q)
		for i, qq := range c.quantiles {
			v := st.Quantiles[i]
			if math.IsNaN(v) {
				continue
			}
			// digests hold milliseconds
			ch <- prometheus.MustNewConstMetric(c.quantile, prometheus.GaugeValue, v/1000,
				q, strconv.FormatFloat(qq, 'f', -1, 64))
		}
	}

	if c.tracker != nil {
		ch <- prometheus.MustNewConstMetric(c.open, prometheus.GaugeValue, float64(c.tracker.OpenCount()))
		ch <- prometheus.MustNewConstMetric(c.closed, prometheus.CounterValue, float64(c.tracker.ClosedCount()))
	}
}
