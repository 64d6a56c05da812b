// Package statistics reports the contents of a monitor.Store: sorted
// snapshots, the CSV export used to carry history across runs, and a log
// summary.
package statistics

import (
	"math"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/pg-sharding/pgprof/pkg/monitor"
	"github.com/pg-sharding/pgprof/pkg/proflog"
	"github.com/pg-sharding/pgprof/pkg/redact"
	"github.com/pg-sharding/pgprof/pkg/tracker"
)

type Reporter struct {
	store     *monitor.Store
	tracker   *tracker.Tracker
	quantiles []float64
	logger    *zerolog.Logger

	exportPath    string
	mergeOnExport bool
}

type Option func(*Reporter)

func WithLogger(l *zerolog.Logger) Option {
	return func(r *Reporter) {
		r.logger = l
	}
}

// WithQuantiles sets the quantiles included in snapshots and log summaries.
func WithQuantiles(q ...float64) Option {
	return func(r *Reporter) {
		r.quantiles = q
	}
}

// WithTracker lets the reporter answer connection queries.
func WithTracker(t *tracker.Tracker) Option {
	return func(r *Reporter) {
		r.tracker = t
	}
}

// WithExport sets the file DumpMe writes to.
func WithExport(path string, merge bool) Option {
	return func(r *Reporter) {
		r.exportPath = path
		r.mergeOnExport = merge
	}
}

func NewReporter(store *monitor.Store, opts ...Option) *Reporter {
	r := &Reporter{store: store}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = proflog.OrDefault(r.logger)
	return r
}

func (r *Reporter) Store() *monitor.Store {
	return r.store
}

func (r *Reporter) Quantiles() []float64 {
	return r.quantiles
}

// SortedSnapshot returns a copy of every monitor, sorted by total time
// descending and then by label.
func (r *Reporter) SortedSnapshot() []monitor.Stat {
	return r.store.Snapshot(r.quantiles...)
}

// LogSummary writes one info line per monitor, slowest first. Labels are
// redacted like any other statement text.
func (r *Reporter) LogSummary() {
	stats := r.SortedSnapshot()
	r.logger.Info().
		Int("monitors", len(stats)).
		Int("max_monitors", r.store.MaxSize()).
		Int64("evictions", r.store.Evictions()).
		Int("open_connections", r.OpenConnections()).
		Msg("statistics summary")

	for _, st := range stats {
		ev := r.logger.Info().
			Str("id", st.Fingerprint()).
			Str("label", redact.SQL(st.Label)).
			Int64("hits", st.Hits).
			Float64("total_ms", st.TotalMillis()).
			Float64("min_ms", st.MinMillis()).
			Float64("max_ms", st.MaxMillis())
		if avg := st.Avg(); !math.IsNaN(avg) {
			ev = ev.Float64("avg_ms", avg)
		}
		for i, q := range r.quantiles {
			if v := st.Quantiles[i]; !math.IsNaN(v) {
				ev = ev.Float64("p"+strconv.FormatFloat(q*100, 'f', -1, 64), v)
			}
		}
		ev.Msg("statement statistics")
	}
}
