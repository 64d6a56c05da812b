package statistics

import (
	"github.com/pg-sharding/pgprof/pkg/monitor"
)

//go:generate mockgen -source=pkg/statistics/admin.go -destination=pkg/mock/statistics/admin_mock.go -package=mock_statistics

// Admin is the operator surface over one statistics subsystem: read
// accessors plus the reset, dump and log actions. The HTTP server and the
// CLI drive it; nothing in the core depends on how it is exposed.
type Admin interface {
	// Monitors returns every monitor in creation order.
	Monitors() []monitor.Stat
	// Statistics returns every monitor sorted by total time descending.
	Statistics() []monitor.Stat
	OpenConnections() int
	Callers() []string
	Reset()
	DumpMe() error
	LogMe()
	ToCSV() (string, error)
}

var _ Admin = &Reporter{}

func (r *Reporter) Monitors() []monitor.Stat {
	ms := r.store.Monitors()
	stats := make([]monitor.Stat, len(ms))
	for i, m := range ms {
		stats[i] = m.Snapshot(r.quantiles...)
	}
	return stats
}

func (r *Reporter) Statistics() []monitor.Stat {
	return r.SortedSnapshot()
}

func (r *Reporter) OpenConnections() int {
	if r.tracker == nil {
		return 0
	}
	return r.tracker.OpenCount()
}

func (r *Reporter) Callers() []string {
	if r.tracker == nil {
		return nil
	}
	return r.tracker.Callers()
}

func (r *Reporter) Reset() {
	r.store.Reset()
	r.logger.Info().Int("kept", r.store.Len()).Msg("statistics reset")
}

// DumpMe writes the export file configured with WithExport.
func (r *Reporter) DumpMe() error {
	return r.Export(r.exportPath, r.mergeOnExport)
}

func (r *Reporter) LogMe() {
	r.LogSummary()
}
