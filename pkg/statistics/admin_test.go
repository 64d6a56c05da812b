package statistics_test

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/pg-sharding/pgprof/pkg/callstack"
	"github.com/pg-sharding/pgprof/pkg/statistics"
	"github.com/pg-sharding/pgprof/pkg/tracker"
)

func TestAdminConnections(t *testing.T) {
	assert := assert.New(t)
	tr := tracker.New()
	r := statistics.NewReporter(newStore(t), statistics.WithTracker(tr))

	c1, c2 := new(int), new(int)
	tr.Register(c1, callstack.Stack{{Function: "app.openA", File: "a.go", Line: 1}})
	tr.Register(c2, callstack.Stack{{Function: "app.openB", File: "b.go", Line: 2}})
	tr.Unregister(c1)

	assert.Equal(1, r.OpenConnections())
	callers := r.Callers()
	assert.Len(callers, 1)
	assert.Contains(callers[0], "app.openB")
}

func TestAdminWithoutTracker(t *testing.T) {
	r := statistics.NewReporter(newStore(t))
	assert.Equal(t, 0, r.OpenConnections())
	assert.Empty(t, r.Callers())
}

func TestAdminMonitorsAndReset(t *testing.T) {
	assert := assert.New(t)
	s := newStore(t)
	r := statistics.NewReporter(s, statistics.WithQuantiles(0.5))

	s.GetMonitor("idle")
	s.GetMonitor("busy").Add(time.Millisecond)

	ms := r.Monitors()
	assert.Equal("idle", ms[0].Label)
	assert.Equal("busy", ms[1].Label)
	assert.Len(ms[1].Quantiles, 1)
	assert.Equal("busy", r.Statistics()[0].Label)

	r.Reset()
	ms = r.Monitors()
	assert.Len(ms, 1)
	assert.Equal("idle", ms[0].Label)
}

func TestAdminDumpMe(t *testing.T) {
	assert := assert.New(t)
	s := newStore(t)
	s.GetMonitor("q").Add(time.Millisecond)

	assert.Error(statistics.NewReporter(s).DumpMe())

	path := filepath.Join(t.TempDir(), "out.csv")
	r := statistics.NewReporter(s, statistics.WithExport(path, true))
	assert.NoError(r.DumpMe())
	assert.FileExists(path)
}

func TestAdminLogMe(t *testing.T) {
	assert := assert.New(t)
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	s := newStore(t)
	s.GetMonitor("ALTER ROLE app PASSWORD 'pw'").Add(2 * time.Millisecond)
	s.GetMonitor("never")

	statistics.NewReporter(s, statistics.WithLogger(&logger), statistics.WithQuantiles(0.99)).LogMe()

	out := buf.String()
	assert.Contains(out, "statistics summary")
	assert.Contains(out, `"avg_ms":2`)
	assert.Contains(out, `"p99"`)
	assert.Contains(out, `"label":"never"`)
	assert.NotContains(out, "'pw'")
}
