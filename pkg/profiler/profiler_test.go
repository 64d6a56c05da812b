package profiler_test

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pg-sharding/pgprof/pkg/callstack"
	"github.com/pg-sharding/pgprof/pkg/config"
	"github.com/pg-sharding/pgprof/pkg/models/proferror"
	"github.com/pg-sharding/pgprof/pkg/profiler"
)

func newProfiler(t *testing.T, mutate func(c *config.Profiler)) (*profiler.Profiler, *bytes.Buffer) {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	buf := &bytes.Buffer{}
	logger := zerolog.New(buf)
	p, err := profiler.New(&cfg, profiler.WithLogger(&logger))
	require.NoError(t, err)
	return p, buf
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.MaxMonitors = -1
	_, err := profiler.New(&cfg)
	assert.True(t, proferror.HasCode(err, proferror.PROF_INVALID_CONFIG))
}

func TestNewBuildsStore(t *testing.T) {
	assert := assert.New(t)
	p, _ := newProfiler(t, func(c *config.Profiler) {
		c.MaxMonitors = 7
		c.Quantiles = []string{"0.5"}
		c.ExcludeFrames = []string{"example.com/app/db."}
	})

	assert.Equal(7, p.Store.MaxSize())
	assert.Equal([]float64{0.5}, p.Reporter.Quantiles())
	assert.True(p.ProxyOptions().Exclude("example.com/app/db.Open"))
	assert.True(p.ProxyOptions().Exclude("database/sql.(*DB).conn"))
	assert.False(p.ProxyOptions().Exclude("example.com/app/handlers.Get"))

	mfs, err := p.Registry.Gather()
	assert.NoError(err)
	assert.NotEmpty(mfs)
}

func TestShutdownExportsAndReportsLeaks(t *testing.T) {
	assert := assert.New(t)
	path := filepath.Join(t.TempDir(), "sql.csv")
	p, logs := newProfiler(t, func(c *config.Profiler) {
		c.ExportPath = path
	})

	p.Store.GetMonitor("SELECT 1").Add(time.Millisecond)
	leaked := new(int)
	p.Tracker.Register(leaked, callstack.Stack{{Function: "app.leaky", File: "app.go", Line: 12}})

	err := p.Shutdown(context.Background())
	var le *proferror.LeakError
	assert.True(errors.As(err, &le))
	assert.Equal("app.leaky", le.Stack.Top().Function)

	data, rerr := os.ReadFile(path)
	assert.NoError(rerr)
	assert.Contains(string(data), "SELECT 1,ms,1,")
	assert.Contains(logs.String(), "statistics summary")
	assert.Contains(logs.String(), "connections left open")
}

func TestShutdownClean(t *testing.T) {
	p, _ := newProfiler(t, nil)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestRegisterDriver(t *testing.T) {
	p, _ := newProfiler(t, nil)
	p.RegisterDriver()
	p.RegisterDriver()
	assert.True(t, slices.Contains(sql.Drivers(), profiler.DriverName))
}

func TestTracerChainsTraceLog(t *testing.T) {
	p, _ := newProfiler(t, nil)
	tr := p.Tracer()
	assert.Same(t, p.Store, tr.Store)
	assert.Same(t, p.Tracker, tr.Tracker)
	assert.NotNil(t, tr.Next)
}

func TestTracerNeverLogsSecrets(t *testing.T) {
	assert := assert.New(t)
	p, logs := newProfiler(t, nil)
	tr := p.Tracer()
	conn := &pgx.Conn{}

	ctx := tr.TraceQueryStart(context.Background(), conn, pgx.TraceQueryStartData{
		SQL:  "UPDATE users SET password = $1 WHERE id = $2",
		Args: []any{"hunter2", 7},
	})
	tr.TraceQueryEnd(ctx, conn, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("UPDATE 1")})

	ctx = tr.TraceQueryStart(context.Background(), conn, pgx.TraceQueryStartData{
		SQL: "ALTER ROLE bob WITH PASSWORD 'topsecret'",
	})
	tr.TraceQueryEnd(ctx, conn, pgx.TraceQueryEndData{Err: errors.New("permission denied")})

	out := logs.String()
	assert.Contains(out, "UPDATE users SET password = ...")
	assert.NotContains(out, "hunter2")
	assert.NotContains(out, "topsecret")
	assert.Equal(int64(1), p.Store.GetMonitor("UPDATE users SET password = $1 WHERE id = $2").Hits())
}

func TestRunIDTagsLogs(t *testing.T) {
	assert := assert.New(t)
	p, logs := newProfiler(t, nil)
	other, _ := newProfiler(t, nil)

	assert.NotEmpty(p.RunID())
	assert.NotEqual(p.RunID(), other.RunID())
	assert.Contains(logs.String(), `"run_id":"`+p.RunID()+`"`)
}

func TestOpenDBRetriesPing(t *testing.T) {
	assert := assert.New(t)
	p, logs := newProfiler(t, func(c *config.Profiler) {
		c.ConnectRetries = 1
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := p.OpenDB(ctx, "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1")
	assert.Error(err)
	assert.Equal(2, strings.Count(logs.String(), "ping failed"))
	assert.Equal(0, p.Tracker.OpenCount())
}
