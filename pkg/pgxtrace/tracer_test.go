package pgxtrace_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pg-sharding/pgprof/pkg/monitor"
	"github.com/pg-sharding/pgprof/pkg/pgxtrace"
	"github.com/pg-sharding/pgprof/pkg/tracker"
)

func newTracer(t *testing.T, level zerolog.Level) (*pgxtrace.Tracer, *bytes.Buffer) {
	t.Helper()
	store, err := monitor.NewStore(monitor.DefaultMaxSize)
	require.NoError(t, err)
	buf := &bytes.Buffer{}
	logger := zerolog.New(buf).Level(level)
	return &pgxtrace.Tracer{
		Store:   store,
		Tracker: tracker.New(),
		Logger:  &logger,
	}, buf
}

type recordingTracer struct {
	starts, ends int
}

func (r *recordingTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, _ pgx.TraceQueryStartData) context.Context {
	r.starts++
	return ctx
}

func (r *recordingTracer) TraceQueryEnd(context.Context, *pgx.Conn, pgx.TraceQueryEndData) {
	r.ends++
}

func TestQueryTimedUnderTemplate(t *testing.T) {
	assert := assert.New(t)
	tr, _ := newTracer(t, zerolog.InfoLevel)
	next := &recordingTracer{}
	tr.Next = next

	const q = "SELECT * FROM t WHERE id = $1"
	for i := 0; i < 2; i++ {
		ctx := tr.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: q, Args: []any{i}})
		assert.Equal(int64(1), tr.Store.GetMonitor(q).Active())
		tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("SELECT 1")})
	}

	m := tr.Store.GetMonitor(q)
	assert.Equal(int64(2), m.Hits())
	assert.Equal(int64(0), m.Active())
	assert.Equal(2, next.starts)
	assert.Equal(2, next.ends)
}

func TestQueryFailureLoggedRedacted(t *testing.T) {
	assert := assert.New(t)
	tr, buf := newTracer(t, zerolog.DebugLevel)

	const q = "ALTER ROLE app WITH PASSWORD $1"
	ctx := tr.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: q, Args: []any{"hunter2"}})
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: errors.New("permission denied")})

	assert.Equal(int64(1), tr.Store.GetMonitor(q).Hits())
	assert.Contains(buf.String(), "statement failed")
	assert.Contains(buf.String(), "permission denied")
	assert.NotContains(buf.String(), "hunter2")
}

func TestQueryEndWithoutStartIsIgnored(t *testing.T) {
	tr, _ := newTracer(t, zerolog.InfoLevel)
	tr.TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{})
	assert.Equal(t, 0, tr.Store.Len())
}

func TestBatchTimedAsOne(t *testing.T) {
	assert := assert.New(t)
	tr, buf := newTracer(t, zerolog.DebugLevel)

	b := &pgx.Batch{}
	b.Queue("INSERT INTO t (a) VALUES ($1)", 1)
	b.Queue("UPDATE t SET a = $1", 2)

	ctx := tr.TraceBatchStart(context.Background(), nil, pgx.TraceBatchStartData{Batch: b})
	for _, q := range b.QueuedQueries {
		tr.TraceBatchQuery(ctx, nil, pgx.TraceBatchQueryData{SQL: q.SQL, Args: q.Arguments})
	}
	tr.TraceBatchEnd(ctx, nil, pgx.TraceBatchEndData{})

	assert.Equal(1, tr.Store.Len())
	assert.Equal(int64(1), tr.Store.GetMonitor("INSERT INTO t (a) VALUES ($1); UPDATE t SET a = $1").Hits())
	assert.Contains(buf.String(), "INSERT INTO t (a) VALUES (1)")
	assert.Contains(buf.String(), "UPDATE t SET a = 2")
}

func TestConnectionTrackedUntilBeforeClose(t *testing.T) {
	assert := assert.New(t)
	tr, _ := newTracer(t, zerolog.InfoLevel)

	conn := &pgx.Conn{}
	tr.TraceConnectEnd(context.Background(), pgx.TraceConnectEndData{Conn: conn})
	assert.Equal(1, tr.Tracker.OpenCount())
	assert.Error(tr.Tracker.AssertAllClosed())

	tr.BeforeClose(conn)
	assert.Equal(0, tr.Tracker.OpenCount())
	assert.NoError(tr.Tracker.AssertAllClosed())

	tr.TraceConnectEnd(context.Background(), pgx.TraceConnectEndData{Err: errors.New("refused")})
	assert.Equal(0, tr.Tracker.OpenCount())
}
