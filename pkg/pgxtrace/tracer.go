// Package pgxtrace measures statements issued through pgx directly, for
// applications that do not go through database/sql.
package pgxtrace

import (
	"context"
	"database/sql/driver"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/pg-sharding/pgprof/pkg/callstack"
	"github.com/pg-sharding/pgprof/pkg/monitor"
	"github.com/pg-sharding/pgprof/pkg/proflog"
	"github.com/pg-sharding/pgprof/pkg/proxy"
	"github.com/pg-sharding/pgprof/pkg/redact"
	"github.com/pg-sharding/pgprof/pkg/tracker"
)

// Tracer implements pgx query, batch and connect tracing on top of a
// monitor.Store. Install it as pgx.ConnConfig.Tracer and, with pgxpool, set
// pgxpool.Config.BeforeClose to Tracer.BeforeClose so closed connections
// leave the tracker.
type Tracer struct {
	Store   *monitor.Store
	Tracker *tracker.Tracker
	Logger  *zerolog.Logger
	StmtLog *proflog.StmtLogger
	Exclude callstack.Excluder

	// Next receives query events after they are measured, e.g. a
	// tracelog.TraceLog.
	Next pgx.QueryTracer
}

var (
	_ pgx.QueryTracer   = &Tracer{}
	_ pgx.BatchTracer   = &Tracer{}
	_ pgx.ConnectTracer = &Tracer{}
)

type ctxKey int

const (
	queryKey ctxKey = iota
	batchKey
)

type queryTrace struct {
	timer *monitor.Timer
	sql   string
	args  []any
}

type batchTrace struct {
	timer *monitor.Timer
	label string
}

func (t *Tracer) logger() *zerolog.Logger {
	return proflog.OrDefault(t.Logger)
}

func (t *Tracer) text(sql string, args []any) string {
	if proflog.DiagnosticEnabled(t.logger()) {
		sql = proxy.Resolve(sql, toNamed(args))
	}
	return redact.SQL(sql)
}

func toNamed(args []any) []driver.NamedValue {
	named := make([]driver.NamedValue, len(args))
	for i, a := range args {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: a}
	}
	return named
}

func (t *Tracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	qt := &queryTrace{
		timer: t.Store.GetMonitor(data.SQL).Start(),
		sql:   data.SQL,
		args:  data.Args,
	}
	ctx = context.WithValue(ctx, queryKey, qt)
	if t.Next != nil {
		ctx = t.Next.TraceQueryStart(ctx, conn, data)
	}
	return ctx
}

func (t *Tracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	if qt, ok := ctx.Value(queryKey).(*queryTrace); ok {
		d := qt.timer.Stop()
		t.report(proflog.StmtTypeQuery, qt.sql, qt.args, d, data.Err)
		if t.StmtLog.ShouldLog(d) {
			t.StmtLog.ReportStatement(proflog.StmtTypeQuery, t.text(qt.sql, qt.args), d)
		}
	}
	if t.Next != nil {
		t.Next.TraceQueryEnd(ctx, conn, data)
	}
}

// report logs the outcome of one statement. pgx hands the error back to the
// caller untouched, so the redacted statement is logged next to it here.
func (t *Tracer) report(typ proflog.StmtType, sql string, args []any, d time.Duration, err error) {
	if err != nil {
		t.logger().Error().Err(err).Str("stmt", t.text(sql, args)).Str("stmt_type", string(typ)).Msg("statement failed")
		return
	}
	if l := t.logger(); proflog.DiagnosticEnabled(l) {
		l.Debug().Str("stmt", t.text(sql, args)).Str("stmt_type", string(typ)).Dur("elapsed", d).Msg("statement executed")
	}
}

func batchLabel(b *pgx.Batch) string {
	if b == nil {
		return ""
	}
	sqls := make([]string, len(b.QueuedQueries))
	for i, q := range b.QueuedQueries {
		sqls[i] = q.SQL
	}
	return strings.Join(sqls, "; ")
}

// TraceBatchStart times the whole batch as one execution labelled with the
// queued templates.
func (t *Tracer) TraceBatchStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceBatchStartData) context.Context {
	label := batchLabel(data.Batch)
	return context.WithValue(ctx, batchKey, &batchTrace{
		timer: t.Store.GetMonitor(label).Start(),
		label: label,
	})
}

func (t *Tracer) TraceBatchQuery(_ context.Context, _ *pgx.Conn, data pgx.TraceBatchQueryData) {
	if data.Err != nil {
		t.logger().Error().Err(data.Err).Str("stmt", t.text(data.SQL, data.Args)).Str("stmt_type", string(proflog.StmtTypeBatch)).Msg("batched statement failed")
		return
	}
	if l := t.logger(); proflog.DiagnosticEnabled(l) {
		l.Debug().Str("stmt", t.text(data.SQL, data.Args)).Str("tag", data.CommandTag.String()).Msg("batched statement executed")
	}
}

func (t *Tracer) TraceBatchEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceBatchEndData) {
	bt, ok := ctx.Value(batchKey).(*batchTrace)
	if !ok {
		return
	}
	d := bt.timer.Stop()
	if data.Err != nil {
		t.logger().Error().Err(data.Err).Str("stmt", redact.SQL(bt.label)).Msg("batch failed")
		return
	}
	t.StmtLog.ReportStatement(proflog.StmtTypeBatch, redact.SQL(bt.label), d)
}

func (t *Tracer) TraceConnectStart(ctx context.Context, _ pgx.TraceConnectStartData) context.Context {
	return ctx
}

// TraceConnectEnd registers a successfully opened connection together with
// the stack that opened it.
func (t *Tracer) TraceConnectEnd(_ context.Context, data pgx.TraceConnectEndData) {
	if data.Err != nil || data.Conn == nil || t.Tracker == nil {
		return
	}
	exclude := t.Exclude
	if exclude == nil {
		exclude = callstack.DefaultExcluder
	}
	stack := callstack.Capture(exclude)
	t.Tracker.Register(data.Conn, stack)
	t.logger().Debug().Str("caller", stack.Top().String()).Int("open", t.Tracker.OpenCount()).Msg("connection opened")
}

// BeforeClose matches pgxpool.Config.BeforeClose. Call it directly before
// closing a standalone pgx.Conn.
func (t *Tracer) BeforeClose(conn *pgx.Conn) {
	if t.Tracker == nil {
		return
	}
	if t.Tracker.Unregister(conn) {
		t.logger().Debug().Int("open", t.Tracker.OpenCount()).Msg("connection closed")
	}
}
