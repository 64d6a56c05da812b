// Package proxy wraps database/sql drivers so that every statement is timed
// in a monitor.Store, every connection is tracked until it is closed, and
// every statement text that reaches a log or an error is redacted first.
package proxy

import (
	"database/sql/driver"
	"time"

	"github.com/rs/zerolog"

	"github.com/pg-sharding/pgprof/pkg/callstack"
	"github.com/pg-sharding/pgprof/pkg/models/proferror"
	"github.com/pg-sharding/pgprof/pkg/monitor"
	"github.com/pg-sharding/pgprof/pkg/proflog"
	"github.com/pg-sharding/pgprof/pkg/redact"
	"github.com/pg-sharding/pgprof/pkg/tracker"
)

const (
	commitLabel   = "COMMIT"
	rollbackLabel = "ROLLBACK"
)

type Options struct {
	// Store receives one monitor per statement template. Required.
	Store *monitor.Store
	// Tracker records open connections. Nil disables leak tracking.
	Tracker *tracker.Tracker
	// Logger defaults to proflog.Zero. At debug level statements are logged
	// with their bound values resolved.
	Logger *zerolog.Logger
	// StmtLog reports slow statements. Nil disables it.
	StmtLog *proflog.StmtLogger
	// Exclude hides frames from captured caller stacks. Defaults to
	// callstack.DefaultExcluder.
	Exclude callstack.Excluder
}

type interceptor struct {
	store   *monitor.Store
	tracker *tracker.Tracker
	logger  *zerolog.Logger
	stmtLog *proflog.StmtLogger
	exclude callstack.Excluder
}

func newInterceptor(opts Options) *interceptor {
	ic := &interceptor{
		store:   opts.Store,
		tracker: opts.Tracker,
		logger:  proflog.OrDefault(opts.Logger),
		stmtLog: opts.StmtLog,
		exclude: opts.Exclude,
	}
	if ic.exclude == nil {
		ic.exclude = callstack.DefaultExcluder
	}
	return ic
}

// text returns statement text that is safe to log: literals resolved when
// diagnostics are enabled, the template otherwise, redacted either way.
func (ic *interceptor) text(query string, args []driver.NamedValue) string {
	t := query
	if proflog.DiagnosticEnabled(ic.logger) {
		t = Resolve(query, args)
	}
	out, unmatched := redact.Redact(t)
	if unmatched {
		ic.logger.Trace().Msg("statement mentions a password in an unrecognized shape, not redacted")
	}
	return out
}

// observe times call under the monitor for query. Failures leave with the
// redacted statement attached; driver.ErrSkip is not an execution and is
// not recorded.
func (ic *interceptor) observe(typ proflog.StmtType, query string, args []driver.NamedValue, call func() error) error {
	tm := ic.store.GetMonitor(query).Start()
	// a panicking driver must not leave the execution active
	defer tm.Stop()

	err := call()
	if err == driver.ErrSkip {
		tm.Cancel()
		return err
	}
	d := tm.Stop()

	if err != nil {
		text := ic.text(query, args)
		ic.logger.Debug().Err(err).Str("stmt", text).Dur("elapsed", d).Msg("statement failed")
		return proferror.WithQuery(err, text)
	}

	diag := proflog.DiagnosticEnabled(ic.logger)
	if diag || ic.stmtLog.ShouldLog(d) {
		text := ic.text(query, args)
		ic.logger.Debug().Str("stmt", text).Str("stmt_type", string(typ)).Dur("elapsed", d).Msg("statement executed")
		ic.stmtLog.ReportStatement(typ, text, d)
	}
	return nil
}

func (ic *interceptor) logClosed(resource string, opened time.Time) {
	ic.logger.Debug().Str("resource", resource).Dur("lifetime", time.Since(opened)).Msg("closed")
}

func (ic *interceptor) wrapConn(c driver.Conn) *conn {
	w := &conn{
		parent: c,
		ic:     ic,
		opened: time.Now(),
	}
	if ic.tracker != nil {
		stack := callstack.Capture(ic.exclude)
		ic.tracker.Register(w, stack)
		ic.logger.Debug().Str("caller", stack.Top().String()).Int("open", ic.tracker.OpenCount()).Msg("connection opened")
	}
	return w
}

func namedToValues(named []driver.NamedValue) ([]driver.Value, error) {
	args := make([]driver.Value, len(named))
	for i, n := range named {
		if n.Name != "" {
			return nil, proferror.New(proferror.PROF_UNEXPECTED, "driver does not support the use of Named Parameters")
		}
		args[i] = n.Value
	}
	return args, nil
}

func valuesToNamed(args []driver.Value) []driver.NamedValue {
	named := make([]driver.NamedValue, len(args))
	for i, v := range args {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return named
}
