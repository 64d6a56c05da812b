// Package profiler wires one statistics subsystem together: the store, the
// connection tracker, the reporter, the admin server and the profiled
// database handles. Construct it once at process start and call Shutdown on
// the way out.
package profiler

import (
	"context"
	"database/sql"
	"database/sql/driver"
	stderrors "errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/pg-sharding/pgprof/pkg/callstack"
	"github.com/pg-sharding/pgprof/pkg/config"
	"github.com/pg-sharding/pgprof/pkg/metrics"
	"github.com/pg-sharding/pgprof/pkg/monitor"
	"github.com/pg-sharding/pgprof/pkg/pgxtrace"
	"github.com/pg-sharding/pgprof/pkg/proflog"
	"github.com/pg-sharding/pgprof/pkg/proxy"
	"github.com/pg-sharding/pgprof/pkg/statistics"
	"github.com/pg-sharding/pgprof/pkg/tracker"
	"github.com/pg-sharding/pgprof/pkg/workload"
)

// DriverName is the name RegisterDriver uses for the profiled lib/pq driver.
const DriverName = "pgprof-postgres"

type Profiler struct {
	cfg    config.Profiler
	logger *zerolog.Logger
	runID  string

	Store    *monitor.Store
	Tracker  *tracker.Tracker
	Reporter *statistics.Reporter
	Registry *prometheus.Registry

	opts   proxy.Options
	server *metrics.Server

	mu    sync.Mutex
	dbs   []*sqlx.DB
	pools []*pgxpool.Pool
}

type Option func(*Profiler)

// WithLogger overrides the logger built from the config.
func WithLogger(l *zerolog.Logger) Option {
	return func(p *Profiler) {
		p.logger = l
	}
}

func New(cfg *config.Profiler, opts ...Option) (*Profiler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	quantiles, _ := cfg.ParsedQuantiles()
	minDuration, _ := cfg.MinDurationStatement()

	p := &Profiler{cfg: *cfg, runID: uuid.NewString()}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = proflog.NewZeroLogger(cfg.LogFile, cfg.LogLevel, cfg.PrettyLogging)
	}
	l := p.logger.With().Str("run_id", p.runID).Logger()
	p.logger = &l

	store, err := monitor.NewStore(cfg.MaxMonitors, monitor.WithLogger(p.logger))
	if err != nil {
		return nil, err
	}
	p.Store = store
	p.Tracker = tracker.New()
	p.Reporter = statistics.NewReporter(store,
		statistics.WithLogger(p.logger),
		statistics.WithTracker(p.Tracker),
		statistics.WithQuantiles(quantiles...),
		statistics.WithExport(cfg.ExportPath, cfg.MergeOnExport),
	)

	exclude := callstack.DefaultExcluder
	if len(cfg.ExcludeFrames) > 0 {
		extra := callstack.PrefixExcluder(cfg.ExcludeFrames...)
		exclude = func(fn string) bool { return callstack.DefaultExcluder(fn) || extra(fn) }
	}
	p.opts = proxy.Options{
		Store:   store,
		Tracker: p.Tracker,
		Logger:  p.logger,
		StmtLog: proflog.NewStmtLogger(minDuration, p.logger),
		Exclude: exclude,
	}

	p.Registry = prometheus.NewRegistry()
	if err := p.Registry.Register(metrics.NewCollector(store, p.Tracker, quantiles)); err != nil {
		return nil, errors.Wrap(err, "register collector")
	}
	if err := p.Registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, errors.Wrap(err, "register go collector")
	}

	if cfg.HttpAddr != "" {
		p.server = metrics.StartServer(cfg.HttpAddr, p.Reporter, p.Registry, p.logger)
	}

	p.logger.Info().
		Int("max_monitors", cfg.MaxMonitors).
		Str("driver", cfg.Driver).
		Msg("profiler started")
	return p, nil
}

func (p *Profiler) Logger() *zerolog.Logger {
	return p.logger
}

// RunID identifies this profiler in every log line it writes.
func (p *Profiler) RunID() string {
	return p.runID
}

// ProxyOptions returns the options every driver decorator of this profiler
// is built with.
func (p *Profiler) ProxyOptions() proxy.Options {
	return p.opts
}

var registerOnce sync.Once

// RegisterDriver registers the profiled lib/pq driver as DriverName so that
// sql.Open(DriverName, dsn) is timed by p. database/sql keeps drivers for
// the life of the process, so only the first profiler to call it wins.
func (p *Profiler) RegisterDriver() {
	registerOnce.Do(func() {
		proxy.Register(DriverName, &pq.Driver{}, p.opts)
	})
}

// WrapConnector profiles an arbitrary database/sql connector.
func (p *Profiler) WrapConnector(c driver.Connector) driver.Connector {
	return proxy.WrapConnector(c, p.opts)
}

// OpenDB opens a profiled lib/pq handle for dsn.
func (p *Profiler) OpenDB(ctx context.Context, dsn string) (*sqlx.DB, error) {
	c, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse dsn")
	}
	db := sqlx.NewDb(sql.OpenDB(p.WrapConnector(c)), "postgres")
	if err := p.ping(ctx, db.PingContext); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "connect")
	}

	p.mu.Lock()
	p.dbs = append(p.dbs, db)
	p.mu.Unlock()
	return db, nil
}

// ping retries the first round trip of a fresh handle with a fibonacci
// backoff, connect_retries extra times.
func (p *Profiler) ping(ctx context.Context, f func(context.Context) error) error {
	attempt := 0
	b := retry.WithMaxRetries(p.cfg.ConnectRetries, retry.NewFibonacci(200*time.Millisecond))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if err := f(ctx); err != nil {
			p.logger.Warn().Err(err).Int("attempt", attempt).Msg("ping failed")
			return retry.RetryableError(err)
		}
		return nil
	})
}

// Tracer returns a pgx tracer recording into this profiler. pgx's own trace
// log is chained behind it at the profiler's log level.
func (p *Profiler) Tracer() *pgxtrace.Tracer {
	return &pgxtrace.Tracer{
		Store:   p.Store,
		Tracker: p.Tracker,
		Logger:  p.logger,
		StmtLog: p.opts.StmtLog,
		Exclude: p.opts.Exclude,
		Next: &tracelog.TraceLog{
			Logger:   &proflog.ZeroTraceLogger{Logger: p.logger},
			LogLevel: traceLogLevel(p.logger.GetLevel()),
		},
	}
}

func traceLogLevel(l zerolog.Level) tracelog.LogLevel {
	switch {
	case l <= zerolog.TraceLevel:
		return tracelog.LogLevelTrace
	case l == zerolog.DebugLevel:
		return tracelog.LogLevelDebug
	case l == zerolog.InfoLevel:
		return tracelog.LogLevelInfo
	case l == zerolog.WarnLevel:
		return tracelog.LogLevelWarn
	case l == zerolog.ErrorLevel:
		return tracelog.LogLevelError
	default:
		return tracelog.LogLevelNone
	}
}

// OpenPool opens a profiled pgx pool for dsn.
func (p *Profiler) OpenPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse dsn")
	}
	tr := p.Tracer()
	pcfg.ConnConfig.Tracer = tr
	pcfg.BeforeClose = tr.BeforeClose

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, errors.Wrap(err, "create pool")
	}
	if err := p.ping(ctx, pool.Ping); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "connect")
	}

	p.mu.Lock()
	p.pools = append(p.pools, pool)
	p.mu.Unlock()
	return pool, nil
}

// Runner opens a handle for the configured driver and returns a workload
// runner over it.
func (p *Profiler) Runner(ctx context.Context) (workload.Runner, error) {
	switch p.cfg.Driver {
	case config.DriverPgx:
		pool, err := p.OpenPool(ctx, p.cfg.DSN)
		if err != nil {
			return nil, err
		}
		return &workload.PgxRunner{Pool: pool}, nil
	default:
		db, err := p.OpenDB(ctx, p.cfg.DSN)
		if err != nil {
			return nil, err
		}
		return &workload.SQLRunner{DB: db}, nil
	}
}

// Shutdown closes the handles opened through p, stops the admin server,
// writes the export when one is configured and logs the summary. A
// connection still open afterwards is reported as a *proferror.LeakError.
func (p *Profiler) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	dbs, pools := p.dbs, p.pools
	p.dbs, p.pools = nil, nil
	p.mu.Unlock()

	var errs []error
	for _, db := range dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "close db"))
		}
	}
	for _, pool := range pools {
		pool.Close()
	}

	if p.server != nil {
		if err := p.server.Shutdown(ctx); err != nil {
			errs = append(errs, errors.Wrap(err, "stop admin server"))
		}
	}

	if p.cfg.ExportPath != "" {
		if err := p.Reporter.DumpMe(); err != nil {
			errs = append(errs, err)
		}
	}
	p.Reporter.LogSummary()

	if err := p.Tracker.AssertAllClosed(); err != nil {
		p.logger.Error().Err(err).Msg("connections left open")
		errs = append(errs, err)
	}
	return stderrors.Join(errs...)
}
