package workload

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/pg-sharding/pgprof/pkg/proflog"
)

// Runner executes one workload statement and reads its whole result.
type Runner interface {
	Run(ctx context.Context, q Query) error
}

// SQLRunner replays through database/sql, normally a profiled handle.
type SQLRunner struct {
	DB *sqlx.DB
}

func (r *SQLRunner) Run(ctx context.Context, q Query) error {
	rows, err := r.DB.QueryxContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if _, err := rows.SliceScan(); err != nil {
			return err
		}
	}
	return rows.Err()
}

// PgxRunner replays through a pgx pool.
type PgxRunner struct {
	Pool *pgxpool.Pool
}

func (r *PgxRunner) Run(ctx context.Context, q Query) error {
	rows, err := r.Pool.Query(ctx, q.SQL, q.Args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
	}
	return rows.Err()
}

type Result struct {
	Executed int64
	Failed   int64
}

// Replay runs qs repeat times with up to concurrency statements in flight.
// Statement failures are counted and logged, they do not stop the replay;
// only a cancelled ctx does.
func Replay(ctx context.Context, r Runner, qs []Query, concurrency, repeat int, logger *zerolog.Logger) (Result, error) {
	logger = proflog.OrDefault(logger)
	if concurrency <= 0 {
		concurrency = 1
	}
	if repeat <= 0 {
		repeat = 1
	}

	executed := atomic.NewInt64(0)
	failed := atomic.NewInt64(0)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

loop:
	for i := 0; i < repeat; i++ {
		for _, q := range qs {
			if gctx.Err() != nil {
				break loop
			}
			g.Go(func() error {
				if err := r.Run(gctx, q); err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					failed.Inc()
					// errors from a profiled handle already carry the redacted statement
					logger.Warn().Err(err).Int("line", q.Line).Msg("workload statement failed")
					return nil
				}
				executed.Inc()
				return nil
			})
		}
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return Result{Executed: executed.Load(), Failed: failed.Load()}, err
}
