package proxy

import (
	"context"
	"database/sql/driver"
	"time"

	"go.uber.org/atomic"

	"github.com/pg-sharding/pgprof/pkg/models/proferror"
	"github.com/pg-sharding/pgprof/pkg/proflog"
)

type conn struct {
	parent driver.Conn
	ic     *interceptor
	opened time.Time
	closed atomic.Bool
}

var (
	_ driver.Conn               = &conn{}
	_ driver.ConnPrepareContext = &conn{}
	_ driver.ConnBeginTx        = &conn{}
	_ driver.ExecerContext      = &conn{}
	_ driver.QueryerContext     = &conn{}
	_ driver.Pinger             = &conn{}
	_ driver.SessionResetter    = &conn{}
	_ driver.Validator          = &conn{}
	_ driver.NamedValueChecker  = &conn{}
)

func (c *conn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *conn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	var (
		s   driver.Stmt
		err error
	)
	if pc, ok := c.parent.(driver.ConnPrepareContext); ok {
		s, err = pc.PrepareContext(ctx, query)
	} else {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		s, err = c.parent.Prepare(query)
	}
	if err != nil {
		return nil, proferror.WithQuery(err, c.ic.text(query, nil))
	}
	return &stmt{parent: s, query: query, ic: c.ic, opened: time.Now()}, nil
}

// Close unregisters the connection and logs its lifetime whatever the
// driver returns.
func (c *conn) Close() error {
	defer c.ic.logClosed("connection", c.opened)
	if c.closed.CompareAndSwap(false, true) && c.ic.tracker != nil {
		c.ic.tracker.Unregister(c)
	}
	return c.parent.Close()
}

func (c *conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *conn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	var (
		t   driver.Tx
		err error
	)
	if bt, ok := c.parent.(driver.ConnBeginTx); ok {
		t, err = bt.BeginTx(ctx, opts)
	} else {
		if opts.Isolation != driver.IsolationLevel(0) {
			return nil, proferror.New(proferror.PROF_UNEXPECTED, "driver does not support non-default isolation level")
		}
		if opts.ReadOnly {
			return nil, proferror.New(proferror.PROF_UNEXPECTED, "driver does not support read-only transactions")
		}
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		//nolint:staticcheck
		t, err = c.parent.Begin()
	}
	if err != nil {
		return nil, err
	}
	return &tx{parent: t, ic: c.ic, opened: time.Now()}, nil
}

func (c *conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	ec, ok := c.parent.(driver.ExecerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	var res driver.Result
	err := c.ic.observe(proflog.StmtTypeExec, query, args, func() error {
		var err error
		res, err = ec.ExecContext(ctx, query, args)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	qc, ok := c.parent.(driver.QueryerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	var rs driver.Rows
	err := c.ic.observe(proflog.StmtTypeQuery, query, args, func() error {
		var err error
		rs, err = qc.QueryContext(ctx, query, args)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &rows{parent: rs, query: query, ic: c.ic, opened: time.Now()}, nil
}

func (c *conn) Ping(ctx context.Context) error {
	if p, ok := c.parent.(driver.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (c *conn) ResetSession(ctx context.Context) error {
	if r, ok := c.parent.(driver.SessionResetter); ok {
		return r.ResetSession(ctx)
	}
	return nil
}

func (c *conn) IsValid() bool {
	if v, ok := c.parent.(driver.Validator); ok {
		return v.IsValid()
	}
	return true
}

func (c *conn) CheckNamedValue(nv *driver.NamedValue) error {
	if nvc, ok := c.parent.(driver.NamedValueChecker); ok {
		return nvc.CheckNamedValue(nv)
	}
	return driver.ErrSkip
}
