package proxy

import (
	"context"
	"database/sql/driver"
	"time"

	"github.com/pg-sharding/pgprof/pkg/proflog"
)

type stmt struct {
	parent driver.Stmt
	query  string
	ic     *interceptor
	opened time.Time
}

var (
	_ driver.Stmt              = &stmt{}
	_ driver.StmtExecContext   = &stmt{}
	_ driver.StmtQueryContext  = &stmt{}
	_ driver.NamedValueChecker = &stmt{}
)

func (s *stmt) Close() error {
	defer s.ic.logClosed("statement", s.opened)
	return s.parent.Close()
}

func (s *stmt) NumInput() int {
	return s.parent.NumInput()
}

func (s *stmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), valuesToNamed(args))
}

func (s *stmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), valuesToNamed(args))
}

func (s *stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	var res driver.Result
	err := s.ic.observe(proflog.StmtTypeExec, s.query, args, func() error {
		var err error
		if ec, ok := s.parent.(driver.StmtExecContext); ok {
			res, err = ec.ExecContext(ctx, args)
			return err
		}
		values, err := namedToValues(args)
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		//nolint:staticcheck
		res, err = s.parent.Exec(values)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	var rs driver.Rows
	err := s.ic.observe(proflog.StmtTypeQuery, s.query, args, func() error {
		var err error
		if qc, ok := s.parent.(driver.StmtQueryContext); ok {
			rs, err = qc.QueryContext(ctx, args)
			return err
		}
		values, err := namedToValues(args)
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		//nolint:staticcheck
		rs, err = s.parent.Query(values)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &rows{parent: rs, query: s.query, ic: s.ic, opened: time.Now()}, nil
}

func (s *stmt) CheckNamedValue(nv *driver.NamedValue) error {
	if nvc, ok := s.parent.(driver.NamedValueChecker); ok {
		return nvc.CheckNamedValue(nv)
	}
	return driver.ErrSkip
}
