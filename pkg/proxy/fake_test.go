package proxy_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
)

var errFake = errors.New("fake failure")

// fakeDriver serves in-memory connections. Statements whose text is listed
// in failing return errFake.
type fakeDriver struct {
	mu      sync.Mutex
	legacy  bool
	failing map[string]bool
	execs   []string
	opened  int
}

func newFakeDriver(failing ...string) *fakeDriver {
	d := &fakeDriver{failing: map[string]bool{}}
	for _, q := range failing {
		d.failing[q] = true
	}
	return d
}

func (d *fakeDriver) Open(string) (driver.Conn, error) {
	d.mu.Lock()
	d.opened++
	d.mu.Unlock()
	base := &legacyConn{d: d}
	if d.legacy {
		return base, nil
	}
	return &fakeConn{legacyConn: base}, nil
}

func (d *fakeDriver) run(query string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.execs = append(d.execs, query)
	if d.failing[query] {
		return errFake
	}
	return nil
}

func (d *fakeDriver) Executed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.execs...)
}

type fakeConnector struct {
	d *fakeDriver
}

func (c fakeConnector) Connect(context.Context) (driver.Conn, error) { return c.d.Open("") }
func (c fakeConnector) Driver() driver.Driver                        { return c.d }

// legacyConn implements only the mandatory driver.Conn methods.
type legacyConn struct {
	d *fakeDriver
}

func (c *legacyConn) Prepare(query string) (driver.Stmt, error) {
	return &fakeStmt{d: c.d, query: query}, nil
}

func (c *legacyConn) Close() error { return nil }

func (c *legacyConn) Begin() (driver.Tx, error) { return &fakeTx{d: c.d}, nil }

type fakeConn struct {
	*legacyConn
}

func (c *fakeConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	if err := c.d.run(query); err != nil {
		return nil, err
	}
	return driver.RowsAffected(1), nil
}

func (c *fakeConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	if err := c.d.run(query); err != nil {
		return nil, err
	}
	return &fakeRows{left: 2}, nil
}

type fakeStmt struct {
	d     *fakeDriver
	query string
}

func (s *fakeStmt) Close() error  { return nil }
func (s *fakeStmt) NumInput() int { return -1 }

func (s *fakeStmt) Exec([]driver.Value) (driver.Result, error) {
	if err := s.d.run(s.query); err != nil {
		return nil, err
	}
	return driver.RowsAffected(1), nil
}

func (s *fakeStmt) Query([]driver.Value) (driver.Rows, error) {
	if err := s.d.run(s.query); err != nil {
		return nil, err
	}
	return &fakeRows{left: 2}, nil
}

type fakeRows struct {
	left int
}

func (r *fakeRows) Columns() []string { return []string{"id"} }
func (r *fakeRows) Close() error      { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.left == 0 {
		return io.EOF
	}
	dest[0] = int64(r.left)
	r.left--
	return nil
}

type fakeTx struct {
	d *fakeDriver
}

func (t *fakeTx) Commit() error   { return t.d.run("COMMIT") }
func (t *fakeTx) Rollback() error { return t.d.run("ROLLBACK") }
