package proxy

import (
	"context"
	"database/sql"
	"database/sql/driver"
)

// Driver decorates a database/sql driver.
type Driver struct {
	parent driver.Driver
	ic     *interceptor
}

var (
	_ driver.Driver        = &Driver{}
	_ driver.DriverContext = &Driver{}
)

// Wrap decorates d. opts.Store must be set.
func Wrap(d driver.Driver, opts Options) *Driver {
	return &Driver{
		parent: d,
		ic:     newInterceptor(opts),
	}
}

// Register wraps d and registers the result with database/sql under name.
func Register(name string, d driver.Driver, opts Options) *Driver {
	w := Wrap(d, opts)
	sql.Register(name, w)
	return w
}

func (d *Driver) Open(name string) (driver.Conn, error) {
	c, err := d.parent.Open(name)
	if err != nil {
		return nil, err
	}
	return d.ic.wrapConn(c), nil
}

func (d *Driver) OpenConnector(name string) (driver.Connector, error) {
	if dc, ok := d.parent.(driver.DriverContext); ok {
		c, err := dc.OpenConnector(name)
		if err != nil {
			return nil, err
		}
		return &connector{parent: c, driver: d}, nil
	}
	return &connector{parent: dsnConnector{dsn: name, driver: d.parent}, driver: d}, nil
}

type connector struct {
	parent driver.Connector
	driver *Driver
}

var _ driver.Connector = &connector{}

// WrapConnector decorates c, for drivers that are configured through a
// connector rather than a DSN.
func WrapConnector(c driver.Connector, opts Options) driver.Connector {
	return &connector{
		parent: c,
		driver: &Driver{parent: c.Driver(), ic: newInterceptor(opts)},
	}
}

func (c *connector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := c.parent.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return c.driver.ic.wrapConn(conn), nil
}

func (c *connector) Driver() driver.Driver {
	return c.driver
}

type dsnConnector struct {
	dsn    string
	driver driver.Driver
}

func (t dsnConnector) Connect(_ context.Context) (driver.Conn, error) {
	return t.driver.Open(t.dsn)
}

func (t dsnConnector) Driver() driver.Driver {
	return t.driver
}
