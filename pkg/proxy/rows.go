package proxy

import (
	"database/sql/driver"
	"io"
	"reflect"
	"time"

	"github.com/pg-sharding/pgprof/pkg/redact"
)

type rows struct {
	parent driver.Rows
	query  string
	ic     *interceptor
	opened time.Time
	count  int64
}

var (
	_ driver.Rows                           = &rows{}
	_ driver.RowsNextResultSet              = &rows{}
	_ driver.RowsColumnTypeScanType         = &rows{}
	_ driver.RowsColumnTypeDatabaseTypeName = &rows{}
	_ driver.RowsColumnTypeLength           = &rows{}
	_ driver.RowsColumnTypeNullable         = &rows{}
	_ driver.RowsColumnTypePrecisionScale   = &rows{}
)

func (r *rows) Columns() []string {
	return r.parent.Columns()
}

// Close logs how long the cursor stayed open and how many rows were read,
// whatever the driver returns.
func (r *rows) Close() error {
	defer func() {
		r.ic.logger.Debug().
			Str("resource", "rows").
			Str("stmt", redact.SQL(r.query)).
			Int64("rows", r.count).
			Dur("lifetime", time.Since(r.opened)).
			Msg("closed")
	}()
	return r.parent.Close()
}

func (r *rows) Next(dest []driver.Value) error {
	err := r.parent.Next(dest)
	if err == nil {
		r.count++
	}
	return err
}

func (r *rows) HasNextResultSet() bool {
	if rs, ok := r.parent.(driver.RowsNextResultSet); ok {
		return rs.HasNextResultSet()
	}
	return false
}

func (r *rows) NextResultSet() error {
	if rs, ok := r.parent.(driver.RowsNextResultSet); ok {
		return rs.NextResultSet()
	}
	return io.EOF
}

func (r *rows) ColumnTypeScanType(index int) reflect.Type {
	if ct, ok := r.parent.(driver.RowsColumnTypeScanType); ok {
		return ct.ColumnTypeScanType(index)
	}
	return reflect.TypeFor[any]()
}

func (r *rows) ColumnTypeDatabaseTypeName(index int) string {
	if ct, ok := r.parent.(driver.RowsColumnTypeDatabaseTypeName); ok {
		return ct.ColumnTypeDatabaseTypeName(index)
	}
	return ""
}

func (r *rows) ColumnTypeLength(index int) (int64, bool) {
	if ct, ok := r.parent.(driver.RowsColumnTypeLength); ok {
		return ct.ColumnTypeLength(index)
	}
	return 0, false
}

func (r *rows) ColumnTypeNullable(index int) (bool, bool) {
	if ct, ok := r.parent.(driver.RowsColumnTypeNullable); ok {
		return ct.ColumnTypeNullable(index)
	}
	return false, false
}

func (r *rows) ColumnTypePrecisionScale(index int) (int64, int64, bool) {
	if ct, ok := r.parent.(driver.RowsColumnTypePrecisionScale); ok {
		return ct.ColumnTypePrecisionScale(index)
	}
	return 0, 0, false
}
