package proxy_test

import (
	"database/sql/driver"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pg-sharding/pgprof/pkg/proxy"
)

func ordinal(vals ...any) []driver.NamedValue {
	out := make([]driver.NamedValue, len(vals))
	for i, v := range vals {
		out[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return out
}

func TestResolve(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		query    string
		args     []driver.NamedValue
		expected string
	}{
		{
			name:     "no args",
			query:    "SELECT 1",
			expected: "SELECT 1",
		},
		{
			name:     "dollar placeholders",
			query:    "SELECT * FROM t WHERE a = $1 AND b = $2",
			args:     ordinal(int64(5), "x"),
			expected: "SELECT * FROM t WHERE a = 5 AND b = 'x'",
		},
		{
			name:     "dollar placeholder reused",
			query:    "SELECT $1, $1",
			args:     ordinal(true),
			expected: "SELECT true, true",
		},
		{
			name:     "question marks",
			query:    "SELECT * FROM t WHERE a = ? AND b = ?",
			args:     ordinal(nil, 1.5),
			expected: "SELECT * FROM t WHERE a = null AND b = 1.5",
		},
		{
			name:     "quote doubled",
			query:    "SELECT $1",
			args:     ordinal("O'Brien"),
			expected: "SELECT 'O''Brien'",
		},
		{
			name:     "placeholder inside literal untouched",
			query:    "SELECT '$1', ? FROM t",
			args:     ordinal(int64(2)),
			expected: "SELECT '$1', 2 FROM t",
		},
		{
			name:     "cast not a named parameter",
			query:    "SELECT $1::text",
			args:     ordinal("a"),
			expected: "SELECT 'a'::text",
		},
		{
			name:  "named parameters",
			query: "SELECT * FROM t WHERE a = :first AND b = @second",
			args: []driver.NamedValue{
				{Name: "first", Ordinal: 1, Value: int64(1)},
				{Name: "second", Ordinal: 2, Value: "b"},
			},
			expected: "SELECT * FROM t WHERE a = 1 AND b = 'b'",
		},
		{
			name:     "time",
			query:    "SELECT $1",
			args:     ordinal(ts),
			expected: "SELECT '2024-03-01T12:00:00Z'",
		},
		{
			name:     "missing argument left in place",
			query:    "SELECT $1, $2",
			args:     ordinal(int64(1)),
			expected: "SELECT 1, $2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, proxy.Resolve(tt.query, tt.args))
		})
	}
}
