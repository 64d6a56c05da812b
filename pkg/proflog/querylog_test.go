package proflog

import (
	"bytes"
	"context"
	"testing"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestZeroTraceLoggerRedacts(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	tl := &ZeroTraceLogger{Logger: &logger}

	tl.Log(context.Background(), tracelog.LogLevelInfo, "Query", map[string]any{
		"sql":  "UPDATE users SET password = $1 WHERE id = $2",
		"args": []any{"hunter2", 7},
	})
	tl.Log(context.Background(), tracelog.LogLevelError, "Query", map[string]any{
		"sql": "ALTER ROLE bob WITH PASSWORD 'topsecret'",
	})

	out := buf.String()
	assert.NotContains(out, "hunter2")
	assert.NotContains(out, "topsecret")
	assert.NotContains(out, "args")
	assert.Contains(out, "UPDATE users SET password = ... WHERE id = $2")
	assert.Contains(out, "ALTER ROLE bob WITH PASSWORD ...")
}

func TestZeroTraceLoggerLevelNone(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	tl := &ZeroTraceLogger{Logger: &logger}

	tl.Log(context.Background(), tracelog.LogLevelNone, "Query", map[string]any{"sql": "SELECT 1"})
	assert.Empty(t, buf.String())
}
