package proflog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"

	"github.com/pg-sharding/pgprof/pkg/redact"
)

// ZeroTraceLogger routes pgx trace logging through zerolog.
type ZeroTraceLogger struct {
	Logger *zerolog.Logger
}

// Log implements [tracelog.Logger]. Statement text is redacted and bound
// arguments are never written.
func (z *ZeroTraceLogger) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	l := OrDefault(z.Logger)
	var event *zerolog.Event
	switch level {
	case tracelog.LogLevelTrace:
		event = l.Trace()
	case tracelog.LogLevelDebug:
		event = l.Debug()
	case tracelog.LogLevelInfo:
		event = l.Info()
	case tracelog.LogLevelWarn:
		event = l.Warn()
	case tracelog.LogLevelError:
		event = l.Error()
	case tracelog.LogLevelNone:
		fallthrough
	default:
		return
	}
	event.Str("data", fmt.Sprintf("%s", scrub(data))).Msg(msg)
}

func scrub(data map[string]any) map[string]any {
	ret := make(map[string]any, len(data))
	for k, v := range data {
		switch k {
		case "args":
			continue
		case "sql":
			if s, ok := v.(string); ok {
				v = redact.SQL(s)
			}
		}
		ret[k] = v
	}
	return ret
}

var _ tracelog.Logger = &ZeroTraceLogger{}
