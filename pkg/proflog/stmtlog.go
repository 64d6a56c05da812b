package proflog

import (
	"time"

	"github.com/rs/zerolog"
)

type StmtType string

const (
	StmtTypeQuery    = StmtType("QUERY")
	StmtTypeExec     = StmtType("EXECUTE")
	StmtTypeBatch    = StmtType("BATCH")
	StmtTypeCommit   = StmtType("COMMIT")
	StmtTypeRollback = StmtType("ROLLBACK")
)

// StmtLogger reports statements slower than a threshold. A negative
// threshold disables it.
type StmtLogger struct {
	logMinDurationStatement time.Duration
	logger                  *zerolog.Logger
}

func NewStmtLogger(logMinDurationStatement time.Duration, logger *zerolog.Logger) *StmtLogger {
	return &StmtLogger{
		logMinDurationStatement: logMinDurationStatement,
		logger:                  logger,
	}
}

func (s *StmtLogger) shouldLogStatement(t time.Duration) bool {
	return s.logMinDurationStatement >= 0 && t > s.logMinDurationStatement
}

// ShouldLog reports whether a statement that took t would be logged.
func (s *StmtLogger) ShouldLog(t time.Duration) bool {
	return s != nil && s.shouldLogStatement(t)
}

// ReportStatement logs stmt when t exceeds the threshold. stmt must already
// be redacted.
func (s *StmtLogger) ReportStatement(typ StmtType, stmt string, t time.Duration) {
	if !s.ShouldLog(t) {
		return
	}
	OrDefault(s.logger).Info().Str("stmt", stmt).Str("stmt_type", string(typ)).Dur("duration", t).Msg("log statement")
}
