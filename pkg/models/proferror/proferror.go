package proferror

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/pg-sharding/pgprof/pkg/callstack"
)

const (
	PROF_UNEXPECTED       = "PROFU"
	PROF_NOT_MONITORED    = "PROFN"
	PROF_CONNECTION_LEAK  = "PROFL"
	PROF_INVALID_SIZE     = "PROFS"
	PROF_MALFORMED_EXPORT = "PROFM"
	PROF_INVALID_CONFIG   = "PROFC"
)

var existingErrorCodeMap = map[string]string{
	PROF_UNEXPECTED:       "Unexpected error",
	PROF_NOT_MONITORED:    "Not monitored or closed",
	PROF_CONNECTION_LEAK:  "Connection leak",
	PROF_INVALID_SIZE:     "Invalid size",
	PROF_MALFORMED_EXPORT: "Malformed statistics export",
	PROF_INVALID_CONFIG:   "Invalid config",
}

func GetMessageByCode(errorCode string) string {
	rep, ok := existingErrorCodeMap[errorCode]
	if ok {
		return rep
	}
	return "Unexpected error"
}

var _ error = &ProfError{}

type ProfError struct {
	Err error

	ErrorCode string
}

func New(errorCode string, errorMsg string) *ProfError {
	return &ProfError{
		Err:       errors.New(errorMsg),
		ErrorCode: errorCode,
	}
}

func Newf(errorCode string, format string, a ...any) *ProfError {
	return &ProfError{
		Err:       fmt.Errorf(format, a...),
		ErrorCode: errorCode,
	}
}

func (er *ProfError) Error() string {
	return fmt.Sprintf("%s: %v", GetMessageByCode(er.ErrorCode), er.Err)
}

func (er *ProfError) Unwrap() error {
	return er.Err
}

// HasCode reports whether err, or anything it wraps, is a ProfError with code.
func HasCode(err error, code string) bool {
	var pe *ProfError
	if errors.As(err, &pe) {
		return pe.ErrorCode == code
	}
	return false
}

// QueryError is a driver failure annotated with the redacted statement text
// that caused it. The driver error stays reachable through Unwrap and Cause.
type QueryError struct {
	Err   error
	Query string
}

func (qe *QueryError) Error() string {
	return fmt.Sprintf("%v: query: %s", qe.Err, qe.Query)
}

func (qe *QueryError) Unwrap() error {
	return qe.Err
}

// Cause implements the github.com/pkg/errors causer interface.
func (qe *QueryError) Cause() error {
	return qe.Err
}

// WithQuery attaches query to err. Sentinels that database/sql compares by
// identity are returned untouched.
func WithQuery(err error, query string) error {
	if err == nil {
		return nil
	}
	if err == driver.ErrSkip || err == driver.ErrBadConn || err == driver.ErrRemoveArgument ||
		err == context.Canceled || err == context.DeadlineExceeded {
		return err
	}
	return &QueryError{Err: err, Query: query}
}

// LeakError reports connections that were opened and never closed. Stack is
// the creation stack of one of them.
type LeakError struct {
	Open  int
	Stack callstack.Stack
}

func (le *LeakError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %d connection(s) still open, one was opened at:\n", GetMessageByCode(PROF_CONNECTION_LEAK), le.Open)
	sb.WriteString(le.Stack.String())
	return sb.String()
}

func (le *LeakError) Unwrap() error {
	return New(PROF_CONNECTION_LEAK, "connections still open")
}
