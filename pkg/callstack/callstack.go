// Package callstack captures the stack of whoever called into the profiler,
// with the profiler's own frames filtered out.
package callstack

import (
	"fmt"
	"runtime"
	"strings"
)

const maxDepth = 64

type Frame struct {
	Function string
	File     string
	Line     int
}

func (f Frame) String() string {
	return fmt.Sprintf("%s (%s:%d)", f.Function, f.File, f.Line)
}

// Stack is ordered innermost first.
type Stack []Frame

// Top returns the innermost frame, or the zero Frame for an empty stack.
func (s Stack) Top() Frame {
	if len(s) == 0 {
		return Frame{}
	}
	return s[0]
}

func (s Stack) String() string {
	var sb strings.Builder
	for _, f := range s {
		sb.WriteString("\t")
		sb.WriteString(f.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

// Excluder reports whether a frame belongs to the instrumentation layer and
// must be skipped.
type Excluder func(function string) bool

// PrefixExcluder excludes every function whose fully qualified name starts
// with one of prefixes.
func PrefixExcluder(prefixes ...string) Excluder {
	return func(function string) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(function, p) {
				return true
			}
		}
		return false
	}
}

// DefaultExcluder hides the driver decorators, database/sql, pgx internals
// and the runtime.
var DefaultExcluder = PrefixExcluder(
	"runtime.",
	"database/sql.",
	"github.com/pg-sharding/pgprof/pkg/proxy.",
	"github.com/pg-sharding/pgprof/pkg/pgxtrace.",
	"github.com/pg-sharding/pgprof/pkg/tracker.",
	"github.com/pg-sharding/pgprof/pkg/callstack.",
	"github.com/jackc/pgx/v5",
	"github.com/jackc/puddle/v2",
	"github.com/jmoiron/sqlx.",
)

// Capture returns the current goroutine's stack starting at the first frame
// that exclude does not reject. Everything past that frame is kept as is, so
// the tail may contain excluded functions again (e.g. a test harness).
func Capture(exclude Excluder) Stack {
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(1, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var stack Stack
	found := false
	for {
		fr, more := frames.Next()
		if found || exclude == nil || !exclude(fr.Function) {
			found = true
			stack = append(stack, Frame{Function: fr.Function, File: fr.File, Line: fr.Line})
		}
		if !more {
			break
		}
	}
	return stack
}
