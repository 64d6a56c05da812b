// Package tracker keeps the set of open connections and the stack of the
// code that opened each of them, so leaked connections can be traced back
// to their origin.
package tracker

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/pg-sharding/pgprof/pkg/callstack"
	"github.com/pg-sharding/pgprof/pkg/models/proferror"
)

// Record describes one open connection.
type Record struct {
	Conn     any
	Stack    callstack.Stack
	Seq      uint64
	OpenedAt time.Time
}

// Tracker is safe for concurrent use. Connections are identified by the
// comparable handle passed to Register, normally a pointer.
type Tracker struct {
	mu   sync.RWMutex
	open map[any]*Record

	seq         *atomic.Uint64
	totalOpened *atomic.Int64
}

func New() *Tracker {
	return &Tracker{
		open:        map[any]*Record{},
		seq:         atomic.NewUint64(0),
		totalOpened: atomic.NewInt64(0),
	}
}

// Register marks conn as open, opened from stack.
func (t *Tracker) Register(conn any, stack callstack.Stack) {
	rec := &Record{
		Conn:     conn,
		Stack:    stack,
		Seq:      t.seq.Inc(),
		OpenedAt: time.Now(),
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.open[conn] = rec
	t.totalOpened.Inc()
}

// Unregister marks conn as closed. It reports whether conn was open.
func (t *Tracker) Unregister(conn any) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.open[conn]; !ok {
		return false
	}
	delete(t.open, conn)
	return true
}

func (t *Tracker) OpenCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.open)
}

func (t *Tracker) TotalOpened() int64 {
	return t.totalOpened.Load()
}

func (t *Tracker) ClosedCount() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.totalOpened.Load() - int64(len(t.open))
}

// Records returns a copy of the open set, oldest first.
func (t *Tracker) Records() []Record {
	t.mu.RLock()
	ret := make([]Record, 0, len(t.open))
	for _, r := range t.open {
		ret = append(ret, *r)
	}
	t.mu.RUnlock()

	sort.Slice(ret, func(i, j int) bool { return ret[i].Seq < ret[j].Seq })
	return ret
}

// LastCaller returns the top frame of the most recently opened connection
// that is still open.
func (t *Tracker) LastCaller() (callstack.Frame, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var last *Record
	for _, r := range t.open {
		if last == nil || r.Seq > last.Seq {
			last = r
		}
	}
	if last == nil {
		return callstack.Frame{}, false
	}
	return last.Stack.Top(), true
}

// CallerOf returns the stack that opened conn.
func (t *Tracker) CallerOf(conn any) (callstack.Stack, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	r, ok := t.open[conn]
	if !ok {
		return nil, proferror.Newf(proferror.PROF_NOT_MONITORED, "connection %p is not tracked", conn)
	}
	return r.Stack, nil
}

// Callers lists the opening frame of every open connection, oldest first.
func (t *Tracker) Callers() []string {
	recs := t.Records()
	ret := make([]string, len(recs))
	for i, r := range recs {
		ret[i] = r.Stack.Top().String()
	}
	return ret
}

// AssertAllClosed fails with a *proferror.LeakError carrying the creation
// stack of the oldest open connection when anything is still open.
func (t *Tracker) AssertAllClosed() error {
	recs := t.Records()
	if len(recs) == 0 {
		return nil
	}
	return &proferror.LeakError{
		Open:  len(recs),
		Stack: recs[0].Stack,
	}
}
