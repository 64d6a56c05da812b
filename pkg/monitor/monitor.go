package monitor

import (
	"math"
	"sync"
	"time"

	"github.com/caio/go-tdigest"
	"go.uber.org/atomic"
)

// Units is the unit every duration is reported in.
const Units = "ms"

// Monitor aggregates timings for one label. All methods are safe for
// concurrent use.
type Monitor struct {
	label string

	active *atomic.Int64

	mu          sync.Mutex
	hits        int64
	total       time.Duration
	min         time.Duration
	max         time.Duration
	last        time.Duration
	maxActive   int64
	firstAccess time.Time
	lastAccess  time.Time
	digest      *tdigest.TDigest
}

func newMonitor(label string) *Monitor {
	return &Monitor{
		label:  label,
		active: atomic.NewInt64(0),
		digest: newDigest(),
	}
}

func newDigest() *tdigest.TDigest {
	td, err := tdigest.New(tdigest.Compression(100))
	if err != nil {
		return nil
	}
	return td
}

func (m *Monitor) Label() string {
	return m.label
}

func (m *Monitor) Units() string {
	return Units
}

// Timer is one physical execution being measured.
type Timer struct {
	m       *Monitor
	begin   time.Time
	stopped *atomic.Bool
}

// Start begins measuring one execution. Every Start must be paired with
// exactly one Stop of the returned Timer.
func (m *Monitor) Start() *Timer {
	n := m.active.Inc()

	m.mu.Lock()
	if n > m.maxActive {
		m.maxActive = n
	}
	m.mu.Unlock()

	return &Timer{
		m:       m,
		begin:   time.Now(),
		stopped: atomic.NewBool(false),
	}
}

// Stop records the elapsed time and returns it. Only the first call records.
func (t *Timer) Stop() time.Duration {
	if t == nil || !t.stopped.CompareAndSwap(false, true) {
		return 0
	}
	d := time.Since(t.begin)
	t.m.active.Dec()
	t.m.Add(d)
	return d
}

// Cancel ends the execution without recording it.
func (t *Timer) Cancel() {
	if t == nil || !t.stopped.CompareAndSwap(false, true) {
		return
	}
	t.m.active.Dec()
}

// Elapsed returns the time since Start without stopping the timer.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.begin)
}

// Add records an externally measured duration as one hit.
func (m *Monitor) Add(d time.Duration) {
	if d < 0 {
		d = 0
	}
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hits == 0 || d < m.min {
		m.min = d
	}
	if m.hits == 0 || d > m.max {
		m.max = d
	}
	m.hits++
	m.total += d
	m.last = d
	if m.firstAccess.IsZero() {
		m.firstAccess = now
	}
	m.lastAccess = now
	if m.digest != nil {
		_ = m.digest.Add(toMillis(d))
	}
}

func (m *Monitor) Hits() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits
}

func (m *Monitor) Total() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// Avg is the mean in milliseconds, NaN before the first hit.
func (m *Monitor) Avg() float64 {
	return m.Snapshot().Avg()
}

// Active is the number of executions currently between Start and Stop.
func (m *Monitor) Active() int64 {
	return m.active.Load()
}

// Quantile returns the q-th latency quantile in milliseconds, NaN before the
// first hit.
func (m *Monitor) Quantile(q float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quantile(q)
}

func (m *Monitor) quantile(q float64) float64 {
	if m.digest == nil || m.digest.Count() == 0 {
		return math.NaN()
	}
	return m.digest.Quantile(q)
}

// Snapshot returns a consistent copy of the counters together with the
// requested quantiles.
func (m *Monitor) Snapshot(quantiles ...float64) Stat {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Stat{
		Label:       m.label,
		Units:       Units,
		Hits:        m.hits,
		Total:       m.total,
		Min:         m.min,
		Max:         m.max,
		Last:        m.last,
		Active:      m.active.Load(),
		MaxActive:   m.maxActive,
		FirstAccess: m.firstAccess,
		LastAccess:  m.lastAccess,
	}
	if len(quantiles) > 0 {
		st.Quantiles = make([]float64, len(quantiles))
		for i, q := range quantiles {
			st.Quantiles[i] = m.quantile(q)
		}
	}
	return st
}

// reset clears the counters. In-flight executions are left alone.
func (m *Monitor) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hits = 0
	m.total = 0
	m.min = 0
	m.max = 0
	m.last = 0
	m.maxActive = m.active.Load()
	m.firstAccess = time.Time{}
	m.lastAccess = time.Time{}
	m.digest = newDigest()
}

// merge folds previously exported counters into m.
func (m *Monitor) merge(st Stat) {
	if st.Hits <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hits == 0 {
		m.min = st.Min
		m.max = st.Max
		m.last = st.Last
		if m.last < st.Min || m.last > st.Max {
			m.last = FromMillis(st.Avg())
		}
	} else {
		if st.Min < m.min {
			m.min = st.Min
		}
		if st.Max > m.max {
			m.max = st.Max
		}
	}
	m.hits += st.Hits
	m.total += st.Total
	if m.digest != nil {
		_ = m.digest.AddWeighted(st.Avg(), uint64(st.Hits))
	}
}
