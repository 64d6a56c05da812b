package monitor

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/pg-sharding/pgprof/pkg/models/proferror"
	"github.com/pg-sharding/pgprof/pkg/proflog"
)

const DefaultMaxSize = 100

// Store maps labels to monitors and never holds more than MaxSize of them.
// When a new label arrives at capacity the oldest created monitor is
// evicted. Lookups never refresh a monitor's position.
type Store struct {
	// mu serializes Reset and SetMaxSize against monitor creation. The cache
	// does its own locking for concurrent lookups.
	mu      sync.RWMutex
	cache   *lru.Cache[string, *Monitor]
	maxSize int

	evictions *atomic.Int64
	logger    *zerolog.Logger
}

type Option func(*Store)

func WithLogger(l *zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

func NewStore(maxSize int, opts ...Option) (*Store, error) {
	s := &Store{
		maxSize:   maxSize,
		evictions: atomic.NewInt64(0),
	}
	for _, o := range opts {
		o(s)
	}
	cache, err := s.newCache(maxSize)
	if err != nil {
		return nil, err
	}
	s.cache = cache
	return s, nil
}

func (s *Store) newCache(size int) (*lru.Cache[string, *Monitor], error) {
	if size <= 0 {
		return nil, proferror.Newf(proferror.PROF_INVALID_SIZE, "store size must be positive, got %d", size)
	}
	return lru.NewWithEvict[string, *Monitor](size, s.onEvict)
}

func (s *Store) onEvict(label string, _ *Monitor) {
	s.evictions.Inc()
	proflog.OrDefault(s.logger).Debug().Str("label", label).Msg("monitor evicted")
}

// GetMonitor returns the monitor for label, creating it if needed. Callers
// racing on a new label all get the same instance.
func (s *Store) GetMonitor(label string) *Monitor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if m, ok := s.cache.Peek(label); ok {
		return m
	}
	m := newMonitor(label)
	if prev, ok, _ := s.cache.PeekOrAdd(label, m); ok {
		return prev
	}
	return m
}

// Monitors returns the current monitors, oldest first.
func (s *Store) Monitors() []*Monitor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.monitors()
}

func (s *Store) monitors() []*Monitor {
	keys := s.cache.Keys()
	ret := make([]*Monitor, 0, len(keys))
	for _, k := range keys {
		if m, ok := s.cache.Peek(k); ok {
			ret = append(ret, m)
		}
	}
	return ret
}

// SortedMonitors returns the monitors by total time descending, ties broken
// by label.
func (s *Store) SortedMonitors() []*Monitor {
	ms := s.Monitors()
	stats := make([]Stat, len(ms))
	byLabel := make(map[string]*Monitor, len(ms))
	for i, m := range ms {
		stats[i] = m.Snapshot()
		byLabel[m.label] = m
	}
	SortStats(stats)

	ret := make([]*Monitor, len(stats))
	for i, st := range stats {
		ret[i] = byLabel[st.Label]
	}
	return ret
}

// Snapshot returns a sorted copy of every monitor's counters.
func (s *Store) Snapshot(quantiles ...float64) []Stat {
	ms := s.Monitors()
	stats := make([]Stat, len(ms))
	for i, m := range ms {
		stats[i] = m.Snapshot(quantiles...)
	}
	SortStats(stats)
	return stats
}

// Reset clears every monitor. Monitors that had no hits stay in the store so
// labels that were never exercised remain visible; the others are dropped.
// An execution started on a dropped monitor before Reset records on that
// detached instance when it stops, not on the label's new monitor.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keep []*Monitor
	for _, m := range s.monitors() {
		if m.Hits() == 0 {
			keep = append(keep, m)
		}
		m.reset()
	}

	// maxSize is validated on every write, so this cannot fail
	cache, _ := lru.NewWithEvict[string, *Monitor](s.maxSize, s.onEvict)
	for _, m := range keep {
		cache.Add(m.label, m)
	}
	s.cache = cache

	proflog.OrDefault(s.logger).Debug().Int("kept", len(keep)).Msg("monitors reset")
}

// SetMaxSize changes the capacity, evicting the oldest monitors when
// shrinking below the current population.
func (s *Store) SetMaxSize(n int) error {
	if n <= 0 {
		return proferror.Newf(proferror.PROF_INVALID_SIZE, "store size must be positive, got %d", n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Resize(n)
	s.maxSize = n
	return nil
}

func (s *Store) MaxSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxSize
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache.Len()
}

// Evictions counts monitors dropped for capacity since the store was built.
func (s *Store) Evictions() int64 {
	return s.evictions.Load()
}

// Merge adds exported counters to the monitor for st.Label, creating it if
// needed. A zero-hit stat still creates the monitor.
func (s *Store) Merge(st Stat) *Monitor {
	m := s.GetMonitor(st.Label)
	m.merge(st)
	return m
}
