package monitor

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/city"
)

// Stat is a point-in-time copy of a Monitor.
type Stat struct {
	Label       string
	Units       string
	Hits        int64
	Total       time.Duration
	Min         time.Duration
	Max         time.Duration
	Last        time.Duration
	Active      int64
	MaxActive   int64
	FirstAccess time.Time
	LastAccess  time.Time

	// Quantiles holds the values for the quantiles passed to Snapshot, in
	// the same order.
	Quantiles []float64
}

// Avg is Total/Hits in milliseconds, NaN when there are no hits.
func (s Stat) Avg() float64 {
	if s.Hits == 0 {
		return math.NaN()
	}
	return toMillis(s.Total) / float64(s.Hits)
}

// Fingerprint identifies a label in exports that carry only redacted text.
func Fingerprint(label string) string {
	return strconv.FormatUint(city.Hash64([]byte(label)), 16)
}

func (s Stat) Fingerprint() string { return Fingerprint(s.Label) }

func (s Stat) TotalMillis() float64 { return toMillis(s.Total) }
func (s Stat) MinMillis() float64   { return toMillis(s.Min) }
func (s Stat) MaxMillis() float64   { return toMillis(s.Max) }

// SortStats orders stats by total time descending, then by label.
func SortStats(stats []Stat) {
	slices.SortFunc(stats, func(a, b Stat) int {
		switch {
		case a.Total > b.Total:
			return -1
		case a.Total < b.Total:
			return 1
		}
		return strings.Compare(a.Label, b.Label)
	})
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// FromMillis converts a millisecond value back to a Duration, rounding to
// the nearest nanosecond.
func FromMillis(ms float64) time.Duration {
	return time.Duration(math.Round(ms * float64(time.Millisecond)))
}
