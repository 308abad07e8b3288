package microtask

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"time"
)

// Histogram layout: 10 bins of 0.5ms plus one overflow bin
const (
	HistogramBinSize = 500 * time.Microsecond
	HistogramBins    = 10

	histogramBarWidth = 50
)

// TaskStats accumulates execution durations for one job name
// Used offline to tune declared capacities against measured cost
type TaskStats struct {
	Name     string                 `json:"name"`
	Capacity int                    `json:"capacity"` // Last declared capacity
	Count    int                    `json:"count"`
	Total    time.Duration          `json:"total"`
	Max      time.Duration          `json:"max"`
	Bins     [HistogramBins + 1]int `json:"bins"`
}

// Avg returns the mean execution time
func (s TaskStats) Avg() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Stats is the per-name histogram table
// Guarded by a mutex because the debug server reads it off the frame goroutine
type Stats struct {
	mu     sync.Mutex
	byName map[string]*TaskStats
}

// NewStats creates an empty table
func NewStats() *Stats {
	return &Stats{byName: make(map[string]*TaskStats)}
}

func (s *Stats) record(name string, capacity int, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.byName[name]
	if !ok {
		st = &TaskStats{Name: name}
		s.byName[name] = st
	}
	st.Capacity = capacity
	st.Count++
	st.Total += elapsed
	if elapsed > st.Max {
		st.Max = elapsed
	}
	bin := min(HistogramBins, int(elapsed/HistogramBinSize))
	st.Bins[bin]++
}

// Snapshot returns a copy of every entry sorted by name
func (s *Stats) Snapshot() []TaskStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaskStats, 0, len(s.byName))
	for _, st := range s.byName {
		out = append(out, *st)
	}
	slices.SortFunc(out, func(a, b TaskStats) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Reset discards all accumulated statistics
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.byName)
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Text renders the histogram dump used for capacity tuning
func (s *Stats) Text() string {
	var b strings.Builder
	b.WriteString("--- Microtask Execution Stats ---\n")

	binMs := ms(HistogramBinSize)
	for _, st := range s.Snapshot() {
		if st.Count == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s (Cap: %d):\n", st.Name, st.Capacity)
		fmt.Fprintf(&b, "  Count: %d\n", st.Count)
		fmt.Fprintf(&b, "  Avg Duration: %.3f ms\n", ms(st.Avg()))
		fmt.Fprintf(&b, "  Max Duration: %.3f ms\n", ms(st.Max))
		fmt.Fprintf(&b, "  Histogram (Bin Size: %.1fms):\n", binMs)

		maxBin := slices.Max(st.Bins[:])
		scale := 1.0
		if maxBin > histogramBarWidth {
			scale = float64(histogramBarWidth) / float64(maxBin)
		}
		bar := func(n int) string {
			return strings.Repeat("*", int(math.Round(float64(n)*scale)))
		}

		for i := 0; i < HistogramBins; i++ {
			label := fmt.Sprintf("%.1f-%.1fms", float64(i)*binMs, float64(i+1)*binMs)
			fmt.Fprintf(&b, "    %-10s: %5d %s\n", label, st.Bins[i], bar(st.Bins[i]))
		}
		last := fmt.Sprintf(">%.1fms", float64(HistogramBins)*binMs)
		fmt.Fprintf(&b, "    %-10s: %5d %s\n", last, st.Bins[HistogramBins], bar(st.Bins[HistogramBins]))
		b.WriteString("---------------------------------\n")
	}
	return b.String()
}
