package metrics

import (
	"slices"
	"sync"
	"time"
)

type observation struct {
	at time.Time
	ms int64
}

// LatencySnapshot aggregates the observations currently inside the window.
type LatencySnapshot struct {
	Count int     `json:"count"`
	MinMs int64   `json:"min_ms"`
	MaxMs int64   `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

// LatencyStats keeps a rolling window of durations, e.g. per-page OCR calls.
type LatencyStats struct {
	mu     sync.Mutex
	obs    []observation
	window time.Duration
	now    func() time.Time
}

func NewLatencyStats(window time.Duration) *LatencyStats {
	if window <= 0 {
		window = time.Hour
	}
	return &LatencyStats{
		obs:    make([]observation, 0, 128),
		window: window,
		now:    time.Now,
	}
}

// Observe records one duration. Negative durations count as zero.
func (s *LatencyStats) Observe(d time.Duration) {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.evictLocked(now)
	s.obs = append(s.obs, observation{at: now, ms: ms})
}

func (s *LatencyStats) Snapshot() LatencySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictLocked(s.now())
	if len(s.obs) == 0 {
		return LatencySnapshot{}
	}

	values := make([]int64, len(s.obs))
	var sum int64
	for i, o := range s.obs {
		values[i] = o.ms
		sum += o.ms
	}
	slices.Sort(values)

	return LatencySnapshot{
		Count: len(values),
		MinMs: values[0],
		MaxMs: values[len(values)-1],
		AvgMs: float64(sum) / float64(len(values)),
		P50Ms: interpolate(values, 50),
		P95Ms: interpolate(values, 95),
		P99Ms: interpolate(values, 99),
	}
}

func (s *LatencyStats) evictLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	kept := s.obs[:0]
	for _, o := range s.obs {
		if !o.at.Before(cutoff) {
			kept = append(kept, o)
		}
	}
	s.obs = kept
}

// interpolate returns the linearly interpolated pct-th percentile of sorted values.
func interpolate(sorted []int64, pct float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case pct <= 0:
		return float64(sorted[0])
	case pct >= 100:
		return float64(sorted[len(sorted)-1])
	}
	pos := float64(len(sorted)-1) * pct / 100
	lo := int(pos)
	if lo+1 >= len(sorted) {
		return float64(sorted[lo])
	}
	frac := pos - float64(lo)
	return float64(sorted[lo]) + (float64(sorted[lo+1])-float64(sorted[lo]))*frac
}
