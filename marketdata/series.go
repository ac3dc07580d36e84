package marketdata

import (
	"sort"
	"sync"
)

// BarSeries is the canonical, timestamp-indexed bar history of one symbol.
// Batches are merged by upserting on the bar's time, never by wholesale
// replacement, so bars missing from a later partial response survive. The
// rendered snapshot is always strictly ascending by time.
type BarSeries struct {
	mu     sync.RWMutex
	byTime map[int64]Bar
}

// NewBarSeries returns an empty series.
func NewBarSeries() *BarSeries {
	return &BarSeries{byTime: map[int64]Bar{}}
}

// Merge upserts a batch into the series. The batch may arrive unsorted and
// may revise bars already held; the last write for a timestamp wins.
func (s *BarSeries) Merge(bars []Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range bars {
		s.byTime[b.Time] = b
	}
}

// Sorted returns a snapshot of the series, strictly ascending by time.
func (s *BarSeries) Sorted() []Bar {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bars := make([]Bar, 0, len(s.byTime))
	for _, b := range s.byTime {
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time < bars[j].Time })
	return bars
}

// Len returns the number of distinct timestamps held.
func (s *BarSeries) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byTime)
}

// Reset drops every bar. Used when the series switches to another symbol.
func (s *BarSeries) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byTime = map[int64]Bar{}
}
