package sampler

import "time"

// Snapshot is the committed state after a tick. It is a copy and not
// shared with the sampler.
type Snapshot struct {
	Targets  []string      `json:"targets"`
	Series   [][]uint32    `json:"series"`
	Failures []uint64      `json:"failures"`
	Max      uint32        `json:"max_ms"`
	Epoch    uint64        `json:"epoch"`
	Capacity int           `json:"capacity"`
	Interval time.Duration `json:"interval_ns"`
}

// Snapshot returns the state of the last committed tick.
func (s *Sampler) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshot()
}

func (s *Sampler) snapshot() Snapshot {
	snap := Snapshot{
		Targets:  append([]string(nil), s.targets...),
		Series:   make([][]uint32, len(s.windows)),
		Failures: append([]uint64(nil), s.failures...),
		Max:      s.scale.Current(),
		Epoch:    s.epoch,
		Capacity: s.windows[0].Cap(),
		Interval: s.interval,
	}
	for i, w := range s.windows {
		snap.Series[i] = w.Snapshot()
	}

	return snap
}

// Duration returns the time span covered by a full window.
func (s Snapshot) Duration() time.Duration {
	return time.Duration(s.Capacity) * s.Interval
}

// Last returns the newest sample of the series at index i.
func (s Snapshot) Last(i int) (uint32, bool) {
	if i < 0 || i >= len(s.Series) || len(s.Series[i]) == 0 {
		return 0, false
	}

	return s.Series[i][len(s.Series[i])-1], true
}
