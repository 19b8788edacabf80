// SPDX-License-Identifier: MIT

package delay

// DefaultScaleFloor is the initial vertical bound of the chart in millis.
const DefaultScaleFloor uint32 = 100

// Scale tracks the highest delay seen so far. It never shrinks, so the
// chart keeps its vertical bound when delays drop again.
type Scale struct {
	max uint32
}

// NewScale creates a scale starting at floor.
func NewScale(floor uint32) *Scale {
	return &Scale{max: floor}
}

// Observe raises the maximum to sample if sample is greater.
func (s *Scale) Observe(sample uint32) {
	if sample > s.max {
		s.max = sample
	}
}

// Current returns the maximum.
func (s *Scale) Current() uint32 {
	return s.max
}
