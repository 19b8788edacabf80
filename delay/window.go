// SPDX-License-Identifier: MIT

package delay

// Window holds the most recent samples of one target, oldest first.
// It is not safe for concurrent use; callers serialize Push against Snapshot.
type Window struct {
	data  []uint32
	start int
	count int
}

// NewWindow creates a window keeping at most capacity samples.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}

	return &Window{data: make([]uint32, capacity)}
}

// Push appends sample. Once the window is full the oldest sample is evicted.
func (w *Window) Push(sample uint32) {
	if w.count < len(w.data) {
		w.data[(w.start+w.count)%len(w.data)] = sample
		w.count++
		return
	}

	w.data[w.start] = sample
	w.start = (w.start + 1) % len(w.data)
}

// Snapshot returns a copy of the samples ordered from oldest to newest.
func (w *Window) Snapshot() []uint32 {
	out := make([]uint32, w.count)
	n := copy(out, w.data[w.start:min(w.start+w.count, len(w.data))])
	copy(out[n:], w.data[:w.count-n])

	return out
}

// Len returns the number of samples held.
func (w *Window) Len() int {
	return w.count
}

// Cap returns the maximum number of samples held.
func (w *Window) Cap() int {
	return len(w.data)
}
