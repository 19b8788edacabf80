package sampler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/czerwonk/delay_tracker/delay"
	"github.com/czerwonk/delay_tracker/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted replays a fixed sequence of delays per target. A negative value
// makes the probe fail, the value -2 yields output without a reply line.
type scripted struct {
	mu    sync.Mutex
	seqs  map[string][]int
	calls map[string]int
}

func newScripted(seqs map[string][]int) *scripted {
	return &scripted{seqs: seqs, calls: make(map[string]int)}
}

func (s *scripted) Probe(ctx context.Context, target string) (string, error) {
	s.mu.Lock()
	i := s.calls[target]
	s.calls[target]++
	s.mu.Unlock()

	seq := s.seqs[target]
	if i >= len(seq) {
		return "", errors.New("script exhausted")
	}

	switch v := seq[i]; {
	case v == -2:
		return "Request timed out.", nil
	case v < 0:
		return "", errors.New("probe failed")
	default:
		return fmt.Sprintf("Reply from %s: bytes=32 time=%dms TTL=64", target, v), nil
	}
}

func newSampler(t *testing.T, targets []string, p probe.Prober, capacity int) *Sampler {
	t.Helper()

	s, err := New(targets, p, Options{Capacity: capacity, Interval: time.Second})
	require.NoError(t, err)

	return s
}

func TestNewRequiresTargets(t *testing.T) {
	_, err := New(nil, newScripted(nil), Options{Capacity: 3})
	assert.ErrorIs(t, err, ErrNoTargets)

	_, err = New([]string{"a"}, newScripted(nil), Options{Capacity: 0})
	assert.Error(t, err)
}

func TestNewDefaults(t *testing.T) {
	s, err := New([]string{"a"}, newScripted(nil), Options{Capacity: 20})
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Equal(t, delay.DefaultScaleFloor, snap.Max)
	assert.Equal(t, time.Second, snap.Interval)
	assert.Equal(t, 20*time.Second, snap.Duration())
	assert.Equal(t, time.Second, s.timeout)
	assert.Equal(t, uint64(0), snap.Epoch)
	assert.Equal(t, [][]uint32{{}}, snap.Series)
}

func TestTwoTargetsScenario(t *testing.T) {
	p := newScripted(map[string][]int{
		"A": {10, 20, 30, 40},
		"B": {5, -1, 15, -2},
	})
	s := newSampler(t, []string{"A", "B"}, p, 3)

	for i := 0; i < 4; i++ {
		s.Tick(context.Background())
	}

	snap := s.Snapshot()
	assert.Equal(t, []string{"A", "B"}, snap.Targets)
	assert.Equal(t, []uint32{20, 30, 40}, snap.Series[0])
	assert.Equal(t, []uint32{0, 15, 0}, snap.Series[1])
	assert.Equal(t, uint32(100), snap.Max, "scale floor is not exceeded")
	assert.Equal(t, []uint64{0, 2}, snap.Failures)
	assert.Equal(t, uint64(4), snap.Epoch)

	last, ok := snap.Last(0)
	assert.True(t, ok)
	assert.Equal(t, uint32(40), last)
}

func TestTwoTargetsScenarioScale(t *testing.T) {
	p := newScripted(map[string][]int{
		"A": {10, 20, 30, 40},
		"B": {5, -1, 15, -1},
	})
	s, err := New([]string{"A", "B"}, p, Options{Capacity: 3, ScaleFloor: 1})
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		s.Tick(context.Background())
	}

	snap := s.Snapshot()
	assert.Equal(t, []uint32{20, 30, 40}, snap.Series[0])
	assert.Equal(t, []uint32{0, 15, 0}, snap.Series[1])
	assert.Equal(t, uint32(40), snap.Max)
}

func TestTickUpdatesEveryTarget(t *testing.T) {
	p := newScripted(map[string][]int{
		"A": {-1},
		"B": {25},
	})
	s := newSampler(t, []string{"A", "B"}, p, 5)

	snap := s.Tick(context.Background())
	assert.Equal(t, []uint32{0}, snap.Series[0])
	assert.Equal(t, []uint32{25}, snap.Series[1])
	assert.Equal(t, uint64(1), snap.Epoch)
}

func TestTickCountsSubMilliReplyAsSuccess(t *testing.T) {
	p := probe.Func(func(ctx context.Context, target string) (string, error) {
		return "Reply from 10.0.0.1: bytes=32 time<1ms TTL=128", nil
	})
	s := newSampler(t, []string{"lan"}, p, 3)

	s.Tick(context.Background())
	snap := s.Tick(context.Background())

	assert.Equal(t, []uint32{0, 0}, snap.Series[0])
	assert.Equal(t, []uint64{0}, snap.Failures)
}

func TestTickRunsProbesConcurrently(t *testing.T) {
	const n = 5
	var inFlight, maxInFlight int32
	release := make(chan struct{})

	p := probe.Func(func(ctx context.Context, target string) (string, error) {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if cur <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, cur) {
				break
			}
		}
		if cur == n {
			close(release)
		}

		select {
		case <-release:
		case <-ctx.Done():
		}
		atomic.AddInt32(&inFlight, -1)
		return "Reply from x: time=1ms", nil
	})

	targets := []string{"a", "b", "c", "d", "e"}
	s, err := New(targets, p, Options{Capacity: 2, Timeout: 5 * time.Second})
	require.NoError(t, err)

	snap := s.Tick(context.Background())
	assert.Equal(t, int32(n), atomic.LoadInt32(&maxInFlight))
	for i := range targets {
		assert.Equal(t, []uint32{1}, snap.Series[i])
	}
}

func TestTickAppliesProbeTimeout(t *testing.T) {
	p := probe.Func(func(ctx context.Context, target string) (string, error) {
		if target == "slow" {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "Reply from fast: time=3ms", nil
	})

	s, err := New([]string{"slow", "fast"}, p, Options{Capacity: 2, Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	snap := s.Tick(context.Background())
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, []uint32{0}, snap.Series[0])
	assert.Equal(t, []uint32{3}, snap.Series[1])
	assert.Equal(t, []uint64{1, 0}, snap.Failures)
}

func TestSnapshotIsIdempotent(t *testing.T) {
	p := newScripted(map[string][]int{"A": {1, 2, 3}})
	s := newSampler(t, []string{"A"}, p, 2)
	for i := 0; i < 3; i++ {
		s.Tick(context.Background())
	}

	first := s.Snapshot()
	second := s.Snapshot()
	assert.Equal(t, first, second)

	first.Series[0][0] = 99
	assert.Equal(t, []uint32{2, 3}, s.Snapshot().Series[0])
}

func TestSubscribe(t *testing.T) {
	p := newScripted(map[string][]int{"A": {7, 8}})
	s := newSampler(t, []string{"A"}, p, 3)

	var got []Snapshot
	s.Subscribe(func(snap Snapshot) {
		got = append(got, snap)
	})

	s.Tick(context.Background())
	s.Tick(context.Background())

	require.Len(t, got, 2)
	assert.Equal(t, []uint32{7}, got[0].Series[0])
	assert.Equal(t, []uint32{7, 8}, got[1].Series[0])
	assert.Equal(t, uint64(2), got[1].Epoch)
}

func TestRun(t *testing.T) {
	p := newScripted(map[string][]int{"A": {1, 2, 3}})
	s := newSampler(t, []string{"A"}, p, 3)

	ticks := make(chan time.Time)
	done := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		done <- s.Run(ctx, ticks)
	}()

	for i := 0; i < 3; i++ {
		ticks <- time.Now()
	}
	close(ticks)

	require.NoError(t, <-done)
	assert.Equal(t, []uint32{1, 2, 3}, s.Snapshot().Series[0])
}

func TestRunStopsOnCancel(t *testing.T) {
	s := newSampler(t, []string{"A"}, newScripted(nil), 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx, make(chan time.Time))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSnapshotDuringTick(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	p := probe.Func(func(ctx context.Context, target string) (string, error) {
		if target == "A" {
			close(started)
		}
		<-release
		return "Reply from x: time=9ms", nil
	})

	s, err := New([]string{"A", "B"}, p, Options{Capacity: 3, Timeout: 5 * time.Second})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.Tick(context.Background())
		close(done)
	}()

	<-started
	during := s.Snapshot()
	assert.Equal(t, [][]uint32{{}, {}}, during.Series, "in flight probes are not visible")
	assert.Equal(t, uint64(0), during.Epoch)

	close(release)
	<-done

	after := s.Snapshot()
	assert.Equal(t, [][]uint32{{9}, {9}}, after.Series)
}
