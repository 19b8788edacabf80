// Package sampler drives the probing of all targets on a fixed cadence and
// keeps the recent delays of every target.
package sampler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/czerwonk/delay_tracker/delay"
	"github.com/czerwonk/delay_tracker/probe"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrNoTargets is returned by New if the target list is empty.
var ErrNoTargets = errors.New("at least one target is required")

// Parser extracts the delay from the raw result of a probe.
type Parser interface {
	Parse(raw string) (uint32, bool)
}

// Options configures a Sampler.
type Options struct {
	// Capacity is the number of samples kept per target.
	Capacity int
	// Interval is the time between two ticks. It is used for the time axis
	// of the chart only, the cadence is set by the tick source passed to Run.
	Interval time.Duration
	// Timeout bounds every single probe. Defaults to Interval.
	Timeout time.Duration
	// ScaleFloor is the initial scale maximum.
	ScaleFloor uint32
	// Parser defaults to delay.WindowsFormat.
	Parser Parser
}

// Sampler probes all targets once per tick and commits the results into the
// per target windows. Tick is the only writer, Snapshot may be called
// concurrently from any goroutine.
type Sampler struct {
	targets  []string
	prober   probe.Prober
	parser   Parser
	timeout  time.Duration
	interval time.Duration

	mu       sync.RWMutex
	windows  []*delay.Window
	scale    *delay.Scale
	epoch    uint64
	failures []uint64
	failing  []bool

	subMu       sync.Mutex
	subscribers []func(Snapshot)
}

type result struct {
	raw string
	err error
}

// New creates a sampler for targets. The order of targets is the order of the
// series in every snapshot.
func New(targets []string, prober probe.Prober, opts Options) (*Sampler, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}
	if opts.Capacity < 1 {
		return nil, errors.New("capacity must be greater than 0")
	}

	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = opts.Interval
	}
	if opts.ScaleFloor == 0 {
		opts.ScaleFloor = delay.DefaultScaleFloor
	}
	if opts.Parser == nil {
		opts.Parser = delay.WindowsFormat
	}

	s := &Sampler{
		targets:  append([]string(nil), targets...),
		prober:   prober,
		parser:   opts.Parser,
		timeout:  opts.Timeout,
		interval: opts.Interval,
		windows:  make([]*delay.Window, len(targets)),
		scale:    delay.NewScale(opts.ScaleFloor),
		failures: make([]uint64, len(targets)),
		failing:  make([]bool, len(targets)),
	}
	for i := range s.windows {
		s.windows[i] = delay.NewWindow(opts.Capacity)
	}

	return s, nil
}

// Subscribe registers fn to be called with the snapshot of every committed
// tick. fn is called on the sampling goroutine and must not block.
func (s *Sampler) Subscribe(fn func(Snapshot)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.subscribers = append(s.subscribers, fn)
}

// Run performs a tick for every value received from ticks until ctx is done.
func (s *Sampler) Run(ctx context.Context, ticks <-chan time.Time) error {
	log.Infof("Sampling %d targets (interval=%s, timeout=%s, history=%d)",
		len(s.targets), s.interval, s.timeout, s.windows[0].Cap())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ticks:
			if !ok {
				return nil
			}
			s.Tick(ctx)
		}
	}
}

// Tick probes all targets concurrently, waits for every probe to finish and
// commits the results. Failed or unparseable probes are recorded as 0.
func (s *Sampler) Tick(ctx context.Context) Snapshot {
	results := s.probeAll(ctx)
	snap := s.commit(results)

	s.subMu.Lock()
	subs := s.subscribers
	s.subMu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}

	return snap
}

func (s *Sampler) probeAll(ctx context.Context) []result {
	results := make([]result, len(s.targets))

	var g errgroup.Group
	for i, target := range s.targets {
		i, target := i, target
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			raw, err := s.prober.Probe(pctx, target)
			results[i] = result{raw: raw, err: err}

			// per target failures must not affect the others
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *Sampler) commit(results []result) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range results {
		d, ok := s.sample(i, r)
		if !ok {
			s.failures[i]++
		}

		s.windows[i].Push(d)
		s.scale.Observe(d)
	}
	s.epoch++

	log.Debugf("Committed tick %d (scale=%dms)", s.epoch, s.scale.Current())

	return s.snapshot()
}

func (s *Sampler) sample(i int, r result) (uint32, bool) {
	target := s.targets[i]

	if r.err != nil {
		s.reportFailure(i, "probe of %s failed: %v", target, r.err)
		return 0, false
	}

	d, ok := s.parser.Parse(r.raw)
	if !ok {
		s.reportFailure(i, "no reply from %s", target)
		return 0, false
	}

	if s.failing[i] {
		log.Infof("%s is replying again", target)
		s.failing[i] = false
	}

	log.Debugf("%s: %dms", target, d)
	return d, true
}

func (s *Sampler) reportFailure(i int, format string, args ...interface{}) {
	if s.failing[i] {
		log.Debugf(format, args...)
		return
	}

	log.Warnf(format, args...)
	s.failing[i] = true
}
