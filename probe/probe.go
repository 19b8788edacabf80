// Package probe performs single latency measurements against a target.
package probe

import (
	"context"
)

// Prober sends exactly one echo request to target and returns the textual
// result of the attempt. An error is returned if the attempt could not be
// started, timed out or was killed. Resources used by the attempt are
// released before Probe returns.
type Prober interface {
	Probe(ctx context.Context, target string) (string, error)
}

// Func adapts an ordinary function to the Prober interface.
type Func func(ctx context.Context, target string) (string, error)

// Probe calls f(ctx, target).
func (f Func) Probe(ctx context.Context, target string) (string, error) {
	return f(ctx, target)
}
