package probe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"runtime"
	"strconv"
	"time"
)

// Command runs the system ping utility once per probe.
type Command struct {
	// Path is the ping binary, looked up in PATH if not absolute.
	Path string
	// Wait is passed to the utility as its reply timeout.
	Wait time.Duration
	// GOOS selects the flavour of command line arguments.
	GOOS string
}

// NewCommand returns a Command for the current platform.
func NewCommand(path string, wait time.Duration) *Command {
	if path == "" {
		path = "ping"
	}

	return &Command{
		Path: path,
		Wait: wait,
		GOOS: runtime.GOOS,
	}
}

// Probe implements Prober.
func (c *Command) Probe(ctx context.Context, target string) (string, error) {
	cmd := exec.CommandContext(ctx, c.Path, c.args(target)...)
	cmd.WaitDelay = time.Second

	out, err := cmd.Output()

	return result(ctx, target, out, err)
}

// result maps the outcome of a ping run to the probe result. Output of a run
// that completed is kept even if ctx expired right after it.
func result(ctx context.Context, target string, out []byte, err error) (string, error) {
	if err == nil {
		return string(out), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", fmt.Errorf("ping %s: %w", target, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// ping exits non-zero when no reply was received, the output is
		// still a valid result without any reply line
		return string(out), nil
	}

	return "", fmt.Errorf("ping %s: %w", target, err)
}

func (c *Command) args(target string) []string {
	count := "-c"
	wait := strconv.Itoa(int(math.Max(1, math.Ceil(c.Wait.Seconds()))))

	if c.GOOS == "windows" {
		count = "-n"
		wait = strconv.FormatInt(max(1, c.Wait.Milliseconds()), 10)
	}

	return []string{count, "1", "-w", wait, target}
}
