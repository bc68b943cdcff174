package capture

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"radiocap/internal/procgroup"
	"radiocap/internal/services"
)

// Executor abstracts subprocess execution for testability. Run blocks until
// the process exits or ctx is done; cancellation must stop the process and
// every child it spawned before Run returns.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onOutput func(string)) error
}

// Option configures the Manager.
type Option func(*Manager)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(m *Manager) {
		if exec != nil {
			m.exec = exec
		}
	}
}

// WithClock overrides the time source used for session timing.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// processExecutor runs tools in their own process group and escalates from
// SIGTERM to SIGKILL after grace when ctx ends.
type processExecutor struct {
	grace time.Duration
}

// NewProcessExecutor returns the executor used for real tool runs.
func NewProcessExecutor(grace time.Duration) Executor {
	return processExecutor{grace: grace}
}

func (e processExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	cmd := exec.Command(binary, args...) //nolint:gosec
	procgroup.Set(cmd)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrToolLaunch, "capture", "start", binary, err)
	}

	var wg sync.WaitGroup
	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			if onOutput != nil {
				onOutput(scanner.Text())
			}
		}
	}
	wg.Add(2)
	go scan(stdout)
	go scan(stderr)

	waitCh := make(chan error, 1)
	go func() {
		wg.Wait()
		waitCh <- cmd.Wait()
	}()

	select {
	case err := <-waitCh:
		if err != nil {
			return fmt.Errorf("%s: %w", binary, err)
		}
		return nil
	case <-ctx.Done():
		_ = procgroup.Terminate(cmd, waitCh, e.grace)
		return context.Cause(ctx)
	}
}
