package dispatch

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/modelrelay/modelrelay/internal/llmerr"
)

// ProcessRunner executes one external tool invocation. Injected so tests
// can substitute the spawn path.
type ProcessRunner interface {
	// Run spawns executable with args, stdin closed, and returns captured
	// stdout and stderr. The timeout is a hard deadline that kills the
	// process.
	Run(ctx context.Context, executable string, args []string, timeout time.Duration) (stdout, stderr []byte, err error)
}

// supervisedRunner owns the subprocess lifecycle: a cancellation deadline
// and a one-shot completion flag so the timeout path and the natural exit
// path cannot both resolve the same call.
type supervisedRunner struct {
	logger *zap.Logger
}

func (r *supervisedRunner) Run(ctx context.Context, executable string, args []string, timeout time.Duration) ([]byte, []byte, error) {
	cmd := exec.Command(executable, args...)
	// Stdin left nil: the child reads from the null device, never blocks
	// waiting for input.
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, nil, llmerr.New(llmerr.KindProcessNotFound,
				"executable not found: "+executable, err)
		}
		return nil, nil, llmerr.New(llmerr.KindProcessNotFound,
			"failed to start "+executable, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	// resolved flips exactly once; whichever path wins owns the outcome.
	var resolved atomic.Bool
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case waitErr := <-done:
		if !resolved.CompareAndSwap(false, true) {
			break
		}
		if waitErr != nil {
			var exitErr *exec.ExitError
			if errors.As(waitErr, &exitErr) {
				return stdout.Bytes(), stderr.Bytes(), llmerr.New(llmerr.KindServer,
					"process exited with non-zero status", waitErr).
					WithDetail("exit_code", exitErr.ExitCode())
			}
			return stdout.Bytes(), stderr.Bytes(), llmerr.New(llmerr.KindServer,
				"process failed", waitErr)
		}
		return stdout.Bytes(), stderr.Bytes(), nil

	case <-timer.C:
		if resolved.CompareAndSwap(false, true) {
			r.logger.Warn("killing timed-out process",
				zap.String("executable", executable),
				zap.Duration("timeout", timeout))
			_ = cmd.Process.Kill()
		}
		<-done // reap
		return stdout.Bytes(), stderr.Bytes(), llmerr.New(llmerr.KindProcessTimeout,
			"process exceeded hard timeout", nil).
			WithDetail("timeout", timeout.String())

	case <-ctx.Done():
		if resolved.CompareAndSwap(false, true) {
			_ = cmd.Process.Kill()
		}
		<-done // reap
		return stdout.Bytes(), stderr.Bytes(), llmerr.New(llmerr.KindProcessTimeout,
			"call canceled while process was running", ctx.Err())
	}

	return stdout.Bytes(), stderr.Bytes(), llmerr.New(llmerr.KindInternal,
		"process resolved twice", nil)
}
