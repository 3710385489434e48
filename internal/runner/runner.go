// Package runner executes external processes for the pipeline's execute stage.
//
// Runner is a thin, opinionated wrapper around os/exec:
//   - starts the process in its own process group
//   - drains stdout and stderr concurrently into unbounded buffers, so a
//     process filling one pipe can't stall on the other
//   - emits a liveness signal every interval until both streams are drained
//   - waits for the exit code once both streams are done
//   - decodes captured bytes as UTF-8, replacing invalid sequences
//
// Runner has no timeout of its own. The deadline comes from the context:
// once it expires the whole process group is killed. Readers get a grace
// period to reach EOF, after that the pipes are closed, so a descendant which
// left the group can't hold the stage open. Run then reports ErrExecution.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/CZERTAINLY/runway/internal/model"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/unicode"
)

const (
	// DefaultInterval is the heartbeat period used when none is configured.
	DefaultInterval = 10 * time.Second
	// DefaultWaitDelay is how long output is still read after a kill.
	DefaultWaitDelay = 5 * time.Second
)

// HeartbeatFunc signals the enclosing orchestration that the process is still
// alive. activity.RecordHeartbeat has this signature.
type HeartbeatFunc func(ctx context.Context, details ...any)

// Command describes a process to run. It is never run through a shell.
type Command struct {
	Path string
	Args []string
	Env  []string // nil inherits the environment of the worker
	// FailOnSilentExit makes a non-zero exit without any stdout an
	// execution failure. A process which printed something is assumed to
	// have partially succeeded.
	FailOnSilentExit bool
	// Note is sent with every heartbeat
	Note string
}

// Result is the captured outcome of a finished process.
type Result struct {
	Path     string
	Args     []string
	Started  time.Time
	Stopped  time.Time
	ExitCode int
	Stdout   string
	Stderr   string
}

// ExecResult drops the process metadata
func (r Result) ExecResult() model.ExecResult {
	return model.ExecResult{
		Stdout:   r.Stdout,
		Stderr:   r.Stderr,
		ExitCode: r.ExitCode,
	}
}

// ExitError reports a process, which exited with non-zero code and produced
// no output. It matches model.ErrExecution.
type ExitError struct {
	Path     string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d. stderr: %s", e.Path, e.ExitCode, e.Stderr)
}

func (e *ExitError) Unwrap() error {
	return model.ErrExecution
}

// Runner runs commands and reports liveness while they run. The zero value
// is not usable, see NewRunner.
type Runner struct {
	interval  time.Duration
	waitDelay time.Duration
	heartbeat HeartbeatFunc
}

// NewRunner returns a Runner sending heartbeats every interval,
// DefaultInterval if interval is not positive.
func NewRunner(interval time.Duration) Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return Runner{interval: interval, waitDelay: DefaultWaitDelay}
}

// WithWaitDelay sets the grace period for reading output of a killed process.
func (r Runner) WithWaitDelay(d time.Duration) Runner {
	if d > 0 {
		r.waitDelay = d
	}
	return r
}

// WithHeartbeat sets the liveness callback, nil disables heartbeats.
func (r Runner) WithHeartbeat(heartbeat HeartbeatFunc) Runner {
	r.heartbeat = heartbeat
	return r
}

// Interval returns the heartbeat period.
func (r Runner) Interval() time.Duration {
	return r.interval
}

// Run starts the command and blocks until it exits and both output streams
// are drained. A process exiting with non-zero code is not an error unless
// Command.FailOnSilentExit is set and nothing was written to stdout.
func (r Runner) Run(ctx context.Context, proto Command) (Result, error) {
	result := Result{
		Path: proto.Path,
		Args: append([]string(nil), proto.Args...),
	}

	cmd := exec.CommandContext(ctx, proto.Path, proto.Args...)
	if proto.Env != nil {
		cmd.Env = append([]string(nil), proto.Env...)
	}
	configureProcess(cmd)
	cmd.WaitDelay = r.waitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return result, fmt.Errorf("%w: stdout pipe: %w", model.ErrExecution, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return result, fmt.Errorf("%w: stderr pipe: %w", model.ErrExecution, err)
	}

	result.Started = time.Now().UTC()
	if err := cmd.Start(); err != nil {
		result.Stopped = time.Now().UTC()
		return result, fmt.Errorf("%w: starting %s: %w", model.ErrExecution, proto.Path, err)
	}
	slog.DebugContext(ctx, "process started", "path", proto.Path, "pid", cmd.Process.Pid)

	var outBuf, errBuf bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(&outBuf, stdout)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(&errBuf, stderr)
		return err
	})
	drained := make(chan error, 1)
	go func() {
		drained <- g.Wait()
	}()

	done, drainErr := r.beat(ctx, drained, proto.Note)
	if !done {
		drainErr = r.discard(ctx, drained, proto.Path, stdout, stderr)
	}
	waitErr := cmd.Wait()
	result.Stopped = time.Now().UTC()
	result.ExitCode = cmd.ProcessState.ExitCode()
	result.Stdout = decode(outBuf.Bytes())
	result.Stderr = decode(errBuf.Bytes())

	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, fmt.Errorf("%w: %s killed: %w", model.ErrExecution, proto.Path, ctxErr)
	}
	if drainErr != nil {
		return result, fmt.Errorf("%w: reading output of %s: %w", model.ErrExecution, proto.Path, drainErr)
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		slog.WarnContext(ctx, "waiting for process", "path", proto.Path, "error", waitErr)
	}

	if result.ExitCode != 0 && proto.FailOnSilentExit && strings.TrimSpace(result.Stdout) == "" {
		return result, &ExitError{
			Path:     proto.Path,
			ExitCode: result.ExitCode,
			Stderr:   result.Stderr,
		}
	}

	if strings.TrimSpace(result.Stderr) != "" {
		slog.WarnContext(ctx, "process wrote to stderr", "path", proto.Path, "stderr", result.Stderr)
	}

	slog.InfoContext(ctx, "process finished",
		"path", proto.Path,
		"exit_code", result.ExitCode,
		"stdout_bytes", len(result.Stdout),
		"stderr_bytes", len(result.Stderr),
		"elapsed", result.Stopped.Sub(result.Started).String(),
	)
	return result, nil
}

// beat emits heartbeats until both stream readers are done or ctx ends.
// done is false when ctx ended first.
func (r Runner) beat(ctx context.Context, drained <-chan error, note string) (done bool, err error) {
	var tick <-chan time.Time
	if r.heartbeat != nil {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		if r.heartbeat != nil {
			r.heartbeat(ctx, note)
		}
		select {
		case err := <-drained:
			return true, err
		case <-ctx.Done():
			return false, nil
		case <-tick:
		}
	}
}

// discard waits up to waitDelay for the readers of a killed process, then
// closes the pipes so the readers return. Whatever was read so far is kept.
func (r Runner) discard(ctx context.Context, drained <-chan error, path string, pipes ...io.Closer) error {
	timer := time.NewTimer(r.waitDelay)
	defer timer.Stop()
	select {
	case err := <-drained:
		return err
	case <-timer.C:
	}

	slog.WarnContext(ctx, "output still open after kill, closing pipes", "path", path, "wait_delay", r.waitDelay.String())
	for _, p := range pipes {
		_ = p.Close()
	}
	return <-drained
}

func decode(b []byte) string {
	out, err := unicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "�")
	}
	return string(out)
}
