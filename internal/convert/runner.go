package convert

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
)

// WithLogger sets the logger for the runner
func WithLogger(logger *slog.Logger) func(r *Runner) {
	return func(r *Runner) {
		r.logger = logger.With(slog.String("runtime", filepath.Base(r.binPath)))
	}
}

// Runner executes an external conversion tool, streaming its stdout to a
// writer and logging its stderr.
type Runner struct {
	binPath string
	logger  *slog.Logger
}

// NewRunner finds the runtime binary and returns a Runner with a discard logger
func NewRunner(runtime string, options ...func(r *Runner)) (*Runner, error) {
	binPath, err := FindRuntime(runtime)
	if err != nil {
		return nil, err
	}
	return NewRunnerWithPath(binPath, options...), nil
}

// NewRunnerWithPath returns a Runner for a known binary path
func NewRunnerWithPath(binPath string, options ...func(r *Runner)) *Runner {
	r := Runner{
		binPath: binPath,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&r)
	}

	return &r
}

// Path returns the binary path
func (r *Runner) Path() string {
	return r.binPath
}

// Run runs the tool with args and copies its stdout into w. Every non-empty
// stderr line is logged at WARN level.
func (r *Runner) Run(ctx context.Context, w io.Writer, args ...string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.binPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("error creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("error creating stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		return fmt.Errorf("error starting command: %w", err)
	}

	r.logger.Debug("command started", slog.Any("args", args))

	done := make(chan error, 2) // expects two results from the pipe readers

	go r.handleStdout(stdout, w, done)
	go r.handleStderr(stderr, done)

	var errs []error
	for i := 0; i < cap(done); i++ {
		if err := <-done; err != nil {
			cancel() // stop the command, nobody reads its output anymore
			errs = append(errs, err)
		}
	}

	// pipes must be drained before Wait closes them
	if err := cmd.Wait(); err != nil {
		errs = append(errs, fmt.Errorf("command exited with error: %w", err))
	}

	if len(errs) > 0 {
		err := errors.Join(errs...)
		r.logger.Error(err.Error(), slog.Any("args", args))
		return err
	}

	r.logger.Debug("command finished", slog.Any("args", args))
	return nil
}

// Output runs the tool and returns its stdout
func (r *Runner) Output(ctx context.Context, args ...string) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Run(ctx, &buf, args...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// handleStdout copies stdout into w
func (r *Runner) handleStdout(stdout io.Reader, w io.Writer, done chan<- error) {
	if _, err := io.Copy(w, stdout); err != nil && !errors.Is(err, fs.ErrClosed) {
		done <- fmt.Errorf("%w: error reading stdout: %w", ErrBrokenPipe, err)
		return
	}

	done <- nil
}

// handleStderr reads from stderr and logs errors.
func (r *Runner) handleStderr(stderr io.Reader, done chan<- error) {
	name := filepath.Base(r.binPath)

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		r.logger.Warn(fmt.Sprintf("%s >> %s", name, line))
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		done <- fmt.Errorf("%w: error reading stderr: %w", ErrBrokenPipe, err)
		return
	}

	done <- nil
}
