// Package ffmpeg runs ffmpeg and ffprobe invocations as child processes and
// turns their progress output into overall percentages.
package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"splicer/command"
	"splicer/internal/logging"
	"splicer/metrics"
	"splicer/models"
	"splicer/resolver"
)

const (
	maxStderrBytes  = 16 * 1024 // Tail of stderr kept for diagnostics
	maxLineBytes    = 1024 * 1024
	waitDelay       = 5 * time.Second
	eventBufferSize = 64
)

// Executor runs resolved invocations. The orchestrator depends on this
// interface so tests can substitute a fake.
type Executor interface {
	// Run executes spec and captures its stdout and a bounded stderr tail.
	Run(ctx context.Context, spec command.Spec) (*Output, error)

	// RunWithProgress executes spec and reports overall progress inside
	// window to sink. totalSeconds is the expected output duration.
	RunWithProgress(ctx context.Context, spec command.Spec, totalSeconds float64, window models.ProgressWindow, sink models.ProgressFunc) (*Output, error)
}

// Output is the result of one finished invocation.
type Output struct {
	Stdout     []byte
	StderrTail string
	ExitCode   int
	Duration   time.Duration
}

// Runner is the process-backed Executor.
type Runner struct {
	tools       resolver.Toolset
	logger      zerolog.Logger
	throttle    time.Duration
	stderrLimit int
	parser      *ProgressParser
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Runner) {
		r.logger = logging.WithComponent(logger, "runner")
	}
}

// WithThrottle coalesces progress values closer together than d.
// The last value of a phase is always delivered.
func WithThrottle(d time.Duration) Option {
	return func(r *Runner) {
		r.throttle = d
	}
}

// WithStderrLimit sets how many trailing stderr bytes are kept.
func WithStderrLimit(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.stderrLimit = n
		}
	}
}

// NewRunner creates a Runner for the given resolved tools.
func NewRunner(tools resolver.Toolset, opts ...Option) *Runner {
	r := &Runner{
		tools:       tools,
		logger:      logging.Nop(),
		stderrLimit: maxStderrBytes,
		parser:      NewProgressParser(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes spec without progress reporting.
func (r *Runner) Run(ctx context.Context, spec command.Spec) (*Output, error) {
	return r.run(ctx, spec, nil)
}

// RunWithProgress executes spec and delivers overall percentages to sink.
//
// One goroutine owns the stderr stream: it splits lines, keeps the
// diagnostic tail and pushes mapped values over a channel. A second
// goroutine hands those values to sink. Values are non-decreasing and never
// repeated. On success the window end is always delivered last.
func (r *Runner) RunWithProgress(ctx context.Context, spec command.Spec, totalSeconds float64, window models.ProgressWindow, sink models.ProgressFunc) (*Output, error) {
	if err := window.Validate(); err != nil {
		return nil, models.NewError(models.KindInvalidInput, "run "+spec.Tool, err)
	}
	if sink == nil {
		sink = func(int) {}
	}
	return r.run(ctx, spec, &progressRun{
		tracker: NewTracker(totalSeconds, window),
		window:  window,
		sink:    sink,
	})
}

type progressRun struct {
	tracker *Tracker
	window  models.ProgressWindow
	sink    models.ProgressFunc
}

func (r *Runner) run(ctx context.Context, spec command.Spec, progress *progressRun) (*Output, error) {
	op := fmt.Sprintf("run %s %s", spec.Tool, spec.Task)
	logger := r.logger.With().
		Str(logging.FieldTool, spec.Tool).
		Str(logging.FieldTask, string(spec.Task)).
		Logger()

	path := r.tools.Path(spec.Tool)
	if path == "" {
		return nil, models.NewError(models.KindBinaryNotFound, op, fmt.Errorf("%s has not been resolved", spec.Tool))
	}
	if err := ctx.Err(); err != nil {
		return nil, models.NewError(models.KindCancelled, op, err)
	}

	// #nosec G204 - path comes from the resolver, args from the command builder
	cmd := exec.CommandContext(ctx, path, spec.Argv()...)
	cmd.WaitDelay = waitDelay

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	tail := newTailBuffer(r.stderrLimit)

	var pr *io.PipeReader
	var pw *io.PipeWriter
	if progress == nil {
		cmd.Stderr = tail
	} else {
		pr, pw = io.Pipe()
		cmd.Stderr = pw
	}

	logger.Debug().Str("cmd", spec.String()).Msg("starting process")

	start := time.Now()
	if err := cmd.Start(); err != nil {
		if pw != nil {
			pw.Close()
		}
		metrics.ObserveTool(string(spec.Task), metrics.StatusFailed, time.Since(start))
		logger.Error().Err(err).Str("path", path).Msg("process failed to start")
		return nil, models.NewExecutionError(op, "", fmt.Errorf("failed to start %s: %w", spec.Tool, err))
	}

	var wg sync.WaitGroup
	if progress != nil {
		events := make(chan int, eventBufferSize)
		wg.Add(2)
		go func() {
			defer wg.Done()
			defer close(events)
			r.readProgress(pr, tail, progress.tracker, events, logger)
		}()
		go func() {
			defer wg.Done()
			for percent := range events {
				progress.sink(percent)
			}
		}()
	}

	waitErr := cmd.Wait()
	if pw != nil {
		pw.Close()
	}
	wg.Wait()
	elapsed := time.Since(start)

	out := &Output{
		Stdout:     stdout.Bytes(),
		StderrTail: tail.String(),
		ExitCode:   exitCode(waitErr),
		Duration:   elapsed,
	}

	if progress != nil {
		if n := progress.tracker.Anomalies(); n > 0 {
			metrics.ProgressParseAnomalies.Add(float64(n))
			logger.Debug().Int("anomalies", n).Msg("ignored progress anomalies")
		}
		logger.Debug().Str("summary", progress.tracker.Progress().FormatSummary()).Msg("progress stats")
	}

	switch {
	case waitErr != nil && ctx.Err() != nil:
		metrics.ObserveTool(string(spec.Task), metrics.StatusCancelled, elapsed)
		logger.Warn().Dur("duration", elapsed).Msg("process cancelled")
		return out, models.NewError(models.KindCancelled, op, ctx.Err())

	case waitErr != nil:
		metrics.ObserveTool(string(spec.Task), metrics.StatusFailed, elapsed)
		logger.Error().
			Err(waitErr).
			Int("exit_code", out.ExitCode).
			Dur("duration", elapsed).
			Str("stderr_tail", truncate(out.StderrTail, 512)).
			Str("cmd", spec.String()).
			Msg("process failed")
		return out, models.NewExecutionError(op, out.StderrTail, waitErr)
	}

	if err := validateOutput(spec.Output); err != nil {
		metrics.ObserveTool(string(spec.Task), metrics.StatusFailed, elapsed)
		logger.Error().Err(err).Msg("output validation failed")
		return out, models.NewError(models.KindOutputValidation, op, err)
	}

	metrics.ObserveTool(string(spec.Task), metrics.StatusSuccess, elapsed)
	logger.Info().
		Int("exit_code", 0).
		Dur("duration", elapsed).
		Str("output", logging.SanitizePath(spec.Output)).
		Msg("process finished")

	if progress != nil && progress.tracker.Last() < progress.window.End() {
		progress.sink(progress.window.End())
	}
	return out, nil
}

// readProgress consumes the whole stderr stream. It must drain the pipe even
// after the scanner gives up, or the child blocks on a full pipe.
func (r *Runner) readProgress(stderr io.Reader, tail *tailBuffer, tracker *Tracker, events chan<- int, logger zerolog.Logger) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	scanner.Split(ScanProgressLines)

	var lastSent time.Time
	pending := -1

	for scanner.Scan() {
		line := scanner.Text()
		kind := r.parser.ParseLine(line, tracker.Progress())
		if kind == LineIgnored && !isProgressKey(line) && strings.TrimSpace(line) != "" {
			tail.Write([]byte(line + "\n"))
		}
		if kind == LineMalformed {
			logger.Debug().Str("line", line).Msg("malformed progress line")
		}

		percent, ok := tracker.Observe(kind)
		if !ok {
			continue
		}
		now := time.Now()
		if kind == LineEnd || r.throttle <= 0 || now.Sub(lastSent) >= r.throttle {
			events <- percent
			lastSent = now
			pending = -1
			continue
		}
		pending = percent
	}
	if pending >= 0 {
		events <- pending
	}
	if err := scanner.Err(); err != nil {
		logger.Debug().Err(err).Msg("stopped parsing progress")
		io.Copy(io.Discard, stderr)
	}
}

// progressKeys are the -progress keys that never belong in the diagnostic tail.
var progressKeys = map[string]bool{
	"frame": true, "fps": true, "bitrate": true, "total_size": true,
	"out_time_us": true, "out_time_ms": true, "out_time": true,
	"dup_frames": true, "drop_frames": true, "speed": true, "progress": true,
}

func isProgressKey(line string) bool {
	key, _, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return false
	}
	return progressKeys[key] || strings.HasPrefix(key, "stream_")
}

func validateOutput(path string) error {
	if path == "" || path == "-" || strings.HasPrefix(path, "pipe:") {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("output %s was not created: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("output %s is a directory", path)
	}
	return nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// tailBuffer is an io.Writer that keeps only the last limit bytes.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{buf: make([]byte, 0, limit), limit: limit}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(p)
	if n >= t.limit {
		t.buf = append(t.buf[:0], p[n-t.limit:]...)
		return n, nil
	}
	if overflow := len(t.buf) + n - t.limit; overflow > 0 {
		t.buf = append(t.buf[:0], t.buf[overflow:]...)
	}
	t.buf = append(t.buf, p...)
	return n, nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
