// Package orchestrator turns export requests into ordered tool invocations.
//
// An export of one clip is a single trim+scale+encode pass written straight
// to the output. An export of several clips preprocesses every clip into a
// private scratch directory with identical codec settings, then joins them
// with a stream-copy concat. Progress of every pass is mapped into its own
// window of the 0-100 scale so the caller sees one monotonic percentage.
//
// The Orchestrator itself holds no per-job state and may be used from many
// goroutines; SessionManager bounds how many exports run at once.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"splicer/command"
	"splicer/concatenator"
	"splicer/config"
	"splicer/ffmpeg"
	"splicer/ffprobe"
	"splicer/internal/logging"
	"splicer/metrics"
	"splicer/models"
	"splicer/resolver"
)

// Seconds a trim end may exceed the probed duration. Container durations
// are rounded and players report slightly shorter values.
const boundsTolerance = 0.05

// Export modes used as metric labels.
const (
	modeSingle = "single"
	modeMulti  = "multi"
)

// ExecutorFactory builds the executor for one resolved toolset.
type ExecutorFactory func(tools resolver.Toolset) ffmpeg.Executor

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the parent logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logging.WithComponent(logger, "orchestrator")
	}
}

// WithResolver replaces binary resolution.
func WithResolver(resolve func() (resolver.Toolset, error)) Option {
	return func(o *Orchestrator) {
		o.resolve = resolve
	}
}

// WithExecutorFactory replaces the process runner.
func WithExecutorFactory(factory ExecutorFactory) Option {
	return func(o *Orchestrator) {
		o.newExecutor = factory
	}
}

// Orchestrator runs exports and the single-invocation operations.
type Orchestrator struct {
	cfg         *config.Config
	logger      zerolog.Logger
	resolve     func() (resolver.Toolset, error)
	newExecutor ExecutorFactory
}

// New creates an Orchestrator. A nil cfg means config.DefaultConfig().
func New(cfg *config.Config, opts ...Option) *Orchestrator {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	o := &Orchestrator{
		cfg:    cfg,
		logger: logging.WithComponent(logging.Nop(), "orchestrator"),
	}
	o.resolve = resolver.New(cfg.Tools.BundleDir).ResolveTools
	o.newExecutor = func(tools resolver.Toolset) ffmpeg.Executor {
		return ffmpeg.NewRunner(tools,
			ffmpeg.WithLogger(o.logger),
			ffmpeg.WithThrottle(cfg.Progress.Throttle),
		)
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Config returns the configuration the orchestrator was built with.
func (o *Orchestrator) Config() *config.Config {
	return o.cfg
}

// executor resolves the tools once and returns an executor bound to them.
func (o *Orchestrator) executor() (ffmpeg.Executor, resolver.Toolset, error) {
	tools, err := o.resolve()
	if err != nil {
		return nil, resolver.Toolset{}, err
	}
	return o.newExecutor(tools), tools, nil
}

// Export runs req to completion as a fresh job.
func (o *Orchestrator) Export(ctx context.Context, req models.ExportRequest, sink models.ProgressFunc) error {
	return o.Run(ctx, NewJob(req), sink)
}

// ExportSingle exports one clip with a single invocation.
func (o *Orchestrator) ExportSingle(ctx context.Context, clip models.ClipExportInfo, output string, resolution models.Resolution, sink models.ProgressFunc) error {
	return o.Export(ctx, models.ExportRequest{
		Clips:      []models.ClipExportInfo{clip},
		Output:     output,
		Resolution: resolution,
	}, sink)
}

// ExportMulti preprocesses clips and concatenates them. At least two clips
// are required; use Export to dispatch on the clip count.
func (o *Orchestrator) ExportMulti(ctx context.Context, clips []models.ClipExportInfo, output string, resolution models.Resolution, sink models.ProgressFunc) error {
	if len(clips) < 2 {
		return models.Invalidf("export", "multi-clip export needs at least 2 clips, got %d", len(clips))
	}
	return o.Export(ctx, models.ExportRequest{
		Clips:      clips,
		Output:     output,
		Resolution: resolution,
	}, sink)
}

// Run executes job and leaves it in a terminal state. The scratch
// directory is removed on every path; on failure or cancellation a
// partially written output is removed too.
func (o *Orchestrator) Run(ctx context.Context, job *Job, sink models.ProgressFunc) (err error) {
	const op = "export"

	if state := job.State(); state != StateCreated {
		return models.Invalidf(op, "job %s already %s", job.ID, state)
	}

	req := job.Request
	mode := modeSingle
	if len(req.Clips) > 1 {
		mode = modeMulti
	}
	logger := logging.WithJobID(o.logger, job.ID)
	started := time.Now()

	metrics.ExportsInFlight.Inc()
	defer metrics.ExportsInFlight.Dec()

	var scratch string
	outputStarted := false

	defer func() {
		if scratch != "" {
			if rmErr := os.RemoveAll(scratch); rmErr != nil {
				cleanupErr := models.NewError(models.KindCleanupFailed, "remove scratch", rmErr)
				metrics.CleanupFailuresTotal.Inc()
				logger.Warn().Err(cleanupErr).Str("dir", scratch).Msg("Failed to remove scratch directory")
			}
		}
		if err != nil && ctx.Err() != nil && !errors.Is(err, models.ErrCancelled) {
			err = models.NewError(models.KindCancelled, op, err)
		}
		if err != nil && outputStarted {
			if rmErr := os.Remove(req.Output); rmErr != nil && !os.IsNotExist(rmErr) {
				logger.Warn().Err(rmErr).Str("output", req.Output).Msg("Failed to remove partial output")
			}
		}

		job.finish(err)

		outcome := outcomeOf(err)
		metrics.ObserveExport(mode, outcome, time.Since(started))
		event := logger.Info()
		if err != nil {
			event = logger.Warn().Err(err)
		}
		event.Str("mode", mode).
			Str("outcome", outcome).
			Int("clips", len(req.Clips)).
			Dur("elapsed", time.Since(started)).
			Msg("Export finished")
	}()

	if err = req.Validate(); err != nil {
		return err
	}
	resolution, err := models.ParseResolution(string(req.Resolution))
	if err != nil {
		return err
	}

	exec, _, err := o.executor()
	if err != nil {
		return err
	}

	srcW, srcH, err := o.validateSources(ctx, exec, req, resolution)
	if err != nil {
		return err
	}
	width, height := resolution.Dimensions(srcW, srcH)

	if err = os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return models.Invalidf(op, "cannot create output directory: %v", err)
	}
	if err = os.MkdirAll(o.cfg.ScratchDir, 0o755); err != nil {
		return models.Invalidf(op, "cannot create scratch root: %v", err)
	}
	scratch, err = os.MkdirTemp(o.cfg.ScratchDir, "job-"+job.ID+"-*")
	if err != nil {
		return models.Invalidf(op, "cannot create scratch directory: %v", err)
	}
	job.start(scratch)

	logger.Info().
		Str("mode", mode).
		Int("clips", len(req.Clips)).
		Str("resolution", resolution.String()).
		Int("width", width).
		Int("height", height).
		Str("output", logging.SanitizePath(req.Output)).
		Msg("Export started")

	progress := monotonic(func(percent int) {
		job.setProgress(percent)
		if sink != nil {
			sink(percent)
		}
	})

	if mode == modeSingle {
		return o.runSingle(ctx, exec, job, width, height, &outputStarted, progress)
	}
	return o.runMulti(ctx, exec, job, scratch, width, height, &outputStarted, progress)
}

func (o *Orchestrator) runSingle(ctx context.Context, exec ffmpeg.Executor, job *Job, width, height int, outputStarted *bool, progress models.ProgressFunc) error {
	clip := job.Request.Clips[0]
	job.setState(StatePreprocessing, 0)

	spec, err := o.clipSpec(clip, job.Request.Output, width, height, job.Request.Fill)
	if err != nil {
		return err
	}

	*outputStarted = true
	_, err = exec.RunWithProgress(ctx, spec, clip.Duration(), models.FullWindow, progress)
	return err
}

func (o *Orchestrator) runMulti(ctx context.Context, exec ffmpeg.Executor, job *Job, scratch string, width, height int, outputStarted *bool, progress models.ProgressFunc) error {
	clips := job.Request.Clips

	durations := make([]float64, len(clips))
	for i := range clips {
		durations[i] = clips[i].Duration()
	}
	windows, concatWindow, err := Allocate(durations)
	if err != nil {
		return models.NewError(models.KindInvalidInput, "allocate progress", err)
	}

	results := make([]*models.ClipResult, 0, len(clips))
	for i, clip := range clips {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.NewError(models.KindCancelled, "export", ctxErr)
		}
		job.setState(StatePreprocessing, i)

		out := filepath.Join(scratch, fmt.Sprintf("clip_%03d.mp4", i))
		spec, err := o.clipSpec(clip, out, width, height, job.Request.Fill)
		if err != nil {
			return fmt.Errorf("clip %d: %w", i, err)
		}
		if _, err := exec.RunWithProgress(ctx, spec, clip.Duration(), windows[i], progress); err != nil {
			return fmt.Errorf("clip %d: %w", i, err)
		}
		metrics.ClipsPreprocessedTotal.Inc()

		result, err := models.NewClipResult(i, out, clip.Duration())
		if err != nil {
			return models.NewError(models.KindOutputValidation, "preprocess", err)
		}
		results = append(results, result)
	}

	job.setState(StateConcatenating, len(clips)-1)
	*outputStarted = true
	return concatenator.NewConcatenator(exec, scratch).
		Concatenate(ctx, results, job.Request.Output, concatWindow, progress)
}

// clipSpec builds the normalizing pass for one clip: every clip of a job
// gets the same frame size, pixel format and codecs so the concat can copy.
func (o *Orchestrator) clipSpec(clip models.ClipExportInfo, output string, width, height int, fill bool) (command.Spec, error) {
	b := command.NewBuilder().
		WithCodecs(o.cfg.Encode.Codecs()).
		Trim(clip.TrimStart, clip.Duration())
	if fill {
		b.ScaleFill(width, height)
	} else {
		b.ScaleFit(width, height)
	}
	if clip.Muted {
		b.Mute()
	} else if clip.Volume != nil {
		b.Volume(*clip.Volume)
	}
	return b.Encode("", -1).
		WithProgress().
		Build([]string{clip.SourcePath}, output)
}

// validateSources checks every clip source exists and, when bounds
// validation is enabled, that no trim ends past its source. It returns
// the first clip's frame size when known.
func (o *Orchestrator) validateSources(ctx context.Context, exec ffmpeg.Executor, req models.ExportRequest, resolution models.Resolution) (int, int, error) {
	const op = "validate export"

	for i := range req.Clips {
		info, err := os.Stat(req.Clips[i].SourcePath)
		if err != nil {
			return 0, 0, models.Invalidf(op, "clip %d: source %s: %v", i, req.Clips[i].SourcePath, err)
		}
		if info.IsDir() {
			return 0, 0, models.Invalidf(op, "clip %d: source %s is a directory", i, req.Clips[i].SourcePath)
		}
	}

	prober := ffprobe.NewProber(exec)
	probed := make(map[string]*ffprobe.Metadata)
	probe := func(path string) (*ffprobe.Metadata, error) {
		if md, ok := probed[path]; ok {
			return md, nil
		}
		md, err := prober.ProbeMetadata(ctx, path)
		if err != nil {
			return nil, err
		}
		probed[path] = md
		return md, nil
	}

	if o.cfg.ValidateBounds {
		for i, clip := range req.Clips {
			md, err := probe(clip.SourcePath)
			if err != nil {
				return 0, 0, fmt.Errorf("clip %d: %w", i, err)
			}
			if !(clip.TrimEnd <= md.Duration+boundsTolerance) {
				return 0, 0, models.Invalidf(op, "clip %d: trim end %.3fs is past the source duration %.3fs",
					i, clip.TrimEnd, md.Duration)
			}
		}
	}

	if resolution != models.ResolutionSource {
		return 0, 0, nil
	}
	md, err := probe(req.Clips[0].SourcePath)
	if err != nil {
		return 0, 0, fmt.Errorf("clip 0: %w", err)
	}
	return md.Width, md.Height, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.StatusSuccess
	case models.KindOf(err) == models.KindCancelled:
		return metrics.StatusCancelled
	}
	return metrics.StatusFailed
}
