package orchestrator

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"splicer/command"
	"splicer/command/audio"
	"splicer/command/mixing"
	"splicer/ffmpeg"
	"splicer/ffprobe"
	"splicer/internal/logging"
	"splicer/metrics"
	"splicer/models"
)

// TrimRequest cuts [Start, End) of Input into Output.
type TrimRequest struct {
	Input  string   `json:"input"`
	Output string   `json:"output"`
	Start  float64  `json:"start"`
	End    float64  `json:"end"`
	Volume *float64 `json:"volume,omitempty"`
	Muted  bool     `json:"muted,omitempty"`
}

// ThumbnailRequest grabs one frame of Input. A nil Timestamp starts the
// fallback sequence at 1s; an empty Output writes into the thumbnail dir.
type ThumbnailRequest struct {
	Input     string   `json:"input"`
	Output    string   `json:"output,omitempty"`
	Timestamp *float64 `json:"timestamp,omitempty"`
}

// AudioRequest extracts the audio track of Input. End 0 means to the end.
type AudioRequest struct {
	Input  string  `json:"input"`
	Output string  `json:"output,omitempty"`
	Start  float64 `json:"start,omitempty"`
	End    float64 `json:"end,omitempty"`
}

// ComposeRequest combines several inputs into one frame.
type ComposeRequest struct {
	Inputs   []string      `json:"inputs"`
	Output   string        `json:"output"`
	Layout   mixing.Layout `json:"layout"`
	Width    int           `json:"width,omitempty"`
	Height   int           `json:"height,omitempty"`
	Corner   mixing.Corner `json:"corner,omitempty"`
	Start    float64       `json:"start,omitempty"`
	Duration float64       `json:"duration,omitempty"`
	Volume   *float64      `json:"volume,omitempty"`
}

// ConvertRequest re-encodes Input into an H.264 file most players accept.
// With no size the frame is only rounded down to even dimensions; with both
// sides it is letterboxed into Width x Height, or cropped to cover it when
// Fill is set.
type ConvertRequest struct {
	Input  string `json:"input"`
	Output string `json:"output"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Fill   bool   `json:"fill,omitempty"`
}

// ToolInfo describes one resolved binary.
type ToolInfo struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Version string `json:"version"`
}

// Probe returns normalized metadata for path.
func (o *Orchestrator) Probe(ctx context.Context, path string) (*ffprobe.Metadata, error) {
	exec, _, err := o.executor()
	if err != nil {
		return nil, err
	}
	return ffprobe.NewProber(exec).ProbeMetadata(ctx, path)
}

// Trim cuts a range without re-encoding, unless a volume change forces the
// audio to be re-encoded.
func (o *Orchestrator) Trim(ctx context.Context, req TrimRequest, sink models.ProgressFunc) error {
	cmd, err := o.trimCommand(req)
	if err != nil {
		return err
	}
	if err := requireFile("trim", req.Input); err != nil {
		return err
	}
	exec, _, err := o.executor()
	if err != nil {
		return err
	}
	return o.runCommand(ctx, exec, cmd, req.End-req.Start, sink)
}

// PreviewTrim returns the command line Trim would run.
func (o *Orchestrator) PreviewTrim(req TrimRequest) (string, error) {
	cmd, err := o.trimCommand(req)
	if err != nil {
		return "", err
	}
	return cmd.DryRun()
}

func (o *Orchestrator) trimCommand(req TrimRequest) (command.Command, error) {
	const op = "trim"

	if strings.TrimSpace(req.Input) == "" {
		return nil, models.Invalidf(op, "input path is required")
	}
	if strings.TrimSpace(req.Output) == "" {
		return nil, models.Invalidf(op, "output path is required")
	}
	if !models.Finite(req.Start) || !models.Finite(req.End) {
		return nil, models.Invalidf(op, "start and end must be finite")
	}
	if req.Start < 0 {
		return nil, models.Invalidf(op, "start cannot be negative")
	}
	if req.Start >= req.End {
		return nil, models.Invalidf(op, "start must be less than end")
	}
	if req.Volume != nil && !(*req.Volume >= 0 && *req.Volume <= 1) {
		return nil, models.Invalidf(op, "volume must be between 0.0 and 1.0")
	}

	b := command.NewBuilder().
		WithCodecs(o.cfg.Encode.Codecs()).
		TrimRange(req.Start, req.End).
		StreamCopy()
	if req.Muted {
		b.Mute()
	} else if req.Volume != nil {
		b.Volume(*req.Volume)
	}
	return command.Bind(b.WithProgress(), []string{req.Input}, req.Output), nil
}

// Convert re-encodes a whole file with the fast preset and a yuv420p pixel
// format, then scales it as described on ConvertRequest.
func (o *Orchestrator) Convert(ctx context.Context, req ConvertRequest, sink models.ProgressFunc) error {
	cmd, err := o.convertCommand(req)
	if err != nil {
		return err
	}
	if err := requireFile("convert", req.Input); err != nil {
		return err
	}
	exec, _, err := o.executor()
	if err != nil {
		return err
	}
	md, err := ffprobe.NewProber(exec).ProbeMetadata(ctx, req.Input)
	if err != nil {
		return err
	}
	if md.Width <= 0 {
		return models.Invalidf("convert", "%s has no video stream", req.Input)
	}
	return o.runCommand(ctx, exec, cmd, md.Duration, sink)
}

// PreviewConvert returns the command line Convert would run.
func (o *Orchestrator) PreviewConvert(req ConvertRequest) (string, error) {
	cmd, err := o.convertCommand(req)
	if err != nil {
		return "", err
	}
	return cmd.DryRun()
}

func (o *Orchestrator) convertCommand(req ConvertRequest) (command.Command, error) {
	const op = "convert"

	if strings.TrimSpace(req.Input) == "" {
		return nil, models.Invalidf(op, "input path is required")
	}
	if strings.TrimSpace(req.Output) == "" {
		return nil, models.Invalidf(op, "output path is required")
	}
	if filepath.Clean(req.Input) == filepath.Clean(req.Output) {
		return nil, models.Invalidf(op, "output must differ from input")
	}
	if (req.Width == 0) != (req.Height == 0) {
		return nil, models.Invalidf(op, "width and height must be set together")
	}

	b := command.NewBuilder().WithCodecs(o.cfg.Encode.Codecs())
	switch {
	case req.Width == 0:
		b.ScaleEven()
	case req.Fill:
		b.ScaleFill(req.Width, req.Height)
	default:
		b.ScaleFit(req.Width, req.Height)
	}
	b.Encode("fast", -1).
		PixelFormat("yuv420p").
		WithProgress()

	cmd := command.Bind(b, []string{req.Input}, req.Output)
	if _, err := cmd.BuildSpec(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// runCommand builds cmd, creates the output directory and runs it, with
// progress when totalSeconds is known. A failed run leaves no output behind.
func (o *Orchestrator) runCommand(ctx context.Context, exec ffmpeg.Executor, cmd command.Command, totalSeconds float64, sink models.ProgressFunc) error {
	spec, err := cmd.BuildSpec()
	if err != nil {
		return err
	}
	output := cmd.GetOutputPath()
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return models.Invalidf(string(cmd.GetTaskType()), "cannot create output directory: %v", err)
	}

	o.logger.Debug().
		Str("task", string(cmd.GetTaskType())).
		Str("input", logging.SanitizePath(cmd.GetInputPath())).
		Str("output", logging.SanitizePath(output)).
		Msg("Running command")

	if totalSeconds > 0 {
		_, err = exec.RunWithProgress(ctx, spec, totalSeconds, models.FullWindow, sink)
	} else {
		_, err = exec.Run(ctx, spec)
	}
	if err != nil {
		os.Remove(output)
		return err
	}
	return nil
}

// GenerateThumbnail writes a JPEG of one frame scaled into the configured
// box and returns its path.
//
// Positions are tried in order: the requested timestamp, 1s, 10% of the
// duration, 0.5s and 0s, skipping any at or past the end. The first
// candidate that produces a decodable image of the expected size wins.
func (o *Orchestrator) GenerateThumbnail(ctx context.Context, req ThumbnailRequest) (string, error) {
	const op = "thumbnail"

	if strings.TrimSpace(req.Input) == "" {
		return "", models.Invalidf(op, "input path is required")
	}
	if req.Timestamp != nil && !(*req.Timestamp >= 0 && models.Finite(*req.Timestamp)) {
		return "", models.Invalidf(op, "timestamp must be finite and not negative")
	}

	exec, _, err := o.executor()
	if err != nil {
		return "", err
	}
	md, err := ffprobe.NewProber(exec).ProbeMetadata(ctx, req.Input)
	if err != nil {
		return "", err
	}
	if md.Width <= 0 || md.Height <= 0 {
		return "", models.Invalidf(op, "%s has no video stream", req.Input)
	}

	output := req.Output
	if output == "" {
		output = filepath.Join(o.cfg.ThumbnailDir, stem(req.Input)+"_thumb.jpg")
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return "", models.Invalidf(op, "cannot create thumbnail directory: %v", err)
	}

	box := o.cfg.Thumbnail
	wantW, wantH := command.FitBox(md.Width, md.Height, box.Width, box.Height)

	var lastErr error
	for _, ts := range thumbnailCandidates(req.Timestamp, md.Duration) {
		// Candidates are finite and in range, and FitBox never returns 0.
		spec := command.NewBuilder().
			Thumbnail(ts).
			ThumbnailBox(md.Width, md.Height, box.Width, box.Height).
			MustBuild([]string{req.Input}, output)

		if _, err := exec.Run(ctx, spec); err != nil {
			os.Remove(output)
			if models.KindOf(err) == models.KindCancelled {
				metrics.ThumbnailsTotal.WithLabelValues(metrics.StatusCancelled).Inc()
				return "", err
			}
			o.logger.Debug().Err(err).Float64("timestamp", ts).Msg("Thumbnail attempt failed")
			lastErr = err
			continue
		}
		if err := checkImage(output, wantW, wantH); err != nil {
			os.Remove(output)
			o.logger.Debug().Err(err).Float64("timestamp", ts).Msg("Thumbnail rejected")
			lastErr = err
			continue
		}

		metrics.ThumbnailsTotal.WithLabelValues(metrics.StatusSuccess).Inc()
		return output, nil
	}

	metrics.ThumbnailsTotal.WithLabelValues(metrics.StatusFailed).Inc()
	if lastErr == nil {
		lastErr = models.Invalidf(op, "no usable position in %.3fs of video", md.Duration)
	}
	return "", lastErr
}

// thumbnailCandidates returns the seek positions to try, deduplicated and
// all strictly before duration.
func thumbnailCandidates(requested *float64, duration float64) []float64 {
	var raw []float64
	if requested != nil {
		raw = append(raw, *requested)
	}
	raw = append(raw, 1.0, duration*0.1, 0.5, 0.0)

	var out []float64
	seen := make(map[float64]bool)
	for _, ts := range raw {
		ts = math.Round(ts*1000) / 1000
		if !(ts >= 0 && ts < duration) || seen[ts] {
			continue
		}
		seen[ts] = true
		out = append(out, ts)
	}
	return out
}

// checkImage decodes path and compares its size.
func checkImage(path string, width, height int) error {
	img, err := imaging.Open(path)
	if err != nil {
		return models.NewError(models.KindOutputValidation, "thumbnail", fmt.Errorf("decode %s: %w", path, err))
	}
	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		return models.NewError(models.KindOutputValidation, "thumbnail",
			fmt.Errorf("expected %dx%d, got %dx%d", width, height, b.Dx(), b.Dy()))
	}
	return nil
}

// ExtractAudio writes the audio track of the input as a mono 16 kHz MP3 and
// returns its path.
func (o *Orchestrator) ExtractAudio(ctx context.Context, req AudioRequest) (string, error) {
	cmd, err := o.audioCommand(req)
	if err != nil {
		return "", err
	}
	if err := requireFile("extract audio", req.Input); err != nil {
		return "", err
	}
	exec, _, err := o.executor()
	if err != nil {
		return "", err
	}
	if err := o.runCommand(ctx, exec, cmd, 0, nil); err != nil {
		return "", err
	}
	return cmd.GetOutputPath(), nil
}

// PreviewAudio returns the command line ExtractAudio would run.
func (o *Orchestrator) PreviewAudio(req AudioRequest) (string, error) {
	cmd, err := o.audioCommand(req)
	if err != nil {
		return "", err
	}
	return cmd.DryRun()
}

func (o *Orchestrator) audioCommand(req AudioRequest) (command.Command, error) {
	if strings.TrimSpace(req.Input) == "" {
		return nil, models.Invalidf("extract audio", "input path is required")
	}
	output := req.Output
	if output == "" {
		output = filepath.Join(o.cfg.AudioDir, stem(req.Input)+".mp3")
	}

	cmd := audio.NewAudioBuilder(req.Input, output).SetRange(req.Start, req.End)
	if _, err := cmd.BuildSpec(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// Compose combines the inputs side by side or as picture-in-picture. The
// result is as long as the shortest input.
func (o *Orchestrator) Compose(ctx context.Context, req ComposeRequest, sink models.ProgressFunc) error {
	const op = "compose"

	mb, err := o.mixingBuilder(req)
	if err != nil {
		return err
	}

	exec, _, err := o.executor()
	if err != nil {
		return err
	}

	prober := ffprobe.NewProber(exec)
	total := math.Inf(1)
	for _, in := range req.Inputs {
		md, err := prober.ProbeMetadata(ctx, in)
		if err != nil {
			return err
		}
		if md.Width <= 0 {
			return models.Invalidf(op, "%s has no video stream", in)
		}
		total = math.Min(total, md.Duration)
	}
	if req.Start >= total {
		return models.Invalidf(op, "start %.3fs is past the shortest input (%.3fs)", req.Start, total)
	}
	total -= req.Start
	if req.Duration > 0 {
		total = math.Min(total, req.Duration)
	}
	if req.Start > 0 || req.Duration > 0 {
		mb.SetTrim(req.Start, total)
	}

	return o.runCommand(ctx, exec, mb, total, sink)
}

// PreviewCompose returns the command line Compose would run. Inputs are not
// probed, so the length is only limited when Duration is set.
func (o *Orchestrator) PreviewCompose(req ComposeRequest) (string, error) {
	mb, err := o.mixingBuilder(req)
	if err != nil {
		return "", err
	}
	if req.Duration > 0 {
		mb.SetTrim(req.Start, req.Duration)
	}
	return mb.DryRun()
}

// mixingBuilder validates req and configures the graph. Shape errors
// surface here, before any probing.
func (o *Orchestrator) mixingBuilder(req ComposeRequest) (*mixing.MixingBuilder, error) {
	const op = "compose"

	if strings.TrimSpace(req.Output) == "" {
		return nil, models.Invalidf(op, "output path is required")
	}
	if !(req.Start >= 0 && models.Finite(req.Start)) || !(req.Duration >= 0 && models.Finite(req.Duration)) {
		return nil, models.Invalidf(op, "start and duration must be finite and not negative")
	}

	mb := mixing.NewMixingBuilder(req.Output).
		SetCodecs(o.cfg.Encode.Codecs()).
		SetProgress(true)
	if req.Layout != "" {
		mb.SetLayout(req.Layout)
	}
	if req.Width > 0 || req.Height > 0 {
		mb.SetTileSize(req.Width, req.Height)
	}
	if req.Corner != "" {
		mb.SetOverlay(0.25, req.Corner, 16)
	}
	if req.Volume != nil {
		mb.SetVolume(*req.Volume)
	}
	for _, in := range req.Inputs {
		mb.AddInput(in)
	}
	if _, err := mb.FilterExpression(); err != nil {
		return nil, err
	}
	return mb, nil
}

// CheckTools resolves ffmpeg and ffprobe and reports their versions.
func (o *Orchestrator) CheckTools(ctx context.Context) ([]ToolInfo, error) {
	exec, tools, err := o.executor()
	if err != nil {
		return nil, err
	}

	var infos []ToolInfo
	for _, name := range []string{command.ToolFFmpeg, command.ToolFFprobe} {
		out, err := exec.Run(ctx, versionSpec(name))
		if err != nil {
			return nil, err
		}
		infos = append(infos, ToolInfo{
			Name:    name,
			Path:    tools.Path(name),
			Version: versionLine(out),
		})
	}
	return infos, nil
}

func versionSpec(tool string) command.Spec {
	return command.Spec{
		Tool: tool,
		Task: command.TaskTypeVersion,
		Args: []string{"-hide_banner", "-version"},
	}
}

// versionLine returns the first line of the -version output, e.g.
// "ffmpeg version 6.1.1 Copyright (c) 2000-2023 the FFmpeg developers".
func versionLine(out *ffmpeg.Output) string {
	if out == nil {
		return ""
	}
	sc := bufio.NewScanner(bytes.NewReader(out.Stdout))
	if sc.Scan() {
		return strings.TrimSpace(sc.Text())
	}
	return ""
}

func requireFile(op, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return models.Invalidf(op, "cannot read %s: %v", path, err)
	}
	if info.IsDir() {
		return models.Invalidf(op, "%s is a directory", path)
	}
	return nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
