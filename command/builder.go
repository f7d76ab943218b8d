package command

import (
	"fmt"
	"strconv"
	"strings"

	"splicer/internal/timeutil"
	"splicer/models"
)

// Codecs holds the encoder settings used whenever a stream must be
// re-encoded.
type Codecs struct {
	Video        string
	Preset       string
	CRF          int
	PixelFormat  string
	Audio        string
	AudioBitrate string
}

// DefaultCodecs returns H.264 medium/23 video with 128k AAC audio.
func DefaultCodecs() Codecs {
	return Codecs{
		Video:        "libx264",
		Preset:       "medium",
		CRF:          23,
		PixelFormat:  "yuv420p",
		Audio:        "aac",
		AudioBitrate: "128k",
	}
}

// Builder accumulates operations and resolves them into a Spec.
//
// Later operations of the same kind replace earlier ones (the last Scale
// wins, the last of StreamCopy/Encode decides the codec mode). Arguments
// are always emitted in ffmpeg's required order regardless of call order.
type Builder struct {
	ops    []Operation
	codecs Codecs
}

// NewBuilder creates a Builder with DefaultCodecs.
func NewBuilder() *Builder {
	return &Builder{codecs: DefaultCodecs()}
}

// WithCodecs replaces the re-encode settings.
func (b *Builder) WithCodecs(codecs Codecs) *Builder {
	b.codecs = codecs
	return b
}

// Add appends an arbitrary operation.
func (b *Builder) Add(op Operation) *Builder {
	b.ops = append(b.ops, op)
	return b
}

// Trim keeps duration seconds starting at start.
func (b *Builder) Trim(start, duration float64) *Builder {
	return b.Add(Trim{Start: start, Duration: duration})
}

// TrimRange keeps [start, end).
func (b *Builder) TrimRange(start, end float64) *Builder {
	return b.Trim(start, end-start)
}

// Scale stretches to width x height. A zero side keeps the aspect ratio.
func (b *Builder) Scale(width, height int) *Builder {
	return b.Add(Scale{Width: width, Height: height, Mode: ScaleExact})
}

// ScaleFit letterboxes into width x height.
func (b *Builder) ScaleFit(width, height int) *Builder {
	return b.Add(Scale{Width: width, Height: height, Mode: ScaleFit})
}

// ScaleFill covers width x height and crops the overflow.
func (b *Builder) ScaleFill(width, height int) *Builder {
	return b.Add(Scale{Width: width, Height: height, Mode: ScaleFill})
}

// ScaleEven rounds the frame size down to even dimensions.
func (b *Builder) ScaleEven() *Builder {
	return b.Add(Scale{Mode: ScaleEven})
}

// Volume sets the audio gain, clamped to 0.0-1.0.
func (b *Builder) Volume(level float64) *Builder {
	return b.Add(Volume{Level: clampVolume(level)})
}

// Mute silences the audio track.
func (b *Builder) Mute() *Builder {
	return b.Add(Mute{})
}

// StreamCopy copies every stream no filter applies to.
func (b *Builder) StreamCopy() *Builder {
	return b.Add(StreamCopy{})
}

// Encode re-encodes all streams. An empty preset or negative crf keeps the
// configured value.
func (b *Builder) Encode(preset string, crf int) *Builder {
	return b.Add(Encode{Preset: preset, CRF: crf})
}

// FilterGraph composes inputs with a -filter_complex expression whose final
// video pad is outputLabel.
func (b *Builder) FilterGraph(expression, outputLabel string) *Builder {
	return b.Add(FilterGraph{Expression: expression, OutputLabel: outputLabel})
}

// Thumbnail grabs one frame at timestamp seconds.
func (b *Builder) Thumbnail(timestamp float64) *Builder {
	return b.Add(Thumbnail{Timestamp: timestamp})
}

// ThumbnailBox scales a sourceWidth x sourceHeight frame to fit the box as
// computed by FitBox.
func (b *Builder) ThumbnailBox(sourceWidth, sourceHeight, boxWidth, boxHeight int) *Builder {
	w, h := FitBox(sourceWidth, sourceHeight, boxWidth, boxHeight)
	return b.Scale(w, h)
}

// Concat treats the single input as a concat demuxer list.
func (b *Builder) Concat() *Builder {
	return b.Add(Concat{})
}

// PixelFormat sets -pix_fmt.
func (b *Builder) PixelFormat(format string) *Builder {
	return b.Add(PixelFormat{Format: format})
}

// WithProgress enables -progress output on stderr.
func (b *Builder) WithProgress() *Builder {
	return b.Add(Progress{})
}

type codecMode int

const (
	codecDefault codecMode = iota
	codecCopy
	codecEncode
)

// plan is the resolved view of the declared operations.
type plan struct {
	trim      *Trim
	scale     *Scale
	volume    *float64
	mute      bool
	mode      codecMode
	encode    Encode
	graph     *FilterGraph
	thumbnail *Thumbnail
	concat    bool
	pixFmt    string
	progress  bool
}

func (b *Builder) resolve() plan {
	var p plan
	for _, op := range b.ops {
		switch o := op.(type) {
		case Trim:
			p.trim = &o
		case Scale:
			p.scale = &o
		case Volume:
			level := o.Level
			p.volume = &level
		case Mute:
			p.mute = true
		case StreamCopy:
			p.mode = codecCopy
		case Encode:
			p.mode = codecEncode
			p.encode = o
		case FilterGraph:
			p.graph = &o
		case Thumbnail:
			p.thumbnail = &o
		case Concat:
			p.concat = true
		case PixelFormat:
			p.pixFmt = o.Format
		case Progress:
			p.progress = true
		}
	}
	return p
}

// audioFilter returns the -af chain, or "" when audio passes through
// untouched. Mute wins over Volume; a unity volume is no filter.
func (p plan) audioFilter() string {
	if p.mute {
		return "volume=0"
	}
	if p.volume != nil && *p.volume != 1 {
		return "volume=" + strconv.FormatFloat(*p.volume, 'f', -1, 64)
	}
	return ""
}

func (p plan) videoFiltered() bool {
	return p.scale != nil || p.graph != nil
}

// Build resolves the operations into a Spec for the given inputs and output.
//
// It fails only on invariant violations: no inputs, a blank output, a
// negative or empty trim, a concat with more than one input, or a filter
// graph that never produces its output label.
func (b *Builder) Build(inputs []string, output string) (Spec, error) {
	p := b.resolve()
	if err := p.validate(inputs, output); err != nil {
		return Spec{}, err
	}

	args := []string{"-hide_banner", "-nostdin"}

	// Inputs and their options
	if p.concat {
		args = append(args, "-f", "concat", "-safe", "0", "-i", inputs[0])
	} else {
		for _, input := range inputs {
			args = append(args, p.inputOptions()...)
			args = append(args, "-i", input)
		}
	}

	// Video filters
	if p.graph != nil {
		args = append(args,
			"-filter_complex", p.graph.Expression,
			"-map", "["+p.graph.OutputLabel+"]",
			"-map", "0:a?",
		)
	} else if p.scale != nil {
		args = append(args, "-vf", scaleFilter(*p.scale))
	}

	// Audio filters
	audioFilter := p.audioFilter()
	if audioFilter != "" && p.thumbnail == nil {
		args = append(args, "-af", audioFilter)
	}

	// Codecs
	args = append(args, b.codecArgs(p, audioFilter != "")...)

	if p.thumbnail != nil {
		args = append(args, "-frames:v", "1")
	}

	if p.progress {
		args = append(args, "-progress", "pipe:2", "-nostats")
	}

	args = append(args, "-y", output)

	return Spec{
		Tool:   ToolFFmpeg,
		Task:   p.taskType(),
		Inputs: append([]string(nil), inputs...),
		Args:   args,
		Output: output,
	}, nil
}

// MustBuild is like Build but panics on invariant violations.
func (b *Builder) MustBuild(inputs []string, output string) Spec {
	spec, err := b.Build(inputs, output)
	if err != nil {
		panic(err)
	}
	return spec
}

// DryRun returns the command line Build would produce.
func (b *Builder) DryRun(inputs []string, output string) (string, error) {
	spec, err := b.Build(inputs, output)
	if err != nil {
		return "", err
	}
	return spec.String(), nil
}

func (p plan) validate(inputs []string, output string) error {
	const op = "build command"

	if len(inputs) == 0 {
		return models.Invalidf(op, "at least one input is required")
	}
	for i, input := range inputs {
		if strings.TrimSpace(input) == "" {
			return models.Invalidf(op, "input %d is empty", i)
		}
	}
	if strings.TrimSpace(output) == "" {
		return models.Invalidf(op, "output path is required")
	}
	if p.concat && len(inputs) != 1 {
		return models.Invalidf(op, "concat takes exactly one list file, got %d inputs", len(inputs))
	}
	if p.trim != nil {
		if !models.Finite(p.trim.Start) || !models.Finite(p.trim.Duration) {
			return models.Invalidf(op, "trim values must be finite")
		}
		if p.trim.Start < 0 {
			return models.Invalidf(op, "trim start cannot be negative")
		}
		if p.trim.Duration <= 0 {
			return models.Invalidf(op, "trim duration must be positive")
		}
	}
	if p.thumbnail != nil && !(p.thumbnail.Timestamp >= 0 && models.Finite(p.thumbnail.Timestamp)) {
		return models.Invalidf(op, "thumbnail timestamp cannot be negative")
	}
	if p.graph != nil {
		if p.scale != nil {
			return models.Invalidf(op, "scale cannot be combined with a filter graph")
		}
		label := p.graph.OutputLabel
		if label == "" || !strings.Contains(p.graph.Expression, "["+label+"]") {
			return models.Invalidf(op, "filter graph never produces output label [%s]", label)
		}
	}
	if p.scale != nil && p.scale.Mode != ScaleEven {
		s := p.scale
		if s.Width < 0 || s.Height < 0 || (s.Width == 0 && s.Height == 0) {
			return models.Invalidf(op, "invalid scale %dx%d", s.Width, s.Height)
		}
		if s.Mode != ScaleExact && (s.Width == 0 || s.Height == 0) {
			return models.Invalidf(op, "fit and fill scaling need both dimensions")
		}
	}
	return nil
}

// inputOptions returns the per-input seek and duration options. A thumbnail
// timestamp takes precedence over a trim start.
func (p plan) inputOptions() []string {
	var opts []string
	switch {
	case p.thumbnail != nil:
		opts = append(opts, "-ss", timeutil.FormatArg(p.thumbnail.Timestamp))
	case p.trim != nil:
		opts = append(opts,
			"-ss", timeutil.FormatArg(p.trim.Start),
			"-t", timeutil.FormatArg(p.trim.Duration),
		)
	}
	return opts
}

// codecArgs resolves stream copy against filters. A filtered stream cannot
// be copied, so it is re-encoded while the other stream may still be copied.
func (b *Builder) codecArgs(p plan, audioFiltered bool) []string {
	if p.thumbnail != nil {
		return nil
	}

	codecs := b.codecs
	if p.mode == codecEncode {
		if p.encode.Preset != "" {
			codecs.Preset = p.encode.Preset
		}
		if p.encode.CRF >= 0 {
			codecs.CRF = p.encode.CRF
		}
	}
	pixFmt := codecs.PixelFormat
	if p.pixFmt != "" {
		pixFmt = p.pixFmt
	}

	videoEncode := []string{"-c:v", codecs.Video, "-preset", codecs.Preset, "-crf", strconv.Itoa(codecs.CRF)}
	if pixFmt != "" {
		videoEncode = append(videoEncode, "-pix_fmt", pixFmt)
	}
	audioEncode := []string{"-c:a", codecs.Audio}
	if codecs.AudioBitrate != "" {
		audioEncode = append(audioEncode, "-b:a", codecs.AudioBitrate)
	}

	var args []string
	switch p.mode {
	case codecCopy:
		copyVideo := !p.videoFiltered()
		copyAudio := !audioFiltered
		if copyVideo && copyAudio {
			args = append(args, "-c", "copy")
		} else {
			if copyVideo {
				args = append(args, "-c:v", "copy")
			} else {
				args = append(args, videoEncode...)
			}
			if copyAudio {
				args = append(args, "-c:a", "copy")
			} else {
				args = append(args, audioEncode...)
			}
		}
		args = append(args, "-avoid_negative_ts", "make_zero")
	case codecEncode:
		args = append(args, videoEncode...)
		args = append(args, audioEncode...)
	default:
		if p.pixFmt != "" {
			args = append(args, "-pix_fmt", p.pixFmt)
		}
	}
	return args
}

func (p plan) taskType() TaskType {
	switch {
	case p.thumbnail != nil:
		return TaskTypeThumbnail
	case p.concat:
		return TaskTypeConcat
	case p.graph != nil:
		return TaskTypeMixing
	}
	return TaskTypeVideo
}

func scaleFilter(s Scale) string {
	switch s.Mode {
	case ScaleFit:
		return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black,setsar=1",
			s.Width, s.Height, s.Width, s.Height)
	case ScaleFill:
		return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1",
			s.Width, s.Height, s.Width, s.Height)
	case ScaleEven:
		return "scale=trunc(iw/2)*2:trunc(ih/2)*2"
	}
	return fmt.Sprintf("scale=%s:%s", scaleSide(s.Width), scaleSide(s.Height))
}

// scaleSide maps 0 to -2: keep aspect and round to an even size.
func scaleSide(n int) string {
	if n == 0 {
		return "-2"
	}
	return strconv.Itoa(n)
}

func clampVolume(level float64) float64 {
	if level != level || level < 0 {
		return 0
	}
	if level > 1 {
		return 1
	}
	return level
}
