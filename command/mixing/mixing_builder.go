// Package mixing composes several video inputs into one frame with a
// filter graph: side by side, or picture-in-picture overlay.
package mixing

import (
	"fmt"
	"math"
	"strings"

	"splicer/command"
	"splicer/models"
)

// Layout selects how inputs are arranged.
type Layout string

const (
	LayoutSideBySide Layout = "side-by-side" // Inputs left to right, equal tiles
	LayoutOverlay    Layout = "overlay"      // Second input over the first
)

// Corner positions the overlay inside the base frame.
type Corner string

const (
	CornerTopLeft     Corner = "top-left"
	CornerTopRight    Corner = "top-right"
	CornerBottomLeft  Corner = "bottom-left"
	CornerBottomRight Corner = "bottom-right"
)

// Default tile size.
const (
	defaultWidth  = 640
	defaultHeight = 360
)

// outputLabel is the final video pad of every generated graph.
const outputLabel = "vout"

// MixingBuilder constructs ffmpeg commands that combine video inputs.
//
// Every input is normalized on its own (scale, pixel format, square pixels)
// into [vN], then combined into [vout], which is mapped explicitly. Audio is
// taken from the first input when present.
type MixingBuilder struct {
	inputs     []string
	outputPath string
	layout     Layout

	// Tile size for side-by-side, base size for overlay
	width  int
	height int

	// Overlay options
	overlayScale  float64 // Fraction of the base width
	overlayCorner Corner
	overlayMargin int

	trimStart    float64
	trimDuration float64
	volume       *float64
	codecs       command.Codecs
	progress     bool
}

// NewMixingBuilder creates a new mixing builder writing to outputPath.
func NewMixingBuilder(outputPath string) *MixingBuilder {
	return &MixingBuilder{
		outputPath:    outputPath,
		layout:        LayoutSideBySide,
		width:         defaultWidth,
		height:        defaultHeight,
		overlayScale:  0.25,
		overlayCorner: CornerBottomRight,
		overlayMargin: 16,
		codecs:        command.DefaultCodecs(),
	}
}

// AddInput appends a video input. Order determines placement.
func (m *MixingBuilder) AddInput(path string) *MixingBuilder {
	m.inputs = append(m.inputs, path)
	return m
}

// SetLayout selects side-by-side or overlay composition.
func (m *MixingBuilder) SetLayout(layout Layout) *MixingBuilder {
	m.layout = layout
	return m
}

// SetTileSize sets the per-input tile (side-by-side) or base frame (overlay) size.
// When one side is 0 it is derived from the other at the default 16:9 aspect.
func (m *MixingBuilder) SetTileSize(width, height int) *MixingBuilder {
	switch {
	case width > 0 && height == 0:
		height = evenAtLeastTwo(int(math.Round(float64(width) * defaultHeight / defaultWidth)))
	case height > 0 && width == 0:
		width = evenAtLeastTwo(int(math.Round(float64(height) * defaultWidth / defaultHeight)))
	}
	m.width = width
	m.height = height
	return m
}

// SetOverlay configures the overlay size as a fraction of the base width,
// its corner and its margin in pixels.
func (m *MixingBuilder) SetOverlay(scale float64, corner Corner, margin int) *MixingBuilder {
	m.overlayScale = scale
	m.overlayCorner = corner
	m.overlayMargin = margin
	return m
}

// SetTrim limits every input to duration seconds from start.
func (m *MixingBuilder) SetTrim(start, duration float64) *MixingBuilder {
	m.trimStart = start
	m.trimDuration = duration
	return m
}

// SetVolume sets the gain of the mapped audio track.
func (m *MixingBuilder) SetVolume(level float64) *MixingBuilder {
	m.volume = &level
	return m
}

// SetCodecs sets the re-encode settings.
func (m *MixingBuilder) SetCodecs(codecs command.Codecs) *MixingBuilder {
	m.codecs = codecs
	return m
}

// SetProgress enables progress output.
func (m *MixingBuilder) SetProgress(enabled bool) *MixingBuilder {
	m.progress = enabled
	return m
}

// FilterExpression returns the -filter_complex graph for the configured layout.
func (m *MixingBuilder) FilterExpression() (string, error) {
	if err := m.validate(); err != nil {
		return "", err
	}

	var parts []string
	switch m.layout {
	case LayoutOverlay:
		pipW := evenAtLeastTwo(int(float64(m.width) * m.overlayScale))
		parts = append(parts,
			fmt.Sprintf("[0:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black,format=yuv420p,setsar=1[v0]",
				m.width, m.height, m.width, m.height),
			fmt.Sprintf("[1:v]scale=%d:-2,format=yuv420p,setsar=1[v1]", pipW),
			fmt.Sprintf("[v0][v1]overlay=%s:shortest=1[%s]", m.overlayPosition(), outputLabel),
		)
	default:
		labels := make([]string, len(m.inputs))
		for i := range m.inputs {
			labels[i] = fmt.Sprintf("[v%d]", i)
			parts = append(parts,
				fmt.Sprintf("[%d:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black,format=yuv420p,setsar=1%s",
					i, m.width, m.height, m.width, m.height, labels[i]))
		}
		parts = append(parts,
			fmt.Sprintf("%shstack=inputs=%d:shortest=1[%s]", strings.Join(labels, ""), len(m.inputs), outputLabel))
	}

	return strings.Join(parts, ";"), nil
}

// BuildSpec resolves the composition through the core command builder.
func (m *MixingBuilder) BuildSpec() (command.Spec, error) {
	expr, err := m.FilterExpression()
	if err != nil {
		return command.Spec{}, err
	}

	b := command.NewBuilder().
		WithCodecs(m.codecs).
		FilterGraph(expr, outputLabel).
		Encode("", -1)
	if m.trimDuration > 0 {
		b.Trim(m.trimStart, m.trimDuration)
	}
	if m.volume != nil {
		b.Volume(*m.volume)
	}
	if m.progress {
		b.WithProgress()
	}
	return b.Build(m.inputs, m.outputPath)
}

// DryRun returns the command that would be executed without running it.
func (m *MixingBuilder) DryRun() (string, error) {
	spec, err := m.BuildSpec()
	if err != nil {
		return "", err
	}
	return spec.String(), nil
}

// GetTaskType returns the task type identifier.
func (m *MixingBuilder) GetTaskType() command.TaskType {
	return command.TaskTypeMixing
}

// GetInputPath returns the primary input path.
func (m *MixingBuilder) GetInputPath() string {
	if len(m.inputs) == 0 {
		return ""
	}
	return m.inputs[0]
}

// GetOutputPath returns the output file path.
func (m *MixingBuilder) GetOutputPath() string {
	return m.outputPath
}

// overlayPosition returns the overlay x:y expression for the configured corner.
func (m *MixingBuilder) overlayPosition() string {
	margin := m.overlayMargin
	switch m.overlayCorner {
	case CornerTopLeft:
		return fmt.Sprintf("%d:%d", margin, margin)
	case CornerTopRight:
		return fmt.Sprintf("W-w-%d:%d", margin, margin)
	case CornerBottomLeft:
		return fmt.Sprintf("%d:H-h-%d", margin, margin)
	}
	return fmt.Sprintf("W-w-%d:H-h-%d", margin, margin)
}

func (m *MixingBuilder) validate() error {
	const op = "build mixing command"

	switch m.layout {
	case LayoutSideBySide:
		if len(m.inputs) < 2 {
			return models.Invalidf(op, "side-by-side needs at least 2 inputs, got %d", len(m.inputs))
		}
	case LayoutOverlay:
		if len(m.inputs) != 2 {
			return models.Invalidf(op, "overlay needs exactly 2 inputs, got %d", len(m.inputs))
		}
		if m.overlayScale <= 0 || m.overlayScale > 1 {
			return models.Invalidf(op, "overlay scale must be in (0, 1]")
		}
		if m.overlayMargin < 0 {
			return models.Invalidf(op, "overlay margin cannot be negative")
		}
	default:
		return models.Invalidf(op, "unknown layout %q", m.layout)
	}

	if m.width <= 0 || m.height <= 0 || m.width%2 != 0 || m.height%2 != 0 {
		return models.Invalidf(op, "tile size must be positive and even, got %dx%d", m.width, m.height)
	}
	return nil
}

func evenAtLeastTwo(n int) int {
	n &^= 1
	if n < 2 {
		return 2
	}
	return n
}
