// Package audio builds audio-only extraction commands.
package audio

import (
	"fmt"
	"strings"

	"splicer/command"
	"splicer/internal/timeutil"
	"splicer/models"
)

// AudioBuilder implements AudioCommand for extracting an audio track.
//
// Defaults produce a mono 16 kHz MP3 at 128k, the format transcription
// services expect.
type AudioBuilder struct {
	inputPath  string
	outputPath string
	codec      string
	bitrate    string
	sampleRate int
	channels   int
	start      float64
	end        float64
	filters    []string
}

// NewAudioBuilder creates a new AudioBuilder for the given input and output paths.
func NewAudioBuilder(inputPath, outputPath string) *AudioBuilder {
	return &AudioBuilder{
		inputPath:  inputPath,
		outputPath: outputPath,
		codec:      "libmp3lame",
		bitrate:    "128k",
		sampleRate: 16000,
		channels:   1,
	}
}

// SetCodec sets the audio codec (e.g., "libmp3lame", "aac", "pcm_s16le").
func (a *AudioBuilder) SetCodec(codec string) AudioCommand {
	a.codec = codec
	return a
}

// SetBitrate sets the audio bitrate (e.g., "128k", "192k").
func (a *AudioBuilder) SetBitrate(bitrate string) AudioCommand {
	a.bitrate = bitrate
	return a
}

// SetSampleRate sets the audio sample rate in Hz. Zero keeps the source rate.
func (a *AudioBuilder) SetSampleRate(rate int) AudioCommand {
	a.sampleRate = rate
	return a
}

// SetChannels sets the number of audio channels. Zero keeps the source layout.
func (a *AudioBuilder) SetChannels(channels int) AudioCommand {
	a.channels = channels
	return a
}

// SetFilters appends an audio filter (e.g., "volume=0.5").
func (a *AudioBuilder) SetFilters(filter string) AudioCommand {
	if filter != "" {
		a.filters = append(a.filters, filter)
	}
	return a
}

// SetRange restricts extraction to [start, end). An end of 0 means to the end
// of the input.
func (a *AudioBuilder) SetRange(start, end float64) AudioCommand {
	a.start = start
	a.end = end
	return a
}

// BuildArgs constructs the FFmpeg command arguments.
func (a *AudioBuilder) BuildArgs() []string {
	args := []string{"-hide_banner", "-nostdin"}

	if a.start > 0 {
		args = append(args, "-ss", timeutil.FormatArg(a.start))
	}
	if a.end > a.start {
		args = append(args, "-t", timeutil.FormatArg(a.end-a.start))
	}

	args = append(args,
		"-i", a.inputPath,
		"-vn", // No video
	)

	// Add audio filters if specified
	if len(a.filters) > 0 {
		args = append(args, "-af", strings.Join(a.filters, ","))
	}

	// Add sample rate if specified
	if a.sampleRate > 0 {
		args = append(args, "-ar", fmt.Sprintf("%d", a.sampleRate))
	}

	// Add channels if specified
	if a.channels > 0 {
		args = append(args, "-ac", fmt.Sprintf("%d", a.channels))
	}

	args = append(args, "-c:a", a.codec)
	if a.bitrate != "" {
		args = append(args, "-b:a", a.bitrate)
	}

	args = append(args, "-y", a.outputPath)
	return args
}

// BuildSpec validates the builder and returns the invocation.
func (a *AudioBuilder) BuildSpec() (command.Spec, error) {
	if err := a.validate(); err != nil {
		return command.Spec{}, err
	}
	return command.Spec{
		Tool:   command.ToolFFmpeg,
		Task:   command.TaskTypeAudio,
		Inputs: []string{a.inputPath},
		Args:   a.BuildArgs(),
		Output: a.outputPath,
	}, nil
}

// DryRun returns the FFmpeg command without executing it.
func (a *AudioBuilder) DryRun() (string, error) {
	spec, err := a.BuildSpec()
	if err != nil {
		return "", err
	}
	return spec.String(), nil
}

// GetTaskType returns the task type (audio).
func (a *AudioBuilder) GetTaskType() command.TaskType {
	return command.TaskTypeAudio
}

// GetInputPath returns the input file path.
func (a *AudioBuilder) GetInputPath() string {
	return a.inputPath
}

// GetOutputPath returns the output file path.
func (a *AudioBuilder) GetOutputPath() string {
	return a.outputPath
}

func (a *AudioBuilder) validate() error {
	const op = "build audio command"
	if strings.TrimSpace(a.inputPath) == "" {
		return models.Invalidf(op, "input path is required")
	}
	if strings.TrimSpace(a.outputPath) == "" {
		return models.Invalidf(op, "output path is required")
	}
	if a.codec == "" {
		return models.Invalidf(op, "codec is required")
	}
	if !models.Finite(a.start) || !models.Finite(a.end) {
		return models.Invalidf(op, "start and end must be finite")
	}
	if a.start < 0 {
		return models.Invalidf(op, "start cannot be negative")
	}
	if a.end != 0 && a.end <= a.start {
		return models.Invalidf(op, "end must be after start")
	}
	if a.channels < 0 || a.channels > 8 {
		return models.Invalidf(op, "channels must be between 0 and 8")
	}
	return nil
}
