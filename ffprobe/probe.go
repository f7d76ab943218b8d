// Package ffprobe extracts metadata from media files using the ffprobe
// command-line tool.
package ffprobe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"splicer/command"
	"splicer/ffmpeg"
	"splicer/models"
)

// SupportedContainers lists the file extensions accepted for import.
var SupportedContainers = []string{".mp4", ".mov", ".m4v", ".mkv", ".webm"}

// Stream represents a media stream (audio, video, subtitle, etc.)
type Stream struct {
	Index         int    `json:"index"`
	CodecName     string `json:"codec_name"`
	CodecType     string `json:"codec_type"`
	CodecLongName string `json:"codec_long_name"`
	Width         int    `json:"width,omitempty"`
	Height        int    `json:"height,omitempty"`
	PixFmt        string `json:"pix_fmt,omitempty"`
	RFrameRate    string `json:"r_frame_rate,omitempty"`
	AvgFrameRate  string `json:"avg_frame_rate,omitempty"`
	SampleRate    string `json:"sample_rate,omitempty"`
	Channels      int    `json:"channels,omitempty"`
	Duration      string `json:"duration,omitempty"`
	BitRate       string `json:"bit_rate,omitempty"`
}

// Format represents the container format information.
type Format struct {
	Filename       string `json:"filename"`
	FormatName     string `json:"format_name"`
	FormatLongName string `json:"format_long_name"`
	Duration       string `json:"duration"`
	Size           string `json:"size"`
	BitRate        string `json:"bit_rate"`
}

// ProbeResult holds the raw metadata ffprobe reported for a media file.
type ProbeResult struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Metadata is the normalized view of a probed file.
type Metadata struct {
	Path      string  `json:"path"`
	Duration  float64 `json:"duration"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Codec     string  `json:"codec"`
	FrameRate float64 `json:"fps"`
	BitRate   int64   `json:"bit_rate"`
	Format    string  `json:"format"`
	HasAudio  bool    `json:"has_audio"`
}

// GetDuration returns the duration of the media file in seconds, falling
// back to the first video stream when the container does not report one.
func (pr *ProbeResult) GetDuration() (float64, error) {
	raw := pr.Format.Duration
	if raw == "" || raw == "N/A" {
		if videos := pr.GetVideoStreams(); len(videos) > 0 {
			raw = videos[0].Duration
		}
	}
	if raw == "" || raw == "N/A" {
		return 0, fmt.Errorf("duration not available in format metadata")
	}

	duration, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration '%s': %w", raw, err)
	}
	return duration, nil
}

// GetVideoStreams returns all video streams from the media file.
func (pr *ProbeResult) GetVideoStreams() []Stream {
	var videoStreams []Stream
	for _, stream := range pr.Streams {
		if stream.CodecType == "video" {
			videoStreams = append(videoStreams, stream)
		}
	}
	return videoStreams
}

// GetAudioStreams returns all audio streams from the media file.
func (pr *ProbeResult) GetAudioStreams() []Stream {
	var audioStreams []Stream
	for _, stream := range pr.Streams {
		if stream.CodecType == "audio" {
			audioStreams = append(audioStreams, stream)
		}
	}
	return audioStreams
}

// Metadata normalizes the raw result. Dimensions, codec and frame rate come
// from the first video stream; an audio-only file leaves them zero.
func (pr *ProbeResult) Metadata() (*Metadata, error) {
	duration, err := pr.GetDuration()
	if err != nil {
		return nil, err
	}

	md := &Metadata{
		Path:     pr.Format.Filename,
		Duration: duration,
		Format:   pr.Format.FormatName,
		HasAudio: len(pr.GetAudioStreams()) > 0,
	}
	if bitRate, err := strconv.ParseInt(pr.Format.BitRate, 10, 64); err == nil {
		md.BitRate = bitRate
	}

	if videos := pr.GetVideoStreams(); len(videos) > 0 {
		v := videos[0]
		md.Width = v.Width
		md.Height = v.Height
		md.Codec = v.CodecName
		if fps, err := ParseFrameRate(v.RFrameRate); err == nil {
			md.FrameRate = fps
		} else if fps, err := ParseFrameRate(v.AvgFrameRate); err == nil {
			md.FrameRate = fps
		}
		if md.BitRate == 0 {
			if bitRate, err := strconv.ParseInt(v.BitRate, 10, 64); err == nil {
				md.BitRate = bitRate
			}
		}
	} else if audios := pr.GetAudioStreams(); len(audios) > 0 {
		md.Codec = audios[0].CodecName
	}

	return md, nil
}

// ParseFrameRate parses ffprobe rates such as "30000/1001" or "25".
func ParseFrameRate(rate string) (float64, error) {
	rate = strings.TrimSpace(rate)
	if rate == "" {
		return 0, fmt.Errorf("empty frame rate")
	}

	num, den, isFraction := strings.Cut(rate, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frame rate %q: %w", rate, err)
	}
	if !isFraction {
		return n, nil
	}

	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frame rate %q: %w", rate, err)
	}
	if d == 0 {
		return 0, fmt.Errorf("invalid frame rate %q: zero denominator", rate)
	}
	return n / d, nil
}

// IsSupportedContainer reports whether path has an importable extension.
func IsSupportedContainer(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, supported := range SupportedContainers {
		if ext == supported {
			return true
		}
	}
	return false
}

// Parse decodes ffprobe's JSON output.
func Parse(data []byte) (*ProbeResult, error) {
	var result ProbeResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe JSON output: %w", err)
	}
	return &result, nil
}

// BuildSpec returns the ffprobe invocation for sourcePath.
//
//	ffprobe -v error -print_format json -show_format -show_streams <path>
func BuildSpec(sourcePath string) (command.Spec, error) {
	if strings.TrimSpace(sourcePath) == "" {
		return command.Spec{}, models.Invalidf("probe", "source path cannot be empty")
	}
	return command.Spec{
		Tool:   command.ToolFFprobe,
		Task:   command.TaskTypeProbe,
		Inputs: []string{sourcePath},
		Args: []string{
			"-v", "error",
			"-print_format", "json",
			"-show_format",
			"-show_streams",
			sourcePath,
		},
	}, nil
}

// Prober runs ffprobe through an executor.
type Prober struct {
	exec ffmpeg.Executor
}

// NewProber creates a Prober.
func NewProber(exec ffmpeg.Executor) *Prober {
	return &Prober{exec: exec}
}

// Probe analyzes a media file and extracts its metadata.
//
// Example:
//
//	result, err := ffprobe.NewProber(runner).Probe(ctx, "/path/to/video.mp4")
//	if err != nil {
//	    return err
//	}
//	duration, _ := result.GetDuration()
func (p *Prober) Probe(ctx context.Context, sourcePath string) (*ProbeResult, error) {
	spec, err := BuildSpec(sourcePath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(sourcePath)
	if err != nil {
		return nil, models.Invalidf("probe", "cannot read %s: %v", sourcePath, err)
	}
	if info.IsDir() {
		return nil, models.Invalidf("probe", "%s is a directory", sourcePath)
	}

	out, err := p.exec.Run(ctx, spec)
	if err != nil {
		return nil, err
	}

	result, err := Parse(out.Stdout)
	if err != nil {
		return nil, models.NewExecutionError("probe", out.StderrTail, err)
	}
	return result, nil
}

// ProbeMetadata probes sourcePath and normalizes the result.
func (p *Prober) ProbeMetadata(ctx context.Context, sourcePath string) (*Metadata, error) {
	result, err := p.Probe(ctx, sourcePath)
	if err != nil {
		return nil, err
	}

	md, err := result.Metadata()
	if err != nil {
		return nil, models.Invalidf("probe", "%s: %v", sourcePath, err)
	}
	if md.Path == "" {
		md.Path = sourcePath
	}
	return md, nil
}
