// Package command builds ffmpeg invocations from declared editing operations.
//
// A Builder accumulates Operations in call order and resolves them at Build
// time into an immutable Spec: the ordered inputs, the complete argument
// vector and the declared output path. Building never touches the
// filesystem; the ffmpeg package executes Specs.
//
// Example usage:
//
//	spec, err := command.NewBuilder().
//		Trim(1.5, 4).
//		ScaleFit(1280, 720).
//		Volume(0.5).
//		Encode("medium", 23).
//		WithProgress().
//		Build([]string{"/media/intro.mp4"}, "/tmp/job/clip_000.mp4")
//
//	fmt.Println(spec) // ffmpeg -hide_banner -nostdin -ss 1.5 -t 4 -i /media/intro.mp4 ...
package command

import (
	"strconv"
	"strings"
)

// TaskType labels what an invocation does. It is used for logging and metrics.
type TaskType string

const (
	TaskTypeVideo     TaskType = "video"     // Trim/scale/encode of a single clip
	TaskTypeConcat    TaskType = "concat"    // Concat demuxer pass
	TaskTypeThumbnail TaskType = "thumbnail" // Single frame extraction
	TaskTypeMixing    TaskType = "mixing"    // Multi-input filter graph
	TaskTypeAudio     TaskType = "audio"     // Audio-only extraction
	TaskTypeProbe     TaskType = "probe"     // ffprobe metadata query
	TaskTypeVersion   TaskType = "version"   // Tool availability check
)

// Tool names a Spec can target.
const (
	ToolFFmpeg  = "ffmpeg"
	ToolFFprobe = "ffprobe"
)

// Spec is a fully resolved invocation. Treat it as read-only data; Build
// returns fresh slices so callers never share backing arrays.
type Spec struct {
	Tool   string   // "ffmpeg" or "ffprobe", resolved to a path at run time
	Task   TaskType // What the invocation does
	Inputs []string // Input files in -i order
	Args   []string // Complete argument vector, without the program name
	Output string   // Declared output file, empty when results go to stdout
}

// Argv returns a copy of the argument vector.
func (s Spec) Argv() []string {
	return append([]string(nil), s.Args...)
}

// String renders the invocation as a shell-like command line for logs and
// dry runs.
func (s Spec) String() string {
	parts := make([]string, 0, len(s.Args)+1)
	parts = append(parts, s.Tool)
	for _, arg := range s.Args {
		if arg == "" || strings.ContainsAny(arg, " \t'\"") {
			arg = strconv.Quote(arg)
		}
		parts = append(parts, arg)
	}
	return strings.Join(parts, " ")
}

// Command is implemented by every builder that produces a Spec.
type Command interface {
	// BuildSpec resolves the builder into an invocation.
	BuildSpec() (Spec, error)

	// DryRun returns the command line without executing it.
	DryRun() (string, error)

	// GetTaskType returns what the invocation does.
	GetTaskType() TaskType

	// GetInputPath returns the primary input file.
	GetInputPath() string

	// GetOutputPath returns the output file.
	GetOutputPath() string
}
