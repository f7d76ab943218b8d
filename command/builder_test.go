package command

import (
	"errors"
	"math"
	"strings"
	"testing"

	"splicer/models"
)

// indexOf returns the position of the first occurrence of arg, or -1.
func indexOf(args []string, arg string) int {
	for i, a := range args {
		if a == arg {
			return i
		}
	}
	return -1
}

// valueOf returns the argument following flag, or "".
func valueOf(args []string, flag string) string {
	i := indexOf(args, flag)
	if i < 0 || i+1 >= len(args) {
		return ""
	}
	return args[i+1]
}

func TestBuilder_TrimScaleEncodeOrder(t *testing.T) {
	// Declared out of order on purpose
	spec, err := NewBuilder().
		WithProgress().
		Encode("fast", 20).
		ScaleFit(1280, 720).
		Volume(0.5).
		Trim(1.5, 4).
		Build([]string{"/media/in.mp4"}, "/tmp/out.mp4")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	got := strings.Join(spec.Args, " ")
	want := "-hide_banner -nostdin -ss 1.5 -t 4 -i /media/in.mp4 " +
		"-vf scale=1280:720:force_original_aspect_ratio=decrease,pad=1280:720:(ow-iw)/2:(oh-ih)/2:black,setsar=1 " +
		"-af volume=0.5 " +
		"-c:v libx264 -preset fast -crf 20 -pix_fmt yuv420p -c:a aac -b:a 128k " +
		"-progress pipe:2 -nostats -y /tmp/out.mp4"
	if got != want {
		t.Errorf("Unexpected args\n got: %s\nwant: %s", got, want)
	}

	if spec.Tool != ToolFFmpeg {
		t.Errorf("Expected tool ffmpeg, got %s", spec.Tool)
	}
	if spec.Task != TaskTypeVideo {
		t.Errorf("Expected task video, got %s", spec.Task)
	}
	if spec.Output != "/tmp/out.mp4" {
		t.Errorf("Expected output /tmp/out.mp4, got %s", spec.Output)
	}
	if len(spec.Inputs) != 1 || spec.Inputs[0] != "/media/in.mp4" {
		t.Errorf("Unexpected inputs: %v", spec.Inputs)
	}
}

func TestBuilder_StreamCopyConflicts(t *testing.T) {
	tests := []struct {
		name        string
		build       func(*Builder) *Builder
		contains    []string
		notContains []string
	}{
		{
			name:        "copy alone copies everything",
			build:       func(b *Builder) *Builder { return b.Trim(0, 5).StreamCopy() },
			contains:    []string{"-c copy", "-avoid_negative_ts make_zero"},
			notContains: []string{"-c:a aac", "-af"},
		},
		{
			name:        "copy with volume re-encodes audio only",
			build:       func(b *Builder) *Builder { return b.StreamCopy().Volume(0.3) },
			contains:    []string{"-af volume=0.3", "-c:v copy", "-c:a aac", "-avoid_negative_ts make_zero"},
			notContains: []string{"-c copy", "-c:v libx264"},
		},
		{
			name:        "copy with mute re-encodes audio only",
			build:       func(b *Builder) *Builder { return b.Mute().StreamCopy() },
			contains:    []string{"-af volume=0", "-c:v copy", "-c:a aac"},
			notContains: []string{"-c copy", "-an"},
		},
		{
			name:        "unity volume keeps full copy",
			build:       func(b *Builder) *Builder { return b.StreamCopy().Volume(1.0) },
			contains:    []string{"-c copy"},
			notContains: []string{"-af", "-c:a aac"},
		},
		{
			name:        "copy with scale re-encodes video only",
			build:       func(b *Builder) *Builder { return b.StreamCopy().Scale(640, 0) },
			contains:    []string{"-vf scale=640:-2", "-c:v libx264", "-c:a copy"},
			notContains: []string{"-c copy", "-c:v copy"},
		},
		{
			name:        "copy with both filters re-encodes both",
			build:       func(b *Builder) *Builder { return b.StreamCopy().ScaleEven().Mute() },
			contains:    []string{"-c:v libx264", "-c:a aac"},
			notContains: []string{"copy"},
		},
		{
			name:        "encode after copy wins",
			build:       func(b *Builder) *Builder { return b.StreamCopy().Encode("slow", 18) },
			contains:    []string{"-c:v libx264 -preset slow -crf 18"},
			notContains: []string{"copy"},
		},
		{
			name:        "copy after encode wins",
			build:       func(b *Builder) *Builder { return b.Encode("slow", 18).StreamCopy() },
			contains:    []string{"-c copy"},
			notContains: []string{"libx264"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := tt.build(NewBuilder()).Build([]string{"in.mp4"}, "out.mp4")
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			argsStr := strings.Join(spec.Args, " ")
			for _, want := range tt.contains {
				if !strings.Contains(argsStr, want) {
					t.Errorf("Expected %q in: %s", want, argsStr)
				}
			}
			for _, unwanted := range tt.notContains {
				if strings.Contains(argsStr, unwanted) {
					t.Errorf("Did not expect %q in: %s", unwanted, argsStr)
				}
			}
		})
	}
}

func TestBuilder_VolumeClampAndMute(t *testing.T) {
	tests := []struct {
		name     string
		build    func(*Builder) *Builder
		expected string
	}{
		{"clamps high to unity, which is no filter", func(b *Builder) *Builder { return b.Volume(3) }, ""},
		{"clamps low", func(b *Builder) *Builder { return b.Volume(-1) }, "volume=0"},
		{"mute before volume wins", func(b *Builder) *Builder { return b.Mute().Volume(0.7) }, "volume=0"},
		{"mute after volume wins", func(b *Builder) *Builder { return b.Volume(0.7).Mute() }, "volume=0"},
		{"last volume wins", func(b *Builder) *Builder { return b.Volume(0.2).Volume(0.4) }, "volume=0.4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := tt.build(NewBuilder()).MustBuild([]string{"in.mp4"}, "out.mp4")
			if got := valueOf(spec.Args, "-af"); got != tt.expected {
				t.Errorf("Expected -af %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestBuilder_ScaleModes(t *testing.T) {
	tests := []struct {
		name     string
		build    func(*Builder) *Builder
		expected string
	}{
		{"exact", func(b *Builder) *Builder { return b.Scale(640, 360) }, "scale=640:360"},
		{"width only", func(b *Builder) *Builder { return b.Scale(640, 0) }, "scale=640:-2"},
		{"height only", func(b *Builder) *Builder { return b.Scale(0, 480) }, "scale=-2:480"},
		{"fill", func(b *Builder) *Builder { return b.ScaleFill(1080, 1920) },
			"scale=1080:1920:force_original_aspect_ratio=increase,crop=1080:1920,setsar=1"},
		{"even", func(b *Builder) *Builder { return b.ScaleEven() }, "scale=trunc(iw/2)*2:trunc(ih/2)*2"},
		{"last wins", func(b *Builder) *Builder { return b.Scale(100, 100).Scale(200, 200) }, "scale=200:200"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := tt.build(NewBuilder()).MustBuild([]string{"in.mp4"}, "out.mp4")
			if got := valueOf(spec.Args, "-vf"); got != tt.expected {
				t.Errorf("Expected -vf %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestBuilder_Thumbnail(t *testing.T) {
	spec, err := NewBuilder().
		Trim(3, 2).
		Thumbnail(1.25).
		ThumbnailBox(1920, 1080, 320, 180).
		Volume(0.5).
		Build([]string{"in.mp4"}, "in_thumb.jpg")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	argsStr := strings.Join(spec.Args, " ")
	want := "-hide_banner -nostdin -ss 1.25 -i in.mp4 -vf scale=320:180 -frames:v 1 -y in_thumb.jpg"
	if argsStr != want {
		t.Errorf("Unexpected args\n got: %s\nwant: %s", argsStr, want)
	}
	if spec.Task != TaskTypeThumbnail {
		t.Errorf("Expected thumbnail task, got %s", spec.Task)
	}
}

func TestBuilder_Concat(t *testing.T) {
	spec, err := NewBuilder().
		Concat().
		StreamCopy().
		WithProgress().
		Build([]string{"/tmp/job/concat_list.txt"}, "/out/final.mp4")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	argsStr := strings.Join(spec.Args, " ")
	want := "-hide_banner -nostdin -f concat -safe 0 -i /tmp/job/concat_list.txt " +
		"-c copy -avoid_negative_ts make_zero -progress pipe:2 -nostats -y /out/final.mp4"
	if argsStr != want {
		t.Errorf("Unexpected args\n got: %s\nwant: %s", argsStr, want)
	}
	if spec.Task != TaskTypeConcat {
		t.Errorf("Expected concat task, got %s", spec.Task)
	}
}

func TestBuilder_FilterGraphMapsOutput(t *testing.T) {
	graph := "[0:v]scale=640:360,format=yuv420p[v0];[1:v]scale=640:360,format=yuv420p[v1];[v0][v1]hstack=inputs=2[vout]"
	spec, err := NewBuilder().
		FilterGraph(graph, "vout").
		Encode("", -1).
		Build([]string{"a.mp4", "b.mp4"}, "out.mp4")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if valueOf(spec.Args, "-filter_complex") != graph {
		t.Error("Expected -filter_complex with the graph expression")
	}
	if valueOf(spec.Args, "-map") != "[vout]" {
		t.Errorf("Expected final label mapped first, got %s", valueOf(spec.Args, "-map"))
	}
	if indexOf(spec.Args, "-vf") >= 0 {
		t.Error("Filter graph must not also emit -vf")
	}
	if n := strings.Count(strings.Join(spec.Args, " "), "-i "); n != 2 {
		t.Errorf("Expected 2 inputs, got %d", n)
	}
	if valueOf(spec.Args, "-preset") != "medium" || valueOf(spec.Args, "-crf") != "23" {
		t.Error("Expected Encode(\"\", -1) to keep the configured preset and crf")
	}
	if spec.Task != TaskTypeMixing {
		t.Errorf("Expected mixing task, got %s", spec.Task)
	}
}

func TestBuilder_TrimAppliesToEveryInput(t *testing.T) {
	spec := NewBuilder().
		TrimRange(2, 5).
		FilterGraph("[0:v][1:v]hstack=inputs=2[out]", "out").
		MustBuild([]string{"a.mp4", "b.mp4"}, "out.mp4")

	argsStr := strings.Join(spec.Args, " ")
	if strings.Count(argsStr, "-ss 2 -t 3 -i") != 2 {
		t.Errorf("Expected seek options before both inputs: %s", argsStr)
	}
}

func TestBuilder_InvariantViolations(t *testing.T) {
	tests := []struct {
		name   string
		build  func(*Builder) *Builder
		inputs []string
		output string
	}{
		{"no inputs", func(b *Builder) *Builder { return b }, nil, "out.mp4"},
		{"blank input", func(b *Builder) *Builder { return b }, []string{" "}, "out.mp4"},
		{"no output", func(b *Builder) *Builder { return b }, []string{"in.mp4"}, ""},
		{"negative trim", func(b *Builder) *Builder { return b.Trim(-1, 2) }, []string{"in.mp4"}, "out.mp4"},
		{"empty trim", func(b *Builder) *Builder { return b.TrimRange(3, 3) }, []string{"in.mp4"}, "out.mp4"},
		{"NaN trim start", func(b *Builder) *Builder { return b.Trim(math.NaN(), 2) }, []string{"in.mp4"}, "out.mp4"},
		{"NaN trim end", func(b *Builder) *Builder { return b.TrimRange(0, math.NaN()) }, []string{"in.mp4"}, "out.mp4"},
		{"infinite trim", func(b *Builder) *Builder { return b.Trim(0, math.Inf(1)) }, []string{"in.mp4"}, "out.mp4"},
		{"negative thumbnail", func(b *Builder) *Builder { return b.Thumbnail(-1) }, []string{"in.mp4"}, "out.jpg"},
		{"NaN thumbnail", func(b *Builder) *Builder { return b.Thumbnail(math.NaN()) }, []string{"in.mp4"}, "out.jpg"},
		{"concat with two inputs", func(b *Builder) *Builder { return b.Concat() }, []string{"a.txt", "b.txt"}, "out.mp4"},
		{"unmapped graph", func(b *Builder) *Builder { return b.FilterGraph("[0:v]scale=2:2[x]", "vout") }, []string{"in.mp4"}, "out.mp4"},
		{"graph without label", func(b *Builder) *Builder { return b.FilterGraph("[0:v]scale=2:2[x]", "") }, []string{"in.mp4"}, "out.mp4"},
		{"graph with scale", func(b *Builder) *Builder { return b.FilterGraph("[0:v]null[v]", "v").Scale(2, 2) }, []string{"in.mp4"}, "out.mp4"},
		{"zero scale", func(b *Builder) *Builder { return b.Scale(0, 0) }, []string{"in.mp4"}, "out.mp4"},
		{"fit needs both sides", func(b *Builder) *Builder { return b.ScaleFit(640, 0) }, []string{"in.mp4"}, "out.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build(NewBuilder()).Build(tt.inputs, tt.output)
			if err == nil {
				t.Fatal("Expected error but got none")
			}
			if !errors.Is(err, models.ErrInvalidInput) {
				t.Errorf("Expected InvalidInput, got %v", err)
			}
		})
	}
}

func TestBuilder_MustBuildPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected MustBuild to panic on empty inputs")
		}
	}()
	NewBuilder().MustBuild(nil, "out.mp4")
}

func TestBuilder_WithCodecs(t *testing.T) {
	codecs := DefaultCodecs()
	codecs.Video = "libx265"
	codecs.AudioBitrate = ""
	codecs.PixelFormat = ""

	spec := NewBuilder().WithCodecs(codecs).Encode("", -1).PixelFormat("yuv444p").MustBuild([]string{"in.mp4"}, "out.mp4")
	argsStr := strings.Join(spec.Args, " ")

	if !strings.Contains(argsStr, "-c:v libx265") {
		t.Errorf("Expected configured video codec: %s", argsStr)
	}
	if valueOf(spec.Args, "-pix_fmt") != "yuv444p" {
		t.Errorf("Expected pixel format override: %s", argsStr)
	}
	if strings.Contains(argsStr, "-b:a") {
		t.Errorf("Expected no audio bitrate when unset: %s", argsStr)
	}
}

func TestBuilder_BuildReturnsFreshSlices(t *testing.T) {
	inputs := []string{"in.mp4"}
	b := NewBuilder().StreamCopy()
	first := b.MustBuild(inputs, "out.mp4")
	inputs[0] = "changed.mp4"
	first.Args[0] = "mutated"

	second := b.MustBuild([]string{"in.mp4"}, "out.mp4")
	if first.Inputs[0] != "in.mp4" {
		t.Error("Spec inputs must not alias the caller's slice")
	}
	if second.Args[0] != "-hide_banner" {
		t.Error("Specs must not share argument storage")
	}
	argv := second.Argv()
	argv[0] = "x"
	if second.Args[0] != "-hide_banner" {
		t.Error("Argv must return a copy")
	}
}

func TestBind(t *testing.T) {
	tests := []struct {
		name         string
		builder      *Builder
		inputs       []string
		expectedTask TaskType
	}{
		{"video", NewBuilder().Trim(0, 1).Encode("", -1), []string{"in.mp4"}, TaskTypeVideo},
		{"thumbnail", NewBuilder().Thumbnail(1).Scale(320, 180), []string{"in.mp4"}, TaskTypeThumbnail},
		{"concat", NewBuilder().Concat().StreamCopy(), []string{"list.txt"}, TaskTypeConcat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := Bind(tt.builder, tt.inputs, "out.mp4")
			if cmd.GetTaskType() != tt.expectedTask {
				t.Errorf("Expected task %s, got %s", tt.expectedTask, cmd.GetTaskType())
			}
			if cmd.GetInputPath() != tt.inputs[0] || cmd.GetOutputPath() != "out.mp4" {
				t.Errorf("Unexpected paths: %s -> %s", cmd.GetInputPath(), cmd.GetOutputPath())
			}

			spec, err := cmd.BuildSpec()
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			dry, err := cmd.DryRun()
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if dry != spec.String() {
				t.Errorf("Expected dry run %q, got %q", spec.String(), dry)
			}
		})
	}
}

func TestBind_InvalidBuild(t *testing.T) {
	cmd := Bind(NewBuilder(), nil, "out.mp4")
	if cmd.GetInputPath() != "" {
		t.Errorf("Expected empty input path, got %q", cmd.GetInputPath())
	}
	if _, err := cmd.DryRun(); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("Expected InvalidInput, got %v", err)
	}
}

func TestSpec_String(t *testing.T) {
	spec := Spec{Tool: "ffmpeg", Args: []string{"-i", "my clip.mp4", "-y", "out.mp4"}}
	want := `ffmpeg -i "my clip.mp4" -y out.mp4`
	if spec.String() != want {
		t.Errorf("Expected %s, got %s", want, spec.String())
	}

	dry, err := NewBuilder().DryRun([]string{"in.mp4"}, "out.mp4")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.HasPrefix(dry, "ffmpeg -hide_banner") {
		t.Errorf("Unexpected dry run: %s", dry)
	}
}

func TestFitBox(t *testing.T) {
	tests := []struct {
		name                 string
		srcW, srcH           int
		boxW, boxH           int
		expectedW, expectedH int
	}{
		{"Landscape 16:9", 1920, 1080, 320, 180, 320, 180},
		{"Portrait 9:16", 1080, 1920, 320, 180, 101, 180},
		{"Square is height constrained", 1000, 1000, 320, 180, 180, 180},
		{"Landscape 4:3 derives height", 1440, 1080, 320, 180, 320, 240},
		{"Ultra narrow stays visible", 10, 10000, 320, 180, 1, 180},
		{"Unknown source", 0, 0, 320, 180, 320, 180},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := FitBox(tt.srcW, tt.srcH, tt.boxW, tt.boxH)
			if w != tt.expectedW || h != tt.expectedH {
				t.Errorf("FitBox(%d, %d, %d, %d) = %dx%d; want %dx%d",
					tt.srcW, tt.srcH, tt.boxW, tt.boxH, w, h, tt.expectedW, tt.expectedH)
			}
		})
	}
}
