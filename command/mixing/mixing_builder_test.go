package mixing

import (
	"errors"
	"strings"
	"testing"

	"splicer/command"
	"splicer/models"
)

func TestNewMixingBuilder(t *testing.T) {
	builder := NewMixingBuilder("/output/mixed.mp4")

	if builder.outputPath != "/output/mixed.mp4" {
		t.Error("Expected outputPath to be set")
	}
	if builder.layout != LayoutSideBySide {
		t.Errorf("Expected side-by-side default, got %s", builder.layout)
	}
	if builder.width != 640 || builder.height != 360 {
		t.Errorf("Expected 640x360 default tiles, got %dx%d", builder.width, builder.height)
	}
}

func TestMixingBuilder_SideBySideExpression(t *testing.T) {
	expr, err := NewMixingBuilder("out.mp4").
		AddInput("a.mp4").
		AddInput("b.mp4").
		AddInput("c.mp4").
		SetTileSize(320, 180).
		FilterExpression()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	parts := strings.Split(expr, ";")
	if len(parts) != 4 {
		t.Fatalf("Expected 3 input chains plus the stack, got %d: %s", len(parts), expr)
	}
	for i, prefix := range []string{"[0:v]scale=320:180", "[1:v]scale=320:180", "[2:v]scale=320:180"} {
		if !strings.HasPrefix(parts[i], prefix) {
			t.Errorf("Chain %d should start with %s, got %s", i, prefix, parts[i])
		}
		if !strings.Contains(parts[i], "format=yuv420p") {
			t.Errorf("Chain %d should normalize the pixel format", i)
		}
	}
	if parts[3] != "[v0][v1][v2]hstack=inputs=3:shortest=1[vout]" {
		t.Errorf("Unexpected stack: %s", parts[3])
	}
}

func TestMixingBuilder_OverlayExpression(t *testing.T) {
	tests := []struct {
		corner   Corner
		position string
	}{
		{CornerTopLeft, "overlay=10:10"},
		{CornerTopRight, "overlay=W-w-10:10"},
		{CornerBottomLeft, "overlay=10:H-h-10"},
		{CornerBottomRight, "overlay=W-w-10:H-h-10"},
	}

	for _, tt := range tests {
		t.Run(string(tt.corner), func(t *testing.T) {
			expr, err := NewMixingBuilder("out.mp4").
				AddInput("screen.mp4").
				AddInput("webcam.mp4").
				SetLayout(LayoutOverlay).
				SetTileSize(1280, 720).
				SetOverlay(0.25, tt.corner, 10).
				FilterExpression()
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if !strings.Contains(expr, "[1:v]scale=320:-2") {
				t.Errorf("Expected overlay scaled to a quarter of the width: %s", expr)
			}
			if !strings.Contains(expr, "[v0][v1]"+tt.position) {
				t.Errorf("Expected %s in: %s", tt.position, expr)
			}
			if !strings.HasSuffix(expr, "[vout]") {
				t.Errorf("Expected graph to end in [vout]: %s", expr)
			}
		})
	}
}

func TestMixingBuilder_BuildSpec(t *testing.T) {
	spec, err := NewMixingBuilder("out.mp4").
		AddInput("a.mp4").
		AddInput("b.mp4").
		SetTrim(1, 4).
		SetVolume(0.5).
		SetProgress(true).
		BuildSpec()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	argsStr := strings.Join(spec.Args, " ")
	for _, want := range []string{
		"-ss 1 -t 4 -i a.mp4",
		"-ss 1 -t 4 -i b.mp4",
		"-filter_complex",
		"-map [vout] -map 0:a?",
		"-af volume=0.5",
		"-c:v libx264",
		"-progress pipe:2",
	} {
		if !strings.Contains(argsStr, want) {
			t.Errorf("Expected %q in: %s", want, argsStr)
		}
	}
	if spec.Task != command.TaskTypeMixing {
		t.Errorf("Expected mixing task, got %s", spec.Task)
	}
}

func TestMixingBuilder_Validation(t *testing.T) {
	tests := []struct {
		name    string
		builder *MixingBuilder
	}{
		{"one input side by side", NewMixingBuilder("out.mp4").AddInput("a.mp4")},
		{"three inputs overlay", NewMixingBuilder("out.mp4").AddInput("a").AddInput("b").AddInput("c").SetLayout(LayoutOverlay)},
		{"odd tile", NewMixingBuilder("out.mp4").AddInput("a").AddInput("b").SetTileSize(641, 360)},
		{"zero tile", NewMixingBuilder("out.mp4").AddInput("a").AddInput("b").SetTileSize(0, 0)},
		{"negative tile", NewMixingBuilder("out.mp4").AddInput("a").AddInput("b").SetTileSize(-2, 360)},
		{"unknown layout", NewMixingBuilder("out.mp4").AddInput("a").AddInput("b").SetLayout("grid")},
		{"overlay too large", NewMixingBuilder("out.mp4").AddInput("a").AddInput("b").SetLayout(LayoutOverlay).SetOverlay(1.5, CornerTopLeft, 0)},
		{"negative margin", NewMixingBuilder("out.mp4").AddInput("a").AddInput("b").SetLayout(LayoutOverlay).SetOverlay(0.2, CornerTopLeft, -1)},
		{"no output", NewMixingBuilder("").AddInput("a").AddInput("b")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.builder.BuildSpec(); !errors.Is(err, models.ErrInvalidInput) {
				t.Errorf("Expected InvalidInput, got %v", err)
			}
		})
	}
}

func TestMixingBuilder_SetTileSizeOneSide(t *testing.T) {
	tests := []struct {
		name           string
		width, height  int
		expectedWidth  int
		expectedHeight int
	}{
		{"both sides", 800, 600, 800, 600},
		{"width only", 800, 0, 800, 450},
		{"height only", 0, 720, 1280, 720},
		{"odd derived side rounds down", 500, 0, 500, 280},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewMixingBuilder("out.mp4").AddInput("a.mp4").AddInput("b.mp4").SetTileSize(tt.width, tt.height)
			if b.width != tt.expectedWidth || b.height != tt.expectedHeight {
				t.Errorf("Expected %dx%d, got %dx%d", tt.expectedWidth, tt.expectedHeight, b.width, b.height)
			}
			if _, err := b.BuildSpec(); err != nil {
				t.Errorf("Expected valid spec, got %v", err)
			}
		})
	}
}

func TestMixingBuilder_ImplementsCommand(t *testing.T) {
	var cmd command.Command = NewMixingBuilder("out.mp4").AddInput("a.mp4").AddInput("b.mp4")

	if cmd.GetTaskType() != command.TaskTypeMixing {
		t.Errorf("Expected mixing task type, got %s", cmd.GetTaskType())
	}
	if cmd.GetInputPath() != "a.mp4" || cmd.GetOutputPath() != "out.mp4" {
		t.Error("Unexpected input/output paths")
	}
	if NewMixingBuilder("out.mp4").GetInputPath() != "" {
		t.Error("Expected empty input path without inputs")
	}

	dry, err := cmd.DryRun()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.HasPrefix(dry, "ffmpeg ") {
		t.Errorf("Unexpected dry run: %s", dry)
	}
}

func TestEvenAtLeastTwo(t *testing.T) {
	tests := []struct{ in, out int }{{0, 2}, {1, 2}, {3, 2}, {321, 320}, {320, 320}}
	for _, tt := range tests {
		if got := evenAtLeastTwo(tt.in); got != tt.out {
			t.Errorf("evenAtLeastTwo(%d) = %d; want %d", tt.in, got, tt.out)
		}
	}
}
