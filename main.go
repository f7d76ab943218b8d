package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"splicer/api"
	"splicer/command/mixing"
	"splicer/config"
	"splicer/ffprobe"
	"splicer/internal/logging"
	"splicer/internal/timeutil"
	"splicer/models"
	"splicer/orchestrator"
)

const version = "0.1.0"

const usage = `Usage: splicer <command> [flags] [args]

Commands:
  probe      Show media metadata for a file
  trim       Cut a time range out of a file
  thumbnail  Extract a JPEG thumbnail
  export     Run an export job described by a YAML file
  audio      Extract the audio track as MP3
  convert    Re-encode a recording into a widely playable MP4
  compose    Combine videos side by side or picture-in-picture
  check      Verify ffmpeg and ffprobe are available
  serve      Start the local HTTP API
  config     Print or save the effective configuration

Run 'splicer <command> -h' for command flags.
`

type commandFunc func(ctx context.Context, args []string) error

var commands = map[string]commandFunc{
	"probe":     runProbe,
	"trim":      runTrim,
	"thumbnail": runThumbnail,
	"export":    runExport,
	"audio":     runAudio,
	"convert":   runConvert,
	"compose":   runCompose,
	"check":     runCheck,
	"serve":     runServe,
	"config":    runConfig,
}

func main() {
	// Ctrl+C and SIGTERM cancel the running operation; cleanup still runs
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run dispatches args to a subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(stdout, usage)
		return 0
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "❌ Unknown command %q\n\n%s", args[0], usage)
		return 2
	}
	return exitCode(ctx, cmd(ctx, args[1:]), stderr)
}

// exitCode reports err on stderr and maps it to 0, 1 or 130.
func exitCode(ctx context.Context, err error, stderr io.Writer) int {
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if errors.Is(err, models.ErrCancelled) || ctx.Err() != nil {
		fmt.Fprintln(stderr, "\n⚠️  Cancelled, partial output removed")
		return 130 // Standard exit code for SIGINT
	}
	fmt.Fprintf(stderr, "\n❌ %s\n", models.Describe(err))
	if tail := models.StderrOf(err); tail != "" {
		fmt.Fprintf(stderr, "\nTool output:\n%s\n", indent(tail))
	}
	return 1
}

// env is the shared setup of every subcommand.
type env struct {
	cfg    *config.Config
	logger zerolog.Logger
	orch   *orchestrator.Orchestrator
}

// newFlagSet creates a subcommand FlagSet carrying the shared config flags.
// synopsis is the usage line after "splicer ".
func newFlagSet(name, synopsis string) (*flag.FlagSet, *config.Flags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: splicer %s\n\nFlags:\n", synopsis)
		fs.PrintDefaults()
	}
	return fs, config.RegisterFlags(fs)
}

func setup(fs *flag.FlagSet, flags *config.Flags, args []string) (*env, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg, err := config.Load(flags)
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.LogLevel, os.Stderr)
	return &env{
		cfg:    cfg,
		logger: logger,
		orch:   orchestrator.New(cfg, orchestrator.WithLogger(logger)),
	}, nil
}

func runProbe(ctx context.Context, args []string) error {
	fs, flags := newFlagSet("probe", "probe [flags] <file>")
	e, err := setup(fs, flags, args)
	if err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return models.Invalidf("probe", "expected exactly one file")
	}
	path := fs.Arg(0)

	md, err := e.orch.Probe(ctx, path)
	if err != nil {
		return err
	}

	fmt.Println("📊 Media Analysis")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  File:        %s\n", path)
	fmt.Printf("  Duration:    %s (%.3fs)\n", timeutil.FormatSeconds(md.Duration), md.Duration)
	if md.Width > 0 {
		fmt.Printf("  Resolution:  %dx%d\n", md.Width, md.Height)
		fmt.Printf("  Frame rate:  %.3f fps\n", md.FrameRate)
	}
	fmt.Printf("  Codec:       %s\n", md.Codec)
	if md.BitRate > 0 {
		fmt.Printf("  Bitrate:     %.0f kbps\n", float64(md.BitRate)/1000)
	}
	fmt.Printf("  Audio:       %v\n", md.HasAudio)
	fmt.Printf("  Format:      %s\n", md.Format)
	if !ffprobe.IsSupportedContainer(path) {
		fmt.Printf("  ⚠️  %s is not a supported import container\n", strings.ToLower(extOf(path)))
	}
	return nil
}

func runTrim(ctx context.Context, args []string) error {
	fs, flags := newFlagSet("trim", "trim [flags] -in <file> -out <file> -start <s> -end <s>")
	in := fs.String("in", "", "Input file")
	out := fs.String("out", "", "Output file")
	start := fs.Float64("start", 0, "Start in seconds")
	end := fs.Float64("end", 0, "End in seconds")
	volume := fs.Float64("volume", -1, "Audio gain 0.0-1.0 (default: unchanged)")
	mute := fs.Bool("mute", false, "Silence the audio track")
	dryRun := fs.Bool("dry-run", false, "Print the ffmpeg command instead of running it")

	e, err := setup(fs, flags, args)
	if err != nil {
		return err
	}

	req := orchestrator.TrimRequest{Input: *in, Output: *out, Start: *start, End: *end, Muted: *mute}
	if *volume >= 0 {
		req.Volume = volume
	}
	if *dryRun {
		return printPreview(e.orch.PreviewTrim(req))
	}

	fmt.Printf("✂️  Trimming %s [%s → %s]\n", *in, timeutil.FormatSeconds(*start), timeutil.FormatSeconds(*end))
	started := time.Now()
	if err := e.orch.Trim(ctx, req, newProgressPrinter(os.Stdout)); err != nil {
		return err
	}
	fmt.Printf("\r  ✓ Output: %s (%.2fs)              \n", *out, time.Since(started).Seconds())
	return nil
}

func runThumbnail(ctx context.Context, args []string) error {
	fs, flags := newFlagSet("thumbnail", "thumbnail [flags] -in <file> [-out <file>] [-at <s>]")
	in := fs.String("in", "", "Input file")
	out := fs.String("out", "", "Output JPEG (default: <thumbnail-dir>/<name>_thumb.jpg)")
	at := fs.Float64("at", -1, "Timestamp in seconds (default: automatic)")

	e, err := setup(fs, flags, args)
	if err != nil {
		return err
	}

	req := orchestrator.ThumbnailRequest{Input: *in, Output: *out}
	if *at >= 0 {
		req.Timestamp = at
	}
	path, err := e.orch.GenerateThumbnail(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("🖼️  Thumbnail: %s\n", path)
	return nil
}

func runAudio(ctx context.Context, args []string) error {
	fs, flags := newFlagSet("audio", "audio [flags] -in <file> [-out <file>]")
	in := fs.String("in", "", "Input file")
	out := fs.String("out", "", "Output MP3 (default: <audio-dir>/<name>.mp3)")
	start := fs.Float64("start", 0, "Start in seconds")
	end := fs.Float64("end", 0, "End in seconds (default: end of input)")
	dryRun := fs.Bool("dry-run", false, "Print the ffmpeg command instead of running it")

	e, err := setup(fs, flags, args)
	if err != nil {
		return err
	}

	req := orchestrator.AudioRequest{Input: *in, Output: *out, Start: *start, End: *end}
	if *dryRun {
		return printPreview(e.orch.PreviewAudio(req))
	}
	path, err := e.orch.ExtractAudio(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("🎵 Audio: %s\n", path)
	return nil
}

func runCompose(ctx context.Context, args []string) error {
	fs, flags := newFlagSet("compose", "compose [flags] -out <file> <input> <input> ...")
	out := fs.String("out", "", "Output file")
	layout := fs.String("layout", string(mixing.LayoutSideBySide), "Layout: side-by-side or overlay")
	corner := fs.String("corner", "", "Overlay corner: top-left, top-right, bottom-left, bottom-right")
	width := fs.Int("width", 0, "Tile width (default: 640)")
	height := fs.Int("height", 0, "Tile height (default: 360)")
	start := fs.Float64("start", 0, "Start in seconds")
	duration := fs.Float64("duration", 0, "Length in seconds (default: shortest input)")
	dryRun := fs.Bool("dry-run", false, "Print the ffmpeg command instead of running it")

	e, err := setup(fs, flags, args)
	if err != nil {
		return err
	}

	req := orchestrator.ComposeRequest{
		Inputs:   fs.Args(),
		Output:   *out,
		Layout:   mixing.Layout(*layout),
		Corner:   mixing.Corner(*corner),
		Width:    *width,
		Height:   *height,
		Start:    *start,
		Duration: *duration,
	}
	if *dryRun {
		return printPreview(e.orch.PreviewCompose(req))
	}

	fmt.Printf("🎞️  Composing %d inputs (%s)\n", len(req.Inputs), req.Layout)
	if err := e.orch.Compose(ctx, req, newProgressPrinter(os.Stdout)); err != nil {
		return err
	}
	fmt.Printf("\r  ✓ Output: %s              \n", *out)
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs, flags := newFlagSet("export", "export [flags] <job.yaml>")
	fill := fs.Bool("fill", false, "Crop clips to cover the resolution instead of letterboxing")
	e, err := setup(fs, flags, args)
	if err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return models.Invalidf("export", "expected exactly one job file")
	}

	req, err := config.LoadJobFile(fs.Arg(0))
	if err != nil {
		return err
	}
	if *fill {
		req.Fill = true
	}

	fmt.Println("╔════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                    SPLICER - EXPORT START                      ║")
	fmt.Println("╚════════════════════════════════════════════════════════════════╝")
	fmt.Printf("Clips:      %d (%.2fs total)\n", len(req.Clips), models.TotalDuration(req.Clips))
	fmt.Printf("Output:     %s\n", req.Output)
	fmt.Printf("Resolution: %s\n", req.Resolution)
	fmt.Println()

	job := orchestrator.NewJob(*req)
	started := time.Now()
	if err := e.orch.Run(ctx, job, newProgressPrinter(os.Stdout)); err != nil {
		return err
	}
	elapsed := time.Since(started)

	var size int64
	if info, err := os.Stat(req.Output); err == nil {
		size = info.Size()
	}
	duration := models.TotalDuration(req.Clips)

	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Println("                     ✅ SUCCESS!")
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Printf("  Job:         %s\n", job.ID)
	fmt.Printf("  Output:      %s\n", req.Output)
	fmt.Printf("  Size:        %.2f MB\n", float64(size)/(1024*1024))
	fmt.Printf("  Duration:    %.2fs\n", duration)
	fmt.Printf("  Total time:  %.2fs\n", elapsed.Seconds())
	fmt.Printf("  Speed:       %.2fx realtime\n", duration/elapsed.Seconds())
	fmt.Println("═══════════════════════════════════════════════════════════")
	return nil
}

func runConvert(ctx context.Context, args []string) error {
	fs, flags := newFlagSet("convert", "convert [flags] -in <file> -out <file>")
	in := fs.String("in", "", "Input file")
	out := fs.String("out", "", "Output MP4")
	width := fs.Int("width", 0, "Target width (default: keep size, rounded to even)")
	height := fs.Int("height", 0, "Target height")
	fill := fs.Bool("fill", false, "Crop to cover the target size instead of letterboxing")
	dryRun := fs.Bool("dry-run", false, "Print the ffmpeg command instead of running it")

	e, err := setup(fs, flags, args)
	if err != nil {
		return err
	}

	req := orchestrator.ConvertRequest{Input: *in, Output: *out, Width: *width, Height: *height, Fill: *fill}
	if *dryRun {
		return printPreview(e.orch.PreviewConvert(req))
	}

	fmt.Printf("🔄 Converting %s\n", *in)
	started := time.Now()
	if err := e.orch.Convert(ctx, req, newProgressPrinter(os.Stdout)); err != nil {
		return err
	}
	fmt.Printf("\r  ✓ Output: %s (%.2fs)              \n", *out, time.Since(started).Seconds())
	return nil
}

// printPreview prints the command line returned by an orchestrator preview.
func printPreview(line string, err error) error {
	if err != nil {
		return err
	}
	fmt.Println(line)
	return nil
}

func runCheck(ctx context.Context, args []string) error {
	fs, flags := newFlagSet("check", "check [flags]")
	e, err := setup(fs, flags, args)
	if err != nil {
		return err
	}

	tools, err := e.orch.CheckTools(ctx)
	if err != nil {
		return err
	}
	for _, tool := range tools {
		fmt.Printf("✓ %-8s %s\n", tool.Name, tool.Path)
		fmt.Printf("  %s\n", tool.Version)
	}
	return nil
}

func runServe(ctx context.Context, args []string) error {
	fs, flags := newFlagSet("serve", "serve [flags]")
	e, err := setup(fs, flags, args)
	if err != nil {
		return err
	}

	sessions := orchestrator.NewSessionManager(ctx, e.orch, e.cfg.Sessions.MaxConcurrent, e.logger)
	server := api.NewServer(api.ServerConfig{
		Addr:         e.cfg.Server.Addr,
		Orchestrator: e.orch,
		Sessions:     sessions,
		Logger:       e.logger,
		StartTime:    time.Now(),
		Version:      version,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		e.logger.Warn().Err(err).Msg("HTTP shutdown incomplete")
	}
	if err := sessions.Shutdown(shutdownCtx); err != nil {
		e.logger.Warn().Err(err).Msg("Jobs did not finish cleanup in time")
	}
	return nil
}

func runConfig(ctx context.Context, args []string) error {
	fs, flags := newFlagSet("config", "config [flags] [print|save <path>]")
	e, err := setup(fs, flags, args)
	if err != nil {
		return err
	}

	switch fs.Arg(0) {
	case "", "print":
		e.cfg.PrintConfig(os.Stdout)
		return nil
	case "save":
		if fs.NArg() != 2 {
			return models.Invalidf("config", "save needs a destination path")
		}
		if err := config.SaveConfigFile(e.cfg, fs.Arg(1)); err != nil {
			return err
		}
		fmt.Printf("✓ Configuration saved to %s\n", fs.Arg(1))
		return nil
	}
	return models.Invalidf("config", "unknown action %q (want print or save)", fs.Arg(0))
}

// newProgressPrinter renders progress as a rewriting bar on a terminal and
// as one line per value otherwise.
func newProgressPrinter(f *os.File) models.ProgressFunc {
	if !term.IsTerminal(int(f.Fd())) {
		return func(percent int) {
			fmt.Fprintf(f, "progress=%d\n", percent)
		}
	}

	const width = 40
	return func(percent int) {
		filled := percent * width / 100
		fmt.Fprintf(f, "\r  [%s%s] %3d%%", strings.Repeat("█", filled), strings.Repeat("░", width-filled), percent)
		if percent >= 100 {
			fmt.Fprintln(f)
		}
	}
}

func indent(text string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	return "    " + strings.Join(lines, "\n    ")
}

func extOf(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 && !strings.ContainsAny(path[i:], `/\`) {
		return path[i:]
	}
	return "file"
}
