// Package resolver locates the ffmpeg and ffprobe executables.
//
// A bundled copy next to the application wins over a system install. Lookups
// are not cached; callers resolve once per job so that installing or
// removing a binary takes effect on the next job.
package resolver

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"splicer/models"
)

// Binary names used by the pipeline.
const (
	FFmpeg  = "ffmpeg"
	FFprobe = "ffprobe"
)

// Toolset holds resolved absolute paths for one job.
type Toolset struct {
	FFmpeg  string
	FFprobe string
}

// Path returns the resolved path for a tool name, or "" if unknown.
func (t Toolset) Path(name string) string {
	switch name {
	case FFmpeg:
		return t.FFmpeg
	case FFprobe:
		return t.FFprobe
	}
	return ""
}

// Resolver finds executables in a bundle directory or on PATH.
type Resolver struct {
	bundleDir string
	goos      string
	goarch    string
	lookPath  func(string) (string, error)
}

// New creates a Resolver for the running platform. bundleDir may be empty,
// in which case only PATH is searched.
func New(bundleDir string) *Resolver {
	return &Resolver{
		bundleDir: bundleDir,
		goos:      runtime.GOOS,
		goarch:    runtime.GOARCH,
		lookPath:  exec.LookPath,
	}
}

// Resolve returns the absolute path of name, trying in order:
//  1. <bundleDir>/<name>-<target-triple>[.exe]
//  2. <bundleDir>/<name>[.exe]
//  3. PATH lookup
func (r *Resolver) Resolve(name string) (string, error) {
	var tried []string

	if r.bundleDir != "" {
		candidates := []string{
			filepath.Join(r.bundleDir, PlatformBinaryName(name, r.goos, r.goarch)),
			filepath.Join(r.bundleDir, name+exeSuffix(r.goos)),
		}
		for _, candidate := range candidates {
			tried = append(tried, candidate)
			if isExecutable(candidate, r.goos) {
				return filepath.Abs(candidate)
			}
		}
	}

	tried = append(tried, "$PATH")
	if path, err := r.lookPath(name); err == nil {
		if isExecutable(path, r.goos) {
			return filepath.Abs(path)
		}
	}

	return "", models.NewError(models.KindBinaryNotFound, "resolve "+name,
		fmt.Errorf("%s not found (tried %v)", name, tried))
}

// ResolveTools resolves both ffmpeg and ffprobe.
func (r *Resolver) ResolveTools() (Toolset, error) {
	ffmpegPath, err := r.Resolve(FFmpeg)
	if err != nil {
		return Toolset{}, err
	}
	ffprobePath, err := r.Resolve(FFprobe)
	if err != nil {
		return Toolset{}, err
	}
	return Toolset{FFmpeg: ffmpegPath, FFprobe: ffprobePath}, nil
}

// PlatformBinaryName returns the bundled file name for a tool, suffixed with
// the target triple of goos/goarch.
//
//	PlatformBinaryName("ffmpeg", "darwin", "arm64")  // "ffmpeg-aarch64-apple-darwin"
//	PlatformBinaryName("ffmpeg", "windows", "amd64") // "ffmpeg-x86_64-pc-windows-msvc.exe"
func PlatformBinaryName(name, goos, goarch string) string {
	return fmt.Sprintf("%s-%s%s", name, TargetTriple(goos, goarch), exeSuffix(goos))
}

// TargetTriple maps GOOS/GOARCH to the triple used for bundled binaries.
func TargetTriple(goos, goarch string) string {
	arch := goarch
	switch goarch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	case "386":
		arch = "i686"
	}

	switch goos {
	case "darwin":
		return arch + "-apple-darwin"
	case "windows":
		return arch + "-pc-windows-msvc"
	case "linux":
		return arch + "-unknown-linux-gnu"
	}
	return arch + "-unknown-" + goos
}

func exeSuffix(goos string) string {
	if goos == "windows" {
		return ".exe"
	}
	return ""
}

func isExecutable(path, goos string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if !info.Mode().IsRegular() {
		return false
	}
	if goos == "windows" {
		return true
	}
	return info.Mode().Perm()&0111 != 0
}
