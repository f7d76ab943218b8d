package models

import (
	"errors"
	"strings"
)

// stderrHints maps fragments of tool diagnostics to user-facing sentences.
// Order matters: the first match wins.
var stderrHints = []struct {
	fragment string
	message  string
}{
	{"No such file or directory", "The source file could not be found."},
	{"Invalid data found when processing input", "The file is not a supported media file or is corrupted."},
	{"moov atom not found", "The file is incomplete or corrupted."},
	{"Permission denied", "Permission denied while reading or writing a file."},
	{"does not contain any stream", "The file contains no audio or video streams."},
	{"Unknown encoder", "The installed ffmpeg build is missing a required encoder."},
	{"No space left on device", "There is not enough disk space to finish the export."},
}

// Describe converts an error into a single human-readable sentence.
//
// It is meant for the outermost boundary only (CLI output, HTTP responses);
// inside the pipeline errors stay typed.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}

	switch e.Kind {
	case KindBinaryNotFound:
		return "ffmpeg is not installed or could not be found. Install ffmpeg or configure a bundle directory."
	case KindInvalidInput:
		if e.Err != nil {
			return "Invalid input: " + e.Err.Error() + "."
		}
		return "Invalid input."
	case KindCancelled:
		return "The operation was cancelled."
	case KindOutputValidation:
		return "The tool reported success but no output file was produced."
	case KindExecutionFailed:
		for _, hint := range stderrHints {
			if strings.Contains(e.Stderr, hint.fragment) {
				return hint.message
			}
		}
		if line := lastLine(e.Stderr); line != "" {
			return "Processing failed: " + line
		}
		return "Processing failed."
	}

	return err.Error()
}

func lastLine(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
