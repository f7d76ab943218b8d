package ffmpeg

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"splicer/internal/timeutil"
	"splicer/models"
)

// LineKind classifies one line of ffmpeg diagnostic output.
type LineKind int

const (
	LineIgnored   LineKind = iota // Carries no timing information
	LineProgress                  // Elapsed output time was updated
	LineEnd                       // progress=end, the phase is complete
	LineMalformed                 // A timing key with an unusable value
)

// ProgressParser parses ffmpeg stderr output for encoding metrics.
//
// It understands both the machine-readable -progress format (one key=value
// per line) and the classic stats line ("frame= 24 fps=25 ... time=00:00:01.00
// ... speed=2.00x").
type ProgressParser struct {
	frameRegex *regexp.Regexp
	fpsRegex   *regexp.Regexp
	timeRegex  *regexp.Regexp
	speedRegex *regexp.Regexp
}

// NewProgressParser creates a new parser for ffmpeg progress output
func NewProgressParser() *ProgressParser {
	return &ProgressParser{
		// Match both "frame=123" and "frame= 123" formats
		frameRegex: regexp.MustCompile(`(?:^|\s)frame=\s*(\d+)`),
		fpsRegex:   regexp.MustCompile(`(?:^|\s)fps=\s*([0-9.]+)`),
		timeRegex:  regexp.MustCompile(`(?:^|\s)time=\s*(\S+)`),
		speedRegex: regexp.MustCompile(`(?:^|\s)speed=\s*([0-9.]+)x?`),
	}
}

// ParseLine parses a single line of ffmpeg stderr output and updates progress.
//
// out_time_us and out_time_ms both carry microseconds (ffmpeg reports
// microseconds under the _ms key as well). Frame, fps and speed update the
// metrics but do not advance progress on their own.
func (pp *ProgressParser) ParseLine(line string, progress *models.EncodingProgress) LineKind {
	line = strings.TrimSpace(line)
	if line == "" {
		return LineIgnored
	}

	key, value, isPair := strings.Cut(line, "=")
	if isPair && !strings.ContainsAny(key, " \t") {
		value = strings.TrimSpace(value)
		switch key {
		case "progress":
			if value == "end" {
				progress.Complete()
				return LineEnd
			}
			return LineIgnored
		case "out_time_us", "out_time_ms":
			us, err := strconv.ParseInt(value, 10, 64)
			if err != nil || us < 0 {
				return LineMalformed
			}
			progress.CalculateProgress(float64(us) / 1e6)
			return LineProgress
		case "out_time":
			seconds, err := timeutil.ParseClock(value)
			if err != nil {
				return LineMalformed
			}
			progress.CalculateProgress(seconds)
			return LineProgress
		case "speed":
			if speed, err := strconv.ParseFloat(strings.TrimSuffix(value, "x"), 64); err == nil {
				progress.Speed = speed
			}
			return LineIgnored
		}
	}

	pp.parseStats(line, progress)

	// Classic stats line
	if matches := pp.timeRegex.FindStringSubmatch(line); len(matches) > 1 {
		seconds, err := timeutil.ParseClock(matches[1])
		if err != nil {
			return LineMalformed
		}
		progress.CalculateProgress(seconds)
		return LineProgress
	}

	return LineIgnored
}

func (pp *ProgressParser) parseStats(line string, progress *models.EncodingProgress) {
	if matches := pp.frameRegex.FindStringSubmatch(line); len(matches) > 1 {
		if frame, err := strconv.ParseInt(matches[1], 10, 64); err == nil {
			progress.Frame = frame
		}
	}
	if matches := pp.fpsRegex.FindStringSubmatch(line); len(matches) > 1 {
		if fps, err := strconv.ParseFloat(matches[1], 64); err == nil {
			progress.FPS = fps
		}
	}
	if matches := pp.speedRegex.FindStringSubmatch(line); len(matches) > 1 {
		if speed, err := strconv.ParseFloat(matches[1], 64); err == nil {
			progress.Speed = speed
		}
	}
}

// Tracker turns parsed lines into overall percentages inside one progress
// window. Emitted values never decrease and are never repeated.
type Tracker struct {
	window    models.ProgressWindow
	progress  *models.EncodingProgress
	last      int
	anomalies int
}

// NewTracker creates a tracker for a phase of totalSeconds mapped into window.
func NewTracker(totalSeconds float64, window models.ProgressWindow) *Tracker {
	return &Tracker{
		window:   window,
		progress: models.NewEncodingProgress(totalSeconds),
		last:     -1,
	}
}

// Observe feeds one classified line. It returns the overall percentage and
// true when that value should be emitted.
func (t *Tracker) Observe(kind LineKind) (int, bool) {
	var overall int
	switch kind {
	case LineProgress:
		if t.progress.TotalDuration <= 0 {
			return 0, false
		}
		overall = t.window.Map(t.progress.Percent)
	case LineEnd:
		overall = t.window.End()
	case LineMalformed:
		t.anomalies++
		return 0, false
	default:
		return 0, false
	}

	if overall < t.last {
		t.anomalies++
		return 0, false
	}
	if overall == t.last {
		return 0, false
	}
	t.last = overall
	return overall, true
}

// Progress returns the metrics parsed so far.
func (t *Tracker) Progress() *models.EncodingProgress {
	return t.progress
}

// Last returns the last emitted value, or -1 when nothing was emitted.
func (t *Tracker) Last() int {
	return t.last
}

// Anomalies returns how many lines were malformed or moved backwards.
func (t *Tracker) Anomalies() int {
	return t.anomalies
}

// ScanProgressLines is a bufio.SplitFunc that splits on \n, \r or \r\n.
// ffmpeg rewrites its stats line in place with a bare carriage return.
func ScanProgressLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\r' {
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}
			} else if !atEOF {
				// Need one more byte to tell \r from \r\n
				return 0, nil, nil
			}
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
