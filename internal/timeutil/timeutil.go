// Package timeutil provides time formatting and parsing for ffmpeg arguments
// and progress output.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatSeconds converts seconds to HH:MM:SS.MS format for display.
//
// Example:
//
//	FormatSeconds(0)      // "00:00:00.00"
//	FormatSeconds(90)     // "00:01:30.00"
//	FormatSeconds(30.53)  // "00:00:30.53"
func FormatSeconds(seconds float64) string {
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := seconds - float64(hours*3600) - float64(minutes*60)
	return fmt.Sprintf("%02d:%02d:%05.2f", hours, minutes, secs)
}

// FormatArg renders seconds for -ss/-t style arguments: millisecond
// precision, no trailing zeros.
//
//	FormatArg(1)                    // "1"
//	FormatArg(2.5)                  // "2.5"
//	FormatArg(0.1 + 0.2)            // "0.3"
func FormatArg(seconds float64) string {
	s := strconv.FormatFloat(seconds, 'f', 3, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}

// ParseClock parses HH:MM:SS[.fraction] into seconds. A leading minus sign
// is rejected; ffmpeg reports negative timestamps before the first packet.
func ParseClock(s string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}

	hours, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid hours in %q: %w", s, err)
	}
	minutes, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil || minutes > 59 {
		return 0, fmt.Errorf("invalid minutes in %q", s)
	}
	secs, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || secs < 0 || secs >= 60 {
		return 0, fmt.Errorf("invalid seconds in %q", s)
	}

	return float64(hours)*3600 + float64(minutes)*60 + secs, nil
}
