package orchestrator

import (
	"fmt"
	"math"
	"sync"

	"splicer/models"
)

// Share of the overall scale given to per-clip preprocessing. The
// concatenation pass gets the rest.
const (
	preprocessRange = 90
	concatRange     = 100 - preprocessRange
)

// Allocate splits the progress scale across clips of the given durations.
//
// Clip i gets floor(d_i/total*90) points, except the last clip which gets
// whatever remains of 90, so the clip windows always cover exactly [0,90].
// The concat window is {90,10}.
//
//	Allocate([]float64{4, 2, 4}) // {0,36} {36,18} {54,36}, concat {90,10}
func Allocate(durations []float64) ([]models.ProgressWindow, models.ProgressWindow, error) {
	concat := models.ProgressWindow{Offset: preprocessRange, Range: concatRange}
	if len(durations) == 0 {
		return nil, concat, fmt.Errorf("no durations to allocate")
	}

	total := 0.0
	for i, d := range durations {
		if d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			return nil, concat, fmt.Errorf("duration %d must be positive, got %v", i, d)
		}
		total += d
	}

	windows := make([]models.ProgressWindow, len(durations))
	offset := 0
	for i, d := range durations {
		r := preprocessRange - offset
		if i < len(durations)-1 {
			// Small epsilon so 0.4*90 does not floor to 35
			r = int(math.Floor(d/total*preprocessRange + 1e-9))
		}
		windows[i] = models.ProgressWindow{Offset: offset, Range: r}
		offset += r
	}
	return windows, concat, nil
}

// monotonic wraps sink so it only ever sees strictly increasing values.
// Adjacent windows share a boundary, so the end of one phase and the start
// of the next would otherwise repeat.
func monotonic(sink models.ProgressFunc) models.ProgressFunc {
	var mu sync.Mutex
	last := -1
	return func(percent int) {
		mu.Lock()
		defer mu.Unlock()
		if percent <= last {
			return
		}
		last = percent
		if sink != nil {
			sink(percent)
		}
	}
}
