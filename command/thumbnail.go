package command

import "math"

// FitBox computes thumbnail dimensions for a sourceWidth x sourceHeight
// frame and a boxWidth x boxHeight target.
//
// Landscape sources (aspect > 1) take the box width and derive the height;
// square and portrait sources take the box height and derive the width.
// Both results are at least 1. Unknown source dimensions return the box.
//
//	FitBox(1920, 1080, 320, 180) // 320, 180
//	FitBox(1080, 1920, 320, 180) // 101, 180
func FitBox(sourceWidth, sourceHeight, boxWidth, boxHeight int) (int, int) {
	if sourceWidth <= 0 || sourceHeight <= 0 {
		return boxWidth, boxHeight
	}

	aspect := float64(sourceWidth) / float64(sourceHeight)
	if aspect > 1 {
		return boxWidth, atLeastOne(math.Round(float64(boxWidth) / aspect))
	}
	return atLeastOne(math.Round(float64(boxHeight) * aspect)), boxHeight
}

func atLeastOne(v float64) int {
	if v < 1 {
		return 1
	}
	return int(v)
}
