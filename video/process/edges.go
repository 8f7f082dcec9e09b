package process

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Canny hysteresis thresholds.
const (
	CannyLow  = 100
	CannyHigh = 200
)

// EdgeMap returns the single channel Canny edge map of a BGR frame.
func EdgeMap(src gocv.Mat) (gocv.Mat, error) {
	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(src, &gray, gocv.ColorBGRToGray); err != nil {
		return gocv.NewMat(), fmt.Errorf("edges: %w", err)
	}

	edges := gocv.NewMat()
	gocv.Canny(gray, &edges, CannyLow, CannyHigh)
	if edges.Empty() {
		edges.Close()
		return gocv.NewMat(), fmt.Errorf("edges: empty edge map for %dx%d input", src.Cols(), src.Rows())
	}
	return edges, nil
}

// DetectEdges returns the Canny edge map of src replicated into three
// channels, so it can be composited next to a color frame, along with the
// number of edge pixels.
func DetectEdges(src gocv.Mat) (gocv.Mat, int, error) {
	edges, err := EdgeMap(src)
	if err != nil {
		return edges, 0, err
	}
	defer edges.Close()

	out := gocv.NewMat()
	if err := gocv.CvtColor(edges, &out, gocv.ColorGrayToBGR); err != nil {
		out.Close()
		return gocv.NewMat(), 0, fmt.Errorf("edges: %w", err)
	}
	return out, gocv.CountNonZero(edges), nil
}
