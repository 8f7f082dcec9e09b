package process

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Harris detector parameters.
const (
	HarrisBlockSize = 2
	HarrisAperture  = 3
	HarrisK         = 0.04

	// CornerThreshold is the fraction of the strongest response a pixel
	// must exceed to be marked.
	CornerThreshold = 0.01
)

// CornerColor is the BGR scalar painted over detected corners (pure red).
var CornerColor = gocv.NewScalar(0, 0, 255, 0)

// HarrisResponse computes the Harris corner response of a single channel
// image into a CV32F Mat of the same size. The caller must Close it.
//
// For each pixel the structure tensor M is summed over a blockSize window
// of Sobel gradients, and the response is det(M) - k*trace(M)^2.
func HarrisResponse(gray gocv.Mat, blockSize, aperture int, k float64) (gocv.Mat, error) {
	if gray.Channels() != 1 {
		return gocv.NewMat(), fmt.Errorf("harris: expected 1 channel, got %d", gray.Channels())
	}

	mats := make([]gocv.Mat, 9)
	for i := range mats {
		mats[i] = gocv.NewMat()
	}
	defer func() {
		for _, m := range mats {
			m.Close()
		}
	}()
	src, dx, dy, dxx, dyy, dxy, det, trace, tmp := &mats[0], &mats[1], &mats[2], &mats[3], &mats[4], &mats[5], &mats[6], &mats[7], &mats[8]

	gray.ConvertTo(src, gocv.MatTypeCV32F)
	if err := nonEmpty("harris: convert", *src); err != nil {
		return gocv.NewMat(), err
	}
	gocv.Sobel(*src, dx, gocv.MatTypeCV32F, 1, 0, aperture, 1, 0, gocv.BorderDefault)
	gocv.Sobel(*src, dy, gocv.MatTypeCV32F, 0, 1, aperture, 1, 0, gocv.BorderDefault)
	if err := nonEmpty("harris: sobel", *dx, *dy); err != nil {
		return gocv.NewMat(), err
	}

	if err := gocv.Multiply(*dx, *dx, tmp); err != nil {
		return gocv.NewMat(), err
	}
	gocv.BoxFilter(*tmp, dxx, -1, image.Point{X: blockSize, Y: blockSize})
	if err := gocv.Multiply(*dy, *dy, tmp); err != nil {
		return gocv.NewMat(), err
	}
	gocv.BoxFilter(*tmp, dyy, -1, image.Point{X: blockSize, Y: blockSize})
	if err := gocv.Multiply(*dx, *dy, tmp); err != nil {
		return gocv.NewMat(), err
	}
	gocv.BoxFilter(*tmp, dxy, -1, image.Point{X: blockSize, Y: blockSize})
	if err := nonEmpty("harris: box filter", *dxx, *dyy, *dxy); err != nil {
		return gocv.NewMat(), err
	}

	// det = dxx*dyy - dxy^2
	if err := gocv.Multiply(*dxx, *dyy, det); err != nil {
		return gocv.NewMat(), err
	}
	if err := gocv.Multiply(*dxy, *dxy, tmp); err != nil {
		return gocv.NewMat(), err
	}
	if err := gocv.Subtract(*det, *tmp, det); err != nil {
		return gocv.NewMat(), err
	}

	// trace^2 = (dxx+dyy)^2
	if err := gocv.Add(*dxx, *dyy, trace); err != nil {
		return gocv.NewMat(), err
	}
	if err := gocv.Multiply(*trace, *trace, tmp); err != nil {
		return gocv.NewMat(), err
	}

	response := gocv.NewMat()
	gocv.AddWeighted(*det, 1, *tmp, -k, 0, &response)
	if err := nonEmpty("harris: response", response); err != nil {
		response.Close()
		return gocv.NewMat(), err
	}
	return response, nil
}

// nonEmpty reports an error if any of the outputs of op came back empty.
func nonEmpty(op string, mats ...gocv.Mat) error {
	for _, m := range mats {
		if m.Empty() {
			return fmt.Errorf("%s: empty output", op)
		}
	}
	return nil
}

// MarkCorners returns a copy of src with Harris corners painted in
// CornerColor, along with the number of painted pixels.
func MarkCorners(src gocv.Mat) (gocv.Mat, int, error) {
	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(src, &gray, gocv.ColorBGRToGray); err != nil {
		return gocv.NewMat(), 0, fmt.Errorf("corners: %w", err)
	}

	response, err := HarrisResponse(gray, HarrisBlockSize, HarrisAperture, HarrisK)
	if err != nil {
		return gocv.NewMat(), 0, fmt.Errorf("corners: %w", err)
	}
	defer response.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: 3, Y: 3})
	defer kernel.Close()
	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(response, &dilated, kernel)
	if err := nonEmpty("corners: dilate", dilated); err != nil {
		return gocv.NewMat(), 0, err
	}

	// With a non-positive maximum no value exceeds the threshold, so flat
	// input marks nothing.
	_, maxVal, _, _ := gocv.MinMaxLoc(dilated)
	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(dilated, &thresh, float32(CornerThreshold*float64(maxVal)), 255, gocv.ThresholdBinary)

	mask := gocv.NewMat()
	defer mask.Close()
	thresh.ConvertTo(&mask, gocv.MatTypeCV8U)
	if err := nonEmpty("corners: threshold", thresh, mask); err != nil {
		return gocv.NewMat(), 0, err
	}

	result := src.Clone()
	marked := gocv.CountNonZero(mask)
	if marked == 0 {
		return result, 0, nil
	}

	red := gocv.NewMatWithSizeFromScalar(CornerColor, src.Rows(), src.Cols(), src.Type())
	defer red.Close()
	red.CopyToWithMask(&result, mask)

	return result, marked, nil
}
