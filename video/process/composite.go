package process

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

var (
	ErrHeightMismatch = errors.New("frames differ in height")
	ErrTypeMismatch   = errors.New("frames differ in type")
	ErrEmptyFrame     = errors.New("empty frame")
)

// Composite places left and right next to each other in a new Mat.
func Composite(left, right gocv.Mat) (gocv.Mat, error) {
	if left.Empty() || right.Empty() {
		return gocv.NewMat(), ErrEmptyFrame
	}
	if left.Rows() != right.Rows() {
		return gocv.NewMat(), fmt.Errorf("%w: %d != %d", ErrHeightMismatch, left.Rows(), right.Rows())
	}
	if left.Type() != right.Type() {
		return gocv.NewMat(), fmt.Errorf("%w: %v != %v", ErrTypeMismatch, left.Type(), right.Type())
	}
	out := gocv.NewMat()
	gocv.Hconcat(left, right, &out)
	if out.Empty() {
		out.Close()
		return gocv.NewMat(), fmt.Errorf("%w: hconcat of %dx%d and %dx%d", ErrEmptyFrame, left.Cols(), left.Rows(), right.Cols(), right.Rows())
	}
	return out, nil
}
