package source

import (
	"errors"
	"image"
	"time"

	"gocv.io/x/gocv"
)

var (
	// ErrNoCamera is returned when none of the probed devices opens.
	ErrNoCamera = errors.New("no camera available")

	// ErrCapture is returned when an opened device stops producing frames.
	ErrCapture = errors.New("unable to capture video")
)

// Image is a single BGR frame and the time it was captured.
type Image struct {
	Mat  gocv.Mat
	Time time.Time
}

func (i *Image) Close() {
	i.Mat.Close()
}

func (i *Image) Clone() Image {
	return Image{
		Mat:  i.Mat.Clone(),
		Time: i.Time,
	}
}

// Size returns the frame dimensions as (width, height).
func (i *Image) Size() image.Point {
	return image.Point{X: i.Mat.Cols(), Y: i.Mat.Rows()}
}

// Source defines a stream of images, such as a camera.
type Source interface {
	// Read blocks for the next frame. The caller owns the returned Image and
	// must Close it. Errors wrap ErrCapture.
	Read() (Image, error)

	// Size returns the size of the capture source.
	Size() image.Point

	// Close disconnects from the capture source and frees up all resources.
	Close() error
}
