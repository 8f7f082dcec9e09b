package source

import (
	"fmt"
	"image"
	"time"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Device is the part of *gocv.VideoCapture used by Camera.
type Device interface {
	IsOpened() bool
	Read(m *gocv.Mat) bool
	Get(prop gocv.VideoCaptureProperties) float64
	Close() error
}

// Opener opens the capture device with the given index. The returned Device
// may be non-nil even when err is set; it must then still be closed.
type Opener func(index int) (Device, error)

// OpenDevice opens a local camera through OpenCV.
func OpenDevice(index int) (Device, error) {
	vc, err := gocv.VideoCaptureDevice(index)
	if vc == nil {
		return nil, err
	}
	return vc, err
}

// Camera is a Source reading from an opened capture device.
type Camera struct {
	Index int

	dev    Device
	size   image.Point
	closed bool
}

// Probe tries each index in order and returns a Camera for the first device
// that opens. Every rejected device is released before the next attempt.
func Probe(open Opener, indices []int) (*Camera, error) {
	for _, i := range indices {
		dev, err := open(i)
		if err == nil && dev != nil && dev.IsOpened() {
			log.Infof("Camera opened successfully with index %d.", i)
			return newCamera(i, dev), nil
		}
		if dev != nil {
			dev.Close()
		}
		clog := log.WithField("index", i)
		if err != nil {
			clog = clog.WithError(err)
		}
		clog.Warnf("Camera index %d not working. Trying next...", i)
	}
	return nil, fmt.Errorf("%w: tried indices %v", ErrNoCamera, indices)
}

func newCamera(index int, dev Device) *Camera {
	return &Camera{
		Index: index,
		dev:   dev,
		size: image.Point{
			X: int(dev.Get(gocv.VideoCaptureFrameWidth)),
			Y: int(dev.Get(gocv.VideoCaptureFrameHeight)),
		},
	}
}

func (c *Camera) Read() (Image, error) {
	if c.closed {
		return Image{}, fmt.Errorf("%w: camera %d is closed", ErrCapture, c.Index)
	}
	i := Image{
		Mat: gocv.NewMat(),
	}
	ok := c.dev.Read(&i.Mat)
	i.Time = time.Now()
	if !ok || i.Mat.Empty() {
		i.Close()
		return Image{}, fmt.Errorf("%w: read from camera %d failed", ErrCapture, c.Index)
	}
	return i, nil
}

func (c *Camera) Size() image.Point {
	return c.size
}

func (c *Camera) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	log.WithField("index", c.Index).Info("Releasing camera")
	return c.dev.Close()
}
