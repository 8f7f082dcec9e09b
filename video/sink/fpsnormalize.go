package sink

import (
	"time"

	"gocv.io/x/gocv"

	"edgecam/video/source"
)

// FPSNormalize wraps another Sink so that an incoming stream of variable-timed
// video is converted to fixed-rate video. A webcam rarely delivers exactly
// the frame rate a video file is declared with, so frames are dropped or
// repeated according to their capture time.
type FPSNormalize struct {
	// sink is the wrapped Sink which will receive a FPS-normalized stream.
	sink Sink

	frameDur time.Duration
	last     gocv.Mat
	curFrame time.Time
}

// NewFPSNormalize creates an FPSNormalize, wrapping the provided sink and
// exporting at the given frame rate.
func NewFPSNormalize(sink Sink, fps float64) *FPSNormalize {
	return &FPSNormalize{
		sink:     sink,
		frameDur: time.Duration(float64(time.Second) / fps),
		last:     gocv.NewMat(),
	}
}

func (f *FPSNormalize) Close() {
	f.sink.Close()
	f.last.Close()
}

func (f *FPSNormalize) Put(input source.Image) {
	if f.curFrame.IsZero() {
		f.sink.Put(input)
		input.Mat.CopyTo(&f.last)
		f.curFrame = input.Time
		return
	}

	nextFrame := f.curFrame.Add(f.frameDur)
	if input.Time.Before(nextFrame) {
		// Don't need a new frame yet. Ignore.
		return
	}

	for {
		f.curFrame = nextFrame
		nextFrame = f.curFrame.Add(f.frameDur)
		if input.Time.Before(nextFrame) {
			f.sink.Put(source.Image{Mat: input.Mat, Time: f.curFrame})
			input.Mat.CopyTo(&f.last)
			return
		}
		// Missed a frame. Repeat the last one.
		f.sink.Put(source.Image{Mat: f.last, Time: f.curFrame})
	}
}
