package sink

import (
	"edgecam/video/source"
)

// Sink defines a destination for a stream of images, such as a video file or monitor.
type Sink interface {
	// Put inserts an image to the sink. The caller *must not* modify this image
	// and it should not hold any references to the underlying Mat.
	Put(input source.Image)

	// Close should be called to finalize the Sink.
	Close()
}

// Tee fans every image out to several sinks, in order.
type Tee []Sink

func (t Tee) Put(input source.Image) {
	for _, s := range t {
		s.Put(input)
	}
}

// Close closes every sink in reverse order.
func (t Tee) Close() {
	for i := len(t) - 1; i >= 0; i-- {
		t[i].Close()
	}
}
