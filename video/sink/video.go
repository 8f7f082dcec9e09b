package sink

import (
	"fmt"
	"image"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"edgecam/video/source"
)

// Video appends images to a file through OpenCV's VideoWriter.
type Video struct {
	Path string

	writer *gocv.VideoWriter
	size   image.Point
	frames int

	// dropped counts frames of the wrong size; only the first is logged.
	dropped int
}

// NewVideo opens path for writing. Every image passed to Put must have the
// given size.
func NewVideo(path, codec string, fps float64, size image.Point) (*Video, error) {
	w, err := gocv.VideoWriterFile(path, codec, fps, size.X, size.Y, true)
	if err != nil {
		if w != nil {
			w.Close()
		}
		return nil, fmt.Errorf("failed to open video writer %v: %w", path, err)
	}
	if !w.IsOpened() {
		w.Close()
		return nil, fmt.Errorf("video writer for %v (%s, %dx%d @ %v fps) did not open", path, codec, size.X, size.Y, fps)
	}
	log.WithField("path", path).Infof("Recording %dx%d %s video at %v fps", size.X, size.Y, codec, fps)
	return &Video{
		Path:   path,
		writer: w,
		size:   size,
	}, nil
}

func (v *Video) Put(input source.Image) {
	if sz := input.Size(); sz != v.size {
		if v.dropped == 0 {
			log.WithField("path", v.Path).Errorf("Dropping %dx%d frames, writer expects %dx%d", sz.X, sz.Y, v.size.X, v.size.Y)
		}
		v.dropped++
		return
	}
	if err := v.writer.Write(input.Mat); err != nil {
		log.WithField("path", v.Path).Errorf("Failed to write frame: %v", err)
		return
	}
	v.frames++
}

func (v *Video) Close() {
	if err := v.writer.Close(); err != nil {
		log.WithField("path", v.Path).Errorf("Failed to close video writer: %v", err)
		return
	}
	log.WithField("path", v.Path).Infof("Wrote %d frames, dropped %d", v.frames, v.dropped)
}
