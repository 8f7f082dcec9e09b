package video

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"edgecam/video/process"
	"edgecam/video/source"
)

// FrameStats summarizes one pass through the Pipeline.
type FrameStats struct {
	// Frame is the 1-based frame number.
	Frame   int
	Time    time.Time
	Corners int
	Edges   int
	Elapsed time.Duration
}

// Pipeline turns a camera frame into the side by side corner and edge view.
type Pipeline struct {
	// Overlay draws the frame number and time onto the composite.
	Overlay bool

	// Debug, if set, receives the intermediate corner and edge frames.
	Debug Debug

	frames int
}

// Debug receives intermediate frames. Implementations must not retain them.
type Debug interface {
	Corners(img source.Image)
	Edges(img source.Image)
}

// Process runs both stages on in and returns their composite. The caller owns
// the returned Image.
func (p *Pipeline) Process(in source.Image) (source.Image, FrameStats, error) {
	start := time.Now()
	p.frames++
	stats := FrameStats{
		Frame: p.frames,
		Time:  in.Time,
	}

	corners, marked, err := process.MarkCorners(in.Mat)
	if err != nil {
		return source.Image{}, stats, err
	}
	defer corners.Close()
	stats.Corners = marked

	edges, edgeCount, err := process.DetectEdges(in.Mat)
	if err != nil {
		return source.Image{}, stats, err
	}
	defer edges.Close()
	stats.Edges = edgeCount

	if p.Debug != nil {
		p.Debug.Corners(source.Image{Mat: corners, Time: in.Time})
		p.Debug.Edges(source.Image{Mat: edges, Time: in.Time})
	}

	composite, err := process.Composite(corners, edges)
	if err != nil {
		return source.Image{}, stats, fmt.Errorf("frame %d: %w", stats.Frame, err)
	}
	out := source.Image{Mat: composite, Time: in.Time}
	if p.Overlay {
		process.DrawLabel(&out, stats.Frame)
	}

	stats.Elapsed = time.Since(start)
	log.Debugf("Frame %d processed in %v (%d corner pixels, %d edge pixels)", stats.Frame, stats.Elapsed, stats.Corners, stats.Edges)
	return out, stats, nil
}
