// Package metrics exports per-frame pipeline statistics to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"edgecam/video"
)

const namespace = "edgecam"

// Metrics is a video.Observer feeding Prometheus collectors.
type Metrics struct {
	frames       prometheus.Counter
	stops        *prometheus.CounterVec
	processTime  prometheus.Histogram
	cornerPixels prometheus.Gauge
	edgePixels   prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_processed_total",
			Help:      "Composite frames handed to the sinks.",
		}),
		stops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "driver_stops_total",
			Help:      "Driver loop stops, by reason.",
		}, []string{"reason"}),
		processTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_process_seconds",
			Help:      "Time spent detecting corners and edges and compositing one frame.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		cornerPixels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "corner_pixels",
			Help:      "Pixels marked as corners in the last frame.",
		}),
		edgePixels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "edge_pixels",
			Help:      "Edge pixels in the last frame.",
		}),
	}
	for _, c := range []prometheus.Collector{m.frames, m.stops, m.processTime, m.cornerPixels, m.edgePixels} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) FrameProcessed(s video.FrameStats) {
	m.frames.Inc()
	m.processTime.Observe(s.Elapsed.Seconds())
	m.cornerPixels.Set(float64(s.Corners))
	m.edgePixels.Set(float64(s.Edges))
}

func (m *Metrics) Stopped(r video.Result) {
	m.stops.WithLabelValues(r.Reason.String()).Inc()
}
