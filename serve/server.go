package serve

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Handlers groups the endpoints served next to the capture loop. Nil
// handlers are not mounted.
type Handlers struct {
	MJPEG    http.Handler
	Status   http.Handler
	Gatherer prometheus.Gatherer
}

// NewMux mounts /mjpeg, /status and /metrics, with combined access logging
// into logrus.
func NewMux(h Handlers) http.Handler {
	mux := http.NewServeMux()
	if h.MJPEG != nil {
		mux.Handle("/mjpeg", h.MJPEG)
	}
	if h.Status != nil {
		mux.Handle("/status", h.Status)
	}
	if h.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{}))
	}
	return handlers.CombinedLoggingHandler(log.StandardLogger().WriterLevel(log.DebugLevel), mux)
}

type Server struct {
	srv  *http.Server
	done chan bool
}

// Start serves h on addr in the background.
func Start(addr string, h http.Handler) *Server {
	s := &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
		},
		done: make(chan bool),
	}
	go func() {
		defer close(s.done)
		log.Infof("Hosting preview, status and metrics on %v", addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("HTTP server failed: %v", err)
		}
	}()
	return s
}

// Close stops accepting connections and waits briefly for in-flight
// requests. Streaming clients are cut off.
func (s *Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.srv.Close()
	}
	<-s.done
}
