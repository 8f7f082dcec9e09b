package main

import (
	"flag"
	"image"
	"os"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"

	"edgecam/config"
	"edgecam/history"
	"edgecam/metrics"
	"edgecam/serve"
	"edgecam/util"
	"edgecam/video"
	"edgecam/video/sink"
	"edgecam/video/source"
)

var (
	configPath = flag.String("config", "", "Optional JSON config file. Changes to log_level apply live.")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	cw, err := config.NewWatcher(*configPath)
	if err != nil {
		log.Errorf("Failed to load config: %v", err)
		return 1
	}
	cw.OnChange = func(c *config.Config) {
		log.SetLevel(c.Level())
	}
	cfg := cw.Get()
	log.SetLevel(cfg.Level())
	cw.Start()
	defer cw.Close()

	cam, err := source.Probe(source.OpenDevice, cfg.CameraIndices)
	if err != nil {
		log.Errorf("Error: Unable to access the camera after testing multiple indices: %v", err)
		return 1
	}

	size := cam.Size()
	if size.X <= 0 || size.Y <= 0 {
		log.Errorf("Camera %d reports an invalid frame size %dx%d", cam.Index, size.X, size.Y)
		cam.Close()
		return 1
	}
	// Corners and edges side by side.
	outSize := image.Point{X: size.X * 2, Y: size.Y}

	vs, err := sink.NewVideo(cfg.OutputPath, cfg.Codec, cfg.FPS, outSize)
	if err != nil {
		log.Errorf("Failed to open output video: %v", err)
		cam.Close()
		return 1
	}
	var recording sink.Sink = vs
	if cfg.NormalizeFPS {
		// Ensure video is output with constant FPS.
		recording = sink.NewFPSNormalize(vs, cfg.FPS)
	}

	window := sink.NewWindow(cfg.WindowTitle)
	sinks := sink.Tee{window, recording}
	pipeline := &video.Pipeline{Overlay: cfg.Overlay}
	var observers []video.Observer

	if cfg.HTTPAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m, err := metrics.New(reg)
		if err != nil {
			log.Errorf("Failed to register metrics: %v", err)
		} else {
			observers = append(observers, m)
		}

		mjpegServer := sink.NewMJPEGServer()
		sinks = append(sinks, mjpegServer.NewStream("composite"))
		pipeline.Debug = &sink.StageStreams{
			Corner: mjpegServer.NewStream("corners"),
			Edge:   mjpegServer.NewStream("edges"),
		}

		status := serve.NewStatusUpdater()
		defer status.Close()
		observers = append(observers, status)

		srv := serve.Start(cfg.HTTPAddr, serve.NewMux(serve.Handlers{
			MJPEG:    mjpegServer,
			Status:   status,
			Gatherer: reg,
		}))
		defer srv.Close()
	}

	if cfg.DatabaseDSN != "" {
		if rec, err := startHistory(cfg, cam, outSize); err != nil {
			log.Errorf("Run history disabled: %v", err)
		} else {
			observers = append(observers, rec)
		}
	}

	interrupt, stopSignals := util.NotifyOnSignal(os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	d := &video.Driver{
		Source:      cam,
		Pipeline:    pipeline,
		Sink:        sinks,
		Keys:        window,
		KeyDelay:    cfg.KeyDelayMs,
		Interrupted: interrupt.HasBeenNotified,
		Observers:   observers,
	}

	log.Info("Press 'Esc' to exit the program.")
	res := d.Run()
	log.WithField("path", cfg.OutputPath).Infof("Done after %d frames (%v)", res.Frames, res.Reason)
	return 0
}

func startHistory(cfg *config.Config, cam *source.Camera, outSize image.Point) (*history.Recorder, error) {
	store, err := history.Open(cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	if prev, err := store.Recent(1); err != nil {
		log.Warnf("Failed to read previous runs: %v", err)
	} else if len(prev) > 0 {
		p := prev[0]
		log.WithField("run", p.ID).Infof("Previous run on camera %d: %d frames, stopped by %v", p.CameraIndex, p.Frames, p.StopReason)
	}
	return store.Start(&history.Run{
		CameraIndex: cam.Index,
		OutputPath:  cfg.OutputPath,
		Width:       outSize.X,
		Height:      outSize.Y,
	})
}
