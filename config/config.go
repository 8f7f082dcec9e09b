package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultOutputPath  = "output_with_corners_and_edges.avi"
	DefaultCodec       = "XVID"
	DefaultFPS         = 20
	DefaultWindowTitle = "Real-Time Corner and Edge Detection"
)

type Config struct {
	// CameraIndices lists the device indices probed in order.
	CameraIndices []int `json:"camera_indices"`

	OutputPath string  `json:"output_path"`
	Codec      string  `json:"codec"`
	FPS        float64 `json:"fps"`

	WindowTitle string `json:"window_title"`
	KeyDelayMs  int    `json:"key_delay_ms"`

	// If set, camera frames are dropped or repeated so the output file
	// holds exactly FPS frames per second of wall time.
	NormalizeFPS bool `json:"normalize_fps"`
	Overlay      bool `json:"overlay"`

	// Empty disables the HTTP preview, metrics and status endpoints.
	HTTPAddr string `json:"http_addr"`
	// Empty disables run history.
	DatabaseDSN string `json:"database_dsn"`

	LogLevel string `json:"log_level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		CameraIndices: []int{0, 1, 2},
		OutputPath:    DefaultOutputPath,
		Codec:         DefaultCodec,
		FPS:           DefaultFPS,
		WindowTitle:   DefaultWindowTitle,
		KeyDelayMs:    1,
		LogLevel:      "info",
	}
}

func (c *Config) Validate() error {
	if len(c.CameraIndices) == 0 {
		return errors.New("camera_indices must not be empty")
	}
	if len(c.Codec) != 4 {
		return fmt.Errorf("codec %q is not a four character code", c.Codec)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %v", c.FPS)
	}
	if c.OutputPath == "" {
		return errors.New("output_path must not be empty")
	}
	if c.KeyDelayMs < 1 {
		return fmt.Errorf("key_delay_ms must be at least 1, got %d", c.KeyDelayMs)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Level returns the parsed log level, falling back to info.
func (c *Config) Level() log.Level {
	l, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return l
}

func configFromFile(path string) (*Config, error) {
	config := Default()
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p := json.NewDecoder(f)
	p.DisallowUnknownFields()
	if err := p.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode %v: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %v: %w", path, err)
	}
	return config, nil
}

// Load reads the config file at path. An empty path yields Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	config, err := configFromFile(path)
	if err != nil {
		return nil, err
	}
	log.Infof("Loaded configuration: %v", spew.Sdump(config))
	return config, nil
}
