// Package history keeps a record of capture runs in a SQL database.
package history

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"edgecam/video"
)

// Run is one process run, from the camera opening to the driver stopping.
type Run struct {
	gorm.Model

	CameraIndex int
	OutputPath  string
	Width       int
	Height      int

	StartedAt  time.Time
	StoppedAt  *time.Time
	Frames     int
	StopReason string
	Error      string
}

// Store persists runs.
type Store struct {
	db *gorm.DB
}

// Open connects to the MySQL database at dsn and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return NewStore(db)
}

// NewStore wraps an open database and migrates the schema.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Run{}); err != nil {
		return nil, fmt.Errorf("failed to migrate runs table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Create(r *Run) error {
	return s.db.Create(r).Error
}

func (s *Store) Save(r *Run) error {
	return s.db.Save(r).Error
}

// Recent returns up to n runs, newest first.
func (s *Store) Recent(n int) ([]*Run, error) {
	var runs []*Run
	if err := s.db.Order("started_at desc").Limit(n).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// Recorder is a video.Observer writing the run row when the driver stops.
type Recorder struct {
	store *Store
	run   *Run
}

// Start inserts the row for a run that begins now.
func (s *Store) Start(run *Run) (*Recorder, error) {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if err := s.Create(run); err != nil {
		return nil, err
	}
	log.WithField("run", run.ID).Info("Run recorded")
	return &Recorder{store: s, run: run}, nil
}

func (r *Recorder) FrameProcessed(s video.FrameStats) {}

func (r *Recorder) Stopped(res video.Result) {
	finish(r.run, res, time.Now())
	if err := r.store.Save(r.run); err != nil {
		log.WithField("run", r.run.ID).Errorf("Failed to save run: %v", err)
	}
}

func finish(run *Run, res video.Result, at time.Time) {
	run.StoppedAt = &at
	run.Frames = res.Frames
	run.StopReason = res.Reason.String()
	if res.Err != nil {
		run.Error = res.Err.Error()
	}
}
