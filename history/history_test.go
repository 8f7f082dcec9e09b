package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"edgecam/video"
	"edgecam/video/source"
)

// sqlRecorder is a gorm logger keeping every statement it traces.
type sqlRecorder struct {
	sql []string
}

func (r *sqlRecorder) LogMode(logger.LogLevel) logger.Interface      { return r }
func (r *sqlRecorder) Info(context.Context, string, ...interface{})  {}
func (r *sqlRecorder) Warn(context.Context, string, ...interface{})  {}
func (r *sqlRecorder) Error(context.Context, string, ...interface{}) {}
func (r *sqlRecorder) Trace(_ context.Context, _ time.Time, fc func() (string, int64), _ error) {
	sql, _ := fc()
	r.sql = append(r.sql, sql)
}

func (r *sqlRecorder) last() string {
	if len(r.sql) == 0 {
		return ""
	}
	return r.sql[len(r.sql)-1]
}

// dryRunDB builds a gorm handle that renders SQL without connecting.
func dryRunDB(t *testing.T, rec *sqlRecorder) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "edgecam:edgecam@tcp(127.0.0.1:3306)/edgecam?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               rec,
	})
	require.NoError(t, err)
	return db
}

func TestFinish(t *testing.T) {
	assert := assert.New(t)

	run := &Run{CameraIndex: 2, OutputPath: "out.avi"}
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	finish(run, video.Result{
		Frames: 41,
		Reason: video.EventReadFailed,
		Err:    fmt.Errorf("%w: read from camera 2 failed", source.ErrCapture),
	}, at)

	assert.Equal(41, run.Frames)
	assert.Equal("capture_error", run.StopReason)
	assert.Equal("unable to capture video: read from camera 2 failed", run.Error)
	require.NotNil(t, run.StoppedAt)
	assert.Equal(at, *run.StoppedAt)
}

func TestFinish_Escape(t *testing.T) {
	run := &Run{}
	finish(run, video.Result{Frames: 3, Reason: video.EventEscape}, time.Now())
	assert.Equal(t, "escape", run.StopReason)
	assert.Empty(t, run.Error)
}

func TestStore_SQL(t *testing.T) {
	rec := &sqlRecorder{}
	s := &Store{db: dryRunDB(t, rec)}

	require.NoError(t, s.Create(&Run{CameraIndex: 1, OutputPath: "out.avi"}))
	assert.Contains(t, rec.last(), "INSERT INTO `runs`")
	assert.Contains(t, rec.last(), "`camera_index`")

	runs, err := s.Recent(5)
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.Contains(t, rec.last(), "FROM `runs`")
	assert.Contains(t, rec.last(), "ORDER BY started_at desc LIMIT 5")
}
