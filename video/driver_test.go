package video

import (
	"errors"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"edgecam/video/source"
)

type fakeSource struct {
	size image.Point
	// failAt makes the n-th read (1-based) fail.
	failAt int
	// gray returns single channel frames, which the corner stage rejects.
	gray   bool
	reads  int
	closed int
}

func (s *fakeSource) Read() (source.Image, error) {
	s.reads++
	if s.failAt > 0 && s.reads >= s.failAt {
		return source.Image{}, source.ErrCapture
	}
	if s.gray {
		return source.Image{
			Mat:  gocv.NewMatWithSizeFromScalar(gocv.NewScalar(90, 0, 0, 0), s.size.Y, s.size.X, gocv.MatTypeCV8U),
			Time: time.Now(),
		}, nil
	}
	return source.Image{
		Mat:  gocv.NewMatWithSizeFromScalar(gocv.NewScalar(90, 90, 90, 0), s.size.Y, s.size.X, gocv.MatTypeCV8UC3),
		Time: time.Now(),
	}, nil
}

func (s *fakeSource) Size() image.Point { return s.size }

func (s *fakeSource) Close() error {
	s.closed++
	return nil
}

type fakeSink struct {
	sizes  []image.Point
	closed int
}

func (s *fakeSink) Put(input source.Image) {
	s.sizes = append(s.sizes, input.Size())
}

func (s *fakeSink) Close() {
	s.closed++
}

// scriptedKeys returns keys in order, then -1.
type scriptedKeys struct {
	keys   []int
	delays []int
}

func (k *scriptedKeys) WaitKey(delay int) int {
	k.delays = append(k.delays, delay)
	if len(k.keys) == 0 {
		return -1
	}
	key := k.keys[0]
	k.keys = k.keys[1:]
	return key
}

type fakeObserver struct {
	frames []FrameStats
	result *Result
}

func (o *fakeObserver) FrameProcessed(s FrameStats) { o.frames = append(o.frames, s) }
func (o *fakeObserver) Stopped(r Result)            { o.result = &r }

func TestNext(t *testing.T) {
	for _, tc := range []struct {
		state State
		event Event
		want  State
	}{
		{Running, EventFrameDone, Running},
		{Running, EventEscape, Stopped},
		{Running, EventInterrupted, Stopped},
		{Running, EventReadFailed, Stopped},
		{Running, EventProcessFailed, Stopped},
		{Stopped, EventFrameDone, Stopped},
		{Stopped, EventEscape, Stopped},
	} {
		assert.Equal(t, tc.want, Next(tc.state, tc.event), "%v + %v", tc.state, tc.event)
	}
}

func TestDriver_StopsOnReadFailure(t *testing.T) {
	assert := assert.New(t)

	src := &fakeSource{size: image.Point{X: 40, Y: 30}, failAt: 3}
	out := &fakeSink{}
	keys := &scriptedKeys{}
	obs := &fakeObserver{}
	d := &Driver{
		Source:    src,
		Pipeline:  &Pipeline{},
		Sink:      out,
		Keys:      keys,
		KeyDelay:  1,
		Observers: []Observer{obs},
	}

	res := d.Run()

	assert.Equal(2, res.Frames)
	assert.Equal(EventReadFailed, res.Reason)
	assert.True(errors.Is(res.Err, source.ErrCapture))

	assert.Equal([]image.Point{{X: 80, Y: 30}, {X: 80, Y: 30}}, out.sizes)
	assert.Equal(3, src.reads, "no reads after the failed one")
	assert.Equal(1, src.closed)
	assert.Equal(1, out.closed)
	assert.Equal([]int{1, 1}, keys.delays)

	require.Len(t, obs.frames, 2)
	assert.Equal(1, obs.frames[0].Frame)
	assert.Equal(2, obs.frames[1].Frame)
	require.NotNil(t, obs.result)
	assert.Equal(res, *obs.result)
}

func TestDriver_StopsOnEscape(t *testing.T) {
	assert := assert.New(t)

	src := &fakeSource{size: image.Point{X: 20, Y: 20}}
	out := &fakeSink{}
	// A lowercase 'q' and a modifier-laden escape: only the low byte counts.
	keys := &scriptedKeys{keys: []int{-1, 'q', 0x100000 | EscapeKey}}
	d := &Driver{
		Source:   src,
		Pipeline: &Pipeline{},
		Sink:     out,
		Keys:     keys,
		KeyDelay: 5,
	}

	res := d.Run()

	assert.Equal(3, res.Frames)
	assert.Equal(EventEscape, res.Reason)
	assert.NoError(res.Err)
	assert.Equal(3, src.reads)
	assert.Equal(1, src.closed)
	assert.Equal(1, out.closed)
	assert.Equal([]int{5, 5, 5}, keys.delays)
}

func TestDriver_StopsOnInterrupt(t *testing.T) {
	src := &fakeSource{size: image.Point{X: 20, Y: 20}}
	out := &fakeSink{}
	checks := 0
	d := &Driver{
		Source:   src,
		Pipeline: &Pipeline{},
		Sink:     out,
		Keys:     &scriptedKeys{},
		Interrupted: func() bool {
			checks++
			return checks == 2
		},
	}

	res := d.Run()

	assert.Equal(t, 2, res.Frames)
	assert.Equal(t, EventInterrupted, res.Reason)
	assert.Equal(t, 1, src.closed)
	assert.Equal(t, 1, out.closed)
}

func TestDriver_FirstReadFails(t *testing.T) {
	src := &fakeSource{size: image.Point{X: 20, Y: 20}, failAt: 1}
	out := &fakeSink{}
	keys := &scriptedKeys{}
	d := &Driver{Source: src, Pipeline: &Pipeline{}, Sink: out, Keys: keys}

	res := d.Run()

	assert.Equal(t, 0, res.Frames)
	assert.Equal(t, EventReadFailed, res.Reason)
	assert.Empty(t, out.sizes)
	assert.Empty(t, keys.delays)
	assert.Equal(t, 1, src.closed)
	assert.Equal(t, 1, out.closed)
}

func TestDriver_StopsOnProcessFailure(t *testing.T) {
	assert := assert.New(t)

	src := &fakeSource{size: image.Point{X: 20, Y: 20}, gray: true}
	out := &fakeSink{}
	keys := &scriptedKeys{}
	obs := &fakeObserver{}
	d := &Driver{
		Source:    src,
		Pipeline:  &Pipeline{},
		Sink:      out,
		Keys:      keys,
		Observers: []Observer{obs},
	}

	res := d.Run()

	assert.Equal(0, res.Frames)
	assert.Equal(EventProcessFailed, res.Reason)
	assert.Error(res.Err)
	assert.Equal(1, src.reads)
	assert.Equal(1, src.closed)
	assert.Equal(1, out.closed)
	assert.Empty(out.sizes)
	assert.Empty(keys.delays)
	assert.Empty(obs.frames)
	require.NotNil(t, obs.result)
	assert.Equal(EventProcessFailed, obs.result.Reason)
}

type recordingDebug struct {
	corners, edges int
}

func (r *recordingDebug) Corners(img source.Image) { r.corners++ }
func (r *recordingDebug) Edges(img source.Image)   { r.edges++ }

func TestPipeline_Process(t *testing.T) {
	assert := assert.New(t)

	debug := &recordingDebug{}
	p := &Pipeline{Overlay: true, Debug: debug}
	now := time.Now()
	in := source.Image{
		Mat:  gocv.NewMatWithSizeFromScalar(gocv.NewScalar(50, 50, 50, 0), 48, 64, gocv.MatTypeCV8UC3),
		Time: now,
	}
	defer in.Close()

	for n := 1; n <= 2; n++ {
		out, stats, err := p.Process(in)
		require.NoError(t, err)
		assert.Equal(image.Point{X: 128, Y: 48}, out.Size())
		assert.Equal(3, out.Mat.Channels())
		assert.Equal(now, out.Time)
		assert.Equal(n, stats.Frame)
		assert.Equal(now, stats.Time)
		out.Close()
	}
	assert.Equal(2, debug.corners)
	assert.Equal(2, debug.edges)
}

func TestStateAndEventNames(t *testing.T) {
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "stopped", Stopped.String())
	assert.Equal(t, "capture_error", EventReadFailed.String())
	assert.Equal(t, "escape", EventEscape.String())
}
