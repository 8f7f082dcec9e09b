package video

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"edgecam/video/sink"
	"edgecam/video/source"
)

// EscapeKey is the key code that stops the driver.
const EscapeKey = 27

type State int

const (
	Running State = iota
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Event is the outcome of one loop iteration.
type Event int

const (
	EventFrameDone Event = iota
	EventEscape
	EventInterrupted
	EventReadFailed
	EventProcessFailed
)

func (e Event) String() string {
	switch e {
	case EventFrameDone:
		return "frame_done"
	case EventEscape:
		return "escape"
	case EventInterrupted:
		return "interrupted"
	case EventReadFailed:
		return "capture_error"
	case EventProcessFailed:
		return "process_error"
	}
	return fmt.Sprintf("Event(%d)", int(e))
}

// Next is the driver's transition function. Only a completed frame keeps the
// driver running; Stopped is final.
func Next(s State, e Event) State {
	if s == Running && e == EventFrameDone {
		return Running
	}
	return Stopped
}

// KeyPoller waits up to delay milliseconds for a key press and returns its
// code, or -1 when none arrived. *sink.Window implements it.
type KeyPoller interface {
	WaitKey(delay int) int
}

// Observer is told about every processed frame and about the final Result.
// Calls happen on the driver's goroutine.
type Observer interface {
	FrameProcessed(s FrameStats)
	Stopped(r Result)
}

// Result describes a finished run.
type Result struct {
	// Frames is the number of composites handed to the sink.
	Frames int
	// Reason is the event that stopped the driver.
	Reason Event
	// Err is set when the driver stopped on a failure.
	Err error
}

// Driver pulls frames from Source through Pipeline into Sink until the escape
// key is pressed, Interrupted reports true, or a frame fails.
type Driver struct {
	Source   source.Source
	Pipeline *Pipeline
	Sink     sink.Sink
	Keys     KeyPoller
	// KeyDelay is the key poll timeout in milliseconds.
	KeyDelay int

	// Interrupted is checked once per frame, after the key poll.
	Interrupted func() bool
	Observers   []Observer
}

// Run loops until the driver stops. Source and Sink must be open; both are
// released before Run returns, whatever the reason for stopping.
func (d *Driver) Run() Result {
	var res Result
	state := Running
	for state == Running {
		ev, err := d.step(&res)
		state = Next(state, ev)
		if state == Stopped {
			res.Reason = ev
			res.Err = err
		}
	}
	d.shutdown()

	rlog := log.WithField("frames", res.Frames).WithField("reason", res.Reason)
	if res.Err != nil {
		rlog.WithError(res.Err).Error("Stopped on failure")
	} else {
		rlog.Info("Stopped")
	}
	for _, o := range d.Observers {
		o.Stopped(res)
	}
	return res
}

func (d *Driver) step(res *Result) (Event, error) {
	in, err := d.Source.Read()
	if err != nil {
		log.Errorf("Error: Unable to capture video: %v", err)
		return EventReadFailed, err
	}
	defer in.Close()

	out, stats, err := d.Pipeline.Process(in)
	if err != nil {
		log.Errorf("Error: Unable to process frame: %v", err)
		return EventProcessFailed, err
	}
	defer out.Close()

	d.Sink.Put(out)
	res.Frames++
	for _, o := range d.Observers {
		o.FrameProcessed(stats)
	}

	if key := d.Keys.WaitKey(d.KeyDelay); key >= 0 && key&0xFF == EscapeKey {
		return EventEscape, nil
	}
	if d.Interrupted != nil && d.Interrupted() {
		return EventInterrupted, nil
	}
	return EventFrameDone, nil
}

func (d *Driver) shutdown() {
	d.Sink.Close()
	if err := d.Source.Close(); err != nil {
		log.Errorf("Failed to release capture source: %v", err)
	}
}
