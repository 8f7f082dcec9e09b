package util

import (
	"os"
	"os/signal"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Event is a one-shot flag. Once notified it stays notified.
type Event struct {
	notified bool
	c        *sync.Cond
}

func NewEvent() *Event {
	return &Event{
		c: sync.NewCond(&sync.Mutex{}),
	}
}

func (e *Event) Notify() {
	e.c.L.Lock()
	defer e.c.L.Unlock()
	if !e.notified {
		e.notified = true
		e.c.Broadcast()
	}
}

func (e *Event) Wait() {
	e.c.L.Lock()
	defer e.c.L.Unlock()
	for !e.notified {
		e.c.Wait()
	}
}

func (e *Event) HasBeenNotified() bool {
	e.c.L.Lock()
	defer e.c.L.Unlock()
	return e.notified
}

// NotifyOnSignal returns an Event notified when one of sigs arrives. The
// returned stop function unregisters the handler.
func NotifyOnSignal(sigs ...os.Signal) (*Event, func()) {
	e := NewEvent()
	c := make(chan os.Signal, 1)
	done := make(chan bool)
	signal.Notify(c, sigs...)
	go func() {
		select {
		case sig := <-c:
			log.Infof("Caught signal %v, stopping after the current frame", sig)
			e.Notify()
		case <-done:
		}
	}()
	var once sync.Once
	return e, func() {
		once.Do(func() {
			signal.Stop(c)
			close(done)
		})
	}
}
