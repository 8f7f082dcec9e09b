package serve

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"edgecam/video"
)

const (
	// Time allowed to write message to the client
	writeWait  = 10 * time.Second
	pingPeriod = 10 * time.Second
)

// Status is the JSON document pushed to status socket clients.
type Status struct {
	Running   bool    `json:"running"`
	Frame     int     `json:"frame"`
	Timestamp int64   `json:"timestamp_ms"`
	Corners   int     `json:"corner_pixels"`
	Edges     int     `json:"edge_pixels"`
	ProcessMs float64 `json:"process_ms"`
	Reason    string  `json:"reason,omitempty"`
}

// StatusUpdater is a video.Observer that pushes the latest frame summary to
// every connected websocket client. Slow clients skip intermediate updates.
type StatusUpdater struct {
	upgrader websocket.Upgrader

	l      sync.Mutex
	status Status

	cs     map[chan bool]bool
	addc   chan chan bool
	delc   chan chan bool
	notify chan bool
	close  chan bool
}

func NewStatusUpdater() *StatusUpdater {
	m := &StatusUpdater{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		status: Status{Running: true},
		cs:     make(map[chan bool]bool),
		addc:   make(chan chan bool),
		delc:   make(chan chan bool),
		notify: make(chan bool, 1),
		close:  make(chan bool),
	}
	go func() {
		for {
			select {
			case c := <-m.addc:
				m.cs[c] = true
			case c := <-m.delc:
				delete(m.cs, c)
			case <-m.notify:
				for k := range m.cs {
					select {
					case k <- true:
					default:
						// Client already has an update pending.
					}
				}
			case <-m.close:
				return
			}
		}
	}()
	return m
}

// Current returns the latest status.
func (m *StatusUpdater) Current() Status {
	m.l.Lock()
	defer m.l.Unlock()
	return m.status
}

func (m *StatusUpdater) set(s Status) {
	m.l.Lock()
	m.status = s
	m.l.Unlock()
	select {
	case m.notify <- true:
	default:
	}
}

func (m *StatusUpdater) FrameProcessed(s video.FrameStats) {
	m.set(Status{
		Running:   true,
		Frame:     s.Frame,
		Timestamp: s.Time.UnixMilli(),
		Corners:   s.Corners,
		Edges:     s.Edges,
		ProcessMs: float64(s.Elapsed) / float64(time.Millisecond),
	})
}

func (m *StatusUpdater) Stopped(r video.Result) {
	s := m.Current()
	s.Running = false
	s.Reason = r.Reason.String()
	m.set(s)
}

func (m *StatusUpdater) Close() {
	close(m.close)
}

func (m *StatusUpdater) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if _, ok := err.(websocket.HandshakeError); !ok {
			log.WithField("addr", r.RemoteAddr).Errorf("Websocket handshake failed for status stream: %v", err)
		}
		return
	}
	go m.serve(ws)
}

func (m *StatusUpdater) serve(ws *websocket.Conn) {
	clog := log.WithField("addr", ws.RemoteAddr())
	clog.Info("connected to status socket")
	defer func() {
		ws.Close()
		clog.Info("disconnected from status socket")
	}()
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	notifyc := make(chan bool, 1)
	// Send the current status right away.
	notifyc <- true
	select {
	case m.addc <- notifyc:
	case <-m.close:
		return
	}
	defer func() {
		select {
		case m.delc <- notifyc:
		case <-m.close:
		}
	}()

	// Even though we don't care about incoming messages, we need to read from
	// the socket in order to process control messages.
	gone := make(chan bool)
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-notifyc:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(m.Current()); err != nil {
				return
			}
		case <-pingTicker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}
