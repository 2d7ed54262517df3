package playback

import (
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hivefm/internal/models"
	"github.com/desertthunder/hivefm/internal/shared"
)

// SourceKind names a playback adapter.
type SourceKind string

const (
	SourceLocal  SourceKind = "local"
	SourceRemote SourceKind = "remote"
)

// EventKind is the normalized event category emitted by adapters.
type EventKind string

const (
	// Remote lifecycle
	EventReady        EventKind = "ready"
	EventNotReady     EventKind = "not_ready"
	EventStateChanged EventKind = "state_changed"

	// Local element
	EventBuffering    EventKind = "buffering"
	EventCanPlay      EventKind = "can_play"
	EventTimeUpdate   EventKind = "time_update"
	EventPlay         EventKind = "play"
	EventPause        EventKind = "pause"
	EventEnded        EventKind = "ended"
	EventVolumeChange EventKind = "volume_change"

	EventError EventKind = "error"
)

// RemoteSnapshot is the remote player's view of transport state (milliseconds, percent).
type RemoteSnapshot struct {
	PositionMs    int
	DurationMs    int
	Paused        bool
	Loading       bool
	VolumePercent int
}

// ElementSnapshot is a media element's view of transport state (seconds, 0..1).
type ElementSnapshot struct {
	CurrentTime float64
	Duration    float64
	Volume      float64
	Muted       bool
	Paused      bool
	Waiting     bool
	Rate        float64
}

// Event is one adapter notification. Exactly one of Remote or Element is set for state-bearing kinds.
type Event struct {
	Kind    EventKind
	Source  SourceKind
	Remote  *RemoteSnapshot
	Element *ElementSnapshot
	Player  *models.RemotePlayerState
	Track   *models.Track
	Err     error
}

// Listener receives adapter events.
type Listener func(Event)

type emitter struct {
	mu        sync.Mutex
	listeners map[int]Listener
	next      int
	logger    *log.Logger
}

func newEmitter(l *log.Logger) *emitter {
	return &emitter{listeners: make(map[int]Listener), logger: l}
}

// On registers l and returns a func that removes it.
func (e *emitter) On(l Listener) func() {
	e.mu.Lock()
	id := e.next
	e.next++
	e.listeners[id] = l
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

func (e *emitter) emit(ev Event) {
	e.mu.Lock()
	ls := make([]Listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		ls = append(ls, l)
	}
	e.mu.Unlock()

	for _, l := range ls {
		func() {
			defer shared.Recover(e.logger, "playback listener", nil)
			l(ev)
		}()
	}
}
