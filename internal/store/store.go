package store

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hivefm/internal/models"
	"github.com/desertthunder/hivefm/internal/playback"
	"github.com/desertthunder/hivefm/internal/shared"
)

// State is the unified state tree. Values are replaced, never mutated in place.
type State struct {
	Auth       models.AuthState         `json:"auth"`
	Remote     models.RemotePlayerState `json:"remote"`
	Playback   models.PlaybackState     `json:"playback"`
	Source     playback.SourceKind      `json:"source"`
	UseRemote  bool                     `json:"useRemote"`
	Queue      models.Queue             `json:"queue"`
	NowPlaying *models.Track            `json:"nowPlaying,omitempty"`
	HiveID     string                   `json:"hiveId,omitempty"`
	Error      string                   `json:"error,omitempty"`
}

// Initial returns the state before anything has been dispatched.
func Initial() State {
	return State{
		Remote:   models.RemotePlayerState{Status: models.RemoteUninitialized},
		Playback: models.DefaultPlaybackState(),
		Source:   playback.SourceLocal,
		Queue:    models.Queue{},
	}
}

// Reduce returns the state after a. It never mutates s.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case AuthChanged:
		s.Auth = a.Auth
		if a.Auth.LastError != "" {
			s.Error = a.Auth.LastError
		}
	case RemoteChanged:
		s.Remote = a.Remote
	case SourceSwitched:
		s.Source = a.Source
	case PlaybackChanged:
		s.Playback = a.Playback
	case TransportFailed:
		s.Playback.IsPlaying = false
		s.Playback.IsBuffering = false
		s.Error = a.Err
	case QueueReplaced:
		s.Queue = a.Queue.Normalize()
	case QueueItemMerged:
		s.Queue = s.Queue.Merge(a.Item)
	case QueueItemAdded:
		s.Queue = s.Queue.Add(a.Item)
	case QueueItemRemoved:
		s.Queue = s.Queue.Remove(a.QueueID)
	case QueueReordered:
		s.Queue, _ = s.Queue.Reorder(a.From, a.To)
	case QueueVoted:
		s.Queue, _ = s.Queue.Vote(a.QueueID, a.Vote)
	case QueueCleared:
		s.Queue = models.Queue{}
	case NowPlayingChanged:
		if a.Track == nil {
			s.NowPlaying = nil
		} else {
			t := *a.Track
			s.NowPlaying = &t
		}
	case HiveJoined:
		s.HiveID = a.HiveID
	case HiveLeft:
		s.HiveID = ""
	case ErrorRaised:
		s.Error = a.Message
	case ErrorCleared:
		s.Error = ""
	}

	s.UseRemote = playback.UseRemote(s.Remote.IsConnected, s.Auth.IsPremium())
	return s
}

// Listener is notified after every dispatch with the resulting state and the action that produced it.
type Listener func(State, Action)

// Store serializes dispatches over a [State].
type Store struct {
	logger *log.Logger

	mu        sync.Mutex
	state     State
	listeners map[int]Listener
	next      int
}

// New creates a store seeded with [Initial].
func New(logger *log.Logger) *Store {
	return &Store{
		logger:    shared.WithLogger(logger, "component", "store"),
		state:     Initial(),
		listeners: make(map[int]Listener),
	}
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies a and notifies subscribers. It returns the new state.
func (s *Store) Dispatch(a Action) State {
	s.mu.Lock()
	s.state = Reduce(s.state, a)
	next := s.state
	ls := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	s.mu.Unlock()

	s.logger.Debug("dispatch", "action", fmt.Sprintf("%T", a))
	for _, l := range ls {
		s.notify(l, next, a)
	}
	return next
}

// notify runs l, folding a panic into the error field without another round of notifications.
func (s *Store) notify(l Listener, st State, a Action) {
	defer shared.Recover(s.logger, "store listener", func(err error) {
		s.mu.Lock()
		s.state = Reduce(s.state, ErrorRaised{Message: err.Error()})
		s.mu.Unlock()
	})
	l(st, a)
}

// Subscribe registers l and returns a func that removes it.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.next
	s.next++
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Raise is a shorthand for dispatching err as a user-visible error. A nil err is ignored.
func (s *Store) Raise(err error) {
	if err == nil {
		return
	}
	s.Dispatch(ErrorRaised{Message: err.Error()})
}
