package store

import (
	"github.com/desertthunder/hivefm/internal/models"
	"github.com/desertthunder/hivefm/internal/playback"
)

// Action is one state transition. The set is closed: only types in this package implement it.
type Action interface {
	action()
}

type (
	// AuthChanged replaces the auth slice.
	AuthChanged struct{ Auth models.AuthState }

	// RemoteChanged replaces the remote device slice.
	RemoteChanged struct{ Remote models.RemotePlayerState }

	// SourceSwitched records the router's new authoritative source.
	SourceSwitched struct{ Source playback.SourceKind }

	// PlaybackChanged replaces the canonical playback state.
	PlaybackChanged struct{ Playback models.PlaybackState }

	// TransportFailed records an adapter error and stops the transport flags.
	TransportFailed struct{ Err string }

	// QueueReplaced swaps in a full queue.
	QueueReplaced struct{ Queue models.Queue }

	// QueueItemMerged applies a server copy of a single item.
	QueueItemMerged struct{ Item models.QueueItem }

	QueueItemAdded   struct{ Item models.QueueItem }
	QueueItemRemoved struct{ QueueID string }
	QueueReordered   struct{ From, To int }
	QueueVoted       struct {
		QueueID string
		Vote    models.Vote
	}
	QueueCleared struct{}

	// NowPlayingChanged sets the current track. A nil track clears it.
	NowPlayingChanged struct{ Track *models.Track }

	HiveJoined struct{ HiveID string }
	HiveLeft   struct{}

	// ErrorRaised sets the user-visible error.
	ErrorRaised  struct{ Message string }
	ErrorCleared struct{}
)

func (AuthChanged) action()       {}
func (RemoteChanged) action()     {}
func (SourceSwitched) action()    {}
func (PlaybackChanged) action()   {}
func (TransportFailed) action()   {}
func (QueueReplaced) action()     {}
func (QueueItemMerged) action()   {}
func (QueueItemAdded) action()    {}
func (QueueItemRemoved) action()  {}
func (QueueReordered) action()    {}
func (QueueVoted) action()        {}
func (QueueCleared) action()      {}
func (NowPlayingChanged) action() {}
func (HiveJoined) action()        {}
func (HiveLeft) action()          {}
func (ErrorRaised) action()       {}
func (ErrorCleared) action()      {}
