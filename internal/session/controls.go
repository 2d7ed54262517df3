package session

import (
	"context"
	"errors"

	"github.com/desertthunder/hivefm/internal/models"
	"github.com/desertthunder/hivefm/internal/playback"
	"github.com/desertthunder/hivefm/internal/shared"
	"github.com/desertthunder/hivefm/internal/store"
	"github.com/zmb3/spotify/v2"
)

// State returns the store snapshot.
func (s *Session) State() store.State { return s.Store.State() }

// Subscribe registers l on the store.
func (s *Session) Subscribe(l store.Listener) func() { return s.Store.Subscribe(l) }

// Displayed is the playback state with any drag preview applied.
func (s *Session) Displayed() models.PlaybackState { return s.Reconciler.Displayed() }

func (s *Session) BeginDrag(target playback.DragTarget, initial float64) {
	s.Reconciler.BeginDrag(target, initial)
}

func (s *Session) UpdateDrag(v float64) error { return s.Reconciler.UpdateDrag(v) }

// EndDrag commits the drag preview as a single seek or volume command.
func (s *Session) EndDrag(ctx context.Context) error {
	err := s.Reconciler.EndDrag(ctx)
	if errors.Is(err, shared.ErrNoDragActive) {
		return err
	}
	return s.do(err)
}

func (s *Session) CancelDrag() { s.Reconciler.CancelDrag() }

func (s *Session) Dragging() playback.DragTarget { return s.Reconciler.Dragging() }

// Devices lists the account's Connect devices.
func (s *Session) Devices(ctx context.Context) ([]spotify.PlayerDevice, error) {
	return s.Remote.Devices(ctx)
}

func (s *Session) RemoveItem(ctx context.Context, queueID string) error {
	return s.Queue.Remove(ctx, queueID)
}

func (s *Session) ReorderItem(ctx context.Context, from, to int) error {
	return s.Queue.Reorder(ctx, from, to)
}

func (s *Session) VoteItem(ctx context.Context, queueID string, v models.Vote) error {
	return s.Queue.Vote(ctx, queueID, v)
}
