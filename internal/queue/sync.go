package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hivefm/internal/models"
	"github.com/desertthunder/hivefm/internal/services"
	"github.com/desertthunder/hivefm/internal/shared"
	"github.com/desertthunder/hivefm/internal/store"
)

const resyncTimeout = 10 * time.Second

// Subscriber is the push transport [Sync] drives. [Channel] implements it.
type Subscriber interface {
	Subscribe(hiveID string, handler Handler) error
	Unsubscribe()
}

// Dispatcher is the store surface [Sync] writes to.
type Dispatcher interface {
	Dispatch(a store.Action) store.State
	State() store.State
}

// Sync applies push events and local mutations to the store.
type Sync struct {
	api     services.QueueAPI
	channel Subscriber
	store   Dispatcher
	logger  *log.Logger

	lifecycle sync.Mutex

	mu     sync.Mutex
	hiveID string
}

// NewSync wires api and channel to st. channel may be nil for single-user use.
func NewSync(api services.QueueAPI, channel Subscriber, st Dispatcher, logger *log.Logger) *Sync {
	return &Sync{
		api:     api,
		channel: channel,
		store:   st,
		logger:  shared.WithLogger(logger, "component", "queue"),
	}
}

// HiveID returns the joined hive, or "" in single-user mode.
func (s *Sync) HiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hiveID
}

// Join leaves the current hive, waits for its subscription to close, then subscribes to hiveID and
// loads its queue.
func (s *Sync) Join(ctx context.Context, hiveID string) error {
	if hiveID == "" {
		return fmt.Errorf("%w: hive id", shared.ErrMissingArgument)
	}

	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.teardown()

	s.mu.Lock()
	s.hiveID = hiveID
	s.mu.Unlock()
	s.store.Dispatch(store.HiveJoined{HiveID: hiveID})

	if s.channel != nil {
		if err := s.channel.Subscribe(hiveID, s.handlerFor(hiveID)); err != nil {
			return s.fail("subscribe", err)
		}
	}
	s.logger.Info("joined hive", "hive", hiveID)
	return s.Refresh(ctx)
}

// Leave tears down the subscription and returns to single-user mode.
func (s *Sync) Leave() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.HiveID() == "" {
		return
	}
	s.teardown()
	s.store.Dispatch(store.HiveLeft{})
	s.logger.Info("left hive")
}

// Close is [Sync.Leave].
func (s *Sync) Close() error {
	s.Leave()
	return nil
}

func (s *Sync) teardown() {
	if s.channel != nil {
		s.channel.Unsubscribe()
	}
	s.mu.Lock()
	s.hiveID = ""
	s.mu.Unlock()
}

// Refresh replaces the queue with the service's copy.
func (s *Sync) Refresh(ctx context.Context) error {
	hive := s.HiveID()
	q, err := s.api.Queue(ctx, hive)
	if err != nil {
		return s.fail("refresh", err)
	}
	if s.HiveID() != hive {
		return nil
	}
	s.store.Dispatch(store.QueueReplaced{Queue: q})
	return nil
}

// Add enqueues track.
func (s *Sync) Add(ctx context.Context, track models.Track) error {
	hive := s.HiveID()
	item, err := s.api.AddToQueue(ctx, hive, track)
	if err != nil {
		return s.fail("add", err)
	}

	local := models.QueueItem{Track: track, QueueID: shared.GenerateID(), Position: len(s.store.State().Queue)}
	if item != nil && item.QueueID != "" {
		local = *item
	}
	s.apply(hive, store.QueueItemAdded{Item: local})
	return nil
}

// Remove drops the slot queueID.
func (s *Sync) Remove(ctx context.Context, queueID string) error {
	if queueID == "" {
		return fmt.Errorf("%w: queue id", shared.ErrMissingArgument)
	}
	hive := s.HiveID()
	if err := s.api.RemoveFromQueue(ctx, hive, queueID); err != nil {
		return s.fail("remove", err)
	}
	s.apply(hive, store.QueueItemRemoved{QueueID: queueID})
	return nil
}

// Reorder moves the slot at from to to.
func (s *Sync) Reorder(ctx context.Context, from, to int) error {
	n := len(s.store.State().Queue)
	if from < 0 || to < 0 || (s.HiveID() == "" && (from >= n || to >= n)) {
		return fmt.Errorf("%w: reorder %d -> %d", shared.ErrInvalidArgument, from, to)
	}
	hive := s.HiveID()
	if err := s.api.ReorderQueue(ctx, hive, from, to); err != nil {
		return s.fail("reorder", err)
	}
	s.apply(hive, store.QueueReordered{From: from, To: to})
	return nil
}

// Vote casts the caller's vote on queueID. Voting the same way twice retracts it.
func (s *Sync) Vote(ctx context.Context, queueID string, vote models.Vote) error {
	if !vote.Valid() {
		return fmt.Errorf("%w: vote %q", shared.ErrInvalidArgument, vote)
	}
	hive := s.HiveID()
	q := s.store.State().Queue
	var trackID string
	if i := q.Index(queueID); i >= 0 {
		trackID = q[i].ID
	}

	item, err := s.api.Vote(ctx, hive, queueID, trackID, vote)
	if err != nil {
		return s.fail("vote", err)
	}
	if item != nil {
		s.apply(hive, store.QueueItemMerged{Item: *item})
		return nil
	}
	s.apply(hive, store.QueueVoted{QueueID: queueID, Vote: vote})
	return nil
}

// Clear empties the queue.
func (s *Sync) Clear(ctx context.Context) error {
	hive := s.HiveID()
	if err := s.api.ClearQueue(ctx, hive); err != nil {
		return s.fail("clear", err)
	}
	s.apply(hive, store.QueueCleared{})
	return nil
}

// apply is the single entry point for local queue mutations. Inside a hive the broadcast is
// authoritative, so nothing is applied here.
func (s *Sync) apply(hive string, a store.Action) {
	if hive != "" {
		s.logger.Debug("awaiting broadcast", "action", fmt.Sprintf("%T", a))
		return
	}
	s.store.Dispatch(a)
}

func (s *Sync) fail(op string, err error) error {
	err = fmt.Errorf("%w: %s: %w", shared.ErrSyncFailed, op, err)
	s.logger.Warn("queue sync error", "op", op, "error", err)
	s.store.Dispatch(store.ErrorRaised{Message: err.Error()})
	return err
}

func (s *Sync) handlerFor(hiveID string) Handler {
	return func(env Envelope) {
		if s.HiveID() != hiveID {
			return
		}
		if err := s.handle(hiveID, env); err != nil {
			s.fail(env.Type, err)
		}
	}
}

// handle applies one envelope. Every case is a replace or merge, so duplicates are harmless.
func (s *Sync) handle(hiveID string, env Envelope) error {
	switch env.Type {
	case EventQueueUpdated:
		var items []models.QueueItem
		if err := decodeQueue(env.Payload, &items); err != nil {
			return err
		}
		s.store.Dispatch(store.QueueReplaced{Queue: models.Queue(items)})
	case EventTrackAdded, EventTrackVoted:
		var item models.QueueItem
		if err := json.Unmarshal(env.Payload, &item); err != nil {
			return fmt.Errorf("%w: %s payload: %v", shared.ErrInvalidInput, env.Type, err)
		}
		if item.QueueID == "" {
			return fmt.Errorf("%w: %s without queueId", shared.ErrInvalidInput, env.Type)
		}
		s.store.Dispatch(store.QueueItemMerged{Item: item})
	case EventTrackChanged:
		var track *models.Track
		if err := json.Unmarshal(env.Payload, &track); err != nil {
			return fmt.Errorf("%w: track_changed payload: %v", shared.ErrInvalidInput, err)
		}
		s.store.Dispatch(store.NowPlayingChanged{Track: track})
	case EventError:
		var msg string
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			msg = string(env.Payload)
		}
		return fmt.Errorf("%w: %s", shared.ErrAPIRequest, msg)
	case EventSubscribed:
		var sub Subscribed
		_ = json.Unmarshal(env.Payload, &sub)
		if sub.Reconnect {
			go s.resync(hiveID)
		}
	default:
		s.logger.Debug("ignoring envelope", "type", env.Type)
	}
	return nil
}

// resync reloads the queue after a reconnect, since broadcasts may have been missed.
func (s *Sync) resync(hiveID string) {
	ctx, cancel := context.WithTimeout(context.Background(), resyncTimeout)
	defer cancel()
	if s.HiveID() != hiveID {
		return
	}
	_ = s.Refresh(ctx)
}

// decodeQueue accepts a bare array or an object wrapping one under "queue" or "items".
func decodeQueue(raw json.RawMessage, out *[]models.QueueItem) error {
	if err := json.Unmarshal(raw, out); err == nil {
		return nil
	}
	var wrapped struct {
		Queue []models.QueueItem `json:"queue"`
		Items []models.QueueItem `json:"items"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return fmt.Errorf("%w: queue_updated payload: %v", shared.ErrInvalidInput, err)
	}
	*out = wrapped.Queue
	if len(wrapped.Items) > 0 {
		*out = wrapped.Items
	}
	return nil
}
