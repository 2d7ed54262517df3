package session

import (
	"context"
	"fmt"

	"github.com/desertthunder/hivefm/internal/models"
	"github.com/desertthunder/hivefm/internal/shared"
	"github.com/desertthunder/hivefm/internal/store"
)

// queueAdvancer steps through the store's queue relative to the now-playing track.
type queueAdvancer struct {
	store *store.Store
}

// Advance returns the queue track delta slots from now playing. With nothing playing (or a track
// that is not queued) next starts at the head of the queue.
func (a *queueAdvancer) Advance(ctx context.Context, delta int) (*models.Track, error) {
	st := a.store.State()
	if len(st.Queue) == 0 {
		return nil, fmt.Errorf("%w: queue is empty", shared.ErrTrackNotFound)
	}

	cur := -1
	for i, it := range st.Queue {
		if sameTrack(st.NowPlaying, &it.Track) {
			cur = i
			break
		}
	}

	next := cur + delta
	if cur < 0 {
		next = 0
	}
	if next < 0 || next >= len(st.Queue) {
		return nil, fmt.Errorf("%w: no track at offset %d", shared.ErrTrackNotFound, delta)
	}

	t := st.Queue[next].Track
	return &t, nil
}

func sameTrack(a, b *models.Track) bool {
	switch {
	case a == nil || b == nil:
		return a == b
	case a.ID != "" && a.ID == b.ID:
		return true
	default:
		return a.URI() != "" && a.URI() == b.URI()
	}
}
