package tasks

import (
	"fmt"

	"github.com/desertthunder/hivefm/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchPlaylist Phase = iota
	FetchRecommendations
	FilterQueued
	EnqueueTracks
)

func (p Phase) String() string {
	switch p {
	case FetchPlaylist:
		return "fetch_playlist"
	case FetchRecommendations:
		return "fetch_recommendations"
	case FilterQueued:
		return "filter_queued"
	case EnqueueTracks:
		return "enqueue_tracks"
	default:
		return ""
	}
}

func fetchPlaylistUpdate(id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching playlist %s...", id),
	}
}

func fetchRecommendationsUpdate(hiveID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchRecommendations,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching recommendations for hive %s...", hiveID),
	}
}

func filterUpdate(kept, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FilterQueued,
		Step:    kept,
		Total:   total,
		Message: fmt.Sprintf("%d of %d tracks not yet queued", kept, total),
	}
}

func enqueuedUpdate(step, total int, tr models.Track) ProgressUpdate {
	return ProgressUpdate{
		Phase:   EnqueueTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s - %s", step, total, tr.Artist, tr.Title),
		Data:    tr,
	}
}

func enqueueFailedUpdate(step, total int, tr models.Track, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   EnqueueTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s - %s: %v", step, total, tr.Artist, tr.Title, err),
		Data:    tr,
	}
}
