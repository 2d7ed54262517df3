// package services contains the HTTP clients the playback core talks to
//
// Music service (REST + OAuth proxy), Spotify Web API (profile + catalog)
package services

import (
	"context"

	"github.com/desertthunder/hivefm/internal/models"
)

// Catalog resolves tracks from a music provider.
type Catalog interface {
	// SearchTracks returns up to limit tracks matching query.
	SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error)

	// SearchTrack returns the best match for a title and artist.
	SearchTrack(ctx context.Context, title, artist string) (*models.Track, error)

	// Track fetches a single track by provider id.
	Track(ctx context.Context, trackID string) (*models.Track, error)

	// Name returns the provider name (e.g., "Spotify")
	Name() string
}

// QueueAPI is the queue surface of the music service.
type QueueAPI interface {
	Queue(ctx context.Context, hiveID string) (models.Queue, error)
	AddToQueue(ctx context.Context, hiveID string, track models.Track) (*models.QueueItem, error)
	RemoveFromQueue(ctx context.Context, hiveID, queueID string) error
	ReorderQueue(ctx context.Context, hiveID string, from, to int) error
	Vote(ctx context.Context, hiveID, queueID, trackID string, vote models.Vote) (*models.QueueItem, error)
	ClearQueue(ctx context.Context, hiveID string) error
}

// TrackSource lists tracks for bulk enqueueing.
type TrackSource interface {
	PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error)
	Recommendations(ctx context.Context, hiveID string) ([]models.Track, error)
}

var (
	_ Catalog     = (*SpotifyService)(nil)
	_ QueueAPI    = (*MusicService)(nil)
	_ TrackSource = (*MusicService)(nil)
)
