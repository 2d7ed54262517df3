// package tasks implements bulk queue operations.
package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/hivefm/internal/models"
	"github.com/desertthunder/hivefm/internal/services"
	"github.com/desertthunder/hivefm/internal/shared"
	"golang.org/x/time/rate"
)

// Enqueuer adds a single track to the queue.
type Enqueuer interface {
	Add(ctx context.Context, track models.Track) error
}

// FillOpts selects the track source and pacing. Exactly one of PlaylistID or HiveID is used;
// PlaylistID wins when both are set.
type FillOpts struct {
	PlaylistID string
	HiveID     string
	Limit      int            // Maximum tracks to enqueue (0 means all)
	Queued     []models.Track // Tracks already queued, skipped by ID
	NumWorkers int            // Concurrent enqueuers (default: 1)
	RateLimit  float64        // Requests per second (default: 5)
}

// TrackResult is the outcome of enqueueing one track.
type TrackResult struct {
	Track models.Track
	Error error
}

// FillResult summarizes a fill.
type FillResult struct {
	Source  string
	Total   int
	Added   int
	Skipped int
	Failed  int
	Results []TrackResult
}

// QueueFiller bulk-enqueues tracks.
type QueueFiller struct {
	source services.TrackSource
	queue  Enqueuer
}

// NewQueueFiller creates a new QueueFiller with the provided dependencies.
func NewQueueFiller(source services.TrackSource, queue Enqueuer) *QueueFiller {
	return &QueueFiller{source: source, queue: queue}
}

// sendProgress sends a progress update through the channel without blocking.
func (f *QueueFiller) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Fill fetches tracks from the selected source and enqueues the ones not already queued.
// Individual enqueue failures are collected in the result; only source and context errors are returned.
func (f *QueueFiller) Fill(ctx context.Context, prog chan<- ProgressUpdate, opts FillOpts) (*FillResult, error) {
	if f.source == nil || f.queue == nil {
		return nil, fmt.Errorf("%w: queue filler not initialized", shared.ErrServiceUnavailable)
	}

	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 1
	}
	if opts.NumWorkers > 5 {
		opts.NumWorkers = 5
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	tracks, label, err := f.fetch(ctx, prog, opts)
	if err != nil {
		return nil, err
	}

	pending := filterQueued(tracks, opts.Queued)
	if opts.Limit > 0 && len(pending) > opts.Limit {
		pending = pending[:opts.Limit]
	}
	f.sendProgress(prog, filterUpdate(len(pending), len(tracks)))

	result := &FillResult{
		Source:  label,
		Total:   len(tracks),
		Skipped: len(tracks) - len(pending),
		Results: make([]TrackResult, 0, len(pending)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan models.Track)
	results := make(chan TrackResult, len(pending))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go f.enqueueWorker(ctx, &wg, limiter, jobs, results)
	}

	go func() {
		defer close(jobs)
		for _, tr := range pending {
			select {
			case <-ctx.Done():
				return
			case jobs <- tr:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	done := 0
	for res := range results {
		done++
		result.Results = append(result.Results, res)
		if res.Error == nil {
			result.Added++
			f.sendProgress(prog, enqueuedUpdate(done, len(pending), res.Track))
		} else {
			result.Failed++
			f.sendProgress(prog, enqueueFailedUpdate(done, len(pending), res.Track, res.Error))
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (f *QueueFiller) fetch(ctx context.Context, prog chan<- ProgressUpdate, opts FillOpts) ([]models.Track, string, error) {
	switch {
	case opts.PlaylistID != "":
		f.sendProgress(prog, fetchPlaylistUpdate(opts.PlaylistID))
		tracks, err := f.source.PlaylistTracks(ctx, opts.PlaylistID)
		if err != nil {
			return nil, "", fmt.Errorf("failed to fetch playlist: %w", err)
		}
		return tracks, "playlist " + opts.PlaylistID, nil
	case opts.HiveID != "":
		f.sendProgress(prog, fetchRecommendationsUpdate(opts.HiveID))
		tracks, err := f.source.Recommendations(ctx, opts.HiveID)
		if err != nil {
			return nil, "", fmt.Errorf("failed to fetch recommendations: %w", err)
		}
		return tracks, "recommendations for " + opts.HiveID, nil
	default:
		return nil, "", fmt.Errorf("%w: playlist id or hive id", shared.ErrMissingArgument)
	}
}

// enqueueWorker waits on the shared limiter before each enqueue.
func (f *QueueFiller) enqueueWorker(ctx context.Context, wg *sync.WaitGroup, limiter *rate.Limiter, jobs <-chan models.Track, results chan<- TrackResult) {
	defer wg.Done()
	for tr := range jobs {
		if err := limiter.Wait(ctx); err != nil {
			results <- TrackResult{Track: tr, Error: err}
			continue
		}
		results <- TrackResult{Track: tr, Error: f.queue.Add(ctx, tr)}
	}
}

// filterQueued drops tracks whose ID is already queued, and duplicates within tracks.
func filterQueued(tracks, queued []models.Track) []models.Track {
	seen := make(map[string]struct{}, len(queued)+len(tracks))
	for _, t := range queued {
		seen[t.ID] = struct{}{}
	}
	out := make([]models.Track, 0, len(tracks))
	for _, t := range tracks {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}
