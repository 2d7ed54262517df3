// Package tasks runs bulk queue operations with real-time progress reporting.
//
// # Queue Filling
//
// [QueueFiller.Fill] enqueues tracks from one of two sources:
//   - a playlist on the music service (GET /playlists/:id)
//   - the hive's recommendations (GET /recommendations/hive/:id)
//
// Tracks already in the queue are skipped, the rest are sent to the [Enqueuer] (normally queue.Sync)
// by a small worker pool behind a [rate.Limiter] so the music service is not flooded. With more than
// one worker the enqueue order is not preserved.
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
