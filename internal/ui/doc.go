// Package ui implements an interactive terminal player using bubbletea's Elm architecture.
//
// The single view shows:
//  1. the hive header and the authoritative playback source
//  2. now playing, with a progress bar drawn from the reconciler's displayed state
//  3. the shared queue as a [list.Model] with vote, reorder and remove bindings
//
// Seek and volume keys are drags: each press moves an optimistic preview and re-arms a settle
// timer. Only the timer for the latest press commits, so a burst of presses becomes one command.
// The volume overlay hides itself the same way, guarded by its own generation counter.
//
// Store snapshots arrive through a one-slot channel that always holds the newest state, so a slow
// render never queues stale frames.
package ui
