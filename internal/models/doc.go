// Package models defines the value types shared by the playback core.
//
// The package contains three groups of types:
//
// 1. Catalog values, created by search or catalog fetch and never mutated:
//   - [Track] : a song with an optional preview URL for local playback
//
// 2. Session state, owned by the store and replaced wholesale on change:
//   - [PlaybackState] : canonical transport state produced by the reconciler
//   - [AuthState] : third-party OAuth credentials and the caller's [Profile]
//   - [RemotePlayerState] : the remote device the session is attached to
//
// 3. Collaborative queue:
//   - [QueueItem] : a [Track] in a queue slot with its vote tally
//   - [Queue] : ordered items; every helper returns a fresh slice with dense positions
//
// [PersistedAuth] is the single record written to durable client storage.
package models
