// Package playback unifies the remote device and the local media element behind one router.
//
// # Adapters
//
// [RemoteAdapter] drives a Spotify Connect device through the Web API. It discovers a device,
// transfers playback onto it, and polls player state. Its lifecycle follows
// uninitialized → initializing → ready (disconnected) → connected ⇄ not_ready, and the device id
// is only exposed while connected.
//
// [LocalAdapter] drives a [MediaElement]. [SilentElement] is a wall-clock element that tracks
// transport state without producing audio.
//
// Both adapters report through [Event] values delivered to [Listener] funcs. Listener panics are
// recovered and logged.
//
// # Selection
//
// [UseRemote] is the pure selection rule. [Router] applies it to every unified intent; a command
// whose selection changed between issue and dispatch fails with [shared.ErrSourceChanged] rather
// than landing on the newly selected source.
//
// # Reconciliation
//
// [Reconciler] folds adapter events into one [models.PlaybackState] and holds the optimistic
// preview for drag-seek and volume interactions. The adapter is only commanded when the drag ends.
package playback
