// Package session is the composition root of the playback core.
//
// A [Session] builds every component once, wires their listeners into the [store.Store] and
// owns their teardown. Nothing in the core is a package-level singleton: tests and the TUI each
// build their own session.
//
// Event flow:
//
//	auth.Manager ──AuthChanged──▶ store ◀──RemoteChanged── RemoteAdapter
//	     │                                                    │
//	     └──────────▶ Router.Update ◀───────────────────────────┘
//	adapters ──Event──▶ Reconciler ──PlaybackChanged──▶ store
//	queue.Channel ──Envelope──▶ queue.Sync ──Queue*──▶ store ──NowPlayingChanged──▶ history
package session
