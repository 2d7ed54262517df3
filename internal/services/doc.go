// Package services implements the HTTP clients used by the playback core.
//
// # Music Service
//
// [APIService] is a small JSON client rooted at the music service base URL. Non-2xx responses
// map onto shared sentinel errors through [APIResponse.Err]:
//   - 401 : [shared.ErrNotAuthenticated]
//   - 404 : [shared.ErrQueueItemNotFound]
//   - 5xx : [shared.ErrServiceUnavailable]
//   - other : [shared.ErrAPIRequest]
//
// [MusicService] builds on it for the OAuth proxy (code exchange and refresh, so the client never
// holds a client secret), the collaborative queue endpoints, playlists and hive recommendations.
// List endpoints accept either a bare JSON array or an object wrapping one.
//
// # Spotify Web API
//
// [SpotifyService] covers profile (premium resolution) and catalog lookups with a bearer token.
// Transport control lives in the playback package, which owns the remote player client.
package services
