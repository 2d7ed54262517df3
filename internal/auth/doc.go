// Package auth owns the third-party OAuth credential lifecycle.
//
// A [Manager] hydrates [models.AuthState] from a durable [Store] on construction, hands out access
// tokens through [Manager.GetValidToken] (refreshing when the token is inside [RefreshBuffer]), and
// schedules a proactive refresh ahead of expiry. Code exchange and refresh go through a backend
// [Proxy] so the client never holds a client secret.
//
// A failed refresh is a hard session end: the manager clears its state, deletes the persisted record
// and disconnects the attached remote player.
//
// Callers that need an [oauth2.TokenSource] (for example an HTTP client for the Web API) use
// [Manager.TokenSource], which routes every token fetch through the refresh-aware path.
package auth
