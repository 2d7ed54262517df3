// Package server provides the small HTTP surface the CLI needs for the OAuth redirect.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [CallbackRouter] matches
// exact paths and then methods, answering misses with [shared.ErrRouteNotFound] or
// [shared.ErrMethodNotAllowed]. Middleware sees every request, the first added outermost.
//
// # OAuth Callback Handler
//
// [OAuthHandler] receives the provider redirect, checks the state parameter and hands the code to an
// [Authenticator] (the auth manager), which exchanges it through the backend proxy. The outcome is
// sent once on [OAuthHandler.Result]; later callbacks are rejected to prevent replay.
//
// [Serve] runs a router on localhost until its context ends. `hive auth login` uses it to host the
// redirect URI for the length of the login.
package server
