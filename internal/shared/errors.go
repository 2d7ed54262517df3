package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrInvalidState     = fmt.Errorf("invalid oauth state")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrTrackNotFound      = fmt.Errorf("track not found")
	ErrQueueItemNotFound  = fmt.Errorf("queue item not found")

	// Playback errors
	ErrDeviceNotConnected = fmt.Errorf("remote device not connected")
	ErrNoDevice           = fmt.Errorf("no playback device available")
	ErrSourceChanged      = fmt.Errorf("playback source changed before dispatch")
	ErrNoPlayableSource   = fmt.Errorf("track has no playable source")
	ErrNoDragActive       = fmt.Errorf("no drag interaction in progress")
	ErrCallbackPanic      = fmt.Errorf("callback panicked")

	// Callback server errors
	ErrRouteNotFound    = fmt.Errorf("no such route")
	ErrMethodNotAllowed = fmt.Errorf("method not allowed")

	// Sync errors
	ErrSyncFailed  = fmt.Errorf("queue sync failed")
	ErrChannelDown = fmt.Errorf("push channel closed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
