package models

import (
	"time"
)

// Track is an immutable catalog entry. Duration is in seconds.
type Track struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album,omitempty"`
	Duration    int    `json:"duration"`
	ArtworkURL  string `json:"artworkUrl,omitempty"`
	Explicit    bool   `json:"explicit,omitempty"`
	ProviderID  string `json:"spotifyId,omitempty"`
	ProviderURI string `json:"spotifyUri,omitempty"`
	PreviewURL  string `json:"previewUrl,omitempty"`
}

// URI returns the provider URI, deriving it from ProviderID when absent.
func (t Track) URI() string {
	if t.ProviderURI != "" {
		return t.ProviderURI
	}
	if t.ProviderID != "" {
		return "spotify:track:" + t.ProviderID
	}
	return ""
}

// Vote is the caller's own vote on a queue item.
type Vote string

const (
	VoteNone Vote = ""
	VoteUp   Vote = "up"
	VoteDown Vote = "down"
)

// Valid reports whether v can be sent to the vote endpoint.
func (v Vote) Valid() bool {
	return v == VoteUp || v == VoteDown
}

// QueueItem is a track occupying one slot of the shared queue.
type QueueItem struct {
	Track
	QueueID  string `json:"queueId"`
	Position int    `json:"position"`
	Votes    int    `json:"votes"`
	UserVote Vote   `json:"userVote,omitempty"`
	AddedBy  string `json:"addedBy,omitempty"`
}

// PlaybackState is the canonical transport state. Times are in seconds, volume in 0..1.
type PlaybackState struct {
	IsPlaying    bool    `json:"isPlaying"`
	IsPaused     bool    `json:"isPaused"`
	IsBuffering  bool    `json:"isBuffering"`
	CurrentTime  float64 `json:"currentTime"`
	Duration     float64 `json:"duration"`
	Volume       float64 `json:"volume"`
	IsMuted      bool    `json:"isMuted"`
	PlaybackRate float64 `json:"playbackRate"`
}

// DefaultPlaybackState is the state before any adapter has reported.
func DefaultPlaybackState() PlaybackState {
	return PlaybackState{Volume: 0.7, PlaybackRate: 1}
}

// Profile is the third-party account profile, used to resolve premium entitlement.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Country     string `json:"country,omitempty"`
	Product     string `json:"product,omitempty"`
}

// Premium reports whether the account may drive a remote device.
func (p *Profile) Premium() bool {
	return p != nil && p.Product == "premium"
}

// AuthState holds the third-party OAuth credentials. ExpiresAt is epoch milliseconds.
type AuthState struct {
	IsAuthenticated  bool     `json:"isAuthenticated"`
	IsAuthenticating bool     `json:"isAuthenticating"`
	AccessToken      string   `json:"-"`
	RefreshToken     string   `json:"-"`
	ExpiresAt        int64    `json:"expiresAt"`
	Profile          *Profile `json:"profile,omitempty"`
	LastError        string   `json:"lastError,omitempty"`
}

// IsPremium reports the premium flag of the attached profile.
func (a AuthState) IsPremium() bool {
	return a.Profile.Premium()
}

// Expiry returns ExpiresAt as a [time.Time].
func (a AuthState) Expiry() time.Time {
	return time.UnixMilli(a.ExpiresAt)
}

// ExpiresWithin reports whether the token expires within d of now.
func (a AuthState) ExpiresWithin(now time.Time, d time.Duration) bool {
	return a.ExpiresAt-now.UnixMilli() < d.Milliseconds()
}

// RemoteStatus is the remote adapter lifecycle state.
type RemoteStatus string

const (
	RemoteUninitialized RemoteStatus = "uninitialized"
	RemoteInitializing  RemoteStatus = "initializing"
	RemoteReady         RemoteStatus = "ready"
	RemoteConnected     RemoteStatus = "connected"
	RemoteNotReady      RemoteStatus = "not_ready"
)

// RemotePlayerState describes the remote device. DeviceID is empty unless connected.
type RemotePlayerState struct {
	Status      RemoteStatus `json:"status"`
	IsReady     bool         `json:"isReady"`
	IsConnected bool         `json:"isConnected"`
	DeviceID    string       `json:"deviceId,omitempty"`
	DeviceName  string       `json:"deviceName,omitempty"`
}

// PersistedAuth is the durable client-state record for the OAuth session.
type PersistedAuth struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refreshToken"`
	ExpiresAt    int64    `json:"expiresAt"`
	User         *Profile `json:"user,omitempty"`
	IsPremium    bool     `json:"isPremium"`
}

// ToAuthState rebuilds an [AuthState], deriving IsAuthenticated from ExpiresAt rather than any stored flag.
func (p PersistedAuth) ToAuthState(now time.Time) AuthState {
	s := AuthState{
		AccessToken:  p.Token,
		RefreshToken: p.RefreshToken,
		ExpiresAt:    p.ExpiresAt,
		Profile:      p.User,
	}
	s.IsAuthenticated = p.Token != "" && p.ExpiresAt > now.UnixMilli()
	return s
}

// PersistAuth snapshots the fields of s that survive a restart.
func PersistAuth(s AuthState) PersistedAuth {
	return PersistedAuth{
		Token:        s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.ExpiresAt,
		User:         s.Profile,
		IsPremium:    s.IsPremium(),
	}
}

// HistoryEntry is one now-playing change recorded for the session.
type HistoryEntry struct {
	ID       string    `json:"id"`
	Track    Track     `json:"track"`
	Source   string    `json:"source"`
	HiveID   string    `json:"hiveId,omitempty"`
	PlayedAt time.Time `json:"playedAt"`
}

// TokenGrant is the OAuth proxy response for both code exchange and refresh.
type TokenGrant struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
}
