// Spotify Web API client for profile and catalog lookups
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/hivefm/internal/models"
	"github.com/desertthunder/hivefm/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
)

// DefaultScopes are requested when the config does not list any.
var DefaultScopes = []string{
	"streaming",
	"user-read-email",
	"user-read-private",
	"user-read-playback-state",
	"user-modify-playback-state",
}

// NewSpotifyOAuthConfig builds the public OAuth client. It carries no secret: the token
// endpoint is only used by the music service proxy.
func NewSpotifyOAuthConfig(cfg shared.SpotifyConfig) *oauth2.Config {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	return &oauth2.Config{
		ClientID:    cfg.ClientID,
		RedirectURL: cfg.RedirectURI,
		Scopes:      scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Country     string `json:"country"`
	Product     string `json:"product"` // premium, free, etc.
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	Explicit   bool            `json:"explicit"`
	PreviewURL string          `json:"preview_url"`
	URI        string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
}

type searchResponse struct {
	Tracks struct {
		Items []SpotifyTrack `json:"items"`
		Total int            `json:"total"`
	} `json:"tracks"`
}

// ToTrack converts the API shape into a catalog [models.Track].
func (t SpotifyTrack) ToTrack() models.Track {
	track := models.Track{
		ID:          t.ID,
		Title:       t.Name,
		Album:       t.Album.Name,
		Duration:    t.DurationMS / 1000,
		Explicit:    t.Explicit,
		ProviderID:  t.ID,
		ProviderURI: t.URI,
		PreviewURL:  t.PreviewURL,
	}

	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	track.Artist = strings.Join(names, ", ")

	if len(t.Album.Images) > 0 {
		track.ArtworkURL = t.Album.Images[0].URL
	}
	return track
}

// SpotifyService is a bearer-token Web API client. Requests without an explicit token
// draw one from the token source, which goes through the refresh-aware path.
type SpotifyService struct {
	baseURL    string
	httpClient *http.Client
	tokens     oauth2.TokenSource
}

// NewSpotifyService creates a client. baseURL defaults to the public Web API.
func NewSpotifyService(baseURL string, client *http.Client, tokens oauth2.TokenSource) *SpotifyService {
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &SpotifyService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		tokens:     tokens,
	}
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// doRequest performs an authenticated GET against the Web API.
func (s *SpotifyService) doRequest(ctx context.Context, token, endpoint string, result any) error {
	if token == "" {
		if s.tokens == nil {
			return shared.ErrNotAuthenticated
		}
		t, err := s.tokens.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, err)
		}
		token = t.AccessToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: spotify API status %d", shared.ErrTokenExpired, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: spotify API status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// UserProfile retrieves the profile for accessToken (or the token source when empty).
func (s *SpotifyService) UserProfile(ctx context.Context, accessToken string) (*models.Profile, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, accessToken, "/me", &user); err != nil {
		return nil, err
	}
	return &models.Profile{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Country:     user.Country,
		Product:     user.Product,
	}, nil
}

// Track retrieves a single track by ID.
func (s *SpotifyService) Track(ctx context.Context, trackID string) (*models.Track, error) {
	if trackID == "" {
		return nil, fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}
	var track SpotifyTrack
	if err := s.doRequest(ctx, "", "/tracks/"+url.PathEscape(trackID), &track); err != nil {
		return nil, err
	}
	t := track.ToTrack()
	return &t, nil
}

// SearchTracks searches the catalog. limit is clamped to 1..50.
func (s *SpotifyService) SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}
	limit = min(max(limit, 1), 50)

	params := url.Values{
		"q":     {query},
		"type":  {"track"},
		"limit": {fmt.Sprint(limit)},
	}

	var response searchResponse
	if err := s.doRequest(ctx, "", "/search?"+params.Encode(), &response); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(response.Tracks.Items))
	for _, item := range response.Tracks.Items {
		tracks = append(tracks, item.ToTrack())
	}
	return tracks, nil
}

// SearchTrack returns the best match for title and artist.
func (s *SpotifyService) SearchTrack(ctx context.Context, title, artist string) (*models.Track, error) {
	q := "track:" + title
	if artist != "" {
		q += " artist:" + artist
	}
	tracks, err := s.SearchTracks(ctx, q, 1)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: %s by %s", shared.ErrTrackNotFound, title, artist)
	}
	return &tracks[0], nil
}
