// Music service endpoints: OAuth proxy, collaborative queue, playlists and recommendations
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/desertthunder/hivefm/internal/models"
	"github.com/desertthunder/hivefm/internal/shared"
)

// MusicService talks to the music service REST API. It implements the auth proxy.
type MusicService struct {
	api *APIService
}

// NewMusicService wraps an [APIService] rooted at the music service base URL.
func NewMusicService(api *APIService) *MusicService {
	return &MusicService{api: api}
}

type callbackRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ExchangeCode trades an authorization code for tokens via POST /spotify/callback.
func (s *MusicService) ExchangeCode(ctx context.Context, code, state string) (*models.TokenGrant, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: authorization code", shared.ErrMissingArgument)
	}
	var grant models.TokenGrant
	if err := s.api.SendJSON(ctx, http.MethodPost, "/spotify/callback", callbackRequest{code, state}, &grant); err != nil {
		return nil, err
	}
	return &grant, nil
}

// RefreshToken exchanges a refresh token via POST /spotify/refresh.
func (s *MusicService) RefreshToken(ctx context.Context, refreshToken string) (*models.TokenGrant, error) {
	var grant models.TokenGrant
	if err := s.api.SendJSON(ctx, http.MethodPost, "/spotify/refresh", refreshRequest{refreshToken}, &grant); err != nil {
		return nil, err
	}
	return &grant, nil
}

// AddRequest is the body of POST /queue.
type AddRequest struct {
	TrackID string        `json:"trackId"`
	HiveID  string        `json:"hiveId,omitempty"`
	Track   *models.Track `json:"track,omitempty"`
}

// ReorderRequest is the body of PUT /queue/reorder.
type ReorderRequest struct {
	FromPosition int    `json:"fromPosition"`
	ToPosition   int    `json:"toPosition"`
	HiveID       string `json:"hiveId,omitempty"`
}

// VoteRequest is the body of POST /queue/:id/vote.
type VoteRequest struct {
	TrackID string      `json:"trackId"`
	Vote    models.Vote `json:"vote"`
	HiveID  string      `json:"hiveId,omitempty"`
}

func hiveQuery(hiveID string) string {
	if hiveID == "" {
		return ""
	}
	return "?" + url.Values{"hiveId": {hiveID}}.Encode()
}

// Queue fetches the shared queue via GET /queue.
func (s *MusicService) Queue(ctx context.Context, hiveID string) (models.Queue, error) {
	resp, err := s.api.Get(ctx, "/queue"+hiveQuery(hiveID))
	if err != nil {
		return nil, err
	}
	var items []models.QueueItem
	if err := decodeList(resp, "items", &items); err != nil {
		return nil, err
	}
	return models.Queue(items).Normalize(), nil
}

// AddToQueue enqueues a track via POST /queue and returns the created slot.
func (s *MusicService) AddToQueue(ctx context.Context, hiveID string, track models.Track) (*models.QueueItem, error) {
	var item models.QueueItem
	body := AddRequest{TrackID: track.ID, HiveID: hiveID, Track: &track}
	if err := s.api.SendJSON(ctx, http.MethodPost, "/queue", body, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// RemoveFromQueue deletes a slot via DELETE /queue/:id.
func (s *MusicService) RemoveFromQueue(ctx context.Context, hiveID, queueID string) error {
	path := "/queue/" + url.PathEscape(queueID) + hiveQuery(hiveID)
	return s.api.SendJSON(ctx, http.MethodDelete, path, nil, nil)
}

// ReorderQueue moves a slot via PUT /queue/reorder.
func (s *MusicService) ReorderQueue(ctx context.Context, hiveID string, from, to int) error {
	body := ReorderRequest{FromPosition: from, ToPosition: to, HiveID: hiveID}
	return s.api.SendJSON(ctx, http.MethodPut, "/queue/reorder", body, nil)
}

// Vote casts a vote via POST /queue/:id/vote. The server copy of the item is returned when present.
func (s *MusicService) Vote(ctx context.Context, hiveID, queueID, trackID string, vote models.Vote) (*models.QueueItem, error) {
	if !vote.Valid() {
		return nil, fmt.Errorf("%w: vote %q", shared.ErrInvalidArgument, vote)
	}
	var item models.QueueItem
	body := VoteRequest{TrackID: trackID, Vote: vote, HiveID: hiveID}
	if err := s.api.SendJSON(ctx, http.MethodPost, "/queue/"+url.PathEscape(queueID)+"/vote", body, &item); err != nil {
		return nil, err
	}
	if item.QueueID == "" {
		return nil, nil
	}
	return &item, nil
}

// ClearQueue empties the queue via DELETE /queue/clear.
func (s *MusicService) ClearQueue(ctx context.Context, hiveID string) error {
	return s.api.SendJSON(ctx, http.MethodDelete, "/queue/clear"+hiveQuery(hiveID), nil, nil)
}

// PlaylistTracks returns the tracks of a playlist via GET /playlists/:id.
func (s *MusicService) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	resp, err := s.api.Get(ctx, "/playlists/"+url.PathEscape(playlistID))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrTrackNotFound, playlistID)
	}
	var tracks []models.Track
	if err := decodeList(resp, "tracks", &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// Recommendations returns tracks recommended for a hive via GET /recommendations/hive/:hiveId.
func (s *MusicService) Recommendations(ctx context.Context, hiveID string) ([]models.Track, error) {
	if hiveID == "" {
		return nil, fmt.Errorf("%w: hive id", shared.ErrMissingArgument)
	}
	resp, err := s.api.Get(ctx, "/recommendations/hive/"+url.PathEscape(hiveID))
	if err != nil {
		return nil, err
	}
	var tracks []models.Track
	if err := decodeList(resp, "tracks", &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// decodeList accepts either a bare JSON array or an object holding the array under key or "data".
func decodeList(resp *APIResponse, key string, out any) error {
	if err := resp.Err(); err != nil {
		return err
	}
	if _, ok := resp.JSONData.([]any); ok {
		return resp.Decode(out)
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	for _, k := range []string{key, "data"} {
		if raw, ok := envelope[k]; ok {
			if err := json.Unmarshal(raw, out); err != nil {
				return fmt.Errorf("failed to decode %s: %w", k, err)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: response has no %q list", shared.ErrAPIRequest, key)
}
