// REST client for the music service (queue, playlists, recommendations and the OAuth proxy)
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/desertthunder/hivefm/internal/shared"
)

// APIService makes JSON requests against a base URL, optionally with a bearer token.
type APIService struct {
	baseURL    string
	httpClient *http.Client
	bearer     string
}

// NewAPIService creates a new API service instance. An empty baseURL falls back to the local music service.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8084/api/v1/music"
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// WithBearer sets the Authorization header sent with every request.
func (a *APIService) WithBearer(token string) *APIService {
	a.bearer = token
	return a
}

// BaseURL returns the base URL requests are resolved against.
func (a *APIService) BaseURL() string {
	return a.baseURL
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// OK reports a 2xx status.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Err maps a non-2xx status onto the shared sentinel errors.
func (r *APIResponse) Err() error {
	if r.OK() {
		return nil
	}

	msg := strings.TrimSpace(string(r.Body))
	if m, ok := r.JSONData.(map[string]any); ok {
		for _, key := range []string{"message", "error"} {
			if s, ok := m[key].(string); ok && s != "" {
				msg = s
				break
			}
		}
	}

	switch {
	case r.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: status %d: %s", shared.ErrNotAuthenticated, r.StatusCode, msg)
	case r.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: status %d: %s", shared.ErrQueueItemNotFound, r.StatusCode, msg)
	case r.StatusCode >= 500:
		return fmt.Errorf("%w: status %d: %s", shared.ErrServiceUnavailable, r.StatusCode, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, r.StatusCode, msg)
	}
}

// Decode unmarshals the body into v after checking the status.
func (r *APIResponse) Decode(v any) error {
	if err := r.Err(); err != nil {
		return err
	}
	if v == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with the given JSON body.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return a.do(ctx, http.MethodPost, path, data)
}

// Put performs a PUT request with the given JSON body.
func (a *APIService) Put(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return a.do(ctx, http.MethodPut, path, data)
}

// Delete performs a DELETE request.
func (a *APIService) Delete(ctx context.Context, path string) (*APIResponse, error) {
	return a.do(ctx, http.MethodDelete, path, nil)
}

// SendJSON marshals body, sends it with method and decodes the response into out.
func (a *APIService) SendJSON(ctx context.Context, method, path string, body, out any) error {
	var data []byte
	if body != nil {
		var err error
		if data, err = json.Marshal(body); err != nil {
			return fmt.Errorf("%w: failed to encode request: %v", shared.ErrInvalidInput, err)
		}
	}

	resp, err := a.do(ctx, method, path, data)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

func (a *APIService) do(ctx context.Context, method, path string, data []byte) (*APIResponse, error) {
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+a.bearer)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       raw,
	}

	var jsonData any
	if err := json.Unmarshal(raw, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}
