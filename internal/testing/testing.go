// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/hivefm/internal/models"
)

// MemoryCredentials is an in-memory credential store for auth tests.
type MemoryCredentials struct {
	mu      sync.Mutex
	record  *models.PersistedAuth
	Deletes int
}

func NewMemoryCredentials(record *models.PersistedAuth) *MemoryCredentials {
	return &MemoryCredentials{record: record}
}

func (m *MemoryCredentials) LoadAuth(ctx context.Context) (*models.PersistedAuth, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.record == nil {
		return nil, nil
	}
	r := *m.record
	return &r, nil
}

func (m *MemoryCredentials) SaveAuth(ctx context.Context, a models.PersistedAuth) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = &a
	return nil
}

func (m *MemoryCredentials) DeleteAuth(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = nil
	m.Deletes++
	return nil
}

// Record returns the stored record, or nil.
func (m *MemoryCredentials) Record() *models.PersistedAuth {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// FailingBody returns an [http.Response] whose body read fails.
func FailingBody(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: &FCloser{}, Header: make(http.Header)}
}


func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

// SampleTracks returns n distinct tracks with preview URLs.
func SampleTracks(n int) []models.Track {
	tracks := make([]models.Track, n)
	for i := range n {
		id := string(rune('a' + i))
		tracks[i] = models.Track{
			ID:         "track-" + id,
			Title:      "Song " + id,
			Artist:     "Artist " + id,
			Duration:   180 + i,
			ProviderID: "sp" + id,
			PreviewURL: "https://cdn.example.com/" + id + ".mp3",
		}
	}
	return tracks
}
