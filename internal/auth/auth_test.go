package auth

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/hivefm/internal/models"
	"github.com/desertthunder/hivefm/internal/shared"
	tu "github.com/desertthunder/hivefm/internal/testing"
	"golang.org/x/oauth2"
)

type fakeProxy struct {
	exchanges atomic.Int32
	refreshes atomic.Int32
	exchange  func(code, state string) (*models.TokenGrant, error)
	refresh   func(token string) (*models.TokenGrant, error)
}

func (p *fakeProxy) ExchangeCode(ctx context.Context, code, state string) (*models.TokenGrant, error) {
	p.exchanges.Add(1)
	return p.exchange(code, state)
}

func (p *fakeProxy) RefreshToken(ctx context.Context, token string) (*models.TokenGrant, error) {
	p.refreshes.Add(1)
	return p.refresh(token)
}

type fakeProfiles struct {
	product string
	err     error
}

func (f fakeProfiles) UserProfile(ctx context.Context, token string) (*models.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Profile{ID: "user-1", DisplayName: "Listener", Product: f.product}, nil
}

type fakePlayer struct {
	disconnects atomic.Int32
}

func (p *fakePlayer) Disconnect() { p.disconnects.Add(1) }

// manualTimers records scheduled refreshes without running them.
type manualTimers struct {
	mu      sync.Mutex
	delays  []time.Duration
	pending []func()
	stopped int
}

func (m *manualTimers) AfterFunc(d time.Duration, f func()) func() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays = append(m.delays, d)
	m.pending = append(m.pending, f)
	return func() bool {
		m.mu.Lock()
		m.stopped++
		m.mu.Unlock()
		return true
	}
}

func (m *manualTimers) last() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.delays) == 0 {
		return -1
	}
	return m.delays[len(m.delays)-1]
}

type netTimeout struct{}

func (netTimeout) Error() string   { return "i/o timeout" }
func (netTimeout) Timeout() bool   { return true }
func (netTimeout) Temporary() bool { return true }

var _ net.Error = netTimeout{}

type fixture struct {
	manager *Manager
	proxy   *fakeProxy
	store   *tu.MemoryCredentials
	player  *fakePlayer
	timers  *manualTimers
	now     time.Time
}

func newFixture(t *testing.T, record *models.PersistedAuth) *fixture {
	t.Helper()
	now := time.UnixMilli(1_700_000_000_000)
	f := &fixture{
		proxy: &fakeProxy{
			exchange: func(code, state string) (*models.TokenGrant, error) {
				return &models.TokenGrant{AccessToken: "access-" + code, RefreshToken: "refresh-1", ExpiresIn: 3600}, nil
			},
			refresh: func(token string) (*models.TokenGrant, error) {
				return &models.TokenGrant{AccessToken: "refreshed", ExpiresIn: 3600}, nil
			},
		},
		store:  tu.NewMemoryCredentials(record),
		player: &fakePlayer{},
		timers: &manualTimers{},
		now:    now,
	}

	m, err := New(context.Background(), Options{
		OAuth: &oauth2.Config{
			ClientID:    "client",
			RedirectURL: "http://127.0.0.1:3000/callback",
			Endpoint:    oauth2.Endpoint{AuthURL: "https://accounts.example.com/authorize"},
		},
		Proxy:      f.proxy,
		Profiles:   fakeProfiles{product: "premium"},
		Store:      f.store,
		Logger:     shared.NewLogger(&strings.Builder{}),
		RetryDelay: time.Millisecond,
		Now:        func() time.Time { return f.now },
		AfterFunc:  f.timers.AfterFunc,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.AttachPlayer(f.player)
	f.manager = m
	return f
}

func persisted(now time.Time, expiresIn time.Duration) *models.PersistedAuth {
	return &models.PersistedAuth{
		Token:        "stored",
		RefreshToken: "refresh-0",
		ExpiresAt:    now.Add(expiresIn).UnixMilli(),
		User:         &models.Profile{ID: "user-1", Product: "premium"},
		IsPremium:    true,
	}
}

func TestManager(t *testing.T) {
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	t.Run("New Requires Proxy", func(t *testing.T) {
		if _, err := New(ctx, Options{}); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("Hydrate", func(t *testing.T) {
		t.Run("Valid Record", func(t *testing.T) {
			f := newFixture(t, persisted(base, time.Hour))
			s := f.manager.State()
			if !s.IsAuthenticated || s.AccessToken != "stored" || !s.IsPremium() {
				t.Errorf("unexpected hydrated state %+v", s)
			}
			if got := f.timers.last(); got != 55*time.Minute {
				t.Errorf("expected proactive refresh in 55m, got %v", got)
			}
		})

		t.Run("Expired Record", func(t *testing.T) {
			f := newFixture(t, persisted(base, -time.Minute))
			if f.manager.State().IsAuthenticated {
				t.Error("expired record must hydrate as unauthenticated")
			}
		})

		t.Run("No Record", func(t *testing.T) {
			f := newFixture(t, nil)
			if _, ok := f.manager.GetValidToken(ctx); ok {
				t.Error("expected no token without a record")
			}
			if f.proxy.refreshes.Load() != 0 {
				t.Error("no refresh should happen without credentials")
			}
		})
	})

	t.Run("GetValidToken", func(t *testing.T) {
		t.Run("Fresh Token Skips Refresh", func(t *testing.T) {
			f := newFixture(t, persisted(base, time.Hour))
			token, ok := f.manager.GetValidToken(ctx)
			if !ok || token != "stored" {
				t.Errorf("expected stored token, got %q %v", token, ok)
			}
			if n := f.proxy.refreshes.Load(); n != 0 {
				t.Errorf("expected no refresh, got %d", n)
			}
		})

		t.Run("Expiring In One Minute Refreshes Once", func(t *testing.T) {
			f := newFixture(t, persisted(base, time.Minute))

			token, ok := f.manager.GetValidToken(ctx)
			if !ok || token != "refreshed" {
				t.Fatalf("expected refreshed token, got %q %v", token, ok)
			}
			if n := f.proxy.refreshes.Load(); n != 1 {
				t.Errorf("expected exactly one refresh, got %d", n)
			}

			s := f.manager.State()
			if s.ExpiresAt <= base.Add(RefreshBuffer).UnixMilli() {
				t.Errorf("expected expiry beyond the buffer, got %v", s.Expiry())
			}
			if s.RefreshToken != "refresh-0" {
				t.Errorf("omitted refresh token should keep the old one, got %q", s.RefreshToken)
			}

			if _, ok := f.manager.GetValidToken(ctx); !ok {
				t.Error("second call should succeed")
			}
			if n := f.proxy.refreshes.Load(); n != 1 {
				t.Errorf("second call should not refresh again, got %d", n)
			}
		})

		t.Run("Expired Flips Authenticated Before Refresh", func(t *testing.T) {
			f := newFixture(t, persisted(base, time.Hour))
			f.now = base.Add(2 * time.Hour)

			var seen []bool
			f.manager.Subscribe(func(s models.AuthState) { seen = append(seen, s.IsAuthenticated) })

			if _, ok := f.manager.GetValidToken(ctx); !ok {
				t.Fatal("expected refresh to succeed")
			}
			if len(seen) < 2 || seen[0] || !seen[len(seen)-1] {
				t.Errorf("expected unauthenticated then authenticated notifications, got %v", seen)
			}
		})

		t.Run("Refresh Failure Returns False", func(t *testing.T) {
			f := newFixture(t, persisted(base, time.Minute))
			f.proxy.refresh = func(string) (*models.TokenGrant, error) {
				return nil, errors.New("invalid_grant")
			}

			if token, ok := f.manager.GetValidToken(ctx); ok || token != "" {
				t.Errorf("expected no token, got %q", token)
			}
		})
	})

	t.Run("RefreshAuth", func(t *testing.T) {
		t.Run("Network Failure Clears Session", func(t *testing.T) {
			f := newFixture(t, persisted(base, time.Hour))
			f.proxy.refresh = func(string) (*models.TokenGrant, error) {
				return nil, &net.OpError{Op: "dial", Err: netTimeout{}}
			}

			if f.manager.RefreshAuth(ctx) {
				t.Fatal("expected refresh to fail")
			}
			if n := f.proxy.refreshes.Load(); n != defaultRefreshAttempts {
				t.Errorf("expected %d attempts, got %d", defaultRefreshAttempts, n)
			}

			s := f.manager.State()
			if s.IsAuthenticated || s.AccessToken != "" || s.RefreshToken != "" || s.Profile != nil {
				t.Errorf("expected empty auth state, got %+v", s)
			}
			if !strings.Contains(s.LastError, "refresh failed") {
				t.Errorf("expected refresh error recorded, got %q", s.LastError)
			}
			if f.player.disconnects.Load() != 1 {
				t.Error("expected remote player to be disconnected")
			}
			if f.store.Record() != nil {
				t.Error("expected persisted record to be removed")
			}
		})

		t.Run("Status Failure Is Not Retried", func(t *testing.T) {
			f := newFixture(t, persisted(base, time.Hour))
			f.proxy.refresh = func(string) (*models.TokenGrant, error) {
				return nil, shared.ErrAPIRequest
			}

			f.manager.RefreshAuth(ctx)
			if n := f.proxy.refreshes.Load(); n != 1 {
				t.Errorf("expected a single attempt, got %d", n)
			}
		})

		t.Run("Retry Then Success", func(t *testing.T) {
			f := newFixture(t, persisted(base, time.Hour))
			var calls atomic.Int32
			f.proxy.refresh = func(string) (*models.TokenGrant, error) {
				if calls.Add(1) == 1 {
					return nil, shared.ErrTimeout
				}
				return &models.TokenGrant{AccessToken: "second", RefreshToken: "refresh-2", ExpiresIn: 60}, nil
			}

			if !f.manager.RefreshAuth(ctx) {
				t.Fatal("expected refresh to succeed on retry")
			}
			s := f.manager.State()
			if s.AccessToken != "second" || s.RefreshToken != "refresh-2" {
				t.Errorf("unexpected state %+v", s)
			}
			if f.store.Record() == nil || f.store.Record().Token != "second" {
				t.Error("expected refreshed token to be persisted")
			}
			if got := f.timers.last(); got != 0 {
				t.Errorf("short-lived token should schedule an immediate refresh, got %v", got)
			}
		})

		t.Run("Without Refresh Token", func(t *testing.T) {
			f := newFixture(t, nil)
			if f.manager.RefreshAuth(ctx) {
				t.Error("expected false without a refresh token")
			}
			if f.proxy.refreshes.Load() != 0 {
				t.Error("proxy should not be called")
			}
		})
	})

	t.Run("HandleAuthCallback", func(t *testing.T) {
		t.Run("Success", func(t *testing.T) {
			f := newFixture(t, nil)
			url, err := f.manager.AuthURL("state-1")
			if err != nil {
				t.Fatalf("AuthURL: %v", err)
			}
			if !strings.Contains(url, "state=state-1") || !strings.Contains(url, "client_id=client") {
				t.Errorf("unexpected auth url %s", url)
			}

			if !f.manager.HandleAuthCallback(ctx, "abc", "state-1") {
				t.Fatal("expected callback to succeed")
			}

			s := f.manager.State()
			if !s.IsAuthenticated || s.IsAuthenticating || s.AccessToken != "access-abc" || !s.IsPremium() {
				t.Errorf("unexpected state %+v", s)
			}
			if f.store.Record() == nil || !f.store.Record().IsPremium {
				t.Errorf("expected persisted premium record, got %+v", f.store.Record())
			}
			if got := f.timers.last(); got != 55*time.Minute {
				t.Errorf("expected refresh scheduled in 55m, got %v", got)
			}
		})

		t.Run("State Mismatch", func(t *testing.T) {
			f := newFixture(t, nil)
			f.manager.AuthURL("expected")
			if f.manager.HandleAuthCallback(ctx, "abc", "forged") {
				t.Fatal("expected mismatch to fail")
			}
			if f.proxy.exchanges.Load() != 0 {
				t.Error("proxy should not be called on state mismatch")
			}
		})

		t.Run("Exchange Failure", func(t *testing.T) {
			f := newFixture(t, nil)
			f.proxy.exchange = func(string, string) (*models.TokenGrant, error) {
				return nil, shared.ErrAPIRequest
			}
			if f.manager.HandleAuthCallback(ctx, "abc", "s") {
				t.Fatal("expected failure")
			}
			s := f.manager.State()
			if s.IsAuthenticating || s.IsAuthenticated || s.LastError == "" {
				t.Errorf("unexpected state %+v", s)
			}
		})

		t.Run("Profile Failure", func(t *testing.T) {
			f := newFixture(t, nil)
			f.manager.profiles = fakeProfiles{err: shared.ErrAPIRequest}
			if f.manager.HandleAuthCallback(ctx, "abc", "s") {
				t.Fatal("expected failure")
			}
			if f.store.Record() != nil {
				t.Error("nothing should be persisted")
			}
		})
	})

	t.Run("ClearAuth Is Idempotent", func(t *testing.T) {
		f := newFixture(t, persisted(base, time.Hour))
		f.manager.ClearAuth()
		f.manager.ClearAuth()

		if s := f.manager.State(); s.IsAuthenticated || s.AccessToken != "" {
			t.Errorf("expected empty state, got %+v", s)
		}
		if f.store.Deletes != 2 {
			t.Errorf("expected two deletes, got %d", f.store.Deletes)
		}
		if f.timers.stopped == 0 {
			t.Error("expected refresh timer to be stopped")
		}
	})

	t.Run("Subscriber Panic Is Recovered", func(t *testing.T) {
		f := newFixture(t, persisted(base, time.Hour))
		f.manager.Subscribe(func(models.AuthState) { panic("boom") })
		var calls int
		unsubscribe := f.manager.Subscribe(func(models.AuthState) { calls++ })

		f.manager.ClearAuth()
		if calls != 1 {
			t.Errorf("expected healthy subscriber to run, got %d", calls)
		}

		unsubscribe()
		f.manager.ClearAuth()
		if calls != 1 {
			t.Error("unsubscribed callback should not run")
		}
	})

	t.Run("Close Stops Scheduling", func(t *testing.T) {
		f := newFixture(t, persisted(base, time.Hour))
		f.manager.Close()
		before := len(f.timers.delays)

		if !f.manager.RefreshAuth(ctx) {
			t.Fatal("refresh should still work after Close")
		}
		if len(f.timers.delays) != before {
			t.Error("no timer should be armed after Close")
		}
	})

	t.Run("TokenSource", func(t *testing.T) {
		f := newFixture(t, persisted(base, time.Hour))
		tok, err := f.manager.TokenSource().Token()
		if err != nil {
			t.Fatalf("Token: %v", err)
		}
		if tok.AccessToken != "stored" || tok.TokenType != "Bearer" {
			t.Errorf("unexpected token %+v", tok)
		}

		f.manager.ClearAuth()
		if _, err := f.manager.TokenSource().Token(); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})
}
