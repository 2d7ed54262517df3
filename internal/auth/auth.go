package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hivefm/internal/models"
	"github.com/desertthunder/hivefm/internal/shared"
	"golang.org/x/oauth2"
)

// RefreshBuffer is how close to expiry a token may get before it is refreshed.
const RefreshBuffer = 5 * time.Minute

const (
	defaultRefreshAttempts = 3
	defaultRetryDelay      = 500 * time.Millisecond
	refreshTimeout         = 15 * time.Second
)

// Proxy exchanges codes and refresh tokens through the backend.
type Proxy interface {
	ExchangeCode(ctx context.Context, code, state string) (*models.TokenGrant, error)
	RefreshToken(ctx context.Context, refreshToken string) (*models.TokenGrant, error)
}

// ProfileFetcher resolves the account profile (and premium flag) for an access token.
type ProfileFetcher interface {
	UserProfile(ctx context.Context, accessToken string) (*models.Profile, error)
}

// Store persists the single credential record.
type Store interface {
	LoadAuth(ctx context.Context) (*models.PersistedAuth, error)
	SaveAuth(ctx context.Context, auth models.PersistedAuth) error
	DeleteAuth(ctx context.Context) error
}

// Player is the remote player the manager disconnects when the session ends.
type Player interface {
	Disconnect()
}

// AfterFunc schedules f after d and returns a stop function.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

func realAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Options configures a [Manager]. Proxy is required.
type Options struct {
	OAuth           *oauth2.Config
	Proxy           Proxy
	Profiles        ProfileFetcher
	Store           Store
	Logger          *log.Logger
	RefreshAttempts int
	RetryDelay      time.Duration
	Now             func() time.Time
	AfterFunc       AfterFunc
}

// Manager owns [models.AuthState]. It is safe for concurrent use.
type Manager struct {
	oauth     *oauth2.Config
	proxy     Proxy
	profiles  ProfileFetcher
	store     Store
	logger    *log.Logger
	attempts  int
	delay     time.Duration
	now       func() time.Time
	afterFunc AfterFunc

	mu           sync.Mutex
	state        models.AuthState
	pendingState string
	player       Player
	stopTimer    func() bool
	closed       bool
	subs         map[int]func(models.AuthState)
	nextSub      int
}

// New builds a manager and hydrates it from the store. IsAuthenticated is derived from ExpiresAt.
func New(ctx context.Context, opts Options) (*Manager, error) {
	if opts.Proxy == nil {
		return nil, fmt.Errorf("%w: auth proxy is required", shared.ErrInvalidConfig)
	}

	m := &Manager{
		oauth:     opts.OAuth,
		proxy:     opts.Proxy,
		profiles:  opts.Profiles,
		store:     opts.Store,
		logger:    shared.WithLogger(opts.Logger, "component", "auth"),
		attempts:  opts.RefreshAttempts,
		delay:     opts.RetryDelay,
		now:       opts.Now,
		afterFunc: opts.AfterFunc,
		subs:      make(map[int]func(models.AuthState)),
	}
	if m.attempts <= 0 {
		m.attempts = defaultRefreshAttempts
	}
	if m.delay <= 0 {
		m.delay = defaultRetryDelay
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.afterFunc == nil {
		m.afterFunc = realAfterFunc
	}

	m.hydrate(ctx)
	return m, nil
}

func (m *Manager) hydrate(ctx context.Context) {
	if m.store == nil {
		return
	}

	persisted, err := m.store.LoadAuth(ctx)
	if err != nil {
		m.logger.Warn("failed to load persisted credentials", "error", err)
		return
	}
	if persisted == nil {
		return
	}

	m.mu.Lock()
	m.state = persisted.ToAuthState(m.now())
	if m.state.RefreshToken != "" {
		m.scheduleLocked()
	}
	authenticated := m.state.IsAuthenticated
	m.mu.Unlock()

	m.logger.Info("hydrated credentials", "authenticated", authenticated)
}

// State returns a copy of the current auth state.
func (m *Manager) State() models.AuthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// AttachPlayer registers the remote player to disconnect on [Manager.ClearAuth].
func (m *Manager) AttachPlayer(p Player) {
	m.mu.Lock()
	m.player = p
	m.mu.Unlock()
}

// AuthURL returns the authorization-code URL for state and remembers state for the callback.
func (m *Manager) AuthURL(state string) (string, error) {
	if m.oauth == nil {
		return "", fmt.Errorf("%w: oauth client not configured", shared.ErrMissingConfig)
	}
	m.mu.Lock()
	m.pendingState = state
	m.mu.Unlock()
	return m.oauth.AuthCodeURL(state), nil
}

// GetValidToken returns the access token, refreshing once first when it expires within [RefreshBuffer].
// It reports false, never an error, when the session is unauthenticated or the refresh fails.
func (m *Manager) GetValidToken(ctx context.Context) (string, bool) {
	m.mu.Lock()
	s := m.state
	now := m.now()
	if s.AccessToken == "" && s.RefreshToken == "" {
		m.mu.Unlock()
		return "", false
	}
	if !s.ExpiresWithin(now, RefreshBuffer) {
		m.mu.Unlock()
		if !s.IsAuthenticated {
			return "", false
		}
		return s.AccessToken, true
	}

	expired := s.ExpiresAt <= now.UnixMilli()
	if expired && m.state.IsAuthenticated {
		m.state.IsAuthenticated = false
	}
	snapshot := m.state
	m.mu.Unlock()

	if expired {
		m.notify(snapshot)
	}

	if !m.RefreshAuth(ctx) {
		return "", false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.IsAuthenticated {
		return "", false
	}
	return m.state.AccessToken, true
}

// HandleAuthCallback exchanges an authorization code, resolves the profile and persists the result.
func (m *Manager) HandleAuthCallback(ctx context.Context, code, state string) bool {
	m.mu.Lock()
	pending := m.pendingState
	if pending != "" && pending != state {
		m.mu.Unlock()
		m.fail(fmt.Errorf("%w: callback state mismatch", shared.ErrInvalidState))
		return false
	}
	m.pendingState = ""
	m.state.IsAuthenticating = true
	m.state.LastError = ""
	snapshot := m.state
	m.mu.Unlock()
	m.notify(snapshot)

	grant, err := m.proxy.ExchangeCode(ctx, code, state)
	if err != nil {
		m.fail(fmt.Errorf("%w: code exchange: %v", shared.ErrAuthFailed, err))
		return false
	}
	if grant.AccessToken == "" {
		m.fail(fmt.Errorf("%w: empty access token", shared.ErrAuthFailed))
		return false
	}

	var profile *models.Profile
	if m.profiles != nil {
		profile, err = m.profiles.UserProfile(ctx, grant.AccessToken)
		if err != nil {
			m.fail(fmt.Errorf("%w: profile fetch: %v", shared.ErrAuthFailed, err))
			return false
		}
	}

	m.mu.Lock()
	m.applyGrantLocked(grant)
	m.state.Profile = profile
	m.state.IsAuthenticating = false
	snapshot = m.state
	m.mu.Unlock()

	m.persist(ctx, snapshot)
	m.notify(snapshot)
	m.logger.Info("authenticated", "user", profileID(profile), "premium", profile.Premium())
	return true
}

// RefreshAuth exchanges the refresh token for a new access token. Network and timeout failures
// are retried a bounded number of times; any final failure clears the session.
func (m *Manager) RefreshAuth(ctx context.Context) bool {
	m.mu.Lock()
	refreshToken := m.state.RefreshToken
	m.mu.Unlock()

	if refreshToken == "" {
		m.logger.Warn("refresh requested without a refresh token")
		m.clear(shared.ErrNoRefreshToken.Error())
		return false
	}

	grant, err := m.refreshWithRetry(ctx, refreshToken)
	if err == nil && grant.AccessToken == "" {
		err = fmt.Errorf("empty access token")
	}
	if err != nil {
		err = fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
		m.logger.Warn("token refresh failed, clearing session", "error", err)
		m.clear(err.Error())
		return false
	}

	m.mu.Lock()
	m.applyGrantLocked(grant)
	snapshot := m.state
	m.mu.Unlock()

	m.persist(ctx, snapshot)
	m.notify(snapshot)
	m.logger.Debug("token refreshed", "expires_at", snapshot.Expiry())
	return true
}

func (m *Manager) refreshWithRetry(ctx context.Context, refreshToken string) (*models.TokenGrant, error) {
	var lastErr error
	for attempt := 1; attempt <= m.attempts; attempt++ {
		grant, err := m.proxy.RefreshToken(ctx, refreshToken)
		if err == nil {
			return grant, nil
		}
		lastErr = err
		if !retryable(err) || attempt == m.attempts {
			break
		}

		m.logger.Debug("retrying token refresh", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.delay * time.Duration(attempt)):
		}
	}
	return nil, lastErr
}

// retryable reports network and timeout failures. HTTP status errors are final.
func retryable(err error) bool {
	if errors.Is(err, shared.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// ClearAuth ends the session: the remote player is disconnected, the state reset and the
// persisted record removed. Calling it repeatedly is safe.
func (m *Manager) ClearAuth() {
	m.clear("")
}

func (m *Manager) clear(reason string) {
	m.mu.Lock()
	if m.stopTimer != nil {
		m.stopTimer()
		m.stopTimer = nil
	}
	m.state = models.AuthState{LastError: reason}
	m.pendingState = ""
	player := m.player
	snapshot := m.state
	m.mu.Unlock()

	if player != nil {
		player.Disconnect()
	}

	if m.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		if err := m.store.DeleteAuth(ctx); err != nil {
			m.logger.Warn("failed to delete persisted credentials", "error", err)
		}
	}

	m.notify(snapshot)
}

// Subscribe registers fn for every auth-state change and returns an unsubscribe func.
func (m *Manager) Subscribe(fn func(models.AuthState)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Close stops the proactive refresh timer. The manager keeps serving tokens.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.stopTimer != nil {
		m.stopTimer()
		m.stopTimer = nil
	}
	return nil
}

func (m *Manager) applyGrantLocked(grant *models.TokenGrant) {
	m.state.AccessToken = grant.AccessToken
	if grant.RefreshToken != "" {
		m.state.RefreshToken = grant.RefreshToken
	}
	m.state.ExpiresAt = m.now().Add(time.Duration(grant.ExpiresIn) * time.Second).UnixMilli()
	m.state.IsAuthenticated = true
	m.state.LastError = ""
	m.scheduleLocked()
}

// scheduleLocked arms the proactive refresh for RefreshBuffer before expiry.
func (m *Manager) scheduleLocked() {
	if m.stopTimer != nil {
		m.stopTimer()
		m.stopTimer = nil
	}
	if m.closed {
		return
	}

	d := m.state.Expiry().Sub(m.now()) - RefreshBuffer
	if d < 0 {
		d = 0
	}
	m.stopTimer = m.afterFunc(d, func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		m.RefreshAuth(ctx)
	})
}

func (m *Manager) fail(err error) {
	m.mu.Lock()
	m.state.IsAuthenticating = false
	m.state.LastError = err.Error()
	snapshot := m.state
	m.mu.Unlock()

	m.logger.Warn("authentication failed", "error", err)
	m.notify(snapshot)
}

func (m *Manager) persist(ctx context.Context, s models.AuthState) {
	if m.store == nil {
		return
	}
	if err := m.store.SaveAuth(ctx, models.PersistAuth(s)); err != nil {
		m.logger.Warn("failed to persist credentials", "error", err)
	}
}

func (m *Manager) notify(s models.AuthState) {
	m.mu.Lock()
	subs := make([]func(models.AuthState), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		func() {
			defer shared.Recover(m.logger, "auth subscriber", nil)
			fn(s)
		}()
	}
}

func profileID(p *models.Profile) string {
	if p == nil {
		return ""
	}
	return p.ID
}
