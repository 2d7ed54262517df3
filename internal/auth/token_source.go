package auth

import (
	"context"
	"time"

	"github.com/desertthunder/hivefm/internal/shared"
	"golang.org/x/oauth2"
)

type tokenSource struct {
	m *Manager
}

// TokenSource adapts the manager to [oauth2.TokenSource]. Every Token call goes through
// [Manager.GetValidToken], so HTTP clients built on it never see a token inside the refresh buffer.
func (m *Manager) TokenSource() oauth2.TokenSource {
	return tokenSource{m: m}
}

func (ts tokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	token, ok := ts.m.GetValidToken(ctx)
	if !ok {
		return nil, shared.ErrNotAuthenticated
	}

	s := ts.m.State()
	return &oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
		Expiry:      s.Expiry().Add(-time.Second),
	}, nil
}
