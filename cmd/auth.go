package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/hivefm/internal/server"
	"github.com/desertthunder/hivefm/internal/session"
	"github.com/desertthunder/hivefm/internal/shared"
	"github.com/urfave/cli/v3"
)

const loginTimeout = 2 * time.Minute

// AuthLogin runs the authorization code flow through a local callback server.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	return r.withSession(ctx, func(s *session.Session) error {
		state := shared.GenerateID()
		authURL, err := s.Auth.AuthURL(state)
		if err != nil {
			return err
		}

		handler := server.NewOAuthHandler(s.Auth, state)
		router := server.NewCallbackRouter(r.logger)
		router.Use(server.Logging(r.logger))
		router.Handler(handler)

		srvCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		noBrowser := cmd.Bool("no-browser")
		errc := make(chan error, 1)
		go func() {
			errc <- server.Serve(srvCtx, r.config.Server.Addr(), router, func(addr string) {
				r.logger.Info("waiting for callback", "addr", addr)
				if !noBrowser {
					err := r.openURL(authURL)
					if err == nil {
						return
					}
					r.logger.Warn("failed to open browser", "error", err)
				}
				r.writePlain("Open this URL to authorize:\n\n%s\n\n", authURL)
			})
		}()

		timeout := cmd.Duration("timeout")
		if timeout <= 0 {
			timeout = loginTimeout
		}

		select {
		case result := <-handler.Result():
			if err := result.Error(); err != nil {
				return err
			}
			name := "unknown"
			if p := result.Auth.Profile; p != nil {
				name = p.DisplayName
			}
			r.writePlain("✓ Authorized as %s\n", name)
			if !result.Auth.IsPremium() {
				r.writePlain("Spotify Free account: playback will use 30 second previews\n")
			}
			return nil
		case err := <-errc:
			if err == nil {
				err = ctx.Err()
			}
			return fmt.Errorf("callback server stopped: %w", err)
		case <-time.After(timeout):
			return fmt.Errorf("%w: no callback within %s", shared.ErrTimeout, timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// AuthStatus prints the stored authorization without refreshing it.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	return r.withSession(ctx, func(s *session.Session) error {
		a := s.Auth.State()
		if cmd.Bool("json") {
			return r.writeJSON(a, true)
		}

		r.writePlainHeader("Spotify authorization")
		if !a.IsAuthenticated && a.RefreshToken == "" {
			r.writePlain("Status: ✗ Not authenticated\n")
			if a.LastError != "" {
				r.writePlain("Last error: %s\n", a.LastError)
			}
			return nil
		}

		status := "✓ Authenticated"
		if !a.IsAuthenticated {
			status = "… Expired (will refresh on next use)"
		}
		r.writePlain("Status: %s\n", status)
		if p := a.Profile; p != nil {
			r.writePlain("User: %s (%s)\n", p.DisplayName, p.ID)
			r.writePlain("Plan: %s\n", p.Product)
		}
		r.writePlain("Expires: %s\n", a.Expiry().Local().Format(time.RFC1123))
		if a.IsPremium() {
			r.writePlain("Playback: Spotify Connect\n")
		} else {
			r.writePlain("Playback: previews\n")
		}
		return nil
	})
}

// AuthLogout drops the stored tokens.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	return r.withSession(ctx, func(s *session.Session) error {
		s.Auth.ClearAuth()
		return r.writePlain("✓ Logged out\n")
	})
}

// AuthToken prints a valid access token, refreshing when it is about to expire.
func (r *Runner) AuthToken(ctx context.Context, cmd *cli.Command) error {
	return r.withSession(ctx, func(s *session.Session) error {
		token, ok := s.Auth.GetValidToken(ctx)
		if !ok {
			return fmt.Errorf("%w: run 'hive auth login' first", shared.ErrNotAuthenticated)
		}
		return r.writePlain("%s\n", token)
	})
}
