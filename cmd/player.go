package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/hivefm/internal/models"
	"github.com/desertthunder/hivefm/internal/session"
	"github.com/desertthunder/hivefm/internal/shared"
	"github.com/urfave/cli/v3"
)

// PlayerDevices lists the account's Connect devices.
func (r *Runner) PlayerDevices(ctx context.Context, cmd *cli.Command) error {
	return r.withSession(ctx, func(s *session.Session) error {
		if _, ok := s.Auth.GetValidToken(ctx); !ok {
			return fmt.Errorf("%w: run 'hive auth login' first", shared.ErrNotAuthenticated)
		}
		devices, err := s.Devices(ctx)
		if err != nil {
			return err
		}
		if cmd.Bool("json") {
			return r.writeJSON(devices, true)
		}
		if len(devices) == 0 {
			return r.writePlain("No devices. Open Spotify on any device and try again.\n")
		}

		r.writePlainHeader(fmt.Sprintf("Devices (%d)", len(devices)))
		for _, d := range devices {
			marker := " "
			if d.Active {
				marker = "▶"
			}
			r.writePlain("%s %-24s %-12s %3d%%  %s\n", marker, d.Name, d.Type, d.Volume, d.ID)
		}
		return nil
	})
}

// PlayerPlay resumes, or plays the track given by id.
func (r *Runner) PlayerPlay(ctx context.Context, cmd *cli.Command) error {
	id := strings.TrimSpace(cmd.StringArg("track-id"))
	return r.withPlayer(ctx, func(s *session.Session) error {
		if id == "" {
			return s.Resume(ctx)
		}
		track, err := s.Catalog.Track(ctx, id)
		if err != nil {
			return err
		}
		if err := s.Play(ctx, track); err != nil {
			return err
		}
		return r.writePlain("▶ %s - %s\n", track.Artist, track.Title)
	})
}

func (r *Runner) PlayerPause(ctx context.Context, cmd *cli.Command) error {
	return r.withPlayer(ctx, func(s *session.Session) error { return s.Pause(ctx) })
}

func (r *Runner) PlayerResume(ctx context.Context, cmd *cli.Command) error {
	return r.withPlayer(ctx, func(s *session.Session) error { return s.Resume(ctx) })
}

func (r *Runner) PlayerNext(ctx context.Context, cmd *cli.Command) error {
	return r.withPlayer(ctx, func(s *session.Session) error { return s.Next(ctx) })
}

func (r *Runner) PlayerPrevious(ctx context.Context, cmd *cli.Command) error {
	return r.withPlayer(ctx, func(s *session.Session) error { return s.Previous(ctx) })
}

// PlayerSeek seeks to a position given as seconds or m:ss.
func (r *Runner) PlayerSeek(ctx context.Context, cmd *cli.Command) error {
	seconds, err := parseSeek(cmd.StringArg("position"))
	if err != nil {
		return err
	}
	return r.withPlayer(ctx, func(s *session.Session) error {
		return s.Seek(ctx, seconds)
	})
}

// PlayerVolume sets the device volume in percent.
func (r *Runner) PlayerVolume(ctx context.Context, cmd *cli.Command) error {
	arg := strings.TrimSuffix(strings.TrimSpace(cmd.StringArg("percent")), "%")
	if arg == "" {
		return fmt.Errorf("%w: volume percent", shared.ErrMissingArgument)
	}
	pct, err := strconv.Atoi(arg)
	if err != nil || pct < 0 || pct > 100 {
		return fmt.Errorf("%w: volume must be 0-100, got %q", shared.ErrInvalidArgument, arg)
	}
	return r.withPlayer(ctx, func(s *session.Session) error {
		return s.SetVolume(ctx, float64(pct)/100)
	})
}

// PlayerTransfer moves playback onto the chosen device.
func (r *Runner) PlayerTransfer(ctx context.Context, cmd *cli.Command) error {
	return r.withPlayer(ctx, func(s *session.Session) error {
		st := s.State().Remote
		if st.Status != models.RemoteConnected {
			return fmt.Errorf("%w: %s", shared.ErrDeviceNotConnected, st.Status)
		}
		name := st.DeviceName
		if name == "" {
			name = st.DeviceID
		}
		return r.writePlain("✓ Playback transferred to %s\n", name)
	})
}

// parseSeek accepts "90", "90.5", "1:30" or "1:02:03".
func parseSeek(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: seek position", shared.ErrMissingArgument)
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: seek position %q", shared.ErrInvalidArgument, s)
	}

	var total float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 || (i > 0 && v >= 60) {
			return 0, fmt.Errorf("%w: seek position %q", shared.ErrInvalidArgument, s)
		}
		total = total*60 + v
	}
	return total, nil
}
