package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/hivefm/internal/formatter"
	"github.com/desertthunder/hivefm/internal/models"
	"github.com/desertthunder/hivefm/internal/session"
	"github.com/desertthunder/hivefm/internal/shared"
	"github.com/desertthunder/hivefm/internal/tasks"
	"github.com/urfave/cli/v3"
)

func queueTitle(s *session.Session) string {
	if hive := s.Queue.HiveID(); hive != "" {
		return "Hive " + hive
	}
	return "Queue"
}

// QueueList renders the queue to stdout or to a file.
func (r *Runner) QueueList(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	return r.withQueue(ctx, cmd, func(s *session.Session) error {
		q := s.Store.State().Queue
		title := queueTitle(s)

		if out := cmd.String("output"); out != "" {
			path, err := formatter.WriteQueueExport(format, title, q, out)
			if err != nil {
				return err
			}
			r.logger.Info("queue exported", "path", path, "tracks", len(q))
			return r.writePlain("✓ Wrote %d tracks to %s\n", len(q), path)
		}

		data, err := formatter.RenderQueue(format, title, q)
		if err != nil {
			return err
		}
		if _, err := r.output.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	})
}

// QueueAdd enqueues a track given by --track-id or resolved from a search query.
func (r *Runner) QueueAdd(ctx context.Context, cmd *cli.Command) error {
	id := strings.TrimSpace(cmd.String("track-id"))
	query := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if id == "" && query == "" {
		return fmt.Errorf("%w: --track-id or a search query", shared.ErrMissingArgument)
	}

	return r.withQueue(ctx, cmd, func(s *session.Session) error {
		track, err := r.resolveTrack(ctx, s, id, query)
		if err != nil {
			return err
		}
		if err := s.Queue.Add(ctx, *track); err != nil {
			return err
		}
		return r.writePlain("✓ Added %s - %s\n", track.Artist, track.Title)
	})
}

func (r *Runner) resolveTrack(ctx context.Context, s *session.Session, id, query string) (*models.Track, error) {
	if id != "" {
		return s.Catalog.Track(ctx, id)
	}
	tracks, err := s.Catalog.SearchTracks(ctx, query, 1)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: %q", shared.ErrTrackNotFound, query)
	}
	r.logger.Debug("resolved query", "query", query, "track", tracks[0].ID)
	return &tracks[0], nil
}

// QueueRemove drops a queue item by its queue id.
func (r *Runner) QueueRemove(ctx context.Context, cmd *cli.Command) error {
	id := strings.TrimSpace(cmd.StringArg("queue-id"))
	if id == "" {
		return fmt.Errorf("%w: queue id", shared.ErrMissingArgument)
	}
	return r.withQueue(ctx, cmd, func(s *session.Session) error {
		if err := s.Queue.Remove(ctx, id); err != nil {
			return err
		}
		return r.writePlain("✓ Removed %s\n", id)
	})
}

// QueueReorder moves an item between 1-based positions.
func (r *Runner) QueueReorder(ctx context.Context, cmd *cli.Command) error {
	from, err := parsePosition(cmd.StringArg("from"))
	if err != nil {
		return err
	}
	to, err := parsePosition(cmd.StringArg("to"))
	if err != nil {
		return err
	}
	return r.withQueue(ctx, cmd, func(s *session.Session) error {
		if err := s.Queue.Reorder(ctx, from-1, to-1); err != nil {
			return err
		}
		return r.writePlain("✓ Moved %d → %d\n", from, to)
	})
}

// QueueVote votes an item up or down.
func (r *Runner) QueueVote(ctx context.Context, cmd *cli.Command) error {
	id := strings.TrimSpace(cmd.StringArg("queue-id"))
	if id == "" {
		return fmt.Errorf("%w: queue id", shared.ErrMissingArgument)
	}
	vote, err := parseVote(cmd.StringArg("direction"))
	if err != nil {
		return err
	}
	return r.withQueue(ctx, cmd, func(s *session.Session) error {
		if err := s.Queue.Vote(ctx, id, vote); err != nil {
			return err
		}
		return r.writePlain("✓ Voted %s on %s\n", vote, id)
	})
}

// QueueClear empties the queue.
func (r *Runner) QueueClear(ctx context.Context, cmd *cli.Command) error {
	return r.withQueue(ctx, cmd, func(s *session.Session) error {
		if err := s.Queue.Clear(ctx); err != nil {
			return err
		}
		return r.writePlain("✓ Queue cleared\n")
	})
}

// QueueFill bulk-adds a playlist, or the hive's recommendations when no playlist is given.
func (r *Runner) QueueFill(ctx context.Context, cmd *cli.Command) error {
	return r.withQueue(ctx, cmd, func(s *session.Session) error {
		opts := tasks.FillOpts{
			PlaylistID: cmd.String("playlist"),
			HiveID:     s.Queue.HiveID(),
			Limit:      int(cmd.Int("limit")),
			Queued:     s.Store.State().Queue.Tracks(),
			NumWorkers: int(cmd.Int("workers")),
			RateLimit:  float64(cmd.Int("rate")),
		}

		prog := make(chan tasks.ProgressUpdate, 16)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for u := range prog {
				r.logger.Info(u.Message, "phase", u.Phase, "step", u.Step, "total", u.Total)
			}
		}()

		result, err := s.Filler.Fill(ctx, prog, opts)
		close(prog)
		<-done
		if err != nil {
			return err
		}

		r.writePlainHeader("Queue fill: " + result.Source)
		r.writePlain("Added:   %d\n", result.Added)
		r.writePlain("Skipped: %d (already queued or over limit)\n", result.Skipped)
		r.writePlain("Failed:  %d\n", result.Failed)
		for _, res := range result.Results {
			if res.Error != nil {
				r.writePlain("  ✗ %s - %s: %v\n", res.Track.Artist, res.Track.Title, res.Error)
			}
		}
		return nil
	})
}

func parsePosition(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: queue position", shared.ErrMissingArgument)
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: position must be a number from 1, got %q", shared.ErrInvalidArgument, s)
	}
	return n, nil
}

func parseVote(s string) (models.Vote, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "+", "+1":
		return models.VoteUp, nil
	case "down", "-", "-1":
		return models.VoteDown, nil
	case "":
		return models.VoteNone, fmt.Errorf("%w: vote direction (up or down)", shared.ErrMissingArgument)
	default:
		return models.VoteNone, fmt.Errorf("%w: vote direction %q", shared.ErrInvalidArgument, s)
	}
}
