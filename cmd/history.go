package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/hivefm/internal/formatter"
	"github.com/desertthunder/hivefm/internal/session"
	"github.com/urfave/cli/v3"
)

// History prints recently played tracks, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	return r.withSession(ctx, func(s *session.Session) error {
		entries, err := s.History.Recent(ctx, cmd.String("hive"), int(cmd.Int("limit")))
		if err != nil {
			return err
		}
		if cmd.Bool("json") {
			return r.writeJSON(entries, true)
		}

		data, err := formatter.HistoryToText(entries)
		if err != nil {
			return err
		}
		if _, err := r.output.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	})
}
