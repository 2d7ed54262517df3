package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/hivefm/internal/session"
	"github.com/desertthunder/hivefm/internal/shared"
	"github.com/desertthunder/hivefm/internal/ui"
	"github.com/urfave/cli/v3"
)

var _ ui.Controller = (*session.Session)(nil)

// TUI launches the interactive player.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)

	return r.withSession(ctx, func(s *session.Session) error {
		if err := s.Start(ctx, cmd.String("hive")); err != nil {
			r.logger.Warn("queue unavailable", "error", err)
		}

		model := ui.NewModel(ctx, s)
		defer model.Close()

		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("error running TUI: %w", err)
		}
		return nil
	})
}
