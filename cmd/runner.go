package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hivefm/internal/session"
	"github.com/desertthunder/hivefm/internal/shared"
	"github.com/urfave/cli/v3"
)

// SessionFactory builds the playback core for a single command.
type SessionFactory func(ctx context.Context, cfg *shared.Config, logger *log.Logger) (*session.Session, error)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config       *shared.Config
	configPath   string
	configLoaded bool
	httpClient   *http.Client
	logger       *log.Logger
	output       io.Writer
	newSession   SessionFactory
	openURL      func(string) error
}

// RunnerOpts contains configuration options for creating a Runner.
//
// A non-nil Config is used as-is and the --config flag is ignored.
type RunnerOpts struct {
	Config     *shared.Config
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	NewSession SessionFactory
	OpenURL    func(string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	r := &Runner{
		config:       opts.Config,
		configLoaded: opts.Config != nil,
		httpClient:   opts.HTTPClient,
		logger:       opts.Logger,
		output:       opts.Output,
		newSession:   opts.NewSession,
		openURL:      opts.OpenURL,
	}
	if r.config == nil {
		r.config = shared.DefaultConfig()
	}
	if r.logger == nil {
		r.logger = shared.NewLogger(nil)
	}
	if r.output == nil {
		r.output = os.Stdout
	}
	if r.httpClient == nil {
		r.httpClient = http.DefaultClient
	}
	if r.openURL == nil {
		r.openURL = shared.OpenBrowser
	}
	if r.newSession == nil {
		r.newSession = r.defaultSession
	}
	return r
}

func (r *Runner) defaultSession(ctx context.Context, cfg *shared.Config, logger *log.Logger) (*session.Session, error) {
	return session.New(ctx, session.Options{Config: cfg, HTTPClient: r.httpClient, Logger: logger})
}

// SetLogger replaces the logger used by commands and new sessions.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, playerCommand, queueCommand, historyCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before loads the config file and .env overrides, then applies the log level.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	r.configPath = cmd.String("config")
	if !r.configLoaded {
		cfg := shared.DefaultConfig()
		if _, err := os.Stat(r.configPath); err == nil {
			if cfg, err = shared.LoadConfig(r.configPath); err != nil {
				return ctx, err
			}
		}
		cfg.LoadEnv(".env")
		r.config, r.configLoaded = cfg, true
	}

	if lvl := cmd.String("log-level"); lvl != "" {
		r.config.LogLevel = lvl
	}
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(r.config.LogLevel))
	return ctx, nil
}

// withSession builds a session, runs fn and closes the session.
func (r *Runner) withSession(ctx context.Context, fn func(*session.Session) error) error {
	s, err := r.newSession(ctx, r.config, r.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			r.logger.Warn("failed to close session", "error", err)
		}
	}()
	return fn(s)
}

// withQueue is [Runner.withSession] with the hive named by --hive joined first.
func (r *Runner) withQueue(ctx context.Context, cmd *cli.Command, fn func(*session.Session) error) error {
	return r.withSession(ctx, func(s *session.Session) error {
		if err := s.JoinHive(ctx, cmd.String("hive")); err != nil {
			return err
		}
		return fn(s)
	})
}

// withPlayer is [Runner.withSession] with a connected remote device. Commands go through the
// session so the router picks the adapter and failures land in the store.
func (r *Runner) withPlayer(ctx context.Context, fn func(*session.Session) error) error {
	return r.withSession(ctx, func(s *session.Session) error {
		if _, ok := s.Auth.GetValidToken(ctx); !ok {
			return fmt.Errorf("%w: run 'hive auth login' first", shared.ErrNotAuthenticated)
		}
		if !s.Auth.State().IsPremium() {
			return fmt.Errorf("%w: remote playback requires Spotify Premium", shared.ErrNoPlayableSource)
		}
		if err := s.ConnectRemote(ctx); err != nil {
			return err
		}
		return fn(s)
	})
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
