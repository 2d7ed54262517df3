package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hivefm/internal/auth"
	"github.com/desertthunder/hivefm/internal/models"
	"github.com/desertthunder/hivefm/internal/playback"
	"github.com/desertthunder/hivefm/internal/queue"
	"github.com/desertthunder/hivefm/internal/repositories"
	"github.com/desertthunder/hivefm/internal/services"
	"github.com/desertthunder/hivefm/internal/shared"
	"github.com/desertthunder/hivefm/internal/store"
	"github.com/desertthunder/hivefm/internal/tasks"
	"github.com/gorilla/websocket"
)

const (
	startTimeout   = 15 * time.Second
	historyTimeout = 5 * time.Second
	tickInterval   = 250 * time.Millisecond
)

// Options configures a [Session]. Config is required.
type Options struct {
	Config *shared.Config
	// DB is used as-is when set; otherwise the database named by Config is opened and owned.
	DB         *sql.DB
	HTTPClient *http.Client
	Dialer     *websocket.Dialer
	// Element replaces the wall-clock element used for previews.
	Element playback.MediaElement
	Logger  *log.Logger
	Now     func() time.Time
}

// Session holds the wired playback core.
type Session struct {
	cfg    *shared.Config
	logger *log.Logger
	now    func() time.Time

	db     *sql.DB
	ownsDB bool

	Store      *store.Store
	Auth       *auth.Manager
	Remote     *playback.RemoteAdapter
	Local      *playback.LocalAdapter
	Router     *playback.Router
	Reconciler *playback.Reconciler
	Channel    *queue.Channel
	Queue      *queue.Sync
	Music      *services.MusicService
	Catalog    *services.SpotifyService
	Filler     *tasks.QueueFiller

	History     *repositories.HistoryRepository
	ClientState *repositories.StateRepository

	element playback.MediaElement

	mu     sync.Mutex
	unsubs []func()
	closed bool
}

// New builds and wires a session. No network calls are made until [Session.Start].
func New(ctx context.Context, opts Options) (*Session, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("%w: session config is required", shared.ErrMissingConfig)
	}
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(os.Stderr)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Session{cfg: cfg, logger: logger, now: now, db: opts.DB}
	if s.db == nil {
		db, err := shared.OpenDatabase(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		s.db, s.ownsDB = db, true
	}

	s.ClientState = repositories.NewStateRepository(s.db)
	s.History = repositories.NewHistoryRepository(s.db)
	s.Store = store.New(logger)

	api := services.NewAPIService(cfg.Music.APIURL, opts.HTTPClient).WithBearer(cfg.Music.AuthToken)
	s.Music = services.NewMusicService(api)

	// The profile lookup always carries the fresh access token, so it needs no token source.
	profiles := services.NewSpotifyService(cfg.Credentials.Spotify.APIURL, opts.HTTPClient, nil)
	manager, err := auth.New(ctx, auth.Options{
		OAuth:           services.NewSpotifyOAuthConfig(cfg.Credentials.Spotify),
		Proxy:           s.Music,
		Profiles:        profiles,
		Store:           repositories.NewCredentialRepository(s.db),
		Logger:          logger,
		RefreshAttempts: cfg.Auth.RefreshAttempts,
		RetryDelay:      cfg.Auth.RefreshRetryDelay.Duration,
		Now:             now,
	})
	if err != nil {
		s.closeDB()
		return nil, err
	}
	s.Auth = manager
	s.Catalog = services.NewSpotifyService(cfg.Credentials.Spotify.APIURL, opts.HTTPClient, manager.TokenSource())

	s.Remote = playback.NewRemoteAdapter(playback.RemoteOptions{
		Tokens:       manager,
		BaseURL:      cfg.Credentials.Spotify.APIURL,
		HTTPClient:   opts.HTTPClient,
		DeviceName:   cfg.Playback.DeviceName,
		PollInterval: cfg.Playback.PollInterval.Duration,
		Logger:       logger,
	})
	s.Auth.AttachPlayer(s.Remote)

	s.element = opts.Element
	if s.element == nil {
		s.element = playback.NewSilentElement(tickInterval, now)
	}
	s.Local = playback.NewLocalAdapter(s.element, &queueAdvancer{store: s.Store}, logger)
	if v := cfg.Playback.Volume; v > 0 {
		_ = s.element.SetVolume(v)
	}

	s.Router = playback.NewRouter(s.Remote, s.Local, logger)
	s.Reconciler = playback.NewReconciler(s.Router, logger)

	var header http.Header
	if cfg.Music.AuthToken != "" {
		header = http.Header{"Authorization": {"Bearer " + cfg.Music.AuthToken}}
	}
	s.Channel = queue.NewChannel(queue.ChannelOptions{
		URL:    channelBase(cfg.Music),
		Header: header,
		Dialer: opts.Dialer,
		Logger: logger,
	})
	s.Queue = queue.NewSync(s.Music, s.Channel, s.Store, logger)
	s.Filler = tasks.NewQueueFiller(s.Music, s.Queue)

	s.wire()
	return s, nil
}

// channelBase returns the push host, falling back to the scheme and host of the REST URL.
func channelBase(cfg shared.MusicConfig) string {
	if cfg.WSURL != "" {
		return cfg.WSURL
	}
	u, err := url.Parse(cfg.APIURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host}).String()
}

func (s *Session) wire() {
	s.Router.OnSwitch(func(kind playback.SourceKind) {
		s.Reconciler.SetSource(kind)
		s.Store.Dispatch(store.SourceSwitched{Source: kind})
	})
	s.Reconciler.OnChange(func(st models.PlaybackState) {
		s.Store.Dispatch(store.PlaybackChanged{Playback: st})
	})

	s.track(s.Auth.Subscribe(s.onAuth))
	s.track(s.Remote.On(s.onRemote))
	s.track(s.Local.On(s.onLocal))
	s.track(s.Store.Subscribe(s.onAction))

	s.Store.Dispatch(store.AuthChanged{Auth: s.Auth.State()})
}

func (s *Session) track(unsub func()) {
	s.mu.Lock()
	s.unsubs = append(s.unsubs, unsub)
	s.mu.Unlock()
}

func (s *Session) onAuth(a models.AuthState) {
	s.Store.Dispatch(store.AuthChanged{Auth: a})
	s.Router.Update(s.Remote.State().IsConnected, a.IsPremium())
}

func (s *Session) onRemote(ev playback.Event) {
	if ev.Player != nil {
		s.Store.Dispatch(store.RemoteChanged{Remote: *ev.Player})
		s.Router.Update(ev.Player.IsConnected, s.Auth.State().IsPremium())
	}
	s.onEvent(ev)
}

func (s *Session) onLocal(ev playback.Event) {
	s.onEvent(ev)
	if ev.Kind == playback.EventEnded && s.Router.Selected() == playback.SourceLocal {
		go func() {
			defer shared.Recover(s.logger, "auto advance", s.Store.Raise)
			ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
			defer cancel()
			if err := s.Router.Next(ctx); err != nil {
				s.logger.Debug("end of queue", "error", err)
			}
		}()
	}
}

func (s *Session) onEvent(ev playback.Event) {
	if ev.Source != s.Router.Selected() {
		return
	}
	if ev.Kind == playback.EventError && ev.Err != nil {
		s.Store.Dispatch(store.TransportFailed{Err: ev.Err.Error()})
	}
	s.Reconciler.Apply(ev)

	if ev.Track != nil && ev.Kind != playback.EventError {
		if cur := s.Store.State().NowPlaying; !sameTrack(cur, ev.Track) {
			s.Store.Dispatch(store.NowPlayingChanged{Track: ev.Track})
		}
	}
}

// onAction persists side effects of committed actions.
func (s *Session) onAction(st store.State, a store.Action) {
	switch a := a.(type) {
	case store.NowPlayingChanged:
		if a.Track == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
		defer cancel()
		entry := &models.HistoryEntry{Track: *a.Track, Source: string(st.Source), HiveID: st.HiveID, PlayedAt: s.now()}
		if err := s.History.Record(ctx, entry); err != nil {
			s.logger.Warn("failed to record history", "error", err)
		}
	case store.HiveJoined:
		ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
		defer cancel()
		if err := s.ClientState.Put(ctx, repositories.LastHiveKey, a.HiveID); err != nil {
			s.logger.Warn("failed to remember hive", "error", err)
		}
	}
}

// Start attaches the remote device when the account allows it and joins hiveID (or the
// configured hive, or the last joined one). Remote failures only log: playback falls back to
// local previews.
func (s *Session) Start(ctx context.Context, hiveID string) error {
	ctx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()

	if _, ok := s.Auth.GetValidToken(ctx); ok && s.Auth.State().IsPremium() {
		if err := s.ConnectRemote(ctx); err != nil {
			s.logger.Warn("remote player unavailable", "error", err)
		}
	}
	return s.JoinHive(ctx, hiveID)
}

// ConnectRemote discovers a Connect device and transfers playback to it.
func (s *Session) ConnectRemote(ctx context.Context) error {
	if err := s.Remote.Init(ctx); err != nil {
		return err
	}
	return s.Remote.TransferPlaybackHere(ctx)
}

// JoinHive resolves the hive (hiveID, then the configured hive, then the last joined one) and
// loads its queue. Without any hive the single-user queue is loaded.
func (s *Session) JoinHive(ctx context.Context, hiveID string) error {
	if hiveID == "" {
		hiveID = s.cfg.Music.HiveID
	}
	if hiveID == "" {
		var last string
		if ok, err := s.ClientState.Get(ctx, repositories.LastHiveKey, &last); err == nil && ok {
			hiveID = last
		}
	}
	if hiveID != "" {
		return s.Queue.Join(ctx, hiveID)
	}
	return s.Queue.Refresh(ctx)
}

// Play starts track on the selected source. Now playing follows the adapter's events.
func (s *Session) Play(ctx context.Context, track *models.Track) error {
	return s.do(s.Router.Play(ctx, track))
}

// PlayQueueItem plays the queue item with queueID.
func (s *Session) PlayQueueItem(ctx context.Context, queueID string) error {
	q := s.Store.State().Queue
	i := q.Index(queueID)
	if i < 0 {
		return fmt.Errorf("%w: %s", shared.ErrQueueItemNotFound, queueID)
	}
	t := q[i].Track
	return s.Play(ctx, &t)
}

// Toggle pauses while playing and resumes otherwise. It reads the store, never the last command.
func (s *Session) Toggle(ctx context.Context) error {
	if s.Store.State().Playback.IsPlaying {
		return s.do(s.Router.Pause(ctx))
	}
	return s.do(s.Router.Resume(ctx))
}

func (s *Session) Pause(ctx context.Context) error    { return s.do(s.Router.Pause(ctx)) }
func (s *Session) Resume(ctx context.Context) error   { return s.do(s.Router.Resume(ctx)) }
func (s *Session) Next(ctx context.Context) error     { return s.do(s.Router.Next(ctx)) }
func (s *Session) Previous(ctx context.Context) error { return s.do(s.Router.Previous(ctx)) }

func (s *Session) Seek(ctx context.Context, seconds float64) error {
	return s.do(s.Router.Seek(ctx, seconds))
}

func (s *Session) SetVolume(ctx context.Context, volume float64) error {
	return s.do(s.Router.SetVolume(ctx, volume))
}

// do surfaces transport failures in the store. Dropped stale commands are not failures.
func (s *Session) do(err error) error {
	if err == nil || errors.Is(err, shared.ErrSourceChanged) {
		return err
	}
	s.Store.Dispatch(store.TransportFailed{Err: err.Error()})
	return err
}

// Close tears down in reverse wiring order. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()

	var errs []error
	errs = append(errs, s.Queue.Close())
	errs = append(errs, s.Channel.Close())
	errs = append(errs, s.Remote.Close())
	if c, ok := s.element.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	errs = append(errs, s.Auth.Close())
	for _, fn := range unsubs {
		fn()
	}
	errs = append(errs, s.closeDB())
	return errors.Join(errs...)
}

func (s *Session) closeDB() error {
	if !s.ownsDB || s.db == nil {
		return nil
	}
	return s.db.Close()
}
