package playback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hivefm/internal/models"
	"github.com/desertthunder/hivefm/internal/shared"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

const defaultPollInterval = 2 * time.Second

// TokenProvider is the refresh-aware credential source the remote player draws tokens from.
type TokenProvider interface {
	TokenSource() oauth2.TokenSource
	RefreshAuth(ctx context.Context) bool
}

// RemoteOptions configures a [RemoteAdapter].
type RemoteOptions struct {
	Tokens       TokenProvider
	BaseURL      string
	HTTPClient   *http.Client
	DeviceName   string
	PollInterval time.Duration
	Logger       *log.Logger
}

// RemoteAdapter drives a Spotify Connect device. It is the only owner of its Web API client.
type RemoteAdapter struct {
	*emitter
	opts   RemoteOptions
	logger *log.Logger

	once   sync.Once
	client *spotify.Client

	mu        sync.Mutex
	status    models.RemoteStatus
	candidate spotify.PlayerDevice
	deviceID  spotify.ID
	track     *models.Track
	stopPoll  chan struct{}
	pollNow   chan struct{}
	pollers   sync.WaitGroup
}

// NewRemoteAdapter creates an uninitialized adapter. No network calls are made until [RemoteAdapter.Init].
func NewRemoteAdapter(opts RemoteOptions) *RemoteAdapter {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	logger := shared.WithLogger(opts.Logger, "component", "remote")
	return &RemoteAdapter{
		emitter: newEmitter(logger),
		opts:    opts,
		logger:  logger,
		status:  models.RemoteUninitialized,
	}
}

func (r *RemoteAdapter) Kind() SourceKind { return SourceRemote }

// spotifyClient builds the Web API client exactly once. Every request asks the provider for a
// token; the manager already caches and refreshes, so no reuse layer sits in between.
func (r *RemoteAdapter) spotifyClient() *spotify.Client {
	r.once.Do(func() {
		httpClient := &http.Client{Transport: http.DefaultTransport}
		if r.opts.HTTPClient != nil {
			httpClient.Timeout = r.opts.HTTPClient.Timeout
			if r.opts.HTTPClient.Transport != nil {
				httpClient.Transport = r.opts.HTTPClient.Transport
			}
		}
		if r.opts.Tokens != nil {
			httpClient.Transport = &oauth2.Transport{
				Source: r.opts.Tokens.TokenSource(),
				Base:   httpClient.Transport,
			}
		}

		var opts []spotify.ClientOption
		if r.opts.BaseURL != "" {
			base := r.opts.BaseURL
			if !strings.HasSuffix(base, "/") {
				base += "/"
			}
			opts = append(opts, spotify.WithBaseURL(base))
		}
		r.client = spotify.New(httpClient, opts...)
	})
	return r.client
}

// State returns the current remote player state. DeviceID is empty unless connected.
func (r *RemoteAdapter) State() models.RemotePlayerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked()
}

func (r *RemoteAdapter) stateLocked() models.RemotePlayerState {
	s := models.RemotePlayerState{
		Status:      r.status,
		IsReady:     r.status == models.RemoteReady || r.status == models.RemoteConnected,
		IsConnected: r.status == models.RemoteConnected,
		DeviceName:  r.candidate.Name,
	}
	if s.IsConnected {
		s.DeviceID = string(r.deviceID)
	}
	return s
}

// DeviceID returns the connected device id, or "" when not connected.
func (r *RemoteAdapter) DeviceID() string {
	return r.State().DeviceID
}

// Devices lists the account's available devices.
func (r *RemoteAdapter) Devices(ctx context.Context) ([]spotify.PlayerDevice, error) {
	var devices []spotify.PlayerDevice
	err := r.call(ctx, func(c *spotify.Client) error {
		var err error
		devices, err = c.PlayerDevices(ctx)
		return err
	})
	return devices, err
}

// Init discovers a device: the configured name first, then the active device, then any device.
func (r *RemoteAdapter) Init(ctx context.Context) error {
	r.setStatus(models.RemoteInitializing, nil)

	devices, err := r.Devices(ctx)
	if err != nil {
		r.setStatus(models.RemoteNotReady, err)
		return err
	}

	device, ok := pickDevice(devices, r.opts.DeviceName)
	if !ok {
		err := fmt.Errorf("%w: no devices reported", shared.ErrNoDevice)
		r.setStatus(models.RemoteNotReady, err)
		return err
	}

	r.mu.Lock()
	r.candidate = device
	r.mu.Unlock()

	r.logger.Info("device discovered", "name", device.Name, "type", device.Type)
	r.setStatus(models.RemoteReady, nil)
	return nil
}

func pickDevice(devices []spotify.PlayerDevice, name string) (spotify.PlayerDevice, bool) {
	if len(devices) == 0 {
		return spotify.PlayerDevice{}, false
	}
	if name != "" {
		for _, d := range devices {
			if strings.EqualFold(d.Name, name) {
				return d, true
			}
		}
	}
	for _, d := range devices {
		if d.Active {
			return d, true
		}
	}
	return devices[0], true
}

// TransferPlaybackHere moves playback onto the discovered device and starts state polling.
func (r *RemoteAdapter) TransferPlaybackHere(ctx context.Context) error {
	r.mu.Lock()
	id := r.candidate.ID
	status := r.status
	r.mu.Unlock()

	if id == "" || status == models.RemoteUninitialized {
		return fmt.Errorf("%w: call Init first", shared.ErrNoDevice)
	}

	if err := r.call(ctx, func(c *spotify.Client) error {
		return c.TransferPlayback(ctx, id, false)
	}); err != nil {
		return err
	}

	r.mu.Lock()
	r.deviceID = id
	r.mu.Unlock()
	r.setStatus(models.RemoteConnected, nil)
	r.startPolling()
	return nil
}

func (r *RemoteAdapter) playOptions() (*spotify.PlayOptions, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != models.RemoteConnected || r.deviceID == "" {
		return nil, shared.ErrDeviceNotConnected
	}
	id := r.deviceID
	return &spotify.PlayOptions{DeviceID: &id}, nil
}

// command runs fn against the connected device and asks the poller for a fresh sample.
func (r *RemoteAdapter) command(ctx context.Context, name string, fn func(*spotify.Client, *spotify.PlayOptions) error) error {
	opts, err := r.playOptions()
	if err != nil {
		return err
	}
	err = r.call(ctx, func(c *spotify.Client) error { return fn(c, opts) })
	if err != nil {
		r.logger.Warn("remote command failed", "command", name, "error", err)
		return err
	}
	r.requestPoll()
	return nil
}

// Play starts track on the device, or resumes when track is nil or has no provider URI.
func (r *RemoteAdapter) Play(ctx context.Context, track *models.Track) error {
	return r.command(ctx, "play", func(c *spotify.Client, o *spotify.PlayOptions) error {
		if track != nil && track.URI() != "" {
			o.URIs = []spotify.URI{spotify.URI(track.URI())}
			r.mu.Lock()
			r.track = track
			r.mu.Unlock()
		}
		return c.PlayOpt(ctx, o)
	})
}

func (r *RemoteAdapter) Resume(ctx context.Context) error {
	return r.Play(ctx, nil)
}

func (r *RemoteAdapter) Pause(ctx context.Context) error {
	return r.command(ctx, "pause", func(c *spotify.Client, o *spotify.PlayOptions) error {
		return c.PauseOpt(ctx, o)
	})
}

func (r *RemoteAdapter) Next(ctx context.Context) error {
	return r.command(ctx, "next", func(c *spotify.Client, o *spotify.PlayOptions) error {
		return c.NextOpt(ctx, o)
	})
}

func (r *RemoteAdapter) Previous(ctx context.Context) error {
	return r.command(ctx, "previous", func(c *spotify.Client, o *spotify.PlayOptions) error {
		return c.PreviousOpt(ctx, o)
	})
}

// SeekMs seeks the device to ms.
func (r *RemoteAdapter) SeekMs(ctx context.Context, ms int) error {
	ms = max(ms, 0)
	return r.command(ctx, "seek", func(c *spotify.Client, o *spotify.PlayOptions) error {
		return c.SeekOpt(ctx, ms, o)
	})
}

// SetVolumePercent sets the device volume, clamped to 0..100.
func (r *RemoteAdapter) SetVolumePercent(ctx context.Context, pct int) error {
	pct = min(max(pct, 0), 100)
	return r.command(ctx, "volume", func(c *spotify.Client, o *spotify.PlayOptions) error {
		return c.VolumeOpt(ctx, pct, o)
	})
}

func (r *RemoteAdapter) Seek(ctx context.Context, seconds float64) error {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return fmt.Errorf("%w: seek position", shared.ErrInvalidArgument)
	}
	return r.SeekMs(ctx, int(math.Round(seconds*1000)))
}

func (r *RemoteAdapter) SetVolume(ctx context.Context, volume float64) error {
	if math.IsNaN(volume) {
		volume = 0
	}
	return r.SetVolumePercent(ctx, int(math.Round(volume*100)))
}

// call runs fn with the client. An authentication failure triggers one refresh and a retry;
// if the refresh fails the adapter becomes not_ready.
func (r *RemoteAdapter) call(ctx context.Context, fn func(*spotify.Client) error) error {
	client := r.spotifyClient()

	err := fn(client)
	if err == nil {
		return nil
	}
	if !isAuthError(err) {
		err = fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		r.emit(Event{Kind: EventError, Source: SourceRemote, Err: err})
		return err
	}

	r.logger.Warn("remote authentication error, refreshing", "error", err)
	if r.opts.Tokens != nil && r.opts.Tokens.RefreshAuth(ctx) {
		if err = fn(client); err == nil {
			return nil
		}
		if !isAuthError(err) {
			err = fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
			r.emit(Event{Kind: EventError, Source: SourceRemote, Err: err})
			return err
		}
	}

	err = fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, err)
	r.stopPolling()
	r.setStatus(models.RemoteNotReady, err)
	return err
}

func isAuthError(err error) bool {
	if errors.Is(err, shared.ErrNotAuthenticated) {
		return true
	}
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusUnauthorized
	}
	var apiErrPtr *spotify.Error
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Status == http.StatusUnauthorized
	}
	return false
}

func (r *RemoteAdapter) setStatus(status models.RemoteStatus, err error) {
	r.mu.Lock()
	if status != models.RemoteConnected {
		r.deviceID = ""
	}
	r.status = status
	player := r.stateLocked()
	r.mu.Unlock()

	kind := EventReady
	switch status {
	case models.RemoteNotReady, models.RemoteUninitialized:
		kind = EventNotReady
	case models.RemoteInitializing:
		return
	}
	r.logger.Debug("remote status", "status", status, "device", player.DeviceName)
	r.emit(Event{Kind: kind, Source: SourceRemote, Player: &player, Err: err})
}

func (r *RemoteAdapter) startPolling() {
	r.mu.Lock()
	if r.stopPoll != nil {
		r.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	now := make(chan struct{}, 1)
	r.stopPoll, r.pollNow = stop, now
	r.pollers.Add(1)
	r.mu.Unlock()

	go r.poll(stop, now)
}

func (r *RemoteAdapter) requestPoll() {
	r.mu.Lock()
	ch := r.pollNow
	r.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// stopPolling signals the poller without waiting, so it is safe from inside the poll loop.
func (r *RemoteAdapter) stopPolling() {
	r.mu.Lock()
	stop := r.stopPoll
	r.stopPoll, r.pollNow = nil, nil
	r.mu.Unlock()
	if stop != nil {
		close(stop)
	}
}

func (r *RemoteAdapter) poll(stop <-chan struct{}, now <-chan struct{}) {
	defer r.pollers.Done()
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	r.sample(stop)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		case <-now:
		}
		r.sample(stop)
	}
}

func (r *RemoteAdapter) sample(stop <-chan struct{}) {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.PollInterval+5*time.Second)
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	var state *spotify.PlayerState
	err := r.call(ctx, func(c *spotify.Client) error {
		var err error
		state, err = c.PlayerState(ctx)
		return err
	})
	if err != nil || state == nil {
		return
	}

	r.mu.Lock()
	ours := r.deviceID
	r.mu.Unlock()

	if state.Device.ID != "" && state.Device.ID != ours {
		r.logger.Info("playback moved to another device", "device", state.Device.Name)
		r.stopPolling()
		r.setStatus(models.RemoteReady, nil)
		return
	}

	snap := RemoteSnapshot{
		PositionMs:    int(state.Progress),
		Paused:        !state.Playing,
		VolumePercent: int(state.Device.Volume),
	}

	var track *models.Track
	if state.Item != nil {
		snap.DurationMs = int(state.Item.Duration)
		t := trackFromSpotify(state.Item)
		track = &t
	}

	r.mu.Lock()
	if track != nil {
		r.track = track
	} else {
		track = r.track
	}
	r.mu.Unlock()

	r.emit(Event{Kind: EventStateChanged, Source: SourceRemote, Remote: &snap, Track: track})
}

func trackFromSpotify(ft *spotify.FullTrack) models.Track {
	names := make([]string, 0, len(ft.Artists))
	for _, a := range ft.Artists {
		names = append(names, a.Name)
	}
	t := models.Track{
		ID:          string(ft.ID),
		Title:       ft.Name,
		Artist:      strings.Join(names, ", "),
		Album:       ft.Album.Name,
		Duration:    int(ft.Duration) / 1000,
		Explicit:    ft.Explicit,
		ProviderID:  string(ft.ID),
		ProviderURI: string(ft.URI),
		PreviewURL:  ft.PreviewURL,
	}
	if len(ft.Album.Images) > 0 {
		t.ArtworkURL = ft.Album.Images[0].URL
	}
	return t
}

// Disconnect stops polling and drops the device. The adapter returns to uninitialized.
func (r *RemoteAdapter) Disconnect() {
	r.stopPolling()

	r.mu.Lock()
	r.candidate = spotify.PlayerDevice{}
	r.track = nil
	r.mu.Unlock()

	r.setStatus(models.RemoteUninitialized, nil)
}

// Close disconnects and waits for the poller to exit.
func (r *RemoteAdapter) Close() error {
	r.Disconnect()
	r.pollers.Wait()
	return nil
}
