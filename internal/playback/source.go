package playback

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hivefm/internal/models"
	"github.com/desertthunder/hivefm/internal/shared"
)

// Source is the transport capability both adapters provide. Seek takes seconds and SetVolume 0..1.
type Source interface {
	Kind() SourceKind
	Play(ctx context.Context, track *models.Track) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Seek(ctx context.Context, seconds float64) error
	SetVolume(ctx context.Context, volume float64) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
}

// UseRemote is the selection rule: the remote device is authoritative only while it is
// connected and the account is premium.
func UseRemote(connected, premium bool) bool {
	return connected && premium
}

// IntentKind is a unified transport intent.
type IntentKind string

const (
	IntentPlay      IntentKind = "play"
	IntentPause     IntentKind = "pause"
	IntentResume    IntentKind = "resume"
	IntentSeek      IntentKind = "seek"
	IntentNext      IntentKind = "next"
	IntentPrevious  IntentKind = "previous"
	IntentSetVolume IntentKind = "set_volume"
)

// Intent carries the arguments of a unified command.
type Intent struct {
	Kind    IntentKind
	Track   *models.Track
	Seconds float64
	Volume  float64
}

// Command is an intent bound to the selection that was current when it was issued.
type Command struct {
	Intent
	router     *Router
	generation uint64
	source     SourceKind
}

// Source reports which adapter the command was issued against.
func (c *Command) Source() SourceKind {
	return c.source
}

// Dispatch runs the command on the adapter it was issued against. If the selection changed
// since issue the command is dropped with [shared.ErrSourceChanged].
func (c *Command) Dispatch(ctx context.Context) error {
	return c.router.dispatch(ctx, c)
}

// Router routes unified intents to the selected [Source].
type Router struct {
	remote Source
	local  Source
	logger *log.Logger

	mu         sync.Mutex
	useRemote  bool
	generation uint64
	onSwitch   []func(SourceKind)
}

// NewRouter creates a router. Local playback is selected until [Router.Update] says otherwise.
func NewRouter(remote, local Source, logger *log.Logger) *Router {
	return &Router{
		remote: remote,
		local:  local,
		logger: shared.WithLogger(logger, "component", "router"),
	}
}

// Update re-evaluates the selection. It reports whether the selected source changed.
func (r *Router) Update(connected, premium bool) bool {
	use := UseRemote(connected, premium) && r.remote != nil

	r.mu.Lock()
	if use == r.useRemote {
		r.mu.Unlock()
		return false
	}
	r.useRemote = use
	r.generation++
	kind := r.selectedLocked()
	hooks := append([]func(SourceKind){}, r.onSwitch...)
	r.mu.Unlock()

	r.logger.Info("playback source switched", "source", kind)
	for _, fn := range hooks {
		func() {
			defer shared.Recover(r.logger, "router switch hook", nil)
			fn(kind)
		}()
	}
	return true
}

// OnSwitch registers fn to run after every selection change.
func (r *Router) OnSwitch(fn func(SourceKind)) {
	r.mu.Lock()
	r.onSwitch = append(r.onSwitch, fn)
	r.mu.Unlock()
}

// Selected returns the authoritative source kind.
func (r *Router) Selected() SourceKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selectedLocked()
}

func (r *Router) selectedLocked() SourceKind {
	if r.useRemote {
		return SourceRemote
	}
	return SourceLocal
}

// Issue binds intent to the current selection without running it.
func (r *Router) Issue(intent Intent) *Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &Command{
		Intent:     intent,
		router:     r,
		generation: r.generation,
		source:     r.selectedLocked(),
	}
}

// Do issues and dispatches intent in one step.
func (r *Router) Do(ctx context.Context, intent Intent) error {
	return r.Issue(intent).Dispatch(ctx)
}

func (r *Router) dispatch(ctx context.Context, c *Command) error {
	r.mu.Lock()
	if c.generation != r.generation {
		current := r.selectedLocked()
		r.mu.Unlock()
		r.logger.Debug("dropping stale command", "intent", c.Kind, "issued_for", c.source, "selected", current)
		return fmt.Errorf("%w: %s issued for %s", shared.ErrSourceChanged, c.Kind, c.source)
	}
	src := r.local
	if c.source == SourceRemote {
		src = r.remote
	}
	r.mu.Unlock()

	if src == nil {
		return fmt.Errorf("%w: %s", shared.ErrServiceUnavailable, c.source)
	}

	switch c.Kind {
	case IntentPlay:
		return src.Play(ctx, c.Track)
	case IntentPause:
		return src.Pause(ctx)
	case IntentResume:
		return src.Resume(ctx)
	case IntentSeek:
		return src.Seek(ctx, c.Seconds)
	case IntentNext:
		return src.Next(ctx)
	case IntentPrevious:
		return src.Previous(ctx)
	case IntentSetVolume:
		return src.SetVolume(ctx, c.Volume)
	default:
		return fmt.Errorf("%w: intent %q", shared.ErrInvalidArgument, c.Kind)
	}
}

func (r *Router) Play(ctx context.Context, track *models.Track) error {
	return r.Do(ctx, Intent{Kind: IntentPlay, Track: track})
}

func (r *Router) Pause(ctx context.Context) error {
	return r.Do(ctx, Intent{Kind: IntentPause})
}

func (r *Router) Resume(ctx context.Context) error {
	return r.Do(ctx, Intent{Kind: IntentResume})
}

func (r *Router) Seek(ctx context.Context, seconds float64) error {
	return r.Do(ctx, Intent{Kind: IntentSeek, Seconds: seconds})
}

func (r *Router) Next(ctx context.Context) error {
	return r.Do(ctx, Intent{Kind: IntentNext})
}

func (r *Router) Previous(ctx context.Context) error {
	return r.Do(ctx, Intent{Kind: IntentPrevious})
}

func (r *Router) SetVolume(ctx context.Context, volume float64) error {
	return r.Do(ctx, Intent{Kind: IntentSetVolume, Volume: volume})
}
