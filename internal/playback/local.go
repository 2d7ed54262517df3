package playback

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hivefm/internal/models"
	"github.com/desertthunder/hivefm/internal/shared"
)

// Advancer picks the track delta steps away from the current one (+1 next, -1 previous).
type Advancer interface {
	Advance(ctx context.Context, delta int) (*models.Track, error)
}

// LocalAdapter owns a [MediaElement] and normalizes its events.
type LocalAdapter struct {
	*emitter
	el       MediaElement
	advancer Advancer

	mu      sync.Mutex
	current *models.Track
}

// NewLocalAdapter takes ownership of el. advancer may be nil, in which case Next and Previous fail.
func NewLocalAdapter(el MediaElement, advancer Advancer, logger *log.Logger) *LocalAdapter {
	a := &LocalAdapter{
		emitter:  newEmitter(shared.WithLogger(logger, "component", "local")),
		el:       el,
		advancer: advancer,
	}
	el.SetHandler(a.handle)
	return a
}

func (a *LocalAdapter) Kind() SourceKind { return SourceLocal }

// Current returns the loaded track, or nil.
func (a *LocalAdapter) Current() *models.Track {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Play loads track and starts it. The source is only swapped when the preview URL differs from
// what is loaded, so repeated calls for the same track do not restart it. A nil track resumes.
func (a *LocalAdapter) Play(ctx context.Context, track *models.Track) error {
	if track == nil {
		return a.Resume(ctx)
	}
	if track.PreviewURL == "" {
		err := fmt.Errorf("%w: %s", shared.ErrNoPlayableSource, track.Title)
		a.emit(Event{Kind: EventError, Source: SourceLocal, Track: track, Err: err})
		return err
	}

	a.mu.Lock()
	a.current = track
	a.mu.Unlock()

	if a.el.Source() != track.PreviewURL {
		if err := a.el.Load(track.PreviewURL, float64(track.Duration)); err != nil {
			return err
		}
	}
	return a.el.Play()
}

func (a *LocalAdapter) Pause(ctx context.Context) error {
	return a.el.Pause()
}

func (a *LocalAdapter) Resume(ctx context.Context) error {
	if a.el.Source() == "" {
		return shared.ErrNoPlayableSource
	}
	return a.el.Play()
}

// SeekTo moves the element to seconds.
func (a *LocalAdapter) SeekTo(seconds float64) error {
	return a.el.Seek(seconds)
}

func (a *LocalAdapter) Seek(ctx context.Context, seconds float64) error {
	return a.SeekTo(seconds)
}

// SetVolume clamps to 0..1. Raising the volume above zero unmutes.
func (a *LocalAdapter) SetVolume(ctx context.Context, volume float64) error {
	if math.IsNaN(volume) {
		volume = 0
	}
	volume = math.Min(math.Max(volume, 0), 1)
	if err := a.el.SetVolume(volume); err != nil {
		return err
	}
	if volume > 0 && a.el.Snapshot().Muted {
		return a.el.SetMuted(false)
	}
	return nil
}

func (a *LocalAdapter) ToggleMute() error {
	return a.el.SetMuted(!a.el.Snapshot().Muted)
}

func (a *LocalAdapter) Next(ctx context.Context) error {
	return a.advance(ctx, 1)
}

func (a *LocalAdapter) Previous(ctx context.Context) error {
	return a.advance(ctx, -1)
}

func (a *LocalAdapter) advance(ctx context.Context, delta int) error {
	if a.advancer == nil {
		return fmt.Errorf("%w: no queue attached", shared.ErrNoPlayableSource)
	}
	track, err := a.advancer.Advance(ctx, delta)
	if err != nil {
		return err
	}
	if track == nil {
		return a.el.Pause()
	}
	return a.Play(ctx, track)
}

func (a *LocalAdapter) handle(ev ElementEvent) {
	kind, ok := elementKinds[ev.Type]
	if !ok {
		return
	}
	snap := ev.Snapshot
	a.emit(Event{
		Kind:    kind,
		Source:  SourceLocal,
		Element: &snap,
		Track:   a.Current(),
		Err:     ev.Err,
	})
}

var elementKinds = map[string]EventKind{
	ElementWaiting:        EventBuffering,
	ElementCanPlay:        EventCanPlay,
	ElementLoadedMetadata: EventCanPlay,
	ElementTimeUpdate:     EventTimeUpdate,
	ElementPlay:           EventPlay,
	ElementPause:          EventPause,
	ElementEnded:          EventEnded,
	ElementVolumeChange:   EventVolumeChange,
	ElementError:          EventError,
}
