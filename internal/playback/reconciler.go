package playback

import (
	"context"
	"math"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hivefm/internal/models"
	"github.com/desertthunder/hivefm/internal/shared"
)

// DragTarget is the value an optimistic preview stands in for.
type DragTarget int

const (
	DragSeek DragTarget = iota + 1
	DragVolume
)

func (d DragTarget) String() string {
	switch d {
	case DragSeek:
		return "seek"
	case DragVolume:
		return "volume"
	default:
		return "none"
	}
}

// Commander receives the single command issued when a drag ends.
type Commander interface {
	Seek(ctx context.Context, seconds float64) error
	SetVolume(ctx context.Context, volume float64) error
}

// Reconciler folds adapter events into the canonical [models.PlaybackState].
// Only events from the authoritative source change playback state.
type Reconciler struct {
	commander Commander
	logger    *log.Logger

	mu        sync.Mutex
	state     models.PlaybackState
	source    SourceKind
	dragging  DragTarget
	preview   float64
	listeners []func(models.PlaybackState)
}

// NewReconciler creates a reconciler that sends drag commits to commander.
func NewReconciler(commander Commander, logger *log.Logger) *Reconciler {
	return &Reconciler{
		commander: commander,
		logger:    shared.WithLogger(logger, "component", "reconciler"),
		state:     models.DefaultPlaybackState(),
		source:    SourceLocal,
	}
}

// OnChange registers fn for every canonical state change.
func (r *Reconciler) OnChange(fn func(models.PlaybackState)) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// SetSource marks kind as authoritative. A switch resets transport flags, since the new
// source has not reported yet.
func (r *Reconciler) SetSource(kind SourceKind) {
	r.mu.Lock()
	if r.source == kind {
		r.mu.Unlock()
		return
	}
	r.source = kind
	r.state.IsPlaying = false
	r.state.IsBuffering = false
	s := r.state
	r.mu.Unlock()

	r.publish(s)
}

// State returns the confirmed state without any preview.
func (r *Reconciler) State() models.PlaybackState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Apply folds ev into the state. It reports whether the event was accepted.
func (r *Reconciler) Apply(ev Event) (models.PlaybackState, bool) {
	r.mu.Lock()
	if ev.Source != r.source {
		s := r.state
		r.mu.Unlock()
		return s, false
	}

	next := r.state
	switch {
	case ev.Kind == EventError || ev.Kind == EventNotReady:
		next.IsPlaying = false
		next.IsBuffering = false
	case ev.Remote != nil:
		next = applyRemote(next, *ev.Remote)
	case ev.Element != nil:
		next = applyElement(next, ev.Kind, *ev.Element)
	}

	changed := next != r.state
	r.state = next
	r.mu.Unlock()

	if changed {
		r.publish(next)
	}
	return next, true
}

func applyRemote(s models.PlaybackState, snap RemoteSnapshot) models.PlaybackState {
	s.CurrentTime = finite(float64(snap.PositionMs) / 1000)
	s.Duration = finite(float64(snap.DurationMs) / 1000)
	s.IsPaused = snap.Paused
	s.IsPlaying = !snap.Paused
	s.IsBuffering = snap.Loading
	if snap.VolumePercent >= 0 {
		s.Volume = clamp01(float64(snap.VolumePercent) / 100)
	}
	s.IsMuted = snap.VolumePercent == 0
	s.PlaybackRate = 1
	return s
}

func applyElement(s models.PlaybackState, kind EventKind, snap ElementSnapshot) models.PlaybackState {
	s.CurrentTime = finite(snap.CurrentTime)
	s.Duration = finite(snap.Duration)
	s.Volume = clamp01(finite(snap.Volume))
	s.IsMuted = snap.Muted
	if snap.Rate > 0 && !math.IsInf(snap.Rate, 0) {
		s.PlaybackRate = snap.Rate
	}

	switch kind {
	case EventBuffering:
		s.IsBuffering = true
	case EventCanPlay:
		s.IsBuffering = false
	case EventPlay:
		s.IsPlaying = true
		s.IsPaused = false
	case EventPause:
		s.IsPlaying = false
		s.IsPaused = true
		s.IsBuffering = false
	case EventEnded:
		s.IsPlaying = false
		s.IsPaused = false
		s.IsBuffering = false
		s.CurrentTime = s.Duration
	case EventTimeUpdate:
		s.IsBuffering = snap.Waiting
	}
	return s
}

// BeginDrag starts an optimistic preview of target, seeded with initial.
func (r *Reconciler) BeginDrag(target DragTarget, initial float64) {
	r.mu.Lock()
	r.dragging = target
	r.preview = r.sanitize(target, initial)
	r.mu.Unlock()
}

// UpdateDrag moves the preview. The adapter is not touched.
func (r *Reconciler) UpdateDrag(value float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dragging == 0 {
		return shared.ErrNoDragActive
	}
	r.preview = r.sanitize(r.dragging, value)
	return nil
}

// Dragging reports the active drag target, or zero.
func (r *Reconciler) Dragging() DragTarget {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dragging
}

// EndDrag clears the preview and issues exactly one command with the final value. The next
// confirmed event becomes canonical.
func (r *Reconciler) EndDrag(ctx context.Context) error {
	r.mu.Lock()
	target, value := r.dragging, r.preview
	r.dragging, r.preview = 0, 0
	r.mu.Unlock()

	if target == 0 {
		return shared.ErrNoDragActive
	}
	if r.commander == nil {
		return shared.ErrServiceUnavailable
	}

	r.logger.Debug("committing drag", "target", target, "value", value)
	if target == DragSeek {
		return r.commander.Seek(ctx, value)
	}
	return r.commander.SetVolume(ctx, value)
}

// CancelDrag drops the preview without commanding the adapter.
func (r *Reconciler) CancelDrag() {
	r.mu.Lock()
	r.dragging, r.preview = 0, 0
	r.mu.Unlock()
}

// Displayed returns the state with any active preview overlaid.
func (r *Reconciler) Displayed() models.PlaybackState {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.state
	switch r.dragging {
	case DragSeek:
		s.CurrentTime = r.preview
	case DragVolume:
		s.Volume = r.preview
		s.IsMuted = r.preview == 0
	}
	return s
}

func (r *Reconciler) sanitize(target DragTarget, v float64) float64 {
	v = finite(v)
	if target == DragVolume {
		return clamp01(v)
	}
	v = math.Max(v, 0)
	if r.state.Duration > 0 {
		v = math.Min(v, r.state.Duration)
	}
	return v
}

func (r *Reconciler) publish(s models.PlaybackState) {
	r.mu.Lock()
	ls := append([]func(models.PlaybackState){}, r.listeners...)
	r.mu.Unlock()

	for _, fn := range ls {
		func() {
			defer shared.Recover(r.logger, "reconciler listener", nil)
			fn(s)
		}()
	}
}

// VolumeLevel is the icon bucket for a volume.
type VolumeLevel string

const (
	VolumeMuted VolumeLevel = "muted"
	VolumeLow   VolumeLevel = "low"
	VolumeHigh  VolumeLevel = "high"
)

// VolumeIcon buckets v: 0 is muted, below 0.5 is low, anything else high. NaN counts as 0.
func VolumeIcon(v float64) VolumeLevel {
	if math.IsNaN(v) || v <= 0 {
		return VolumeMuted
	}
	if v < 0.5 {
		return VolumeLow
	}
	return VolumeHigh
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
