package playback

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/desertthunder/hivefm/internal/shared"
)

// Raw media element event names.
const (
	ElementWaiting        = "waiting"
	ElementCanPlay        = "canplay"
	ElementLoadedMetadata = "loadedmetadata"
	ElementTimeUpdate     = "timeupdate"
	ElementPlay           = "play"
	ElementPause          = "pause"
	ElementEnded          = "ended"
	ElementVolumeChange   = "volumechange"
	ElementError          = "error"
)

// ElementEvent is a raw notification from a [MediaElement].
type ElementEvent struct {
	Type     string
	Snapshot ElementSnapshot
	Err      error
}

// MediaElement is a single-source audio element. Load takes a duration hint in seconds for
// elements that cannot read metadata.
type MediaElement interface {
	Load(src string, durationHint float64) error
	Play() error
	Pause() error
	Seek(seconds float64) error
	SetVolume(volume float64) error
	SetMuted(muted bool) error
	Source() string
	Snapshot() ElementSnapshot
	SetHandler(fn func(ElementEvent))
}

// SilentElement is a wall-clock [MediaElement]: position advances while playing, nothing is decoded.
type SilentElement struct {
	now      func() time.Time
	interval time.Duration

	mu        sync.Mutex
	handler   func(ElementEvent)
	src       string
	duration  float64
	position  float64
	startedAt time.Time
	playing   bool
	volume    float64
	muted     bool
	stop      chan struct{}
	done      chan struct{}
}

// NewSilentElement creates an element that emits timeupdate every interval while playing.
// A zero interval disables the ticker; callers then drive it with [SilentElement.Tick].
func NewSilentElement(interval time.Duration, now func() time.Time) *SilentElement {
	if now == nil {
		now = time.Now
	}
	return &SilentElement{now: now, interval: interval, volume: 1}
}

func (e *SilentElement) SetHandler(fn func(ElementEvent)) {
	e.mu.Lock()
	e.handler = fn
	e.mu.Unlock()
}

func (e *SilentElement) Source() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.src
}

func (e *SilentElement) Snapshot() ElementSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *SilentElement) snapshotLocked() ElementSnapshot {
	return ElementSnapshot{
		CurrentTime: e.positionLocked(),
		Duration:    e.duration,
		Volume:      e.volume,
		Muted:       e.muted,
		Paused:      !e.playing,
		Rate:        1,
	}
}

func (e *SilentElement) positionLocked() float64 {
	pos := e.position
	if e.playing {
		pos += e.now().Sub(e.startedAt).Seconds()
	}
	if e.duration > 0 {
		pos = math.Min(pos, e.duration)
	}
	return pos
}

func (e *SilentElement) Load(src string, durationHint float64) error {
	e.mu.Lock()
	if src == "" {
		e.mu.Unlock()
		err := fmt.Errorf("%w: empty source", shared.ErrNoPlayableSource)
		e.fire(ElementError, err)
		return err
	}
	e.src = src
	e.duration = math.Max(durationHint, 0)
	e.position = 0
	e.playing = false
	e.mu.Unlock()

	e.fire(ElementWaiting, nil)
	e.fire(ElementLoadedMetadata, nil)
	e.fire(ElementCanPlay, nil)
	return nil
}

func (e *SilentElement) Play() error {
	e.mu.Lock()
	if e.src == "" {
		e.mu.Unlock()
		return shared.ErrNoPlayableSource
	}
	if e.playing {
		e.mu.Unlock()
		return nil
	}
	if e.duration > 0 && e.position >= e.duration {
		e.position = 0
	}
	e.playing = true
	e.startedAt = e.now()
	e.startTickerLocked()
	e.mu.Unlock()

	e.fire(ElementPlay, nil)
	return nil
}

func (e *SilentElement) Pause() error {
	e.mu.Lock()
	if !e.playing {
		e.mu.Unlock()
		return nil
	}
	e.position = e.positionLocked()
	e.playing = false
	e.mu.Unlock()

	e.fire(ElementPause, nil)
	return nil
}

func (e *SilentElement) Seek(seconds float64) error {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return fmt.Errorf("%w: seek position", shared.ErrInvalidArgument)
	}

	e.mu.Lock()
	seconds = math.Max(seconds, 0)
	if e.duration > 0 {
		seconds = math.Min(seconds, e.duration)
	}
	e.position = seconds
	e.startedAt = e.now()
	e.mu.Unlock()

	e.fire(ElementTimeUpdate, nil)
	return nil
}

func (e *SilentElement) SetVolume(volume float64) error {
	if math.IsNaN(volume) {
		volume = 0
	}
	e.mu.Lock()
	e.volume = math.Min(math.Max(volume, 0), 1)
	e.mu.Unlock()

	e.fire(ElementVolumeChange, nil)
	return nil
}

func (e *SilentElement) SetMuted(muted bool) error {
	e.mu.Lock()
	e.muted = muted
	e.mu.Unlock()

	e.fire(ElementVolumeChange, nil)
	return nil
}

// Tick emits a timeupdate, or ended once the position reaches the duration.
func (e *SilentElement) Tick() {
	e.mu.Lock()
	if !e.playing {
		e.mu.Unlock()
		return
	}
	pos := e.positionLocked()
	ended := e.duration > 0 && pos >= e.duration
	if ended {
		e.position = e.duration
		e.playing = false
	}
	e.mu.Unlock()

	if ended {
		e.fire(ElementEnded, nil)
		return
	}
	e.fire(ElementTimeUpdate, nil)
}

func (e *SilentElement) startTickerLocked() {
	if e.interval <= 0 || e.stop != nil {
		return
	}
	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	go e.run(e.stop, e.done)
}

func (e *SilentElement) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}

// Close stops the ticker goroutine.
func (e *SilentElement) Close() error {
	e.mu.Lock()
	stop, done := e.stop, e.done
	e.stop, e.done = nil, nil
	e.playing = false
	e.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	return nil
}

func (e *SilentElement) fire(kind string, err error) {
	e.mu.Lock()
	h := e.handler
	snap := e.snapshotLocked()
	e.mu.Unlock()

	if h != nil {
		h(ElementEvent{Type: kind, Snapshot: snap, Err: err})
	}
}
