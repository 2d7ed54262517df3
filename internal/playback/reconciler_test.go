package playback

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/desertthunder/hivefm/internal/models"
	"github.com/desertthunder/hivefm/internal/shared"
)

type commandLog struct {
	seeks   []float64
	volumes []float64
}

func (c *commandLog) Seek(ctx context.Context, seconds float64) error {
	c.seeks = append(c.seeks, seconds)
	return nil
}

func (c *commandLog) SetVolume(ctx context.Context, volume float64) error {
	c.volumes = append(c.volumes, volume)
	return nil
}

func remoteEvent(pos, dur int, paused bool, vol int) Event {
	return Event{
		Kind:   EventStateChanged,
		Source: SourceRemote,
		Remote: &RemoteSnapshot{PositionMs: pos, DurationMs: dur, Paused: paused, VolumePercent: vol},
	}
}

func elementEvent(kind EventKind, snap ElementSnapshot) Event {
	return Event{Kind: kind, Source: SourceLocal, Element: &snap}
}

func TestReconcilerApply(t *testing.T) {
	t.Run("Remote Units", func(t *testing.T) {
		r := NewReconciler(nil, nil)
		r.SetSource(SourceRemote)

		s, ok := r.Apply(remoteEvent(61500, 180000, false, 40))
		if !ok {
			t.Fatal("expected event to be accepted")
		}
		want := models.PlaybackState{
			IsPlaying: true, CurrentTime: 61.5, Duration: 180, Volume: 0.4, PlaybackRate: 1,
		}
		if s != want {
			t.Errorf("got %+v, want %+v", s, want)
		}
	})

	t.Run("Ignores Non Authoritative Source", func(t *testing.T) {
		r := NewReconciler(nil, nil)
		before := r.State()
		if _, ok := r.Apply(remoteEvent(1000, 2000, false, 100)); ok {
			t.Error("remote event accepted while local is authoritative")
		}
		if r.State() != before {
			t.Errorf("state changed: %+v", r.State())
		}
	})

	t.Run("Local Transport Flags", func(t *testing.T) {
		r := NewReconciler(nil, nil)
		snap := ElementSnapshot{CurrentTime: 3, Duration: 30, Volume: 0.5, Rate: 1}

		s, _ := r.Apply(elementEvent(EventBuffering, snap))
		if !s.IsBuffering {
			t.Error("expected buffering")
		}
		s, _ = r.Apply(elementEvent(EventCanPlay, snap))
		if s.IsBuffering {
			t.Error("expected buffering cleared")
		}
		s, _ = r.Apply(elementEvent(EventPlay, snap))
		if !s.IsPlaying || s.IsPaused {
			t.Errorf("expected playing, got %+v", s)
		}
		s, _ = r.Apply(elementEvent(EventPause, snap))
		if s.IsPlaying || !s.IsPaused {
			t.Errorf("expected paused, got %+v", s)
		}
		s, _ = r.Apply(elementEvent(EventEnded, snap))
		if s.IsPlaying || s.CurrentTime != 30 {
			t.Errorf("expected ended at duration, got %+v", s)
		}
	})

	t.Run("Error Stops Playback", func(t *testing.T) {
		r := NewReconciler(nil, nil)
		r.Apply(elementEvent(EventPlay, ElementSnapshot{Volume: 1, Rate: 1}))
		s, _ := r.Apply(Event{Kind: EventError, Source: SourceLocal, Err: shared.ErrNoPlayableSource})
		if s.IsPlaying || s.IsBuffering {
			t.Errorf("expected stopped, got %+v", s)
		}
	})

	t.Run("Sanitizes Non Finite", func(t *testing.T) {
		r := NewReconciler(nil, nil)
		s, _ := r.Apply(elementEvent(EventTimeUpdate, ElementSnapshot{
			CurrentTime: math.NaN(), Duration: math.Inf(1), Volume: 3, Rate: math.Inf(1),
		}))
		if s.CurrentTime != 0 || s.Duration != 0 || s.Volume != 1 || s.PlaybackRate != 1 {
			t.Errorf("expected sanitized values, got %+v", s)
		}
	})

	t.Run("Source Switch Resets Transport", func(t *testing.T) {
		r := NewReconciler(nil, nil)
		var changes int
		r.OnChange(func(models.PlaybackState) { changes++ })

		r.Apply(elementEvent(EventPlay, ElementSnapshot{Volume: 1, Rate: 1}))
		r.SetSource(SourceRemote)
		r.SetSource(SourceRemote)

		if r.State().IsPlaying {
			t.Error("expected playing cleared on switch")
		}
		if changes != 2 {
			t.Errorf("expected 2 change notifications, got %d", changes)
		}
	})
}

func TestReconcilerDrag(t *testing.T) {
	ctx := context.Background()

	t.Run("Seek Commits Once", func(t *testing.T) {
		cmds := &commandLog{}
		r := NewReconciler(cmds, nil)
		r.SetSource(SourceRemote)
		r.Apply(remoteEvent(10000, 200000, false, 70))

		r.BeginDrag(DragSeek, 10)
		for _, v := range []float64{20, 40, 80, 120} {
			if err := r.UpdateDrag(v); err != nil {
				t.Fatalf("update: %v", err)
			}
		}
		if got := r.Displayed().CurrentTime; got != 120 {
			t.Errorf("expected preview 120, got %v", got)
		}
		if got := r.State().CurrentTime; got != 10 {
			t.Errorf("confirmed state moved during drag: %v", got)
		}
		if len(cmds.seeks) != 0 {
			t.Fatalf("adapter commanded during drag: %v", cmds.seeks)
		}

		if err := r.EndDrag(ctx); err != nil {
			t.Fatalf("end: %v", err)
		}
		if len(cmds.seeks) != 1 || cmds.seeks[0] != 120 {
			t.Errorf("expected a single seek to 120, got %v", cmds.seeks)
		}
		if got := r.Displayed().CurrentTime; got != 10 {
			t.Errorf("expected preview cleared, got %v", got)
		}

		r.Apply(remoteEvent(120000, 200000, false, 70))
		if got := r.Displayed().CurrentTime; got != 120 {
			t.Errorf("expected confirmed 120, got %v", got)
		}
	})

	t.Run("Seek Preview Clamps To Duration", func(t *testing.T) {
		r := NewReconciler(&commandLog{}, nil)
		r.Apply(elementEvent(EventTimeUpdate, ElementSnapshot{Duration: 30, Volume: 1, Rate: 1}))
		r.BeginDrag(DragSeek, 0)
		_ = r.UpdateDrag(95)
		if got := r.Displayed().CurrentTime; got != 30 {
			t.Errorf("expected clamp to 30, got %v", got)
		}
	})

	t.Run("Volume Commits Once", func(t *testing.T) {
		cmds := &commandLog{}
		r := NewReconciler(cmds, nil)

		r.BeginDrag(DragVolume, 0.7)
		_ = r.UpdateDrag(0.3)
		_ = r.UpdateDrag(-1)
		if d := r.Displayed(); d.Volume != 0 || !d.IsMuted {
			t.Errorf("expected muted preview, got %+v", d)
		}
		if err := r.EndDrag(ctx); err != nil {
			t.Fatalf("end: %v", err)
		}
		if len(cmds.volumes) != 1 || cmds.volumes[0] != 0 || len(cmds.seeks) != 0 {
			t.Errorf("unexpected commands seeks=%v volumes=%v", cmds.seeks, cmds.volumes)
		}
	})

	t.Run("Cancel Issues Nothing", func(t *testing.T) {
		cmds := &commandLog{}
		r := NewReconciler(cmds, nil)
		r.BeginDrag(DragSeek, 5)
		r.CancelDrag()
		if r.Dragging() != 0 {
			t.Error("expected no active drag")
		}
		if err := r.EndDrag(ctx); !errors.Is(err, shared.ErrNoDragActive) {
			t.Errorf("expected ErrNoDragActive, got %v", err)
		}
		if len(cmds.seeks)+len(cmds.volumes) != 0 {
			t.Error("cancel should not command the adapter")
		}
	})

	t.Run("Update Without Drag", func(t *testing.T) {
		r := NewReconciler(nil, nil)
		if err := r.UpdateDrag(1); !errors.Is(err, shared.ErrNoDragActive) {
			t.Errorf("expected ErrNoDragActive, got %v", err)
		}
	})
}

func TestVolumeIcon(t *testing.T) {
	tests := []struct {
		in   float64
		want VolumeLevel
	}{
		{0, VolumeMuted},
		{math.NaN(), VolumeMuted},
		{-0.2, VolumeMuted},
		{0.01, VolumeLow},
		{0.49, VolumeLow},
		{0.5, VolumeHigh},
		{1, VolumeHigh},
	}

	for _, tt := range tests {
		if got := VolumeIcon(tt.in); got != tt.want {
			t.Errorf("VolumeIcon(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
