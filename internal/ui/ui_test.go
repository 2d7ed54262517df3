package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/hivefm/internal/models"
	"github.com/desertthunder/hivefm/internal/playback"
	"github.com/desertthunder/hivefm/internal/shared"
	"github.com/desertthunder/hivefm/internal/store"
)

type recordingCommander struct {
	mu      sync.Mutex
	seeks   []float64
	volumes []float64
}

func (c *recordingCommander) Seek(ctx context.Context, seconds float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seeks = append(c.seeks, seconds)
	return nil
}

func (c *recordingCommander) SetVolume(ctx context.Context, v float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volumes = append(c.volumes, v)
	return nil
}

// fakeController drives a real reconciler and store; queue and transport calls are recorded.
type fakeController struct {
	*playback.Reconciler
	commander *recordingCommander
	st        *store.Store
	calls     []string
}

func newFakeController(q models.Queue) *fakeController {
	logger := shared.NewLogger(io.Discard)
	cmd := &recordingCommander{}
	f := &fakeController{
		Reconciler: playback.NewReconciler(cmd, logger),
		commander:  cmd,
		st:         store.New(logger),
	}
	f.st.Dispatch(store.QueueReplaced{Queue: q})
	return f
}

func (f *fakeController) record(call string) error {
	f.calls = append(f.calls, call)
	return nil
}

func (f *fakeController) State() store.State                 { return f.st.State() }
func (f *fakeController) Subscribe(l store.Listener) func()  { return f.st.Subscribe(l) }
func (f *fakeController) Toggle(ctx context.Context) error   { return f.record("toggle") }
func (f *fakeController) Next(ctx context.Context) error     { return f.record("next") }
func (f *fakeController) Previous(ctx context.Context) error { return f.record("previous") }

func (f *fakeController) PlayQueueItem(ctx context.Context, id string) error {
	return f.record("play " + id)
}

func (f *fakeController) VoteItem(ctx context.Context, id string, v models.Vote) error {
	return f.record("vote " + id + " " + string(v))
}

func (f *fakeController) RemoveItem(ctx context.Context, id string) error {
	return f.record("remove " + id)
}

func (f *fakeController) ReorderItem(ctx context.Context, from, to int) error {
	return f.record(fmt.Sprintf("reorder %d %d", from, to))
}

func testQueue() models.Queue {
	return models.Queue{
		{Track: models.Track{ID: "a", Title: "First", Artist: "One", Duration: 120}, QueueID: "q1", Position: 0, Votes: 1},
		{Track: models.Track{ID: "b", Title: "Second", Artist: "Two", Duration: 90}, QueueID: "q2", Position: 1},
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m *Model, msg tea.KeyMsg) tea.Cmd {
	_, cmd := m.Update(msg)
	return cmd
}

// exec runs cmd and feeds its message back, the way the runtime would.
func exec(m *Model, cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	if msg := cmd(); msg != nil {
		m.Update(msg)
	}
}

func TestDrag(t *testing.T) {
	t.Run("Seek Presses Commit Once", func(t *testing.T) {
		ctl := newFakeController(testQueue())
		m := NewModel(context.Background(), ctl)

		press(m, tea.KeyMsg{Type: tea.KeyRight})
		press(m, tea.KeyMsg{Type: tea.KeyRight})
		press(m, tea.KeyMsg{Type: tea.KeyRight})

		if got := ctl.Displayed().CurrentTime; got != 15 {
			t.Fatalf("expected preview at 15s, got %v", got)
		}
		if len(ctl.commander.seeks) != 0 {
			t.Fatal("adapter must not be touched while dragging")
		}

		_, cmd := m.Update(dragCommitMsg(1))
		if cmd != nil {
			t.Fatal("stale settle timer must not commit")
		}

		_, cmd = m.Update(dragCommitMsg(m.dragGen))
		exec(m, cmd)

		if len(ctl.commander.seeks) != 1 || ctl.commander.seeks[0] != 15 {
			t.Errorf("expected one seek to 15, got %v", ctl.commander.seeks)
		}
		if ctl.Dragging() != 0 {
			t.Error("drag should be over after commit")
		}

		_, cmd = m.Update(dragCommitMsg(m.dragGen))
		if cmd != nil {
			t.Error("a second timer for the same generation must not commit again")
		}
	})

	t.Run("Seek Never Goes Negative", func(t *testing.T) {
		ctl := newFakeController(nil)
		m := NewModel(context.Background(), ctl)
		press(m, tea.KeyMsg{Type: tea.KeyLeft})
		if got := ctl.Displayed().CurrentTime; got != 0 {
			t.Errorf("expected clamp to 0, got %v", got)
		}
	})

	t.Run("Tab Commits Immediately", func(t *testing.T) {
		ctl := newFakeController(nil)
		m := NewModel(context.Background(), ctl)
		press(m, runes("+"))
		gen := m.dragGen

		exec(m, press(m, tea.KeyMsg{Type: tea.KeyTab}))

		if len(ctl.commander.volumes) != 1 {
			t.Fatalf("expected one volume command, got %v", ctl.commander.volumes)
		}
		if got := ctl.commander.volumes[0]; got < 0.74 || got > 0.76 {
			t.Errorf("expected ~0.75, got %v", got)
		}

		_, cmd := m.Update(dragCommitMsg(gen))
		if cmd != nil {
			t.Error("settle timer armed before tab must be stale")
		}
	})

	t.Run("Escape Cancels", func(t *testing.T) {
		ctl := newFakeController(nil)
		m := NewModel(context.Background(), ctl)
		press(m, runes("-"))
		press(m, tea.KeyMsg{Type: tea.KeyEsc})

		if ctl.Dragging() != 0 {
			t.Fatal("expected drag to be cancelled")
		}
		_, cmd := m.Update(dragCommitMsg(m.dragGen))
		if cmd != nil || len(ctl.commander.volumes) != 0 {
			t.Error("cancelled drag must not commit")
		}
	})

	t.Run("Switching Target Drops Preview", func(t *testing.T) {
		ctl := newFakeController(nil)
		m := NewModel(context.Background(), ctl)
		press(m, tea.KeyMsg{Type: tea.KeyRight})
		press(m, runes("+"))

		if ctl.Dragging() != playback.DragVolume {
			t.Errorf("expected volume drag, got %v", ctl.Dragging())
		}
		if got := ctl.Displayed().CurrentTime; got != 0 {
			t.Errorf("seek preview should be gone, got %v", got)
		}
	})
}

func TestVolumeOverlay(t *testing.T) {
	ctl := newFakeController(nil)
	m := NewModel(context.Background(), ctl)

	press(m, runes("+"))
	first := m.overlayGen
	press(m, runes("+"))

	if !m.overlay {
		t.Fatal("expected overlay to be visible")
	}
	if !strings.Contains(m.View(), "%") {
		t.Error("expected volume percentage in view")
	}

	m.Update(overlayHideMsg(first))
	if !m.overlay {
		t.Error("an older hide timer must not hide the overlay")
	}

	m.Update(overlayHideMsg(m.overlayGen))
	if m.overlay {
		t.Error("expected overlay hidden by the latest timer")
	}
}

func TestQueueKeys(t *testing.T) {
	t.Run("Transport And Queue Commands", func(t *testing.T) {
		ctl := newFakeController(testQueue())
		m := NewModel(context.Background(), ctl)

		exec(m, press(m, tea.KeyMsg{Type: tea.KeySpace}))
		exec(m, press(m, runes("n")))
		exec(m, press(m, runes("p")))
		exec(m, press(m, tea.KeyMsg{Type: tea.KeyEnter}))
		exec(m, press(m, runes("u")))
		exec(m, press(m, runes("d")))
		exec(m, press(m, runes("J")))
		exec(m, press(m, runes("x")))

		want := []string{"toggle", "next", "previous", "play q1", "vote q1 up", "vote q1 down", "reorder 0 1", "remove q2"}
		if strings.Join(ctl.calls, ",") != strings.Join(want, ",") {
			t.Errorf("calls = %v, want %v", ctl.calls, want)
		}
	})

	t.Run("Move Up At Head Is Ignored", func(t *testing.T) {
		ctl := newFakeController(testQueue())
		m := NewModel(context.Background(), ctl)
		if cmd := press(m, runes("K")); cmd != nil {
			t.Error("expected no command")
		}
	})

	t.Run("Empty Queue", func(t *testing.T) {
		ctl := newFakeController(nil)
		m := NewModel(context.Background(), ctl)
		exec(m, press(m, runes("u")))
		exec(m, press(m, tea.KeyMsg{Type: tea.KeyEnter}))
		if len(ctl.calls) != 0 {
			t.Errorf("expected no calls, got %v", ctl.calls)
		}
	})
}

func TestStateUpdates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctl := newFakeController(nil)
	m := NewModel(ctx, ctl)
	wait := m.Init()

	ctl.st.Dispatch(store.HiveJoined{HiveID: "h1"})
	ctl.st.Dispatch(store.QueueReplaced{Queue: testQueue()})

	msg := wait()
	_, next := m.Update(msg)
	if next == nil {
		t.Fatal("expected the model to keep waiting for snapshots")
	}
	if len(m.queue.Items()) != 2 {
		t.Errorf("expected newest snapshot with 2 items, got %d", len(m.queue.Items()))
	}
	if m.queue.Title != "Queue · h1" {
		t.Errorf("unexpected title %q", m.queue.Title)
	}

	cancel()
	if got := next(); got != nil {
		t.Errorf("expected nil after cancel, got %v", got)
	}
}

func TestCommandErrors(t *testing.T) {
	ctl := newFakeController(nil)
	m := NewModel(context.Background(), ctl)

	m.Update(commandDoneMsg("next", shared.ErrTrackNotFound))
	if !strings.Contains(m.View(), "next: track not found") {
		t.Errorf("expected error in view:\n%s", m.View())
	}

	m.Update(commandDoneMsg("toggle", nil))
	if m.err != nil {
		t.Error("a successful command should clear the error")
	}
}

func TestQuit(t *testing.T) {
	ctl := newFakeController(nil)
	m := NewModel(context.Background(), ctl)
	m.Init()
	press(m, tea.KeyMsg{Type: tea.KeyRight})

	cmd := press(m, runes("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if ctl.Dragging() != 0 {
		t.Error("quit should drop the drag preview")
	}
	if m.unsubscribe != nil {
		t.Error("quit should unsubscribe from the store")
	}
}

func TestView(t *testing.T) {
	ctl := newFakeController(testQueue())
	m := NewModel(context.Background(), ctl)
	out := m.View()
	for _, want := range []string{"hivefm", "Nothing playing", "First"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestVolumeLine(t *testing.T) {
	if got := volumeLine(models.PlaybackState{Volume: 0.5, IsMuted: true}); !strings.HasPrefix(got, "🔇") || !strings.Contains(got, "  0%") {
		t.Errorf("muted line: %q", got)
	}
	if got := volumeLine(models.PlaybackState{Volume: 1}); !strings.HasPrefix(got, "🔊") {
		t.Errorf("full line: %q", got)
	}
}
