package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/hivefm/internal/formatter"
	"github.com/desertthunder/hivefm/internal/models"
	"github.com/desertthunder/hivefm/internal/playback"
	"github.com/desertthunder/hivefm/internal/shared"
	"github.com/desertthunder/hivefm/internal/store"
)

const (
	seekStep   = 5.0
	volumeStep = 0.05
	dragSettle = 600 * time.Millisecond
	overlayTTL = 1500 * time.Millisecond
)

// Controller is the session surface the TUI drives.
type Controller interface {
	State() store.State
	Subscribe(l store.Listener) func()
	Displayed() models.PlaybackState

	PlayQueueItem(ctx context.Context, queueID string) error
	Toggle(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error

	BeginDrag(target playback.DragTarget, initial float64)
	UpdateDrag(v float64) error
	EndDrag(ctx context.Context) error
	CancelDrag()
	Dragging() playback.DragTarget

	VoteItem(ctx context.Context, queueID string, v models.Vote) error
	RemoveItem(ctx context.Context, queueID string) error
	ReorderItem(ctx context.Context, from, to int) error
}

// Model represents the TUI application state.
type Model struct {
	ctx         context.Context
	ctl         Controller
	updates     chan store.State
	unsubscribe func()

	state      store.State
	queue      list.Model
	help       help.Model
	keys       keyMap
	width      int
	height     int
	dragGen    int
	overlayGen int
	overlay    bool
	err        error
}

// NewModel creates a new TUI model over ctl.
func NewModel(ctx context.Context, ctl Controller) *Model {
	m := &Model{
		ctx:     ctx,
		ctl:     ctl,
		updates: make(chan store.State, 1),
		state:   ctl.State(),
		help:    help.New(),
		keys:    newKeyMap(),
	}
	m.queue = list.New(nil, list.NewDefaultDelegate(), 80, 20)
	m.queue.Title = "Queue"
	m.queue.SetShowHelp(false)
	m.queue.DisableQuitKeybindings()
	m.setQueue()
	return m
}

// Init subscribes to the store and starts waiting for snapshots.
func (m *Model) Init() tea.Cmd {
	m.unsubscribe = m.ctl.Subscribe(func(st store.State, _ store.Action) { m.push(st) })
	return m.waitForState()
}

// push replaces any undelivered snapshot with st.
func (m *Model) push(st store.State) {
	for {
		select {
		case m.updates <- st:
			return
		default:
		}
		select {
		case <-m.updates:
		default:
		}
	}
}

func (m *Model) waitForState() tea.Cmd {
	return func() tea.Msg {
		select {
		case st := <-m.updates:
			return stateChangedMsg(st)
		case <-m.ctx.Done():
			return nil
		}
	}
}

// Close unsubscribes from the store, drops any drag preview and invalidates pending timers.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	m.ctl.CancelDrag()
	m.dragGen++
	m.overlayGen++
	m.overlay = false
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.queue.SetSize(msg.Width-4, max(msg.Height-12, 4))
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	m.queue, cmd = m.queue.Update(msg)
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgStateChanged:
		m.state = msg.data.(store.State)
		m.setQueue()
		return m, m.waitForState()

	case MsgCommandDone:
		res := msg.data.(commandResult)
		m.err = nil
		if res.err != nil {
			m.err = fmt.Errorf("%s: %w", res.op, res.err)
		}
		return m, nil

	case MsgDragCommit:
		if msg.data.(int) != m.dragGen || m.ctl.Dragging() == 0 {
			return m, nil
		}
		return m, m.commitDrag()

	case MsgOverlayHide:
		if msg.data.(int) == m.overlayGen {
			m.overlay = false
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.queue.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.queue, cmd = m.queue.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		m.Close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.toggle):
		return m, m.run("toggle", m.ctl.Toggle)
	case key.Matches(msg, m.keys.next):
		return m, m.run("next", m.ctl.Next)
	case key.Matches(msg, m.keys.prev):
		return m, m.run("previous", m.ctl.Previous)
	case key.Matches(msg, m.keys.play):
		if it, ok := m.selected(); ok {
			return m, m.run("play", func(ctx context.Context) error { return m.ctl.PlayQueueItem(ctx, it.QueueID) })
		}
		return m, nil

	case key.Matches(msg, m.keys.back):
		return m, m.drag(playback.DragSeek, -seekStep)
	case key.Matches(msg, m.keys.forward):
		return m, m.drag(playback.DragSeek, seekStep)
	case key.Matches(msg, m.keys.volUp):
		return m, m.drag(playback.DragVolume, volumeStep)
	case key.Matches(msg, m.keys.volDown):
		return m, m.drag(playback.DragVolume, -volumeStep)
	case key.Matches(msg, m.keys.commit):
		if m.ctl.Dragging() == 0 {
			return m, nil
		}
		m.dragGen++
		return m, m.commitDrag()
	case key.Matches(msg, m.keys.cancel):
		m.ctl.CancelDrag()
		m.dragGen++
		return m, nil

	case key.Matches(msg, m.keys.voteUp):
		return m, m.vote(models.VoteUp)
	case key.Matches(msg, m.keys.voteDown):
		return m, m.vote(models.VoteDown)
	case key.Matches(msg, m.keys.moveUp):
		return m, m.move(-1)
	case key.Matches(msg, m.keys.moveDown):
		return m, m.move(1)
	case key.Matches(msg, m.keys.remove):
		if it, ok := m.selected(); ok {
			return m, m.run("remove", func(ctx context.Context) error { return m.ctl.RemoveItem(ctx, it.QueueID) })
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.queue, cmd = m.queue.Update(msg)
	return m, cmd
}

func (m *Model) run(op string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return commandDoneMsg(op, fn(m.ctx))
	}
}

// drag moves the preview for target by delta and re-arms the settle timer. Pressing a key for the
// other target drops the current preview.
func (m *Model) drag(target playback.DragTarget, delta float64) tea.Cmd {
	disp := m.ctl.Displayed()
	cur := disp.CurrentTime
	if target == playback.DragVolume {
		cur = disp.Volume
	}

	if active := m.ctl.Dragging(); active != target {
		if active != 0 {
			m.ctl.CancelDrag()
		}
		m.ctl.BeginDrag(target, cur)
	}
	if err := m.ctl.UpdateDrag(cur + delta); err != nil {
		m.err = err
		return nil
	}

	m.dragGen++
	gen := m.dragGen
	settle := tea.Tick(dragSettle, func(time.Time) tea.Msg { return dragCommitMsg(gen) })
	if target != playback.DragVolume {
		return settle
	}
	return tea.Batch(settle, m.showOverlay())
}

func (m *Model) commitDrag() tea.Cmd {
	return m.run("commit", m.ctl.EndDrag)
}

func (m *Model) showOverlay() tea.Cmd {
	m.overlay = true
	m.overlayGen++
	gen := m.overlayGen
	return tea.Tick(overlayTTL, func(time.Time) tea.Msg { return overlayHideMsg(gen) })
}

func (m *Model) vote(v models.Vote) tea.Cmd {
	it, ok := m.selected()
	if !ok {
		return nil
	}
	return m.run("vote", func(ctx context.Context) error { return m.ctl.VoteItem(ctx, it.QueueID, v) })
}

func (m *Model) move(delta int) tea.Cmd {
	from := m.queue.Index()
	to := from + delta
	if _, ok := m.selected(); !ok || to < 0 || to >= len(m.state.Queue) {
		return nil
	}
	m.queue.Select(to)
	return m.run("reorder", func(ctx context.Context) error { return m.ctl.ReorderItem(ctx, from, to) })
}

func (m *Model) selected() (models.QueueItem, bool) {
	it, ok := m.queue.SelectedItem().(queueItem)
	if !ok {
		return models.QueueItem{}, false
	}
	return it.item, true
}

func (m *Model) setQueue() {
	m.queue.SetItems(queueItems(m.state.Queue, m.state.NowPlaying))
	if m.state.HiveID != "" {
		m.queue.Title = "Queue · " + m.state.HiveID
	} else {
		m.queue.Title = "Queue"
	}
}

// View renders the player.
func (m *Model) View() string {
	var b strings.Builder
	disp := m.ctl.Displayed()

	b.WriteString(styles.title.Render("hivefm " + m.sourceLabel()))
	b.WriteString("\n")

	barWidth := 30
	if m.width > 40 {
		barWidth = m.width - 24
	}
	b.WriteString(formatter.NowPlaying(m.state.NowPlaying, disp, barWidth))
	b.WriteString("\n")

	if m.ctl.Dragging() == playback.DragSeek {
		b.WriteString(styles.help.Render(fmt.Sprintf("seek to %s · tab to commit, esc to cancel", shared.FormatSeconds(disp.CurrentTime))))
		b.WriteString("\n")
	}
	if m.overlay {
		b.WriteString(styles.overlay.Render(volumeLine(disp)))
		b.WriteString("\n")
	}

	switch {
	case m.err != nil:
		b.WriteString(styles.err.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
	case m.state.Error != "":
		b.WriteString(styles.warn.Render(m.state.Error))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.queue.View())
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) sourceLabel() string {
	if m.state.Source == playback.SourceRemote {
		name := m.state.Remote.DeviceName
		if name == "" {
			name = "remote"
		}
		return styles.ok.Render("▶ " + name)
	}
	return styles.help.Render("▶ preview")
}

func volumeLine(s models.PlaybackState) string {
	v := s.Volume
	if s.IsMuted {
		v = 0
	}
	icon := "🔊"
	switch playback.VolumeIcon(v) {
	case playback.VolumeMuted:
		icon = "🔇"
	case playback.VolumeLow:
		icon = "🔉"
	}
	return fmt.Sprintf("%s %s %3.0f%%", icon, formatter.ProgressBar(v, 1, 20), v*100)
}
