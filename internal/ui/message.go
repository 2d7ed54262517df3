package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/hivefm/internal/store"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgStateChanged MsgKind = iota
	MsgCommandDone
	MsgDragCommit
	MsgOverlayHide
)

// commandResult is the payload of [MsgCommandDone].
type commandResult struct {
	op  string
	err error
}

// stateChangedMsg is the constructor for [MsgStateChanged]
func stateChangedMsg(st store.State) Msg {
	return Msg{kind: MsgStateChanged, data: st}
}

// commandDoneMsg is the constructor for [MsgCommandDone]
func commandDoneMsg(op string, err error) Msg {
	return Msg{kind: MsgCommandDone, data: commandResult{op: op, err: err}}
}

// dragCommitMsg is the constructor for [MsgDragCommit]. gen is the drag generation that armed it.
func dragCommitMsg(gen int) Msg {
	return Msg{kind: MsgDragCommit, data: gen}
}

// overlayHideMsg is the constructor for [MsgOverlayHide]
func overlayHideMsg(gen int) Msg {
	return Msg{kind: MsgOverlayHide, data: gen}
}
