package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up       key.Binding
	down     key.Binding
	play     key.Binding
	toggle   key.Binding
	next     key.Binding
	prev     key.Binding
	back     key.Binding
	forward  key.Binding
	volUp    key.Binding
	volDown  key.Binding
	commit   key.Binding
	cancel   key.Binding
	voteUp   key.Binding
	voteDown key.Binding
	moveUp   key.Binding
	moveDown key.Binding
	remove   key.Binding
	help     key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		play:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play")),
		toggle:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		next:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next")),
		prev:     key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "previous")),
		back:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "seek -5s")),
		forward:  key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "seek +5s")),
		volUp:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "volume up")),
		volDown:  key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "volume down")),
		commit:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "commit drag")),
		cancel:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel drag")),
		voteUp:   key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "vote up")),
		voteDown: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "vote down")),
		moveUp:   key.NewBinding(key.WithKeys("K", "shift+up"), key.WithHelp("K", "move up")),
		moveDown: key.NewBinding(key.WithKeys("J", "shift+down"), key.WithHelp("J", "move down")),
		remove:   key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x", "remove")),
		help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.toggle, k.play, k.next, k.back, k.forward, k.volUp, k.help, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.play, k.toggle},
		{k.next, k.prev, k.back, k.forward},
		{k.volUp, k.volDown, k.commit, k.cancel},
		{k.voteUp, k.voteDown, k.moveUp, k.moveDown, k.remove},
		{k.help, k.quit},
	}
}
