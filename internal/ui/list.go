package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/hivefm/internal/models"
	"github.com/desertthunder/hivefm/internal/shared"
)

var _ list.Item = queueItem{}

// queueItem wraps [models.QueueItem] to implement [list.Item].
type queueItem struct {
	item    models.QueueItem
	playing bool
}

func (i queueItem) FilterValue() string { return i.item.Title + " " + i.item.Artist }

func (i queueItem) Title() string {
	if i.playing {
		return "♪ " + i.item.Title
	}
	return i.item.Title
}

func (i queueItem) Description() string {
	desc := fmt.Sprintf("%s • %s • %+d", i.item.Artist, shared.FormatDuration(i.item.Duration), i.item.Votes)
	switch i.item.UserVote {
	case models.VoteUp:
		desc += " ↑"
	case models.VoteDown:
		desc += " ↓"
	}
	return desc
}

func queueItems(q models.Queue, nowPlaying *models.Track) []list.Item {
	items := make([]list.Item, len(q))
	for i, it := range q {
		items[i] = queueItem{item: it, playing: nowPlaying != nil && nowPlaying.ID == it.ID}
	}
	return items
}
