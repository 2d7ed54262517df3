package models

import (
	"slices"
)

// Queue is the ordered list of queue items. Helpers never mutate the receiver.
type Queue []QueueItem

// Normalize returns a copy ordered by the current positions with positions rewritten to 0..n-1.
func (q Queue) Normalize() Queue {
	out := slices.Clone(q)
	slices.SortStableFunc(out, func(a, b QueueItem) int { return a.Position - b.Position })
	return out.renumber()
}

// renumber rewrites positions in slice order. It mutates q and must only be called on a copy.
func (q Queue) renumber() Queue {
	for i := range q {
		q[i].Position = i
	}
	return q
}

// Index returns the slot index of the item with queueID, or -1.
func (q Queue) Index(queueID string) int {
	return slices.IndexFunc(q, func(it QueueItem) bool { return it.QueueID == queueID })
}

// Add appends item, replacing any existing slot with the same QueueID in place.
func (q Queue) Add(item QueueItem) Queue {
	out := slices.Clone(q)
	if i := out.Index(item.QueueID); i >= 0 {
		out[i] = item
		return out.renumber()
	}
	return append(out, item).renumber()
}

// Remove drops the item with queueID. Unknown ids return an unchanged copy.
func (q Queue) Remove(queueID string) Queue {
	out := slices.Clone(q)
	if i := out.Index(queueID); i >= 0 {
		out = slices.Delete(out, i, i+1)
	}
	return out.renumber()
}

// Reorder moves the item at from to to using array splice semantics:
// the item is removed first, then inserted at to in the shortened slice.
// Out-of-range indices return an unchanged copy and false.
func (q Queue) Reorder(from, to int) (Queue, bool) {
	out := slices.Clone(q)
	if from < 0 || from >= len(out) || to < 0 || to >= len(out) {
		return out.renumber(), false
	}
	item := out[from]
	out = slices.Delete(out, from, from+1)
	out = slices.Insert(out, to, item)
	return out.renumber(), true
}

// Merge applies a server copy of an item by QueueID. The item is moved to its reported
// position (clamped) or appended when unknown. Applying the same item twice is a no-op.
func (q Queue) Merge(item QueueItem) Queue {
	out := slices.Clone(q)
	if i := out.Index(item.QueueID); i >= 0 {
		out = slices.Delete(out, i, i+1)
	}
	pos := min(max(item.Position, 0), len(out))
	out = slices.Insert(out, pos, item)
	return out.renumber()
}

// Vote records the caller's vote locally and reorders by tally, keeping ties in their current order.
func (q Queue) Vote(queueID string, v Vote) (Queue, bool) {
	out := slices.Clone(q)
	i := out.Index(queueID)
	if i < 0 || !v.Valid() {
		return out, false
	}

	item := &out[i]
	item.Votes -= voteWeight(item.UserVote)
	if item.UserVote == v {
		item.UserVote = VoteNone
	} else {
		item.UserVote = v
		item.Votes += voteWeight(v)
	}

	slices.SortStableFunc(out, func(a, b QueueItem) int { return b.Votes - a.Votes })
	return out.renumber(), true
}

func voteWeight(v Vote) int {
	switch v {
	case VoteUp:
		return 1
	case VoteDown:
		return -1
	default:
		return 0
	}
}

// Contiguous reports whether positions are exactly 0..n-1 in slice order.
func (q Queue) Contiguous() bool {
	for i, it := range q {
		if it.Position != i {
			return false
		}
	}
	return true
}

// Tracks returns the queued tracks in order.
func (q Queue) Tracks() []Track {
	out := make([]Track, len(q))
	for i, it := range q {
		out[i] = it.Track
	}
	return out
}
