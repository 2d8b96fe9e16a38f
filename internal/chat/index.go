package chat

import (
	"slices"

	"github.com/mcoutinho/chatcore/internal/transport"
)

// Index is the ordered collection of conversation summaries. Order is
// maintained by Sort: pinned before unpinned, then most recent activity
// first, stable on ties.
//
// Index is not safe for concurrent use; the store serializes access.
type Index struct {
	list []*Conversation
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{}
}

// Get returns the summary for ref, or nil.
func (x *Index) Get(ref transport.ConversationRef) *Conversation {
	for _, c := range x.list {
		if c.Ref == ref {
			return c
		}
	}
	return nil
}

// Add appends a new summary. The caller re-sorts afterwards.
func (x *Index) Add(c *Conversation) {
	x.list = append(x.list, c)
}

// Merge folds a server-fetched batch into the index. Locally-held unread
// count and mention flag are authoritative and survive the merge; the
// server's pin state is adopted; the last message goes to whichever side
// carries the larger timestamp. An empty local head loses to anything the
// server returns, including a zero timestamp. New conversations are
// appended; the caller re-sorts.
func (x *Index) Merge(items []*transport.ConversationItem) {
	for _, item := range items {
		local := x.Get(item.Ref)
		if local == nil {
			x.list = append(x.list, &Conversation{
				Ref:         item.Ref,
				LastMessage: item.LastMessage.Clone(),
				UnreadCount: item.UnreadCount,
				IsPinned:    item.IsPinned,
				PinnedTime:  item.PinnedTime,
				Mention:     MentionNone,
			})
			continue
		}
		local.IsPinned = item.IsPinned
		local.PinnedTime = item.PinnedTime
		if newerHead(local.LastMessage, item.LastMessage) {
			local.LastMessage = item.LastMessage.Clone()
		}
	}
}

// newerHead reports whether the server head should replace the local one:
// last-write-wins on timestamp, server wins ties and empty local heads.
func newerHead(local, server *transport.Message) bool {
	if server == nil {
		return false
	}
	if local == nil {
		return true
	}
	return server.Timestamp >= local.Timestamp
}

// Sort orders the index: pinned conversations first, then by head recency
// within each section. Among pinned entries a missing or tied head
// timestamp falls back to pin time, newest pin first. Remaining ties keep
// their relative order.
func (x *Index) Sort() {
	slices.SortStableFunc(x.list, func(a, b *Conversation) int {
		if a.IsPinned != b.IsPinned {
			if a.IsPinned {
				return -1
			}
			return 1
		}
		at, bt := headTime(a), headTime(b)
		if at != 0 && bt != 0 && at != bt {
			if at > bt {
				return -1
			}
			return 1
		}
		if a.IsPinned && a.PinnedTime != b.PinnedTime {
			if a.PinnedTime > b.PinnedTime {
				return -1
			}
			return 1
		}
		return 0
	})
}

func headTime(c *Conversation) int64 {
	if c.LastMessage == nil {
		return 0
	}
	return c.LastMessage.Timestamp
}

// MoveToFront removes ref if present and re-inserts it at index 0. Combined
// with Sort this keeps pinned conversations pin-ordered and bubbles the
// active unpinned conversation to the top of its section.
func (x *Index) MoveToFront(ref transport.ConversationRef) {
	idx := slices.IndexFunc(x.list, func(c *Conversation) bool { return c.Ref == ref })
	if idx < 0 {
		return
	}
	c := x.list[idx]
	x.list = slices.Delete(x.list, idx, idx+1)
	x.list = slices.Insert(x.list, 0, c)
}

// Remove deletes ref from the index. Returns whether it was present.
func (x *Index) Remove(ref transport.ConversationRef) bool {
	idx := slices.IndexFunc(x.list, func(c *Conversation) bool { return c.Ref == ref })
	if idx < 0 {
		return false
	}
	x.list = slices.Delete(x.list, idx, idx+1)
	return true
}

// TotalUnread sums unread counts across non-muted conversations.
func (x *Index) TotalUnread() int {
	total := 0
	for _, c := range x.list {
		if !c.Muted {
			total += c.UnreadCount
		}
	}
	return total
}

// List returns the ordered summaries. Callers must not mutate the entries.
func (x *Index) List() []*Conversation {
	return x.list
}

// Len returns the number of conversations.
func (x *Index) Len() int {
	return len(x.list)
}

// Clear drops every summary.
func (x *Index) Clear() {
	x.list = nil
}
