package chat

import "slices"

// Timelines holds the per-conversation ordered id lists plus their
// pagination state, and enforces the retention cap. History extension
// prepends, live delivery appends; ids are unique within a timeline.
//
// Timelines is not safe for concurrent use; the store serializes access.
type Timelines struct {
	m   map[string]*Timeline
	cap int
}

// NewTimelines creates an empty set with the given per-conversation cap.
func NewTimelines(maxPerConversation int) *Timelines {
	return &Timelines{
		m:   make(map[string]*Timeline),
		cap: maxPerConversation,
	}
}

// Get returns the timeline for a conversation, or nil.
func (t *Timelines) Get(conversationID string) *Timeline {
	return t.m[conversationID]
}

// Append adds a message id at the live end. A missing timeline is created in
// the "has not fetched history" state. Duplicate ids are ignored.
func (t *Timelines) Append(conversationID, messageID string) {
	info, ok := t.m[conversationID]
	if !ok {
		t.m[conversationID] = &Timeline{IDs: []string{messageID}}
		return
	}
	if slices.Contains(info.IDs, messageID) {
		return
	}
	info.IDs = append(info.IDs, messageID)
}

// AppendExisting adds a message id only when the conversation already has a
// timeline. Synthetic notices are meaningless before any real history
// exists.
func (t *Timelines) AppendExisting(conversationID, messageID string) bool {
	info, ok := t.m[conversationID]
	if !ok {
		return false
	}
	if slices.Contains(info.IDs, messageID) {
		return false
	}
	info.IDs = append(info.IDs, messageID)
	return true
}

// Prepend merges one fetched history page. newIDs must already be in
// oldest-to-newest order and deduplicated against the registry; they extend
// the history end. Cursor and isLast always overwrite local state, even for
// an empty page, because the pagination position must always advance.
func (t *Timelines) Prepend(conversationID string, newIDs []string, cursor string, isLast bool) {
	info, ok := t.m[conversationID]
	if !ok {
		info = &Timeline{}
		t.m[conversationID] = info
	}
	if len(newIDs) > 0 {
		info.IDs = append(slices.Clone(newIDs), info.IDs...)
	}
	info.Cursor = cursor
	info.IsLast = isLast
	info.HasFetchedHistory = true
}

// Remove deletes one id from a timeline. Returns whether it was present.
func (t *Timelines) Remove(conversationID, messageID string) bool {
	info, ok := t.m[conversationID]
	if !ok {
		return false
	}
	idx := slices.Index(info.IDs, messageID)
	if idx < 0 {
		return false
	}
	info.IDs = slices.Delete(info.IDs, idx, idx+1)
	return true
}

// ResetAfterFailure caps further history fetching for a conversation after a
// transport failure: the id list is preserved, the cursor dropped and
// isLast forced true.
func (t *Timelines) ResetAfterFailure(conversationID string) *Timeline {
	info, ok := t.m[conversationID]
	if !ok {
		info = &Timeline{}
		t.m[conversationID] = info
	}
	info.Cursor = ""
	info.IsLast = true
	return info
}

// Evict trims a timeline down to the cap, returning the removed oldest ids.
// The cursor advances to the new oldest retained id and isLast is forced
// false, since the evicted range must be re-fetchable as history.
func (t *Timelines) Evict(conversationID string) []string {
	info, ok := t.m[conversationID]
	if !ok || t.cap <= 0 || len(info.IDs) <= t.cap {
		return nil
	}
	overflow := len(info.IDs) - t.cap
	removed := slices.Clone(info.IDs[:overflow])
	info.IDs = slices.Clone(info.IDs[overflow:])
	info.Cursor = info.IDs[0]
	info.IsLast = false
	return removed
}

// Delete drops a conversation's timeline entirely.
func (t *Timelines) Delete(conversationID string) {
	delete(t.m, conversationID)
}

// Clear drops every timeline.
func (t *Timelines) Clear() {
	t.m = make(map[string]*Timeline)
}
