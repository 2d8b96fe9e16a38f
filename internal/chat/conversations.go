package chat

import (
	"context"
	"time"

	"github.com/mcoutinho/chatcore/internal/transport"
	"go.uber.org/zap"
)

// FetchServerConversations pulls the full server-side conversation list into
// the index, page by page until the cursor is exhausted. Pinned
// conversations are fetched first when the feature is enabled so their pin
// state lands before the regular listing merges over it. Locally-held unread
// counts and mention flags survive the merge.
func (s *Store) FetchServerConversations(ctx context.Context) error {
	if s.cfg.Features.FetchPinnedConversations {
		if err := s.fetchConversationPages(ctx, true); err != nil {
			return err
		}
	}
	return s.fetchConversationPages(ctx, false)
}

func (s *Store) fetchConversationPages(ctx context.Context, pinned bool) error {
	for {
		s.mu.Lock()
		cursor := s.convCursor
		if pinned {
			cursor = s.pinCursor
		}
		req := transport.PageRequest{
			PageSize: s.cfg.Limits.ConversationPageSize,
			Cursor:   cursor,
		}
		s.mu.Unlock()

		var (
			page *transport.ConversationPage
			err  error
		)
		if pinned {
			page, err = s.conn.GetServerPinnedConversations(ctx, req)
		} else {
			page, err = s.conn.GetServerConversations(ctx, req)
		}
		if err != nil {
			return err
		}

		s.mu.Lock()
		s.index.Merge(page.Conversations)
		s.index.Sort()
		if pinned {
			s.pinCursor = page.Cursor
		} else {
			s.convCursor = page.Cursor
		}
		s.mu.Unlock()
		s.publish(EventConversationReordered, ConversationChange{})

		s.enrichConversationPeers(ctx, page.Conversations)

		if page.Cursor == "" {
			return nil
		}
	}
}

// enrichConversationPeers hands the direct-chat peers of a fetched batch to
// the user enricher.
func (s *Store) enrichConversationPeers(ctx context.Context, items []*transport.ConversationItem) {
	if s.enricher == nil {
		return
	}
	var ids []string
	for _, item := range items {
		if item.Ref.Type == transport.SingleChat {
			ids = append(ids, item.Ref.ID)
		}
	}
	if len(ids) > 0 {
		s.enricher.Ensure(ctx, ids)
	}
}

// enrichNewPeer prefetches profile data for the peer of a freshly
// materialized direct conversation.
func (s *Store) enrichNewPeer(ref transport.ConversationRef) {
	if s.enricher == nil || ref.Type != transport.SingleChat {
		return
	}
	s.enricher.Ensure(context.Background(), []string{ref.ID})
}

// MarkRead clears a conversation's unread count and mention flag and
// acknowledges the read position to the other side. The ack is
// fire-and-forget; a failed ack leaves the local clear in place.
func (s *Store) MarkRead(ctx context.Context, ref transport.ConversationRef) {
	s.mu.Lock()
	conv := s.index.Get(ref)
	if conv == nil {
		s.mu.Unlock()
		return
	}
	changed := conv.UnreadCount != 0 || conv.Mention != MentionNone
	delta := -conv.UnreadCount
	conv.UnreadCount = 0
	conv.Mention = MentionNone
	snapshot := conv.Clone()
	s.mu.Unlock()

	if changed {
		s.publish(EventConversationUpdated, ConversationChange{
			Ref:          ref,
			UnreadDelta:  delta,
			Conversation: snapshot,
		})
	}
	if ref.Type != transport.ChatRoom {
		go s.sendReadAck(ref)
	}
}

// sendReadAck pushes a channel ack so other devices and the peer converge on
// the read position. Errors are logged and dropped.
func (s *Store) sendReadAck(ref transport.ConversationRef) {
	ack := &transport.Message{
		ID:       newLocalID(),
		ChatType: ref.Type,
		From:     s.me(),
		To:       ref.ID,
		Kind:     transport.KindChannel,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := s.conn.Send(ctx, ack); err != nil {
		s.log.Debug("read ack failed",
			zap.String("conversation", ref.ID),
			zap.Error(err))
	}
}

// Pin sets or clears a conversation's pin server-side, then mirrors the
// confirmed state locally and re-sorts. A missing local summary is created
// so a pin survives even before the conversation has traffic.
func (s *Store) Pin(ctx context.Context, ref transport.ConversationRef, pinned bool) error {
	pinnedTime, err := s.conn.PinConversation(ctx, ref, pinned)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.applyPinLocked(ref, pinned, pinnedTime)
	s.mu.Unlock()
	s.publish(EventConversationReordered, ConversationChange{Ref: ref})
	return nil
}

func (s *Store) applyPinLocked(ref transport.ConversationRef, pinned bool, pinnedTime int64) {
	conv := s.index.Get(ref)
	if conv == nil {
		conv = &Conversation{Ref: ref, Mention: MentionNone}
		s.index.Add(conv)
	}
	conv.IsPinned = pinned
	if pinned {
		conv.PinnedTime = pinnedTime
	} else {
		conv.PinnedTime = 0
	}
	s.index.Sort()
}

// SetSilentMode mutes or unmutes a conversation the index holds. The
// server is updated first; the local flag only flips on success.
func (s *Store) SetSilentMode(ctx context.Context, ref transport.ConversationRef, mute bool) error {
	s.mu.RLock()
	known := s.index.Get(ref) != nil
	s.mu.RUnlock()
	if !known {
		return ErrUnknownConversation
	}

	if err := s.conn.SetConversationSilentMode(ctx, ref, mute); err != nil {
		return err
	}

	s.mu.Lock()
	conv := s.index.Get(ref)
	if conv == nil {
		s.mu.Unlock()
		return ErrUnknownConversation
	}
	conv.Muted = mute
	snapshot := conv.Clone()
	s.mu.Unlock()
	s.publish(EventConversationUpdated, ConversationChange{Ref: ref, Conversation: snapshot})
	return nil
}

// DeleteConversation removes a conversation server-side and then locally,
// dropping its summary, timeline and retained messages.
func (s *Store) DeleteConversation(ctx context.Context, ref transport.ConversationRef, clearHistory bool) error {
	if err := s.conn.DeleteConversation(ctx, ref, clearHistory); err != nil {
		return err
	}
	s.RemoveLocalConversation(ref)
	return nil
}

// RemoveLocalConversation drops a conversation from local state without
// touching the server. Used for multi-device replay and server-initiated
// removals.
func (s *Store) RemoveLocalConversation(ref transport.ConversationRef) {
	s.mu.Lock()
	removed := s.dropConversationLocked(ref)
	s.mu.Unlock()
	if removed {
		s.publish(EventConversationRemoved, ConversationChange{Ref: ref})
	}
}

func (s *Store) dropConversationLocked(ref transport.ConversationRef) bool {
	if info := s.timelines.Get(ref.ID); info != nil {
		for _, id := range info.IDs {
			msg := s.registry.Get(id)
			s.registry.Remove(id)
			if msg != nil && msg.ServerID != "" && msg.ServerID != id {
				s.registry.Remove(msg.ServerID)
			}
		}
	}
	s.timelines.Delete(ref.ID)
	if s.active != nil && *s.active == ref {
		s.active = nil
	}
	return s.index.Remove(ref)
}

// ApplyMultiDeviceOp replays a conversation operation performed on another
// device of the same account, converging local state without re-issuing the
// server call.
func (s *Store) ApplyMultiDeviceOp(ev transport.MultiDeviceEvent) {
	switch ev.Op {
	case transport.MultiDevicePin:
		s.mu.Lock()
		s.applyPinLocked(ev.Ref, true, ev.Timestamp)
		s.mu.Unlock()
		s.publish(EventConversationReordered, ConversationChange{Ref: ev.Ref})
	case transport.MultiDeviceUnpin:
		s.mu.Lock()
		s.applyPinLocked(ev.Ref, false, 0)
		s.mu.Unlock()
		s.publish(EventConversationReordered, ConversationChange{Ref: ev.Ref})
	case transport.MultiDeviceMute, transport.MultiDeviceUnmute:
		mute := ev.Op == transport.MultiDeviceMute
		s.mu.Lock()
		conv := s.index.Get(ev.Ref)
		if conv == nil {
			s.mu.Unlock()
			return
		}
		conv.Muted = mute
		snapshot := conv.Clone()
		s.mu.Unlock()
		s.publish(EventConversationUpdated, ConversationChange{Ref: ev.Ref, Conversation: snapshot})
	case transport.MultiDeviceDeleteConversation:
		s.RemoveLocalConversation(ev.Ref)
	default:
		s.log.Debug("ignoring multi-device op", zap.String("op", string(ev.Op)))
	}
}
