package chat

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/mcoutinho/chatcore/internal/transport"
	"go.uber.org/zap"
)

// UploadFunc stages a message's media before the send, mutating the message
// with the uploaded location. nil means no staging step.
type UploadFunc func(ctx context.Context, msg *transport.Message) error

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// Send runs the optimistic send pipeline: the message is admitted to the
// registry and appended to its timeline in "sending" state before any
// network work, so the UI shows it immediately. Upload and transport
// failures demote it to "failed" in place and are not returned; only
// admission rejections surface as errors. The conversation summary is
// untouched until the server confirms.
//
// The returned snapshot carries the local id the caller can track the
// message by.
func (s *Store) Send(ctx context.Context, msg *transport.Message, upload UploadFunc) (*transport.Message, error) {
	if msg == nil || !msg.Kind.IsUserContent() {
		return nil, ErrNotUserContent
	}

	rec := msg.Clone()
	if rec.ID == "" {
		rec.ID = newLocalID()
	}
	if rec.From == "" {
		rec.From = s.me()
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = nowMillis()
	}
	rec.Status = transport.StatusSending
	normalizeMedia(rec)
	ref := s.conversationRef(rec)

	s.mu.Lock()
	s.registry.Put(rec)
	s.timelines.Append(ref.ID, rec.ID)
	snapshot := rec.Clone()
	s.mu.Unlock()
	s.publish(EventMessageUpserted, MessageChange{ConversationID: ref.ID, Message: snapshot})

	wire := snapshot.Clone()
	if upload != nil {
		if err := upload(ctx, wire); err != nil {
			return s.markSendFailed(ref.ID, rec.ID, "upload", err), nil
		}
	}

	res, err := s.conn.Send(ctx, wire)
	if err != nil {
		return s.markSendFailed(ref.ID, rec.ID, "send", err), nil
	}

	s.mu.Lock()
	confirmed := res.Message
	if confirmed == nil {
		confirmed = wire
	}
	mergeConfirmed(rec, confirmed)
	rec.ServerID = res.ServerID
	rec.Status = transport.StatusSent
	if rec.ServerID != "" && rec.ServerID != rec.ID {
		s.registry.Rekey(rec.ID, rec)
	}
	snapshot = rec.Clone()

	var reordered, created bool
	if ref.Type != transport.ChatRoom {
		conv := s.index.Get(ref)
		if conv == nil {
			conv = &Conversation{Ref: ref, Mention: MentionNone}
			s.index.Add(conv)
			created = true
		}
		conv.LastMessage = rec.Clone()
		s.index.MoveToFront(ref)
		s.index.Sort()
		reordered = true
	}
	s.mu.Unlock()

	if created {
		s.enrichNewPeer(ref)
	}
	s.publish(EventMessageStatus, MessageChange{ConversationID: ref.ID, Message: snapshot})
	if reordered {
		s.publish(EventConversationReordered, ConversationChange{Ref: ref})
	}
	return snapshot, nil
}

func (s *Store) markSendFailed(conversationID, messageID, stage string, cause error) *transport.Message {
	s.mu.Lock()
	s.registry.UpdateStatus(messageID, transport.StatusFailed)
	snapshot := s.registry.Get(messageID).Clone()
	s.mu.Unlock()
	s.log.Warn("send failed",
		zap.String("stage", stage),
		zap.String("message", messageID),
		zap.Error(cause))
	if snapshot != nil {
		s.publish(EventMessageStatus, MessageChange{ConversationID: conversationID, Message: snapshot})
	}
	return snapshot
}

// normalizeMedia lifts nested attachment fields to the top-level message
// fields so locally built messages match the server's flattened shape.
func normalizeMedia(m *transport.Message) {
	att := m.Attachment
	switch m.Kind {
	case transport.KindAudio:
		if att != nil {
			if m.URL == "" {
				m.URL = att.URL
			}
			if m.Length == 0 {
				m.Length = att.Length
			}
		}
	case transport.KindFile:
		if att != nil {
			if m.URL == "" {
				m.URL = att.URL
			}
			if m.Filename == "" {
				m.Filename = att.Filename
			}
			if m.FileLength == 0 {
				m.FileLength = att.FileLength
			}
		}
	case transport.KindVideo:
		if att != nil && m.URL == "" {
			m.URL = att.URL
		}
	case transport.KindImage:
		if m.Thumb == "" {
			m.Thumb = m.URL
		}
	}
}

// mergeConfirmed folds the server's echo of a sent message into the local
// record. The local id and locally staged image/video previews win; the
// server's timestamp and body win.
func mergeConfirmed(rec, confirmed *transport.Message) {
	localURL, localThumb := rec.URL, rec.Thumb
	id := rec.ID
	*rec = *confirmed.Clone()
	rec.ID = id
	if rec.Kind == transport.KindImage || rec.Kind == transport.KindVideo {
		if localURL != "" {
			rec.URL = localURL
		}
		if localThumb != "" {
			rec.Thumb = localThumb
		}
	}
}

// OnMessage ingests one inbound message. Duplicates are dropped without any
// side effect; a fresh message lands in its timeline, bumps the
// conversation (unread, mention, ordering) unless the conversation is the
// one currently viewed, and triggers eviction on inactive overflow.
func (s *Store) OnMessage(msg *transport.Message) {
	if msg == nil || !msg.Kind.IsUserContent() {
		return
	}
	rec := msg.Clone()
	if rec.ID == "" {
		rec.ID = rec.ServerID
	}
	if rec.ID == "" {
		s.log.Debug("dropping message without id")
		return
	}
	ref := s.conversationRef(rec)
	fromSelf := s.fromSelf(rec)

	s.mu.Lock()
	if !s.registry.Put(rec) {
		s.mu.Unlock()
		return
	}
	if rec.ServerID != "" && rec.ServerID != rec.ID {
		s.registry.Rekey(rec.ID, rec)
	}
	s.timelines.Append(ref.ID, rec.ID)
	active := s.isActiveLocked(ref)
	snapshot := rec.Clone()

	var convSnapshot *Conversation
	var created bool
	unreadDelta := 0
	if ref.Type != transport.ChatRoom {
		conv := s.index.Get(ref)
		if conv == nil {
			conv = &Conversation{Ref: ref, Mention: MentionNone}
			s.index.Add(conv)
			created = true
		}
		conv.LastMessage = rec.Clone()
		if !fromSelf && !active {
			conv.UnreadCount++
			unreadDelta = 1
			if flag := mentionFlagFor(rec, s.me()); flag != MentionNone && conv.Mention != MentionAll {
				conv.Mention = flag
			}
		}
		s.index.MoveToFront(ref)
		s.index.Sort()
		convSnapshot = conv.Clone()
	}
	s.mu.Unlock()

	if created {
		s.enrichNewPeer(ref)
	}
	s.publish(EventMessageUpserted, MessageChange{ConversationID: ref.ID, Message: snapshot})
	if convSnapshot != nil {
		s.publish(EventConversationReordered, ConversationChange{
			Ref:          ref,
			UnreadDelta:  unreadDelta,
			Conversation: convSnapshot,
		})
	}

	if active {
		s.MarkRead(context.Background(), ref)
	} else {
		s.mu.Lock()
		s.evictLocked(ref.ID)
		s.mu.Unlock()
	}
}

// mentionFlagFor classifies a text message's mention weight for the local
// user.
func mentionFlagFor(msg *transport.Message, me string) MentionFlag {
	if msg.Kind != transport.KindText {
		return MentionNone
	}
	if msg.MentionAll {
		return MentionAll
	}
	if slices.Contains(msg.Mentions, me) {
		return MentionMe
	}
	return MentionNone
}

// Recall retracts a previously sent message for all parties. Transport
// failures are returned untouched; on success the record stays in place,
// turned into a recall notice.
func (s *Store) Recall(ctx context.Context, messageID string) error {
	s.mu.RLock()
	rec := s.registry.Get(messageID)
	var (
		serverID string
		ref      transport.ConversationRef
	)
	if rec != nil {
		serverID = rec.ServerID
		if serverID == "" {
			serverID = rec.ID
		}
		ref = s.conversationRef(rec)
	}
	s.mu.RUnlock()
	if rec == nil {
		return ErrUnknownMessage
	}

	if err := s.conn.Recall(ctx, transport.RecallRequest{
		MessageID: serverID,
		To:        ref.ID,
		ChatType:  ref.Type,
	}); err != nil {
		return err
	}

	s.applyRecall(messageID, s.me(), ref, false)
	return nil
}

// OnRecall applies a recall pushed for another party's message. A recall
// for an id that was never retained locally is dropped whole, unread count
// included.
func (s *Store) OnRecall(ev transport.RecallEvent) {
	ref := s.conversationRef(&transport.Message{
		From:     ev.From,
		To:       ev.To,
		ChatType: ev.ChatType,
	})
	s.applyRecall(ev.MessageID, ev.From, ref, ev.From != s.me())
}

// applyRecall converts the record into a recall notice in place, preserving
// its id and timeline position, and swaps a matching conversation head for
// a synthetic notice message.
func (s *Store) applyRecall(messageID, actor string, ref transport.ConversationRef, decrementUnread bool) {
	s.mu.Lock()
	rec := s.registry.Get(messageID)
	if rec == nil {
		s.mu.Unlock()
		return
	}
	rec.Notice = &transport.NoticeInfo{Type: transport.NoticeRecall, From: actor}

	var convSnapshot *Conversation
	unreadDelta := 0
	conv := s.index.Get(ref)
	if conv != nil && ref.Type != transport.ChatRoom {
		if decrementUnread && conv.UnreadCount > 0 {
			conv.UnreadCount--
			unreadDelta = -1
		}
		if headMatches(conv.LastMessage, rec) {
			conv.LastMessage = &transport.Message{
				ID:        "notice-" + uuid.NewString(),
				ChatType:  ref.Type,
				From:      actor,
				To:        ref.ID,
				Kind:      transport.KindText,
				Timestamp: nowMillis(),
				Notice:    &transport.NoticeInfo{Type: transport.NoticeRecall, From: actor},
			}
		}
		convSnapshot = conv.Clone()
	}
	snapshot := rec.Clone()
	s.mu.Unlock()

	s.publish(EventMessageRecalled, MessageChange{ConversationID: ref.ID, Message: snapshot})
	if convSnapshot != nil {
		s.publish(EventConversationUpdated, ConversationChange{
			Ref:          ref,
			UnreadDelta:  unreadDelta,
			Conversation: convSnapshot,
		})
	}
}

func headMatches(head, rec *transport.Message) bool {
	if head == nil {
		return false
	}
	if head.ID == rec.ID {
		return true
	}
	return rec.ServerID != "" && (head.ID == rec.ServerID || head.ServerID == rec.ServerID)
}

// Modify replaces a sent message's content server-side and folds the merged
// result back into the local record. Messages the server never confirmed
// cannot be edited.
func (s *Store) Modify(ctx context.Context, messageID string, newContent *transport.Message) error {
	s.mu.RLock()
	rec := s.registry.Get(messageID)
	var serverID string
	if rec != nil {
		serverID = rec.ServerID
		if serverID == "" {
			switch rec.Status {
			case transport.StatusSending, transport.StatusFailed:
			default:
				serverID = rec.ID
			}
		}
	}
	s.mu.RUnlock()
	if rec == nil {
		return ErrUnknownMessage
	}
	if serverID == "" {
		return ErrNoServerID
	}

	merged, err := s.conn.ModifyMessage(ctx, serverID, newContent)
	if err != nil {
		return err
	}
	s.applyModified(messageID, merged)
	return nil
}

// OnModified applies an edit pushed by the server (the peer, or another
// device of the local user, edited the message).
func (s *Store) OnModified(ev transport.ModifiedEvent) {
	if ev.Message == nil {
		return
	}
	id := ev.Message.ID
	if id == "" {
		id = ev.Message.ServerID
	}
	s.applyModified(id, ev.Message)
}

func (s *Store) applyModified(messageID string, merged *transport.Message) {
	s.mu.Lock()
	rec := s.registry.Get(messageID)
	if rec == nil {
		s.mu.Unlock()
		s.log.Debug("modified event for unknown message", zap.String("message", messageID))
		return
	}
	id, serverID, status := rec.ID, rec.ServerID, rec.Status
	*rec = *merged.Clone()
	rec.ID = id
	if rec.ServerID == "" {
		rec.ServerID = serverID
	}
	if rec.Status == transport.StatusNone {
		rec.Status = status
	}
	ref := s.conversationRef(rec)
	snapshot := rec.Clone()

	var convSnapshot *Conversation
	if conv := s.index.Get(ref); conv != nil && headMatches(conv.LastMessage, rec) {
		conv.LastMessage = rec.Clone()
		convSnapshot = conv.Clone()
	}
	s.mu.Unlock()

	s.publish(EventMessageUpserted, MessageChange{ConversationID: ref.ID, Message: snapshot})
	if convSnapshot != nil {
		s.publish(EventConversationUpdated, ConversationChange{Ref: ref, Conversation: convSnapshot})
	}
}

// Delete removes a message from server history and from local state. A
// failed server deletion is logged and the local removal proceeds anyway; a
// head message leaves a nil last-message sentinel behind and the unread
// count is untouched.
func (s *Store) Delete(ctx context.Context, messageID string) error {
	s.mu.RLock()
	rec := s.registry.Get(messageID)
	var (
		serverID string
		ref      transport.ConversationRef
	)
	if rec != nil {
		serverID = rec.ServerID
		if serverID == "" {
			serverID = rec.ID
		}
		ref = s.conversationRef(rec)
	}
	s.mu.RUnlock()
	if rec == nil {
		return ErrUnknownMessage
	}

	if err := s.conn.RemoveHistoryMessages(ctx, ref, []string{serverID}); err != nil {
		s.log.Warn("server-side delete failed",
			zap.String("message", messageID),
			zap.Error(err))
	}

	s.mu.Lock()
	s.registry.Remove(rec.ID)
	if rec.ServerID != "" && rec.ServerID != rec.ID {
		s.registry.Remove(rec.ServerID)
	}
	s.timelines.Remove(ref.ID, rec.ID)

	var convSnapshot *Conversation
	if conv := s.index.Get(ref); conv != nil && headMatches(conv.LastMessage, rec) {
		conv.LastMessage = nil
		convSnapshot = conv.Clone()
	}
	s.mu.Unlock()

	s.publish(EventMessageDeleted, MessageChange{ConversationID: ref.ID, Message: rec.Clone()})
	if convSnapshot != nil {
		s.publish(EventConversationUpdated, ConversationChange{Ref: ref, Conversation: convSnapshot})
	}
	return nil
}

// FetchHistory pulls one older page into a conversation's timeline. A page
// already known to be the last is skipped. Fetch failures reset the
// pagination position so the next attempt starts from the newest page;
// they are absorbed, not returned. Fetched messages that are already
// retained are dropped by the dedup gate, so overlapping pages merge
// cleanly.
func (s *Store) FetchHistory(ctx context.Context, ref transport.ConversationRef) error {
	s.mu.RLock()
	cursor := ""
	if info := s.timelines.Get(ref.ID); info != nil {
		if info.HasFetchedHistory && info.IsLast {
			s.mu.RUnlock()
			return nil
		}
		cursor = info.Cursor
	}
	s.mu.RUnlock()

	page, err := s.conn.GetHistoryMessages(ctx, transport.HistoryRequest{
		TargetID: ref.ID,
		ChatType: ref.Type,
		PageSize: s.cfg.Limits.HistoryPageSize,
		Cursor:   cursor,
	})
	if err != nil {
		s.mu.Lock()
		info := s.timelines.ResetAfterFailure(ref.ID)
		s.mu.Unlock()
		s.log.Warn("history fetch failed",
			zap.String("conversation", ref.ID),
			zap.Error(err))
		if info != nil {
			s.publish(EventTimelineReset, TimelineChange{
				ConversationID: ref.ID,
				Cursor:         "",
				IsLast:         true,
			})
		}
		return nil
	}

	s.mu.Lock()
	var newIDs []string
	for _, msg := range page.Messages {
		rec := msg.Clone()
		if rec.ID == "" {
			rec.ID = rec.ServerID
		}
		if rec.ID == "" {
			continue
		}
		if !s.registry.Put(rec) {
			continue
		}
		if rec.ServerID != "" && rec.ServerID != rec.ID {
			s.registry.Rekey(rec.ID, rec)
		}
		newIDs = append(newIDs, rec.ID)
	}
	slices.Reverse(newIDs)
	s.timelines.Prepend(ref.ID, newIDs, page.Cursor, page.IsLast)
	if !s.isActiveLocked(ref) {
		s.evictLocked(ref.ID)
	}
	info := s.timelines.Get(ref.ID)
	change := TimelineChange{ConversationID: ref.ID, Cursor: info.Cursor, IsLast: info.IsLast}
	s.mu.Unlock()

	s.publish(EventTimelineReset, change)
	return nil
}

// OnChannelAck converges read state from a channel ack. An ack from another
// device of the local user clears the conversation's unread count without
// re-acking; an ack from the peer promotes every confirmed outbound message
// in the conversation to read.
func (s *Store) OnChannelAck(ev transport.ChannelAckEvent) {
	probe := &transport.Message{From: ev.From, To: ev.To, ChatType: ev.ChatType}
	ref := s.conversationRef(probe)

	if ev.From == s.me() {
		s.mu.Lock()
		conv := s.index.Get(ref)
		if conv == nil || (conv.UnreadCount == 0 && conv.Mention == MentionNone) {
			s.mu.Unlock()
			return
		}
		delta := -conv.UnreadCount
		conv.UnreadCount = 0
		conv.Mention = MentionNone
		snapshot := conv.Clone()
		s.mu.Unlock()
		s.publish(EventConversationUpdated, ConversationChange{
			Ref:          ref,
			UnreadDelta:  delta,
			Conversation: snapshot,
		})
		return
	}

	s.mu.Lock()
	var changed []*transport.Message
	if info := s.timelines.Get(ref.ID); info != nil {
		for _, id := range info.IDs {
			rec := s.registry.Get(id)
			if rec == nil || rec.From != s.me() {
				continue
			}
			switch rec.Status {
			case transport.StatusNone, transport.StatusFailed:
				continue
			}
			if s.registry.UpdateStatus(id, transport.StatusRead) {
				changed = append(changed, rec.Clone())
			}
		}
	}
	s.mu.Unlock()
	for _, snapshot := range changed {
		s.publish(EventMessageStatus, MessageChange{ConversationID: ref.ID, Message: snapshot})
	}
}

// OnReceipt applies a delivered or read receipt to one message. Receipts
// for unknown ids are dropped.
func (s *Store) OnReceipt(ev transport.ReceiptEvent) {
	target := transport.StatusDelivered
	if ev.Read {
		target = transport.StatusRead
	}

	s.mu.Lock()
	rec := s.registry.Get(ev.MessageID)
	if rec == nil {
		s.mu.Unlock()
		s.log.Debug("receipt for unknown message", zap.String("message", ev.MessageID))
		return
	}
	if !s.registry.UpdateStatus(rec.ID, target) {
		s.mu.Unlock()
		return
	}
	ref := s.conversationRef(rec)
	snapshot := rec.Clone()
	s.mu.Unlock()

	s.publish(EventMessageStatus, MessageChange{ConversationID: ref.ID, Message: snapshot})
}

// InsertNotice appends a synthetic system notice (for example a group
// membership change) to a conversation's timeline. Conversations with no
// timeline yet are left untouched; notices never count as unread and never
// reorder the index.
func (s *Store) InsertNotice(ref transport.ConversationRef, notice *transport.NoticeInfo) {
	rec := &transport.Message{
		ID:        "notice-" + uuid.NewString(),
		ChatType:  ref.Type,
		From:      notice.From,
		To:        ref.ID,
		Kind:      transport.KindText,
		Timestamp: nowMillis(),
		Notice:    notice,
	}

	s.mu.Lock()
	if !s.timelines.AppendExisting(ref.ID, rec.ID) {
		s.mu.Unlock()
		return
	}
	s.registry.Put(rec)
	var convSnapshot *Conversation
	if conv := s.index.Get(ref); conv != nil && ref.Type != transport.ChatRoom {
		conv.LastMessage = rec.Clone()
		convSnapshot = conv.Clone()
	}
	snapshot := rec.Clone()
	s.mu.Unlock()

	s.publish(EventMessageUpserted, MessageChange{ConversationID: ref.ID, Message: snapshot})
	if convSnapshot != nil {
		s.publish(EventConversationUpdated, ConversationChange{Ref: ref, Conversation: convSnapshot})
	}
}
