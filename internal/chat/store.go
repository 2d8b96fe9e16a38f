package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcoutinho/chatcore/internal/bus"
	"github.com/mcoutinho/chatcore/internal/config"
	"github.com/mcoutinho/chatcore/internal/transport"
	"go.uber.org/zap"
)

// UserEnricher resolves user profiles in the background. The store fires it
// and forgets; failures stay inside the enricher.
type UserEnricher interface {
	Ensure(ctx context.Context, userIDs []string)
}

// Store is the reconciliation engine root: it owns the dedup registry, the
// conversation index and the per-conversation timelines, and runs every
// send/receive/recall/edit/delete pipeline over them. One Store exists per
// session; it is created at session start and torn down at logout.
//
// All mutation is serialized behind one lock, so a batched mutation touching
// several structures is a single observable unit. Network calls run outside
// the lock; other events may interleave between a call's issuance and its
// resumption.
type Store struct {
	mu   sync.RWMutex
	conn transport.Conn
	cfg  *config.Config
	bus  *bus.Bus
	log  *zap.Logger

	enricher UserEnricher

	registry  *Registry
	timelines *Timelines
	index     *Index

	active *transport.ConversationRef

	convCursor string
	pinCursor  string
}

// NewStore wires a store against its collaborators. enricher may be nil.
func NewStore(conn transport.Conn, cfg *config.Config, b *bus.Bus, logger *zap.Logger, enricher UserEnricher) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return &Store{
		conn:      conn,
		cfg:       cfg,
		bus:       b,
		log:       logger,
		enricher:  enricher,
		registry:  NewRegistry(),
		timelines: NewTimelines(cfg.Limits.MaxMessagesPerConversation),
		index:     NewIndex(),
	}
}

func (s *Store) publish(kind string, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

// me returns the authenticated local user id.
func (s *Store) me() string {
	if s.conn == nil {
		return ""
	}
	return s.conn.UserID()
}

// fromSelf reports whether the message originated from the local user. An
// empty sender covers system-originated sends.
func (s *Store) fromSelf(msg *transport.Message) bool {
	return msg.From == s.me() || msg.From == ""
}

// conversationRef resolves the conversation a message belongs to: group and
// room traffic keys on the target id; direct traffic keys on the remote
// peer.
func (s *Store) conversationRef(msg *transport.Message) transport.ConversationRef {
	if msg.ChatType == transport.GroupChat || msg.ChatType == transport.ChatRoom {
		return transport.ConversationRef{ID: msg.To, Type: msg.ChatType}
	}
	if s.fromSelf(msg) {
		return transport.ConversationRef{ID: msg.To, Type: msg.ChatType}
	}
	return transport.ConversationRef{ID: msg.From, Type: msg.ChatType}
}

func newLocalID() string {
	return "local-" + uuid.NewString()
}

// SetActiveConversation records which conversation the user is viewing.
// Entering a conversation clears its mention badge; leaving one lets the
// eviction controller trim it. Pass nil when no conversation is open.
func (s *Store) SetActiveConversation(ref *transport.ConversationRef) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.active
	s.active = nil
	if prev != nil && (ref == nil || *prev != *ref) {
		s.evictLocked(prev.ID)
	}
	if ref == nil {
		return
	}
	r := *ref
	s.active = &r
	if conv := s.index.Get(r); conv != nil && conv.Mention != MentionNone {
		conv.Mention = MentionNone
		s.publish(EventConversationUpdated, ConversationChange{Ref: r, Conversation: conv.Clone()})
	}
}

// ActiveConversation returns the currently viewed conversation, or nil.
func (s *Store) ActiveConversation() *transport.ConversationRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return nil
	}
	r := *s.active
	return &r
}

func (s *Store) isActiveLocked(ref transport.ConversationRef) bool {
	return s.active != nil && *s.active == ref
}

// Conversations returns the ordered conversation summaries as snapshots.
func (s *Store) Conversations() []*Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Conversation, 0, s.index.Len())
	for _, c := range s.index.List() {
		out = append(out, c.Clone())
	}
	return out
}

// Conversation returns a snapshot of one summary.
func (s *Store) Conversation(ref transport.ConversationRef) (*Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.index.Get(ref)
	if c == nil {
		return nil, false
	}
	return c.Clone(), true
}

// TotalUnread sums unread counts across non-muted conversations.
func (s *Store) TotalUnread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.TotalUnread()
}

// Message returns a snapshot of the record stored under id.
func (s *Store) Message(id string) (*transport.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg := s.registry.Get(id)
	if msg == nil {
		return nil, false
	}
	return msg.Clone(), true
}

// Messages returns snapshots of a conversation's retained messages, oldest
// first.
func (s *Store) Messages(conversationID string) []*transport.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := s.timelines.Get(conversationID)
	if info == nil {
		return nil
	}
	out := make([]*transport.Message, 0, len(info.IDs))
	for _, id := range info.IDs {
		if msg := s.registry.Get(id); msg != nil {
			out = append(out, msg.Clone())
		}
	}
	return out
}

// TimelineState returns a copy of a conversation's pagination state.
func (s *Store) TimelineState(conversationID string) (Timeline, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := s.timelines.Get(conversationID)
	if info == nil {
		return Timeline{}, false
	}
	cp := *info
	cp.IDs = append([]string(nil), info.IDs...)
	return cp, true
}

// Restore seeds the store from a durable snapshot before the first server
// fetch. Restored timelines are marked as never having fetched history so
// the next open pulls a fresh page.
func (s *Store) Restore(convs []*Conversation, messages map[string][]*transport.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range convs {
		if s.index.Get(c.Ref) != nil {
			continue
		}
		s.index.Add(c.Clone())
	}
	for convID, msgs := range messages {
		for _, msg := range msgs {
			rec := msg.Clone()
			if !s.registry.Put(rec) {
				continue
			}
			if rec.ServerID != "" && rec.ServerID != rec.ID {
				s.registry.Rekey(rec.ID, rec)
			}
			s.timelines.Append(convID, rec.ID)
		}
	}
	s.index.Sort()
	s.publish(EventConversationReordered, ConversationChange{})
}

// Clear wipes every structure. Called at logout; the store is never
// implicitly repopulated afterwards.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.registry.Clear()
	s.timelines.Clear()
	s.index.Clear()
	s.active = nil
	s.convCursor = ""
	s.pinCursor = ""
	s.publish(EventConversationReordered, ConversationChange{})
}

// evictLocked trims an inactive conversation to the retention cap and drops
// the evicted records (and their server-id aliases) from the registry.
func (s *Store) evictLocked(conversationID string) {
	if s.active != nil && s.active.ID == conversationID {
		return
	}
	removed := s.timelines.Evict(conversationID)
	if len(removed) == 0 {
		return
	}
	for _, id := range removed {
		msg := s.registry.Get(id)
		s.registry.Remove(id)
		if msg != nil && msg.ServerID != "" && msg.ServerID != id {
			s.registry.Remove(msg.ServerID)
		}
	}
	s.log.Info("evicted messages",
		zap.String("conversation", conversationID),
		zap.Int("count", len(removed)))
}
