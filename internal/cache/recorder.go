package cache

import (
	"sync"

	"github.com/mcoutinho/chatcore/internal/bus"
	"github.com/mcoutinho/chatcore/internal/chat"
	"github.com/mcoutinho/chatcore/internal/config"
	"github.com/mcoutinho/chatcore/internal/transport"
	"go.uber.org/zap"
)

// Recorder keeps the snapshot cache in sync with the in-memory store by
// consuming the store's committed-mutation events off the bus. Persistence
// is best effort: a write failure is logged, never propagated, because the
// cache only exists to warm the next start.
type Recorder struct {
	db    *DB
	store *chat.Store
	bus   *bus.Bus
	cfg   *config.Config
	log   *zap.Logger

	wg     sync.WaitGroup
	unsubs []func()
}

// NewRecorder wires a recorder. Start must be called to begin persisting.
func NewRecorder(db *DB, store *chat.Store, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return &Recorder{db: db, store: store, bus: b, cfg: cfg, log: logger}
}

// Load returns the persisted snapshot for chat.Store.Restore.
func (r *Recorder) Load() ([]*chat.Conversation, map[string][]*transport.Message, error) {
	convs, err := r.db.LoadConversations()
	if err != nil {
		return nil, nil, err
	}
	messages := make(map[string][]*transport.Message, len(convs))
	for _, c := range convs {
		msgs, err := r.db.LoadMessages(c.Ref.ID, r.cfg.Limits.MaxMessagesPerConversation)
		if err != nil {
			return nil, nil, err
		}
		if len(msgs) > 0 {
			messages[c.Ref.ID] = msgs
		}
	}
	return convs, messages, nil
}

// Start subscribes to the store's event namespaces and begins persisting.
func (r *Recorder) Start() {
	convCh, unsubConv := r.bus.Subscribe("conversation.", 256)
	msgCh, unsubMsg := r.bus.Subscribe("message.", 256)
	r.unsubs = append(r.unsubs, unsubConv, unsubMsg)

	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		for evt := range convCh {
			r.onConversationEvent(evt)
		}
	}()
	go func() {
		defer r.wg.Done()
		for evt := range msgCh {
			r.onMessageEvent(evt)
		}
	}()
}

// Stop unsubscribes and waits for in-flight writes.
func (r *Recorder) Stop() {
	for _, unsub := range r.unsubs {
		unsub()
	}
	r.unsubs = nil
	r.wg.Wait()
}

func (r *Recorder) onConversationEvent(evt bus.Event) {
	change, ok := evt.Payload.(chat.ConversationChange)
	if !ok {
		return
	}
	switch evt.Kind {
	case chat.EventConversationRemoved:
		if err := r.db.DeleteConversation(change.Ref); err != nil {
			r.log.Warn("cache delete failed", zap.String("conversation", change.Ref.ID), zap.Error(err))
		}
	case chat.EventConversationUpdated:
		if change.Conversation == nil {
			return
		}
		if err := r.db.UpsertConversation(change.Conversation); err != nil {
			r.log.Warn("cache upsert failed", zap.String("conversation", change.Ref.ID), zap.Error(err))
		}
	case chat.EventConversationReordered:
		// bulk change; re-sync the whole index
		for _, c := range r.store.Conversations() {
			if err := r.db.UpsertConversation(c); err != nil {
				r.log.Warn("cache sync failed", zap.String("conversation", c.Ref.ID), zap.Error(err))
				return
			}
		}
	}
}

func (r *Recorder) onMessageEvent(evt bus.Event) {
	change, ok := evt.Payload.(chat.MessageChange)
	if !ok || change.Message == nil {
		return
	}
	switch evt.Kind {
	case chat.EventMessageDeleted:
		if err := r.db.DeleteMessage(change.ConversationID, change.Message.ID); err != nil {
			r.log.Warn("cache delete failed", zap.String("message", change.Message.ID), zap.Error(err))
		}
	default:
		if err := r.db.UpsertMessage(change.ConversationID, change.Message); err != nil {
			r.log.Warn("cache upsert failed", zap.String("message", change.Message.ID), zap.Error(err))
			return
		}
		if err := r.db.TrimMessages(change.ConversationID, r.cfg.Limits.MaxMessagesPerConversation); err != nil {
			r.log.Warn("cache trim failed", zap.String("conversation", change.ConversationID), zap.Error(err))
		}
	}
}
