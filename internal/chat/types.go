package chat

import (
	"errors"

	"github.com/mcoutinho/chatcore/internal/transport"
)

// MentionFlag marks whether a conversation holds an unseen mention.
type MentionFlag string

const (
	MentionNone MentionFlag = "NONE"
	MentionAll  MentionFlag = "ALL"
	MentionMe   MentionFlag = "ME"
)

// Conversation is one entry of the conversation index. LastMessage nil is
// the empty sentinel left behind when the head message was deleted.
type Conversation struct {
	Ref         transport.ConversationRef
	LastMessage *transport.Message
	UnreadCount int
	IsPinned    bool
	PinnedTime  int64
	Muted       bool
	Mention     MentionFlag
}

// Clone returns a copy safe to hand to readers.
func (c *Conversation) Clone() *Conversation {
	cp := *c
	cp.LastMessage = c.LastMessage.Clone()
	return &cp
}

// Timeline is the ordered id list of one conversation plus its pagination
// position. IDs run oldest to newest.
type Timeline struct {
	IDs               []string
	Cursor            string
	IsLast            bool
	HasFetchedHistory bool
}

var (
	// ErrNotUserContent rejects send attempts of receipt/read/channel kinds.
	ErrNotUserContent = errors.New("chat: message kind is not user content")
	// ErrNoServerID rejects edits of messages the server never confirmed.
	ErrNoServerID = errors.New("chat: message has no server id")
	// ErrUnknownMessage reports an id the registry does not hold.
	ErrUnknownMessage = errors.New("chat: unknown message id")
	// ErrUnknownConversation reports a conversation the index does not hold.
	ErrUnknownConversation = errors.New("chat: unknown conversation")
)

// Bus event kinds published by the store.
const (
	EventConversationReordered = "conversation.reordered"
	EventConversationUpdated   = "conversation.updated"
	EventConversationRemoved   = "conversation.removed"
	EventMessageUpserted       = "message.upserted"
	EventMessageStatus         = "message.status"
	EventMessageRecalled       = "message.recalled"
	EventMessageDeleted        = "message.deleted"
	EventTimelineReset         = "timeline.reset"
)

// ConversationChange is the payload of conversation.* events.
type ConversationChange struct {
	Ref          transport.ConversationRef
	UnreadDelta  int
	Conversation *Conversation // snapshot after the change, nil on removal
}

// MessageChange is the payload of message.* events.
type MessageChange struct {
	ConversationID string
	Message        *transport.Message // snapshot after the change
}

// TimelineChange is the payload of timeline.* events.
type TimelineChange struct {
	ConversationID string
	Cursor         string
	IsLast         bool
}
