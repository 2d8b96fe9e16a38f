package transport

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotConnected is returned by calls issued before Open succeeds.
var ErrNotConnected = errors.New("transport: not connected")

// RequestError is a failure reported by the server for one request.
type RequestError struct {
	Op      string
	Code    int
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("transport: %s failed: %s (code %d)", e.Op, e.Message, e.Code)
}

// Credentials authenticate a session against the chat service.
type Credentials struct {
	UserID string
	Token  string
}

// Conn is the underlying chat transport. The engine issues calls through it
// and consumes push events from Events(); it never opens sockets or retries
// on its own. Implementations deliver each push event exactly once, in
// server order.
type Conn interface {
	// Open establishes the connection and authenticates.
	Open(ctx context.Context, creds Credentials) error
	// Close tears the connection down. Events() is closed afterwards.
	Close(ctx context.Context) error
	// UserID returns the authenticated user, empty before Open.
	UserID() string

	// Send delivers a message and returns the server-confirmed identity.
	Send(ctx context.Context, msg *Message) (*SendResult, error)
	// Recall retracts a message for all parties.
	Recall(ctx context.Context, req RecallRequest) error
	// ModifyMessage replaces a server message's content, returning the
	// merged message as the server now stores it.
	ModifyMessage(ctx context.Context, serverID string, newContent *Message) (*Message, error)
	// RemoveHistoryMessages deletes messages from durable server history.
	RemoveHistoryMessages(ctx context.Context, ref ConversationRef, messageIDs []string) error
	// GetHistoryMessages fetches one page of messages older than the cursor.
	GetHistoryMessages(ctx context.Context, req HistoryRequest) (*HistoryPage, error)

	// GetServerConversations fetches one page of the conversation list.
	GetServerConversations(ctx context.Context, req PageRequest) (*ConversationPage, error)
	// GetServerPinnedConversations fetches one page of pinned conversations.
	GetServerPinnedConversations(ctx context.Context, req PageRequest) (*ConversationPage, error)
	// PinConversation sets the pin state, returning the server pin time.
	PinConversation(ctx context.Context, ref ConversationRef, pinned bool) (int64, error)
	// SetConversationSilentMode mutes or unmutes a conversation server-side.
	SetConversationSilentMode(ctx context.Context, ref ConversationRef, mute bool) error
	// DeleteConversation removes a conversation, optionally its history too.
	DeleteConversation(ctx context.Context, ref ConversationRef, clearHistory bool) error

	// FetchUserInfo resolves user profiles.
	FetchUserInfo(ctx context.Context, userIDs []string) (map[string]UserInfo, error)
	// FetchPresence resolves current presence snapshots.
	FetchPresence(ctx context.Context, userIDs []string) ([]Presence, error)
	// SubscribePresence subscribes to presence changes for the given users.
	SubscribePresence(ctx context.Context, userIDs []string) error

	// Events returns the push event stream. Closed when the conn closes.
	Events() <-chan Event
}
