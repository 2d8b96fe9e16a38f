package chat

import (
	"context"

	"github.com/mcoutinho/chatcore/internal/config"
	"github.com/mcoutinho/chatcore/internal/transport"
)

// fakeConn is a scriptable transport.Conn. Unset hooks behave as cheap
// successes; Send confirms with a "srv-" prefixed server id.
type fakeConn struct {
	userID string

	sendFn       func(ctx context.Context, msg *transport.Message) (*transport.SendResult, error)
	recallFn     func(ctx context.Context, req transport.RecallRequest) error
	modifyFn     func(ctx context.Context, serverID string, newContent *transport.Message) (*transport.Message, error)
	removeFn     func(ctx context.Context, ref transport.ConversationRef, ids []string) error
	historyFn    func(ctx context.Context, req transport.HistoryRequest) (*transport.HistoryPage, error)
	listFn       func(ctx context.Context, req transport.PageRequest) (*transport.ConversationPage, error)
	pinnedListFn func(ctx context.Context, req transport.PageRequest) (*transport.ConversationPage, error)
	pinFn        func(ctx context.Context, ref transport.ConversationRef, pinned bool) (int64, error)
	silentFn     func(ctx context.Context, ref transport.ConversationRef, mute bool) error
	deleteConvFn func(ctx context.Context, ref transport.ConversationRef, clearHistory bool) error

	events chan transport.Event
}

func newFakeConn(userID string) *fakeConn {
	return &fakeConn{userID: userID, events: make(chan transport.Event, 16)}
}

func (f *fakeConn) Open(ctx context.Context, creds transport.Credentials) error { return nil }
func (f *fakeConn) Close(ctx context.Context) error                             { return nil }
func (f *fakeConn) UserID() string                                              { return f.userID }

func (f *fakeConn) Send(ctx context.Context, msg *transport.Message) (*transport.SendResult, error) {
	if f.sendFn != nil {
		return f.sendFn(ctx, msg)
	}
	return &transport.SendResult{ServerID: "srv-" + msg.ID}, nil
}

func (f *fakeConn) Recall(ctx context.Context, req transport.RecallRequest) error {
	if f.recallFn != nil {
		return f.recallFn(ctx, req)
	}
	return nil
}

func (f *fakeConn) ModifyMessage(ctx context.Context, serverID string, newContent *transport.Message) (*transport.Message, error) {
	if f.modifyFn != nil {
		return f.modifyFn(ctx, serverID, newContent)
	}
	out := newContent.Clone()
	out.ServerID = serverID
	return out, nil
}

func (f *fakeConn) RemoveHistoryMessages(ctx context.Context, ref transport.ConversationRef, ids []string) error {
	if f.removeFn != nil {
		return f.removeFn(ctx, ref, ids)
	}
	return nil
}

func (f *fakeConn) GetHistoryMessages(ctx context.Context, req transport.HistoryRequest) (*transport.HistoryPage, error) {
	if f.historyFn != nil {
		return f.historyFn(ctx, req)
	}
	return &transport.HistoryPage{IsLast: true}, nil
}

func (f *fakeConn) GetServerConversations(ctx context.Context, req transport.PageRequest) (*transport.ConversationPage, error) {
	if f.listFn != nil {
		return f.listFn(ctx, req)
	}
	return &transport.ConversationPage{}, nil
}

func (f *fakeConn) GetServerPinnedConversations(ctx context.Context, req transport.PageRequest) (*transport.ConversationPage, error) {
	if f.pinnedListFn != nil {
		return f.pinnedListFn(ctx, req)
	}
	return &transport.ConversationPage{}, nil
}

func (f *fakeConn) PinConversation(ctx context.Context, ref transport.ConversationRef, pinned bool) (int64, error) {
	if f.pinFn != nil {
		return f.pinFn(ctx, ref, pinned)
	}
	return 0, nil
}

func (f *fakeConn) SetConversationSilentMode(ctx context.Context, ref transport.ConversationRef, mute bool) error {
	if f.silentFn != nil {
		return f.silentFn(ctx, ref, mute)
	}
	return nil
}

func (f *fakeConn) DeleteConversation(ctx context.Context, ref transport.ConversationRef, clearHistory bool) error {
	if f.deleteConvFn != nil {
		return f.deleteConvFn(ctx, ref, clearHistory)
	}
	return nil
}

func (f *fakeConn) FetchUserInfo(ctx context.Context, userIDs []string) (map[string]transport.UserInfo, error) {
	return map[string]transport.UserInfo{}, nil
}

func (f *fakeConn) FetchPresence(ctx context.Context, userIDs []string) ([]transport.Presence, error) {
	return nil, nil
}

func (f *fakeConn) SubscribePresence(ctx context.Context, userIDs []string) error { return nil }

func (f *fakeConn) Events() <-chan transport.Event { return f.events }

func newTestStore(conn *fakeConn) *Store {
	return NewStore(conn, config.Default(), nil, nil, nil)
}

func inbound(id, from, to string) *transport.Message {
	return &transport.Message{
		ID:        id,
		ServerID:  id,
		ChatType:  transport.SingleChat,
		From:      from,
		To:        to,
		Kind:      transport.KindText,
		Body:      "hello",
		Timestamp: nowMillis(),
	}
}
