package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/mcoutinho/chatcore/internal/transport"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Client is the websocket implementation of transport.Conn. Requests are
// correlated to responses by frame id; pushes are schema-validated and
// decoded into typed events on a single reader goroutine, which preserves
// server ordering.
type Client struct {
	url    string
	log    *zap.Logger
	schema *jsonschema.Schema

	mu      sync.Mutex
	conn    *websocket.Conn
	userID  string
	nextID  uint64
	pending map[uint64]chan *frame

	events chan transport.Event
}

// NewClient prepares a client for the given websocket URL. The connection
// is established by Open.
func NewClient(url string, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	sch, err := newPushValidator()
	if err != nil {
		return nil, err
	}
	return &Client{
		url:     url,
		log:     logger,
		schema:  sch,
		pending: make(map[uint64]chan *frame),
		events:  make(chan transport.Event, 64),
	}, nil
}

type loginRequest struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

type loginResponse struct {
	UserID string `json:"user_id"`
}

// Open dials the server, starts the reader and authenticates.
func (c *Client) Open(ctx context.Context, creds transport.Credentials) error {
	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return err
	}
	conn.SetReadLimit(1 << 22)

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	go c.readLoop(conn)

	var resp loginResponse
	if err := c.call(ctx, opLogin, loginRequest{UserID: creds.UserID, Token: creds.Token}, &resp); err != nil {
		conn.Close(websocket.StatusPolicyViolation, "login failed")
		return err
	}
	c.mu.Lock()
	c.userID = resp.UserID
	c.mu.Unlock()

	c.events <- transport.ConnStateEvent{State: transport.ConnConnected}
	return nil
}

// Close tears the connection down. The event channel closes once the reader
// drains.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close(websocket.StatusNormalClosure, "client closing")
}

func (c *Client) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *Client) Events() <-chan transport.Event {
	return c.events
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(context.Background())
		if err != nil {
			break
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.log.Warn("undecodable frame", zap.Error(err))
			continue
		}
		if f.isPush() {
			if err := validatePush(c.schema, data); err != nil {
				c.log.Warn("dropping invalid push", zap.String("kind", f.Push), zap.Error(err))
				continue
			}
			ev, err := decodePush(f.Push, f.Data)
			if err != nil {
				c.log.Warn("dropping undecodable push", zap.String("kind", f.Push), zap.Error(err))
				continue
			}
			c.events <- ev
			continue
		}

		c.mu.Lock()
		ch := c.pending[f.ID]
		c.mu.Unlock()
		if ch == nil {
			c.log.Debug("response for unknown request", zap.Uint64("id", f.ID))
			continue
		}
		ch <- &f
	}

	// fail every in-flight call, then end the stream
	c.mu.Lock()
	for id, ch := range c.pending {
		ch <- &frame{ID: id, Error: &frameError{Code: -1, Message: "connection closed"}}
		delete(c.pending, id)
	}
	c.conn = nil
	c.mu.Unlock()

	c.events <- transport.ConnStateEvent{State: transport.ConnDisconnected}
	close(c.events)
}

// call issues one request frame and blocks for its response or ctx.
func (c *Client) call(ctx context.Context, op string, in, out any) error {
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return transport.ErrNotConnected
	}
	c.nextID++
	id := c.nextID
	ch := make(chan *frame, 1)
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	f, err := encodeFrame(id, op, in)
	if err != nil {
		return err
	}
	if err := wsjson.Write(ctx, conn, f); err != nil {
		return err
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return &transport.RequestError{Op: op, Code: resp.Error.Code, Message: resp.Error.Message}
		}
		if out != nil && len(resp.Data) > 0 {
			return json.Unmarshal(resp.Data, out)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) Send(ctx context.Context, msg *transport.Message) (*transport.SendResult, error) {
	var res transport.SendResult
	if err := c.call(ctx, opSend, msg, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Recall(ctx context.Context, req transport.RecallRequest) error {
	return c.call(ctx, opRecall, req, nil)
}

type modifyRequest struct {
	ServerID string             `json:"server_id"`
	Message  *transport.Message `json:"message"`
}

type modifyResponse struct {
	Message *transport.Message `json:"message"`
}

func (c *Client) ModifyMessage(ctx context.Context, serverID string, newContent *transport.Message) (*transport.Message, error) {
	var res modifyResponse
	err := c.call(ctx, opModify, modifyRequest{ServerID: serverID, Message: newContent}, &res)
	if err != nil {
		return nil, err
	}
	return res.Message, nil
}

type removeHistoryRequest struct {
	Ref        transport.ConversationRef `json:"ref"`
	MessageIDs []string                  `json:"message_ids"`
}

func (c *Client) RemoveHistoryMessages(ctx context.Context, ref transport.ConversationRef, messageIDs []string) error {
	return c.call(ctx, opRemoveHistory, removeHistoryRequest{Ref: ref, MessageIDs: messageIDs}, nil)
}

func (c *Client) GetHistoryMessages(ctx context.Context, req transport.HistoryRequest) (*transport.HistoryPage, error) {
	var page transport.HistoryPage
	if err := c.call(ctx, opHistory, req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetServerConversations(ctx context.Context, req transport.PageRequest) (*transport.ConversationPage, error) {
	var page transport.ConversationPage
	if err := c.call(ctx, opConversationList, req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetServerPinnedConversations(ctx context.Context, req transport.PageRequest) (*transport.ConversationPage, error) {
	var page transport.ConversationPage
	if err := c.call(ctx, opConversationPinned, req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

type pinRequest struct {
	Ref    transport.ConversationRef `json:"ref"`
	Pinned bool                      `json:"pinned"`
}

type pinResponse struct {
	PinnedTime int64 `json:"pinned_time"`
}

func (c *Client) PinConversation(ctx context.Context, ref transport.ConversationRef, pinned bool) (int64, error) {
	var res pinResponse
	if err := c.call(ctx, opPin, pinRequest{Ref: ref, Pinned: pinned}, &res); err != nil {
		return 0, err
	}
	return res.PinnedTime, nil
}

type silentModeRequest struct {
	Ref  transport.ConversationRef `json:"ref"`
	Mute bool                      `json:"mute"`
}

func (c *Client) SetConversationSilentMode(ctx context.Context, ref transport.ConversationRef, mute bool) error {
	return c.call(ctx, opSilentMode, silentModeRequest{Ref: ref, Mute: mute}, nil)
}

type deleteConversationRequest struct {
	Ref          transport.ConversationRef `json:"ref"`
	ClearHistory bool                      `json:"clear_history"`
}

func (c *Client) DeleteConversation(ctx context.Context, ref transport.ConversationRef, clearHistory bool) error {
	return c.call(ctx, opDeleteConversation, deleteConversationRequest{Ref: ref, ClearHistory: clearHistory}, nil)
}

type userIDsRequest struct {
	UserIDs []string `json:"user_ids"`
}

type userInfoResponse struct {
	Users map[string]transport.UserInfo `json:"users"`
}

func (c *Client) FetchUserInfo(ctx context.Context, userIDs []string) (map[string]transport.UserInfo, error) {
	var res userInfoResponse
	if err := c.call(ctx, opUserInfo, userIDsRequest{UserIDs: userIDs}, &res); err != nil {
		return nil, err
	}
	return res.Users, nil
}

type presenceResponse struct {
	Entries []transport.Presence `json:"entries"`
}

func (c *Client) FetchPresence(ctx context.Context, userIDs []string) ([]transport.Presence, error) {
	var res presenceResponse
	if err := c.call(ctx, opPresence, userIDsRequest{UserIDs: userIDs}, &res); err != nil {
		return nil, err
	}
	return res.Entries, nil
}

func (c *Client) SubscribePresence(ctx context.Context, userIDs []string) error {
	return c.call(ctx, opSubscribePresence, userIDsRequest{UserIDs: userIDs}, nil)
}
