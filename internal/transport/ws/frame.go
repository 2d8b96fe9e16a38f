package ws

import (
	"encoding/json"
	"fmt"
)

// frame is the single wire envelope. A request carries ID+Op+Data; the
// matching response echoes the ID with Data or Error; a server push carries
// Push+Data and no ID.
type frame struct {
	ID    uint64          `json:"id,omitempty"`
	Op    string          `json:"op,omitempty"`
	Push  string          `json:"push,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *frameError     `json:"error,omitempty"`
}

type frameError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (f *frame) isPush() bool { return f.Push != "" }

// Request operations.
const (
	opLogin              = "auth.login"
	opSend               = "message.send"
	opRecall             = "message.recall"
	opModify             = "message.modify"
	opRemoveHistory      = "message.removeHistory"
	opHistory            = "history.fetch"
	opConversationList   = "conversation.list"
	opConversationPinned = "conversation.pinnedList"
	opPin                = "conversation.pin"
	opSilentMode         = "conversation.silentMode"
	opDeleteConversation = "conversation.delete"
	opUserInfo           = "user.info"
	opPresence           = "user.presence"
	opSubscribePresence  = "user.subscribePresence"
)

// Push kinds.
const (
	pushMessage     = "message"
	pushRecall      = "recall"
	pushReceipt     = "receipt"
	pushChannelAck  = "channelAck"
	pushModified    = "modified"
	pushMultiDevice = "multiDevice"
	pushContact     = "contact"
	pushPresence    = "presence"
	pushGroup       = "group"
)

func encodeFrame(id uint64, op string, payload any) (*frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", op, err)
	}
	return &frame{ID: id, Op: op, Data: data}, nil
}
