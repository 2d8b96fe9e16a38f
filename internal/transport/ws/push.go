package ws

import (
	"encoding/json"
	"fmt"

	"github.com/mcoutinho/chatcore/internal/transport"
)

type recallPush struct {
	MessageID string             `json:"message_id"`
	From      string             `json:"from"`
	To        string             `json:"to"`
	ChatType  transport.ChatType `json:"chat_type"`
}

type receiptPush struct {
	MessageID string `json:"message_id"`
	Read      bool   `json:"read"`
}

type channelAckPush struct {
	From     string             `json:"from"`
	To       string             `json:"to"`
	ChatType transport.ChatType `json:"chat_type"`
}

type messagePush struct {
	Message *transport.Message `json:"message"`
}

type multiDevicePush struct {
	Op        transport.MultiDeviceOp   `json:"op"`
	Ref       transport.ConversationRef `json:"ref"`
	Timestamp int64                     `json:"timestamp"`
}

type contactPush struct {
	Op   transport.ContactOp `json:"op"`
	From string              `json:"from"`
}

type presencePush struct {
	Entries []transport.Presence `json:"entries"`
}

type groupPush struct {
	GroupID   string `json:"group_id"`
	From      string `json:"from"`
	Operation string `json:"operation"`
	Timestamp int64  `json:"timestamp"`
}

// decodePush turns a validated push frame into a typed transport event.
func decodePush(kind string, data json.RawMessage) (transport.Event, error) {
	switch kind {
	case pushMessage:
		var p messagePush
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		if p.Message == nil {
			return nil, fmt.Errorf("message push without message")
		}
		return transport.MessageEvent{Message: p.Message}, nil
	case pushRecall:
		var p recallPush
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return transport.RecallEvent(p), nil
	case pushReceipt:
		var p receiptPush
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return transport.ReceiptEvent(p), nil
	case pushChannelAck:
		var p channelAckPush
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return transport.ChannelAckEvent(p), nil
	case pushModified:
		var p messagePush
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		if p.Message == nil {
			return nil, fmt.Errorf("modified push without message")
		}
		return transport.ModifiedEvent{Message: p.Message}, nil
	case pushMultiDevice:
		var p multiDevicePush
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return transport.MultiDeviceEvent(p), nil
	case pushContact:
		var p contactPush
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return transport.ContactEvent(p), nil
	case pushPresence:
		var p presencePush
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return transport.PresenceEvent{Entries: p.Entries}, nil
	case pushGroup:
		var p groupPush
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return transport.GroupEvent(p), nil
	default:
		return nil, fmt.Errorf("unknown push kind %q", kind)
	}
}
