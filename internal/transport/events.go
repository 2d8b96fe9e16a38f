package transport

// Event is one push event delivered by the transport. The set of variants is
// closed; payloads are validated at the transport boundary before they reach
// the engine.
type Event interface {
	isEvent()
}

// MessageEvent is an inbound user-content message (text/image/audio/video/
// file/custom).
type MessageEvent struct {
	Message *Message
}

// RecallEvent is a notice that another party retracted a message.
type RecallEvent struct {
	MessageID string
	From      string
	To        string
	ChatType  ChatType
}

// ReceiptEvent is a delivered or read receipt for one message.
type ReceiptEvent struct {
	MessageID string
	Read      bool // false = delivered
}

// ChannelAckEvent is a read-sync signal: the peer (or another device of the
// local user) read everything in the conversation.
type ChannelAckEvent struct {
	From     string
	To       string
	ChatType ChatType
}

// ModifiedEvent carries the new content of an edited message.
type ModifiedEvent struct {
	Message *Message
}

// MultiDeviceOp enumerates conversation operations replayed from the local
// user's other devices.
type MultiDeviceOp string

const (
	MultiDevicePin                MultiDeviceOp = "pinnedConversation"
	MultiDeviceUnpin              MultiDeviceOp = "unpinnedConversation"
	MultiDeviceMute               MultiDeviceOp = "setSilentModeForConversation"
	MultiDeviceUnmute             MultiDeviceOp = "removeSilentModeForConversation"
	MultiDeviceDeleteConversation MultiDeviceOp = "deleteConversation"
)

// MultiDeviceEvent replays a conversation mutation performed on another
// device of the local user.
type MultiDeviceEvent struct {
	Op        MultiDeviceOp
	Ref       ConversationRef
	Timestamp int64
}

// ContactOp enumerates contact lifecycle notifications.
type ContactOp string

const (
	ContactInvited ContactOp = "invited"
	ContactAgreed  ContactOp = "agreed"
	ContactRefused ContactOp = "refused"
	ContactDeleted ContactOp = "deleted"
	ContactAdded   ContactOp = "added"
)

// ContactEvent is a contact lifecycle notification.
type ContactEvent struct {
	Op   ContactOp
	From string
}

// PresenceEvent is a batch of presence changes.
type PresenceEvent struct {
	Entries []Presence
}

// GroupEvent is a group membership/metadata notification, surfaced to the
// engine as a synthetic notice in the group's timeline.
type GroupEvent struct {
	GroupID   string
	From      string
	Operation string
	Timestamp int64
}

// ConnState enumerates transport connection transitions.
type ConnState string

const (
	ConnConnected    ConnState = "connected"
	ConnDisconnected ConnState = "disconnected"
	ConnReconnecting ConnState = "reconnecting"
)

// ConnStateEvent reports a connection state transition.
type ConnStateEvent struct {
	State ConnState
}

func (MessageEvent) isEvent()     {}
func (RecallEvent) isEvent()      {}
func (ReceiptEvent) isEvent()     {}
func (ChannelAckEvent) isEvent()  {}
func (ModifiedEvent) isEvent()    {}
func (MultiDeviceEvent) isEvent() {}
func (ContactEvent) isEvent()     {}
func (PresenceEvent) isEvent()    {}
func (GroupEvent) isEvent()       {}
func (ConnStateEvent) isEvent()   {}
