package transport

// ChatType identifies the kind of destination a message is addressed to.
type ChatType string

const (
	SingleChat ChatType = "singleChat"
	GroupChat  ChatType = "groupChat"
	ChatRoom   ChatType = "chatRoom"
)

// Kind is the message payload variant. Delivery, read and channel kinds are
// signalling traffic, not user content.
type Kind string

const (
	KindText     Kind = "txt"
	KindImage    Kind = "img"
	KindAudio    Kind = "audio"
	KindVideo    Kind = "video"
	KindFile     Kind = "file"
	KindCustom   Kind = "custom"
	KindDelivery Kind = "delivery"
	KindRead     Kind = "read"
	KindChannel  Kind = "channel"
)

// IsUserContent reports whether k represents content a user authored, as
// opposed to receipt/read-sync signalling.
func (k Kind) IsUserContent() bool {
	switch k {
	case KindDelivery, KindRead, KindChannel:
		return false
	}
	return true
}

// Status is a message delivery state. It only moves forward; read is
// terminal.
type Status string

const (
	StatusNone      Status = ""
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

// NoticeType tags a synthetic system notice.
type NoticeType string

const (
	NoticeRecall NoticeType = "recall"
	NoticeGroup  NoticeType = "group"
)

// NoticeInfo marks a message as a synthetic system notice rather than user
// content. From identifies the actor that caused the notice (e.g. the
// recaller).
type NoticeInfo struct {
	Type      NoticeType `json:"type"`
	From      string     `json:"from"`
	Operation string     `json:"operation,omitempty"`
}

// Attachment is the nested media body of audio/video/file messages as the
// sender built it. The engine lifts its fields to the top-level message
// fields so local and server message shapes render uniformly.
type Attachment struct {
	URL        string `json:"url,omitempty"`
	Filename   string `json:"filename,omitempty"`
	Length     int64  `json:"length,omitempty"`
	FileLength int64  `json:"file_length,omitempty"`
}

// Message is the wire shape of one chat message, in any state. A locally
// originated message is keyed by ID until the server confirms it, after
// which ServerID carries the confirmed identity while ID remains the lookup
// key existing references resolve through.
type Message struct {
	ID         string      `json:"id"`
	ServerID   string      `json:"server_id,omitempty"`
	ChatType   ChatType    `json:"chat_type"`
	From       string      `json:"from"`
	To         string      `json:"to"`
	Kind       Kind        `json:"kind"`
	Body       string      `json:"body,omitempty"`
	URL        string      `json:"url,omitempty"`
	Thumb      string      `json:"thumb,omitempty"`
	Filename   string      `json:"filename,omitempty"`
	Length     int64       `json:"length,omitempty"`
	FileLength int64       `json:"file_length,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
	Mentions   []string    `json:"mentions,omitempty"`
	MentionAll bool        `json:"mention_all,omitempty"`
	Timestamp  int64       `json:"timestamp"`
	Status     Status      `json:"status,omitempty"`
	Notice     *NoticeInfo `json:"notice,omitempty"`
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	cp := *m
	if m.Attachment != nil {
		att := *m.Attachment
		cp.Attachment = &att
	}
	if m.Notice != nil {
		n := *m.Notice
		cp.Notice = &n
	}
	if m.Mentions != nil {
		cp.Mentions = append([]string(nil), m.Mentions...)
	}
	return &cp
}

// ConversationRef identifies one addressable chat destination.
type ConversationRef struct {
	ID   string   `json:"id"`
	Type ChatType `json:"type"`
}

// ConversationItem is a server-side conversation summary.
type ConversationItem struct {
	Ref         ConversationRef `json:"ref"`
	LastMessage *Message        `json:"last_message,omitempty"`
	UnreadCount int             `json:"unread_count"`
	IsPinned    bool            `json:"is_pinned"`
	PinnedTime  int64           `json:"pinned_time"`
}

// UserInfo is a remote user's profile as returned by the transport.
type UserInfo struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// Presence is one user's presence snapshot.
type Presence struct {
	UserID   string `json:"user_id"`
	IsOnline bool   `json:"is_online"`
	Ext      string `json:"ext,omitempty"`
}

// HistoryRequest asks for one page of messages older than Cursor.
type HistoryRequest struct {
	TargetID string   `json:"target_id"`
	ChatType ChatType `json:"chat_type"`
	PageSize int      `json:"page_size"`
	Cursor   string   `json:"cursor"`
}

// HistoryPage is a fetched page of history. Messages arrive newest-first.
type HistoryPage struct {
	Messages []*Message `json:"messages"`
	Cursor   string     `json:"cursor"`
	IsLast   bool       `json:"is_last"`
}

// PageRequest is cursor pagination for conversation list fetches.
type PageRequest struct {
	PageSize int    `json:"page_size"`
	Cursor   string `json:"cursor"`
}

// ConversationPage is one page of server conversation summaries. An empty
// Cursor means the listing is exhausted.
type ConversationPage struct {
	Conversations []*ConversationItem `json:"conversations"`
	Cursor        string              `json:"cursor"`
}

// SendResult is the server's confirmation of a sent message.
type SendResult struct {
	ServerID string   `json:"server_id"`
	Message  *Message `json:"message,omitempty"`
}

// RecallRequest retracts a previously sent message.
type RecallRequest struct {
	MessageID string   `json:"message_id"`
	To        string   `json:"to"`
	ChatType  ChatType `json:"chat_type"`
}
