package cache

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/mcoutinho/chatcore/internal/chat"
	"github.com/mcoutinho/chatcore/internal/transport"
)

// UpsertConversation persists one conversation summary (idempotent on
// id + chat_type).
func (db *DB) UpsertConversation(c *chat.Conversation) error {
	var head sql.NullString
	if c.LastMessage != nil {
		raw, err := json.Marshal(c.LastMessage)
		if err != nil {
			return err
		}
		head = sql.NullString{String: string(raw), Valid: true}
	}
	_, err := db.Exec(`
		INSERT INTO conversations (id, chat_type, unread_count, is_pinned, pinned_time, muted, mention, last_message, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, chat_type) DO UPDATE SET
			unread_count = excluded.unread_count,
			is_pinned = excluded.is_pinned,
			pinned_time = excluded.pinned_time,
			muted = excluded.muted,
			mention = excluded.mention,
			last_message = excluded.last_message,
			updated_at = excluded.updated_at`,
		c.Ref.ID, string(c.Ref.Type), c.UnreadCount, c.IsPinned, c.PinnedTime, c.Muted, string(c.Mention), head, time.Now().UnixMilli())
	return err
}

// DeleteConversation removes a conversation summary and its messages.
func (db *DB) DeleteConversation(ref transport.ConversationRef) error {
	if _, err := db.Exec(`DELETE FROM conversations WHERE id = ? AND chat_type = ?`, ref.ID, string(ref.Type)); err != nil {
		return err
	}
	_, err := db.Exec(`DELETE FROM messages WHERE conversation_id = ?`, ref.ID)
	return err
}

// LoadConversations returns every persisted conversation summary.
func (db *DB) LoadConversations() ([]*chat.Conversation, error) {
	rows, err := db.Query(`
		SELECT id, chat_type, unread_count, is_pinned, pinned_time, muted, mention, last_message
		FROM conversations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*chat.Conversation
	for rows.Next() {
		var (
			c        chat.Conversation
			chatType string
			mention  string
			head     sql.NullString
		)
		if err := rows.Scan(&c.Ref.ID, &chatType, &c.UnreadCount, &c.IsPinned, &c.PinnedTime, &c.Muted, &mention, &head); err != nil {
			return nil, err
		}
		c.Ref.Type = transport.ChatType(chatType)
		c.Mention = chat.MentionFlag(mention)
		if head.Valid {
			var msg transport.Message
			if err := json.Unmarshal([]byte(head.String), &msg); err == nil {
				c.LastMessage = &msg
			}
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
