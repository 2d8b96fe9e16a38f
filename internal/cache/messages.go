package cache

import (
	"encoding/json"
	"time"

	"github.com/mcoutinho/chatcore/internal/transport"
)

// UpsertMessage persists one message (idempotent on conversation_id +
// msg_id). The full record is stored as JSON; timestamp is duplicated as a
// column for ordered loading.
func (db *DB) UpsertMessage(conversationID string, m *transport.Message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = db.Exec(`
		INSERT INTO messages (conversation_id, msg_id, timestamp, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id, msg_id) DO UPDATE SET
			timestamp = excluded.timestamp,
			payload = excluded.payload`,
		conversationID, m.ID, m.Timestamp, string(payload), time.Now().UnixMilli())
	return err
}

// DeleteMessage removes one persisted message.
func (db *DB) DeleteMessage(conversationID, messageID string) error {
	_, err := db.Exec(`DELETE FROM messages WHERE conversation_id = ? AND msg_id = ?`, conversationID, messageID)
	return err
}

// LoadMessages returns the newest retained messages of a conversation,
// oldest first, capped at limit.
func (db *DB) LoadMessages(conversationID string, limit int) ([]*transport.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT payload FROM (
			SELECT payload, timestamp FROM messages
			WHERE conversation_id = ?
			ORDER BY timestamp DESC
			LIMIT ?
		) ORDER BY timestamp ASC`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*transport.Message
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var m transport.Message
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			continue
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// TrimMessages drops everything but the newest limit messages of a
// conversation, mirroring the in-memory retention cap.
func (db *DB) TrimMessages(conversationID string, limit int) error {
	if limit <= 0 {
		return nil
	}
	_, err := db.Exec(`
		DELETE FROM messages
		WHERE conversation_id = ? AND msg_id NOT IN (
			SELECT msg_id FROM messages
			WHERE conversation_id = ?
			ORDER BY timestamp DESC
			LIMIT ?
		)`, conversationID, conversationID, limit)
	return err
}
