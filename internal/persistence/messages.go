package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/fridayhq/friday/internal/bus"
	"github.com/google/uuid"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one immutable conversation turn. (session_id, ts) with rowid as
// tiebreaker defines a total order per session.
type Message struct {
	SessionID string
	MessageID string
	Role      string
	Content   string
	TS        time.Time
}

func validRole(role string) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// AppendMessage inserts a new conversation turn. Messages are never updated
// or deleted; corrections are appended as new messages.
func (s *Store) AppendMessage(ctx context.Context, sessionID, role, content string) (Message, error) {
	if sessionID == "" {
		return Message{}, fmt.Errorf("append message: empty session id")
	}
	if !validRole(role) {
		return Message{}, fmt.Errorf("append message: invalid role %q", role)
	}

	msg := Message{
		SessionID: sessionID,
		MessageID: "msg_" + uuid.NewString(),
		Role:      role,
		Content:   content,
		TS:        time.Now().UTC().Truncate(time.Second),
	}
	err := s.retryOnBusy(ctx, 5, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO messages (message_id, session_id, role, content, ts)
			VALUES (?, ?, ?, ?, ?);
		`, msg.MessageID, msg.SessionID, msg.Role, msg.Content, msg.TS.Unix())
		return err
	})
	if err != nil {
		return Message{}, fmt.Errorf("append message: %w", mapStoreErr(err))
	}

	s.bus.Publish(bus.TopicMessageAppended, bus.MessageAppendedEvent{
		SessionID: msg.SessionID,
		MessageID: msg.MessageID,
		Role:      msg.Role,
	})
	return msg, nil
}

// ListMessages returns the session's messages ordered by timestamp, with
// insertion order breaking ties. since filters to strictly greater
// timestamps; limit <= 0 means no limit.
func (s *Store) ListMessages(ctx context.Context, sessionID string, since time.Time, limit int) ([]Message, error) {
	query := `
		SELECT message_id, session_id, role, content, ts
		FROM messages
		WHERE session_id = ?`
	args := []any{sessionID}
	if !since.IsZero() {
		query += ` AND ts > ?`
		args = append(args, since.Unix())
	}
	query += ` ORDER BY ts ASC, rowid ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query+";", args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", mapStoreErr(err))
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var ts int64
		if err := rows.Scan(&m.MessageID, &m.SessionID, &m.Role, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.TS = time.Unix(ts, 0).UTC()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("message rows: %w", err)
	}
	return out, nil
}

// MessageCount returns the number of messages in a session.
func (s *Store) MessageCount(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM messages WHERE session_id = ?;`, sessionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("message count: %w", mapStoreErr(err))
	}
	return count, nil
}
