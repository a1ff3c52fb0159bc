package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fridayhq/friday/internal/bus"
	"github.com/google/uuid"
)

// Outcome is the tri-state result of a tool call. A call whose process
// crashed before Complete reads back as OutcomeUnknown — readers must not
// conflate that with an explicit failure.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeOK
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// ToolCall is one audit row for a tool invocation attempt. Rows are written
// at begin time, completed at most once, and never deleted — incomplete
// rows are the primary forensic signal for crashed calls.
type ToolCall struct {
	CallID    string
	SessionID string
	Tool      string
	Args      string
	Result    string
	Outcome   Outcome
	ElapsedMS int64
	TS        time.Time
}

// BeginToolCall records an invocation attempt before the tool runs. The
// row's outcome stays unknown until CompleteToolCall fills it in.
func (s *Store) BeginToolCall(ctx context.Context, sessionID, tool, args string) (string, error) {
	if sessionID == "" || tool == "" {
		return "", fmt.Errorf("begin tool call: session id and tool are required")
	}
	callID := "call_" + uuid.NewString()
	err := s.retryOnBusy(ctx, 5, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO tool_calls (call_id, session_id, tool, args, result, ok, elapsed_ms, ts)
			VALUES (?, ?, ?, ?, NULL, NULL, NULL, ?);
		`, callID, sessionID, tool, args, time.Now().UTC().Unix())
		return err
	})
	if err != nil {
		return "", fmt.Errorf("begin tool call: %w", mapStoreErr(err))
	}
	return callID, nil
}

// CompleteToolCall fills in the outcome of a previously begun call. ok=false
// records an explicit failure; result may carry the failure payload.
func (s *Store) CompleteToolCall(ctx context.Context, callID string, ok bool, result string, elapsed time.Duration) error {
	var affected int64
	err := s.retryOnBusy(ctx, 5, func() error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE tool_calls
			SET ok = ?, result = ?, elapsed_ms = ?
			WHERE call_id = ?;
		`, boolToInt(ok), result, elapsed.Milliseconds(), callID)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("complete tool call: %w", mapStoreErr(err))
	}
	if affected == 0 {
		return ErrNotFound
	}
	s.bus.Publish(bus.TopicToolCallCompleted, bus.ToolCallCompletedEvent{
		CallID:  callID,
		OK:      ok,
		Elapsed: elapsed,
	})
	return nil
}

// GetToolCall returns a single audit row, or ErrNotFound.
func (s *Store) GetToolCall(ctx context.Context, callID string) (ToolCall, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT call_id, session_id, tool, args, result, ok, elapsed_ms, ts
		FROM tool_calls WHERE call_id = ?;
	`, callID)
	call, err := scanToolCall(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return ToolCall{}, ErrNotFound
	}
	if err != nil {
		return ToolCall{}, fmt.Errorf("get tool call: %w", mapStoreErr(err))
	}
	return call, nil
}

// ListToolCalls returns a session's audit rows ordered by timestamp, with
// insertion order breaking ties.
func (s *Store) ListToolCalls(ctx context.Context, sessionID string) ([]ToolCall, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT call_id, session_id, tool, args, result, ok, elapsed_ms, ts
		FROM tool_calls WHERE session_id = ?
		ORDER BY ts ASC, rowid ASC;
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list tool calls: %w", mapStoreErr(err))
	}
	defer rows.Close()

	var out []ToolCall
	for rows.Next() {
		call, err := scanToolCall(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan tool call: %w", err)
		}
		out = append(out, call)
	}
	return out, rows.Err()
}

func scanToolCall(scan func(dest ...any) error) (ToolCall, error) {
	var c ToolCall
	var result sql.NullString
	var ok sql.NullInt64
	var elapsed sql.NullInt64
	var ts int64
	if err := scan(&c.CallID, &c.SessionID, &c.Tool, &c.Args, &result, &ok, &elapsed, &ts); err != nil {
		return ToolCall{}, err
	}
	c.Result = result.String
	switch {
	case !ok.Valid:
		c.Outcome = OutcomeUnknown
	case ok.Int64 != 0:
		c.Outcome = OutcomeOK
	default:
		c.Outcome = OutcomeFailed
	}
	c.ElapsedMS = elapsed.Int64
	c.TS = time.Unix(ts, 0).UTC()
	return c, nil
}
