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

// MemoryFact is the single authoritative value for a key, carried across
// sessions. Facts are superseded by full-row replaces, never hard-deleted.
type MemoryFact struct {
	ID         string
	Key        string
	Value      string
	Confidence float64
	UpdatedAt  time.Time
}

// mergeFact decides whether incoming replaces existing. A lower-confidence
// observation loses unless the caller explicitly overrides; this keeps
// competing low-quality extractions from thrashing an established fact.
func mergeFact(existing *MemoryFact, incoming MemoryFact, override bool) (resolved MemoryFact, applied bool) {
	if existing == nil {
		return incoming, true
	}
	if override || incoming.Confidence >= existing.Confidence {
		return incoming, true
	}
	return *existing, false
}

// ObserveFact records an observation for key. A new key is inserted. An
// existing key is replaced only when the new confidence is at least the
// stored confidence, or when override is set — the override path is the
// only way to force a downgrade. The authoritative fact is returned either
// way.
func (s *Store) ObserveFact(ctx context.Context, key, value string, confidence float64, override bool) (MemoryFact, error) {
	if key == "" {
		return MemoryFact{}, fmt.Errorf("observe fact: empty key")
	}
	if confidence < 0 || confidence > 1 {
		return MemoryFact{}, fmt.Errorf("observe fact: confidence %v out of [0,1]", confidence)
	}

	incoming := MemoryFact{
		ID:         "fact_" + uuid.NewString(),
		Key:        key,
		Value:      value,
		Confidence: confidence,
		UpdatedAt:  time.Now().UTC().Truncate(time.Second),
	}

	var resolved MemoryFact
	var applied bool
	err := s.retryOnBusy(ctx, 5, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin observe tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var existing MemoryFact
		var ts int64
		scanErr := tx.QueryRowContext(ctx, `
			SELECT id, key, value, confidence, updated_at
			FROM memory_facts WHERE key = ?;
		`, key).Scan(&existing.ID, &existing.Key, &existing.Value, &existing.Confidence, &ts)
		switch {
		case errors.Is(scanErr, sql.ErrNoRows):
			resolved, applied = mergeFact(nil, incoming, override)
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO memory_facts (id, key, value, confidence, updated_at)
				VALUES (?, ?, ?, ?, ?);
			`, resolved.ID, resolved.Key, resolved.Value, resolved.Confidence, resolved.UpdatedAt.Unix()); err != nil {
				return fmt.Errorf("insert fact: %w", err)
			}
		case scanErr != nil:
			return fmt.Errorf("read fact: %w", scanErr)
		default:
			existing.UpdatedAt = time.Unix(ts, 0).UTC()
			// The incoming observation supersedes the row in place but
			// keeps the fact's identity.
			incoming.ID = existing.ID
			resolved, applied = mergeFact(&existing, incoming, override)
			if applied {
				if _, err := tx.ExecContext(ctx, `
					UPDATE memory_facts
					SET value = ?, confidence = ?, updated_at = ?
					WHERE key = ?;
				`, resolved.Value, resolved.Confidence, resolved.UpdatedAt.Unix(), key); err != nil {
					return fmt.Errorf("replace fact: %w", err)
				}
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return MemoryFact{}, mapStoreErr(err)
	}

	s.bus.Publish(bus.TopicFactObserved, bus.FactObservedEvent{
		Key:        key,
		Confidence: resolved.Confidence,
		Applied:    applied,
	})
	return resolved, nil
}

// GetFact returns the authoritative fact for key, or ErrNotFound.
func (s *Store) GetFact(ctx context.Context, key string) (MemoryFact, error) {
	var f MemoryFact
	var ts int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, key, value, confidence, updated_at
		FROM memory_facts WHERE key = ?;
	`, key).Scan(&f.ID, &f.Key, &f.Value, &f.Confidence, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return MemoryFact{}, ErrNotFound
	}
	if err != nil {
		return MemoryFact{}, fmt.Errorf("get fact: %w", mapStoreErr(err))
	}
	f.UpdatedAt = time.Unix(ts, 0).UTC()
	return f, nil
}

// ListFacts returns facts whose key starts with prefix (all facts when
// prefix is empty), ordered by key.
func (s *Store) ListFacts(ctx context.Context, prefix string) ([]MemoryFact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, key, value, confidence, updated_at
		FROM memory_facts
		WHERE key LIKE ? ESCAPE '\'
		ORDER BY key ASC;
	`, likePrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", mapStoreErr(err))
	}
	defer rows.Close()

	var out []MemoryFact
	for rows.Next() {
		var f MemoryFact
		var ts int64
		if err := rows.Scan(&f.ID, &f.Key, &f.Value, &f.Confidence, &ts); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		f.UpdatedAt = time.Unix(ts, 0).UTC()
		out = append(out, f)
	}
	return out, rows.Err()
}

// escapeLike escapes LIKE metacharacters so user input matches literally.
// Queries using it must carry an ESCAPE '\' clause.
func escapeLike(s string) string {
	escaped := make([]byte, 0, len(s)+2)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '%' || c == '_' || c == '\\' {
			escaped = append(escaped, '\\')
		}
		escaped = append(escaped, c)
	}
	return string(escaped)
}

// likePrefix builds a prefix-match LIKE pattern.
func likePrefix(prefix string) string {
	return escapeLike(prefix) + "%"
}

// likeContains builds a substring-match LIKE pattern.
func likeContains(q string) string {
	return "%" + escapeLike(q) + "%"
}
