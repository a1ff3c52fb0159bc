package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Note is a free-form user note, searchable by title and content.
type Note struct {
	ID      string
	Title   string
	Content string
	TS      time.Time
}

// AddNote inserts a note.
func (s *Store) AddNote(ctx context.Context, title, content string) (Note, error) {
	if title == "" {
		return Note{}, fmt.Errorf("add note: empty title")
	}
	note := Note{
		ID:      "note_" + uuid.NewString(),
		Title:   title,
		Content: content,
		TS:      time.Now().UTC().Truncate(time.Second),
	}
	err := s.retryOnBusy(ctx, 5, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO notes (id, title, content, ts)
			VALUES (?, ?, ?, ?);
		`, note.ID, note.Title, note.Content, note.TS.Unix())
		return err
	})
	if err != nil {
		return Note{}, fmt.Errorf("add note: %w", mapStoreErr(err))
	}
	return note, nil
}

// SearchNotes returns notes whose title or content contains query, newest
// first. An empty query returns all notes.
func (s *Store) SearchNotes(ctx context.Context, query string) ([]Note, error) {
	like := likeContains(query)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, content, ts
		FROM notes
		WHERE title LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\'
		ORDER BY ts DESC, rowid DESC;
	`, like, like)
	if err != nil {
		return nil, fmt.Errorf("search notes: %w", mapStoreErr(err))
	}
	defer rows.Close()

	var out []Note
	for rows.Next() {
		var n Note
		var ts int64
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &ts); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		n.TS = time.Unix(ts, 0).UTC()
		out = append(out, n)
	}
	return out, rows.Err()
}
