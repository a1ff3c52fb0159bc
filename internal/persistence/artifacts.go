package persistence

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// Artifact catalogs a durable side-effect file produced by a tool or task.
// Artifacts have no lifecycle coupling to sessions; deletion is an explicit
// external operation the core never performs.
type Artifact struct {
	ID       string
	Type     string
	Path     string
	Metadata string
	TS       time.Time
}

// RegisterArtifact records a generated file. The path must reference a
// retrievable resource at write time.
func (s *Store) RegisterArtifact(ctx context.Context, typ, path, metadata string) (Artifact, error) {
	if typ == "" || path == "" {
		return Artifact{}, fmt.Errorf("register artifact: type and path are required")
	}
	if _, err := os.Stat(path); err != nil {
		return Artifact{}, fmt.Errorf("register artifact: path %q not retrievable: %w", path, err)
	}

	art := Artifact{
		ID:       "art_" + uuid.NewString(),
		Type:     typ,
		Path:     path,
		Metadata: metadata,
		TS:       time.Now().UTC().Truncate(time.Second),
	}
	err := s.retryOnBusy(ctx, 5, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO artifacts (id, type, path, metadata, ts)
			VALUES (?, ?, ?, ?, ?);
		`, art.ID, art.Type, art.Path, art.Metadata, art.TS.Unix())
		return err
	})
	if err != nil {
		return Artifact{}, fmt.Errorf("register artifact: %w", mapStoreErr(err))
	}
	return art, nil
}

// ListArtifacts returns artifacts of the given type, or all when typ is
// empty, newest first.
func (s *Store) ListArtifacts(ctx context.Context, typ string) ([]Artifact, error) {
	query := `
		SELECT id, type, path, metadata, ts
		FROM artifacts`
	args := []any{}
	if typ != "" {
		query += ` WHERE type = ?`
		args = append(args, typ)
	}
	query += ` ORDER BY ts DESC, rowid DESC;`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", mapStoreErr(err))
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		var a Artifact
		var ts int64
		if err := rows.Scan(&a.ID, &a.Type, &a.Path, &a.Metadata, &ts); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		a.TS = time.Unix(ts, 0).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}
