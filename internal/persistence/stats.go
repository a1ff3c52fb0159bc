package persistence

import (
	"context"
	"fmt"
)

// Stats summarizes the store contents for status reporting.
type Stats struct {
	SchemaVersion int
	Messages      int
	Facts         int
	ToolCalls     int
	Artifacts     int
	Tasks         int
	EnabledTasks  int
	Notes         int
}

// CollectStats counts rows across the core tables.
func (s *Store) CollectStats(ctx context.Context) (Stats, error) {
	var stats Stats
	version, err := s.SchemaVersion(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("collect stats: %w", err)
	}
	stats.SchemaVersion = version

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(1) FROM messages;`, &stats.Messages},
		{`SELECT COUNT(1) FROM memory_facts;`, &stats.Facts},
		{`SELECT COUNT(1) FROM tool_calls;`, &stats.ToolCalls},
		{`SELECT COUNT(1) FROM artifacts;`, &stats.Artifacts},
		{`SELECT COUNT(1) FROM tasks;`, &stats.Tasks},
		{`SELECT COUNT(1) FROM tasks WHERE enabled = 1;`, &stats.EnabledTasks},
		{`SELECT COUNT(1) FROM notes;`, &stats.Notes},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return Stats{}, fmt.Errorf("collect stats: %w", mapStoreErr(err))
		}
	}
	return stats, nil
}
