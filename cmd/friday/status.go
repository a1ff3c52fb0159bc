package main

import (
	"context"
	"fmt"
	"os"
)

func runStatusCommand(ctx context.Context, args []string) int {
	if len(args) != 0 {
		fmt.Fprintln(os.Stderr, "usage: friday status")
		return 2
	}

	store, cfg, err := openStore(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer store.Close()

	stats, err := store.CollectStats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "collect stats: %v\n", err)
		return 1
	}

	fmt.Printf("db:             %s\n", cfg.DBPath)
	fmt.Printf("schema version: %d\n", stats.SchemaVersion)
	fmt.Printf("messages:       %d\n", stats.Messages)
	fmt.Printf("facts:          %d\n", stats.Facts)
	fmt.Printf("tool calls:     %d\n", stats.ToolCalls)
	fmt.Printf("artifacts:      %d\n", stats.Artifacts)
	fmt.Printf("tasks:          %d (%d enabled)\n", stats.Tasks, stats.EnabledTasks)
	fmt.Printf("notes:          %d\n", stats.Notes)
	return 0
}
