package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"
)

func runLogCommand(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("log", flag.ContinueOnError)
	session := fs.String("session", "", "session id (default: configured session)")
	limit := fs.Int("limit", 50, "maximum messages to show, 0 for all")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	store, cfg, err := openStore(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer store.Close()

	sessionID := *session
	if sessionID == "" {
		sessionID = cfg.SessionID
	}

	messages, err := store.ListMessages(ctx, sessionID, time.Time{}, *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if len(messages) == 0 {
		fmt.Println("no messages")
		return 0
	}
	for _, m := range messages {
		fmt.Printf("%s  %-9s  %s\n", m.TS.Local().Format("2006-01-02 15:04:05"), m.Role, m.Content)
	}
	total, err := store.MessageCount(ctx, sessionID)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if int64(len(messages)) < total {
		fmt.Printf("(showing %d of %d messages; use -limit 0 for all)\n", len(messages), total)
	}
	return 0
}
