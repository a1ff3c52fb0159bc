package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fridayhq/friday/internal/config"
	"github.com/fridayhq/friday/internal/schedule"
)

func printConfigUsage() {
	fmt.Fprintln(os.Stderr, `usage: friday config <action>

  config show
  config set-log-level <debug|info|warn|error>
  config set-catch-up <skip|immediate>`)
}

func runConfigCommand(_ context.Context, args []string) int {
	if len(args) == 0 {
		printConfigUsage()
		return 2
	}

	switch args[0] {
	case "show":
		return runConfigShow()
	case "set-log-level":
		return runConfigSetLogLevel(args[1:])
	case "set-catch-up":
		return runConfigSetCatchUp(args[1:])
	default:
		printConfigUsage()
		return 2
	}
}

func runConfigShow() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("home:          %s\n", cfg.HomeDir)
	fmt.Printf("db:            %s\n", cfg.DBPath)
	fmt.Printf("log level:     %s\n", cfg.LogLevel)
	fmt.Printf("session:       %s\n", cfg.SessionID)
	fmt.Printf("poll interval: %ds\n", cfg.Scheduler.PollIntervalSeconds)
	fmt.Printf("catch-up:      %s\n", cfg.Scheduler.CatchUp)
	fmt.Printf("fingerprint:   %s\n", cfg.Fingerprint())
	return 0
}

func runConfigSetLogLevel(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: friday config set-log-level <debug|info|warn|error>")
		return 2
	}
	level := args[0]
	switch level {
	case "debug", "info", "warn", "error":
	default:
		fmt.Fprintf(os.Stderr, "unknown log level %q (want debug, info, warn or error)\n", level)
		return 1
	}
	if err := config.SetLogLevel(config.HomeDir(), level); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("log level set to %s; restart the daemon to apply\n", level)
	return 0
}

func runConfigSetCatchUp(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: friday config set-catch-up <skip|immediate>")
		return 2
	}
	policy, err := schedule.ParsePolicy(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := config.SetCatchUp(config.HomeDir(), string(policy)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("catch-up policy set to %s; restart the daemon to apply\n", policy)
	return 0
}
