package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/fridayhq/friday/internal/payload"
)

func printTaskUsage() {
	fmt.Fprintln(os.Stderr, `usage: friday task <action>

  task add -title <title> -schedule <spec> [-payload <json>]
           Schedule specs: "@every 5m", 5-field cron ("0 8 * * *"),
           or an RFC3339 instant for a one-shot.
  task list
  task enable <id>
  task disable <id>
  task runs <id>`)
}

func runTaskCommand(ctx context.Context, args []string) int {
	if len(args) == 0 {
		printTaskUsage()
		return 2
	}

	switch args[0] {
	case "add":
		return runTaskAdd(ctx, args[1:])
	case "list":
		return runTaskList(ctx)
	case "enable", "disable":
		return runTaskToggle(ctx, args[0], args[1:])
	case "runs":
		return runTaskRuns(ctx, args[1:])
	default:
		printTaskUsage()
		return 2
	}
}

func runTaskAdd(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("task add", flag.ContinueOnError)
	title := fs.String("title", "", "task title (required)")
	spec := fs.String("schedule", "", "schedule spec (required)")
	body := fs.String("payload", "", "JSON payload handed to the runner at fire time")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *title == "" || *spec == "" {
		fs.Usage()
		return 2
	}

	validator, err := payload.TaskValidator()
	if err != nil {
		fmt.Fprintf(os.Stderr, "payload validator: %v\n", err)
		return 1
	}
	if err := validator.Validate(*body); err != nil {
		fmt.Fprintf(os.Stderr, "payload: %v\n", err)
		return 1
	}

	store, cfg, err := openStore(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer store.Close()

	eval, err := evaluatorFromConfig(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	task, err := store.CreateTask(ctx, *title, *spec, *body, eval)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("%s scheduled, next run %s\n", task.ID, formatTimePtr(task.NextRun))
	return 0
}

func runTaskList(ctx context.Context) int {
	store, _, err := openStore(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer store.Close()

	tasks, err := store.ListTasks(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if len(tasks) == 0 {
		fmt.Println("no tasks")
		return 0
	}
	for _, t := range tasks {
		state := "enabled"
		if !t.Enabled {
			state = "disabled"
		}
		fmt.Printf("%s  %-8s  %-20s  next %-19s  %s\n",
			t.ID, state, t.Schedule, formatTimePtr(t.NextRun), t.Title)
	}
	return 0
}

func runTaskToggle(ctx context.Context, action string, args []string) int {
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "usage: friday task %s <id>\n", action)
		return 2
	}
	store, _, err := openStore(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer store.Close()

	if action == "enable" {
		err = store.EnableTask(ctx, args[0])
	} else {
		err = store.DisableTask(ctx, args[0])
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("%s %sd\n", args[0], action)
	return 0
}

func runTaskRuns(ctx context.Context, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: friday task runs <id>")
		return 2
	}
	store, _, err := openStore(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer store.Close()

	runs, err := store.ListTaskRuns(ctx, args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return 0
	}
	for _, r := range runs {
		outcome := "ok"
		if !r.OK {
			outcome = "failed"
		}
		line := fmt.Sprintf("%s  %-6s", r.CreatedAt.Local().Format("2006-01-02 15:04:05"), outcome)
		if r.Detail != "" {
			line += "  " + r.Detail
		}
		fmt.Println(line)
	}
	return 0
}
