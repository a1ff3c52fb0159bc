package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
)

func runNoteCommand(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: friday note add|search")
		return 2
	}

	switch args[0] {
	case "add":
		return runNoteAdd(ctx, args[1:])
	case "search":
		return runNoteSearch(ctx, args[1:])
	default:
		fmt.Fprintln(os.Stderr, "usage: friday note add|search")
		return 2
	}
}

func runNoteAdd(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("note add", flag.ContinueOnError)
	title := fs.String("title", "", "note title (required)")
	content := fs.String("content", "", "note body")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *title == "" {
		fs.Usage()
		return 2
	}

	store, _, err := openStore(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer store.Close()

	note, err := store.AddNote(ctx, *title, *content)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println(note.ID)
	return 0
}

func runNoteSearch(ctx context.Context, args []string) int {
	query := strings.Join(args, " ")

	store, _, err := openStore(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer store.Close()

	notes, err := store.SearchNotes(ctx, query)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if len(notes) == 0 {
		fmt.Println("no matches")
		return 0
	}
	for _, n := range notes {
		fmt.Printf("%s  %s\n", n.TS.Local().Format("2006-01-02 15:04"), n.Title)
		if n.Content != "" {
			fmt.Printf("    %s\n", n.Content)
		}
	}
	return 0
}
