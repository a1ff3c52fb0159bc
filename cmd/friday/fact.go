package main

import (
	"context"
	"flag"
	"fmt"
	"os"
)

func printFactUsage() {
	fmt.Fprintln(os.Stderr, `usage: friday fact <action>

  fact set -key <key> -value <value> [-confidence <0..1>] [-override]
  fact get <key>
  fact list [prefix]`)
}

func runFactCommand(ctx context.Context, args []string) int {
	if len(args) == 0 {
		printFactUsage()
		return 2
	}

	switch args[0] {
	case "set":
		return runFactSet(ctx, args[1:])
	case "get":
		return runFactGet(ctx, args[1:])
	case "list":
		return runFactList(ctx, args[1:])
	default:
		printFactUsage()
		return 2
	}
}

func runFactSet(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("fact set", flag.ContinueOnError)
	key := fs.String("key", "", "fact key, dotted namespace (required)")
	value := fs.String("value", "", "fact value (required)")
	confidence := fs.Float64("confidence", 0.8, "observation confidence in [0,1]")
	override := fs.Bool("override", false, "apply regardless of stored confidence")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *key == "" || *value == "" {
		fs.Usage()
		return 2
	}

	store, _, err := openStore(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer store.Close()

	fact, err := store.ObserveFact(ctx, *key, *value, *confidence, *override)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if fact.Value != *value {
		fmt.Printf("kept existing value %q (confidence %.2f beats %.2f)\n",
			fact.Value, fact.Confidence, *confidence)
	} else {
		fmt.Printf("%s = %q (confidence %.2f)\n", fact.Key, fact.Value, fact.Confidence)
	}
	return 0
}

func runFactGet(ctx context.Context, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: friday fact get <key>")
		return 2
	}
	store, _, err := openStore(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer store.Close()

	fact, err := store.GetFact(ctx, args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("%s = %q (confidence %.2f, updated %s)\n",
		fact.Key, fact.Value, fact.Confidence, fact.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	return 0
}

func runFactList(ctx context.Context, args []string) int {
	prefix := ""
	if len(args) > 0 {
		prefix = args[0]
	}
	store, _, err := openStore(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer store.Close()

	facts, err := store.ListFacts(ctx, prefix)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if len(facts) == 0 {
		fmt.Println("no facts")
		return 0
	}
	for _, f := range facts {
		fmt.Printf("%-30s  %.2f  %s\n", f.Key, f.Confidence, f.Value)
	}
	return 0
}
