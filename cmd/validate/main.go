package main

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/courtvoice/courtvoice/pkg/action/loader"
)

// validate loads every action script under a directory and reports the
// per-file validation outcome without touching the registry or storage.
func main() {
	dir := "./data/actions"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	fmt.Printf("Validating action scripts in %s...\n\n", dir)

	ld := loader.New(dir, log)
	defs, statuses, err := ld.LoadAll()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	signatures := make([]string, 0, len(statuses))
	for sig := range statuses {
		signatures = append(signatures, sig)
	}
	sort.Strings(signatures)

	invalid := 0
	for _, sig := range signatures {
		status := statuses[sig]
		if status.Valid {
			def := defs[sig]
			fmt.Printf("  ok      %-30s %s\n", sig, def.Path)
			continue
		}
		invalid++
		fmt.Printf("  INVALID %-30s %s\n", sig, status.Message)
	}

	fmt.Printf("\n%d scripts checked, %d invalid\n", len(statuses), invalid)
	if invalid > 0 {
		os.Exit(1)
	}
}
