package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/pulse/go-core/internal/audit"
	"github.com/danielpatrickdp/pulse/go-core/internal/class"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to pulse.db")
	last := flag.Int("last", 20, "show N most recent audit events")
	classKey := flag.String("class", "", "filter to one class key (also prints its record)")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/pulse.db [--last N] [--class key] [--json]")
		os.Exit(2)
	}

	db, err := class.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	store, err := class.NewStore(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init store: %v\n", err)
		os.Exit(1)
	}

	if *classKey != "" {
		if err := runClassMode(store, *classKey, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	} else {
		if err := runClassList(store, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}

	events, err := audit.Recent(db, *classKey, *last)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := printEvents(events, *jsonOut); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region class-modes

func runClassList(store *class.Store, jsonOut bool) error {
	records, err := store.List(100)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stderr, "no classes found")
		return nil
	}
	if jsonOut {
		return printJSON(records)
	}

	fmt.Printf("%-40s  %-8s  %-8s  %6s  %5s  %4s  %4s\n",
		"Class", "Status", "Health", "Score", "Succ", "Rev", "Conf")
	for _, r := range records {
		fmt.Printf("%-40s  %-8s  %-8s  %6.2f  %5d  %4d  %4d\n",
			shortKey(r.ClassKey), r.Status, r.Health, r.EligibilityScore,
			r.Stats.Successes, r.Stats.Reverts, r.Stats.Confirmations)
	}
	fmt.Println()
	return nil
}

func runClassMode(store *class.Store, classKey string, jsonOut bool) error {
	rec, err := store.Get(classKey)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(rec)
	}

	fmt.Printf("Class:     %s\n", rec.ClassKey)
	fmt.Printf("Status:    %s\n", rec.Status)
	fmt.Printf("Health:    %s\n", rec.Health)
	fmt.Printf("Score:     %.2f (decay %.2f)\n", rec.EligibilityScore, rec.DecayScore)
	fmt.Printf("Stats:     successes=%d confirmations=%d rejections=%d reverts=%d confusion=%d blocks=%d\n",
		rec.Stats.Successes, rec.Stats.Confirmations, rec.Stats.Rejections,
		rec.Stats.Reverts, rec.Stats.ConfusionEvents, rec.Stats.IPPBlocks)
	if rec.LastSuccessAt != nil {
		fmt.Printf("Last win:  %s\n", rec.LastSuccessAt.Format("2006-01-02T15:04:05Z"))
	}
	fmt.Printf("Context:   %s\n", rec.ContextHash)
	fmt.Printf("Recovery:  attempts=%d paused=%v\n", rec.RecoveryAttempts, rec.UserPaused)
	fmt.Println()
	return nil
}

// #endregion class-modes

// #region output

func printEvents(events []audit.Event, jsonOut bool) error {
	if len(events) == 0 {
		fmt.Fprintln(os.Stderr, "no audit events found")
		return nil
	}
	if jsonOut {
		return printJSON(events)
	}

	fmt.Printf("%-10s  %-40s  %-8s  %-5s  %-22s  %s\n",
		"Kind", "Class", "Mode", "Lvl", "Reason", "Time")
	for _, ev := range events {
		fmt.Printf("%-10s  %-40s  %-8s  %-5s  %-22s  %s\n",
			ev.Kind, shortKey(ev.ClassKey), ev.WriteMode, ev.AutonomyLevel,
			ev.Reason, ev.CreatedAt.Format("2006-01-02T15:04:05Z"))
	}
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortKey(key string) string {
	if len(key) > 40 {
		return key[:37] + "..."
	}
	return key
}

// #endregion output
