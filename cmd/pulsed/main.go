package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/danielpatrickdp/pulse/go-core/internal/audit"
	"github.com/danielpatrickdp/pulse/go-core/internal/class"
	"github.com/danielpatrickdp/pulse/go-core/internal/config"
	"github.com/danielpatrickdp/pulse/go-core/internal/decision"
	"github.com/danielpatrickdp/pulse/go-core/internal/effect"
	"github.com/danielpatrickdp/pulse/go-core/internal/feedback"
	"github.com/danielpatrickdp/pulse/go-core/internal/gate"
	"github.com/danielpatrickdp/pulse/go-core/internal/notify"
	"github.com/danielpatrickdp/pulse/go-core/internal/pulse"
)

// #region main

func main() {
	dbPath := envOr("PULSE_DB", "pulse.db")
	cfgPath := envOr("PULSE_CONFIG", "pulse.yaml")
	ownerID := envOr("PULSE_OWNER", "owner-local")

	db, err := class.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	defer db.Close()

	classes, err := class.NewStore(db)
	if err != nil {
		log.Fatalf("failed to init class store: %v", err)
	}
	trust, err := feedback.NewTrustStore(db)
	if err != nil {
		log.Fatalf("failed to init trust store: %v", err)
	}
	if err := audit.Init(db); err != nil {
		log.Fatalf("failed to init audit log: %v", err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	recorder := feedback.NewRecorder(classes, trust)
	engine := decision.NewEngine(classes, cfg)

	journal, err := newJournalAdapter(db)
	if err != nil {
		log.Fatalf("failed to init effect journal: %v", err)
	}

	exec := gate.NewExecutor(db, engine, classes, recorder, ownerPrecondition{}, cfg,
		gate.WithNotifier(notify.NewVoice(os.Getenv("PULSE_VOICE_CMD"))),
		gate.WithAbsenceSource(func(string) bool { return os.Getenv("PULSE_OWNER_ABSENT") == "1" }),
	)
	for _, domain := range []string{"tasks", "chef", "grocery", "planning", "life_state"} {
		exec.RegisterAdapter(domain, journal)
	}

	watcher, err := config.Watch(cfgPath, exec.SetConfig)
	if err != nil {
		log.Printf("[ORCH] config watch disabled: %v", err)
	} else {
		defer watcher.Close()
	}

	runner, err := pulse.NewRunner(db, exec)
	if err != nil {
		log.Fatalf("failed to init runner: %v", err)
	}

	fmt.Println("Pulse autonomy core ready.")
	fmt.Printf("  DB: %s | Config: %s | Owner: %s\n", dbPath, cfgPath, ownerID)
	fmt.Println("One JSON command per line (or 'quit' to exit):")

	repl(runner, exec, recorder, ownerID)
}

// #endregion main

// #region repl

// command is one line of operator input. op defaults to execute.
type command struct {
	Op       string          `json:"op"`
	Effect   effect.Effect   `json:"effect"`
	Response string          `json:"response"`
	Latency  int             `json:"latency_seconds"`
	ClassKey string          `json:"class_key"`
	Effects  []effect.Effect `json:"effects"`
}

func repl(runner *pulse.Runner, exec *gate.Executor, recorder *feedback.Recorder, ownerID string) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}

		var cmd command
		if err := json.Unmarshal([]byte(line), &cmd); err != nil {
			log.Printf("bad command: %v", err)
			continue
		}
		if cmd.Op == "" {
			cmd.Op = "execute"
		}
		if cmd.Effect.ID == "" && cmd.Effect.Domain != "" {
			cmd.Effect = effect.New(cmd.Effect.Domain, cmd.Effect.Type, cmd.Effect.Payload,
				cmd.Effect.Confidence, cmd.Effect.Source)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		out, err := dispatch(ctx, cmd, runner, exec, recorder, ownerID)
		cancel()
		if err != nil {
			log.Printf("%s error: %v", cmd.Op, err)
			continue
		}
		printJSON(out)
	}
}

func dispatch(ctx context.Context, cmd command, runner *pulse.Runner, exec *gate.Executor, recorder *feedback.Recorder, ownerID string) (any, error) {
	switch cmd.Op {
	case "execute":
		return exec.Execute(ctx, cmd.Effect, ownerID)
	case "confirm":
		return exec.Confirm(ctx, cmd.Effect, ownerID)
	case "revert":
		return exec.Revert(ctx, cmd.Effect.ID, cmd.Effect)
	case "respond":
		return recorder.RecordResponse(cmd.Effect, feedback.Response(cmd.Response),
			time.Duration(cmd.Latency)*time.Second)
	case "recover":
		return exec.PermitRecovery(cmd.ClassKey, ownerID)
	case "run":
		return runner.RunDaily(ctx, ownerID, time.Now(), cmd.Effects)
	default:
		return nil, fmt.Errorf("unknown op %q", cmd.Op)
	}
}

// #endregion repl

// #region preconditions

// ownerPrecondition is the minimal inability check for a local single-owner
// install: an empty owner identity fails closed.
type ownerPrecondition struct{}

func (ownerPrecondition) Check(_ context.Context, ownerID string) *gate.Block {
	if ownerID == "" {
		return &gate.Block{Reason: "missing_owner"}
	}
	return nil
}

// #endregion preconditions

// #region journal-adapter

const journalSchema = `
CREATE TABLE IF NOT EXISTS applied_effects (
	effect_id   TEXT PRIMARY KEY,
	domain      TEXT NOT NULL,
	effect_type TEXT NOT NULL,
	payload     TEXT NOT NULL,
	applied_at  TEXT NOT NULL
);
`

// journalAdapter applies effects by journaling them and reverts by deleting
// the journal row. Real installs register one adapter per domain service.
type journalAdapter struct {
	db *sql.DB
}

func newJournalAdapter(db *sql.DB) (*journalAdapter, error) {
	if _, err := db.Exec(journalSchema); err != nil {
		return nil, fmt.Errorf("migrate applied_effects: %w", err)
	}
	return &journalAdapter{db: db}, nil
}

func (j *journalAdapter) Apply(_ context.Context, eff effect.Effect) error {
	payload, err := json.Marshal(eff.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	_, err = j.db.Exec(
		`INSERT OR REPLACE INTO applied_effects (effect_id, domain, effect_type, payload, applied_at)
		 VALUES (?, ?, ?, ?, ?)`,
		eff.ID, eff.Domain, string(eff.Type), string(payload),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("journal effect %s: %w", eff.ID, err)
	}
	return nil
}

func (j *journalAdapter) Revert(_ context.Context, eff effect.Effect) (bool, error) {
	res, err := j.db.Exec(`DELETE FROM applied_effects WHERE effect_id = ?`, eff.ID)
	if err != nil {
		return false, fmt.Errorf("revert effect %s: %w", eff.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// #endregion journal-adapter

// #region helpers

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Printf("marshal output: %v", err)
		return
	}
	fmt.Println(string(data))
}

// #endregion helpers
