package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/fridayhq/friday/internal/bus"
	"github.com/fridayhq/friday/internal/config"
	otelPkg "github.com/fridayhq/friday/internal/otel"
	"github.com/fridayhq/friday/internal/persistence"
	"github.com/fridayhq/friday/internal/schedule"
	"github.com/fridayhq/friday/internal/scheduler"
	"github.com/fridayhq/friday/internal/telemetry"
)

// Version is set via ldflags at build time: -ldflags "-X main.Version=..."
var Version = "v0.3-dev"

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage of %s:

DAEMON MODE (default):
  %s                          Run the scheduler daemon in the foreground
  %s -daemon                  Same, with logs on stdout (for service managers)

SUBCOMMANDS:
  %s status                   Show store contents and schema version
  %s config <action>          Show or edit config.yaml
                              Actions: show, set-log-level, set-catch-up
  %s task <action>            Manage scheduled tasks
                              Actions: add, list, enable, disable, runs
  %s fact <action>            Manage memory facts
                              Actions: set, get, list
  %s note <action>            Manage notes
                              Actions: add, search
  %s log [options]            Show the conversation log

FLAGS:
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0])
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
ENVIRONMENT VARIABLES:
  FRIDAY_HOME             Data directory (default: ~/.friday)
  FRIDAY_DB               Database path override
  FRIDAY_LOG_LEVEL        Log level (debug, info, warn, error)

EXAMPLES:
  Run the daemon:         %s
  Add a recurring task:   %s task add -title "morning briefing" -schedule "0 8 * * *"
  Remember a fact:        %s fact set -key user.city -value Lyon -confidence 0.9
  Inspect the store:      %s status
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0])
}

func main() {
	loadDotEnv(".env")

	daemon := flag.Bool("daemon", false, "log to stdout as well as the log file")
	flag.Usage = printUsage
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if args := flag.Args(); len(args) > 0 {
		switch strings.ToLower(strings.TrimSpace(args[0])) {
		case "help", "-h", "--help":
			printUsage()
			os.Exit(0)
		case "status":
			os.Exit(runStatusCommand(ctx, args[1:]))
		case "config":
			os.Exit(runConfigCommand(ctx, args[1:]))
		case "task":
			os.Exit(runTaskCommand(ctx, args[1:]))
		case "fact":
			os.Exit(runFactCommand(ctx, args[1:]))
		case "note":
			os.Exit(runNoteCommand(ctx, args[1:]))
		case "log":
			os.Exit(runLogCommand(ctx, args[1:]))
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
			printUsage()
			os.Exit(2)
		}
	}

	// Foreground at a terminal keeps the console clean; -daemon or piped
	// output gets the log stream on stdout.
	quietLogs := isatty.IsTerminal(os.Stdout.Fd()) && !*daemon
	runDaemon(ctx, quietLogs)
}

func runDaemon(ctx context.Context, quietLogs bool) {
	cfg, err := config.Load()
	if err != nil {
		fatalStartup(nil, "E_CONFIG_LOAD", err)
	}

	if cfg.NeedsGenesis {
		if err := writeDefaultConfig(cfg.HomeDir); err != nil {
			fatalStartup(nil, "E_CONFIG_WRITE", err)
		}
		cfg, err = config.Load()
		if err != nil {
			fatalStartup(nil, "E_CONFIG_RELOAD", err)
		}
	}

	logger, closer, err := telemetry.NewLogger(cfg.HomeDir, cfg.LogLevel, quietLogs)
	if err != nil {
		fatalStartup(nil, "E_LOGGER_INIT", err)
	}
	defer closer.Close()
	slog.SetDefault(logger)
	logger.Info("startup phase", "phase", "config_loaded",
		"version", Version, "fingerprint", cfg.Fingerprint())

	otelProvider, err := otelPkg.Init(ctx, cfg.OTel)
	if err != nil {
		fatalStartup(logger, "E_OTEL_INIT", err)
	}
	defer otelProvider.Shutdown(context.Background())

	metrics, err := otelPkg.NewMetrics(otelProvider.Meter)
	if err != nil {
		fatalStartup(logger, "E_METRICS_INIT", err)
	}

	eventBus := bus.New()
	store, err := persistence.Open(cfg.DBPath, eventBus)
	if err != nil {
		fatalStartup(logger, "E_STORE_OPEN", err)
	}
	defer store.Close()
	logger.Info("startup phase", "phase", "schema_migrated", "db", cfg.DBPath)

	eval, err := evaluatorFromConfig(cfg)
	if err != nil {
		fatalStartup(logger, "E_SCHEDULE_POLICY", err)
	}

	sched := scheduler.New(scheduler.Config{
		Store:    store,
		Eval:     eval,
		Runner:   newTaskRunner(store, cfg.SessionID),
		Logger:   logger,
		Bus:      eventBus,
		Metrics:  metrics,
		Interval: time.Duration(cfg.Scheduler.PollIntervalSeconds) * time.Second,
	})

	watcher := config.NewWatcher(cfg.HomeDir, logger)
	if err := watcher.Start(ctx); err != nil {
		logger.Warn("config watcher unavailable", "error", err)
	} else {
		go func() {
			for range watcher.Events() {
				logger.Info("config changed on disk; restart to apply")
			}
		}()
	}

	go countStoreEvents(ctx, eventBus, metrics)

	if quietLogs {
		fmt.Printf("friday %s · db %s · polling every %ds\n",
			Version, cfg.DBPath, cfg.Scheduler.PollIntervalSeconds)
		go echoTaskEvents(eventBus)
	}

	sched.Start(ctx)
	<-ctx.Done()
	sched.Stop()
	logger.Info("shutdown complete")
}

// newTaskRunner returns the default task body: append a notification to the
// conversation log. A payload message overrides the generic text.
func newTaskRunner(store *persistence.Store, sessionID string) scheduler.RunnerFunc {
	return func(ctx context.Context, task persistence.Task) error {
		text := "Task due: " + task.Title
		if task.Payload != "" {
			var p struct {
				Message string `json:"message"`
			}
			if err := json.Unmarshal([]byte(task.Payload), &p); err == nil && p.Message != "" {
				text = p.Message
			}
		}
		_, err := store.AppendMessage(ctx, sessionID, persistence.RoleAssistant, text)
		return err
	}
}

// countStoreEvents feeds store activity from the bus into the metric
// instruments.
func countStoreEvents(ctx context.Context, eventBus *bus.Bus, metrics *otelPkg.Metrics) {
	sub := eventBus.Subscribe("")
	defer eventBus.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Ch():
			if !ok {
				return
			}
			switch ev.Topic {
			case bus.TopicMessageAppended:
				metrics.MessageAppends.Add(ctx, 1)
			case bus.TopicFactObserved:
				metrics.FactObservations.Add(ctx, 1)
				if p, ok := ev.Payload.(bus.FactObservedEvent); ok && p.Applied {
					metrics.FactReplacements.Add(ctx, 1)
				}
			case bus.TopicToolCallCompleted:
				if p, ok := ev.Payload.(bus.ToolCallCompletedEvent); ok {
					metrics.ToolCallDuration.Record(ctx, p.Elapsed.Seconds())
					if !p.OK {
						metrics.ToolCallErrors.Add(ctx, 1)
					}
				}
			case bus.TopicStoreBusyRetry:
				metrics.StoreRetries.Add(ctx, 1)
			}
		}
	}
}

// echoTaskEvents mirrors scheduler activity to the console in foreground mode.
func echoTaskEvents(eventBus *bus.Bus) {
	sub := eventBus.Subscribe("task.")
	for ev := range sub.Ch() {
		switch payload := ev.Payload.(type) {
		case bus.TaskFiredEvent:
			fmt.Printf("task fired: %s\n", payload.Title)
		case bus.TaskOutcomeEvent:
			if !payload.OK {
				fmt.Printf("task failed: %s: %s\n", payload.Title, payload.Detail)
			}
		}
	}
}

func evaluatorFromConfig(cfg config.Config) (schedule.Evaluator, error) {
	policy, err := schedule.ParsePolicy(cfg.Scheduler.CatchUp)
	if err != nil {
		return schedule.Evaluator{}, err
	}
	return schedule.Evaluator{CatchUp: policy}, nil
}

// openStore loads config and opens the store for CLI subcommands.
func openStore(_ context.Context) (*persistence.Store, config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, cfg, fmt.Errorf("config load: %w", err)
	}
	store, err := persistence.Open(cfg.DBPath, nil)
	if err != nil {
		return nil, cfg, fmt.Errorf("open store: %w", err)
	}
	return store, cfg, nil
}

func writeDefaultConfig(homeDir string) error {
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		return fmt.Errorf("create home: %w", err)
	}
	cfg := config.Config{
		LogLevel:  "info",
		SessionID: "main",
		Scheduler: config.SchedulerConfig{
			PollIntervalSeconds: 30,
			CatchUp:             "skip",
		},
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(config.ConfigPath(homeDir), data, 0o644)
}

func fatalStartup(logger *slog.Logger, reasonCode string, err error) {
	message := ""
	if err != nil {
		message = err.Error()
	}
	if logger != nil {
		logger.Error("startup failure", "reason_code", reasonCode, "error", message)
	} else {
		fmt.Fprintf(
			os.Stderr,
			`{"timestamp":"%s","level":"ERROR","component":"core","msg":"startup failure","reason_code":%q,"error":%q}`+"\n",
			time.Now().UTC().Format(time.RFC3339Nano),
			reasonCode,
			message,
		)
	}
	os.Exit(1)
}

// loadDotEnv sets env vars from a .env file without overriding existing ones.
func loadDotEnv(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		eq := strings.Index(line, "=")
		if eq <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		val := strings.TrimSpace(line[eq+1:])
		if key == "" || os.Getenv(key) != "" {
			continue
		}
		_ = os.Setenv(key, val)
	}
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
