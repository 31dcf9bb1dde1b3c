// VitalRelay is a daemon that incrementally syncs health sensor data from a
// local health gateway into a remote record store, deduplicating against
// already-synced records and advancing a per-user checkpoint each cycle.
//
// Usage:
//
//	vitalrelay daemon [--config <path>]     # start the sync schedule
//	vitalrelay sync-once [--config <path>]  # single sync cycle then exit
//	vitalrelay status                       # show config & state DB health
//	vitalrelay enable <group>               # enable a category group
//	vitalrelay disable <group>              # disable a category group
//	vitalrelay version                      # print version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vitalrelay/vitalrelay/internal/config"
	"github.com/vitalrelay/vitalrelay/internal/gateway"
	"github.com/vitalrelay/vitalrelay/internal/model"
	"github.com/vitalrelay/vitalrelay/internal/remote"
	"github.com/vitalrelay/vitalrelay/internal/state"
	syncp "github.com/vitalrelay/vitalrelay/internal/sync"
	"github.com/vitalrelay/vitalrelay/internal/telemetry"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		return printUsage()
	}

	switch cmd := os.Args[1]; cmd {
	case "daemon":
		return runSync(os.Args[2:], true)
	case "sync-once":
		return runSync(os.Args[2:], false)
	case "status":
		return runStatus()
	case "enable":
		return runToggle(os.Args[2:], true)
	case "disable":
		return runToggle(os.Args[2:], false)
	case "version":
		fmt.Println("vitalrelay", version)
		return nil
	default:
		return fmt.Errorf("unknown command %q — run 'vitalrelay' for usage", cmd)
	}
}

func printUsage() error {
	cfgPath, _ := config.DefaultPath()
	_, cfgErr := os.Stat(cfgPath)

	fmt.Fprintln(os.Stderr, "VitalRelay — sync health sensor data to a remote record store")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  vitalrelay daemon [--config ...]      Run the sync schedule")
	fmt.Fprintln(os.Stderr, "  vitalrelay sync-once [--config ...]   Single sync cycle then exit")
	fmt.Fprintln(os.Stderr, "  vitalrelay status                     Show config & state DB health")
	fmt.Fprintln(os.Stderr, "  vitalrelay enable <group>             Enable a category group")
	fmt.Fprintln(os.Stderr, "  vitalrelay disable <group>            Disable a category group")
	fmt.Fprintln(os.Stderr, "  vitalrelay version                    Print version")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintf(os.Stderr, "Category groups: %v\n", model.Groups)

	if cfgErr != nil {
		fmt.Fprintf(os.Stderr, "\nNo config file found at %s.\n", cfgPath)
	}

	os.Exit(1)
	return nil // unreachable
}

// --- Subcommands -------------------------------------------------------------

// runSync handles both "daemon" and "sync-once".
func runSync(args []string, daemon bool) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	defaultCfg, _ := config.DefaultPath()
	cfgPath := fs.String("config", defaultCfg, "path to config.yaml")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return startSync(*cfgPath, *verbose, daemon)
}

// runStatus prints the current configuration and state DB health.
func runStatus() error {
	cfgPath, _ := config.DefaultPath()
	dbPath, _ := state.DefaultDBPath()

	fmt.Println("VitalRelay Status")
	fmt.Println("─────────────────")

	var userID string
	if _, err := os.Stat(cfgPath); err == nil {
		if cfg, loadErr := config.Load(cfgPath); loadErr == nil {
			userID = cfg.UserID
			fmt.Printf("  Config:    %s ✓\n", cfgPath)
			fmt.Printf("  User:      %s\n", cfg.UserID)
			fmt.Printf("  Device:    %s\n", cfg.DeviceID)
			fmt.Printf("  Gateway:   %s\n", cfg.GatewayURL)
			fmt.Printf("  Interval:  %s\n", cfg.SyncInterval)
		} else {
			fmt.Printf("  Config:    %s (invalid: %v)\n", cfgPath, loadErr)
		}
	} else {
		fmt.Printf("  Config:    not found (%s)\n", cfgPath)
	}

	if info, err := os.Stat(dbPath); err == nil {
		fmt.Printf("  State DB:  %s (%s)\n", dbPath, humanSize(info.Size()))
	} else {
		fmt.Printf("  State DB:  not found\n")
		return nil
	}

	// Checkpoint and enabled groups, when config and DB both exist.
	if userID == "" {
		return nil
	}
	store, err := state.Open(dbPath)
	if err != nil {
		fmt.Printf("  State DB:  unreadable (%v)\n", err)
		return nil
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if cp, ok, err := store.Checkpoint(ctx, userID); err == nil {
		if ok {
			fmt.Printf("  Checkpoint: %s\n", cp.Format(time.RFC3339))
		} else {
			fmt.Println("  Checkpoint: none (next cycle is a cold start)")
		}
	}
	if groups, err := store.EnabledGroups(ctx, userID); err == nil {
		fmt.Printf("  Enabled:   %v\n", groups)
	}
	return nil
}

// runToggle flips one category group flag for the configured user.
func runToggle(args []string, enabled bool) error {
	fs := flag.NewFlagSet("toggle", flag.ExitOnError)
	defaultCfg, _ := config.DefaultPath()
	cfgPath := fs.String("config", defaultCfg, "path to config.yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("expected exactly one category group, e.g. 'vitalrelay enable sleep'")
	}

	group := model.Group(fs.Arg(0))
	valid := false
	for _, g := range model.Groups {
		if g == group {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("unknown category group %q (valid: %v)", group, model.Groups)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("loading config from %q: %w", *cfgPath, err)
	}

	dbPath, err := state.DefaultDBPath()
	if err != nil {
		return fmt.Errorf("resolving state DB path: %w", err)
	}
	store, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening state DB at %q: %w", dbPath, err)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.SetGroupEnabled(ctx, cfg.UserID, group, enabled); err != nil {
		return fmt.Errorf("updating %s flag: %w", group, err)
	}
	if enabled {
		fmt.Printf("✓ %s enabled for %s\n", group, cfg.UserID)
	} else {
		fmt.Printf("✓ %s disabled for %s\n", group, cfg.UserID)
	}
	return nil
}

// --- Sync core ---------------------------------------------------------------

// startSync is the shared implementation for daemon and sync-once modes.
func startSync(cfgPath string, verbose, daemon bool) error {
	// --- Logger --------------------------------------------------------------

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// --- Config --------------------------------------------------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config from %q: %w", cfgPath, err)
	}
	logger.Info("config loaded",
		"user", cfg.UserID,
		"device", cfg.DeviceID,
		"gateway", cfg.GatewayURL,
		"interval", cfg.SyncInterval,
	)

	// --- Telemetry (optional) ------------------------------------------------

	if cfg.Telemetry != nil {
		telCfg := telemetry.Config{
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			Insecure:     cfg.Telemetry.Insecure,
			ServiceName:  cfg.Telemetry.ServiceName,
			Headers:      cfg.Telemetry.Headers,
		}
		shutdownTel, err := telemetry.Setup(context.Background(), telCfg)
		if err != nil {
			logger.Error("telemetry setup failed, continuing without telemetry", "error", err)
		} else {
			logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.OTLPEndpoint)
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTel(flushCtx); err != nil {
					logger.Error("telemetry shutdown error", "error", err)
				}
			}()
		}
	}

	// --- State DB ------------------------------------------------------------

	dbPath, err := state.DefaultDBPath()
	if err != nil {
		return fmt.Errorf("resolving state DB path: %w", err)
	}
	store, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening state DB at %q: %w", dbPath, err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Error("closing state DB", "error", closeErr)
		}
	}()
	logger.Info("state DB opened", "path", dbPath)

	// --- Gateway adapter & connectivity check --------------------------------

	source := gateway.NewAdapter(cfg.GatewayURL, cfg.GatewayToken, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	logger.Info("pinging health gateway…", "url", cfg.GatewayURL)
	if err := source.Ping(ctx); err != nil {
		return fmt.Errorf("connecting to health gateway at %q: %w\n\nCheck gateway_url and gateway_token in your config file", cfg.GatewayURL, err)
	}
	logger.Info("health gateway reachable")

	// --- Remote record store -------------------------------------------------

	records, err := remote.Open(cfg.RemoteDSN)
	if err != nil {
		return fmt.Errorf("connecting to remote record store: %w", err)
	}
	defer func() {
		if closeErr := records.Close(); closeErr != nil {
			logger.Error("closing remote store", "error", closeErr)
		}
	}()
	logger.Info("remote record store ready")

	// --- Sync engine ---------------------------------------------------------

	notifier := syncp.NewLogNotifier(logger)
	reconciler := syncp.NewReconciler(source, records, store, store, records, notifier, cfg.UserID, cfg.DeviceID, logger)
	engine := syncp.NewEngine(reconciler, cfg.SyncInterval, logger)

	// --- Dispatch mode -------------------------------------------------------

	if !daemon {
		logger.Info("running single sync cycle")
		stats, err := engine.RunOnce(ctx)
		logger.Info("sync complete",
			"processed", stats.Processed,
			"inserted", stats.Inserted,
			"updated", stats.Updated,
			"failures", stats.Failures(),
		)
		return err
	}

	logger.Info("daemon starting", "interval", cfg.SyncInterval)
	if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("sync engine: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// humanSize returns a human-readable file size string.
func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
