// Courierd is the realtime agent session daemon.
//
// It maintains one persistent websocket session to the agent backend,
// exposes the local messaging toolset to the backend over that channel,
// streams user turns, and records thread history locally.
//
// Usage:
//
//	courierd serve             Start the session daemon
//	courierd login             Log in via terminal QR code
//	courierd version           Print version and build information
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alphahumanxyz/courier/internal/buildinfo"
	"github.com/alphahumanxyz/courier/internal/channel"
	"github.com/alphahumanxyz/courier/internal/config"
	"github.com/alphahumanxyz/courier/internal/events"
	"github.com/alphahumanxyz/courier/internal/logintoken"
	"github.com/alphahumanxyz/courier/internal/mcpbridge"
	"github.com/alphahumanxyz/courier/internal/messenger"
	"github.com/alphahumanxyz/courier/internal/session"
	"github.com/alphahumanxyz/courier/internal/snapshot"
	"github.com/alphahumanxyz/courier/internal/stream"
	"github.com/alphahumanxyz/courier/internal/threadstore"
	"github.com/alphahumanxyz/courier/internal/tools"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for database/sql
)

// main constructs the OS-level environment and delegates to [run], so
// the full lifecycle is drivable from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. Arguments are parsed by hand: the flag
// package relies on package-level globals, which gets in the way of
// calling run() concurrently from tests, and the surface here is tiny.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string
	var command string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "login":
		return runLogin(ctx, stdout, configPath)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runServe wires the full session stack and blocks until the context
// is cancelled or a termination signal arrives.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo)
	logger.Info("starting courierd", "version", buildinfo.Version,
		"commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = newLogger(stdout, level)
	}
	logger.Info("config loaded", "path", cfgPath,
		"socket_url", cfg.Backend.SocketURL, "data_dir", cfg.DataDir)

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
	}

	// Thread history.
	dbPath := cfg.DataDir + "/courier.db"
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("open thread database %s: %w", dbPath, err)
	}
	defer db.Close()
	store, err := threadstore.NewStore(db)
	if err != nil {
		return fmt.Errorf("open thread store: %w", err)
	}
	logger.Info("thread database opened", "path", dbPath)

	// Messenger API and warm state snapshot.
	api := messenger.NewClient(cfg.Messenger.BaseURL, cfg.Messenger.Token, logger)
	snap := snapshot.New(api, logger)
	if err := snap.Refresh(ctx); err != nil {
		logger.Warn("initial snapshot refresh failed", "error", err)
	}

	bus := events.New()
	sock := channel.New(logger)

	registry := tools.NewRegistry(api, snap, logger)
	logger.Info("tool registry built", "tools", registry.Len())

	bridge := mcpbridge.New(mcpbridge.Config{
		Socket:   sock,
		Registry: registry,
		Bus:      bus,
		Logger:   logger,
	})
	defer bridge.Close()

	streamer := stream.New(stream.Config{
		Socket:   sock,
		Bus:      bus,
		Recorder: store,
		Timeout:  cfg.Session.StreamTimeoutOrDefault(),
		Logger:   logger,
	})
	defer streamer.Close()

	mgr := session.New(session.Config{
		Socket:    sock,
		Bus:       bus,
		Logger:    logger,
		Session:   cfg.Session,
		SocketURL: cfg.Backend.SocketURL,
		DataDir:   cfg.DataDir,
	})

	switch state := mgr.Login(ctx); state {
	case session.StateConnected:
	case session.StateTokenMissing:
		logger.Warn("no access token stored; run 'courierd login'")
	case session.StateTokenInvalid:
		logger.Warn("stored token rejected; run 'courierd login'")
	default:
		logger.Info("session starting", "state", state)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	mgr.Close()
	return nil
}

// runLogin drives the QR login flow: create a login token, render it,
// poll until the user approves on another device, then persist the
// access token through the session manager.
func runLogin(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelWarn)

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
	}

	lc := logintoken.New(cfg.Backend.APIURL, logger)
	lt, err := lc.Create(ctx)
	if err != nil {
		return err
	}

	qr, err := logintoken.QRTerminal(lt)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, "Scan this code with the app on a logged-in device:")
	fmt.Fprintln(stdout)
	fmt.Fprint(stdout, qr)
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Waiting for approval...")

	access, err := lc.Await(ctx, lt, 2*time.Second)
	if err != nil {
		if errors.Is(err, logintoken.ErrExpired) {
			return errors.New("login code expired before approval; run login again")
		}
		return err
	}

	sock := channel.New(logger)
	defer sock.Close()
	mgr := session.New(session.Config{
		Socket:    sock,
		Logger:    logger,
		Session:   cfg.Session,
		SocketURL: cfg.Backend.SocketURL,
		DataDir:   cfg.DataDir,
	})

	switch state := mgr.UpdateTokenAndLogin(ctx, access); state {
	case session.StateConnected:
		fmt.Fprintln(stdout, "Logged in.")
		mgr.Close()
		return nil
	case session.StateTokenInvalid:
		return errors.New("backend issued an unusable token; try again")
	default:
		fmt.Fprintf(stdout, "Token stored; session state: %s\n", state)
		mgr.Close()
		return nil
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Courier - Realtime Agent Session Daemon")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: courierd [flags] <command>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Start the session daemon")
	fmt.Fprintln(w, "  login        Log in via terminal QR code")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./courier.yaml, ~/.config/courier/courier.yaml, /etc/courier/courier.yaml")
	return nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	return cfg, cfgPath, nil
}
