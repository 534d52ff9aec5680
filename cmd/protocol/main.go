package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hpungsan/protocol/internal/config"
	"github.com/hpungsan/protocol/internal/db"
	"github.com/hpungsan/protocol/internal/engine"
	"github.com/hpungsan/protocol/internal/export"
	"github.com/hpungsan/protocol/internal/flow"
	"github.com/hpungsan/protocol/internal/mcp"
	"github.com/hpungsan/protocol/internal/reminder"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"set": true, "get": true, "show": true, "fields": true,
	"mode": true, "theme": true, "reset": true,
	"remind": true, "export": true, "import": true, "serve": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	// Known subcommand → CLI
	if cliCommands[arg] {
		return true
	}
	// --help or --version → CLI
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   ___  ___  ___  _____ ___   ___ ___  _
  | _ \| _ \/ _ \|_   _/ _ \ / __/ _ \| |
  |  _/|   / (_) | | || (_) | (_| (_) | |__
  |_|  |_|_\\___/  |_| \___/ \___\___/|____|

  Guided self-reflection, one answer at a time

  Usage: protocol <command> [options]
         protocol --help

  MCP server mode requires piped input.`)
}

func main() {
	os.Exit(run())
}

func run() int {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return 0
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil, nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		return 1
	}

	baseDir := filepath.Join(homeDir, ".protocol")

	database, err := db.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		return 1
	}
	defer database.Close()

	cwd, _ := os.Getwd()
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		return 1
	}
	db.ConfigurePool(database, cfg)

	graph, ok := flow.ByName(cfg.Flow)
	if !ok {
		fmt.Fprintf(os.Stderr, "error: unknown flow %q in config (want protocol or journey)\n", cfg.Flow)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	session := engine.New(engine.Options{
		Graph:    graph,
		Backend:  db.NewKV(database),
		Notifier: reminder.NewTerminal(),
		Logger:   logger,
		Config:   cfg,
	})
	ctx := context.Background()
	_ = session.Load(ctx)
	defer func() {
		if err := session.Close(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "error: saving answers failed: %v\n", err)
		}
	}()

	sink := &export.FileSink{Dir: filepath.Join(baseDir, "exports"), Config: cfg}

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(session, sink)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'protocol --help' for usage.\n")
		return 1
	}

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logger.Warn("ignoring unknown disabled_tools", "tools", unknown)
	}

	// MCP server mode (default)
	if err := mcp.Run(session, cfg, sink, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
