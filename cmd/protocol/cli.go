package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/hpungsan/protocol/internal/engine"
	"github.com/hpungsan/protocol/internal/errors"
	"github.com/hpungsan/protocol/internal/export"
	"github.com/hpungsan/protocol/internal/flow"
	"github.com/hpungsan/protocol/internal/reminder"
	"github.com/hpungsan/protocol/internal/synthesis"
	"github.com/hpungsan/protocol/internal/ui"
	"github.com/hpungsan/protocol/internal/web"
)

// maxStdinBytes caps answers piped to set.
const maxStdinBytes = 1 << 20

// newCLIApp creates the CLI application with all commands.
func newCLIApp(session *engine.Session, sink *export.FileSink) *cli.App {
	app := &cli.App{
		Name:    "protocol",
		Usage:   "Guided self-reflection, one answer at a time",
		Version: Version,
		Commands: []*cli.Command{
			setCmd(session),
			getCmd(session),
			showCmd(session),
			fieldsCmd(session),
			modeCmd(session),
			themeCmd(session),
			resetCmd(session),
			remindCmd(session),
			exportCmd(session, sink),
			importCmd(session, sink),
			serveCmd(session),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// setCmd creates the set command.
func setCmd(session *engine.Session) *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Answer a question (value from args or stdin; empty clears it)",
		ArgsUsage: "<key> [value...]",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("key is required"))
			}
			key := c.Args().First()

			value := strings.Join(c.Args().Tail(), " ")
			if c.NArg() == 1 && stdinHasData() {
				text, err := readStdin(maxStdinBytes)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				value = text
			}

			effects, err := session.Set(key, value)
			if err != nil {
				return outputError(err)
			}

			var revealed []string
			for _, e := range effects {
				if e.Kind == engine.EffectReveal || (e.Kind == engine.EffectAffordance && e.Visible) {
					revealed = append(revealed, e.ID)
				}
			}
			return outputJSON(map[string]any{
				"key":      key,
				"words":    session.WordCount(key),
				"revealed": revealed,
			})
		},
	}
}

// getCmd creates the get command.
func getCmd(session *engine.Session) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show one answer",
		ArgsUsage: "<key>",
		Action: func(c *cli.Context) error {
			key := c.Args().First()
			f, ok := session.Graph().Field(key)
			if !ok {
				return outputError(errors.NewUnknownField(key))
			}
			return outputJSON(map[string]any{
				"key":      key,
				"label":    f.Label,
				"value":    session.Get(key),
				"words":    session.WordCount(key),
				"revealed": session.Revealed(f.Block),
			})
		},
	}
}

// showCmd creates the show command.
func showCmd(session *engine.Session) *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "Display the revealed questions, answers and summary",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Print the session as JSON"},
		},
		Action: func(c *cli.Context) error {
			snap := session.Snapshot()
			if c.Bool("json") {
				return outputJSON(snap)
			}
			_, err := fmt.Fprint(os.Stdout, ui.RenderSession(session.Graph(), snap))
			return err
		},
	}
}

// fieldsCmd creates the fields command.
func fieldsCmd(session *engine.Session) *cli.Command {
	return &cli.Command{
		Name:  "fields",
		Usage: "List every field key with its question",
		Action: func(c *cli.Context) error {
			g := session.Graph()
			type fieldRow struct {
				Key      string       `json:"key"`
				Section  flow.Section `json:"section"`
				Label    string       `json:"label"`
				Revealed bool         `json:"revealed"`
			}
			rows := make([]fieldRow, 0, len(g.Keys()))
			for _, key := range g.Keys() {
				f, _ := g.Field(key)
				rows = append(rows, fieldRow{
					Key:      key,
					Section:  f.Section,
					Label:    f.Label,
					Revealed: f.Block != "" && session.Revealed(f.Block),
				})
			}
			return outputJSON(rows)
		},
	}
}

// modeCmd creates the mode command.
func modeCmd(session *engine.Session) *cli.Command {
	return &cli.Command{
		Name:      "mode",
		Usage:     "Switch between learn and execute mode",
		ArgsUsage: "<learn|execute>",
		Action: func(c *cli.Context) error {
			mode, ok := synthesis.ParseMode(c.Args().First())
			if !ok {
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("unknown mode %q (want learn or execute)", c.Args().First())))
			}
			if _, err := session.SwitchMode(c.Context, mode); err != nil {
				return outputError(err)
			}
			snap := session.Snapshot()
			return outputJSON(map[string]any{
				"mode":            snap.Mode,
				"summary_visible": snap.SummaryVisible,
				"summary":         snap.Summary,
			})
		},
	}
}

// themeCmd creates the theme command.
func themeCmd(session *engine.Session) *cli.Command {
	return &cli.Command{
		Name:      "theme",
		Usage:     "Set the display theme (no argument toggles it)",
		ArgsUsage: "[dark|light]",
		Action: func(c *cli.Context) error {
			theme := session.Snapshot().Theme.Toggle()
			if c.NArg() > 0 {
				var ok bool
				if theme, ok = engine.ParseTheme(c.Args().First()); !ok {
					return outputError(errors.NewInvalidRequest(fmt.Sprintf("unknown theme %q (want dark or light)", c.Args().First())))
				}
			}
			if _, err := session.SwitchTheme(c.Context, theme); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"theme": theme})
		},
	}
}

// confirmReset asks before erasing answers. Replaced in tests.
var confirmReset = func(ctx context.Context) (bool, error) {
	fd := os.Stdin.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return false, errors.NewInvalidRequest("refusing to reset without --yes")
	}
	ok := false
	err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title("Erase every answer and reminder?").
			Description("Mode and theme are kept. This cannot be undone.").
			Affirmative("Erase").
			Negative("Keep").
			Value(&ok),
	)).RunWithContext(ctx)
	if stderrors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	return ok, err
}

// resetCmd creates the reset command.
func resetCmd(session *engine.Session) *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "Erase every answer and reminder",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Skip the confirmation prompt"},
		},
		Action: func(c *cli.Context) error {
			if !c.Bool("yes") {
				ok, err := confirmReset(c.Context)
				if err != nil {
					return outputError(err)
				}
				if !ok {
					return outputJSON(map[string]any{"reset": false})
				}
			}
			if _, err := session.ResetAll(c.Context); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"reset": true})
		},
	}
}

// remindCmd creates the remind command and its subcommands.
func remindCmd(session *engine.Session) *cli.Command {
	return &cli.Command{
		Name:  "remind",
		Usage: "Configure and activate reflection reminders",
		Subcommands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Set the time of a reminder (HH:MM or a phrase like 9pm; empty clears it)",
				ArgsUsage: "<slot 1-6> [time]",
				Action: func(c *cli.Context) error {
					slot, err := strconv.Atoi(c.Args().First())
					if err != nil {
						return outputError(errors.NewInvalidRequest("slot must be an integer"))
					}
					rs, err := session.ConfigureReminder(slot-1, strings.Join(c.Args().Tail(), " "))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(rs)
				},
			},
			{
				Name:  "list",
				Usage: "List reminder slots",
				Action: func(c *cli.Context) error {
					return outputJSON(session.Reminders())
				},
			},
			{
				Name:  "activate",
				Usage: "Schedule every valid reminder for its next occurrence",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "wait", Aliases: []string{"w"}, Usage: "Stay running until interrupted so reminders can fire"},
				},
				Action: func(c *cli.Context) error {
					res, err := session.ActivateReminders(c.Context)
					if err != nil {
						return outputError(err)
					}
					fmt.Fprintln(os.Stderr, res.Message())
					if err := outputJSON(res); err != nil {
						return err
					}
					if err := res.Err(); err != nil {
						return outputError(err)
					}
					if c.Bool("wait") && res.Status == reminder.StatusActivated {
						ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
						defer stop()
						fmt.Fprintln(os.Stderr, "Waiting for reminders. Press Ctrl+C to stop.")
						<-ctx.Done()
					}
					return nil
				},
			},
		},
	}
}

// exportCmd creates the export command.
func exportCmd(session *engine.Session, sink *export.FileSink) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export every answer to a document",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "text", Usage: "Document format: text|markdown|html"},
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.protocol/exports/the-protocol-<date>.<ext>)"},
			&cli.BoolFlag{Name: "stdout", Usage: "Write the document to stdout instead of a file"},
		},
		Action: func(c *cli.Context) error {
			format, err := export.ParseFormat(c.String("format"))
			if err != nil {
				return outputError(err)
			}

			if c.Bool("stdout") {
				r, err := session.Export(format)
				if err != nil {
					return outputError(err)
				}
				_, err = os.Stdout.Write(r.Content)
				return err
			}

			var path string
			if p := c.String("path"); p != "" {
				r, err := session.Export(format)
				if err != nil {
					return outputError(err)
				}
				path, err = sink.WriteTo(c.Context, p, r.Content)
				if err != nil {
					return outputError(err)
				}
			} else {
				path, err = session.ExportTo(c.Context, sink, format)
				if err != nil {
					return outputError(err)
				}
			}
			return outputJSON(map[string]any{"path": path, "format": format})
		},
	}
}

// importCmd creates the import command.
func importCmd(session *engine.Session, sink *export.FileSink) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Restore answers from a markdown export",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Markdown export to read"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "merge", Usage: "Import mode: merge|replace"},
		},
		Action: func(c *cli.Context) error {
			var replace bool
			switch c.String("mode") {
			case "merge":
			case "replace":
				replace = true
			default:
				return outputError(errors.NewInvalidRequest("mode must be one of: merge, replace"))
			}

			data, err := sink.Load(c.Context, c.String("path"))
			if err != nil {
				return outputError(err)
			}
			im, err := export.ParseMarkdown(session.Graph(), data)
			if err != nil {
				return outputError(err)
			}
			if _, err := session.Import(c.Context, im.Values, replace); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{
				"imported": len(im.Values),
				"keys":     im.Keys(),
				"mode":     c.String("mode"),
			})
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(session *engine.Session) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8089, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv := web.NewServer(session, Version, c.String("bind"), c.Int("port"))
			return web.Run(srv, session)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var pErr *errors.ProtocolError
	if stderrors.As(err, &pErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", pErr.Code, pErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads at most limit bytes from stdin.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("input exceeds %d bytes", limit)
	}
	return strings.TrimSpace(string(data)), nil
}
