package reminder

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

// Terminal notifies by writing to a terminal. Permission is asked once with an
// interactive confirm; without a terminal on stdin notifications are
// unsupported.
type Terminal struct {
	Out io.Writer
	// Interactive reports whether a person can answer the permission prompt.
	Interactive func() bool
	// Confirm asks the permission question. Defaults to a huh confirm.
	Confirm func(ctx context.Context) (bool, error)

	mu      sync.Mutex
	granted bool
}

// NewTerminal returns a Terminal bound to stdin/stdout.
func NewTerminal() *Terminal {
	return &Terminal{
		Out: os.Stdout,
		Interactive: func() bool {
			fd := os.Stdin.Fd()
			return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
		},
		Confirm: confirmPrompt,
	}
}

func confirmPrompt(ctx context.Context) (bool, error) {
	allow := true
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Allow reflection reminders in this terminal?").
				Description("Each reminder appears once at its scheduled time while this process runs.").
				Affirmative("Allow").
				Negative("Block").
				Value(&allow),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		if stderrors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return allow, nil
}

func (t *Terminal) RequestPermission(ctx context.Context) Permission {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.granted {
		return PermissionGranted
	}
	if t.Interactive == nil || !t.Interactive() {
		return PermissionUnsupported
	}
	confirm := t.Confirm
	if confirm == nil {
		confirm = confirmPrompt
	}
	ok, err := confirm(ctx)
	if err != nil {
		return PermissionUnsupported
	}
	if !ok {
		return PermissionDenied
	}
	t.granted = true
	return PermissionGranted
}

func (t *Terminal) Show(title, body string) error {
	out := t.Out
	if out == nil {
		out = os.Stdout
	}
	_, err := fmt.Fprintf(out, "\a%s\n  %s\n", title, body)
	return err
}
