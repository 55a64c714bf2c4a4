// Package shell implements the handle_command backend: it tracks a working
// directory, answers the cd and help builtins itself and runs everything else
// through the configured system shell under a pseudo-terminal.
package shell

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"habraterm/internal/backend"
	"habraterm/internal/events"
	"habraterm/internal/logger"
)

var log = logger.Named("shell")

// Options configures a Handler.
type Options struct {
	Shell     string
	ShellArgs []string
	// StartDir is the initial working directory; empty means Home.
	StartDir string
	// Home overrides the user's home directory (used for "~" expansion).
	Home string
	Env  []string
	// DrainGrace bounds how long output is still read after the process exits.
	DrainGrace time.Duration
	Cols, Rows uint16
}

// Handler is the handle_command backend.Handler.
type Handler struct {
	mu   sync.Mutex
	dir  string
	home string

	shell      string
	shellArgs  []string
	env        []string
	drainGrace time.Duration
	cols, rows uint16
}

// New resolves the home and start directories and returns a ready handler.
// A start directory that does not exist falls back to home.
func New(opts Options) *Handler {
	home := strings.TrimSpace(opts.Home)
	if home == "" {
		if h, err := os.UserHomeDir(); err == nil {
			home = h
		} else if wd, err := os.Getwd(); err == nil {
			home = wd
		} else {
			home = "/"
		}
	}
	home = filepath.Clean(home)

	dir := home
	if start := strings.TrimSpace(opts.StartDir); start != "" {
		resolved := resolveTarget(home, home, start)
		if info, err := os.Stat(resolved); err == nil && info.IsDir() {
			dir = resolved
		} else {
			log.Warnf("start dir %q unusable, falling back to %s", start, home)
		}
	}

	sh := opts.Shell
	args := opts.ShellArgs
	if strings.TrimSpace(sh) == "" {
		sh = "sh"
		args = []string{"-c"}
	}
	grace := opts.DrainGrace
	if grace <= 0 {
		grace = 250 * time.Millisecond
	}
	cols, rows := opts.Cols, opts.Rows
	if cols == 0 {
		cols = 120
	}
	if rows == 0 {
		rows = 40
	}
	return &Handler{
		dir:        dir,
		home:       home,
		shell:      sh,
		shellArgs:  append([]string(nil), args...),
		env:        opts.Env,
		drainGrace: grace,
		cols:       cols,
		rows:       rows,
	}
}

// Register installs h as the handle_command handler of b.
func Register(b *backend.Backend, h *Handler) {
	b.Register(backend.HandleCommand, h)
}

// Dir returns the current working directory.
func (h *Handler) Dir() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dir
}

// DisplayPath is the prompt suffix for the current directory before any
// path-update has been emitted: "~" at home, the absolute path elsewhere.
func (h *Handler) DisplayPath() string {
	dir := h.Dir()
	if dir == h.home {
		return "~"
	}
	return dir
}

func (h *Handler) setDir(dir string) {
	h.mu.Lock()
	h.dir = dir
	h.mu.Unlock()
}

// ValidateArgs implements backend.ArgsValidator.
func (h *Handler) ValidateArgs(args backend.Args) error {
	if _, ok := args.String("command"); !ok {
		return fmt.Errorf("%w: missing string argument \"command\"", backend.ErrInvalidArgs)
	}
	return nil
}

// Handle implements backend.Handler.
func (h *Handler) Handle(ctx context.Context, inv backend.Invocation, emit events.Publisher) error {
	command, _ := inv.Args.String("command")
	trimmed := strings.TrimSpace(command)
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "cd":
		return h.changeDir(ctx, inv.ID, strings.TrimSpace(trimmed[len("cd"):]), emit)
	case "help":
		return h.help(ctx, inv.ID, emit)
	}
	return h.run(ctx, inv.ID, trimmed, emit)
}
