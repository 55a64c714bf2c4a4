package shell

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"habraterm/internal/backend"
	"habraterm/internal/events"
)

func (h *Handler) changeDir(ctx context.Context, id, arg string, emit events.Publisher) error {
	target := resolveTarget(h.home, h.Dir(), arg)
	info, err := os.Stat(target)
	if err == nil && !info.IsDir() {
		err = errNotDir
	}
	if err != nil {
		if pubErr := emit.Publish(ctx, events.Output(id, fmt.Sprintf("cd: %s: %s", arg, describeFSError(err)))); pubErr != nil {
			return pubErr
		}
		return backend.ExitCode(1)
	}

	h.setDir(target)
	log.WithField("dir", target).Info("working directory changed")
	return emit.Publish(ctx, events.PathUpdate(id, target))
}

var errNotDir = errors.New("not a directory")

func describeFSError(err error) string {
	switch {
	case errors.Is(err, errNotDir):
		return "Not a directory"
	case errors.Is(err, fs.ErrNotExist):
		return "No such file or directory"
	case errors.Is(err, fs.ErrPermission):
		return "Permission denied"
	default:
		return err.Error()
	}
}

// resolveTarget maps a cd argument to an absolute, cleaned path.
// "", "~" and "~/" mean home; "~/x" is home-relative; other relative
// paths are taken from cwd.
func resolveTarget(home, cwd, arg string) string {
	switch arg {
	case "", "~", "~/":
		return home
	}
	if strings.HasPrefix(arg, "~/") {
		arg = filepath.Join(home, arg[2:])
	}
	if !filepath.IsAbs(arg) {
		arg = filepath.Join(cwd, arg)
	}
	return filepath.Clean(arg)
}

func (h *Handler) helpLines() []string {
	return []string{
		"BUILT-IN COMMANDS:",
		"- help: Shows this message",
		"- cd [dir]: Changes directory",
		"- clear: Clears the terminal screen",
		"",
		fmt.Sprintf("All other commands are passed to %s.", h.shell),
	}
}

func (h *Handler) help(ctx context.Context, id string, emit events.Publisher) error {
	for _, line := range h.helpLines() {
		if err := emit.Publish(ctx, events.Output(id, line)); err != nil {
			return err
		}
	}
	return nil
}
