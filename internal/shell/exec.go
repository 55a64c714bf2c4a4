package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/creack/pty"

	"habraterm/internal/backend"
	"habraterm/internal/events"
)

// run executes command with the configured shell inside dir under a pty and
// publishes every output line, in order, as an output event.
func (h *Handler) run(ctx context.Context, id, command string, emit events.Publisher) error {
	dir := h.Dir()
	args := append(append([]string{}, h.shellArgs...), command)
	cmd := exec.CommandContext(ctx, h.shell, args...)
	cmd.Dir = dir
	cmd.Env = commandEnv(h.env, dir)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: h.cols, Rows: h.rows})
	if err != nil {
		return fmt.Errorf("Failed to start command: %w", err)
	}
	defer ptmx.Close()

	// Reading and publishing are decoupled: Publish may block on a slow
	// subscriber while the pty still has to be drained.
	lines := newLineQueue()
	var lastRead atomic.Int64
	lastRead.Store(time.Now().UnixNano())
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		defer lines.close()
		_ = streamLines(ptmx, func(line string) error {
			lastRead.Store(time.Now().UnixNano())
			lines.push(line)
			return nil
		})
	}()

	publishErr := make(chan error, 1)
	go func() {
		for {
			line, ok := lines.pop()
			if !ok {
				publishErr <- nil
				return
			}
			if err := emit.Publish(ctx, events.Output(id, line)); err != nil {
				lines.discard()
				publishErr <- err
				return
			}
		}
	}()

	waitErr := cmd.Wait()
	// A grandchild may keep the slave open; close the master only once the
	// reader has seen no data for drainGrace.
	waitReaderIdle(readDone, &lastRead, h.drainGrace)
	_ = ptmx.Close()
	<-readDone

	if err := <-publishErr; err != nil {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return errors.New("command timed out")
		}
		return fmt.Errorf("command interrupted: %w", ctxErr)
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return backend.ExitCode(exitErr.ExitCode())
		}
		return waitErr
	}
	return nil
}

func waitReaderIdle(done <-chan struct{}, lastRead *atomic.Int64, grace time.Duration) {
	timer := time.NewTimer(grace)
	defer timer.Stop()
	for {
		select {
		case <-done:
			return
		case <-timer.C:
			idle := time.Since(time.Unix(0, lastRead.Load()))
			if idle >= grace {
				return
			}
			timer.Reset(grace - idle)
		}
	}
}

// streamLines splits r into lines and hands each cleaned line to emit.
// Read errors end the stream quietly: on Linux the pty master reports EIO
// once the slave side is gone.
func streamLines(r io.Reader, emit func(string) error) error {
	reader := bufio.NewReader(r)
	for {
		raw, err := reader.ReadString('\n')
		if raw != "" {
			if emitErr := emit(cleanLine(raw)); emitErr != nil {
				return emitErr
			}
		}
		if err != nil {
			return nil
		}
	}
}

// cleanLine drops the line terminator, keeps only what follows the last
// carriage return (what a terminal would show) and strips escape sequences.
func cleanLine(raw string) string {
	line := strings.TrimRight(raw, "\r\n")
	if idx := strings.LastIndex(line, "\r"); idx >= 0 {
		line = line[idx+1:]
	}
	return ansi.Strip(line)
}

func commandEnv(extra []string, dir string) []string {
	env := append(os.Environ(), extra...)
	env = setEnv(env, "TERM", "dumb")
	env = setEnv(env, "PAGER", "cat")
	env = setEnv(env, "GIT_PAGER", "cat")
	env = setEnv(env, "PWD", dir)
	return env
}

func setEnv(env []string, key, value string) []string {
	prefix := key + "="
	for i, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			env[i] = prefix + value
			return env
		}
	}
	return append(env, prefix+value)
}
