package backend

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"habraterm/internal/events"
	"habraterm/internal/logger"
)

type validatingHandler struct {
	HandlerFunc
}

func (validatingHandler) ValidateArgs(args Args) error {
	if _, ok := args.String("command"); !ok {
		return ErrInvalidArgs
	}
	return nil
}

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b := New(Options{Workers: 1, Log: logger.Discard()})
	t.Cleanup(b.Close)
	return b
}

func collectUntilDone(t *testing.T, ch <-chan events.Event, id string) []events.Event {
	t.Helper()
	timeout := time.After(3 * time.Second)
	var got []events.Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("event channel closed early, got %v", got)
			}
			if ev.CommandID != id {
				continue
			}
			got = append(got, ev)
			if ev.Type == events.EventCommandDone {
				return got
			}
		case <-timeout:
			t.Fatalf("timeout waiting for command.done, got %v", got)
		}
	}
}

func TestInvokeStreamsEventsTaggedWithID(t *testing.T) {
	b := newTestBackend(t)
	b.Register("echo", HandlerFunc(func(ctx context.Context, inv Invocation, emit events.Publisher) error {
		text, _ := inv.Args.String("command")
		for _, word := range strings.Fields(text) {
			if err := emit.Publish(ctx, events.Output(inv.ID, word)); err != nil {
				return err
			}
		}
		return nil
	}))
	sub := b.Subscribe()
	b.Start(context.Background())

	if err := b.Invoke(context.Background(), "echo", Args{"command": "a b c", "id": "cmd-1"}); err != nil {
		t.Fatalf("invoke: %v", err)
	}

	got := collectUntilDone(t, sub, "cmd-1")
	if len(got) != 4 {
		t.Fatalf("expected 3 outputs + done, got %v", got)
	}
	for i, want := range []string{"a", "b", "c"} {
		if got[i].Type != events.EventOutput || got[i].Text() != want {
			t.Fatalf("event %d = %+v, want output %q", i, got[i], want)
		}
	}
	res, ok := got[3].Payload.(events.CommandResult)
	if !ok || res.ExitCode != 0 {
		t.Fatalf("unexpected done payload %+v", got[3].Payload)
	}
}

func TestInvokeGeneratesIDWhenMissing(t *testing.T) {
	b := newTestBackend(t)
	seen := make(chan string, 1)
	b.Register("noop", HandlerFunc(func(ctx context.Context, inv Invocation, emit events.Publisher) error {
		seen <- inv.ID
		return nil
	}))
	b.Start(context.Background())

	if err := b.Invoke(context.Background(), "noop", Args{}); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	select {
	case id := <-seen:
		if id == "" {
			t.Fatal("expected generated id")
		}
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}
}

func TestInvokeRejections(t *testing.T) {
	b := newTestBackend(t)
	b.Register(HandleCommand, validatingHandler{HandlerFunc(func(context.Context, Invocation, events.Publisher) error {
		return nil
	})})
	b.Start(context.Background())

	if err := b.Invoke(context.Background(), "nope", Args{"command": "x"}); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
	if err := b.Invoke(context.Background(), HandleCommand, Args{"command": 42}); !errors.Is(err, ErrInvalidArgs) {
		t.Fatalf("expected ErrInvalidArgs, got %v", err)
	}

	b.Close()
	if err := b.Invoke(context.Background(), HandleCommand, Args{"command": "ls"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestHandlerErrorsBecomeOutputAndExitCodes(t *testing.T) {
	b := newTestBackend(t)
	b.Register("fail", HandlerFunc(func(context.Context, Invocation, events.Publisher) error {
		return errors.New("boom")
	}))
	b.Register("exit3", HandlerFunc(func(context.Context, Invocation, events.Publisher) error {
		return ExitCode(3)
	}))
	sub := b.Subscribe()
	b.Start(context.Background())

	if err := b.Invoke(context.Background(), "fail", Args{"id": "f"}); err != nil {
		t.Fatalf("invoke fail: %v", err)
	}
	got := collectUntilDone(t, sub, "f")
	if len(got) != 2 || got[0].Text() != "boom" {
		t.Fatalf("unexpected events for failing handler: %v", got)
	}
	if res := got[1].Payload.(events.CommandResult); res.ExitCode != -1 || res.Error != "boom" {
		t.Fatalf("unexpected result %+v", res)
	}

	if err := b.Invoke(context.Background(), "exit3", Args{"id": "e"}); err != nil {
		t.Fatalf("invoke exit3: %v", err)
	}
	got = collectUntilDone(t, sub, "e")
	if len(got) != 1 {
		t.Fatalf("exit code must not produce output lines, got %v", got)
	}
	if res := got[0].Payload.(events.CommandResult); res.ExitCode != 3 || res.Error != "" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestSubmissionQueueSubmitReceive(t *testing.T) {
	q := NewSubmissionQueue(2)
	q.SetLogger(logger.Discard())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := q.Submit(ctx, Invocation{ID: "s1"}); err != nil {
		t.Fatalf("submit s1: %v", err)
	}
	if err := q.Submit(ctx, Invocation{ID: "s2"}); err != nil {
		t.Fatalf("submit s2: %v", err)
	}
	for _, want := range []string{"s1", "s2"} {
		got, err := q.Receive(ctx)
		if err != nil {
			t.Fatalf("receive %s: %v", want, err)
		}
		if got.ID != want {
			t.Fatalf("expected %s, got %s", want, got.ID)
		}
	}

	q.Close()
	if _, err := q.Receive(ctx); !errors.Is(err, ErrSubmissionQueueClosed) {
		t.Fatalf("expected ErrSubmissionQueueClosed, got %v", err)
	}
	if err := q.Submit(ctx, Invocation{ID: "s3"}); !errors.Is(err, ErrSubmissionQueueClosed) {
		t.Fatalf("expected ErrSubmissionQueueClosed on submit, got %v", err)
	}
}
