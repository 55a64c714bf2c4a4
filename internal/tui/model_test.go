package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"habraterm/internal/events"
	"habraterm/internal/session"
)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

type invokeCall struct {
	id      string
	command string
}

type fakeGateway struct {
	mu     sync.Mutex
	calls  []invokeCall
	err    error
	ch     chan events.Event
	onCall func(id, command string)
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{ch: make(chan events.Event, 64)}
}

func (g *fakeGateway) Invoke(_ context.Context, id, command string) error {
	g.mu.Lock()
	g.calls = append(g.calls, invokeCall{id: id, command: command})
	onCall := g.onCall
	err := g.err
	g.mu.Unlock()
	if onCall != nil {
		onCall(id, command)
	}
	return err
}

func (g *fakeGateway) Events() <-chan events.Event {
	return g.ch
}

func (g *fakeGateway) Calls() []invokeCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]invokeCall(nil), g.calls...)
}

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("cmd-%d", n)
	}
}

func newTestModel(t *testing.T, gw Gateway, routing session.RoutingPolicy) *Model {
	t.Helper()
	m := New(Options{Gateway: gw, Routing: routing, NewID: seqIDs(), Clipboard: func(string) error { return nil }})
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	return m
}

func typeText(m *Model, text string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

// run executes a command returned by Update and feeds interesting results back.
func run(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	for _, msg := range collect(cmd) {
		m.Update(msg)
	}
}

func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		var out []tea.Msg
		for _, c := range msg {
			out = append(out, collect(c)...)
		}
		return out
	case commandResultMsg, clipboardMsg:
		return []tea.Msg{msg}
	default:
		return nil
	}
}

func submitLine(t *testing.T, m *Model, text string) tea.Cmd {
	t.Helper()
	typeText(m, text)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

func TestSubmitInvokesGatewayWithRawText(t *testing.T) {
	gw := newFakeGateway()
	m := newTestModel(t, gw, session.RouteLatest)

	cmd := submitLine(t, m, " ls -la ")
	if m.State().Active() != nil {
		t.Fatalf("no input line expected before the invocation resolves")
	}
	if !strings.Contains(m.View(), "ls -la") {
		t.Fatalf("committed entry missing from view:\n%s", m.View())
	}
	run(t, m, cmd)

	calls := gw.Calls()
	if len(calls) != 1 || calls[0].command != " ls -la " || calls[0].id != "cmd-1" {
		t.Fatalf("calls = %+v", calls)
	}
	if m.State().Active() == nil {
		t.Fatalf("next input line missing after resolve")
	}
	if !m.status.Active() {
		t.Fatalf("status indicator should track the running command")
	}
}

func TestBackendEventsRenderIntoBlock(t *testing.T) {
	gw := newFakeGateway()
	m := newTestModel(t, gw, session.RouteLatest)
	run(t, m, submitLine(t, m, "printf"))

	for _, p := range []string{"alpha", "beta", "gamma"} {
		m.Update(backendEventMsg{Event: events.Output("cmd-1", p)})
	}
	view := m.View()
	a, b, c := strings.Index(view, "alpha"), strings.Index(view, "beta"), strings.Index(view, "gamma")
	if a < 0 || !(a < b && b < c) {
		t.Fatalf("output out of order or missing:\n%s", view)
	}

	m.Update(backendEventMsg{Event: events.CommandDone("cmd-1", events.CommandResult{})})
	if m.status.Active() {
		t.Fatalf("command.done should stop the status indicator")
	}
}

func TestPathUpdateChangesLivePrompt(t *testing.T) {
	m := newTestModel(t, newFakeGateway(), session.RouteLatest)
	m.Update(backendEventMsg{Event: events.PathUpdate("", "/home/x")})
	if !strings.Contains(m.View(), "pritam@habra:/home/x$") {
		t.Fatalf("prompt not updated:\n%s", m.View())
	}
}

func TestClearEmptiesView(t *testing.T) {
	gw := newFakeGateway()
	m := newTestModel(t, gw, session.RouteLatest)
	run(t, m, submitLine(t, m, "echo one"))
	m.Update(backendEventMsg{Event: events.Output("cmd-1", "one")})
	m.Update(backendEventMsg{Event: events.CommandDone("cmd-1", events.CommandResult{})})

	if cmd := submitLine(t, m, "CLEAR"); len(collect(cmd)) != 0 {
		t.Fatalf("clear must not invoke the backend")
	}
	if len(gw.Calls()) != 1 {
		t.Fatalf("calls = %+v", gw.Calls())
	}
	view := m.View()
	if strings.Contains(view, "one") || strings.Contains(view, "CLEAR") {
		t.Fatalf("scrollback not cleared:\n%s", view)
	}
	if m.State().Active() == nil {
		t.Fatalf("expected a fresh input line")
	}

	// late output for the wiped block goes nowhere
	m.Update(backendEventMsg{Event: events.Output("cmd-1", "late")})
	if strings.Contains(m.View(), "late") {
		t.Fatalf("orphan output rendered")
	}
}

func TestEmptySubmitDoesNotInvoke(t *testing.T) {
	gw := newFakeGateway()
	m := newTestModel(t, gw, session.RouteLatest)
	if cmd := submitLine(t, m, "   "); len(collect(cmd)) != 0 {
		t.Fatalf("empty submit returned an invocation")
	}
	if len(gw.Calls()) != 0 || len(m.State().Entries()) != 1 || m.State().Active() == nil {
		t.Fatalf("calls=%d entries=%d", len(gw.Calls()), len(m.State().Entries()))
	}
}

func TestInvokeErrorRendersErrorLine(t *testing.T) {
	gw := newFakeGateway()
	gw.err = errors.New("backend closed")
	m := newTestModel(t, gw, session.RouteLatest)
	run(t, m, submitLine(t, m, "ls"))

	if !strings.Contains(m.View(), "Error: backend closed") {
		t.Fatalf("error line missing:\n%s", m.View())
	}
	if m.State().Active() == nil {
		t.Fatalf("input line must come back after an error")
	}
	if m.status.Active() {
		t.Fatalf("rejected invocation should not stay running")
	}
}

func TestMissingGatewayRejects(t *testing.T) {
	m := newTestModel(t, nil, session.RouteLatest)
	run(t, m, submitLine(t, m, "ls"))
	if !strings.Contains(m.View(), "Error: "+errNoGateway.Error()) {
		t.Fatalf("expected gateway error:\n%s", m.View())
	}
}

func TestKeysIgnoredWhilePending(t *testing.T) {
	m := newTestModel(t, newFakeGateway(), session.RouteLatest)
	cmd := submitLine(t, m, "sleep 1")
	typeText(m, "typed too early")
	run(t, m, cmd)
	if got := m.State().Active().Text(); got != "" {
		t.Fatalf("new line text = %q, want empty", got)
	}
}

func TestOwnerRoutingInTUI(t *testing.T) {
	gw := newFakeGateway()
	m := newTestModel(t, gw, session.RouteOwner)
	run(t, m, submitLine(t, m, "first"))
	run(t, m, submitLine(t, m, "second"))
	m.Update(backendEventMsg{Event: events.Output("cmd-1", "late-for-first")})

	lines := m.State().Block("cmd-1").Lines()
	if len(lines) != 1 || lines[0].Text != "late-for-first" {
		t.Fatalf("owner block lines = %+v", lines)
	}
	if m.State().Block("cmd-2").Len() != 0 {
		t.Fatalf("second block should be empty")
	}
}

func TestHistoryNavigation(t *testing.T) {
	m := newTestModel(t, newFakeGateway(), session.RouteLatest)
	run(t, m, submitLine(t, m, "one"))
	run(t, m, submitLine(t, m, "two"))
	typeText(m, "dra")

	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	if got := m.State().Active().Text(); got != "two" {
		t.Fatalf("up = %q", got)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	if got := m.State().Active().Text(); got != "one" {
		t.Fatalf("up up = %q", got)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if got := m.State().Active().Text(); got != "dra" {
		t.Fatalf("draft not restored: %q", got)
	}
}

func TestEditingRecalledEntryEndsBrowsing(t *testing.T) {
	m := newTestModel(t, newFakeGateway(), session.RouteLatest)
	run(t, m, submitLine(t, m, "one"))
	run(t, m, submitLine(t, m, "two"))

	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	typeText(m, "x")
	if m.history.Browsing() {
		t.Fatalf("still browsing after edit")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	if got := m.State().Active().Text(); got != "two" {
		t.Fatalf("up after edit = %q", got)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if got := m.State().Active().Text(); got != "twox" {
		t.Fatalf("edited draft not restored: %q", got)
	}
}

func TestListenEventsBatchesReadyEvents(t *testing.T) {
	gw := newFakeGateway()
	m := newTestModel(t, gw, session.RouteLatest)
	run(t, m, submitLine(t, m, "seq 3"))

	for _, text := range []string{"1", "2", "3"} {
		gw.ch <- events.Output("cmd-1", text)
	}
	msg := m.listenEvents()()
	batch, ok := msg.(backendBatchMsg)
	if !ok || len(batch.Events) != 3 {
		t.Fatalf("msg = %#v, want a batch of 3", msg)
	}
	m.Update(batch)

	block := m.State().Block("cmd-1")
	var got []string
	for _, l := range block.Lines() {
		got = append(got, l.Text)
	}
	if strings.Join(got, ",") != "1,2,3" {
		t.Fatalf("block lines = %v", got)
	}
	if !strings.Contains(m.View(), "3") {
		t.Fatalf("view missing output:\n%s", m.View())
	}
}

func TestListenEventsSingleEvent(t *testing.T) {
	gw := newFakeGateway()
	m := newTestModel(t, gw, session.RouteLatest)
	gw.ch <- events.PathUpdate("", "/tmp")
	if _, ok := m.listenEvents()().(backendEventMsg); !ok {
		t.Fatal("a lone event should arrive as backendEventMsg")
	}
}

func TestSeededHistoryAndSubmitHook(t *testing.T) {
	type record struct{ command, path string }
	var got []record
	m := New(Options{
		Gateway:  newFakeGateway(),
		NewID:    seqIDs(),
		History:  []string{"make test", "ls"},
		OnSubmit: func(command, path string) { got = append(got, record{command, path}) },
	})
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})

	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	if text := m.State().Active().Text(); text != "make test" {
		t.Fatalf("seeded history = %q", text)
	}
	run(t, m, submitLine(t, m, ""))
	m.Update(backendEventMsg{Event: events.PathUpdate("cmd-1", "/srv")})
	run(t, m, submitLine(t, m, "   "))

	if len(got) != 1 || got[0] != (record{"make test", "~"}) {
		t.Fatalf("OnSubmit calls = %+v", got)
	}
	if m.Submitted() != 1 {
		t.Fatalf("Submitted = %d", m.Submitted())
	}
}

func TestReverseSearchSelectsMatch(t *testing.T) {
	m := newTestModel(t, newFakeGateway(), session.RouteLatest)
	run(t, m, submitLine(t, m, "git status"))
	run(t, m, submitLine(t, m, "ls"))

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	if !m.search.active || !strings.Contains(m.View(), "reverse-i-search") {
		t.Fatalf("search not open:\n%s", m.View())
	}
	typeText(m, "gst")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if m.search.active {
		t.Fatalf("search should close on enter")
	}
	if got := m.State().Active().Text(); got != "git status" {
		t.Fatalf("selected = %q", got)
	}
}

func TestCopyOpenBlock(t *testing.T) {
	var copied string
	gw := newFakeGateway()
	m := New(Options{Gateway: gw, NewID: seqIDs(), Clipboard: func(s string) error { copied = s; return nil }})
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	run(t, m, submitLine(t, m, "ls"))
	m.Update(backendEventMsg{Event: events.Output("cmd-1", "a.txt")})
	m.Update(backendEventMsg{Event: events.Output("cmd-1", "b.txt")})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlY})
	run(t, m, cmd)
	if copied != "a.txt\nb.txt" {
		t.Fatalf("copied = %q", copied)
	}
	if !strings.Contains(m.View(), "copied 2 lines") {
		t.Fatalf("notice missing:\n%s", m.View())
	}
}

func TestCtrlCClearsInputThenQuits(t *testing.T) {
	m := newTestModel(t, newFakeGateway(), session.RouteLatest)
	typeText(m, "half")
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC}); cmd != nil {
		if _, ok := cmd().(tea.QuitMsg); ok {
			t.Fatalf("first ctrl+c should only clear the line")
		}
	}
	if m.State().Active().Text() != "" {
		t.Fatalf("line not cleared")
	}
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatalf("expected quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}

func TestViewportFitsTerminal(t *testing.T) {
	gw := newFakeGateway()
	m := newTestModel(t, gw, session.RouteLatest)
	run(t, m, submitLine(t, m, "seq 100"))
	for i := 1; i <= 100; i++ {
		m.Update(backendEventMsg{Event: events.Output("cmd-1", fmt.Sprint(i))})
	}
	if h := lipgloss.Height(m.View()); h > 20 {
		t.Fatalf("view height %d exceeds terminal height", h)
	}
	if !strings.Contains(m.View(), "100") {
		t.Fatalf("view should follow the newest output:\n%s", m.View())
	}
}
