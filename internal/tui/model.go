package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"habraterm/internal/events"
	"habraterm/internal/logger"
	"habraterm/internal/session"
)

var log = logger.Named("tui")

// Gateway 抽象命令后端：提交命令、订阅事件，避免 TUI 与实现耦合。
type Gateway interface {
	Invoke(ctx context.Context, id, command string) error
	Events() <-chan events.Event
}

type Options struct {
	Gateway       Gateway
	Prompt        session.PromptState
	Routing       session.RoutingPolicy
	MaxBlockLines int
	// Inline 关闭 alt screen，输出留在终端滚动缓冲里。
	Inline bool
	// History 预置输入历史（旧的在前）；OnSubmit 在每次非空提交后调用，用于持久化。
	History  []string
	OnSubmit func(command, path string)
	// 以下仅测试注入。
	NewID     func() string
	Clipboard func(string) error
	Clock     func() time.Time
}

// commandResultMsg 是 invoke 的结果通道；backendEventMsg 是事件通道。
// 两者都只在 Update 中按到达顺序处理。
type commandResultMsg struct {
	Invocation session.Invocation
	Err        error
}

type backendEventMsg struct {
	Event events.Event
}

// backendBatchMsg 携带订阅通道里已就绪的多条事件，一次 Update 内按序处理。
type backendBatchMsg struct {
	Events []events.Event
}

// maxEventBatch 限制单次 Update 处理的事件数，避免长时间不响应按键。
const maxEventBatch = 256

type eventsClosedMsg struct{}

type clipboardMsg struct {
	Lines int
	Err   error
}

var errNoGateway = errors.New("command backend not configured")

type Model struct {
	state   *session.State
	view    *session.View
	router  *session.Router
	gateway Gateway
	eqSub   <-chan events.Event

	input    textinput.Model
	viewport viewport.Model
	spin     spinner.Model
	status   *statusIndicator
	history  promptHistory
	search   historySearch
	copy     func(string) error
	notice   string

	onSubmit  func(command, path string)
	submitted int

	width           int
	height          int
	contentLines    int
	renderedVersion uint64
	transcriptDirty bool
	transcript      transcript
}

func New(opts Options) *Model {
	state := session.NewState(session.Options{Prompt: opts.Prompt, MaxBlockLines: opts.MaxBlockLines})

	ti := textinput.New()
	ti.Prompt = ""
	ti.CharLimit = 0
	ti.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	copyFn := opts.Clipboard
	if copyFn == nil {
		copyFn = clipboard.WriteAll
	}

	m := &Model{
		state:           state,
		view:            session.NewView(state, opts.NewID),
		router:          session.NewRouter(state, opts.Routing),
		input:           ti,
		viewport:        viewport.New(80, 0),
		spin:            spin,
		status:          newStatusIndicator(opts.Clock),
		copy:            copyFn,
		onSubmit:        opts.OnSubmit,
		width:           80,
		height:          24,
		transcriptDirty: true,
	}
	// 订阅在启动时建立一次，伴随整个会话。
	if opts.Gateway != nil {
		m.gateway = opts.Gateway
		m.eqSub = opts.Gateway.Events()
	}
	for _, text := range opts.History {
		m.history.Add(text)
	}
	m.view.CreateInputLine()
	m.syncInput()
	return m
}

// State exposes the session state, mainly for tests and exit reporting.
func (m *Model) State() *session.State {
	return m.state
}

// Submitted counts the non-blank lines submitted in this session.
func (m *Model) Submitted() int {
	return m.submitted
}

// History returns the input history, oldest first, including seeded entries.
func (m *Model) History() []string {
	return m.history.Entries()
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spin.Tick}
	if cmd := m.listenEvents(); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m.finish()
	case backendEventMsg:
		m.handleBackendEvent(msg.Event)
		return m.finish(m.listenEvents())
	case backendBatchMsg:
		for _, ev := range msg.Events {
			m.handleBackendEvent(ev)
		}
		return m.finish(m.listenEvents())
	case eventsClosedMsg:
		log.Info("backend event stream closed")
		m.eqSub = nil
		return m.finish()
	case commandResultMsg:
		m.handleCommandResult(msg)
		return m.finish()
	case clipboardMsg:
		if msg.Err != nil {
			m.notice = fmt.Sprintf("clipboard: %v", msg.Err)
			log.WithError(msg.Err).Warn("copy to clipboard failed")
		} else {
			m.notice = fmt.Sprintf("copied %d lines", msg.Lines)
		}
		return m.finish()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m.finish(cmd)
	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m.finish(cmd)
}

func (m *Model) handleBackendEvent(ev events.Event) {
	if ev.Type == events.EventCommandDone {
		m.status.Finish(ev.CommandID)
		return
	}
	if m.router.Dispatch(ev) && ev.Type == events.EventPathUpdate {
		m.layoutInput()
	}
}

func (m *Model) handleCommandResult(msg commandResultMsg) {
	if msg.Err != nil {
		// 被拒绝的调用不会再有 command.done。
		m.status.Finish(msg.Invocation.BlockID)
	}
	m.view.Resolve(msg.Invocation, msg.Err)
	m.syncInput()
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.search.active {
		return m.handleSearchKey(msg)
	}
	active := m.state.Active() != nil

	switch msg.String() {
	case "ctrl+c":
		if active && m.input.Value() != "" {
			m.setInput("")
			m.history.ResetBrowsing()
			return m.finish()
		}
		return m, tea.Quit
	case "ctrl+d":
		if m.input.Value() == "" {
			return m, tea.Quit
		}
	case "pgup":
		m.viewport.LineUp(pageStep(m.viewport.Height))
		return m.finish()
	case "pgdown":
		m.viewport.LineDown(pageStep(m.viewport.Height))
		return m.finish()
	case "ctrl+r":
		if active {
			m.search.open(&m.history)
		}
		return m.finish()
	case "ctrl+y":
		return m.finish(m.copyOpenBlock())
	case "up":
		if active {
			if text, ok := m.history.Prev(m.input.Value()); ok {
				m.setInput(text)
			}
		}
		return m.finish()
	case "down":
		if active {
			if text, ok := m.history.Next(); ok {
				m.setInput(text)
			}
		}
		return m.finish()
	case "enter":
		return m.submit()
	}

	// 调用未返回前没有活动行，按键丢弃。
	if !active {
		return m.finish()
	}
	var cmd tea.Cmd
	before := m.input.Value()
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before && m.history.Browsing() {
		// 编辑过的历史条目成为新的草稿。
		m.history.ResetBrowsing()
	}
	m.view.SetInput(m.input.Value())
	return m.finish(cmd)
}

func (m *Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyCtrlC, tea.KeyCtrlG:
		m.search.close()
	case tea.KeyEnter, tea.KeyTab:
		if text, ok := m.search.current(); ok {
			m.setInput(text)
		}
		m.search.close()
	case tea.KeyUp:
		m.search.move(-1)
	case tea.KeyDown, tea.KeyCtrlR:
		m.search.move(1)
	case tea.KeyBackspace:
		m.search.backspace(&m.history)
	case tea.KeySpace:
		m.search.input(&m.history, " ")
	case tea.KeyRunes:
		m.search.input(&m.history, string(msg.Runes))
	}
	return m.finish()
}

func (m *Model) submit() (tea.Model, tea.Cmd) {
	if m.state.Active() == nil {
		return m.finish()
	}
	text := m.input.Value()
	path := m.state.Prompt().Path
	m.view.SetInput(text)
	inv, outcome := m.view.Submit()
	m.history.Add(text)
	if strings.TrimSpace(text) != "" {
		m.submitted++
		if m.onSubmit != nil {
			m.onSubmit(text, path)
		}
	}
	m.input.Reset()
	m.notice = ""

	var cmds []tea.Cmd
	if outcome == session.SubmitCommand {
		m.status.Start(inv.BlockID, inv.Command)
		cmds = append(cmds, m.invoke(inv))
	}
	m.syncInput()
	return m.finish(cmds...)
}

func (m *Model) invoke(inv session.Invocation) tea.Cmd {
	gw := m.gateway
	return func() tea.Msg {
		if gw == nil {
			return commandResultMsg{Invocation: inv, Err: errNoGateway}
		}
		err := gw.Invoke(context.Background(), inv.BlockID, inv.Command)
		return commandResultMsg{Invocation: inv, Err: err}
	}
}

func (m *Model) listenEvents() tea.Cmd {
	if m.eqSub == nil {
		return nil
	}
	sub := m.eqSub
	return func() tea.Msg {
		ev, ok := <-sub
		if !ok {
			return eventsClosedMsg{}
		}
		batch := []events.Event{ev}
		for len(batch) < maxEventBatch {
			select {
			case next, ok := <-sub:
				if !ok {
					// 关闭会在下一次 listenEvents 时再被观察到。
					return backendBatchMsg{Events: batch}
				}
				batch = append(batch, next)
				continue
			default:
			}
			break
		}
		if len(batch) == 1 {
			return backendEventMsg{Event: ev}
		}
		return backendBatchMsg{Events: batch}
	}
}

func (m *Model) copyOpenBlock() tea.Cmd {
	block := m.state.OpenBlock()
	if block == nil {
		m.notice = "nothing to copy"
		return nil
	}
	lines := block.Lines()
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	text := strings.Join(texts, "\n")
	copyFn := m.copy
	return func() tea.Msg {
		return clipboardMsg{Lines: len(texts), Err: copyFn(text)}
	}
}

func (m *Model) setInput(text string) {
	m.input.SetValue(text)
	m.input.CursorEnd()
	m.view.SetInput(text)
}

// syncInput 让输入框跟随会话的活动行。
func (m *Model) syncInput() {
	line := m.state.Active()
	if line == nil {
		m.input.Blur()
		return
	}
	if m.input.Value() != line.Text() {
		m.input.SetValue(line.Text())
		m.input.CursorEnd()
	}
	m.input.Focus()
	m.layoutInput()
}

func (m *Model) layoutInput() {
	line := m.state.Active()
	if line == nil {
		return
	}
	w := m.width - runewidth.StringWidth(line.Prompt()) - 2
	if w < 1 {
		w = 1
	}
	m.input.Width = w
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.transcriptDirty = true
	m.layoutInput()
}

// finish 在每次 Update 末尾把会话状态投影到 viewport，仅在有变化时重算内容。
func (m *Model) finish(cmds ...tea.Cmd) (tea.Model, tea.Cmd) {
	follow := m.viewport.AtBottom()
	if m.transcriptDirty || m.state.Version() != m.renderedVersion {
		m.flushTranscript()
	}
	m.layout(follow)
	return m, tea.Batch(cmds...)
}

func (m *Model) flushTranscript() {
	lines := m.transcript.sync(m.state.Items(), m.width)
	m.contentLines = len(lines)
	m.viewport.SetContent(strings.Join(lines, "\n"))
	m.renderedVersion = m.state.Version()
	m.transcriptDirty = false
}

// layout 让 viewport 只占内容需要的高度，输入行紧贴在最后一行输出下面。
func (m *Model) layout(follow bool) {
	avail := m.height - lipgloss.Height(m.bottomView())
	if avail < 0 {
		avail = 0
	}
	height := m.contentLines
	if height > avail {
		height = avail
	}
	m.viewport.Height = height
	if m.state.TakeScroll() || follow {
		m.viewport.GotoBottom()
	}
	m.layoutInput()
}

func pageStep(height int) int {
	if height < 2 {
		return 1
	}
	return height - 1
}

func (m *Model) View() string {
	bottom := m.bottomView()
	if m.contentLines == 0 || m.viewport.Height == 0 {
		return bottom
	}
	return m.viewport.View() + "\n" + bottom
}

func (m *Model) bottomView() string {
	var parts []string
	if line := m.state.Active(); line != nil {
		parts = append(parts, promptStyle.Render(line.Prompt())+" "+m.input.View())
	}
	if s := m.status.Render(m.spin.View(), m.width); s != "" {
		parts = append(parts, faintStyle.Render(s))
	}
	if m.search.active {
		parts = append(parts, m.search.view(m.width))
	}
	if m.notice != "" {
		parts = append(parts, faintStyle.Render(truncateToWidth(m.notice, m.width)))
	}
	return strings.Join(parts, "\n")
}
