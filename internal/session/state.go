// Package session holds the terminal session state machine: the scrollback of
// committed commands and their output blocks, the single active input line and
// the prompt. It is not safe for concurrent use; every call is expected to
// come from one event loop.
package session

import (
	"fmt"
	"strings"
)

// DefaultIdentity and DefaultPath make up the prompt before any path-update.
const (
	DefaultIdentity = "pritam@habra"
	DefaultPath     = "~"
)

// LineKind distinguishes command output from locally rendered errors.
type LineKind int

const (
	LineOutput LineKind = iota
	LineError
)

// Line is one rendered line inside an OutputBlock.
type Line struct {
	Text string
	Kind LineKind
}

// Entry is a committed input line. It never changes after commit.
type Entry struct {
	Ordinal int
	Prompt  string
	Text    string
}

// OutputBlock collects the output of one submitted command. It sits right
// after its Entry in the scrollback and only ever grows.
type OutputBlock struct {
	ID      string
	Command string
	lines   *lineRing
}

func newOutputBlock(id, command string, maxLines int) *OutputBlock {
	return &OutputBlock{ID: id, Command: command, lines: newLineRing(maxLines)}
}

// Lines returns a copy of the retained lines in append order.
func (b *OutputBlock) Lines() []Line {
	return b.lines.slice()
}

// Len is the number of retained lines.
func (b *OutputBlock) Len() int {
	return b.lines.len()
}

// Appended counts every line ever appended, evicted ones included.
func (b *OutputBlock) Appended() int {
	return b.lines.len() + b.lines.dropped
}

// Tail returns the retained lines appended at or after position from, where
// positions count from the first line ever appended.
func (b *OutputBlock) Tail(from int) []Line {
	return b.lines.since(from)
}

// Truncated reports how many early lines were evicted by the line cap.
func (b *OutputBlock) Truncated() int {
	return b.lines.dropped
}

func (b *OutputBlock) append(line Line) {
	b.lines.push(line)
}

// Item is one scrollback element; exactly one of Entry or Block is set.
type Item struct {
	Entry *Entry
	Block *OutputBlock
}

// LineStatus is the lifecycle of an InputLine.
type LineStatus int

const (
	StatusCreated LineStatus = iota
	StatusFocused
	StatusEditing
	StatusSubmitted
	StatusCommitted
	StatusDiscarded
)

func (s LineStatus) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusFocused:
		return "focused"
	case StatusEditing:
		return "editing"
	case StatusSubmitted:
		return "submitted"
	case StatusCommitted:
		return "committed"
	case StatusDiscarded:
		return "discarded"
	default:
		return fmt.Sprintf("LineStatus(%d)", int(s))
	}
}

// Editable reports whether the line still accepts input.
func (s LineStatus) Editable() bool {
	return s == StatusCreated || s == StatusFocused || s == StatusEditing
}

// InputLine is the single not-yet-committed line.
type InputLine struct {
	prompt  string
	text    string
	focused bool
	status  LineStatus
}

func (l *InputLine) Prompt() string     { return l.prompt }
func (l *InputLine) Text() string       { return l.text }
func (l *InputLine) Focused() bool      { return l.focused }
func (l *InputLine) Status() LineStatus { return l.status }

// PromptState renders as identity:path$.
type PromptState struct {
	Identity string
	Path     string
}

// DefaultPrompt renders as pritam@habra:~$.
func DefaultPrompt() PromptState {
	return PromptState{Identity: DefaultIdentity, Path: DefaultPath}
}

func (p PromptState) String() string {
	return fmt.Sprintf("%s:%s$", p.Identity, p.Path)
}

// State is shared by View and Router.
type State struct {
	items         []Item
	active        *InputLine
	prompt        PromptState
	maxBlockLines int
	version       uint64
	scroll        bool
}

// Options configures a new State.
type Options struct {
	Prompt PromptState
	// MaxBlockLines caps the lines kept per block; 0 keeps everything.
	MaxBlockLines int
}

// NewState returns an empty session. A zero Options.Prompt falls back to
// DefaultPrompt field by field.
func NewState(opts Options) *State {
	prompt := opts.Prompt
	def := DefaultPrompt()
	if strings.TrimSpace(prompt.Identity) == "" {
		prompt.Identity = def.Identity
	}
	if prompt.Path == "" {
		prompt.Path = def.Path
	}
	return &State{prompt: prompt, maxBlockLines: opts.MaxBlockLines}
}

// Items returns the scrollback in display order. The slice is a copy;
// entries and blocks are shared and must be treated as read-only.
func (s *State) Items() []Item {
	return append([]Item(nil), s.items...)
}

// Entries returns only the committed entries, in order.
func (s *State) Entries() []*Entry {
	var out []*Entry
	for _, it := range s.items {
		if it.Entry != nil {
			out = append(out, it.Entry)
		}
	}
	return out
}

// Blocks returns only the output blocks, in order.
func (s *State) Blocks() []*OutputBlock {
	var out []*OutputBlock
	for _, it := range s.items {
		if it.Block != nil {
			out = append(out, it.Block)
		}
	}
	return out
}

// Active returns the active input line or nil.
func (s *State) Active() *InputLine {
	return s.active
}

// Prompt returns the current prompt state.
func (s *State) Prompt() PromptState {
	return s.prompt
}

// OpenBlock is the last OutputBlock present in the scrollback, resolved
// at call time.
func (s *State) OpenBlock() *OutputBlock {
	for i := len(s.items) - 1; i >= 0; i-- {
		if b := s.items[i].Block; b != nil {
			return b
		}
	}
	return nil
}

// Block finds a block still present in the scrollback by id.
func (s *State) Block(id string) *OutputBlock {
	if id == "" {
		return nil
	}
	for i := len(s.items) - 1; i >= 0; i-- {
		if b := s.items[i].Block; b != nil && b.ID == id {
			return b
		}
	}
	return nil
}

// Version increases on every mutation; projections use it to skip redraws.
func (s *State) Version() uint64 {
	return s.version
}

// TakeScroll reports whether a mutation asked the view to follow the bottom
// since the last call, and clears the request.
func (s *State) TakeScroll() bool {
	scroll := s.scroll
	s.scroll = false
	return scroll
}

func (s *State) touch(scroll bool) {
	s.version++
	if scroll {
		s.scroll = true
	}
}

func (s *State) entryCount() int {
	n := 0
	for _, it := range s.items {
		if it.Entry != nil {
			n++
		}
	}
	return n
}
