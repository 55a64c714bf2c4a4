package session

import (
	"strings"

	"github.com/google/uuid"

	"habraterm/internal/logger"
)

var log = logger.Named("session")

// ErrorPrefix precedes the reason of a rejected invocation.
const ErrorPrefix = "Error: "

// Invocation is what the caller must hand to the backend after a command
// submit. BlockID doubles as the command id.
type Invocation struct {
	BlockID string
	Command string
}

// SubmitOutcome tells the caller what Submit did.
type SubmitOutcome int

const (
	// SubmitIgnored: there was no active line.
	SubmitIgnored SubmitOutcome = iota
	// SubmitCleared: the scrollback was wiped and a new line is active.
	SubmitCleared
	// SubmitEmpty: a blank entry was committed and a new line is active.
	SubmitEmpty
	// SubmitCommand: a block was opened; the caller must invoke the backend
	// and call Resolve once the invocation settles.
	SubmitCommand
)

func (o SubmitOutcome) String() string {
	switch o {
	case SubmitCleared:
		return "cleared"
	case SubmitEmpty:
		return "empty"
	case SubmitCommand:
		return "command"
	default:
		return "ignored"
	}
}

// View owns the input side of the session: line creation, editing and
// submission.
type View struct {
	state *State
	newID func() string
}

// NewView 绑定到 state。newID 为空时使用 uuid。
func NewView(state *State, newID func() string) *View {
	if newID == nil {
		newID = uuid.NewString
	}
	return &View{state: state, newID: newID}
}

// State exposes the shared session state.
func (v *View) State() *State {
	return v.state
}

// CreateInputLine appends a focused line carrying the current prompt. A line
// that is still editable is discarded first so at most one stays active.
func (v *View) CreateInputLine() *InputLine {
	s := v.state
	if prev := s.active; prev != nil && prev.status.Editable() {
		log.WithField("text", prev.text).Warn("discarding active input line")
		prev.status = StatusDiscarded
		prev.focused = false
	}
	line := &InputLine{prompt: s.prompt.String(), focused: true, status: StatusFocused}
	s.active = line
	s.touch(true)
	return line
}

// SetInput replaces the text of the active line. It reports false when no
// line accepts input.
func (v *View) SetInput(text string) bool {
	line := v.state.active
	if line == nil || !line.status.Editable() {
		return false
	}
	if line.text == text {
		return true
	}
	line.text = text
	line.status = StatusEditing
	v.state.touch(false)
	return true
}

// Submit commits the active line. A trimmed, case-insensitive "clear"
// wipes the scrollback; an empty line just commits. Both create the next
// line immediately. Anything else opens an output block and leaves the
// session without an active line until Resolve.
func (v *View) Submit() (Invocation, SubmitOutcome) {
	s := v.state
	line := s.active
	if line == nil || !line.status.Editable() {
		return Invocation{}, SubmitIgnored
	}
	line.status = StatusSubmitted
	line.focused = false
	text := line.text

	s.items = append(s.items, Item{Entry: &Entry{Ordinal: s.entryCount(), Prompt: line.prompt, Text: text}})
	s.active = nil

	trimmed := strings.TrimSpace(text)
	switch {
	case strings.EqualFold(trimmed, "clear"):
		line.status = StatusDiscarded
		s.items = nil
		s.touch(true)
		log.Debug("scrollback cleared")
		v.CreateInputLine()
		return Invocation{}, SubmitCleared
	case trimmed == "":
		line.status = StatusCommitted
		s.touch(true)
		v.CreateInputLine()
		return Invocation{}, SubmitEmpty
	}

	line.status = StatusCommitted
	block := newOutputBlock(v.newID(), text, s.maxBlockLines)
	s.items = append(s.items, Item{Block: block})
	s.touch(true)
	log.WithFields(logger.Fields{"command_id": block.ID, "command": text}).Debug("output block opened")
	return Invocation{BlockID: block.ID, Command: text}, SubmitCommand
}

// Resolve settles an invocation. A non-nil err is rendered as
// "Error: <reason>" into the invocation's block, if that block is still in
// the scrollback. The next input line is created either way.
func (v *View) Resolve(inv Invocation, err error) {
	if err != nil {
		if block := v.state.Block(inv.BlockID); block != nil {
			block.append(Line{Text: ErrorPrefix + err.Error(), Kind: LineError})
			v.state.touch(true)
		}
		log.WithFields(logger.Fields{"command_id": inv.BlockID, "error": err}).Info("invocation rejected")
	}
	v.CreateInputLine()
}
