package session

import (
	"strings"

	"habraterm/internal/events"
)

// RoutingPolicy decides which block receives an output event.
type RoutingPolicy int

const (
	// RouteLatest appends to the last block in the scrollback, whoever
	// produced the event.
	RouteLatest RoutingPolicy = iota
	// RouteOwner appends to the block whose id matches the event's command
	// id. Untagged events fall back to RouteLatest.
	RouteOwner
)

func (p RoutingPolicy) String() string {
	if p == RouteOwner {
		return "owner"
	}
	return "latest"
}

// ParseRoutingPolicy accepts "latest" and "owner"; anything else is latest.
func ParseRoutingPolicy(s string) RoutingPolicy {
	if strings.EqualFold(strings.TrimSpace(s), "owner") {
		return RouteOwner
	}
	return RouteLatest
}

// Router applies backend events to the session state.
type Router struct {
	state  *State
	policy RoutingPolicy
}

func NewRouter(state *State, policy RoutingPolicy) *Router {
	return &Router{state: state, policy: policy}
}

// Dispatch routes one event by type. command.done and unknown types are
// ignored. It reports whether the state changed.
func (r *Router) Dispatch(ev events.Event) bool {
	switch ev.Type {
	case events.EventOutput:
		return r.OnOutput(ev.CommandID, ev.Text())
	case events.EventPathUpdate:
		r.OnPromptUpdate(ev.Text())
		return true
	default:
		return false
	}
}

// OnOutput appends payload to the target block. Without a target the
// payload is dropped and false is returned.
func (r *Router) OnOutput(commandID, payload string) bool {
	block := r.target(commandID)
	if block == nil {
		return false
	}
	block.append(Line{Text: payload, Kind: LineOutput})
	r.state.touch(true)
	return true
}

func (r *Router) target(commandID string) *OutputBlock {
	if r.policy == RouteOwner && commandID != "" {
		return r.state.Block(commandID)
	}
	return r.state.OpenBlock()
}

// OnPromptUpdate records the new path. An active line that is still
// editable gets the new prompt too; committed entries keep theirs.
func (r *Router) OnPromptUpdate(path string) {
	s := r.state
	s.prompt.Path = path
	if line := s.active; line != nil && line.status.Editable() {
		line.prompt = s.prompt.String()
	}
	s.touch(false)
}
