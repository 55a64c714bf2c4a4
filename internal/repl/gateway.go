package repl

import (
	"context"
	"errors"

	"habraterm/internal/backend"
	"habraterm/internal/events"
)

var errNoBackend = errors.New("repl gateway backend not configured")

// Gateway 把前端的“提交命令 / 订阅事件”映射到后端的 handle_command 调用与事件队列。
type Gateway struct {
	backend *backend.Backend
}

// NewGateway 创建基于共享 backend.Backend 的网关。
func NewGateway(b *backend.Backend) *Gateway {
	return &Gateway{backend: b}
}

// Invoke 以 handle_command 提交原始命令文本；id 会作为事件的 command id 回传。
func (g *Gateway) Invoke(ctx context.Context, id, command string) error {
	if g == nil || g.backend == nil {
		return errNoBackend
	}
	args := backend.Args{"command": command}
	if id != "" {
		args["id"] = id
	}
	return g.backend.Invoke(ctx, backend.HandleCommand, args)
}

// Events 返回一条新的事件订阅。
func (g *Gateway) Events() <-chan events.Event {
	if g == nil || g.backend == nil {
		return nil
	}
	return g.backend.Subscribe()
}
