package repl

import (
	"context"

	"habraterm/internal/history"
	"habraterm/internal/session"
	"habraterm/internal/tui"
)

// UIOptions 描述启动 TUI 所需的依赖与初始状态。
type UIOptions struct {
	Gateway       *Gateway
	Prompt        session.PromptState
	Routing       session.RoutingPolicy
	MaxBlockLines int
	Inline        bool
	// History 为 nil 时不持久化输入历史。
	History *history.Store
}

// UIResult 返回 TUI 退出时的历史与状态。
type UIResult struct {
	History   []string
	Submitted int
	Items     int
}

// RunUI 启动 Bubble Tea 界面并返回结果。
func RunUI(ctx context.Context, opts UIOptions) (UIResult, error) {
	res, err := tui.Run(ctx, tuiOptions(opts))
	if err != nil {
		return UIResult{}, err
	}
	if opts.History != nil {
		if err := opts.History.Compact(); err != nil {
			log.WithError(err).Warn("compact history failed")
		}
	}
	log.WithField("commands", res.Submitted).Info("tui session ended")
	return UIResult{History: res.History, Submitted: res.Submitted, Items: res.Items}, nil
}

func tuiOptions(opts UIOptions) tui.Options {
	out := tui.Options{
		Prompt:        opts.Prompt,
		Routing:       opts.Routing,
		MaxBlockLines: opts.MaxBlockLines,
		Inline:        opts.Inline,
	}
	if opts.Gateway != nil {
		out.Gateway = opts.Gateway
	}
	if store := opts.History; store != nil {
		seed, err := store.Commands()
		if err != nil {
			log.WithError(err).WithField("path", store.Path()).Warn("load history failed")
		}
		out.History = seed
		out.OnSubmit = func(command, path string) {
			if err := store.Append(command, path); err != nil {
				log.WithError(err).Warn("append history failed")
			}
		}
	}
	return out
}
