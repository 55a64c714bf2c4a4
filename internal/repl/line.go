package repl

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"

	"habraterm/internal/events"
	"habraterm/internal/logger"
	"habraterm/internal/session"
)

var log = logger.Named("repl")

// CommandGateway 是行模式需要的后端能力，与 tui.Gateway 一致。
type CommandGateway interface {
	Invoke(ctx context.Context, id, command string) error
	Events() <-chan events.Event
}

// LineOptions 描述无 TTY 时的行模式：逐行读取输入，输出追加到 Writer。
type LineOptions struct {
	Gateway       CommandGateway
	In            io.Reader
	Out           io.Writer
	Prompt        session.PromptState
	Routing       session.RoutingPolicy
	MaxBlockLines int
	NoColor       bool
	// Quiet 不回显提示符与输入行，只输出命令结果。
	Quiet bool
}

// LineResult 汇总一次行模式运行。
type LineResult struct {
	Commands int
	// ExitCode 是最后一条命令的退出码。
	ExitCode int
}

// RunLines 逐行提交输入。每条命令都会等到 command.done 再读下一行，
// 这样 cd 之类的状态变化对后续命令可见。输入结束或 ctx 取消时返回。
func RunLines(ctx context.Context, opts LineOptions) (LineResult, error) {
	if opts.Gateway == nil {
		return LineResult{}, errNoBackend
	}
	in := opts.In
	if in == nil {
		in = os.Stdin
	}
	out := NewScrollback(ScrollbackOptions{Writer: opts.Out, NoColor: opts.NoColor})

	state := session.NewState(session.Options{Prompt: opts.Prompt, MaxBlockLines: opts.MaxBlockLines})
	view := session.NewView(state, nil)
	router := session.NewRouter(state, opts.Routing)
	evs := opts.Gateway.Events()
	if evs == nil {
		return LineResult{}, errors.New("gateway returned no event stream")
	}
	lines := readLines(ctx, in)

	var (
		res     LineResult
		pending string
	)
	view.CreateInputLine()
	for {
		input := lines
		if pending != "" {
			input = nil
		}
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case text, ok := <-input:
			if !ok {
				return res, nil
			}
			pending = submitLine(ctx, opts, view, out, text)
			if pending != "" {
				res.Commands++
			}
		case ev, ok := <-evs:
			if !ok {
				return res, errors.New("backend event stream closed")
			}
			if ev.Type == events.EventCommandDone {
				if ev.CommandID == pending {
					if r, ok := ev.Payload.(events.CommandResult); ok {
						res.ExitCode = r.ExitCode
						if r.ExitCode != 0 && !opts.Quiet {
							out.Note("exit status %d", r.ExitCode)
						}
					}
					pending = ""
				}
				continue
			}
			if router.Dispatch(ev) && ev.Type == events.EventOutput {
				out.Output(ev.Text())
			}
		}
	}
}

// submitLine 提交一行输入，返回需要等待 command.done 的命令 id。
func submitLine(ctx context.Context, opts LineOptions, view *session.View, out *Scrollback, text string) string {
	view.SetInput(text)
	prompt := view.State().Active().Prompt()
	inv, outcome := view.Submit()
	if !opts.Quiet {
		out.Entry(prompt, text)
	}
	if outcome != session.SubmitCommand {
		return ""
	}
	err := opts.Gateway.Invoke(ctx, inv.BlockID, inv.Command)
	view.Resolve(inv, err)
	if err != nil {
		log.WithError(err).WithField("command", inv.Command).Warn("invoke rejected")
		out.Error(session.ErrorPrefix + err.Error())
		return ""
	}
	return inv.BlockID
}

func readLines(ctx context.Context, r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case ch <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			log.WithError(err).Warn("read input failed")
		}
	}()
	return ch
}
