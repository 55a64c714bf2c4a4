package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
)

// Result 返回 TUI 退出时的必要信息。
type Result struct {
	History   []string
	Submitted int
	Items     int
}

// Run 封装 Bubble Tea 入口；ctx 取消时程序退出并返回 nil。
func Run(ctx context.Context, opts Options) (Result, error) {
	programOptions := []tea.ProgramOption{tea.WithContext(ctx)}
	if !opts.Inline {
		programOptions = append(programOptions, tea.WithAltScreen())
	}
	program := tea.NewProgram(New(opts), programOptions...)
	m, err := program.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return Result{}, nil
		}
		return Result{}, err
	}
	tuiModel, ok := m.(*Model)
	if !ok {
		return Result{}, errors.New("unexpected tui model")
	}
	return Result{
		History:   tuiModel.History(),
		Submitted: tuiModel.Submitted(),
		Items:     len(tuiModel.State().Items()),
	}, nil
}
