package repl

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Scrollback 是行模式的输出端：已提交的输入行与输出行按到达顺序追加写入
// io.Writer（通常是 stdout 的自然滚动缓冲），写出后不再修改。
type Scrollback struct {
	w      io.Writer
	prompt *color.Color
	output *color.Color
	errs   *color.Color
	dim    *color.Color
}

type ScrollbackOptions struct {
	Writer  io.Writer
	NoColor bool
}

func NewScrollback(opts ScrollbackOptions) *Scrollback {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	s := &Scrollback{
		w:      w,
		prompt: color.New(color.FgGreen, color.Bold),
		output: color.New(color.Reset),
		errs:   color.New(color.FgRed),
		dim:    color.New(color.Faint),
	}
	if opts.NoColor {
		for _, c := range []*color.Color{s.prompt, s.output, s.errs, s.dim} {
			c.DisableColor()
		}
	}
	return s
}

// Entry 写出一条已提交的输入行。
func (s *Scrollback) Entry(prompt, text string) {
	_, _ = s.prompt.Fprint(s.w, prompt)
	_, _ = fmt.Fprintf(s.w, " %s\n", text)
}

// Output 写出一行命令输出。
func (s *Scrollback) Output(line string) {
	_, _ = s.output.Fprintln(s.w, line)
}

// Error 写出一行错误。
func (s *Scrollback) Error(line string) {
	_, _ = s.errs.Fprintln(s.w, line)
}

// Note 写出一行提示信息（不属于任何输出块）。
func (s *Scrollback) Note(format string, args ...any) {
	_, _ = s.dim.Fprintf(s.w, format+"\n", args...)
}
