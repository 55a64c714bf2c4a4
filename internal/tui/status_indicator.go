package tui

import (
	"fmt"
	"strings"
	"time"
)

// runningCommand 是一条尚未收到 command.done 的命令。
type runningCommand struct {
	id      string
	command string
	started time.Time
}

// statusIndicator 跟踪后台仍在运行的命令，渲染为一行状态：
// spinner + 最早的命令 + 计时 + 其余数量。
// 命令的 invoke 很快返回，输出可能在下一行输入出现后继续到达，这一行让用户知道还有命令在跑。
type statusIndicator struct {
	running []runningCommand
	clock   func() time.Time
}

func newStatusIndicator(clock func() time.Time) *statusIndicator {
	if clock == nil {
		clock = time.Now
	}
	return &statusIndicator{clock: clock}
}

func (s *statusIndicator) Start(id, command string) {
	for _, rc := range s.running {
		if rc.id == id {
			return
		}
	}
	s.running = append(s.running, runningCommand{id: id, command: strings.TrimSpace(command), started: s.clock()})
}

// Finish 移除命令；未知 id 返回 false。
func (s *statusIndicator) Finish(id string) bool {
	for i, rc := range s.running {
		if rc.id == id {
			s.running = append(s.running[:i], s.running[i+1:]...)
			return true
		}
	}
	return false
}

func (s *statusIndicator) Active() bool {
	return len(s.running) > 0
}

func (s *statusIndicator) Count() int {
	return len(s.running)
}

// Render 返回状态行；空闲时返回空串。
func (s *statusIndicator) Render(frame string, width int) string {
	if !s.Active() || width <= 0 {
		return ""
	}
	first := s.running[0]
	elapsed := fmtElapsedCompact(uint64(s.clock().Sub(first.started).Seconds()))
	text := fmt.Sprintf("%s %s (%s)", frame, first.command, elapsed)
	if n := s.Count() - 1; n > 0 {
		text += fmt.Sprintf(" • %d more running", n)
	}
	return truncateToWidth(text, width)
}

// fmtElapsedCompact 将秒数格式化为友好字符串。
func fmtElapsedCompact(elapsedSecs uint64) string {
	switch {
	case elapsedSecs < 60:
		return fmt.Sprintf("%ds", elapsedSecs)
	case elapsedSecs < 3600:
		minutes := elapsedSecs / 60
		seconds := elapsedSecs % 60
		return fmt.Sprintf("%dm %02ds", minutes, seconds)
	default:
		hours := elapsedSecs / 3600
		minutes := (elapsedSecs % 3600) / 60
		seconds := elapsedSecs % 60
		return fmt.Sprintf("%dh %02dm %02ds", hours, minutes, seconds)
	}
}
