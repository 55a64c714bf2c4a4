package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"habraterm/internal/session"
)

var (
	promptStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5AF78E"))
	entryTextStyle = lipgloss.NewStyle()
	outputStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#D7D7D7"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5C57"))
	faintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D7A85"))
)

// renderScrollback 把整个 scrollback 一次性投影成终端行。
func renderScrollback(items []session.Item, width int) []string {
	var t transcript
	t.sync(items, width)
	return t.lines
}

// transcript 缓存每个 scrollback 元素渲染后的行。Entry 提交后不变，Block 只会追加，
// 所以每次同步只渲染新追加的输出行；宽度变化或元素被清空时才重建。
type transcript struct {
	width int
	items []renderedItem
	lines []string
}

type renderedItem struct {
	entry *session.Entry
	block *session.OutputBlock
	lines []string
	start int
	// appended/truncated 记录已渲染到 block 的哪个位置。
	appended  int
	truncated int
}

func (r *renderedItem) same(it session.Item) bool {
	return r.entry == it.Entry && r.block == it.Block
}

func newRenderedItem(it session.Item, width int) renderedItem {
	r := renderedItem{entry: it.Entry, block: it.Block}
	switch {
	case it.Entry != nil:
		r.lines = renderEntry(it.Entry, width)
	case it.Block != nil:
		r.lines = renderBlock(it.Block, width)
		r.appended = it.Block.Appended()
		r.truncated = it.Block.Truncated()
	}
	return r
}

// refresh 渲染 block 新增的行。行上限开始淘汰旧行时整块重建（rebuilt 为 true）。
func (r *renderedItem) refresh(width int) (added []string, rebuilt bool) {
	b := r.block
	if b == nil {
		return nil, false
	}
	if b.Truncated() != r.truncated {
		r.lines = renderBlock(b, width)
		r.appended = b.Appended()
		r.truncated = b.Truncated()
		return nil, true
	}
	total := b.Appended()
	if total == r.appended {
		return nil, false
	}
	added = renderLines(b.Tail(r.appended), width)
	r.lines = append(r.lines, added...)
	r.appended = total
	return added, false
}

func (t *transcript) reset(width int) {
	t.width = width
	t.items = nil
	t.lines = nil
}

// sync 让缓存与 items 一致，返回全部渲染行。
func (t *transcript) sync(items []session.Item, width int) []string {
	if width <= 0 {
		width = 80
	}
	if width != t.width {
		t.reset(width)
	}

	keep := 0
	for keep < len(items) && keep < len(t.items) && t.items[keep].same(items[keep]) {
		keep++
	}
	if keep < len(t.items) {
		t.lines = t.lines[:t.items[keep].start]
		t.items = t.items[:keep]
	}

	// 只有最后一个元素增长时直接追加；更早的 block 增长（owner 路由）则从它开始重排。
	reflow := -1
	for j := range t.items {
		added, rebuilt := t.items[j].refresh(t.width)
		if len(added) == 0 && !rebuilt {
			continue
		}
		if reflow < 0 && !rebuilt && j == len(t.items)-1 {
			t.lines = append(t.lines, added...)
			continue
		}
		if reflow < 0 {
			reflow = j
		}
	}
	if reflow >= 0 {
		t.lines = t.lines[:t.items[reflow].start]
		for j := reflow; j < len(t.items); j++ {
			t.items[j].start = len(t.lines)
			t.lines = append(t.lines, t.items[j].lines...)
		}
	}

	for _, it := range items[keep:] {
		r := newRenderedItem(it, t.width)
		r.start = len(t.lines)
		t.items = append(t.items, r)
		t.lines = append(t.lines, r.lines...)
	}
	return t.lines
}

func renderEntry(e *session.Entry, width int) []string {
	head := e.Prompt + " " + e.Text
	wrapped := wrapCells(head, width)
	out := make([]string, 0, len(wrapped))
	for i, line := range wrapped {
		if i == 0 && strings.HasPrefix(line, e.Prompt) {
			out = append(out, promptStyle.Render(e.Prompt)+entryTextStyle.Render(line[len(e.Prompt):]))
			continue
		}
		out = append(out, entryTextStyle.Render(line))
	}
	return out
}

func renderBlock(b *session.OutputBlock, width int) []string {
	var out []string
	if n := b.Truncated(); n > 0 {
		out = append(out, faintStyle.Render(fmt.Sprintf("… %d earlier lines truncated", n)))
	}
	return append(out, renderLines(b.Lines(), width)...)
}

func renderLines(lines []session.Line, width int) []string {
	var out []string
	for _, line := range lines {
		style := outputStyle
		if line.Kind == session.LineError {
			style = errorStyle
		}
		for _, part := range wrapCells(expandTabs(line.Text), width) {
			out = append(out, style.Render(part))
		}
	}
	return out
}

// wrapCells 按显示宽度硬换行，保留空白（命令输出常依赖列对齐）。
func wrapCells(text string, width int) []string {
	if width <= 0 || runewidth.StringWidth(text) <= width {
		return []string{text}
	}
	var (
		out     []string
		current strings.Builder
		w       int
	)
	for _, r := range text {
		rw := runewidth.RuneWidth(r)
		if w+rw > width && w > 0 {
			out = append(out, current.String())
			current.Reset()
			w = 0
		}
		current.WriteRune(r)
		w += rw
	}
	out = append(out, current.String())
	return out
}

func expandTabs(text string) string {
	if !strings.Contains(text, "\t") {
		return text
	}
	var b strings.Builder
	col := 0
	for _, r := range text {
		if r == '\t' {
			pad := 8 - col%8
			b.WriteString(strings.Repeat(" ", pad))
			col += pad
			continue
		}
		b.WriteRune(r)
		col += runewidth.RuneWidth(r)
	}
	return b.String()
}

// truncateToWidth 截断到给定显示宽度。
func truncateToWidth(text string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(text) <= width {
		return text
	}
	return runewidth.Truncate(text, width, "…")
}
