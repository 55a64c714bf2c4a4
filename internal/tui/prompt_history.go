package tui

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

const maxPromptHistory = 500

// promptHistory 负责输入行的历史浏览（上下箭头）与 Ctrl+R 检索。
// cursor == len(entries) 表示当前在“最新输入”（非浏览历史）位置。
type promptHistory struct {
	entries []string
	cursor  int
	draft   string
}

// Add 记录一条已提交的命令；空白与紧邻重复不入历史。
func (h *promptHistory) Add(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		h.ResetBrowsing()
		return
	}
	if n := len(h.entries); n == 0 || h.entries[n-1] != text {
		h.entries = append(h.entries, text)
		if len(h.entries) > maxPromptHistory {
			h.entries = h.entries[len(h.entries)-maxPromptHistory:]
		}
	}
	h.ResetBrowsing()
}

func (h *promptHistory) Entries() []string {
	return append([]string(nil), h.entries...)
}

func (h *promptHistory) Browsing() bool {
	return h.cursor < len(h.entries)
}

func (h *promptHistory) ResetBrowsing() {
	h.cursor = len(h.entries)
	h.draft = ""
}

func (h *promptHistory) Prev(current string) (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	if h.cursor == len(h.entries) {
		h.draft = current
	}
	if h.cursor > 0 {
		h.cursor--
	}
	return h.entries[h.cursor], true
}

func (h *promptHistory) Next() (string, bool) {
	if len(h.entries) == 0 || h.cursor == len(h.entries) {
		return "", false
	}
	if h.cursor < len(h.entries)-1 {
		h.cursor++
		return h.entries[h.cursor], true
	}
	h.cursor = len(h.entries)
	return h.draft, true
}

// Search 返回与 query 模糊匹配的历史，最新的优先；query 为空时按时间倒序返回全部。
func (h *promptHistory) Search(query string, limit int) []string {
	recent := make([]string, 0, len(h.entries))
	seen := map[string]bool{}
	for i := len(h.entries) - 1; i >= 0; i-- {
		if !seen[h.entries[i]] {
			seen[h.entries[i]] = true
			recent = append(recent, h.entries[i])
		}
	}
	var out []string
	if strings.TrimSpace(query) == "" {
		out = recent
	} else {
		for _, match := range fuzzy.Find(query, recent) {
			out = append(out, match.Str)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// historySearch 是 Ctrl+R 反向检索的交互状态。
type historySearch struct {
	active   bool
	query    string
	matches  []string
	selected int
}

func (s *historySearch) open(h *promptHistory) {
	s.active = true
	s.query = ""
	s.selected = 0
	s.refresh(h)
}

func (s *historySearch) close() {
	*s = historySearch{}
}

func (s *historySearch) refresh(h *promptHistory) {
	s.matches = h.Search(s.query, 8)
	if s.selected >= len(s.matches) {
		s.selected = 0
	}
}

func (s *historySearch) input(h *promptHistory, text string) {
	s.query += text
	s.selected = 0
	s.refresh(h)
}

func (s *historySearch) backspace(h *promptHistory) {
	if s.query == "" {
		return
	}
	r := []rune(s.query)
	s.query = string(r[:len(r)-1])
	s.selected = 0
	s.refresh(h)
}

func (s *historySearch) move(delta int) {
	if len(s.matches) == 0 {
		return
	}
	s.selected = (s.selected + delta + len(s.matches)) % len(s.matches)
}

func (s *historySearch) current() (string, bool) {
	if len(s.matches) == 0 {
		return "", false
	}
	return s.matches[s.selected], true
}

func (s *historySearch) view(width int) string {
	lines := []string{faintStyle.Render("(reverse-i-search) ") + s.query}
	for i, m := range s.matches {
		marker := "  "
		if i == s.selected {
			marker = "› "
		}
		lines = append(lines, truncateToWidth(marker+m, width))
	}
	if len(s.matches) == 0 {
		lines = append(lines, faintStyle.Render("  no matches"))
	}
	return strings.Join(lines, "\n")
}
