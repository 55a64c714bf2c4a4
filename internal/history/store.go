// Package history persists submitted command lines as JSON Lines so the
// input history of the interactive view survives restarts.
package history

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Entry 是一条持久化的命令记录；Dir 是提交时提示符显示的路径。
type Entry struct {
	Command string    `json:"command"`
	Dir     string    `json:"dir,omitempty"`
	TS      time.Time `json:"ts"`
}

type Store struct {
	path  string
	limit int
	now   func() time.Time
	mu    sync.Mutex
}

var errNoPath = errors.New("history store path is empty")

func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".habraterm", "history.jsonl"), nil
}

// New 返回写入 path 的存储；limit <= 0 表示不限制条数。
func New(path string, limit int) *Store {
	return &Store{path: strings.TrimSpace(path), limit: limit, now: time.Now}
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Append 追加一条命令，空白命令直接忽略。
func (s *Store) Append(command, dir string) error {
	if s == nil || s.path == "" {
		return errNoPath
	}
	command = strings.TrimSpace(command)
	if command == "" {
		return nil
	}
	data, err := json.Marshal(Entry{Command: command, Dir: dir, TS: s.now()})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(data, '\n'))
	return err
}

// Load 返回最近的 limit 条记录，旧的在前。文件不存在时返回空；坏行跳过。
func (s *Store) Load() ([]Entry, error) {
	if s == nil || s.path == "" {
		return nil, errNoPath
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() ([]Entry, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var out []Entry
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue
		}
		if strings.TrimSpace(e.Command) == "" {
			continue
		}
		out = append(out, e)
		if s.limit > 0 && len(out) > 2*s.limit {
			out = append(out[:0], out[len(out)-s.limit:]...)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if s.limit > 0 && len(out) > s.limit {
		out = out[len(out)-s.limit:]
	}
	return out, nil
}

// Commands 只返回命令文本，供输入历史初始化。
func (s *Store) Commands() ([]string, error) {
	entries, err := s.Load()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Command)
	}
	return out, nil
}

// Compact 只保留最近 limit 条并原子替换文件。
func (s *Store) Compact() error {
	if s == nil || s.path == "" {
		return errNoPath
	}
	if s.limit <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load()
	if err != nil || entries == nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".history-*.jsonl")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
