package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Routing 策略取值。
const (
	RoutingLatest = "latest"
	RoutingOwner  = "owner"
)

// Config is the only persisted config file schema.
type Config struct {
	User               string   `toml:"user"`
	Host               string   `toml:"host"`
	StartDir           string   `toml:"start_dir"`
	Shell              string   `toml:"shell"`
	ShellArgs          []string `toml:"shell_args"`
	Routing            string   `toml:"routing"`
	Workers            int      `toml:"workers"`
	EventBuffer        int      `toml:"event_buffer"`
	CommandTimeoutSecs int      `toml:"command_timeout_secs"`
	MaxBlockLines      int      `toml:"max_block_lines"`
	LogLevel           string   `toml:"log_level"`
	LogPath            string   `toml:"log_path"`
	BackendLogPath     string   `toml:"backend_log_path"`
	// PersistHistory 把 TUI 提交的命令写入 HistoryPath，下次启动时可用上下箭头与 Ctrl+R 找回。
	PersistHistory bool   `toml:"persist_history"`
	HistoryPath    string `toml:"history_path"`
	HistoryLimit   int    `toml:"history_limit"`
	Source         string `toml:"-"`
}

func Default() Config {
	return Config{
		User:           "pritam",
		Host:           "habra",
		Shell:          "sh",
		ShellArgs:      []string{"-c"},
		Routing:        RoutingLatest,
		Workers:        4,
		EventBuffer:    256,
		LogLevel:       "info",
		LogPath:        "logs/habraterm.log",
		BackendLogPath: "logs/backend.log",
		PersistHistory: true,
		HistoryLimit:   1000,
	}
}

func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".habraterm", "config.toml")
}

// Load 读取配置文件；文件不存在时使用默认值。环境变量优先于文件。
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		return cfg, errors.New("config path is empty and $HOME is not set")
	}
	cfg.Source = path

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnv(&cfg)
			return cfg.normalized(), nil
		}
		return cfg, err
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return cfg, err
	}
	applyEnv(&cfg)
	return cfg.normalized(), nil
}

func applyEnv(cfg *Config) {
	if env := strings.TrimSpace(os.Getenv("HABRATERM_USER")); env != "" {
		cfg.User = env
	}
	if env := strings.TrimSpace(os.Getenv("HABRATERM_HOST")); env != "" {
		cfg.Host = env
	}
	if env := strings.TrimSpace(os.Getenv("HABRATERM_SHELL")); env != "" {
		cfg.Shell = env
	}
}

// normalized 把文件里留空或非法的字段补回默认值。
func (c Config) normalized() Config {
	def := Default()
	if strings.TrimSpace(c.User) == "" {
		c.User = def.User
	}
	if strings.TrimSpace(c.Host) == "" {
		c.Host = def.Host
	}
	if strings.TrimSpace(c.Shell) == "" {
		c.Shell = def.Shell
		c.ShellArgs = def.ShellArgs
	}
	switch strings.ToLower(strings.TrimSpace(c.Routing)) {
	case RoutingOwner:
		c.Routing = RoutingOwner
	default:
		c.Routing = RoutingLatest
	}
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = def.EventBuffer
	}
	if c.CommandTimeoutSecs < 0 {
		c.CommandTimeoutSecs = 0
	}
	if c.MaxBlockLines < 0 {
		c.MaxBlockLines = 0
	}
	if c.LogPath == "" {
		c.LogPath = def.LogPath
	}
	if c.BackendLogPath == "" {
		c.BackendLogPath = def.BackendLogPath
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = def.HistoryLimit
	}
	return c
}

// Identity 返回提示符前缀 user@host。
func (c Config) Identity() string {
	return c.User + "@" + c.Host
}
