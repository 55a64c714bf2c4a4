package config

import (
	"strconv"
	"strings"
)

// ApplyKVOverrides applies free-form -c key=value overrides.
// Unknown keys and unparsable numbers are ignored.
func ApplyKVOverrides(cfg Config, overrides []string) Config {
	if len(overrides) == 0 {
		return cfg
	}
	for _, raw := range overrides {
		parts := strings.SplitN(raw, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		switch key {
		case "user":
			cfg.User = val
		case "host":
			cfg.Host = val
		case "start_dir":
			cfg.StartDir = val
		case "shell":
			cfg.Shell = val
		case "shell_args":
			cfg.ShellArgs = strings.Fields(val)
		case "routing":
			cfg.Routing = val
		case "workers":
			if n, err := strconv.Atoi(val); err == nil {
				cfg.Workers = n
			}
		case "event_buffer":
			if n, err := strconv.Atoi(val); err == nil {
				cfg.EventBuffer = n
			}
		case "command_timeout_secs":
			if n, err := strconv.Atoi(val); err == nil {
				cfg.CommandTimeoutSecs = n
			}
		case "max_block_lines":
			if n, err := strconv.Atoi(val); err == nil {
				cfg.MaxBlockLines = n
			}
		case "log_level":
			cfg.LogLevel = val
		case "log_path":
			cfg.LogPath = val
		case "backend_log_path":
			cfg.BackendLogPath = val
		case "persist_history":
			if b, err := strconv.ParseBool(val); err == nil {
				cfg.PersistHistory = b
			}
		case "history_path":
			cfg.HistoryPath = val
		case "history_limit":
			if n, err := strconv.Atoi(val); err == nil {
				cfg.HistoryLimit = n
			}
		}
	}
	return cfg.normalized()
}
