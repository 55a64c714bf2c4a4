package main

import (
	"context"
	"io"
	"time"

	"habraterm/internal/backend"
	"habraterm/internal/config"
	"habraterm/internal/events"
	"habraterm/internal/history"
	"habraterm/internal/logger"
	"habraterm/internal/repl"
	"habraterm/internal/session"
	"habraterm/internal/shell"
)

// loadConfig 读取配置文件，再叠加 -c 与 --routing 覆盖。
func loadConfig(opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return cfg, err
	}
	overrides := append([]string(nil), opts.overrides...)
	if opts.routing != "" {
		overrides = append(overrides, "routing="+opts.routing)
	}
	return config.ApplyKVOverrides(cfg, overrides), nil
}

// runtime 持有一次运行的后端组件：事件队列、worker 池、shell handler 与网关。
type runtime struct {
	cfg     config.Config
	backend *backend.Backend
	handler *shell.Handler
	gateway *repl.Gateway
	closers []io.Closer
}

// startRuntime 配置日志并启动后端。日志文件打不开时退回默认输出，不影响运行。
func startRuntime(ctx context.Context, cfg config.Config) (*runtime, error) {
	rt := &runtime{cfg: cfg}

	logger.Configure(cfg.LogLevel)
	if closer, path, err := logger.SetupFile(cfg.LogPath); err != nil {
		log.WithError(err).Warnf("failed to open log file %s", cfg.LogPath)
	} else {
		rt.closers = append(rt.closers, closer)
		log.Debugf("logging to %s", path)
	}

	backendLog := logger.Named("backend")
	if entry, closer, path, err := logger.SetupComponentFile("backend", cfg.BackendLogPath); err != nil {
		log.WithError(err).Warnf("failed to open backend log %s", cfg.BackendLogPath)
	} else {
		backendLog = entry
		rt.closers = append(rt.closers, closer)
		log.Debugf("backend logging to %s", path)
	}

	rt.backend = backend.New(backend.Options{
		Events:         events.NewQueue(cfg.EventBuffer),
		Workers:        cfg.Workers,
		CommandTimeout: time.Duration(cfg.CommandTimeoutSecs) * time.Second,
		Log:            backendLog,
	})
	rt.handler = shell.New(shell.Options{
		Shell:     cfg.Shell,
		ShellArgs: cfg.ShellArgs,
		StartDir:  cfg.StartDir,
	})
	shell.Register(rt.backend, rt.handler)
	rt.backend.Start(ctx)
	rt.gateway = repl.NewGateway(rt.backend)

	log.WithFields(logger.Fields{
		"config":  cfg.Source,
		"shell":   cfg.Shell,
		"workers": cfg.Workers,
		"routing": cfg.Routing,
		"dir":     rt.handler.Dir(),
	}).Info("backend started")
	return rt, nil
}

// prompt 是首个输入行的提示符：配置的身份加上 shell 的起始目录。
func (rt *runtime) prompt() session.PromptState {
	return session.PromptState{Identity: rt.cfg.Identity(), Path: rt.handler.DisplayPath()}
}

func (rt *runtime) routing() session.RoutingPolicy {
	return session.ParseRoutingPolicy(rt.cfg.Routing)
}

func (rt *runtime) Close() {
	if rt.backend != nil {
		rt.backend.Close()
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		_ = rt.closers[i].Close()
	}
	rt.closers = nil
}

// historyStore 返回 TUI 的持久化历史；关闭或路径不可用时返回 nil。
func historyStore(cfg config.Config) *history.Store {
	if !cfg.PersistHistory {
		return nil
	}
	path := cfg.HistoryPath
	if path == "" {
		var err error
		if path, err = history.DefaultPath(); err != nil {
			log.WithError(err).Warn("history disabled")
			return nil
		}
	}
	return history.New(path, cfg.HistoryLimit)
}
