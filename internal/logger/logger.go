package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger/LogEntry/Fields 暴露底层类型，避免调用方直接依赖 logrus 包。
type Logger = logrus.Logger
type LogEntry = logrus.Entry
type Fields = logrus.Fields

// DefaultLogPath 默认日志文件路径。TUI 占用 stdout，日志只能写文件。
const DefaultLogPath = "logs/habraterm.log"

// 这些字段有固定位置，不再出现在尾部的 key=value 列表里。
const (
	fieldComponent = "component"
	fieldCaller    = "caller"
)

var std = logrus.StandardLogger()

// Configure 打开 caller 并切换到 PlainFormatter。level 为空时保持当前级别，
// 无法解析时记一条 warning。
func Configure(level string) {
	std.SetReportCaller(true)
	std.SetFormatter(PlainFormatter{})
	level = strings.TrimSpace(level)
	if level == "" {
		return
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		std.Warnf("unknown log level %q, keeping %s", level, std.GetLevel())
		return
	}
	std.SetLevel(lvl)
}

// SetupFile 把全局 logger 的输出改到 logPath（空值用 DefaultLogPath），
// 返回文件 closer 与实际路径。
func SetupFile(logPath string) (io.Closer, string, error) {
	f, resolved, err := openLogFile(logPath)
	if err != nil {
		return nil, "", err
	}
	std.SetOutput(f)
	return f, resolved, nil
}

// SetupComponentFile 为单个组件建一个写独立文件的 logger，级别跟随全局。
func SetupComponentFile(component, logPath string) (*LogEntry, io.Closer, string, error) {
	f, resolved, err := openLogFile(logPath)
	if err != nil {
		return nil, nil, "", err
	}
	l := newLogger(f)
	l.SetLevel(std.GetLevel())
	return withComponent(logrus.NewEntry(l), component), f, resolved, nil
}

// Discard 返回丢弃所有输出的入口，测试里用来静音组件日志。
func Discard() *LogEntry {
	return logrus.NewEntry(newLogger(io.Discard))
}

func Root() *Logger {
	return std
}

// Named 返回挂在全局 logger 上、带 component 字段的入口。
func Named(component string) *LogEntry {
	return withComponent(logrus.NewEntry(std), component)
}

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetReportCaller(true)
	l.SetFormatter(PlainFormatter{})
	l.SetOutput(w)
	return l
}

func withComponent(entry *LogEntry, component string) *LogEntry {
	if component == "" {
		return entry
	}
	return entry.WithField(fieldComponent, component)
}

// PlainFormatter 输出一行：caller [time] [LEVEL] [component] message k=v...
// 时间统一用 UTC，字段按 key 排序，保证同一事件两次格式化结果一致。
type PlainFormatter struct{}

func (PlainFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	if entry == nil {
		return nil, nil
	}
	var b bytes.Buffer
	if caller := callerOf(entry); caller != "" {
		b.WriteString(caller)
		b.WriteByte(' ')
	}
	bracket(&b, entry.Time.UTC().Format(time.RFC3339Nano))
	bracket(&b, strings.ToUpper(entry.Level.String()))
	if component, _ := entry.Data[fieldComponent].(string); component != "" {
		bracket(&b, component)
	}
	b.WriteString(entry.Message)
	for _, key := range extraKeys(entry.Data) {
		fmt.Fprintf(&b, " %s=%v", key, entry.Data[key])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func bracket(b *bytes.Buffer, s string) {
	b.WriteByte('[')
	b.WriteString(s)
	b.WriteString("] ")
}

func callerOf(entry *logrus.Entry) string {
	if entry.HasCaller() {
		return fmt.Sprintf("%s:%d", shortenFilePath(entry.Caller.File), entry.Caller.Line)
	}
	caller, _ := entry.Data[fieldCaller].(string)
	return caller
}

func extraKeys(data logrus.Fields) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		if k != fieldComponent && k != fieldCaller {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// shortenFilePath 只保留模块内的相对路径（internal/... 或 cmd/...）。
func shortenFilePath(file string) string {
	file = filepath.ToSlash(file)
	for _, root := range []string{"/internal/", "/cmd/"} {
		if i := strings.Index(file, root); i >= 0 {
			return file[i+1:]
		}
	}
	return filepath.Base(file)
}

func openLogFile(logPath string) (*os.File, string, error) {
	if logPath == "" {
		logPath = DefaultLogPath
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, "", fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, "", fmt.Errorf("open log file: %w", err)
	}
	return f, logPath, nil
}
