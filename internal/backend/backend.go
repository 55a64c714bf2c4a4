package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"habraterm/internal/events"
	"habraterm/internal/logger"
)

// HandleCommand 是前端唯一会调用的命令名。
const HandleCommand = "handle_command"

var (
	// ErrUnknownCommand 表示没有为该名称注册 handler。
	ErrUnknownCommand = errors.New("unknown command")
	// ErrInvalidArgs 表示调用参数缺失或类型不对。
	ErrInvalidArgs = errors.New("invalid arguments")
	// ErrClosed 表示后端已关闭。
	ErrClosed = errors.New("backend closed")
)

// Args 是一次调用的命名参数。
type Args map[string]any

// String 读取字符串参数。
func (a Args) String(key string) (string, bool) {
	if a == nil {
		return "", false
	}
	v, ok := a[key].(string)
	return v, ok
}

// Invocation 代表进入 SQ 的一次调用。
type Invocation struct {
	ID        string
	Name      string
	Args      Args
	Timestamp time.Time
}

// Handler 处理 Invocation 并通过 Publisher 发出事件。
// 返回 ExitCode 表示命令正常结束但退出码非零；其它错误会作为一行输出呈现。
type Handler interface {
	Handle(ctx context.Context, inv Invocation, emit events.Publisher) error
}

// HandlerFunc 让函数实现 Handler。
type HandlerFunc func(ctx context.Context, inv Invocation, emit events.Publisher) error

func (f HandlerFunc) Handle(ctx context.Context, inv Invocation, emit events.Publisher) error {
	return f(ctx, inv, emit)
}

// ArgsValidator 可选接口：在入队前同步校验参数，失败即拒绝调用。
type ArgsValidator interface {
	ValidateArgs(args Args) error
}

// ExitCode 让 handler 报告非零退出码。
type ExitCode int

func (c ExitCode) Error() string {
	return fmt.Sprintf("exit status %d", int(c))
}

// Options 定义后端参数。
type Options struct {
	Events           *events.Queue
	SubmissionBuffer int
	Workers          int
	CommandTimeout   time.Duration
	Log              *logger.LogEntry
}

func (o Options) withDefaults() Options {
	if o.SubmissionBuffer <= 0 {
		o.SubmissionBuffer = 64
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.Events == nil {
		o.Events = events.NewQueue(256)
	}
	if o.Log == nil {
		o.Log = logger.Named("backend")
	}
	return o
}

// Backend 接收调用、在 worker 上执行 handler，并把输出发布到事件队列。
// Invoke 在调用入队后立即返回；输出通过 Subscribe 的通道异步到达。
type Backend struct {
	queue    *SubmissionQueue
	events   *events.Queue
	emit     events.Publisher
	handlers map[string]Handler
	hmu      sync.RWMutex
	workers  int
	timeout  time.Duration
	log      *logger.LogEntry

	runCtx    context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// New 创建后端；需要调用 Start 才会开始执行。
func New(opts Options) *Backend {
	opts = opts.withDefaults()
	queue := NewSubmissionQueue(opts.SubmissionBuffer)
	queue.SetLogger(opts.Log)
	runCtx, cancel := context.WithCancel(context.Background())
	return &Backend{
		queue:    queue,
		events:   opts.Events,
		emit:     events.Logged(opts.Events, opts.Log),
		handlers: map[string]Handler{},
		workers:  opts.Workers,
		timeout:  opts.CommandTimeout,
		log:      opts.Log,
		runCtx:   runCtx,
		cancel:   cancel,
	}
}

// Register 为命令名注册处理器。
func (b *Backend) Register(name string, handler Handler) {
	if handler == nil {
		return
	}
	b.hmu.Lock()
	b.handlers[name] = handler
	b.hmu.Unlock()
}

// Start 启动后台 worker；ctx 结束时等同于 Close 前的取消。
func (b *Backend) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		if ctx != nil {
			context.AfterFunc(ctx, b.cancel)
		}
		for i := 0; i < b.workers; i++ {
			b.wg.Add(1)
			go b.worker()
		}
	})
}

// Close 取消运行中的命令，停止 worker，并关闭事件队列。
func (b *Backend) Close() {
	b.stopOnce.Do(func() {
		b.cancel()
		b.queue.Close()
		b.wg.Wait()
		b.events.Close()
	})
}

// Subscribe 订阅后端事件。
func (b *Backend) Subscribe() <-chan events.Event {
	return b.events.Subscribe()
}

// Invoke 调用命名命令。返回 nil 表示调用已被接受；
// 命令的输出、退出与路径变化全部通过事件异步送达。
func (b *Backend) Invoke(ctx context.Context, name string, args Args) error {
	if b.runCtx.Err() != nil {
		return ErrClosed
	}
	b.hmu.RLock()
	handler := b.handlers[name]
	b.hmu.RUnlock()
	if handler == nil {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	if v, ok := handler.(ArgsValidator); ok {
		if err := v.ValidateArgs(args); err != nil {
			return err
		}
	}

	id, _ := args.String("id")
	if id == "" {
		id = uuid.NewString()
	}
	inv := Invocation{ID: id, Name: name, Args: args, Timestamp: time.Now()}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(b.runCtx, cancel)
	defer stop()

	if err := b.queue.Submit(ctx, inv); err != nil {
		if errors.Is(err, ErrSubmissionQueueClosed) || b.runCtx.Err() != nil {
			return ErrClosed
		}
		return err
	}
	return nil
}

func (b *Backend) worker() {
	defer b.wg.Done()
	for {
		inv, err := b.queue.Receive(b.runCtx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, ErrSubmissionQueueClosed) {
				return
			}
			continue
		}
		b.run(inv)
	}
}

func (b *Backend) run(inv Invocation) {
	b.hmu.RLock()
	handler := b.handlers[inv.Name]
	b.hmu.RUnlock()

	ctx := b.runCtx
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	started := time.Now()
	var err error
	if handler == nil {
		err = fmt.Errorf("%w: %s", ErrUnknownCommand, inv.Name)
	} else {
		err = handler.Handle(ctx, inv, b.emit)
	}

	res := events.CommandResult{}
	var code ExitCode
	switch {
	case err == nil:
	case errors.As(err, &code):
		res.ExitCode = int(code)
	default:
		res.ExitCode = -1
		res.Error = err.Error()
		_ = b.emit.Publish(b.runCtx, events.Output(inv.ID, err.Error()))
	}
	b.log.WithFields(logger.Fields{
		"command_id": inv.ID,
		"exit_code":  res.ExitCode,
		"duration":   time.Since(started).Round(time.Millisecond),
	}).Info("invocation finished")
	_ = b.emit.Publish(b.runCtx, events.CommandDone(inv.ID, res))
}
