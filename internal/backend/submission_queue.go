package backend

import (
	"context"
	"errors"
	"sync"

	"habraterm/internal/logger"
)

// ErrSubmissionQueueClosed 表示队列已关闭，无法再提交或接收。
var ErrSubmissionQueueClosed = errors.New("submission queue closed")

// SubmissionQueue 是一个有界的调用队列（SQ）。
type SubmissionQueue struct {
	mu     sync.RWMutex
	ch     chan Invocation
	closed bool
	log    *logger.LogEntry
}

// NewSubmissionQueue 创建一个新的 SubmissionQueue。
func NewSubmissionQueue(capacity int) *SubmissionQueue {
	if capacity <= 0 {
		capacity = 64
	}
	return &SubmissionQueue{
		ch:  make(chan Invocation, capacity),
		log: logger.Named("sq"),
	}
}

// SetLogger 覆盖队列使用的 logger。
func (q *SubmissionQueue) SetLogger(entry *logger.LogEntry) {
	if entry == nil {
		return
	}
	q.log = entry
}

// Submit 将调用放入队列；队列满时阻塞，支持 ctx 取消。
// 读锁保证 Close 不会在写入途中关闭通道。
func (q *SubmissionQueue) Submit(ctx context.Context, inv Invocation) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrSubmissionQueueClosed
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.ch <- inv:
		q.logInvocation(inv)
		return nil
	}
}

// Receive 读取一条调用；若队列已关闭则返回 ErrSubmissionQueueClosed。
func (q *SubmissionQueue) Receive(ctx context.Context) (Invocation, error) {
	select {
	case <-ctx.Done():
		return Invocation{}, ctx.Err()
	case inv, ok := <-q.ch:
		if !ok {
			return Invocation{}, ErrSubmissionQueueClosed
		}
		return inv, nil
	}
}

// Close 关闭队列，停止进一步提交。
func (q *SubmissionQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

func (q *SubmissionQueue) logInvocation(inv Invocation) {
	if q.log == nil {
		return
	}
	fields := logger.Fields{
		"command_id": inv.ID,
		"name":       inv.Name,
	}
	if cmd, ok := inv.Args.String("command"); ok {
		fields["command"] = cmd
	}
	q.log.WithFields(fields).Info("enqueued invocation into SQ")
}
