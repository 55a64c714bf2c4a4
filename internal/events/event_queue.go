package events

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed 表示事件队列已关闭。
var ErrQueueClosed = errors.New("event queue closed")

// Publisher 抽象事件发布，便于 handler 与队列解耦。
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// PublisherFunc 让函数实现 Publisher。
type PublisherFunc func(ctx context.Context, event Event) error

func (f PublisherFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Queue 是 EQ，负责把后端事件按发布顺序广播给所有订阅者。
// 与“尽力而为”的广播不同，Publish 会等待慢订阅者腾出缓冲，
// 只在 ctx 结束或队列关闭时放弃，因此传输层不会丢事件。
type Queue struct {
	mu     sync.Mutex
	pubMu  sync.Mutex
	subs   []chan Event
	buffer int
	seq    uint64
	closed bool
	done   chan struct{}
}

// NewQueue 创建事件队列，buffer 是每个订阅者的缓存大小。
func NewQueue(buffer int) *Queue {
	if buffer <= 0 {
		buffer = 64
	}
	return &Queue{buffer: buffer, done: make(chan struct{})}
}

// Subscribe 订阅事件流。通道会在 Close 时关闭。
func (q *Queue) Subscribe() <-chan Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}
	ch := make(chan Event, q.buffer)
	q.subs = append(q.subs, ch)
	return ch
}

// Publish 给事件分配递增序号后发布到所有订阅者。
// pubMu 保证并发发布者之间序号与投递顺序一致。
func (q *Queue) Publish(ctx context.Context, event Event) error {
	q.pubMu.Lock()
	defer q.pubMu.Unlock()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.seq++
	event.Seq = q.seq
	subs := append([]chan Event{}, q.subs...)
	q.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		case <-ctx.Done():
			return ctx.Err()
		case <-q.done:
			return ErrQueueClosed
		}
	}
	return nil
}

// Close 关闭事件队列和所有订阅通道。
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()

	// 等待正在进行的 Publish 退出后再关闭通道，避免向已关闭通道写入。
	q.pubMu.Lock()
	q.mu.Lock()
	subs := q.subs
	q.subs = nil
	q.mu.Unlock()
	q.pubMu.Unlock()

	for _, ch := range subs {
		close(ch)
	}
}
