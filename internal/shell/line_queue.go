package shell

import "sync"

// lineQueue is an unbounded FIFO between the pty reader and the publisher.
// push never blocks, so the reader keeps draining the pty while a slow
// subscriber holds up publishing.
type lineQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	lines   []string
	closed  bool
	dropped bool
}

func newLineQueue() *lineQueue {
	q := &lineQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *lineQueue) push(line string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.dropped {
		return
	}
	q.lines = append(q.lines, line)
	q.cond.Signal()
}

// close marks the end of input; pop still returns what is queued.
func (q *lineQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// discard drops queued and future lines once nobody will publish them.
func (q *lineQueue) discard() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dropped = true
	q.lines = nil
}

// pop blocks until a line is available or the queue is closed and empty.
func (q *lineQueue) pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.lines) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.lines) == 0 {
		return "", false
	}
	line := q.lines[0]
	q.lines[0] = ""
	q.lines = q.lines[1:]
	return line, true
}
