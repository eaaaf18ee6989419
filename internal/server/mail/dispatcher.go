// Package mail delivers confirmation codes out-of-band. Delivery is
// queued and fire-and-forget: a failed send is logged, never surfaced to
// the workflow that requested it.
package mail

import (
	"context"
	"sync"
)

// Template names understood by the dispatcher.
const (
	TemplateVerification = "verification"
	TemplateRoleChange   = "role_change"
)

// Params carries template values (code, target email, requested role).
type Params map[string]string

// Dispatcher queues an outbound message. Implementations must not block
// the caller on network I/O.
type Dispatcher interface {
	Send(templateName, recipient string, params Params)
}

type message struct {
	template  string
	recipient string
	params    Params
}

// queue is the shared fire-and-forget delivery loop used by concrete
// dispatchers. Messages that do not fit the buffer are dropped.
type queue struct {
	ch        chan message
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	deliver   func(ctx context.Context, m message)
}

func newQueue(bufferSize int, deliver func(ctx context.Context, m message)) *queue {
	if bufferSize <= 0 {
		bufferSize = 16
	}

	q := &queue{
		ch:      make(chan message, bufferSize),
		done:    make(chan struct{}),
		deliver: deliver,
	}

	q.wg.Add(1)
	go q.run()

	return q
}

func (q *queue) run() {
	defer q.wg.Done()

	for {
		select {
		case m := <-q.ch:
			q.deliver(context.Background(), m)
		case <-q.done:
			for {
				select {
				case m := <-q.ch:
					q.deliver(context.Background(), m)
				default:
					return
				}
			}
		}
	}
}

func (q *queue) enqueue(m message) {
	select {
	case q.ch <- m:
	case <-q.done:
	default:
	}
}

func (q *queue) close() {
	q.closeOnce.Do(func() {
		close(q.done)
		q.wg.Wait()
	})
}
