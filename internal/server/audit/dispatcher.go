package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Dispatcher decouples fact production from sink delivery with a buffered
// channel and a single delivery goroutine. When the buffer is full the fact
// is dropped and counted, keeping Emit non-blocking for request handlers.
type Dispatcher struct {
	sink      Sink
	ch        chan Fact
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closeOnce sync.Once
}

// NewDispatcher starts a dispatcher delivering to sink with the given
// buffer size (minimum 1).
func NewDispatcher(sink Sink, bufferSize int) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}

	d := &Dispatcher{
		sink: sink,
		ch:   make(chan Fact, bufferSize),
		done: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case fact := <-d.ch:
			d.sink.Emit(context.Background(), fact)
		case <-d.done:
			// Drain whatever is already buffered before exiting.
			for {
				select {
				case fact := <-d.ch:
					d.sink.Emit(context.Background(), fact)
				default:
					return
				}
			}
		}
	}
}

// Emit enqueues the fact without blocking. Facts that do not fit the
// buffer are dropped and counted.
func (d *Dispatcher) Emit(_ context.Context, fact Fact) {
	if fact.OccurredAt.IsZero() {
		fact.OccurredAt = time.Now()
	}

	select {
	case d.ch <- fact:
	case <-d.done:
	default:
		d.dropped.Add(1)
	}
}

// Dropped reports how many facts were discarded due to a full buffer.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Close stops the dispatcher after draining buffered facts.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.done)
		d.wg.Wait()
	})
}
