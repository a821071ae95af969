package store

import (
	"context"
	"sync"
	"time"

	"codeshare/pkg/logger"
)

// Handlers mutate in-memory state first and persist through this queue;
// a failed write is retried, then logged and counted, but never rolled
// back into the caller's state. Consistency between cache and store is
// eventual.

const (
	writeQueueDepth = 1024
	writeRetries    = 3
	retryBackoff    = 250 * time.Millisecond
)

type writeOp struct {
	name string
	fn   func() error
}

var (
	wbMu   sync.Mutex
	wbCh   chan writeOp
	wbDone chan struct{}

	// OnWriteFailure is invoked after all retries are exhausted; the app
	// wires a metrics counter here.
	OnWriteFailure func(name string)
)

// StartWriter launches the write-behind worker. It drains the queue on
// context cancellation before signaling completion.
func StartWriter(ctx context.Context) {
	wbMu.Lock()
	defer wbMu.Unlock()
	if wbCh != nil {
		return
	}
	wbCh = make(chan writeOp, writeQueueDepth)
	wbDone = make(chan struct{})
	go func() {
		defer close(wbDone)
		for {
			select {
			case op := <-wbCh:
				runWrite(op)
			case <-ctx.Done():
				for {
					select {
					case op := <-wbCh:
						runWrite(op)
					default:
						return
					}
				}
			}
		}
	}()
}

// StopWriter waits for the worker to drain after its context is canceled.
func StopWriter(timeout time.Duration) {
	wbMu.Lock()
	done := wbDone
	wbMu.Unlock()
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(timeout):
		logger.Warn("write_behind_stop_timeout")
	}
}

// Enqueue schedules a persistence write. When the queue is full or the
// worker is not running, the write runs inline so nothing is dropped.
func Enqueue(name string, fn func() error) {
	wbMu.Lock()
	ch := wbCh
	wbMu.Unlock()
	if ch == nil {
		runWrite(writeOp{name: name, fn: fn})
		return
	}
	select {
	case ch <- writeOp{name: name, fn: fn}:
	default:
		runWrite(writeOp{name: name, fn: fn})
	}
}

func runWrite(op writeOp) {
	var err error
	for attempt := 1; attempt <= writeRetries; attempt++ {
		if err = op.fn(); err == nil {
			return
		}
		time.Sleep(retryBackoff * time.Duration(attempt))
	}
	logger.Error("write_behind_failed", "op", op.name, "error", err)
	if OnWriteFailure != nil {
		OnWriteFailure(op.name)
	}
}
