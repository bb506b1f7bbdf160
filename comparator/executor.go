package comparator

import (
	"runtime"
	"sync"
)

// Executor runs tasks one at a time on a single goroutine pinned to one OS
// thread. OpenCV state is not safe for concurrent use, so every vision call
// goes through an Executor. Tasks run in the order Submit was called.
type Executor struct {
	mu     sync.Mutex
	wake   *sync.Cond
	queue  []func()
	closed bool
}

var (
	sharedMu   sync.Mutex
	sharedExec *Executor
)

// sharedExecutor returns the process wide executor, starting it on first
// use. It is never closed.
func sharedExecutor() *Executor {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedExec == nil {
		sharedExec = NewExecutor()
	}
	return sharedExec
}

// NewExecutor starts the worker goroutine.
func NewExecutor() *Executor {
	e := &Executor{}
	e.wake = sync.NewCond(&e.mu)
	go e.loop()
	return e
}

func (e *Executor) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		task, ok := e.next()
		if !ok {
			return
		}
		task()
	}
}

// next waits for the oldest queued task. It reports false once the
// executor is closed and drained.
func (e *Executor) next() (func(), bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for len(e.queue) == 0 && !e.closed {
		e.wake.Wait()
	}
	if len(e.queue) == 0 {
		return nil, false
	}
	task := e.queue[0]
	e.queue[0] = nil
	e.queue = e.queue[1:]
	return task, true
}

func (e *Executor) enqueue(task func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false
	}
	e.queue = append(e.queue, task)
	e.wake.Signal()
	return true
}

// Submit queues fn without blocking and returns a channel that receives
// fn's result once it has run. The caller may stop waiting on the channel;
// the task still runs to completion and its result is dropped. After Close
// the channel is closed without fn running.
func Submit[T any](e *Executor, fn func() T) <-chan T {
	out := make(chan T, 1)
	if !e.enqueue(func() { out <- fn() }) {
		close(out)
	}
	return out
}

// Run executes fn on the worker and waits for its result.
func Run[T any](e *Executor, fn func() T) T {
	return <-Submit(e, fn)
}

// Close lets the worker finish the queued tasks and then stops it.
func (e *Executor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	e.wake.Broadcast()
}
