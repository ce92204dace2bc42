package evrt

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Thread pairs a goroutine with its own Loop and MessageQueue, per
// spec.md §3 "Message queue" lifetime and §4.7 "Thread". It owns the
// queue from construction, before the worker goroutine ever runs, so
// that BeginInit/EndInit can affiliate objects constructed on the
// creator goroutine with the new thread's queue ahead of time.
type Thread struct {
	mq   *MessageQueue
	loop *Loop

	// OnExit fires with the worker's exit code once its entry function
	// returns, per spec.md §4.7's "thread emits an on_exit(exit_code)
	// signal".
	OnExit Signal[int]

	startOnce sync.Once
	started   atomic.Bool
	done      chan struct{}

	initMu   sync.Mutex
	prevMQ   *MessageQueue
	prevSet  bool
}

// NewThread creates a Thread's loop and message queue, but does not start
// its worker goroutine.
func NewThread(opts ...LoopOption) (*Thread, error) {
	loop, err := NewLoop(opts...)
	if err != nil {
		return nil, err
	}
	t := &Thread{
		loop: loop,
		done: make(chan struct{}),
	}
	t.mq = NewMessageQueue(loop)
	return t, nil
}

// Loop returns the thread's owned event loop.
func (t *Thread) Loop() *Loop { return t.loop }

// Queue returns the thread's owned message queue.
func (t *Thread) Queue() *MessageQueue { return t.mq }

// BeginInit temporarily exposes this thread's queue as the calling
// goroutine's current message queue, so that objects constructed by the
// creator goroutine between BeginInit and EndInit affiliate with the new
// thread rather than the creator's own queue (spec.md §4.7). Must be
// paired with a later EndInit call from the same goroutine; nesting is
// not supported.
func (t *Thread) BeginInit() {
	t.initMu.Lock()
	defer t.initMu.Unlock()
	t.prevMQ = CurrentMessageQueue()
	t.prevSet = true
	setCurrentMessageQueue(t.mq)
}

// EndInit restores the calling goroutine's previous current message
// queue (possibly none), undoing BeginInit.
func (t *Thread) EndInit() {
	t.initMu.Lock()
	defer t.initMu.Unlock()
	if !t.prevSet {
		return
	}
	t.prevSet = false
	if t.prevMQ != nil {
		setCurrentMessageQueue(t.prevMQ)
	} else {
		clearCurrentMessageQueue()
	}
	t.prevMQ = nil
}

// Start spawns the worker goroutine, which affiliates itself with this
// thread's queue and runs entry to completion. entry typically calls
// t.Loop().Run() and returns once Exit stops that loop. The exit code
// entry returns is emitted on OnExit. Start is idempotent: calling it
// more than once is a no-op after the first call.
func (t *Thread) Start(entry func(*Thread) int) {
	t.startOnce.Do(func() {
		t.started.Store(true)
		go func() {
			setCurrentMessageQueue(t.mq)
			defer clearCurrentMessageQueue()
			code := entry(t)
			t.OnExit.Emit(code)
			close(t.done)
		}()
	})
}

// Exit asks the thread's loop to stop; it does not itself wait for the
// worker goroutine to finish (use Join or connect to OnExit for that).
func (t *Thread) Exit() { t.loop.Exit() }

// Join blocks until the worker goroutine's entry function has returned
// and OnExit has been emitted.
// Safe to call before or after Start; returns immediately if Start was
// never called and the thread is being discarded without running.
func (t *Thread) Join() {
	if !t.started.Load() {
		return
	}
	<-t.done
}

// Free releases the thread's loop and queue resources. Must be called
// after the worker goroutine has exited (see Join); calling it while the
// worker is still running is a caller error.
func (t *Thread) Free() error {
	t.mq.Close()
	return t.loop.poller.close()
}

// Pool runs n Threads concurrently, each driven by the same entry
// function, and waits for all of them to finish, propagating the first
// non-nil error any entry function's setup returns. Built on
// golang.org/x/sync/errgroup, mirroring the rest of the pack's preferred
// fan-out/join primitive for worker-style concurrency.
type Pool struct {
	threads []*Thread
	group   *errgroup.Group
}

// NewPool constructs n Threads (each with its own Loop/MessageQueue) and
// starts entry on every one of them via errgroup.Group.Go, so the first
// setup error returned by any entry function is captured and returned by
// Wait without tearing down the others early.
func NewPool(n int, entry func(*Thread) error) (*Pool, error) {
	p := &Pool{threads: make([]*Thread, 0, n)}
	var g errgroup.Group
	p.group = &g

	for i := 0; i < n; i++ {
		th, err := NewThread()
		if err != nil {
			for _, prev := range p.threads {
				_ = prev.Free()
			}
			return nil, err
		}
		p.threads = append(p.threads, th)
	}

	for _, th := range p.threads {
		th := th
		g.Go(func() error {
			var runErr error
			th.Start(func(t *Thread) int {
				runErr = entry(t)
				return 0
			})
			th.Join()
			return runErr
		})
	}
	return p, nil
}

// Threads returns the pool's member threads, in creation order.
func (p *Pool) Threads() []*Thread { return p.threads }

// Wait blocks until every thread's entry function has returned, then
// releases every thread's loop/queue resources and returns the first
// non-nil error encountered, if any.
func (p *Pool) Wait() error {
	err := p.group.Wait()
	for _, th := range p.threads {
		_ = th.Free()
	}
	return err
}
