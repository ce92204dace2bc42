package evrt

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// Go deliberately does not expose goroutine-local storage. spec.md §9's
// "Global current-queue state" requires exactly that (a thread-local
// pointer to the message queue the running goroutine drains), so we use
// the standard community workaround: parse the running goroutine's id out
// of its own runtime.Stack header. The id is stable for the lifetime of
// the goroutine, which is all the affiliation check in IsSynchronous
// needs — a Thread's loop goroutine never migrates its *identity* (only
// the OS thread it happens to run on may change, which does not matter
// here).
var (
	currentQueues   sync.Map // goroutine id (uint64) -> *MessageQueue
	autoCreatedMu   sync.Mutex
	autoCreatedList []*MessageQueue // queues created lazily by NewMessageQueue for teardown bookkeeping
)

func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	// "goroutine 123 [running]:\n..."
	const prefix = "goroutine "
	if !bytes.HasPrefix(b, []byte(prefix)) {
		return 0
	}
	b = b[len(prefix):]
	sp := bytes.IndexByte(b, ' ')
	if sp < 0 {
		return 0
	}
	id, err := strconv.ParseUint(string(b[:sp]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// setCurrentMessageQueue registers mq as the "current" message queue for
// the calling goroutine. A Thread's worker goroutine sets it before
// running entry and clears it when entry returns; BeginInit/EndInit set
// and restore it on the creator goroutine.
func setCurrentMessageQueue(mq *MessageQueue) {
	currentQueues.Store(goroutineID(), mq)
}

func clearCurrentMessageQueue() {
	currentQueues.Delete(goroutineID())
}

// CurrentMessageQueue returns the MessageQueue affiliated with the
// calling goroutine, or nil if none has been set for it (a Thread's
// worker goroutine, or a creator goroutine between BeginInit and EndInit,
// has one).
func CurrentMessageQueue() *MessageQueue {
	v, ok := currentQueues.Load(goroutineID())
	if !ok {
		return nil
	}
	return v.(*MessageQueue)
}

// IsSynchronous reports whether the calling goroutine's current message
// queue equals weak's affiliated queue — this is how Pipe and Signal
// choose between a direct call and an enqueue (spec.md §4.4 "Affiliation
// check").
func IsSynchronous(weak *WeakData) bool {
	if weak == nil {
		return false
	}
	cur := CurrentMessageQueue()
	return cur != nil && cur == weak.Queue()
}

func registerAutoCreated(mq *MessageQueue) {
	autoCreatedMu.Lock()
	autoCreatedList = append(autoCreatedList, mq)
	autoCreatedMu.Unlock()
}
