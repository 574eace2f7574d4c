package logbuf

import (
	"fmt"
	"sync"
	"time"
)

// Kind classifies a log entry.
type Kind string

// Entry kinds.
const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Entry is one appended log message. Entries are ordered by arrival;
// Seq is the zero-based position in the buffer.
type Entry struct {
	Seq       int       `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
}

// notifyQueueSize bounds the dispatcher queue. Append notifications may
// be dropped when the queue is full (observers catch up from the entry
// slice on their next invocation), but flush requests always enqueue.
const notifyQueueSize = 256

// appendNotice signals the dispatcher that entries were appended.
type appendNotice struct{}

// flushRequest asks the dispatcher to run observers and then close done.
type flushRequest struct {
	done chan struct{}
}

// Buffer is the append-only log collaborator: user-visible diagnostic
// and audit messages ordered by arrival.
//
// Observers registered with OnChange are invoked from a single dispatcher
// goroutine, one at a time, after entries are appended and on flush
// requests. Because the dispatcher queue is FIFO, an observer invocation
// triggered by RequestFlush observes every entry appended before the
// request was issued (happens-before), which is what the recording
// session's stop sequence relies on.
//
// All methods are safe for concurrent use.
type Buffer struct {
	mu      sync.Mutex
	entries []Entry

	obsMu     sync.Mutex
	observers []func()

	queue chan any
	done  chan struct{}

	closeOnce sync.Once
}

// New creates a buffer and starts its dispatcher goroutine.
// Call Close to stop it.
func New() *Buffer {
	b := &Buffer{
		queue: make(chan any, notifyQueueSize),
		done:  make(chan struct{}),
	}
	go b.dispatch()
	return b
}

// Append adds an entry to the buffer and schedules observer
// notification.
func (b *Buffer) Append(kind Kind, message string) {
	b.mu.Lock()
	b.entries = append(b.entries, Entry{
		Seq:       len(b.entries),
		Timestamp: time.Now().UTC(),
		Kind:      kind,
		Message:   message,
	})
	b.mu.Unlock()

	// Non-blocking: a dropped notice is harmless because observers read
	// the full entry slice and keep their own high-water mark.
	select {
	case b.queue <- appendNotice{}:
	case <-b.done:
	default:
	}
}

// Infof appends a formatted info entry.
func (b *Buffer) Infof(format string, args ...any) {
	b.Append(KindInfo, fmt.Sprintf(format, args...))
}

// Successf appends a formatted success entry.
func (b *Buffer) Successf(format string, args ...any) {
	b.Append(KindSuccess, fmt.Sprintf(format, args...))
}

// Errorf appends a formatted error entry.
func (b *Buffer) Errorf(format string, args ...any) {
	b.Append(KindError, fmt.Sprintf(format, args...))
}

// Entries returns a snapshot of all entries in arrival order.
func (b *Buffer) Entries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	snapshot := make([]Entry, len(b.entries))
	copy(snapshot, b.entries)
	return snapshot
}

// Len returns the number of appended entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// OnChange registers an observer invoked from the dispatcher goroutine
// after appends and on flush requests. Observers must not block for
// extended periods.
func (b *Buffer) OnChange(fn func()) {
	b.obsMu.Lock()
	defer b.obsMu.Unlock()
	b.observers = append(b.observers, fn)
}

// RequestFlush asks the dispatcher to invoke all observers and returns a
// channel that is closed once that has happened. Every entry appended
// before the call is guaranteed to have been presented to observers by
// the time the channel closes. If the buffer is closed the channel is
// closed immediately.
func (b *Buffer) RequestFlush() <-chan struct{} {
	done := make(chan struct{})
	select {
	case b.queue <- flushRequest{done: done}:
	case <-b.done:
		close(done)
	}
	return done
}

// Close stops the dispatcher goroutine. Entries remain readable.
func (b *Buffer) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

// dispatch is the single observer-notification goroutine.
func (b *Buffer) dispatch() {
	for {
		select {
		case <-b.done:
			return
		case item := <-b.queue:
			switch req := item.(type) {
			case appendNotice:
				b.notifyObservers()
			case flushRequest:
				b.notifyObservers()
				close(req.done)
			}
		}
	}
}

// notifyObservers runs every registered observer once.
func (b *Buffer) notifyObservers() {
	b.obsMu.Lock()
	observers := make([]func(), len(b.observers))
	copy(observers, b.observers)
	b.obsMu.Unlock()

	for _, fn := range observers {
		fn()
	}
}
