package log

import (
	"sync"
	"sync/atomic"
	"time"
)

const defaultBufferSize = 64

// Entry is a formatted record delivered to a [Subscription].
type Entry struct {
	Time    time.Time
	Logger  string
	Payload string
	Level   Level
}

// Publisher is a [Handler] that fans out formatted records to subscribers.
//
// Each call to [Publisher.Emit] formats the record once and delivers the
// resulting [Entry] to every active [Subscription] via a buffered channel
// with ring-buffer semantics: when a subscriber's channel is full the oldest
// entry is dropped so Emit never blocks. Safe for concurrent use.
//
// Create instances with [NewPublisher].
type Publisher struct {
	*HandlerBase

	subscribers []*Subscription
	bufSize     int
	mu          sync.Mutex
	closed      bool
}

// PublisherOption configures a [Publisher].
type PublisherOption func(*Publisher)

// WithBufferSize sets the channel buffer size for new subscriptions.
// Values less than 1 are clamped to 1.
func WithBufferSize(n int) PublisherOption {
	return func(p *Publisher) {
		if n < 1 {
			n = 1
		}

		p.bufSize = n
	}
}

// NewPublisher creates a [Publisher] with the given options.
// The default buffer size is 64.
func NewPublisher(name string, opts ...PublisherOption) (*Publisher, error) {
	base, err := NewHandlerBase(name)
	if err != nil {
		return nil, err
	}

	p := &Publisher{
		HandlerBase: base,
		bufSize:     defaultBufferSize,
	}
	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Emit formats rec and sends the result to all active subscribers. When a
// subscriber's channel is full the oldest entry is dropped to make room.
// Closed subscriptions are compacted out of the subscriber list.
func (p *Publisher) Emit(rec Record) error {
	payload, err := p.Render(rec)
	if err != nil {
		return err
	}

	entry := Entry{
		Time:    rec.Time,
		Logger:  rec.LoggerName,
		Payload: payload,
		Level:   rec.Level,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	// Compact closed subscriptions and deliver in one pass.
	alive := p.subscribers[:0]
	for _, sub := range p.subscribers {
		if sub.closed.Load() {
			close(sub.ch)
			continue
		}
		// Ring-buffer: drop oldest if full. The reader may drain the
		// channel at any point, so neither the eviction nor the retry
		// is allowed to block.
		select {
		case sub.ch <- entry:
		default:
			select {
			case <-sub.ch:
			default:
			}

			select {
			case sub.ch <- entry:
			default:
			}
		}

		alive = append(alive, sub)
	}
	// Clear trailing references for GC.
	for i := len(alive); i < len(p.subscribers); i++ {
		p.subscribers[i] = nil
	}

	p.subscribers = alive

	return nil
}

// Subscribe creates and registers a new [Subscription]. If the Publisher is
// already closed the returned subscription's channel is immediately closed.
func (p *Publisher) Subscribe() *Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()

	sub := &Subscription{
		ch: make(chan Entry, p.bufSize),
	}

	if p.closed {
		close(sub.ch)
		return sub
	}

	p.subscribers = append(p.subscribers, sub)

	return sub
}

// Close marks the Publisher as closed, closes all subscription channels,
// and releases the subscriber list. Idempotent. A [Logger] calls it when the
// publisher is removed or replaced.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	for _, sub := range p.subscribers {
		close(sub.ch)
	}

	p.subscribers = nil

	return nil
}

// Subscription receives entries from a [Publisher].
type Subscription struct {
	ch     chan Entry
	closed atomic.Bool
}

// C returns the read-only channel that delivers entries.
func (s *Subscription) C() <-chan Entry {
	return s.ch
}

// Close marks the subscription as closed. The Publisher will close the
// underlying channel on its next Emit or Close call. Idempotent.
func (s *Subscription) Close() {
	s.closed.Store(true)
}
