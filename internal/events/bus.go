// Package events delivers pipeline state changes to observers in publish order.
package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Type names a pipeline notification.
type Type string

const (
	TypeSessionStarted      Type = "session.started"
	TypeActionAppended      Type = "action.appended"
	TypeSessionStopped      Type = "session.stopped"
	TypeFlowClassified      Type = "flow.classified"
	TypeScriptSynthesized   Type = "script.synthesized"
	TypeValidationStarted   Type = "validation.started"
	TypeValidationCancelled Type = "validation.cancelled"
	TypeValidationResolved  Type = "validation.resolved"
)

// Event is one discrete notification.
type Event struct {
	Seq       uint64         `json:"seq"`
	Type      Type           `json:"type"`
	At        time.Time      `json:"at"`
	SessionID string         `json:"session_id,omitempty"`
	FlowID    string         `json:"flow_id,omitempty"`
	ScriptID  string         `json:"script_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Publisher accepts notifications without blocking the caller.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Handler consumes events on the bus goroutine.
type Handler func(ctx context.Context, evt Event)

var (
	// ErrQueueFull indicates the event was dropped because the queue is at capacity.
	ErrQueueFull = errors.New("event queue full")
	// ErrClosed indicates the bus no longer accepts events.
	ErrClosed = errors.New("event bus closed")
)

// Bus is a bounded queue drained by a single consumer goroutine.
type Bus struct {
	logger *slog.Logger
	queue  chan Event

	mu       sync.Mutex
	seq      uint64
	closed   bool
	handlers []Handler
	subs     map[int]chan Event
	nextSub  int

	dropped atomic.Uint64
	wg      sync.WaitGroup
}

// NewBus creates a bus with room for size pending events and starts its consumer.
func NewBus(size int, logger *slog.Logger) *Bus {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	b := &Bus{
		logger: logger,
		queue:  make(chan Event, size),
		subs:   make(map[int]chan Event),
	}
	b.wg.Add(1)
	go b.run()
	return b
}

// Publish stamps evt with the next sequence number and enqueues it.
func (b *Bus) Publish(_ context.Context, evt Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if evt.At.IsZero() {
		evt.At = time.Now()
	}
	evt.Seq = b.seq + 1

	select {
	case b.queue <- evt:
		b.seq = evt.Seq
		return nil
	default:
		b.dropped.Add(1)
		return ErrQueueFull
	}
}

// Handle registers a handler invoked for every subsequent event.
func (b *Bus) Handle(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Subscribe returns a channel of subsequent events and a cancel function.
// Events are dropped for a subscriber whose buffer is full.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
			b.mu.Unlock()
		})
	}
	return ch, cancel
}

// Dropped returns the number of events rejected because the queue was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close stops accepting events, drains the queue and closes subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()

	b.wg.Wait()

	b.mu.Lock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	b.mu.Unlock()
}

func (b *Bus) run() {
	defer b.wg.Done()
	ctx := context.Background()
	for evt := range b.queue {
		b.mu.Lock()
		handlers := append([]Handler(nil), b.handlers...)
		for _, ch := range b.subs {
			select {
			case ch <- evt:
			default:
				b.logger.Warn("subscriber lagging, event dropped", "seq", evt.Seq, "type", evt.Type)
			}
		}
		b.mu.Unlock()

		for _, h := range handlers {
			h(ctx, evt)
		}
	}
}

// Notify publishes evt and logs instead of failing when delivery is refused.
func Notify(ctx context.Context, p Publisher, logger *slog.Logger, evt Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, evt); err != nil && logger != nil {
		logger.Warn("event not delivered", "type", evt.Type, "error", err)
	}
}
