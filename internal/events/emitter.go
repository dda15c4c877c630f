package events

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Listener receives events of the kinds it subscribed to.
type Listener func(Event)

// Option configures a subscription.
type Option func(*subscription)

// WithContext removes the subscription once ctx is done.
func WithContext(ctx context.Context) Option {
	return func(s *subscription) { s.ctx = ctx }
}

type subscription struct {
	id  uint64
	fn  Listener
	ctx context.Context
}

// Emitter is a synchronous, per-kind publish/subscribe hub. A panicking
// listener is recovered and logged without affecting the others.
type Emitter struct {
	logger *zap.Logger

	mu     sync.RWMutex
	nextID uint64
	subs   map[Kind][]*subscription
}

// NewEmitter creates an emitter that logs listener failures to logger.
func NewEmitter(logger *zap.Logger) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{
		logger: logger.Named("events"),
		subs:   make(map[Kind][]*subscription),
	}
}

// On subscribes fn to kind. The returned function unsubscribes; calling it
// more than once is harmless.
func (e *Emitter) On(kind Kind, fn Listener, opts ...Option) (unsubscribe func()) {
	s := &subscription{fn: fn}
	for _, opt := range opts {
		opt(s)
	}
	if s.ctx != nil && s.ctx.Err() != nil {
		return func() {}
	}

	e.mu.Lock()
	e.nextID++
	s.id = e.nextID
	e.subs[kind] = append(e.subs[kind], s)
	e.mu.Unlock()

	var once sync.Once
	unsubscribe = func() {
		once.Do(func() { e.remove(kind, s.id) })
	}
	if s.ctx != nil {
		stop := context.AfterFunc(s.ctx, unsubscribe)
		inner := unsubscribe
		unsubscribe = func() {
			stop()
			inner()
		}
	}
	return unsubscribe
}

func (e *Emitter) remove(kind Kind, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	subs := e.subs[kind]
	for i, s := range subs {
		if s.id == id {
			// Copy so an Emit iterating the old slice is unaffected.
			next := make([]*subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			if len(next) == 0 {
				delete(e.subs, kind)
			} else {
				e.subs[kind] = next
			}
			return
		}
	}
}

// Emit delivers ev to every listener of its kind, in subscription order.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	subs := e.subs[ev.Kind()]
	e.mu.RUnlock()

	for _, s := range subs {
		if s.ctx != nil && s.ctx.Err() != nil {
			continue
		}
		e.deliver(s, ev)
	}
}

func (e *Emitter) deliver(s *subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Event listener panicked.",
				zap.String("kind", string(ev.Kind())),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()
	s.fn(ev)
}

// HasListeners reports whether anyone listens to kind. Producers use it to
// skip building expensive payloads.
func (e *Emitter) HasListeners(kind Kind) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subs[kind]) > 0
}

// ListenerCounts reports the number of listeners per kind.
func (e *Emitter) ListenerCounts() map[Kind]int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[Kind]int, len(e.subs))
	for k, subs := range e.subs {
		out[k] = len(subs)
	}
	return out
}

// Subscribe is a typed variant of On: fn only sees events of type E.
func Subscribe[E Event](e *Emitter, fn func(E), opts ...Option) (unsubscribe func()) {
	var zero E
	return e.On(zero.Kind(), func(ev Event) {
		if typed, ok := ev.(E); ok {
			fn(typed)
		}
	}, opts...)
}
