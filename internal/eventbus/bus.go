// Package eventbus provides the publish/subscribe primitive shared by the
// store, the push channel, and the map controller.
package eventbus

import (
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/geo-workbench/client/pkg/logger"
)

type Handler func(payload any)

type entry struct {
	fn   Handler
	once bool
}

// Bus delivers events to handlers synchronously, in registration order.
// A handler that panics is recovered and logged; later handlers still run.
// Emitting from inside a handler is allowed.
type Bus struct {
	mu       sync.Mutex
	handlers map[string][]*entry
}

func New() *Bus {
	return &Bus{
		handlers: make(map[string][]*entry),
	}
}

// On registers handler for the named event and returns an idempotent
// unsubscribe function.
func (b *Bus) On(name string, handler Handler) func() {
	e := &entry{fn: handler}

	b.mu.Lock()
	b.handlers[name] = append(b.handlers[name], e)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.remove(name, e)
		})
	}
}

// Once registers handler to run at most once.
func (b *Bus) Once(name string, handler Handler) func() {
	e := &entry{fn: handler, once: true}

	b.mu.Lock()
	b.handlers[name] = append(b.handlers[name], e)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.remove(name, e)
		})
	}
}

// Off removes every registration of handler for the named event. Handlers
// are matched by function identity.
func (b *Bus) Off(name string, handler Handler) {
	target := reflect.ValueOf(handler).Pointer()

	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.handlers[name]
	kept := list[:0]
	for _, e := range list {
		if reflect.ValueOf(e.fn).Pointer() != target {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		delete(b.handlers, name)
	} else {
		b.handlers[name] = kept
	}
}

// Emit invokes each registered handler with payload. Once-handlers are
// deregistered before they run so that nested emits see them gone.
func (b *Bus) Emit(name string, payload any) {
	b.mu.Lock()
	list := b.handlers[name]
	snapshot := make([]*entry, len(list))
	copy(snapshot, list)
	b.mu.Unlock()

	for _, e := range snapshot {
		if e.once {
			b.remove(name, e)
		}
		b.invoke(name, e, payload)
	}
}

func (b *Bus) invoke(name string, e *entry, payload any) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Event handler panicked",
				zap.String("event", name),
				zap.Any("panic", r),
			)
		}
	}()

	e.fn(payload)
}

func (b *Bus) remove(name string, target *entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.handlers[name]
	for i, e := range list {
		if e == target {
			b.handlers[name] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(b.handlers[name]) == 0 {
		delete(b.handlers, name)
	}
}

// ListenerCount reports the number of live registrations for an event.
func (b *Bus) ListenerCount(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[name])
}
