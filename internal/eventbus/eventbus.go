// Package eventbus dispatches in-process events by their Go type. Metrics
// and tracing observe the service through it without being imported by the
// code that emits events.
package eventbus

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
)

// Handler receives events of type T.
type Handler[T any] func(context.Context, T)

type subscriber struct {
	id uint64
	fn func(context.Context, any)
}

// Bus holds the subscribers of each event type. The zero value is not
// usable; call New.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[reflect.Type][]subscriber
}

func New() *Bus { return &Bus{subs: make(map[reflect.Type][]subscriber)} }

// On subscribes h to events of type T on b.
func On[T any](b *Bus, h Handler[T]) (unsubscribe func()) {
	typ := reflect.TypeFor[T]()
	fn := func(ctx context.Context, e any) { h(ctx, e.(T)) }

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[typ] = append(b.subs[typ], subscriber{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { b.remove(typ, id) }) }
}

func (b *Bus) remove(typ reflect.Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[typ]
	for i, s := range subs {
		if s.id == id {
			subs = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(b.subs, typ)
		return
	}
	b.subs[typ] = subs
}

// Emit calls the subscribers of T in subscription order on the caller's
// goroutine.
func Emit[T any](ctx context.Context, b *Bus, e T) {
	b.mu.RLock()
	subs := b.subs[reflect.TypeFor[T]()]
	b.mu.RUnlock()
	for _, s := range subs {
		s.fn(ctx, e)
	}
}

var global atomic.Pointer[Bus]

// Use installs b as the process bus. nil disables publishing.
func Use(b *Bus) { global.Store(b) }

// Subscribe subscribes h on the process bus. Without a bus it does nothing.
func Subscribe[T any](h Handler[T]) (unsubscribe func()) {
	if b := global.Load(); b != nil {
		return On(b, h)
	}
	return func() {}
}

// Publish emits e on the process bus, if any.
func Publish[T any](ctx context.Context, e T) {
	if b := global.Load(); b != nil {
		Emit(ctx, b, e)
	}
}
