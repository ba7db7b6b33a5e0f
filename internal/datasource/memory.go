// Package datasource holds the instance stores served by query root fields.
package datasource

import (
	"context"
	"iter"
	"sync"

	"github.com/hanpama/classgraph/internal/classinfo"
)

// Memory keeps instances in insertion order.
type Memory struct {
	u     *classinfo.Universe
	mu    sync.RWMutex
	items []any
}

func NewMemory(u *classinfo.Universe, items ...any) *Memory {
	return &Memory{u: u, items: items}
}

// Add appends instances.
func (m *Memory) Add(items ...any) {
	m.mu.Lock()
	m.items = append(m.items, items...)
	m.mu.Unlock()
}

// Replace swaps the whole content.
func (m *Memory) Replace(items []any) {
	m.mu.Lock()
	m.items = append([]any(nil), items...)
	m.mu.Unlock()
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *Memory) snapshot() []any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.items[:len(m.items):len(m.items)]
}

// AllInstancesOf yields the instances whose class is assignable to class.
func (m *Memory) AllInstancesOf(ctx context.Context, class string) iter.Seq2[any, error] {
	items := m.snapshot()
	return func(yield func(any, error) bool) {
		for _, it := range items {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !m.instanceOf(it, class) {
				continue
			}
			if !yield(it, nil) {
				return
			}
		}
	}
}

// FindByID returns the first instance of class whose identity is id.
func (m *Memory) FindByID(ctx context.Context, class, id string) (any, bool, error) {
	for _, it := range m.snapshot() {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		if !m.instanceOf(it, class) {
			continue
		}
		if got, ok := m.u.IdentityOf(it); ok && got == id {
			return it, true, nil
		}
	}
	return nil, false, nil
}

func (m *Memory) instanceOf(it any, class string) bool {
	c, ok := m.u.ClassOf(it)
	return ok && m.u.IsAssignable(c.Name, class)
}
