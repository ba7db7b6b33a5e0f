package executor

import (
	"context"
	"fmt"
	"sync"
)

// StubResolver answers one field of a Stub.
type StubResolver func(ctx context.Context, source any, args map[string]any) (any, error)

// Value returns a resolver yielding v.
func Value(v any) StubResolver {
	return func(context.Context, any, map[string]any) (any, error) { return v, nil }
}

// Fail returns a resolver failing with err.
func Fail(err error) StubResolver {
	return func(context.Context, any, map[string]any) (any, error) { return nil, err }
}

// Stub is a Runtime answering fields from resolvers keyed "Type.field". It
// records every batch it receives. Fields without a resolver are null.
type Stub struct {
	Resolvers map[string]StubResolver
	// TypeOf names the object type of an abstract value. By default it reads
	// the "__typename" entry of map values.
	TypeOf func(abstractType string, value any) (string, error)
	// Serialize encodes leaf values. By default values are returned as is.
	Serialize func(typ string, value any) (any, error)

	mu      sync.Mutex
	batches [][]AsyncResolveTask
	syncs   []string
}

func NewStub(resolvers map[string]StubResolver) *Stub {
	if resolvers == nil {
		resolvers = map[string]StubResolver{}
	}
	return &Stub{Resolvers: resolvers}
}

func (s *Stub) resolve(ctx context.Context, typ, field string, source any, args map[string]any) (any, error) {
	s.mu.Lock()
	r := s.Resolvers[typ+"."+field]
	s.mu.Unlock()
	if r == nil {
		return nil, nil
	}
	return r(ctx, source, args)
}

func (s *Stub) ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	s.mu.Lock()
	s.syncs = append(s.syncs, objectType+"."+field)
	s.mu.Unlock()
	return s.resolve(ctx, objectType, field, source, args)
}

func (s *Stub) BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult {
	s.mu.Lock()
	s.batches = append(s.batches, append([]AsyncResolveTask(nil), tasks...))
	s.mu.Unlock()
	out := make([]AsyncResolveResult, len(tasks))
	for i, t := range tasks {
		out[i].Value, out[i].Error = s.resolve(ctx, t.ObjectType, t.Field, t.Source, t.Args)
	}
	return out
}

func (s *Stub) ResolveType(_ context.Context, abstractType string, value any) (string, error) {
	if s.TypeOf != nil {
		return s.TypeOf(abstractType, value)
	}
	if m, ok := value.(map[string]any); ok {
		if name, ok := m["__typename"].(string); ok {
			return name, nil
		}
	}
	return "", fmt.Errorf("cannot resolve %s for %T", abstractType, value)
}

func (s *Stub) SerializeLeafValue(_ context.Context, typ string, value any) (any, error) {
	if s.Serialize != nil {
		return s.Serialize(typ, value)
	}
	return value, nil
}

// Batches returns the async batches received so far.
func (s *Stub) Batches() [][]AsyncResolveTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]AsyncResolveTask(nil), s.batches...)
}

// SyncCalls returns the "Type.field" keys passed to ResolveSync, in order.
func (s *Stub) SyncCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.syncs...)
}
