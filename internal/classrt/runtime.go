// Package classrt runs compiled class graphs: it implements executor.Runtime
// on top of a typegraph.CompiledSchema.
package classrt

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/hanpama/classgraph/internal/errs"
	eventbus "github.com/hanpama/classgraph/internal/eventbus"
	events "github.com/hanpama/classgraph/internal/events"
	"github.com/hanpama/classgraph/internal/executor"
	"github.com/hanpama/classgraph/internal/scalars"
	"github.com/hanpama/classgraph/internal/typegraph"
)

// Runtime resolves fields by calling the accessors bound at build time.
//   - Sync fields read properties of the source instance. They never touch a
//     data source.
//   - Async fields (the root collections) go through BatchResolveAsync, which
//     groups tasks by (objectType, field) and runs the groups in parallel.
//   - Interface values are mapped onto object types with the compiled
//     schema's type resolver.
type Runtime struct {
	cs          *typegraph.CompiledSchema
	log         *slog.Logger
	parallelism int
}

var _ executor.Runtime = (*Runtime)(nil)

type Option func(*Runtime)

// WithParallelism bounds the number of async groups resolved at once.
func WithParallelism(n int) Option { return func(r *Runtime) { r.parallelism = n } }

func WithLogger(l *slog.Logger) Option { return func(r *Runtime) { r.log = l } }

func New(cs *typegraph.CompiledSchema, opts ...Option) *Runtime {
	r := &Runtime{cs: cs, log: slog.Default(), parallelism: 8}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runtime) field(objectType, field string) (*typegraph.FieldNode, error) {
	f, ok := r.cs.Field(objectType, field)
	if !ok || f.Resolve == nil {
		return nil, fmt.Errorf("classrt: no resolver for %s.%s", objectType, field)
	}
	return f, nil
}

// ResolveSync reads a property of source.
func (r *Runtime) ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error) {
	f, err := r.field(objectType, field)
	if err != nil {
		return nil, err
	}
	return f.Resolve(ctx, source, args)
}

// BatchResolveAsync resolves one depth of async tasks. Results keep the task
// order; a failing task does not affect the others.
func (r *Runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	results := make([]executor.AsyncResolveResult, len(tasks))
	if len(tasks) == 0 {
		return results
	}
	type groupKey struct {
		objectType string
		field      string
	}
	var groups [][]int
	idxByKey := map[groupKey]int{}
	for i, t := range tasks {
		k := groupKey{objectType: t.ObjectType, field: t.Field}
		if gi, ok := idxByKey[k]; ok {
			groups[gi] = append(groups[gi], i)
		} else {
			idxByKey[k] = len(groups)
			groups = append(groups, []int{i})
		}
	}

	var g errgroup.Group
	if r.parallelism > 0 {
		g.SetLimit(r.parallelism)
	}
	for _, idxs := range groups {
		g.Go(func() error {
			first := tasks[idxs[0]]
			f, err := r.field(first.ObjectType, first.Field)
			for _, i := range idxs {
				if err != nil {
					results[i] = executor.AsyncResolveResult{Error: err}
					continue
				}
				v, rerr := f.Resolve(ctx, tasks[i].Source, tasks[i].Args)
				results[i] = executor.AsyncResolveResult{Value: v, Error: rerr}
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// ResolveType maps value onto an object type implementing abstractType.
func (r *Runtime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	n, err := r.cs.ResolveType(value, abstractType)
	ev := events.TypeResolved{Expected: abstractType, Err: err}
	if c, ok := r.cs.Universe().ClassOf(value); ok {
		ev.Class = c.Name
	}
	if err != nil {
		r.log.WarnContext(ctx, "type resolution failed", "class", ev.Class, "expected", abstractType, "err", err)
		eventbus.Publish(ctx, ev)
		return "", err
	}
	ev.Resolved = n.Name
	ev.Fallback = n.FallbackFor != nil
	if ev.Fallback {
		r.log.DebugContext(ctx, "instance served by fallback type", "class", ev.Class, "type", n.Name)
	}
	eventbus.Publish(ctx, ev)
	return n.Name, nil
}

// SerializeLeafValue serializes scalars through the scalar registry. Enum
// values, such as those of the introspection types, are their names.
func (r *Runtime) SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	if sc, ok := scalars.ByName(scalarOrEnumTypeName); ok {
		return sc.Serialize(value)
	}
	t := r.cs.Schema().Types[scalarOrEnumTypeName]
	if t == nil {
		return nil, errs.WrapCoercion(fmt.Errorf("%w: unknown leaf type %s", errs.ErrCoercion, scalarOrEnumTypeName), "serialize")
	}
	if s, ok := value.(string); ok {
		return s, nil
	}
	if s, ok := value.(fmt.Stringer); ok {
		return s.String(), nil
	}
	return fmt.Sprint(value), nil
}
