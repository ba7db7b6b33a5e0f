// Package typegraph compiles a GraphQL schema from a universe of classes and
// maps runtime instances back onto the compiled types.
//
// Build discovers every class reachable from the configured roots, through
// property references and subtype enumeration, and classifies each one as an
// Object or an Interface. Interfaces get identity-only fallback
// implementations so that instances of classes that were never discovered
// still resolve to a schema type.
package typegraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/emirpasic/gods/sets/treeset"
	"github.com/hanpama/classgraph/internal/classinfo"
	"github.com/hanpama/classgraph/internal/errs"
	"github.com/hanpama/classgraph/internal/scalars"
	"github.com/hanpama/classgraph/internal/schema"
)

// Discovery enumerates the known subtypes of a class.
type Discovery interface {
	KnownSubtypes(c *classinfo.Class) []*classinfo.Class
}

// Introspector lists the exported properties a class declares itself, or
// fails with errs.ErrNotIntrospectable.
type Introspector interface {
	Properties(c *classinfo.Class) ([]classinfo.Property, error)
}

// Pager narrows the elements of a list-of-reference field according to the
// field arguments.
type Pager interface {
	Page(ctx context.Context, items []any, args map[string]any) ([]any, error)
}

// IDPropertyPolicy decides when a property literally named "id" is left out
// of the generic fields.
type IDPropertyPolicy int

const (
	// SuppressIDAlways never emits an "id" property as a generic field.
	SuppressIDAlways IDPropertyPolicy = iota
	// SuppressIDWhenIdentity drops it only when the class has an identity accessor.
	SuppressIDWhenIdentity
)

// ParseIDPropertyPolicy parses the config spelling of a policy.
func ParseIDPropertyPolicy(s string) (IDPropertyPolicy, error) {
	switch strings.ToLower(s) {
	case "", "always":
		return SuppressIDAlways, nil
	case "when-identity":
		return SuppressIDWhenIdentity, nil
	}
	return 0, fmt.Errorf("unknown id property policy %q", s)
}

// DefaultLimit is the page size used when a query gives no limit.
const DefaultLimit = 100

type Config struct {
	Universe *classinfo.Universe
	// Discovery and Introspector default to Universe.
	Discovery    Discovery
	Introspector Introspector
	Roots        []RootField
	// Exclude hides classes from the schema. References to excluded classes
	// degrade to String.
	Exclude    func(*classinfo.Class) bool
	IDProperty IDPropertyPolicy
	// Pager serves list-of-reference fields. Without one, their arguments are
	// ignored.
	Pager Pager
	// ListArgs are the arguments of list-of-reference fields. Defaults to
	// ListArguments(DefaultLimit).
	ListArgs []*schema.InputValue
	Logger   *slog.Logger
}

// ListArguments returns the offset, limit and id arguments of paged fields.
func ListArguments(defaultLimit int) []*schema.InputValue {
	return []*schema.InputValue{
		schema.Arg("offset", "Number of elements to skip.", schema.Named("Int")).WithDefault(0),
		schema.Arg("limit", "Maximum number of elements to return.", schema.Named("Int")).WithDefault(defaultLimit),
		schema.Arg("id", "Only return the element with this identity.", schema.Named("ID")),
	}
}

type builder struct {
	cfg   Config
	u     *classinfo.Universe
	log   *slog.Logger
	pager Pager

	queue     *treeset.Set
	processed map[string]bool
	names     *nameAllocator

	nodes   []*TypeNode
	byName  map[string]*TypeNode
	byClass map[string]*TypeNode
}

// Build compiles the schema reachable from cfg.Roots.
func Build(cfg Config) (*CompiledSchema, error) {
	if cfg.Universe == nil {
		return nil, fmt.Errorf("typegraph: build: no universe")
	}
	if cfg.Discovery == nil {
		cfg.Discovery = cfg.Universe
	}
	if cfg.Introspector == nil {
		cfg.Introspector = cfg.Universe
	}
	if cfg.ListArgs == nil {
		cfg.ListArgs = ListArguments(DefaultLimit)
	}
	b := &builder{
		cfg:       cfg,
		u:         cfg.Universe,
		log:       cfg.Logger,
		pager:     cfg.Pager,
		queue:     treeset.NewWithStringComparator(),
		processed: map[string]bool{},
		names:     newNameAllocator(),
		byName:    map[string]*TypeNode{},
		byClass:   map[string]*TypeNode{},
	}
	if b.log == nil {
		b.log = slog.Default()
	}
	if b.pager == nil {
		b.pager = passthroughPager{}
	}

	for _, r := range cfg.Roots {
		c, ok := b.u.Lookup(r.Class)
		if !ok {
			return nil, errs.Invalidf(errs.ErrUnknownType, "build", "root %s: class %s", r.Name, r.Class)
		}
		b.enqueue(b.u.RealClass(c).Name)
	}
	b.discover()
	b.demote()
	b.synthesizeFallbacks()
	b.link()
	query, err := b.finalize()
	if err != nil {
		return nil, err
	}
	return b.compile(query)
}

func (b *builder) enqueue(name string) {
	if !b.processed[name] {
		b.queue.Add(name)
	}
}

func (b *builder) includable(c *classinfo.Class) bool {
	if c.Internal || c.IsProxy() {
		return false
	}
	return b.cfg.Exclude == nil || !b.cfg.Exclude(c)
}

// discover drains the queue in class name order.
func (b *builder) discover() {
	for !b.queue.Empty() {
		it := b.queue.Iterator()
		it.First()
		name := it.Value().(string)
		b.queue.Remove(name)
		if b.processed[name] {
			continue
		}
		b.processed[name] = true

		c, ok := b.u.Lookup(name)
		if !ok {
			b.log.Debug("skipping unknown class", "class", name)
			continue
		}
		if !b.includable(c) {
			b.log.Debug("skipping excluded class", "class", name)
			continue
		}
		b.classify(c)
	}
}

func (b *builder) addNode(c *classinfo.Class, kind Kind) *TypeNode {
	n := newTypeNode(b.names.allocate(NormalizeName(c.Name)), kind, c)
	b.nodes = append(b.nodes, n)
	b.byName[n.Name] = n
	b.byClass[c.Name] = n
	return n
}

func (b *builder) classify(c *classinfo.Class) {
	props, err := b.cfg.Introspector.Properties(c)
	if c.Kind != classinfo.Concrete || err != nil {
		switch {
		case err == nil:
		case errors.Is(err, errs.ErrNotIntrospectable):
			b.log.Debug("class not introspectable", "class", c.Name)
		default:
			b.log.Warn("introspection failed", "class", c.Name, "error", err)
		}
		n := b.addNode(c, Interface)
		b.addIdentityFields(n, c)
		b.log.Debug("classified", "class", c.Name, "type", n.Name, "kind", n.Kind)
		for _, sub := range b.cfg.Discovery.KnownSubtypes(c) {
			b.enqueue(sub.Name)
		}
		return
	}

	n := b.addNode(c, Object)
	hasIdentity := b.addIdentityFields(n, c)
	b.addPropertyFields(n, props, hasIdentity)
	for _, super := range b.u.Supers(c) {
		sp, err := b.cfg.Introspector.Properties(super)
		if err != nil {
			continue
		}
		b.addPropertyFields(n, sp, hasIdentity)
	}
	b.log.Debug("classified", "class", c.Name, "type", n.Name, "kind", n.Kind, "fields", len(n.Fields))
}

// addIdentityFields adds _class and, when the class has an identity
// accessor, id. It reports whether id was added.
func (b *builder) addIdentityFields(n *TypeNode, c *classinfo.Class) bool {
	u := b.u
	declared := c.Name
	n.addField(&FieldNode{
		Name:   ClassFieldName,
		target: fieldTarget{scalar: scalars.String.Name, nonNull: true},
		Resolve: func(_ context.Context, source any, _ map[string]any) (any, error) {
			if rc, ok := u.ClassOf(source); ok {
				return rc.Name, nil
			}
			return declared, nil
		},
	})
	acc, ok := u.IdentityAccessor(c)
	if !ok {
		return false
	}
	n.addField(&FieldNode{
		Name:   IDFieldName,
		target: fieldTarget{scalar: scalars.ID.Name},
		Resolve: func(_ context.Context, source any, _ map[string]any) (any, error) {
			return acc.Call(source)
		},
	})
	return true
}

// addPropertyFields adds props in order, skipping names a more derived class
// already claimed.
func (b *builder) addPropertyFields(n *TypeNode, props []classinfo.Property, hasIdentity bool) {
	for _, p := range props {
		name := NormalizeName(p.Name)
		if name == IDFieldName && (b.cfg.IDProperty == SuppressIDAlways || hasIdentity) {
			continue
		}
		if name == ClassFieldName || n.HasField(name) {
			continue
		}
		if strings.HasPrefix(name, "__") {
			b.log.Warn("property name reserved for introspection", "class", n.Class.Name, "property", p.Name)
			continue
		}
		n.addField(b.propertyField(name, n.Class.Name, p))
	}
}

func (b *builder) propertyField(name, owner string, p classinfo.Property) *FieldNode {
	f := &FieldNode{Name: name, Description: p.Description}
	t := p.Type
	if t.IsList() {
		f.target.list = true
		t = *t.Elem
		if t.IsList() {
			b.log.Warn("nested list degraded to String", "class", owner, "property", p.Name, "type", p.Type.String())
			f.target.scalar = scalars.String.Name
			t = classinfo.TypeRef{}
		}
	}
	if f.target.scalar == "" {
		b.resolveTarget(&f.target, t, owner, p.Name)
	}
	if f.target.list && f.target.refClass != "" {
		f.Args = b.cfg.ListArgs
	}
	f.Resolve = propertyResolver(p.Get, f.target, b.pager)
	return f
}

func (b *builder) resolveTarget(tg *fieldTarget, t classinfo.TypeRef, owner, prop string) {
	if s, ok := scalars.Lookup(t.Name); ok {
		tg.scalar = s.Name
		return
	}
	c, ok := b.u.Lookup(t.Name)
	if !ok {
		b.log.Debug("unknown property type degraded to String", "class", owner, "property", prop, "type", t.Name)
		tg.scalar = scalars.String.Name
		return
	}
	c = b.u.RealClass(c)
	if !b.includable(c) {
		b.log.Debug("excluded property type degraded to String", "class", owner, "property", prop, "type", c.Name)
		tg.scalar = scalars.String.Name
		return
	}
	tg.refClass = c.Name
	b.enqueue(c.Name)
}

func propertyResolver(get func(any) (any, error), tg fieldTarget, pager Pager) ResolveFunc {
	return func(ctx context.Context, source any, args map[string]any) (any, error) {
		if get == nil {
			return nil, nil
		}
		v, err := get(source)
		if err != nil || v == nil || !tg.list {
			return v, err
		}
		items, err := toSlice(v)
		if err != nil || items == nil {
			return nil, err
		}
		if tg.refClass != "" {
			return pager.Page(ctx, items, args)
		}
		return items, nil
	}
}

func toSlice(v any) ([]any, error) {
	if items, ok := v.([]any); ok {
		return items, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return nil, nil
		}
	case reflect.Array:
	default:
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

type passthroughPager struct{}

func (passthroughPager) Page(_ context.Context, items []any, _ map[string]any) ([]any, error) {
	return items, nil
}

// finalize builds the Query node and turns field targets into type
// references.
func (b *builder) finalize() (*TypeNode, error) {
	query := &TypeNode{Name: QueryTypeName, Kind: Object, fieldIndex: map[string]int{}}
	for _, r := range b.cfg.Roots {
		c, _ := b.u.Lookup(r.Class)
		target, ok := b.byClass[b.u.RealClass(c).Name]
		if !ok {
			return nil, fmt.Errorf("%w: root %s: class %s is excluded from the schema", errs.ErrInvalidSchema, r.Name, r.Class)
		}
		resolve := r.Resolve
		f := &FieldNode{
			Name:        r.Name,
			Description: r.Description,
			Type:        schema.ListOf(schema.Named(target.Name)),
			Args:        r.Args,
			Async:       true,
			Resolve: func(ctx context.Context, _ any, args map[string]any) (any, error) {
				if resolve == nil {
					return []any{}, nil
				}
				return resolve(ctx, args)
			},
		}
		if !query.addField(f) {
			return nil, fmt.Errorf("%w: duplicate root field %s", errs.ErrInvalidSchema, r.Name)
		}
	}
	if len(query.Fields) == 0 {
		return nil, fmt.Errorf("%w: no root fields", errs.ErrInvalidSchema)
	}

	for _, n := range b.nodes {
		for _, f := range n.Fields {
			t, err := b.typeRef(f.target)
			if err != nil {
				return nil, fmt.Errorf("%w: %s.%s: %v", errs.ErrInvalidSchema, n.Name, f.Name, err)
			}
			f.Type = t
		}
	}
	return query, nil
}

func (b *builder) typeRef(tg fieldTarget) (*schema.TypeRef, error) {
	named := tg.scalar
	if tg.refClass != "" {
		n, ok := b.byClass[tg.refClass]
		if !ok {
			return nil, fmt.Errorf("dangling reference to %s", tg.refClass)
		}
		named = n.Name
	}
	ref := schema.Named(named)
	if tg.list {
		return schema.ListOf(ref), nil
	}
	if tg.nonNull {
		return schema.NonNullOf(ref), nil
	}
	return ref, nil
}
