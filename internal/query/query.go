// Package query builds the root collection fields of the Query type and the
// pagination of list-of-reference fields.
package query

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/hanpama/classgraph/internal/classinfo"
	"github.com/hanpama/classgraph/internal/errs"
	"github.com/hanpama/classgraph/internal/schema"
	"github.com/hanpama/classgraph/internal/typegraph"
)

// DataSource supplies live instances. AllInstancesOf yields instances of
// class and its subclasses lazily; consumers may stop early.
type DataSource interface {
	AllInstancesOf(ctx context.Context, class string) iter.Seq2[any, error]
	FindByID(ctx context.Context, class, id string) (any, bool, error)
}

// FilterOrder decides whether visibility is applied before or after the
// offset and limit window.
type FilterOrder int

const (
	// SliceThenFilter cuts the window first, so a page may come back short.
	SliceThenFilter FilterOrder = iota
	// FilterThenSlice windows the visible instances only.
	FilterThenSlice
)

func (o FilterOrder) String() string {
	if o == FilterThenSlice {
		return "filter-then-slice"
	}
	return "slice-then-filter"
}

// ParseFilterOrder parses the config spelling of an order.
func ParseFilterOrder(s string) (FilterOrder, error) {
	switch strings.ToLower(s) {
	case "", "slice-then-filter":
		return SliceThenFilter, nil
	case "filter-then-slice":
		return FilterThenSlice, nil
	}
	return 0, fmt.Errorf("unknown filter order %q", s)
}

// Argument names of paged fields.
const (
	ArgOffset = "offset"
	ArgLimit  = "limit"
	ArgType   = "type"
	ArgID     = "id"
)

type Option func(*Builder)

func WithVisibility(v Visibility) Option { return func(b *Builder) { b.visibility = v } }

func WithFilterOrder(o FilterOrder) Option { return func(b *Builder) { b.order = o } }

func WithDefaultLimit(n int) Option { return func(b *Builder) { b.defaultLimit = n } }

// Builder creates root fields over a DataSource. It also serves as the
// typegraph.Pager of list-of-reference fields.
type Builder struct {
	u            *classinfo.Universe
	src          DataSource
	visibility   Visibility
	order        FilterOrder
	defaultLimit int
}

var _ typegraph.Pager = (*Builder)(nil)

func New(u *classinfo.Universe, src DataSource, opts ...Option) *Builder {
	b := &Builder{
		u:            u,
		src:          src,
		visibility:   ReadPermission,
		defaultLimit: typegraph.DefaultLimit,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.visibility == nil {
		b.visibility = AllowAll
	}
	return b
}

// ListArgs returns the arguments of list-of-reference fields.
func (b *Builder) ListArgs() []*schema.InputValue {
	return typegraph.ListArguments(b.defaultLimit)
}

// RootArgs returns offset, limit, type and id, in that order.
func (b *Builder) RootArgs() []*schema.InputValue {
	args := typegraph.ListArguments(b.defaultLimit)
	typeArg := schema.Arg(ArgType, "Restrict results to this subclass of the field's class.", schema.Named("String"))
	return []*schema.InputValue{args[0], args[1], typeArg, args[2]}
}

// Field returns a root field listing the visible instances of class.
func (b *Builder) Field(name, class string) typegraph.RootField {
	return typegraph.RootField{
		Name:        name,
		Class:       class,
		Description: fmt.Sprintf("Instances of %s.", class),
		Args:        b.RootArgs(),
		Resolve: func(ctx context.Context, args map[string]any) (any, error) {
			return b.resolveRoot(ctx, name, class, args)
		},
	}
}

func (b *Builder) resolveRoot(ctx context.Context, field, class string, args map[string]any) (any, error) {
	p := parseWindow(args, b.defaultLimit)
	effective := class
	if t := stringArg(args, ArgType); t != "" {
		c, err := b.override(field, class, t)
		if err != nil {
			return nil, err
		}
		effective = c.Name
	}

	if id := stringArg(args, ArgID); id != "" {
		inst, ok, err := b.src.FindByID(ctx, effective, id)
		if err != nil {
			return nil, fmt.Errorf("query %s: find %q: %w", field, id, err)
		}
		if !ok || !b.visibility.IsVisible(ctx, inst) {
			return []any{}, nil
		}
		return []any{inst}, nil
	}

	return b.collect(ctx, b.src.AllInstancesOf(ctx, effective), p)
}

func (b *Builder) override(field, root, name string) (*classinfo.Class, error) {
	op := "query " + field
	c, ok := b.u.Lookup(name)
	if !ok {
		return nil, errs.Invalidf(errs.ErrUnknownType, op, "type %q", name)
	}
	if !b.u.IsAssignable(c.Name, root) {
		return nil, errs.Invalidf(errs.ErrUnknownType, op, "type %q is not a subclass of %s", name, root)
	}
	return c, nil
}

// Page narrows the elements of a list-of-reference field. An id argument
// selects at most one element and ignores the window.
func (b *Builder) Page(ctx context.Context, items []any, args map[string]any) ([]any, error) {
	if id := stringArg(args, ArgID); id != "" {
		for _, it := range items {
			if got, ok := b.u.IdentityOf(it); ok && got == id && b.visibility.IsVisible(ctx, it) {
				return []any{it}, nil
			}
		}
		return []any{}, nil
	}
	return b.collect(ctx, fromSlice(items), parseWindow(args, b.defaultLimit))
}

func (b *Builder) collect(ctx context.Context, seq iter.Seq2[any, error], w window) ([]any, error) {
	visible := func(v any) bool { return b.visibility.IsVisible(ctx, v) }
	if b.order == FilterThenSlice {
		seq = w.apply(filter(seq, visible))
	} else {
		seq = filter(w.apply(seq), visible)
	}
	out := []any{}
	for v, err := range seq {
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func stringArg(args map[string]any, name string) string {
	switch v := args[name].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
