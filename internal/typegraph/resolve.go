package typegraph

import (
	"fmt"
	"sync"

	"github.com/hanpama/classgraph/internal/classinfo"
	"github.com/hanpama/classgraph/internal/errs"
)

// TypeResolver maps runtime instances to object nodes. Results are memoized
// per (class, expected type).
type TypeResolver struct {
	u       *classinfo.Universe
	byName  map[string]*TypeNode
	byClass map[string]*TypeNode
	cache   sync.Map // resolveKey -> *TypeNode
}

type resolveKey struct {
	class    string
	expected string
}

func newTypeResolver(u *classinfo.Universe, byName, byClass map[string]*TypeNode) *TypeResolver {
	return &TypeResolver{u: u, byName: byName, byClass: byClass}
}

// Resolve finds the object node for instance where expected is declared:
//
//  1. the node of the instance's declared class (its fallback if it is an interface)
//  2. the nearest superclass with a node, or with a fallback
//  3. the fallback of the first implemented interface, breadth first, that is
//     expected or implements it
//
// Candidates from steps 1 and 2 must implement expected.
func (r *TypeResolver) Resolve(instance any, expected string) (*TypeNode, error) {
	c, ok := r.u.ClassOf(instance)
	if !ok {
		return nil, errs.WrapResolution(fmt.Errorf("%w: %T has no known class", errs.ErrUnresolvedType, instance), "resolve type")
	}
	key := resolveKey{class: c.Name, expected: expected}
	if n, ok := r.cache.Load(key); ok {
		return n.(*TypeNode), nil
	}
	n := r.resolve(c, expected)
	if n == nil {
		return nil, errs.WrapResolution(fmt.Errorf("%w: %s as %s", errs.ErrUnresolvedType, c.Name, expected), "resolve type")
	}
	r.cache.Store(key, n)
	return n, nil
}

func (r *TypeResolver) resolve(c *classinfo.Class, expected string) *TypeNode {
	if n := r.concrete(r.byClass[c.Name]); n != nil && satisfies(n, expected) {
		return n
	}
	for _, super := range r.u.Supers(c) {
		n := r.concrete(r.byClass[super.Name])
		if n != nil && satisfies(n, expected) {
			return n
		}
	}
	for _, iface := range r.u.Interfaces(c) {
		n, ok := r.byClass[iface.Name]
		if !ok || n.Fallback == nil {
			continue
		}
		if n.Name == expected || n.ImplementsName(expected) {
			return n.Fallback
		}
	}
	return nil
}

// concrete returns n itself for objects and the fallback for interfaces.
func (r *TypeResolver) concrete(n *TypeNode) *TypeNode {
	if n == nil {
		return nil
	}
	if n.Kind == Interface {
		return n.Fallback
	}
	return n
}

func satisfies(n *TypeNode, expected string) bool {
	return n.Name == expected || n.ImplementsName(expected)
}
