package typegraph

import (
	"fmt"

	"github.com/hanpama/classgraph/internal/classinfo"
	"github.com/hanpama/classgraph/internal/errs"
	"github.com/hanpama/classgraph/internal/scalars"
	"github.com/hanpama/classgraph/internal/schema"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// CompiledSchema is the immutable result of Build. It is safe for concurrent
// use.
type CompiledSchema struct {
	universe *classinfo.Universe
	nodes    []*TypeNode
	byName   map[string]*TypeNode
	byClass  map[string]*TypeNode
	query    *TypeNode
	schema   *schema.Schema
	sdl      string
	doc      *ast.Schema
	resolver *TypeResolver
}

func (b *builder) compile(query *TypeNode) (*CompiledSchema, error) {
	cs := &CompiledSchema{
		universe: b.u,
		nodes:    b.nodes,
		byName:   b.byName,
		byClass:  b.byClass,
		query:    query,
	}
	cs.byName[query.Name] = query
	cs.schema = cs.toSchema()
	cs.sdl = schema.Render(cs.schema)
	doc, err := gqlparser.LoadSchema(&ast.Source{Name: "classgraph.graphql", Input: cs.sdl})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidSchema, err)
	}
	cs.doc = doc
	cs.resolver = newTypeResolver(b.u, cs.byName, cs.byClass)

	var ifaces, fallbacks int
	for _, n := range cs.nodes {
		switch {
		case n.FallbackFor != nil:
			fallbacks++
		case n.Kind == Interface:
			ifaces++
		}
	}
	b.log.Info("schema compiled",
		"types", len(cs.nodes),
		"interfaces", ifaces,
		"fallbacks", fallbacks,
		"roots", len(query.Fields))
	return cs, nil
}

func (cs *CompiledSchema) toSchema() *schema.Schema {
	s := schema.New(QueryTypeName)
	for _, sc := range scalars.Custom() {
		s.Add(&schema.Type{Name: sc.Name, Kind: schema.KindScalar, Description: sc.Description})
	}
	s.Add(nodeType(cs.query))
	for _, n := range cs.nodes {
		s.Add(nodeType(n))
	}
	return s
}

func nodeType(n *TypeNode) *schema.Type {
	t := &schema.Type{
		Name:          n.Name,
		Kind:          schema.KindObject,
		Description:   n.Description,
		Interfaces:    n.Implements,
		PossibleTypes: n.PossibleTypes,
	}
	if n.Kind == Interface {
		t.Kind = schema.KindInterface
	}
	for _, f := range n.Fields {
		t.Fields = append(t.Fields, &schema.Field{
			Name:        f.Name,
			Description: f.Description,
			Type:        f.Type,
			Args:        f.Args,
			Async:       f.Async,
		})
	}
	return t
}

// Node returns the node named name. The Query node is included.
func (cs *CompiledSchema) Node(name string) (*TypeNode, bool) {
	n, ok := cs.byName[name]
	return n, ok
}

// NodeForClass returns the node built from the named class. Fallbacks are
// reached through their interface.
func (cs *CompiledSchema) NodeForClass(className string) (*TypeNode, bool) {
	n, ok := cs.byClass[className]
	return n, ok
}

// Nodes returns every class-backed node in discovery order, fallbacks last.
func (cs *CompiledSchema) Nodes() []*TypeNode { return append([]*TypeNode(nil), cs.nodes...) }

func (cs *CompiledSchema) Query() *TypeNode { return cs.query }

// Schema returns the executable schema.
func (cs *CompiledSchema) Schema() *schema.Schema { return cs.schema }

// SDL returns the rendered schema text.
func (cs *CompiledSchema) SDL() string { return cs.sdl }

// AST returns the rendered SDL as loaded by gqlparser, for query validation.
func (cs *CompiledSchema) AST() *ast.Schema { return cs.doc }

func (cs *CompiledSchema) Universe() *classinfo.Universe { return cs.universe }

// Field returns the field of the named type.
func (cs *CompiledSchema) Field(typeName, fieldName string) (*FieldNode, bool) {
	n, ok := cs.byName[typeName]
	if !ok {
		return nil, false
	}
	return n.Field(fieldName)
}

// ResolveType maps a runtime instance to the object node it is served as
// where the abstract type expected is declared.
func (cs *CompiledSchema) ResolveType(instance any, expected string) (*TypeNode, error) {
	return cs.resolver.Resolve(instance, expected)
}
