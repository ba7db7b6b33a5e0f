package typegraph

import (
	"context"

	"github.com/hanpama/classgraph/internal/classinfo"
	"github.com/hanpama/classgraph/internal/schema"
)

// Kind is the schema kind of a TypeNode.
type Kind int

const (
	Object Kind = iota
	Interface
)

func (k Kind) String() string {
	if k == Interface {
		return "interface"
	}
	return "object"
}

// Field names every node carries.
const (
	ClassFieldName = "_class"
	IDFieldName    = "id"
)

// ResolveFunc reads a field value from its source instance.
type ResolveFunc func(ctx context.Context, source any, args map[string]any) (any, error)

// TypeNode is one named type of a compiled schema.
type TypeNode struct {
	Name        string
	Kind        Kind
	Description string
	// Class is the class the node was built from. A fallback shares the
	// class of the interface it implements.
	Class  *classinfo.Class
	Fields []*FieldNode
	// Implements lists interface node names in discovery order.
	Implements []string
	// PossibleTypes lists the object nodes implementing an interface node.
	PossibleTypes []string
	// Fallback is the identity-only implementor of an interface node.
	Fallback *TypeNode
	// FallbackFor is set on fallback nodes.
	FallbackFor *TypeNode

	fieldIndex map[string]int
}

func newTypeNode(name string, kind Kind, class *classinfo.Class) *TypeNode {
	return &TypeNode{Name: name, Kind: kind, Class: class, Description: class.Description, fieldIndex: map[string]int{}}
}

// Field returns the field named name.
func (n *TypeNode) Field(name string) (*FieldNode, bool) {
	i, ok := n.fieldIndex[name]
	if !ok {
		return nil, false
	}
	return n.Fields[i], true
}

// HasField reports whether a field named name was already claimed.
func (n *TypeNode) HasField(name string) bool {
	_, ok := n.fieldIndex[name]
	return ok
}

func (n *TypeNode) addField(f *FieldNode) bool {
	if n.HasField(f.Name) {
		return false
	}
	n.fieldIndex[f.Name] = len(n.Fields)
	n.Fields = append(n.Fields, f)
	return true
}

// ImplementsName reports whether the node declares iface.
func (n *TypeNode) ImplementsName(iface string) bool {
	for _, name := range n.Implements {
		if name == iface {
			return true
		}
	}
	return false
}

// FieldNode is one field of a TypeNode.
type FieldNode struct {
	Name        string
	Description string
	Type        *schema.TypeRef
	Args        []*schema.InputValue
	Async       bool
	Resolve     ResolveFunc

	// set while building, turned into Type once node names are known
	target fieldTarget
}

type fieldTarget struct {
	scalar   string
	refClass string
	list     bool
	nonNull  bool
}

// RootField is a field of the Query type returning a list of instances of
// Class.
type RootField struct {
	Name        string
	Class       string
	Description string
	Args        []*schema.InputValue
	Resolve     func(ctx context.Context, args map[string]any) (any, error)
}
