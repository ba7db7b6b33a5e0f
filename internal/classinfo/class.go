// Package classinfo models the open universe of introspectable classes that a
// schema is compiled from.
//
// A Class is a named node with an optional superclass, a list of implemented
// interfaces, and (when it carries exported property metadata) a list of
// typed properties. Classes are registered into a Universe, which answers the
// reflective questions the schema compiler needs: lookup by name, subtype
// enumeration, assignability, and the class of a live instance.
package classinfo

import (
	"regexp"
	"strings"
)

// Kind is the declared shape of a class.
type Kind int

const (
	Concrete Kind = iota
	Abstract
	Interface
)

func (k Kind) String() string {
	switch k {
	case Abstract:
		return "abstract"
	case Interface:
		return "interface"
	default:
		return "concrete"
	}
}

// ParseKind parses the manifest spelling of a Kind. Empty means Concrete.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "concrete", "class":
		return Concrete, true
	case "abstract":
		return Abstract, true
	case "interface":
		return Interface, true
	}
	return Concrete, false
}

// TypeRef is the host-side type of a property. Elem is set for arrays and
// collections; Name is set otherwise and holds either a primitive host type
// ("string", "int64", "time.Time") or a class name.
type TypeRef struct {
	Name  string
	Elem  *TypeRef
	Array bool
}

// Named returns a TypeRef for a single named type.
func Named(name string) TypeRef { return TypeRef{Name: name} }

// ListOf returns a collection TypeRef with the given element type.
func ListOf(elem TypeRef) TypeRef { return TypeRef{Elem: &elem} }

// ArrayOf returns an array TypeRef with the given element type.
func ArrayOf(elem TypeRef) TypeRef { return TypeRef{Elem: &elem, Array: true} }

// IsList reports whether t is an array or a collection.
func (t TypeRef) IsList() bool { return t.Elem != nil }

func (t TypeRef) String() string {
	if t.Elem == nil {
		return t.Name
	}
	if t.Array {
		return t.Elem.String() + "[]"
	}
	return "List<" + t.Elem.String() + ">"
}

// ParseTypeRef parses the manifest spelling of a property type:
// "T", "T[]", "[]T", "List<T>", "Collection<T>", "Set<T>" and "Iterable<T>".
func ParseTypeRef(s string) TypeRef {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasSuffix(s, "[]"):
		return ArrayOf(ParseTypeRef(strings.TrimSuffix(s, "[]")))
	case strings.HasPrefix(s, "[]"):
		return ArrayOf(ParseTypeRef(strings.TrimPrefix(s, "[]")))
	case strings.HasSuffix(s, ">"):
		if i := strings.IndexByte(s, '<'); i > 0 {
			switch s[:i] {
			case "List", "Collection", "Set", "Iterable":
				return ListOf(ParseTypeRef(s[i+1 : len(s)-1]))
			}
		}
	}
	return Named(s)
}

// Property is an exported, typed, readable attribute of a class.
type Property struct {
	Name        string
	Type        TypeRef
	Description string
	Get         func(instance any) (any, error)
}

// Accessor is a method-like reader on a class. Only public accessors without
// parameters are considered for identity.
type Accessor struct {
	Name   string
	Public bool
	Params int
	Call   func(instance any) (any, error)
}

// Class describes one class of the universe. Properties and Accessors list
// the class's own declarations; inherited members live on the ancestors.
type Class struct {
	Name        string
	Super       string
	Interfaces  []string
	Kind        Kind
	Exported    bool
	Internal    bool
	Synthetic   bool
	Description string
	Properties  []Property
	Accessors   []Accessor
}

// SimpleName returns the class name without its package or outer classes.
func (c *Class) SimpleName() string {
	name := c.Name
	if i := strings.LastIndexAny(name, ".$"); i >= 0 {
		return name[i+1:]
	}
	return name
}

var anonymousName = regexp.MustCompile(`\$[0-9]+$`)

// IsAnonymous reports whether the class is an anonymous class, named
// `Outer$<digits>`.
func (c *Class) IsAnonymous() bool { return anonymousName.MatchString(c.Name) }

// IsProxy reports whether the class is a generated subclass layer (mocks,
// runtime proxies, anonymous subclasses) rather than a declared class.
func (c *Class) IsProxy() bool {
	return c.Synthetic || c.IsAnonymous() || strings.Contains(c.Name, "$MockitoMock$") || strings.Contains(c.Name, "$$")
}

// Instance is implemented by values that know their own class name.
type Instance interface {
	ClassName() string
}
