// Package schema holds the executable type model: the named types a query is
// run against and the wrapped references between them. Only query operations
// are modelled.
package schema

import "strings"

type Schema struct {
	QueryType   string
	Description string
	Types       map[string]*Type
}

// New returns a schema with the built-in scalars and the given query root
// name.
func New(queryType string) *Schema {
	s := &Schema{QueryType: queryType, Types: make(map[string]*Type)}
	for _, name := range builtinScalars {
		s.Add(&Type{Name: name, Kind: KindScalar})
	}
	return s
}

// Add registers types, replacing any previous type of the same name.
func (s *Schema) Add(types ...*Type) *Schema {
	if s.Types == nil {
		s.Types = make(map[string]*Type)
	}
	for _, t := range types {
		s.Types[t.Name] = t
	}
	return s
}

// Query returns the query root, or nil when it is not declared.
func (s *Schema) Query() *Type { return s.Types[s.QueryType] }

type Kind string

const (
	KindScalar      Kind = "SCALAR"
	KindObject      Kind = "OBJECT"
	KindInterface   Kind = "INTERFACE"
	KindUnion       Kind = "UNION"
	KindEnum        Kind = "ENUM"
	KindInputObject Kind = "INPUT_OBJECT"
)

// Leaf reports whether values of the kind serialize directly.
func (k Kind) Leaf() bool { return k == KindScalar || k == KindEnum }

// Abstract reports whether values of the kind need a runtime type.
func (k Kind) Abstract() bool { return k == KindInterface || k == KindUnion }

type Type struct {
	Name        string
	Kind        Kind
	Description string

	// object and interface types
	Fields     []*Field
	Interfaces []string

	// interface and union types
	PossibleTypes []string

	EnumValues  []*EnumValue
	InputFields []*InputValue
	OneOf       bool
}

// Field returns the field called name, or nil.
func (t *Type) Field(name string) *Field {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Implements reports whether t declares iface among its interfaces.
func (t *Type) Implements(iface string) bool {
	for _, n := range t.Interfaces {
		if n == iface {
			return true
		}
	}
	return false
}

// Includes reports whether a fragment on t applies to objects of type obj.
func (t *Type) Includes(obj *Type) bool {
	if t.Name == obj.Name || obj.Implements(t.Name) {
		return true
	}
	if !t.Kind.Abstract() {
		return false
	}
	for _, p := range t.PossibleTypes {
		if p == obj.Name {
			return true
		}
	}
	return false
}

type Field struct {
	Name        string
	Description string
	Type        *TypeRef
	Args        []*InputValue
	// Async fields are resolved in batches, one batch per response depth.
	Async      bool
	Deprecated *string
}

// Arg returns the argument called name, or nil.
func (f *Field) Arg(name string) *InputValue {
	for _, a := range f.Args {
		if a.Name == name {
			return a
		}
	}
	return nil
}

type InputValue struct {
	Name         string
	Description  string
	Type         *TypeRef
	DefaultValue any
	Deprecated   *string
}

// Arg is shorthand for an argument definition without a default.
func Arg(name, description string, typ *TypeRef) *InputValue {
	return &InputValue{Name: name, Description: description, Type: typ}
}

// WithDefault sets the value used when the argument is omitted.
func (v *InputValue) WithDefault(value any) *InputValue {
	v.DefaultValue = value
	return v
}

type EnumValue struct {
	Name        string
	Description string
	Deprecated  *string
}

type RefKind uint8

const (
	RefNamed RefKind = iota
	RefList
	RefNonNull
)

// TypeRef is a possibly wrapped reference to a named type.
type TypeRef struct {
	Kind   RefKind
	OfType *TypeRef
	Named  string
}

func Named(name string) *TypeRef      { return &TypeRef{Kind: RefNamed, Named: name} }
func ListOf(t *TypeRef) *TypeRef      { return &TypeRef{Kind: RefList, OfType: t} }
func NonNullOf(t *TypeRef) *TypeRef   { return &TypeRef{Kind: RefNonNull, OfType: t} }
func (t *TypeRef) NonNull() bool      { return t != nil && t.Kind == RefNonNull }
func (t *TypeRef) Nullable() *TypeRef { return stripNonNull(t) }

// IsList reports whether t is a list, wrapped in Non-Null or not.
func (t *TypeRef) IsList() bool {
	return t != nil && stripNonNull(t).Kind == RefList
}

// Elem removes one wrapper.
func (t *TypeRef) Elem() *TypeRef {
	if t.Kind == RefNamed {
		return t
	}
	return t.OfType
}

// Name returns the innermost named type.
func (t *TypeRef) Name() string {
	for t != nil && t.Kind != RefNamed {
		t = t.OfType
	}
	if t == nil {
		return ""
	}
	return t.Named
}

// String renders t in SDL notation.
func (t *TypeRef) String() string {
	var b strings.Builder
	t.write(&b)
	return b.String()
}

func (t *TypeRef) write(b *strings.Builder) {
	switch {
	case t == nil:
	case t.Kind == RefList:
		b.WriteByte('[')
		t.OfType.write(b)
		b.WriteByte(']')
	case t.Kind == RefNonNull:
		t.OfType.write(b)
		b.WriteByte('!')
	default:
		b.WriteString(t.Named)
	}
}

func stripNonNull(t *TypeRef) *TypeRef {
	if t.Kind == RefNonNull {
		return t.OfType
	}
	return t
}
