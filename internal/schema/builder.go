package schema

import (
	"maps"
	"slices"
	"strings"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

const asyncDirectiveSDL = "directive @async on FIELD_DEFINITION\n"

// BuildFromSDL loads sdl with gqlparser and converts the result. Fields
// marked @async take the batched resolution path; the directive is declared
// when sdl does not declare it.
func BuildFromSDL(sdl string) (*Schema, error) {
	if !strings.Contains(sdl, "directive @async") {
		sdl = asyncDirectiveSDL + sdl
	}
	doc, err := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: sdl})
	if err != nil {
		return nil, err
	}
	return FromAST(doc), nil
}

// FromAST converts a loaded gqlparser schema. Prelude definitions are
// skipped in favour of New's built-ins.
func FromAST(doc *ast.Schema) *Schema {
	query := ""
	if doc.Query != nil {
		query = doc.Query.Name
	}
	s := New(query)
	s.Description = doc.Description
	for _, name := range slices.Sorted(maps.Keys(doc.Types)) {
		if def := doc.Types[name]; !def.BuiltIn {
			s.Add(TypeFromAST(doc, def))
		}
	}
	return s
}

// TypeFromAST converts one definition of doc. Fields whose names start with
// a double underscore belong to introspection and are dropped.
func TypeFromAST(doc *ast.Schema, def *ast.Definition) *Type {
	t := &Type{Name: def.Name, Description: def.Description}
	switch def.Kind {
	case ast.Object:
		t.Kind = KindObject
	case ast.Interface:
		t.Kind = KindInterface
		for _, impl := range doc.PossibleTypes[def.Name] {
			t.PossibleTypes = append(t.PossibleTypes, impl.Name)
		}
	case ast.Union:
		t.Kind = KindUnion
		t.PossibleTypes = append(t.PossibleTypes, def.Types...)
		return t
	case ast.Enum:
		t.Kind = KindEnum
		for _, v := range def.EnumValues {
			t.EnumValues = append(t.EnumValues, &EnumValue{
				Name:        v.Name,
				Description: v.Description,
				Deprecated:  deprecation(v.Directives),
			})
		}
		return t
	case ast.InputObject:
		t.Kind = KindInputObject
		t.OneOf = def.Directives.ForName("oneOf") != nil
		for _, f := range def.Fields {
			t.InputFields = append(t.InputFields, &InputValue{
				Name:         f.Name,
				Description:  f.Description,
				Type:         refFromAST(f.Type),
				DefaultValue: valueFromAST(f.DefaultValue),
				Deprecated:   deprecation(f.Directives),
			})
		}
		return t
	default:
		t.Kind = KindScalar
		return t
	}
	t.Interfaces = append(t.Interfaces, def.Interfaces...)
	for _, f := range def.Fields {
		if !strings.HasPrefix(f.Name, "__") {
			t.Fields = append(t.Fields, FieldFromAST(f))
		}
	}
	return t
}

// FieldFromAST converts a field definition.
func FieldFromAST(f *ast.FieldDefinition) *Field {
	field := &Field{
		Name:        f.Name,
		Description: f.Description,
		Type:        refFromAST(f.Type),
		Async:       f.Directives.ForName("async") != nil,
		Deprecated:  deprecation(f.Directives),
	}
	for _, a := range f.Arguments {
		field.Args = append(field.Args, &InputValue{
			Name:         a.Name,
			Description:  a.Description,
			Type:         refFromAST(a.Type),
			DefaultValue: valueFromAST(a.DefaultValue),
			Deprecated:   deprecation(a.Directives),
		})
	}
	return field
}

// deprecation returns the reason of a @deprecated directive, or nil when
// there is none. A bare @deprecated yields an empty reason.
func deprecation(dirs ast.DirectiveList) *string {
	d := dirs.ForName("deprecated")
	if d == nil {
		return nil
	}
	reason := ""
	if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
		reason = arg.Value.Raw
	}
	return &reason
}

func refFromAST(t *ast.Type) *TypeRef {
	if t == nil {
		return nil
	}
	ref := Named(t.NamedType)
	if t.Elem != nil {
		ref = ListOf(refFromAST(t.Elem))
	}
	if t.NonNull {
		ref = NonNullOf(ref)
	}
	return ref
}

func valueFromAST(v *ast.Value) any {
	if v == nil {
		return nil
	}
	out, err := v.Value(nil)
	if err != nil {
		return nil
	}
	if n, ok := out.(int64); ok {
		return int(n)
	}
	return out
}
