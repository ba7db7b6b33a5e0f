// Package introspection answers the GraphQL introspection fields on top of
// another runtime.
package introspection

import (
	"context"
	"fmt"
	"strings"

	gqlintro "github.com/99designs/gqlgen/graphql/introspection"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"

	executor "github.com/hanpama/classgraph/internal/executor"
	schema "github.com/hanpama/classgraph/internal/schema"
)

// Wrapped pairs a runtime answering introspection fields with the schema
// extended by the introspection types.
type Wrapped struct {
	Runtime executor.Runtime
	Schema  *schema.Schema
}

// Wrap returns a runtime that handles introspection and delegates every
// other field to base. sch is not modified.
func Wrap(base executor.Runtime, sch *schema.Schema) (*Wrapped, error) {
	doc, err := gqlparser.LoadSchema(&ast.Source{Name: "introspection.graphql", Input: schema.Render(sch)})
	if err != nil {
		return nil, fmt.Errorf("introspection: %w", err)
	}
	rt := &runtime{
		base:      base,
		queryType: sch.QueryType,
		doc:       doc,
		root:      gqlintro.WrapSchema(doc),
	}
	return &Wrapped{Runtime: rt, Schema: extend(sch, doc)}, nil
}

type runtime struct {
	base      executor.Runtime
	queryType string
	doc       *ast.Schema
	root      *gqlintro.Schema
}

func (r *runtime) ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	switch src := source.(type) {
	case *gqlintro.Schema:
		return r.schemaField(src, field), nil
	case *gqlintro.Type:
		return r.typeField(src, field, args), nil
	case *gqlintro.Field:
		return fieldField(src, field, args), nil
	case *gqlintro.InputValue:
		return inputValueField(src, field), nil
	case *gqlintro.EnumValue:
		return enumValueField(src, field), nil
	case *gqlintro.Directive:
		return directiveField(src, field), nil
	}
	if objectType == r.queryType {
		switch field {
		case "__schema":
			return r.root, nil
		case "__type":
			name, _ := args["name"].(string)
			def := r.doc.Types[name]
			if def == nil {
				return nil, nil
			}
			return gqlintro.WrapTypeFromDef(r.doc, def), nil
		}
	}
	return r.base.ResolveSync(ctx, objectType, field, source, args)
}

func (r *runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	return r.base.BatchResolveAsync(ctx, tasks)
}

func (r *runtime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	return r.base.ResolveType(ctx, abstractType, value)
}

// SerializeLeafValue answers the introspection enums itself; their values
// are already the enum names.
func (r *runtime) SerializeLeafValue(ctx context.Context, typ string, value any) (any, error) {
	if strings.HasPrefix(typ, "__") {
		if value == nil {
			return nil, nil
		}
		return fmt.Sprint(value), nil
	}
	return r.base.SerializeLeafValue(ctx, typ, value)
}

func (r *runtime) schemaField(s *gqlintro.Schema, field string) any {
	switch field {
	case "description":
		if r.doc.Description == "" {
			return nil
		}
		return r.doc.Description
	case "types":
		return pointers(s.Types())
	case "queryType":
		return s.QueryType()
	case "mutationType":
		return s.MutationType()
	case "subscriptionType":
		return s.SubscriptionType()
	case "directives":
		return pointers(s.Directives())
	}
	return nil
}

func (r *runtime) typeField(t *gqlintro.Type, field string, args map[string]any) any {
	switch field {
	case "kind":
		return t.Kind()
	case "name":
		return deref(t.Name())
	case "description":
		return deref(t.Description())
	case "specifiedByURL":
		return deref(t.SpecifiedByURL())
	case "fields":
		return pointers(t.Fields(boolArg(args, "includeDeprecated")))
	case "interfaces":
		return pointers(t.Interfaces())
	case "possibleTypes":
		return pointers(t.PossibleTypes())
	case "enumValues":
		return pointers(t.EnumValues(boolArg(args, "includeDeprecated")))
	case "inputFields":
		return pointers(t.InputFields())
	case "ofType":
		return t.OfType()
	case "isOneOf":
		if name := t.Name(); name != nil {
			if def := r.doc.Types[*name]; def != nil && def.Kind == ast.InputObject {
				return def.Directives.ForName("oneOf") != nil
			}
		}
		return nil
	}
	return nil
}

func fieldField(f *gqlintro.Field, field string, args map[string]any) any {
	switch field {
	case "name":
		return f.Name
	case "description":
		return deref(f.Description())
	case "args":
		return pointers(f.Args)
	case "type":
		return f.Type
	case "isDeprecated":
		return f.IsDeprecated()
	case "deprecationReason":
		return deref(f.DeprecationReason())
	}
	return nil
}

func inputValueField(v *gqlintro.InputValue, field string) any {
	switch field {
	case "name":
		return v.Name
	case "description":
		return deref(v.Description())
	case "type":
		return v.Type
	case "defaultValue":
		return deref(v.DefaultValue)
	case "isDeprecated":
		return false
	}
	return nil
}

func enumValueField(v *gqlintro.EnumValue, field string) any {
	switch field {
	case "name":
		return v.Name
	case "description":
		return deref(v.Description())
	case "isDeprecated":
		return v.IsDeprecated()
	case "deprecationReason":
		return deref(v.DeprecationReason())
	}
	return nil
}

func directiveField(d *gqlintro.Directive, field string) any {
	switch field {
	case "name":
		return d.Name
	case "description":
		return deref(d.Description())
	case "locations":
		return d.Locations
	case "args":
		return pointers(d.Args)
	case "isRepeatable":
		return d.IsRepeatable
	}
	return nil
}

func pointers[T any](in []T) []*T {
	out := make([]*T, len(in))
	for i := range in {
		out[i] = &in[i]
	}
	return out
}

// deref unwraps the optional strings of the introspection wrappers so that
// leaf serializers only ever see plain strings.
func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func boolArg(args map[string]any, name string) bool {
	b, _ := args[name].(bool)
	return b
}
