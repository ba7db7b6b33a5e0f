package introspection

import (
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	schema "github.com/hanpama/classgraph/internal/schema"
)

// extend returns a copy of sch carrying the introspection types declared by
// doc's prelude and the __schema and __type fields on the query type.
func extend(sch *schema.Schema, doc *ast.Schema) *schema.Schema {
	out := &schema.Schema{
		QueryType:   sch.QueryType,
		Description: sch.Description,
		Types:       make(map[string]*schema.Type, len(sch.Types)+8),
	}
	for name, t := range sch.Types {
		out.Types[name] = t
	}

	names := make([]string, 0, 8)
	for name := range doc.Types {
		if strings.HasPrefix(name, "__") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		out.Types[name] = schema.TypeFromAST(doc, doc.Types[name])
	}

	if q := sch.Query(); q != nil {
		cp := *q
		cp.Fields = append(append([]*schema.Field(nil), q.Fields...), metaFields()...)
		out.Types[q.Name] = &cp
	}
	return out
}

func metaFields() []*schema.Field {
	return []*schema.Field{
		{Name: "__schema", Type: schema.NonNullOf(schema.Named("__Schema"))},
		{
			Name: "__type",
			Type: schema.Named("__Type"),
			Args: []*schema.InputValue{schema.Arg("name", "", schema.NonNullOf(schema.Named("String")))},
		},
	}
}
