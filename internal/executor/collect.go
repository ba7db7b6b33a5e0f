package executor

import (
	"github.com/vektah/gqlparser/v2/ast"

	schema "github.com/hanpama/classgraph/internal/schema"
)

// fieldGroup is every node selecting one response name of an object.
type fieldGroup struct {
	name  string
	nodes []*ast.Field
}

// collect groups the fields set selects on objects of type t, in document
// order, honouring @skip, @include and fragment type conditions.
func (ex *execution) collect(t *schema.Type, set ast.SelectionSet) []fieldGroup {
	var groups []fieldGroup
	index := make(map[string]int)
	seen := make(map[string]bool)

	var walk func(ast.SelectionSet)
	walk = func(set ast.SelectionSet) {
		for _, sel := range set {
			switch sel := sel.(type) {
			case *ast.Field:
				if !ex.included(sel.Directives) {
					continue
				}
				name := sel.Alias
				if name == "" {
					name = sel.Name
				}
				if i, ok := index[name]; ok {
					groups[i].nodes = append(groups[i].nodes, sel)
					continue
				}
				index[name] = len(groups)
				groups = append(groups, fieldGroup{name: name, nodes: []*ast.Field{sel}})
			case *ast.InlineFragment:
				if ex.included(sel.Directives) && ex.applies(sel.TypeCondition, t) {
					walk(sel.SelectionSet)
				}
			case *ast.FragmentSpread:
				if seen[sel.Name] || !ex.included(sel.Directives) {
					continue
				}
				seen[sel.Name] = true
				frag := ex.doc.Fragments.ForName(sel.Name)
				if frag != nil && ex.included(frag.Directives) && ex.applies(frag.TypeCondition, t) {
					walk(frag.SelectionSet)
				}
			}
		}
	}
	walk(set)
	return groups
}

func (ex *execution) applies(condition string, t *schema.Type) bool {
	if condition == "" {
		return true
	}
	cond := ex.schema.Types[condition]
	return cond != nil && cond.Includes(t)
}

func (ex *execution) included(dirs ast.DirectiveList) bool {
	if d := dirs.ForName("skip"); d != nil && ex.flag(d) {
		return false
	}
	if d := dirs.ForName("include"); d != nil && !ex.flag(d) {
		return false
	}
	return true
}

// flag reads the if argument of @skip or @include. A missing or unresolved
// value counts as false.
func (ex *execution) flag(d *ast.Directive) bool {
	arg := d.Arguments.ForName("if")
	if arg == nil {
		return false
	}
	b, _ := ex.literal(arg.Value).(bool)
	return b
}
