package schema

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Render prints s as SDL: the schema block, then every non built-in type in
// name order.
func Render(s *Schema) string {
	if s == nil {
		return ""
	}
	w := &sdlWriter{}
	if s.QueryType != "" {
		w.printf("schema {\n  query: %s\n}\n\n", s.QueryType)
	}
	for _, name := range slices.Sorted(maps.Keys(s.Types)) {
		if !IsBuiltinType(name) {
			w.typ(s.Types[name])
		}
	}
	return strings.TrimRight(w.String(), "\n") + "\n"
}

type sdlWriter struct{ strings.Builder }

func (w *sdlWriter) printf(format string, args ...any) { fmt.Fprintf(w, format, args...) }

func (w *sdlWriter) description(text string) {
	if text != "" {
		w.printf("\"\"\"\n%s\n\"\"\"\n", strings.ReplaceAll(text, `"""`, `\"""`))
	}
}

func (w *sdlWriter) deprecated(reason *string) {
	switch {
	case reason == nil:
	case *reason == "":
		w.WriteString(" @deprecated")
	default:
		w.printf(" @deprecated(reason: %s)", strconv.Quote(*reason))
	}
}

func (w *sdlWriter) typ(t *Type) {
	w.description(t.Description)
	switch t.Kind {
	case KindScalar:
		w.printf("scalar %s\n\n", t.Name)
	case KindUnion:
		w.printf("union %s = %s\n\n", t.Name, strings.Join(t.PossibleTypes, " | "))
	case KindEnum:
		w.printf("enum %s {\n", t.Name)
		for _, v := range t.EnumValues {
			w.description(v.Description)
			w.printf("  %s", v.Name)
			w.deprecated(v.Deprecated)
			w.WriteString("\n")
		}
		w.WriteString("}\n\n")
	case KindInputObject:
		w.printf("input %s", t.Name)
		if t.OneOf {
			w.WriteString(" @oneOf")
		}
		w.WriteString(" {\n")
		for _, f := range t.InputFields {
			w.description(f.Description)
			w.WriteString("  ")
			w.inputValue(f)
			w.deprecated(f.Deprecated)
			w.WriteString("\n")
		}
		w.WriteString("}\n\n")
	case KindObject, KindInterface:
		keyword := "type"
		if t.Kind == KindInterface {
			keyword = "interface"
		}
		w.printf("%s %s", keyword, t.Name)
		if len(t.Interfaces) > 0 {
			w.printf(" implements %s", strings.Join(t.Interfaces, " & "))
		}
		w.WriteString(" {\n")
		for _, f := range t.Fields {
			w.field(f)
		}
		w.WriteString("}\n\n")
	}
}

func (w *sdlWriter) field(f *Field) {
	w.description(f.Description)
	w.printf("  %s", f.Name)
	if len(f.Args) > 0 {
		w.WriteString("(")
		for i, a := range f.Args {
			if i > 0 {
				w.WriteString(", ")
			}
			w.inputValue(a)
		}
		w.WriteString(")")
	}
	w.printf(": %s", f.Type)
	w.deprecated(f.Deprecated)
	w.WriteString("\n")
}

func (w *sdlWriter) inputValue(v *InputValue) {
	w.printf("%s: %s", v.Name, v.Type)
	if v.DefaultValue != nil {
		w.printf(" = %s", literal(v.DefaultValue))
	}
}

// literal prints a default value as a GraphQL literal. Strings that are not
// Go strings, such as enum names, print bare.
func literal(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case []any:
		items := make([]string, len(v))
		for i, item := range v {
			items[i] = literal(item)
		}
		return "[" + strings.Join(items, ", ") + "]"
	case map[string]any:
		fields := make([]string, 0, len(v))
		for _, k := range slices.Sorted(maps.Keys(v)) {
			fields = append(fields, k+": "+literal(v[k]))
		}
		return "{" + strings.Join(fields, ", ") + "}"
	default:
		return fmt.Sprint(v)
	}
}
