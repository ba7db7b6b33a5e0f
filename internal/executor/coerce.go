package executor

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/hanpama/classgraph/internal/errs"
	schema "github.com/hanpama/classgraph/internal/schema"
)

// coerceVariables applies the operation's variable definitions to the
// request variables. Names are accepted with or without the leading '$'.
func coerceVariables(op *ast.OperationDefinition, input map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(op.VariableDefinitions))
	for _, def := range op.VariableDefinitions {
		name := def.Variable
		v, ok := lookupVariable(input, name)
		if !ok {
			switch {
			case def.DefaultValue != nil:
				v = constant(def.DefaultValue)
			case def.Type.NonNull:
				return nil, fmt.Errorf("variable $%s of required type %s was not provided", name, def.Type)
			default:
				continue
			}
		}
		cv, err := coerce(v, refFromAST(def.Type))
		if err != nil {
			return nil, fmt.Errorf("variable $%s of type %s: %v", name, def.Type, err)
		}
		out[name] = cv
	}
	return out, nil
}

func lookupVariable(vars map[string]any, name string) (any, bool) {
	name = strings.TrimPrefix(name, "$")
	if v, ok := vars[name]; ok {
		return v, true
	}
	v, ok := vars["$"+name]
	return v, ok
}

// arguments coerces the arguments of node against def, filling defaults.
func (ex *execution) arguments(def *schema.Field, node *ast.Field) (map[string]any, error) {
	out := make(map[string]any, len(def.Args))
	for _, a := range node.Arguments {
		argDef := def.Arg(a.Name)
		if argDef == nil {
			continue
		}
		if a.Value != nil && a.Value.Kind == ast.Variable {
			if _, ok := lookupVariable(ex.vars, a.Value.Raw); !ok {
				continue
			}
		}
		v, err := coerce(ex.literal(a.Value), argDef.Type)
		if err != nil {
			return nil, errs.WrapInvalid(fmt.Errorf("argument %q: %v", a.Name, err), "")
		}
		out[a.Name] = v
	}
	for _, argDef := range def.Args {
		if _, ok := out[argDef.Name]; ok {
			continue
		}
		switch {
		case argDef.DefaultValue != nil:
			out[argDef.Name] = argDef.DefaultValue
		case argDef.Type.NonNull():
			return nil, errs.WrapInvalid(fmt.Errorf("argument %q of type %s is required", argDef.Name, argDef.Type), "")
		}
	}
	return out, nil
}

// literal evaluates v, substituting coerced variables.
func (ex *execution) literal(v *ast.Value) any {
	if v != nil && v.Kind == ast.Variable {
		val, _ := lookupVariable(ex.vars, v.Raw)
		return val
	}
	return constant(v)
}

// constant evaluates a literal that holds no variables.
func constant(v *ast.Value) any {
	if v == nil {
		return nil
	}
	switch v.Kind {
	case ast.IntValue:
		n, _ := strconv.Atoi(v.Raw)
		return n
	case ast.FloatValue:
		f, _ := strconv.ParseFloat(v.Raw, 64)
		return f
	case ast.BooleanValue:
		return v.Raw == "true"
	case ast.StringValue, ast.BlockValue, ast.EnumValue:
		return v.Raw
	case ast.ListValue:
		out := make([]any, len(v.Children))
		for i, c := range v.Children {
			out[i] = constant(c.Value)
		}
		return out
	case ast.ObjectValue:
		out := make(map[string]any, len(v.Children))
		for _, c := range v.Children {
			out[c.Name] = constant(c.Value)
		}
		return out
	}
	return nil
}

// coerce converts an input value to typ. Single values are accepted for
// list types. Scalars other than the built-ins pass through unchanged.
func coerce(v any, typ *schema.TypeRef) (any, error) {
	if v == nil {
		if typ.NonNull() {
			return nil, fmt.Errorf("null given for %s", typ)
		}
		return nil, nil
	}
	typ = typ.Nullable()
	if typ.Kind == schema.RefList {
		items, ok := v.([]any)
		if !ok {
			items = []any{v}
		}
		out := make([]any, len(items))
		for i, item := range items {
			c, err := coerce(item, typ.OfType)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	}
	if c, ok := builtinInputs[typ.Named]; ok {
		return c(v)
	}
	return v, nil
}

var builtinInputs = map[string]func(any) (any, error){
	"Int":     coerceInt,
	"Float":   coerceFloat,
	"Boolean": coerceBoolean,
	"String": func(v any) (any, error) {
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil
	},
	"ID": func(v any) (any, error) {
		switch v := v.(type) {
		case string:
			return v, nil
		case float64:
			if v == math.Trunc(v) {
				return strconv.FormatInt(int64(v), 10), nil
			}
		}
		return fmt.Sprint(v), nil
	},
}

func coerceInt(v any) (any, error) {
	switch v := v.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v == math.Trunc(v) && math.Abs(v) <= math.MaxInt32 {
			return int(v), nil
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%v (%T) is not an Int", v, v)
}

func coerceFloat(v any) (any, error) {
	switch v := v.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%v (%T) is not a Float", v, v)
}

func coerceBoolean(v any) (any, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return nil, fmt.Errorf("%v (%T) is not a Boolean", v, v)
}

func refFromAST(t *ast.Type) *schema.TypeRef {
	ref := schema.Named(t.NamedType)
	if t.Elem != nil {
		ref = schema.ListOf(refFromAST(t.Elem))
	}
	if t.NonNull {
		ref = schema.NonNullOf(ref)
	}
	return ref
}
