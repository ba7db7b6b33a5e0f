package schema

import "strings"

var builtinScalars = []string{"String", "Int", "Float", "Boolean", "ID"}

// IsBuiltinType reports whether name is a built-in scalar or an
// introspection type. Neither is rendered.
func IsBuiltinType(name string) bool {
	if strings.HasPrefix(name, "__") {
		return true
	}
	for _, n := range builtinScalars {
		if n == name {
			return true
		}
	}
	return false
}
