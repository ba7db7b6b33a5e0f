package typegraph

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/hanpama/classgraph/internal/scalars"
)

// QueryTypeName is the name of the root query type.
const QueryTypeName = "Query"

var (
	anonymousSuffix = regexp.MustCompile(`\$[0-9]+$`)
	invalidNameChar = regexp.MustCompile(`[^_0-9A-Za-z]`)
)

// NormalizeName turns a fully-qualified class name into a schema name: a
// trailing anonymous `$<digits>` suffix is dropped and every character
// outside [_0-9A-Za-z] becomes an underscore.
func NormalizeName(className string) string {
	name := anonymousSuffix.ReplaceAllString(className, "")
	name = invalidNameChar.ReplaceAllString(name, "_")
	if name == "" {
		return "_"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return name
}

// nameAllocator hands out collision-free schema names in allocation order.
type nameAllocator struct {
	taken map[string]bool
}

func newNameAllocator() *nameAllocator {
	a := &nameAllocator{taken: map[string]bool{QueryTypeName: true}}
	for _, s := range scalars.All() {
		a.taken[s.Name] = true
	}
	return a
}

// allocate reserves base, or base_2, base_3, ... if base is already taken.
// Names starting with "__" belong to introspection and lose their extra
// leading underscores.
func (a *nameAllocator) allocate(base string) string {
	for strings.HasPrefix(base, "__") {
		base = base[1:]
	}
	name := base
	for i := 2; a.taken[name]; i++ {
		name = base + "_" + strconv.Itoa(i)
	}
	a.taken[name] = true
	return name
}
