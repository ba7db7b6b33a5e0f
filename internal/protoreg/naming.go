package protoreg

import (
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// nameMessage keeps schema type names, which are already identifiers, but
// protobuf names must start with a letter.
func nameMessage(typeName string) protoreflect.Name {
	if typeName == "" || !isLetter(typeName[0]) {
		return protoreflect.Name("T" + typeName)
	}
	return protoreflect.Name(typeName)
}

func nameField(graphQLName string) protoreflect.Name {
	name := strcase.ToSnake(strings.TrimLeft(graphQLName, "_"))
	if name == "" || !isLetter(name[0]) {
		name = "f_" + name
	}
	return protoreflect.Name(name)
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// nameSet hands out unique field names within one message.
type nameSet map[protoreflect.Name]bool

func newNameSet() nameSet { return nameSet{} }

func (s nameSet) claim(name protoreflect.Name) protoreflect.Name {
	out := name
	for i := 2; s[out]; i++ {
		out = protoreflect.Name(fmt.Sprintf("%s_%d", name, i))
	}
	s[out] = true
	return out
}
