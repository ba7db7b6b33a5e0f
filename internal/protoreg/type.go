package protoreg

import (
	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/hanpama/classgraph/internal/schema"
)

type resolvedType struct {
	isRepeated bool
	isOptional bool
	fieldType  *protobuilder.FieldType
}

func (b *builder) resolveType(t *schema.TypeRef) resolvedType {
	switch t.Kind {
	case schema.RefList:
		elem := b.resolveType(t.OfType)
		return resolvedType{isRepeated: true, fieldType: elem.fieldType}
	case schema.RefNonNull:
		inner := b.resolveType(t.OfType)
		inner.isOptional = false
		return inner
	}
	if mb, ok := b.messages[t.Named]; ok {
		return resolvedType{fieldType: protobuilder.FieldTypeMessage(mb)}
	}
	return resolvedType{isOptional: true, fieldType: protobuilder.FieldTypeScalar(scalarKind(t.Named))}
}

// scalarKind maps schema scalars onto protobuf kinds. DateTime travels as
// its RFC 3339 string, the same form the GraphQL response carries.
func scalarKind(name string) protoreflect.Kind {
	switch name {
	case "Boolean":
		return protoreflect.BoolKind
	case "Int", "Byte", "Short":
		return protoreflect.Int32Kind
	case "Long":
		return protoreflect.Int64Kind
	case "Float":
		return protoreflect.DoubleKind
	default:
		return protoreflect.StringKind
	}
}
