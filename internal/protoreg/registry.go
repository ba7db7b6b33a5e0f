// Package protoreg derives protobuf messages from a compiled schema so that
// clients can exchange instances over protobuf instead of JSON.
package protoreg

import (
	"fmt"
	"strings"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/hanpama/classgraph/internal/errs"
	"github.com/hanpama/classgraph/internal/typegraph"
)

const DefaultPackage = "classgraph"

// Registry maps schema types and fields onto the generated descriptors.
type Registry struct {
	file     protoreflect.FileDescriptor
	messages map[string]protoreflect.MessageDescriptor
	fields   map[[2]string]protoreflect.FieldDescriptor
}

// File returns the generated file descriptor.
func (r *Registry) File() protoreflect.FileDescriptor { return r.file }

// Message returns the message generated for a schema type.
func (r *Registry) Message(typeName string) protoreflect.MessageDescriptor {
	return r.messages[typeName]
}

// SourceField returns the message field carrying a schema field.
func (r *Registry) SourceField(typeName, field string) protoreflect.FieldDescriptor {
	return r.fields[[2]string{typeName, field}]
}

type builder struct {
	cs       *typegraph.CompiledSchema
	messages map[string]*protobuilder.MessageBuilder
	// schema field of each generated message field, keyed by message and
	// field name
	fieldOf map[[2]protoreflect.Name][2]string
}

// Build generates one message per object and interface type of cs in the
// given package. Interface messages carry a oneof over their possible types.
func Build(cs *typegraph.CompiledSchema, pkg string) (*Registry, error) {
	if pkg == "" {
		pkg = DefaultPackage
	}
	b := &builder{
		cs:       cs,
		messages: make(map[string]*protobuilder.MessageBuilder),
		fieldOf:  make(map[[2]protoreflect.Name][2]string),
	}

	fb := protobuilder.NewFile(strings.ReplaceAll(pkg, ".", "/") + ".proto")
	fb.SetPackageName(protoreflect.FullName(pkg))
	fb.SetSyntax(protoreflect.Proto3)

	nodes := cs.Nodes()
	for _, n := range nodes {
		mb := protobuilder.NewMessage(nameMessage(n.Name))
		mb.SetComments(comment(n.Description))
		b.messages[n.Name] = mb
		fb.AddMessage(mb)
	}
	for _, n := range nodes {
		b.addFields(n)
	}

	fd, err := fb.Build()
	if err != nil {
		return nil, fmt.Errorf("%w: protobuf export: %v", errs.ErrInvalidSchema, err)
	}

	reg := &Registry{
		file:     fd,
		messages: make(map[string]protoreflect.MessageDescriptor, len(nodes)),
		fields:   make(map[[2]string]protoreflect.FieldDescriptor),
	}
	for _, n := range nodes {
		md := fd.Messages().ByName(nameMessage(n.Name))
		if md == nil {
			continue
		}
		reg.messages[n.Name] = md
		for i := 0; i < md.Fields().Len(); i++ {
			f := md.Fields().Get(i)
			if src, ok := b.fieldOf[[2]protoreflect.Name{md.Name(), f.Name()}]; ok {
				reg.fields[src] = f
			}
		}
	}
	return reg, nil
}

func (b *builder) addFields(n *typegraph.TypeNode) {
	mb := b.messages[n.Name]
	names := newNameSet()
	var fields []*protobuilder.FieldBuilder

	for _, f := range n.Fields {
		rt := b.resolveType(f.Type)
		fb := protobuilder.NewField(names.claim(nameField(f.Name)), rt.fieldType)
		fb.SetComments(comment(f.Description))
		if rt.isOptional {
			fb.SetOptional()
		}
		if rt.isRepeated {
			fb.SetRepeated()
		}
		mb.AddField(fb)
		fields = append(fields, fb)
		b.fieldOf[[2]protoreflect.Name{mb.Name(), fb.Name()}] = [2]string{n.Name, f.Name}
	}

	if n.Kind == typegraph.Interface && len(n.PossibleTypes) > 0 {
		oneof := protobuilder.NewOneof(names.claim("value"))
		mb.AddOneOf(oneof)
		for _, typ := range n.PossibleTypes {
			impl, ok := b.messages[typ]
			if !ok {
				continue
			}
			fb := protobuilder.NewField(names.claim(nameField(typ)), protobuilder.FieldTypeMessage(impl))
			oneof.AddChoice(fb)
			fields = append(fields, fb)
		}
	}
	allocateFieldNumbers(fields)
}
