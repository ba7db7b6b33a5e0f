// Package protoclass exposes protobuf messages as classes. Every message
// descriptor becomes a concrete class named by its full name; live instances
// are proto.Message values, typically dynamicpb messages decoded from JSON.
package protoclass

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/hanpama/classgraph/internal/classinfo"
)

const wellKnownPackage = "google.protobuf"

var timestampName = (&timestamppb.Timestamp{}).ProtoReflect().Descriptor().FullName()

// LoadDescriptorSet reads a binary FileDescriptorSet, as written by
// `protoc --descriptor_set_out --include_imports`.
func LoadDescriptorSet(path string) (*protoregistry.Files, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var set descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("protoclass: %s: %w", path, err)
	}
	files, err := protodesc.NewFiles(&set)
	if err != nil {
		return nil, fmt.Errorf("protoclass: %s: %w", path, err)
	}
	return files, nil
}

// Files lists the files of reg in path order.
func Files(reg *protoregistry.Files) []protoreflect.FileDescriptor {
	var out []protoreflect.FileDescriptor
	reg.RangeFiles(func(fd protoreflect.FileDescriptor) bool {
		out = append(out, fd)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Path() < out[j].Path() })
	return out
}

// Classes converts the messages of files, nested messages included.
// Well-known types are skipped; Timestamp fields read as time.Time.
func Classes(files ...protoreflect.FileDescriptor) []*classinfo.Class {
	var out []*classinfo.Class
	for _, fd := range files {
		if string(fd.Package()) == wellKnownPackage {
			continue
		}
		out = appendMessages(out, fd.Messages())
	}
	return out
}

func appendMessages(out []*classinfo.Class, msgs protoreflect.MessageDescriptors) []*classinfo.Class {
	for i := 0; i < msgs.Len(); i++ {
		md := msgs.Get(i)
		if md.IsMapEntry() {
			continue
		}
		out = append(out, MessageClass(md))
		out = appendMessages(out, md.Messages())
	}
	return out
}

// MessageClass converts one message. Fields become properties in declaration
// order under their JSON names; a field named id also answers getId.
func MessageClass(md protoreflect.MessageDescriptor) *classinfo.Class {
	c := &classinfo.Class{
		Name:     string(md.FullName()),
		Exported: true,
	}
	if loc := md.ParentFile().SourceLocations().ByDescriptor(md); loc.LeadingComments != "" {
		c.Description = strings.TrimSpace(loc.LeadingComments)
	}
	fields := md.Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		c.Properties = append(c.Properties, classinfo.Property{
			Name: fd.JSONName(),
			Type: fieldType(fd),
			Get:  getter(fd),
		})
		if fd.Name() == "id" {
			c.Accessors = append(c.Accessors, classinfo.Accessor{
				Name:   "getId",
				Public: true,
				Call:   getter(fd),
			})
		}
	}
	return c
}

func fieldType(fd protoreflect.FieldDescriptor) classinfo.TypeRef {
	if fd.IsMap() {
		return classinfo.Named("map")
	}
	elem := classinfo.Named(kindName(fd))
	if fd.IsList() {
		return classinfo.ListOf(elem)
	}
	return elem
}

func kindName(fd protoreflect.FieldDescriptor) string {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return "bool"
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return "int32"
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return "uint32"
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return "int64"
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return "uint64"
	case protoreflect.FloatKind:
		return "float32"
	case protoreflect.DoubleKind:
		return "float64"
	case protoreflect.StringKind, protoreflect.BytesKind, protoreflect.EnumKind:
		return "string"
	case protoreflect.MessageKind, protoreflect.GroupKind:
		if fd.Message().FullName() == timestampName {
			return "time.Time"
		}
		return string(fd.Message().FullName())
	}
	return "string"
}

func getter(fd protoreflect.FieldDescriptor) func(any) (any, error) {
	return func(instance any) (any, error) {
		pm, ok := instance.(proto.Message)
		if !ok {
			return nil, fmt.Errorf("protoclass: field %s: %T is not a message", fd.FullName(), instance)
		}
		m := pm.ProtoReflect()
		if m.Descriptor().FullName() != fd.ContainingMessage().FullName() {
			return nil, fmt.Errorf("protoclass: field %s: instance is a %s", fd.FullName(), m.Descriptor().FullName())
		}
		if fd.HasPresence() && !m.Has(fd) {
			return nil, nil
		}
		v := m.Get(fd)
		switch {
		case fd.IsMap():
			out := map[string]any{}
			v.Map().Range(func(k protoreflect.MapKey, mv protoreflect.Value) bool {
				out[k.String()] = goValue(fd.MapValue(), mv)
				return true
			})
			return out, nil
		case fd.IsList():
			l := v.List()
			out := make([]any, l.Len())
			for i := range out {
				out[i] = goValue(fd, l.Get(i))
			}
			return out, nil
		}
		return goValue(fd, v), nil
	}
}

func goValue(fd protoreflect.FieldDescriptor, v protoreflect.Value) any {
	switch fd.Kind() {
	case protoreflect.EnumKind:
		if ev := fd.Enum().Values().ByNumber(v.Enum()); ev != nil {
			return string(ev.Name())
		}
		return fmt.Sprint(int32(v.Enum()))
	case protoreflect.MessageKind, protoreflect.GroupKind:
		msg := v.Message()
		if fd.Message().FullName() == timestampName {
			fields := msg.Descriptor().Fields()
			ts := &timestamppb.Timestamp{
				Seconds: msg.Get(fields.ByName("seconds")).Int(),
				Nanos:   int32(msg.Get(fields.ByName("nanos")).Int()),
			}
			return ts.AsTime()
		}
		return msg.Interface()
	}
	return v.Interface()
}

// Classify names the class of proto.Message instances.
func Classify(instance any) (string, bool) {
	pm, ok := instance.(proto.Message)
	if !ok {
		return "", false
	}
	return string(pm.ProtoReflect().Descriptor().FullName()), true
}

// Register adds the classes of files to u and teaches u to classify messages.
func Register(u *classinfo.Universe, files ...protoreflect.FileDescriptor) error {
	if err := u.Register(Classes(files...)...); err != nil {
		return err
	}
	u.AddClassifier(Classify)
	return nil
}

// DecodeJSON decodes a protojson document into a dynamic message of md.
func DecodeJSON(md protoreflect.MessageDescriptor, data []byte) (proto.Message, error) {
	m := dynamicpb.NewMessage(md)
	if err := protojson.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("protoclass: decode %s: %w", md.FullName(), err)
	}
	return m, nil
}
