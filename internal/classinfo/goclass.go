package classinfo

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/iancoleman/strcase"
)

// GoType describes a Go type to register as a class.
//
// Structs become concrete classes (or abstract ones when Abstract is set).
// The first embedded struct that is also registered is the superclass.
// Fields tagged `export:""` are the class's properties; the tag value
// overrides the property name, which otherwise is the lower camel case of the
// field name, and `export:"-"` hides a field. A struct with no exported fields
// anywhere in its chain is not introspectable. The `doc` tag sets a property
// description. Exported zero-argument methods are accessors.
//
// Interface types become interface classes and extend every other registered
// interface whose method set they include.
type GoType struct {
	Type        reflect.Type
	Name        string
	Abstract    bool
	Internal    bool
	Description string
}

// TypeOf returns a GoType for T. Pass an interface type as TypeOf[Iface]().
func TypeOf[T any]() GoType { return GoType{Type: reflect.TypeFor[T]()} }

// Named overrides the class name.
func (g GoType) Named(name string) GoType { g.Name = name; return g }

// AsAbstract marks a struct class abstract.
func (g GoType) AsAbstract() GoType { g.Abstract = true; return g }

// Describe sets the class description.
func (g GoType) Describe(desc string) GoType { g.Description = desc; return g }

var timeType = reflect.TypeFor[time.Time]()

// GoClassName returns the default class name for a Go type: its import path
// with slashes replaced by dots, followed by the type name.
func GoClassName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return t.Name()
	}
	return strings.ReplaceAll(t.PkgPath(), "/", ".") + "." + t.Name()
}

// RegisterGo registers Go types as classes and makes instances of them
// classifiable through ClassOf.
func (u *Universe) RegisterGo(types ...GoType) error {
	names := make(map[reflect.Type]string, len(types))
	u.mu.RLock()
	for t, n := range u.goTypes {
		names[t] = n
	}
	u.mu.RUnlock()
	for i := range types {
		t := types[i].Type
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if t.Kind() != reflect.Struct && t.Kind() != reflect.Interface {
			return fmt.Errorf("classinfo: register %s: only structs and interfaces can be classes", t)
		}
		types[i].Type = t
		if types[i].Name == "" {
			types[i].Name = GoClassName(t)
		}
		names[t] = types[i].Name
	}

	b := &goBuilder{names: names, exported: map[reflect.Type]bool{}}
	classes := make([]*Class, 0, len(types))
	for _, g := range types {
		if g.Type.Kind() == reflect.Interface {
			classes = append(classes, b.interfaceClass(g))
		} else {
			classes = append(classes, b.structClass(g))
		}
	}
	if err := u.Register(classes...); err != nil {
		return err
	}
	u.mu.Lock()
	for _, g := range types {
		u.goTypes[g.Type] = g.Name
	}
	u.mu.Unlock()
	return nil
}

type goBuilder struct {
	names    map[reflect.Type]string
	exported map[reflect.Type]bool
}

func (b *goBuilder) interfaceClass(g GoType) *Class {
	c := &Class{Name: g.Name, Kind: Interface, Internal: g.Internal, Description: g.Description}
	c.Interfaces = b.implemented(g.Type, g.Type)
	for i := 0; i < g.Type.NumMethod(); i++ {
		m := g.Type.Method(i)
		if m.Type.NumIn() != 0 || m.Type.NumOut() == 0 {
			continue
		}
		c.Accessors = append(c.Accessors, methodAccessor(m.Name))
	}
	return c
}

func (b *goBuilder) structClass(g GoType) *Class {
	t := g.Type
	c := &Class{Name: g.Name, Internal: g.Internal, Description: g.Description}
	if g.Abstract {
		c.Kind = Abstract
	}
	if super, ok := b.superField(t); ok {
		c.Super = b.names[super]
	}
	c.Interfaces = b.implemented(reflect.PointerTo(t), nil)
	c.Exported = b.isExported(t)

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous || !f.IsExported() {
			continue
		}
		tag, ok := f.Tag.Lookup("export")
		if !ok || tag == "-" {
			continue
		}
		name := tag
		if name == "" {
			name = strcase.ToLowerCamel(f.Name)
		}
		c.Properties = append(c.Properties, Property{
			Name:        name,
			Type:        b.typeRef(f.Type),
			Description: f.Tag.Get("doc"),
			Get:         fieldGetter(t, f.Index),
		})
	}

	pt := reflect.PointerTo(t)
	for i := 0; i < pt.NumMethod(); i++ {
		m := pt.Method(i)
		if m.Type.NumIn() != 1 || m.Type.NumOut() == 0 {
			continue
		}
		c.Accessors = append(c.Accessors, methodAccessor(m.Name))
	}
	return c
}

// superField returns the type of the first embedded registered struct.
func (b *goBuilder) superField(t reflect.Type) (reflect.Type, bool) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous {
			continue
		}
		ft := f.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() != reflect.Struct {
			continue
		}
		if _, ok := b.names[ft]; ok {
			return ft, true
		}
	}
	return nil, false
}

func (b *goBuilder) isExported(t reflect.Type) bool {
	if v, ok := b.exported[t]; ok {
		return v
	}
	b.exported[t] = false
	exported := false
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if tag, ok := f.Tag.Lookup("export"); ok && tag != "-" && !f.Anonymous {
			exported = true
			break
		}
	}
	if !exported {
		if super, ok := b.superField(t); ok {
			exported = b.isExported(super)
		}
	}
	b.exported[t] = exported
	return exported
}

// implemented lists registered interfaces implemented by t, sorted by name.
func (b *goBuilder) implemented(t reflect.Type, self reflect.Type) []string {
	var out []string
	for it, name := range b.names {
		if it.Kind() != reflect.Interface || it == self {
			continue
		}
		if t.Implements(it) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (b *goBuilder) typeRef(t reflect.Type) TypeRef {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType {
		return Named("time.Time")
	}
	switch t.Kind() {
	case reflect.Slice:
		return ListOf(b.typeRef(t.Elem()))
	case reflect.Array:
		return ArrayOf(b.typeRef(t.Elem()))
	case reflect.Struct, reflect.Interface:
		if name, ok := b.names[t]; ok {
			return Named(name)
		}
		return Named(GoClassName(t))
	case reflect.Map, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return Named(t.String())
	}
	return Named(t.Kind().String())
}

// fieldGetter reads the field at index of owner, locating owner inside
// instances of subclasses through their embedded superclass chain.
func fieldGetter(owner reflect.Type, index []int) func(any) (any, error) {
	return func(instance any) (any, error) {
		v, ok := project(reflect.ValueOf(instance), owner)
		if !ok {
			return nil, fmt.Errorf("classinfo: %T does not contain %s", instance, owner)
		}
		fv := v.FieldByIndex(index)
		if fv.Kind() == reflect.Pointer && fv.IsNil() {
			return nil, nil
		}
		return fv.Interface(), nil
	}
}

func project(v reflect.Value, owner reflect.Type) (reflect.Value, bool) {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	if v.Type() == owner {
		return v, true
	}
	for i := 0; i < v.NumField(); i++ {
		sf := v.Type().Field(i)
		if !sf.Anonymous || !sf.IsExported() {
			continue
		}
		if found, ok := project(v.Field(i), owner); ok {
			return found, true
		}
	}
	return reflect.Value{}, false
}

var errNoMethod = errors.New("method not found")

func methodAccessor(name string) Accessor {
	return Accessor{
		Name:   name,
		Public: true,
		Call: func(instance any) (any, error) {
			v := reflect.ValueOf(instance)
			m := v.MethodByName(name)
			if !m.IsValid() && v.Kind() != reflect.Pointer {
				p := reflect.New(v.Type())
				p.Elem().Set(v)
				m = p.MethodByName(name)
			}
			if !m.IsValid() {
				return nil, fmt.Errorf("classinfo: %T.%s: %w", instance, name, errNoMethod)
			}
			out := m.Call(nil)
			if len(out) > 1 {
				if err, ok := out[len(out)-1].Interface().(error); ok && err != nil {
					return nil, err
				}
			}
			return out[0].Interface(), nil
		},
	}
}
