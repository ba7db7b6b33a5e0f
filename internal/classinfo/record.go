package classinfo

import (
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"
)

// Record is a schemaless instance: a class name, an identity, and a bag of
// property values. Nested records are stored as *Record values.
type Record struct {
	Class string         `json:"class" yaml:"class"`
	ID    string         `json:"id" yaml:"id"`
	Props map[string]any `json:"props,omitempty" yaml:"props,omitempty"`
}

// NewRecord builds a record, converting nested maps that carry a "class" key
// into records.
func NewRecord(class, id string, props map[string]any) *Record {
	r := &Record{Class: class, ID: id, Props: props}
	r.Normalize()
	return r
}

func (r *Record) ClassName() string { return r.Class }

// AsRecord returns r. Types embedding *Record inherit it, which lets record
// accessors read through wrappers.
func (r *Record) AsRecord() *Record { return r }

// RecordOf returns the record behind instance.
func RecordOf(instance any) (*Record, bool) {
	rr, ok := instance.(interface{ AsRecord() *Record })
	if !ok {
		return nil, false
	}
	r := rr.AsRecord()
	return r, r != nil
}

// Normalize converts nested record-shaped maps (as produced by JSON and YAML
// decoding) into *Record values, in place.
func (r *Record) Normalize() {
	for k, v := range r.Props {
		r.Props[k] = normalizeValue(v)
	}
}

func normalizeValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		class, ok := tv["class"].(string)
		if !ok {
			return v
		}
		id := fmt.Sprint(tv["id"])
		if tv["id"] == nil {
			id = ""
		}
		props, _ := tv["props"].(map[string]any)
		return NewRecord(class, id, props)
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = normalizeValue(e)
		}
		return out
	}
	return v
}

// RecordProperty returns a property that reads name from a record's props.
func RecordProperty(name string, t TypeRef, desc string) Property {
	return Property{
		Name:        name,
		Type:        t,
		Description: desc,
		Get: func(instance any) (any, error) {
			r, ok := RecordOf(instance)
			if !ok {
				return nil, fmt.Errorf("classinfo: property %s: %T is not a record", name, instance)
			}
			return r.Props[name], nil
		},
	}
}

// RecordAccessor returns an accessor for records. Identity-like names answer
// the record ID; "getFoo" and "foo" read the "foo" property.
func RecordAccessor(name string) Accessor {
	idLike, _ := identityKind(name)
	prop := strcase.ToLowerCamel(strings.TrimPrefix(name, "get"))
	return Accessor{
		Name:   name,
		Public: true,
		Call: func(instance any) (any, error) {
			r, ok := RecordOf(instance)
			if !ok {
				return nil, fmt.Errorf("classinfo: accessor %s: %T is not a record", name, instance)
			}
			if v, ok := r.Props[prop]; ok {
				return v, nil
			}
			if idLike || prop == "fullName" {
				return r.ID, nil
			}
			return nil, nil
		},
	}
}
