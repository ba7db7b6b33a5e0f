// Package plugin loads declarative class manifests. A manifest contributes
// classes to the universe and instances to the in-memory data source; the
// plugin directory can be watched so the schema follows manifest edits.
package plugin

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/hanpama/classgraph/internal/classinfo"
	"github.com/hanpama/classgraph/internal/errs"
)

// Manifest is one plugin file.
type Manifest struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Classes     []ClassSpec    `yaml:"classes,omitempty"`
	Instances   []InstanceSpec `yaml:"instances,omitempty"`

	// Source is the file the manifest was read from.
	Source string `yaml:"-"`
}

type ClassSpec struct {
	Name        string         `yaml:"name"`
	Super       string         `yaml:"super,omitempty"`
	Kind        string         `yaml:"kind,omitempty"`
	Interfaces  []string       `yaml:"interfaces,omitempty"`
	Exported    bool           `yaml:"exported,omitempty"`
	Internal    bool           `yaml:"internal,omitempty"`
	Synthetic   bool           `yaml:"synthetic,omitempty"`
	Description string         `yaml:"description,omitempty"`
	Properties  []PropertySpec `yaml:"properties,omitempty"`
	Accessors   []string       `yaml:"accessors,omitempty"`
}

type PropertySpec struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description,omitempty"`
}

type InstanceSpec struct {
	Class string         `yaml:"class"`
	ID    string         `yaml:"id,omitempty"`
	Props map[string]any `yaml:"props,omitempty"`
}

const manifestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name"],
  "additionalProperties": false,
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "classes": {"type": "array", "items": {"$ref": "#/definitions/class"}},
    "instances": {"type": "array", "items": {"$ref": "#/definitions/instance"}}
  },
  "definitions": {
    "class": {
      "type": "object",
      "required": ["name"],
      "additionalProperties": false,
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "super": {"type": "string"},
        "kind": {"enum": ["class", "concrete", "abstract", "interface"]},
        "interfaces": {"type": "array", "items": {"type": "string", "minLength": 1}},
        "exported": {"type": "boolean"},
        "internal": {"type": "boolean"},
        "synthetic": {"type": "boolean"},
        "description": {"type": "string"},
        "properties": {"type": "array", "items": {"$ref": "#/definitions/property"}},
        "accessors": {"type": "array", "items": {"type": "string", "minLength": 1}}
      }
    },
    "property": {
      "type": "object",
      "required": ["name", "type"],
      "additionalProperties": false,
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "type": {"type": "string", "minLength": 1},
        "description": {"type": "string"}
      }
    },
    "instance": {
      "type": "object",
      "required": ["class"],
      "additionalProperties": false,
      "properties": {
        "class": {"type": "string", "minLength": 1},
        "id": {"type": "string"},
        "props": {"type": "object"}
      }
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(manifestSchema)

// Parse decodes and validates one manifest. source names the file in error
// messages.
func Parse(data []byte, source string) (*Manifest, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errs.WrapInvalid(err, "plugin "+source)
	}
	if doc == nil {
		return nil, errs.Invalidf(errs.ErrInvalidSchema, "plugin "+source, "empty manifest")
	}
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, errs.WrapInvalid(err, "plugin "+source)
	}
	if !result.Valid() {
		msgs := make([]string, len(result.Errors()))
		for i, re := range result.Errors() {
			msgs[i] = re.String()
		}
		return nil, errs.Invalidf(errs.ErrInvalidSchema, "plugin "+source, "%s", strings.Join(msgs, "; "))
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errs.WrapInvalid(err, "plugin "+source)
	}
	m.Source = source
	return &m, nil
}

// ToClasses converts the manifest's class specs. Properties and accessors read
// record instances.
func (m *Manifest) ToClasses() ([]*classinfo.Class, error) {
	out := make([]*classinfo.Class, 0, len(m.Classes))
	for _, cs := range m.Classes {
		kind, ok := classinfo.ParseKind(cs.Kind)
		if !ok {
			return nil, errs.Invalidf(errs.ErrInvalidSchema, "plugin "+m.Source, "class %s: unknown kind %q", cs.Name, cs.Kind)
		}
		c := &classinfo.Class{
			Name:        cs.Name,
			Super:       cs.Super,
			Interfaces:  cs.Interfaces,
			Kind:        kind,
			Exported:    cs.Exported,
			Internal:    cs.Internal,
			Synthetic:   cs.Synthetic,
			Description: cs.Description,
		}
		for _, p := range cs.Properties {
			c.Properties = append(c.Properties, classinfo.RecordProperty(p.Name, classinfo.ParseTypeRef(p.Type), p.Description))
		}
		for _, a := range cs.Accessors {
			c.Accessors = append(c.Accessors, classinfo.RecordAccessor(a))
		}
		out = append(out, c)
	}
	return out, nil
}

// ToRecords converts the manifest's instances.
func (m *Manifest) ToRecords() []*classinfo.Record {
	out := make([]*classinfo.Record, len(m.Instances))
	for i, in := range m.Instances {
		props := in.Props
		if props == nil {
			props = map[string]any{}
		}
		out[i] = classinfo.NewRecord(in.Class, in.ID, props)
	}
	return out
}

func (m *Manifest) String() string {
	return fmt.Sprintf("%s (%s)", m.Name, m.Source)
}
