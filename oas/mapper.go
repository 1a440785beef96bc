package oas

import (
	"fmt"

	loggerv2 "github.com/manishiitg/apimcp/logger/v2"
)

// Visited is the set of references entered on the current branch of a
// schema walk. It is copied before each descent so sibling branches never
// see each other's entries.
type Visited map[string]struct{}

func (v Visited) with(ref string) Visited {
	next := make(Visited, len(v)+1)
	for k := range v {
		next[k] = struct{}{}
	}
	next[ref] = struct{}{}
	return next
}

// Mapper maps schema nodes of one document onto Shapes
type Mapper struct {
	Doc    *Object
	Logger loggerv2.Logger
}

// NewMapper creates a Mapper for doc. A nil logger is replaced with a noop one.
func NewMapper(doc *Object, logger loggerv2.Logger) *Mapper {
	if logger == nil {
		logger = loggerv2.NewNoop()
	}
	return &Mapper{Doc: doc, Logger: logger}
}

// Map converts a schema node into a Shape. Pass nil visited at the root.
func (m *Mapper) Map(node interface{}, visited Visited) *Shape {
	schema, ok := node.(*Object)
	if !ok || schema == nil {
		return Any()
	}

	if ref := schema.String("$ref"); ref != "" {
		if _, seen := visited[ref]; seen {
			return &Shape{
				Kind:        KindAny,
				Ref:         ref,
				Description: fmt.Sprintf("Circular reference to %s", RefName(ref)),
			}
		}
		target, ok := ResolveRef(m.Doc, ref).(*Object)
		if !ok {
			m.Logger.Warn("Unresolvable schema reference, using unknown type", loggerv2.String("ref", ref))
			return &Shape{
				Kind:        KindAny,
				Ref:         ref,
				Description: fmt.Sprintf("Unresolved reference %s", RefName(ref)),
			}
		}
		shape := m.Map(target, visited.with(ref))
		if desc := schema.String("description"); desc != "" {
			shape.Description = desc
		}
		return shape
	}

	shape := m.mapComposite(schema, visited)
	if shape == nil {
		shape = m.mapTyped(schema, visited)
	}

	if desc := schema.String("description"); desc != "" {
		shape.Description = desc
	}
	if v, ok := schema.Get("default"); ok {
		shape.Default = v
	}
	if schema.Bool("nullable") {
		shape = Nullable(shape)
	}
	return shape
}

func (m *Mapper) mapComposite(schema *Object, visited Visited) *Shape {
	for _, key := range []string{"oneOf", "anyOf"} {
		variants := schema.Array(key)
		if len(variants) == 0 {
			continue
		}
		union := &Shape{Kind: KindUnion}
		for _, v := range variants {
			union.Variants = append(union.Variants, m.Map(v, visited))
		}
		if len(union.Variants) == 1 {
			return union.Variants[0]
		}
		return union
	}

	parts := schema.Array("allOf")
	if len(parts) == 0 {
		return nil
	}
	merged := &Shape{Kind: KindObject}
	for _, part := range parts {
		s := m.Map(part, visited)
		if s.Kind != KindObject {
			if len(parts) == 1 {
				return s
			}
			m.Logger.Debug("allOf member is not an object, skipping it", loggerv2.String("kind", string(s.Kind)))
			continue
		}
		for _, p := range s.Properties {
			merged.SetProperty(p)
		}
		if s.Additional != nil {
			merged.Additional = s.Additional
		}
	}
	return merged
}

// schemaTypes reads "type" in either 3.0 (string) or 3.1 (array) form and
// reports whether "null" was listed.
func schemaTypes(schema *Object) (types []string, hasNull bool) {
	v, _ := schema.Get("type")
	switch t := v.(type) {
	case string:
		types = []string{t}
	case []interface{}:
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				continue
			}
			if s == "null" {
				hasNull = true
				continue
			}
			types = append(types, s)
		}
	}
	return types, hasNull
}

func (m *Mapper) mapTyped(schema *Object, visited Visited) *Shape {
	types, hasNull := schemaTypes(schema)

	var shape *Shape
	switch len(types) {
	case 0:
		shape = m.mapInferred(schema, visited, hasNull)
	case 1:
		shape = m.mapType(types[0], schema, visited)
	default:
		shape = &Shape{Kind: KindUnion}
		for _, t := range types {
			shape.Variants = append(shape.Variants, m.mapType(t, schema, visited))
		}
	}

	if hasNull {
		shape = Nullable(shape)
	}
	return shape
}

func (m *Mapper) mapInferred(schema *Object, visited Visited, onlyNull bool) *Shape {
	switch {
	case schema.Has("properties") || schema.Has("additionalProperties"):
		m.Logger.Debug("Schema has no type but declares properties, treating as object")
		return m.mapType("object", schema, visited)
	case schema.Has("items"):
		m.Logger.Debug("Schema has no type but declares items, treating as array")
		return m.mapType("array", schema, visited)
	case schema.Has("enum"):
		return m.mapType("string", schema, visited)
	case onlyNull:
		return Null()
	default:
		return Any()
	}
}

func (m *Mapper) mapType(typ string, schema *Object, visited Visited) *Shape {
	shape := &Shape{}
	switch typ {
	case "string":
		shape.Kind = KindString
		shape.Format = schema.String("format")
		shape.Pattern = schema.String("pattern")
		shape.MinLength = intPtr(schema, "minLength")
		shape.MaxLength = intPtr(schema, "maxLength")
	case "integer":
		shape.Kind = KindInteger
		shape.Minimum = floatPtr(schema, "minimum")
		shape.Maximum = floatPtr(schema, "maximum")
	case "number":
		shape.Kind = KindNumber
		shape.Minimum = floatPtr(schema, "minimum")
		shape.Maximum = floatPtr(schema, "maximum")
	case "boolean":
		shape.Kind = KindBoolean
	case "array":
		shape.Kind = KindArray
		shape.Items = Any()
		if items, ok := schema.Get("items"); ok {
			shape.Items = m.Map(items, visited)
		}
		shape.MinItems = intPtr(schema, "minItems")
		shape.MaxItems = intPtr(schema, "maxItems")
	case "object":
		shape.Kind = KindObject
		required := map[string]bool{}
		for _, r := range schema.Array("required") {
			if name, ok := r.(string); ok {
				required[name] = true
			}
		}
		props := schema.Object("properties")
		for _, name := range props.Keys() {
			v, _ := props.Get(name)
			shape.Properties = append(shape.Properties, Property{
				Name:     name,
				Required: required[name],
				Shape:    m.Map(v, visited),
			})
		}
		switch ap := mustGet(schema, "additionalProperties").(type) {
		case bool:
			if ap {
				shape.Additional = Any()
			}
		case *Object:
			shape.Additional = m.Map(ap, visited)
		}
	default:
		m.Logger.Warn("Unrecognized schema type, using unknown type", loggerv2.String("type", typ))
		return Any()
	}

	for _, e := range schema.Array("enum") {
		if e == nil {
			continue
		}
		shape.Enum = append(shape.Enum, e)
	}
	return shape
}

func mustGet(o *Object, k string) interface{} {
	v, _ := o.Get(k)
	return v
}

func intPtr(o *Object, k string) *int {
	if v, ok := o.Int(k); ok {
		return &v
	}
	return nil
}

func floatPtr(o *Object, k string) *float64 {
	if v, ok := o.Float(k); ok {
		return &v
	}
	return nil
}
