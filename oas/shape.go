package oas

// Kind is the primitive category of a Shape
type Kind string

const (
	KindAny     Kind = "any"
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindBoolean Kind = "boolean"
	KindArray   Kind = "array"
	KindObject  Kind = "object"
	KindNull    Kind = "null"
	KindUnion   Kind = "union"
)

// Shape is the typed description of a tool parameter or one of its parts.
// Optionality is not part of the shape: object properties carry their own
// Required flag and tool parameters carry the parameter-level one.
type Shape struct {
	Kind        Kind
	Description string
	Default     interface{}

	Enum    []interface{}
	Format  string
	Pattern string

	MinLength *int
	MaxLength *int
	Minimum   *float64
	Maximum   *float64
	MinItems  *int
	MaxItems  *int

	Items      *Shape
	Properties []Property
	// Additional is the schema of undeclared object keys; nil means they are
	// passed through unchecked.
	Additional *Shape

	Variants []*Shape

	// Ref names the reference an unknown shape stands in for (cycle or
	// unresolvable target).
	Ref string
}

// Property is one named member of an object shape
type Property struct {
	Name     string
	Required bool
	Shape    *Shape
}

// Any returns the unknown shape
func Any() *Shape {
	return &Shape{Kind: KindAny}
}

// Null returns the shape that only accepts null
func Null() *Shape {
	return &Shape{Kind: KindNull}
}

// IsNullable reports whether null is already accepted by s
func (s *Shape) IsNullable() bool {
	if s == nil {
		return false
	}
	switch s.Kind {
	case KindNull, KindAny:
		return true
	case KindUnion:
		for _, v := range s.Variants {
			if v.Kind == KindNull {
				return true
			}
		}
	}
	return false
}

// Nullable widens s to also accept null. Shapes that already accept null
// are returned unchanged, so applying it twice never double-wraps.
func Nullable(s *Shape) *Shape {
	if s == nil {
		return Null()
	}
	if s.IsNullable() {
		return s
	}
	if s.Kind == KindUnion {
		widened := *s
		widened.Variants = append(append([]*Shape{}, s.Variants...), Null())
		return &widened
	}
	inner := *s
	inner.Description = ""
	return &Shape{
		Kind:        KindUnion,
		Description: s.Description,
		Variants:    []*Shape{&inner, Null()},
	}
}

// Property looks up a named property
func (s *Shape) Property(name string) (Property, bool) {
	if s == nil {
		return Property{}, false
	}
	for _, p := range s.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// SetProperty adds or replaces a property. A replaced property keeps its
// original position.
func (s *Shape) SetProperty(p Property) {
	for i := range s.Properties {
		if s.Properties[i].Name == p.Name {
			s.Properties[i] = p
			return
		}
	}
	s.Properties = append(s.Properties, p)
}

// JSONSchema renders the shape as an ordered JSON Schema object
func (s *Shape) JSONSchema() *Object {
	out := NewObject()
	if s == nil {
		return out
	}

	switch s.Kind {
	case KindAny:
		// empty schema accepts anything
	case KindUnion:
		variants := make([]interface{}, 0, len(s.Variants))
		for _, v := range s.Variants {
			variants = append(variants, v.JSONSchema())
		}
		out.Set("anyOf", variants)
	default:
		out.Set("type", string(s.Kind))
	}

	if s.Description != "" {
		out.Set("description", s.Description)
	}
	if len(s.Enum) > 0 {
		out.Set("enum", append([]interface{}(nil), s.Enum...))
	}
	if s.Format != "" {
		out.Set("format", s.Format)
	}
	if s.Pattern != "" {
		out.Set("pattern", s.Pattern)
	}
	setInt(out, "minLength", s.MinLength)
	setInt(out, "maxLength", s.MaxLength)
	if s.Minimum != nil {
		out.Set("minimum", *s.Minimum)
	}
	if s.Maximum != nil {
		out.Set("maximum", *s.Maximum)
	}
	setInt(out, "minItems", s.MinItems)
	setInt(out, "maxItems", s.MaxItems)

	if s.Kind == KindArray && s.Items != nil {
		out.Set("items", s.Items.JSONSchema())
	}
	if s.Kind == KindObject {
		props := NewObject()
		var required []interface{}
		for _, p := range s.Properties {
			props.Set(p.Name, p.Shape.JSONSchema())
			if p.Required {
				required = append(required, p.Name)
			}
		}
		out.Set("properties", props)
		if len(required) > 0 {
			out.Set("required", required)
		}
		if s.Additional != nil {
			out.Set("additionalProperties", s.Additional.JSONSchema())
		}
	}
	if s.Default != nil {
		out.Set("default", s.Default)
	}
	return out
}

func setInt(o *Object, key string, v *int) {
	if v != nil {
		o.Set(key, *v)
	}
}
