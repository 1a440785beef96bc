// Package oas models OpenAPI documents as insertion-ordered trees and maps
// their schemas onto tool parameter shapes.
//
// Documents are decoded through yaml.v3 nodes rather than Go maps so that
// paths, operations, properties and static tool entries keep the order in
// which they were written. JSON input is accepted as well since it is valid
// YAML.
package oas

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Object is a mapping that remembers key order. Values are nil, bool, int,
// float64, string, []interface{} or *Object.
type Object struct {
	keys   []string
	values map[string]interface{}
}

// NewObject returns an empty Object
func NewObject() *Object {
	return &Object{values: make(map[string]interface{})}
}

// Set stores v under k. Re-setting an existing key keeps its position.
func (o *Object) Set(k string, v interface{}) *Object {
	if _, ok := o.values[k]; !ok {
		o.keys = append(o.keys, k)
	}
	o.values[k] = v
	return o
}

// Get returns the value stored under k
func (o *Object) Get(k string) (interface{}, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.values[k]
	return v, ok
}

// Has reports whether k is present, even with a null value
func (o *Object) Has(k string) bool {
	_, ok := o.Get(k)
	return ok
}

// Keys returns keys in insertion order
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	return o.keys
}

// Len returns the number of keys
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Object returns the child object under k, or nil
func (o *Object) Object(k string) *Object {
	v, _ := o.Get(k)
	child, _ := v.(*Object)
	return child
}

// String returns the string under k, or ""
func (o *Object) String(k string) string {
	v, _ := o.Get(k)
	s, _ := v.(string)
	return s
}

// Bool returns the bool under k, or false
func (o *Object) Bool(k string) bool {
	v, _ := o.Get(k)
	b, _ := v.(bool)
	return b
}

// Array returns the sequence under k, or nil
func (o *Object) Array(k string) []interface{} {
	v, _ := o.Get(k)
	a, _ := v.([]interface{})
	return a
}

// Int returns the integral number under k
func (o *Object) Int(k string) (int, bool) {
	v, _ := o.Get(k)
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), n == float64(int(n))
	}
	return 0, false
}

// Float returns the number under k
func (o *Object) Float(k string) (float64, bool) {
	v, _ := o.Get(k)
	switch n := v.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// Plain converts the tree into map[string]interface{} values, losing order
func (o *Object) Plain() map[string]interface{} {
	if o == nil {
		return nil
	}
	out := make(map[string]interface{}, len(o.keys))
	for _, k := range o.keys {
		out[k] = PlainValue(o.values[k])
	}
	return out
}

// PlainValue converts any document value (recursively) into plain Go values
func PlainValue(v interface{}) interface{} {
	switch val := v.(type) {
	case *Object:
		return val.Plain()
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = PlainValue(item)
		}
		return out
	default:
		return val
	}
}

// MarshalJSON writes keys in insertion order
func (o *Object) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Parse decodes a YAML or JSON document whose root is a mapping
func Parse(data []byte) (*Object, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("failed to parse document: empty document")
	}
	v, err := FromNode(root.Content[0])
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*Object)
	if !ok {
		return nil, fmt.Errorf("failed to parse document: root is not a mapping")
	}
	return obj, nil
}

// FromNode converts a yaml.v3 node into document values
func FromNode(n *yaml.Node) (interface{}, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return FromNode(n.Content[0])
	case yaml.AliasNode:
		return FromNode(n.Alias)
	case yaml.MappingNode:
		obj := NewObject()
		for i := 0; i+1 < len(n.Content); i += 2 {
			keyNode, valNode := n.Content[i], n.Content[i+1]
			if keyNode.ShortTag() == "!!merge" {
				merged, err := FromNode(valNode)
				if err != nil {
					return nil, err
				}
				if m, ok := merged.(*Object); ok {
					for _, k := range m.Keys() {
						if !obj.Has(k) {
							v, _ := m.Get(k)
							obj.Set(k, v)
						}
					}
				}
				continue
			}
			val, err := FromNode(valNode)
			if err != nil {
				return nil, err
			}
			obj.Set(keyNode.Value, val)
		}
		return obj, nil
	case yaml.SequenceNode:
		out := make([]interface{}, 0, len(n.Content))
		for _, c := range n.Content {
			val, err := FromNode(c)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil
	case yaml.ScalarNode:
		return scalar(n)
	}
	return nil, fmt.Errorf("unsupported YAML node kind %d at line %d", n.Kind, n.Line)
}

// scalar keeps timestamps and other exotic tags as their source text
func scalar(n *yaml.Node) (interface{}, error) {
	switch n.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, err
		}
		return b, nil
	case "!!int":
		if i, err := strconv.Atoi(n.Value); err == nil {
			return i, nil
		}
		var i int64
		if err := n.Decode(&i); err != nil {
			return nil, err
		}
		return int(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, err
		}
		return f, nil
	default:
		return n.Value, nil
	}
}
