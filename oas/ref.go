package oas

import (
	"net/url"
	"strconv"
	"strings"
)

// ResolveRef follows a local JSON pointer such as "#/components/schemas/User".
// External references, malformed pointers and missing targets resolve to nil;
// callers degrade to an unknown type instead of failing.
func ResolveRef(doc *Object, ref string) interface{} {
	if doc == nil || !strings.HasPrefix(ref, "#/") {
		return nil
	}

	var current interface{} = doc
	for _, token := range strings.Split(ref[2:], "/") {
		token = decodePointerToken(token)
		switch node := current.(type) {
		case *Object:
			next, ok := node.Get(token)
			if !ok {
				return nil
			}
			current = next
		case []interface{}:
			i, err := strconv.Atoi(token)
			if err != nil || i < 0 || i >= len(node) {
				return nil
			}
			current = node[i]
		default:
			return nil
		}
	}
	return current
}

// decodePointerToken undoes URI fragment percent-encoding, then the JSON
// Pointer escapes ~1 (/) and ~0 (~) in that order.
func decodePointerToken(token string) string {
	if unescaped, err := url.PathUnescape(token); err == nil {
		token = unescaped
	}
	token = strings.ReplaceAll(token, "~1", "/")
	return strings.ReplaceAll(token, "~0", "~")
}

// RefName is the last segment of a reference, used to label unknown shapes
func RefName(ref string) string {
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return decodePointerToken(ref[i+1:])
	}
	return ref
}

// Deref returns node itself, or the object its $ref points to. Chains of
// references are followed until a non-reference object is reached; a chain
// that revisits a reference or leaves the document yields nil.
func Deref(doc *Object, node *Object) *Object {
	seen := map[string]bool{}
	for node != nil {
		ref := node.String("$ref")
		if ref == "" {
			return node
		}
		if seen[ref] {
			return nil
		}
		seen[ref] = true
		node, _ = ResolveRef(doc, ref).(*Object)
	}
	return nil
}
