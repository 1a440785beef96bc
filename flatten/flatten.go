// Package flatten turns nested JSON-like values into ordered dotted-key pairs.
//
// It backs two consumers: the gateway's request side table (mcp.params.name,
// mcp.params.arguments.id, ...) and application/x-www-form-urlencoded body
// encoding. Map keys are visited in sorted order so output is deterministic.
package flatten

import (
	"sort"
	"strconv"
)

// ArrayMode selects how array elements are keyed.
type ArrayMode int

const (
	// ArrayIndex keys each element by its position: items.0, items.1
	ArrayIndex ArrayMode = iota
	// ArrayRepeat repeats the array's own key for every element: tag=a&tag=b
	ArrayRepeat
)

// Pair is one flattened leaf.
type Pair struct {
	Key   string
	Value interface{}
}

// Pairs flattens v under prefix. Leaves are scalars or nil; empty objects
// and arrays produce no pairs. An empty prefix with a scalar v yields a
// single pair with an empty key.
func Pairs(prefix string, v interface{}, mode ArrayMode) []Pair {
	var out []Pair
	walk(prefix, v, mode, &out)
	return out
}

func walk(key string, v interface{}, mode ArrayMode, out *[]Pair) {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walk(join(key, k), val[k], mode, out)
		}
	case []interface{}:
		for i, item := range val {
			if mode == ArrayRepeat {
				walk(key, item, mode, out)
				continue
			}
			walk(join(key, strconv.Itoa(i)), item, mode, out)
		}
	default:
		*out = append(*out, Pair{Key: key, Value: val})
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
