package flatten

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPairs(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		value  interface{}
		mode   ArrayMode
		want   []Pair
	}{
		{
			name:  "nested object",
			value: map[string]interface{}{"a": map[string]interface{}{"b": float64(1)}},
			want:  []Pair{{Key: "a.b", Value: float64(1)}},
		},
		{
			name:   "prefix and sorted keys",
			prefix: "mcp",
			value: map[string]interface{}{
				"method": "tools/call",
				"id":     float64(7),
				"params": map[string]interface{}{"name": "api_getUser"},
			},
			want: []Pair{
				{Key: "mcp.id", Value: float64(7)},
				{Key: "mcp.method", Value: "tools/call"},
				{Key: "mcp.params.name", Value: "api_getUser"},
			},
		},
		{
			name:  "arrays by index",
			value: map[string]interface{}{"tags": []interface{}{"x", "y"}},
			mode:  ArrayIndex,
			want:  []Pair{{Key: "tags.0", Value: "x"}, {Key: "tags.1", Value: "y"}},
		},
		{
			name:  "arrays repeat key",
			value: map[string]interface{}{"tags": []interface{}{"x", "y"}},
			mode:  ArrayRepeat,
			want:  []Pair{{Key: "tags", Value: "x"}, {Key: "tags", Value: "y"}},
		},
		{
			name:  "objects inside repeated arrays",
			value: map[string]interface{}{"items": []interface{}{map[string]interface{}{"sku": "1"}}},
			mode:  ArrayRepeat,
			want:  []Pair{{Key: "items.sku", Value: "1"}},
		},
		{
			name:  "nil leaf kept",
			value: map[string]interface{}{"gone": nil},
			want:  []Pair{{Key: "gone", Value: nil}},
		},
		{
			name:  "empty containers vanish",
			value: map[string]interface{}{"o": map[string]interface{}{}, "a": []interface{}{}},
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Pairs(tt.prefix, tt.value, tt.mode))
		})
	}
}

func TestPairsIndexBeyondNine(t *testing.T) {
	items := make([]interface{}, 12)
	for i := range items {
		items[i] = i
	}
	pairs := Pairs("", items, ArrayIndex)
	assert.Equal(t, "11", pairs[11].Key)
	assert.Equal(t, 11, pairs[11].Value)
}
