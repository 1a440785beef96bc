package tools

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	loggerv2 "github.com/manishiitg/apimcp/logger/v2"
	"github.com/manishiitg/apimcp/oas"
)

func TestRegistryFirstWins(t *testing.T) {
	var buf bytes.Buffer
	logger, err := loggerv2.New(loggerv2.Config{Level: "warn", Format: "json", Writer: &buf})
	require.NoError(t, err)

	first := &Descriptor{Name: "getPet", Product: "petstore", SpecPath: "a.yaml"}
	second := &Descriptor{Name: "getPet", Product: "zoo", SpecPath: "b.yaml"}
	other := &Descriptor{Name: "listPets", Product: "petstore"}

	r := NewRegistry([]*Descriptor{first, nil, second, other}, logger)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"getPet", "listPets"}, r.Names())

	got, ok := r.Get("getPet")
	require.True(t, ok)
	assert.Same(t, first, got)
	assert.Contains(t, buf.String(), "Duplicate tool name")
	assert.Contains(t, buf.String(), "zoo")

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestNilRegistry(t *testing.T) {
	var r *Registry
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Names())
	_, ok := r.Get("x")
	assert.False(t, ok)
}

func TestListing(t *testing.T) {
	d := &Descriptor{
		Name:        "getPet",
		DisplayName: "Get a pet",
		Description: "Returns one pet",
		Input: &oas.Shape{Kind: oas.KindObject, Properties: []oas.Property{
			{Name: "petId", Required: true, Shape: &oas.Shape{Kind: oas.KindInteger}},
		}},
	}
	raw, err := json.Marshal(d.Listing())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "getPet",
		"title": "Get a pet",
		"description": "Returns one pet",
		"inputSchema": {"type": "object", "properties": {"petId": {"type": "integer"}}, "required": ["petId"]}
	}`, string(raw))

	bare := &Descriptor{Name: "x", DisplayName: "x"}
	assert.Empty(t, bare.Listing().Title)
	assert.JSONEq(t, `{"type":"object","properties":{}}`, string(bare.InputSchema()))
}
