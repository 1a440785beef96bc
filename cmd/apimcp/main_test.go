package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manishiitg/apimcp/tools"
)

const gatewayFile = `
server:
  addr: ":0"
specDir: %s
products:
  - name: retail
    apiKeys: [k]
    mcpTools: "*"
tools:
  api_ping:
    directReturn: static wins
`

const pingSpec = `{"openapi":"3.0.0","servers":[{"url":"https://ping.example.com"}],"paths":{"/ping":{"get":{"operationId":"ping"}}}}`

func TestGatewayCatalogMergesStaticAndSpecTools(t *testing.T) {
	dir := t.TempDir()
	specDir := filepath.Join(dir, "specs")
	require.NoError(t, os.MkdirAll(filepath.Join(specDir, "health"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(specDir, "health", "ping.json"), []byte(pingSpec), 0o644))

	path := filepath.Join(dir, "gateway.yaml")
	content := strings.Replace(gatewayFile, "%s", specDir, 1)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	registry, err := gatewayCatalog(context.Background(), path, nil)
	require.NoError(t, err)
	require.Equal(t, 1, registry.Len())

	d, ok := registry.Get("api_ping")
	require.True(t, ok)
	assert.Equal(t, tools.ExecDirectReturn, d.Execution.Kind)
	assert.Equal(t, "static wins", d.Execution.DirectValue)
}

func TestGatewayCatalogMissingFile(t *testing.T) {
	_, err := gatewayCatalog(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestPrintCatalog(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printCatalog(&out, []*tools.Descriptor{
		{Name: "api_ping", Category: "api_health", Execution: tools.Execution{Method: "GET", TargetServer: "https://ping.example.com", PathTemplate: "/ping"}},
		{Name: "hello", Execution: tools.Execution{Kind: tools.ExecDirectReturn, DirectValue: "hi"}},
	}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"TOOL", "CATEGORY", "METHOD", "TARGET"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"api_ping", "api_health", "GET", "https://ping.example.com/ping"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"hello", "-", "(direct", "return)"}, strings.Fields(lines[2]))
}
