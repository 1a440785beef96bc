package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manishiitg/apimcp/executor"
	"github.com/manishiitg/apimcp/jsonrpc"
	"github.com/manishiitg/apimcp/tools"
)

type echoExecutor struct {
	args map[string]interface{}
}

func (e *echoExecutor) Execute(ctx context.Context, d *tools.Descriptor, args map[string]interface{}) (*executor.Result, error) {
	e.args = args
	return executor.NormalizeResponse(200, "application/json", []byte(`{"tool":"`+d.Name+`"}`)), nil
}

func staticLoader(names ...string) Loader {
	return func(ctx context.Context) ([]*tools.Descriptor, error) {
		var out []*tools.Descriptor
		for _, n := range names {
			out = append(out, &tools.Descriptor{Name: n, DisplayName: "Tool " + n, Description: "does " + n})
		}
		return out, nil
	}
}

func rpc(t *testing.T, s *Server, body string) map[string]interface{} {
	t.Helper()
	reply := s.MCPServer().HandleMessage(context.Background(), json.RawMessage(body))
	require.NotNil(t, reply)
	data, err := json.Marshal(reply)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func listedNames(t *testing.T, s *Server) []string {
	t.Helper()
	reply := rpc(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	result, ok := reply["result"].(map[string]interface{})
	require.True(t, ok, "%v", reply)
	var names []string
	for _, tl := range result["tools"].([]interface{}) {
		names = append(names, tl.(map[string]interface{})["name"].(string))
	}
	return names
}

func TestRefreshRegistersAllowedTools(t *testing.T) {
	s := New(&echoExecutor{}, staticLoader("a", "b", "c"), Config{AllowedTools: "a, c"})
	require.NoError(t, s.Refresh(context.Background()))

	assert.ElementsMatch(t, []string{"a", "c"}, listedNames(t, s))
	assert.Equal(t, []string{"a", "c"}, s.Registry().Names())
}

func TestRefreshSwapsCatalog(t *testing.T) {
	names := []string{"a", "b"}
	load := func(ctx context.Context) ([]*tools.Descriptor, error) {
		return staticLoader(names...)(ctx)
	}
	s := New(&echoExecutor{}, load, Config{})
	require.NoError(t, s.Refresh(context.Background()))
	assert.ElementsMatch(t, []string{"a", "b"}, listedNames(t, s))

	names = []string{"b", "d"}
	require.NoError(t, s.Refresh(context.Background()))
	assert.ElementsMatch(t, []string{"b", "d"}, listedNames(t, s))
}

func TestRefreshFailureKeepsTools(t *testing.T) {
	fail := false
	load := func(ctx context.Context) ([]*tools.Descriptor, error) {
		if fail {
			return nil, errors.New("listing service down")
		}
		return staticLoader("a")(ctx)
	}
	s := New(&echoExecutor{}, load, Config{})
	require.NoError(t, s.Refresh(context.Background()))

	fail = true
	assert.ErrorContains(t, s.Refresh(context.Background()), "listing service down")
	assert.Equal(t, []string{"a"}, listedNames(t, s))
}

func TestToolCallGoesThroughExecutor(t *testing.T) {
	exec := &echoExecutor{}
	s := New(exec, staticLoader("a"), Config{})
	require.NoError(t, s.Refresh(context.Background()))

	reply := rpc(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"a","arguments":{"id":"42"}}}`)
	result, ok := reply["result"].(map[string]interface{})
	require.True(t, ok, "%v", reply)
	content := result["content"].([]interface{})
	require.Len(t, content, 1)
	assert.Equal(t, "text", content[0].(map[string]interface{})["type"])
	assert.Equal(t, `{"tool":"a"}`, content[0].(map[string]interface{})["text"])
	assert.Equal(t, map[string]interface{}{"tool": "a"}, result["structuredContent"])
	assert.Equal(t, map[string]interface{}{"id": "42"}, exec.args)
}

type failingExecutor struct {
	err error
}

func (e *failingExecutor) Execute(ctx context.Context, d *tools.Descriptor, args map[string]interface{}) (*executor.Result, error) {
	return nil, e.err
}

func TestToolCallErrorKeepsExecutorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"invalid params", jsonrpc.InvalidParams("Missing required path parameter: id"), "jsonrpc error -32602: Missing required path parameter: id"},
		{"plain error", errors.New("dial tcp: refused"), "jsonrpc error -32603: dial tcp: refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(&failingExecutor{err: tt.err}, staticLoader("a"), Config{})
			require.NoError(t, s.Refresh(context.Background()))

			reply := rpc(t, s, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"a","arguments":{}}}`)
			rpcErr, ok := reply["error"].(map[string]interface{})
			require.True(t, ok, "%v", reply)
			assert.Equal(t, float64(mcp.INTERNAL_ERROR), rpcErr["code"])
			assert.Equal(t, tt.want, rpcErr["message"])
		})
	}
}

func TestToCallToolResult(t *testing.T) {
	r := &executor.Result{
		IsError: true,
		Content: []executor.Content{
			{Type: executor.ContentText, Text: "hello"},
			{Type: executor.ContentImage, Data: "aW1n", MIMEType: "image/png"},
			{Type: executor.ContentAudio, Data: "YXVk", MIMEType: "audio/wav"},
			{Type: executor.ContentResource, Resource: &executor.ResourceContents{URI: "urn:apimcp:blob:1", MIMEType: "application/pdf", Blob: "cGRm"}},
		},
	}
	out := ToCallToolResult(r)
	assert.True(t, out.IsError)
	require.Len(t, out.Content, 4)

	text, ok := out.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "hello", text.Text)

	image, ok := out.Content[1].(mcp.ImageContent)
	require.True(t, ok)
	assert.Equal(t, "image/png", image.MIMEType)

	audio, ok := out.Content[2].(mcp.AudioContent)
	require.True(t, ok)
	assert.Equal(t, "YXVk", audio.Data)

	embedded, ok := out.Content[3].(mcp.EmbeddedResource)
	require.True(t, ok)
	blob, ok := embedded.Resource.(mcp.BlobResourceContents)
	require.True(t, ok)
	assert.Equal(t, "urn:apimcp:blob:1", blob.URI)
	assert.Nil(t, out.StructuredContent)
}
