package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manishiitg/apimcp/jsonrpc"
	"github.com/manishiitg/apimcp/tools"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	require.NoError(t, SetDefaults(v))
	return v
}

func TestLoadSettingsDefaults(t *testing.T) {
	t.Setenv("MCP_CLIENT_ID", "id")
	t.Setenv("MCP_CLIENT_SECRET", "secret")

	s, err := LoadSettings(newViper(t))
	require.NoError(t, err)
	assert.Equal(t, "http://0.0.0.0:8998/mcp", s.BaseURL)
	assert.Equal(t, 300*time.Second, s.CacheTTL)
	assert.Equal(t, ModeStdio, s.Mode)
	assert.Equal(t, 3000, s.Port)
	assert.Equal(t, "mcp-proxy", s.BasePath)
	assert.Equal(t, 30*time.Second, s.HTTPTimeout)
	assert.Equal(t, "*", s.AllowedTools)

	oauthCfg := s.OAuth()
	assert.Equal(t, "http://0.0.0.0:8998/mcp/token", oauthCfg.TokenURL)
	assert.NoError(t, oauthCfg.Validate())
}

func TestLoadSettingsFromEnvironment(t *testing.T) {
	t.Setenv("MCP_SPEC_DIR", "./specs")
	t.Setenv("MCP_MODE", "sse")
	t.Setenv("PORT", "9000")
	t.Setenv("MCP_CACHE_TTL", "1500")
	t.Setenv("MCP_HTTP_TIMEOUT", "2500")
	t.Setenv("BASE_PATH", "/tools/")

	s, err := LoadSettings(newViper(t))
	require.NoError(t, err)
	assert.Equal(t, ModeSSE, s.Mode)
	assert.Equal(t, ":9000", s.ListenAddr())
	assert.Equal(t, 1500*time.Millisecond, s.CacheTTL)
	assert.Equal(t, 2500*time.Millisecond, s.HTTPTimeout)
	assert.Equal(t, "tools", s.BasePath)
}

func TestSettingsValidate(t *testing.T) {
	t.Setenv("MCP_MODE", "http")
	_, err := LoadSettings(newViper(t))
	assert.ErrorContains(t, err, "MCP_MODE")

	t.Setenv("MCP_MODE", "STDIO")
	_, err = LoadSettings(newViper(t))
	assert.ErrorContains(t, err, "MCP_CLIENT_ID")

	t.Setenv("MCP_HTTP_TIMEOUT", "soon")
	_, err = LoadSettings(newViper(t))
	assert.ErrorContains(t, err, "MCP_HTTP_TIMEOUT")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("APIMCP_TEST_DOTENV=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("APIMCP_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("APIMCP_TEST_DOTENV"))
	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}

const gatewayYAML = `
server:
  addr: ":9090"
  basePath: gateway/
  httpTimeout: 5s
products:
  - name: retail
    apiKeys: ["${APIMCP_TEST_KEY}"]
    mcpTools: "*"
  - name: partners
    apiKeys: [partner-key]
    mcpTools: getUser, hello
tools:
  hello:
    directReturn: hi
  getUser:
    target:
      url: https://api.example.com
      pathSuffix: /users/{id}
      verb: GET
    inputParams:
      path: [id]
    schemas:
      request:
        $ref: '#/components/schemas/User'
`

func TestParseGateway(t *testing.T) {
	t.Setenv("APIMCP_TEST_KEY", "retail-key")

	cfg, err := ParseGateway([]byte(gatewayYAML))
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "/gateway", cfg.Server.BasePath)
	assert.Equal(t, 5*time.Second, cfg.Server.HTTPTimeout)
	require.Len(t, cfg.Products, 2)
	assert.Equal(t, []string{"retail-key"}, cfg.Products[0].APIKeys)
	assert.Equal(t, "*", cfg.Products[0].MCPTools)

	descs, err := cfg.StaticTools(nil)
	require.NoError(t, err)
	require.Len(t, descs, 2)
	assert.Equal(t, "hello", descs[0].Name)
	assert.Equal(t, tools.ExecDirectReturn, descs[0].Execution.Kind)
	assert.Equal(t, "getUser", descs[1].Name)
	// $ref is not an environment reference
	assert.Equal(t, "#/components/schemas/User", descs[1].Execution.RequestSchema.String("$ref"))
}

func TestParseGatewayRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing product name", "products:\n  - apiKeys: [k]\n", "products[0].name"},
		{"no keys", "products:\n  - name: a\n", "at least one api key"},
		{"shared key", "products:\n  - {name: a, apiKeys: [k]}\n  - {name: b, apiKeys: [k]}\n", "also used by"},
		{"oauth without secret", "oauth:\n  tokenUrl: https://idp/token\n  clientId: c\n", "oauth"},
		{"bad timeout", "server:\n  httpTimeout: later\n", "httpTimeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGateway([]byte(tt.yaml))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestStaticToolsReportsInvalidMap(t *testing.T) {
	cfg, err := ParseGateway([]byte("tools:\n  broken:\n    target: {url: x}\n"))
	require.NoError(t, err)

	_, err = cfg.StaticTools(nil)
	require.Error(t, err)
	assert.True(t, jsonrpc.IsCode(err, jsonrpc.CodeInternalError))
	assert.ErrorContains(t, err, "Tool 'broken'")

	empty, err := ParseGateway([]byte("server: {addr: ':1'}\n"))
	require.NoError(t, err)
	descs, err := empty.StaticTools(nil)
	assert.NoError(t, err)
	assert.Nil(t, descs)
}
