package catalog

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/manishiitg/apimcp/oas"
	"github.com/manishiitg/apimcp/specsource"
	"github.com/manishiitg/apimcp/tools"
)

const petsSpec = `
openapi: 3.0.3
info: {title: Pets, version: "1.0"}
servers:
  - url: https://{region}.pets.example.com/v1
    variables:
      region: {default: eu}
components:
  securitySchemes:
    oidc:
      type: openIdConnect
      openIdConnectUrl: https://id.example.com/.well-known/openid-configuration
  schemas:
    Pet:
      type: object
      required: [name]
      properties:
        name: {type: string}
        age: {type: integer}
paths:
  /pets/{petId}:
    parameters:
      - name: petId
        in: path
        schema: {type: string}
      - name: verbose
        in: query
        schema: {type: boolean}
    get:
      operationId: get-pet
      summary: Get a pet
      parameters:
        - name: verbose
          in: query
          required: true
          description: Include history
          schema: {type: boolean}
        - name: session
          in: cookie
          schema: {type: string}
      responses:
        "200": {description: ok}
    put:
      description: Replace a pet
      security:
        - oidc: []
      requestBody:
        required: true
        content:
          application/xml:
            schema: {$ref: '#/components/schemas/Pet'}
          application/json:
            schema: {$ref: '#/components/schemas/Pet'}
      responses:
        "200": {description: ok}
`

func buildPets(t *testing.T) []*tools.Descriptor {
	t.Helper()
	descs := NewBuilder(nil).Build([]specsource.Spec{
		{Product: "pets", Path: "pets.yaml", Content: petsSpec},
		{Product: "broken", Path: "list.yaml", Content: "- not\n- a mapping\n"},
	})
	require.Len(t, descs, 2)
	return descs
}

func TestMethodID(t *testing.T) {
	tests := []struct {
		operationID, verb, path string
		want                    string
	}{
		{"getUserById", "get", "/users/{id}", "api_getUserById"},
		{"", "get", "/users/{id}", "api_get__users_id"},
		{"list pets!", "get", "/pets", "api_list_pets"},
		{"", "delete", "/a//b", "api_delete__a_b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MethodID(tt.operationID, tt.verb, tt.path))
	}
	assert.Equal(t, "api_retail", CategoryFor("retail"))
	assert.Equal(t, "ApiGetDocumentRequest", schemaNameFromTool("api_get-document"))
}

func TestBuildOperation(t *testing.T) {
	get := buildPets(t)[0]

	assert.Equal(t, "api_get_pet", get.Name)
	assert.Equal(t, "Get a pet", get.DisplayName)
	assert.Equal(t, "Get a pet", get.Description)
	assert.Equal(t, "api_pets", get.Category)
	assert.Equal(t, "pets", get.Product)

	exec := get.Execution
	assert.Equal(t, tools.ExecREST, exec.Kind)
	assert.Equal(t, "https://eu.pets.example.com/v1", exec.TargetServer)
	assert.Equal(t, "GET", exec.Method)
	assert.Equal(t, "/pets/{petId}", exec.PathTemplate)
	assert.False(t, exec.HasBody)
	assert.Nil(t, exec.Security)

	// the cookie parameter is dropped and the operation-level verbose
	// replaces the path-level one in place
	require.Len(t, exec.Params, 2)
	assert.Equal(t, "petId", exec.Params[0].Name)
	assert.Equal(t, tools.InPath, exec.Params[0].In)
	assert.True(t, exec.Params[0].Required)
	assert.Equal(t, "verbose", exec.Params[1].Name)
	assert.True(t, exec.Params[1].Required)
	assert.Equal(t, oas.KindBoolean, exec.Params[1].Shape.Kind)
	assert.Equal(t, "Include history", exec.Params[1].Shape.Description)

	assert.JSONEq(t, `{
		"type":"object",
		"properties":{
			"petId":{"type":"string"},
			"verbose":{"type":"boolean","description":"Include history"}
		},
		"required":["petId","verbose"]
	}`, string(get.InputSchema()))
}

func TestBuildRequestBodyAndOpenIDConnect(t *testing.T) {
	put := buildPets(t)[1]

	assert.Equal(t, "api_put__pets_petId", put.Name)
	assert.Equal(t, "PUT /pets/{petId}", put.DisplayName)
	assert.Equal(t, "Replace a pet", put.Description)

	exec := put.Execution
	assert.True(t, exec.HasBody)
	assert.True(t, exec.BodyRequired)
	assert.Equal(t, "application/json", exec.ContentType)
	assert.Equal(t, tools.DefaultBodyParam, exec.BodyParam)
	require.NotNil(t, exec.RequestSchema)
	assert.True(t, exec.Security.IsOpenIDConnect())

	body, ok := put.Input.Property("body")
	require.True(t, ok)
	assert.True(t, body.Required)
	assert.Equal(t, oas.KindObject, body.Shape.Kind)
	name, ok := body.Shape.Property("name")
	require.True(t, ok)
	assert.True(t, name.Required)

	auth, ok := put.Input.Property(tools.UserAuthorizationParam)
	require.True(t, ok)
	assert.False(t, auth.Required)
	assert.Equal(t, userAuthorizationDescription, auth.Shape.Description)
}

func TestBuildWithoutServers(t *testing.T) {
	descs := NewBuilder(nil).Build([]specsource.Spec{{
		Product: "p",
		Path:    "s.json",
		Content: `{"openapi":"3.0.0","paths":{"/ping":{"post":{"requestBody":{"content":{"text/plain":{}}}}}}}`,
	}})
	require.Len(t, descs, 1)
	d := descs[0]
	assert.Equal(t, "api_post__ping", d.Name)
	assert.Empty(t, d.Execution.TargetServer)
	assert.Equal(t, "text/plain", d.Execution.ContentType)

	body, ok := d.Input.Property("body")
	require.True(t, ok)
	assert.Equal(t, oas.KindAny, body.Shape.Kind)
	assert.Equal(t, "Request body payload", body.Shape.Description)
}

func TestLint(t *testing.T) {
	valid := `
openapi: 3.0.3
info: {title: Pets, version: "1.0"}
paths:
  /pets:
    get:
      operationId: listPets
      responses:
        "200": {description: ok}
`
	findings := Lint(context.Background(), []specsource.Spec{
		{Product: "p", Path: "ok.yaml", Content: valid},
		{Product: "p", Path: "bad.yaml", Content: "openapi: 3.0.3\npaths: {}\n"},
	})
	require.Len(t, findings, 1)
	assert.Equal(t, "bad.yaml", findings[0].Path)
	assert.Contains(t, findings[0].String(), "p/bad.yaml: validate spec")
}

func TestExport(t *testing.T) {
	descs := buildPets(t)
	data, err := Export(descs, "Pets", "https://gateway.example.com/mcp")
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, "3.0.3", doc["openapi"])

	paths := doc["paths"].(map[string]interface{})
	require.Len(t, paths, 2)
	post := paths["/tools/api_get_pet"].(map[string]interface{})["post"].(map[string]interface{})
	assert.Equal(t, "api_get_pet", post["operationId"])
	assert.Equal(t, "Get a pet", post["summary"])
	assert.Equal(t, []interface{}{"api_pets"}, post["tags"])

	schemas := doc["components"].(map[string]interface{})["schemas"].(map[string]interface{})
	schema := schemas["ApiGetPetRequest"].(map[string]interface{})
	assert.Equal(t, "object", schema["type"])
	assert.Contains(t, schema["properties"], "verbose")

	schemes := doc["components"].(map[string]interface{})["securitySchemes"].(map[string]interface{})
	assert.Equal(t, "x-api-key", schemes["apiKeyHeader"].(map[string]interface{})["name"])

	// the export is itself a valid OpenAPI document
	assert.NoError(t, LintDocument(context.Background(), data))
}

func TestToOpenAPISchemaRewritesNullable(t *testing.T) {
	raw := json.RawMessage(`{"properties":{"n":{"anyOf":[{"type":"string"},{"type":"null"}],"description":"d"}}}`)
	schema := toOpenAPISchema(raw)
	assert.Equal(t, "object", schema["type"])
	n := schema["properties"].(map[string]interface{})["n"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"type": "string", "nullable": true, "description": "d"}, n)

	assert.Equal(t, "object", toOpenAPISchema(json.RawMessage(`null`))["type"])
}
