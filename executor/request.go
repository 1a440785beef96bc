package executor

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/manishiitg/apimcp/flatten"
	"github.com/manishiitg/apimcp/jsonrpc"
	"github.com/manishiitg/apimcp/tools"
)

var placeholderPattern = regexp.MustCompile(`\{([^{}/]+)\}`)

// Media types with dedicated body encoders
const (
	MediaJSON = "application/json"
	MediaForm = "application/x-www-form-urlencoded"
	MediaXML  = "application/xml"
)

// substitutePath fills every {name} placeholder of the template from args.
// A placeholder without a value, or one not declared as a path parameter
// when the tool is strict about it, is an InvalidParams error.
func substitutePath(exec *tools.Execution, args map[string]interface{}) (string, error) {
	declared := map[string]bool{}
	for _, p := range exec.ParamsIn(tools.InPath) {
		declared[p.Name] = true
	}

	var failure error
	path := placeholderPattern.ReplaceAllStringFunc(exec.PathTemplate, func(match string) string {
		if failure != nil {
			return match
		}
		name := match[1 : len(match)-1]
		if exec.StrictPathParams && !declared[name] {
			failure = jsonrpc.InvalidParams("Path parameter '%s' is not a recognized parameter.", name)
			return match
		}
		v, ok := args[name]
		if !ok || v == nil {
			failure = jsonrpc.InvalidParams("Missing required path parameter: '%s'", name)
			return match
		}
		return url.PathEscape(scalarString(v))
	})
	if failure != nil {
		return "", failure
	}
	return path, nil
}

// encodeURIComponent percent-encodes a query component with %20 for spaces
func encodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// buildQuery renders the declared query parameters present in args, in
// declared order. Array values repeat the key. The result carries its
// leading "?" or is empty.
func buildQuery(exec *tools.Execution, args map[string]interface{}) string {
	var parts []string
	for _, p := range exec.ParamsIn(tools.InQuery) {
		v, ok := args[p.Name]
		if !ok || v == nil {
			continue
		}
		values, isArr := v.([]interface{})
		if !isArr {
			values = []interface{}{v}
		}
		for _, item := range values {
			parts = append(parts, encodeURIComponent(p.Name)+"="+encodeURIComponent(scalarString(item)))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "?" + strings.Join(parts, "&")
}

// BuildURL joins the target server, the substituted path and the query
func BuildURL(exec *tools.Execution, args map[string]interface{}) (string, error) {
	path, err := substitutePath(exec, args)
	if err != nil {
		return "", err
	}
	u := tools.CombinePaths(exec.TargetServer, path)
	q := buildQuery(exec, args)
	if q != "" && strings.Contains(u, "?") {
		q = "&" + q[1:]
	}
	return u + q, nil
}

// EncodeForm flattens v into application/x-www-form-urlencoded text.
// Nested keys are joined with dots and arrays repeat their key.
func EncodeForm(v interface{}) string {
	pairs := flatten.Pairs("", v, flatten.ArrayRepeat)
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, encodeURIComponent(p.Key)+"="+encodeURIComponent(scalarString(p.Value)))
	}
	return strings.Join(parts, "&")
}

// encodeBody picks the body encoding: strings verbatim, then form, then XML
// when a request schema exists, else indented JSON. It returns the bytes and
// the Content-Type to send.
func encodeBody(exec *tools.Execution, v interface{}) ([]byte, string, error) {
	contentType := exec.ContentType
	if contentType == "" {
		contentType = MediaJSON
	}
	mt := mediaType(contentType)

	if s, ok := v.(string); ok {
		return []byte(s), contentType, nil
	}
	switch {
	case mt == MediaForm:
		return []byte(EncodeForm(v)), contentType, nil
	case isXML(mt) && exec.RequestSchema != nil:
		return []byte(EncodeXML(v, exec.RequestSchema, exec.SchemaDoc)), contentType, nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, "", jsonrpc.InvalidParams("Request body cannot be encoded as JSON: %v", err)
	}
	return data, contentType, nil
}

func isXML(mt string) bool {
	return mt == MediaXML || mt == "text/xml" || strings.HasSuffix(mt, "+xml")
}

func jsonString(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
