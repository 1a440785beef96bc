// Package catalog turns OpenAPI documents into tool descriptors.
package catalog

import (
	"fmt"
	"strings"

	loggerv2 "github.com/manishiitg/apimcp/logger/v2"
	"github.com/manishiitg/apimcp/oas"
	"github.com/manishiitg/apimcp/specsource"
	"github.com/manishiitg/apimcp/tools"
)

// httpMethods are the path item keys that declare operations
var httpMethods = map[string]bool{
	"get": true, "put": true, "post": true, "delete": true,
	"options": true, "head": true, "patch": true, "trace": true,
}

const userAuthorizationDescription = `Optional: Provide a Bearer token for OpenID Connect authentication (e.g., "Bearer <token>"). If not provided, the configured credentials are used.`

// Builder builds tool descriptors from fetched specs
type Builder struct {
	logger loggerv2.Logger
}

// NewBuilder creates a Builder. A nil logger is replaced with a noop one.
func NewBuilder(logger loggerv2.Logger) *Builder {
	if logger == nil {
		logger = loggerv2.NewNoop()
	}
	return &Builder{logger: logger}
}

// Build returns one descriptor per operation across all specs, in spec,
// path and verb order. A spec that cannot be parsed is logged and skipped.
// Name collisions are left for the registry to resolve.
func (b *Builder) Build(specs []specsource.Spec) []*tools.Descriptor {
	var out []*tools.Descriptor
	for _, spec := range specs {
		doc, err := oas.Parse([]byte(spec.Content))
		if err != nil {
			b.logger.Error("Failed to parse spec, skipping it", err,
				loggerv2.String("product", spec.Product),
				loggerv2.String("spec", spec.Path))
			continue
		}
		descs := b.BuildDocument(spec.Product, spec.Path, doc)
		b.logger.Debug("Built tools from spec",
			loggerv2.String("product", spec.Product),
			loggerv2.String("spec", spec.Path),
			loggerv2.Int("tools", len(descs)))
		out = append(out, descs...)
	}
	return out
}

// BuildRegistry builds the descriptors and indexes them
func (b *Builder) BuildRegistry(specs []specsource.Spec) *tools.Registry {
	return tools.NewRegistry(b.Build(specs), b.logger)
}

// BuildDocument builds the descriptors of one parsed document
func (b *Builder) BuildDocument(product, specPath string, doc *oas.Object) []*tools.Descriptor {
	logger := b.logger.With(loggerv2.String("product", product), loggerv2.String("spec", specPath))
	mapper := oas.NewMapper(doc, logger)
	defaultSecurity := b.findOpenIDConnect(doc, doc.Array("security"))
	targetServer := serverURL(doc)
	if targetServer == "" {
		logger.Warn("Spec declares no servers, its tools cannot be executed")
	}

	var out []*tools.Descriptor
	paths := doc.Object("paths")
	for _, path := range paths.Keys() {
		item := oas.Deref(doc, paths.Object(path))
		if item == nil {
			continue
		}
		pathParams := item.Array("parameters")

		for _, verb := range item.Keys() {
			if !httpMethods[verb] {
				continue
			}
			op := oas.Deref(doc, item.Object(verb))
			if op == nil {
				continue
			}

			d := &tools.Descriptor{
				Name:     MethodID(op.String("operationId"), verb, path),
				Category: CategoryFor(product),
				Product:  product,
				SpecPath: specPath,
			}
			d.DisplayName = op.String("summary")
			if d.DisplayName == "" {
				d.DisplayName = fmt.Sprintf("%s %s", strings.ToUpper(verb), path)
			}
			d.Description = firstNonEmpty(op.String("description"), op.String("summary"),
				fmt.Sprintf("Executes %s on %s", strings.ToUpper(verb), path))

			exec := tools.Execution{
				Kind:         tools.ExecREST,
				TargetServer: targetServer,
				Method:       strings.ToUpper(verb),
				PathTemplate: path,
				SchemaDoc:    doc,
			}
			input := &oas.Shape{Kind: oas.KindObject}

			for _, p := range b.mergeParams(doc, pathParams, op.Array("parameters"), d.Name, logger) {
				param, ok := b.mapParam(mapper, p, logger)
				if !ok {
					continue
				}
				exec.Params = append(exec.Params, param)
				input.SetProperty(oas.Property{Name: param.Name, Required: param.Required, Shape: param.Shape})
			}

			if body := b.mapRequestBody(doc, mapper, op, &exec, d.Name, logger); body != nil {
				input.SetProperty(oas.Property{Name: exec.BodyKey(), Required: exec.BodyRequired, Shape: body})
			}

			exec.Security = defaultSecurity
			if op.Has("security") {
				exec.Security = b.findOpenIDConnect(doc, op.Array("security"))
			}
			if exec.Security.IsOpenIDConnect() {
				input.SetProperty(oas.Property{
					Name:  tools.UserAuthorizationParam,
					Shape: &oas.Shape{Kind: oas.KindString, Description: userAuthorizationDescription},
				})
			}

			d.Execution = exec
			d.Input = input
			out = append(out, d)
		}
	}
	return out
}

// mergeParams resolves path-level then operation-level parameters. An
// operation parameter with the same name and location replaces the path
// one in place.
func (b *Builder) mergeParams(doc *oas.Object, pathLevel, opLevel []interface{}, tool string, logger loggerv2.Logger) []*oas.Object {
	var merged []*oas.Object
	index := map[string]int{}
	for _, raw := range append(append([]interface{}{}, pathLevel...), opLevel...) {
		node, _ := raw.(*oas.Object)
		p := oas.Deref(doc, node)
		if p == nil || p.String("name") == "" {
			ref := ""
			if node != nil {
				ref = node.String("$ref")
			}
			logger.Warn("Skipping unresolved parameter", loggerv2.String("tool", tool), loggerv2.String("ref", ref))
			continue
		}
		key := p.String("in") + ":" + p.String("name")
		if i, ok := index[key]; ok {
			merged[i] = p
			continue
		}
		index[key] = len(merged)
		merged = append(merged, p)
	}
	return merged
}

func (b *Builder) mapParam(mapper *oas.Mapper, p *oas.Object, logger loggerv2.Logger) (tools.Param, bool) {
	var loc tools.Location
	switch p.String("in") {
	case "path":
		loc = tools.InPath
	case "query":
		loc = tools.InQuery
	case "header":
		loc = tools.InHeader
	default:
		logger.Debug("Ignoring parameter location", loggerv2.String("name", p.String("name")), loggerv2.String("in", p.String("in")))
		return tools.Param{}, false
	}

	var schema interface{}
	if s, ok := p.Get("schema"); ok {
		schema = s
	} else if content := p.Object("content"); content.Len() > 0 {
		schema, _ = content.Object(content.Keys()[0]).Get("schema")
	}
	shape := mapper.Map(schema, nil)
	if desc := p.String("description"); desc != "" {
		shape.Description = desc
	}

	return tools.Param{
		Name:     p.String("name"),
		In:       loc,
		Required: p.Bool("required") || loc == tools.InPath,
		Shape:    shape,
	}, true
}

// mapRequestBody fills the body fields of exec and returns the body shape,
// or nil when the operation takes no body. application/json is preferred,
// else the first declared media type.
func (b *Builder) mapRequestBody(doc *oas.Object, mapper *oas.Mapper, op *oas.Object, exec *tools.Execution, tool string, logger loggerv2.Logger) *oas.Shape {
	raw := op.Object("requestBody")
	if raw == nil {
		return nil
	}
	rb := oas.Deref(doc, raw)
	if rb == nil {
		logger.Warn("Skipping unresolved request body", loggerv2.String("tool", tool), loggerv2.String("ref", raw.String("$ref")))
		return nil
	}

	content := rb.Object("content")
	contentType := ""
	if content.Has("application/json") {
		contentType = "application/json"
	} else if content.Len() > 0 {
		contentType = content.Keys()[0]
	}

	exec.HasBody = true
	exec.BodyParam = tools.DefaultBodyParam
	exec.BodyRequired = rb.Bool("required")
	exec.ContentType = contentType

	schema := content.Object(contentType).Object("schema")
	if schema == nil {
		if exec.BodyRequired {
			logger.Warn("Required request body has no schema, accepting any value", loggerv2.String("tool", tool))
		}
		return &oas.Shape{Kind: oas.KindAny, Description: firstNonEmpty(rb.String("description"), "Request body payload")}
	}
	exec.RequestSchema = schema

	shape := mapper.Map(schema, nil)
	shape.Description = firstNonEmpty(rb.String("description"), schema.String("description"), shape.Description, "Request body payload")
	return shape
}

// findOpenIDConnect scans security requirements for an OpenID Connect
// scheme and returns it, or nil.
func (b *Builder) findOpenIDConnect(doc *oas.Object, requirements []interface{}) *tools.Security {
	schemes := doc.Object("components").Object("securitySchemes")
	if schemes == nil {
		return nil
	}
	for _, raw := range requirements {
		req, ok := raw.(*oas.Object)
		if !ok {
			continue
		}
		for _, name := range req.Keys() {
			scheme := oas.Deref(doc, schemes.Object(name))
			if scheme != nil && scheme.String("type") == "openIdConnect" {
				return &tools.Security{
					Type:             "openIdConnect",
					OpenIDConnectURL: scheme.String("openIdConnectUrl"),
				}
			}
		}
	}
	return nil
}

// serverURL returns the first server URL with its variables replaced by
// their defaults
func serverURL(doc *oas.Object) string {
	servers := doc.Array("servers")
	if len(servers) == 0 {
		return ""
	}
	server, ok := servers[0].(*oas.Object)
	if !ok {
		return ""
	}
	url := server.String("url")
	vars := server.Object("variables")
	for _, name := range vars.Keys() {
		if def, ok := vars.Object(name).Get("default"); ok {
			url = strings.ReplaceAll(url, "{"+name+"}", fmt.Sprint(def))
		}
	}
	return url
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
