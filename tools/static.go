package tools

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/manishiitg/apimcp/jsonrpc"
	loggerv2 "github.com/manishiitg/apimcp/logger/v2"
	"github.com/manishiitg/apimcp/oas"
)

// StaticCategory is the category given to tools declared in a static map
const StaticCategory = "static"

// LoadStaticMap validates a declarative tool map (tool name to REST target)
// and converts it into descriptors in declaration order.
//
// Every structural problem is reported, each naming its tool, joined into a
// single error whose members are *jsonrpc.Error values with the internal
// error code.
func LoadStaticMap(m *oas.Object, logger loggerv2.Logger) ([]*Descriptor, error) {
	if logger == nil {
		logger = loggerv2.NewNoop()
	}
	if m == nil {
		return nil, jsonrpc.InternalError("Tool configuration failed: mcpToolsInfo must be a non-null object.")
	}

	var errs []error
	var out []*Descriptor
	for _, name := range m.Keys() {
		raw, _ := m.Get(name)
		cfg, ok := raw.(*oas.Object)
		if !ok || cfg == nil {
			errs = append(errs, staticError(name, "Configuration must be an object."))
			continue
		}
		if problems := validateStaticTool(name, cfg); len(problems) > 0 {
			errs = append(errs, problems...)
			continue
		}
		out = append(out, staticDescriptor(name, cfg, logger))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func staticError(tool, msg string) error {
	return jsonrpc.InternalError("Tool '%s': %s", tool, msg)
}

func validateStaticTool(name string, cfg *oas.Object) []error {
	var errs []error
	fail := func(format string, args ...interface{}) {
		errs = append(errs, staticError(name, fmt.Sprintf(format, args...)))
	}

	_, direct := cfg.Get("directReturn")
	if direct {
		if _, ok := mustGet(cfg, "directReturn").(string); !ok {
			fail("directReturn must be a string if provided.")
		}
	}

	target, hasTarget := cfg.Get("target")
	switch {
	case !hasTarget && !direct:
		fail("Missing required top-level key: target.")
	case hasTarget:
		t, ok := target.(*oas.Object)
		if !ok || t == nil {
			fail("target must be an object.")
			break
		}
		for _, key := range []string{"url", "pathSuffix", "verb"} {
			v, ok := mustGet(t, key).(string)
			switch {
			case !ok:
				fail("target is missing required string property: %s.", key)
			case strings.TrimSpace(v) == "":
				fail("target.%s must not be empty.", key)
			}
		}
		if h, ok := t.Get("headers"); ok {
			headers, ok := h.(*oas.Object)
			if !ok || headers == nil {
				fail("target.headers must be an object if provided.")
			} else {
				for _, k := range headers.Keys() {
					if _, ok := mustGet(headers, k).(string); !ok {
						fail("All values in target.headers must be strings (Header key: %s).", k)
					}
				}
			}
		}
	}

	if s, ok := cfg.Get("schemas"); ok {
		schemas, ok := s.(*oas.Object)
		if !ok || schemas == nil {
			fail("schemas must be an object if provided.")
		} else {
			for _, key := range []string{"request", "input"} {
				if v, ok := schemas.Get(key); ok {
					if o, ok := v.(*oas.Object); !ok || o == nil {
						fail("schemas.%s must be an object if provided.", key)
					}
				}
			}
		}
	}

	if p, ok := cfg.Get("inputParams"); ok {
		params, ok := p.(*oas.Object)
		if !ok || params == nil {
			fail("inputParams must be an object if provided.")
			return errs
		}
		if b, ok := params.Get("body"); ok {
			if _, ok := b.(string); !ok {
				fail("inputParams.body must be a string if provided.")
			}
		}
		for _, key := range []string{"path", "query", "headers"} {
			v, ok := params.Get(key)
			if !ok {
				continue
			}
			list, ok := v.([]interface{})
			if !ok {
				fail("inputParams.%s must be an array if provided.", key)
				continue
			}
			for _, item := range list {
				if _, ok := item.(string); !ok {
					fail("All elements in inputParams.%s array must be strings.", key)
					break
				}
			}
		}
	}
	return errs
}

// staticDescriptor converts a validated tool entry
func staticDescriptor(name string, cfg *oas.Object, logger loggerv2.Logger) *Descriptor {
	d := &Descriptor{
		Name:        name,
		DisplayName: name,
		Description: cfg.String("description"),
		Category:    StaticCategory,
	}
	if d.Description == "" {
		d.Description = fmt.Sprintf("Calls the %s tool", name)
	}

	if v, ok := mustGet(cfg, "directReturn").(string); ok {
		d.Execution = Execution{Kind: ExecDirectReturn, DirectValue: v}
		d.Input = &oas.Shape{Kind: oas.KindObject}
		return d
	}

	target := cfg.Object("target")
	exec := Execution{
		Kind:             ExecREST,
		TargetServer:     target.String("url"),
		Method:           strings.ToUpper(target.String("verb")),
		PathTemplate:     target.String("pathSuffix"),
		StrictPathParams: true,
		SchemaDoc:        cfg,
	}

	headers := target.Object("headers")
	for _, k := range headers.Keys() {
		v := headers.String(k)
		switch strings.ToLower(k) {
		case "content-type":
			exec.ContentType = v
		case "accept":
			exec.Accept = v
		default:
			if exec.Headers == nil {
				exec.Headers = map[string]string{}
			}
			exec.Headers[http.CanonicalHeaderKey(k)] = v
		}
	}

	params := cfg.Object("inputParams")
	for _, loc := range []struct {
		key string
		in  Location
	}{{"path", InPath}, {"query", InQuery}, {"headers", InHeader}} {
		for _, item := range params.Array(loc.key) {
			exec.Params = append(exec.Params, Param{
				Name:     item.(string),
				In:       loc.in,
				Required: loc.in == InPath,
				Shape:    &oas.Shape{Kind: oas.KindAny},
			})
		}
	}
	if body := params.String("body"); body != "" {
		exec.HasBody = true
		exec.BodyParam = body
	}

	schemas := cfg.Object("schemas")
	mapper := oas.NewMapper(cfg, logger)
	exec.RequestSchema = schemas.Object("request")

	d.Execution = exec
	if input := schemas.Object("input"); input != nil {
		d.Input = mapper.Map(input, nil)
		return d
	}

	// No declared input schema: one string property per parameter, plus the body
	input := &oas.Shape{Kind: oas.KindObject}
	for _, p := range exec.Params {
		input.Properties = append(input.Properties, oas.Property{
			Name:     p.Name,
			Required: p.Required,
			Shape:    &oas.Shape{Kind: oas.KindAny, Description: fmt.Sprintf("%s parameter %s", p.In, p.Name)},
		})
	}
	if exec.HasBody {
		body := oas.Any()
		if exec.RequestSchema != nil {
			body = mapper.Map(exec.RequestSchema, nil)
		}
		if body.Description == "" {
			body.Description = "Request body payload"
		}
		input.Properties = append(input.Properties, oas.Property{Name: exec.BodyKey(), Shape: body})
	}
	d.Input = input
	return d
}

func mustGet(o *oas.Object, k string) interface{} {
	v, _ := o.Get(k)
	return v
}

// CombinePaths joins a base URL and a path suffix with exactly one slash
func CombinePaths(base, suffix string) string {
	base = strings.TrimSpace(base)
	suffix = strings.TrimSpace(suffix)
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(suffix, "/")
}
