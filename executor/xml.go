package executor

import (
	"sort"
	"strconv"
	"strings"

	"github.com/manishiitg/apimcp/oas"
)

// XMLHeader starts every transcoded document
const XMLHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

var xmlEscaper = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	"&", "&amp;",
	"'", "&apos;",
	`"`, "&quot;",
)

// EncodeXML transcodes a JSON value into an XML document following the
// OpenAPI xml annotations (name, attribute, wrapped, namespace, prefix) of
// schema. References in schema resolve against doc.
func EncodeXML(v interface{}, schema, doc *oas.Object) string {
	e := &xmlEncoder{doc: doc}
	return XMLHeader + e.element(v, schema, "", 0)
}

type xmlEncoder struct {
	doc *oas.Object
}

type xmlChild struct {
	name   string
	key    string
	schema *oas.Object
}

func (e *xmlEncoder) resolve(schema *oas.Object) *oas.Object {
	return oas.Deref(e.doc, schema)
}

func (e *xmlEncoder) element(data interface{}, schema *oas.Object, propName string, level int) string {
	schema = e.resolve(schema)
	info := schema.Object("xml")
	indent := strings.Repeat("  ", level)

	name := firstNonEmpty(info.String("name"), propName, "root")
	name = prefixed(info.String("prefix"), name)

	var attrs, content strings.Builder
	if ns := info.String("namespace"); ns != "" {
		attrs.WriteString(namespaceAttr(info.String("prefix"), ns))
	}

	obj, isObj := data.(map[string]interface{})
	props := schema.Object("properties")

	var children []xmlChild
	for _, key := range props.Keys() {
		ps := e.resolve(props.Object(key))
		px := ps.Object("xml")
		if px.Bool("attribute") {
			if v, ok := obj[key]; ok && isObj {
				attrs.WriteString(" " + firstNonEmpty(px.String("name"), key) + `="` + xmlEscaper.Replace(scalarString(v)) + `"`)
			}
			continue
		}
		children = append(children, xmlChild{name: firstNonEmpty(px.String("name"), key), key: key, schema: ps})
	}
	// Free-form objects: every key becomes an element
	if props.Len() == 0 && isObj {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			children = append(children, xmlChild{name: k, key: k})
		}
	}

	if len(children) > 0 {
		for _, c := range children {
			v, ok := obj[c.key]
			if !ok {
				continue
			}
			cx := c.schema.Object("xml")
			switch cv := v.(type) {
			case []interface{}:
				items := c.schema.Object("items")
				if cx.Bool("wrapped") {
					prefix := cx.String("prefix")
					wrapper := prefixed(prefix, c.name)
					ns := ""
					if uri := cx.String("namespace"); uri != "" {
						ns = namespaceAttr(prefix, uri)
					}
					content.WriteString("\n" + indent + "  <" + wrapper + ns + ">")
					for _, item := range cv {
						content.WriteString("\n" + e.element(item, items, c.name, level+2))
					}
					content.WriteString("\n" + indent + "  </" + wrapper + ">")
				} else {
					for _, item := range cv {
						content.WriteString("\n" + e.element(item, items, c.name, level+1))
					}
				}
			case map[string]interface{}:
				content.WriteString("\n" + e.element(cv, c.schema, c.name, level+1))
			default:
				tag := prefixed(cx.String("prefix"), c.name)
				content.WriteString("\n" + indent + "  <" + tag + ">" + xmlEscaper.Replace(scalarString(cv)) + "</" + tag + ">")
			}
		}
	} else if !isObj {
		if _, isArr := data.([]interface{}); !isArr {
			content.WriteString(xmlEscaper.Replace(scalarString(data)))
		}
	}

	body := content.String()
	if strings.Contains(body, "\n") {
		return indent + "<" + name + attrs.String() + ">" + body + "\n" + indent + "</" + name + ">"
	}
	return indent + "<" + name + attrs.String() + ">" + body + "</" + name + ">"
}

func prefixed(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + ":" + name
}

func namespaceAttr(prefix, uri string) string {
	attr := "xmlns"
	if prefix != "" {
		attr += ":" + prefix
	}
	return " " + attr + `="` + xmlEscaper.Replace(uri) + `"`
}

// scalarString renders a JSON scalar the way it reads in text: numbers
// without exponent, nil as empty
func scalarString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return jsonString(t)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
