package executor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"mime"
	"strings"
)

// Content types of a tool result
const (
	ContentText     = "text"
	ContentImage    = "image"
	ContentAudio    = "audio"
	ContentResource = "resource"
)

// Result is the tools/call result object
type Result struct {
	Content           []Content              `json:"content"`
	StructuredContent map[string]interface{} `json:"structuredContent,omitempty"`
	IsError           bool                   `json:"isError"`
}

// Content is one entry of a result's content array
type Content struct {
	Type     string            `json:"type"`
	Text     string            `json:"text,omitempty"`
	Data     string            `json:"data,omitempty"`
	MIMEType string            `json:"mimeType,omitempty"`
	Resource *ResourceContents `json:"resource,omitempty"`
}

// ResourceContents is an embedded binary resource
type ResourceContents struct {
	URI      string `json:"uri"`
	Name     string `json:"name,omitempty"`
	Title    string `json:"title,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// TextResult wraps a single text content
func TextResult(text string, isError bool) *Result {
	return &Result{Content: []Content{{Type: ContentText, Text: text}}, IsError: isError}
}

// Text joins all text contents, for logging and plain-text consumers
func (r *Result) Text() string {
	if r == nil {
		return ""
	}
	var parts []string
	for _, c := range r.Content {
		if c.Type == ContentText {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}

var binaryPrefixes = []string{"image/", "audio/", "video/", "font/"}

var binaryTypes = map[string]bool{
	"application/octet-stream":      true,
	"application/pdf":               true,
	"application/zip":               true,
	"application/gzip":              true,
	"application/msword":            true,
	"application/vnd.ms-excel":      true,
	"application/vnd.ms-powerpoint": true,
	"application/x-bzip":            true,
	"application/x-bzip2":           true,
	"application/x-7z-compressed":   true,
	"application/x-tar":             true,
	"application/java-archive":      true,
}

// IsBinaryMIMEType reports whether a media type is carried as base64
func IsBinaryMIMEType(mediaType string) bool {
	for _, p := range binaryPrefixes {
		if strings.HasPrefix(mediaType, p) {
			return true
		}
	}
	return binaryTypes[mediaType]
}

// mediaType strips parameters and lowercases a Content-Type value
func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	return strings.ToLower(mt)
}

// NormalizeResponse maps an HTTP response onto a tool result. Status codes
// of 400 and above set IsError; the body is kept either way.
func NormalizeResponse(status int, contentType string, body []byte) *Result {
	result := &Result{IsError: status >= 400}
	mt := mediaType(contentType)

	switch {
	case strings.HasPrefix(mt, "image/"):
		result.Content = []Content{{Type: ContentImage, Data: base64.StdEncoding.EncodeToString(body), MIMEType: mt}}
		return result
	case strings.HasPrefix(mt, "audio/"):
		result.Content = []Content{{Type: ContentAudio, Data: base64.StdEncoding.EncodeToString(body), MIMEType: mt}}
		return result
	case IsBinaryMIMEType(mt):
		blob := base64.StdEncoding.EncodeToString(body)
		result.Content = []Content{{
			Type: ContentResource,
			Resource: &ResourceContents{
				URI:      BlobURI(blob),
				Name:     "downloaded-file",
				Title:    "Downloaded File",
				MIMEType: mt,
				Blob:     blob,
			},
		}}
		return result
	}

	result.Content = []Content{{Type: ContentText, Text: string(body)}}
	var parsed interface{}
	if isJSON(mt) && len(body) > 0 && json.Unmarshal(body, &parsed) == nil && parsed != nil {
		if obj, ok := parsed.(map[string]interface{}); ok {
			result.StructuredContent = obj
		} else {
			result.StructuredContent = map[string]interface{}{"result": parsed}
		}
	}
	return result
}

func isJSON(mt string) bool {
	return mt == MediaJSON || strings.HasSuffix(mt, "+json")
}

// BlobURI names a binary payload by the hash of its base64 form
func BlobURI(blob string) string {
	h := fnv.New32a()
	h.Write([]byte(blob))
	return fmt.Sprintf("urn:apimcp:blob:%08x", h.Sum32())
}
