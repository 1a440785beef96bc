package specsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	loggerv2 "github.com/manishiitg/apimcp/logger/v2"
)

// ErrMissingProduct is returned when a product name is empty
var ErrMissingProduct = errors.New("specsource: product name is required")

// ErrMissingSpecPath is returned when a spec path is empty
var ErrMissingSpecPath = errors.New("specsource: spec path is required")

// APIError is a non-2xx answer from the listing service
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("spec listing API error (status %d)", e.Status)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Status == http.StatusUnauthorized {
		msg += " (token might be expired or invalid)"
	}
	return msg
}

// StringList decodes either a single string or an array of strings
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = StringList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected string or array of strings: %w", err)
	}
	*s = many
	return nil
}

// ProductList is the answer of GET /products
type ProductList struct {
	Products struct {
		Name StringList `json:"Name"`
	} `json:"Products"`
}

// Attribute is a name/value pair attached to an operation config
type Attribute struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

// OperationConfig links a product to one spec in the API hub
type OperationConfig struct {
	APISource  string      `json:"apiSource"`
	Attributes []Attribute `json:"attributes"`
}

// Attribute returns the value of the named attribute, or ""
func (c OperationConfig) Attribute(name string) string {
	for _, a := range c.Attributes {
		if a.Name == name {
			return a.Value
		}
	}
	return ""
}

// OperationConfigs decodes either a single config or an array of configs
type OperationConfigs []OperationConfig

func (o *OperationConfigs) UnmarshalJSON(data []byte) error {
	if trimmed := strings.TrimSpace(string(data)); strings.HasPrefix(trimmed, "{") {
		var one OperationConfig
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*o = OperationConfigs{one}
		return nil
	}
	var many []OperationConfig
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*o = many
	return nil
}

// SpecList is the answer of GET /products/{name}/specs
type SpecList struct {
	Specs struct {
		OperationConfigs OperationConfigs `json:"operationConfigs"`
		SpecLocation     string           `json:"SpecLocation"`
	} `json:"Specs"`
}

// SpecPaths builds the spec path of every config carrying the hub_api,
// hub_version and hub_spec attributes. Configs missing any of them are
// returned as skipped.
func (l SpecList) SpecPaths() (paths []string, skipped int) {
	loc := l.Specs.SpecLocation
	for _, c := range l.Specs.OperationConfigs {
		api, version, spec := c.Attribute("hub_api"), c.Attribute("hub_version"), c.Attribute("hub_spec")
		if api == "" || version == "" || spec == "" {
			skipped++
			continue
		}
		paths = append(paths, fmt.Sprintf("%s/apis/%s/versions/%s/specs/%s", loc, api, version, spec))
	}
	return paths, skipped
}

// Client talks to the spec listing service over REST
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenProvider
	logger     loggerv2.Logger
}

// NewClient creates a listing service client. tokens may be nil for an
// unauthenticated service.
func NewClient(baseURL string, httpClient *http.Client, tokens TokenProvider, logger loggerv2.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = loggerv2.NewNoop()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		tokens:     tokens,
		logger:     logger,
	}
}

// ListProducts calls GET /products
func (c *Client) ListProducts(ctx context.Context) ([]string, error) {
	var list ProductList
	if err := c.getJSON(ctx, "/products", &list); err != nil {
		return nil, err
	}
	return list.Products.Name, nil
}

// ListSpecs calls GET /products/{name}/specs
func (c *Client) ListSpecs(ctx context.Context, product string) (*SpecList, error) {
	if product == "" {
		return nil, ErrMissingProduct
	}
	var list SpecList
	if err := c.getJSON(ctx, "/products/"+url.PathEscape(product)+"/specs", &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// ListSpecPaths lists the specs of a product and builds their paths
func (c *Client) ListSpecPaths(ctx context.Context, product string) ([]string, error) {
	list, err := c.ListSpecs(ctx, product)
	if err != nil {
		return nil, err
	}
	if list.Specs.SpecLocation == "" {
		c.logger.Warn("Skipping specs of product with no SpecLocation", loggerv2.String("product", product))
		return nil, nil
	}
	paths, skipped := list.SpecPaths()
	if skipped > 0 {
		c.logger.Warn("Could not construct spec path for some operation configs, missing attributes",
			loggerv2.String("product", product),
			loggerv2.Int("skipped", skipped))
	}
	return paths, nil
}

// GetSpecContent calls GET /products/{name}/specs/{specPath}. The spec path
// contains slashes and is sent as is.
func (c *Client) GetSpecContent(ctx context.Context, product, specPath string) (string, error) {
	if product == "" {
		return "", ErrMissingProduct
	}
	if specPath == "" {
		return "", ErrMissingSpecPath
	}
	body, err := c.get(ctx, "/products/"+url.PathEscape(product)+"/specs/"+strings.TrimPrefix(specPath, "/"))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug("Spec listing request", loggerv2.String("url", req.URL.String()))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("no response from spec listing API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusUnauthorized && c.tokens != nil {
			c.logger.Warn("Received 401 from spec listing API, invalidating cached token")
			c.tokens.Invalidate()
		}
		return nil, &APIError{Status: resp.StatusCode, Message: errorDetails(body)}
	}
	return body, nil
}

// errorDetails picks a readable message out of an error body
func errorDetails(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(body))
}
