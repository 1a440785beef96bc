// Package specsource retrieves OpenAPI spec content per product from a spec
// listing service or a local directory, with TTL caching.
package specsource

import (
	"context"
)

// Spec is the raw content of one OpenAPI document of a product
type Spec struct {
	Product string
	Path    string
	Content string
}

// Lister enumerates products and their specs
type Lister interface {
	ListProducts(ctx context.Context) ([]string, error)
	// ListSpecPaths returns the spec paths of a product, usable as the path
	// argument of GetSpecContent.
	ListSpecPaths(ctx context.Context, product string) ([]string, error)
	GetSpecContent(ctx context.Context, product, specPath string) (string, error)
}

// TokenProvider supplies the bearer token for the listing service
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}
