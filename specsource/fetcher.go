package specsource

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	loggerv2 "github.com/manishiitg/apimcp/logger/v2"
)

// DefaultConcurrency bounds how many products are fetched at once
const DefaultConcurrency = 4

// Fetcher reads all specs of all products through a Lister and a Cache
type Fetcher struct {
	lister      Lister
	cache       *Cache
	logger      loggerv2.Logger
	concurrency int
}

// NewFetcher creates a Fetcher. A nil cache disables caching.
func NewFetcher(lister Lister, cache *Cache, logger loggerv2.Logger) *Fetcher {
	if cache == nil {
		cache = NewCache(0)
	}
	if logger == nil {
		logger = loggerv2.NewNoop()
	}
	return &Fetcher{lister: lister, cache: cache, logger: logger, concurrency: DefaultConcurrency}
}

// WithConcurrency sets how many products are fetched in parallel
func (f *Fetcher) WithConcurrency(n int) *Fetcher {
	if n > 0 {
		f.concurrency = n
	}
	return f
}

// GetSpec returns the content of one spec, served from the cache when a
// fresh entry exists
func (f *Fetcher) GetSpec(ctx context.Context, product, specPath string) (string, error) {
	if content, ok := f.cache.Get(product, specPath); ok {
		f.logger.Debug("Spec cache hit", loggerv2.String("product", product), loggerv2.String("spec", specPath))
		return content, nil
	}
	content, err := f.lister.GetSpecContent(ctx, product, specPath)
	if err != nil {
		return "", err
	}
	f.cache.Put(product, specPath, content)
	return content, nil
}

// FetchAll lists every product and fetches all of its specs. A product
// whose listing or any spec fails is logged and skipped entirely; the
// other products are unaffected. Results keep product then spec order.
// Only a failure to list the products is returned.
func (f *Fetcher) FetchAll(ctx context.Context) ([]Spec, error) {
	products, err := f.lister.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	f.logger.Info("Fetching product specs", loggerv2.Int("products", len(products)))

	results := make([][]Spec, len(products))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, product := range products {
		g.Go(func() error {
			specs, err := f.fetchProduct(gctx, product)
			if err != nil {
				f.logger.Error("Failed to process specs for product, skipping it", err, loggerv2.String("product", product))
				return nil
			}
			results[i] = specs
			return nil
		})
	}
	_ = g.Wait()

	var all []Spec
	for _, specs := range results {
		all = append(all, specs...)
	}
	f.logger.Info("Finished fetching product specs", loggerv2.Int("specs", len(all)))
	return all, ctx.Err()
}

func (f *Fetcher) fetchProduct(ctx context.Context, product string) ([]Spec, error) {
	paths, err := f.lister.ListSpecPaths(ctx, product)
	if err != nil {
		return nil, err
	}
	specs := make([]Spec, 0, len(paths))
	for _, path := range paths {
		content, err := f.GetSpec(ctx, product, path)
		if err != nil {
			return nil, fmt.Errorf("fetch spec %s: %w", path, err)
		}
		specs = append(specs, Spec{Product: product, Path: path, Content: content})
	}
	return specs, nil
}
