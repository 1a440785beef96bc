package specsource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Dir serves specs from a local directory: each subdirectory is a product
// and each .yaml, .yml or .json file inside it is a spec.
type Dir struct {
	Root string
}

// ListProducts returns the subdirectory names, sorted
func (d Dir) ListProducts(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.Root)
	if err != nil {
		return nil, fmt.Errorf("read spec dir: %w", err)
	}
	var products []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			products = append(products, e.Name())
		}
	}
	sort.Strings(products)
	return products, nil
}

// ListSpecPaths returns the spec files of a product relative to its
// directory, using forward slashes
func (d Dir) ListSpecPaths(ctx context.Context, product string) ([]string, error) {
	if product == "" {
		return nil, ErrMissingProduct
	}
	root := filepath.Join(d.Root, product)
	var paths []string
	err := filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml", ".json":
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			paths = append(paths, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list specs of %s: %w", product, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// GetSpecContent reads one spec file. Paths escaping the product
// directory are rejected.
func (d Dir) GetSpecContent(ctx context.Context, product, specPath string) (string, error) {
	if product == "" {
		return "", ErrMissingProduct
	}
	if specPath == "" {
		return "", ErrMissingSpecPath
	}
	rel := filepath.FromSlash(specPath)
	if !filepath.IsLocal(product) || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("specsource: invalid spec path %q", specPath)
	}
	data, err := os.ReadFile(filepath.Join(d.Root, product, rel))
	if err != nil {
		return "", fmt.Errorf("read spec: %w", err)
	}
	return string(data), nil
}
