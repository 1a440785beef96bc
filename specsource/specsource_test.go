package specsource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct {
	token       string
	invalidated atomic.Int32
}

func (s *staticTokens) Token(ctx context.Context) (string, error) { return s.token, nil }
func (s *staticTokens) Invalidate()                               { s.invalidated.Add(1) }

func newListingServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/products", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"Products":{"Name":["retail","broken"]}}`))
	})
	mux.HandleFunc("/products/retail/specs", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Specs":{"SpecLocation":"projects/p/locations/l","operationConfigs":[
			{"attributes":[{"Name":"hub_api","Value":"orders"},{"Name":"hub_version","Value":"v1"},{"Name":"hub_spec","Value":"oas"}]},
			{"attributes":[{"Name":"hub_api","Value":"incomplete"}]}
		]}}`))
	})
	mux.HandleFunc("/products/broken/specs", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"expired"}`))
	})
	mux.HandleFunc("/products/retail/specs/projects/p/locations/l/apis/orders/versions/v1/specs/oas", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write([]byte("openapi: 3.0.3\n"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientListing(t *testing.T) {
	srv := newListingServer(t)
	tokens := &staticTokens{token: "tok"}
	c := NewClient(srv.URL+"/", srv.Client(), tokens, nil)
	ctx := context.Background()

	products, err := c.ListProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"retail", "broken"}, products)

	paths, err := c.ListSpecPaths(ctx, "retail")
	require.NoError(t, err)
	assert.Equal(t, []string{"projects/p/locations/l/apis/orders/versions/v1/specs/oas"}, paths)

	content, err := c.GetSpecContent(ctx, "retail", paths[0])
	require.NoError(t, err)
	assert.Equal(t, "openapi: 3.0.3\n", content)

	_, err = c.ListSpecPaths(ctx, "broken")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Contains(t, apiErr.Error(), "expired")
	assert.Equal(t, int32(1), tokens.invalidated.Load())

	_, err = c.GetSpecContent(ctx, "", "x")
	assert.ErrorIs(t, err, ErrMissingProduct)
}

func TestSingleValueListings(t *testing.T) {
	var products ProductList
	require.NoError(t, products.Products.Name.UnmarshalJSON([]byte(`"solo"`)))
	assert.Equal(t, StringList{"solo"}, products.Products.Name)

	var configs OperationConfigs
	require.NoError(t, configs.UnmarshalJSON([]byte(`{"attributes":[{"Name":"hub_api","Value":"a"}]}`)))
	require.Len(t, configs, 1)
	assert.Equal(t, "a", configs[0].Attribute("hub_api"))
	assert.Empty(t, configs[0].Attribute("hub_spec"))
}

func TestFetchAllSkipsFailingProduct(t *testing.T) {
	srv := newListingServer(t)
	c := NewClient(srv.URL, srv.Client(), &staticTokens{token: "tok"}, nil)

	specs, err := NewFetcher(c, NewCache(time.Minute), nil).FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "retail", specs[0].Product)
	assert.Equal(t, "openapi: 3.0.3\n", specs[0].Content)
}

type countingLister struct {
	fetches atomic.Int32
	failOn  string
}

func (l *countingLister) ListProducts(ctx context.Context) ([]string, error) {
	return []string{"a", "b", "c"}, nil
}

func (l *countingLister) ListSpecPaths(ctx context.Context, product string) ([]string, error) {
	return []string{"one.yaml", "two.yaml"}, nil
}

func (l *countingLister) GetSpecContent(ctx context.Context, product, path string) (string, error) {
	l.fetches.Add(1)
	if product+"/"+path == l.failOn {
		return "", errors.New("boom")
	}
	return product + "/" + path, nil
}

func TestFetchAllDiscardsPartialProduct(t *testing.T) {
	lister := &countingLister{failOn: "b/two.yaml"}
	specs, err := NewFetcher(lister, nil, nil).WithConcurrency(2).FetchAll(context.Background())
	require.NoError(t, err)

	var got []string
	for _, s := range specs {
		got = append(got, s.Content)
	}
	assert.Equal(t, []string{"a/one.yaml", "a/two.yaml", "c/one.yaml", "c/two.yaml"}, got)
}

func TestGetSpecUsesCache(t *testing.T) {
	lister := &countingLister{}
	cache := NewCache(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	f := NewFetcher(lister, cache, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.GetSpec(ctx, "a", "one.yaml")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), lister.fetches.Load())

	now = now.Add(time.Minute)
	_, err := f.GetSpec(ctx, "a", "one.yaml")
	require.NoError(t, err)
	assert.Equal(t, int32(2), lister.fetches.Load(), "expired entry is refetched")
}

func TestCacheTTL(t *testing.T) {
	disabled := NewCache(0)
	disabled.Put("p", "s", "x")
	_, ok := disabled.Get("p", "s")
	assert.False(t, ok)
	assert.Equal(t, 0, disabled.Len())

	assert.Equal(t, DefaultCacheTTL, NewCache(-1).TTL())

	c := NewCache(time.Second)
	c.Put("p", "a::b", "1")
	c.Put("p::a", "b", "2")
	v, _ := c.Get("p", "a::b")
	assert.NotEmpty(t, v)
}

func TestDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "retail", "nested"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "retail", "orders.yaml"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "retail", "nested", "pets.json"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "retail", "README.md"), []byte("c"), 0o644))

	d := Dir{Root: root}
	ctx := context.Background()

	products, err := d.ListProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"empty", "retail"}, products)

	paths, err := d.ListSpecPaths(ctx, "retail")
	require.NoError(t, err)
	assert.Equal(t, []string{"nested/pets.json", "orders.yaml"}, paths)

	content, err := d.GetSpecContent(ctx, "retail", "nested/pets.json")
	require.NoError(t, err)
	assert.Equal(t, "b", content)

	_, err = d.GetSpecContent(ctx, "retail", "../../etc/passwd")
	assert.Error(t, err)
}
