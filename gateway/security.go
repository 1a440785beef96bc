package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/manishiitg/apimcp/config"
)

// Where callers present their API key
const (
	APIKeyHeader = "x-api-key"
	APIKeyQuery  = "apikey"
)

// Product is the caller identity an API key resolves to
type Product struct {
	Name string
	// AllowedTools is the raw allow-list string
	AllowedTools string
}

type productKey struct {
	key     []byte
	product *Product
}

// KeyStore resolves API keys to products
type KeyStore struct {
	keys []productKey
}

// NewKeyStore indexes every key of every configured product
func NewKeyStore(products []config.ProductConfig) *KeyStore {
	s := &KeyStore{}
	for _, p := range products {
		product := &Product{Name: p.Name, AllowedTools: p.MCPTools}
		for _, k := range p.APIKeys {
			s.keys = append(s.keys, productKey{key: []byte(k), product: product})
		}
	}
	return s
}

// Lookup finds the product owning key. Every stored key is compared in
// constant time so the answer does not leak through timing.
func (s *KeyStore) Lookup(key string) (*Product, bool) {
	if s == nil || key == "" {
		return nil, false
	}
	var found *Product
	for _, pk := range s.keys {
		if subtle.ConstantTimeCompare([]byte(key), pk.key) == 1 {
			found = pk.product
		}
	}
	return found, found != nil
}

// APIKeyFromRequest reads the caller's key from the x-api-key header, the
// apikey query parameter, or an "Authorization: Bearer <key>" header, in
// that order.
func APIKeyFromRequest(r *http.Request) string {
	if k := r.Header.Get(APIKeyHeader); k != "" {
		return k
	}
	if k := r.URL.Query().Get(APIKeyQuery); k != "" {
		return k
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
