package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenServer struct {
	*httptest.Server
	requests atomic.Int32
}

func newTokenServer(t *testing.T, handler func(w http.ResponseWriter, n int32)) *tokenServer {
	t.Helper()
	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := ts.requests.Add(1)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "client", user)
		assert.Equal(t, "secret", pass)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		handler(w, n)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestManager(ts *tokenServer) *Manager {
	return NewManager(&ClientCredentialsConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		TokenURL:     TokenURLFor(ts.URL + "/"),
	}, ts.Client(), nil)
}

func TestTokenIsCachedUntilBuffer(t *testing.T) {
	ts := newTokenServer(t, func(w http.ResponseWriter, n int32) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"bearer","expires_in":3600}`, n)
	})
	m := newTestManager(ts)
	now := time.Now()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	tok, err := m.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	// Well inside the window
	now = now.Add(30 * time.Minute)
	tok, err = m.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	assert.Equal(t, int32(1), ts.requests.Load())

	// Within 30s of expiry: exactly one refresh
	now = now.Add(29*time.Minute + 45*time.Second)
	tok, err = m.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)
	assert.Equal(t, int32(2), ts.requests.Load())
}

func TestTokenWithoutExpiryNeverExpiresByTime(t *testing.T) {
	ts := newTokenServer(t, func(w http.ResponseWriter, n int32) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"forever","token_type":"bearer"}`))
	})
	m := newTestManager(ts)
	now := time.Now()
	m.now = func() time.Time { return now }

	_, err := m.Token(context.Background())
	require.NoError(t, err)
	now = now.Add(1000 * time.Hour)
	_, err = m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), ts.requests.Load())

	m.Invalidate()
	valid, _ := m.GetTokenStatus()
	assert.False(t, valid)
	headers, err := m.AuthHeaders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer forever", headers["Authorization"])
	assert.Equal(t, int32(2), ts.requests.Load())
}

func TestConcurrentCallersShareOneRequest(t *testing.T) {
	release := make(chan struct{})
	ts := newTokenServer(t, func(w http.ResponseWriter, n int32) {
		<-release
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"shared","expires_in":3600}`))
	})
	m := newTestManager(ts)

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = m.Token(context.Background())
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "shared", r)
	}
	assert.Equal(t, int32(1), ts.requests.Load())
}

func TestTokenErrorCarriesStatus(t *testing.T) {
	ts := newTokenServer(t, func(w http.ResponseWriter, n int32) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client","error_description":"bad secret"}`))
	})
	m := newTestManager(ts)

	_, err := m.Token(context.Background())
	var tokenErr *TokenError
	require.True(t, errors.As(err, &tokenErr))
	assert.Equal(t, http.StatusUnauthorized, tokenErr.Status)
	assert.Equal(t, "bad secret", tokenErr.Message)
	assert.Contains(t, tokenErr.Error(), "status 401")
}

func TestMissingAccessTokenFails(t *testing.T) {
	ts := newTokenServer(t, func(w http.ResponseWriter, n int32) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token_type":"bearer"}`))
	})
	_, err := newTestManager(ts).Token(context.Background())
	var tokenErr *TokenError
	require.True(t, errors.As(err, &tokenErr))
}

func TestConfigValidate(t *testing.T) {
	cfg := &ClientCredentialsConfig{}
	assert.ErrorIs(t, cfg.Validate(), ErrMissingTokenURL)
	cfg.TokenURL = TokenURLFor("http://x/mcp")
	assert.Equal(t, "http://x/mcp/token", cfg.TokenURL)
	assert.ErrorIs(t, cfg.Validate(), ErrMissingClientID)
	cfg.ClientID = "id"
	assert.ErrorIs(t, cfg.Validate(), ErrMissingClientSecret)
	cfg.ClientSecret = "s"
	assert.NoError(t, cfg.Validate())

	cfg.SetDefaults()
	assert.Equal(t, DefaultRefreshBuffer, cfg.RefreshBuffer)
}
