package oauth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"

	loggerv2 "github.com/manishiitg/apimcp/logger/v2"
)

// Manager acquires and caches a client credentials bearer token. Concurrent
// callers that find the token stale share a single token request.
type Manager struct {
	config     *ClientCredentialsConfig
	logger     loggerv2.Logger
	ccConfig   *clientcredentials.Config
	httpClient *http.Client
	now        func() time.Time

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time // zero when the server sent no expires_in

	flight singleflight.Group
}

// NewManager creates a token manager. A nil httpClient uses
// http.DefaultClient.
func NewManager(cfg *ClientCredentialsConfig, httpClient *http.Client, logger loggerv2.Logger) *Manager {
	if logger == nil {
		logger = loggerv2.NewNoop()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	cfg.SetDefaults()

	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		logger.Warn("Client ID or client secret not provided, token acquisition will fail")
	}

	return &Manager{
		config: cfg,
		logger: logger,
		ccConfig: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		httpClient: httpClient,
		now:        time.Now,
	}
}

// Token returns a valid access token, requesting a new one when none is
// cached or the cached one expires within the refresh buffer.
func (m *Manager) Token(ctx context.Context) (string, error) {
	if token, ok := m.cached(); ok {
		return token, nil
	}

	// The shared request is detached from any single caller's cancellation;
	// each caller still stops waiting when its own context ends.
	ch := m.flight.DoChan("token", func() (interface{}, error) {
		if token, ok := m.cached(); ok {
			return token, nil
		}
		return m.fetch(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// AuthHeaders returns the Authorization header for outbound calls
func (m *Manager) AuthHeaders(ctx context.Context) (map[string]string, error) {
	token, err := m.Token(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]string{"Authorization": "Bearer " + token}, nil
}

// Invalidate clears the cached token so the next call requests a new one
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.accessToken != "" {
		m.logger.Info("Invalidating cached access token")
	}
	m.accessToken = ""
	m.expiresAt = time.Time{}
}

// GetTokenStatus reports whether a token is cached and when it expires
func (m *Manager) GetTokenStatus() (valid bool, expiresAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accessToken != "", m.expiresAt
}

func (m *Manager) cached() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.accessToken == "" {
		return "", false
	}
	if m.expiresAt.IsZero() || m.now().Before(m.expiresAt.Add(-m.config.RefreshBuffer)) {
		return m.accessToken, true
	}
	return "", false
}

func (m *Manager) fetch(ctx context.Context) (string, error) {
	m.logger.Debug("Fetching new access token", loggerv2.String("token_url", m.config.TokenURL))

	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	tok, err := m.ccConfig.Token(ctx)
	if err == nil && tok.AccessToken == "" {
		err = ErrNoAccessToken
	}
	if err != nil {
		m.Invalidate()
		tokenErr := toTokenError(err)
		m.logger.Error("Failed to fetch access token", tokenErr, loggerv2.Int("status", tokenErr.Status))
		return "", tokenErr
	}

	m.mu.Lock()
	m.accessToken = tok.AccessToken
	m.expiresAt = time.Time{}
	if !tok.Expiry.IsZero() {
		m.expiresAt = m.now().Add(time.Until(tok.Expiry))
	}
	expiresAt := m.expiresAt
	m.mu.Unlock()

	fields := []loggerv2.Field{loggerv2.Bool("expires", !expiresAt.IsZero())}
	if !expiresAt.IsZero() {
		fields = append(fields, loggerv2.String("expires_at", expiresAt.Format(time.RFC3339)))
	}
	m.logger.Info("Obtained access token", fields...)
	return tok.AccessToken, nil
}

func toTokenError(err error) *TokenError {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		msg := re.ErrorDescription
		if msg == "" {
			msg = re.ErrorCode
		}
		if msg == "" {
			msg = strings.TrimSpace(string(re.Body))
		}
		return &TokenError{Status: status, Message: msg, Err: err}
	}
	return &TokenError{Message: err.Error(), Err: err}
}
