package oauth

import (
	"strings"
	"time"
)

// DefaultRefreshBuffer is how long before expiry a cached token is renewed
const DefaultRefreshBuffer = 30 * time.Second

// ClientCredentialsConfig configures the client credentials grant
type ClientCredentialsConfig struct {
	ClientID     string   `json:"client_id,omitempty" yaml:"clientId"`
	ClientSecret string   `json:"client_secret,omitempty" yaml:"clientSecret"`
	TokenURL     string   `json:"token_url,omitempty" yaml:"tokenUrl"`
	Scopes       []string `json:"scopes,omitempty" yaml:"scopes"`

	// RefreshBuffer renews the token this long before it expires
	RefreshBuffer time.Duration `json:"refresh_buffer,omitempty" yaml:"refreshBuffer"`
}

// TokenURLFor returns the token endpoint served under a base URL
func TokenURLFor(baseURL string) string {
	return strings.TrimSuffix(baseURL, "/") + "/token"
}

// SetDefaults sets default values for optional fields
func (c *ClientCredentialsConfig) SetDefaults() {
	if c.RefreshBuffer == 0 {
		c.RefreshBuffer = DefaultRefreshBuffer
	}
}

// Validate checks if the configuration is usable
func (c *ClientCredentialsConfig) Validate() error {
	if c.TokenURL == "" {
		return ErrMissingTokenURL
	}
	if c.ClientID == "" {
		return ErrMissingClientID
	}
	if c.ClientSecret == "" {
		return ErrMissingClientSecret
	}
	return nil
}
