package oauth

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrMissingTokenURL     = errors.New("oauth: missing token URL (base_url)")
	ErrMissingClientID     = errors.New("oauth: missing client ID")
	ErrMissingClientSecret = errors.New("oauth: missing client secret")

	// Token errors
	ErrNoAccessToken = errors.New("oauth: token response has no access token")
)

// TokenError is a failed token request. Status is zero when the token
// endpoint never answered.
type TokenError struct {
	Status  int
	Message string
	Err     error
}

func (e *TokenError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("oauth: token request error: %s", e.Message)
	}
	return fmt.Sprintf("oauth: token error (status %d): %s", e.Status, e.Message)
}

func (e *TokenError) Unwrap() error {
	return e.Err
}
