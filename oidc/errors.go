// Package oidc verifies bearer tokens issued by an external OpenID Connect provider
// and maps their claims onto a profile identity.
package oidc

import (
	"errors"
	"fmt"
)

// Reason classifies why a token was rejected
type Reason string

const (
	ReasonMalformed        Reason = "malformed"
	ReasonInvalidSignature Reason = "invalid_signature"
	ReasonInvalidIssuer    Reason = "invalid_issuer"
	ReasonExpired          Reason = "expired"
	ReasonNotYetValid      Reason = "not_yet_valid"
	ReasonInvalidAudience  Reason = "invalid_audience"
	// ReasonKeyFetch is only used as a metrics label for *KeyFetchError
	ReasonKeyFetch Reason = "key_fetch_failed"
)

var (
	// ErrKeyNotFound is returned when a key id is still unknown after a refresh
	ErrKeyNotFound = errors.New("signing key not found")

	// ErrMissingSubject is returned when verified claims carry no usable subject
	ErrMissingSubject = errors.New("token has no subject")
)

// AuthError is a classified token rejection
type AuthError struct {
	Reason Reason
	Err    error
}

// Error implements the error interface
func (e *AuthError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

// Unwrap returns the underlying error
func (e *AuthError) Unwrap() error {
	return e.Err
}

// KeyFetchError reports a failure to download or parse the issuer key set
type KeyFetchError struct {
	URL string
	Err error
}

// Error implements the error interface
func (e *KeyFetchError) Error() string {
	return fmt.Sprintf("fetch key set %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error
func (e *KeyFetchError) Unwrap() error {
	return e.Err
}

func newAuthError(reason Reason, err error) error {
	return &AuthError{Reason: reason, Err: err}
}

// ReasonOf returns the rejection reason carried by err, if any
func ReasonOf(err error) (Reason, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Reason, true
	}
	var fetchErr *KeyFetchError
	if errors.As(err, &fetchErr) {
		return ReasonKeyFetch, true
	}
	return "", false
}
