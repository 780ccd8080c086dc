package oidc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// allowedAlgorithms lists the asymmetric signing methods accepted from the issuer
var allowedAlgorithms = []string{
	"RS256", "RS384", "RS512",
	"PS256", "PS384", "PS512",
	"ES256", "ES384", "ES512",
	"EdDSA",
}

// VerifierConfig holds configuration for Verifier
type VerifierConfig struct {
	Issuer    string
	Audience  string
	ClockSkew time.Duration
}

// Verifier validates bearer tokens issued by a single OIDC issuer
type Verifier struct {
	issuer   string
	audience string
	skew     time.Duration
	keys     KeyResolver
	parser   *jwt.Parser
	logger   *zap.Logger
	now      func() time.Time
}

// NewVerifier creates a new token verifier
func NewVerifier(cfg VerifierConfig, keys KeyResolver, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		skew:     cfg.ClockSkew,
		keys:     keys,
		parser: jwt.NewParser(
			jwt.WithValidMethods(allowedAlgorithms),
			jwt.WithoutClaimsValidation(),
		),
		logger: logger,
		now:    time.Now,
	}
}

// Verify checks the token and returns its claims verbatim.
// Rejections are *AuthError; key set download failures are *KeyFetchError.
func (v *Verifier) Verify(ctx context.Context, raw string) (TokenClaims, error) {
	if raw == "" {
		return nil, newAuthError(ReasonMalformed, errors.New("token is empty"))
	}

	unverified, _, err := v.parser.ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, newAuthError(ReasonMalformed, err)
	}
	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		return nil, newAuthError(ReasonMalformed, errors.New("kid header not found"))
	}

	key, err := v.keys.Resolve(ctx, kid)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, newAuthError(ReasonInvalidSignature, err)
		}
		return nil, err
	}

	claims := jwt.MapClaims{}
	if _, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return key, nil
	}); err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, newAuthError(ReasonMalformed, err)
		}
		return nil, newAuthError(ReasonInvalidSignature, err)
	}

	if err := v.validateClaims(claims); err != nil {
		return nil, err
	}

	return TokenClaims(claims), nil
}

func (v *Verifier) validateClaims(claims jwt.MapClaims) error {
	iss, err := claims.GetIssuer()
	if err != nil || iss != v.issuer {
		return newAuthError(ReasonInvalidIssuer, fmt.Errorf("expected %s, got %q", v.issuer, iss))
	}

	now := v.now()

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return newAuthError(ReasonMalformed, err)
	}
	if exp != nil && !now.Before(exp.Add(v.skew)) {
		return newAuthError(ReasonExpired, fmt.Errorf("expired at %s", exp.UTC().Format(time.RFC3339)))
	}

	nbf, err := claims.GetNotBefore()
	if err != nil {
		return newAuthError(ReasonMalformed, err)
	}
	if nbf != nil && nbf.After(now.Add(v.skew)) {
		return newAuthError(ReasonNotYetValid, fmt.Errorf("valid from %s", nbf.UTC().Format(time.RFC3339)))
	}

	if !v.audienceMatches(claims) {
		return newAuthError(ReasonInvalidAudience, fmt.Errorf("audience %s not present", v.audience))
	}

	return nil
}

// audienceMatches accepts the configured audience as the aud string, inside
// the aud list, or as the authorized party
func (v *Verifier) audienceMatches(claims jwt.MapClaims) bool {
	if aud, err := claims.GetAudience(); err == nil {
		for _, a := range aud {
			if a == v.audience {
				return true
			}
		}
	}

	azp, _ := claims["azp"].(string)
	return azp != "" && azp == v.audience
}
