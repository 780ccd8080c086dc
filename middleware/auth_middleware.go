package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/upb/svc-users/oidc"
	"github.com/upb/svc-users/utils"
	"go.uber.org/zap"
)

// TokenVerifier defines the interface for verifying bearer tokens
type TokenVerifier interface {
	// Verify checks the token and returns its claims
	Verify(ctx context.Context, token string) (oidc.TokenClaims, error)
}

// FailureRecorder counts rejected tokens by reason
type FailureRecorder interface {
	VerificationFailed(reason string)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	verifier TokenVerifier
	failures FailureRecorder
	logger   *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(verifier TokenVerifier, failures FailureRecorder, logger *zap.Logger) *AuthMiddleware {
	if failures == nil {
		failures = nopFailureRecorder{}
	}
	return &AuthMiddleware{
		verifier: verifier,
		failures: failures,
		logger:   logger,
	}
}

// RequireAuth is a middleware that requires a valid bearer token.
// Every verification failure is answered with the same invalid_token body;
// the internal reason is only logged and counted.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token, ok := extractBearerToken(r)
		if !ok {
			m.logger.Debug("missing bearer token",
				zap.String("request_id", requestID))
			_ = utils.WriteMissingToken(w)
			return
		}

		claims, err := m.verifier.Verify(ctx, token)
		if err != nil {
			reason, ok := oidc.ReasonOf(err)
			if !ok {
				reason = "unknown"
			}
			m.failures.VerificationFailed(string(reason))

			if reason == oidc.ReasonKeyFetch {
				m.logger.Error("token verification failed",
					zap.String("request_id", requestID),
					zap.String("reason", string(reason)),
					zap.Error(err))
			} else {
				m.logger.Warn("token verification failed",
					zap.String("request_id", requestID),
					zap.String("reason", string(reason)),
					zap.Error(err))
			}
			_ = utils.WriteInvalidToken(w)
			return
		}

		ctx = WithClaims(ctx, claims)

		sub, _ := claims.Subject()
		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("sub", sub))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractBearerToken extracts the Bearer token from the Authorization header
// extractBearerToken reports whether the header uses the bearer scheme.
// A bearer header with a blank token is still handed to the verifier.
func extractBearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}

	return strings.TrimSpace(parts[1]), true
}

type nopFailureRecorder struct{}

func (nopFailureRecorder) VerificationFailed(string) {}
