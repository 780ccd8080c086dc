package oidc

import (
	"github.com/upb/svc-users/models"
)

// TokenClaims is the verified claim set of a bearer token
type TokenClaims map[string]any

// Subject returns the sub claim when it is a non-empty string
func (c TokenClaims) Subject() (string, bool) {
	sub, ok := c["sub"].(string)
	return sub, ok && sub != ""
}

// RealmRoles returns realm_access.roles, ignoring non-string entries
func (c TokenClaims) RealmRoles() []string {
	access, ok := c["realm_access"].(map[string]any)
	if !ok {
		return nil
	}
	list, ok := access["roles"].([]any)
	if !ok {
		return nil
	}

	roles := make([]string, 0, len(list))
	for _, r := range list {
		if s, ok := r.(string); ok {
			roles = append(roles, s)
		}
	}
	return roles
}

func (c TokenClaims) stringClaim(name string) *string {
	s, ok := c[name].(string)
	if !ok {
		return nil
	}
	return &s
}

// ExtractIdentity maps verified claims onto the identity used for profile reconciliation
func ExtractIdentity(claims TokenClaims) (models.AuthIdentity, error) {
	sub, ok := claims.Subject()
	if !ok {
		return models.AuthIdentity{}, ErrMissingSubject
	}

	display := claims.stringClaim("preferred_username")
	if display == nil {
		display = claims.stringClaim("name")
	}

	return models.AuthIdentity{
		Subject:     sub,
		Email:       claims.stringClaim("email"),
		DisplayName: display,
		Role:        models.RoleFromRealmRoles(claims.RealmRoles()),
	}, nil
}
