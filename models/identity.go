package models

// AuthIdentity is the caller identity derived from verified token claims.
// It is never persisted directly; it feeds profile reconciliation.
type AuthIdentity struct {
	Subject     string
	Email       *string
	DisplayName *string
	Role        *ProfileRole
}

// RoleFromRealmRoles picks the profile role from a realm role list.
// Professor wins over student when both are present.
func RoleFromRealmRoles(roles []string) *ProfileRole {
	var hasStudent bool
	for _, r := range roles {
		switch ProfileRole(r) {
		case RoleProfessor:
			role := RoleProfessor
			return &role
		case RoleStudent:
			hasStudent = true
		}
	}
	if hasStudent {
		role := RoleStudent
		return &role
	}
	return nil
}
