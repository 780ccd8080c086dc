package models

import (
	"time"

	"github.com/google/uuid"
)

// ProfileRole is the coarse role mirrored from the identity provider's realm roles
type ProfileRole string

const (
	RoleProfessor ProfileRole = "professor"
	RoleStudent   ProfileRole = "student"
)

// UserProfile is the local record mirroring a subset of token claims.
// Subject is immutable once the profile is created.
type UserProfile struct {
	ID          uuid.UUID    `json:"id" db:"id"`
	Subject     string       `json:"oidc_sub" db:"oidc_sub"`
	Email       *string      `json:"email" db:"email"`
	DisplayName *string      `json:"display_name" db:"display_name"`
	Role        *ProfileRole `json:"role" db:"role"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the UserProfile model
func (UserProfile) TableName() string {
	return "user_profiles"
}

// NewUserProfile creates a profile for a subject seen for the first time
func NewUserProfile(identity AuthIdentity, now time.Time) *UserProfile {
	return &UserProfile{
		ID:          uuid.New(),
		Subject:     identity.Subject,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		Role:        identity.Role,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Clone returns a deep copy so callers can't mutate shared state
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	out := *p
	if p.Email != nil {
		email := *p.Email
		out.Email = &email
	}
	if p.DisplayName != nil {
		name := *p.DisplayName
		out.DisplayName = &name
	}
	if p.Role != nil {
		role := *p.Role
		out.Role = &role
	}
	return &out
}

// ProfileUpdate lists the mutable fields of a profile. Nil fields are left untouched.
type ProfileUpdate struct {
	Email       *string
	Role        *ProfileRole
	DisplayName *string
}

// IsEmpty reports whether the update would change nothing
func (u ProfileUpdate) IsEmpty() bool {
	return u.Email == nil && u.Role == nil && u.DisplayName == nil
}

// Apply copies the non-nil fields of the update onto the profile
func (u ProfileUpdate) Apply(p *UserProfile, now time.Time) {
	if u.Email != nil {
		email := *u.Email
		p.Email = &email
	}
	if u.Role != nil {
		role := *u.Role
		p.Role = &role
	}
	if u.DisplayName != nil {
		name := *u.DisplayName
		p.DisplayName = &name
	}
	p.UpdatedAt = now
}
