package repositories

import (
	"context"
	"errors"

	"github.com/upb/svc-users/models"
)

var (
	// ErrNotFound is returned when no record matches the lookup key
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a write violates a uniqueness constraint
	ErrDuplicate = errors.New("duplicate record")
)

// ProfileRepository handles user profile data operations.
// The store enforces uniqueness of the subject; callers rely on ErrDuplicate to detect races.
type ProfileRepository interface {
	// GetBySubject retrieves a profile by OIDC subject
	GetBySubject(ctx context.Context, subject string) (*models.UserProfile, error)

	// Create inserts a new profile, returning ErrDuplicate if the subject already exists
	Create(ctx context.Context, profile *models.UserProfile) error

	// UpdateBySubject applies the non-nil fields of update and returns the stored result
	UpdateBySubject(ctx context.Context, subject string, update models.ProfileUpdate) (*models.UserProfile, error)
}

// HealthChecker reports whether the backing store is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Profiles ProfileRepository
}
