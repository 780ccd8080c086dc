// Package memory provides an in-process ProfileRepository for local development and tests.
// It enforces the same subject uniqueness the PostgreSQL schema does.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/upb/svc-users/models"
	"github.com/upb/svc-users/repositories"
)

// ProfileRepository stores profiles keyed by subject
type ProfileRepository struct {
	mu       sync.RWMutex
	profiles map[string]*models.UserProfile
	now      func() time.Time
}

// NewProfileRepository creates an empty repository
func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{
		profiles: make(map[string]*models.UserProfile),
		now:      time.Now,
	}
}

// GetBySubject retrieves a copy of the stored profile
func (r *ProfileRepository) GetBySubject(ctx context.Context, subject string) (*models.UserProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[subject]
	if !ok {
		return nil, fmt.Errorf("profile for subject %s: %w", subject, repositories.ErrNotFound)
	}
	return p.Clone(), nil
}

// Create stores a copy of the profile unless the subject is already taken
func (r *ProfileRepository) Create(ctx context.Context, profile *models.UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[profile.Subject]; ok {
		return fmt.Errorf("profile for subject %s: %w", profile.Subject, repositories.ErrDuplicate)
	}
	r.profiles[profile.Subject] = profile.Clone()
	return nil
}

// UpdateBySubject applies the update and returns a copy of the result
func (r *ProfileRepository) UpdateBySubject(ctx context.Context, subject string, update models.ProfileUpdate) (*models.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[subject]
	if !ok {
		return nil, fmt.Errorf("profile for subject %s: %w", subject, repositories.ErrNotFound)
	}
	update.Apply(p, r.now().UTC())
	return p.Clone(), nil
}

// HealthCheck always succeeds
func (r *ProfileRepository) HealthCheck(context.Context) error {
	return nil
}

// Len returns the number of stored profiles
func (r *ProfileRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}
