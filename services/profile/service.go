package profile

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/upb/svc-users/models"
	"github.com/upb/svc-users/repositories"
	"github.com/upb/svc-users/services"
	"go.uber.org/zap"
)

// MaxDisplayNameLength matches the display_name column width
const MaxDisplayNameLength = 255

// EventRecorder receives profile lifecycle events
type EventRecorder interface {
	ProfileCreated(profile *models.UserProfile)
	ProfileUpdated(profile *models.UserProfile)
}

// Service keeps local profiles in step with the identity provider
type Service struct {
	repo   repositories.ProfileRepository
	events EventRecorder
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new profile service
func NewService(repo repositories.ProfileRepository, events EventRecorder, logger *zap.Logger) *Service {
	if events == nil {
		events = nopRecorder{}
	}
	return &Service{
		repo:   repo,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// Reconcile returns the caller's profile, creating it on first sight and
// syncing email and role when the token disagrees with the stored record
func (s *Service) Reconcile(ctx context.Context, identity models.AuthIdentity) (*models.UserProfile, error) {
	if identity.Subject == "" {
		return nil, services.ErrMissingSubject
	}

	existing, err := s.repo.GetBySubject(ctx, identity.Subject)
	if err == nil {
		return s.syncClaims(ctx, existing, identity)
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, services.WrapInternal("failed to load profile", err)
	}

	profile := models.NewUserProfile(identity, s.now().UTC())
	if err := s.repo.Create(ctx, profile); err != nil {
		if !errors.Is(err, repositories.ErrDuplicate) {
			return nil, services.WrapInternal("failed to create profile", err)
		}

		// another request created it first
		s.logger.Debug("profile created concurrently, re-reading",
			zap.String("sub", identity.Subject))
		winner, err := s.repo.GetBySubject(ctx, identity.Subject)
		if err != nil {
			return nil, services.WrapInternal("failed to load profile", err)
		}
		return s.syncClaims(ctx, winner, identity)
	}

	s.logger.Info("profile created",
		zap.String("id", profile.ID.String()),
		zap.String("sub", profile.Subject))
	s.events.ProfileCreated(profile)

	return profile, nil
}

// UpdateDisplayName sets the caller-chosen display name
func (s *Service) UpdateDisplayName(ctx context.Context, subject, name string) (*models.UserProfile, error) {
	if subject == "" {
		return nil, services.ErrMissingSubject
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, services.ErrEmptyDisplayName.WithCause(nil).WithDetail("display_name", "required")
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLength {
		return nil, services.ErrDisplayNameTooLong.WithCause(nil).WithDetail("display_name", "max")
	}

	profile, err := s.repo.UpdateBySubject(ctx, subject, models.ProfileUpdate{DisplayName: &name})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrProfileNotFound.WithCause(err)
		}
		return nil, services.WrapInternal("failed to update profile", err)
	}

	s.logger.Info("profile display name updated", zap.String("sub", subject))
	s.events.ProfileUpdated(profile)

	return profile, nil
}

// syncClaims writes email and role when they diverge from the token.
// display_name belongs to the user and is never overwritten here.
func (s *Service) syncClaims(ctx context.Context, profile *models.UserProfile, identity models.AuthIdentity) (*models.UserProfile, error) {
	update := claimDrift(profile, identity)
	if update.IsEmpty() {
		return profile, nil
	}

	updated, err := s.repo.UpdateBySubject(ctx, identity.Subject, update)
	if err != nil {
		return nil, services.WrapInternal("failed to sync profile", err)
	}

	s.logger.Debug("profile synced from token claims",
		zap.String("sub", identity.Subject),
		zap.Bool("email_changed", update.Email != nil),
		zap.Bool("role_changed", update.Role != nil))
	return updated, nil
}

func claimDrift(profile *models.UserProfile, identity models.AuthIdentity) models.ProfileUpdate {
	var update models.ProfileUpdate
	if identity.Email != nil && *identity.Email != "" &&
		(profile.Email == nil || *profile.Email != *identity.Email) {
		update.Email = identity.Email
	}
	if identity.Role != nil && (profile.Role == nil || *profile.Role != *identity.Role) {
		update.Role = identity.Role
	}
	return update
}

type nopRecorder struct{}

func (nopRecorder) ProfileCreated(*models.UserProfile) {}
func (nopRecorder) ProfileUpdated(*models.UserProfile) {}
