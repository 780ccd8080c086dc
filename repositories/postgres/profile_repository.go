package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/upb/svc-users/models"
	"github.com/upb/svc-users/repositories"
	"go.uber.org/zap"
)

// uniqueViolation is the SQLSTATE PostgreSQL reports for a unique constraint violation
const uniqueViolation pq.ErrorCode = "23505"

const profileColumns = `id, oidc_sub, email, display_name, role, created_at, updated_at`

// ProfileRepository implements the repositories.ProfileRepository interface
type ProfileRepository struct {
	db     *DB
	logger *zap.Logger
	now    func() time.Time
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *DB, logger *zap.Logger) *ProfileRepository {
	return &ProfileRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// GetBySubject retrieves a profile by OIDC subject
func (r *ProfileRepository) GetBySubject(ctx context.Context, subject string) (*models.UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE oidc_sub = $1`

	profile, err := scanProfile(r.db.QueryRowContext(ctx, query, subject))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile for subject %s: %w", subject, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return profile, nil
}

// Create inserts a new profile and refreshes it with the stored row, whose
// timestamps carry the column's microsecond precision
func (r *ProfileRepository) Create(ctx context.Context, profile *models.UserProfile) error {
	query := `
		INSERT INTO user_profiles (id, oidc_sub, email, display_name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + profileColumns

	row := r.db.QueryRowContext(ctx, query,
		profile.ID,
		profile.Subject,
		profile.Email,
		profile.DisplayName,
		profile.Role,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err := scanInto(row, profile); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("profile for subject %s: %w", profile.Subject, repositories.ErrDuplicate)
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}

	r.logger.Debug("profile created",
		zap.String("id", profile.ID.String()),
		zap.String("sub", profile.Subject))
	return nil
}

// UpdateBySubject applies the non-nil fields of update. The subject column is never written.
func (r *ProfileRepository) UpdateBySubject(ctx context.Context, subject string, update models.ProfileUpdate) (*models.UserProfile, error) {
	query := `
		UPDATE user_profiles
		SET email = COALESCE($2, email),
		    role = COALESCE($3, role),
		    display_name = COALESCE($4, display_name),
		    updated_at = $5
		WHERE oidc_sub = $1
		RETURNING ` + profileColumns

	profile, err := scanProfile(r.db.QueryRowContext(ctx, query,
		subject,
		update.Email,
		update.Role,
		update.DisplayName,
		r.now().UTC(),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile for subject %s: %w", subject, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	r.logger.Debug("profile updated", zap.String("sub", subject))
	return profile, nil
}

func scanProfile(row *sql.Row) (*models.UserProfile, error) {
	profile := &models.UserProfile{}
	if err := scanInto(row, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func scanInto(row *sql.Row, profile *models.UserProfile) error {
	return row.Scan(
		&profile.ID,
		&profile.Subject,
		&profile.Email,
		&profile.DisplayName,
		&profile.Role,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
