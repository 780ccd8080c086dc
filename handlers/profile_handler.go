package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/upb/svc-users/middleware"
	"github.com/upb/svc-users/models"
	"github.com/upb/svc-users/oidc"
	"github.com/upb/svc-users/services"
	"github.com/upb/svc-users/utils"
	"go.uber.org/zap"
)

// ProfileService is the subset of the profile service used by the HTTP layer
type ProfileService interface {
	Reconcile(ctx context.Context, identity models.AuthIdentity) (*models.UserProfile, error)
	UpdateDisplayName(ctx context.Context, subject, name string) (*models.UserProfile, error)
}

// UpdateProfileRequest is the body of PUT /api/users/me
type UpdateProfileRequest struct {
	DisplayName string `json:"display_name" validate:"required"`
}

// ProfileHandler serves the caller's own profile
type ProfileHandler struct {
	service ProfileService
	logger  *zap.Logger
}

// NewProfileHandler creates a new ProfileHandler
func NewProfileHandler(service ProfileService, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{
		service: service,
		logger:  logger,
	}
}

// GetMe handles GET /api/users/me.
// The profile is created on first sight and kept in step with the token.
func (h *ProfileHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromRequest(r)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	profile, err := h.service.Reconcile(r.Context(), identity)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, profile); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// UpdateMe handles PUT /api/users/me
func (h *ProfileHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromRequest(r)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	var req UpdateProfileRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	profile, err := h.service.UpdateDisplayName(r.Context(), identity.Subject, req.DisplayName)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, profile); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

func identityFromRequest(r *http.Request) (models.AuthIdentity, error) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		return models.AuthIdentity{}, services.ErrMissingSubject
	}

	identity, err := oidc.ExtractIdentity(claims)
	if err != nil {
		if errors.Is(err, oidc.ErrMissingSubject) {
			return models.AuthIdentity{}, services.ErrMissingSubject
		}
		return models.AuthIdentity{}, services.WrapInternal("failed to read identity", err)
	}
	return identity, nil
}
