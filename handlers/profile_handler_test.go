package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/svc-users/middleware"
	"github.com/upb/svc-users/models"
	"github.com/upb/svc-users/oidc"
	"github.com/upb/svc-users/repositories/memory"
	"github.com/upb/svc-users/services"
	"github.com/upb/svc-users/services/profile"
	"go.uber.org/zap"
)

// MockProfileService is a mock implementation of ProfileService
type MockProfileService struct {
	mock.Mock
}

func (m *MockProfileService) Reconcile(ctx context.Context, identity models.AuthIdentity) (*models.UserProfile, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserProfile), args.Error(1)
}

func (m *MockProfileService) UpdateDisplayName(ctx context.Context, subject, name string) (*models.UserProfile, error) {
	args := m.Called(ctx, subject, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserProfile), args.Error(1)
}

type profileEnvelope struct {
	Data models.UserProfile `json:"data"`
}

func newRequest(method, body string, claims oidc.TokenClaims) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, "/api/users/me", nil)
	} else {
		req = httptest.NewRequest(method, "/api/users/me", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if claims != nil {
		req = req.WithContext(middleware.WithClaims(req.Context(), claims))
	}
	return req
}

func decodeProfile(t *testing.T, w *httptest.ResponseRecorder) models.UserProfile {
	t.Helper()
	var env profileEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&env))
	return env.Data
}

func TestProfileHandler_GetMe(t *testing.T) {
	logger := zap.NewNop()

	t.Run("creates profile on first sight", func(t *testing.T) {
		h := NewProfileHandler(profile.NewService(memory.NewProfileRepository(), nil, logger), logger)

		claims := oidc.TokenClaims{
			"sub":                "user-123",
			"email":              "ana@upb.edu",
			"preferred_username": "ana",
			"name":               "Ana María",
			"realm_access":       map[string]any{"roles": []any{"student", "professor"}},
		}

		w := httptest.NewRecorder()
		h.GetMe(w, newRequest(http.MethodGet, "", claims))

		require.Equal(t, http.StatusOK, w.Code)
		p := decodeProfile(t, w)
		assert.Equal(t, "user-123", p.Subject)
		require.NotNil(t, p.Email)
		assert.Equal(t, "ana@upb.edu", *p.Email)
		require.NotNil(t, p.DisplayName)
		assert.Equal(t, "ana", *p.DisplayName)
		require.NotNil(t, p.Role)
		assert.Equal(t, models.RoleProfessor, *p.Role)
	})

	t.Run("returns same profile on repeat", func(t *testing.T) {
		h := NewProfileHandler(profile.NewService(memory.NewProfileRepository(), nil, logger), logger)
		claims := oidc.TokenClaims{"sub": "user-123"}

		first := httptest.NewRecorder()
		h.GetMe(first, newRequest(http.MethodGet, "", claims))
		second := httptest.NewRecorder()
		h.GetMe(second, newRequest(http.MethodGet, "", claims))

		assert.Equal(t, decodeProfile(t, first).ID, decodeProfile(t, second).ID)
	})

	t.Run("missing subject", func(t *testing.T) {
		svc := new(MockProfileService)
		h := NewProfileHandler(svc, logger)

		for _, claims := range []oidc.TokenClaims{nil, {}, {"sub": ""}, {"sub": 42}} {
			w := httptest.NewRecorder()
			h.GetMe(w, newRequest(http.MethodGet, "", claims))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"error":"missing_subject"}`, w.Body.String())
		}
		svc.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)
	})

	t.Run("store failure", func(t *testing.T) {
		svc := new(MockProfileService)
		svc.On("Reconcile", mock.Anything, models.AuthIdentity{Subject: "user-123"}).
			Return(nil, services.WrapInternal("failed to load profile", errors.New("connection refused")))

		w := httptest.NewRecorder()
		NewProfileHandler(svc, logger).GetMe(w, newRequest(http.MethodGet, "", oidc.TokenClaims{"sub": "user-123"}))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "connection refused")
		svc.AssertExpectations(t)
	})
}

func TestProfileHandler_UpdateMe(t *testing.T) {
	logger := zap.NewNop()

	t.Run("updates display name", func(t *testing.T) {
		repo := memory.NewProfileRepository()
		h := NewProfileHandler(profile.NewService(repo, nil, logger), logger)
		claims := oidc.TokenClaims{"sub": "user-123", "preferred_username": "ana"}

		h.GetMe(httptest.NewRecorder(), newRequest(http.MethodGet, "", claims))

		w := httptest.NewRecorder()
		h.UpdateMe(w, newRequest(http.MethodPut, `{"display_name":"Profe Ana"}`, claims))

		require.Equal(t, http.StatusOK, w.Code)
		p := decodeProfile(t, w)
		require.NotNil(t, p.DisplayName)
		assert.Equal(t, "Profe Ana", *p.DisplayName)

		// a later read keeps the chosen name
		w = httptest.NewRecorder()
		h.GetMe(w, newRequest(http.MethodGet, "", claims))
		assert.Equal(t, "Profe Ana", *decodeProfile(t, w).DisplayName)
	})

	t.Run("no profile yet", func(t *testing.T) {
		h := NewProfileHandler(profile.NewService(memory.NewProfileRepository(), nil, logger), logger)

		w := httptest.NewRecorder()
		h.UpdateMe(w, newRequest(http.MethodPut, `{"display_name":"Ana"}`, oidc.TokenClaims{"sub": "ghost"}))

		assert.Equal(t, http.StatusNotFound, w.Code)
		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "profile_not_found", response["error"])
	})

	invalid := []struct {
		name string
		body string
	}{
		{name: "empty body", body: ""},
		{name: "invalid json", body: `{"display_name":`},
		{name: "wrong type", body: `{"display_name":7}`},
		{name: "missing field", body: `{}`},
		{name: "empty string", body: `{"display_name":""}`},
		{name: "whitespace only", body: `{"display_name":"   "}`},
		{name: "too long", body: `{"display_name":"` + strings.Repeat("a", 256) + `"}`},
	}
	for _, tt := range invalid {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			repo := memory.NewProfileRepository()
			h := NewProfileHandler(profile.NewService(repo, nil, logger), logger)
			claims := oidc.TokenClaims{"sub": "user-123", "preferred_username": "ana"}
			h.GetMe(httptest.NewRecorder(), newRequest(http.MethodGet, "", claims))

			w := httptest.NewRecorder()
			h.UpdateMe(w, newRequest(http.MethodPut, tt.body, claims))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.NotContains(t, w.Body.String(), "json:")
			assert.NotContains(t, w.Body.String(), "UpdateProfileRequest")
			var response map[string]interface{}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, "validation_failed", response["error"])

			stored, err := repo.GetBySubject(context.Background(), "user-123")
			require.NoError(t, err)
			assert.Equal(t, "ana", *stored.DisplayName)
		})
	}

	t.Run("missing subject", func(t *testing.T) {
		svc := new(MockProfileService)
		w := httptest.NewRecorder()
		NewProfileHandler(svc, logger).UpdateMe(w, newRequest(http.MethodPut, `{"display_name":"x"}`, oidc.TokenClaims{"email": "a@b.c"}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"missing_subject"}`, w.Body.String())
		svc.AssertNotCalled(t, "UpdateDisplayName", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("passes subject and name to service", func(t *testing.T) {
		svc := new(MockProfileService)
		name := "Ana"
		svc.On("UpdateDisplayName", mock.Anything, "user-123", "Ana").
			Return(&models.UserProfile{Subject: "user-123", DisplayName: &name}, nil)

		w := httptest.NewRecorder()
		NewProfileHandler(svc, logger).UpdateMe(w, newRequest(http.MethodPut, `{"display_name":"Ana"}`, oidc.TokenClaims{"sub": "user-123"}))

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})
}
