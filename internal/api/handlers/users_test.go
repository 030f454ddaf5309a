package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vonvault/internal/core"
	"vonvault/internal/types"
)

// =============================================================================
// Mock Implementations
// =============================================================================

type mockOnboarder struct {
	completeFn     func(ctx context.Context, userID string) (*types.User, error)
	createMemberFn func(ctx context.Context, userID string) (*types.User, error)

	completedFor []string
	createdFor   []string
}

func (m *mockOnboarder) Complete(ctx context.Context, userID string) (*types.User, error) {
	m.completedFor = append(m.completedFor, userID)
	if m.completeFn != nil {
		return m.completeFn(ctx, userID)
	}
	return &types.User{UserID: userID, MembershipLevel: types.LevelBasic}, nil
}

func (m *mockOnboarder) CreateMember(ctx context.Context, userID string) (*types.User, error) {
	m.createdFor = append(m.createdFor, userID)
	if m.createMemberFn != nil {
		return m.createMemberFn(ctx, userID)
	}
	id := int64(7)
	return &types.User{UserID: userID, IDNumber: &id, MembershipLevel: types.LevelBasic}, nil
}

func newTestUserHandler(onboarder *mockOnboarder, resolver StatusResolver) *UserHandler {
	logger := discardLogger()
	return NewUserHandler(onboarder, resolver, core.NewValidator(logger), logger)
}

// =============================================================================
// Complete Onboarding
// =============================================================================

func TestUserHandler_CompleteOnboarding(t *testing.T) {
	onboarder := &mockOnboarder{}
	h := newTestUserHandler(onboarder, statusAt(types.LevelBasic, 0))

	req := withActor(httptest.NewRequest(http.MethodPost, "/users/complete-onboarding", nil), "user_1")
	rec := serve(h.RegisterRoutes, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"user_1"}, onboarder.completedFor)

	body := decodeBody(t, rec)
	assert.Equal(t, "Onboarding completed successfully! You are now a Basic Member.", body["message"])
	block := body["membership"].(map[string]any)
	assert.Equal(t, "basic", block["level"])
	assert.Equal(t, "Basic Member", block["level_name"])
	assert.Equal(t, "🌱", block["icon"])
}

func TestUserHandler_CompleteOnboarding_ExistingMemberKeepsLevel(t *testing.T) {
	h := newTestUserHandler(&mockOnboarder{}, statusAt(types.LevelClub, 30000))

	req := withActor(httptest.NewRequest(http.MethodPost, "/users/complete-onboarding", nil), "user_1")
	rec := serve(h.RegisterRoutes, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Onboarding completed successfully! You are now a Club Member.", body["message"])
	block := body["membership"].(map[string]any)
	assert.Equal(t, "club", block["level"])
}

func TestUserHandler_CompleteOnboarding_UnknownUser(t *testing.T) {
	onboarder := &mockOnboarder{
		completeFn: func(ctx context.Context, userID string) (*types.User, error) {
			return nil, types.NewAppError(types.ErrCodeNotFoundUser, "User not found", nil)
		},
	}
	resolver := &mockResolver{}
	h := newTestUserHandler(onboarder, resolver)

	req := withActor(httptest.NewRequest(http.MethodPost, "/users/complete-onboarding", nil), "ghost")
	rec := serve(h.RegisterRoutes, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(types.ErrCodeNotFoundUser), errorCode(t, rec))
	assert.Empty(t, resolver.calledFor)
}

func TestUserHandler_CompleteOnboarding_RequiresActor(t *testing.T) {
	onboarder := &mockOnboarder{}
	h := newTestUserHandler(onboarder, &mockResolver{})

	rec := serve(h.RegisterRoutes, httptest.NewRequest(http.MethodPost, "/users/complete-onboarding", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, onboarder.completedFor)
}

// =============================================================================
// Create With ID
// =============================================================================

func TestUserHandler_CreateWithID_DefaultsToCaller(t *testing.T) {
	onboarder := &mockOnboarder{}
	h := newTestUserHandler(onboarder, &mockResolver{})

	req := withActor(httptest.NewRequest(http.MethodPost, "/users/create-with-id", nil), "user_1")
	rec := serve(h.RegisterRoutes, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"user_1"}, onboarder.createdFor)

	body := decodeBody(t, rec)
	assert.Equal(t, "User created successfully with ID #7", body["message"])
	user := body["user"].(map[string]any)
	assert.Equal(t, float64(7), user["id_number"])
	assert.Equal(t, "user_1", user["user_id"])
	assert.Equal(t, "basic", user["membership_level"])
}

func TestUserHandler_CreateWithID_ExplicitUser(t *testing.T) {
	onboarder := &mockOnboarder{}
	h := newTestUserHandler(onboarder, &mockResolver{})

	req := withActor(httptest.NewRequest(http.MethodPost, "/users/create-with-id", strings.NewReader(`{"user_id":"new_user-2"}`)), "admin_1")
	rec := serve(h.RegisterRoutes, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"new_user-2"}, onboarder.createdFor)
}

func TestUserHandler_CreateWithID_InvalidBody(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{name: "malformed user id", body: `{"user_id":"bad id!"}`, wantCode: string(types.ErrCodeValidationInvalidFieldType)},
		{name: "unknown field", body: `{"email":"a@b.c"}`, wantCode: "validation_invalid_json"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			onboarder := &mockOnboarder{}
			h := newTestUserHandler(onboarder, &mockResolver{})

			req := withActor(httptest.NewRequest(http.MethodPost, "/users/create-with-id", strings.NewReader(tc.body)), "user_1")
			rec := serve(h.RegisterRoutes, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.wantCode, errorCode(t, rec))
			assert.Empty(t, onboarder.createdFor)
		})
	}
}

func TestUserHandler_CreateWithID_Conflict(t *testing.T) {
	onboarder := &mockOnboarder{
		createMemberFn: func(ctx context.Context, userID string) (*types.User, error) {
			return nil, types.NewAppError(types.ErrCodeConflictUserExists, "User already exists", nil)
		},
	}
	h := newTestUserHandler(onboarder, &mockResolver{})

	req := withActor(httptest.NewRequest(http.MethodPost, "/users/create-with-id", nil), "user_1")
	rec := serve(h.RegisterRoutes, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(types.ErrCodeConflictUserExists), errorCode(t, rec))
}
