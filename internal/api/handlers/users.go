package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vonvault/internal/core"
	"vonvault/internal/types"
)

// --- Service Interfaces ---

// MemberOnboarder grants and creates memberships.
// Implemented by membership.Onboarding.
type MemberOnboarder interface {
	Complete(ctx context.Context, userID string) (*types.User, error)
	CreateMember(ctx context.Context, userID string) (*types.User, error)
}

// --- Request/Response Models ---

// MembershipSummary is the short membership block returned after onboarding.
type MembershipSummary struct {
	Level     types.MembershipLevel `json:"level"`
	LevelName string                `json:"level_name"`
	Icon      string                `json:"icon"`
}

// OnboardingResponse is returned by POST /api/users/complete-onboarding.
type OnboardingResponse struct {
	Message    string            `json:"message"`
	Membership MembershipSummary `json:"membership"`
}

// CreateUserRequest is the request body for POST /api/users/create-with-id.
// An empty UserID creates the record for the caller.
type CreateUserRequest struct {
	UserID string `json:"user_id" validate:"omitempty,user_id"`
}

// CreatedUserDTO is the user block of CreateUserResponse.
type CreatedUserDTO struct {
	IDNumber        int64                 `json:"id_number"`
	UserID          string                `json:"user_id"`
	MembershipLevel types.MembershipLevel `json:"membership_level"`
}

// CreateUserResponse is returned by POST /api/users/create-with-id.
type CreateUserResponse struct {
	Message string         `json:"message"`
	User    CreatedUserDTO `json:"user"`
}

// onboardingMessageFormat is worded from the resolved level, so an existing
// Club member is not told they are Basic.
const onboardingMessageFormat = "Onboarding completed successfully! You are now a %s."

// --- Handler ---

// UserHandler completes onboarding and creates member records.
type UserHandler struct {
	onboarder MemberOnboarder
	resolver  StatusResolver
	validator *core.Validator
	logger    *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(onboarder MemberOnboarder, resolver StatusResolver, v *core.Validator, l *slog.Logger) *UserHandler {
	if l == nil {
		l = slog.Default()
	}
	return &UserHandler{
		onboarder: onboarder,
		resolver:  resolver,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts user routes onto the /api router. Both routes require
// an authenticated caller.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Post("/complete-onboarding", h.CompleteOnboarding)
		r.Post("/create-with-id", h.CreateWithID)
	})
}

// CompleteOnboarding handles POST /api/users/complete-onboarding.
// Existing members get the same success response; their level is untouched.
func (h *UserHandler) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication is required", nil))
		return
	}

	if _, err := h.onboarder.Complete(r.Context(), actor.UserID); err != nil {
		h.logger.Warn("onboarding failed",
			slog.String("user_id", actor.UserID),
			slog.String("error", err.Error()),
		)
		core.Error(w, r, err)
		return
	}

	status, err := h.resolver.Resolve(r.Context(), actor.UserID)
	if err != nil {
		h.logger.Error("failed to resolve membership after onboarding",
			slog.String("user_id", actor.UserID),
			slog.String("error", err.Error()),
		)
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, OnboardingResponse{
		Message: fmt.Sprintf(onboardingMessageFormat, status.LevelName),
		Membership: MembershipSummary{
			Level:     status.Level,
			LevelName: status.LevelName,
			Icon:      status.Emoji,
		},
	})
}

// CreateWithID handles POST /api/users/create-with-id.
// An empty body is accepted and creates the record for the caller.
func (h *UserHandler) CreateWithID(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication is required", nil))
		return
	}

	var req CreateUserRequest
	if r.ContentLength != 0 {
		if err := core.DecodeJSON(w, r, &req); err != nil {
			core.Error(w, r, err)
			return
		}
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	userID := req.UserID
	if userID == "" {
		userID = actor.UserID
	}

	user, err := h.onboarder.CreateMember(r.Context(), userID)
	if err != nil {
		h.logger.Warn("user creation failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		core.Error(w, r, err)
		return
	}

	var idNumber int64
	if user.IDNumber != nil {
		idNumber = *user.IDNumber
	}
	core.JSON(w, r, http.StatusOK, CreateUserResponse{
		Message: fmt.Sprintf("User created successfully with ID #%d", idNumber),
		User: CreatedUserDTO{
			IDNumber:        idNumber,
			UserID:          user.UserID,
			MembershipLevel: user.MembershipLevel,
		},
	})
}
