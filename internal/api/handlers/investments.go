package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"vonvault/internal/core"
	"vonvault/internal/membership"
	"vonvault/internal/types"
)

// --- Service Interfaces ---

// InvestmentSubmitter runs the validate-and-commit protocol.
// Implemented by membership.Committer.
type InvestmentSubmitter interface {
	Submit(ctx context.Context, req types.InvestmentRequest) (*membership.Result, error)
}

// InvestmentLister returns every investment of a user, regardless of status.
// Implemented by db.InvestmentRepository.
type InvestmentLister interface {
	ListByUser(ctx context.Context, userID string) ([]types.Investment, error)
}

// --- Request/Response Models ---

// CreateInvestmentRequest is the request body for POST /api/investments.
//
// Term is in months. ID, UserID, MembershipLevel and CreatedAt are accepted
// so that bodies built from a previously returned investment still decode;
// the server always assigns them itself.
type CreateInvestmentRequest struct {
	ID              *string          `json:"id,omitempty"`
	UserID          *string          `json:"user_id,omitempty"`
	Name            string           `json:"name" validate:"max=200"`
	Amount          *decimal.Decimal `json:"amount" validate:"required"`
	Rate            *float64         `json:"rate" validate:"required"`
	Term            *int             `json:"term" validate:"required,gte=1,lte=120"`
	MembershipLevel *string          `json:"membership_level,omitempty"`
	CreatedAt       *string          `json:"created_at,omitempty"`
}

// CreateInvestmentResponse is returned when an investment is committed.
type CreateInvestmentResponse struct {
	Investment InvestmentView `json:"investment"`
	Message    string         `json:"message"`
}

// ListInvestmentsResponse is the body of GET /api/investments.
type ListInvestmentsResponse struct {
	Investments []InvestmentView `json:"investments"`
}

// --- Handler ---

// InvestmentHandler accepts new investments and lists existing ones.
type InvestmentHandler struct {
	submitter InvestmentSubmitter
	lister    InvestmentLister
	validator *core.Validator
	logger    *slog.Logger
}

// NewInvestmentHandler creates an InvestmentHandler.
func NewInvestmentHandler(submitter InvestmentSubmitter, lister InvestmentLister, v *core.Validator, l *slog.Logger) *InvestmentHandler {
	if l == nil {
		l = slog.Default()
	}
	return &InvestmentHandler{
		submitter: submitter,
		lister:    lister,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts investment routes onto the /api router. Both routes
// require an authenticated caller.
func (h *InvestmentHandler) RegisterRoutes(r chi.Router) {
	r.Get("/investments", h.List)
	r.Post("/investments", h.Create)
}

// List handles GET /api/investments.
func (h *InvestmentHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication is required", nil))
		return
	}

	investments, err := h.lister.ListByUser(r.Context(), actor.UserID)
	if err != nil {
		h.logger.Error("failed to list investments",
			slog.String("user_id", actor.UserID),
			slog.String("error", err.Error()),
		)
		core.Error(w, r, err)
		return
	}

	resp := ListInvestmentsResponse{Investments: make([]InvestmentView, 0, len(investments))}
	for _, inv := range investments {
		resp.Investments = append(resp.Investments, newInvestmentView(inv))
	}
	core.JSON(w, r, http.StatusOK, resp)
}

// Create handles POST /api/investments.
//
// The investment is always recorded for the authenticated caller; a user_id in
// the body is ignored. Rejections are 400s whose detail is the sentence
// produced by the membership engine.
func (h *InvestmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication is required", nil))
		return
	}

	var req CreateInvestmentRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.submitter.Submit(r.Context(), types.InvestmentRequest{
		UserID: actor.UserID,
		Name:   req.Name,
		Amount: *req.Amount,
		Rate:   *req.Rate,
		Term:   *req.Term,
	})
	if err != nil {
		if !types.IsValidation(err) {
			h.logger.Error("investment submission failed",
				slog.String("user_id", actor.UserID),
				slog.String("error", err.Error()),
			)
		}
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, CreateInvestmentResponse{
		Investment: newInvestmentView(result.Investment),
		Message:    result.Message,
	})
}
