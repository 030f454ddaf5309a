package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vonvault/internal/core"
	"vonvault/internal/types"
)

// --- Service Interfaces ---

// StatusResolver computes the authoritative membership state of a user.
// Implemented by membership.Resolver.
type StatusResolver interface {
	Resolve(ctx context.Context, userID string) (types.MembershipStatus, error)
}

// TierSource exposes the static tier table.
// Implemented by membership.Catalog.
type TierSource interface {
	Tiers() []types.MembershipTier
	PlansForTier(level types.MembershipLevel) []types.InvestmentPlan
}

// PlanStore lists the seeded plan catalog.
// Implemented by db.PlanRepository.
type PlanStore interface {
	ListAll(ctx context.Context) ([]types.InvestmentPlan, error)
}

// --- Response Models ---

// TiersResponse is the body of GET /api/membership/tiers, keyed by level name.
type TiersResponse struct {
	Tiers map[string]TierView `json:"tiers"`
}

// UserPlansResponse is the body of GET /api/investment-plans.
type UserPlansResponse struct {
	Plans      []PlanView `json:"plans"`
	Membership StatusView `json:"membership"`
}

// AllPlansResponse is the body of GET /api/investment-plans/all.
type AllPlansResponse struct {
	Plans []PlanView `json:"plans"`
}

// --- Handler ---

// MembershipHandler serves tier, status, and plan catalog reads.
type MembershipHandler struct {
	resolver StatusResolver
	tiers    TierSource
	plans    PlanStore
	logger   *slog.Logger
}

// NewMembershipHandler creates a MembershipHandler.
func NewMembershipHandler(resolver StatusResolver, tiers TierSource, plans PlanStore, l *slog.Logger) *MembershipHandler {
	if l == nil {
		l = slog.Default()
	}
	return &MembershipHandler{
		resolver: resolver,
		tiers:    tiers,
		plans:    plans,
		logger:   l,
	}
}

// RegisterRoutes mounts membership and plan routes onto the /api router.
//
// Public Routes:
//   - GET /membership/tiers
//   - GET /investment-plans/all
//
// Protected Routes:
//   - GET /membership/status
//   - GET /investment-plans
func (h *MembershipHandler) RegisterRoutes(r chi.Router) {
	r.Get("/membership/tiers", h.Tiers)
	r.Get("/membership/status", h.Status)
	r.Get("/investment-plans", h.UserPlans)
	r.Get("/investment-plans/all", h.AllPlans)
}

// Tiers handles GET /api/membership/tiers.
func (h *MembershipHandler) Tiers(w http.ResponseWriter, r *http.Request) {
	tiers := h.tiers.Tiers()
	resp := TiersResponse{Tiers: make(map[string]TierView, len(tiers))}
	for _, t := range tiers {
		resp.Tiers[t.Level.String()] = TierView{
			Name:             t.Name,
			MinAmount:        number(t.MinAmount),
			MaxAmount:        optionalNumber(t.MaxAmount),
			MinPerInvestment: number(t.MinPerInvestment),
			MaxPerInvestment: number(t.MaxPerInvestment),
			Emoji:            t.Emoji,
			Benefits:         t.Benefits,
			Plans:            newPlanViews(h.tiers.PlansForTier(t.Level)),
		}
	}
	core.JSON(w, r, http.StatusOK, resp)
}

// Status handles GET /api/membership/status.
func (h *MembershipHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, ok := h.resolveCaller(w, r)
	if !ok {
		return
	}
	core.JSON(w, r, http.StatusOK, newStatusView(status))
}

// UserPlans handles GET /api/investment-plans.
// The plan list is the caller's available plans, repeated next to the full
// membership status.
func (h *MembershipHandler) UserPlans(w http.ResponseWriter, r *http.Request) {
	status, ok := h.resolveCaller(w, r)
	if !ok {
		return
	}
	view := newStatusView(status)
	core.JSON(w, r, http.StatusOK, UserPlansResponse{
		Plans:      view.AvailablePlans,
		Membership: view,
	})
}

// AllPlans handles GET /api/investment-plans/all.
func (h *MembershipHandler) AllPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list investment plans", slog.String("error", err.Error()))
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, AllPlansResponse{Plans: newPlanViews(plans)})
}

// resolveCaller resolves the authenticated caller's status, writing the error
// response itself on failure.
func (h *MembershipHandler) resolveCaller(w http.ResponseWriter, r *http.Request) (types.MembershipStatus, bool) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication is required", nil))
		return types.MembershipStatus{}, false
	}

	status, err := h.resolver.Resolve(r.Context(), actor.UserID)
	if err != nil {
		h.logger.Error("failed to resolve membership",
			slog.String("user_id", actor.UserID),
			slog.String("error", err.Error()),
		)
		core.Error(w, r, err)
		return types.MembershipStatus{}, false
	}
	return status, true
}
