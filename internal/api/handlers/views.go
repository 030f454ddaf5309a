// Package handlers contains the HTTP handler implementations for the VonVault API.
//
// Handlers translate requests into calls on the membership engine and render
// its results. Amounts are written as JSON numbers, matching the payloads
// existing clients of the investment endpoints parse.
package handlers

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"vonvault/internal/types"
)

// number renders a decimal amount as a JSON number literal.
func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func optionalNumber(d *decimal.Decimal) *json.Number {
	if d == nil {
		return nil
	}
	n := number(*d)
	return &n
}

// PlanView is an InvestmentPlan with the month-based term older clients read.
type PlanView struct {
	ID              string                `json:"id"`
	Name            string                `json:"name"`
	Description     string                `json:"description"`
	MembershipLevel types.MembershipLevel `json:"membership_level"`
	Rate            float64               `json:"rate"`
	TermDays        int                   `json:"term_days"`
	MinAmount       json.Number           `json:"min_amount"`
	MaxAmount       json.Number           `json:"max_amount"`
	IsActive        bool                  `json:"is_active"`
	Term            int                   `json:"term"`
}

func newPlanView(p types.InvestmentPlan) PlanView {
	return PlanView{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		MembershipLevel: p.MembershipLevel,
		Rate:            p.Rate,
		TermDays:        p.TermDays,
		MinAmount:       number(p.MinAmount),
		MaxAmount:       number(p.MaxAmount),
		IsActive:        p.IsActive,
		Term:            p.LegacyTerm(),
	}
}

func newPlanViews(plans []types.InvestmentPlan) []PlanView {
	views := make([]PlanView, 0, len(plans))
	for _, p := range plans {
		views = append(views, newPlanView(p))
	}
	return views
}

// StatusView is the wire form of types.MembershipStatus.
type StatusView struct {
	Level           types.MembershipLevel  `json:"level"`
	LevelName       string                 `json:"level_name"`
	Emoji           string                 `json:"emoji"`
	TotalInvested   json.Number            `json:"total_invested"`
	CurrentMin      json.Number            `json:"current_min"`
	CurrentMax      *json.Number           `json:"current_max"`
	NextLevel       *types.MembershipLevel `json:"next_level"`
	NextLevelName   *string                `json:"next_level_name"`
	AmountToNext    *json.Number           `json:"amount_to_next"`
	ProgressPercent float64                `json:"progress_percentage"`
	AvailablePlans  []PlanView             `json:"available_plans"`
}

func newStatusView(s types.MembershipStatus) StatusView {
	v := StatusView{
		Level:           s.Level,
		LevelName:       s.LevelName,
		Emoji:           s.Emoji,
		TotalInvested:   number(s.TotalInvested),
		CurrentMin:      number(s.CurrentMin),
		CurrentMax:      optionalNumber(s.CurrentMax),
		NextLevel:       s.NextLevel,
		AmountToNext:    optionalNumber(s.AmountToNext),
		ProgressPercent: s.ProgressPercent,
		AvailablePlans:  newPlanViews(s.AvailablePlans),
	}
	if s.NextLevelName != "" {
		name := s.NextLevelName
		v.NextLevelName = &name
	}
	return v
}

// TierView is one entry of GET /api/membership/tiers.
type TierView struct {
	Name             string       `json:"name"`
	MinAmount        json.Number  `json:"min_amount"`
	MaxAmount        *json.Number `json:"max_amount"`
	MinPerInvestment json.Number  `json:"min_per_investment"`
	MaxPerInvestment json.Number  `json:"max_per_investment"`
	Emoji            string       `json:"emoji"`
	Benefits         string       `json:"benefits"`
	Plans            []PlanView   `json:"plans"`
}

// InvestmentView is the wire form of types.Investment.
type InvestmentView struct {
	ID              string                 `json:"id"`
	UserID          string                 `json:"user_id"`
	Name            string                 `json:"name"`
	Amount          json.Number            `json:"amount"`
	Rate            float64                `json:"rate"`
	Term            int                    `json:"term"`
	TermDays        int                    `json:"term_days"`
	MembershipLevel types.MembershipLevel  `json:"membership_level"`
	Status          types.InvestmentStatus `json:"status"`
	CreatedAt       string                 `json:"created_at"`
}

func newInvestmentView(inv types.Investment) InvestmentView {
	return InvestmentView{
		ID:              inv.ID,
		UserID:          inv.UserID,
		Name:            inv.Name,
		Amount:          number(inv.Amount),
		Rate:            inv.Rate,
		Term:            inv.Term,
		TermDays:        inv.TermDays,
		MembershipLevel: inv.MembershipLevel,
		Status:          inv.Status,
		CreatedAt:       inv.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
