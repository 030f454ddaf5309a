package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// LegacyDaysPerMonth converts the month-based term submitted by clients into
// the day-based term used by plan templates. 12 months maps to 360 days, not
// 365; stored records keep this exact product.
const LegacyDaysPerMonth = 30

// User is the persisted account record as seen by the membership engine.
// MembershipLevel is a cache: the authoritative tier is derived from the sum of
// the user's investments. It exists to represent Basic with zero investments.
type User struct {
	UserID              string          `json:"user_id"`
	IDNumber            *int64          `json:"id_number,omitempty"`
	MembershipLevel     MembershipLevel `json:"membership_level"`
	MembershipGrantedAt *time.Time      `json:"membership_granted_at,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// Investment is an append-only record. Amount and MembershipLevel are a
// snapshot taken at creation and are never edited.
type Investment struct {
	ID              string           `json:"id"`
	UserID          string           `json:"user_id"`
	Name            string           `json:"name"`
	Amount          decimal.Decimal  `json:"amount"`
	Rate            float64          `json:"rate"`
	Term            int              `json:"term"`
	TermDays        int              `json:"term_days"`
	MembershipLevel MembershipLevel  `json:"membership_level"`
	Status          InvestmentStatus `json:"status"`
	CreatedAt       time.Time        `json:"created_at"`
}

// InvestmentPlan is a purchasable (rate, term) combination derived from a tier.
type InvestmentPlan struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	MembershipLevel MembershipLevel `json:"membership_level"`
	Rate            float64         `json:"rate"`
	TermDays        int             `json:"term_days"`
	MinAmount       decimal.Decimal `json:"min_amount"`
	MaxAmount       decimal.Decimal `json:"max_amount"`
	IsActive        bool            `json:"is_active"`
}

// LegacyTerm returns the month-based term clients submit for this plan.
func (p InvestmentPlan) LegacyTerm() int {
	return p.TermDays / LegacyDaysPerMonth
}

// PlanTemplate is one (rate, term) pair purchasable at a tier.
type PlanTemplate struct {
	Rate     float64 `json:"rate"`
	TermDays int     `json:"term_days"`
}

// MembershipTier is the static definition of a tier. MaxAmount is the
// displayed upper bound of the band (one dollar below the next tier's floor)
// and is nil for the unbounded top tier. Placement uses the floors only.
type MembershipTier struct {
	Level            MembershipLevel  `json:"level"`
	Name             string           `json:"name"`
	Emoji            string           `json:"emoji"`
	Benefits         string           `json:"benefits"`
	MinAmount        decimal.Decimal  `json:"min_amount"`
	MaxAmount        *decimal.Decimal `json:"max_amount"`
	MinPerInvestment decimal.Decimal  `json:"min_per_investment"`
	MaxPerInvestment decimal.Decimal  `json:"max_per_investment"`
	Templates        []PlanTemplate   `json:"plan_templates"`
}

// MembershipStatus is the resolved membership state of one user.
// NextLevel and AmountToNext are nil at the top tier.
type MembershipStatus struct {
	Level           MembershipLevel  `json:"level"`
	LevelName       string           `json:"level_name"`
	Emoji           string           `json:"emoji"`
	TotalInvested   decimal.Decimal  `json:"total_invested"`
	CurrentMin      decimal.Decimal  `json:"current_min"`
	CurrentMax      *decimal.Decimal `json:"current_max"`
	NextLevel       *MembershipLevel `json:"next_level"`
	NextLevelName   string           `json:"next_level_name,omitempty"`
	AmountToNext    *decimal.Decimal `json:"amount_to_next"`
	ProgressPercent float64          `json:"progress_percentage"`
	AvailablePlans  []InvestmentPlan `json:"available_plans"`
}

// InvestmentRequest is a proposed investment submitted by an authenticated user.
// Term is in months.
type InvestmentRequest struct {
	UserID string
	Name   string
	Amount decimal.Decimal
	Rate   float64
	Term   int
}

// TermDays applies the legacy month-to-day conversion.
func (r InvestmentRequest) TermDays() int {
	return r.Term * LegacyDaysPerMonth
}
