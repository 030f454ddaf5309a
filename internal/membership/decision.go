package membership

import (
	"fmt"

	"github.com/shopspring/decimal"

	"vonvault/internal/types"
)

// Path names the branch of the decision table that accepted an investment.
type Path string

const (
	// PathBasic is an investment inside the Basic per-investment band.
	PathBasic Path = "basic"
	// PathBasicUpgrade is a Basic member's investment at or above the Club floor.
	PathBasicUpgrade Path = "basic_upgrade"
	// PathBootstrap is a never-onboarded user's first Club-sized investment.
	PathBootstrap Path = "bootstrap"
	// PathEstablished is an investment by a Club or higher member against one
	// of their tier's plans.
	PathEstablished Path = "established"
)

// amountScale is the number of fractional digits the investments table keeps.
const amountScale = 2

// amountUnit is the smallest storable amount step, one cent.
var amountUnit = decimal.New(1, -amountScale)

// amountCeiling is the exclusive upper bound of a NUMERIC(20,2) amount.
var amountCeiling = decimal.New(1, 20-amountScale)

// Decision is the accepted outcome of the transition function. RecordLevel is
// the snapshot stored on the investment. PromoteTo is LevelNone unless the
// user's cached level must be rewritten.
type Decision struct {
	Path        Path
	RecordLevel types.MembershipLevel
	Rate        float64
	Plan        *types.InvestmentPlan
	PromoteTo   types.MembershipLevel
	Message     string
}

// Decide evaluates a proposed investment against the current status. It either
// accepts with a Decision or rejects with a validation AppError; it never
// touches a store. Guards are evaluated in order and the first match wins.
func (c *Catalog) Decide(status types.MembershipStatus, req types.InvestmentRequest) (Decision, error) {
	if !req.Amount.IsPositive() {
		return Decision{}, types.NewAppError(
			types.ErrCodeValidationInvalidAmount,
			"Investment amount must be greater than zero",
			nil,
		)
	}
	if !req.Amount.Equal(req.Amount.Truncate(amountScale)) {
		return Decision{}, types.NewAppError(
			types.ErrCodeValidationInvalidAmount,
			"Investment amount must not have more than 2 decimal places",
			nil,
		)
	}
	if req.Amount.GreaterThanOrEqual(amountCeiling) {
		return Decision{}, types.NewAppError(
			types.ErrCodeValidationInvalidAmount,
			"Investment amount exceeds the largest supported value",
			nil,
		)
	}

	switch {
	case status.Level == types.LevelBasic:
		return c.decideBasic(req)
	case status.Level == types.LevelNone:
		return c.decideBootstrap(req)
	case status.Level.IsTier():
		return c.decideEstablished(status.Level, req)
	default:
		return Decision{}, types.NewAppError(
			types.ErrCodeInternalConfiguration,
			fmt.Sprintf("unsupported membership level %s", status.Level),
			nil,
		)
	}
}

func (c *Catalog) decideBasic(req types.InvestmentRequest) (Decision, error) {
	basic := c.tiers[types.LevelBasic]
	club := c.tiers[types.LevelClub]

	if req.Amount.GreaterThanOrEqual(club.MinAmount) {
		rate, err := c.clubEntryRate()
		if err != nil {
			return Decision{}, err
		}
		return Decision{
			Path:        PathBasicUpgrade,
			RecordLevel: types.LevelClub,
			Rate:        rate,
			PromoteTo:   types.LevelClub,
			Message: fmt.Sprintf("Congratulations! You've upgraded to %s with %s invested.",
				club.Name, FormatDollars(req.Amount)),
		}, nil
	}

	if req.Amount.LessThan(basic.MinPerInvestment) {
		return Decision{}, types.NewAppErrorWithDetails(
			types.ErrCodeValidationBelowMinimum,
			fmt.Sprintf("Minimum investment for %ss is %s", basic.Name, FormatDollars(basic.MinPerInvestment)),
			nil,
			boundDetails("minimum", basic.MinPerInvestment),
		)
	}
	if req.Amount.GreaterThan(basic.MaxPerInvestment) {
		return Decision{}, types.NewAppErrorWithDetails(
			types.ErrCodeValidationAboveMaximum,
			fmt.Sprintf("Maximum investment for %ss is %s. Invest %s+ to become a %s.",
				basic.Name, FormatDollars(basic.MaxPerInvestment), FormatDollars(club.MinAmount), club.Name),
			nil,
			boundDetails("maximum", basic.MaxPerInvestment),
		)
	}

	rate, err := c.RateFor(types.LevelBasic, req.TermDays())
	if err != nil {
		return Decision{}, configError(err)
	}
	return Decision{
		Path:        PathBasic,
		RecordLevel: types.LevelBasic,
		Rate:        rate,
		Message:     "Investment created successfully!",
	}, nil
}

func (c *Catalog) decideBootstrap(req types.InvestmentRequest) (Decision, error) {
	club := c.tiers[types.LevelClub]

	if req.Amount.LessThan(club.MinAmount) {
		return Decision{}, types.NewAppErrorWithDetails(
			types.ErrCodeValidationBelowMinimum,
			fmt.Sprintf("Minimum investment required is %s to become a %s", FormatDollars(club.MinAmount), club.Name),
			nil,
			boundDetails("minimum", club.MinAmount),
		)
	}

	rate, err := c.clubEntryRate()
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Path:        PathBootstrap,
		RecordLevel: types.LevelClub,
		Rate:        rate,
		Message: fmt.Sprintf("Investment created successfully! You are now a %s with %s invested.",
			club.Name, FormatDollars(req.Amount)),
	}, nil
}

func (c *Catalog) decideEstablished(level types.MembershipLevel, req types.InvestmentRequest) (Decision, error) {
	var selected *types.InvestmentPlan
	for _, plan := range c.PlansForTier(level) {
		if plan.IsActive && plan.Rate == req.Rate && plan.LegacyTerm() == req.Term {
			p := plan
			selected = &p
			break
		}
	}
	if selected == nil {
		return Decision{}, types.NewAppError(
			types.ErrCodeValidationInvalidPlan,
			"Invalid investment plan for your membership level",
			nil,
		)
	}

	if req.Amount.LessThan(selected.MinAmount) {
		return Decision{}, types.NewAppErrorWithDetails(
			types.ErrCodeValidationBelowMinimum,
			fmt.Sprintf("Minimum investment for your membership level is %s", FormatDollars(selected.MinAmount)),
			nil,
			boundDetails("minimum", selected.MinAmount),
		)
	}
	if req.Amount.GreaterThan(selected.MaxAmount) {
		return Decision{}, types.NewAppErrorWithDetails(
			types.ErrCodeValidationAboveMaximum,
			fmt.Sprintf("Maximum investment per transaction is %s", FormatDollars(selected.MaxAmount)),
			nil,
			boundDetails("maximum", selected.MaxAmount),
		)
	}

	return Decision{
		Path:        PathEstablished,
		RecordLevel: level,
		Rate:        req.Rate,
		Plan:        selected,
		Message:     "Investment created successfully",
	}, nil
}

// clubEntryRate is the rate recorded for investments that establish Club
// membership; the submitted rate is ignored on those paths.
func (c *Catalog) clubEntryRate() (float64, error) {
	rate, err := c.RateFor(types.LevelClub, TermYear)
	if err != nil {
		return 0, configError(err)
	}
	return rate, nil
}

func configError(err error) *types.AppError {
	return types.NewAppError(types.ErrCodeInternalConfiguration, "investment plan configuration error", err)
}

func boundDetails(bound string, limit decimal.Decimal) map[string]any {
	return map[string]any{
		"bound": bound,
		"limit": limit.String(),
	}
}
