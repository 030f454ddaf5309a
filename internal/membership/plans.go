package membership

import (
	"fmt"
	"strconv"

	"vonvault/internal/types"
)

// PlansForTier derives the purchasable plans of a tier. Plan bounds mirror the
// tier's per-investment limits so validation has a single source. The result is
// a fresh slice on every call; LevelNone has no plans.
func (c *Catalog) PlansForTier(level types.MembershipLevel) []types.InvestmentPlan {
	tier, ok := c.tiers[level]
	if !ok {
		return nil
	}

	plans := make([]types.InvestmentPlan, 0, len(tier.Templates))
	for _, tmpl := range tier.Templates {
		plans = append(plans, types.InvestmentPlan{
			ID:              planID(level, tmpl.TermDays),
			Name:            fmt.Sprintf("%s %s - %s", tier.Emoji, tier.Name, termTitle(tmpl.TermDays)),
			Description:     fmt.Sprintf("%s%% APY locked for %s", formatRate(tmpl.Rate), termPhrase(tmpl.TermDays)),
			MembershipLevel: level,
			Rate:            tmpl.Rate,
			TermDays:        tmpl.TermDays,
			MinAmount:       tier.MinPerInvestment,
			MaxAmount:       tier.MaxPerInvestment,
			IsActive:        true,
		})
	}
	return plans
}

// VisiblePlans returns the plans a member at level may see: the tier's own
// plans and, for Basic, the Club plans as the upgrade path.
func (c *Catalog) VisiblePlans(level types.MembershipLevel) []types.InvestmentPlan {
	plans := c.PlansForTier(level)
	if level == types.LevelBasic {
		plans = append(plans, c.PlansForTier(types.LevelClub)...)
	}
	return plans
}

// AllPlans returns the full catalog across every tier in ascending order.
func (c *Catalog) AllPlans() []types.InvestmentPlan {
	var plans []types.InvestmentPlan
	for _, level := range types.TierLevels {
		plans = append(plans, c.PlansForTier(level)...)
	}
	return plans
}

func planID(level types.MembershipLevel, termDays int) string {
	return fmt.Sprintf("%s_%d", level, termDays)
}

func formatRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', -1, 64)
}

func termTitle(days int) string {
	switch days {
	case TermYear:
		return "1 Year"
	case TermHalfYear:
		return "6 Months"
	default:
		return fmt.Sprintf("%d Days", days)
	}
}

func termPhrase(days int) string {
	switch days {
	case TermYear:
		return "1 year"
	case TermHalfYear:
		return "6 months"
	default:
		return fmt.Sprintf("%d days", days)
	}
}
