package membership

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"vonvault/internal/types"
)

// UserReader loads the cached membership fields of a user. A missing user is
// reported as an AppError with ErrCodeNotFoundUser.
type UserReader interface {
	GetUser(ctx context.Context, userID string) (*types.User, error)
}

// InvestmentTotaler sums the amounts of a user's non-deleted investments,
// regardless of status.
type InvestmentTotaler interface {
	TotalInvested(ctx context.Context, userID string) (decimal.Decimal, error)
}

// noMembershipName is the display name of LevelNone.
const noMembershipName = "No Membership"

var hundred = decimal.NewFromInt(100)

// Resolver computes a user's MembershipStatus. Resolve is the only supported
// way to read a user's tier; the cached User.MembershipLevel is never trusted
// on its own.
type Resolver struct {
	catalog     *Catalog
	users       UserReader
	investments InvestmentTotaler
}

// NewResolver creates a Resolver over the given stores.
func NewResolver(catalog *Catalog, users UserReader, investments InvestmentTotaler) *Resolver {
	return &Resolver{
		catalog:     catalog,
		users:       users,
		investments: investments,
	}
}

// Resolve loads the user and their investment total and derives the status.
// Store failures are propagated unchanged; a missing user resolves as a user
// with no membership.
func (r *Resolver) Resolve(ctx context.Context, userID string) (types.MembershipStatus, error) {
	total, err := r.investments.TotalInvested(ctx, userID)
	if err != nil {
		return types.MembershipStatus{}, err
	}

	user, err := r.users.GetUser(ctx, userID)
	if err != nil {
		var appErr *types.AppError
		if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeNotFoundUser {
			return types.MembershipStatus{}, err
		}
		user = nil
	}

	var cached types.MembershipLevel
	if user != nil {
		cached = user.MembershipLevel
	}
	return r.catalog.StatusFor(cached, total), nil
}

// StatusFor is the pure resolution rule.
//
//  1. A user holding a granted membership whose total is below the Club floor
//     is Basic. Amount alone cannot tell Basic-with-zero from no membership.
//  2. Otherwise a zero total with no granted membership is LevelNone.
//  3. Otherwise the tier is derived from the total.
func (c *Catalog) StatusFor(cached types.MembershipLevel, total decimal.Decimal) types.MembershipStatus {
	clubFloor := c.floor(types.LevelClub)

	var level types.MembershipLevel
	switch {
	case cached.IsTier() && total.LessThan(clubFloor):
		level = types.LevelBasic
	case !total.IsPositive():
		level = types.LevelNone
	default:
		level = c.TierForAmount(total)
	}

	status := types.MembershipStatus{
		Level:          level,
		TotalInvested:  total,
		AvailablePlans: c.VisiblePlans(level),
	}
	if status.AvailablePlans == nil {
		status.AvailablePlans = []types.InvestmentPlan{}
	}

	next, hasNext := types.LevelClub, true
	if tier, ok := c.tiers[level]; ok {
		status.LevelName = tier.Name
		status.Emoji = tier.Emoji
		status.CurrentMin = tier.MinAmount
		status.CurrentMax = tier.MaxAmount
		next, hasNext = level.Next()
	} else {
		status.LevelName = noMembershipName
	}

	if hasNext {
		nextTier := c.tiers[next]
		status.NextLevel = &next
		status.NextLevelName = nextTier.Name

		toNext := nextTier.MinAmount.Sub(total)
		if toNext.IsNegative() {
			toNext = decimal.Zero
		}
		status.AmountToNext = &toNext

		if total.IsPositive() {
			progress := total.Div(nextTier.MinAmount).Mul(hundred)
			if progress.GreaterThan(hundred) {
				progress = hundred
			}
			status.ProgressPercent = progress.Round(2).InexactFloat64()
		}
	}

	return status
}
