// Package membership implements the membership tier engine: the static tier
// catalog, the plans derived from it, resolution of a user's current tier
// from their investment history, and the investment decision and commit
// protocol that can promote a user as a side effect.
package membership

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"vonvault/internal/types"
)

// Standard plan terms in days.
const (
	TermHalfYear = 180
	TermYear     = 365
)

// TierSpec is the configurable definition of one tier. Band upper bounds are
// not configured; they are implied by the next tier's MinAmount.
type TierSpec struct {
	Level            types.MembershipLevel
	Name             string
	Emoji            string
	Benefits         string
	MinAmount        decimal.Decimal
	MinPerInvestment decimal.Decimal
	MaxPerInvestment decimal.Decimal
	Terms            []int
}

// RateKey addresses one entry of the rate table.
type RateKey struct {
	Level    types.MembershipLevel
	TermDays int
}

// CatalogConfig is the input to NewCatalog.
// BasicRate applies to every Basic term regardless of Rates.
type CatalogConfig struct {
	Tiers     []TierSpec
	Rates     map[RateKey]float64
	BasicRate float64
}

// ConfigurationError reports an inconsistent tier or rate table. It is a
// programming-time fault and never the result of user input.
type ConfigurationError struct {
	Level    types.MembershipLevel
	TermDays int
	Reason   string
}

func (e *ConfigurationError) Error() string {
	if e.TermDays != 0 {
		return fmt.Sprintf("membership catalog: %s/%d: %s", e.Level, e.TermDays, e.Reason)
	}
	return fmt.Sprintf("membership catalog: %s: %s", e.Level, e.Reason)
}

// Catalog is the immutable tier table. It is safe for concurrent use.
type Catalog struct {
	tiers     map[types.MembershipLevel]types.MembershipTier
	rates     map[RateKey]float64
	basicRate float64
}

// DefaultCatalogConfig returns the production tier ladder.
func DefaultCatalogConfig() CatalogConfig {
	return CatalogConfig{
		Tiers: []TierSpec{
			{
				Level:            types.LevelBasic,
				Name:             "Basic Member",
				Emoji:            "🌱",
				Benefits:         "Start your investment journey with low minimums",
				MinAmount:        decimal.Zero,
				MinPerInvestment: decimal.NewFromInt(100),
				MaxPerInvestment: decimal.NewFromInt(5000),
				Terms:            []int{TermYear},
			},
			{
				Level:            types.LevelClub,
				Name:             "Club Member",
				Emoji:            "🥉",
				Benefits:         "Entry-level membership with solid returns",
				MinAmount:        decimal.NewFromInt(20000),
				MinPerInvestment: decimal.NewFromInt(20000),
				MaxPerInvestment: decimal.NewFromInt(50000),
				Terms:            []int{TermYear},
			},
			{
				Level:            types.LevelPremium,
				Name:             "Premium Member",
				Emoji:            "🥈",
				Benefits:         "Enhanced returns with flexible lock periods",
				MinAmount:        decimal.NewFromInt(50000),
				MinPerInvestment: decimal.NewFromInt(50000),
				MaxPerInvestment: decimal.NewFromInt(100000),
				Terms:            []int{TermHalfYear, TermYear},
			},
			{
				Level:            types.LevelVIP,
				Name:             "VIP Member",
				Emoji:            "🥇",
				Benefits:         "Premium rates with exclusive VIP treatment",
				MinAmount:        decimal.NewFromInt(100000),
				MinPerInvestment: decimal.NewFromInt(100000),
				MaxPerInvestment: decimal.NewFromInt(250000),
				Terms:            []int{TermHalfYear, TermYear},
			},
			{
				Level:            types.LevelElite,
				Name:             "Elite Member",
				Emoji:            "💎",
				Benefits:         "Highest rates with unlimited investment capacity",
				MinAmount:        decimal.NewFromInt(250000),
				MinPerInvestment: decimal.NewFromInt(250000),
				MaxPerInvestment: decimal.NewFromInt(250000),
				Terms:            []int{TermHalfYear, TermYear},
			},
		},
		Rates: map[RateKey]float64{
			{types.LevelClub, TermYear}:        6.0,
			{types.LevelPremium, TermHalfYear}: 8.0,
			{types.LevelPremium, TermYear}:     10.0,
			{types.LevelVIP, TermHalfYear}:     12.0,
			{types.LevelVIP, TermYear}:         14.0,
			{types.LevelElite, TermHalfYear}:   16.0,
			{types.LevelElite, TermYear}:       20.0,
		},
		BasicRate: 3.0,
	}
}

// NewCatalog validates cfg and builds the tier table. Every ranked tier must be
// present exactly once with strictly ascending floors starting at zero, and
// every non-Basic term must have a rate.
func NewCatalog(cfg CatalogConfig) (*Catalog, error) {
	specs := make([]TierSpec, len(cfg.Tiers))
	copy(specs, cfg.Tiers)
	sort.Slice(specs, func(i, j int) bool { return specs[i].Level < specs[j].Level })

	if len(specs) != len(types.TierLevels) {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("expected %d tiers, got %d", len(types.TierLevels), len(specs))}
	}
	if cfg.BasicRate <= 0 {
		return nil, &ConfigurationError{Level: types.LevelBasic, Reason: "basic rate must be positive"}
	}

	rates := make(map[RateKey]float64, len(cfg.Rates))
	for k, v := range cfg.Rates {
		rates[k] = v
	}

	c := &Catalog{
		tiers:     make(map[types.MembershipLevel]types.MembershipTier, len(specs)),
		rates:     rates,
		basicRate: cfg.BasicRate,
	}

	for i, spec := range specs {
		if spec.Level != types.TierLevels[i] {
			return nil, &ConfigurationError{Level: spec.Level, Reason: "duplicate or unknown tier"}
		}
		if i == 0 && !spec.MinAmount.IsZero() {
			return nil, &ConfigurationError{Level: spec.Level, Reason: "lowest tier must start at zero"}
		}
		if i > 0 && !spec.MinAmount.GreaterThan(specs[i-1].MinAmount) {
			return nil, &ConfigurationError{Level: spec.Level, Reason: "tier floors must be strictly ascending"}
		}
		if len(spec.Terms) == 0 {
			return nil, &ConfigurationError{Level: spec.Level, Reason: "tier has no plan terms"}
		}
		if !spec.MinPerInvestment.IsPositive() || spec.MaxPerInvestment.LessThan(spec.MinPerInvestment) {
			return nil, &ConfigurationError{Level: spec.Level, Reason: "invalid per-investment bounds"}
		}

		tier := types.MembershipTier{
			Level:            spec.Level,
			Name:             spec.Name,
			Emoji:            spec.Emoji,
			Benefits:         spec.Benefits,
			MinAmount:        spec.MinAmount,
			MinPerInvestment: spec.MinPerInvestment,
			MaxPerInvestment: spec.MaxPerInvestment,
		}
		if i+1 < len(specs) {
			// Amounts carry cents, so the inclusive ceiling is one cent below
			// the next floor.
			upper := specs[i+1].MinAmount.Sub(amountUnit)
			tier.MaxAmount = &upper
		}

		for _, term := range spec.Terms {
			rate, err := c.RateFor(spec.Level, term)
			if err != nil {
				return nil, err
			}
			tier.Templates = append(tier.Templates, types.PlanTemplate{Rate: rate, TermDays: term})
		}
		c.tiers[spec.Level] = tier
	}

	return c, nil
}

// MustCatalog is like NewCatalog but panics on an invalid table. It is meant
// for the built-in configuration, which is fixed at compile time.
func MustCatalog(cfg CatalogConfig) *Catalog {
	c, err := NewCatalog(cfg)
	if err != nil {
		panic(err)
	}
	return c
}

// DefaultCatalog returns a Catalog built from DefaultCatalogConfig.
func DefaultCatalog() *Catalog {
	return MustCatalog(DefaultCatalogConfig())
}

// Tier returns the definition of a ranked tier.
func (c *Catalog) Tier(level types.MembershipLevel) (types.MembershipTier, bool) {
	t, ok := c.tiers[level]
	if !ok {
		return types.MembershipTier{}, false
	}
	t.Templates = append([]types.PlanTemplate(nil), t.Templates...)
	return t, true
}

// Tiers returns every tier in ascending order.
func (c *Catalog) Tiers() []types.MembershipTier {
	out := make([]types.MembershipTier, 0, len(types.TierLevels))
	for _, level := range types.TierLevels {
		t, _ := c.Tier(level)
		out = append(out, t)
	}
	return out
}

// TierForAmount places a cumulative total in exactly one tier. Floors are
// checked highest first so the unbounded top tier needs no upper bound and any
// amount below the Club floor (including negative noise) falls through to Basic.
func (c *Catalog) TierForAmount(total decimal.Decimal) types.MembershipLevel {
	for i := len(types.TierLevels) - 1; i > 0; i-- {
		level := types.TierLevels[i]
		if total.GreaterThanOrEqual(c.tiers[level].MinAmount) {
			return level
		}
	}
	return types.LevelBasic
}

// RateFor looks up the APY for a tier and term. Basic has a flat rate for any
// term. A missing entry is a ConfigurationError.
func (c *Catalog) RateFor(level types.MembershipLevel, termDays int) (float64, error) {
	if level == types.LevelBasic {
		return c.basicRate, nil
	}
	rate, ok := c.rates[RateKey{Level: level, TermDays: termDays}]
	if !ok {
		return 0, &ConfigurationError{Level: level, TermDays: termDays, Reason: "no rate configured"}
	}
	return rate, nil
}

// floor returns a tier's band floor. Callers only pass ranked tiers.
func (c *Catalog) floor(level types.MembershipLevel) decimal.Decimal {
	return c.tiers[level].MinAmount
}
