package types

import (
	"fmt"
)

// MembershipLevel is the closed, totally ordered set of membership tiers.
// The zero value is LevelNone (a user who never completed onboarding).
// Comparison operators follow tier order: LevelBasic < LevelClub < ... < LevelElite.
type MembershipLevel uint8

const (
	LevelNone MembershipLevel = iota
	LevelBasic
	LevelClub
	LevelPremium
	LevelVIP
	LevelElite
)

// TierLevels lists every tier in ascending order. LevelNone is not a tier.
var TierLevels = []MembershipLevel{LevelBasic, LevelClub, LevelPremium, LevelVIP, LevelElite}

var levelNames = [...]string{
	LevelNone:    "none",
	LevelBasic:   "basic",
	LevelClub:    "club",
	LevelPremium: "premium",
	LevelVIP:     "vip",
	LevelElite:   "elite",
}

// String returns the wire name of the level ("basic", "club", ...).
func (l MembershipLevel) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("MembershipLevel(%d)", uint8(l))
}

// IsTier reports whether l is one of the five ranked tiers.
func (l MembershipLevel) IsTier() bool {
	return l >= LevelBasic && l <= LevelElite
}

// Next returns the tier immediately above l. ok is false for LevelElite and
// for values outside the tier range.
func (l MembershipLevel) Next() (next MembershipLevel, ok bool) {
	if !l.IsTier() || l == LevelElite {
		return LevelNone, false
	}
	return l + 1, true
}

// MarshalText encodes the level as its wire name.
func (l MembershipLevel) MarshalText() ([]byte, error) {
	if int(l) >= len(levelNames) {
		return nil, fmt.Errorf("invalid membership level %d", uint8(l))
	}
	return []byte(levelNames[l]), nil
}

// UnmarshalText decodes a wire name. The empty string decodes to LevelNone.
func (l *MembershipLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseMembershipLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseMembershipLevel converts a stored or submitted level name.
// The empty string is treated as "none" because legacy user rows may omit it.
func ParseMembershipLevel(s string) (MembershipLevel, error) {
	if s == "" {
		return LevelNone, nil
	}
	for i, name := range levelNames {
		if name == s {
			return MembershipLevel(i), nil
		}
	}
	return LevelNone, fmt.Errorf("unknown membership level %q", s)
}

// InvestmentStatus is the lifecycle flag of an investment record.
// It never affects the cumulative total.
type InvestmentStatus string

const (
	InvestmentActive    InvestmentStatus = "active"
	InvestmentPending   InvestmentStatus = "pending"
	InvestmentCompleted InvestmentStatus = "completed"
)
