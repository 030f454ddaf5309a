package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"vonvault/internal/types"
)

// PlanRepository provides data access for the investment_plans table, a
// published copy of the generated plan catalog.
type PlanRepository struct {
	db DBTX
}

// NewPlanRepository creates a new PlanRepository.
func NewPlanRepository(db DBTX) *PlanRepository {
	return &PlanRepository{db: db}
}

const planColumns = `id, name, description, membership_level, rate, term_days,
	min_amount::text, max_amount::text, is_active`

func scanPlan(row pgx.Row) (*types.InvestmentPlan, error) {
	var p types.InvestmentPlan
	var level, minAmount, maxAmount string
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&level,
		&p.Rate,
		&p.TermDays,
		&minAmount,
		&maxAmount,
		&p.IsActive,
	)
	if err != nil {
		return nil, err
	}
	if p.MembershipLevel, err = types.ParseMembershipLevel(level); err != nil {
		return nil, err
	}
	if p.MinAmount, err = decimal.NewFromString(minAmount); err != nil {
		return nil, fmt.Errorf("invalid min_amount %q: %w", minAmount, err)
	}
	if p.MaxAmount, err = decimal.NewFromString(maxAmount); err != nil {
		return nil, fmt.Errorf("invalid max_amount %q: %w", maxAmount, err)
	}
	return &p, nil
}

// ReplaceAll deletes every stored plan and inserts plans. Run it on a
// transaction so readers never see a partial catalog.
func (r *PlanRepository) ReplaceAll(ctx context.Context, plans []types.InvestmentPlan) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM investment_plans`); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to clear investment plans", err)
	}

	for _, p := range plans {
		_, err := r.db.Exec(ctx,
			`INSERT INTO investment_plans (id, name, description, membership_level, rate, term_days,
			 min_amount, max_amount, is_active)
			 VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9)`,
			p.ID,
			p.Name,
			p.Description,
			p.MembershipLevel.String(),
			p.Rate,
			p.TermDays,
			p.MinAmount.String(),
			p.MaxAmount.String(),
			p.IsActive,
		)
		if err != nil {
			return types.NewAppError(types.ErrCodeInternalDB,
				fmt.Sprintf("failed to insert investment plan %s", p.ID), err)
		}
	}
	return nil
}

// ListAll returns every stored plan ordered by tier, then term.
func (r *PlanRepository) ListAll(ctx context.Context) ([]types.InvestmentPlan, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+planColumns+`
		 FROM investment_plans
		 ORDER BY min_amount, term_days, id`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list investment plans", err)
	}
	defer rows.Close()

	plans := make([]types.InvestmentPlan, 0)
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan investment plan", err)
		}
		plans = append(plans, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate investment plans", err)
	}
	return plans, nil
}

// SeedPlans replaces the stored catalog with plans in a single transaction.
func SeedPlans(ctx context.Context, pool TxBeginner, plans []types.InvestmentPlan) error {
	return WithTransaction(ctx, pool, func(tx pgx.Tx) error {
		return NewPlanRepository(tx).ReplaceAll(ctx, plans)
	})
}
