package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"vonvault/internal/types"
)

// InvestmentRepository provides data access for the investments table.
// Records are append-only; amount and membership_level are never updated.
type InvestmentRepository struct {
	db DBTX
}

// NewInvestmentRepository creates a new InvestmentRepository.
func NewInvestmentRepository(db DBTX) *InvestmentRepository {
	return &InvestmentRepository{db: db}
}

// Amounts travel as text so NUMERIC values never pass through float64.
const investmentColumns = `id, user_id, name, amount::text, rate, term, term_days,
	membership_level, status, created_at`

func scanInvestment(row pgx.Row) (*types.Investment, error) {
	var inv types.Investment
	var (
		name   *string
		amount string
		level  string
		status string
	)
	err := row.Scan(
		&inv.ID,
		&inv.UserID,
		&name,
		&amount,
		&inv.Rate,
		&inv.Term,
		&inv.TermDays,
		&level,
		&status,
		&inv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if name != nil {
		inv.Name = *name
	}
	if inv.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if inv.MembershipLevel, err = types.ParseMembershipLevel(level); err != nil {
		return nil, err
	}
	inv.Status = types.InvestmentStatus(status)
	return &inv, nil
}

// CreateInvestment inserts an investment record.
func (r *InvestmentRepository) CreateInvestment(ctx context.Context, inv *types.Investment) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO investments (id, user_id, name, amount, rate, term, term_days,
		 membership_level, status, created_at)
		 VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10)`,
		inv.ID,
		inv.UserID,
		inv.Name,
		inv.Amount.String(),
		inv.Rate,
		inv.Term,
		inv.TermDays,
		inv.MembershipLevel.String(),
		string(inv.Status),
		inv.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create investment", err)
	}
	return nil
}

// TotalInvested returns the sum of amount over the user's non-deleted
// investments, regardless of status. A user with no investments totals zero.
func (r *InvestmentRepository) TotalInvested(ctx context.Context, userID string) (decimal.Decimal, error) {
	var total string
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)::text
		 FROM investments
		 WHERE user_id = $1 AND deleted_at IS NULL`,
		userID,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, types.NewAppError(types.ErrCodeInternalDB, "failed to sum investments", err)
	}

	sum, err := decimal.NewFromString(total)
	if err != nil {
		return decimal.Zero, types.NewAppError(types.ErrCodeInternalDB, "invalid investment total", err)
	}
	return sum, nil
}

// ListByUser returns the user's non-deleted investments, newest first.
func (r *InvestmentRepository) ListByUser(ctx context.Context, userID string) ([]types.Investment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+investmentColumns+`
		 FROM investments
		 WHERE user_id = $1 AND deleted_at IS NULL
		 ORDER BY created_at DESC, id`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list investments", err)
	}
	defer rows.Close()

	investments := make([]types.Investment, 0)
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan investment", err)
		}
		investments = append(investments, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate investments", err)
	}
	return investments, nil
}
