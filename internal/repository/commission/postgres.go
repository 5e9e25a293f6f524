package commission

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

// ClaimLease is how long a claim blocks other attempts on the same credit.
const ClaimLease = 5 * time.Minute

const creditColumns = `order_id, code, affiliate_id, amount::text, currency, created_at, paid_at`

type postgresRepo struct {
	pool  *pgxpool.Pool
	lease time.Duration
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool, lease: ClaimLease}
}

func (r *postgresRepo) Claim(ctx context.Context, credit domain.CommissionCredit) (*domain.CommissionCredit, error) {
	const q = `
INSERT INTO commission_credits (order_id, code, affiliate_id, amount, currency, claimed_at)
VALUES ($1, $2, $3, $4::numeric, $5, now())
ON CONFLICT (order_id, code) DO UPDATE SET claimed_at = now()
WHERE commission_credits.paid_at IS NULL
  AND (commission_credits.claimed_at IS NULL OR commission_credits.claimed_at < $6)
RETURNING ` + creditColumns
	row := r.pool.QueryRow(ctx, q, credit.OrderID, credit.Code, credit.AffiliateID, credit.Amount.StringFixed(2), credit.Currency,
		time.Now().Add(-r.lease))
	out, err := scanCredit(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, r.claimConflict(ctx, credit.OrderID, credit.Code)
	}
	if err != nil {
		return nil, errors.Wrap(err, "claim commission credit")
	}
	return out, nil
}

// claimConflict explains why the upsert returned nothing.
func (r *postgresRepo) claimConflict(ctx context.Context, orderID, code string) error {
	var paid bool
	err := r.pool.QueryRow(ctx,
		`SELECT paid_at IS NOT NULL FROM commission_credits WHERE order_id = $1 AND code = $2`,
		orderID, code).Scan(&paid)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.ErrLocked
	case err != nil:
		return errors.Wrap(err, "inspect commission credit")
	case paid:
		return domain.ErrAlreadyExists
	default:
		return domain.ErrLocked
	}
}

func (r *postgresRepo) MarkPaid(ctx context.Context, orderID, code string) error {
	cmd, err := r.pool.Exec(ctx, `
UPDATE commission_credits SET paid_at = now(), claimed_at = NULL
WHERE order_id = $1 AND code = $2 AND paid_at IS NULL`, orderID, code)
	if err != nil {
		return errors.Wrap(err, "mark commission credit paid")
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) Release(ctx context.Context, orderID, code string) error {
	_, err := r.pool.Exec(ctx, `
UPDATE commission_credits SET claimed_at = NULL
WHERE order_id = $1 AND code = $2 AND paid_at IS NULL`, orderID, code)
	return errors.Wrap(err, "release commission credit")
}

func (r *postgresRepo) ListUnpaid(ctx context.Context, limit int) ([]domain.CommissionCredit, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT ` + creditColumns + `
FROM commission_credits
WHERE paid_at IS NULL AND (claimed_at IS NULL OR claimed_at < $1)
ORDER BY created_at
LIMIT $2
`
	rows, err := r.pool.Query(ctx, q, time.Now().Add(-r.lease), limit)
	if err != nil {
		return nil, errors.Wrap(err, "list unpaid commission credits")
	}
	return collectCredits(rows)
}

// ListByAffiliate returns paid credits only.
func (r *postgresRepo) ListByAffiliate(ctx context.Context, affiliateID string, limit int) ([]domain.CommissionCredit, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT ` + creditColumns + `
FROM commission_credits
WHERE affiliate_id = $1 AND paid_at IS NOT NULL
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := r.pool.Query(ctx, q, affiliateID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list commission credits")
	}
	return collectCredits(rows)
}

func collectCredits(rows pgx.Rows) ([]domain.CommissionCredit, error) {
	defer rows.Close()

	var out []domain.CommissionCredit
	for rows.Next() {
		c, err := scanCredit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list commission credits")
	}
	return out, nil
}

func scanCredit(row pgx.Row) (*domain.CommissionCredit, error) {
	var (
		out    domain.CommissionCredit
		amount string
	)
	if err := row.Scan(&out.OrderID, &out.Code, &out.AffiliateID, &amount, &out.Currency, &out.CreatedAt, &out.PaidAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, errors.Wrapf(err, "parse amount %q", amount)
	}
	out.Amount = d
	return &out, nil
}
