package commission

import (
	"context"

	"storefront/internal/domain"
)

// Repository is the ledger of commission credits.
type Repository interface {
	// Claim records a credit as unpaid and claimed by the caller. An unpaid
	// credit whose claim has lapsed is handed back as stored. A paid credit
	// yields domain.ErrAlreadyExists and a live claim yields domain.ErrLocked.
	Claim(ctx context.Context, credit domain.CommissionCredit) (*domain.CommissionCredit, error)
	MarkPaid(ctx context.Context, orderID, code string) error
	// Release drops the claim on an unpaid credit so the next attempt can take it.
	Release(ctx context.Context, orderID, code string) error
	ListUnpaid(ctx context.Context, limit int) ([]domain.CommissionCredit, error)
	ListByAffiliate(ctx context.Context, affiliateID string, limit int) ([]domain.CommissionCredit, error)
}
