package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionCredit records one affiliate credit for one paid order. A given
// (OrderID, Code) pair is credited at most once. PaidAt stays nil until the
// affiliate's earnings were updated.
type CommissionCredit struct {
	OrderID     string          `json:"orderId"`
	Code        string          `json:"code"`
	AffiliateID string          `json:"affiliateId"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	CreatedAt   time.Time       `json:"createdAt"`
	PaidAt      *time.Time      `json:"paidAt,omitempty"`
}

func (c CommissionCredit) Paid() bool { return c.PaidAt != nil }
