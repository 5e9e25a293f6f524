// Package commission credits affiliates for paid orders that used their
// discount code.
package commission

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

// Affiliates looks up affiliates and credits their earnings.
type Affiliates interface {
	AffiliateBySlug(ctx context.Context, slug string) (*domain.Affiliate, error)
	IncrementEarnings(ctx context.Context, affiliateID string, amount float64) error
}

// Ledger remembers which (order, code) pairs were credited. A credit is
// claimed before earnings move and marked paid after.
type Ledger interface {
	Claim(ctx context.Context, credit domain.CommissionCredit) (*domain.CommissionCredit, error)
	MarkPaid(ctx context.Context, orderID, code string) error
	Release(ctx context.Context, orderID, code string) error
	ListUnpaid(ctx context.Context, limit int) ([]domain.CommissionCredit, error)
}

// Counter is satisfied by prometheus counters.
type Counter interface {
	Inc()
}

// Order is the subset of the paid-order notification used for commissions.
type Order struct {
	ID            json.Number    `json:"id"`
	Name          string         `json:"name"`
	Currency      string         `json:"currency"`
	SubtotalPrice string         `json:"subtotal_price"`
	DiscountCodes []DiscountCode `json:"discount_codes"`
}

type DiscountCode struct {
	Code   string `json:"code"`
	Amount string `json:"amount"`
	Type   string `json:"type"`
}

// Outcome of one discount code on an order.
const (
	OutcomeCredited    = "credited"
	OutcomeDuplicate   = "duplicate"
	OutcomeNoAffiliate = "no_affiliate"
	OutcomeNotApproved = "not_approved"
	OutcomeZero        = "zero_amount"
)

type CodeResult struct {
	Code        string          `json:"code"`
	AffiliateID string          `json:"affiliateId,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Outcome     string          `json:"outcome"`
}

type Result struct {
	OrderID string       `json:"orderId"`
	Codes   []CodeResult `json:"codes"`
}

type Service struct {
	secret     []byte
	affiliates Affiliates
	ledger     Ledger
	logger     zerolog.Logger

	credits  Counter
	rejected Counter
}

func New(secret string, affiliates Affiliates, ledger Ledger, logger zerolog.Logger) *Service {
	return &Service{secret: []byte(secret), affiliates: affiliates, ledger: ledger, logger: logger}
}

// WithCounters counts credited codes and rejected signatures.
func (s *Service) WithCounters(credits, rejected Counter) *Service {
	s.credits = credits
	s.rejected = rejected
	return s
}

// Commission is subtotal × rate / 100, rounded half away from zero to cents.
func Commission(subtotal decimal.Decimal, ratePercent float64) decimal.Decimal {
	rate := decimal.NewFromFloat(ratePercent)
	return subtotal.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)
}

// HandleOrderPaid verifies the notification and credits each affiliate whose
// slug matches a discount code. Nothing is parsed or looked up before the
// signature is verified. A failed earnings update leaves its ledger entry
// unpaid and returns the error so the notification is retried.
func (s *Service) HandleOrderPaid(ctx context.Context, body []byte, signature string) (*Result, error) {
	if err := Verify(s.secret, body, signature); err != nil {
		if s.rejected != nil {
			s.rejected.Inc()
		}
		return nil, err
	}

	var order Order
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, errors.Wrapf(ErrMalformedOrder, "decode order: %v", err)
	}
	orderID := order.ID.String()
	if orderID == "" {
		return nil, errors.Wrap(ErrMalformedOrder, "order id missing")
	}
	subtotal := decimal.Zero
	if order.SubtotalPrice != "" {
		d, err := decimal.NewFromString(order.SubtotalPrice)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedOrder, "parse subtotal %q", order.SubtotalPrice)
		}
		subtotal = d
	}

	logger := s.logger.With().Str("order_id", orderID).Logger()
	res := &Result{OrderID: orderID}
	seen := make(map[string]bool)
	for _, dc := range order.DiscountCodes {
		code := strings.ToLower(strings.TrimSpace(dc.Code))
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true

		cr, err := s.credit(ctx, orderID, order.Currency, code, subtotal)
		if err != nil {
			logger.Error().Err(err).Str("code", code).Msg("commission credit failed")
			return res, err
		}
		logger.Info().Str("code", code).Str("outcome", cr.Outcome).Str("amount", cr.Amount.StringFixed(2)).Msg("commission processed")
		res.Codes = append(res.Codes, cr)
	}
	return res, nil
}

func (s *Service) credit(ctx context.Context, orderID, currency, code string, subtotal decimal.Decimal) (CodeResult, error) {
	cr := CodeResult{Code: code}

	aff, err := s.affiliates.AffiliateBySlug(ctx, code)
	if errors.Is(err, domain.ErrNotFound) {
		cr.Outcome = OutcomeNoAffiliate
		return cr, nil
	}
	if err != nil {
		return cr, errors.Wrapf(err, "lookup affiliate %q", code)
	}
	cr.AffiliateID = aff.ID
	if !aff.Approved() {
		cr.Outcome = OutcomeNotApproved
		return cr, nil
	}

	cr.Amount = Commission(subtotal, aff.CommissionRate)
	if !cr.Amount.IsPositive() {
		cr.Outcome = OutcomeZero
		return cr, nil
	}

	stored, err := s.ledger.Claim(ctx, domain.CommissionCredit{
		OrderID:     orderID,
		Code:        code,
		AffiliateID: aff.ID,
		Amount:      cr.Amount,
		Currency:    currency,
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		cr.Outcome = OutcomeDuplicate
		return cr, nil
	}
	if err != nil {
		return cr, errors.Wrap(err, "claim credit")
	}

	// A re-claimed entry keeps the amount of the first attempt.
	cr.Amount = stored.Amount
	if err := s.settle(ctx, *stored); err != nil {
		return cr, err
	}
	cr.Outcome = OutcomeCredited
	return cr, nil
}

// settle moves a claimed credit into the affiliate's earnings and marks it paid.
func (s *Service) settle(ctx context.Context, c domain.CommissionCredit) error {
	logger := s.logger.With().Str("order_id", c.OrderID).Str("code", c.Code).Logger()

	if err := s.affiliates.IncrementEarnings(ctx, c.AffiliateID, c.Amount.InexactFloat64()); err != nil {
		if rerr := s.ledger.Release(context.WithoutCancel(ctx), c.OrderID, c.Code); rerr != nil {
			logger.Error().Err(rerr).Msg("release ledger entry")
		}
		return errors.Wrap(err, "increment earnings")
	}
	if err := s.ledger.MarkPaid(context.WithoutCancel(ctx), c.OrderID, c.Code); err != nil {
		// Earnings already moved; once the claim lapses the entry is credited again.
		logger.Error().Err(err).Str("affiliate_id", c.AffiliateID).Str("amount", c.Amount.StringFixed(2)).
			Msg("earnings credited but ledger entry not marked paid")
	}
	if s.credits != nil {
		s.credits.Inc()
	}
	return nil
}

// Reconcile re-attempts credits left unpaid by an interrupted delivery and
// returns how many were settled. Entries another attempt holds are skipped.
func (s *Service) Reconcile(ctx context.Context, limit int) (int, error) {
	unpaid, err := s.ledger.ListUnpaid(ctx, limit)
	if err != nil {
		return 0, err
	}
	settled := 0
	for _, c := range unpaid {
		stored, err := s.ledger.Claim(ctx, c)
		if errors.Is(err, domain.ErrAlreadyExists) || errors.Is(err, domain.ErrLocked) {
			continue
		}
		if err != nil {
			return settled, errors.Wrapf(err, "claim credit %s/%s", c.OrderID, c.Code)
		}
		if err := s.settle(ctx, *stored); err != nil {
			return settled, errors.Wrapf(err, "settle credit %s/%s", c.OrderID, c.Code)
		}
		s.logger.Info().Str("order_id", c.OrderID).Str("code", c.Code).Str("amount", stored.Amount.StringFixed(2)).Msg("commission reconciled")
		settled++
	}
	return settled, nil
}
