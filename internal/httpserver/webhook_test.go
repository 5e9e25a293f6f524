package httpserver

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"storefront/internal/domain"
	"storefront/internal/service/commission"
)

const webhookSecret = "whsec_test"

type countingAffiliates struct {
	lookups    int
	increments map[string]float64
	incErr     error
}

func (a *countingAffiliates) AffiliateBySlug(_ context.Context, slug string) (*domain.Affiliate, error) {
	a.lookups++
	if slug != "jane" {
		return nil, domain.ErrNotFound
	}
	return &domain.Affiliate{ID: "a1", Slug: "jane", Status: domain.AffiliateApproved, CommissionRate: 20}, nil
}

func (a *countingAffiliates) IncrementEarnings(_ context.Context, id string, amount float64) error {
	if a.incErr != nil {
		return a.incErr
	}
	if a.increments == nil {
		a.increments = make(map[string]float64)
	}
	a.increments[id] += amount
	return nil
}

// setLedger tracks paid (order, code) pairs; claims never block.
type setLedger struct{ paid map[string]bool }

func (l *setLedger) Claim(_ context.Context, c domain.CommissionCredit) (*domain.CommissionCredit, error) {
	if l.paid[c.OrderID+"/"+c.Code] {
		return nil, domain.ErrAlreadyExists
	}
	return &c, nil
}

func (l *setLedger) MarkPaid(_ context.Context, orderID, code string) error {
	if l.paid == nil {
		l.paid = make(map[string]bool)
	}
	l.paid[orderID+"/"+code] = true
	return nil
}

func (l *setLedger) Release(context.Context, string, string) error { return nil }

func (l *setLedger) ListUnpaid(context.Context, int) ([]domain.CommissionCredit, error) {
	return nil, nil
}

func webhookRequest(body []byte, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/orders-paid", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(commission.SignatureHeader, signature)
	}
	return req
}

func newWebhookRouter(t *testing.T, affs *countingAffiliates) http.Handler {
	svc := commission.New(webhookSecret, affs, &setLedger{}, zerolog.Nop())
	return newTestRouter(t, Deps{Commissions: svc})
}

var paidOrder = []byte(`{"id":1001,"name":"#1001","currency":"USD","subtotal_price":"100.00","discount_codes":[{"code":"JANE"}]}`)

func TestOrdersPaidCreditsAffiliate(t *testing.T) {
	affs := &countingAffiliates{}
	router := newWebhookRouter(t, affs)

	rec := serve(router, webhookRequest(paidOrder, commission.Sign([]byte(webhookSecret), paidOrder)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if got := affs.increments["a1"]; got != 20 {
		t.Fatalf("expected earnings +20.00, got %v", got)
	}
	if !strings.Contains(rec.Body.String(), `"outcome":"credited"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	rec = serve(router, webhookRequest(paidOrder, commission.Sign([]byte(webhookSecret), paidOrder)))
	if rec.Code != http.StatusOK || affs.increments["a1"] != 20 {
		t.Fatalf("redelivery must not credit twice: %d %v", rec.Code, affs.increments)
	}
}

func TestOrdersPaidRejectsBadSignature(t *testing.T) {
	affs := &countingAffiliates{}
	router := newWebhookRouter(t, affs)

	for _, sig := range []string{"", "bm90IHRoZSBzaWduYXR1cmU=", commission.Sign([]byte("other"), paidOrder)} {
		rec := serve(router, webhookRequest(paidOrder, sig))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %q, got %d", sig, rec.Code)
		}
	}
	if affs.lookups != 0 {
		t.Fatalf("affiliate lookup must not run before verification, got %d calls", affs.lookups)
	}
}

func TestOrdersPaidMalformedOrder(t *testing.T) {
	router := newWebhookRouter(t, &countingAffiliates{})
	body := []byte(`{"id":`)

	rec := serve(router, webhookRequest(body, commission.Sign([]byte(webhookSecret), body)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestOrdersPaidIncrementFailureAsksForRetry(t *testing.T) {
	affs := &countingAffiliates{incErr: errors.New("cms unavailable")}
	router := newWebhookRouter(t, affs)

	rec := serve(router, webhookRequest(paidOrder, commission.Sign([]byte(webhookSecret), paidOrder)))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	affs.incErr = nil
	rec = serve(router, webhookRequest(paidOrder, commission.Sign([]byte(webhookSecret), paidOrder)))
	if rec.Code != http.StatusOK || affs.increments["a1"] != 20 {
		t.Fatalf("retry should credit once: %d %v", rec.Code, affs.increments)
	}
}
