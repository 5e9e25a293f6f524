package domain

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Money is an amount in a currency, as reported by the commerce backend.
type Money struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currencyCode"`
}

// ParseMoney reads the string amount format used by the commerce API ("19.99").
func ParseMoney(amount, currency string) (Money, error) {
	if amount == "" {
		return Money{CurrencyCode: currency}, nil
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, errors.Wrapf(err, "parse amount %q", amount)
	}
	return Money{Amount: d, CurrencyCode: currency}, nil
}

// String renders the amount with two decimals, e.g. "19.99 USD".
func (m Money) String() string {
	if m.CurrencyCode == "" {
		return m.Amount.StringFixed(2)
	}
	return m.Amount.StringFixed(2) + " " + m.CurrencyCode
}
