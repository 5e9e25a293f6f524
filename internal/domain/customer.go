package domain

import "time"

// Customer is the account profile returned by the commerce backend for an access token.
type Customer struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"firstName,omitempty"`
	LastName    string    `json:"lastName,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	AcceptsMail bool      `json:"acceptsMarketing"`
	Orders      []Order   `json:"orders,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// DisplayName prefers the first name and falls back to the email.
func (c Customer) DisplayName() string {
	if c.FirstName != "" {
		return c.FirstName
	}
	return c.Email
}

// Order is a summary of a past order.
type Order struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	ProcessedAt       time.Time `json:"processedAt"`
	FinancialStatus   string    `json:"financialStatus,omitempty"`
	FulfillmentStatus string    `json:"fulfillmentStatus,omitempty"`
	Total             Money     `json:"total"`
	ItemCount         int       `json:"itemCount"`
}

// AccessToken is a customer session credential issued by the commerce backend.
type AccessToken struct {
	Token     string    `json:"accessToken"`
	ExpiresAt time.Time `json:"expiresAt"`
}
