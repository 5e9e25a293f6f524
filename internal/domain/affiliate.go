package domain

import "time"

// Affiliate statuses.
const (
	AffiliatePending  = "pending"
	AffiliateApproved = "approved"
	AffiliateRejected = "rejected"
)

// Affiliate is a referral partner record owned by the content store.
type Affiliate struct {
	ID             string    `json:"_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Slug           string    `json:"slug"`
	Category       string    `json:"category,omitempty"`
	Website        string    `json:"website,omitempty"`
	Status         string    `json:"status"`
	CommissionRate float64   `json:"commissionRate"`
	Earnings       float64   `json:"earnings"`
	CreatedAt      time.Time `json:"_createdAt,omitempty"`
	// TokenHash is the SHA-256 of the dashboard token. Never projected to pages.
	TokenHash string `json:"-"`
}

// Approved reports whether the affiliate may earn commission.
func (a Affiliate) Approved() bool {
	return a.Status == AffiliateApproved
}

// ChatLog is a write-only audit record of one assistant exchange.
type ChatLog struct {
	ID        string    `json:"_id"`
	SessionID string    `json:"sessionId,omitempty"`
	Message   string    `json:"userMessage"`
	Reply     string    `json:"assistantReply"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"timestamp"`
}
