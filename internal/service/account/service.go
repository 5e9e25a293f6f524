// Package account signs customers in and out against the commerce backend and
// loads their dashboard.
package account

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"storefront/internal/domain"
	"storefront/internal/gateway/shopify"
)

// RecentOrders is how many orders the dashboard shows.
const RecentOrders = 10

// MaxSessionAge caps how long the customer cookie lives.
const MaxSessionAge = 30 * 24 * time.Hour

var (
	// ErrInvalidCredentials is returned when email/password do not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken indicates the session token is missing, expired or revoked.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidEmail is returned for an unparsable email address.
	ErrInvalidEmail = errors.New("invalid email")
)

// Gateway is the customer API of the commerce backend.
type Gateway interface {
	CreateAccessToken(ctx context.Context, email, password string) (domain.AccessToken, error)
	DeleteAccessToken(ctx context.Context, token string) error
	CreateCustomer(ctx context.Context, in shopify.CustomerInput) (string, error)
	Customer(ctx context.Context, token string, orders int) (*domain.Customer, error)
}

// Service handles customer signup/login flows.
type Service struct {
	gw          Gateway
	logger      zerolog.Logger
	passwordMin int
	now         func() time.Time
}

func New(gw Gateway, logger zerolog.Logger) *Service {
	return &Service{gw: gw, logger: logger, passwordMin: 8, now: time.Now}
}

// RegisterInput captures fields expected by the registration form.
type RegisterInput struct {
	Email            string `form:"email" json:"email"`
	Password         string `form:"password" json:"password"`
	FirstName        string `form:"firstName" json:"firstName"`
	LastName         string `form:"lastName" json:"lastName"`
	AcceptsMarketing bool   `form:"acceptsMarketing" json:"acceptsMarketing"`
}

// Login exchanges credentials for an access token.
func (s *Service) Login(ctx context.Context, email, password string) (domain.AccessToken, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return domain.AccessToken{}, ErrInvalidCredentials
	}
	if strings.TrimSpace(password) == "" {
		return domain.AccessToken{}, ErrInvalidCredentials
	}
	tok, err := s.gw.CreateAccessToken(ctx, email, password)
	if errors.Is(err, shopify.ErrInvalidCredentials) {
		return domain.AccessToken{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.AccessToken{}, errors.Wrap(err, "create access token")
	}
	return tok, nil
}

// Register creates the account and signs the new customer in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (domain.AccessToken, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return domain.AccessToken{}, err
	}
	if err := validatePassword(in.Password, s.passwordMin); err != nil {
		return domain.AccessToken{}, domain.Invalid("password", err.Error())
	}
	id, err := s.gw.CreateCustomer(ctx, shopify.CustomerInput{
		Email:            email,
		Password:         in.Password,
		FirstName:        strings.TrimSpace(in.FirstName),
		LastName:         strings.TrimSpace(in.LastName),
		AcceptsMarketing: in.AcceptsMarketing,
	})
	if err != nil {
		return domain.AccessToken{}, errors.Wrap(err, "create customer")
	}
	s.logger.Info().Str("customer_id", id).Msg("customer registered")
	return s.Login(ctx, email, in.Password)
}

// Logout revokes the token. Failures are logged; the caller clears the cookie regardless.
func (s *Service) Logout(ctx context.Context, token string) {
	if token == "" {
		return
	}
	if err := s.gw.DeleteAccessToken(ctx, token); err != nil {
		s.logger.Warn().Err(err).Msg("revoke access token")
	}
}

// Dashboard returns the customer and their most recent orders.
func (s *Service) Dashboard(ctx context.Context, token string) (*domain.Customer, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	c, err := s.gw.Customer(ctx, token, RecentOrders)
	if errors.Is(err, shopify.ErrUnauthorized) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, errors.Wrap(err, "load customer")
	}
	return c, nil
}

// SessionMaxAge is the cookie lifetime for tok: its remaining validity, capped
// at MaxSessionAge.
func (s *Service) SessionMaxAge(tok domain.AccessToken) time.Duration {
	if tok.ExpiresAt.IsZero() {
		return MaxSessionAge
	}
	left := tok.ExpiresAt.Sub(s.now())
	if left <= 0 {
		return 0
	}
	if left > MaxSessionAge {
		return MaxSessionAge
	}
	return left
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func validatePassword(p string, min int) error {
	trimmed := strings.TrimSpace(p)
	if len(trimmed) < min {
		return errors.Errorf("must be at least %d characters", min)
	}
	hasUpper := false
	hasLower := false
	hasDigit := false
	for _, r := range trimmed {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return errors.New("must contain an uppercase letter, a lowercase letter and a number")
	}
	return nil
}
