// Package affiliate runs the partner program: applications and dashboards.
package affiliate

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"math/big"
	"net/mail"
	"net/url"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"storefront/internal/domain"
	"storefront/internal/gateway/klaviyo"
)

// ApplicationMetric is the marketing event sent for each application.
const ApplicationMetric = "Affiliate Application"

const (
	maxSlugLength  = 48
	slugAttempts   = 5
	suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	suffixLength   = 4
	recentCredits  = 20
	tokenBytes     = 32
)

// DashboardPath is the route that exchanges a dashboard token for a session.
const DashboardPath = "/affiliates/dashboard"

// Categories accepted on the application form.
var Categories = []string{"fitness", "nutrition", "wellness", "lifestyle", "medical", "other"}

// Store is the content store holding affiliate records.
type Store interface {
	AffiliateBySlug(ctx context.Context, slug string) (*domain.Affiliate, error)
	AffiliateByTokenHash(ctx context.Context, hash string) (*domain.Affiliate, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	CreateAffiliate(ctx context.Context, a domain.Affiliate) (*domain.Affiliate, error)
	SetTokenHash(ctx context.Context, affiliateID, hash string) error
}

// Events sends marketing events.
type Events interface {
	TrackEvent(ctx context.Context, ev klaviyo.Event) error
}

// Credits lists ledger entries for the dashboard.
type Credits interface {
	ListByAffiliate(ctx context.Context, affiliateID string, limit int) ([]domain.CommissionCredit, error)
}

type Service struct {
	store       Store
	events      Events
	credits     Credits
	siteURL     string
	defaultRate float64
	logger      zerolog.Logger
}

func New(store Store, events Events, credits Credits, siteURL string, defaultRate float64, logger zerolog.Logger) *Service {
	return &Service{
		store:       store,
		events:      events,
		credits:     credits,
		siteURL:     strings.TrimRight(siteURL, "/"),
		defaultRate: defaultRate,
		logger:      logger,
	}
}

// Application is the program sign-up form.
type Application struct {
	Name     string `form:"name" json:"name"`
	Email    string `form:"email" json:"email"`
	Category string `form:"category" json:"category"`
	Website  string `form:"website" json:"website"`
	Audience string `form:"audience" json:"audience"`
}

// Enrollment is a stored application plus the one-time view of its dashboard link.
type Enrollment struct {
	Affiliate    domain.Affiliate
	DashboardURL string
}

// Dashboard is what an affiliate sees on their page.
type Dashboard struct {
	Affiliate    domain.Affiliate
	ReferralLink string
	Credits      []domain.CommissionCredit
}

// Apply validates the application and stores a pending affiliate. Only the
// hash of the dashboard token is stored; the link is returned once and sent
// with the application event.
func (s *Service) Apply(ctx context.Context, in Application) (*Enrollment, error) {
	in, err := validate(in)
	if err != nil {
		return nil, err
	}
	slug, err := s.uniqueSlug(ctx, Slugify(in.Name))
	if err != nil {
		return nil, err
	}
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	a, err := s.store.CreateAffiliate(ctx, domain.Affiliate{
		Name:           in.Name,
		Email:          in.Email,
		Slug:           slug,
		Category:       in.Category,
		Website:        in.Website,
		Status:         domain.AffiliatePending,
		CommissionRate: s.defaultRate,
		TokenHash:      HashToken(token),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create affiliate")
	}
	s.logger.Info().Str("slug", a.Slug).Str("category", a.Category).Msg("affiliate application received")
	dashboard := s.dashboardURL(token)

	if s.events != nil {
		err := s.events.TrackEvent(ctx, klaviyo.Event{
			Metric: ApplicationMetric,
			Email:  a.Email,
			Properties: map[string]interface{}{
				"name":         a.Name,
				"slug":         a.Slug,
				"category":     a.Category,
				"website":      a.Website,
				"audience":     in.Audience,
				"dashboardUrl": dashboard,
			},
			UniqueID: a.ID,
		})
		if err != nil && !errors.Is(err, klaviyo.ErrDisabled) {
			s.logger.Warn().Err(err).Str("slug", a.Slug).Msg("track affiliate application")
		}
	}
	return &Enrollment{Affiliate: *a, DashboardURL: dashboard}, nil
}

// Dashboard loads the affiliate holding token and its recent credits. Empty
// or unknown tokens yield domain.ErrNotFound.
func (s *Service) Dashboard(ctx context.Context, token string) (*Dashboard, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrNotFound
	}
	a, err := s.store.AffiliateByTokenHash(ctx, HashToken(token))
	if err != nil {
		return nil, err
	}
	d := &Dashboard{Affiliate: *a, ReferralLink: s.ReferralLink(a.Slug)}
	if s.credits != nil && a.Approved() {
		credits, err := s.credits.ListByAffiliate(ctx, a.ID, recentCredits)
		if err != nil {
			s.logger.Warn().Err(err).Str("slug", a.Slug).Msg("list commission credits")
		}
		d.Credits = credits
	}
	return d, nil
}

// ResetDashboardLink replaces the dashboard token of the affiliate with slug
// and returns the new link. Earlier links stop working.
func (s *Service) ResetDashboardLink(ctx context.Context, slug string) (string, error) {
	a, err := s.store.AffiliateBySlug(ctx, strings.TrimSpace(slug))
	if err != nil {
		return "", err
	}
	token, err := newToken()
	if err != nil {
		return "", err
	}
	if err := s.store.SetTokenHash(ctx, a.ID, HashToken(token)); err != nil {
		return "", errors.Wrapf(err, "rotate dashboard token for %q", a.Slug)
	}
	s.logger.Info().Str("slug", a.Slug).Msg("affiliate dashboard link reset")
	return s.dashboardURL(token), nil
}

func (s *Service) dashboardURL(token string) string {
	return s.siteURL + DashboardPath + "/" + token
}

// HashToken is the stored form of a dashboard token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "dashboard token")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ReferralLink is the landing URL that attributes visitors to slug.
func (s *Service) ReferralLink(slug string) string {
	return s.siteURL + "/?ref=" + url.QueryEscape(slug)
}

func (s *Service) uniqueSlug(ctx context.Context, base string) (string, error) {
	candidate := base
	for i := 0; i < slugAttempts; i++ {
		exists, err := s.store.SlugExists(ctx, candidate)
		if err != nil {
			return "", errors.Wrap(err, "check slug")
		}
		if !exists {
			return candidate, nil
		}
		suffix, err := randomSuffix()
		if err != nil {
			return "", err
		}
		candidate = truncate(base, maxSlugLength-suffixLength-1) + "-" + suffix
	}
	return "", errors.Wrapf(domain.ErrAlreadyExists, "no free slug for %q", base)
}

// Slugify lowercases name and joins its letter and digit runs with dashes.
func Slugify(name string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if dash && sb.Len() > 0 {
				sb.WriteByte('-')
			}
			sb.WriteRune(r)
			dash = false
		default:
			dash = true
		}
	}
	slug := truncate(sb.String(), maxSlugLength)
	if slug == "" {
		return "partner"
	}
	return slug
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimRight(s[:n], "-")
}

func randomSuffix() (string, error) {
	b := make([]byte, suffixLength)
	max := big.NewInt(int64(len(suffixAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", errors.Wrap(err, "random slug suffix")
		}
		b[i] = suffixAlphabet[n.Int64()]
	}
	return string(b), nil
}

func validate(in Application) (Application, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	in.Website = strings.TrimSpace(in.Website)
	in.Audience = strings.TrimSpace(in.Audience)

	if in.Name == "" {
		return in, domain.Invalid("name", "is required")
	}
	if len(in.Name) > 100 {
		return in, domain.Invalid("name", "is too long")
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return in, domain.Invalid("email", "is not a valid email address")
	}
	if !slices.Contains(Categories, in.Category) {
		return in, domain.Invalid("category", "must be one of "+strings.Join(Categories, ", "))
	}
	if in.Website != "" {
		u, err := url.Parse(in.Website)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return in, domain.Invalid("website", "must be an http(s) URL")
		}
	}
	return in, nil
}
