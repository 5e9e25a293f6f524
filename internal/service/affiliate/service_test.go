package affiliate

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/gateway/klaviyo"
)

type memoryStore struct {
	bySlug   map[string]domain.Affiliate
	taken    map[string]bool
	checks   []string
	existErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{bySlug: make(map[string]domain.Affiliate), taken: make(map[string]bool)}
}

func (s *memoryStore) AffiliateBySlug(_ context.Context, slug string) (*domain.Affiliate, error) {
	a, ok := s.bySlug[strings.ToLower(slug)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

func (s *memoryStore) AffiliateByTokenHash(_ context.Context, hash string) (*domain.Affiliate, error) {
	for _, a := range s.bySlug {
		if a.TokenHash != "" && a.TokenHash == hash {
			return &a, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memoryStore) SetTokenHash(_ context.Context, id, hash string) error {
	for slug, a := range s.bySlug {
		if a.ID == id {
			a.TokenHash = hash
			s.bySlug[slug] = a
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *memoryStore) SlugExists(_ context.Context, slug string) (bool, error) {
	s.checks = append(s.checks, slug)
	if s.existErr != nil {
		return false, s.existErr
	}
	_, ok := s.bySlug[slug]
	return ok || s.taken[slug], nil
}

func (s *memoryStore) CreateAffiliate(_ context.Context, a domain.Affiliate) (*domain.Affiliate, error) {
	a.ID = "affiliate-" + a.Slug
	s.bySlug[a.Slug] = a
	return &a, nil
}

type recordingEvents struct {
	events []klaviyo.Event
	err    error
}

func (r *recordingEvents) TrackEvent(_ context.Context, ev klaviyo.Event) error {
	r.events = append(r.events, ev)
	return r.err
}

type stubCredits struct {
	credits []domain.CommissionCredit
	calls   int
}

func (s *stubCredits) ListByAffiliate(_ context.Context, _ string, _ int) ([]domain.CommissionCredit, error) {
	s.calls++
	return s.credits, nil
}

func validApplication() Application {
	return Application{Name: "Jane Doe Fitness", Email: "Jane@Example.com", Category: "Fitness", Website: "https://jane.example"}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Jane Doe":          "jane-doe",
		"  Dr. Émile's Lab ": "dr-mile-s-lab",
		"---":               "partner",
		"A1  B2":            "a1-b2",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), in)
	}
	assert.LessOrEqual(t, len(Slugify(strings.Repeat("word ", 40))), maxSlugLength)
}

func TestApplyCreatesPendingAffiliate(t *testing.T) {
	store := newMemoryStore()
	events := &recordingEvents{}
	svc := New(store, events, nil, "https://shop.example/", 20, zerolog.Nop())

	e, err := svc.Apply(context.Background(), validApplication())
	require.NoError(t, err)

	a := e.Affiliate
	assert.Equal(t, "jane-doe-fitness", a.Slug)
	assert.Equal(t, domain.AffiliatePending, a.Status)
	assert.Equal(t, 20.0, a.CommissionRate)
	assert.Equal(t, "jane@example.com", a.Email)
	assert.Equal(t, "fitness", a.Category)

	prefix := "https://shop.example" + DashboardPath + "/"
	require.True(t, strings.HasPrefix(e.DashboardURL, prefix), e.DashboardURL)
	token := strings.TrimPrefix(e.DashboardURL, prefix)
	assert.Len(t, token, 43)
	assert.NotContains(t, token, a.Slug)
	assert.Equal(t, HashToken(token), store.bySlug[a.Slug].TokenHash)

	require.Len(t, events.events, 1)
	assert.Equal(t, ApplicationMetric, events.events[0].Metric)
	assert.Equal(t, "jane@example.com", events.events[0].Email)
	assert.Equal(t, "jane-doe-fitness", events.events[0].Properties["slug"])
	assert.Equal(t, e.DashboardURL, events.events[0].Properties["dashboardUrl"])
}

func TestApplyIssuesDistinctTokens(t *testing.T) {
	svc := New(newMemoryStore(), nil, nil, "https://shop.example", 20, zerolog.Nop())

	first, err := svc.Apply(context.Background(), validApplication())
	require.NoError(t, err)
	second, err := svc.Apply(context.Background(), validApplication())
	require.NoError(t, err)

	assert.NotEqual(t, first.DashboardURL, second.DashboardURL)
}

func TestApplyAddsSuffixOnCollision(t *testing.T) {
	store := newMemoryStore()
	store.taken["jane-doe-fitness"] = true
	svc := New(store, nil, nil, "https://shop.example", 20, zerolog.Nop())

	e, err := svc.Apply(context.Background(), validApplication())
	require.NoError(t, err)

	slug := e.Affiliate.Slug
	assert.True(t, strings.HasPrefix(slug, "jane-doe-fitness-"), slug)
	assert.Len(t, slug, len("jane-doe-fitness-")+suffixLength)
	assert.Len(t, store.checks, 2)
}

func TestApplyMarketingFailureIsNotSurfaced(t *testing.T) {
	svc := New(newMemoryStore(), &recordingEvents{err: errors.New("503")}, nil, "https://shop.example", 20, zerolog.Nop())

	_, err := svc.Apply(context.Background(), validApplication())
	assert.NoError(t, err)
}

func TestApplyValidation(t *testing.T) {
	svc := New(newMemoryStore(), nil, nil, "https://shop.example", 20, zerolog.Nop())

	cases := map[string]func(*Application){
		"name":     func(a *Application) { a.Name = " " },
		"email":    func(a *Application) { a.Email = "jane at example" },
		"category": func(a *Application) { a.Category = "crypto" },
		"website":  func(a *Application) { a.Website = "javascript:alert(1)" },
	}
	for field, mutate := range cases {
		app := validApplication()
		mutate(&app)
		_, err := svc.Apply(context.Background(), app)
		var ve *domain.ValidationError
		require.True(t, errors.As(err, &ve), "%s: got %v", field, err)
		assert.Equal(t, field, ve.Field)
	}
}

func TestApplySlugCheckFailure(t *testing.T) {
	store := newMemoryStore()
	store.existErr = errors.New("cms down")
	svc := New(store, nil, nil, "https://shop.example", 20, zerolog.Nop())

	_, err := svc.Apply(context.Background(), validApplication())
	require.Error(t, err)
}

func TestDashboard(t *testing.T) {
	store := newMemoryStore()
	store.bySlug["jane"] = domain.Affiliate{ID: "a1", Slug: "jane", Status: domain.AffiliateApproved, CommissionRate: 20, Earnings: 40, TokenHash: HashToken("tok-jane")}
	store.bySlug["pend"] = domain.Affiliate{ID: "a2", Slug: "pend", Status: domain.AffiliatePending, TokenHash: HashToken("tok-pend")}
	credits := &stubCredits{credits: []domain.CommissionCredit{{OrderID: "1", Code: "jane"}}}
	svc := New(store, nil, credits, "https://shop.example/", 20, zerolog.Nop())

	d, err := svc.Dashboard(context.Background(), " tok-jane ")
	require.NoError(t, err)
	assert.Equal(t, "jane", d.Affiliate.Slug)
	assert.Equal(t, "https://shop.example/?ref=jane", d.ReferralLink)
	assert.Len(t, d.Credits, 1)

	d, err = svc.Dashboard(context.Background(), "tok-pend")
	require.NoError(t, err)
	assert.Empty(t, d.Credits)
	assert.Equal(t, 1, credits.calls)

	for _, token := range []string{"", "nobody", "jane", HashToken("tok-jane")} {
		_, err = svc.Dashboard(context.Background(), token)
		assert.ErrorIs(t, err, domain.ErrNotFound, token)
	}
}

func TestResetDashboardLink(t *testing.T) {
	store := newMemoryStore()
	store.bySlug["jane"] = domain.Affiliate{ID: "a1", Slug: "jane", Status: domain.AffiliateApproved, TokenHash: HashToken("old")}
	svc := New(store, nil, nil, "https://shop.example", 20, zerolog.Nop())

	link, err := svc.ResetDashboardLink(context.Background(), "jane")
	require.NoError(t, err)

	token := strings.TrimPrefix(link, "https://shop.example"+DashboardPath+"/")
	d, err := svc.Dashboard(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "jane", d.Affiliate.Slug)

	_, err = svc.Dashboard(context.Background(), "old")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.ResetDashboardLink(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
