package sanity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"storefront/internal/domain"
)

const productProjection = `{
  _id,
  "handle": slug.current,
  title,
  tagline,
  description,
  benefits,
  "images": coalesce(images[].asset->url, imageUrls),
  featured,
  variantId
}`

const affiliateProjection = `{
  _id,
  _createdAt,
  name,
  email,
  "slug": slug.current,
  category,
  website,
  status,
  commissionRate,
  earnings
}`

type productDoc struct {
	ID          string   `json:"_id"`
	Handle      string   `json:"handle"`
	Title       string   `json:"title"`
	Tagline     string   `json:"tagline"`
	Description string   `json:"description"`
	Benefits    []string `json:"benefits"`
	Images      []string `json:"images"`
	Featured    bool     `json:"featured"`
	VariantID   string   `json:"variantId"`
}

func (d productDoc) toDomain() domain.Product {
	return domain.Product{
		ID:          d.ID,
		Handle:      d.Handle,
		Title:       d.Title,
		Tagline:     d.Tagline,
		Description: d.Description,
		Benefits:    d.Benefits,
		Images:      d.Images,
		Featured:    d.Featured,
		VariantID:   d.VariantID,
	}
}

// Products lists product copy ordered by title; featuredOnly restricts to featured items.
func (c *Client) Products(ctx context.Context, featuredOnly bool) ([]domain.Product, error) {
	filter := `_type == "product" && defined(slug.current)`
	if featuredOnly {
		filter += ` && featured == true`
	}
	var docs []productDoc
	if err := c.Query(ctx, `*[`+filter+`] | order(title asc) `+productProjection, nil, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

// ProductByHandle returns the product copy for a handle or domain.ErrNotFound.
func (c *Client) ProductByHandle(ctx context.Context, handle string) (*domain.Product, error) {
	var doc *productDoc
	err := c.Query(ctx, `*[_type == "product" && slug.current == $handle][0] `+productProjection,
		map[string]interface{}{"handle": handle}, &doc)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	p := doc.toDomain()
	return &p, nil
}

// UpsertProduct writes product copy under a deterministic id derived from its handle.
func (c *Client) UpsertProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	handle := strings.TrimSpace(p.Handle)
	if handle == "" {
		return nil, errors.New("product handle required")
	}
	doc := map[string]interface{}{
		"_id":         "product-" + handle,
		"_type":       "product",
		"title":       p.Title,
		"slug":        map[string]interface{}{"_type": "slug", "current": handle},
		"tagline":     p.Tagline,
		"description": p.Description,
		"benefits":    p.Benefits,
		"featured":    p.Featured,
		"variantId":   p.VariantID,
		"imageUrls":   p.Images,
	}
	if _, err := c.Mutate(ctx, Mutation{CreateOrReplace: doc}); err != nil {
		return nil, err
	}
	out := p
	out.ID = "product-" + handle
	out.Handle = handle
	return &out, nil
}

// AffiliateBySlug returns the affiliate whose slug matches, ignoring case.
func (c *Client) AffiliateBySlug(ctx context.Context, slug string) (*domain.Affiliate, error) {
	var a *domain.Affiliate
	err := c.Query(ctx, `*[_type == "affiliate" && lower(slug.current) == lower($slug)][0] `+affiliateProjection,
		map[string]interface{}{"slug": slug}, &a)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

// AffiliateByTokenHash returns the affiliate whose dashboard token hashes to hash.
func (c *Client) AffiliateByTokenHash(ctx context.Context, hash string) (*domain.Affiliate, error) {
	if hash == "" {
		return nil, domain.ErrNotFound
	}
	var a *domain.Affiliate
	err := c.Query(ctx, `*[_type == "affiliate" && dashboardTokenHash == $hash][0] `+affiliateProjection,
		map[string]interface{}{"hash": hash}, &a)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, domain.ErrNotFound
	}
	a.TokenHash = hash
	return a, nil
}

// SetTokenHash replaces the stored dashboard token hash.
func (c *Client) SetTokenHash(ctx context.Context, affiliateID, hash string) error {
	_, err := c.Mutate(ctx, Mutation{Patch: &Patch{
		ID:  affiliateID,
		Set: map[string]interface{}{"dashboardTokenHash": hash},
	}})
	return err
}

// SlugExists reports whether any affiliate already uses the slug.
func (c *Client) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int
	err := c.Query(ctx, `count(*[_type == "affiliate" && slug.current == $slug])`,
		map[string]interface{}{"slug": slug}, &count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateAffiliate stores a new affiliate record and returns it with its id.
func (c *Client) CreateAffiliate(ctx context.Context, a domain.Affiliate) (*domain.Affiliate, error) {
	if a.ID == "" {
		a.ID = "affiliate-" + uuid.NewString()
	}
	doc := map[string]interface{}{
		"_id":                a.ID,
		"_type":              "affiliate",
		"name":               a.Name,
		"email":              a.Email,
		"slug":               map[string]interface{}{"_type": "slug", "current": a.Slug},
		"category":           a.Category,
		"website":            a.Website,
		"status":             a.Status,
		"commissionRate":     a.CommissionRate,
		"earnings":           a.Earnings,
		"dashboardTokenHash": a.TokenHash,
	}
	if _, err := c.Mutate(ctx, Mutation{Create: doc}); err != nil {
		return nil, err
	}
	return &a, nil
}

// IncrementEarnings atomically adds amount to the affiliate's accumulated earnings.
func (c *Client) IncrementEarnings(ctx context.Context, affiliateID string, amount float64) error {
	_, err := c.Mutate(ctx, Mutation{Patch: &Patch{
		ID:           affiliateID,
		SetIfMissing: map[string]interface{}{"earnings": 0},
		Inc:          map[string]interface{}{"earnings": amount},
	}})
	return err
}

// CreateChatLog appends an audit record of one assistant exchange.
func (c *Client) CreateChatLog(ctx context.Context, log domain.ChatLog) error {
	if log.ID == "" {
		log.ID = "chatLog-" + uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	_, err := c.Mutate(ctx, Mutation{Create: map[string]interface{}{
		"_id":            log.ID,
		"_type":          "chatLog",
		"sessionId":      log.SessionID,
		"userMessage":    log.Message,
		"assistantReply": log.Reply,
		"model":          log.Model,
		"timestamp":      log.CreatedAt.Format(time.RFC3339),
	}})
	return err
}
