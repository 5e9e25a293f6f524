// Package product merges CMS product copy with commerce pricing for the
// catalog pages.
package product

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"storefront/internal/domain"
	"storefront/internal/gateway/shopify"
)

const pricingConcurrency = 4

// Content is the CMS side of the catalog.
type Content interface {
	Products(ctx context.Context, featuredOnly bool) ([]domain.Product, error)
	ProductByHandle(ctx context.Context, handle string) (*domain.Product, error)
}

// Pricing is the commerce side of the catalog.
type Pricing interface {
	ProductPricing(ctx context.Context, handle string) (*shopify.Pricing, error)
}

type Service struct {
	content Content
	pricing Pricing
	logger  zerolog.Logger
}

func New(content Content, pricing Pricing, logger zerolog.Logger) *Service {
	return &Service{content: content, pricing: pricing, logger: logger}
}

// List returns catalog products with prices. Products whose pricing fails are
// returned with copy only.
func (s *Service) List(ctx context.Context, featuredOnly bool) ([]domain.Product, error) {
	products, err := s.content.Products(ctx, featuredOnly)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pricingConcurrency)
	for i := range products {
		p := &products[i]
		g.Go(func() error {
			s.price(gctx, p)
			return nil
		})
	}
	_ = g.Wait()
	return products, nil
}

// Get returns one product. Copy and pricing are fetched concurrently; a
// product without copy is domain.ErrNotFound even when the backend prices it.
func (s *Service) Get(ctx context.Context, handle string) (*domain.Product, error) {
	var (
		product *domain.Product
		pricing *shopify.Pricing
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.content.ProductByHandle(gctx, handle)
		if err != nil {
			return err
		}
		product = p
		return nil
	})
	g.Go(func() error {
		p, err := s.pricing.ProductPricing(gctx, handle)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				s.logger.Warn().Err(err).Str("handle", handle).Msg("product pricing unavailable")
			}
			return nil
		}
		pricing = p
		return nil
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %q", handle)
	}
	apply(product, pricing)
	return product, nil
}

func (s *Service) price(ctx context.Context, p *domain.Product) {
	pricing, err := s.pricing.ProductPricing(ctx, p.Handle)
	if err != nil {
		s.logger.Warn().Err(err).Str("handle", p.Handle).Msg("product pricing unavailable")
		return
	}
	apply(p, pricing)
}

func apply(p *domain.Product, pricing *shopify.Pricing) {
	if pricing == nil {
		return
	}
	price := pricing.Price
	p.Price = &price
	p.CompareAt = pricing.CompareAt
	p.AvailableSale = pricing.AvailableForSale
	if p.VariantID == "" {
		p.VariantID = pricing.VariantID
	}
}
