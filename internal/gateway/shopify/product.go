package shopify

import (
	"context"

	"storefront/internal/domain"
)

const productByHandleQuery = `query productByHandle($handle: String!) {
  product(handle: $handle) {
    id
    handle
    availableForSale
    variants(first: 1) {
      edges { node { id price { amount currencyCode } compareAtPrice { amount currencyCode } } }
    }
  }
}`

// Pricing is the commerce-owned part of a product page.
type Pricing struct {
	ProductID        string
	VariantID        string
	Price            domain.Money
	CompareAt        *domain.Money
	AvailableForSale bool
}

// ProductPricing returns price and availability for the first variant of a product.
func (c *Client) ProductPricing(ctx context.Context, handle string) (*Pricing, error) {
	var data struct {
		Product *struct {
			ID               string `json:"id"`
			AvailableForSale bool   `json:"availableForSale"`
			Variants         struct {
				Edges []struct {
					Node struct {
						ID             string   `json:"id"`
						Price          moneyV2  `json:"price"`
						CompareAtPrice *moneyV2 `json:"compareAtPrice"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"variants"`
		} `json:"product"`
	}
	if err := c.do(ctx, "product", productByHandleQuery, map[string]interface{}{"handle": handle}, &data); err != nil {
		return nil, err
	}
	if data.Product == nil || len(data.Product.Variants.Edges) == 0 {
		return nil, domain.ErrNotFound
	}
	v := data.Product.Variants.Edges[0].Node
	p := &Pricing{
		ProductID:        data.Product.ID,
		VariantID:        v.ID,
		Price:            v.Price.toDomain(),
		AvailableForSale: data.Product.AvailableForSale,
	}
	if v.CompareAtPrice != nil {
		m := v.CompareAtPrice.toDomain()
		p.CompareAt = &m
	}
	return p, nil
}
