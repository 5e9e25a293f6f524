package shopify

import (
	"context"

	"storefront/internal/domain"
)

const cartFragment = `
fragment CartFields on Cart {
  id
  checkoutUrl
  totalQuantity
  cost {
    subtotalAmount { amount currencyCode }
    totalAmount { amount currencyCode }
  }
  lines(first: 100) {
    edges {
      node {
        id
        quantity
        cost { totalAmount { amount currencyCode } }
        merchandise {
          ... on ProductVariant {
            id
            title
            image { url }
            product { title handle }
          }
        }
      }
    }
  }
}
`

const (
	cartQuery = `query cart($cartId: ID!) { cart(id: $cartId) { ...CartFields } }` + cartFragment

	cartCreateMutation = `mutation cartCreate($input: CartInput!) {
  cartCreate(input: $input) { cart { ...CartFields } userErrors { field message code } }
}` + cartFragment

	cartLinesAddMutation = `mutation cartLinesAdd($cartId: ID!, $lines: [CartLineInput!]!) {
  cartLinesAdd(cartId: $cartId, lines: $lines) { cart { ...CartFields } userErrors { field message code } }
}` + cartFragment

	cartLinesRemoveMutation = `mutation cartLinesRemove($cartId: ID!, $lineIds: [ID!]!) {
  cartLinesRemove(cartId: $cartId, lineIds: $lineIds) { cart { ...CartFields } userErrors { field message code } }
}` + cartFragment

	cartLinesUpdateMutation = `mutation cartLinesUpdate($cartId: ID!, $lines: [CartLineUpdateInput!]!) {
  cartLinesUpdate(cartId: $cartId, lines: $lines) { cart { ...CartFields } userErrors { field message code } }
}` + cartFragment
)

type moneyV2 struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

func (m moneyV2) toDomain() domain.Money {
	out, err := domain.ParseMoney(m.Amount, m.CurrencyCode)
	if err != nil {
		return domain.Money{CurrencyCode: m.CurrencyCode}
	}
	return out
}

type cartNode struct {
	ID            string `json:"id"`
	CheckoutURL   string `json:"checkoutUrl"`
	TotalQuantity int    `json:"totalQuantity"`
	Cost          struct {
		SubtotalAmount moneyV2 `json:"subtotalAmount"`
		TotalAmount    moneyV2 `json:"totalAmount"`
	} `json:"cost"`
	Lines struct {
		Edges []struct {
			Node struct {
				ID       string `json:"id"`
				Quantity int    `json:"quantity"`
				Cost     struct {
					TotalAmount moneyV2 `json:"totalAmount"`
				} `json:"cost"`
				Merchandise struct {
					ID    string `json:"id"`
					Title string `json:"title"`
					Image *struct {
						URL string `json:"url"`
					} `json:"image"`
					Product struct {
						Title  string `json:"title"`
						Handle string `json:"handle"`
					} `json:"product"`
				} `json:"merchandise"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"lines"`
}

func (n *cartNode) toDomain() *domain.Cart {
	cart := &domain.Cart{
		ID:            n.ID,
		CheckoutURL:   n.CheckoutURL,
		TotalQuantity: n.TotalQuantity,
		Subtotal:      n.Cost.SubtotalAmount.toDomain(),
		Total:         n.Cost.TotalAmount.toDomain(),
		Lines:         make([]domain.CartLine, 0, len(n.Lines.Edges)),
	}
	for _, e := range n.Lines.Edges {
		line := domain.CartLine{
			ID:            e.Node.ID,
			MerchandiseID: e.Node.Merchandise.ID,
			ProductTitle:  e.Node.Merchandise.Product.Title,
			ProductHandle: e.Node.Merchandise.Product.Handle,
			VariantTitle:  e.Node.Merchandise.Title,
			Quantity:      e.Node.Quantity,
			Cost:          e.Node.Cost.TotalAmount.toDomain(),
		}
		if e.Node.Merchandise.Image != nil {
			line.ImageURL = e.Node.Merchandise.Image.URL
		}
		cart.Lines = append(cart.Lines, line)
	}
	return cart
}

type cartPayload struct {
	Cart       *cartNode   `json:"cart"`
	UserErrors []UserError `json:"userErrors"`
}

func (p cartPayload) result(op string) (*domain.Cart, error) {
	if err := checkUserErrors(op, p.UserErrors); err != nil {
		return nil, err
	}
	if p.Cart == nil {
		return nil, ErrCartNotFound
	}
	return p.Cart.toDomain(), nil
}

// LineUpdate sets the quantity of an existing cart line.
type LineUpdate struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

func lineInputs(lines []domain.LineInput) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(lines))
	for _, l := range lines {
		out = append(out, map[string]interface{}{
			"merchandiseId": l.MerchandiseID,
			"quantity":      l.Quantity,
		})
	}
	return out
}

// GetCart fetches a cart snapshot. A cart the backend does not know yields ErrCartNotFound.
func (c *Client) GetCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	var data struct {
		Cart *cartNode `json:"cart"`
	}
	if err := c.do(ctx, "cart", cartQuery, map[string]interface{}{"cartId": cartID}, &data); err != nil {
		return nil, err
	}
	if data.Cart == nil {
		return nil, ErrCartNotFound
	}
	return data.Cart.toDomain(), nil
}

// CreateCart creates a new cart holding the given lines.
func (c *Client) CreateCart(ctx context.Context, lines []domain.LineInput) (*domain.Cart, error) {
	var data struct {
		CartCreate cartPayload `json:"cartCreate"`
	}
	vars := map[string]interface{}{"input": map[string]interface{}{"lines": lineInputs(lines)}}
	if err := c.do(ctx, "cartCreate", cartCreateMutation, vars, &data); err != nil {
		return nil, err
	}
	return data.CartCreate.result("cartCreate")
}

// AddLines appends lines to an existing cart.
func (c *Client) AddLines(ctx context.Context, cartID string, lines []domain.LineInput) (*domain.Cart, error) {
	var data struct {
		CartLinesAdd cartPayload `json:"cartLinesAdd"`
	}
	vars := map[string]interface{}{"cartId": cartID, "lines": lineInputs(lines)}
	if err := c.do(ctx, "cartLinesAdd", cartLinesAddMutation, vars, &data); err != nil {
		return nil, err
	}
	return data.CartLinesAdd.result("cartLinesAdd")
}

// RemoveLines deletes lines from a cart.
func (c *Client) RemoveLines(ctx context.Context, cartID string, lineIDs []string) (*domain.Cart, error) {
	var data struct {
		CartLinesRemove cartPayload `json:"cartLinesRemove"`
	}
	vars := map[string]interface{}{"cartId": cartID, "lineIds": lineIDs}
	if err := c.do(ctx, "cartLinesRemove", cartLinesRemoveMutation, vars, &data); err != nil {
		return nil, err
	}
	return data.CartLinesRemove.result("cartLinesRemove")
}

// UpdateLines changes quantities of existing lines.
func (c *Client) UpdateLines(ctx context.Context, cartID string, updates []LineUpdate) (*domain.Cart, error) {
	var data struct {
		CartLinesUpdate cartPayload `json:"cartLinesUpdate"`
	}
	vars := map[string]interface{}{"cartId": cartID, "lines": updates}
	if err := c.do(ctx, "cartLinesUpdate", cartLinesUpdateMutation, vars, &data); err != nil {
		return nil, err
	}
	return data.CartLinesUpdate.result("cartLinesUpdate")
}
