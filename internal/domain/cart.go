package domain

// Cart is the locally cached copy of a remotely hosted cart.
type Cart struct {
	ID            string     `json:"id"`
	CheckoutURL   string     `json:"checkoutUrl"`
	TotalQuantity int        `json:"totalQuantity"`
	Subtotal      Money      `json:"subtotal"`
	Total         Money      `json:"total"`
	Lines         []CartLine `json:"lines"`
}

// CartLine is one merchandise selection in a cart.
type CartLine struct {
	ID            string `json:"id"`
	MerchandiseID string `json:"merchandiseId"`
	ProductTitle  string `json:"productTitle,omitempty"`
	ProductHandle string `json:"productHandle,omitempty"`
	VariantTitle  string `json:"variantTitle,omitempty"`
	ImageURL      string `json:"imageUrl,omitempty"`
	Quantity      int    `json:"quantity"`
	Cost          Money  `json:"cost"`
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool {
	return c == nil || len(c.Lines) == 0
}

// Line returns the line with the given id.
func (c *Cart) Line(id string) (CartLine, bool) {
	if c == nil {
		return CartLine{}, false
	}
	for _, l := range c.Lines {
		if l.ID == id {
			return l, true
		}
	}
	return CartLine{}, false
}

// LineInput is a line to add to a cart.
type LineInput struct {
	MerchandiseID string
	Quantity      int
}
