package domain

// Product merges CMS-owned copy with commerce-owned pricing.
type Product struct {
	ID            string   `json:"id"`
	Handle        string   `json:"handle"`
	Title         string   `json:"title"`
	Tagline       string   `json:"tagline,omitempty"`
	Description   string   `json:"description,omitempty"`
	Benefits      []string `json:"benefits,omitempty"`
	Images        []string `json:"images,omitempty"`
	Featured      bool     `json:"featured,omitempty"`
	VariantID     string   `json:"variantId,omitempty"`
	Price         *Money   `json:"price,omitempty"`
	CompareAt     *Money   `json:"compareAtPrice,omitempty"`
	AvailableSale bool     `json:"availableForSale"`
}
