// Package seed loads the demo catalog into the content store.
package seed

import (
	"context"
	_ "embed"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"storefront/internal/domain"
	"storefront/internal/service/cart"
)

//go:embed products.yaml
var defaultCatalog []byte

// ProductWriter stores product copy.
type ProductWriter interface {
	UpsertProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
}

type productSeed struct {
	Handle      string   `yaml:"handle"`
	Title       string   `yaml:"title"`
	Tagline     string   `yaml:"tagline"`
	Description string   `yaml:"description"`
	Benefits    []string `yaml:"benefits"`
	Images      []string `yaml:"images"`
	VariantID   string   `yaml:"variant_id"`
	Featured    bool     `yaml:"featured"`
}

type catalog struct {
	Products []productSeed `yaml:"products"`
}

// Parse reads a catalog document. Every product needs a handle and a title.
func Parse(data []byte) ([]domain.Product, error) {
	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	out := make([]domain.Product, 0, len(c.Products))
	for i, p := range c.Products {
		if p.Handle == "" || p.Title == "" {
			return nil, errors.Errorf("product %d: handle and title are required", i)
		}
		out = append(out, domain.Product{
			Handle:      p.Handle,
			Title:       p.Title,
			Tagline:     p.Tagline,
			Description: p.Description,
			Benefits:    p.Benefits,
			Images:      p.Images,
			Featured:    p.Featured,
			VariantID:   cart.NormalizeMerchandiseID(p.VariantID),
		})
	}
	return out, nil
}

// Apply upserts the catalog, or the built-in demo catalog when data is empty.
// It is idempotent: documents are keyed by handle.
func Apply(ctx context.Context, w ProductWriter, data []byte) (int, error) {
	if len(data) == 0 {
		data = defaultCatalog
	}
	products, err := Parse(data)
	if err != nil {
		return 0, err
	}
	for i, p := range products {
		if _, err := w.UpsertProduct(ctx, p); err != nil {
			return i, errors.Wrapf(err, "upsert product %s", p.Handle)
		}
	}
	return len(products), nil
}
