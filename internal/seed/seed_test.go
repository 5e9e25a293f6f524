package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/service/marketing"
)

type recordingWriter struct {
	products []domain.Product
}

func (w *recordingWriter) UpsertProduct(_ context.Context, p domain.Product) (*domain.Product, error) {
	w.products = append(w.products, p)
	return &p, nil
}

func TestDefaultCatalogCoversQuizRecommendations(t *testing.T) {
	products, err := Parse(defaultCatalog)
	require.NoError(t, err)

	handles := make(map[string]bool, len(products))
	for _, p := range products {
		handles[p.Handle] = true
		assert.Contains(t, p.VariantID, "gid://shopify/ProductVariant/", p.Handle)
	}
	for _, goal := range marketing.Goals {
		for _, activity := range marketing.Activities {
			for _, diet := range marketing.Diets {
				rec := marketing.Recommend(marketing.Answers{Goal: goal, Activity: activity, Diet: diet})
				assert.True(t, handles[rec.Handle], "quiz recommends %q which is not seeded", rec.Handle)
			}
		}
	}
}

func TestApplyUsesDefaultCatalog(t *testing.T) {
	w := &recordingWriter{}

	n, err := Apply(context.Background(), w, nil)

	require.NoError(t, err)
	assert.Equal(t, len(w.products), n)
	assert.NotZero(t, n)
}

func TestParseRejectsIncompleteProducts(t *testing.T) {
	_, err := Parse([]byte("products:\n  - handle: x\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("products: ["))
	assert.Error(t, err)
}
