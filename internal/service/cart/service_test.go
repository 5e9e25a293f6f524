package cart

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/gateway/shopify"
	"storefront/internal/session"
)

// fakeGateway keeps carts in memory and merges adds of the same merchandise
// into one line, like the real backend.
type fakeGateway struct {
	mu     sync.Mutex
	carts  map[string]*domain.Cart
	nextID int

	getCalls   int
	createErr  error
	addErr     error
	removeErr  error
	updateErr  error
	lastCreate []domain.LineInput
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{carts: make(map[string]*domain.Cart)}
}

func (g *fakeGateway) id(prefix string) string {
	g.nextID++
	return fmt.Sprintf("gid://shopify/%s/%d", prefix, g.nextID)
}

func (g *fakeGateway) GetCart(_ context.Context, id string) (*domain.Cart, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.getCalls++
	c, ok := g.carts[id]
	if !ok {
		return nil, shopify.ErrCartNotFound
	}
	return clone(c), nil
}

func (g *fakeGateway) CreateCart(_ context.Context, lines []domain.LineInput) (*domain.Cart, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastCreate = lines
	if g.createErr != nil {
		return nil, g.createErr
	}
	c := &domain.Cart{ID: g.id("Cart"), CheckoutURL: "https://shop.example.com/cart/c/1?key=abc"}
	g.carts[c.ID] = c
	g.apply(c, lines)
	return clone(c), nil
}

func (g *fakeGateway) AddLines(_ context.Context, id string, lines []domain.LineInput) (*domain.Cart, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.addErr != nil {
		return nil, g.addErr
	}
	c, ok := g.carts[id]
	if !ok {
		return nil, shopify.ErrCartNotFound
	}
	g.apply(c, lines)
	return clone(c), nil
}

func (g *fakeGateway) RemoveLines(_ context.Context, id string, lineIDs []string) (*domain.Cart, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.removeErr != nil {
		return nil, g.removeErr
	}
	c, ok := g.carts[id]
	if !ok {
		return nil, shopify.ErrCartNotFound
	}
	for _, lid := range lineIDs {
		kept := c.Lines[:0]
		for _, l := range c.Lines {
			if l.ID != lid {
				kept = append(kept, l)
			}
		}
		c.Lines = kept
	}
	g.total(c)
	return clone(c), nil
}

func (g *fakeGateway) UpdateLines(_ context.Context, id string, updates []shopify.LineUpdate) (*domain.Cart, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.updateErr != nil {
		return nil, g.updateErr
	}
	c, ok := g.carts[id]
	if !ok {
		return nil, shopify.ErrCartNotFound
	}
	for _, u := range updates {
		for i := range c.Lines {
			if c.Lines[i].ID == u.ID {
				c.Lines[i].Quantity = u.Quantity
			}
		}
	}
	g.total(c)
	return clone(c), nil
}

func (g *fakeGateway) apply(c *domain.Cart, lines []domain.LineInput) {
	for _, in := range lines {
		merged := false
		for i := range c.Lines {
			if c.Lines[i].MerchandiseID == in.MerchandiseID {
				c.Lines[i].Quantity += in.Quantity
				merged = true
			}
		}
		if !merged {
			c.Lines = append(c.Lines, domain.CartLine{ID: g.id("CartLine"), MerchandiseID: in.MerchandiseID, Quantity: in.Quantity})
		}
	}
	g.total(c)
}

func (g *fakeGateway) total(c *domain.Cart) {
	c.TotalQuantity = 0
	for _, l := range c.Lines {
		c.TotalQuantity += l.Quantity
	}
}

func clone(c *domain.Cart) *domain.Cart {
	cp := *c
	cp.Lines = append([]domain.CartLine(nil), c.Lines...)
	return &cp
}

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

type stubReferral struct{ code string }

func (s stubReferral) Code() (string, bool) { return s.code, s.code != "" }

type countingCounter struct{ n int }

func (c *countingCounter) Inc() { c.n++ }

func TestInitializeWithoutPersistedIDSkipsFetch(t *testing.T) {
	gw := newFakeGateway()
	c := New(gw, session.NewMemoryStore())

	require.NoError(t, c.Initialize(context.Background()))

	assert.Equal(t, 0, gw.getCalls)
	assert.Equal(t, NoCart, c.State().Kind)
	assert.Nil(t, c.Snapshot())
}

func TestInitializeLoadsPersistedCart(t *testing.T) {
	gw := newFakeGateway()
	existing, err := gw.CreateCart(context.Background(), []domain.LineInput{{MerchandiseID: "gid://shopify/ProductVariant/1", Quantity: 3}})
	require.NoError(t, err)

	store := session.NewMemoryStore()
	store.Set(session.CartIDKey, existing.ID)
	c := New(gw, store)

	require.NoError(t, c.Initialize(context.Background()))

	assert.Equal(t, active(existing.ID), c.State())
	if diff := cmp.Diff(existing, c.Snapshot(), decimalEqual); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestInitializeClearsUnknownID(t *testing.T) {
	store := session.NewMemoryStore()
	store.Set(session.CartIDKey, "gid://shopify/Cart/expired")
	c := New(newFakeGateway(), store)

	require.NoError(t, c.Initialize(context.Background()))

	_, ok := store.Get(session.CartIDKey)
	assert.False(t, ok, "expired id should be cleared")
	assert.Equal(t, NoCart, c.State().Kind)
}

func TestAddLineToEmptyCartCreatesCart(t *testing.T) {
	for _, q := range []int{1, 2, 7} {
		t.Run(fmt.Sprintf("qty=%d", q), func(t *testing.T) {
			gw := newFakeGateway()
			store := session.NewMemoryStore()
			notes := &Notifications{}
			c := New(gw, store, WithNotifier(notes))

			cart, err := c.AddLine(context.Background(), "42", q)
			require.NoError(t, err)

			assert.Equal(t, q, cart.TotalQuantity)
			id, ok := store.Get(session.CartIDKey)
			require.True(t, ok)
			assert.Equal(t, cart.ID, id)
			assert.Equal(t, "gid://shopify/ProductVariant/42", gw.lastCreate[0].MerchandiseID)
			assert.True(t, notes.Opened())
			assert.Equal(t, []Notification{{Kind: "success", Message: "Added to cart"}}, notes.Messages())
		})
	}
}

func TestAddLineTwiceSumsQuantity(t *testing.T) {
	c := New(newFakeGateway(), session.NewMemoryStore())
	ctx := context.Background()

	_, err := c.AddLine(ctx, "gid://shopify/ProductVariant/A", 1)
	require.NoError(t, err)
	cart, err := c.AddLine(ctx, "gid://shopify/ProductVariant/A", 2)
	require.NoError(t, err)

	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 3, cart.Lines[0].Quantity)
	assert.Equal(t, 3, cart.TotalQuantity)
}

func TestAddLineRejectsInvalidInput(t *testing.T) {
	gw := newFakeGateway()
	notes := &Notifications{}
	c := New(gw, session.NewMemoryStore(), WithNotifier(notes))

	_, err := c.AddLine(context.Background(), "42", 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = c.AddLine(context.Background(), "  ", 1)
	assert.ErrorIs(t, err, ErrInvalidMerchandise)

	assert.Nil(t, gw.lastCreate)
	assert.Len(t, notes.Messages(), 2)
	assert.False(t, notes.Opened())
}

func TestAddLineRecoversFromRejectedID(t *testing.T) {
	gw := newFakeGateway()
	ctx := context.Background()
	old, err := gw.CreateCart(ctx, []domain.LineInput{{MerchandiseID: "gid://shopify/ProductVariant/1", Quantity: 1}})
	require.NoError(t, err)

	store := session.NewMemoryStore()
	store.Set(session.CartIDKey, old.ID)
	recoveries := &countingCounter{}
	c := New(gw, store, WithRecoveryCounter(recoveries))
	require.NoError(t, c.Initialize(ctx))

	// The backend forgets the cart after it was loaded.
	gw.mu.Lock()
	delete(gw.carts, old.ID)
	gw.mu.Unlock()

	cart, err := c.AddLine(ctx, "gid://shopify/ProductVariant/2", 2)
	require.NoError(t, err)

	assert.NotEqual(t, old.ID, cart.ID)
	assert.Equal(t, 2, cart.TotalQuantity)
	id, ok := store.Get(session.CartIDKey)
	require.True(t, ok)
	assert.Equal(t, cart.ID, id)
	assert.Equal(t, active(cart.ID), c.State())
	assert.Equal(t, 1, recoveries.n)
}

func TestAddLineRecoveryCreateFailure(t *testing.T) {
	gw := newFakeGateway()
	ctx := context.Background()
	old, err := gw.CreateCart(ctx, []domain.LineInput{{MerchandiseID: "gid://shopify/ProductVariant/1", Quantity: 1}})
	require.NoError(t, err)

	store := session.NewMemoryStore()
	store.Set(session.CartIDKey, old.ID)
	notes := &Notifications{}
	c := New(gw, store, WithNotifier(notes))
	require.NoError(t, c.Initialize(ctx))

	gw.mu.Lock()
	delete(gw.carts, old.ID)
	gw.createErr = errors.New("backend down")
	gw.mu.Unlock()

	_, err = c.AddLine(ctx, "gid://shopify/ProductVariant/2", 1)
	require.Error(t, err)

	_, ok := store.Get(session.CartIDKey)
	assert.False(t, ok)
	assert.Equal(t, NoCart, c.State().Kind)
	assert.Nil(t, c.Snapshot())
	assert.Equal(t, "error", notes.Messages()[0].Kind)
}

func TestAddLineFailureKeepsSnapshot(t *testing.T) {
	gw := newFakeGateway()
	ctx := context.Background()
	notes := &Notifications{}
	c := New(gw, session.NewMemoryStore(), WithNotifier(notes))

	before, err := c.AddLine(ctx, "1", 1)
	require.NoError(t, err)

	gw.addErr = &shopify.UserErrors{Op: "cartLinesAdd", Errors: []shopify.UserError{{Message: "Out of stock"}}}
	_, err = c.AddLine(ctx, "2", 1)
	require.Error(t, err)

	if diff := cmp.Diff(before, c.Snapshot(), decimalEqual); diff != "" {
		t.Fatalf("snapshot changed after failure (-want +got):\n%s", diff)
	}
	msgs := notes.Messages()
	assert.Equal(t, Notification{Kind: "error", Message: "Out of stock"}, msgs[len(msgs)-1])
}

func TestRemoveOnlyLineLeavesEmptyCart(t *testing.T) {
	c := New(newFakeGateway(), session.NewMemoryStore())
	ctx := context.Background()

	cart, err := c.AddLine(ctx, "1", 2)
	require.NoError(t, err)

	cart, err = c.RemoveLine(ctx, cart.Lines[0].ID)
	require.NoError(t, err)

	assert.True(t, cart.Empty())
	assert.Equal(t, 0, cart.TotalQuantity)
	assert.Equal(t, Active, c.State().Kind)
}

func TestUpdateQuantityZeroRemovesLine(t *testing.T) {
	c := New(newFakeGateway(), session.NewMemoryStore())
	ctx := context.Background()

	cart, err := c.AddLine(ctx, "A", 2)
	require.NoError(t, err)
	lineID := cart.Lines[0].ID

	cart, err = c.UpdateQuantity(ctx, lineID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, cart.TotalQuantity)

	cart, err = c.UpdateQuantity(ctx, lineID, 0)
	require.NoError(t, err)
	_, found := cart.Line(lineID)
	assert.False(t, found)
}

func TestMutationsWithoutCart(t *testing.T) {
	c := New(newFakeGateway(), session.NewMemoryStore())

	_, err := c.RemoveLine(context.Background(), "line")
	assert.ErrorIs(t, err, ErrNoActiveCart)
	_, err = c.UpdateQuantity(context.Background(), "line", 2)
	assert.ErrorIs(t, err, ErrNoActiveCart)
}

func TestRemoveOnExpiredCartDiscardsID(t *testing.T) {
	gw := newFakeGateway()
	store := session.NewMemoryStore()
	c := New(gw, store)
	ctx := context.Background()

	cart, err := c.AddLine(ctx, "1", 1)
	require.NoError(t, err)

	gw.mu.Lock()
	delete(gw.carts, cart.ID)
	gw.mu.Unlock()

	_, err = c.RemoveLine(ctx, cart.Lines[0].ID)
	assert.ErrorIs(t, err, shopify.ErrCartNotFound)
	_, ok := store.Get(session.CartIDKey)
	assert.False(t, ok)
	assert.Equal(t, NoCart, c.State().Kind)
}

func TestUpdateFailureKeepsSnapshot(t *testing.T) {
	gw := newFakeGateway()
	c := New(gw, session.NewMemoryStore())
	ctx := context.Background()

	before, err := c.AddLine(ctx, "1", 1)
	require.NoError(t, err)

	gw.updateErr = errors.New("timeout")
	_, err = c.UpdateQuantity(ctx, before.Lines[0].ID, 4)
	require.Error(t, err)

	assert.Equal(t, before, c.Snapshot())
	assert.Equal(t, active(before.ID), c.State())
}

func TestCheckoutURLCarriesReferral(t *testing.T) {
	c := New(newFakeGateway(), session.NewMemoryStore(), WithReferral(stubReferral{code: "XYZ"}))

	assert.Equal(t, "", c.CheckoutURL())

	_, err := c.AddLine(context.Background(), "1", 1)
	require.NoError(t, err)

	assert.Equal(t, "https://shop.example.com/cart/c/1?discount=XYZ&key=abc", c.CheckoutURL())
}

func TestBuildCheckoutURL(t *testing.T) {
	assert.Equal(t, "https://x.example/c", BuildCheckoutURL("https://x.example/c", ""))
	assert.Equal(t, "", BuildCheckoutURL("", "XYZ"))
	assert.Equal(t, "https://x.example/c?discount=XYZ", BuildCheckoutURL("https://x.example/c", "XYZ"))
	assert.Equal(t, "https://x.example/c?discount=NEW", BuildCheckoutURL("https://x.example/c?discount=OLD", "NEW"))
}

func TestNormalizeMerchandiseID(t *testing.T) {
	assert.Equal(t, "gid://shopify/ProductVariant/42", NormalizeMerchandiseID(" 42 "))
	assert.Equal(t, "gid://shopify/ProductVariant/42", NormalizeMerchandiseID("gid://shopify/ProductVariant/42"))
	assert.Equal(t, "", NormalizeMerchandiseID(""))
}

func TestConcurrentAddsShareOneCart(t *testing.T) {
	gw := newFakeGateway()
	store := session.NewMemoryStore()
	c := New(gw, store, WithSerializer(NewSerializer()))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.AddLine(ctx, "1", 1)
		}()
	}
	wg.Wait()

	gw.mu.Lock()
	carts := len(gw.carts)
	gw.mu.Unlock()
	assert.Equal(t, 1, carts)
	assert.Equal(t, 8, c.Snapshot().TotalQuantity)
}

func TestAddTwoProductsKeepsTwoLines(t *testing.T) {
	c := New(newFakeGateway(), session.NewMemoryStore())
	ctx := context.Background()

	first, err := c.AddLine(ctx, "A", 2)
	require.NoError(t, err)
	cart, err := c.AddLine(ctx, "B", 3)
	require.NoError(t, err)

	assert.Equal(t, first.ID, cart.ID)
	assert.Len(t, cart.Lines, 2)
	assert.Equal(t, 5, cart.TotalQuantity)
}
