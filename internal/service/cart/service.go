package cart

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"storefront/internal/domain"
	"storefront/internal/gateway/shopify"
	"storefront/internal/session"
)

const variantGIDPrefix = "gid://shopify/ProductVariant/"

var (
	// ErrNoActiveCart is returned by operations that need an existing cart.
	ErrNoActiveCart = errors.New("no active cart")
	// ErrInvalidQuantity is returned when adding fewer than one item.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrInvalidMerchandise is returned for an empty merchandise reference.
	ErrInvalidMerchandise = errors.New("merchandise id required")
)

// Gateway is the remote cart API.
type Gateway interface {
	GetCart(ctx context.Context, cartID string) (*domain.Cart, error)
	CreateCart(ctx context.Context, lines []domain.LineInput) (*domain.Cart, error)
	AddLines(ctx context.Context, cartID string, lines []domain.LineInput) (*domain.Cart, error)
	RemoveLines(ctx context.Context, cartID string, lineIDs []string) (*domain.Cart, error)
	UpdateLines(ctx context.Context, cartID string, updates []shopify.LineUpdate) (*domain.Cart, error)
}

// Store persists the cart id for one browser.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// ReferralSource supplies the persisted referral code, if any.
type ReferralSource interface {
	Code() (string, bool)
}

// Counter is satisfied by prometheus counters.
type Counter interface {
	Inc()
}

// Client keeps one persisted cart id consistent with a remote cart and caches
// the last known-good snapshot. Mutations run one at a time per client and,
// through the Serializer, one at a time per cart id.
type Client struct {
	gateway    Gateway
	store      Store
	notifier   Notifier
	referral   ReferralSource
	serializer *Serializer
	recoveries Counter
	logger     zerolog.Logger

	ops *semaphore.Weighted

	mu       sync.RWMutex
	state    State
	snapshot *domain.Cart
}

// Option customizes a Client.
type Option func(*Client)

func WithNotifier(n Notifier) Option { return func(c *Client) { c.notifier = n } }

func WithReferral(r ReferralSource) Option { return func(c *Client) { c.referral = r } }

func WithSerializer(s *Serializer) Option { return func(c *Client) { c.serializer = s } }

func WithRecoveryCounter(counter Counter) Option { return func(c *Client) { c.recoveries = counter } }

func WithLogger(l zerolog.Logger) Option { return func(c *Client) { c.logger = l } }

// New builds a client in the NoCart state; call Initialize to load a persisted cart.
func New(gateway Gateway, store Store, opts ...Option) *Client {
	c := &Client{
		gateway:  gateway,
		store:    store,
		notifier: nopNotifier{},
		logger:   zerolog.Nop(),
		ops:      semaphore.NewWeighted(1),
		state:    noCart(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Snapshot returns a copy of the cached cart, or nil when there is none.
func (c *Client) Snapshot() *domain.Cart {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snapshot == nil {
		return nil
	}
	cp := *c.snapshot
	cp.Lines = append([]domain.CartLine(nil), c.snapshot.Lines...)
	return &cp
}

// CheckoutURL derives the checkout link from the current snapshot and referral code.
func (c *Client) CheckoutURL() string {
	c.mu.RLock()
	base := ""
	if c.snapshot != nil {
		base = c.snapshot.CheckoutURL
	}
	c.mu.RUnlock()

	code := ""
	if c.referral != nil {
		code, _ = c.referral.Code()
	}
	return BuildCheckoutURL(base, code)
}

// BuildCheckoutURL appends the referral code as a discount parameter.
func BuildCheckoutURL(base, code string) string {
	if base == "" || code == "" {
		return base
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("discount", code)
	u.RawQuery = q.Encode()
	return u.String()
}

// NormalizeMerchandiseID turns a bare numeric variant id into the backend's global id form.
func NormalizeMerchandiseID(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "gid://") {
		return ref
	}
	return variantGIDPrefix + ref
}

// Initialize loads the persisted cart, if any. A failed or empty fetch clears
// the persisted id. Nothing is fetched when no id is persisted.
func (c *Client) Initialize(ctx context.Context) error {
	unlock, err := c.lockOps(ctx, "")
	if err != nil {
		return err
	}
	defer unlock()

	id, ok := c.store.Get(session.CartIDKey)
	if !ok || id == "" {
		c.set(noCart(), nil)
		return nil
	}
	cart, err := c.gateway.GetCart(ctx, id)
	if err != nil || cart == nil {
		c.logger.Info().Err(err).Str("cart_id", id).Msg("discarding persisted cart id")
		c.store.Delete(session.CartIDKey)
		c.set(noCart(), nil)
		return nil
	}
	c.set(active(cart.ID), cart)
	return nil
}

// AddLine adds quantity of the merchandise, creating a cart when needed. A
// cart id the backend no longer accepts is replaced by a new cart within the
// same call.
func (c *Client) AddLine(ctx context.Context, merchandiseID string, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		c.notifier.Error("Please choose a quantity of at least 1.")
		return nil, ErrInvalidQuantity
	}
	merch := NormalizeMerchandiseID(merchandiseID)
	if merch == "" {
		c.notifier.Error("That product is unavailable.")
		return nil, ErrInvalidMerchandise
	}

	unlock, err := c.lockOps(ctx, c.State().CartID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	lines := []domain.LineInput{{MerchandiseID: merch, Quantity: quantity}}
	prev := c.State()

	var cart *domain.Cart
	switch prev.Kind {
	case Active:
		cart, err = c.gateway.AddLines(ctx, prev.CartID, lines)
		if errors.Is(err, shopify.ErrCartNotFound) {
			c.logger.Info().Str("cart_id", prev.CartID).Msg("cart id rejected, creating replacement")
			c.store.Delete(session.CartIDKey)
			c.set(recovering(), c.Snapshot())
			if c.recoveries != nil {
				c.recoveries.Inc()
			}
			cart, err = c.create(ctx, lines)
			if err != nil {
				// The old id is gone for good; there is nothing to fall back to.
				c.set(noCart(), nil)
			}
		}
	default:
		cart, err = c.create(ctx, lines)
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("merchandise_id", merch).Msg("add to cart failed")
		c.notifier.Error(userMessage(err, "We couldn't add that item to your cart."))
		return nil, err
	}

	c.set(active(cart.ID), cart)
	c.notifier.CartOpened()
	c.notifier.Success("Added to cart")
	return c.Snapshot(), nil
}

func (c *Client) create(ctx context.Context, lines []domain.LineInput) (*domain.Cart, error) {
	cart, err := c.gateway.CreateCart(ctx, lines)
	if err != nil {
		return nil, err
	}
	c.store.Set(session.CartIDKey, cart.ID)
	return cart, nil
}

// RemoveLine deletes a line from the active cart.
func (c *Client) RemoveLine(ctx context.Context, lineID string) (*domain.Cart, error) {
	unlock, err := c.lockOps(ctx, c.State().CartID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return c.removeLocked(ctx, lineID)
}

func (c *Client) removeLocked(ctx context.Context, lineID string) (*domain.Cart, error) {
	st := c.State()
	if st.Kind != Active {
		c.notifier.Error("Your cart is empty.")
		return nil, ErrNoActiveCart
	}
	cart, err := c.gateway.RemoveLines(ctx, st.CartID, []string{lineID})
	if err != nil {
		return nil, c.mutationFailed(st, err, "We couldn't remove that item.")
	}
	c.set(active(cart.ID), cart)
	return c.Snapshot(), nil
}

// UpdateQuantity sets a line's quantity; zero or less removes the line.
// Success is silent.
func (c *Client) UpdateQuantity(ctx context.Context, lineID string, quantity int) (*domain.Cart, error) {
	unlock, err := c.lockOps(ctx, c.State().CartID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if quantity <= 0 {
		return c.removeLocked(ctx, lineID)
	}
	st := c.State()
	if st.Kind != Active {
		c.notifier.Error("Your cart is empty.")
		return nil, ErrNoActiveCart
	}
	cart, err := c.gateway.UpdateLines(ctx, st.CartID, []shopify.LineUpdate{{ID: lineID, Quantity: quantity}})
	if err != nil {
		return nil, c.mutationFailed(st, err, "We couldn't update that quantity.")
	}
	c.set(active(cart.ID), cart)
	return c.Snapshot(), nil
}

// mutationFailed reports the error and keeps the last known-good snapshot,
// except for a rejected cart id, which is discarded.
func (c *Client) mutationFailed(st State, err error, fallback string) error {
	c.logger.Warn().Err(err).Str("cart_id", st.CartID).Msg("cart mutation failed")
	if errors.Is(err, shopify.ErrCartNotFound) {
		c.store.Delete(session.CartIDKey)
		c.set(noCart(), nil)
		c.notifier.Error("Your cart has expired. Please add your items again.")
		return err
	}
	c.notifier.Error(userMessage(err, fallback))
	return err
}

func (c *Client) set(st State, cart *domain.Cart) {
	c.mu.Lock()
	c.state = st
	c.snapshot = cart
	c.mu.Unlock()
}

// lockOps takes the client's operation slot, then the shared lock for cartID.
func (c *Client) lockOps(ctx context.Context, cartID string) (func(), error) {
	if err := c.ops.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	unlockKey, err := c.serializer.Lock(ctx, cartID)
	if err != nil {
		c.ops.Release(1)
		return nil, err
	}
	return func() {
		unlockKey()
		c.ops.Release(1)
	}, nil
}

func userMessage(err error, fallback string) string {
	var ue *shopify.UserErrors
	if errors.As(err, &ue) && len(ue.Errors) > 0 && ue.Errors[0].Message != "" {
		return ue.Errors[0].Message
	}
	return fallback
}
