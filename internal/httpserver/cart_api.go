package httpserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	"storefront/internal/service/cart"
	"storefront/internal/service/referral"
)

type addLineRequest struct {
	MerchandiseID string `json:"merchandiseId"`
	Quantity      *int   `json:"quantity"`
}

type updateLineRequest struct {
	Quantity *int `json:"quantity"`
}

type cartResponse struct {
	Cart          *domain.Cart        `json:"cart"`
	CheckoutURL   string              `json:"checkoutUrl,omitempty"`
	Notifications []cart.Notification `json:"notifications"`
	OpenCart      bool                `json:"openCart"`
	Error         string              `json:"error,omitempty"`
}

// cartClient builds a client over the browser's persisted cart id and loads
// the current snapshot.
func (h *handlers) cartClient(c *gin.Context) (*cart.Client, *cart.Notifications, error) {
	store := stateOf(c)
	notes := &cart.Notifications{}
	opts := []cart.Option{
		cart.WithNotifier(notes),
		cart.WithReferral(referral.NewTracker(store)),
		cart.WithSerializer(h.deps.Serializer),
		cart.WithLogger(h.logger.With().Str("id", requestID(c)).Logger()),
	}
	if h.deps.Metrics != nil {
		opts = append(opts, cart.WithRecoveryCounter(h.deps.Metrics.CartRecoveries))
	}
	client := cart.New(h.deps.Carts, store, opts...)
	if err := client.Initialize(c.Request.Context()); err != nil {
		return nil, nil, err
	}
	return client, notes, nil
}

func (h *handlers) getCart(c *gin.Context) {
	client, notes, err := h.cartClient(c)
	if err != nil {
		respondError(c, err)
		return
	}
	writeCart(c, client, notes, nil)
}

func (h *handlers) addLine(c *gin.Context) {
	var req addLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	client, notes, err := h.cartClient(c)
	if err != nil {
		respondError(c, err)
		return
	}
	_, err = client.AddLine(c.Request.Context(), req.MerchandiseID, qty)
	writeCart(c, client, notes, err)
}

func (h *handlers) updateLine(c *gin.Context) {
	var req updateLineRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Quantity == nil {
		bindError(c, err)
		return
	}
	client, notes, err := h.cartClient(c)
	if err != nil {
		respondError(c, err)
		return
	}
	_, err = client.UpdateQuantity(c.Request.Context(), lineID(c), *req.Quantity)
	writeCart(c, client, notes, err)
}

func (h *handlers) removeLine(c *gin.Context) {
	client, notes, err := h.cartClient(c)
	if err != nil {
		respondError(c, err)
		return
	}
	_, err = client.RemoveLine(c.Request.Context(), lineID(c))
	writeCart(c, client, notes, err)
}

func lineID(c *gin.Context) string {
	return strings.TrimSpace(c.Param("id"))
}

// writeCart responds with the client's current snapshot. On failure the last
// known-good cart is returned next to the error notification.
func writeCart(c *gin.Context, client *cart.Client, notes *cart.Notifications, err error) {
	resp := cartResponse{
		Cart:          client.Snapshot(),
		Notifications: notes.Messages(),
		OpenCart:      notes.Opened(),
	}
	if resp.Cart != nil {
		resp.CheckoutURL = client.CheckoutURL()
	}
	status := http.StatusOK
	if err != nil {
		_ = c.Error(err)
		status = statusFor(err)
		resp.Error = publicMessage(err)
	}
	c.JSON(status, resp)
}
