package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"storefront/internal/domain"
	"storefront/internal/service/affiliate"
	"storefront/internal/service/marketing"
	"storefront/internal/session"
)

func (h *handlers) home(c *gin.Context) {
	products, err := h.deps.Products.List(c.Request.Context(), true)
	if err != nil {
		failPage(c, err)
		return
	}
	render(c, http.StatusOK, "home", "", products)
}

func (h *handlers) shop(c *gin.Context) {
	products, err := h.deps.Products.List(c.Request.Context(), false)
	if err != nil {
		failPage(c, err)
		return
	}
	render(c, http.StatusOK, "shop", "Shop", products)
}

func (h *handlers) product(c *gin.Context) {
	p, err := h.deps.Products.Get(c.Request.Context(), c.Param("handle"))
	if err != nil {
		failPage(c, err)
		return
	}
	render(c, http.StatusOK, "product", p.Title, p)
}

type cartView struct {
	Cart        *domain.Cart
	CheckoutURL string
}

func (h *handlers) cartPage(c *gin.Context) {
	client, _, err := h.cartClient(c)
	if err != nil {
		failPage(c, err)
		return
	}
	view := cartView{Cart: client.Snapshot()}
	if view.Cart.Empty() {
		view.Cart = nil
	} else {
		view.CheckoutURL = client.CheckoutURL()
	}
	render(c, http.StatusOK, "cart", "Cart", view)
}

func (h *handlers) quizPage(c *gin.Context) {
	render(c, http.StatusOK, "quiz", "Quiz", gin.H{
		"Goals":      marketing.Goals,
		"Activities": marketing.Activities,
		"Diets":      marketing.Diets,
	})
}

func (h *handlers) affiliateProgram(c *gin.Context) {
	render(c, http.StatusOK, "affiliates", "Partner program", gin.H{"Categories": affiliate.Categories})
}

const dashboardLinkRoute = affiliate.DashboardPath + "/:token"

// affiliateDashboardLink trades the token from an emailed link for a cookie
// and redirects, so the token does not stay in the address bar or history.
func (h *handlers) affiliateDashboardLink(c *gin.Context) {
	token := c.Param("token")
	if _, err := h.deps.Affiliates.Dashboard(c.Request.Context(), token); err != nil {
		failPage(c, err)
		return
	}
	stateOf(c).Set(session.AffiliateKey, token)
	c.Header("Referrer-Policy", "no-referrer")
	c.Redirect(http.StatusSeeOther, affiliate.DashboardPath)
}

func (h *handlers) affiliateDashboard(c *gin.Context) {
	state := stateOf(c)
	token, ok := state.Get(session.AffiliateKey)
	if !ok {
		renderNotFound(c)
		return
	}
	d, err := h.deps.Affiliates.Dashboard(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			state.Delete(session.AffiliateKey)
		}
		failPage(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	render(c, http.StatusOK, "affiliate", d.Affiliate.Name, d)
}
