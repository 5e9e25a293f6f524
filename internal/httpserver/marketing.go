package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/service/affiliate"
	"storefront/internal/service/marketing"
)

func (h *handlers) applyAffiliate(c *gin.Context) {
	var in affiliate.Application
	if err := c.ShouldBind(&in); err != nil {
		bindError(c, err)
		return
	}
	e, err := h.deps.Affiliates.Apply(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"slug":         e.Affiliate.Slug,
		"status":       e.Affiliate.Status,
		"dashboardUrl": e.DashboardURL,
	})
}

func (h *handlers) quiz(c *gin.Context) {
	var in marketing.Answers
	if err := c.ShouldBind(&in); err != nil {
		bindError(c, err)
		return
	}
	rec, err := h.deps.Marketing.Quiz(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"recommendation": rec,
		"productUrl":     "/products/" + rec.Handle,
	})
}

type newsletterRequest struct {
	Email  string `form:"email" json:"email"`
	Source string `form:"source" json:"source"`
}

func (h *handlers) newsletter(c *gin.Context) {
	var in newsletterRequest
	if err := c.ShouldBind(&in); err != nil {
		bindError(c, err)
		return
	}
	if err := h.deps.Marketing.Subscribe(c.Request.Context(), in.Email, in.Source); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscribed": true})
}
