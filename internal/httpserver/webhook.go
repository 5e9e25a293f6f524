package httpserver

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"storefront/internal/service/commission"
)

const maxWebhookBody = 1 << 20

// ordersPaid credits affiliate commissions for a paid order. A 5xx makes the
// platform redeliver; duplicates are absorbed by the ledger.
func (h *handlers) ordersPaid(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		_ = c.Error(err)
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		c.AbortWithStatusJSON(status, gin.H{"error": "unreadable body"})
		return
	}
	res, err := h.deps.Commissions.HandleOrderPaid(c.Request.Context(), body, c.GetHeader(commission.SignatureHeader))
	switch {
	case errors.Is(err, commission.ErrInvalidSignature):
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	case errors.Is(err, commission.ErrMalformedOrder):
		respondError(c, err)
		return
	case err != nil:
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "commission processing failed"})
		return
	}
	c.JSON(http.StatusOK, res)
}
