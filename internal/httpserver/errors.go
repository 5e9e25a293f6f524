package httpserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"storefront/internal/domain"
	"storefront/internal/gateway/klaviyo"
	"storefront/internal/gateway/shopify"
	"storefront/internal/service/account"
	"storefront/internal/service/cart"
	"storefront/internal/service/chat"
	"storefront/internal/service/commission"
)

// statusFor maps service errors to HTTP statuses. Anything unclassified came
// from a remote backend and is reported as a bad gateway.
func statusFor(err error) int {
	var ve *domain.ValidationError
	var ue *shopify.UserErrors
	switch {
	case errors.As(err, &ve), errors.As(err, &ue),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrInvalidMerchandise),
		errors.Is(err, chat.ErrEmptyConversation),
		errors.Is(err, chat.ErrMessageTooLong),
		errors.Is(err, account.ErrInvalidEmail):
		return http.StatusUnprocessableEntity
	case errors.Is(err, commission.ErrInvalidSignature),
		errors.Is(err, account.ErrInvalidCredentials),
		errors.Is(err, account.ErrInvalidToken),
		errors.Is(err, shopify.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, commission.ErrMalformedOrder):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, cart.ErrNoActiveCart),
		errors.Is(err, shopify.ErrCartNotFound),
		errors.Is(err, chat.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, klaviyo.ErrDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// publicMessage is the text shown to shoppers for err.
func publicMessage(err error) string {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return capitalize(strings.TrimSpace(ve.Field+" "+ve.Message)) + "."
	}
	var ue *shopify.UserErrors
	if errors.As(err, &ue) && len(ue.Errors) > 0 {
		return ue.Errors[0].Message
	}
	switch statusFor(err) {
	case http.StatusUnprocessableEntity, http.StatusConflict:
		return capitalize(errors.Cause(err).Error()) + "."
	case http.StatusUnauthorized:
		return "You are not signed in."
	case http.StatusNotFound:
		return "Not found."
	default:
		return "Something went wrong on our side. Please try again."
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// respondError writes a JSON error body and records err on the context for
// the request log.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	body := gin.H{"error": publicMessage(err)}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		body["field"] = ve.Field
	}
	c.AbortWithStatusJSON(statusFor(err), body)
}

func bindError(c *gin.Context, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Malformed request."})
}
