package shopify

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrCartNotFound means the backend no longer recognizes a cart id (expired or invalid).
	ErrCartNotFound = errors.New("cart not found")
	// ErrUnauthorized means a customer access token is missing, expired or invalid.
	ErrUnauthorized = errors.New("customer token invalid")
	// ErrInvalidCredentials means the email/password pair was rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// UserError is a validation message returned by a mutation.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
	Code    string   `json:"code"`
}

// UserErrors reports backend validation failures, e.g. an unknown merchandise id.
type UserErrors struct {
	Op     string
	Errors []UserError
}

func (e *UserErrors) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ue := range e.Errors {
		msgs = append(msgs, ue.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, strings.Join(msgs, "; "))
}

// HTTPError is a non-200 response from the storefront endpoint.
type HTTPError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

// checkUserErrors converts mutation user errors into a Go error, recognizing a missing cart.
func checkUserErrors(op string, errs []UserError) error {
	if len(errs) == 0 {
		return nil
	}
	for _, ue := range errs {
		if isCartField(ue.Field) || isMissingCartMessage(ue.Message) {
			return errors.Wrapf(ErrCartNotFound, "%s: %s", op, ue.Message)
		}
	}
	return &UserErrors{Op: op, Errors: errs}
}

func isCartField(field []string) bool {
	return len(field) > 0 && field[len(field)-1] == "cartId"
}

func isMissingCartMessage(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "cart") && (strings.Contains(m, "does not exist") || strings.Contains(m, "not found") || strings.Contains(m, "expired"))
}
