package commission

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"
)

// SignatureHeader carries the base64 HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Shopify-Hmac-Sha256"

// ErrInvalidSignature is returned when the body digest does not match the header.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// ErrMalformedOrder is returned for a verified body that is not a usable order.
var ErrMalformedOrder = errors.New("malformed order")

// Sign returns the base64 HMAC-SHA256 of body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks signature against body in constant time. An empty secret
// rejects every request.
func Verify(secret, body []byte, signature string) error {
	signature = strings.TrimSpace(signature)
	if len(secret) == 0 || signature == "" {
		return ErrInvalidSignature
	}
	given, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), given) {
		return ErrInvalidSignature
	}
	return nil
}
