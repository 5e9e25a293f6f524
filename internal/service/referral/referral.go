// Package referral attributes a browser to an affiliate through the ref query
// parameter and carries the code to checkout.
package referral

import (
	"regexp"
	"strings"

	"storefront/internal/session"
)

// QueryParam is the landing-page parameter that sets the code.
const QueryParam = "ref"

const maxCodeLength = 64

var codePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Store is the persisted browser state the code lives in.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// Tracker reads and captures the referral code for one browser.
type Tracker struct {
	store Store
}

func NewTracker(store Store) *Tracker {
	return &Tracker{store: store}
}

// Valid reports whether code may be stored as a referral code.
func Valid(code string) bool {
	return len(code) <= maxCodeLength && codePattern.MatchString(code)
}

// Capture stores the ref parameter value when it is a valid code. A missing or
// invalid value leaves any previous code untouched. It reports whether the
// stored code changed.
func (t *Tracker) Capture(param string) bool {
	code := strings.TrimSpace(param)
	if code == "" || !Valid(code) {
		return false
	}
	if cur, ok := t.store.Get(session.ReferralCodeKey); ok && cur == code {
		return false
	}
	t.store.Set(session.ReferralCodeKey, code)
	return true
}

// Code returns the persisted referral code.
func (t *Tracker) Code() (string, bool) {
	code, ok := t.store.Get(session.ReferralCodeKey)
	if !ok || code == "" {
		return "", false
	}
	return code, true
}
