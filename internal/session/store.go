// Package session persists small per-browser values: the cart id, the
// referral code, the customer access token and the affiliate dashboard token.
// All of them are HTTP-only; pages reach them through server endpoints.
package session

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Fixed keys of persisted browser state.
const (
	CartIDKey        = "cart_id"
	ReferralCodeKey  = "referral_code"
	CustomerTokenKey = "customer_token"
	AffiliateKey     = "affiliate_token"
)

const (
	browserStateMaxAge = 365 * 24 * time.Hour
	credentialMaxAge   = 30 * 24 * time.Hour
)

// Store is a string key/value store scoped to one browser.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// CookieStore keeps values in cookies on a gin request. Writes are visible to
// later reads within the same request.
type CookieStore struct {
	c       *gin.Context
	secure  bool
	mu      sync.Mutex
	pending map[string]*string
}

// NewCookieStore binds a store to the request. secure marks cookies Secure.
func NewCookieStore(c *gin.Context, secure bool) *CookieStore {
	return &CookieStore{c: c, secure: secure, pending: make(map[string]*string)}
}

func (s *CookieStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.pending[key]; ok {
		if v == nil {
			return "", false
		}
		return *v, true
	}
	v, err := s.c.Cookie(key)
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}

func (s *CookieStore) Set(key, value string) {
	s.SetWithMaxAge(key, value, 0)
}

// SetWithMaxAge stores value with a cookie lifetime of maxAge, capped at the
// key's default lifetime. A non-positive maxAge uses the default.
func (s *CookieStore) SetWithMaxAge(key, value string, maxAge time.Duration) {
	age := maxAgeFor(key)
	if maxAge > 0 && int(maxAge.Seconds()) < age {
		age = int(maxAge.Seconds())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v := value
	s.pending[key] = &v
	s.c.SetSameSite(http.SameSiteLaxMode)
	s.c.SetCookie(key, value, age, "/", "", s.secure, true)
}

func (s *CookieStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[key] = nil
	s.c.SetSameSite(http.SameSiteLaxMode)
	s.c.SetCookie(key, "", -1, "/", "", s.secure, true)
}

// Credentials expire after 30 days, browser state after a year.
func maxAgeFor(key string) int {
	if key == CustomerTokenKey || key == AffiliateKey {
		return int(credentialMaxAge.Seconds())
	}
	return int(browserStateMaxAge.Seconds())
}

// MemoryStore is an in-process Store, used by the CLI and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemoryStore) Set(key, value string) {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
}

func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
}
