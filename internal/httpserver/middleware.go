package httpserver

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid"
	"github.com/rs/zerolog"

	"storefront/internal/metrics"
	"storefront/internal/service/referral"
	"storefront/internal/session"
)

const (
	requestIDHeader = "X-Request-Id"
	requestIDKey    = "request_id"
	browserStateKey = "browser_state"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

func newRequestID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// requestLogger tags each request with a ULID, logs it once served and
// records it in the request metrics.
func requestLogger(logger zerolog.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := newRequestID()
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)

		c.Next()

		elapsed := time.Since(start)
		status := c.Writer.Status()
		if m != nil {
			m.ObserveRequest(c.Request.Method, c.FullPath(), status, elapsed)
		}

		var ev *zerolog.Event
		switch {
		case status >= 500:
			ev = logger.Error()
		case status >= 400:
			ev = logger.Warn()
		default:
			ev = logger.Info()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.Str("id", id).
			Str("method", c.Request.Method).
			Str("path", loggedPath(c)).
			Int("status", status).
			Dur("elapsed", elapsed).
			Msg("request")
	}
}

// loggedPath keeps bearer tokens carried in the path out of the logs.
func loggedPath(c *gin.Context) string {
	if c.FullPath() == dashboardLinkRoute {
		return dashboardLinkRoute
	}
	return c.Request.URL.Path
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// browserState binds the cookie-backed store to the request so every later
// handler sees the same pending writes.
func browserState(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(browserStateKey, session.NewCookieStore(c, secure))
		c.Next()
	}
}

func stateOf(c *gin.Context) *session.CookieStore {
	if v, ok := c.Get(browserStateKey); ok {
		if s, ok := v.(*session.CookieStore); ok {
			return s
		}
	}
	s := session.NewCookieStore(c, false)
	c.Set(browserStateKey, s)
	return s
}

// captureReferral persists a valid ?ref= code. Requests without one leave the
// stored code untouched.
func captureReferral(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		param, ok := c.GetQuery(referral.QueryParam)
		if ok && referral.NewTracker(stateOf(c)).Capture(param) {
			logger.Debug().Str("id", requestID(c)).Str("code", param).Msg("referral captured")
		}
		c.Next()
	}
}
