package httpserver

import (
	"context"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"storefront/internal/domain"
	"storefront/internal/gateway/llm"
	"storefront/internal/metrics"
	"storefront/internal/service/account"
	"storefront/internal/service/affiliate"
	"storefront/internal/service/cart"
	"storefront/internal/service/commission"
	"storefront/internal/service/marketing"
)

// ProductService serves catalog pages.
type ProductService interface {
	List(ctx context.Context, featuredOnly bool) ([]domain.Product, error)
	Get(ctx context.Context, handle string) (*domain.Product, error)
}

// AccountService signs customers in and out.
type AccountService interface {
	Login(ctx context.Context, email, password string) (domain.AccessToken, error)
	Register(ctx context.Context, in account.RegisterInput) (domain.AccessToken, error)
	Logout(ctx context.Context, token string)
	Dashboard(ctx context.Context, token string) (*domain.Customer, error)
	SessionMaxAge(tok domain.AccessToken) time.Duration
}

// AffiliateService runs the partner program.
type AffiliateService interface {
	Apply(ctx context.Context, in affiliate.Application) (*affiliate.Enrollment, error)
	Dashboard(ctx context.Context, token string) (*affiliate.Dashboard, error)
}

// MarketingService handles the newsletter and quiz.
type MarketingService interface {
	Subscribe(ctx context.Context, email, source string) error
	Quiz(ctx context.Context, a marketing.Answers) (marketing.Recommendation, error)
}

// ChatService streams assistant replies.
type ChatService interface {
	Reply(ctx context.Context, sessionID string, history []llm.Message, emit func(string)) (string, error)
}

// CommissionService processes paid-order notifications.
type CommissionService interface {
	HandleOrderPaid(ctx context.Context, body []byte, signature string) (*commission.Result, error)
}

// Deps are the services behind the routes.
type Deps struct {
	Carts       cart.Gateway
	Serializer  *cart.Serializer
	Products    ProductService
	Accounts    AccountService
	Affiliates  AffiliateService
	Marketing   MarketingService
	Chat        ChatService
	Commissions CommissionService
	Metrics     *metrics.Metrics
	DB          Pinger

	// Secure marks browser-state cookies Secure.
	Secure         bool
	AllowedOrigins []string
}

type handlers struct {
	deps   Deps
	logger zerolog.Logger
}

// buildRouter wires pages, the JSON API, the webhook and operational routes.
func buildRouter(logger zerolog.Logger, deps Deps) (*gin.Engine, error) {
	if deps.Serializer == nil {
		deps.Serializer = cart.NewSerializer()
	}
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, errors.Wrap(err, "parse templates")
	}
	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, errors.Wrap(err, "static assets")
	}

	router := gin.New()
	// Cart line ids are gids containing slashes; they arrive escaped.
	router.UseRawPath = true
	router.Use(requestLogger(logger, deps.Metrics), gin.CustomRecovery(recoveryHandler(logger)))
	router.SetHTMLTemplate(tmpl)

	h := &handlers{deps: deps, logger: logger}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.DB))
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	router.StaticFS("/static", http.FS(static))

	// The signature covers the raw body, so nothing upstream may read it.
	router.POST("/webhooks/orders-paid", h.ordersPaid)

	pages := router.Group("/", browserState(deps.Secure), captureReferral(logger))
	pages.GET("/", h.home)
	pages.GET("/shop", h.shop)
	pages.GET("/products/:handle", h.product)
	pages.GET("/cart", h.cartPage)
	pages.GET("/quiz", h.quizPage)
	pages.GET("/affiliates", h.affiliateProgram)
	pages.GET(affiliate.DashboardPath, h.affiliateDashboard)
	pages.GET(dashboardLinkRoute, h.affiliateDashboardLink)
	pages.GET("/account", h.account)
	pages.GET("/account/login", h.loginPage)
	pages.POST("/account/login", h.login)
	pages.GET("/account/register", h.registerPage)
	pages.POST("/account/register", h.register)
	pages.POST("/account/logout", h.logout)

	api := router.Group("/api", apiCORS(deps.AllowedOrigins), browserState(deps.Secure), captureReferral(logger))
	api.GET("/cart", h.getCart)
	api.POST("/cart/lines", h.addLine)
	api.PATCH("/cart/lines/:id", h.updateLine)
	api.DELETE("/cart/lines/:id", h.removeLine)
	api.POST("/chat", h.chat)
	api.POST("/affiliates", h.applyAffiliate)
	api.POST("/quiz", h.quiz)
	api.POST("/newsletter", h.newsletter)

	router.NoRoute(func(c *gin.Context) {
		renderNotFound(c)
	})

	return router, nil
}

func apiCORS(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	cfg.MaxAge = 12 * time.Hour
	return cors.New(cfg)
}

func recoveryHandler(logger zerolog.Logger) gin.RecoveryFunc {
	return func(c *gin.Context, recovered any) {
		logger.Error().Interface("panic", recovered).Str("path", c.Request.URL.Path).Msg("handler panicked")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
