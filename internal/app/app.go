// Package app assembles the storefront server graph with fx.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/gateway/klaviyo"
	"storefront/internal/gateway/llm"
	"storefront/internal/gateway/sanity"
	"storefront/internal/gateway/shopify"
	"storefront/internal/httpserver"
	"storefront/internal/logging"
	"storefront/internal/metrics"
	commissionrepo "storefront/internal/repository/commission"
	"storefront/internal/service/account"
	"storefront/internal/service/affiliate"
	"storefront/internal/service/cart"
	"storefront/internal/service/chat"
	"storefront/internal/service/commission"
	"storefront/internal/service/marketing"
	"storefront/internal/service/product"
)

const connectTimeout = 15 * time.Second

// Options returns the fx graph that serves the storefront over HTTP.
func Options(cfg config.Config) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		fx.StopTimeout(cfg.ShutdownTimeout),
		fx.Provide(
			newLogger,
			newPool,
			metrics.New,
			cart.NewSerializer,
			newShopify,
			newSanity,
			newKlaviyo,
			newProvider,
			commissionrepo.NewPostgres,
			newAccounts,
			newAffiliates,
			newProducts,
			newMarketing,
			newChat,
			newCommissions,
			newServer,
		),
		fx.WithLogger(func(logger zerolog.Logger) fxevent.Logger {
			return &eventLogger{logger: logging.Component(logger, "fx")}
		}),
		fx.Invoke(runServer),
	)
}

func newLogger(cfg config.Config) zerolog.Logger {
	return logging.New(cfg.LogLevel, cfg.Production())
}

func newPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})
	return pool, nil
}

func newShopify(cfg config.Config, logger zerolog.Logger) *shopify.Client {
	return shopify.New(cfg.Shopify, logging.Component(logger, "shopify"))
}

func newSanity(cfg config.Config, logger zerolog.Logger) *sanity.Client {
	return sanity.New(cfg.Sanity, logging.Component(logger, "sanity"))
}

func newKlaviyo(cfg config.Config, logger zerolog.Logger) *klaviyo.Client {
	return klaviyo.New(cfg.Klaviyo, logging.Component(logger, "klaviyo"))
}

func newProvider(cfg config.Config, logger zerolog.Logger) (llm.Provider, error) {
	return llm.New(cfg.Chat, logging.Component(logger, "llm"))
}

func newAccounts(gw *shopify.Client, logger zerolog.Logger) *account.Service {
	return account.New(gw, logging.Component(logger, "account"))
}

func newAffiliates(cfg config.Config, store *sanity.Client, events *klaviyo.Client, credits commissionrepo.Repository, logger zerolog.Logger) *affiliate.Service {
	return affiliate.New(store, events, credits, cfg.SiteURL, cfg.Affiliate.DefaultCommissionRate, logging.Component(logger, "affiliate"))
}

func newProducts(content *sanity.Client, pricing *shopify.Client, logger zerolog.Logger) *product.Service {
	return product.New(content, pricing, logging.Component(logger, "product"))
}

func newMarketing(platform *klaviyo.Client, logger zerolog.Logger) *marketing.Service {
	return marketing.New(platform, logging.Component(logger, "marketing"))
}

func newChat(provider llm.Provider, logs *sanity.Client, m *metrics.Metrics, logger zerolog.Logger) *chat.Service {
	return chat.New(provider, logs, logging.Component(logger, "chat")).
		WithCounters(m.ChatExchanges, m.ChatFailures)
}

func newCommissions(cfg config.Config, affiliates *sanity.Client, ledger commissionrepo.Repository, m *metrics.Metrics, logger zerolog.Logger) *commission.Service {
	return commission.New(cfg.Webhook.Secret, affiliates, ledger, logging.Component(logger, "commission")).
		WithCounters(m.CommissionCredits, m.WebhookRejections)
}

type serverParams struct {
	fx.In

	Config      config.Config
	Logger      zerolog.Logger
	Pool        *pgxpool.Pool
	Metrics     *metrics.Metrics
	Serializer  *cart.Serializer
	Carts       *shopify.Client
	Products    *product.Service
	Accounts    *account.Service
	Affiliates  *affiliate.Service
	Marketing   *marketing.Service
	Chat        *chat.Service
	Commissions *commission.Service
}

func newServer(p serverParams) (*httpserver.Server, error) {
	return httpserver.New(p.Config.HTTPAddr, logging.Component(p.Logger, "http"), httpserver.Deps{
		Carts:          p.Carts,
		Serializer:     p.Serializer,
		Products:       p.Products,
		Accounts:       p.Accounts,
		Affiliates:     p.Affiliates,
		Marketing:      p.Marketing,
		Chat:           p.Chat,
		Commissions:    p.Commissions,
		Metrics:        p.Metrics,
		DB:             p.Pool,
		Secure:         p.Config.Production(),
		AllowedOrigins: p.Config.AllowedOrigins,
	})
}

// runServer ties the HTTP listener to the fx lifecycle. A listener failure
// shuts the whole app down instead of leaving it running without a server.
func runServer(lc fx.Lifecycle, srv *httpserver.Server, shutdowner fx.Shutdowner, logger zerolog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error().Err(err).Str("addr", srv.Addr()).Msg("http server failed")
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("http server shutting down")
			return srv.Shutdown(ctx)
		},
	})
}
