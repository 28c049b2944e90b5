// README: Entry point; loads config, wires providers and services, starts the HTTP server and session janitor.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rideflow/internal/ai"
	"rideflow/internal/config"
	"rideflow/internal/here"
	httptransport "rideflow/internal/http"
	"rideflow/internal/infra"
	"rideflow/internal/maps"
	"rideflow/internal/modules/pricing"
	"rideflow/internal/modules/quote"
	"rideflow/internal/modules/routes"
	"rideflow/internal/modules/search"
	"rideflow/internal/modules/session"
	"rideflow/internal/types"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := infra.NewLogger(cfg.Env, cfg.Log.Level)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pricingStore *pricing.Store
	if cfg.DB.DSN != "" {
		dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			logger.Fatal("connect postgres", zap.Error(err))
		}
		defer dbPool.Close()
		pricingStore = pricing.NewStore(dbPool)
	}
	pricingSvc := pricing.NewService(pricingStore, cfg.Pricing.Location, logger.Named("pricing"))
	if pricingStore != nil {
		if err := pricingSvc.Reload(ctx, cfg.Pricing.Region); err != nil {
			logger.Warn("using default tariff", zap.String("region", cfg.Pricing.Region), zap.Error(err))
		}
	}

	var routeCache routes.Cacher
	if cfg.Redis.Addr != "" {
		redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			logger.Fatal("connect redis", zap.Error(err))
		}
		defer func() { _ = redisClient.Close() }()
		routeCache = routes.NewStore(redisClient, cfg.Quote.RouteCacheTTL)
	}

	provider, closeProvider := newRouteProvider(ctx, cfg, logger)
	defer closeProvider()
	routeSvc := routes.NewService(provider, routes.Options{
		Name:    cfg.Providers.Route,
		Timeout: cfg.Quote.FetchTimeout,
		Cache:   routeCache,
	}, logger.Named("routes"))

	sessions := session.NewManager(session.Deps{
		Fetcher: routeSvc,
		Pricer:  pricingSvc,
		Lookup:  newLookup(cfg, logger),
		QuoteOptions: quote.Options{
			RefreshInterval: cfg.Quote.RefreshInterval,
		},
		SearchOptions: search.Options{
			MinLength: cfg.Search.MinLength,
			Debounce:  cfg.Search.Debounce,
		},
		IdleTimeout: cfg.SessionIdle,
	}, logger.Named("session"))
	defer sessions.Close()
	go sessions.RunJanitor(ctx)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Sessions: sessions,
		Pricing:  pricingSvc,
		Log:      logger.Named("http"),
	})
	server := httptransport.NewServer(cfg.HTTP.Addr, router, logger)
	if err := server.Run(ctx); err != nil {
		logger.Error("http server stopped", zap.Error(err))
	}
}

// newRouteProvider returns nil when credentials are missing, so quotes stay idle
// instead of failing.
func newRouteProvider(ctx context.Context, cfg config.Config, logger *zap.Logger) (routes.Provider, func()) {
	switch cfg.Providers.Route {
	case "google":
		p, err := maps.NewRouteService(cfg.Providers.GoogleKey, maps.Options{
			Region:   cfg.Region.MapsCode,
			Language: cfg.Region.Language,
			Center:   cfg.Region.Center,
		})
		if err != nil {
			logUnconfigured(logger, "google route provider", err)
			return nil, func() {}
		}
		return p, func() {}
	default:
		p, err := ai.NewGeminiProvider(ctx, cfg.Providers.GeminiKey, cfg.Region.Name)
		if err != nil {
			logUnconfigured(logger, "gemini route provider", err)
			return nil, func() {}
		}
		return p, p.Close
	}
}

func newLookup(cfg config.Config, logger *zap.Logger) search.Lookup {
	switch cfg.Providers.Search {
	case "google":
		p, err := maps.NewPlacesService(cfg.Providers.GoogleKey, maps.Options{
			Region:   cfg.Region.MapsCode,
			Language: cfg.Region.Language,
			Center:   cfg.Region.Center,
		}, cfg.Search.Limit)
		if err != nil {
			logUnconfigured(logger, "google places lookup", err)
			return nil
		}
		return p
	default:
		if cfg.Providers.HereKey == "" {
			logger.Warn("HERE_API_KEY is empty; suggestions disabled")
		}
		return here.NewClient(here.Options{
			BaseURL:  cfg.Providers.HereAPIURL,
			APIKey:   cfg.Providers.HereKey,
			Center:   cfg.Region.Center,
			Country:  cfg.Region.Country,
			Limit:    cfg.Search.Limit,
			Language: cfg.Region.Language,
		})
	}
}

func logUnconfigured(logger *zap.Logger, what string, err error) {
	if errors.Is(err, types.ErrConfiguration) {
		logger.Warn(what+" not configured", zap.Error(err))
		return
	}
	logger.Fatal("init "+what, zap.Error(err))
}
