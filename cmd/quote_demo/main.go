// README: One-shot quote for a pickup/dropoff pair using the configured route provider.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/kr/pretty"

	"rideflow/internal/ai"
	"rideflow/internal/config"
	"rideflow/internal/infra"
	"rideflow/internal/maps"
	"rideflow/internal/modules/pricing"
	"rideflow/internal/modules/quote"
	"rideflow/internal/modules/routes"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: quote_demo [-timeout 30s] <pickup> <dropoff>\n")
		flag.PrintDefaults()
	}
	timeout := flag.Duration("timeout", 30*time.Second, "overall deadline")
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	pickup, dropoff := flag.Arg(0), flag.Arg(1)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := infra.NewLogger("development", cfg.Log.Level)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var provider routes.Provider
	switch cfg.Providers.Route {
	case "google":
		p, err := maps.NewRouteService(cfg.Providers.GoogleKey, maps.Options{
			Region:   cfg.Region.MapsCode,
			Language: cfg.Region.Language,
			Center:   cfg.Region.Center,
		})
		if err != nil {
			log.Fatalf("init google provider: %v", err)
		}
		provider = p
	default:
		p, err := ai.NewGeminiProvider(ctx, cfg.Providers.GeminiKey, cfg.Region.Name)
		if err != nil {
			log.Fatalf("init gemini provider: %v", err)
		}
		defer p.Close()
		provider = p
	}

	routeSvc := routes.NewService(provider, routes.Options{Name: cfg.Providers.Route, Timeout: *timeout}, logger)
	pricingSvc := pricing.NewService(nil, cfg.Pricing.Location, logger)
	cache := quote.NewCache(routeSvc, pricingSvc, quote.Options{RefreshInterval: time.Hour}, logger)
	defer cache.Close()

	fmt.Printf("Route: %s -> %s (%s)\n", pickup, dropoff, cfg.Providers.Route)
	cache.GetQuote(pickup, dropoff)
	snap, err := cache.Await(ctx)
	if err != nil {
		log.Fatalf("waiting for quote: %v", err)
	}
	if snap.IsError {
		log.Fatalf("quote failed: %s", snap.Error)
	}
	if snap.Quote == nil {
		log.Fatalf("no quote (state %s); is the %s provider configured?", snap.State, cfg.Providers.Route)
	}

	pretty.Println(snap.Quote)
	for _, alt := range snap.Quote.Alternatives {
		sel, err := cache.SelectAlternative(alt.Location)
		if err != nil {
			continue
		}
		fmt.Printf("\nIf you walk to %s:\n", alt.Location)
		pretty.Println(sel)
	}
}
