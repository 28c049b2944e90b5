// README: Config loader with env defaults for HTTP, storage, providers, pricing, quotes and search.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"rideflow/internal/types"
)

type RegionConfig struct {
	Name     string
	Center   types.Point
	Country  string // ISO alpha-3 for HERE
	MapsCode string // ccTLD for Google Maps
	Language string
}

type PricingConfig struct {
	Location *time.Location
	Region   string
}

type QuoteConfig struct {
	RefreshInterval time.Duration
	FetchTimeout    time.Duration
	RouteCacheTTL   time.Duration
}

type SearchConfig struct {
	MinLength int
	Debounce  time.Duration
	Limit     int
}

type Config struct {
	Env string
	Log struct {
		Level string
	}
	HTTP struct {
		Addr string
	}
	DB struct {
		DSN string
	}
	Redis struct {
		Addr string
	}
	Providers struct {
		Route      string
		Search     string
		GeminiKey  string
		GoogleKey  string
		HereKey    string
		HereAPIURL string
	}
	Region      RegionConfig
	Pricing     PricingConfig
	Quote       QuoteConfig
	Search      SearchConfig
	SessionIdle time.Duration
}

// Load reads the environment, after merging an optional .env file.
// Missing credentials are not an error; providers report them when used.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	cfg.Env = envOrDefault("RIDEFLOW_ENV", "production")
	cfg.Log.Level = envOrDefault("RIDEFLOW_LOG_LEVEL", "info")
	cfg.HTTP.Addr = envOrDefault("RIDEFLOW_HTTP_ADDR", ":8080")
	cfg.DB.DSN = envOrDefault("RIDEFLOW_DB_DSN", "")
	cfg.Redis.Addr = envOrDefault("RIDEFLOW_REDIS_ADDR", "")

	cfg.Providers.Route = strings.ToLower(envOrDefault("RIDEFLOW_ROUTE_PROVIDER", "gemini"))
	cfg.Providers.Search = strings.ToLower(envOrDefault("RIDEFLOW_SEARCH_PROVIDER", "here"))
	cfg.Providers.GeminiKey = os.Getenv("GEMINI_API_KEY")
	cfg.Providers.GoogleKey = os.Getenv("GOOGLE_MAPS_API_KEY")
	cfg.Providers.HereKey = os.Getenv("HERE_API_KEY")
	cfg.Providers.HereAPIURL = envOrDefault("RIDEFLOW_HERE_URL", "https://autocomplete.search.hereapi.com/v1")

	switch cfg.Providers.Route {
	case "gemini", "google":
	default:
		return Config{}, fmt.Errorf("RIDEFLOW_ROUTE_PROVIDER: unknown provider %q", cfg.Providers.Route)
	}
	switch cfg.Providers.Search {
	case "here", "google":
	default:
		return Config{}, fmt.Errorf("RIDEFLOW_SEARCH_PROVIDER: unknown provider %q", cfg.Providers.Search)
	}

	cfg.Region.Name = envOrDefault("RIDEFLOW_REGION_NAME", "Bangalore, India")
	center, err := types.ParsePoint(envOrDefault("RIDEFLOW_REGION_CENTER", "12.9716,77.5946"))
	if err != nil {
		return Config{}, fmt.Errorf("RIDEFLOW_REGION_CENTER: %w", err)
	}
	cfg.Region.Center = center
	cfg.Region.Country = envOrDefault("RIDEFLOW_REGION_COUNTRY", "IND")
	cfg.Region.MapsCode = envOrDefault("RIDEFLOW_MAPS_REGION", "in")
	cfg.Region.Language = envOrDefault("RIDEFLOW_LANGUAGE", "en")

	tz := envOrDefault("RIDEFLOW_PRICING_TZ", "Asia/Kolkata")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Config{}, fmt.Errorf("RIDEFLOW_PRICING_TZ: %w", err)
	}
	cfg.Pricing.Location = loc
	cfg.Pricing.Region = envOrDefault("RIDEFLOW_PRICING_REGION", "default")

	cfg.Quote.RefreshInterval = envOrDefaultDuration("RIDEFLOW_QUOTE_REFRESH", 30*time.Second)
	cfg.Quote.FetchTimeout = envOrDefaultDuration("RIDEFLOW_FETCH_TIMEOUT", 15*time.Second)
	cfg.Quote.RouteCacheTTL = envOrDefaultDuration("RIDEFLOW_ROUTE_CACHE_TTL", 20*time.Second)

	cfg.Search.MinLength = envOrDefaultInt("RIDEFLOW_SEARCH_MIN_LENGTH", 2)
	cfg.Search.Debounce = envOrDefaultDuration("RIDEFLOW_SEARCH_DEBOUNCE", 300*time.Millisecond)
	cfg.Search.Limit = envOrDefaultInt("RIDEFLOW_SEARCH_LIMIT", 5)

	cfg.SessionIdle = envOrDefaultDuration("RIDEFLOW_SESSION_IDLE", 15*time.Minute)
	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
