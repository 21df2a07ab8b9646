package main

import (
	"fmt"
	"log"

	"go.uber.org/zap"

	"github.com/nutriagg/backend/config"
	httpDelivery "github.com/nutriagg/backend/internal/delivery/http"
	"github.com/nutriagg/backend/internal/domain"
	"github.com/nutriagg/backend/internal/infrastructure/cache"
	"github.com/nutriagg/backend/internal/infrastructure/kvstore"
	"github.com/nutriagg/backend/internal/infrastructure/providers/edamam"
	"github.com/nutriagg/backend/internal/infrastructure/providers/fatsecret"
	"github.com/nutriagg/backend/internal/infrastructure/providers/nutritionix"
	"github.com/nutriagg/backend/internal/infrastructure/providers/openfoodfacts"
	"github.com/nutriagg/backend/internal/infrastructure/providers/usda"
	"github.com/nutriagg/backend/internal/infrastructure/quota"
	"github.com/nutriagg/backend/internal/regional"
	"github.com/nutriagg/backend/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.Server.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting nutriagg backend",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("cache", cfg.Cache.Type),
	)

	kv, err := newKVStore(cfg)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}

	cacheStore := cache.NewStore(kv, cache.Options{
		DefaultTTL: cfg.Cache.TTL,
		MaxEntries: cfg.Cache.MaxEntries,
	})

	tracker := quota.NewTracker(kv)
	providers := buildProviders(cfg, tracker, logger)
	if len(providers) == 0 {
		logger.Warn("no providers enabled, lookups will always fail")
	}

	aggregator := usecase.NewAggregator(
		providers,
		cacheStore,
		tracker,
		regional.NewEnhancer(regional.AustralianProfile()),
		usecase.AggregatorConfig{
			ProviderTimeout:  cfg.Lookup.ProviderTimeout,
			BulkBatchSize:    cfg.Lookup.BulkBatchSize,
			BulkBatchDelay:   cfg.Lookup.BulkBatchDelay,
			MaxSearchResults: cfg.Lookup.MaxSearchResults,
			CacheTTL:         cfg.Cache.TTL,
		},
		logger,
	)

	for _, p := range providers {
		logger.Info("provider configured",
			zap.String("name", p.Name()),
			zap.Int("priority", p.Priority()),
			zap.Bool("available", p.Available()),
		)
	}

	handler := httpDelivery.NewHandler(aggregator, logger)
	router := httpDelivery.SetupRouter(cfg, handler, logger)

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Info("server listening", zap.String("addr", addr))

	if err := router.Run(addr); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newLogger(environment string) (*zap.Logger, error) {
	if environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func newKVStore(cfg *config.Config) (domain.KVStore, error) {
	if cfg.Cache.Type == "sqlite" {
		return kvstore.NewSQLiteStore(cfg.Cache.Path)
	}
	return kvstore.NewMemoryStore(), nil
}

// buildProviders constructs every enabled adapter and registers its
// quota ceiling with the tracker.
func buildProviders(cfg *config.Config, tracker *quota.Tracker, logger *zap.Logger) []domain.Provider {
	var providers []domain.Provider

	if p := cfg.Providers.OpenFoodFacts; p.Enabled {
		tracker.Register("openfoodfacts", p.Quota, p.Priority)
		providers = append(providers, openfoodfacts.NewClient(openfoodfacts.Config{
			BaseURL:  p.BaseURL,
			Priority: p.Priority,
		}, logger))
	}

	if p := cfg.Providers.USDA; p.Enabled {
		tracker.Register("usda", p.Quota, p.Priority)
		providers = append(providers, usda.NewClient(usda.Config{
			APIKey:   p.APIKey,
			BaseURL:  p.BaseURL,
			Priority: p.Priority,
		}, logger))
	}

	if p := cfg.Providers.Nutritionix; p.Enabled {
		tracker.Register("nutritionix", p.Quota, p.Priority)
		providers = append(providers, nutritionix.NewClient(nutritionix.Config{
			AppID:    p.AppID,
			APIKey:   p.APIKey,
			BaseURL:  p.BaseURL,
			Priority: p.Priority,
		}, logger))
	}

	if p := cfg.Providers.Edamam; p.Enabled {
		tracker.Register("edamam", p.Quota, p.Priority)
		providers = append(providers, edamam.NewClient(edamam.Config{
			AppID:    p.AppID,
			AppKey:   p.APIKey,
			BaseURL:  p.BaseURL,
			Priority: p.Priority,
		}, logger))
	}

	if p := cfg.Providers.FatSecret; p.Enabled {
		tracker.Register("fatsecret", p.Quota, p.Priority)
		providers = append(providers, fatsecret.NewClient(fatsecret.Config{
			ConsumerKey:    p.AppID,
			ConsumerSecret: p.AppSecret,
			BaseURL:        p.BaseURL,
			Priority:       p.Priority,
		}, logger))
	}

	return providers
}
