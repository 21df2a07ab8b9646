package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Lookup    LookupConfig    `mapstructure:"lookup"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ProviderConfig holds one upstream provider's credentials and limits.
// Quota is calls per day; -1 means unlimited.
type ProviderConfig struct {
	APIKey    string `mapstructure:"api_key"`
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
	BaseURL   string `mapstructure:"base_url"`
	Priority  int    `mapstructure:"priority"`
	Quota     int    `mapstructure:"quota"`
	Enabled   bool   `mapstructure:"enabled"`
}

// ProvidersConfig holds per-provider settings for all upstreams
type ProvidersConfig struct {
	OpenFoodFacts ProviderConfig `mapstructure:"openfoodfacts"`
	USDA          ProviderConfig `mapstructure:"usda"`
	Nutritionix   ProviderConfig `mapstructure:"nutritionix"`
	Edamam        ProviderConfig `mapstructure:"edamam"`
	FatSecret     ProviderConfig `mapstructure:"fatsecret"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type       string        `mapstructure:"type"` // "memory" or "sqlite"
	Path       string        `mapstructure:"path"`
	TTL        time.Duration `mapstructure:"ttl"`
	MaxEntries int           `mapstructure:"max_entries"`
}

// LookupConfig holds aggregation tunables
type LookupConfig struct {
	ProviderTimeout  time.Duration `mapstructure:"provider_timeout"`
	BulkBatchSize    int           `mapstructure:"bulk_batch_size"`
	BulkBatchDelay   time.Duration `mapstructure:"bulk_batch_delay"`
	MaxSearchResults int           `mapstructure:"max_search_results"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/nutriagg/")

	v.SetEnvPrefix("NUTRIAGG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional; env vars and defaults cover everything
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Provider defaults. Open Food Facts needs no credentials and has
	// no ceiling, so it leads the waterfall.
	v.SetDefault("providers.openfoodfacts.base_url", "https://world.openfoodfacts.org")
	v.SetDefault("providers.openfoodfacts.priority", 1)
	v.SetDefault("providers.openfoodfacts.quota", -1)
	v.SetDefault("providers.openfoodfacts.enabled", true)

	v.SetDefault("providers.usda.base_url", "https://api.nal.usda.gov/fdc")
	v.SetDefault("providers.usda.priority", 2)
	v.SetDefault("providers.usda.quota", 1000)
	v.SetDefault("providers.usda.enabled", true)

	v.SetDefault("providers.nutritionix.base_url", "https://trackapi.nutritionix.com")
	v.SetDefault("providers.nutritionix.priority", 3)
	v.SetDefault("providers.nutritionix.quota", 200)
	v.SetDefault("providers.nutritionix.enabled", true)

	v.SetDefault("providers.edamam.base_url", "https://api.edamam.com")
	v.SetDefault("providers.edamam.priority", 4)
	v.SetDefault("providers.edamam.quota", 400)
	v.SetDefault("providers.edamam.enabled", true)

	v.SetDefault("providers.fatsecret.base_url", "https://platform.fatsecret.com/rest/server.api")
	v.SetDefault("providers.fatsecret.priority", 5)
	v.SetDefault("providers.fatsecret.quota", 150)
	v.SetDefault("providers.fatsecret.enabled", true)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.path", "nutriagg.db")
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.max_entries", 1000)

	// Lookup defaults
	v.SetDefault("lookup.provider_timeout", "8s")
	v.SetDefault("lookup.bulk_batch_size", 5)
	v.SetDefault("lookup.bulk_batch_delay", "100ms")
	v.SetDefault("lookup.max_search_results", 20)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Cache.Type != "memory" && config.Cache.Type != "sqlite" {
		return fmt.Errorf("cache type must be 'memory' or 'sqlite', got: %s", config.Cache.Type)
	}
	if config.Cache.Type == "sqlite" && config.Cache.Path == "" {
		return fmt.Errorf("cache path is required when cache type is 'sqlite'")
	}
	if config.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache max_entries must be positive, got: %d", config.Cache.MaxEntries)
	}

	if config.Lookup.BulkBatchSize <= 0 {
		return fmt.Errorf("lookup bulk_batch_size must be positive, got: %d", config.Lookup.BulkBatchSize)
	}
	if config.Lookup.MaxSearchResults <= 0 {
		return fmt.Errorf("lookup max_search_results must be positive, got: %d", config.Lookup.MaxSearchResults)
	}

	for name, p := range map[string]ProviderConfig{
		"openfoodfacts": config.Providers.OpenFoodFacts,
		"usda":          config.Providers.USDA,
		"nutritionix":   config.Providers.Nutritionix,
		"edamam":        config.Providers.Edamam,
		"fatsecret":     config.Providers.FatSecret,
	} {
		if p.Quota < -1 {
			return fmt.Errorf("provider %s quota must be -1 (unlimited) or non-negative, got: %d", name, p.Quota)
		}
		if p.Priority <= 0 {
			return fmt.Errorf("provider %s priority must be positive, got: %d", name, p.Priority)
		}
	}

	return nil
}
