package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	RentCast RentCastConfig `yaml:"rentcast" mapstructure:"rentcast"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Geometry GeometryConfig `yaml:"geometry" mapstructure:"geometry"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// RentCastConfig holds RentCast API settings.
type RentCastConfig struct {
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// FetchConfig configures the per-region fetch loop.
type FetchConfig struct {
	PacingMs         int           `yaml:"pacing_ms" mapstructure:"pacing_ms"`
	Concurrency      int           `yaml:"concurrency" mapstructure:"concurrency"`
	MaxAttempts      int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int           `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int           `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	RegionsFile      string        `yaml:"regions_file" mapstructure:"regions_file"`
	Regions          []RegionGroup `yaml:"regions" mapstructure:"regions"`
}

// RegionGroup is a named, ordered list of region keys (zip codes).
type RegionGroup struct {
	Name string   `yaml:"name" mapstructure:"name"`
	Keys []string `yaml:"keys" mapstructure:"keys"`
}

// GeometryConfig lists the optional parcel/lot geometry sources.
type GeometryConfig struct {
	Sources []GeometrySource `yaml:"sources" mapstructure:"sources"`
}

// GeometrySource is one local GeoJSON or shapefile to combine with listings.
type GeometrySource struct {
	Name string `yaml:"name" mapstructure:"name"`
	Path string `yaml:"path" mapstructure:"path"`
}

// CacheConfig configures the optional SQLite response cache.
type CacheConfig struct {
	Path     string `yaml:"path" mapstructure:"path"`
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// OutputConfig configures the combined dataset artifact and optional sink.
type OutputConfig struct {
	Path        string `yaml:"path" mapstructure:"path"`
	Format      string `yaml:"format" mapstructure:"format"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Table       string `yaml:"table" mapstructure:"table"`
}

// ServerConfig configures the artifact server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("rentcast.api_key", "TRACKER_RENTCAST_API_KEY", "RENTCAST_API_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind api key env")
	}

	// Defaults
	v.SetDefault("rentcast.base_url", "https://api.rentcast.io")
	v.SetDefault("rentcast.timeout_secs", 15)
	v.SetDefault("fetch.pacing_ms", 500)
	v.SetDefault("fetch.concurrency", 1)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.initial_backoff_ms", 500)
	v.SetDefault("fetch.max_backoff_ms", 5000)
	v.SetDefault("fetch.regions_file", "")
	v.SetDefault("cache.path", "")
	v.SetDefault("cache.ttl_hours", 24)
	v.SetDefault("output.path", "output/aggregated_data.json")
	v.SetDefault("output.format", "json")
	v.SetDefault("output.table", "listings_combined")
	v.SetDefault("output.database_url", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if cfg.Fetch.RegionsFile != "" {
		groups, err := LoadRegions(cfg.Fetch.RegionsFile)
		if err != nil {
			return nil, err
		}
		cfg.Fetch.Regions = groups
	}
	if len(cfg.Fetch.Regions) == 0 {
		cfg.Fetch.Regions = DefaultRegions()
	}
	if len(cfg.Geometry.Sources) == 0 {
		cfg.Geometry.Sources = DefaultGeometrySources()
	}

	return &cfg, nil
}

// DefaultGeometrySources returns the DC lot and Fairfax parcel files.
func DefaultGeometrySources() []GeometrySource {
	return []GeometrySource{
		{Name: "dc_lots", Path: "data/dc_lots.geojson"},
		{Name: "fairfax_parcels", Path: "data/fairfax_parcels.geojson"},
	}
}

// RegionKeys flattens the configured groups into one ordered key list.
func (c *Config) RegionKeys() []string {
	var keys []string
	for _, g := range c.Fetch.Regions {
		keys = append(keys, g.Keys...)
	}
	return keys
}

// Validate checks that the settings required by the given command are present.
// Mode is one of "run", "serve", or "nearby".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "run":
		if c.RentCast.APIKey == "" {
			errs = append(errs, "rentcast.api_key is required (set RENTCAST_API_KEY)")
		}
		if c.Fetch.Concurrency < 1 || c.Fetch.Concurrency > 16 {
			errs = append(errs, "fetch.concurrency must be between 1 and 16")
		}
		if c.Fetch.PacingMs < 0 {
			errs = append(errs, "fetch.pacing_ms must be >= 0")
		}
		if len(c.RegionKeys()) == 0 {
			errs = append(errs, "fetch.regions must contain at least one key")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "nearby":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Output.Format {
	case "json", "ndjson":
	default:
		errs = append(errs, fmt.Sprintf("output.format must be json or ndjson, got %q", c.Output.Format))
	}
	if c.Output.Path == "" {
		errs = append(errs, "output.path is required")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
