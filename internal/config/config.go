package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	DataGov DataGovConfig `yaml:"datagov" mapstructure:"datagov"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// DataGovConfig holds data.gov.in API credentials and the dataset to query.
type DataGovConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	ResourceID  string `yaml:"resource_id" mapstructure:"resource_id"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  int    `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// Configured reports whether upstream calls can be attempted at all.
func (c DataGovConfig) Configured() bool {
	return c.Key != "" && c.ResourceID != ""
}

// CacheConfig tunes the query pipeline.
type CacheConfig struct {
	QueryTTLMins    int    `yaml:"query_ttl_mins" mapstructure:"query_ttl_mins"`
	MonthlyTTLHours int    `yaml:"monthly_ttl_hours" mapstructure:"monthly_ttl_hours"`
	LookbackPeriods int    `yaml:"lookback_periods" mapstructure:"lookback_periods"`
	PageSize        int    `yaml:"page_size" mapstructure:"page_size"`
	MaxPages        int    `yaml:"max_pages" mapstructure:"max_pages"`
	DefaultState    string `yaml:"default_state" mapstructure:"default_state"`
}

// QueryTTL returns the hot query cache TTL.
func (c CacheConfig) QueryTTL() time.Duration { return time.Duration(c.QueryTTLMins) * time.Minute }

// MonthlyTTL returns the monthly lookup cache TTL.
func (c CacheConfig) MonthlyTTL() time.Duration {
	return time.Duration(c.MonthlyTTLHours) * time.Hour
}

// StoreConfig configures the snapshot persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite, postgres or none
	Path        string `yaml:"path" mapstructure:"path"`     // sqlite file
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// GeocodeConfig configures reverse geocoding for the locate endpoint.
type GeocodeConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks the settings a command actually needs. mode is the
// subcommand about to run ("serve" or "fetch").
func (c *Config) Validate(mode string) error {
	var missing []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
	case "fetch":
		if !c.DataGov.Configured() {
			missing = append(missing, "datagov.key and datagov.resource_id are required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			missing = append(missing, "store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required for the postgres driver")
		}
	case "none", "":
	default:
		missing = append(missing, "store.driver must be sqlite, postgres or none")
	}

	if c.Cache.PageSize <= 0 || c.Cache.PageSize > 1000 {
		missing = append(missing, "cache.page_size must be between 1 and 1000")
	}
	if c.Cache.MaxPages <= 0 {
		missing = append(missing, "cache.max_pages must be > 0")
	}
	if c.Cache.LookbackPeriods < 0 || c.Cache.LookbackPeriods > 24 {
		missing = append(missing, "cache.lookback_periods must be between 0 and 24")
	}

	if len(missing) > 0 {
		return eris.New("config: " + strings.Join(missing, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MGNREGA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("datagov.base_url", "https://api.data.gov.in/resource")
	v.SetDefault("datagov.timeout_secs", 30)
	v.SetDefault("datagov.rate_per_sec", 5)
	v.SetDefault("cache.query_ttl_mins", 60)
	v.SetDefault("cache.monthly_ttl_hours", 24)
	v.SetDefault("cache.lookback_periods", 6)
	v.SetDefault("cache.page_size", 200)
	v.SetDefault("cache.max_pages", 25)
	v.SetDefault("cache.default_state", "Jharkhand")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "mgnrega.db")
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "mgnrega-dashboard/1.0")
	v.SetDefault("geocode.timeout_secs", 10)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
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

	return &cfg, nil
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
