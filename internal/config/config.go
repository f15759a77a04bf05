package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/residence-finder/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Dataset   DatasetConfig   `yaml:"dataset" mapstructure:"dataset"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Reference ReferenceConfig `yaml:"reference" mapstructure:"reference"`
	Proximity ProximityConfig `yaml:"proximity" mapstructure:"proximity"`
	GeoIP     GeoIPConfig     `yaml:"geoip" mapstructure:"geoip"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// DatasetConfig locates the residence list. An empty path uses the embedded dataset.
type DatasetConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// StoreConfig configures the durable key-value backend.
type StoreConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"` // sqlite, postgres, redis, memory
	Path          string `yaml:"path" mapstructure:"path"`
	DatabaseURL   string `yaml:"database_url" mapstructure:"database_url"`
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix" mapstructure:"redis_prefix"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key          string  `yaml:"key" mapstructure:"key"`
	Model        string  `yaml:"model" mapstructure:"model"`
	MaxTokens    int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	RatePerSec   float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	MaxAttempts  int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	BackoffMilli int     `yaml:"backoff_ms" mapstructure:"backoff_ms"`
	// BreakerThreshold consecutive failures stop calls for BreakerCooldownSecs.
	BreakerThreshold    int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// ReferenceConfig holds the two homes driving distances are measured to, as "lat,lon".
type ReferenceConfig struct {
	Casa1      string `yaml:"casa1" mapstructure:"casa1"`
	Casa1Label string `yaml:"casa1_label" mapstructure:"casa1_label"`
	Casa2      string `yaml:"casa2" mapstructure:"casa2"`
	Casa2Label string `yaml:"casa2_label" mapstructure:"casa2_label"`
}

// Coords parses both reference points.
func (r ReferenceConfig) Coords() (model.Coord, model.Coord, error) {
	c1, err := model.ParseCoord(r.Casa1)
	if err != nil {
		return model.Coord{}, model.Coord{}, eris.Wrap(err, "config: reference.casa1")
	}
	c2, err := model.ParseCoord(r.Casa2)
	if err != nil {
		return model.Coord{}, model.Coord{}, eris.Wrap(err, "config: reference.casa2")
	}
	return c1, c2, nil
}

// ProximityConfig configures the proximity filter.
type ProximityConfig struct {
	DefaultRadiusKM float64 `yaml:"default_radius_km" mapstructure:"default_radius_km"`
	// Fallback is an optional "lat,lon" used when no other position source is available.
	Fallback string `yaml:"fallback" mapstructure:"fallback"`
}

// GeoIPConfig locates the MaxMind City database. Empty disables IP geolocation.
type GeoIPConfig struct {
	DBPath string `yaml:"db_path" mapstructure:"db_path"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	TrustProxy     bool     `yaml:"trust_proxy" mapstructure:"trust_proxy"`
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
	v.SetEnvPrefix("RESIDENCES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("dataset.path", "")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "residences.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.redis_prefix", "residence-finder:")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.rate_per_sec", 2.0)
	v.SetDefault("anthropic.max_attempts", 2)
	v.SetDefault("anthropic.timeout_secs", 60)
	v.SetDefault("anthropic.backoff_ms", 500)
	v.SetDefault("anthropic.breaker_threshold", 5)
	v.SetDefault("anthropic.breaker_cooldown_secs", 30)
	v.SetDefault("reference.casa1", "40.4930,-3.9650")
	v.SetDefault("reference.casa1_label", "Casa 1 (Pardillo)")
	v.SetDefault("reference.casa2", "40.3223,-3.8649")
	v.SetDefault("reference.casa2_label", "Casa 2 (Móstoles)")
	v.SetDefault("proximity.default_radius_km", 10.0)
	v.SetDefault("proximity.fallback", "")
	v.SetDefault("geoip.db_path", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.trust_proxy", false)
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

// Validate checks the settings needed by mode: "local" (dataset and annotations
// only), "enrich" (adds the Anthropic key) or "serve" (enrich plus the HTTP port).
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "local", "enrich", "serve":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "memory":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	case "redis":
		if c.Store.RedisAddr == "" {
			errs = append(errs, "store.redis_addr is required for the redis driver")
		}
	default:
		errs = append(errs, "store.driver must be one of sqlite, postgres, redis, memory")
	}

	if r := c.Proximity.DefaultRadiusKM; r < 1 || r > 50 {
		errs = append(errs, "proximity.default_radius_km must be between 1 and 50")
	}

	if mode == "enrich" || mode == "serve" {
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
		if c.Anthropic.MaxTokens <= 0 {
			errs = append(errs, "anthropic.max_tokens must be > 0")
		}
		if _, _, err := c.Reference.Coords(); err != nil {
			errs = append(errs, "reference.casa1 and reference.casa2 must be valid lat,lon pairs")
		}
	}

	if mode == "serve" && c.Server.Port <= 0 {
		errs = append(errs, "server.port must be > 0")
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
