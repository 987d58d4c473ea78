// Package config loads service configuration.
//
// Priority, highest first: PHARMA_* environment variables (a .env file is
// loaded into the environment first), config.toml, built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"pharmastock/internal/domain/documents/inventory"
)

// EnvPrefix prefixes every environment override, e.g. PHARMA_DATABASE_URL.
const EnvPrefix = "PHARMA"

// Config holds all service configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Log         LogConfig         `mapstructure:"log"`
	Inventory   InventoryConfig   `mapstructure:"inventory"`
	Outbox      OutboxConfig      `mapstructure:"outbox"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type DatabaseConfig struct {
	URL              string        `mapstructure:"url" validate:"required"`
	MaxConns         int32         `mapstructure:"max_conns" validate:"min=1"`
	MinConns         int32         `mapstructure:"min_conns" validate:"min=0,ltefield=MaxConns"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout" validate:"gte=0"`
}

// RedisConfig enables the product cache when Addr is set.
type RedisConfig struct {
	Addr       string        `mapstructure:"addr" validate:"omitempty,hostname_port"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db" validate:"min=0"`
	CatalogTTL time.Duration `mapstructure:"catalog_ttl" validate:"gt=0"`
}

// Enabled reports whether a Redis server is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret" validate:"omitempty,min=16"`
	Issuer string        `mapstructure:"issuer" validate:"required"`
	TTL    time.Duration `mapstructure:"ttl" validate:"gt=0"`
}

type LogConfig struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
}

type InventoryConfig struct {
	AutoLot         bool          `mapstructure:"auto_lot"`
	LotWithCost     bool          `mapstructure:"lot_with_cost"`
	ReferencePrefix string        `mapstructure:"reference_prefix" validate:"required,alphanum,max=8"`
	RowRule         string        `mapstructure:"row_rule"`
	EditTTL         time.Duration `mapstructure:"edit_ttl" validate:"gt=0"`
}

// Settings converts the section into workflow settings.
func (c InventoryConfig) Settings() inventory.Settings {
	return inventory.Settings{
		AutoLot:         c.AutoLot,
		LotWithCost:     c.LotWithCost,
		ReferencePrefix: c.ReferencePrefix,
		RowRule:         c.RowRule,
		EditTTL:         c.EditTTL,
	}
}

type OutboxConfig struct {
	Interval          time.Duration `mapstructure:"interval" validate:"gt=0"`
	BatchSize         int           `mapstructure:"batch_size" validate:"min=1,max=1000"`
	MaxRetries        int           `mapstructure:"max_retries" validate:"min=1"`
	Backoff           time.Duration `mapstructure:"backoff" validate:"gt=0"`
	CompressThreshold int           `mapstructure:"compress_threshold" validate:"min=256"`
	Retention         time.Duration `mapstructure:"retention" validate:"gt=0"`
}

type IdempotencyConfig struct {
	TTL time.Duration `mapstructure:"ttl" validate:"gt=0"`
}

func setDefaults(v *viper.Viper) {
	inv := inventory.DefaultSettings()

	defaults := map[string]any{
		"server.port":             8080,
		"server.read_timeout":     15 * time.Second,
		// SSE streams stay open; a short write timeout would cut them.
		"server.write_timeout":    time.Hour,
		"server.shutdown_timeout": 20 * time.Second,

		"database.url":               "",
		"database.max_conns":         20,
		"database.min_conns":         2,
		"database.statement_timeout": 30 * time.Second,

		"redis.addr":        "",
		"redis.password":    "",
		"redis.db":          0,
		"redis.catalog_ttl": 10 * time.Minute,

		"jwt.secret": "",
		"jwt.issuer": "pharmastock",
		"jwt.ttl":    12 * time.Hour,

		"log.level":       "info",
		"log.development": false,

		"inventory.auto_lot":         inv.AutoLot,
		"inventory.lot_with_cost":    inv.LotWithCost,
		"inventory.reference_prefix": inv.ReferencePrefix,
		"inventory.row_rule":         inv.RowRule,
		"inventory.edit_ttl":         inv.EditTTL,

		"outbox.interval":           2 * time.Second,
		"outbox.batch_size":         100,
		"outbox.max_retries":        5,
		"outbox.backoff":            time.Minute,
		"outbox.compress_threshold": 4096,
		"outbox.retention":          7 * 24 * time.Hour,

		"idempotency.ttl": 24 * time.Hour,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// Options locate the optional files.
type Options struct {
	// ConfigFile is an explicit TOML file. Empty searches ./config.toml and /etc/pharmastock.
	ConfigFile string
	// EnvFile is loaded into the environment when present. Empty means ".env".
	EnvFile string
}

// Load reads, merges and validates the configuration.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// Variables already set in the environment win over the file.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/pharmastock")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct tags and reports every failing field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = fmt.Sprintf("%s: failed %q", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag())
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
