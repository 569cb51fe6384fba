// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/fd1az/book-aggregator/internal/apperror"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Book      BookConfig      `mapstructure:"book"`
	Venues    VenuesConfig    `mapstructure:"venues"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// BookConfig holds the aggregated orderbook settings.
type BookConfig struct {
	Symbol    string   `mapstructure:"symbol"`    // venue-accepted lowercase pair, e.g. "ethbtc"
	MaxDepth  int      `mapstructure:"max_depth"` // per-side cap on the merged view
	Exchanges []string `mapstructure:"exchanges"` // venue names, case-insensitive
}

// VenuesConfig holds per-venue endpoint overrides. Empty values fall back
// to the production endpoints.
type VenuesConfig struct {
	BinanceWSURL   string        `mapstructure:"binance_ws_url"`
	BitstampWSURL  string        `mapstructure:"bitstamp_ws_url"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// ServerConfig holds the gRPC server settings.
type ServerConfig struct {
	Port       int `mapstructure:"port"`        // gRPC listen port, binds [::]:port
	HealthPort int `mapstructure:"health_port"` // HTTP health endpoint port
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("BOOK")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars and flags
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "BOOK_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "BOOK_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "BOOK_LOG_LEVEL", "LOG_LEVEL")

	// Book
	v.BindEnv("book.symbol", "BOOK_SYMBOL")
	v.BindEnv("book.max_depth", "BOOK_MAX_DEPTH")
	v.BindEnv("book.exchanges", "BOOK_EXCHANGES")

	// Venues
	v.BindEnv("venues.binance_ws_url", "BOOK_BINANCE_WS_URL", "BINANCE_WS_URL")
	v.BindEnv("venues.bitstamp_ws_url", "BOOK_BITSTAMP_WS_URL", "BITSTAMP_WS_URL")

	// Server
	v.BindEnv("server.port", "BOOK_PORT")
	v.BindEnv("server.health_port", "BOOK_HEALTH_PORT")

	// Telemetry
	v.BindEnv("telemetry.enabled", "BOOK_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "BOOK_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "BOOK_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "book-aggregator")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Book defaults
	v.SetDefault("book.exchanges", []string{"binance", "bitstamp"})

	// Venue defaults
	v.SetDefault("venues.connect_timeout", "10s")

	// Server defaults
	v.SetDefault("server.health_port", 8081)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "book-aggregator")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Book.Symbol == "" {
		return apperror.New(apperror.CodeRequiredField,
			apperror.WithContext("book.symbol"))
	}
	if c.Book.MaxDepth <= 0 {
		return apperror.New(apperror.CodeDepthNotPositive)
	}
	if len(c.Book.Exchanges) == 0 {
		return apperror.New(apperror.CodeRequiredField,
			apperror.WithContext("book.exchanges"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext(fmt.Sprintf("server.port %d", c.Server.Port)))
	}
	return nil
}

// ParseExchangeList splits a comma-separated venue list, trimming blanks.
func ParseExchangeList(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
