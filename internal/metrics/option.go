package metrics

import "os"

// Provider selects a metrics export backend.
type Provider string

const (
	PrometheusProvider Provider = "prometheus"
	OTLPCollector      Provider = "otlpCollector"
)

// Config accumulates meter provider options.
type Config struct {
	ServiceName string
	Provider    []ProviderCfg
}

// ProviderCfg configures one export backend.
type ProviderCfg struct {
	Provider Provider
	Endpoint string
	Headers  map[string]string
	Insecure bool
}

// NewOTLPCollectorConfig builds an OTLP gRPC backend config.
func NewOTLPCollectorConfig(endpoint string, headers map[string]string, insecure bool) ProviderCfg {
	return ProviderCfg{
		Provider: OTLPCollector,
		Endpoint: endpoint,
		Headers:  headers,
		Insecure: insecure,
	}
}

// NewOTLPCollectorConfigFromEnv builds an OTLP gRPC backend config
// from the standard OTEL_EXPORTER_OTLP_ENDPOINT variable.
func NewOTLPCollectorConfigFromEnv() ProviderCfg {
	return ProviderCfg{
		Provider: OTLPCollector,
		Endpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
}

// OptionFn configures the meter provider.
type OptionFn func(config Config) Config

// WithServiceName sets the resource service name.
func WithServiceName(serviceName string) OptionFn {
	return func(config Config) Config {
		config.ServiceName = serviceName
		return config
	}
}

// WithProviderConfig adds an export backend.
func WithProviderConfig(provider ProviderCfg) OptionFn {
	return func(config Config) Config {
		config.Provider = append(config.Provider, provider)
		return config
	}
}

// PromServerConfig configures the Prometheus scrape endpoint.
type PromServerConfig struct {
	port string
}

// PromOptionFn configures the Prometheus scrape endpoint.
type PromOptionFn func(config PromServerConfig) PromServerConfig

// WithPort sets the scrape endpoint port.
func WithPort(port string) PromOptionFn {
	return func(config PromServerConfig) PromServerConfig {
		config.port = port
		return config
	}
}
