// Package telemetry sets up OpenTelemetry tracing and metrics for the connector.
// Spans and metrics go to an OTLP collector; metrics can also be kept in a
// Prometheus registry, scraped from the schedule command or pushed to a
// Pushgateway when a one-shot sync exits.
package telemetry

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"os"
)

const (
	// DefaultServiceName identifies the connector in traces and metrics
	DefaultServiceName = "zoom-connector"

	// DefaultEndpoint is the OTLP/HTTP collector address
	DefaultEndpoint = "localhost:4318"

	// DefaultSampling keeps every run. A run is a single trace and runs are rare.
	DefaultSampling = 1.0

	unknownVersion = "unknown"
)

// Config is the telemetry section of the connector configuration
type Config struct {
	// Enabled switches telemetry on. Nothing is exported when false.
	Enabled bool `yaml:"enabled"`

	ServiceName    string `yaml:"serviceName,omitempty"`
	ServiceVersion string `yaml:"serviceVersion,omitempty"`

	// Endpoint is the collector "host:port"; /v1/traces and /v1/metrics are appended.
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure talks plain HTTP to the collector
	Insecure bool `yaml:"insecure,omitempty"`

	// Headers are sent with every export request. Values may reference
	// environment variables as $NAME or ${NAME}, keeping collector keys out of the file.
	Headers map[string]string `yaml:"headers,omitempty"`

	Tracing *TracingConfig `yaml:"tracing,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
}

// TracingConfig controls run spans
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Sampling is the ratio of runs traced, in (0, 1]. Zero means DefaultSampling.
	Sampling float64 `yaml:"sampling,omitempty"`
}

// MetricsConfig controls run, document and API call metrics
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Prometheus also registers the instruments in a Prometheus registry,
	// served on /metrics by the schedule command.
	Prometheus bool `yaml:"prometheus,omitempty"`

	// PushgatewayURL receives the registry when a one-shot command exits. Implies Prometheus.
	PushgatewayURL string `yaml:"pushgatewayUrl,omitempty"`
}

// Collector is where OTLP exporters send their data
type Collector struct {
	Endpoint string
	Insecure bool
	Headers  map[string]string
}

// PrometheusEnabled reports whether a Prometheus registry is needed
func (c *MetricsConfig) PrometheusEnabled() bool {
	return c != nil && c.Enabled && (c.Prometheus || c.PushgatewayURL != "")
}

// GetServiceName returns the service name or DefaultServiceName
func (c *Config) GetServiceName() string {
	if c.ServiceName == "" {
		return DefaultServiceName
	}
	return c.ServiceName
}

// GetServiceVersion returns the service version or "unknown"
func (c *Config) GetServiceVersion() string {
	if c.ServiceVersion == "" {
		return unknownVersion
	}
	return c.ServiceVersion
}

// GetEndpoint returns the collector endpoint or DefaultEndpoint
func (c *Config) GetEndpoint() string {
	if c.Endpoint == "" {
		return DefaultEndpoint
	}
	return c.Endpoint
}

// GetInsecure returns the insecure flag
func (c *Config) GetInsecure() bool {
	return c.Insecure
}

// GetHeaders returns the export headers with environment references expanded.
func (c *Config) GetHeaders() map[string]string {
	if len(c.Headers) == 0 {
		return nil
	}
	out := maps.Clone(c.Headers)
	for k, v := range out {
		out[k] = os.ExpandEnv(v)
	}
	return out
}

// Collector returns the export destination shared by traces and metrics
func (c *Config) Collector() Collector {
	return Collector{
		Endpoint: c.GetEndpoint(),
		Insecure: c.GetInsecure(),
		Headers:  c.GetHeaders(),
	}
}

// GetSampling returns the sampling ratio. Zero cannot be told apart from an
// unset value, so it maps to DefaultSampling; tracing off is Enabled: false.
func (c *TracingConfig) GetSampling() float64 {
	if c.Sampling == 0 {
		return DefaultSampling
	}
	return c.Sampling
}

// Validate checks an enabled configuration. Nil and disabled configurations are valid.
func (c *Config) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	var errs []error
	for k := range c.Headers {
		if k == "" {
			errs = append(errs, errors.New("headers: empty header name"))
		}
	}
	if err := c.Tracing.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}
	if err := c.Metrics.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("metrics: %w", err))
	}
	return errors.Join(errs...)
}

// Validate checks the sampling ratio
func (c *TracingConfig) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}
	if c.Sampling < 0 || c.Sampling > 1 {
		return fmt.Errorf("sampling must be between 0.0 and 1.0, got %f", c.Sampling)
	}
	return nil
}

// Validate checks the Pushgateway URL
func (c *MetricsConfig) Validate() error {
	if c == nil || !c.Enabled || c.PushgatewayURL == "" {
		return nil
	}
	u, err := url.Parse(c.PushgatewayURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("pushgatewayUrl must be an absolute URL, got %q", c.PushgatewayURL)
	}
	return nil
}
