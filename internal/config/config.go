package config

// Config holds all configuration for the joist worker service.
type Config struct {
	// APIPort is the port the worker pool API server listens on
	APIPort int

	// LogLevel is the logging level (debug, info, warn, error)
	LogLevel string

	// MinWorkerVersion is the minimum SDK version a worker may report when
	// registering with the pool. Empty disables the check.
	MinWorkerVersion string

	// DescriptorCacheSize is the number of parsed bundle descriptors the
	// pool keeps in its LRU cache
	DescriptorCacheSize int

	// MaxBundleParallelism caps the number of stages the direct runner
	// executes concurrently
	MaxBundleParallelism int

	// TracingEnabled indicates whether OpenTelemetry tracing is enabled
	TracingEnabled bool

	// TracingEndpoint is the OTLP gRPC endpoint for trace export
	TracingEndpoint string

	// TracingTLSCAPath is the path to the CA certificate for TLS verification
	TracingTLSCAPath string
}

// Default values applied by LoadConfig when fields are unset.
const (
	DefaultAPIPort              = 8099
	DefaultDescriptorCacheSize  = 128
	DefaultMaxBundleParallelism = 4
)

// LoadConfig creates a Config with the provided values
func LoadConfig(apiPort int, logLevel, minWorkerVersion string, descriptorCacheSize, maxBundleParallelism int, tracingEnabled bool, tracingEndpoint, tracingTLSCAPath string) *Config {
	cfg := &Config{
		APIPort:              apiPort,
		LogLevel:             logLevel,
		MinWorkerVersion:     minWorkerVersion,
		DescriptorCacheSize:  descriptorCacheSize,
		MaxBundleParallelism: maxBundleParallelism,
		TracingEnabled:       tracingEnabled,
		TracingEndpoint:      tracingEndpoint,
		TracingTLSCAPath:     tracingTLSCAPath,
	}

	if cfg.APIPort == 0 {
		cfg.APIPort = DefaultAPIPort
	}
	if cfg.DescriptorCacheSize == 0 {
		cfg.DescriptorCacheSize = DefaultDescriptorCacheSize
	}
	if cfg.MaxBundleParallelism == 0 {
		cfg.MaxBundleParallelism = DefaultMaxBundleParallelism
	}

	return cfg
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.APIPort < 1 || c.APIPort > 65535 {
		return NewConfigError("APIPort must be between 1 and 65535")
	}

	if c.DescriptorCacheSize < 1 {
		return NewConfigError("DescriptorCacheSize must be at least 1")
	}

	if c.MaxBundleParallelism < 1 {
		return NewConfigError("MaxBundleParallelism must be at least 1")
	}

	if c.TracingEnabled && c.TracingEndpoint == "" {
		return NewConfigError("TracingEndpoint must be set when tracing is enabled")
	}

	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	message string
}

// NewConfigError creates a new configuration error
func NewConfigError(message string) *ConfigError {
	return &ConfigError{message: message}
}

// Error returns the error message
func (e *ConfigError) Error() string {
	return e.message
}
