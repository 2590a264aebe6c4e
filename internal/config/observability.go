package config

// OTLPConfig holds OpenTelemetry trace export configuration.
// Traces are exported over OTLP/HTTP to the configured endpoint.
type OTLPConfig struct {
	// Enabled turns trace export on. Default: false (no-op tracer).
	Enabled bool `mapstructure:"enabled" json:"enabled"`

	// Endpoint is the OTLP/HTTP collector endpoint (host:port, no scheme).
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`

	// Environment tags every span (e.g. "dev", "prod").
	Environment string `mapstructure:"environment" json:"environment"`

	// ServiceName identifies this service in traces.
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}
