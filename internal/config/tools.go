package config

// SearXNGConfig holds SearXNG service configuration for web search.
// An empty BaseURL disables web search; the tool then reports itself as
// unconfigured instead of failing the turn.
type SearXNGConfig struct {
	// BaseURL is the SearXNG instance URL (e.g., http://searxng:8080)
	BaseURL string `mapstructure:"base_url" json:"base_url"`
}

// WebFetchConfig holds configuration for the web page fetch tool.
type WebFetchConfig struct {
	// TimeoutMs is request timeout in milliseconds (default: 30000)
	TimeoutMs int `mapstructure:"timeout_ms" json:"timeout_ms"`
}
