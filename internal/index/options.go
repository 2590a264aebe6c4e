package index

import "time"

const (
	// DefaultTopK is the result count when WithTopK is not given.
	DefaultTopK = 5

	// MaxTopK caps the result count regardless of options.
	MaxTopK = 20
)

// SearchOption customizes a Search call.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK       int32
	documentID string
	timeout    time.Duration
}

// WithTopK sets the maximum number of results.
// Values outside [1, MaxTopK] are clamped.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		switch {
		case k < 1:
			c.topK = 1
		case k > MaxTopK:
			c.topK = MaxTopK
		default:
			c.topK = int32(k)
		}
	}
}

// WithDocumentID restricts results to a single document.
func WithDocumentID(id string) SearchOption {
	return func(c *searchConfig) {
		c.documentID = id
	}
}

// WithTimeout overrides the default search timeout.
func WithTimeout(d time.Duration) SearchOption {
	return func(c *searchConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func buildSearchConfig(opts []SearchOption) searchConfig {
	cfg := searchConfig{
		topK:    DefaultTopK,
		timeout: SearchTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
