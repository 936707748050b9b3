// internal/workers/propensity/score-product-propensity/config.go
package scoreproductpropensity

import "time"

type Config struct {
	Timeout      time.Duration
	CacheEnabled bool
	CacheTTL     time.Duration
	KeyPrefix    string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      30 * time.Second,
		CacheEnabled: true,
		CacheTTL:     15 * time.Minute,
		KeyPrefix:    "propensity:score:",
	}
}
