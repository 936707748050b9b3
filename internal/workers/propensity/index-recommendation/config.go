// internal/workers/propensity/index-recommendation/config.go
package indexrecommendation

import "time"

type Config struct {
	IndexName string
	Timeout   time.Duration
}

func LoadConfig() *Config {
	return &Config{
		IndexName: "product-recommendations",
		Timeout:   10 * time.Second,
	}
}
