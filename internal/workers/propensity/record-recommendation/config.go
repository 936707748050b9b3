// internal/workers/propensity/record-recommendation/config.go
package recordrecommendation

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
