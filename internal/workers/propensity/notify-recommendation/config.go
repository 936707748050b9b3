// internal/workers/propensity/notify-recommendation/config.go
package notifyrecommendation

import "time"

type Config struct {
	TopicARN     string
	EmailEnabled bool
	FromEmail    string
	RMEmail      string
	Timeout      time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
