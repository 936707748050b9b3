package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
artifacts:
  bundle_path: configs/artifacts/bundle.yaml
workers:
  score-product-propensity:
    enabled: true
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Ranking.TopN)
	assert.Equal(t, "mitraguna", cfg.Ranking.PayrollProduct)
	assert.Equal(t, 15*time.Minute, cfg.Cache.CacheTTL())
	assert.Equal(t, "propensity:score:", cfg.Cache.KeyPrefix)
	assert.Equal(t, "product-recommendations", cfg.Search.RecommendationIndex)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)

	wc := GetWorkerConfig(cfg, "score-product-propensity")
	assert.True(t, wc.Enabled)
	assert.Equal(t, 5, wc.MaxJobsActive)
	assert.Equal(t, 30*time.Second, GetDuration(wc.Timeout))
	assert.Equal(t, 3, wc.MaxRetries)
}

func TestLoadFromFile_EnvironmentExpansion(t *testing.T) {
	t.Setenv("TEST_BUNDLE_DIR", "/opt/models")
	t.Setenv("DB_PASSWORD", "s3cret")

	path := writeConfig(t, `
artifacts:
  bundle_path: ${TEST_BUNDLE_DIR}/bundle.yaml
database:
  postgres:
    password: ${UNSET_PASSWORD_VARIABLE}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/models/bundle.yaml", cfg.Artifacts.BundlePath)
	assert.Equal(t, "s3cret", cfg.Database.Postgres.Password)
}

func TestLoadFromFile_Errors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadFromFile(writeConfig(t, "ranking:\n  top_n: 5\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "artifacts.bundle_path is required")
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{
			Camunda:   CamundaConfig{BrokerAddress: "localhost:26500"},
			Artifacts: ArtifactsConfig{BundlePath: "bundle.yaml"},
			Workers: map[string]WorkerConfig{
				"score-product-propensity": {Enabled: true},
				"record-recommendation":    {Enabled: true},
				"index-recommendation":     {Enabled: true},
				"notify-recommendation":    {Enabled: true},
			},
			Database: DatabaseConfig{
				Postgres:      PostgresConfig{Host: "db", Database: "propensity", User: "app"},
				Elasticsearch: ElasticsearchConfig{Addresses: []string{"http://es:9200"}},
				Redis:         RedisConfig{Address: "redis:6379"},
			},
			Cache:         CacheConfig{Enabled: true},
			Notifications: NotificationConfig{TopicARN: "arn:aws:sns:x:1:t"},
		}
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"no broker", func(c *Config) { c.Camunda.BrokerAddress = "" }, "camunda.broker_address"},
		{"no postgres host", func(c *Config) { c.Database.Postgres.Host = "" }, "database.postgres.host"},
		{"record disabled needs no postgres", func(c *Config) {
			c.Database.Postgres = PostgresConfig{}
			c.Workers["record-recommendation"] = WorkerConfig{Enabled: false}
		}, ""},
		{"no es addresses", func(c *Config) { c.Database.Elasticsearch.Addresses = nil }, "database.elasticsearch.addresses"},
		{"cache without redis", func(c *Config) { c.Database.Redis.Address = "" }, "database.redis.address"},
		{"cache off without redis", func(c *Config) {
			c.Cache.Enabled = false
			c.Database.Redis.Address = ""
		}, ""},
		{"no topic", func(c *Config) { c.Notifications.TopicARN = "" }, "notifications.topic_arn"},
		{"email without addresses", func(c *Config) { c.Notifications.EmailEnabled = true }, "from_email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIsWorkerEnabled(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{"a": {Enabled: true}, "b": {}}}
	assert.True(t, IsWorkerEnabled(cfg, "a"))
	assert.False(t, IsWorkerEnabled(cfg, "b"))
	assert.False(t, IsWorkerEnabled(cfg, "missing"))
	assert.False(t, GetWorkerConfig(cfg, "missing").Enabled)
}
