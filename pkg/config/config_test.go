package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTOML = `
service_name = "aml-test"

[http]
port = 9090

[database]
driver = "postgres"
dsn = "host=localhost user=aml dbname=aml"

[monitoring]
structuring_threshold = 15000
rapid_movement_threshold = 7

[screening]
match_threshold = 0.85
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesFileAndDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, "aml-test", cfg.ServiceName)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, 50051, cfg.GRPC.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 15000.0, cfg.Monitoring.StructuringThreshold)
	assert.Equal(t, 7, cfg.Monitoring.RapidMovementThreshold)
	assert.Equal(t, 30*24*time.Hour, cfg.Monitoring.PatternLookback())
	assert.Equal(t, 24*time.Hour, cfg.Monitoring.RapidMovementWindow())
	assert.Equal(t, 0.85, cfg.Screening.MatchThreshold)
	assert.Equal(t, 75, cfg.Monitoring.HighRiskThreshold)
	assert.Equal(t, "aml.transactions", cfg.Kafka.Topics.Transactions)
	assert.Equal(t, "dev", cfg.Environment)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("APP_HTTP_PORT", "7070")
	t.Setenv("APP_GOAML_USERNAME", "reporter")

	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.HTTP.Port)
	assert.Equal(t, "reporter", cfg.GoAML.Username)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestLoadWithDefaultsRequiresDSN(t *testing.T) {
	_, err := LoadWithDefaults(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)

	t.Setenv("APP_DATABASE_DSN", "aml:aml@tcp(localhost:3306)/aml")
	cfg, err := LoadWithDefaults(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 0.8, cfg.Screening.MatchThreshold)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			ServiceName: "aml",
			HTTP:        HTTPConfig{Port: 8080},
			GRPC:        GRPCConfig{Port: 50051},
			Database:    DatabaseConfig{Driver: "mysql", DSN: "dsn"},
			Screening:   ScreeningConfig{MatchThreshold: 0.8},
			Monitoring:  MonitoringConfig{StructuringThreshold: 10000, HighRiskThreshold: 75, MediumRiskThreshold: 50},
		}
	}

	require.NoError(t, valid().Validate())

	c := valid()
	c.Database.Driver = "sqlite"
	assert.Error(t, c.Validate())

	c = valid()
	c.Screening.MatchThreshold = 1.5
	assert.Error(t, c.Validate())

	c = valid()
	c.Monitoring.MediumRiskThreshold = 90
	assert.Error(t, c.Validate())

	c = valid()
	c.HTTP.Port = 0
	assert.Error(t, c.Validate())
}
