package observability

import (
	"testing"
	"time"

	"github.com/smallbiznis/bluemoon/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigSQLLogging(t *testing.T) {
	t.Setenv("DEPLOYMENT_ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("SQL_LOG_LEVEL", "")
	t.Setenv("SQL_SLOW_QUERY_MS", "")

	dev := LoadConfig(config.Config{Environment: "development"})
	assert.Equal(t, "info", dev.SQLLogLevel)
	assert.Equal(t, 200*time.Millisecond, dev.SlowQueryTime)
	assert.True(t, dev.Debug())

	prod := LoadConfig(config.Config{Environment: "production"})
	assert.Equal(t, "warn", prod.SQLLogLevel)
	assert.False(t, prod.Debug())

	t.Setenv("SQL_LOG_LEVEL", "ERROR")
	t.Setenv("SQL_SLOW_QUERY_MS", "50")
	tuned := LoadConfig(config.Config{Environment: "production"})
	assert.Equal(t, "error", tuned.SQLLogLevel)
	assert.Equal(t, 50*time.Millisecond, tuned.SlowQueryTime)
}

func TestLoadConfigDefaultsServiceName(t *testing.T) {
	cfg := LoadConfig(config.Config{})
	assert.Equal(t, "bluemoon", cfg.ServiceName)
}
