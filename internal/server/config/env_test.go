package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv_OverlaysSetVariables(t *testing.T) {
	t.Setenv("LINKKEEPER_HTTP_ADDR", ":9999")
	t.Setenv("LINKKEEPER_EXTERNAL_TIMEOUT", "1500ms")
	t.Setenv("LINKKEEPER_REFRESH_CONCURRENCY", "2")
	t.Setenv("LINKKEEPER_TELEGRAM_API_ID", "12345")

	c := &Config{}
	c.LoadDefaults()
	parseEnv(c)

	assert.Equal(t, ":9999", c.HTTPAddr)
	assert.Equal(t, 1500*time.Millisecond, c.ExternalTimeout)
	assert.Equal(t, 2, c.RefreshConcurrency)
	assert.Equal(t, 12345, c.TelegramAPIID)
	assert.Equal(t, "sessions", c.MaterialDir, "unset variables keep defaults")
}

func TestParseEnv_InvalidValuePanics(t *testing.T) {
	t.Setenv("LINKKEEPER_REFRESH_CONCURRENCY", "many")

	c := &Config{}
	require.Panics(t, func() { parseEnv(c) })
}
