package observability

import (
	"testing"

	"github.com/smallbiznis/paybridge/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDevelopmentDefaults(t *testing.T) {
	cfg := LoadConfig(config.Config{Environment: "development", AppVersion: "1.2.3"})

	assert.Equal(t, "paybridge", cfg.ServiceName)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, 1.0, cfg.OtelSamplingRatio)
	assert.False(t, cfg.OtelEnabled)
	assert.True(t, cfg.Debug())
	assert.Equal(t, "1.2.3", cfg.Version)
}

func TestLoadConfigProductionWithCollector(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "HTTP")
	t.Setenv("OTEL_SAMPLING_RATIO", "3")

	cfg := LoadConfig(config.Config{AppName: "bridge", Environment: "production", OTLPEndpoint: "otel:4317"})

	assert.Equal(t, "bridge", cfg.ServiceName)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
	assert.Equal(t, 0.1, cfg.OtelSamplingRatio)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigExplicitDisable(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "off")

	cfg := LoadConfig(config.Config{Environment: "production", OTLPEndpoint: "otel:4317"})
	assert.False(t, cfg.OtelEnabled)
}
