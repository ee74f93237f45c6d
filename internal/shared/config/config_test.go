package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadPortsPerService(t *testing.T) {
	t.Setenv("SERVICE_NAME", "resolver-worker")
	cfg := Load()
	assert.Equal(t, "", cfg.HTTPPort)
	assert.Equal(t, "9097", cfg.MetricsPort)

	t.Setenv("SERVICE_NAME", "dice-service")
	t.Setenv("HTTP_PORT_DICE", "18080")
	cfg = Load()
	assert.Equal(t, "18080", cfg.HTTPPort)
	assert.Equal(t, "9095", cfg.MetricsPort)
}

func TestLoadGameDefaults(t *testing.T) {
	t.Setenv("HOUSE_EDGE_BPS", "not-a-number")
	t.Setenv("REFUND_TIMEOUT_SLOTS", "500")
	cfg := Load()
	assert.Equal(t, 150, cfg.HouseEdgeBps)
	assert.Equal(t, 500, cfg.RefundTimeoutSlots)
	assert.Equal(t, 1, cfg.MinRoll)
	assert.Equal(t, 99, cfg.MaxRoll)
	assert.Equal(t, "bet_placed", cfg.TopicBetPlaced)
	assert.Equal(t, "bet_placed_dlq", cfg.TopicBetPlacedDLQ)
}
