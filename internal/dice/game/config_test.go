package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/provably-fair-dice/internal/dice/state"
	"github.com/radieske/provably-fair-dice/internal/shared/config"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("PROGRAM_ID", pubkey(10).String())
	t.Setenv("HOUSE_PUBKEY", pubkey(20).String())
	t.Setenv("HOUSE_EDGE_BPS", "200")
	t.Setenv("MIN_ROLL", "2")
	t.Setenv("MAX_ROLL", "96")

	cfg, err := ConfigFrom(config.Load())
	require.NoError(t, err)
	assert.Equal(t, pubkey(10), cfg.ProgramID)
	assert.Equal(t, pubkey(20), cfg.House)
	assert.Equal(t, uint16(200), cfg.HouseEdgeBps)
	assert.Equal(t, uint64(1000), cfg.RefundTimeoutSlots)
	assert.Equal(t, state.Limits{MinAmount: 1, MinRoll: 2, MaxRoll: 96}, cfg.Limits)
}

func TestConfigFromRejects(t *testing.T) {
	base := config.Config{
		ProgramID:          pubkey(10).String(),
		HousePubkey:        pubkey(20).String(),
		HouseEdgeBps:       150,
		RefundTimeoutSlots: 1000,
		MinRoll:            1,
		MaxRoll:            99,
		MinBetLamports:     1,
	}
	_, err := ConfigFrom(base)
	require.NoError(t, err)

	mutations := map[string]func(c *config.Config){
		"program":   func(c *config.Config) { c.ProgramID = "" },
		"house":     func(c *config.Config) { c.HousePubkey = "not-base58-0OIl" },
		"edge":      func(c *config.Config) { c.HouseEdgeBps = 10_000 },
		"timeout":   func(c *config.Config) { c.RefundTimeoutSlots = 0 },
		"roll low":  func(c *config.Config) { c.MinRoll = 0 },
		"roll high": func(c *config.Config) { c.MaxRoll = 100 },
		"inverted":  func(c *config.Config) { c.MinRoll, c.MaxRoll = 60, 40 },
		"min bet":   func(c *config.Config) { c.MinBetLamports = 0 },
	}
	for name, mutate := range mutations {
		c := base
		mutate(&c)
		_, err := ConfigFrom(c)
		assert.Error(t, err, name)
	}
}
