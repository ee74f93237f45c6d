package game

import (
	"fmt"

	"github.com/radieske/provably-fair-dice/internal/dice/state"
	"github.com/radieske/provably-fair-dice/internal/shared/config"
)

// ConfigFrom converte os parâmetros de ambiente para a configuração do jogo
func ConfigFrom(c config.Config) (Config, error) {
	program, err := state.ParsePubkey(c.ProgramID)
	if err != nil {
		return Config{}, fmt.Errorf("PROGRAM_ID: %w", err)
	}
	house, err := state.ParsePubkey(c.HousePubkey)
	if err != nil {
		return Config{}, fmt.Errorf("HOUSE_PUBKEY: %w", err)
	}
	if c.HouseEdgeBps < 0 || c.HouseEdgeBps >= 10_000 {
		return Config{}, fmt.Errorf("HOUSE_EDGE_BPS: %d out of range", c.HouseEdgeBps)
	}
	if c.RefundTimeoutSlots <= 0 {
		return Config{}, fmt.Errorf("REFUND_TIMEOUT_SLOTS: %d", c.RefundTimeoutSlots)
	}
	if c.MinRoll < 1 || c.MaxRoll > 99 || c.MinRoll > c.MaxRoll {
		return Config{}, fmt.Errorf("MIN_ROLL/MAX_ROLL: [%d, %d] not within [1, 99]", c.MinRoll, c.MaxRoll)
	}
	if c.MinBetLamports < 1 {
		return Config{}, fmt.Errorf("MIN_BET_LAMPORTS: %d", c.MinBetLamports)
	}
	return Config{
		ProgramID:          program,
		House:              house,
		HouseEdgeBps:       uint16(c.HouseEdgeBps),
		RefundTimeoutSlots: uint64(c.RefundTimeoutSlots),
		Limits: state.Limits{
			MinAmount: uint64(c.MinBetLamports),
			MinRoll:   uint8(c.MinRoll),
			MaxRoll:   uint8(c.MaxRoll),
		},
	}, nil
}
