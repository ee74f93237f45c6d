package dto

import (
	"encoding/hex"
	"time"

	"github.com/radieske/provably-fair-dice/internal/dice/fairness"
	"github.com/radieske/provably-fair-dice/internal/dice/ledger"
	"github.com/radieske/provably-fair-dice/internal/dice/state"
)

type BalanceResponse struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
}

type BetResponse struct {
	Address    string `json:"address"`
	Player     string `json:"player"`
	Seed       string `json:"seed"`
	Slot       uint64 `json:"slot"`
	BeaconSlot uint64 `json:"beacon_slot"`
	Amount     uint64 `json:"amount"`
	Roll       uint8  `json:"roll"`
	Bump       uint8  `json:"bump"`
	Record     string `json:"record"` // hex da conta (discriminator + 66 bytes)
	Rent       uint64 `json:"rent,omitempty"`
}

func NewBetResponse(addr state.Pubkey, b *state.Bet) BetResponse {
	return BetResponse{
		Address:    addr.String(),
		Player:     b.Player.String(),
		Seed:       b.Seed.String(),
		Slot:       b.Slot,
		BeaconSlot: b.BeaconSlot(),
		Amount:     b.Amount,
		Roll:       b.Roll,
		Bump:       b.Bump,
		Record:     hex.EncodeToString(b.MarshalAccount()),
	}
}

type OutcomeResponse struct {
	Address    string `json:"address,omitempty"`
	Player     string `json:"player"`
	Roll       uint8  `json:"roll"`
	Outcome    uint8  `json:"outcome"`
	Win        bool   `json:"win"`
	Amount     uint64 `json:"amount"`
	Payout     uint64 `json:"payout"`
	BeaconSlot uint64 `json:"beacon_slot"`
	Beacon     string `json:"beacon"`
	Event      string `json:"event"` // hex: discriminator || payload
}

func NewOutcomeResponse(b *state.Bet, o fairness.Outcome) OutcomeResponse {
	return OutcomeResponse{
		Player:     b.Player.String(),
		Roll:       b.Roll,
		Outcome:    o.Outcome,
		Win:        o.Win,
		Amount:     b.Amount,
		Payout:     o.Payout,
		BeaconSlot: o.BeaconSlot,
		Beacon:     o.Beacon.String(),
		Event:      hex.EncodeToString(o.Event().LogData()),
	}
}

type EventResponse struct {
	Bet       uint8  `json:"bet"`
	Data      string `json:"data"`
	CreatedAt string `json:"created_at"`
}

func NewEventResponses(entries []ledger.LogEntry) []EventResponse {
	out := make([]EventResponse, 0, len(entries))
	for _, e := range entries {
		ev, err := state.DecodeBetEvent(e.Data)
		if err != nil {
			continue // outros tipos de log
		}
		out = append(out, EventResponse{
			Bet:       ev.Bet,
			Data:      hex.EncodeToString(e.Data),
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}
