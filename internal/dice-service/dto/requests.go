package dto

import "github.com/radieske/provably-fair-dice/internal/dice/state"

type DepositRequest struct {
	Amount uint64 `json:"amount"`
}

type InitializeRequest struct {
	Amount uint64 `json:"amount"` // lamports que a casa deposita no vault
}

type PlaceBetRequest struct {
	Player state.Pubkey  `json:"player"` // base58
	Seed   state.Uint128 `json:"seed"`   // u128 em decimal, string
	Amount uint64        `json:"amount"`
	Roll   uint8         `json:"roll"` // ganha se o número sorteado for menor que roll
}

// VerifyRequest: qualquer terceiro recalcula o resultado com dados públicos
type VerifyRequest struct {
	Record     string `json:"record"` // hex: 66 bytes codificados ou conta de 74 bytes
	BeaconSlot uint64 `json:"beacon_slot"`
	Beacon     string `json:"beacon"` // hex, 32 bytes
}
