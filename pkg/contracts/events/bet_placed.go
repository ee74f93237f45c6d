package events

// Evento publicado no tópico "bet_placed" quando o registro da aposta é criado.
// O resolver-worker consome e resolve assim que o beacon de beacon_slot existir.
type BetPlaced struct {
	Address    string `json:"address"` // endereço derivado do registro (base58)
	Player     string `json:"player"`
	Seed       string `json:"seed"` // u128 em decimal
	Slot       uint64 `json:"slot"`
	BeaconSlot uint64 `json:"beacon_slot"`
	Amount     uint64 `json:"amount"`
	Roll       uint8  `json:"roll"`
	TsUnixMs   int64  `json:"ts_unix_ms"`
}
