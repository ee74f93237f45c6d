package events

import "time"

// Evento emitido uma única vez após a resolução confirmada de uma aposta.
// Consumidores devem deduplicar por Address (entrega at-most-once, mas pode haver replay manual).
type BetResolved struct {
	Address    string    `json:"address"`
	Player     string    `json:"player"`
	Seed       string    `json:"seed"`
	Slot       uint64    `json:"slot"`
	BeaconSlot uint64    `json:"beacon_slot"`
	Beacon     string    `json:"beacon"` // hex
	Roll       uint8     `json:"roll"`
	Outcome    uint8     `json:"outcome"`
	Win        bool      `json:"win"`
	Amount     uint64    `json:"amount"`
	Payout     uint64    `json:"payout"`
	Event      []byte    `json:"event"` // discriminator || payload (base64 em JSON)
	Ts         time.Time `json:"ts"`
}

// Evento emitido quando a aposta expira sem resolução e o stake é devolvido.
type BetRefunded struct {
	Address string    `json:"address"`
	Player  string    `json:"player"`
	Amount  uint64    `json:"amount"`
	Slot    uint64    `json:"slot"`
	Ts      time.Time `json:"ts"`
}
