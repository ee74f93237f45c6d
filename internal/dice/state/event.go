package state

import (
	"bytes"
	"fmt"
)

// EventDiscriminator prefixa o payload no log de eventos: sha256("event:BetEvent")[:8]
var EventDiscriminator = discriminator("event:BetEvent")

// BetEvent é emitido uma única vez por aposta resolvida.
// Bet carrega o número sorteado em [0, 99].
type BetEvent struct {
	Bet uint8 `json:"bet"`
}

// Payload é o corpo do evento: [1 byte bet]
func (e BetEvent) Payload() []byte { return []byte{e.Bet} }

// LogData é a entrada gravada no log append-only (tag + payload)
func (e BetEvent) LogData() []byte {
	out := make([]byte, 0, DiscriminatorLen+1)
	out = append(out, EventDiscriminator[:]...)
	return append(out, e.Bet)
}

func DecodeBetEvent(data []byte) (BetEvent, error) {
	if len(data) != DiscriminatorLen+1 || !bytes.Equal(data[:DiscriminatorLen], EventDiscriminator[:]) {
		return BetEvent{}, fmt.Errorf("%w: bad event log entry (%d bytes)", ErrCorruptRecord, len(data))
	}
	return BetEvent{Bet: data[DiscriminatorLen]}, nil
}
