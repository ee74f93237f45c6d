package poller

import (
	"context"

	"github.com/radieske/provably-fair-dice/internal/dice/beacon"
)

// MemorySink publica no beacon.Memory do próprio processo (dice-service com BEACON_SOURCE=memory)
type MemorySink struct{ Beacons *beacon.Memory }

func (s MemorySink) Put(_ context.Context, slot uint64, v beacon.Value) error {
	s.Beacons.Put(slot, v)
	return nil
}

func (s MemorySink) SetTip(_ context.Context, slot uint64) error {
	s.Beacons.SetTip(slot)
	return nil
}
