package poller

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/radieske/provably-fair-dice/internal/dice/beacon"
)

// Simulator é uma chain local para ENV=local sem RPC: um slot a cada SlotTime,
// finalização atrasada FinalityLag slots e blockhash = sha256(genesis || slot LE).
// Não serve como fonte pública: o genesis é conhecido por quem roda o serviço.
type Simulator struct {
	Genesis     [32]byte
	Start       time.Time
	SlotTime    time.Duration
	FinalityLag uint64
	Now         func() time.Time
}

func NewSimulator(genesis string, slotTime time.Duration) *Simulator {
	return &Simulator{
		Genesis:     sha256.Sum256([]byte(genesis)),
		Start:       time.Now(),
		SlotTime:    slotTime,
		FinalityLag: 32,
		Now:         time.Now,
	}
}

func (s *Simulator) Slot(context.Context) (uint64, error) {
	elapsed := s.Now().Sub(s.Start)
	if elapsed < 0 {
		return 0, nil
	}
	return uint64(elapsed / s.SlotTime), nil
}

func (s *Simulator) FinalizedSlot(ctx context.Context) (uint64, error) {
	tip, _ := s.Slot(ctx)
	if tip < s.FinalityLag {
		return 0, nil
	}
	return tip - s.FinalityLag, nil
}

func (s *Simulator) Get(ctx context.Context, slot uint64) (beacon.Value, error) {
	fin, _ := s.FinalizedSlot(ctx)
	if slot > fin || fin == 0 {
		return beacon.Value{}, fmt.Errorf("%w: simulated slot %d not finalized", beacon.ErrUnavailable, slot)
	}
	buf := make([]byte, 0, 40)
	buf = append(buf, s.Genesis[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, slot)
	return beacon.Value(sha256.Sum256(buf)), nil
}
