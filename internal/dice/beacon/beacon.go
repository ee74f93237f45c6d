package beacon

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrUnavailable: o beacon do slot ainda não existe; a chamada pode ser repetida depois
	ErrUnavailable = errors.New("beacon not yet available")
	// ErrStaleTip: o tip gravado é antigo demais para servir de slot de colocação
	ErrStaleTip = errors.New("tip slot is stale")
)

// Value é o valor público e imprevisível associado a um slot
type Value [32]byte

func (v Value) String() string { return hex.EncodeToString(v[:]) }

func ParseValue(s string) (Value, error) {
	var v Value
	b, err := hex.DecodeString(s)
	if err != nil {
		return v, fmt.Errorf("beacon value: %w", err)
	}
	if len(b) != len(v) {
		return v, fmt.Errorf("beacon value: want %d bytes, got %d", len(v), len(b))
	}
	copy(v[:], b)
	return v, nil
}

// Beacon entrega o valor de um slot ou ErrUnavailable.
// Implementações nunca devem substituir por outra fonte de aleatoriedade.
type Beacon interface {
	Get(ctx context.Context, slot uint64) (Value, error)
}

// Clock informa o slot atual da chain (usado como slot de colocação)
type Clock interface {
	Slot(ctx context.Context) (uint64, error)
}

// Memory guarda beacons em memória (testes e ambiente local)
type Memory struct {
	mu     sync.RWMutex
	values map[uint64]Value
	tip    uint64
}

func NewMemory() *Memory { return &Memory{values: make(map[uint64]Value)} }

func (m *Memory) Put(slot uint64, v Value) {
	m.mu.Lock()
	m.values[slot] = v
	if slot > m.tip {
		m.tip = slot
	}
	m.mu.Unlock()
}

// SetTip move o slot corrente sem publicar beacon
func (m *Memory) SetTip(slot uint64) {
	m.mu.Lock()
	m.tip = slot
	m.mu.Unlock()
}

func (m *Memory) Get(_ context.Context, slot uint64) (Value, error) {
	m.mu.RLock()
	v, ok := m.values[slot]
	m.mu.RUnlock()
	if !ok {
		return Value{}, fmt.Errorf("%w: slot %d", ErrUnavailable, slot)
	}
	return v, nil
}

func (m *Memory) Slot(context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tip, nil
}
