package ledger

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/radieske/provably-fair-dice/internal/dice/state"
)

type memAccount struct {
	lamports uint64
	data     []byte
}

// Memory é o ledger em processo usado em testes e no ENV=local.
// Atomic serializa todas as transações e só publica o snapshot se fn retornar nil.
type Memory struct {
	mu       sync.Mutex
	accounts map[state.Pubkey]memAccount
	logs     []LogEntry
}

func NewMemory() *Memory {
	return &Memory{accounts: make(map[state.Pubkey]memAccount)}
}

func (m *Memory) Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{
		accounts: make(map[state.Pubkey]memAccount, len(m.accounts)),
		logs:     append([]LogEntry(nil), m.logs...),
	}
	for k, v := range m.accounts {
		tx.accounts[k] = v
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.accounts = tx.accounts
	m.logs = tx.logs
	return nil
}

// Logs retorna as entradas gravadas para addr
func (m *Memory) Logs(_ context.Context, addr state.Pubkey) ([]LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []LogEntry
	for _, l := range m.logs {
		if l.Address == addr {
			out = append(out, l)
		}
	}
	return out, nil
}

type memTx struct {
	accounts map[state.Pubkey]memAccount
	logs     []LogEntry
}

func (t *memTx) Balance(_ context.Context, addr state.Pubkey) (uint64, error) {
	return t.accounts[addr].lamports, nil
}

func (t *memTx) credit(addr state.Pubkey, amount uint64) error {
	acc := t.accounts[addr]
	if acc.lamports > math.MaxUint64-amount {
		return fmt.Errorf("%w: %s", ErrBalanceOverflow, addr)
	}
	acc.lamports += amount
	t.accounts[addr] = acc
	return nil
}

func (t *memTx) Deposit(_ context.Context, addr state.Pubkey, amount uint64, _ string) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	return t.credit(addr, amount)
}

func (t *memTx) Transfer(_ context.Context, from, to state.Pubkey, amount uint64, _ string) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if from == to {
		return ErrSameAccount
	}
	src := t.accounts[from]
	if src.lamports < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, from, src.lamports, amount)
	}
	if err := t.credit(to, amount); err != nil {
		return err
	}
	src.lamports -= amount
	t.accounts[from] = src
	return nil
}

func (t *memTx) CreateAccount(ctx context.Context, addr, payer state.Pubkey, data []byte) error {
	if acc, ok := t.accounts[addr]; ok && acc.data != nil {
		return fmt.Errorf("%w: %s", ErrAccountExists, addr)
	}
	if err := t.Transfer(ctx, payer, addr, RentExemptMinimum(len(data)), "rent"); err != nil {
		return err
	}
	acc := t.accounts[addr]
	acc.data = append([]byte(nil), data...)
	t.accounts[addr] = acc
	return nil
}

func (t *memTx) LoadAccount(_ context.Context, addr state.Pubkey) ([]byte, error) {
	acc, ok := t.accounts[addr]
	if !ok || acc.data == nil {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, addr)
	}
	return append([]byte(nil), acc.data...), nil
}

func (t *memTx) CloseAccount(ctx context.Context, addr, reclaimTo state.Pubkey) error {
	acc, ok := t.accounts[addr]
	if !ok || acc.data == nil {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, addr)
	}
	if acc.lamports > 0 {
		if err := t.Transfer(ctx, addr, reclaimTo, acc.lamports, "close"); err != nil {
			return err
		}
	}
	delete(t.accounts, addr)
	return nil
}

func (t *memTx) AppendLog(_ context.Context, addr state.Pubkey, data []byte) error {
	t.logs = append(t.logs, LogEntry{Address: addr, Data: append([]byte(nil), data...), CreatedAt: time.Now()})
	return nil
}
