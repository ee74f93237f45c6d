package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/radieske/provably-fair-dice/internal/dice/state"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrRecordNotFound    = errors.New("record not found")
	ErrAccountExists     = errors.New("account already exists")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrSameAccount       = errors.New("transfer to same account")
	ErrBalanceOverflow   = errors.New("balance overflows u64")
)

const (
	// parâmetros de rent do runtime: 3480 lamports/byte-ano, isenção com 2 anos, 128 bytes de overhead
	lamportsPerByteYear    = 3480
	exemptionYears         = 2
	accountStorageOverhead = 128
)

// RentExemptMinimum é o depósito cobrado na criação de uma conta com dataLen bytes
// e devolvido quando ela é fechada
func RentExemptMinimum(dataLen int) uint64 {
	return uint64(accountStorageOverhead+dataLen) * lamportsPerByteYear * exemptionYears
}

// Tx agrupa operações de saldo e de contas de dados que precisam ser atômicas:
// nenhum estado parcial onde fundos se movem sem o registro fechar (ou vice-versa)
type Tx interface {
	Balance(ctx context.Context, addr state.Pubkey) (uint64, error)
	// Deposit credita saldo externo (faucet / top-up)
	Deposit(ctx context.Context, addr state.Pubkey, amount uint64, memo string) error
	Transfer(ctx context.Context, from, to state.Pubkey, amount uint64, memo string) error

	// CreateAccount grava dados em addr, cobrando o rent de payer
	CreateAccount(ctx context.Context, addr, payer state.Pubkey, data []byte) error
	// LoadAccount lê os dados com lock até o fim da transação
	LoadAccount(ctx context.Context, addr state.Pubkey) ([]byte, error)
	// CloseAccount apaga os dados e devolve os lamports de addr para reclaimTo
	CloseAccount(ctx context.Context, addr, reclaimTo state.Pubkey) error

	// AppendLog adiciona uma entrada imutável no log de eventos
	AppendLog(ctx context.Context, addr state.Pubkey, data []byte) error
}

// Ledger executa fn de forma atômica e isolada; erro em fn desfaz tudo
type Ledger interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// LogReader lê o log de eventos fora de uma transação
type LogReader interface {
	Logs(ctx context.Context, addr state.Pubkey) ([]LogEntry, error)
}

// LogEntry é uma entrada do log append-only
type LogEntry struct {
	Address   state.Pubkey
	Data      []byte
	CreatedAt time.Time
}
