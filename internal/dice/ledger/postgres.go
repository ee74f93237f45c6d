package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"math/big"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/radieske/provably-fair-dice/internal/dice/state"
)

// Schema cria as tabelas do ledger; lamports em NUMERIC(20,0) para caber u64 inteiro
const Schema = `
CREATE TABLE IF NOT EXISTS ledger_accounts (
	address    TEXT PRIMARY KEY,
	lamports   NUMERIC(20,0) NOT NULL DEFAULT 0 CHECK (lamports >= 0),
	data       BYTEA,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS ledger_entries (
	id             UUID PRIMARY KEY,
	operation_type TEXT NOT NULL,
	from_address   TEXT,
	to_address     TEXT NOT NULL,
	amount         NUMERIC(20,0) NOT NULL,
	memo           TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS ledger_logs (
	id         BIGSERIAL PRIMARY KEY,
	address    TEXT NOT NULL,
	data       BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS ledger_logs_address_idx ON ledger_logs(address);
`

var maxLamports = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)

// Postgres implementa o ledger em banco; cada Atomic é uma transação SQL
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// EnsureSchema aplica o Schema (idempotente)
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ledger schema: %w", err)
	}
	return nil
}

// Atomic abre uma transação, executa fn e faz commit; qualquer erro gera rollback
func (p *Postgres) Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// Logs lista o log de eventos de um endereço na ordem de gravação
func (p *Postgres) Logs(ctx context.Context, addr state.Pubkey) ([]LogEntry, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT data, created_at FROM ledger_logs WHERE address=$1 ORDER BY id`, addr.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		e := LogEntry{Address: addr}
		if err := rows.Scan(&e.Data, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type pgTx struct{ tx *sql.Tx }

func toLamports(d decimal.Decimal) (uint64, error) {
	b := d.BigInt()
	if b.Sign() < 0 || !b.IsUint64() {
		return 0, fmt.Errorf("%w: stored %s", ErrBalanceOverflow, d.String())
	}
	return b.Uint64(), nil
}

func fromLamports(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

func (t *pgTx) Balance(ctx context.Context, addr state.Pubkey) (uint64, error) {
	var bal decimal.Decimal
	err := t.tx.QueryRowContext(ctx, `SELECT lamports FROM ledger_accounts WHERE address=$1`, addr.String()).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return toLamports(bal)
}

// lockBalances trava as linhas em ordem de endereço (evita deadlock entre transferências cruzadas)
func (t *pgTx) lockBalances(ctx context.Context, addrs ...state.Pubkey) (map[state.Pubkey]decimal.Decimal, error) {
	keys := make([]string, len(addrs))
	for i, a := range addrs {
		keys[i] = a.String()
	}
	sort.Strings(keys)

	out := make(map[state.Pubkey]decimal.Decimal, len(addrs))
	for _, k := range keys {
		var bal decimal.Decimal
		err := t.tx.QueryRowContext(ctx, `SELECT lamports FROM ledger_accounts WHERE address=$1 FOR UPDATE`, k).Scan(&bal)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		out[state.MustPubkey(k)] = bal
	}
	return out, nil
}

func (t *pgTx) credit(ctx context.Context, addr state.Pubkey, current decimal.Decimal, amount uint64) error {
	if current.Add(fromLamports(amount)).GreaterThan(maxLamports) {
		return fmt.Errorf("%w: %s", ErrBalanceOverflow, addr)
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO ledger_accounts(address, lamports) VALUES($1,$2)
		ON CONFLICT (address) DO UPDATE SET lamports = ledger_accounts.lamports + EXCLUDED.lamports, updated_at = NOW()`,
		addr.String(), fromLamports(amount))
	return err
}

func (t *pgTx) entry(ctx context.Context, op string, from *state.Pubkey, to state.Pubkey, amount uint64, memo string) error {
	var fromAddr sql.NullString
	if from != nil {
		fromAddr = sql.NullString{String: from.String(), Valid: true}
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO ledger_entries(id, operation_type, from_address, to_address, amount, memo)
		VALUES($1,$2,$3,$4,$5,$6)`,
		uuid.NewString(), op, fromAddr, to.String(), fromLamports(amount), memo)
	return err
}

func (t *pgTx) Deposit(ctx context.Context, addr state.Pubkey, amount uint64, memo string) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	bals, err := t.lockBalances(ctx, addr)
	if err != nil {
		return err
	}
	if err := t.credit(ctx, addr, bals[addr], amount); err != nil {
		return err
	}
	return t.entry(ctx, "DEPOSIT", nil, addr, amount, memo)
}

func (t *pgTx) Transfer(ctx context.Context, from, to state.Pubkey, amount uint64, memo string) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if from == to {
		return ErrSameAccount
	}
	bals, err := t.lockBalances(ctx, from, to)
	if err != nil {
		return err
	}
	if bals[from].LessThan(fromLamports(amount)) {
		return fmt.Errorf("%w: %s has %s, needs %d", ErrInsufficientFunds, from, bals[from].String(), amount)
	}

	if _, err := t.tx.ExecContext(ctx,
		`UPDATE ledger_accounts SET lamports = lamports - $1, updated_at = NOW() WHERE address=$2`,
		fromLamports(amount), from.String()); err != nil {
		return err
	}
	if err := t.credit(ctx, to, bals[to], amount); err != nil {
		return err
	}
	return t.entry(ctx, "TRANSFER", &from, to, amount, memo)
}

func (t *pgTx) CreateAccount(ctx context.Context, addr, payer state.Pubkey, data []byte) error {
	var existing []byte
	err := t.tx.QueryRowContext(ctx, `SELECT data FROM ledger_accounts WHERE address=$1 FOR UPDATE`, addr.String()).Scan(&existing)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", ErrAccountExists, addr)
	}

	if err := t.Transfer(ctx, payer, addr, RentExemptMinimum(len(data)), "rent"); err != nil {
		return err
	}

	// o SELECT acima não trava linha inexistente; quem gravar data primeiro fica com a conta
	// e a transação concorrente vê 0 linhas aqui (o UPDATE relê a versão commitada)
	res, err := t.tx.ExecContext(ctx,
		`UPDATE ledger_accounts SET data=$1, updated_at = NOW() WHERE address=$2 AND data IS NULL`,
		data, addr.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("%w: %s", ErrAccountExists, addr)
	}
	return nil
}

func (t *pgTx) LoadAccount(ctx context.Context, addr state.Pubkey) ([]byte, error) {
	var data []byte
	err := t.tx.QueryRowContext(ctx, `SELECT data FROM ledger_accounts WHERE address=$1 FOR UPDATE`, addr.String()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && data == nil) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, addr)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (t *pgTx) CloseAccount(ctx context.Context, addr, reclaimTo state.Pubkey) error {
	var (
		data []byte
		bal  decimal.Decimal
	)
	err := t.tx.QueryRowContext(ctx, `SELECT data, lamports FROM ledger_accounts WHERE address=$1 FOR UPDATE`, addr.String()).Scan(&data, &bal)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && data == nil) {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, addr)
	}
	if err != nil {
		return err
	}

	lamports, err := toLamports(bal)
	if err != nil {
		return err
	}
	if lamports > 0 {
		if err := t.Transfer(ctx, addr, reclaimTo, lamports, "close"); err != nil {
			return err
		}
	}
	_, err = t.tx.ExecContext(ctx, `DELETE FROM ledger_accounts WHERE address=$1`, addr.String())
	return err
}

func (t *pgTx) AppendLog(ctx context.Context, addr state.Pubkey, data []byte) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO ledger_logs(address, data) VALUES($1,$2)`, addr.String(), data)
	return err
}
