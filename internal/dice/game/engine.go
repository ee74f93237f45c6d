// Package game orquestra colocação, resolução, liquidação e reembolso de apostas
// sobre o ledger, o beacon e o emissor de eventos.
package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/provably-fair-dice/internal/dice/beacon"
	"github.com/radieske/provably-fair-dice/internal/dice/emitter"
	"github.com/radieske/provably-fair-dice/internal/dice/fairness"
	"github.com/radieske/provably-fair-dice/internal/dice/ledger"
	"github.com/radieske/provably-fair-dice/internal/dice/state"
	"github.com/radieske/provably-fair-dice/pkg/contracts/events"
)

var (
	ErrTimeoutNotReached  = errors.New("refund timeout not reached")
	ErrBeaconAlreadyKnown = errors.New("beacon for bet slot already known")
	ErrVaultCannotCover   = errors.New("vault cannot cover potential payout")
	ErrWrongBeaconSlot    = errors.New("beacon slot is not the bet's beacon slot")
)

// DefaultRefundTimeoutSlots ~ 400s de slots de 400ms
const DefaultRefundTimeoutSlots = 1000

type Config struct {
	ProgramID          state.Pubkey
	House              state.Pubkey
	HouseEdgeBps       uint16
	RefundTimeoutSlots uint64
	Limits             state.Limits
}

// Engine aplica as regras do jogo; toda mutação passa por um único Ledger.Atomic
type Engine struct {
	Ledger  ledger.Ledger
	Beacon  beacon.Beacon
	Clock   beacon.Clock
	Emitter emitter.Emitter
	Log     *zap.Logger
	Config  Config

	OnPlaced   func()          // métricas
	OnResolved func(win bool)  // métricas
	OnRefunded func()          // métricas
	OnError    func(op string) // métricas por operação

	vault state.Pubkey
}

func New(cfg Config, l ledger.Ledger, b beacon.Beacon, c beacon.Clock, em emitter.Emitter, log *zap.Logger) (*Engine, error) {
	if cfg.ProgramID.IsZero() || cfg.House.IsZero() {
		return nil, errors.New("program id and house are required")
	}
	if cfg.HouseEdgeBps >= 10_000 {
		return nil, fairness.ErrInvalidEdge
	}
	if cfg.RefundTimeoutSlots == 0 {
		cfg.RefundTimeoutSlots = DefaultRefundTimeoutSlots
	}
	if cfg.Limits == (state.Limits{}) {
		cfg.Limits = state.DefaultLimits
	}
	if em == nil {
		em = emitter.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	vault, _, err := state.FindVaultAddress(cfg.ProgramID, cfg.House)
	if err != nil {
		return nil, fmt.Errorf("derive vault: %w", err)
	}
	return &Engine{Ledger: l, Beacon: b, Clock: c, Emitter: em, Log: log, Config: cfg, vault: vault}, nil
}

func (e *Engine) Vault() state.Pubkey { return e.vault }

func (e *Engine) fail(op string, err error) error {
	if e.OnError != nil {
		e.OnError(op)
	}
	return err
}

// Deposit credita lamports externos numa conta (faucet do ambiente de teste)
func (e *Engine) Deposit(ctx context.Context, addr state.Pubkey, amount uint64) (uint64, error) {
	var bal uint64
	err := e.Ledger.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if err := tx.Deposit(ctx, addr, amount, "deposit"); err != nil {
			return err
		}
		var err error
		bal, err = tx.Balance(ctx, addr)
		return err
	})
	return bal, err
}

func (e *Engine) Balance(ctx context.Context, addr state.Pubkey) (uint64, error) {
	var bal uint64
	err := e.Ledger.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		bal, err = tx.Balance(ctx, addr)
		return err
	})
	return bal, err
}

// Initialize: a casa abastece o vault com amount
func (e *Engine) Initialize(ctx context.Context, amount uint64) (uint64, error) {
	var bal uint64
	err := e.Ledger.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if err := tx.Transfer(ctx, e.Config.House, e.vault, amount, "initialize"); err != nil {
			return err
		}
		var err error
		bal, err = tx.Balance(ctx, e.vault)
		return err
	})
	if err != nil {
		return 0, e.fail("initialize", err)
	}
	e.Log.Info("vault funded", zap.String("vault", e.vault.String()), zap.Uint64("amount", amount), zap.Uint64("balance", bal))
	return bal, nil
}

type PlaceBetParams struct {
	Player state.Pubkey
	Seed   state.Uint128
	Amount uint64
	Roll   uint8
}

type Placement struct {
	Address state.Pubkey `json:"address"`
	Bet     state.Bet    `json:"bet"`
	Rent    uint64       `json:"rent"`
}

// PlaceBet cria o registro (rent pago pelo jogador) e move o stake para o vault, atomicamente.
// Parâmetros inválidos falham antes de qualquer movimentação.
func (e *Engine) PlaceBet(ctx context.Context, p PlaceBetParams) (*Placement, error) {
	bet := &state.Bet{Player: p.Player, Seed: p.Seed, Amount: p.Amount, Roll: p.Roll}
	if err := bet.Validate(e.Config.Limits); err != nil {
		return nil, e.fail("place", err)
	}

	// prêmio máximo precisa caber em u64 antes de qualquer movimentação
	payout, err := fairness.Payout(bet.Amount, bet.Roll, e.Config.HouseEdgeBps)
	if err != nil {
		return nil, e.fail("place", fmt.Errorf("%w: %w", state.ErrInvalidBetParameters, err))
	}

	slot, err := e.Clock.Slot(ctx)
	if err != nil {
		return nil, e.fail("place", fmt.Errorf("current slot: %w", err))
	}
	bet.Slot = slot

	// o beacon de slot+1 tem de ser desconhecido no momento da aposta
	if _, err := e.Beacon.Get(ctx, bet.BeaconSlot()); err == nil {
		return nil, e.fail("place", fmt.Errorf("%w: slot %d", ErrBeaconAlreadyKnown, bet.BeaconSlot()))
	} else if !errors.Is(err, beacon.ErrUnavailable) {
		return nil, e.fail("place", fmt.Errorf("beacon check: %w", err))
	}

	addr, bump, err := state.FindBetAddress(e.Config.ProgramID, bet.Player, bet.Seed)
	if err != nil {
		return nil, e.fail("place", err)
	}
	bet.Bump = bump

	data := bet.MarshalAccount()
	err = e.Ledger.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if err := tx.CreateAccount(ctx, addr, bet.Player, data); err != nil {
			return err
		}
		if err := tx.Transfer(ctx, bet.Player, e.vault, bet.Amount, "stake"); err != nil {
			return err
		}
		vaultBal, err := tx.Balance(ctx, e.vault)
		if err != nil {
			return err
		}
		if vaultBal < payout {
			return fmt.Errorf("%w: payout %d, vault %d", ErrVaultCannotCover, payout, vaultBal)
		}
		return nil
	})
	if err != nil {
		return nil, e.fail("place", err)
	}

	if e.OnPlaced != nil {
		e.OnPlaced()
	}
	e.Log.Info("bet placed",
		zap.String("address", addr.String()),
		zap.String("player", bet.Player.String()),
		zap.Uint64("slot", bet.Slot),
		zap.Uint64("amount", bet.Amount),
		zap.Uint8("roll", bet.Roll))

	return &Placement{Address: addr, Bet: *bet, Rent: ledger.RentExemptMinimum(len(data))}, nil
}

type Resolution struct {
	Address state.Pubkey     `json:"address"`
	Bet     state.Bet        `json:"bet"`
	Outcome fairness.Outcome `json:"outcome"`
	Event   state.BetEvent   `json:"event"`
}

func loadBet(ctx context.Context, tx ledger.Tx, program, addr state.Pubkey) (*state.Bet, error) {
	data, err := tx.LoadAccount(ctx, addr)
	if err != nil {
		return nil, err
	}
	bet, err := state.UnmarshalAccount(data)
	if err != nil {
		return nil, err
	}
	if err := bet.VerifyAddress(program, addr); err != nil {
		return nil, fmt.Errorf("%w: %v", state.ErrCorruptRecord, err)
	}
	return bet, nil
}

// ResolveBet sorteia com o beacon de slot+1, paga se houver vitória, fecha o registro
// e grava o BetEvent, tudo na mesma transação. O evento sai uma vez, depois do commit.
// Beacon indisponível desfaz tudo e pode ser repetido.
func (e *Engine) ResolveBet(ctx context.Context, addr state.Pubkey) (*Resolution, error) {
	var res *Resolution
	err := e.Ledger.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		bet, err := loadBet(ctx, tx, e.Config.ProgramID, addr)
		if err != nil {
			return err
		}

		slot := bet.BeaconSlot()
		value, err := e.Beacon.Get(ctx, slot)
		if err != nil {
			return err
		}

		out, err := fairness.Resolve(bet, slot, value, e.Config.HouseEdgeBps)
		if err != nil {
			return err
		}

		if out.Win {
			if err := tx.Transfer(ctx, e.vault, bet.Player, out.Payout, "payout"); err != nil {
				return err
			}
		}
		if err := tx.CloseAccount(ctx, addr, bet.Player); err != nil {
			return err
		}
		ev := out.Event()
		if err := tx.AppendLog(ctx, addr, ev.LogData()); err != nil {
			return err
		}
		res = &Resolution{Address: addr, Bet: *bet, Outcome: out, Event: ev}
		return nil
	})
	if err != nil {
		if errors.Is(err, beacon.ErrUnavailable) {
			e.Log.Debug("beacon not ready", zap.String("address", addr.String()), zap.Error(err))
		}
		return nil, e.fail("resolve", err)
	}

	if e.OnResolved != nil {
		e.OnResolved(res.Outcome.Win)
	}
	e.Log.Info("bet resolved",
		zap.String("address", addr.String()),
		zap.Uint8("outcome", res.Outcome.Outcome),
		zap.Uint8("roll", res.Bet.Roll),
		zap.Bool("win", res.Outcome.Win),
		zap.Uint64("payout", res.Outcome.Payout))

	// at-most-once: falha de entrega não desfaz a liquidação, o log do ledger já tem o evento
	if err := e.Emitter.Emit(ctx, resolvedEvent(res)); err != nil {
		e.Log.Warn("emit bet resolved failed", zap.String("address", addr.String()), zap.Error(err))
	}
	return res, nil
}

func resolvedEvent(r *Resolution) events.BetResolved {
	return events.BetResolved{
		Address:    r.Address.String(),
		Player:     r.Bet.Player.String(),
		Seed:       r.Bet.Seed.String(),
		Slot:       r.Bet.Slot,
		BeaconSlot: r.Outcome.BeaconSlot,
		Beacon:     r.Outcome.Beacon.String(),
		Roll:       r.Bet.Roll,
		Outcome:    r.Outcome.Outcome,
		Win:        r.Outcome.Win,
		Amount:     r.Bet.Amount,
		Payout:     r.Outcome.Payout,
		Event:      r.Event.LogData(),
		Ts:         time.Now().UTC(),
	}
}

// RefundBet devolve o stake de uma aposta não resolvida após RefundTimeoutSlots
func (e *Engine) RefundBet(ctx context.Context, addr state.Pubkey) (*state.Bet, error) {
	now, err := e.Clock.Slot(ctx)
	if err != nil {
		return nil, e.fail("refund", fmt.Errorf("current slot: %w", err))
	}

	var refunded *state.Bet
	err = e.Ledger.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		bet, err := loadBet(ctx, tx, e.Config.ProgramID, addr)
		if err != nil {
			return err
		}
		if now < bet.Slot || now-bet.Slot < e.Config.RefundTimeoutSlots {
			return fmt.Errorf("%w: slot %d, bet slot %d, timeout %d", ErrTimeoutNotReached, now, bet.Slot, e.Config.RefundTimeoutSlots)
		}
		if err := tx.Transfer(ctx, e.vault, bet.Player, bet.Amount, "refund"); err != nil {
			return err
		}
		if err := tx.CloseAccount(ctx, addr, bet.Player); err != nil {
			return err
		}
		refunded = bet
		return nil
	})
	if err != nil {
		return nil, e.fail("refund", err)
	}

	if e.OnRefunded != nil {
		e.OnRefunded()
	}
	e.Log.Info("bet refunded", zap.String("address", addr.String()), zap.Uint64("amount", refunded.Amount))

	if err := e.Emitter.EmitRefund(ctx, events.BetRefunded{
		Address: addr.String(),
		Player:  refunded.Player.String(),
		Amount:  refunded.Amount,
		Slot:    refunded.Slot,
		Ts:      time.Now().UTC(),
	}); err != nil {
		e.Log.Warn("emit bet refunded failed", zap.String("address", addr.String()), zap.Error(err))
	}
	return refunded, nil
}

// Bet lê o registro sem alterá-lo
func (e *Engine) Bet(ctx context.Context, addr state.Pubkey) (*state.Bet, error) {
	var bet *state.Bet
	err := e.Ledger.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		bet, err = loadBet(ctx, tx, e.Config.ProgramID, addr)
		return err
	})
	return bet, err
}

// Verify recalcula o resultado com a regra da casa configurada
func (e *Engine) Verify(record []byte, beaconSlot uint64, value beacon.Value) (*state.Bet, fairness.Outcome, error) {
	return Verify(record, beaconSlot, value, e.Config.HouseEdgeBps)
}

// Verify permite que qualquer um recalcule o resultado a partir dos bytes publicados do
// registro (66 bytes codificados ou a conta de 74 bytes) e do beacon.
// Só o beacon de slot+1 vale; beaconSlot zero usa esse slot.
func Verify(record []byte, beaconSlot uint64, value beacon.Value, houseEdgeBps uint16) (*state.Bet, fairness.Outcome, error) {
	var (
		bet *state.Bet
		err error
	)
	if len(record) == state.AccountLen {
		bet, err = state.UnmarshalAccount(record)
	} else {
		bet, err = state.DecodeBet(record)
	}
	if err != nil {
		return nil, fairness.Outcome{}, err
	}
	if beaconSlot == 0 {
		beaconSlot = bet.BeaconSlot()
	}
	if beaconSlot != bet.BeaconSlot() {
		return nil, fairness.Outcome{}, fmt.Errorf("%w: got %d, bet uses %d", ErrWrongBeaconSlot, beaconSlot, bet.BeaconSlot())
	}
	out, err := fairness.Resolve(bet, beaconSlot, value, houseEdgeBps)
	if err != nil {
		return nil, fairness.Outcome{}, err
	}
	return bet, out, nil
}
