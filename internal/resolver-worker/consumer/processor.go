package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/provably-fair-dice/internal/dice/beacon"
	"github.com/radieske/provably-fair-dice/internal/dice/game"
	"github.com/radieske/provably-fair-dice/internal/dice/ledger"
	"github.com/radieske/provably-fair-dice/internal/dice/state"
	sharedkafka "github.com/radieske/provably-fair-dice/internal/shared/kafka"
	"github.com/radieske/provably-fair-dice/pkg/contracts/events"
)

// MessageReader é o subconjunto de *kafka.Reader usado (commit explícito após tratar)
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Resolver interface {
	ResolveBet(ctx context.Context, addr state.Pubkey) (*game.Resolution, error)
}

// Processor consome bet_placed e resolve cada aposta assim que o beacon do slot seguinte existir.
// Beacon indisponível é retentado com backoff; esgotadas as tentativas a mensagem vai para a DLQ
// (a aposta continua aberta e pode ser reembolsada após o timeout).
type Processor struct {
	Log      *zap.Logger
	Reader   MessageReader
	DLQ      MessageWriter
	Resolver Resolver

	MaxAttempts int
	Backoff     time.Duration
	MaxBackoff  time.Duration
	Sleep       func(ctx context.Context, d time.Duration) error // substituível em teste

	OnConsumed   func()       // métricas (counter++)
	OnRetry      func()       // métricas
	OnDeadLetter func()       // métricas
	OnError      func(string) // métricas por fase
}

func (p *Processor) onError(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

// Run inicia o loop de consumo; retorna quando o contexto é cancelado
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka fetch failed", zap.Error(err))
			p.onError("read")
			if err := p.sleep(ctx, 500*time.Millisecond); err != nil {
				return err
			}
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed() // callback de métrica: mensagem consumida
		}

		if err := p.Handle(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // não commita: a mensagem volta para o grupo
			}
			p.Log.Error("handle failed", zap.Error(err))
			continue
		}

		if err := p.Reader.CommitMessages(ctx, m); err != nil {
			p.Log.Warn("kafka commit failed", zap.Error(err))
			p.onError("commit")
		}
	}
}

// Handle trata uma mensagem até um estado final (resolvida, já liquidada ou DLQ).
// Só retorna erro se não conseguiu nem encaminhar para a DLQ.
func (p *Processor) Handle(ctx context.Context, m kafka.Message) error {
	var ev events.BetPlaced
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		p.Log.Warn("invalid message", zap.Error(err))
		p.onError("decode")
		return p.deadLetter(ctx, m, "decode: "+err.Error())
	}
	addr, err := state.ParsePubkey(ev.Address)
	if err != nil {
		p.onError("decode")
		return p.deadLetter(ctx, m, "address: "+err.Error())
	}

	log := p.Log.With(zap.String("address", ev.Address), zap.Uint64("beacon_slot", ev.BeaconSlot))
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := p.Resolver.ResolveBet(ctx, addr)
		switch {
		case err == nil:
			log.Debug("resolved", zap.Uint8("outcome", res.Outcome.Outcome), zap.Bool("win", res.Outcome.Win), zap.Int("attempt", attempt))
			return nil
		case errors.Is(err, ledger.ErrRecordNotFound):
			// já resolvida (ou reembolsada) por outro caminho; redelivery é idempotente
			log.Debug("bet already settled")
			return nil
		case errors.Is(err, state.ErrCorruptRecord):
			p.onError("corrupt")
			return p.deadLetter(ctx, m, err.Error())
		case errors.Is(err, beacon.ErrUnavailable):
			if p.OnRetry != nil {
				p.OnRetry()
			}
		default:
			log.Warn("resolve failed", zap.Error(err), zap.Int("attempt", attempt))
			p.onError("resolve")
		}
		lastErr = err
		if attempt < attempts {
			if err := p.sleep(ctx, p.backoff(attempt)); err != nil {
				return err
			}
		}
	}

	return p.deadLetter(ctx, m, fmt.Sprintf("gave up after %d attempts: %v", attempts, lastErr))
}

// backoff linear limitado por MaxBackoff
func (p *Processor) backoff(attempt int) time.Duration {
	d := p.Backoff * time.Duration(attempt)
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}

func (p *Processor) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p *Processor) deadLetter(ctx context.Context, m kafka.Message, reason string) error {
	if p.DLQ == nil {
		p.Log.Error("dropping message without DLQ", zap.String("reason", reason))
		return nil
	}
	if err := sharedkafka.ForwardDLQ(ctx, p.DLQ, m, reason); err != nil {
		p.onError("dlq")
		return fmt.Errorf("dlq: %w", err)
	}
	if p.OnDeadLetter != nil {
		p.OnDeadLetter()
	}
	p.Log.Warn("sent to dlq", zap.String("reason", reason))
	return nil
}
