package poller

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/provably-fair-dice/internal/dice/beacon"
)

// maxSlotsPerTick limita o catch-up de uma volta para não segurar o tip desatualizado
const maxSlotsPerTick = 256

// Source é a chain (RPC): slot finalizado, tip e beacon por slot
type Source interface {
	FinalizedSlot(ctx context.Context) (uint64, error)
	Slot(ctx context.Context) (uint64, error)
	Get(ctx context.Context, slot uint64) (beacon.Value, error)
}

// Sink é onde os resolvers leem (Redis)
type Sink interface {
	Put(ctx context.Context, slot uint64, v beacon.Value) error
	SetTip(ctx context.Context, slot uint64) error
}

// Poller copia beacons finalizados e o tip da chain para o Sink, em ordem de slot
type Poller struct {
	Log      *zap.Logger
	Source   Source
	Sink     Sink
	Interval time.Duration
	Backfill uint64 // slots antes do finalizado na primeira volta

	OnPublished func(slot uint64) // métricas
	OnError     func(string)      // métricas por fase

	next uint64
}

func (p *Poller) onError(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

// Run executa Tick a cada Interval até o contexto ser cancelado
func (p *Poller) Run(ctx context.Context) error {
	t := time.NewTicker(p.Interval)
	defer t.Stop()
	for {
		if err := p.Tick(ctx); err != nil && ctx.Err() == nil {
			p.Log.Warn("beacon poll failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Tick publica os beacons de next..finalizado e depois atualiza o tip
func (p *Poller) Tick(ctx context.Context) error {
	fin, err := p.Source.FinalizedSlot(ctx)
	if err != nil {
		p.onError("finalized_slot")
		return err
	}
	if p.next == 0 {
		p.next = 1
		if fin > p.Backfill {
			p.next = fin - p.Backfill
		}
	}

	for n := 0; p.next <= fin && n < maxSlotsPerTick; n++ {
		v, err := p.Source.Get(ctx, p.next)
		if errors.Is(err, beacon.ErrUnavailable) {
			break
		}
		if err != nil {
			p.onError("get")
			return err
		}
		if err := p.Sink.Put(ctx, p.next, v); err != nil {
			p.onError("put")
			return err
		}
		if p.OnPublished != nil {
			p.OnPublished(p.next)
		}
		p.next++
	}

	// tip só depois dos beacons: quem lê um tip > s encontra beacons até o finalizado
	tip, err := p.Source.Slot(ctx)
	if err != nil {
		p.onError("tip")
		return err
	}
	if err := p.Sink.SetTip(ctx, tip); err != nil {
		p.onError("set_tip")
		return err
	}
	return nil
}

// Next é o próximo slot a publicar
func (p *Poller) Next() uint64 { return p.next }
