// Package emitter publica os eventos de aposta fora da transação do ledger.
// A entrega é at-most-once: uma única escrita, sem retry; o log no ledger é a fonte de verdade.
package emitter

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/radieske/provably-fair-dice/pkg/contracts/events"
)

// Emitter recebe os eventos de resolução e de reembolso já confirmados
type Emitter interface {
	Emit(ctx context.Context, e events.BetResolved) error
	EmitRefund(ctx context.Context, e events.BetRefunded) error
}

// Placer anuncia apostas novas para o resolver-worker
type Placer interface {
	PublishBetPlaced(ctx context.Context, e events.BetPlaced) error
}

// MessageWriter é o subconjunto de *kafka.Writer que usamos
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaEmitter struct {
	Resolved MessageWriter
	Refunded MessageWriter
}

func NewKafkaEmitter(resolved, refunded MessageWriter) *KafkaEmitter {
	return &KafkaEmitter{Resolved: resolved, Refunded: refunded}
}

func (k *KafkaEmitter) Emit(ctx context.Context, e events.BetResolved) error {
	if e.Ts.IsZero() {
		e.Ts = time.Now().UTC()
	}
	return writeJSON(ctx, k.Resolved, e.Address, e)
}

func (k *KafkaEmitter) EmitRefund(ctx context.Context, e events.BetRefunded) error {
	if k.Refunded == nil {
		return nil
	}
	if e.Ts.IsZero() {
		e.Ts = time.Now().UTC()
	}
	return writeJSON(ctx, k.Refunded, e.Address, e)
}

type KafkaPublisher struct {
	Writer MessageWriter
}

func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{Writer: w}
}

func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	e.TsUnixMs = time.Now().UnixMilli()
	return writeJSON(ctx, p.Writer, e.Address, e)
}

// chave = endereço da aposta, mantém os eventos de uma aposta na mesma partição
func writeJSON(ctx context.Context, w MessageWriter, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: b, Time: time.Now()})
}

// Recorder guarda os eventos em memória (testes e ENV=local sem Kafka)
type Recorder struct {
	mu       sync.Mutex
	Resolved []events.BetResolved
	Refunded []events.BetRefunded
	Placed   []events.BetPlaced
}

func (r *Recorder) Emit(_ context.Context, e events.BetResolved) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Resolved = append(r.Resolved, e)
	return nil
}

func (r *Recorder) EmitRefund(_ context.Context, e events.BetRefunded) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Refunded = append(r.Refunded, e)
	return nil
}

func (r *Recorder) PublishBetPlaced(_ context.Context, e events.BetPlaced) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Placed = append(r.Placed, e)
	return nil
}

// Snapshot devolve cópias para leitura concorrente
func (r *Recorder) Snapshot() ([]events.BetResolved, []events.BetRefunded, []events.BetPlaced) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.BetResolved(nil), r.Resolved...),
		append([]events.BetRefunded(nil), r.Refunded...),
		append([]events.BetPlaced(nil), r.Placed...)
}

type Nop struct{}

func (Nop) Emit(context.Context, events.BetResolved) error { return nil }
func (Nop) EmitRefund(context.Context, events.BetRefunded) error { return nil }
func (Nop) PublishBetPlaced(context.Context, events.BetPlaced) error { return nil }
