package emitter

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/provably-fair-dice/pkg/contracts/events"
)

// ChannelBetsBroadcast é o canal Redis Pub/Sub lido pelo /ws do dice-service
const ChannelBetsBroadcast = "dice_bets_broadcast"

// Payload padrão para o WS do dice-service
type WSUpdate struct {
	Type    string `json:"type"` // "resolved" | "refunded"
	Player  string `json:"player"`
	Payload any    `json:"payload"`
}

// RedisBroadcaster republica os eventos no Pub/Sub para o feed ao vivo (melhor esforço)
type RedisBroadcaster struct {
	r       *redis.Client
	channel string
}

func NewRedisBroadcaster(r *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{r: r, channel: ChannelBetsBroadcast}
}

func (b *RedisBroadcaster) publish(ctx context.Context, u WSUpdate) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return b.r.Publish(ctx, b.channel, payload).Err()
}

func (b *RedisBroadcaster) Emit(ctx context.Context, e events.BetResolved) error {
	return b.publish(ctx, WSUpdate{Type: "resolved", Player: e.Player, Payload: e})
}

func (b *RedisBroadcaster) EmitRefund(ctx context.Context, e events.BetRefunded) error {
	return b.publish(ctx, WSUpdate{Type: "refunded", Player: e.Player, Payload: e})
}

// Multi entrega para todos os emissores; cada um recebe uma única tentativa
type Multi []Emitter

func (m Multi) Emit(ctx context.Context, e events.BetResolved) error {
	var errs []error
	for _, em := range m {
		if err := em.Emit(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) EmitRefund(ctx context.Context, e events.BetRefunded) error {
	var errs []error
	for _, em := range m {
		if err := em.EmitRefund(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
