package beacon

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// beacon:tip é um hash {slot, at}; at em unix ms de quando o ingest gravou
const (
	tipKey       = "beacon:tip"
	tipSlotField = "slot"
	tipAtField   = "at"
)

// slotKey gera a chave Redis do beacon de um slot
func slotKey(slot uint64) string { return "beacon:slot:" + strconv.FormatUint(slot, 10) }

// RedisStore guarda os beacons finalizados publicados pelo beacon-ingest-service
// TTL: zero mantém para sempre (o valor é imutável depois de finalizado)
type RedisStore struct {
	Client *redis.Client
	TTL    time.Duration
	// MaxTipAge: Slot falha com ErrStaleTip se o tip não foi atualizado nesse intervalo (zero desliga)
	MaxTipAge time.Duration
}

func NewRedisStore(c *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{Client: c, TTL: ttl}
}

// Put usa SETNX: um beacon já gravado nunca é sobrescrito
func (r *RedisStore) Put(ctx context.Context, slot uint64, v Value) error {
	if err := r.Client.SetNX(ctx, slotKey(slot), v[:], r.TTL).Err(); err != nil {
		return fmt.Errorf("redis put beacon %d: %w", slot, err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, slot uint64) (Value, error) {
	var v Value
	b, err := r.Client.Get(ctx, slotKey(slot)).Bytes()
	if errors.Is(err, redis.Nil) {
		return v, fmt.Errorf("%w: slot %d", ErrUnavailable, slot)
	}
	if err != nil {
		return v, fmt.Errorf("redis get beacon %d: %w", slot, err)
	}
	if len(b) != len(v) {
		return v, fmt.Errorf("redis beacon %d: stored %d bytes", slot, len(b))
	}
	copy(v[:], b)
	return v, nil
}

// SetTip grava o slot mais recente observado na chain com o horário da gravação.
// O slot nunca retrocede; o mesmo slot só renova o horário.
func (r *RedisStore) SetTip(ctx context.Context, slot uint64) error {
	cur, _, err := r.tip(ctx)
	if err != nil {
		return err
	}
	if slot < cur {
		return nil
	}
	return r.Client.HSet(ctx, tipKey,
		tipSlotField, strconv.FormatUint(slot, 10),
		tipAtField, strconv.FormatInt(time.Now().UnixMilli(), 10),
	).Err()
}

func (r *RedisStore) Slot(ctx context.Context) (uint64, error) {
	slot, at, err := r.tip(ctx)
	if err != nil {
		return 0, err
	}
	if slot == 0 {
		return 0, fmt.Errorf("%w: tip slot unknown", ErrUnavailable)
	}
	if r.MaxTipAge > 0 {
		if age := time.Since(at); age > r.MaxTipAge {
			return 0, fmt.Errorf("%w: tip %d written %s ago", ErrStaleTip, slot, age.Round(time.Millisecond))
		}
	}
	return slot, nil
}

func (r *RedisStore) tip(ctx context.Context) (uint64, time.Time, error) {
	vals, err := r.Client.HMGet(ctx, tipKey, tipSlotField, tipAtField).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis get tip: %w", err)
	}
	s, ok := vals[0].(string)
	if !ok {
		return 0, time.Time{}, nil
	}
	slot, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis tip slot %q: %w", s, err)
	}
	// sem horário conta como infinitamente antigo
	var at time.Time
	if ms, ok := vals[1].(string); ok {
		if n, err := strconv.ParseInt(ms, 10, 64); err == nil {
			at = time.UnixMilli(n)
		}
	}
	return slot, at, nil
}
