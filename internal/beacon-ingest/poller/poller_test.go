package poller

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/provably-fair-dice/internal/dice/beacon"
)

type fakeChain struct {
	finalized uint64
	tip       uint64
	skipped   map[uint64]bool
	err       error
}

func valueAt(slot uint64) beacon.Value {
	var v beacon.Value
	copy(v[:], fmt.Sprintf("block-%d", slot))
	return v
}

func (f *fakeChain) FinalizedSlot(context.Context) (uint64, error) { return f.finalized, f.err }
func (f *fakeChain) Slot(context.Context) (uint64, error) { return f.tip, nil }

// slots pulados rolam para o próximo bloco produzido
func (f *fakeChain) Get(_ context.Context, slot uint64) (beacon.Value, error) {
	for s := slot; s <= f.finalized; s++ {
		if !f.skipped[s] {
			return valueAt(s), nil
		}
	}
	return beacon.Value{}, beacon.ErrUnavailable
}

func newStore(t *testing.T) *beacon.RedisStore {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return beacon.NewRedisStore(rdb, 0)
}

func TestTickBackfillsAndAdvances(t *testing.T) {
	ctx := context.Background()
	chain := &fakeChain{finalized: 100, tip: 132, skipped: map[uint64]bool{96: true}}
	store := newStore(t)
	var published []uint64
	p := &Poller{Log: zaptest.NewLogger(t), Source: chain, Sink: store, Backfill: 5,
		OnPublished: func(s uint64) { published = append(published, s) }}

	require.NoError(t, p.Tick(ctx))
	assert.Equal(t, []uint64{95, 96, 97, 98, 99, 100}, published)
	assert.Equal(t, uint64(101), p.Next())

	v, err := store.Get(ctx, 96)
	require.NoError(t, err)
	assert.Equal(t, valueAt(97), v, "skipped slot takes the next produced block")

	tip, err := store.Slot(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(132), tip)

	_, err = store.Get(ctx, 101)
	assert.ErrorIs(t, err, beacon.ErrUnavailable)

	chain.finalized, chain.tip = 103, 135
	require.NoError(t, p.Tick(ctx))
	assert.Equal(t, uint64(104), p.Next())
	v, err = store.Get(ctx, 103)
	require.NoError(t, err)
	assert.Equal(t, valueAt(103), v)
}

func TestTickCapsCatchUp(t *testing.T) {
	chain := &fakeChain{finalized: 10_000, tip: 10_032}
	p := &Poller{Log: zaptest.NewLogger(t), Source: chain, Sink: newStore(t), Backfill: 1_000}
	require.NoError(t, p.Tick(context.Background()))
	assert.Equal(t, uint64(9_000+maxSlotsPerTick), p.Next())
}

func TestTickSourceError(t *testing.T) {
	chain := &fakeChain{err: errors.New("rpc down")}
	stages := map[string]int{}
	p := &Poller{Log: zaptest.NewLogger(t), Source: chain, Sink: newStore(t),
		OnError: func(s string) { stages[s]++ }}
	assert.Error(t, p.Tick(context.Background()))
	assert.Equal(t, 1, stages["finalized_slot"])
	assert.Zero(t, p.Next())
}
