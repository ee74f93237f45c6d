package poller

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/provably-fair-dice/internal/dice/beacon"
)

func TestSimulatorFinality(t *testing.T) {
	ctx := context.Background()
	start := time.Unix(1_700_000_000, 0)
	now := start
	s := NewSimulator("local", 400*time.Millisecond)
	s.Start = start
	s.Now = func() time.Time { return now }

	_, err := s.Get(ctx, 1)
	assert.ErrorIs(t, err, beacon.ErrUnavailable)

	now = start.Add(100 * 400 * time.Millisecond)
	tip, err := s.Slot(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), tip)
	fin, err := s.FinalizedSlot(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(68), fin)

	v1, err := s.Get(ctx, 68)
	require.NoError(t, err)
	v2, err := s.Get(ctx, 68)
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	v3, err := s.Get(ctx, 67)
	require.NoError(t, err)
	assert.NotEqual(t, v1, v3)

	_, err = s.Get(ctx, 69)
	assert.ErrorIs(t, err, beacon.ErrUnavailable)
}

func TestPollerWithSimulator(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	s := NewSimulator("local", time.Second)
	s.Start = start
	s.Now = func() time.Time { return start.Add(50 * time.Second) }

	store := newStore(t)
	p := &Poller{Log: zaptest.NewLogger(t), Source: s, Sink: store, Backfill: 10}
	require.NoError(t, p.Tick(context.Background()))
	assert.Equal(t, uint64(19), p.Next())

	want, err := s.Get(context.Background(), 18)
	require.NoError(t, err)
	got, err := store.Get(context.Background(), 18)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPollerFeedsMemoryBeacon(t *testing.T) {
	ctx := context.Background()
	start := time.Unix(1_700_000_000, 0)
	now := start.Add(40 * time.Second)
	s := NewSimulator("dice-service", time.Second)
	s.Start = start
	s.Now = func() time.Time { return now }

	mem := beacon.NewMemory()
	p := &Poller{Log: zaptest.NewLogger(t), Source: s, Sink: MemorySink{Beacons: mem}, Backfill: 4}
	require.NoError(t, p.Tick(ctx))

	tip, err := mem.Slot(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), tip)
	want, err := s.Get(ctx, 8)
	require.NoError(t, err)
	got, err := mem.Get(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// o beacon do slot seguinte ao tip só aparece depois da finalização
	_, err = mem.Get(ctx, tip+1)
	assert.ErrorIs(t, err, beacon.ErrUnavailable)

	now = start.Add(80 * time.Second)
	require.NoError(t, p.Tick(ctx))
	_, err = mem.Get(ctx, tip+1)
	assert.NoError(t, err)
}
