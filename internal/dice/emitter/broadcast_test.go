package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/provably-fair-dice/pkg/contracts/events"
)

func TestRedisBroadcasterPublishes(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	sub := rdb.Subscribe(ctx, ChannelBetsBroadcast)
	defer sub.Close()
	_, err := sub.Receive(ctx) // confirmação da inscrição
	require.NoError(t, err)

	b := NewRedisBroadcaster(rdb)
	require.NoError(t, b.Emit(ctx, events.BetResolved{Address: "A", Player: "P", Outcome: 12}))

	select {
	case msg := <-sub.Channel():
		var u WSUpdate
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &u))
		assert.Equal(t, "resolved", u.Type)
		assert.Equal(t, "P", u.Player)
	case <-time.After(2 * time.Second):
		t.Fatal("no message on channel")
	}
}

type failing struct{ Nop }

func (failing) Emit(context.Context, events.BetResolved) error { return errors.New("down") }

func TestMultiDeliversToAll(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	m := Multi{a, failing{}, b}

	err := m.Emit(context.Background(), events.BetResolved{Address: "x"})
	assert.Error(t, err)
	assert.Len(t, a.Resolved, 1)
	assert.Len(t, b.Resolved, 1)

	assert.NoError(t, m.EmitRefund(context.Background(), events.BetRefunded{Address: "x"}))
	assert.Len(t, b.Refunded, 1)
}
