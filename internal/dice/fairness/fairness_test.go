package fairness

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/provably-fair-dice/internal/dice/beacon"
	"github.com/radieske/provably-fair-dice/internal/dice/state"
)

func sampleBet() *state.Bet {
	var p state.Pubkey
	for i := range p {
		p[i] = byte(i + 1)
	}
	return &state.Bet{Player: p, Seed: state.NewUint128(42), Slot: 1000, Amount: 5_000_000, Roll: 50, Bump: 3}
}

func beaconFor(i uint64) beacon.Value {
	var v beacon.Value
	binary.LittleEndian.PutUint64(v[:8], i)
	v[31] = 0x5a
	return v
}

func TestPreimage(t *testing.T) {
	bet := sampleBet()
	v := beaconFor(1)
	pre := Preimage(bet, v)
	require.Len(t, pre, state.EncodedLen+32)
	assert.Equal(t, bet.Encode(), pre[:state.EncodedLen])
	assert.Equal(t, v[:], pre[state.EncodedLen:])
}

func TestRollOutcomeIsDeterministic(t *testing.T) {
	bet := sampleBet()
	v := beaconFor(99)

	first, err := RollOutcome(bet, bet.BeaconSlot(), v)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := RollOutcome(sampleBet(), 1001, v)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	o1, err := Resolve(bet, 1001, v, DefaultHouseEdgeBps)
	require.NoError(t, err)
	o2, err := Resolve(bet, 1001, v, DefaultHouseEdgeBps)
	require.NoError(t, err)
	assert.Equal(t, o1, o2)
}

func TestRollOutcomeRejectsStaleBeacon(t *testing.T) {
	bet := sampleBet()
	for _, slot := range []uint64{0, 999, 1000} {
		_, err := RollOutcome(bet, slot, beaconFor(1))
		assert.ErrorIs(t, err, ErrBeaconTooEarly, "slot %d", slot)
	}
	_, err := Resolve(bet, 1000, beaconFor(1), DefaultHouseEdgeBps)
	assert.ErrorIs(t, err, ErrBeaconTooEarly)

	_, err = RollOutcome(bet, 1001, beaconFor(1))
	assert.NoError(t, err)
}

func TestOutcomeRangeAndSpread(t *testing.T) {
	bet := sampleBet()
	var counts [Sides]int
	const samples = 10_000
	for i := uint64(0); i < samples; i++ {
		n, err := RollOutcome(bet, 1001, beaconFor(i))
		require.NoError(t, err)
		require.Less(t, n, uint8(Sides))
		counts[n]++
	}
	for n, c := range counts {
		assert.True(t, c > 50 && c < 150, "outcome %d drawn %d times", n, c)
	}
}

func TestOutcomeFromDigestRejectsBiasedWords(t *testing.T) {
	var h [32]byte
	binary.LittleEndian.PutUint64(h[0:8], math.MaxUint64)
	binary.LittleEndian.PutUint64(h[8:16], acceptLimit)
	binary.LittleEndian.PutUint64(h[16:24], 1234)
	assert.Equal(t, uint8(34), outcomeFromDigest(h))

	binary.LittleEndian.PutUint64(h[0:8], acceptLimit-1)
	assert.Equal(t, uint8((acceptLimit-1)%Sides), outcomeFromDigest(h))

	var all [32]byte
	for i := range all {
		all[i] = 0xff
	}
	n := outcomeFromDigest(all)
	assert.Less(t, n, uint8(Sides))
	assert.Equal(t, n, outcomeFromDigest(all))
}

func TestWins(t *testing.T) {
	assert.True(t, Wins(37, 50))
	assert.False(t, Wins(50, 50))
	assert.False(t, Wins(99, 50))
	assert.True(t, Wins(0, 1))
	assert.False(t, Wins(99, 99))
}

func TestPayout(t *testing.T) {
	p, err := Payout(5_000_000, 50, DefaultHouseEdgeBps)
	require.NoError(t, err)
	assert.Equal(t, uint64(9_850_000), p)

	p, err = Payout(100, 99, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(101), p)

	p, err = Payout(1_000_000, 1, DefaultHouseEdgeBps)
	require.NoError(t, err)
	assert.Equal(t, uint64(98_500_000), p)

	_, err = Payout(math.MaxUint64, 1, 0)
	assert.ErrorIs(t, err, ErrPayoutOverflow)

	_, err = Payout(100, 50, 10_000)
	assert.ErrorIs(t, err, ErrInvalidEdge)

	_, err = Payout(100, 0, 0)
	assert.ErrorIs(t, err, state.ErrInvalidBetParameters)
}

func TestResolveLossHasNoPayout(t *testing.T) {
	bet := sampleBet()
	for i := uint64(0); i < 200; i++ {
		o, err := Resolve(bet, 1001, beaconFor(i), DefaultHouseEdgeBps)
		require.NoError(t, err)
		assert.Equal(t, o.Outcome < bet.Roll, o.Win)
		if o.Win {
			assert.Equal(t, uint64(9_850_000), o.Payout)
		} else {
			assert.Zero(t, o.Payout)
		}
		assert.Equal(t, state.BetEvent{Bet: o.Outcome}, o.Event())
	}
}
