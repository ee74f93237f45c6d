package state

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPlayer() Pubkey {
	var p Pubkey
	for i := range p {
		p[i] = byte(i + 1)
	}
	return p
}

func sampleBet() Bet {
	return Bet{
		Player: testPlayer(),
		Seed:   NewUint128(42),
		Slot:   1000,
		Amount: 5_000_000,
		Roll:   50,
		Bump:   3,
	}
}

func TestEncodeKnownLayout(t *testing.T) {
	b := sampleBet()
	enc := b.Encode()
	require.Len(t, enc, EncodedLen)
	require.Equal(t, 66, EncodedLen)

	want := make([]byte, 0, 66)
	p := testPlayer()
	want = append(want, p[:]...)
	seed := make([]byte, 16)
	seed[0] = 42
	want = append(want, seed...)
	want = binary.LittleEndian.AppendUint64(want, 1000)
	want = binary.LittleEndian.AppendUint64(want, 5_000_000)
	want = append(want, 50, 3)

	assert.Equal(t, want, enc)
	// 1000 = 0x03E8, little-endian
	assert.Equal(t, []byte{0xE8, 0x03, 0, 0, 0, 0, 0, 0}, enc[48:56])
}

func TestEncodeFixedLengthAtBoundaries(t *testing.T) {
	cases := map[string]Bet{
		"zero":        {},
		"max amount":  {Amount: math.MaxUint64},
		"max seed":    {Seed: Uint128{Lo: math.MaxUint64, Hi: math.MaxUint64}},
		"zero slot":   {Slot: 0, Amount: 1, Roll: 1},
		"max all":     {Player: Pubkey{0xff}, Seed: Uint128{Lo: math.MaxUint64, Hi: math.MaxUint64}, Slot: math.MaxUint64, Amount: math.MaxUint64, Roll: 255, Bump: 255},
		"sample bet": sampleBet(),
	}
	for name, b := range cases {
		b := b
		t.Run(name, func(t *testing.T) {
			assert.Len(t, b.Encode(), EncodedLen)
			assert.Len(t, b.MarshalAccount(), AccountLen)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	bets := []Bet{
		sampleBet(),
		{},
		{Player: Pubkey{9}, Seed: Uint128{Lo: 1, Hi: math.MaxUint64}, Slot: math.MaxUint64, Amount: math.MaxUint64, Roll: 99, Bump: 255},
	}
	for _, b := range bets {
		got, err := DecodeBet(b.Encode())
		require.NoError(t, err)
		assert.Equal(t, b, *got)

		acc, err := UnmarshalAccount(b.MarshalAccount())
		require.NoError(t, err)
		assert.Equal(t, b, *acc)
	}
}

func TestEncodeIsInjectivePerField(t *testing.T) {
	base := sampleBet()
	baseEnc := base.Encode()

	mutations := map[string]func(*Bet){
		"player":  func(b *Bet) { b.Player[31] ^= 1 },
		"seed lo": func(b *Bet) { b.Seed.Lo++ },
		"seed hi": func(b *Bet) { b.Seed.Hi++ },
		"slot":    func(b *Bet) { b.Slot++ },
		"amount":  func(b *Bet) { b.Amount++ },
		"roll":    func(b *Bet) { b.Roll++ },
		"bump":    func(b *Bet) { b.Bump++ },
	}
	for name, mutate := range mutations {
		b := base
		mutate(&b)
		assert.False(t, bytes.Equal(baseEnc, b.Encode()), "changing %s must change the encoding", name)
	}
}

func TestUnmarshalAccountRejectsCorruptData(t *testing.T) {
	b := sampleBet()
	good := b.MarshalAccount()

	wrongTag := append([]byte(nil), good...)
	wrongTag[0] ^= 0xff

	cases := map[string][]byte{
		"empty":         nil,
		"short":         good[:AccountLen-1],
		"long":          append(append([]byte(nil), good...), 0),
		"no tag":        b.Encode(),
		"wrong tag":     wrongTag,
		"event payload": BetEvent{Bet: 7}.LogData(),
	}
	for name, data := range cases {
		_, err := UnmarshalAccount(data)
		assert.ErrorIs(t, err, ErrCorruptRecord, name)
	}

	_, err := DecodeBet(good)
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

func TestValidate(t *testing.T) {
	ok := sampleBet()
	require.NoError(t, ok.Validate(DefaultLimits))

	edges := []struct {
		name  string
		bet   func() Bet
		valid bool
	}{
		{"roll 1", func() Bet { b := sampleBet(); b.Roll = 1; return b }, true},
		{"roll 99", func() Bet { b := sampleBet(); b.Roll = 99; return b }, true},
		{"roll 0", func() Bet { b := sampleBet(); b.Roll = 0; return b }, false},
		{"roll 100", func() Bet { b := sampleBet(); b.Roll = 100; return b }, false},
		{"amount 0", func() Bet { b := sampleBet(); b.Amount = 0; return b }, false},
		{"no player", func() Bet { b := sampleBet(); b.Player = Pubkey{}; return b }, false},
	}
	for _, tc := range edges {
		b := tc.bet()
		err := b.Validate(DefaultLimits)
		if tc.valid {
			assert.NoError(t, err, tc.name)
		} else {
			assert.ErrorIs(t, err, ErrInvalidBetParameters, tc.name)
		}
	}

	strict := Limits{MinAmount: 1000, MinRoll: 2, MaxRoll: 96}
	b := sampleBet()
	b.Roll = 97
	assert.ErrorIs(t, b.Validate(strict), ErrInvalidBetParameters)
	b.Roll = 50
	b.Amount = 999
	assert.ErrorIs(t, b.Validate(strict), ErrInvalidBetParameters)
}

func TestBeaconSlotIsStrictlyLater(t *testing.T) {
	b := sampleBet()
	assert.Equal(t, uint64(1001), b.BeaconSlot())
}

func TestBetEvent(t *testing.T) {
	ev := BetEvent{Bet: 37}
	assert.Equal(t, []byte{37}, ev.Payload())

	got, err := DecodeBetEvent(ev.LogData())
	require.NoError(t, err)
	assert.Equal(t, ev, got)

	_, err = DecodeBetEvent([]byte{37})
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

func TestUint128(t *testing.T) {
	u, err := ParseUint128("340282366920938463463374607431768211455")
	require.NoError(t, err)
	assert.Equal(t, Uint128{Lo: math.MaxUint64, Hi: math.MaxUint64}, u)
	assert.Equal(t, "340282366920938463463374607431768211455", u.String())

	u, err = ParseUint128("18446744073709551616")
	require.NoError(t, err)
	assert.Equal(t, Uint128{Lo: 0, Hi: 1}, u)
	assert.Equal(t, append(make([]byte, 8), 1, 0, 0, 0, 0, 0, 0, 0), u.Bytes())

	for _, bad := range []string{"", "-1", "abc", "340282366920938463463374607431768211456"} {
		_, err := ParseUint128(bad)
		assert.ErrorIs(t, err, ErrInvalidSeed, bad)
	}
}

func TestPubkeyText(t *testing.T) {
	p := testPlayer()
	parsed, err := ParsePubkey(p.String())
	require.NoError(t, err)
	assert.Equal(t, p, parsed)

	_, err = ParsePubkey("111")
	assert.ErrorIs(t, err, ErrInvalidPubkey)
	_, err = ParsePubkey("0OIl")
	assert.ErrorIs(t, err, ErrInvalidPubkey)
}
