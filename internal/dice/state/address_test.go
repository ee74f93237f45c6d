package state

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testProgram = Pubkey{0xd1, 0xce}

func TestFindBetAddressIsDeterministic(t *testing.T) {
	player := testPlayer()
	seed := NewUint128(42)

	a1, bump1, err := FindBetAddress(testProgram, player, seed)
	require.NoError(t, err)
	a2, bump2, err := FindBetAddress(testProgram, player, seed)
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
	assert.Equal(t, bump1, bump2)
	assert.False(t, isOnCurve(a1))
}

func TestBetAddressRevalidatesWithStoredBump(t *testing.T) {
	b := sampleBet()
	addr, bump, err := FindBetAddress(testProgram, b.Player, b.Seed)
	require.NoError(t, err)
	b.Bump = bump

	got, err := b.Address(testProgram)
	require.NoError(t, err)
	assert.Equal(t, addr, got)
	assert.NoError(t, b.VerifyAddress(testProgram, addr))

	other := b
	other.Seed = NewUint128(43)
	assert.ErrorIs(t, other.VerifyAddress(testProgram, addr), ErrWrongAddress)
	assert.ErrorIs(t, b.VerifyAddress(Pubkey{1}, addr), ErrWrongAddress)
}

func TestAddressesDifferPerPlayerAndSeed(t *testing.T) {
	p1 := testPlayer()
	p2 := p1
	p2[0] ^= 0xff

	a, _, err := FindBetAddress(testProgram, p1, NewUint128(1))
	require.NoError(t, err)
	b, _, err := FindBetAddress(testProgram, p1, NewUint128(2))
	require.NoError(t, err)
	c, _, err := FindBetAddress(testProgram, p2, NewUint128(1))
	require.NoError(t, err)
	vault, _, err := FindVaultAddress(testProgram, p1)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, vault)
}

func TestCreateProgramAddressSeedLimits(t *testing.T) {
	_, err := CreateProgramAddress([][]byte{bytes.Repeat([]byte{1}, MaxSeedLen+1)}, testProgram)
	assert.ErrorIs(t, err, ErrInvalidSeeds)

	tooMany := make([][]byte, MaxSeeds+1)
	_, err = CreateProgramAddress(tooMany, testProgram)
	assert.ErrorIs(t, err, ErrInvalidSeeds)
}
