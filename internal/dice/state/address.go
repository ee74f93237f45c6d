package state

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

const (
	MaxSeeds   = 16
	MaxSeedLen = 32

	BetNamespace   = "bet"
	VaultNamespace = "vault"

	pdaMarker = "ProgramDerivedAddress"
)

var (
	ErrInvalidSeeds = errors.New("invalid address seeds")
	ErrOnCurve      = errors.New("derived address is on the ed25519 curve")
	ErrNoViableBump = errors.New("no viable bump seed")
	ErrWrongAddress = errors.New("address does not match derivation")
)

// CreateProgramAddress deriva um endereço sem chave privada:
// sha256(seeds... || program || "ProgramDerivedAddress").
// O resultado precisa estar fora da curva ed25519.
func CreateProgramAddress(seeds [][]byte, program Pubkey) (Pubkey, error) {
	if len(seeds) > MaxSeeds {
		return Pubkey{}, fmt.Errorf("%w: %d seeds", ErrInvalidSeeds, len(seeds))
	}
	h := sha256.New()
	for _, s := range seeds {
		if len(s) > MaxSeedLen {
			return Pubkey{}, fmt.Errorf("%w: seed of %d bytes", ErrInvalidSeeds, len(s))
		}
		h.Write(s)
	}
	h.Write(program[:])
	h.Write([]byte(pdaMarker))

	var out Pubkey
	copy(out[:], h.Sum(nil))
	if isOnCurve(out) {
		return Pubkey{}, ErrOnCurve
	}
	return out, nil
}

// FindProgramAddress busca o primeiro bump (de 255 para baixo) que gera endereço fora da curva
func FindProgramAddress(seeds [][]byte, program Pubkey) (Pubkey, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{uint8(bump)}
		addr, err := CreateProgramAddress(withBump, program)
		if errors.Is(err, ErrOnCurve) {
			continue
		}
		if err != nil {
			return Pubkey{}, 0, err
		}
		return addr, uint8(bump), nil
	}
	return Pubkey{}, 0, ErrNoViableBump
}

func isOnCurve(p Pubkey) bool {
	_, err := new(edwards25519.Point).SetBytes(p[:])
	return err == nil
}

// BetSeeds: ["bet", player, seed LE16]
func BetSeeds(player Pubkey, seed Uint128) [][]byte {
	return [][]byte{[]byte(BetNamespace), player[:], seed.Bytes()}
}

func FindBetAddress(program, player Pubkey, seed Uint128) (Pubkey, uint8, error) {
	return FindProgramAddress(BetSeeds(player, seed), program)
}

func FindVaultAddress(program, house Pubkey) (Pubkey, uint8, error) {
	return FindProgramAddress([][]byte{[]byte(VaultNamespace), house[:]}, program)
}

// Address recalcula o endereço com o bump guardado, sem busca
func (b *Bet) Address(program Pubkey) (Pubkey, error) {
	return CreateProgramAddress(append(BetSeeds(b.Player, b.Seed), []byte{b.Bump}), program)
}

// VerifyAddress confere que addr é o endereço canônico do registro
func (b *Bet) VerifyAddress(program, addr Pubkey) error {
	got, err := b.Address(program)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrongAddress, err)
	}
	if got != addr {
		return fmt.Errorf("%w: want %s, got %s", ErrWrongAddress, got, addr)
	}
	return nil
}
