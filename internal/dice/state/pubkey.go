package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/mr-tron/base58"
)

// PubkeyLen é o tamanho fixo de uma identidade pública (ed25519)
const PubkeyLen = 32

var ErrInvalidPubkey = errors.New("invalid pubkey")

// Pubkey identifica jogadores, a casa, o programa e endereços derivados
type Pubkey [PubkeyLen]byte

// ParsePubkey decodifica uma chave em base58
func ParsePubkey(s string) (Pubkey, error) {
	var pk Pubkey
	b, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("%w: %v", ErrInvalidPubkey, err)
	}
	if len(b) != PubkeyLen {
		return pk, fmt.Errorf("%w: %d bytes", ErrInvalidPubkey, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

func MustPubkey(s string) Pubkey {
	pk, err := ParsePubkey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

func (p Pubkey) String() string { return base58.Encode(p[:]) }

func (p Pubkey) IsZero() bool { return p == Pubkey{} }

func (p Pubkey) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Pubkey) UnmarshalText(b []byte) error {
	pk, err := ParsePubkey(string(b))
	if err != nil {
		return err
	}
	*p = pk
	return nil
}

var ErrInvalidSeed = errors.New("invalid u128 seed")

var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Uint128 guarda o seed de 128 bits escolhido pelo cliente
type Uint128 struct {
	Lo uint64
	Hi uint64
}

func NewUint128(v uint64) Uint128 { return Uint128{Lo: v} }

// ParseUint128 aceita a representação decimal (como o cliente envia no JSON)
func ParseUint128(s string) (Uint128, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 || n.Cmp(maxUint128) > 0 {
		return Uint128{}, fmt.Errorf("%w: %q", ErrInvalidSeed, s)
	}
	return Uint128FromBig(n), nil
}

// Uint128FromBig assume 0 <= n < 2^128
func Uint128FromBig(n *big.Int) Uint128 {
	lo := new(big.Int).And(n, new(big.Int).SetUint64(^uint64(0)))
	hi := new(big.Int).Rsh(n, 64)
	return Uint128{Lo: lo.Uint64(), Hi: hi.Uint64()}
}

func (u Uint128) Big() *big.Int {
	n := new(big.Int).SetUint64(u.Hi)
	n.Lsh(n, 64)
	return n.Or(n, new(big.Int).SetUint64(u.Lo))
}

func (u Uint128) String() string { return u.Big().String() }

// Bytes retorna os 16 bytes little-endian
func (u Uint128) Bytes() []byte {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint64(b[:8], u.Lo)
	binary.LittleEndian.PutUint64(b[8:], u.Hi)
	return b
}

func (u Uint128) MarshalText() ([]byte, error) { return []byte(u.String()), nil }

func (u *Uint128) UnmarshalText(b []byte) error {
	v, err := ParseUint128(string(b))
	if err != nil {
		return err
	}
	*u = v
	return nil
}
