package state

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// EncodedLen = 32 (player) + 16 (seed) + 8 (slot) + 8 (amount) + 1 (roll) + 1 (bump)
	EncodedLen       = PubkeyLen + 16 + 8 + 8 + 1 + 1
	DiscriminatorLen = 8
	// AccountLen é o tamanho persistido: tag de tipo + registro codificado
	AccountLen = DiscriminatorLen + EncodedLen
)

var (
	ErrCorruptRecord        = errors.New("corrupt bet record")
	ErrInvalidBetParameters = errors.New("invalid bet parameters")
)

// BetDiscriminator é a tag de tipo gravada antes do registro: sha256("account:Bet")[:8]
var BetDiscriminator = discriminator("account:Bet")

func discriminator(name string) [DiscriminatorLen]byte {
	var d [DiscriminatorLen]byte
	sum := sha256.Sum256([]byte(name))
	copy(d[:], sum[:DiscriminatorLen])
	return d
}

// Bet é o compromisso imutável de uma aposta.
// Nenhum campo muda depois da criação; a resolução só lê e depois fecha a conta.
type Bet struct {
	Player Pubkey  `json:"player"`
	Seed   Uint128 `json:"seed"`
	Slot   uint64  `json:"slot"`
	Amount uint64  `json:"amount"`
	Roll   uint8   `json:"roll"`
	Bump   uint8   `json:"bump"`
}

// Encode produz os 66 bytes canônicos do registro (layout de storage e preimage do hash)
func (b *Bet) Encode() []byte {
	return b.AppendEncode(make([]byte, 0, EncodedLen))
}

// AppendEncode anexa a codificação canônica em dst
func (b *Bet) AppendEncode(dst []byte) []byte {
	dst = append(dst, b.Player[:]...)
	dst = binary.LittleEndian.AppendUint64(dst, b.Seed.Lo)
	dst = binary.LittleEndian.AppendUint64(dst, b.Seed.Hi)
	dst = binary.LittleEndian.AppendUint64(dst, b.Slot)
	dst = binary.LittleEndian.AppendUint64(dst, b.Amount)
	return append(dst, b.Roll, b.Bump)
}

// DecodeBet é o inverso de Encode; qualquer tamanho diferente de 66 é rejeitado
func DecodeBet(data []byte) (*Bet, error) {
	if len(data) != EncodedLen {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrCorruptRecord, EncodedLen, len(data))
	}
	var b Bet
	copy(b.Player[:], data[:32])
	b.Seed.Lo = binary.LittleEndian.Uint64(data[32:40])
	b.Seed.Hi = binary.LittleEndian.Uint64(data[40:48])
	b.Slot = binary.LittleEndian.Uint64(data[48:56])
	b.Amount = binary.LittleEndian.Uint64(data[56:64])
	b.Roll = data[64]
	b.Bump = data[65]
	return &b, nil
}

// MarshalAccount gera os 74 bytes da conta: discriminator || Encode()
func (b *Bet) MarshalAccount() []byte {
	out := make([]byte, 0, AccountLen)
	out = append(out, BetDiscriminator[:]...)
	return b.AppendEncode(out)
}

// UnmarshalAccount valida tamanho e tag antes de decodificar; nunca decodifica parcialmente
func UnmarshalAccount(data []byte) (*Bet, error) {
	if len(data) != AccountLen {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrCorruptRecord, AccountLen, len(data))
	}
	if !bytes.Equal(data[:DiscriminatorLen], BetDiscriminator[:]) {
		return nil, fmt.Errorf("%w: discriminator mismatch", ErrCorruptRecord)
	}
	return DecodeBet(data[DiscriminatorLen:])
}

// BeaconSlot é o único slot cujo beacon governa a resolução.
// Sempre estritamente maior que o slot da aposta.
func (b *Bet) BeaconSlot() uint64 { return b.Slot + 1 }

// Limits define as regras de colocação configuradas no serviço
type Limits struct {
	MinAmount uint64
	MinRoll   uint8
	MaxRoll   uint8
}

// DefaultLimits: amount > 0 e 1 <= roll <= 99, mantendo as duas saídas possíveis
var DefaultLimits = Limits{MinAmount: 1, MinRoll: 1, MaxRoll: 99}

func (b *Bet) Validate(l Limits) error {
	minAmount := l.MinAmount
	if minAmount == 0 {
		minAmount = 1
	}
	if b.Amount < minAmount {
		return fmt.Errorf("%w: amount %d below minimum %d", ErrInvalidBetParameters, b.Amount, minAmount)
	}
	if b.Roll < l.MinRoll || b.Roll > l.MaxRoll || b.Roll == 0 || b.Roll > 99 {
		return fmt.Errorf("%w: roll %d outside [%d, %d]", ErrInvalidBetParameters, b.Roll, l.MinRoll, l.MaxRoll)
	}
	if b.Player.IsZero() {
		return fmt.Errorf("%w: empty player", ErrInvalidBetParameters)
	}
	return nil
}
