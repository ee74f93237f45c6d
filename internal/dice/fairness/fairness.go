// Package fairness deriva o resultado de uma aposta a partir do registro
// codificado e do beacon do slot seguinte. Qualquer terceiro recalcula o mesmo
// resultado com dados públicos.
package fairness

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/radieske/provably-fair-dice/internal/dice/beacon"
	"github.com/radieske/provably-fair-dice/internal/dice/state"
)

const (
	// Sides: o resultado cai em [0, Sides-1]
	Sides = 100

	// DefaultHouseEdgeBps = 1,5%
	DefaultHouseEdgeBps = 150

	bpsDenominator = 10_000
)

var (
	ErrBeaconTooEarly = errors.New("beacon slot is not after bet slot")
	ErrPayoutOverflow = errors.New("payout overflows u64")
	ErrInvalidEdge    = errors.New("house edge must be below 10000 bps")
)

// acceptLimit é o maior múltiplo de Sides que cabe em u64; palavras acima dele são rejeitadas
const acceptLimit uint64 = math.MaxUint64 - (math.MaxUint64 % Sides)

// Outcome é o resultado verificável de uma resolução
type Outcome struct {
	Outcome    uint8        `json:"outcome"`
	Win        bool         `json:"win"`
	Payout     uint64       `json:"payout"`
	BeaconSlot uint64       `json:"beacon_slot"`
	Beacon     beacon.Value `json:"-"`
}

// Preimage = Encode(bet) || beacon
func Preimage(bet *state.Bet, value beacon.Value) []byte {
	out := bet.AppendEncode(make([]byte, 0, state.EncodedLen+len(value)))
	return append(out, value[:]...)
}

// RollOutcome sorteia o número em [0, 99] por rejection sampling sobre sha256
func RollOutcome(bet *state.Bet, beaconSlot uint64, value beacon.Value) (uint8, error) {
	if beaconSlot <= bet.Slot {
		return 0, fmt.Errorf("%w: beacon slot %d, bet slot %d", ErrBeaconTooEarly, beaconSlot, bet.Slot)
	}
	return outcomeFromDigest(sha256.Sum256(Preimage(bet, value))), nil
}

func outcomeFromDigest(h [32]byte) uint8 {
	for {
		for i := 0; i < len(h); i += 8 {
			w := binary.LittleEndian.Uint64(h[i : i+8])
			if w < acceptLimit {
				return uint8(w % Sides)
			}
		}
		// as quatro palavras foram rejeitadas: re-hash determinístico
		h = sha256.Sum256(h[:])
	}
}

// Wins: "roll under", o jogador ganha se o número sorteado for menor que roll
func Wins(outcome, roll uint8) bool { return outcome < roll }

// Payout = floor(amount * (10000 - edge) / (roll * 100)), já incluindo a aposta
func Payout(amount uint64, roll uint8, houseEdgeBps uint16) (uint64, error) {
	if houseEdgeBps >= bpsDenominator {
		return 0, ErrInvalidEdge
	}
	if roll == 0 || roll >= Sides {
		return 0, fmt.Errorf("%w: roll %d", state.ErrInvalidBetParameters, roll)
	}
	num := decimal.NewFromBigInt(new(big.Int).SetUint64(amount), 0).
		Mul(decimal.NewFromInt(int64(bpsDenominator - int(houseEdgeBps))))
	den := decimal.NewFromInt(int64(roll) * Sides)

	q, _ := num.QuoRem(den, 0)
	out := q.BigInt()
	if !out.IsUint64() {
		return 0, fmt.Errorf("%w: amount %d roll %d", ErrPayoutOverflow, amount, roll)
	}
	return out.Uint64(), nil
}

// Resolve combina sorteio, regra de vitória e pagamento
func Resolve(bet *state.Bet, beaconSlot uint64, value beacon.Value, houseEdgeBps uint16) (Outcome, error) {
	n, err := RollOutcome(bet, beaconSlot, value)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{
		Outcome:    n,
		Win:        Wins(n, bet.Roll),
		BeaconSlot: beaconSlot,
		Beacon:     value,
	}
	if out.Win {
		if out.Payout, err = Payout(bet.Amount, bet.Roll, houseEdgeBps); err != nil {
			return Outcome{}, err
		}
	}
	return out, nil
}

// Event é o BetEvent correspondente ao resultado
func (o Outcome) Event() state.BetEvent { return state.BetEvent{Bet: o.Outcome} }
