package beacon

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go/rpc"
)

// RPC lê o beacon direto de um nó Solana.
//
// O beacon de um slot s é o blockhash do primeiro bloco finalizado com slot >= s.
// Slots pulados avançam para o próximo bloco produzido, que continua desconhecido
// até ser produzido depois de s.
type RPC struct {
	Client *rpc.Client
}

func NewRPC(endpoint string) *RPC { return &RPC{Client: rpc.New(endpoint)} }

func (r *RPC) Get(ctx context.Context, slot uint64) (Value, error) {
	produced, err := r.ProducedSlot(ctx, slot)
	if err != nil {
		return Value{}, err
	}

	rewards := false
	maxVersion := uint64(0)
	blk, err := r.Client.GetBlockWithOpts(ctx, produced, &rpc.GetBlockOpts{
		TransactionDetails:             rpc.TransactionDetailsNone,
		Rewards:                        &rewards,
		Commitment:                     rpc.CommitmentFinalized,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		return Value{}, fmt.Errorf("rpc getBlock %d: %w", produced, err)
	}
	if blk == nil {
		return Value{}, fmt.Errorf("%w: block %d not returned", ErrUnavailable, produced)
	}
	return Value(blk.Blockhash), nil
}

// ProducedSlot devolve o primeiro slot finalizado >= slot
func (r *RPC) ProducedSlot(ctx context.Context, slot uint64) (uint64, error) {
	blocks, err := r.Client.GetBlocksWithLimit(ctx, slot, 1, rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("rpc getBlocksWithLimit %d: %w", slot, err)
	}
	if blocks == nil || len(*blocks) == 0 {
		return 0, fmt.Errorf("%w: no finalized block at or after slot %d", ErrUnavailable, slot)
	}
	return (*blocks)[0], nil
}

// Slot é o slot processado mais recente (ponta da chain)
func (r *RPC) Slot(ctx context.Context) (uint64, error) {
	s, err := r.Client.GetSlot(ctx, rpc.CommitmentProcessed)
	if err != nil {
		return 0, fmt.Errorf("rpc getSlot: %w", err)
	}
	return s, nil
}

func (r *RPC) FinalizedSlot(ctx context.Context) (uint64, error) {
	s, err := r.Client.GetSlot(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("rpc getSlot finalized: %w", err)
	}
	return s, nil
}
