package beacon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// fakeNode responde getBlocksWithLimit/getBlock a partir de um mapa slot -> blockhash
func fakeNode(t *testing.T, blocks map[uint64]Value) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var result any
		switch req.Method {
		case "getBlocksWithLimit":
			var start uint64
			require.NoError(t, json.Unmarshal(req.Params[0], &start))
			found := []uint64{}
			best := uint64(0)
			for s := range blocks {
				if s >= start && (best == 0 || s < best) {
					best = s
				}
			}
			if best != 0 {
				found = append(found, best)
			}
			result = found
		case "getBlock":
			var slot uint64
			require.NoError(t, json.Unmarshal(req.Params[0], &slot))
			v := blocks[slot]
			result = map[string]any{
				"blockhash":         base58.Encode(v[:]),
				"previousBlockhash": base58.Encode(make([]byte, 32)),
				"parentSlot":        slot - 1,
			}
		case "getSlot":
			result = 2000
		default:
			t.Fatalf("unexpected method %s", req.Method)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
	}))
}

func TestRPCBeaconRollsForwardOverSkippedSlots(t *testing.T) {
	v := Value{7, 7, 7}
	srv := fakeNode(t, map[uint64]Value{1003: v})
	defer srv.Close()

	b := NewRPC(srv.URL)
	ctx := context.Background()

	// 1001 e 1002 foram pulados: o beacon é o do bloco 1003
	got, err := b.Get(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = b.Get(ctx, 1004)
	assert.ErrorIs(t, err, ErrUnavailable)

	tip, err := b.Slot(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2000), tip)
}
