package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/stretchr/testify/require"

	"apibaraDeserializer/internal/cairo"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// newTestServer answers JSON-RPC calls from results, keyed by method name,
// and records the params of every call.
func newTestServer(t *testing.T, results map[string]any) (*Client, map[string][]json.RawMessage) {
	t.Helper()
	var mu sync.Mutex
	seen := make(map[string][]json.RawMessage)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		seen[req.Method] = req.Params
		mu.Unlock()

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if result, ok := results[req.Method]; ok {
			resp["result"] = result
		} else {
			resp["error"] = map[string]any{"code": 24, "message": "Block not found"}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(context.Background(), srv.URL)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client, seen
}

func TestGetContractParsesClassABI(t *testing.T) {
	abi := `[{"type":"event","name":"Transfer","keys":[],"data":[{"name":"from_","type":"felt"}]}]`
	client, seen := newTestServer(t, map[string]any{
		"starknet_getClassAt": map[string]any{"abi": abi, "program": ""},
	})

	address := new(felt.Felt).SetUint64(0xabc)
	contract, err := client.GetContract(context.Background(), address)
	require.NoError(t, err)
	require.Equal(t, address, contract.Address)

	ev, err := contract.ABI.EventBySelector(cairo.Selector("Transfer"))
	require.NoError(t, err)
	require.Equal(t, "Transfer", ev.Name)

	require.Len(t, seen["starknet_getClassAt"], 2)
	require.JSONEq(t, `"latest"`, string(seen["starknet_getClassAt"][0]))
}

func TestGetBlock(t *testing.T) {
	client, seen := newTestServer(t, map[string]any{
		"starknet_getBlockWithTxHashes": map[string]any{
			"block_number": 42,
			"block_hash":   "0x1",
			"parent_hash":  "0x2",
			"timestamp":    1650000000,
			"status":       "ACCEPTED_ON_L2",
		},
	})

	block, err := client.GetBlock(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, uint64(42), block.Number)
	require.Equal(t, uint64(1650000000), block.Timestamp)
	require.Equal(t, new(felt.Felt).SetUint64(1), block.Hash)
	require.JSONEq(t, `{"block_number":42}`, string(seen["starknet_getBlockWithTxHashes"][0]))
}

func TestGetBlockError(t *testing.T) {
	client, _ := newTestServer(t, nil)

	_, err := client.GetBlock(context.Background(), 7)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Block not found")
}

func TestGetEvents(t *testing.T) {
	client, seen := newTestServer(t, map[string]any{
		"starknet_getEvents": map[string]any{
			"events": []map[string]any{{
				"from_address":     "0x49d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dc7",
				"keys":             []string{"0x99cd8bde557814842a3121e8ddfd433a539b8c9f14bf31ebf108d12e6196e9"},
				"data":             []string{"0x1", "0x2", "0x3e8"},
				"block_number":     10,
				"block_hash":       "0xa",
				"transaction_hash": "0xb",
			}},
			"continuation_token": "10-1",
		},
	})

	page, err := client.GetEvents(context.Background(), EventFilter{
		FromBlock: 1,
		ToBlock:   10,
		Keys:      [][]*felt.Felt{{cairo.Selector("Transfer")}},
	}, "")
	require.NoError(t, err)
	require.Equal(t, "10-1", page.ContinuationToken)
	require.Len(t, page.Events, 1)
	require.Equal(t, cairo.Selector("Transfer"), page.Events[0].Selector())
	require.Equal(t, uint64(10), page.Events[0].BlockNumber)
	require.Len(t, page.Events[0].Data, 3)

	var filter map[string]any
	require.NoError(t, json.Unmarshal(seen["starknet_getEvents"][0], &filter))
	require.Equal(t, float64(DefaultChunkSize), filter["chunk_size"])
	require.NotContains(t, filter, "continuation_token")
	require.NotContains(t, filter, "address")
}

func TestBlockNumber(t *testing.T) {
	client, _ := newTestServer(t, map[string]any{"starknet_blockNumber": 123})

	n, err := client.BlockNumber(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(123), n)
}
