package chain

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/ethereum/go-ethereum/rpc"

	"apibaraDeserializer/internal/cairo"
	"apibaraDeserializer/internal/model"
)

// Client wraps a go-ethereum RPC client speaking the StarkNet JSON-RPC API.
type Client struct {
	rpcClient *rpc.Client
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return &Client{rpcClient: rpcClient}, nil
}

// NewClientFromRPC wraps an existing RPC client.
func NewClientFromRPC(rpcClient *rpc.Client) *Client {
	return &Client{rpcClient: rpcClient}
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// blockID is the StarkNet block_id parameter: a tag or a block number.
type blockID struct {
	Tag    string
	Number *uint64
}

func (b blockID) MarshalJSON() ([]byte, error) {
	if b.Number != nil {
		return json.Marshal(map[string]uint64{"block_number": *b.Number})
	}
	return json.Marshal(b.Tag)
}

var latest = blockID{Tag: "latest"}

func blockNumber(n uint64) blockID {
	return blockID{Number: &n}
}

// BlockNumber returns the latest accepted block number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var n uint64
	if err := c.rpcClient.CallContext(ctx, &n, "starknet_blockNumber"); err != nil {
		return 0, err
	}
	return n, nil
}

// GetContract fetches the class deployed at address and parses its ABI.
func (c *Client) GetContract(ctx context.Context, address *felt.Felt) (*model.Contract, error) {
	var class json.RawMessage
	if err := c.rpcClient.CallContext(ctx, &class, "starknet_getClassAt", latest, address); err != nil {
		return nil, err
	}
	abi, err := cairo.ABIFromClass(class)
	if err != nil {
		return nil, fmt.Errorf("contract %s: %w", address, err)
	}
	return &model.Contract{Address: address, ABI: abi}, nil
}

// GetBlock fetches the header fields of block number.
func (c *Client) GetBlock(ctx context.Context, number uint64) (*model.Block, error) {
	var block model.Block
	if err := c.rpcClient.CallContext(ctx, &block, "starknet_getBlockWithTxHashes", blockNumber(number)); err != nil {
		return nil, err
	}
	if block.Hash == nil {
		return nil, fmt.Errorf("block %d is pending or unknown", number)
	}
	return &block, nil
}

// EventFilter selects the events returned by GetEvents.
type EventFilter struct {
	FromBlock uint64
	ToBlock   uint64
	Address   *felt.Felt
	// Keys[i] lists the accepted values of the i-th key; an empty entry
	// matches anything.
	Keys      [][]*felt.Felt
	ChunkSize int
}

type eventFilterParam struct {
	FromBlock         blockID        `json:"from_block"`
	ToBlock           blockID        `json:"to_block"`
	Address           *felt.Felt     `json:"address,omitempty"`
	Keys              [][]*felt.Felt `json:"keys,omitempty"`
	ChunkSize         int            `json:"chunk_size"`
	ContinuationToken string         `json:"continuation_token,omitempty"`
}

// EventsPage is one page of starknet_getEvents results.
type EventsPage struct {
	Events            []model.Event `json:"events"`
	ContinuationToken string        `json:"continuation_token"`
}

// GetEvents fetches one page of events. Pass the previous page's
// ContinuationToken to continue; an empty token in the result means done.
func (c *Client) GetEvents(ctx context.Context, filter EventFilter, token string) (*EventsPage, error) {
	param := eventFilterParam{
		FromBlock:         blockNumber(filter.FromBlock),
		ToBlock:           blockNumber(filter.ToBlock),
		Address:           filter.Address,
		Keys:              filter.Keys,
		ChunkSize:         filter.ChunkSize,
		ContinuationToken: token,
	}
	if param.ChunkSize <= 0 {
		param.ChunkSize = DefaultChunkSize
	}

	var page EventsPage
	if err := c.rpcClient.CallContext(ctx, &page, "starknet_getEvents", param); err != nil {
		return nil, err
	}
	return &page, nil
}

// DefaultChunkSize is the page size used when EventFilter.ChunkSize is unset.
const DefaultChunkSize = 1000
