package lookup

import (
	"context"
	"fmt"
	"reflect"

	"github.com/NethermindEth/juno/core/felt"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"apibaraDeserializer/internal/model"
)

// DefaultSize is the number of contracts and of blocks kept per cache.
const DefaultSize = 128

// Client is the network capability the deserializer needs.
type Client interface {
	GetContract(ctx context.Context, address *felt.Felt) (*model.Contract, error)
	GetBlock(ctx context.Context, number uint64) (*model.Block, error)
}

// Entries are keyed by client as well as by argument so that two clients
// pointed at different networks never share results.
type contractKey struct {
	client  Client
	address felt.Felt
}

type blockKey struct {
	client Client
	number uint64
}

// Cache memoizes contract and block lookups in two bounded LRU caches.
type Cache struct {
	contracts *lru.Cache[contractKey, *model.Contract]
	blocks    *lru.Cache[blockKey, *model.Block]
	logger    *zap.Logger
}

// Default is the process-wide cache.
var Default = MustNewCache(DefaultSize, nil)

// NewCache builds a Cache holding at most size contracts and size blocks.
func NewCache(size int, logger *zap.Logger) (*Cache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	contracts, err := lru.New[contractKey, *model.Contract](size)
	if err != nil {
		return nil, fmt.Errorf("contract cache: %w", err)
	}
	blocks, err := lru.New[blockKey, *model.Block](size)
	if err != nil {
		return nil, fmt.Errorf("block cache: %w", err)
	}
	return &Cache{contracts: contracts, blocks: blocks, logger: logger}, nil
}

// MustNewCache is NewCache that panics on an invalid size.
func MustNewCache(size int, logger *zap.Logger) *Cache {
	c, err := NewCache(size, logger)
	if err != nil {
		panic(err)
	}
	return c
}

// GetContract returns the contract at address, fetching it through client on
// a miss. Client errors are returned as-is and never cached.
func (c *Cache) GetContract(ctx context.Context, client Client, address *felt.Felt) (*model.Contract, error) {
	if client == nil {
		return nil, fmt.Errorf("starknet client is nil")
	}
	cacheable := address != nil && hashable(client)

	var key contractKey
	if cacheable {
		key = contractKey{client: client, address: *address}
		if contract, ok := c.contracts.Get(key); ok {
			return contract, nil
		}
	}

	c.logger.Debug("contract cache miss", zap.Stringer("address", address))
	contract, err := client.GetContract(ctx, address)
	if err != nil {
		return nil, err
	}

	if cacheable && contract != nil {
		c.contracts.Add(key, contract)
	}
	return contract, nil
}

// GetBlock returns block number, fetching it through client on a miss.
func (c *Cache) GetBlock(ctx context.Context, client Client, number uint64) (*model.Block, error) {
	if client == nil {
		return nil, fmt.Errorf("starknet client is nil")
	}
	cacheable := hashable(client)

	key := blockKey{number: number}
	if cacheable {
		key.client = client
		if block, ok := c.blocks.Get(key); ok {
			return block, nil
		}
	}

	c.logger.Debug("block cache miss", zap.Uint64("block_number", number))
	block, err := client.GetBlock(ctx, number)
	if err != nil {
		return nil, err
	}

	if cacheable && block != nil {
		c.blocks.Add(key, block)
	}
	return block, nil
}

// Len reports how many contracts and blocks are resident.
func (c *Cache) Len() (contracts, blocks int) {
	return c.contracts.Len(), c.blocks.Len()
}

// hashable reports whether client can be part of a map key. The static type
// is not enough: a comparable struct may hold a slice in an interface field,
// and lru holds its lock without defer, so the hash is tried here first.
func hashable(client Client) (ok bool) {
	if !reflect.TypeOf(client).Comparable() {
		return false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	_ = map[Client]struct{}{client: {}}
	return true
}
