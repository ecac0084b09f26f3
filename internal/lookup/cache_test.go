package lookup

import (
	"context"
	"errors"
	"testing"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/stretchr/testify/require"

	"apibaraDeserializer/internal/model"
)

type countingClient struct {
	contractCalls int
	blockCalls    int
	err           error
}

func (c *countingClient) GetContract(ctx context.Context, address *felt.Felt) (*model.Contract, error) {
	c.contractCalls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.err != nil {
		return nil, c.err
	}
	return &model.Contract{Address: address}, nil
}

func (c *countingClient) GetBlock(ctx context.Context, number uint64) (*model.Block, error) {
	c.blockCalls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.err != nil {
		return nil, c.err
	}
	return &model.Block{Number: number, Timestamp: 1_600_000_000 + number}, nil
}

// mapClient has a non-comparable dynamic type.
type mapClient map[string]int

func (m mapClient) GetContract(_ context.Context, address *felt.Felt) (*model.Contract, error) {
	m["contract"]++
	return &model.Contract{Address: address}, nil
}

func (m mapClient) GetBlock(_ context.Context, number uint64) (*model.Block, error) {
	m["block"]++
	return &model.Block{Number: number}, nil
}

// optsClient is comparable by type but not by value when opts holds a slice.
type optsClient struct {
	opts  any
	calls *int
}

func (c optsClient) GetContract(_ context.Context, address *felt.Felt) (*model.Contract, error) {
	*c.calls++
	return &model.Contract{Address: address}, nil
}

func (c optsClient) GetBlock(_ context.Context, number uint64) (*model.Block, error) {
	*c.calls++
	return &model.Block{Number: number}, nil
}

func TestCacheFetchesOnce(t *testing.T) {
	cache, err := NewCache(DefaultSize, nil)
	require.NoError(t, err)
	client := &countingClient{}
	ctx := context.Background()
	address := new(felt.Felt).SetUint64(0x49d3)

	first, err := cache.GetContract(ctx, client, address)
	require.NoError(t, err)
	second, err := cache.GetContract(ctx, client, new(felt.Felt).SetUint64(0x49d3))
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Equal(t, 1, client.contractCalls)

	_, err = cache.GetBlock(ctx, client, 10)
	require.NoError(t, err)
	block, err := cache.GetBlock(ctx, client, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(10), block.Number)
	require.Equal(t, 1, client.blockCalls)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	cache, err := NewCache(DefaultSize, nil)
	require.NoError(t, err)
	client := &countingClient{}
	ctx := context.Background()

	for n := uint64(0); n < DefaultSize; n++ {
		_, err := cache.GetBlock(ctx, client, n)
		require.NoError(t, err)
	}
	require.Equal(t, DefaultSize, client.blockCalls)

	_, err = cache.GetBlock(ctx, client, DefaultSize)
	require.NoError(t, err)
	_, blocks := cache.Len()
	require.Equal(t, DefaultSize, blocks)

	// block 0 was the least recently used and is gone
	_, err = cache.GetBlock(ctx, client, 0)
	require.NoError(t, err)
	require.Equal(t, DefaultSize+2, client.blockCalls)

	_, err = cache.GetBlock(ctx, client, DefaultSize-1)
	require.NoError(t, err)
	require.Equal(t, DefaultSize+2, client.blockCalls)
}

func TestCacheKeysIncludeClient(t *testing.T) {
	cache := MustNewCache(DefaultSize, nil)
	a, b := &countingClient{}, &countingClient{}
	ctx := context.Background()

	_, err := cache.GetBlock(ctx, a, 1)
	require.NoError(t, err)
	_, err = cache.GetBlock(ctx, b, 1)
	require.NoError(t, err)
	require.Equal(t, 1, a.blockCalls)
	require.Equal(t, 1, b.blockCalls)
}

func TestCacheDoesNotStoreFailures(t *testing.T) {
	cache := MustNewCache(DefaultSize, nil)
	boom := errors.New("gateway unavailable")
	client := &countingClient{err: boom}
	address := new(felt.Felt).SetUint64(1)

	_, err := cache.GetContract(context.Background(), client, address)
	require.Same(t, boom, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client.err = nil
	_, err = cache.GetBlock(ctx, client, 5)
	require.ErrorIs(t, err, context.Canceled)

	contracts, blocks := cache.Len()
	require.Zero(t, contracts)
	require.Zero(t, blocks)

	_, err = cache.GetBlock(context.Background(), client, 5)
	require.NoError(t, err)
	require.Equal(t, 2, client.blockCalls)
}

func TestCacheSkipsUnhashableClient(t *testing.T) {
	cache := MustNewCache(DefaultSize, nil)
	client := mapClient{}

	for i := 0; i < 2; i++ {
		block, err := cache.GetBlock(context.Background(), client, 3)
		require.NoError(t, err)
		require.Equal(t, uint64(3), block.Number)
	}
	require.Equal(t, 2, client["block"])

	_, blocks := cache.Len()
	require.Zero(t, blocks)
}

func TestCacheSkipsClientHoldingUnhashableValue(t *testing.T) {
	cache := MustNewCache(DefaultSize, nil)
	calls := 0
	client := optsClient{opts: []string{"x"}, calls: &calls}
	address := new(felt.Felt).SetUint64(7)

	for i := 0; i < 2; i++ {
		_, err := cache.GetBlock(context.Background(), client, 3)
		require.NoError(t, err)
		contract, err := cache.GetContract(context.Background(), client, address)
		require.NoError(t, err)
		require.Equal(t, address, contract.Address)
	}
	require.Equal(t, 4, calls)

	contracts, blocks := cache.Len()
	require.Zero(t, contracts)
	require.Zero(t, blocks)

	// the same type with a hashable value is cached
	client = optsClient{opts: "mainnet", calls: &calls}
	_, err := cache.GetBlock(context.Background(), client, 3)
	require.NoError(t, err)
	_, err = cache.GetBlock(context.Background(), client, 3)
	require.NoError(t, err)
	require.Equal(t, 5, calls)
}

func TestCacheRejectsNilClient(t *testing.T) {
	cache := MustNewCache(DefaultSize, nil)
	_, err := cache.GetBlock(context.Background(), nil, 1)
	require.Error(t, err)
}
