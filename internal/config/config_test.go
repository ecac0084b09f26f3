package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func fetchFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("fetch", pflag.ContinueOnError)
	flags.String("rpc", "", "")
	flags.Uint64("from", 0, "")
	flags.Uint64("to", 0, "")
	flags.String("address", "", "")
	flags.StringSlice("keys", nil, "")
	flags.Int("chunk-size", 1000, "")
	flags.String("out", "./data/events.jsonl", "")
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestLoadFromFlags(t *testing.T) {
	flags := fetchFlags(t,
		"--rpc", "http://localhost:5050",
		"--from", "10",
		"--to", "20",
		"--keys", "0x1, 0x2,",
		"--chunk-size", "50",
	)

	cfg, err := Load("", flags)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:5050", cfg.RPCURL)
	require.Equal(t, uint64(10), cfg.FromBlock)
	require.Equal(t, uint64(20), cfg.ToBlock)
	require.Equal(t, []string{"0x1", "0x2"}, cfg.Keys)
	require.Equal(t, 50, cfg.ChunkSize)
	require.Equal(t, "./data/events.jsonl", cfg.Out)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DESERIALIZER_RPC", "http://env:5050")
	t.Setenv("DESERIALIZER_LOG_LEVEL", "debug")

	cfg, err := Load("", fetchFlags(t))
	require.NoError(t, err)
	require.Equal(t, "http://env:5050", cfg.RPCURL)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadValidates(t *testing.T) {
	_, err := Load("", fetchFlags(t))
	require.ErrorContains(t, err, "rpc url is required")

	_, err = Load("", fetchFlags(t, "--rpc", "http://x", "--from", "5", "--to", "4"))
	require.ErrorContains(t, err, "before from block")
}

func TestLoadDecodeFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decode.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rpc: http://localhost:5050
pg-dsn: postgres://localhost/events
event-name: Transfer
fields:
  from_: bytes
  amount: int
`), 0o644))

	cfg, err := LoadDecode(path, nil)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:5050", cfg.RPCURL)
	require.Equal(t, "postgres://localhost/events", cfg.PgDSN)
	require.Equal(t, "Transfer", cfg.EventName)
	require.Equal(t, map[string]string{"from_": "bytes", "amount": "int"}, cfg.Fields)
	require.Equal(t, 128, cfg.CacheSize)
	require.Equal(t, "./data/decoded_events.jsonl", cfg.Out)
}

func TestLoadDecodeFieldsFromEnv(t *testing.T) {
	t.Setenv("DESERIALIZER_RPC", "http://env:5050")
	t.Setenv("DESERIALIZER_EVENT_ABI", "./transfer.json")
	t.Setenv("DESERIALIZER_FIELDS", "from_=bytes, to=bytes,amount=int,broken")

	cfg, err := LoadDecode("", nil)
	require.NoError(t, err)
	require.Equal(t, "./transfer.json", cfg.EventABI)
	require.Equal(t, map[string]string{"from_": "bytes", "to": "bytes", "amount": "int"}, cfg.Fields)
}

func TestLoadDecodeValidates(t *testing.T) {
	_, err := LoadDecode("", nil)
	require.ErrorContains(t, err, "at least one field")

	t.Setenv("DESERIALIZER_FIELDS", "amount=int")
	_, err = LoadDecode("", nil)
	require.ErrorContains(t, err, "rpc url is required")

	t.Setenv("DESERIALIZER_RPC", "http://env:5050")
	t.Setenv("DESERIALIZER_CACHE_SIZE", "0")
	_, err = LoadDecode("", nil)
	require.ErrorContains(t, err, "cache size must be positive")
}
