package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "deserializer",
		Short:        "StarkNet event fetcher and deserializer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch raw events into JSONL",
		RunE:  runFetch,
	}

	fetchCmd.Flags().String("rpc", "", "StarkNet JSON-RPC URL")
	fetchCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	fetchCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	fetchCmd.Flags().String("address", "", "emitting contract address")
	fetchCmd.Flags().StringSlice("keys", nil, "key filters per position; alternatives joined with |, * for any, names become selectors")
	fetchCmd.Flags().Int("chunk-size", 1000, "events per page")
	fetchCmd.Flags().String("out", "./data/events.jsonl", "output JSONL path")
	fetchCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	fetchCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	fetchCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(fetchCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Deserialize raw events into typed fields",
		RunE:  runDecode,
	}

	decodeCmd.Flags().String("rpc", "", "StarkNet JSON-RPC URL")
	decodeCmd.Flags().String("in", "./data/events.jsonl", "input raw events JSONL")
	decodeCmd.Flags().String("out", "./data/decoded_events.jsonl", "output decoded events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().StringToString("fields", nil, "fields to extract as name=type (int, bool, bytes, str, block_number, uint256)")
	decodeCmd.Flags().String("event-abi", "", "JSON file with the event description, skips the class lookup")
	decodeCmd.Flags().String("event-name", "", "select the ABI event by name instead of by selector")
	decodeCmd.Flags().String("pg-dsn", "", "Postgres DSN, decoded events are also upserted when set")
	decodeCmd.Flags().Int("cache-size", 128, "contracts and blocks kept in memory")
	decodeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(decodeCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
