package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"apibaraDeserializer/internal/cairo"
	"apibaraDeserializer/internal/chain"
	"apibaraDeserializer/internal/config"
	"apibaraDeserializer/internal/deserializer"
	"apibaraDeserializer/internal/lookup"
	"apibaraDeserializer/internal/model"
	"apibaraDeserializer/internal/storage"
	"apibaraDeserializer/internal/storage/postgres"
)

// pgBatchSize is the number of decoded events upserted per round trip.
const pgBatchSize = 500

func runDecode(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDecode(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}
	if cfg.Errors == "" {
		return fmt.Errorf("errors path is required")
	}

	fields := make(deserializer.Fields, len(cfg.Fields))
	for name, typeName := range cfg.Fields {
		fields[name] = deserializer.FieldType(typeName)
	}

	var eventABI *cairo.Event
	if cfg.EventABI != "" {
		data, err := os.ReadFile(cfg.EventABI)
		if err != nil {
			return fmt.Errorf("read event abi: %w", err)
		}
		eventABI, err = cairo.ParseEvent(data)
		if err != nil {
			return fmt.Errorf("parse event abi: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	cache, err := lookup.NewCache(cfg.CacheSize, logger)
	if err != nil {
		return err
	}
	d := deserializer.New(deserializer.WithCache(cache), deserializer.WithLogger(logger))
	info := &deserializer.Info{Context: map[string]any{deserializer.ClientContextKey: chainClient}}

	var pg *pgSink
	if cfg.PgDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PgDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
		pg = &pgSink{store: store, state: "decode:" + filepath.Base(cfg.In)}
		if pg.after, pg.resume, err = store.LoadState(ctx, pg.state); err != nil {
			return fmt.Errorf("load decode state: %w", err)
		}
	}

	inputFile, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer inputFile.Close()

	// skipped events keep the lines an earlier run wrote for them
	outWriter, err := newJSONLWriter(cfg.Out, pg.resuming())
	if err != nil {
		return err
	}
	defer outWriter.Close()

	errWriter, err := newJSONLWriter(cfg.Errors, pg.resuming())
	if err != nil {
		return err
	}
	defer errWriter.Close()

	logger.Info("decode start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
		zap.Int("fields", len(fields)),
		zap.Bool("event_abi", eventABI != nil),
		zap.Bool("postgres", pg != nil),
		zap.Bool("resume", pg.resuming()),
	)

	positions := make(map[string]int)
	var total, decoded, skipped, failed int
	err = storage.ScanEvents(inputFile, func(_ []byte, ev *model.Event, parseErr error) error {
		total++
		if parseErr != nil {
			failed++
			writeDecodeError(errWriter, model.DecodeError{Error: parseErr.Error()})
			return nil
		}

		position := fmt.Sprintf("%d:%s", ev.BlockNumber, model.FeltHex(ev.TxHash))
		index := positions[position]
		positions[position]++

		if pg.skip(ev) {
			skipped++
			return nil
		}

		values, err := d.Deserialize(ctx, deserializer.Request{
			Info:      info,
			Event:     ev,
			Fields:    fields,
			EventABI:  eventABI,
			EventName: cfg.EventName,
		})
		if err != nil {
			if errors.Is(err, deserializer.ErrConfiguration) || ctx.Err() != nil {
				return err
			}
			failed++
			writeDecodeError(errWriter, decodeErrorFromEvent(ev, err))
			return nil
		}

		record := model.NewDecodedEvent(ev, values)
		if err := outWriter.Write(record); err != nil {
			return err
		}
		decoded++
		return pg.add(ctx, record, index)
	})
	if err != nil {
		return err
	}
	if err := pg.flush(ctx); err != nil {
		return err
	}

	contracts, blocks := cache.Len()
	logger.Info("decode complete",
		zap.Int("total", total),
		zap.Int("decoded", decoded),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
		zap.Int("cached_contracts", contracts),
		zap.Int("cached_blocks", blocks),
	)

	return nil
}

// decodedEventStore is the part of postgres.Store the decode command writes to.
type decodedEventStore interface {
	UpsertDecodedEvents(ctx context.Context, events []postgres.IndexedEvent) error
	SaveState(ctx context.Context, name string, block uint64) error
}

// pgSink batches decoded events into Postgres. A nil sink does nothing.
type pgSink struct {
	store   decodedEventStore
	state   string
	after   uint64
	resume  bool
	pending []postgres.IndexedEvent
	last    uint64
}

// resuming reports whether a previous run recorded its progress.
func (s *pgSink) resuming() bool {
	return s != nil && s.resume
}

// skip reports whether ev was decoded by a previous run.
func (s *pgSink) skip(ev *model.Event) bool {
	return s.resuming() && ev.BlockNumber != 0 && ev.BlockNumber <= s.after
}

func (s *pgSink) add(ctx context.Context, record model.DecodedEvent, index int) error {
	if s == nil {
		return nil
	}
	s.pending = append(s.pending, postgres.IndexedEvent{DecodedEvent: record, Index: index})
	if record.BlockNumber > s.last {
		s.last = record.BlockNumber
	}
	if len(s.pending) < pgBatchSize {
		return nil
	}
	if err := s.store.UpsertDecodedEvents(ctx, s.pending); err != nil {
		return fmt.Errorf("upsert decoded events: %w", err)
	}
	s.pending = s.pending[:0]
	return nil
}

// flush writes the remaining events and records the highest decoded block.
func (s *pgSink) flush(ctx context.Context) error {
	if s == nil {
		return nil
	}
	if err := s.store.UpsertDecodedEvents(ctx, s.pending); err != nil {
		return fmt.Errorf("upsert decoded events: %w", err)
	}
	s.pending = nil
	if s.last == 0 {
		return nil
	}
	return s.store.SaveState(ctx, s.state, s.last)
}

type jsonlWriter struct {
	file   *os.File
	writer *bufio.Writer
}

func newJSONLWriter(path string, appendMode bool) (*jsonlWriter, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir: %w", err)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return &jsonlWriter{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (w *jsonlWriter) Write(value interface{}) error {
	line, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if _, err := w.writer.Write(line); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	return nil
}

func (w *jsonlWriter) Close() error {
	if w == nil {
		return nil
	}
	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

func decodeErrorFromEvent(ev *model.Event, err error) model.DecodeError {
	return model.DecodeError{
		BlockNumber: ev.BlockNumber,
		TxHash:      model.FeltHex(ev.TxHash),
		Address:     model.FeltHex(ev.FromAddress),
		Selector:    model.FeltHex(ev.Selector()),
		Error:       err.Error(),
	}
}

func writeDecodeError(writer *jsonlWriter, errRecord model.DecodeError) {
	if writer == nil {
		return
	}
	_ = writer.Write(errRecord)
}
