package indexer

import (
	"context"
	"fmt"
	"strings"

	"github.com/NethermindEth/juno/core/felt"
	"go.uber.org/zap"

	"apibaraDeserializer/internal/chain"
	"apibaraDeserializer/internal/model"
	"apibaraDeserializer/internal/storage"
)

// EventSource is the part of the chain client the runner needs.
type EventSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	GetEvents(ctx context.Context, filter chain.EventFilter, token string) (*chain.EventsPage, error)
}

// RunConfig holds runtime settings for the fetcher.
type RunConfig struct {
	FromBlock         uint64
	ToBlock           uint64
	Address           *felt.Felt
	Keys              [][]*felt.Felt
	ChunkSize         int
	CheckpointPath    string
	CheckpointEnabled bool
}

// Runner pages events from the chain and writes them to storage.
type Runner struct {
	cfg        RunConfig
	source     EventSource
	storage    storage.Storage
	logger     *zap.Logger
	checkpoint *CheckpointStore
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, source EventSource, storageSink storage.Storage, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		source:     source,
		storage:    storageSink,
		logger:     logger,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

// Run fetches every event of the configured range. Failed calls abort the
// run; a later run with the same range resumes from the last stored page.
func (r *Runner) Run(ctx context.Context) error {
	if r.source == nil {
		return fmt.Errorf("event source is nil")
	}
	if r.storage == nil {
		return fmt.Errorf("storage is nil")
	}

	filter := chain.EventFilter{
		FromBlock: r.cfg.FromBlock,
		ToBlock:   r.cfg.ToBlock,
		Address:   r.cfg.Address,
		Keys:      r.cfg.Keys,
		ChunkSize: r.cfg.ChunkSize,
	}
	if filter.ToBlock == 0 {
		latest, err := r.source.BlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		filter.ToBlock = latest
	}
	if filter.FromBlock > filter.ToBlock {
		r.logger.Info("nothing to fetch", zap.Uint64("from", filter.FromBlock), zap.Uint64("to", filter.ToBlock))
		return nil
	}

	state := Checkpoint{
		FromBlock: filter.FromBlock,
		ToBlock:   filter.ToBlock,
		Filter:    describeFilter(filter),
	}
	cp, ok, err := r.checkpoint.Load()
	if err != nil {
		return err
	}
	if ok && cp.FromBlock == state.FromBlock && cp.ToBlock == state.ToBlock && cp.Filter == state.Filter {
		if cp.Done {
			r.logger.Info("range already fetched", zap.Uint64("from", cp.FromBlock), zap.Uint64("to", cp.ToBlock), zap.Int("events", cp.Events))
			return nil
		}
		state = cp
		r.logger.Info("resume from checkpoint", zap.String("continuation_token", cp.ContinuationToken), zap.Int("events", cp.Events))
		// a page stored after the last checkpoint is fetched again; checkpoints
		// without an offset predate it and leave storage untouched
		if rw, ok := r.storage.(storage.Rewinder); ok && (cp.Offset > 0 || cp.Events == 0) {
			if err := rw.Rewind(cp.Offset); err != nil {
				return err
			}
		}
	} else if err := r.saveOffset(&state); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		page, err := r.source.GetEvents(ctx, filter, state.ContinuationToken)
		if err != nil {
			return fmt.Errorf("get events: %w", err)
		}

		if err := r.storage.PutEvents(page.Events); err != nil {
			return fmt.Errorf("store events: %w", err)
		}

		state.Events += len(page.Events)
		state.ContinuationToken = page.ContinuationToken
		state.Done = page.ContinuationToken == ""
		if err := r.saveOffset(&state); err != nil {
			return err
		}

		r.logger.Info("page complete",
			zap.Int("events", len(page.Events)),
			zap.Int("total", state.Events),
			zap.String("continuation_token", page.ContinuationToken),
		)

		if state.Done {
			return nil
		}
	}
}

// saveOffset records the storage offset in state and saves the checkpoint.
func (r *Runner) saveOffset(state *Checkpoint) error {
	if rw, ok := r.storage.(storage.Rewinder); ok {
		offset, err := rw.Offset()
		if err != nil {
			return err
		}
		state.Offset = offset
	}
	return r.checkpoint.Save(*state)
}

func describeFilter(filter chain.EventFilter) string {
	var b strings.Builder
	b.WriteString(model.FeltHex(filter.Address))
	for _, position := range filter.Keys {
		b.WriteByte('/')
		for i, key := range position {
			if i > 0 {
				b.WriteByte('|')
			}
			b.WriteString(model.FeltHex(key))
		}
	}
	return b.String()
}

