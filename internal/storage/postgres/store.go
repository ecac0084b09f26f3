package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"apibaraDeserializer/internal/model"
)

// Schema creates the tables used by Store.
const Schema = `
CREATE TABLE IF NOT EXISTS decoded_events (
	block_number BIGINT NOT NULL,
	tx_hash      TEXT   NOT NULL,
	event_index  INT    NOT NULL,
	block_hash   TEXT,
	address      TEXT   NOT NULL,
	selector     TEXT   NOT NULL,
	fields       JSONB  NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (block_number, tx_hash, event_index)
);
CREATE TABLE IF NOT EXISTS decoder_state (
	name               TEXT PRIMARY KEY,
	last_decoded_block BIGINT NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// Store provides Postgres persistence for decoded events.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

// IndexedEvent is a decoded event with its position among the events of
// its transaction, which together with the block and tx hash identifies it.
type IndexedEvent struct {
	model.DecodedEvent
	Index int
}

// UpsertDecodedEvents inserts or updates decoded events.
func (s *Store) UpsertDecodedEvents(ctx context.Context, events []IndexedEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		fields, err := json.Marshal(ev.Fields)
		if err != nil {
			return fmt.Errorf("marshal fields: %w", err)
		}
		batch.Queue(`
			INSERT INTO decoded_events (
				block_number, tx_hash, event_index, block_hash, address, selector, fields, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
			ON CONFLICT (block_number, tx_hash, event_index)
			DO UPDATE SET
				block_hash = EXCLUDED.block_hash,
				address = EXCLUDED.address,
				selector = EXCLUDED.selector,
				fields = EXCLUDED.fields,
				updated_at = now()
		`,
			int64(ev.BlockNumber),
			ev.TxHash,
			ev.Index,
			ev.BlockHash,
			ev.Address,
			ev.Selector,
			fields,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns the last decoded block recorded under name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_decoded_block FROM decoder_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveState upserts the last decoded block for name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO decoder_state (name, last_decoded_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_decoded_block = GREATEST(decoder_state.last_decoded_block, EXCLUDED.last_decoded_block), updated_at = now()
	`, name, int64(block))
	return err
}
