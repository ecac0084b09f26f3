package model

import (
	"time"

	"github.com/NethermindEth/juno/core/felt"
)

// Block is the subset of a StarkNet block header the deserializer needs.
type Block struct {
	Number     uint64     `json:"block_number"`
	Hash       *felt.Felt `json:"block_hash"`
	ParentHash *felt.Felt `json:"parent_hash"`
	Timestamp  uint64     `json:"timestamp"`
}

// Time returns the block timestamp in UTC.
func (b *Block) Time() time.Time {
	return time.Unix(int64(b.Timestamp), 0).UTC()
}
