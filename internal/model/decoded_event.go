package model

import (
	"encoding/hex"
	"math/big"
	"time"

	"github.com/NethermindEth/juno/core/felt"
)

// DecodedEvent is a deserialized event enriched with its origin.
type DecodedEvent struct {
	BlockNumber uint64         `json:"block_number"`
	BlockHash   string         `json:"block_hash,omitempty"`
	TxHash      string         `json:"tx_hash,omitempty"`
	Address     string         `json:"address"`
	Selector    string         `json:"selector"`
	Fields      map[string]any `json:"fields"`
}

// NewDecodedEvent builds the output record for ev with JSON-friendly fields.
func NewDecodedEvent(ev *Event, fields map[string]any) DecodedEvent {
	return DecodedEvent{
		BlockNumber: ev.BlockNumber,
		BlockHash:   FeltHex(ev.BlockHash),
		TxHash:      FeltHex(ev.TxHash),
		Address:     FeltHex(ev.FromAddress),
		Selector:    FeltHex(ev.Selector()),
		Fields:      NormalizeFields(fields),
	}
}

// FeltHex renders f as 0x-prefixed hex, or "" for nil.
func FeltHex(f *felt.Felt) string {
	if f == nil {
		return ""
	}
	return f.String()
}

// NormalizeFields converts deserialized values into JSON-stable forms:
// integers become decimal strings, byte strings 0x-hex and times RFC3339.
func NormalizeFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch typed := v.(type) {
	case *big.Int:
		if typed == nil {
			return nil
		}
		return typed.String()
	case *felt.Felt:
		return FeltHex(typed)
	case []byte:
		return "0x" + hex.EncodeToString(typed)
	case time.Time:
		return typed.UTC().Format(time.RFC3339)
	case map[string]*big.Int:
		out := make(map[string]any, len(typed))
		for k, item := range typed {
			out[k] = normalizeValue(item)
		}
		return out
	case map[string]any:
		return NormalizeFields(typed)
	case []any:
		out := make([]any, 0, len(typed))
		for _, item := range typed {
			out = append(out, normalizeValue(item))
		}
		return out
	default:
		return v
	}
}
