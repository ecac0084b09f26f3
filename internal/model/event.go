package model

import (
	"fmt"
	"strconv"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/tidwall/gjson"

	"apibaraDeserializer/internal/codec"
)

// Event is a StarkNet contract event as delivered by the stream or by
// starknet_getEvents.
type Event struct {
	FromAddress *felt.Felt   `json:"from_address"`
	Keys        []*felt.Felt `json:"keys"`
	Data        []*felt.Felt `json:"data"`
	BlockNumber uint64       `json:"block_number,omitempty"`
	BlockHash   *felt.Felt   `json:"block_hash,omitempty"`
	TxHash      *felt.Felt   `json:"transaction_hash,omitempty"`
}

// Selector returns the first key, which identifies the event, or nil.
func (e *Event) Selector() *felt.Felt {
	if len(e.Keys) == 0 {
		return nil
	}
	return e.Keys[0]
}

// IndexedKeys returns the keys that follow the selector.
func (e *Event) IndexedKeys() []*felt.Felt {
	if len(e.Keys) <= 1 {
		return nil
	}
	return e.Keys[1:]
}

var apibaraWords = [4]string{"loLo", "loHi", "hiLo", "hiHi"}

// ParseApibaraEvent parses the JSON form of an Apibara StarkNet event, where
// each felt is split into four 64-bit words.
func ParseApibaraEvent(data []byte) (*Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid event json")
	}
	root := gjson.ParseBytes(data)

	from, err := apibaraFelt(root.Get("fromAddress"))
	if err != nil {
		return nil, fmt.Errorf("fromAddress: %w", err)
	}
	keys, err := apibaraFelts(root.Get("keys"))
	if err != nil {
		return nil, fmt.Errorf("keys: %w", err)
	}
	values, err := apibaraFelts(root.Get("data"))
	if err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}

	return &Event{FromAddress: from, Keys: keys, Data: values}, nil
}

func apibaraFelts(list gjson.Result) ([]*felt.Felt, error) {
	items := list.Array()
	out := make([]*felt.Felt, 0, len(items))
	for i, item := range items {
		f, err := apibaraFelt(item)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func apibaraFelt(v gjson.Result) (*felt.Felt, error) {
	var words [4]uint64
	for i, name := range apibaraWords {
		w := v.Get(name)
		if !w.Exists() {
			continue
		}
		raw := w.Raw
		if w.Type == gjson.String {
			raw = w.Str
		}
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s word %q: %w", name, raw, err)
		}
		words[i] = parsed
	}
	return codec.FeltFromWords(words[0], words[1], words[2], words[3]), nil
}
