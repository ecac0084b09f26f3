package indexer

import (
	"fmt"
	"strings"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/NethermindEth/starknet.go/utils"
)

// ParseAddress converts a hex contract address into a felt. An empty input
// means no address filter and yields nil.
func ParseAddress(input string) (*felt.Felt, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}
	address, err := utils.HexToFelt(input)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %s", input)
	}
	return address, nil
}

// ParseKeys converts key filters into the nested form starknet_getEvents
// expects. Each input is one key position; alternatives are separated by
// "|" and "*" leaves the position unconstrained. A value that is not hex is
// treated as an event name and replaced by its selector.
func ParseKeys(inputs []string) ([][]*felt.Felt, error) {
	keys := make([][]*felt.Felt, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if input == "*" {
			keys = append(keys, []*felt.Felt{})
			continue
		}

		var position []*felt.Felt
		for _, alt := range strings.Split(input, "|") {
			alt = strings.TrimSpace(alt)
			if alt == "" {
				continue
			}
			if !strings.HasPrefix(alt, "0x") {
				position = append(position, utils.GetSelectorFromNameFelt(alt))
				continue
			}
			key, err := utils.HexToFelt(alt)
			if err != nil {
				return nil, fmt.Errorf("invalid key: %s", alt)
			}
			position = append(position, key)
		}
		keys = append(keys, position)
	}
	return keys, nil
}
