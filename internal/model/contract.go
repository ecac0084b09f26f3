package model

import (
	"github.com/NethermindEth/juno/core/felt"

	"apibaraDeserializer/internal/cairo"
)

// Contract is a deployed contract together with its parsed ABI.
type Contract struct {
	Address *felt.Felt
	ABI     *cairo.ABI
}
