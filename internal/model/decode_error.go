package model

// DecodeError records a decode failure for an event line.
type DecodeError struct {
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash,omitempty"`
	Address     string `json:"address,omitempty"`
	Selector    string `json:"selector,omitempty"`
	Error       string `json:"error"`
}
