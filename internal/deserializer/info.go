package deserializer

import (
	"apibaraDeserializer/internal/lookup"
	"apibaraDeserializer/internal/model"
)

// ClientContextKey is the Info.Context entry holding the default client.
const ClientContextKey = "starknet_client"

// Info is the processing context of the indexer handling the event.
type Info struct {
	// Context holds indexer-wide values, e.g. the default client.
	Context map[string]any
	// Block is the block currently being processed, if known.
	Block *model.Block
}

// Client returns the default client stored in the context.
func (i *Info) Client() (lookup.Client, bool) {
	if i == nil || i.Context == nil {
		return nil, false
	}
	client, ok := i.Context[ClientContextKey].(lookup.Client)
	return client, ok && client != nil
}
