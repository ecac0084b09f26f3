package deserializer

import "errors"

var (
	// ErrConfiguration covers caller mistakes: no field source, no client,
	// or a field type the registry cannot convert.
	ErrConfiguration = errors.New("configuration error")

	// ErrLookup covers events or fields that do not exist where expected.
	ErrLookup = errors.New("lookup error")
)
