package deserializer

import (
	"context"
	"fmt"
	"math/big"

	"apibaraDeserializer/internal/codec"
	"apibaraDeserializer/internal/lookup"
	"apibaraDeserializer/internal/model"
)

// FieldType names the application type a field is converted into.
type FieldType string

const (
	TypeInt         FieldType = "int"
	TypeBool        FieldType = "bool"
	TypeBytes       FieldType = "bytes"
	TypeString      FieldType = "str"
	TypeBlockNumber FieldType = "block_number"
	TypeUint256     FieldType = "uint256"
)

// ConvertContext is what a contextual converter sees besides the value.
type ConvertContext struct {
	Info   *Info
	Event  *model.Event
	Client lookup.Client
	Cache  *lookup.Cache
}

// PureFunc converts a decoded value on its own.
type PureFunc func(value any) (any, error)

// ContextualFunc converts a decoded value and may call the network.
type ContextualFunc func(ctx context.Context, value any, cc ConvertContext) (any, error)

// Converter is either pure or contextual; build one with Pure or Contextual.
type Converter struct {
	pure       PureFunc
	contextual ContextualFunc
}

// Pure wraps a converter that only needs the value.
func Pure(fn PureFunc) Converter {
	return Converter{pure: fn}
}

// Contextual wraps a converter that needs the event context.
func Contextual(fn ContextualFunc) Converter {
	return Converter{contextual: fn}
}

// IsContextual reports whether the converter receives the event context.
func (c Converter) IsContextual() bool {
	return c.contextual != nil
}

// Convert runs the converter.
func (c Converter) Convert(ctx context.Context, value any, cc ConvertContext) (any, error) {
	switch {
	case c.contextual != nil:
		return c.contextual(ctx, value, cc)
	case c.pure != nil:
		return c.pure(value)
	default:
		return nil, fmt.Errorf("%w: empty converter", ErrConfiguration)
	}
}

// Registry maps field types to converters.
type Registry map[FieldType]Converter

// DefaultRegistry returns a fresh copy of the built-in converters.
func DefaultRegistry() Registry {
	return Registry{
		TypeInt:         Pure(identity),
		TypeBool:        Pure(toBool),
		TypeBytes:       Pure(toBytes),
		TypeString:      Pure(toString),
		TypeBlockNumber: Contextual(blockTimestamp),
		TypeUint256:     Pure(toUint256),
	}
}

// With returns a copy of r with overrides applied on top.
func (r Registry) With(overrides Registry) Registry {
	out := make(Registry, len(r)+len(overrides))
	for t, c := range r {
		out[t] = c
	}
	for t, c := range overrides {
		out[t] = c
	}
	return out
}

// Lookup returns the converter for t.
func (r Registry) Lookup(t FieldType) (Converter, error) {
	c, ok := r[t]
	if !ok {
		return Converter{}, fmt.Errorf("%w: no converter found for type %q", ErrConfiguration, t)
	}
	return c, nil
}

func identity(value any) (any, error) {
	return value, nil
}

func toBool(value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case *big.Int:
		switch {
		case v.Sign() == 0:
			return false, nil
		case v.Cmp(big.NewInt(1)) == 0:
			return true, nil
		}
	}
	return nil, fmt.Errorf("%w: %v is not a boolean", codec.ErrConversion, value)
}

func toBytes(value any) (any, error) {
	n, err := asBigInt(value)
	if err != nil {
		return nil, err
	}
	return codec.BytesFromInt(n)
}

func toString(value any) (any, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	n, err := asBigInt(value)
	if err != nil {
		return nil, err
	}
	return codec.StringFromFelt(n)
}

func toUint256(value any) (any, error) {
	n, err := asBigInt(value)
	if err != nil {
		return nil, err
	}
	return codec.Uint256Map(n)
}

// blockTimestamp resolves a block number into the block's UTC time, reusing
// the block being processed when the numbers match.
func blockTimestamp(ctx context.Context, value any, cc ConvertContext) (any, error) {
	n, err := asBigInt(value)
	if err != nil {
		return nil, err
	}
	if !n.IsUint64() {
		return nil, fmt.Errorf("%w: block number %s out of range", codec.ErrConversion, n)
	}
	number := n.Uint64()

	if cc.Info != nil && cc.Info.Block != nil && cc.Info.Block.Number == number {
		return cc.Info.Block.Time(), nil
	}

	if cc.Client == nil {
		return nil, fmt.Errorf("%w: starknet client should be either passed as an argument or provided in info context", ErrConfiguration)
	}
	cache := cc.Cache
	if cache == nil {
		cache = lookup.Default
	}
	block, err := cache.GetBlock(ctx, cc.Client, number)
	if err != nil {
		return nil, err
	}
	return block.Time(), nil
}

func asBigInt(value any) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		if v == nil {
			return nil, fmt.Errorf("%w: nil integer", codec.ErrConversion)
		}
		return v, nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int64:
		return big.NewInt(v), nil
	case int:
		return big.NewInt(int64(v)), nil
	default:
		return nil, fmt.Errorf("%w: unsupported integer type %T", codec.ErrConversion, value)
	}
}
