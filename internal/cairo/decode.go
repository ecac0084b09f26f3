package cairo

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/NethermindEth/juno/core/felt"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrDecode is returned when raw felts do not match the declared types.
var ErrDecode = errors.New("cairo decode error")

const bytes31Len = 31

// fieldPrime is 2^251 + 17*2^192 + 1.
var fieldPrime, _ = new(big.Int).SetString("800000000000011000000000000000000000000000000000000000000000001", 16)

// Values is the decoded payload of one event, in declaration order.
type Values struct {
	om *orderedmap.OrderedMap[string, any]
}

func newValues(capacity int) *Values {
	return &Values{om: orderedmap.New[string, any](capacity)}
}

func (v *Values) set(name string, value any) {
	v.om.Set(name, value)
}

// Get returns the decoded value of a field and whether the event has it.
func (v *Values) Get(name string) (any, bool) {
	return v.om.Get(name)
}

// Names lists the decoded field names in declaration order.
func (v *Values) Names() []string {
	out := make([]string, 0, v.om.Len())
	for pair := v.om.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

func (v *Values) Len() int {
	return v.om.Len()
}

// Map copies the values into a plain map.
func (v *Values) Map() map[string]any {
	out := make(map[string]any, v.om.Len())
	for pair := v.om.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = pair.Value
	}
	return out
}

// MarshalJSON encodes the values as an object keeping declaration order.
func (v *Values) MarshalJSON() ([]byte, error) {
	return v.om.MarshalJSON()
}

func (v *Values) String() string {
	parts := make([]string, 0, v.om.Len())
	for pair := v.om.Oldest(); pair != nil; pair = pair.Next() {
		parts = append(parts, fmt.Sprintf("%s=%v", pair.Key, pair.Value))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

type reader struct {
	felts []*felt.Felt
	pos   int
}

func (r *reader) next() (*big.Int, error) {
	if r.pos >= len(r.felts) {
		return nil, fmt.Errorf("%w: expected more than %d felts", ErrDecode, len(r.felts))
	}
	f := r.felts[r.pos]
	r.pos++
	if f == nil {
		return new(big.Int), nil
	}
	return f.BigInt(new(big.Int)), nil
}

func (r *reader) remaining() int {
	return len(r.felts) - r.pos
}

// DecodeEvent decodes the key felts (without the selector) and data felts of
// an event into named values. a may be nil when ev only uses built-in types.
func DecodeEvent(a *ABI, ev *Event, keys, data []*felt.Felt) (*Values, error) {
	out := newValues(len(ev.Keys) + len(ev.Data))

	keyReader := &reader{felts: keys}
	for _, selector := range ev.Route {
		key, err := keyReader.next()
		if err != nil {
			return nil, fmt.Errorf("decode %s keys: %w", ev.Name, err)
		}
		if key.Cmp(selector.BigInt(new(big.Int))) != 0 {
			return nil, fmt.Errorf("decode %s keys: %w: unexpected selector key %#x", ev.Name, ErrDecode, key)
		}
	}
	if err := decodeMembers(a, ev.Keys, keyReader, out); err != nil {
		return nil, fmt.Errorf("decode %s keys: %w", ev.Name, err)
	}
	if n := keyReader.remaining(); n > 0 {
		return nil, fmt.Errorf("decode %s keys: %w: %d trailing felts", ev.Name, ErrDecode, n)
	}

	dataReader := &reader{felts: data}
	if err := decodeMembers(a, ev.Data, dataReader, out); err != nil {
		return nil, fmt.Errorf("decode %s data: %w", ev.Name, err)
	}
	if n := dataReader.remaining(); n > 0 {
		return nil, fmt.Errorf("decode %s data: %w: %d trailing felts", ev.Name, ErrDecode, n)
	}
	return out, nil
}

func decodeMembers(a *ABI, members []Member, r *reader, out *Values) error {
	for _, m := range members {
		var (
			value any
			err   error
		)
		if elem, ok := strings.CutSuffix(m.Type, "*"); ok {
			value, err = decodePointer(a, m.Name, elem, r, out)
		} else {
			value, err = decodeType(a, m.Type, r)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", m.Name, err)
		}
		out.set(m.Name, value)
	}
	return nil
}

// decodePointer handles Cairo 0 arrays whose length is the preceding <name>_len member.
func decodePointer(a *ABI, name, elem string, r *reader, decoded *Values) (any, error) {
	raw, ok := decoded.Get(name + "_len")
	if !ok {
		return nil, fmt.Errorf("%w: array %s has no %s_len member", ErrDecode, name, name)
	}
	n, ok := raw.(*big.Int)
	if !ok || !n.IsInt64() || n.Int64() < 0 || n.Int64() > int64(r.remaining()) {
		return nil, fmt.Errorf("%w: invalid length %v", ErrDecode, raw)
	}
	return decodeArray(a, elem, int(n.Int64()), r)
}

func decodeArray(a *ABI, elem string, n int, r *reader) ([]any, error) {
	items := make([]any, 0, n)
	for i := 0; i < n; i++ {
		item, err := decodeType(a, elem, r)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func decodeType(a *ABI, typ string, r *reader) (any, error) {
	typ = strings.TrimSpace(typ)

	switch {
	case isFeltType(typ):
		return r.next()
	case isSignedType(typ):
		v, err := r.next()
		if err != nil {
			return nil, err
		}
		return toSigned(v), nil
	case typ == "Uint256" || typ == "core::integer::u256" || typ == "u256":
		low, err := r.next()
		if err != nil {
			return nil, err
		}
		high, err := r.next()
		if err != nil {
			return nil, err
		}
		return new(big.Int).Or(new(big.Int).Lsh(high, 128), low), nil
	case typ == "core::bool" || typ == "bool":
		v, err := r.next()
		if err != nil {
			return nil, err
		}
		return v.Sign() != 0, nil
	case typ == "core::byte_array::ByteArray":
		return decodeByteArray(r)
	case typ == "()":
		return nil, nil
	case strings.HasPrefix(typ, "("):
		return decodeTuple(a, typ, r)
	}

	if elem, ok := genericArg(typ, "core::array::Array::", "core::array::Span::"); ok {
		n, err := r.next()
		if err != nil {
			return nil, err
		}
		if !n.IsInt64() || n.Int64() > int64(r.remaining()) {
			return nil, fmt.Errorf("%w: invalid array length %s", ErrDecode, n)
		}
		return decodeArray(a, elem, int(n.Int64()), r)
	}

	if s, ok := a.structByName(typ); ok {
		fields := newValues(len(s.Members))
		if err := decodeMembers(a, s.Members, r, fields); err != nil {
			return nil, fmt.Errorf("%s: %w", typ, err)
		}
		return fields.Map(), nil
	}

	if e, ok := a.enumByName(typ); ok {
		idx, err := r.next()
		if err != nil {
			return nil, err
		}
		if !idx.IsInt64() || idx.Int64() >= int64(len(e.Variants)) {
			return nil, fmt.Errorf("%w: %s has no variant %s", ErrDecode, typ, idx)
		}
		variant := e.Variants[idx.Int64()]
		value, err := decodeType(a, variant.Type, r)
		if err != nil {
			return nil, fmt.Errorf("%s::%s: %w", typ, variant.Name, err)
		}
		return map[string]any{"variant": variant.Name, "value": value}, nil
	}

	return nil, fmt.Errorf("%w: unsupported type %q", ErrDecode, typ)
}

func isFeltType(typ string) bool {
	switch typ {
	case "felt", "felt252", "core::felt252",
		"core::starknet::contract_address::ContractAddress",
		"core::starknet::class_hash::ClassHash",
		"core::starknet::eth_address::EthAddress",
		"core::starknet::storage_access::StorageAddress",
		"core::bytes_31::bytes31":
		return true
	}
	unsigned := strings.TrimPrefix(typ, "core::integer::")
	switch unsigned {
	case "u8", "u16", "u32", "u64", "u128", "usize":
		return true
	}
	return false
}

func isSignedType(typ string) bool {
	switch strings.TrimPrefix(typ, "core::integer::") {
	case "i8", "i16", "i32", "i64", "i128":
		return true
	}
	return false
}

// toSigned maps felts in the upper half of the field to negative integers.
func toSigned(v *big.Int) *big.Int {
	half := new(big.Int).Rsh(fieldPrime, 1)
	if v.Cmp(half) > 0 {
		return new(big.Int).Sub(v, fieldPrime)
	}
	return v
}

func decodeByteArray(r *reader) (string, error) {
	n, err := r.next()
	if err != nil {
		return "", err
	}
	if !n.IsInt64() || n.Int64() > int64(r.remaining()) {
		return "", fmt.Errorf("%w: invalid byte array length %s", ErrDecode, n)
	}

	var sb strings.Builder
	for i := int64(0); i < n.Int64(); i++ {
		word, err := r.next()
		if err != nil {
			return "", err
		}
		sb.Write(word.FillBytes(make([]byte, bytes31Len)))
	}

	pending, err := r.next()
	if err != nil {
		return "", err
	}
	pendingLen, err := r.next()
	if err != nil {
		return "", err
	}
	if !pendingLen.IsInt64() || pendingLen.Int64() >= bytes31Len || pending.BitLen() > int(pendingLen.Int64())*8 {
		return "", fmt.Errorf("%w: invalid pending word", ErrDecode)
	}
	sb.Write(pending.FillBytes(make([]byte, pendingLen.Int64())))
	return sb.String(), nil
}

func decodeTuple(a *ABI, typ string, r *reader) ([]any, error) {
	inner := strings.TrimSuffix(strings.TrimPrefix(typ, "("), ")")
	parts := splitTopLevel(inner)
	out := make([]any, 0, len(parts))
	for _, part := range parts {
		// cairo 0 named tuples: (x: felt, y: felt)
		if i := strings.Index(part, ":"); i >= 0 && !strings.HasPrefix(part[i:], "::") {
			part = part[i+1:]
		}
		v, err := decodeType(a, part, r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func splitTopLevel(s string) []string {
	var (
		parts []string
		depth int
		start int
	)
	for i, c := range s {
		switch c {
		case '(', '<':
			depth++
		case ')', '>':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" {
		parts = append(parts, rest)
	}
	return parts
}

func genericArg(typ string, prefixes ...string) (string, bool) {
	for _, prefix := range prefixes {
		if rest, ok := strings.CutPrefix(typ, prefix); ok && strings.HasPrefix(rest, "<") && strings.HasSuffix(rest, ">") {
			return rest[1 : len(rest)-1], true
		}
	}
	return "", false
}
