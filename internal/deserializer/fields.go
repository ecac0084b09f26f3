package deserializer

import (
	"fmt"
	"math/big"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// TagName is the struct tag read by FieldsOf and DeserializeInto, in the
// form `starknet:"name[,type]"`.
const TagName = "starknet"

// Fields maps event field names to the type they are converted into.
type Fields map[string]FieldType

var (
	bigIntPtrType = reflect.TypeOf((*big.Int)(nil))
	timeType      = reflect.TypeOf(time.Time{})
	uint256Type   = reflect.TypeOf(map[string]*big.Int(nil))
)

// FieldsOf derives Fields from the tagged fields of a struct (or pointer to
// struct, or reflect.Type of one). When a tag carries no type it is inferred
// from the Go field type.
func FieldsOf(record any) (Fields, error) {
	t, ok := record.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(record)
	}
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %v is not a struct", ErrConfiguration, t)
	}

	fields := make(Fields)
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag, ok := sf.Tag.Lookup(TagName)
		if !ok || tag == "-" || !sf.IsExported() {
			continue
		}
		name, typeName, _ := strings.Cut(tag, ",")
		if name == "" {
			name = sf.Name
		}
		ft := FieldType(typeName)
		if ft == "" {
			ft, ok = inferFieldType(sf.Type)
			if !ok {
				return nil, fmt.Errorf("%w: cannot infer field type of %s.%s (%s)", ErrConfiguration, t.Name(), sf.Name, sf.Type)
			}
		}
		fields[name] = ft
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s has no %q tagged fields", ErrConfiguration, t, TagName)
	}
	return fields, nil
}

func inferFieldType(t reflect.Type) (FieldType, bool) {
	switch {
	case t == bigIntPtrType:
		return TypeInt, true
	case t == timeType:
		return TypeBlockNumber, true
	case t == uint256Type:
		return TypeUint256, true
	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8:
		return TypeBytes, true
	}
	switch t.Kind() {
	case reflect.String:
		return TypeString, true
	case reflect.Bool:
		return TypeBool, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInt, true
	}
	return "", false
}

// decodeRecord copies deserialized values into dst, a pointer to a struct
// tagged like FieldsOf expects.
func decodeRecord(values map[string]any, dst any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    TagName,
		Result:     dst,
		DecodeHook: bigIntHook,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if err := decoder.Decode(values); err != nil {
		return fmt.Errorf("%w: decode record: %v", ErrConfiguration, err)
	}
	return nil
}

// bigIntHook narrows *big.Int values into fixed-width integer fields.
func bigIntHook(from, to reflect.Type, data any) (any, error) {
	n, ok := data.(*big.Int)
	if !ok || from != bigIntPtrType {
		return data, nil
	}
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if !n.IsInt64() || reflect.Zero(to).OverflowInt(n.Int64()) {
			return nil, fmt.Errorf("%s overflows %s", n, to)
		}
		return n.Int64(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if !n.IsUint64() || reflect.Zero(to).OverflowUint(n.Uint64()) {
			return nil, fmt.Errorf("%s overflows %s", n, to)
		}
		return n.Uint64(), nil
	}
	return data, nil
}
