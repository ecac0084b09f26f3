package deserializer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"apibaraDeserializer/internal/cairo"
	"apibaraDeserializer/internal/lookup"
	"apibaraDeserializer/internal/model"
)

// Request describes one event to deserialize.
type Request struct {
	Info  *Info
	Event *model.Event

	// Fields takes priority over Record, whose tags are used otherwise.
	Fields Fields
	Record any

	// EventABI skips the contract lookup when set.
	EventABI *cairo.Event
	// EventName selects the ABI event by name instead of by selector.
	EventName string

	// Client defaults to Info.Context[ClientContextKey].
	Client lookup.Client

	// Registry defaults to the deserializer's registry.
	Registry Registry
}

// Deserializer turns raw StarkNet events into typed field values.
type Deserializer struct {
	cache    *lookup.Cache
	registry Registry
	logger   *zap.Logger
}

// Option configures a Deserializer.
type Option func(*Deserializer)

// WithCache replaces the process-wide lookup cache.
func WithCache(cache *lookup.Cache) Option {
	return func(d *Deserializer) {
		d.cache = cache
	}
}

// WithRegistry replaces the built-in converters.
func WithRegistry(registry Registry) Option {
	return func(d *Deserializer) {
		d.registry = registry
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(d *Deserializer) {
		d.logger = logger
	}
}

// New builds a Deserializer using lookup.Default and DefaultRegistry unless
// overridden.
func New(opts ...Option) *Deserializer {
	d := &Deserializer{
		cache:    lookup.Default,
		registry: DefaultRegistry(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deserialize resolves the event ABI, decodes the raw felts and converts every
// requested field. It returns either all fields or an error.
func (d *Deserializer) Deserialize(ctx context.Context, req Request) (map[string]any, error) {
	if req.Event == nil {
		return nil, fmt.Errorf("%w: event is nil", ErrConfiguration)
	}

	fields, err := resolveFields(req)
	if err != nil {
		return nil, err
	}

	client := req.Client
	if client == nil {
		client, _ = req.Info.Client()
	}
	if client == nil {
		return nil, fmt.Errorf("%w: starknet client should be either passed as an argument or provided in info context", ErrConfiguration)
	}

	registry := req.Registry
	if registry == nil {
		registry = d.registry
	}

	contractABI, eventABI, err := d.resolveEvent(ctx, client, req)
	if err != nil {
		return nil, err
	}

	values, err := cairo.DecodeEvent(contractABI, eventABI, req.Event.IndexedKeys(), req.Event.Data)
	if err != nil {
		return nil, err
	}

	cc := ConvertContext{
		Info:   req.Info,
		Event:  req.Event,
		Client: client,
		Cache:  d.cache,
	}

	out := make(map[string]any, len(fields))
	for name, fieldType := range fields {
		converter, err := registry.Lookup(fieldType)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}

		value, ok := values.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: received event %s%v doesn't have attribute named %s",
				ErrLookup, eventABI.Name, values, name)
		}

		converted, err := converter.Convert(ctx, value, cc)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		out[name] = converted
	}

	d.logger.Debug("event deserialized",
		zap.String("event", eventABI.Name),
		zap.String("address", model.FeltHex(req.Event.FromAddress)),
		zap.Int("fields", len(out)),
	)
	return out, nil
}

// DeserializeInto deserializes the event and stores the result in dst, a
// pointer to a struct with starknet tags. When req has no Fields they are
// derived from dst.
func (d *Deserializer) DeserializeInto(ctx context.Context, req Request, dst any) error {
	if req.Fields == nil && req.Record == nil {
		req.Record = dst
	}
	values, err := d.Deserialize(ctx, req)
	if err != nil {
		return err
	}
	return decodeRecord(values, dst)
}

func resolveFields(req Request) (Fields, error) {
	if req.Fields != nil {
		return req.Fields, nil
	}
	if req.Record != nil {
		return FieldsOf(req.Record)
	}
	return nil, fmt.Errorf("%w: either fields or record should be passed", ErrConfiguration)
}

// resolveEvent returns the contract ABI (nil when the caller supplied the
// event ABI) and the event description matching the event selector.
func (d *Deserializer) resolveEvent(ctx context.Context, client lookup.Client, req Request) (*cairo.ABI, *cairo.Event, error) {
	if req.EventABI != nil {
		return nil, req.EventABI, nil
	}

	if req.Event.FromAddress == nil {
		return nil, nil, fmt.Errorf("%w: event has no source address", ErrLookup)
	}
	contract, err := d.cache.GetContract(ctx, client, req.Event.FromAddress)
	if err != nil {
		return nil, nil, err
	}
	if contract == nil || contract.ABI == nil {
		return nil, nil, fmt.Errorf("%w: contract %s has no abi", ErrLookup, model.FeltHex(req.Event.FromAddress))
	}

	var ev *cairo.Event
	if req.EventName != "" {
		ev, err = contract.ABI.EventByName(req.EventName)
	} else {
		ev, err = contract.ABI.EventByKeys(req.Event.Keys)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrLookup, err)
	}
	return contract.ABI, ev, nil
}
