package cairo

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/tidwall/gjson"
)

// ErrEventNotFound is returned when an ABI has no event for a selector or name.
var ErrEventNotFound = errors.New("event not found in abi")

// Member is a named, typed slot of an event, struct or enum.
type Member struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Kind string `json:"kind,omitempty"`
}

// Event describes the felt layout of one contract event.
type Event struct {
	Name     string
	Selector *felt.Felt
	// Route holds the selector keys emitted after Selector by events of
	// nested components, e.g. sn_keccak("OwnershipTransferred") under an
	// OwnableEvent variant.
	Route []*felt.Felt
	Keys  []Member
	Data  []Member
}

// Struct is a named product type declared by the contract.
type Struct struct {
	Name    string
	Members []Member
}

// Enum is a named sum type declared by the contract.
type Enum struct {
	Name     string
	Variants []Member
}

// ABI is the parsed, indexed form of a contract ABI.
type ABI struct {
	events     map[string]*Event
	bySelector map[felt.Felt][]*Event
	structs    map[string]*Struct
	enums      map[string]*Enum
}

type abiEntry struct {
	Type     string     `json:"type"`
	Name     string     `json:"name"`
	Kind     string     `json:"kind"`
	Keys     []Member   `json:"keys"`
	Data     []Member   `json:"data"`
	Inputs   []Member   `json:"inputs"`
	Members  []Member   `json:"members"`
	Variants []Member   `json:"variants"`
	Items    []abiEntry `json:"items"`
}

// ParseABI parses a Cairo 0 or Cairo 1 ABI JSON array.
func ParseABI(data []byte) (*ABI, error) {
	var entries []abiEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}

	a := &ABI{
		events:     make(map[string]*Event),
		bySelector: make(map[felt.Felt][]*Event),
		structs:    make(map[string]*Struct),
		enums:      make(map[string]*Enum),
	}
	var events []abiEntry
	for _, entry := range entries {
		events = a.add(entry, events)
	}
	a.indexEvents(events)
	return a, nil
}

// ABIFromClass extracts and parses the abi of a contract class as returned by
// starknet_getClassAt. Sierra classes carry the abi as a JSON string, deprecated
// classes as an array.
func ABIFromClass(class []byte) (*ABI, error) {
	res := gjson.GetBytes(class, "abi")
	switch {
	case !res.Exists():
		return nil, fmt.Errorf("contract class has no abi")
	case res.Type == gjson.String:
		return ParseABI([]byte(res.String()))
	case res.IsArray():
		return ParseABI([]byte(res.Raw))
	default:
		return nil, fmt.Errorf("unexpected abi type %s", res.Type)
	}
}

func (a *ABI) add(entry abiEntry, events []abiEntry) []abiEntry {
	switch entry.Type {
	case "event":
		events = append(events, entry)
	case "struct":
		a.structs[entry.Name] = &Struct{Name: entry.Name, Members: entry.Members}
	case "enum":
		a.enums[entry.Name] = &Enum{Name: entry.Name, Variants: entry.Variants}
	case "interface":
		for _, item := range entry.Items {
			events = a.add(item, events)
		}
	}
	return events
}

// maxEventDepth bounds how deep component event enums are followed.
const maxEventDepth = 8

// indexEvents registers events reachable from a Cairo 1 event enum under the
// variant names they are emitted with. Events no enum refers to, including
// every Cairo 0 event, are registered under their own short name.
func (a *ABI) indexEvents(events []abiEntry) {
	defs := make(map[string]abiEntry, len(events))
	referenced := make(map[string]bool)
	for _, entry := range events {
		defs[entry.Name] = entry
		if entry.Kind == "enum" {
			for _, variant := range entry.Variants {
				referenced[variant.Type] = true
			}
		}
	}

	routed := make(map[string]bool)
	for _, entry := range events {
		if entry.Kind == "enum" && !referenced[entry.Name] {
			a.walkEventEnum(defs, entry, nil, routed, 0)
		}
	}
	for _, entry := range events {
		if entry.Kind != "enum" && !routed[entry.Name] {
			a.AddEvent(newEvent(entry))
		}
	}
}

// walkEventEnum follows the variants of an event enum. A variant adds its
// name to the selector path unless it is flat; a nested enum continues the
// walk with the longer path.
func (a *ABI) walkEventEnum(defs map[string]abiEntry, enum abiEntry, path []*felt.Felt, routed map[string]bool, depth int) {
	if depth > maxEventDepth {
		return
	}
	for _, variant := range enum.Variants {
		target, ok := defs[variant.Type]
		if !ok {
			continue
		}
		if target.Kind == "enum" {
			route := path
			if variant.Kind != "flat" {
				route = append(slices.Clone(path), Selector(variant.Name))
			}
			a.walkEventEnum(defs, target, route, routed, depth+1)
			continue
		}

		name := variant.Name
		if variant.Kind == "flat" {
			name = ShortName(target.Name)
		}
		route := append(slices.Clone(path), Selector(name))

		ev := newEvent(target)
		ev.Selector = route[0]
		ev.Route = route[1:]
		a.AddEvent(ev)
		if _, taken := a.events[variant.Name]; !taken {
			a.events[variant.Name] = ev
		}
		routed[target.Name] = true
	}
}

func newEvent(entry abiEntry) *Event {
	ev := &Event{Name: entry.Name, Keys: entry.Keys}
	switch {
	case entry.Kind == "struct":
		for _, m := range entry.Members {
			if m.Kind == "key" {
				ev.Keys = append(ev.Keys, m)
			} else {
				ev.Data = append(ev.Data, m)
			}
		}
	case len(entry.Inputs) > 0:
		ev.Data = entry.Inputs
	default:
		ev.Data = entry.Data
	}
	ev.Selector = Selector(ShortName(entry.Name))
	return ev
}

// NewEvent builds a Cairo 0 style event description from its data members.
func NewEvent(name string, data []Member) *Event {
	return newEvent(abiEntry{Type: "event", Name: name, Data: data})
}

// ParseEvent parses a single event entry, e.g. {"name": "Transfer", "data": [...]}.
func ParseEvent(data []byte) (*Event, error) {
	var entry abiEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("parse event abi: %w", err)
	}
	if entry.Name == "" {
		return nil, fmt.Errorf("event abi has no name")
	}
	return newEvent(entry), nil
}

// AddEvent registers ev under its full name, short name and selector path.
// An event already registered with the same path is replaced.
func (a *ABI) AddEvent(ev *Event) {
	a.events[ev.Name] = ev
	a.events[ShortName(ev.Name)] = ev

	candidates := a.bySelector[*ev.Selector]
	for i, c := range candidates {
		if sameRoute(c.Route, ev.Route) {
			candidates[i] = ev
			return
		}
	}
	a.bySelector[*ev.Selector] = append(candidates, ev)
}

// EventBySelector returns the event whose selector matches. Events of nested
// components need the rest of their keys; use EventByKeys for those.
func (a *ABI) EventBySelector(selector *felt.Felt) (*Event, error) {
	if selector != nil {
		candidates := a.bySelector[*selector]
		for _, ev := range candidates {
			if len(ev.Route) == 0 {
				return ev, nil
			}
		}
		if len(candidates) > 0 {
			return candidates[0], nil
		}
	}
	return nil, fmt.Errorf("%w: selector %v", ErrEventNotFound, selector)
}

// EventByKeys returns the event matching the full keys of an emitted event,
// selector included. The longest matching selector path wins.
func (a *ABI) EventByKeys(keys []*felt.Felt) (*Event, error) {
	if len(keys) == 0 || keys[0] == nil {
		return nil, fmt.Errorf("%w: event has no selector", ErrEventNotFound)
	}
	var found *Event
	for _, ev := range a.bySelector[*keys[0]] {
		if len(ev.Route) >= len(keys) || !sameRoute(ev.Route, keys[1:1+len(ev.Route)]) {
			continue
		}
		if found == nil || len(ev.Route) > len(found.Route) {
			found = ev
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: selector %v", ErrEventNotFound, keys[0])
	}
	return found, nil
}

func sameRoute(a, b []*felt.Felt) bool {
	return slices.EqualFunc(a, b, func(x, y *felt.Felt) bool {
		return x != nil && y != nil && x.Equal(y)
	})
}

// EventByName looks an event up by full or short name.
func (a *ABI) EventByName(name string) (*Event, error) {
	if ev, ok := a.events[name]; ok {
		return ev, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrEventNotFound, name)
}

// Events returns every emittable event of the abi, once per selector path.
func (a *ABI) Events() []*Event {
	out := make([]*Event, 0, len(a.bySelector))
	for _, candidates := range a.bySelector {
		out = append(out, candidates...)
	}
	return out
}

func (a *ABI) structByName(name string) (*Struct, bool) {
	if a == nil {
		return nil, false
	}
	s, ok := a.structs[name]
	return s, ok
}

func (a *ABI) enumByName(name string) (*Enum, bool) {
	if a == nil {
		return nil, false
	}
	e, ok := a.enums[name]
	return e, ok
}

// ShortName strips the Cairo 1 module path from a name.
func ShortName(name string) string {
	if i := strings.LastIndex(name, "::"); i >= 0 {
		return name[i+2:]
	}
	return name
}
