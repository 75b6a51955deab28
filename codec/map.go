package codec

import (
	"cmp"
	"reflect"
	"sort"
	"strings"

	"github.com/wippyai/callwire/codec/internal/abi"
	"github.com/wippyai/callwire/errors"
)

// MapEntry is one key/value pair of a Map.
type MapEntry struct {
	Key   any
	Value any
}

// Map is an ordered map whose entries are always kept in ascending key
// order. Keys are stored in canonical form: bool, int64, float64 or string.
// The zero value is an empty map ready to use.
type Map struct {
	entries []MapEntry
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{}
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Set inserts or replaces the value for key.
func (m *Map) Set(key, value any) error {
	k, ok := canonicalKey(key)
	if !ok {
		return errors.Unsupported(errors.PhaseEncode, nil, abi.TypeName(key), "map key must be a bool, integer, float or string")
	}
	i, found := m.search(k)
	if found {
		m.entries[i].Value = value
		return nil
	}
	m.entries = append(m.entries, MapEntry{})
	copy(m.entries[i+1:], m.entries[i:])
	m.entries[i] = MapEntry{Key: k.value(), Value: value}
	return nil
}

// Get returns the value stored for key.
func (m *Map) Get(key any) (any, bool) {
	if m == nil {
		return nil, false
	}
	k, ok := canonicalKey(key)
	if !ok {
		return nil, false
	}
	i, found := m.search(k)
	if !found {
		return nil, false
	}
	return m.entries[i].Value, true
}

// Keys returns the keys in ascending order.
func (m *Map) Keys() []any {
	if m == nil {
		return nil
	}
	keys := make([]any, len(m.entries))
	for i, e := range m.entries {
		keys[i] = e.Key
	}
	return keys
}

// Entries returns a copy of the entries in ascending key order.
func (m *Map) Entries() []MapEntry {
	if m == nil {
		return nil
	}
	out := make([]MapEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Range calls fn for each entry in ascending key order until fn returns false.
func (m *Map) Range(fn func(key, value any) bool) {
	if m == nil {
		return
	}
	for _, e := range m.entries {
		if !fn(e.Key, e.Value) {
			return
		}
	}
}

func (m *Map) search(k sortKey) (int, bool) {
	i := sort.Search(len(m.entries), func(i int) bool {
		ek, _ := canonicalKey(m.entries[i].Key)
		return compareKeys(ek, k) >= 0
	})
	if i < len(m.entries) {
		ek, _ := canonicalKey(m.entries[i].Key)
		if compareKeys(ek, k) == 0 {
			return i, true
		}
	}
	return i, false
}

// sortKey is the canonical form of a map key used for ordering. Keys of
// different wire types order by tag first.
type sortKey struct {
	s   string
	i   int64
	f   float64
	tag Tag
	b   bool
}

func (k sortKey) value() any {
	switch k.tag {
	case TagBool:
		return k.b
	case TagInt:
		return k.i
	case TagDouble:
		return k.f
	default:
		return k.s
	}
}

func compareKeys(a, b sortKey) int {
	if a.tag != b.tag {
		return cmp.Compare(a.tag, b.tag)
	}
	switch a.tag {
	case TagBool:
		switch {
		case a.b == b.b:
			return 0
		case !a.b:
			return -1
		default:
			return 1
		}
	case TagInt:
		return cmp.Compare(a.i, b.i)
	case TagDouble:
		return cmp.Compare(a.f, b.f)
	default:
		return strings.Compare(a.s, b.s)
	}
}

func canonicalKey(key any) (sortKey, bool) {
	switch k := key.(type) {
	case bool:
		return sortKey{tag: TagBool, b: k}, true
	case string:
		return sortKey{tag: TagText, s: k}, true
	case Char:
		return sortKey{tag: TagText, s: string([]byte{byte(k)})}, true
	}
	if i, ok := abi.CoerceToInt64(key); ok {
		return sortKey{tag: TagInt, i: i}, true
	}
	if f, ok := abi.CoerceToFloat64(key); ok {
		return sortKey{tag: TagDouble, f: f}, true
	}
	if key == nil {
		return sortKey{}, false
	}
	// Named key types follow the same rules as Go map keys.
	ti, err := defaultNormalizer.TypeInfo(reflect.TypeOf(key))
	if err != nil {
		return sortKey{}, false
	}
	k, err := defaultNormalizer.keyOf(ti, reflect.ValueOf(key))
	if err != nil {
		return sortKey{}, false
	}
	return k, true
}
