package codec

import (
	"encoding"
	"reflect"
	"sync"

	"github.com/wippyai/callwire/errors"
)

// conversion selects the codec rule used for a concrete Go type.
type conversion uint8

const (
	convNone conversion = iota
	convBool
	convInt
	convUint
	convFloat32
	convFloat64
	convString
	convChar
	convText
	convError
	convBytes
	convByteArray
	convSlice
	convArray
	convStruct
	convTuple
	convMap
	convOrderedMap
	convNDArray
	convPointer
	convInterface
)

var (
	noneType            = reflect.TypeFor[None]()
	charType            = reflect.TypeFor[Char]()
	tupleType           = reflect.TypeFor[Tuple]()
	mapType             = reflect.TypeFor[Map]()
	arrayType           = reflect.TypeFor[Array]()
	anyType             = reflect.TypeFor[any]()
	byteType            = reflect.TypeFor[byte]()
	errorType           = reflect.TypeFor[error]()
	textMarshalerType   = reflect.TypeFor[encoding.TextMarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// TypeInfo is the normalization entry for one concrete Go type: its
// canonical wire type and the rule that converts values to and from it.
type TypeInfo struct {
	GoType reflect.Type
	// Elem is the element type of lists, the value type of maps and the
	// target of pointers.
	Elem   *TypeInfo
	Key    *TypeInfo
	Fields []FieldInfo
	// Len is the fixed element count of Go arrays.
	Len int
	// Bits is the Go width used when narrowing integers and floats.
	Bits int
	// Tag is the canonical wire type. Pointers and interfaces are resolved
	// per value and carry TagReserved.
	Tag Tag
	// Reversible is false for write-only types.
	Reversible bool
	conv       conversion
}

// FieldInfo describes one positional tuple element of a struct.
type FieldInfo struct {
	Type  *TypeInfo
	Name  string
	Index int
}

// Dynamic reports whether the wire type depends on the value rather than
// the Go type.
func (ti *TypeInfo) Dynamic() bool {
	return ti.conv == convPointer || ti.conv == convInterface
}

// Accepts reports whether a record with the given tag can be decoded into
// this type. Reversibility is checked separately.
func (ti *TypeInfo) Accepts(tag Tag) bool {
	switch ti.conv {
	case convPointer:
		return tag == TagNone || ti.Elem.Accepts(tag)
	case convInterface:
		return tag.Valid()
	default:
		return tag == ti.Tag
	}
}

// WireName names the canonical wire type for error messages.
func (ti *TypeInfo) WireName() string {
	switch ti.conv {
	case convPointer:
		return ti.Elem.WireName()
	case convInterface:
		return "any"
	default:
		return ti.Tag.String()
	}
}

func (ti *TypeInfo) fixedWidth() (uint64, bool) {
	switch ti.conv {
	case convNone:
		return 0, true
	case convBool, convChar:
		return 1, true
	case convInt, convUint, convFloat32, convFloat64:
		return 8, true
	default:
		return 0, false
	}
}

// Normalizer maps concrete Go types onto canonical wire types. Lookups are
// computed once per type and cached. A Normalizer is safe for concurrent use.
type Normalizer struct {
	cache sync.Map // reflect.Type -> *TypeInfo

	anyInfo  *TypeInfo
	noneInfo *TypeInfo
}

var defaultNormalizer = NewNormalizer()

// DefaultNormalizer returns the process-wide normalizer used by the
// package-level helpers.
func DefaultNormalizer() *Normalizer {
	return defaultNormalizer
}

func NewNormalizer() *Normalizer {
	n := &Normalizer{}
	n.anyInfo, _ = n.TypeInfo(anyType)
	n.noneInfo, _ = n.TypeInfo(noneType)
	return n
}

// TypeInfo returns the normalization entry for t. A nil type is the type of
// an untyped nil and normalizes to None.
func (n *Normalizer) TypeInfo(t reflect.Type) (*TypeInfo, error) {
	if t == nil {
		t = noneType
	}
	if cached, ok := n.cache.Load(t); ok {
		return cached.(*TypeInfo), nil
	}

	building := make(map[reflect.Type]*TypeInfo)
	ti, err := n.build(t, building)
	if err != nil {
		return nil, err
	}

	// Recursive types reference entries of the building set, so the whole
	// set is published together.
	for typ, info := range building {
		n.cache.LoadOrStore(typ, info)
	}
	return ti, nil
}

func (n *Normalizer) build(t reflect.Type, building map[reflect.Type]*TypeInfo) (*TypeInfo, error) {
	if cached, ok := n.cache.Load(t); ok {
		return cached.(*TypeInfo), nil
	}
	if ti, ok := building[t]; ok {
		return ti, nil
	}

	ti := &TypeInfo{GoType: t, Reversible: true}
	building[t] = ti

	var err error
	switch {
	case t == noneType:
		ti.conv, ti.Tag = convNone, TagNone
	case t == charType:
		ti.conv, ti.Tag = convChar, TagText
	case t == arrayType:
		ti.conv, ti.Tag = convNDArray, TagArray
	case t == mapType:
		ti.conv, ti.Tag = convOrderedMap, TagMap
	case t == tupleType:
		ti.conv, ti.Tag = convTuple, TagTuple
		ti.Elem, err = n.build(anyType, building)
	case t.Kind() == reflect.Interface:
		ti.conv = convInterface
		ti.Reversible = t.NumMethod() == 0
	case t.Kind() == reflect.Pointer:
		ti.conv = convPointer
		ti.Elem, err = n.build(t.Elem(), building)
		if err == nil {
			ti.Reversible = ti.Elem.Reversible
		}
	case implements(t, textMarshalerType):
		ti.conv, ti.Tag = convText, TagText
		ti.Reversible = reflect.PointerTo(t).Implements(textUnmarshalerType)
	case implements(t, errorType):
		ti.conv, ti.Tag = convError, TagText
		ti.Reversible = false
	default:
		err = n.buildKind(ti, t, building)
	}

	if err != nil {
		delete(building, t)
		return nil, err
	}
	return ti, nil
}

func (n *Normalizer) buildKind(ti *TypeInfo, t reflect.Type, building map[reflect.Type]*TypeInfo) error {
	var err error
	switch t.Kind() {
	case reflect.Bool:
		ti.conv, ti.Tag = convBool, TagBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		ti.conv, ti.Tag, ti.Bits = convInt, TagInt, t.Bits()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		ti.conv, ti.Tag, ti.Bits = convUint, TagInt, t.Bits()
	case reflect.Float32:
		ti.conv, ti.Tag, ti.Bits = convFloat32, TagDouble, 32
	case reflect.Float64:
		ti.conv, ti.Tag, ti.Bits = convFloat64, TagDouble, 64
	case reflect.String:
		ti.conv, ti.Tag = convString, TagText
	case reflect.Slice:
		if t.Elem() == byteType {
			ti.conv, ti.Tag = convBytes, TagBlob
			return nil
		}
		ti.conv, ti.Tag = convSlice, TagList
		ti.Elem, err = n.build(t.Elem(), building)
	case reflect.Array:
		ti.Len = t.Len()
		if t.Elem() == byteType {
			ti.conv, ti.Tag = convByteArray, TagBlob
			return nil
		}
		ti.conv, ti.Tag = convArray, TagList
		ti.Elem, err = n.build(t.Elem(), building)
	case reflect.Struct:
		ti.conv, ti.Tag = convStruct, TagTuple
		err = n.buildFields(ti, t, building)
	case reflect.Map:
		ti.conv, ti.Tag = convMap, TagMap
		ti.Key, err = n.build(t.Key(), building)
		if err != nil {
			return err
		}
		if !orderableKey(ti.Key) {
			return errors.Unsupported(errors.PhaseNormalize, nil, t.String(),
				"map key must normalize to boolean, signed64, double or text")
		}
		ti.Elem, err = n.build(t.Elem(), building)
	default:
		return errors.Unsupported(errors.PhaseNormalize, nil, t.String(),
			"no canonical wire type for kind "+t.Kind().String())
	}
	return err
}

func (n *Normalizer) buildFields(ti *TypeInfo, t reflect.Type, building map[reflect.Type]*TypeInfo) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Tag.Get("callwire") == "-" {
			continue
		}
		fti, err := n.build(f.Type, building)
		if err != nil {
			return prefixPath(err, f.Name)
		}
		ti.Fields = append(ti.Fields, FieldInfo{Type: fti, Name: f.Name, Index: i})
		if !fti.Reversible {
			ti.Reversible = false
		}
	}
	return nil
}

func orderableKey(ti *TypeInfo) bool {
	switch ti.conv {
	case convBool, convInt, convUint, convFloat32, convFloat64, convString, convChar, convText, convInterface:
		return true
	default:
		return false
	}
}

func implements(t, iface reflect.Type) bool {
	return t.Implements(iface) || reflect.PointerTo(t).Implements(iface)
}

// root returns the entry for a top-level value.
func (n *Normalizer) root(v any) (*TypeInfo, reflect.Value, error) {
	if v == nil {
		return n.noneInfo, reflect.Value{}, nil
	}
	rv := reflect.ValueOf(v)
	ti, err := n.TypeInfo(rv.Type())
	return ti, rv, err
}

// resolve follows pointers and interfaces to the concrete entry of v. Nil
// pointers and nil interfaces resolve to None.
func (n *Normalizer) resolve(ti *TypeInfo, v reflect.Value) (*TypeInfo, reflect.Value, error) {
	for {
		switch ti.conv {
		case convPointer:
			if v.IsNil() {
				return n.noneInfo, reflect.Value{}, nil
			}
			ti, v = ti.Elem, v.Elem()
		case convInterface:
			if v.IsNil() {
				return n.noneInfo, reflect.Value{}, nil
			}
			v = v.Elem()
			var err error
			ti, err = n.TypeInfo(v.Type())
			if err != nil {
				return nil, reflect.Value{}, err
			}
		default:
			return ti, v, nil
		}
	}
}

// Normalize returns the canonical wire type of v and v in canonical form:
// nil, bool, int64, float64, string, []byte, []any, Tuple, *Map or Array.
func (n *Normalizer) Normalize(v any) (Tag, any, error) {
	buf := getBuffer()
	defer putBuffer(buf)
	if err := NewEncoder(buf, WithEncoderNormalizer(n)).Encode(v); err != nil {
		return TagReserved, nil, err
	}
	d := NewDecoder(buf.Bytes(), WithDecoderNormalizer(n))
	tag, _ := d.PeekTag()
	var out any
	if err := d.Read(&out); err != nil {
		return TagReserved, nil, err
	}
	return tag, out, nil
}

// Denormalize converts a canonical value into the concrete type target
// points to. It fails the same way a decode into that type would.
func (n *Normalizer) Denormalize(canonical any, target any) error {
	buf := getBuffer()
	defer putBuffer(buf)
	if err := NewEncoder(buf, WithEncoderNormalizer(n)).Encode(canonical); err != nil {
		return err
	}
	return NewDecoder(buf.Bytes(), WithDecoderNormalizer(n)).Read(target)
}

// Normalize uses the default normalizer.
func Normalize(v any) (Tag, any, error) {
	return defaultNormalizer.Normalize(v)
}

// Denormalize uses the default normalizer.
func Denormalize(canonical any, target any) error {
	return defaultNormalizer.Denormalize(canonical, target)
}

// prefixPath prepends a container path element to a structured error as it
// bubbles up through nested records.
func prefixPath(err error, elem string) error {
	if e, ok := err.(*errors.Error); ok {
		e.Path = append([]string{elem}, e.Path...)
	}
	return err
}
