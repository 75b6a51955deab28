package codec

import (
	"encoding"
	"encoding/binary"
	"fmt"
	"math"
	"reflect"

	"github.com/wippyai/callwire/codec/internal/abi"
	"github.com/wippyai/callwire/codec/internal/wire"
	"github.com/wippyai/callwire/errors"
)

// DefaultMaxDepth is the deepest container nesting a Decoder accepts
// unless WithMaxDepth says otherwise.
const DefaultMaxDepth = 1000

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithMaxDepth limits container nesting to n levels below the top-level
// record. Deeper values fail with an invalid data error. Values below one
// keep the default.
func WithMaxDepth(n int) DecoderOption {
	return func(d *Decoder) {
		if n > 0 {
			d.maxDepth = n
		}
	}
}

// WithStrictNarrowing makes integer and float decodes into narrower Go
// types fail with an overflow or precision loss error instead of
// truncating.
func WithStrictNarrowing() DecoderOption {
	return func(d *Decoder) {
		d.strict = true
	}
}

// WithDecoderNormalizer makes the decoder use n instead of the default
// normalizer.
func WithDecoderNormalizer(n *Normalizer) DecoderOption {
	return func(d *Decoder) {
		if n != nil {
			d.norm = n
		}
	}
}

// State is the position of a Decoder in its lifecycle.
type State uint8

const (
	StateFresh State = iota
	StateReading
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateReading:
		return "reading"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Decoder reads records from a byte window it does not own. The cursor only
// advances after a successful read, so a failed read leaves the decoder
// positioned on the offending record. A Decoder is not safe for concurrent
// use.
type Decoder struct {
	window   []byte
	norm     *Normalizer
	off      int
	depth    int
	maxDepth int
	strict   bool
	started  bool
}

func NewDecoder(window []byte, opts ...DecoderOption) *Decoder {
	d := &Decoder{window: window, norm: defaultNormalizer, maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// sub returns a decoder over a container payload sharing d's settings.
func (d *Decoder) sub(payload []byte) *Decoder {
	return &Decoder{
		window:   payload,
		norm:     d.norm,
		depth:    d.depth + 1,
		maxDepth: d.maxDepth,
		strict:   d.strict,
		started:  true,
	}
}

// Len returns the window size.
func (d *Decoder) Len() int { return len(d.window) }

// Offset returns the cursor position.
func (d *Decoder) Offset() int { return d.off }

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int { return len(d.window) - d.off }

// Exhausted reports whether the cursor reached the end of the window.
func (d *Decoder) Exhausted() bool { return d.off >= len(d.window) }

// Reset rewinds the cursor to the start of the window.
func (d *Decoder) Reset() {
	d.off = 0
	d.started = false
}

func (d *Decoder) State() State {
	switch {
	case !d.started:
		return StateFresh
	case d.Exhausted():
		return StateExhausted
	default:
		return StateReading
	}
}

// PeekTag returns the tag of the next record without advancing.
func (d *Decoder) PeekTag() (Tag, bool) {
	d.started = true
	tag, ok := wire.PeekTag(d.window[d.off:])
	return Tag(tag), ok
}

// Matches reports whether the tag of the next record is one the Go type t
// accepts. It compares tags only, so a later Read may still fail on the
// payload or on a type that cannot be decoded. It never advances and never
// fails.
func (d *Decoder) Matches(t reflect.Type) bool {
	tag, ok := d.PeekTag()
	if !ok {
		return false
	}
	ti, err := d.norm.TypeInfo(t)
	if err != nil {
		return false
	}
	return ti.Accepts(tag)
}

// Peek reports whether the next record can be read as a T.
func Peek[T any](d *Decoder) bool {
	return d.Matches(reflect.TypeFor[T]())
}

// Read decodes the next record as a T.
func Read[T any](d *Decoder) (T, error) {
	var v T
	err := d.Read(&v)
	return v, err
}

// Read decodes the next record into the value v points to.
func (d *Decoder) Read(v any) error {
	rv := reflect.ValueOf(v)
	if v == nil || rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.NilPointer(errors.PhaseDecode, nil, abi.TypeName(v))
	}
	ti, err := d.norm.TypeInfo(rv.Type().Elem())
	if err != nil {
		return err
	}
	return d.readValue(ti, rv.Elem())
}

// ReadMany decodes consecutive records into each target in order. It stops
// at the first failure; records before it stay consumed.
func (d *Decoder) ReadMany(targets ...any) error {
	for i, v := range targets {
		if err := d.Read(v); err != nil {
			return prefixPath(err, indexPath(i))
		}
	}
	return nil
}

// Next returns the next record without interpreting its payload.
func (d *Decoder) Next() (Record, error) {
	rec, err := d.record("record")
	if err != nil {
		return Record{}, err
	}
	d.off += rec.Size()
	return rec, nil
}

// Skip advances past the next record and returns its tag.
func (d *Decoder) Skip() (Tag, error) {
	rec, err := d.Next()
	return rec.Tag, err
}

// record locates the next record and checks its bounds without advancing.
func (d *Decoder) record(goType string) (Record, error) {
	d.started = true
	if d.Exhausted() {
		return Record{}, errors.EmptyRead(nil, goType)
	}
	rest := d.window[d.off:]
	h, ok := wire.Parse(rest)
	if !ok {
		return Record{}, errors.Truncated(nil, d.off, wire.HeaderSize, uint64(len(rest)))
	}
	avail := uint64(len(rest) - wire.HeaderSize)
	if h.Length > avail {
		return Record{}, errors.Truncated(nil, d.off+wire.HeaderSize, h.Length, avail)
	}
	end := wire.HeaderSize + int(h.Length)
	return Record{Tag: Tag(h.Tag), Offset: d.off, Payload: rest[wire.HeaderSize:end:end]}, nil
}

func (d *Decoder) readValue(ti *TypeInfo, dst reflect.Value) error {
	goType := ti.GoType.String()
	d.started = true
	if d.depth > d.maxDepth {
		return errors.InvalidData(errors.PhaseDecode, nil,
			fmt.Sprintf("nesting exceeds maximum depth %d", d.maxDepth))
	}
	if d.Exhausted() {
		return errors.EmptyRead(nil, goType)
	}

	tag, ok := wire.PeekTag(d.window[d.off:])
	if !ok {
		return errors.Truncated(nil, d.off, wire.TagSize, uint64(d.Remaining()))
	}
	if !ti.Accepts(Tag(tag)) {
		return errors.TypeMismatch(errors.PhaseDecode, nil, goType, ti.WireName(), Tag(tag).String())
	}

	rec, err := d.record(goType)
	if err != nil {
		return err
	}
	if err := d.decodePayload(ti, rec.Tag, rec.Payload, dst); err != nil {
		return err
	}
	d.off += rec.Size()
	return nil
}

func (d *Decoder) decodePayload(ti *TypeInfo, tag Tag, payload []byte, dst reflect.Value) error {
	switch ti.conv {
	case convPointer:
		if tag == TagNone && ti.Elem.conv != convNone {
			dst.SetZero()
			return nil
		}
		if dst.IsNil() {
			dst.Set(reflect.New(ti.Elem.GoType))
		}
		return d.decodePayload(ti.Elem, tag, payload, dst.Elem())

	case convInterface:
		if tag == TagNone {
			dst.SetZero()
			return nil
		}
		if !ti.Reversible {
			return errors.UnsupportedReverse(nil, ti.GoType.String(), tag.String())
		}
		val, err := d.decodeDynamic(tag, payload)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(val))
		return nil

	case convNone:
		return expectLen(tag, payload, 0)

	case convBool:
		if err := expectLen(tag, payload, 1); err != nil {
			return err
		}
		dst.SetBool(payload[0] != 0)
		return nil

	case convInt:
		if err := expectLen(tag, payload, 8); err != nil {
			return err
		}
		x := int64(binary.LittleEndian.Uint64(payload))
		if d.strict && !abi.FitsInt(x, ti.Bits) {
			return errors.Overflow(errors.PhaseDecode, nil, x, ti.GoType.String())
		}
		dst.SetInt(x)
		return nil

	case convUint:
		if err := expectLen(tag, payload, 8); err != nil {
			return err
		}
		x := int64(binary.LittleEndian.Uint64(payload))
		if d.strict && !abi.FitsUint(x, ti.Bits) {
			return errors.Overflow(errors.PhaseDecode, nil, x, ti.GoType.String())
		}
		dst.SetUint(uint64(x))
		return nil

	case convFloat32, convFloat64:
		if err := expectLen(tag, payload, 8); err != nil {
			return err
		}
		f := math.Float64frombits(binary.LittleEndian.Uint64(payload))
		if ti.conv == convFloat32 && d.strict && !abi.FitsFloat32(f) {
			return errors.PrecisionLoss(errors.PhaseDecode, nil, f, ti.GoType.String())
		}
		dst.SetFloat(f)
		return nil

	case convString:
		dst.SetString(string(payload))
		return nil

	case convChar:
		if err := expectLen(tag, payload, 1); err != nil {
			return err
		}
		dst.SetUint(uint64(payload[0]))
		return nil

	case convText:
		if !ti.Reversible {
			return errors.UnsupportedReverse(nil, ti.GoType.String(), tag.String())
		}
		u := dst.Addr().Interface().(encoding.TextUnmarshaler)
		if err := u.UnmarshalText(payload); err != nil {
			return errors.New(errors.PhaseDecode, errors.KindInvalidData).
				GoType(ti.GoType.String()).
				WireType(tag.String()).
				Cause(err).
				Detail("UnmarshalText failed").
				Build()
		}
		return nil

	case convError:
		return errors.UnsupportedReverse(nil, ti.GoType.String(), tag.String())

	case convBytes:
		b := make([]byte, len(payload))
		copy(b, payload)
		dst.SetBytes(b)
		return nil

	case convByteArray:
		if err := expectLen(tag, payload, uint64(ti.Len)); err != nil {
			return err
		}
		for i, c := range payload {
			dst.Index(i).SetUint(uint64(c))
		}
		return nil

	case convSlice:
		return d.decodeSlice(ti, payload, dst)

	case convArray:
		sub := d.sub(payload)
		for i := 0; i < ti.Len; i++ {
			if err := sub.readValue(ti.Elem, dst.Index(i)); err != nil {
				return prefixPath(err, indexPath(i))
			}
		}
		return sub.expectEnd(tag, ti.Len)

	case convStruct:
		sub := d.sub(payload)
		for _, f := range ti.Fields {
			if err := sub.readValue(f.Type, dst.Field(f.Index)); err != nil {
				return prefixPath(err, f.Name)
			}
		}
		return sub.expectEnd(tag, len(ti.Fields))

	case convTuple:
		sub := d.sub(payload)
		out := Tuple{}
		for i := 0; !sub.Exhausted(); i++ {
			var x any
			if err := sub.readValue(d.norm.anyInfo, reflect.ValueOf(&x).Elem()); err != nil {
				return prefixPath(err, indexPath(i))
			}
			out = append(out, x)
		}
		dst.Set(reflect.ValueOf(out))
		return nil

	case convMap:
		return d.decodeMap(ti, payload, dst)

	case convOrderedMap:
		return d.decodeOrderedMap(payload, dst)

	case convNDArray:
		return d.decodeArray(payload, dst)
	}

	return errors.Unsupported(errors.PhaseDecode, nil, ti.GoType.String(), "no decode rule")
}

func (d *Decoder) decodeSlice(ti *TypeInfo, payload []byte, dst reflect.Value) error {
	capacity := 0
	if w, ok := ti.Elem.fixedWidth(); ok {
		capacity = len(payload) / int(HeaderSize+w)
	}
	out := reflect.MakeSlice(ti.GoType, 0, capacity)
	sub := d.sub(payload)
	for i := 0; !sub.Exhausted(); i++ {
		elem := reflect.New(ti.Elem.GoType).Elem()
		if err := sub.readValue(ti.Elem, elem); err != nil {
			return prefixPath(err, indexPath(i))
		}
		out = reflect.Append(out, elem)
	}
	dst.Set(out)
	return nil
}

func (d *Decoder) decodeMap(ti *TypeInfo, payload []byte, dst reflect.Value) error {
	out := reflect.MakeMap(ti.GoType)
	sub := d.sub(payload)
	for i := 0; !sub.Exhausted(); i++ {
		k := reflect.New(ti.Key.GoType).Elem()
		if err := sub.readValue(ti.Key, k); err != nil {
			return prefixPath(err, "key"+indexPath(i))
		}
		if k.Kind() == reflect.Interface && !k.IsNil() && !k.Elem().Type().Comparable() {
			return errors.InvalidData(errors.PhaseDecode, []string{"key" + indexPath(i)},
				"map key of type "+k.Elem().Type().String()+" is not hashable")
		}
		if sub.Exhausted() {
			return errors.EmptyRead([]string{keyPath(k)}, ti.Elem.GoType.String())
		}
		v := reflect.New(ti.Elem.GoType).Elem()
		if err := sub.readValue(ti.Elem, v); err != nil {
			return prefixPath(err, keyPath(k))
		}
		if out.MapIndex(k).IsValid() {
			return errors.InvalidData(errors.PhaseDecode, []string{keyPath(k)}, "duplicate map key")
		}
		out.SetMapIndex(k, v)
	}
	dst.Set(out)
	return nil
}

func (d *Decoder) decodeOrderedMap(payload []byte, dst reflect.Value) error {
	var m Map
	sub := d.sub(payload)
	for i := 0; !sub.Exhausted(); i++ {
		var k, v any
		if err := sub.readValue(d.norm.anyInfo, reflect.ValueOf(&k).Elem()); err != nil {
			return prefixPath(err, "key"+indexPath(i))
		}
		sk, ok := canonicalKey(k)
		if !ok {
			return errors.InvalidData(errors.PhaseDecode, []string{"key" + indexPath(i)},
				"map key of type "+abi.TypeName(k)+" is not orderable")
		}
		path := keyPath(reflect.ValueOf(k))
		if sub.Exhausted() {
			return errors.EmptyRead([]string{path}, "any")
		}
		if err := sub.readValue(d.norm.anyInfo, reflect.ValueOf(&v).Elem()); err != nil {
			return prefixPath(err, path)
		}
		if _, found := m.search(sk); found {
			return errors.InvalidData(errors.PhaseDecode, []string{path}, "duplicate map key")
		}
		if err := m.Set(k, v); err != nil {
			return err
		}
	}
	dst.Set(reflect.ValueOf(m))
	return nil
}

func (d *Decoder) decodeArray(payload []byte, dst reflect.Value) error {
	var a Array
	sub := d.sub(payload)
	if err := sub.Read(&a.Shape); err != nil {
		return prefixPath(err, "shape")
	}
	if err := sub.Read(&a.Dtype); err != nil {
		return prefixPath(err, "dtype")
	}
	if err := sub.Read(&a.Data); err != nil {
		return prefixPath(err, "data")
	}
	if err := sub.expectEnd(TagArray, 3); err != nil {
		return err
	}
	if len(a.Shape) == 0 {
		a.Shape = nil
	}
	dst.Set(reflect.ValueOf(a))
	return nil
}

// dynamicTypes are the Go types produced when decoding into an empty
// interface.
var dynamicTypes = [...]reflect.Type{
	TagNone:   noneType,
	TagBool:   reflect.TypeFor[bool](),
	TagInt:    reflect.TypeFor[int64](),
	TagDouble: reflect.TypeFor[float64](),
	TagText:   reflect.TypeFor[string](),
	TagBlob:   reflect.TypeFor[[]byte](),
	TagList:   reflect.TypeFor[[]any](),
	TagTuple:  tupleType,
	TagMap:    reflect.TypeFor[*Map](),
	TagArray:  arrayType,
}

func (d *Decoder) decodeDynamic(tag Tag, payload []byte) (any, error) {
	if !tag.Valid() {
		return nil, errors.InvalidData(errors.PhaseDecode, nil, "unknown tag "+tag.String())
	}
	t := dynamicTypes[tag]
	ti, err := d.norm.TypeInfo(t)
	if err != nil {
		return nil, err
	}
	v := reflect.New(t).Elem()
	if err := d.decodePayload(ti, tag, payload, v); err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

func expectLen(tag Tag, payload []byte, want uint64) error {
	if got := uint64(len(payload)); got != want {
		return errors.SizeInvariant(errors.PhaseDecode, nil, tag.String(), want, got)
	}
	return nil
}

// expectEnd fails when a fixed-arity container has bytes left after its
// last element.
func (d *Decoder) expectEnd(tag Tag, elements int) error {
	if d.Exhausted() {
		return nil
	}
	return errors.New(errors.PhaseDecode, errors.KindSizeInvariant).
		WireType(tag.String()).
		Value(uint64(d.Remaining())).
		Detail("%d trailing bytes after %d elements", d.Remaining(), elements).
		Build()
}
