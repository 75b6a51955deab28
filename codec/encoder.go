package codec

import (
	"bytes"
	"encoding"
	"encoding/binary"
	"io"
	"math"
	"reflect"
	"sort"

	"github.com/wippyai/callwire/codec/internal/wire"
	"github.com/wippyai/callwire/errors"
)

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithEncoderNormalizer makes the encoder use n instead of the default
// normalizer.
func WithEncoderNormalizer(n *Normalizer) EncoderOption {
	return func(e *Encoder) {
		if n != nil {
			e.norm = n
		}
	}
}

// Encoder writes records to an output stream. Each top-level value becomes
// exactly one record. An Encoder is not safe for concurrent use.
type Encoder struct {
	w       io.Writer
	out     io.Writer
	norm    *Normalizer
	written uint64
	scratch [wire.HeaderSize]byte
}

func NewEncoder(w io.Writer, opts ...EncoderOption) *Encoder {
	e := &Encoder{w: w, norm: defaultNormalizer}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Written returns the number of bytes written so far.
func (e *Encoder) Written() uint64 {
	return e.written
}

// Encode appends one record per value. On error the stream may hold a
// partial record and should be discarded.
func (e *Encoder) Encode(values ...any) error {
	bw := getWriter(e.w)
	defer putWriter(bw)
	if bw != nil {
		e.out = bw
	} else {
		e.out = e.w
	}

	for i, v := range values {
		if err := e.encodeTop(v); err != nil {
			if len(values) > 1 {
				return prefixPath(err, indexPath(i))
			}
			return err
		}
	}

	if bw != nil {
		if err := bw.Flush(); err != nil {
			return ioError(err)
		}
	}
	return nil
}

// Marshal encodes values into a new buffer sized exactly to the result.
func Marshal(values ...any) ([]byte, error) {
	return defaultNormalizer.Marshal(values...)
}

// Marshal encodes values into a new buffer sized exactly to the result.
func (n *Normalizer) Marshal(values ...any) ([]byte, error) {
	total, err := n.SequenceSize(values...)
	if err != nil {
		return nil, err
	}
	if total > math.MaxInt {
		return nil, sizeOverflow()
	}
	buf := bytes.NewBuffer(make([]byte, 0, int(total)))
	if err := NewEncoder(buf, WithEncoderNormalizer(n)).Encode(values...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *Encoder) encodeTop(v any) error {
	ti, rv, err := e.norm.root(v)
	if err != nil {
		return err
	}
	ti, rv, err = e.norm.resolve(ti, rv)
	if err != nil {
		return err
	}
	size, err := e.norm.payloadSize(ti, rv)
	if err != nil {
		return err
	}
	if err := e.writeHeader(ti.Tag, size); err != nil {
		return err
	}
	start := e.written
	if err := e.encodePayload(ti, rv); err != nil {
		return err
	}
	if got := e.written - start; got != size {
		return errors.SizeInvariant(errors.PhaseEncode, nil, ti.Tag.String(), size, got)
	}
	return nil
}

func (e *Encoder) encodeRecord(ti *TypeInfo, v reflect.Value) error {
	ti, v, err := e.norm.resolve(ti, v)
	if err != nil {
		return err
	}
	size, err := e.norm.payloadSize(ti, v)
	if err != nil {
		return err
	}
	if err := e.writeHeader(ti.Tag, size); err != nil {
		return err
	}
	return e.encodePayload(ti, v)
}

func (e *Encoder) encodePayload(ti *TypeInfo, v reflect.Value) error {
	switch ti.conv {
	case convNone:
		return nil

	case convBool:
		if v.Bool() {
			return e.writeByte(1)
		}
		return e.writeByte(0)

	case convInt:
		return e.writeU64(uint64(v.Int()))

	case convUint:
		return e.writeU64(v.Uint())

	case convFloat32, convFloat64:
		return e.writeU64(math.Float64bits(v.Float()))

	case convString:
		return e.writeString(v.String())

	case convChar:
		return e.writeByte(byte(v.Uint()))

	case convText:
		text, err := marshalText(v)
		if err != nil {
			return err
		}
		return e.write(text)

	case convError:
		return e.writeString(errorText(v))

	case convBytes:
		return e.write(v.Bytes())

	case convByteArray:
		if v.CanAddr() {
			return e.write(v.Slice(0, v.Len()).Bytes())
		}
		b := make([]byte, v.Len())
		for i := range b {
			b[i] = byte(v.Index(i).Uint())
		}
		return e.write(b)

	case convSlice, convArray, convTuple:
		for i := 0; i < v.Len(); i++ {
			if err := e.encodeRecord(ti.Elem, v.Index(i)); err != nil {
				return prefixPath(err, indexPath(i))
			}
		}
		return nil

	case convStruct:
		for _, f := range ti.Fields {
			if err := e.encodeRecord(f.Type, v.Field(f.Index)); err != nil {
				return prefixPath(err, f.Name)
			}
		}
		return nil

	case convMap:
		return e.encodeMap(ti, v)

	case convOrderedMap:
		m := v.Interface().(Map)
		for _, entry := range m.entries {
			if err := e.encodeRecord(e.norm.anyInfo, anyValue(entry.Key)); err != nil {
				return err
			}
			if err := e.encodeRecord(e.norm.anyInfo, anyValue(entry.Value)); err != nil {
				return prefixPath(err, keyPath(reflect.ValueOf(entry.Key)))
			}
		}
		return nil

	case convNDArray:
		return e.encodeArray(v.Interface().(Array))
	}

	return errors.Unsupported(errors.PhaseEncode, nil, ti.GoType.String(), "no encode rule")
}

// encodeMap writes entries in ascending canonical key order so that equal
// maps always produce equal bytes.
func (e *Encoder) encodeMap(ti *TypeInfo, v reflect.Value) error {
	type entry struct {
		key   reflect.Value
		value reflect.Value
		sort  sortKey
	}

	entries := make([]entry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		k := iter.Key()
		sk, err := e.norm.keyOf(ti.Key, k)
		if err != nil {
			return err
		}
		entries = append(entries, entry{key: k, value: iter.Value(), sort: sk})
	}
	sort.Slice(entries, func(i, j int) bool {
		return compareKeys(entries[i].sort, entries[j].sort) < 0
	})

	for i, ent := range entries {
		if i > 0 && compareKeys(entries[i-1].sort, ent.sort) == 0 {
			return errors.New(errors.PhaseEncode, errors.KindInvalidData).
				Path(keyPath(ent.key)).
				GoType(ti.GoType.String()).
				Detail("distinct keys normalize to the same canonical key").
				Build()
		}
		if err := e.encodeRecord(ti.Key, ent.key); err != nil {
			return prefixPath(err, "key")
		}
		if err := e.encodeRecord(ti.Elem, ent.value); err != nil {
			return prefixPath(err, keyPath(ent.key))
		}
	}
	return nil
}

func (e *Encoder) encodeArray(a Array) error {
	if err := e.writeHeader(TagList, uint64(len(a.Shape))*(HeaderSize+8)); err != nil {
		return err
	}
	for _, dim := range a.Shape {
		if err := e.writeHeader(TagInt, 8); err != nil {
			return err
		}
		if err := e.writeU64(uint64(dim)); err != nil {
			return err
		}
	}
	if err := e.writeHeader(TagText, uint64(len(a.Dtype))); err != nil {
		return err
	}
	if err := e.writeString(a.Dtype); err != nil {
		return err
	}
	if err := e.writeHeader(TagBlob, uint64(len(a.Data))); err != nil {
		return err
	}
	return e.write(a.Data)
}

// keyOf computes the canonical ordering key of a map key value.
func (n *Normalizer) keyOf(ti *TypeInfo, k reflect.Value) (sortKey, error) {
	ti, k, err := n.resolve(ti, k)
	if err != nil {
		return sortKey{}, err
	}
	switch ti.conv {
	case convBool:
		return sortKey{tag: TagBool, b: k.Bool()}, nil
	case convInt:
		return sortKey{tag: TagInt, i: k.Int()}, nil
	case convUint:
		return sortKey{tag: TagInt, i: int64(k.Uint())}, nil
	case convFloat32, convFloat64:
		return sortKey{tag: TagDouble, f: k.Float()}, nil
	case convString:
		return sortKey{tag: TagText, s: k.String()}, nil
	case convChar:
		return sortKey{tag: TagText, s: string([]byte{byte(k.Uint())})}, nil
	case convText:
		text, err := marshalText(k)
		if err != nil {
			return sortKey{}, err
		}
		return sortKey{tag: TagText, s: string(text)}, nil
	}
	return sortKey{}, errors.Unsupported(errors.PhaseEncode, nil, ti.GoType.String(),
		"map key must normalize to boolean, signed64, double or text")
}

func marshalText(v reflect.Value) ([]byte, error) {
	var m encoding.TextMarshaler
	switch {
	case v.Type().Implements(textMarshalerType):
		m = v.Interface().(encoding.TextMarshaler)
	case v.CanAddr():
		m = v.Addr().Interface().(encoding.TextMarshaler)
	default:
		p := reflect.New(v.Type())
		p.Elem().Set(v)
		m = p.Interface().(encoding.TextMarshaler)
	}
	text, err := m.MarshalText()
	if err != nil {
		return nil, errors.New(errors.PhaseEncode, errors.KindInvalidData).
			GoType(v.Type().String()).
			Cause(err).
			Detail("MarshalText failed").
			Build()
	}
	return text, nil
}

func errorText(v reflect.Value) string {
	if v.Type().Implements(errorType) {
		return v.Interface().(error).Error()
	}
	if v.CanAddr() {
		return v.Addr().Interface().(error).Error()
	}
	p := reflect.New(v.Type())
	p.Elem().Set(v)
	return p.Interface().(error).Error()
}

func (e *Encoder) write(p []byte) error {
	n, err := e.out.Write(p)
	e.written += uint64(n)
	if err != nil {
		return ioError(err)
	}
	return nil
}

func (e *Encoder) writeString(s string) error {
	n, err := io.WriteString(e.out, s)
	e.written += uint64(n)
	if err != nil {
		return ioError(err)
	}
	return nil
}

func (e *Encoder) writeByte(b byte) error {
	e.scratch[0] = b
	return e.write(e.scratch[:1])
}

func (e *Encoder) writeU64(x uint64) error {
	binary.LittleEndian.PutUint64(e.scratch[:8], x)
	return e.write(e.scratch[:8])
}

func (e *Encoder) writeHeader(tag Tag, length uint64) error {
	wire.Put(e.scratch[:], wire.Header{Tag: uint32(tag), Length: length})
	return e.write(e.scratch[:])
}

func ioError(err error) error {
	return errors.Wrap(errors.PhaseEncode, errors.KindInvalidData, err, "write failed")
}
