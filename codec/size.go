package codec

import (
	"reflect"
	"strconv"

	"github.com/wippyai/callwire/codec/internal/abi"
	"github.com/wippyai/callwire/errors"
)

// Size returns the payload size of v once encoded, header excluded.
func (n *Normalizer) Size(v any) (uint64, error) {
	ti, rv, err := n.root(v)
	if err != nil {
		return 0, err
	}
	ti, rv, err = n.resolve(ti, rv)
	if err != nil {
		return 0, err
	}
	return n.payloadSize(ti, rv)
}

// RecordSize returns the full encoded size of v, header included.
func (n *Normalizer) RecordSize(v any) (uint64, error) {
	ti, rv, err := n.root(v)
	if err != nil {
		return 0, err
	}
	return n.recordSize(ti, rv)
}

// SequenceSize returns the number of bytes Marshal produces for values.
func (n *Normalizer) SequenceSize(values ...any) (uint64, error) {
	var total uint64
	for i, v := range values {
		size, err := n.RecordSize(v)
		if err != nil {
			if len(values) > 1 {
				return 0, prefixPath(err, indexPath(i))
			}
			return 0, err
		}
		var ok bool
		if total, ok = abi.SafeAddU64(total, size); !ok {
			return 0, sizeOverflow()
		}
	}
	return total, nil
}

// Size uses the default normalizer.
func Size(v any) (uint64, error) {
	return defaultNormalizer.Size(v)
}

// RecordSize uses the default normalizer.
func RecordSize(v any) (uint64, error) {
	return defaultNormalizer.RecordSize(v)
}

// SequenceSize uses the default normalizer.
func SequenceSize(values ...any) (uint64, error) {
	return defaultNormalizer.SequenceSize(values...)
}

func (n *Normalizer) recordSize(ti *TypeInfo, v reflect.Value) (uint64, error) {
	ti, v, err := n.resolve(ti, v)
	if err != nil {
		return 0, err
	}
	payload, err := n.payloadSize(ti, v)
	if err != nil {
		return 0, err
	}
	total, ok := abi.SafeAddU64(payload, HeaderSize)
	if !ok {
		return 0, sizeOverflow()
	}
	return total, nil
}

// payloadSize expects a resolved entry.
func (n *Normalizer) payloadSize(ti *TypeInfo, v reflect.Value) (uint64, error) {
	if w, ok := ti.fixedWidth(); ok {
		return w, nil
	}

	switch ti.conv {
	case convString, convBytes, convByteArray:
		return uint64(v.Len()), nil

	case convText:
		text, err := marshalText(v)
		if err != nil {
			return 0, err
		}
		return uint64(len(text)), nil

	case convError:
		return uint64(len(errorText(v))), nil

	case convSlice, convArray:
		count := uint64(v.Len())
		if w, ok := ti.Elem.fixedWidth(); ok {
			total, ok := abi.SafeMulU64(count, HeaderSize+w)
			if !ok {
				return 0, sizeOverflow()
			}
			return total, nil
		}
		return n.sumElements(ti.Elem, v)

	case convTuple:
		return n.sumElements(ti.Elem, v)

	case convStruct:
		var total uint64
		for _, f := range ti.Fields {
			size, err := n.recordSize(f.Type, v.Field(f.Index))
			if err != nil {
				return 0, prefixPath(err, f.Name)
			}
			var ok bool
			if total, ok = abi.SafeAddU64(total, size); !ok {
				return 0, sizeOverflow()
			}
		}
		return total, nil

	case convMap:
		var total uint64
		iter := v.MapRange()
		for iter.Next() {
			ks, err := n.recordSize(ti.Key, iter.Key())
			if err != nil {
				return 0, prefixPath(err, "key")
			}
			vs, err := n.recordSize(ti.Elem, iter.Value())
			if err != nil {
				return 0, prefixPath(err, keyPath(iter.Key()))
			}
			if total, err = addEntry(total, ks, vs); err != nil {
				return 0, err
			}
		}
		return total, nil

	case convOrderedMap:
		m := v.Interface().(Map)
		var total uint64
		for _, e := range m.entries {
			ks, err := n.recordSize(n.anyInfo, anyValue(e.Key))
			if err != nil {
				return 0, err
			}
			vs, err := n.recordSize(n.anyInfo, anyValue(e.Value))
			if err != nil {
				return 0, prefixPath(err, keyPath(reflect.ValueOf(e.Key)))
			}
			if total, err = addEntry(total, ks, vs); err != nil {
				return 0, err
			}
		}
		return total, nil

	case convNDArray:
		a := v.Interface().(Array)
		return arraySize(a), nil
	}

	return 0, errors.Unsupported(errors.PhaseEncode, nil, ti.GoType.String(), "no size rule")
}

func (n *Normalizer) sumElements(elem *TypeInfo, v reflect.Value) (uint64, error) {
	var total uint64
	for i := 0; i < v.Len(); i++ {
		size, err := n.recordSize(elem, v.Index(i))
		if err != nil {
			return 0, prefixPath(err, indexPath(i))
		}
		var ok bool
		if total, ok = abi.SafeAddU64(total, size); !ok {
			return 0, sizeOverflow()
		}
	}
	return total, nil
}

// arraySize is the payload of an ndarray record: a shape list of signed64
// records, a dtype text record and a data blob record.
func arraySize(a Array) uint64 {
	shape := HeaderSize + uint64(len(a.Shape))*(HeaderSize+8)
	dtype := HeaderSize + uint64(len(a.Dtype))
	data := HeaderSize + uint64(len(a.Data))
	return shape + dtype + data
}

// addEntry adds a map entry's key and value record sizes to total one at a
// time so that neither sum can wrap.
func addEntry(total, ks, vs uint64) (uint64, error) {
	total, ok := abi.SafeAddU64(total, ks)
	if !ok {
		return 0, sizeOverflow()
	}
	if total, ok = abi.SafeAddU64(total, vs); !ok {
		return 0, sizeOverflow()
	}
	return total, nil
}

func sizeOverflow() error {
	return errors.New(errors.PhaseEncode, errors.KindOverflow).
		Detail("encoded size exceeds 2^64-1 bytes").
		Build()
}

func anyValue(x any) reflect.Value {
	return reflect.ValueOf(&x).Elem()
}

func indexPath(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}

func keyPath(k reflect.Value) string {
	if !k.IsValid() {
		return "[nil]"
	}
	if k.Kind() == reflect.Interface {
		if k.IsNil() {
			return "[nil]"
		}
		k = k.Elem()
	}
	switch k.Kind() {
	case reflect.String:
		return strconv.Quote(k.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "[" + strconv.FormatInt(k.Int(), 10) + "]"
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return "[" + strconv.FormatUint(k.Uint(), 10) + "]"
	case reflect.Bool:
		return "[" + strconv.FormatBool(k.Bool()) + "]"
	case reflect.Float32, reflect.Float64:
		return "[" + strconv.FormatFloat(k.Float(), 'g', -1, 64) + "]"
	default:
		return "[" + k.Type().String() + "]"
	}
}
