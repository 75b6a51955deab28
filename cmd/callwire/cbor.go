package main

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/wippyai/callwire/codec"
)

// cborMode re-encodes decoded values with Core Deterministic Encoding, so
// the same records always produce the same CBOR bytes.
var cborMode cbor.EncMode

func init() {
	var err error
	cborMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("callwire: CBOR encoder initialization failed: " + err.Error())
	}
}

// ndarrayCBOR is the CBOR form of an array record.
type ndarrayCBOR struct {
	Shape []int64 `cbor:"shape"`
	Dtype string  `cbor:"dtype"`
	Data  []byte  `cbor:"data"`
}

// toCBOR maps dynamically decoded values onto types the CBOR encoder
// handles natively. Map keys stay typed, so integer keys remain CBOR
// integers.
func toCBOR(v any) any {
	switch v := v.(type) {
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = toCBOR(item)
		}
		return out
	case codec.Tuple:
		return toCBOR([]any(v))
	case *codec.Map:
		out := make(map[any]any, v.Len())
		v.Range(func(key, value any) bool {
			out[key] = toCBOR(value)
			return true
		})
		return out
	case codec.Array:
		return ndarrayCBOR{Shape: v.Shape, Dtype: v.Dtype, Data: v.Data}
	default:
		return v
	}
}

// writeCBOR writes values as a CBOR sequence, one item per record.
func writeCBOR(w io.Writer, values []any) error {
	for i, v := range values {
		data, err := cborMode.Marshal(toCBOR(v))
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	return nil
}

// writeDiag writes one line of diagnostic notation per record.
func writeDiag(w io.Writer, values []any) error {
	for i, v := range values {
		data, err := cborMode.Marshal(toCBOR(v))
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		notation, err := cbor.Diagnose(data)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if _, err := fmt.Fprintln(w, notation); err != nil {
			return err
		}
	}
	return nil
}
