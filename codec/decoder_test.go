package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"reflect"
	"testing"

	"github.com/wippyai/callwire/errors"
)

func TestDecoder_EmptyRead(t *testing.T) {
	d := NewDecoder(nil)
	_, err := Read[string](d)
	assertKind(t, err, errors.KindEmptyRead)

	data, _ := Marshal(int64(1))
	d = NewDecoder(data)
	if _, err := Read[int64](d); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	_, err = Read[int64](d)
	assertKind(t, err, errors.KindEmptyRead)
}

func TestDecoder_Truncated(t *testing.T) {
	full, _ := Marshal(int64(7))

	tests := []struct {
		name string
		data []byte
	}{
		{"partial tag", full[:3]},
		{"partial length", full[:9]},
		{"partial payload", full[:15]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read[int64](NewDecoder(tt.data))
			assertKind(t, err, errors.KindTruncated)
		})
	}
}

func TestDecoder_TruncatedInsideContainer(t *testing.T) {
	// The list claims more payload than its window holds once nested.
	inner := record(TagInt, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	inner = inner[:len(inner)-2]
	data := record(TagList, inner)

	_, err := Read[[]int64](NewDecoder(data))
	assertKind(t, err, errors.KindTruncated)
	var e *errors.Error
	if !asError(err, &e) || len(e.Path) != 1 || e.Path[0] != "[0]" {
		t.Errorf("path = %v, want [[0]]", e.Path)
	}
}

func TestDecoder_SizeInvariant(t *testing.T) {
	tests := []struct {
		name string
		read func(*Decoder) error
		data []byte
	}{
		{"bool two bytes", func(d *Decoder) error { _, err := Read[bool](d); return err }, record(TagBool, []byte{1, 0})},
		{"int short", func(d *Decoder) error { _, err := Read[int64](d); return err }, record(TagInt, []byte{1, 2, 3, 4})},
		{"double long", func(d *Decoder) error { _, err := Read[float64](d); return err }, record(TagDouble, make([]byte, 9))},
		{"char two bytes", func(d *Decoder) error { _, err := Read[Char](d); return err }, record(TagText, []byte("ab"))},
		{"char empty", func(d *Decoder) error { _, err := Read[Char](d); return err }, record(TagText, nil)},
		{"none with payload", func(d *Decoder) error { _, err := Read[None](d); return err }, record(TagNone, make([]byte, 8))},
		{"byte array length", func(d *Decoder) error { _, err := Read[[4]byte](d); return err }, record(TagBlob, []byte{1, 2, 3})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertKind(t, tt.read(NewDecoder(tt.data)), errors.KindSizeInvariant)
		})
	}
}

func TestDecoder_TupleArity(t *testing.T) {
	data, _ := Marshal(Tuple{int64(1), 2.0, "extra"})

	_, err := Read[struct {
		A int64
		B float64
	}](NewDecoder(data))
	assertKind(t, err, errors.KindSizeInvariant)

	_, err = Read[struct {
		A int64
		B float64
		C string
		D bool
	}](NewDecoder(data))
	assertKind(t, err, errors.KindEmptyRead)

	_, err = Read[[2]int64](NewDecoder(data))
	assertKind(t, err, errors.KindTypeMismatch)
}

func TestDecoder_TypeMismatchPath(t *testing.T) {
	data, _ := Marshal(Tuple{int64(1), []any{"a", true}})

	_, err := Read[struct {
		N     int64
		Names []string
	}](NewDecoder(data))
	assertKind(t, err, errors.KindTypeMismatch)

	var e *errors.Error
	if !asError(err, &e) {
		t.Fatalf("error %T is not *errors.Error", err)
	}
	if !reflect.DeepEqual(e.Path, []string{"Names", "[1]"}) {
		t.Errorf("path = %v, want [Names [1]]", e.Path)
	}
	if e.WireType != "text" {
		t.Errorf("wire type = %q, want text", e.WireType)
	}
}

type writeOnly struct{ s string }

func (w writeOnly) MarshalText() ([]byte, error) { return []byte(w.s), nil }

func TestDecoder_UnsupportedReverse(t *testing.T) {
	data, err := Marshal(fmt.Errorf("boom"), writeOnly{"w"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	d := NewDecoder(data)
	var e error
	assertKind(t, d.Read(&e), errors.KindUnsupportedReverse)

	// The record is intact and still readable as text.
	s, err := Read[string](d)
	if err != nil || s != "boom" {
		t.Fatalf("Read[string] = %q, %v; want boom", s, err)
	}

	var w writeOnly
	assertKind(t, d.Read(&w), errors.KindUnsupportedReverse)
	// Peek compares tags only; the record is text, so it matches even
	// though the read above cannot complete.
	if !Peek[writeOnly](d) {
		t.Error("Peek[writeOnly] = false on a text record, want true")
	}
	if Peek[int64](d) {
		t.Error("Peek[int64] = true on a text record")
	}
}

func TestDecoder_TextUnmarshaler(t *testing.T) {
	data, _ := Marshal("up")
	var lvl level
	if err := NewDecoder(data).Read(&lvl); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if lvl != levelUp {
		t.Errorf("level = %v, want up", lvl)
	}

	data, _ = Marshal("sideways")
	assertKind(t, NewDecoder(data).Read(&lvl), errors.KindInvalidData)
}

func TestDecoder_Narrowing(t *testing.T) {
	ints, _ := Marshal(int64(300), int64(-1))
	floats, _ := Marshal(0.1)

	t.Run("permissive", func(t *testing.T) {
		d := NewDecoder(ints)
		u8, err := Read[uint8](d)
		if err != nil || u8 != 44 {
			t.Errorf("Read[uint8] = %d, %v; want 44", u8, err)
		}
		u16, err := Read[uint16](d)
		if err != nil || u16 != 0xffff {
			t.Errorf("Read[uint16] = %d, %v; want 65535", u16, err)
		}
		f, err := Read[float32](NewDecoder(floats))
		if err != nil || f != float32(0.1) {
			t.Errorf("Read[float32] = %v, %v; want 0.1", f, err)
		}
	})

	t.Run("strict", func(t *testing.T) {
		d := NewDecoder(ints, WithStrictNarrowing())
		_, err := Read[uint8](d)
		assertKind(t, err, errors.KindOverflow)
		if d.Offset() != 0 {
			t.Errorf("offset = %d after failed read, want 0", d.Offset())
		}
		if _, err := Read[int16](d); err != nil {
			t.Errorf("Read[int16] of 300 failed: %v", err)
		}
		_, err = Read[uint32](d)
		assertKind(t, err, errors.KindOverflow)

		_, err = Read[float32](NewDecoder(floats, WithStrictNarrowing()))
		assertKind(t, err, errors.KindPrecisionLoss)

		exact, _ := Marshal(0.5)
		if f, err := Read[float32](NewDecoder(exact, WithStrictNarrowing())); err != nil || f != 0.5 {
			t.Errorf("Read[float32] of 0.5 = %v, %v", f, err)
		}
	})
}

func TestDecoder_MapErrors(t *testing.T) {
	t.Run("duplicate key", func(t *testing.T) {
		payload, _ := Marshal("a", int64(1), "a", int64(2))
		data := record(TagMap, payload)
		_, err := Read[map[string]int64](NewDecoder(data))
		assertKind(t, err, errors.KindInvalidData)
		_, err = Read[*Map](NewDecoder(data))
		assertKind(t, err, errors.KindInvalidData)
	})

	t.Run("dangling key", func(t *testing.T) {
		payload, _ := Marshal("a")
		data := record(TagMap, payload)
		_, err := Read[map[string]int64](NewDecoder(data))
		assertKind(t, err, errors.KindEmptyRead)
		_, err = Read[*Map](NewDecoder(data))
		assertKind(t, err, errors.KindEmptyRead)
	})

	t.Run("unorderable key", func(t *testing.T) {
		payload, _ := Marshal([]int64{1}, int64(1))
		_, err := Read[*Map](NewDecoder(record(TagMap, payload)))
		assertKind(t, err, errors.KindInvalidData)
	})

	t.Run("unhashable dynamic key", func(t *testing.T) {
		payload, _ := Marshal([]int64{1}, int64(1))
		_, err := Read[map[any]int64](NewDecoder(record(TagMap, payload)))
		assertKind(t, err, errors.KindInvalidData)
	})
}

func TestDecoder_Dynamic(t *testing.T) {
	m := NewMap()
	_ = m.Set("k", nil)
	data, _ := Marshal(nil, true, int8(3), float32(1.5), "s", []byte{1}, []int{1}, point{X: 1}, m)

	want := []any{
		nil,
		true,
		int64(3),
		1.5,
		"s",
		[]byte{1},
		[]any{int64(1)},
		Tuple{int64(1), 0.0, ""},
		m,
	}

	d := NewDecoder(data)
	for i, w := range want {
		var got any
		if err := d.Read(&got); err != nil {
			t.Fatalf("value %d: Read failed: %v", i, err)
		}
		if !reflect.DeepEqual(got, w) {
			t.Errorf("value %d = %#v, want %#v", i, got, w)
		}
	}
}

func TestDecoder_UnknownTag(t *testing.T) {
	data := record(Tag(42), nil)
	var v any
	assertKind(t, NewDecoder(data).Read(&v), errors.KindTypeMismatch)

	rec, err := NewDecoder(data).Next()
	if err != nil || rec.Tag != 42 {
		t.Errorf("Next = %+v, %v; want raw record with tag 42", rec, err)
	}
}

func TestDecoder_State(t *testing.T) {
	data, _ := Marshal(true)
	d := NewDecoder(data)

	if d.State() != StateFresh {
		t.Errorf("state = %v, want fresh", d.State())
	}
	d.PeekTag()
	if d.State() != StateReading {
		t.Errorf("state after peek = %v, want reading", d.State())
	}
	if _, err := Read[bool](d); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if d.State() != StateExhausted || !d.Exhausted() {
		t.Errorf("state after read = %v, want exhausted", d.State())
	}
	d.Reset()
	if d.State() != StateFresh || d.Offset() != 0 {
		t.Errorf("state after reset = %v at %d, want fresh at 0", d.State(), d.Offset())
	}
}

func TestDecoder_Next(t *testing.T) {
	data, _ := Marshal("ab", []int64{1})
	d := NewDecoder(data)

	rec, err := d.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if rec.Tag != TagText || !bytes.Equal(rec.Payload, []byte("ab")) || rec.Offset != 0 || rec.Size() != 14 {
		t.Errorf("first record = %+v", rec)
	}

	rec, err = d.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if rec.Tag != TagList || rec.Offset != 14 || len(rec.Payload) != 20 {
		t.Errorf("second record = %+v", rec)
	}

	inner := NewDecoder(rec.Payload)
	if v, err := Read[int64](inner); err != nil || v != 1 {
		t.Errorf("inner Read = %d, %v; want 1", v, err)
	}

	_, err = d.Next()
	assertKind(t, err, errors.KindEmptyRead)
}

func TestDecoder_ReadManyStopsAtFailure(t *testing.T) {
	data, _ := Marshal(int64(1), "two", int64(3))
	d := NewDecoder(data)

	var a, c int64
	var b bool
	err := d.ReadMany(&a, &b, &c)
	assertKind(t, err, errors.KindTypeMismatch)

	var e *errors.Error
	if asError(err, &e) && (len(e.Path) == 0 || e.Path[0] != "[1]") {
		t.Errorf("path = %v, want it to start with [1]", e.Path)
	}
	if a != 1 {
		t.Errorf("a = %d, want 1", a)
	}
	if d.Offset() != 20 {
		t.Errorf("offset = %d, want 20", d.Offset())
	}
}

func TestDecoder_ReadTarget(t *testing.T) {
	data, _ := Marshal(int64(1))
	d := NewDecoder(data)

	assertKind(t, d.Read(nil), errors.KindNilPointer)
	var x int64
	assertKind(t, d.Read(x), errors.KindNilPointer)
	var p *int64
	assertKind(t, d.Read(p), errors.KindNilPointer)
}

func TestDecoder_CopiesPayload(t *testing.T) {
	data, _ := Marshal([]byte{1, 2, 3}, "abc")
	d := NewDecoder(data)
	b, _ := Read[[]byte](d)
	s, _ := Read[string](d)

	for i := range data {
		data[i] = 0
	}
	if !bytes.Equal(b, []byte{1, 2, 3}) || s != "abc" {
		t.Errorf("decoded values alias the window: %v %q", b, s)
	}
}

func TestPeek_Optional(t *testing.T) {
	data, _ := Marshal(nil, int64(5))
	d := NewDecoder(data)

	if !Peek[*int64](d) || Peek[int64](d) || !Peek[any](d) {
		t.Error("peek results wrong for none record")
	}
	p, err := Read[*int64](d)
	if err != nil || p != nil {
		t.Fatalf("Read[*int64] = %v, %v; want nil", p, err)
	}
	p, err = Read[*int64](d)
	if err != nil || p == nil || *p != 5 {
		t.Fatalf("Read[*int64] = %v, %v; want 5", p, err)
	}
	if Peek[any](d) {
		t.Error("Peek on an exhausted decoder should report false")
	}
}

// nestedLists returns n list headers, each wrapping the next, with an empty
// list innermost.
func nestedLists(n int) []byte {
	out := make([]byte, n*12)
	for i := range n {
		h := out[i*12:]
		binary.LittleEndian.PutUint32(h, uint32(TagList))
		binary.LittleEndian.PutUint64(h[4:], uint64((n-i-1)*12))
	}
	return out
}

func TestDecoder_MaxDepth(t *testing.T) {
	deep := nestedLists(DefaultMaxDepth + 100)

	d := NewDecoder(deep)
	var v any
	assertKind(t, d.Read(&v), errors.KindInvalidData)
	if d.Offset() != 0 {
		t.Errorf("offset = %d after failed read, want 0", d.Offset())
	}

	d = NewDecoder(deep, WithMaxDepth(DefaultMaxDepth+100))
	if err := d.Read(&v); err != nil {
		t.Fatalf("Read with raised limit failed: %v", err)
	}

	data, _ := Marshal([]any{[]any{[]any{int64(1)}}})
	d = NewDecoder(data, WithMaxDepth(2))
	var nested [][][]int64
	assertKind(t, d.Read(&nested), errors.KindInvalidData)

	d = NewDecoder(data, WithMaxDepth(3))
	if err := d.Read(&nested); err != nil || nested[0][0][0] != 1 {
		t.Fatalf("Read at depth limit = %v, %v; want [[[1]]]", nested, err)
	}
}
