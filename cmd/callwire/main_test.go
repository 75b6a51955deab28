package main

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	stderrors "errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/wippyai/callwire/codec"
	"github.com/wippyai/callwire/errors"
)

func newTestCLI(stdin string) (*cli, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &cli{stdin: strings.NewReader(stdin), stdout: out, stderr: &bytes.Buffer{}}, out
}

func runCLI(t *testing.T, stdin string, args ...string) []byte {
	t.Helper()
	c, out := newTestCLI(stdin)
	if err := c.run(args); err != nil {
		t.Fatalf("callwire %s failed: %v", strings.Join(args, " "), err)
	}
	return out.Bytes()
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		seq  bool
		want []any
	}{
		{"documents", "true\n---\n1.5\n---\nhello\n", false, []any{true, 1.5, "hello"}},
		{"sequence", "[1, two, null]\n", false, []any{[]any{int64(1), "two", nil}}},
		{"seq flag", "[1, two, null]\n", true, []any{int64(1), "two", nil}},
		{"map order", "{b: 2, a: 1}\n", false, []any{map[string]int64{"a": 1, "b": 2}}},
		{"tuple", "!tuple [1, x]\n", false, []any{codec.Tuple{int64(1), "x"}}},
		{"binary", "!!binary AAECAw==\n", false, []any{[]byte{0, 1, 2, 3}}},
		{"ndarray", "!ndarray\nshape: [2, 2]\ndtype: u8\ndata: !!binary AAECAw==\n", false,
			[]any{codec.Array{Shape: []int64{2, 2}, Dtype: "u8", Data: []byte{0, 1, 2, 3}}}},
		{"empty", "", false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := []string{"encode"}
			if tt.seq {
				args = append(args, "--seq")
			}
			got := runCLI(t, tt.yaml, args...)
			want, err := codec.Marshal(tt.want...)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if !bytes.Equal(got, want) {
				t.Errorf("encode = %x, want %x", got, want)
			}
		})
	}
}

func TestEncode_Errors(t *testing.T) {
	inputs := map[string]string{
		"bad yaml":       "{a: [1\n",
		"unknown tag":    "!thing 1\n",
		"bad binary":     "!!binary '***'\n",
		"ndarray keys":   "!ndarray\nshape: [1]\ndtype: u8\n",
		"ndarray extra":  "!ndarray\nshape: [1]\ndtype: u8\ndata: !!binary AA==\nextra: 1\n",
		"unhashable key": "? [1, 2]\n: x\n",
	}
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestCLI(input)
			if err := c.run([]string{"encode"}); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestEncode_OutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	runCLI(t, "42\n", "encode", "-o", path)

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := codec.Marshal(int64(42))
	if !bytes.Equal(got, want) {
		t.Errorf("file = %x, want %x", got, want)
	}
}

func TestDump_YAMLRoundTrip(t *testing.T) {
	data, err := codec.Marshal(
		true,
		int64(-3),
		2.5,
		"text",
		[]byte{9, 8},
		[]any{int64(1), []any{"nested"}},
		codec.Tuple{"a", nil},
		map[int64]string{2: "two", 1: "one"},
		codec.Array{Shape: []int64{2, 3}, Dtype: "float32", Data: make([]byte, 24)},
	)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	yamlOut := runCLI(t, string(data), "dump")
	for _, want := range []string{"!tuple", "!ndarray", "shape: [2, 3]", "!!binary CQg="} {
		if !bytes.Contains(yamlOut, []byte(want)) {
			t.Errorf("dump output lacks %q:\n%s", want, yamlOut)
		}
	}

	again := runCLI(t, string(yamlOut), "encode")
	if !bytes.Equal(again, data) {
		t.Errorf("YAML round trip changed the records:\n%s", yamlOut)
	}
}

func TestDump_CBOR(t *testing.T) {
	data, _ := codec.Marshal(map[string]int64{"b": 2, "a": 1}, int64(1))
	got := runCLI(t, string(data), "dump", "--format", "cbor")
	if want := "a261610161620201"; hex.EncodeToString(got) != want {
		t.Errorf("cbor = %x, want %s", got, want)
	}

	diag := runCLI(t, string(data), "dump", "-f", "diag")
	if string(diag) != "{\"a\": 1, \"b\": 2}\n1\n" {
		t.Errorf("diag = %q", diag)
	}
}

func TestDump_Records(t *testing.T) {
	data, _ := codec.Marshal(true, "hello")
	out := runCLI(t, string(data), "dump", "--format=records")
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[1], "13") || !strings.Contains(lines[1], "len=5") {
		t.Errorf("second line = %q, want offset 13 and len=5", lines[1])
	}
}

func TestDump_Errors(t *testing.T) {
	data, _ := codec.Marshal("hello")

	c, _ := newTestCLI(string(data[:len(data)-1]))
	err := c.run([]string{"dump"})
	if !stderrors.Is(err, errors.ErrTruncated) {
		t.Errorf("error = %v, want truncated", err)
	}

	c, _ = newTestCLI(string(data))
	if err := c.run([]string{"dump", "--format", "xml"}); err == nil {
		t.Error("unknown format should fail")
	}
}

func TestReadTree(t *testing.T) {
	data, _ := codec.Marshal([]any{int64(1), "x"}, true)
	nodes, err := readTree(data)
	if err != nil {
		t.Fatalf("readTree failed: %v", err)
	}

	type row struct {
		offset, depth int
		tag           codec.Tag
		summary       string
	}
	var got []row
	for _, n := range nodes {
		got = append(got, row{n.offset, n.depth, n.tag, n.summary})
	}
	want := []row{
		{0, 0, codec.TagList, "2 items"},
		{12, 1, codec.TagInt, "1"},
		{32, 1, codec.TagText, `"x"`},
		{45, 0, codec.TagBool, "true"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tree = %+v, want %+v", got, want)
	}
}

func TestReadTree_MaxDepth(t *testing.T) {
	n := codec.DefaultMaxDepth + 10
	data := make([]byte, n*codec.HeaderSize)
	for i := range n {
		h := data[i*codec.HeaderSize:]
		binary.LittleEndian.PutUint32(h, uint32(codec.TagList))
		binary.LittleEndian.PutUint64(h[4:], uint64((n-i-1)*codec.HeaderSize))
	}

	nodes, err := readTree(data)
	if kind, ok := errors.KindOf(err); !ok || kind != errors.KindInvalidData {
		t.Fatalf("readTree error = %v, want invalid data", err)
	}
	if len(nodes) != codec.DefaultMaxDepth+1 {
		t.Errorf("listed %d records before the limit, want %d", len(nodes), codec.DefaultMaxDepth+1)
	}
}

func TestInspect(t *testing.T) {
	data, _ := codec.Marshal(map[string]bool{"k": true})
	path := filepath.Join(t.TempDir(), "x.bin")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	out := string(runCLI(t, "", "inspect", path))
	if !strings.Contains(out, "1 entries") || !strings.Contains(out, `"k"`) {
		t.Errorf("inspect output:\n%s", out)
	}

	two, _ := codec.Marshal(map[string]bool{"k": true}, "abc")
	c, out2 := newTestCLI(string(two[:len(two)-1]))
	if err := c.run([]string{"inspect"}); err == nil {
		t.Error("truncated input should fail")
	}
	if !strings.Contains(out2.String(), "map") {
		t.Errorf("records before the failure should still print, got %q", out2)
	}
}

// noopWasm is a WASI command whose _start returns immediately, leaving the
// arguments in the exchange file as results.
var noopWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x0a, 0x01, 0x06, '_', 's', 't', 'a', 'r', 't', 0x00, 0x00,
	0x0a, 0x04, 0x01, 0x02, 0x00, 0x0b,
}

func TestCall_Wasm(t *testing.T) {
	dir := t.TempDir()
	wasm := filepath.Join(dir, "echo.wasm")
	args := filepath.Join(dir, "args.yaml")
	if err := os.WriteFile(wasm, noopWasm, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(args, []byte("7\n---\nseven\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	out := runCLI(t, "", "call", "-m", "mod", "--func", "echo", "--wasm", wasm, args)
	if string(out) != "7\n---\nseven\n" {
		t.Errorf("dynamic results = %q", out)
	}

	out = runCLI(t, "", "call", "-m", "mod", "--func", "echo", "--wasm", wasm, "--results", "u8, string", args)
	if string(out) != "7\n---\nseven\n" {
		t.Errorf("typed results = %q", out)
	}
}

func TestCall_Errors(t *testing.T) {
	c, _ := newTestCLI("")
	if err := c.run([]string{"call", "--func", "f"}); err == nil {
		t.Error("missing --module should fail")
	}
	c, _ = newTestCLI("")
	if err := c.run([]string{"call", "-m", "m", "--func", "f", "--results", "list<"}); err == nil {
		t.Error("bad --results should fail")
	}
}

func TestRun_Commands(t *testing.T) {
	c, _ := newTestCLI("")
	if err := c.run([]string{"frobnicate"}); err == nil {
		t.Error("unknown command should fail")
	}
	c, _ = newTestCLI("")
	if err := c.run(nil); err != nil {
		t.Errorf("no command should print usage, got %v", err)
	}
}

func TestExitCode(t *testing.T) {
	if got := exitCode(errors.ExitStatus("python3", 4, nil)); got != 4 {
		t.Errorf("exitCode = %d, want 4", got)
	}
	if got := exitCode(errors.InvalidInput(errors.PhaseCall, "x")); got != 1 {
		t.Errorf("exitCode = %d, want 1", got)
	}
}
