// Package callwire calls functions in an external program by exchanging
// self-describing binary records through a shared file.
//
// The caller encodes its arguments, runs the program synchronously with the
// file path and a fixed marker, and decodes the results the program wrote
// back into the same file.
//
// # Architecture Overview
//
//	callwire/            Root package with the Runner interface
//	├── codec/           Record encoding, decoding and type normalization
//	│   └── witschema/   WIT types as result descriptors
//	├── bridge/          Exchange files and external program calls
//	├── engine/          WASI modules as external programs (wazero)
//	├── errors/          Structured error types
//	└── cmd/callwire/    Command line tool
//
// # Quick Start
//
// Encode and decode values directly:
//
//	data, err := codec.Marshal(true, 1.5, "hello")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	d := codec.NewDecoder(data)
//	ok, _ := codec.Read[bool](d)
//
// Call a Python function through the bridge:
//
//	fn, err := bridge.New("arrays", "generate_array")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer fn.Close()
//
//	if err := fn.Call(ctx, []int64{10, 100}, "float32"); err != nil {
//	    log.Fatal(err)
//	}
//	arr, err := bridge.Get[codec.Array](fn)
//
// # Calling Convention
//
// The external program is started as
//
//	<interpreter> -m <module> <function> <exchange file> PYFUNC_CALL
//
// It reads the argument records from the exchange file, calls the function,
// and replaces the file contents with the result records. A non-zero exit
// status fails the call before any decoding.
//
// # Error Handling
//
// All packages return *errors.Error values with a phase, a kind and the
// container path of the failing record:
//
//	if errors.Is(err, errors.ErrTruncated) { ... }
package callwire
