// Package bridge calls functions in external programs through an exchange
// file of codec records.
//
// A call encodes its arguments into a uniquely named file, runs
//
//	<interpreter> -m <module> <function> <file> PYFUNC_CALL
//
// and decodes the records the program wrote back into the same file:
//
//	fn, err := bridge.New("arrays", "generate_array", bridge.OptionsFromEnv()...)
//	if err != nil {
//	    return err
//	}
//	defer fn.Close()
//
//	if err := fn.Call(ctx, []int64{10, 100}, "float32"); err != nil {
//	    return err
//	}
//	arr, err := bridge.Get[codec.Array](fn)
//
// The program is started by an ExecRunner unless WithRunner supplies
// another callwire.Runner, such as engine.WasiRunner. With WithMmap the
// results are decoded straight from a read-only mapping of the file.
// Decoded values never alias the mapping.
package bridge
