// Package engine runs WebAssembly modules as the external program of a
// bridge call.
//
// A WasiRunner executes WASI preview1 command modules on wazero. The guest
// receives the usual calling convention as its argv
//
//	<program> -m <module> <function> /<exchange file> PYFUNC_CALL
//
// with the exchange file's directory mounted at the guest root, so the
// module reads its arguments from the file and writes its results back:
//
//	runner, err := engine.NewWasiRunner(ctx, nil)
//	if err != nil {
//	    return err
//	}
//	defer runner.Close(ctx)
//
//	fn, err := bridge.New("arrays", "generate_array",
//	    bridge.WithInterpreter("python.wasm"),
//	    bridge.WithRunner(runner))
//
// A proc_exit with a non-zero code fails the call with KindExitStatus. A
// trap or a cancelled context fails it the same way.
package engine
