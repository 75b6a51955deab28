// Command callwire encodes, decodes and inspects callwire exchange files
// and calls external functions through the bridge.
//
//	callwire encode [-o out] [--seq] [file.yaml]
//	callwire dump [--format yaml|cbor|diag|records] [file]
//	callwire call --module m --func f [--python p] [--results types] [args.yaml]
//	callwire inspect [-i] file
package main

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/pflag"
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/callwire/bridge"
	"github.com/wippyai/callwire/codec"
	"github.com/wippyai/callwire/codec/witschema"
	"github.com/wippyai/callwire/engine"
	"github.com/wippyai/callwire/errors"
)

func main() {
	app := &cli{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	if err := app.run(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode propagates the external program's status for failed calls.
func exitCode(err error) int {
	var e *errors.Error
	if stderrors.As(err, &e) && e.Kind == errors.KindExitStatus {
		if code, ok := e.Value.(int); ok && code > 0 {
			return code
		}
	}
	return 1
}

type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

type command struct {
	run     func(c *cli, args []string) error
	summary string
}

var commands = map[string]command{
	"encode":  {(*cli).encode, "encode YAML documents into records"},
	"dump":    {(*cli).dump, "decode records to YAML, CBOR or a record listing"},
	"call":    {(*cli).call, "call an external function through the bridge"},
	"inspect": {(*cli).inspect, "show the record tree of an exchange file"},
}

func (c *cli) run(args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		c.usage()
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		c.usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
	return cmd.run(c, args[1:])
}

func (c *cli) usage() {
	fmt.Fprintln(c.stderr, "Usage: callwire <command> [flags] [file]")
	fmt.Fprintln(c.stderr)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(c.stderr, "  %-8s %s\n", name, commands[name].summary)
	}
}

// flagSet returns a FlagSet with the flags every command shares.
func (c *cli) flagSet(name string) (*pflag.FlagSet, *bool) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(c.stderr)
	verbose := fs.BoolP("verbose", "v", false, "log debug output to stderr")
	return fs, verbose
}

func (c *cli) parse(fs *pflag.FlagSet, verbose *bool, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		bridge.SetLogger(l)
		engine.SetLogger(l)
	}
	return nil
}

// input opens the single optional file argument, or stdin.
func (c *cli) input(fs *pflag.FlagSet) ([]byte, string, error) {
	switch fs.NArg() {
	case 0:
		data, err := io.ReadAll(c.stdin)
		return data, "<stdin>", err
	case 1:
		data, err := os.ReadFile(fs.Arg(0))
		return data, fs.Arg(0), err
	default:
		return nil, "", fmt.Errorf("%s takes at most one file, got %d", fs.Name(), fs.NArg())
	}
}

func (c *cli) encode(args []string) error {
	fs, verbose := c.flagSet("encode")
	output := fs.StringP("output", "o", "", "write records to this file instead of stdout")
	seq := fs.Bool("seq", false, "encode each item of a top-level sequence as its own record")
	if err := c.parse(fs, verbose, args); err != nil {
		return err
	}

	data, _, err := c.input(fs)
	if err != nil {
		return err
	}
	values, err := parseValues(data, *seq)
	if err != nil {
		return err
	}

	w := c.stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return codec.NewEncoder(w).Encode(values...)
}

// parseValues turns every YAML document into one value. With seq, a
// document holding a sequence contributes one value per item.
func parseValues(data []byte, seq bool) ([]any, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var values []any
	for {
		var doc yaml.Node
		if err := dec.Decode(&doc); err != nil {
			if err == io.EOF {
				return values, nil
			}
			return nil, errors.ParseFailed("YAML input", err)
		}
		v, err := fromYAML(&doc)
		if err != nil {
			return nil, errors.ParseFailed("YAML input", err)
		}
		if items, ok := v.([]any); ok && seq {
			values = append(values, items...)
			continue
		}
		values = append(values, v)
	}
}

// decodeAll decodes every top-level record dynamically.
func decodeAll(d *codec.Decoder) ([]any, error) {
	var values []any
	for !d.Exhausted() {
		v, err := codec.Read[any](d)
		if err != nil {
			return values, fmt.Errorf("record %d at offset %d: %w", len(values), d.Offset(), err)
		}
		values = append(values, v)
	}
	return values, nil
}

func writeYAML(w io.Writer, values []any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	for _, v := range values {
		n, err := toYAML(v)
		if err != nil {
			return err
		}
		if err := enc.Encode(n); err != nil {
			return err
		}
	}
	return enc.Close()
}

func (c *cli) dump(args []string) error {
	fs, verbose := c.flagSet("dump")
	format := fs.StringP("format", "f", "yaml", "output format: yaml, cbor, diag or records")
	if err := c.parse(fs, verbose, args); err != nil {
		return err
	}
	data, _, err := c.input(fs)
	if err != nil {
		return err
	}

	if *format == "records" {
		d := codec.NewDecoder(data)
		for !d.Exhausted() {
			rec, err := d.Next()
			if err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "%8d  %-8s len=%d\n", rec.Offset, rec.Tag, len(rec.Payload))
		}
		return nil
	}

	values, err := decodeAll(codec.NewDecoder(data))
	if err != nil {
		return err
	}
	switch *format {
	case "yaml":
		return writeYAML(c.stdout, values)
	case "cbor":
		return writeCBOR(c.stdout, values)
	case "diag":
		return writeDiag(c.stdout, values)
	default:
		return fmt.Errorf("unknown format %q", *format)
	}
}

func (c *cli) call(args []string) error {
	fs, verbose := c.flagSet("call")
	module := fs.StringP("module", "m", "", "module holding the function")
	function := fs.String("func", "", "function to call")
	python := fs.String("python", "", "interpreter to run (default $PYFUNC_PYTHON or python3)")
	wasm := fs.String("wasm", "", "run this WASI module instead of an interpreter")
	results := fs.String("results", "", "WIT types of the results, e.g. \"s64, list<string>\"")
	seq := fs.Bool("seq", false, "pass each item of a top-level sequence as its own argument")
	useMmap := fs.Bool("mmap", false, "map the exchange file instead of reading it")
	timer := fs.Bool("timer", false, "log call phase timings")
	timeout := fs.Duration("timeout", 0, "fail the call after this long")
	if err := c.parse(fs, verbose, args); err != nil {
		return err
	}
	if *module == "" || *function == "" {
		return fmt.Errorf("call needs --module and --func")
	}

	var values []any
	if fs.NArg() > 0 {
		data, _, err := c.input(fs)
		if err != nil {
			return err
		}
		if values, err = parseValues(data, *seq); err != nil {
			return err
		}
	}
	var types []wit.Type
	if *results != "" {
		var err error
		if types, err = witschema.ParseTypes(*results); err != nil {
			return err
		}
	}

	ctx := context.Background()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	opts := bridge.OptionsFromEnv()
	opts = append(opts, bridge.WithMmap(*useMmap))
	if *python != "" {
		opts = append(opts, bridge.WithInterpreter(*python))
	}
	if *timer {
		opts = append(opts, bridge.WithTimer(true))
		if !*verbose {
			l, err := zap.NewDevelopment(zap.IncreaseLevel(zap.InfoLevel))
			if err != nil {
				return err
			}
			opts = append(opts, bridge.WithLogger(l))
		}
	}
	if *wasm != "" {
		runner, err := engine.NewWasiRunner(ctx, &engine.Config{Stdout: c.stderr, Stderr: c.stderr})
		if err != nil {
			return err
		}
		defer runner.Close(ctx)
		opts = append(opts, bridge.WithInterpreter(*wasm), bridge.WithRunner(runner))
	}

	fn, err := bridge.New(*module, *function, opts...)
	if err != nil {
		return err
	}
	defer fn.Close()

	start := time.Now()
	if err := fn.Call(ctx, values...); err != nil {
		return err
	}
	bridge.Logger().Debug("call finished", zap.Duration("elapsed", time.Since(start)))

	var out []any
	if types != nil {
		out, err = fn.Results(types)
	} else {
		var d *codec.Decoder
		if d, err = fn.Decoder(); err == nil {
			out, err = decodeAll(d)
		}
	}
	if err != nil {
		return err
	}
	return writeYAML(c.stdout, out)
}

func (c *cli) inspect(args []string) error {
	fs, verbose := c.flagSet("inspect")
	interactive := fs.BoolP("interactive", "i", false, "browse the records in a terminal UI")
	if err := c.parse(fs, verbose, args); err != nil {
		return err
	}
	data, name, err := c.input(fs)
	if err != nil {
		return err
	}

	nodes, treeErr := readTree(data)
	if *interactive {
		return runInteractive(name, data, nodes, treeErr)
	}
	if err := printTree(c.stdout, nodes); err != nil {
		return err
	}
	if treeErr != nil {
		return fmt.Errorf("%s: %w", name, treeErr)
	}
	return nil
}
