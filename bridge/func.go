package bridge

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/callwire"
	"github.com/wippyai/callwire/codec"
	"github.com/wippyai/callwire/codec/witschema"
	"github.com/wippyai/callwire/errors"
)

// Func is a function in an external module, called through an exchange
// file. After a successful Call the results are read with Get, Gets or the
// generic helpers. A Func is not safe for concurrent use.
type Func struct {
	cfg      config
	module   string
	function string
	path     string

	win window
	dec *codec.Decoder
}

// New prepares a call to function in module. No process is started until
// Call.
func New(module, function string, opts ...Option) (*Func, error) {
	if module == "" {
		return nil, errors.InvalidInput(errors.PhaseCall, "module name is empty")
	}
	if function == "" {
		return nil, errors.InvalidInput(errors.PhaseCall, "function name is empty")
	}

	cfg := config{
		interpreter: DefaultInterpreter,
		marker:      callwire.Marker,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.runner == nil {
		cfg.runner = ExecRunner{}
	}

	dir, err := filepath.Abs(cfg.dir)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCall, errors.KindInvalidInput, err, "exchange directory")
	}

	return &Func{
		cfg:      cfg,
		module:   module,
		function: function,
		path:     filepath.Join(dir, ".tmp"+module+function+uuid.NewString()),
	}, nil
}

// Path returns the exchange file path.
func (f *Func) Path() string {
	return f.path
}

func (f *Func) logger() *zap.Logger {
	if f.cfg.logger != nil {
		return f.cfg.logger
	}
	return Logger()
}

// Call encodes args into the exchange file, runs the external program and
// opens the results for reading. Results of a previous call are released
// first. When the program fails the exchange file is removed and no
// results are available.
func (f *Func) Call(ctx context.Context, args ...any) error {
	if err := f.release(); err != nil {
		return err
	}

	start := time.Now()
	if err := f.writeArgs(args); err != nil {
		os.Remove(f.path)
		return err
	}
	f.elapsed("serialize", start)

	inv := callwire.Invocation{
		Program: f.cfg.interpreter,
		Module:  f.module,
		Func:    f.function,
		Path:    f.path,
		Marker:  f.cfg.marker,
	}
	start = time.Now()
	if err := f.cfg.runner.Run(ctx, inv); err != nil {
		os.Remove(f.path)
		f.logger().Debug("call failed",
			zap.String("module", f.module),
			zap.String("function", f.function),
			zap.Error(err))
		return err
	}
	f.elapsed("run", start)

	start = time.Now()
	win, err := openWindow(f.path, f.cfg.mmap)
	if err != nil {
		return err
	}
	f.win = win
	f.dec = codec.NewDecoder(win.Bytes(), f.cfg.decoderOpts...)
	f.elapsed("deserialize", start)
	return nil
}

func (f *Func) writeArgs(args []any) error {
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return errors.Wrap(errors.PhaseEncode, errors.KindInvalidInput, err, "create exchange file")
	}
	if err := codec.NewEncoder(file).Encode(args...); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return errors.Wrap(errors.PhaseEncode, errors.KindInvalidData, err, "close exchange file")
	}
	return nil
}

func (f *Func) elapsed(phase string, start time.Time) {
	if !f.cfg.timer {
		return
	}
	f.logger().Info("call phase",
		zap.String("module", f.module),
		zap.String("function", f.function),
		zap.String("phase", phase),
		zap.Duration("elapsed", time.Since(start)))
}

func (f *Func) release() error {
	// Callers may still hold the decoder; leave it empty before the window
	// it reads from goes away.
	if f.dec != nil {
		*f.dec = *codec.NewDecoder(nil)
	}
	f.dec = nil
	if f.win == nil {
		return nil
	}
	err := f.win.Close()
	f.win = nil
	return err
}

// Decoder returns the result decoder of the last successful call. The
// decoder is valid until the next Call or Close; after that it reads as
// empty.
func (f *Func) Decoder() (*codec.Decoder, error) {
	if f.dec == nil {
		return nil, errors.NotInitialized(errors.PhaseDecode, "call result")
	}
	return f.dec, nil
}

// Get decodes the next result into the value ptr points to.
func (f *Func) Get(ptr any) error {
	d, err := f.Decoder()
	if err != nil {
		return err
	}
	return d.Read(ptr)
}

// Gets decodes consecutive results into each pointer in order.
func (f *Func) Gets(ptrs ...any) error {
	d, err := f.Decoder()
	if err != nil {
		return err
	}
	return d.ReadMany(ptrs...)
}

// Reset rewinds the results to the first record.
func (f *Func) Reset() error {
	d, err := f.Decoder()
	if err != nil {
		return err
	}
	d.Reset()
	return nil
}

// Results decodes one result per WIT type, in order.
func (f *Func) Results(types []wit.Type) ([]any, error) {
	d, err := f.Decoder()
	if err != nil {
		return nil, err
	}
	return witschema.DecodeAll(d, types)
}

// Close releases the results and removes the exchange file.
func (f *Func) Close() error {
	err := f.release()
	if rmErr := os.Remove(f.path); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
		err = errors.Wrap(errors.PhaseCall, errors.KindInvalidData, rmErr, "remove exchange file")
	}
	return err
}

// Get decodes the next result of f as a T.
func Get[T any](f *Func) (T, error) {
	var v T
	err := f.Get(&v)
	return v, err
}

// Is reports whether the next result of f decodes as a T. It is false
// before a successful call.
func Is[T any](f *Func) bool {
	if f.dec == nil {
		return false
	}
	return codec.Peek[T](f.dec)
}
