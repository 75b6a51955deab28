package bridge

import (
	"os"

	"go.uber.org/zap"

	"github.com/wippyai/callwire"
	"github.com/wippyai/callwire/codec"
)

// Environment variables read by OptionsFromEnv.
const (
	EnvEnableTimer = "PYFUNC_ENABLE_TIMER"
	EnvPython      = "PYFUNC_PYTHON"
)

// DefaultInterpreter runs the external module when no interpreter is set.
const DefaultInterpreter = "python3"

type config struct {
	runner      callwire.Runner
	logger      *zap.Logger
	interpreter string
	dir         string
	marker      string
	decoderOpts []codec.DecoderOption
	timer       bool
	mmap        bool
}

// Option configures a Func.
type Option func(*config)

// WithInterpreter sets the program started for each call.
func WithInterpreter(path string) Option {
	return func(c *config) {
		c.interpreter = path
	}
}

// WithRunner replaces the default ExecRunner.
func WithRunner(r callwire.Runner) Option {
	return func(c *config) {
		c.runner = r
	}
}

// WithDir places the exchange file in dir instead of the working directory.
func WithDir(dir string) Option {
	return func(c *config) {
		c.dir = dir
	}
}

// WithMarker overrides the calling convention marker.
func WithMarker(marker string) Option {
	return func(c *config) {
		c.marker = marker
	}
}

// WithTimer logs the elapsed time of the serialize, run and deserialize
// phases of every call at info level.
func WithTimer(enabled bool) Option {
	return func(c *config) {
		c.timer = enabled
	}
}

// WithLogger sets the logger used by this Func instead of the package logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithMmap maps the exchange file into memory for decoding instead of
// reading it. Platforms without mmap fall back to reading.
func WithMmap(enabled bool) Option {
	return func(c *config) {
		c.mmap = enabled
	}
}

// WithDecoderOptions passes options to the result decoder.
func WithDecoderOptions(opts ...codec.DecoderOption) Option {
	return func(c *config) {
		c.decoderOpts = append(c.decoderOpts, opts...)
	}
}

// OptionsFromEnv returns options derived from the environment:
// PYFUNC_ENABLE_TIMER enables timers when set, and PYFUNC_PYTHON selects
// the interpreter.
func OptionsFromEnv() []Option {
	var opts []Option
	if _, ok := os.LookupEnv(EnvEnableTimer); ok {
		opts = append(opts, WithTimer(true))
	}
	if python := os.Getenv(EnvPython); python != "" {
		opts = append(opts, WithInterpreter(python))
	}
	return opts
}
