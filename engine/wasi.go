package engine

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/wippyai/callwire"
	"github.com/wippyai/callwire/errors"
)

// GuestRoot is where the exchange file's directory is mounted in the guest.
const GuestRoot = "/"

// Config holds configuration for runner creation
type Config struct {
	// Stdout and Stderr receive the guest's output. Nil discards it.
	Stdout io.Writer
	Stderr io.Writer

	// Env is passed to the guest as its environment.
	Env map[string]string

	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means the wazero default.
	MemoryLimitPages uint32

	// CacheDir enables an on-disk compilation cache shared across runners.
	CacheDir string
}

// WasiRunner runs WASI preview1 command modules as the external program of
// a call. The invocation's Program names the module: either one added with
// Register or a .wasm file path. Compiled modules are cached per program.
// A WasiRunner is safe for concurrent use; each call gets a fresh instance.
type WasiRunner struct {
	runtime wazero.Runtime
	cfg     Config

	mu       sync.Mutex
	sources  map[string][]byte
	compiled map[string]wazero.CompiledModule
}

// NewWasiRunner creates a runner with its own wazero runtime and the WASI
// preview1 host module instantiated.
func NewWasiRunner(ctx context.Context, cfg *Config) (*WasiRunner, error) {
	r := &WasiRunner{
		sources:  make(map[string][]byte),
		compiled: make(map[string]wazero.CompiledModule),
	}
	if cfg != nil {
		r.cfg = *cfg
	}

	runtimeCfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if r.cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(r.cfg.MemoryLimitPages)
	}
	if r.cfg.CacheDir != "" {
		cache, err := wazero.NewCompilationCacheWithDir(r.cfg.CacheDir)
		if err != nil {
			return nil, errors.Load("compilation cache "+r.cfg.CacheDir, err)
		}
		runtimeCfg = runtimeCfg.WithCompilationCache(cache)
	}

	r.runtime = wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r.runtime); err != nil {
		r.runtime.Close(ctx)
		return nil, errors.Load("instantiate WASI preview1", err)
	}
	return r, nil
}

// Register makes wasm available under program, taking precedence over a
// file of the same name.
func (r *WasiRunner) Register(program string, wasm []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[program] = wasm
	delete(r.compiled, program)
}

func (r *WasiRunner) module(ctx context.Context, program string) (wazero.CompiledModule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if mod, ok := r.compiled[program]; ok {
		return mod, nil
	}
	wasm, ok := r.sources[program]
	if !ok {
		var err error
		wasm, err = os.ReadFile(program)
		if err != nil {
			return nil, errors.Load("read module "+program, err)
		}
	}
	mod, err := r.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Load("compile module "+program, err)
	}
	r.compiled[program] = mod
	Logger().Debug("compiled module", zap.String("program", program), zap.Int("size", len(wasm)))
	return mod, nil
}

// GuestArgs returns the argv the guest sees for inv: the program's base
// name followed by the calling convention, with the exchange file at its
// guest path.
func GuestArgs(inv callwire.Invocation) []string {
	inv.Path = filepath.ToSlash(filepath.Join(GuestRoot, filepath.Base(inv.Path)))
	return append([]string{filepath.Base(inv.Program)}, inv.Args()...)
}

// Run instantiates the module named by inv.Program and runs its _start
// function to completion. The directory holding the exchange file is
// mounted read-write at the guest root.
func (r *WasiRunner) Run(ctx context.Context, inv callwire.Invocation) error {
	mod, err := r.module(ctx, inv.Program)
	if err != nil {
		return err
	}

	args := GuestArgs(inv)
	modCfg := wazero.NewModuleConfig().
		WithName("").
		WithArgs(args...).
		WithFSConfig(wazero.NewFSConfig().WithDirMount(filepath.Dir(inv.Path), GuestRoot)).
		WithSysWalltime().
		WithSysNanotime()
	if r.cfg.Stdout != nil {
		modCfg = modCfg.WithStdout(r.cfg.Stdout)
	}
	if r.cfg.Stderr != nil {
		modCfg = modCfg.WithStderr(r.cfg.Stderr)
	}
	for k, v := range r.cfg.Env {
		modCfg = modCfg.WithEnv(k, v)
	}

	Logger().Debug("running module", zap.String("program", inv.Program), zap.Strings("args", args))

	instance, err := r.runtime.InstantiateModule(ctx, mod, modCfg)
	if instance != nil {
		instance.Close(ctx)
	}
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Wrap(errors.PhaseCall, errors.KindExitStatus, ctxErr, inv.Program+" cancelled")
	}
	var exitErr *sys.ExitError
	if stderrors.As(err, &exitErr) {
		if exitErr.ExitCode() == 0 {
			return nil
		}
		return errors.ExitStatus(inv.Program, int(exitErr.ExitCode()), err)
	}
	return errors.Wrap(errors.PhaseCall, errors.KindExitStatus, err, inv.Program+" trapped")
}

// Close releases the runtime and every compiled module.
func (r *WasiRunner) Close(ctx context.Context) error {
	r.mu.Lock()
	r.compiled = make(map[string]wazero.CompiledModule)
	r.mu.Unlock()
	return r.runtime.Close(ctx)
}
