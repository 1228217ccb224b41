// Package runtime implements the module runtime of spec.md §4.4: loading a
// guest module, instantiating it against the host ABI, driving one step at
// a time, and enforcing tick pacing. It is grounded on
// crates/livesplit-auto-splitting/src/runtime.rs from original_source/,
// rehosted on wazero instead of wasmtime.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/livesplit/autosplit-runtime/abi"
	"github.com/livesplit/autosplit-runtime/registry"
	"github.com/livesplit/autosplit-runtime/timer"
)

// ErrLoadFailed corresponds to spec.md §7's LoadFailed: module bytes
// rejected for any of invalid WASM, a missing required import, missing
// memory, missing configure, or a type mismatch on an imported function.
var ErrLoadFailed = errors.New("runtime: failed to load guest module")

// state is the Created/Instantiated/Configured/Faulted machine of
// spec.md §4.4. New only ever returns a freshly Instantiated Runtime (or
// fails outright), matching the state diagram's first transition.
type state int

const (
	stateInstantiated state = iota
	stateConfigured
	stateFaulted
)

// InterruptHandle is the cross-thread primitive of spec.md §4.4 and §5:
// triggering it from any goroutine causes any in-flight guest call to
// terminate with a trap at the next instrumented point. It is backed by
// wazero's RuntimeConfig.WithCloseOnContextDone, which checks for context
// cancellation at instrumented points inside running wasm code.
type InterruptHandle struct {
	cancel context.CancelFunc
}

// Trigger aborts any call currently in flight on the owning Runtime. Safe
// to call from any goroutine, any number of times.
func (h InterruptHandle) Trigger() {
	h.cancel()
}

// Option configures a Runtime at construction time.
type Option func(*options)

type options struct {
	lister   registry.ProcessLister
	reader   registry.MemoryReader
	tickRate time.Duration
}

// WithProcessLister overrides the default gopsutil-backed process lister,
// primarily for tests.
func WithProcessLister(l registry.ProcessLister) Option {
	return func(o *options) { o.lister = l }
}

// WithMemoryReader overrides the default platform memory reader, primarily
// for tests.
func WithMemoryReader(r registry.MemoryReader) Option {
	return func(o *options) { o.reader = r }
}

// Runtime is the module runtime of spec.md §4.4. It is single-threaded:
// the whole type is owned end-to-end by one goroutine (the controller's
// runtime thread, spec.md §5), so none of its fields are protected by a
// mutex. The only cross-goroutine touchpoint is InterruptHandle.
type Runtime struct {
	id     uuid.UUID
	logger *zap.Logger

	engine wazero.Runtime

	ctx    context.Context
	cancel context.CancelFunc

	abiCtx *abi.Context

	configureFn api.Function
	updateFn    api.Function // nil if the guest doesn't export update

	state    state
	prevTime time.Time
}

// New constructs a module runtime from binary, instantiating it against
// the host ABI bindings and resolving its exports, per spec.md §4.4's
// "new" transition. Any violation of the guest module contract (spec.md
// §6) is reported as ErrLoadFailed.
func New(parentCtx context.Context, binary []byte, t timer.Adapter, logger *zap.Logger, opts ...Option) (*Runtime, error) {
	o := &options{
		lister:   registry.NewGopsutilLister(),
		reader:   registry.NewMemoryReader(),
		tickRate: abi.DefaultTickRate,
	}
	for _, apply := range opts {
		apply(o)
	}

	ctx, cancel := context.WithCancel(parentCtx)

	engine := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))

	reg := registry.New(o.lister, o.reader)
	abiCtx := abi.NewContext(reg, t, logger)
	abiCtx.TickRate = o.tickRate

	if err := registerHostFunctions(ctx, engine, abiCtx); err != nil {
		cancel()
		_ = engine.Close(context.Background())
		return nil, fmt.Errorf("%w: registering host functions: %v", ErrLoadFailed, err)
	}

	compiled, err := engine.CompileModule(ctx, binary)
	if err != nil {
		cancel()
		_ = engine.Close(context.Background())
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}

	id := uuid.New()
	instance, err := engine.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(id.String()))
	if err != nil {
		cancel()
		_ = engine.Close(context.Background())
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}

	if instance.Memory() == nil {
		cancel()
		_ = engine.Close(context.Background())
		return nil, fmt.Errorf("%w: guest module doesn't export memory", ErrLoadFailed)
	}

	configureFn := instance.ExportedFunction("configure")
	if configureFn == nil {
		cancel()
		_ = engine.Close(context.Background())
		return nil, fmt.Errorf("%w: guest module doesn't export configure", ErrLoadFailed)
	}

	return &Runtime{
		id:          id,
		logger:      logger.With(zap.String("instance", id.String())),
		engine:      engine,
		ctx:         ctx,
		cancel:      cancel,
		abiCtx:      abiCtx,
		configureFn: configureFn,
		updateFn:    instance.ExportedFunction("update"),
		state:       stateInstantiated,
		prevTime:    time.Now(),
	}, nil
}

// Step advances the guest by one tick, per spec.md §4.4. The first call
// invokes configure() before anything else; any failure there is fatal and
// transitions to Faulted. Every call, including the first, then invokes
// update() if the guest exports it (matching
// crates/livesplit-auto-splitting/src/runtime.rs, whose run_script runs
// unconditionally right after the one-time configure check), or is a
// no-op otherwise. Once Faulted, Step keeps failing: the controller is
// expected to drop the Runtime on the first error.
func (r *Runtime) Step() error {
	if r.state == stateFaulted {
		return fmt.Errorf("runtime: module has already faulted")
	}
	if r.state == stateInstantiated {
		if _, err := r.configureFn.Call(r.ctx); err != nil {
			r.state = stateFaulted
			return fmt.Errorf("configure: %w", err)
		}
		r.state = stateConfigured
	}
	if r.updateFn != nil {
		if _, err := r.updateFn.Call(r.ctx); err != nil {
			r.state = stateFaulted
			return fmt.Errorf("update: %w", err)
		}
	}
	return nil
}

// Sleep blocks for max(0, tick_rate - elapsed_since_last_step), per
// spec.md §4.4. The first Sleep after New uses New's call time as the
// reference, since prevTime is seeded there.
func (r *Runtime) Sleep() {
	target := r.abiCtx.TickRate
	elapsed := time.Since(r.prevTime)
	if elapsed < target {
		time.Sleep(target - elapsed)
	}
	r.prevTime = time.Now()
}

// InterruptHandle returns a handle that aborts any call in flight on this
// Runtime from another goroutine, per spec.md §4.4 and §5.
func (r *Runtime) InterruptHandle() InterruptHandle {
	return InterruptHandle{cancel: r.cancel}
}

// Close tears down the engine and every OS process handle the guest had
// attached, per spec.md §5's resource discipline ("dropping the registry
// ... closes every OS handle").
func (r *Runtime) Close() {
	r.cancel()
	_ = r.engine.Close(context.Background())
}
