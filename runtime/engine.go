package runtime

// This file is the wazero-specific half of the module runtime: it
// registers the frozen host ABI of spec.md §4.3 as a wazero host module
// named "env", and is the only place that ever reads or writes guest
// linear memory. It is adapted from the host-function registration
// pattern in JanFalkin/wapc-go's engines/wazero/wazero.go (itself wrapping
// a single generic waPC ABI), generalized here to the fixed, named ABI
// this system exposes instead of waPC's bidirectional RPC protocol.

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/livesplit/autosplit-runtime/abi"
)

const i32 = api.ValueTypeI32
const i64 = api.ValueTypeI64
const f64 = api.ValueTypeF64

// registerHostFunctions builds the "env" host module described in
// spec.md §4.3, closing over abiCtx. Every binding MUST re-resolve the
// guest memory reference on entry (spec.md §4.3); that is why each
// function below takes the api.Module parameter and calls m.Memory()
// itself rather than capturing a memory reference at registration time.
func registerHostFunctions(ctx context.Context, r wazero.Runtime, abiCtx *abi.Context) error {
	h := &hostFuncs{abiCtx: abiCtx}

	b := r.NewHostModuleBuilder("env")

	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.start), nil, nil).
		Export("start")
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.split), nil, nil).
		Export("split")
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.reset), nil, nil).
		Export("reset")
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.getTimerState), nil, []api.ValueType{i32}).
		Export("get_timer_state")
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.attach), []api.ValueType{i32, i32}, []api.ValueType{i64}).
		WithParameterNames("ptr", "len").
		Export("attach")
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.detach), []api.ValueType{i64}, nil).
		WithParameterNames("token").
		Export("detach")
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.readIntoBuf), []api.ValueType{i64, i64, i32, i32}, []api.ValueType{i32}).
		WithParameterNames("token", "addr", "ptr", "len").
		Export("read_into_buf")
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.setTickRate), []api.ValueType{f64}, nil).
		WithParameterNames("ticks_per_sec").
		Export("set_tick_rate")
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.printMessage), []api.ValueType{i32, i32}, nil).
		WithParameterNames("ptr", "len").
		Export("print_message")
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.setGameTime), []api.ValueType{f64}, nil).
		WithParameterNames("secs").
		Export("set_game_time")
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.pauseGameTime), nil, nil).
		Export("pause_game_time")
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.resumeGameTime), nil, nil).
		Export("resume_game_time")

	_, err := b.Instantiate(ctx)
	return err
}

// hostFuncs holds the single abi.Context every binding below closes over.
type hostFuncs struct {
	abiCtx *abi.Context
}

func (h *hostFuncs) start(_ context.Context, _ api.Module, _ []uint64) { h.abiCtx.Start() }
func (h *hostFuncs) split(_ context.Context, _ api.Module, _ []uint64) { h.abiCtx.Split() }
func (h *hostFuncs) reset(_ context.Context, _ api.Module, _ []uint64) { h.abiCtx.Reset() }

func (h *hostFuncs) getTimerState(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = uint64(h.abiCtx.GetTimerState())
}

func (h *hostFuncs) attach(_ context.Context, m api.Module, stack []uint64) {
	ptr, len := uint32(stack[0]), uint32(stack[1])
	name := requireReadString(m.Memory(), "name", ptr, len)
	stack[0] = h.abiCtx.Attach(name)
}

func (h *hostFuncs) detach(_ context.Context, _ api.Module, stack []uint64) {
	token := stack[0]
	if err := h.abiCtx.Detach(token); err != nil {
		panic(fmt.Errorf("detach: %w", err))
	}
}

func (h *hostFuncs) readIntoBuf(_ context.Context, m api.Module, stack []uint64) {
	token := stack[0]
	addr := stack[1]
	ptr, ln := uint32(stack[2]), uint32(stack[3])
	buf := requireReadBytes(m.Memory(), "buf", ptr, ln)

	status, err := h.abiCtx.ReadIntoBuf(token, addr, buf)
	if err != nil {
		panic(fmt.Errorf("read_into_buf: %w", err))
	}
	stack[0] = uint64(status)
}

func (h *hostFuncs) setTickRate(_ context.Context, _ api.Module, stack []uint64) {
	rate := api.DecodeF64(stack[0])
	if err := h.abiCtx.SetTickRate(rate); err != nil {
		panic(fmt.Errorf("set_tick_rate: %w", err))
	}
}

func (h *hostFuncs) printMessage(_ context.Context, m api.Module, stack []uint64) {
	ptr, ln := uint32(stack[0]), uint32(stack[1])
	message := requireReadString(m.Memory(), "message", ptr, ln)
	h.abiCtx.PrintMessage(message)
}

func (h *hostFuncs) setGameTime(_ context.Context, _ api.Module, stack []uint64) {
	secs := api.DecodeF64(stack[0])
	if err := h.abiCtx.SetGameTime(secs); err != nil {
		panic(fmt.Errorf("set_game_time: %w", err))
	}
}

func (h *hostFuncs) pauseGameTime(_ context.Context, _ api.Module, _ []uint64) {
	h.abiCtx.PauseGameTime()
}

func (h *hostFuncs) resumeGameTime(_ context.Context, _ api.Module, _ []uint64) {
	h.abiCtx.ResumeGameTime()
}

// requireReadBytes returns a live view into guest memory, panicking (which
// wazero turns into a trap at the call boundary) if ptr+len is out of
// bounds, per spec.md §4.3's "OOB slice" definition.
func requireReadBytes(mem api.Memory, fieldName string, ptr, length uint32) []byte {
	buf, ok := mem.Read(ptr, length)
	if !ok {
		panic(fmt.Errorf("%s: %w", fieldName, abi.ErrOutOfBounds))
	}
	return buf
}

func requireReadString(mem api.Memory, fieldName string, ptr, length uint32) string {
	buf := requireReadBytes(mem, fieldName, ptr, length)
	if !utf8.Valid(buf) {
		panic(fmt.Errorf("%s: %w", fieldName, abi.ErrInvalidUTF8))
	}
	return string(buf)
}
