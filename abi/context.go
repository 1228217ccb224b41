// Package abi implements the frozen guest-ABI conventions and host-function
// semantics described in spec.md §4.3 and §4.6. It is engine-agnostic: it
// never touches guest linear memory directly. The wazero-specific adapter
// in runtime/engine.go resolves (ptr, len) pairs against live module
// memory and calls into this package with the resulting Go values.
package abi

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/livesplit/autosplit-runtime/registry"
	"github.com/livesplit/autosplit-runtime/timer"
)

// DefaultTickRate is the guest's initial tick rate, per spec.md §3: 1/60 s.
const DefaultTickRate = time.Second / 60

// MinTickRate is the floor the runtime enforces on guest-requested tick
// rates, per spec.md §3 and §9.
const MinTickRate = time.Millisecond

// Context is the per-instance guest context of spec.md §3: the process
// registry, the timer adapter, and the current tick rate. It is
// exclusively owned by the module runtime and mutated only while a host
// call is in flight or between steps (spec.md §3), so it needs no internal
// synchronisation.
type Context struct {
	Registry *registry.Registry
	Timer    timer.Adapter
	Logger   *zap.Logger

	TickRate time.Duration
}

// NewContext builds a guest context with the default tick rate.
func NewContext(reg *registry.Registry, t timer.Adapter, logger *zap.Logger) *Context {
	return &Context{
		Registry: reg,
		Timer:    t,
		Logger:   logger,
		TickRate: DefaultTickRate,
	}
}

func (c *Context) Start() { c.Timer.Start() }
func (c *Context) Split() { c.Timer.Split() }
func (c *Context) Reset() { c.Timer.Reset() }

// GetTimerState implements the "get_timer_state" binding of spec.md §4.3.
func (c *Context) GetTimerState() uint32 {
	return uint32(c.Timer.TimerState())
}

// Attach implements the "attach" binding. name has already been validated
// as UTF-8 by the engine adapter.
func (c *Context) Attach(name string) uint64 {
	return uint64(c.Registry.Attach(name))
}

// Detach implements the "detach" binding. A nil return means the detach
// succeeded; a non-nil return (registry.ErrInvalidHandle) is the trap
// condition of spec.md §4.3.
func (c *Context) Detach(token uint64) error {
	return c.Registry.Detach(registry.Handle(token))
}

// ReadIntoBuf implements the "read_into_buf" binding's non-trapping half:
// it returns 0 or 1 per spec.md §4.3, never an error for a plain read
// failure. An invalid token is reported differently: status 0 together
// with registry.ErrInvalidHandle, which the engine adapter turns into a
// trap, per the ABI table. An out-of-bounds buffer is rejected (with a
// trap) by the engine adapter before this is called.
func (c *Context) ReadIntoBuf(token uint64, address uint64, buf []byte) (status uint32, err error) {
	readErr := c.Registry.Read(registry.Handle(token), address, buf)
	if readErr == nil {
		return 1, nil
	}
	if readErr == registry.ErrInvalidHandle {
		return 0, readErr
	}
	return 0, nil
}

// SetTickRate implements the "set_tick_rate" binding. A non-finite or
// non-positive rate traps, per spec.md §4.3; otherwise the resulting
// period is clamped to MinTickRate, per spec.md §3 and §9.
func (c *Context) SetTickRate(ticksPerSec float64) error {
	if math.IsNaN(ticksPerSec) || math.IsInf(ticksPerSec, 0) || ticksPerSec <= 0 {
		return ErrInvalidTickRate
	}
	period := time.Duration(float64(time.Second) / ticksPerSec)
	if period < MinTickRate {
		period = MinTickRate
	}
	c.TickRate = period
	return nil
}

// PrintMessage implements the "print_message" binding: logs at INFO under
// target "Auto Splitter", per spec.md §4.3 and S1.
func (c *Context) PrintMessage(message string) {
	c.Logger.Info(message, zap.String("target", "Auto Splitter"))
}

// SetGameTime implements the "set_game_time" binding. NaN, infinities and
// negatives trap, per spec.md §4.3 and §8 boundaries; -0.0 is accepted.
func (c *Context) SetGameTime(secs float64) error {
	if math.IsNaN(secs) || math.IsInf(secs, 0) || secs < 0 {
		return ErrInvalidGameTime
	}
	c.Timer.SetGameTime(time.Duration(secs * float64(time.Second)))
	return nil
}

func (c *Context) PauseGameTime()  { c.Timer.PauseGameTime() }
func (c *Context) ResumeGameTime() { c.Timer.ResumeGameTime() }
