// Package controller implements the controller thread of spec.md §4.5: a
// long-lived goroutine that owns the module runtime, serialises
// load/unload/end requests over a channel, and recovers from guest
// failure by discarding the runtime. It is grounded directly on
// src/auto_splitting/mod.rs from original_source/ (TheTedder/livesplit-core),
// rehosted on goroutines and channels in place of threads and crossbeam
// channels, and on wazero in place of wasmtime for the module runtime
// itself (autosplitrt.New).
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	autosplitrt "github.com/livesplit/autosplit-runtime/runtime"
	"github.com/livesplit/autosplit-runtime/timer"
)

// ErrThreadStopped corresponds to spec.md §7's ThreadStopped: the runtime
// goroutine is gone (panicked or already exited), so every subsequent
// request fails fast.
var ErrThreadStopped = errors.New("controller: runtime goroutine has stopped")

// request is the Request protocol of spec.md §4.5.
type request interface{ isRequest() }

type loadScriptRequest struct {
	script []byte
	reply  chan error
}

type unloadScriptRequest struct {
	reply chan struct{}
}

type endRequest struct{}

func (loadScriptRequest) isRequest()   {}
func (unloadScriptRequest) isRequest() {}
func (endRequest) isRequest()          {}

// Controller is the public surface of spec.md §6's "Controller surface":
// a single loaded-module-at-a-time runtime driven by one goroutine, talked
// to only through LoadScript/UnloadScript/Close. A second goroutine in the
// same errgroup.Group watches the runtime goroutine's liveness; both are
// torn down together on Close.
type Controller struct {
	requests chan request
	done     chan struct{} // closed once the runtime goroutine has returned, for any reason
	group    *errgroup.Group
	logger   *zap.Logger
}

// New spawns the controller's runtime goroutine and a heartbeat watchdog
// alongside it, and returns immediately; it doesn't load an autosplitter
// until LoadScript is called, per spec.md §6.
func New(t timer.Adapter, logger *zap.Logger) *Controller {
	requests := make(chan request)
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())

	group := new(errgroup.Group)
	c := &Controller{requests: requests, done: done, group: group, logger: logger}

	group.Go(func() error {
		defer cancel() // let the watchdog know the runtime goroutine is gone
		defer close(done)
		return runLoop(ctx, requests, t, logger)
	})
	group.Go(func() error {
		watchdog(ctx, logger)
		return nil
	})

	return c
}

// watchdog logs a periodic heartbeat for as long as the runtime goroutine
// is alive, so a wedged runtime goroutine (stuck in a guest call that
// never traps) is visible in logs even though InterruptHandle is the only
// thing that can actually unstick it.
func watchdog(ctx context.Context, logger *zap.Logger) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Debug("controller heartbeat", zap.String("target", "Auto Splitter"))
		}
	}
}

// send delivers req to the runtime goroutine, blocking until it's received
// or the goroutine has already stopped.
func (c *Controller) send(req request) error {
	select {
	case c.requests <- req:
		return nil
	case <-c.done:
		return ErrThreadStopped
	}
}

// LoadScript attempts to load a wasm blob containing an autosplitter
// module. It blocks until the runtime goroutine has attempted the load,
// per spec.md §6.
func (c *Controller) LoadScript(script []byte) error {
	reply := make(chan error, 1)
	if err := c.send(loadScriptRequest{script: script, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		return ErrThreadStopped
	}
}

// UnloadScript unloads the current autosplitter. It does not return an
// error if no autosplitter was loaded, per spec.md §4.5's Idle-phase
// behaviour.
func (c *Controller) UnloadScript() error {
	reply := make(chan struct{}, 1)
	if err := c.send(unloadScriptRequest{reply: reply}); err != nil {
		return err
	}
	select {
	case <-reply:
		return nil
	case <-c.done:
		return nil
	}
}

// Close sends End and waits for the runtime goroutine to exit, mirroring
// Drop on the original Runtime type (spec.md §4.5, "Dropping the
// controller sends End then joins").
func (c *Controller) Close() error {
	_ = c.send(endRequest{}) // already-stopped is fine, that's the goal
	if err := c.group.Wait(); err != nil {
		return fmt.Errorf("controller: %w", err)
	}
	return nil
}

// runLoop is the controller's Idle/Running phase loop of spec.md §4.5.
func runLoop(ctx context.Context, requests chan request, t timer.Adapter, logger *zap.Logger) error {
	for {
		rt, ok, err := idlePhase(ctx, requests, t, logger)
		if err != nil {
			return err
		}
		if !ok {
			return nil // End received while idle.
		}

		rt, cont := runningPhase(ctx, requests, rt, t, logger)
		if !cont {
			return nil // End received while running.
		}
		_ = rt // runningPhase already closed rt before returning on loss of it
	}
}

// idlePhase blocks on recv until a module successfully loads (returning it
// with ok=true), or End is received or the requests channel is closed
// (ok=false). It never returns a non-nil error.
func idlePhase(ctx context.Context, requests chan request, t timer.Adapter, logger *zap.Logger) (*autosplitrt.Runtime, bool, error) {
	for {
		req, ok := <-requests
		if !ok {
			return nil, false, nil
		}
		switch r := req.(type) {
		case loadScriptRequest:
			rt, err := autosplitrt.New(ctx, r.script, t, logger)
			if err != nil {
				r.reply <- fmt.Errorf("%w", autosplitrt.ErrLoadFailed)
				continue
			}
			r.reply <- nil
			logger.Info("loaded script", zap.String("target", "Auto Splitter"))
			return rt, true, nil
		case unloadScriptRequest:
			logger.Warn("attempted to unload already unloaded script", zap.String("target", "Auto Splitter"))
			r.reply <- struct{}{}
		case endRequest:
			return nil, false, nil
		}
	}
}

// runningPhase polls requests non-blockingly at the top of each iteration,
// then steps and sleeps the loaded runtime, per spec.md §4.5. It returns
// cont=false when End is received.
func runningPhase(ctx context.Context, requests chan request, rt *autosplitrt.Runtime, t timer.Adapter, logger *zap.Logger) (*autosplitrt.Runtime, bool) {
	for {
		select {
		case req := <-requests:
			switch r := req.(type) {
			case loadScriptRequest:
				next, err := autosplitrt.New(ctx, r.script, t, logger)
				if err != nil {
					r.reply <- fmt.Errorf("%w", autosplitrt.ErrLoadFailed)
					continue
				}
				rt.Close()
				rt = next
				r.reply <- nil
				logger.Info("reloaded script", zap.String("target", "Auto Splitter"))
				continue
			case unloadScriptRequest:
				rt.Close()
				r.reply <- struct{}{}
				logger.Info("unloaded script", zap.String("target", "Auto Splitter"))
				return nil, true
			case endRequest:
				rt.Close()
				return nil, false
			}
		default:
		}

		if err := rt.Step(); err != nil {
			logger.Error("unloaded due to failure", zap.Error(err), zap.String("target", "Auto Splitter"))
			rt.Close()
			return nil, true
		}
		rt.Sleep()
	}
}
