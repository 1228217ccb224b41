// Command mockls is a manual end-to-end harness for the controller and
// module runtime: it loads a single compiled guest module against a
// console-logging Mock timer and drives it until interrupted. It is
// explicitly ambient, non-core tooling (spec.md §1/§6 place the guest build
// toolchain and any timer UI out of scope), grounded on
// crates/mockls/src/main.rs from original_source/, which does the same
// thing against a real wasmtime-backed Runtime and an in-process
// MockTimer<N>.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/livesplit/autosplit-runtime/controller"
	"github.com/livesplit/autosplit-runtime/timer"
)

func main() {
	wasmPath := flag.String("wasm", "", "path to a compiled autosplitter wasm module")
	splitCount := flag.Int("splits", 20, "number of splits the mock timer expects before finishing")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	if *wasmPath == "" {
		logger.Fatal("missing required -wasm flag")
	}

	script, err := os.ReadFile(*wasmPath)
	if err != nil {
		logger.Fatal("reading wasm module", zap.Error(err))
	}

	mockTimer := timer.NewMock(*splitCount, logger.With(zap.String("target", "Auto Splitter")))
	ctl := controller.New(mockTimer, logger)
	defer ctl.Close() //nolint:errcheck

	if err := ctl.LoadScript(script); err != nil {
		logger.Fatal("loading autosplitter", zap.Error(err))
	}
	logger.Info("autosplitter loaded, running until interrupted")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
}
