package controller

// A second, intentionally minimal hand-rolled wasm encoder, scoped to just
// what controller's tests need (a memory export plus a no-op configure
// function and, optionally, an update function that traps). See
// runtime/wasmtest_test.go for the fuller version used to exercise the ABI
// itself; duplicating a small one here keeps controller's tests free of a
// cross-package dependency on another package's unexported test helpers.

func minimalWasm(withFailingUpdate bool) []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	// Type section: one type, () -> ().
	out = append(out, 0x01, 0x04, 0x01, 0x60, 0x00, 0x00)

	numFuncs := byte(1)
	if withFailingUpdate {
		numFuncs = 2
	}

	// Function section: numFuncs functions, all of type 0.
	funcSection := []byte{0x03, 1 + numFuncs, numFuncs}
	for i := byte(0); i < numFuncs; i++ {
		funcSection = append(funcSection, 0x00)
	}
	out = append(out, funcSection...)

	// Memory section: one memory, min 1 page.
	out = append(out, 0x05, 0x03, 0x01, 0x00, 0x01)

	// Export section.
	exports := [][]byte{
		namedExport("memory", 0x02, 0),
		namedExport("configure", 0x00, 0),
	}
	if withFailingUpdate {
		exports = append(exports, namedExport("update", 0x00, 1))
	}
	var exportPayload []byte
	exportPayload = append(exportPayload, byte(len(exports)))
	for _, e := range exports {
		exportPayload = append(exportPayload, e...)
	}
	out = append(out, 0x07, byte(len(exportPayload)))
	out = append(out, exportPayload...)

	// Code section.
	noop := []byte{0x02, 0x00, 0x0b} // body size 2, 0 locals, end
	var codePayload []byte
	codePayload = append(codePayload, numFuncs)
	codePayload = append(codePayload, noop...)
	if withFailingUpdate {
		// unreachable; end -- traps unconditionally when called.
		trap := []byte{0x03, 0x00, 0x00, 0x0b}
		codePayload = append(codePayload, trap...)
	}
	out = append(out, 0x0a, byte(len(codePayload)))
	out = append(out, codePayload...)

	return out
}

func namedExport(name string, kind byte, idx byte) []byte {
	out := []byte{byte(len(name))}
	out = append(out, []byte(name)...)
	out = append(out, kind, idx)
	return out
}
