package runtime

// A minimal hand-rolled WebAssembly encoder used only by this package's
// tests, standing in for the corpus's guest-side build tooling (explicitly
// out of scope per spec.md §1: "the build tooling that compiles guests to
// WASM"). It emits just enough of the binary format — type, import,
// function, memory, export and code sections with a tiny instruction
// subset — to construct the literal end-to-end scenarios of spec.md §8.

import (
	"encoding/binary"
	"math"
)

type wasmModule struct {
	types   [][2][]byte // param types, result types (each byte is a valtype)
	imports []wasmImport
	funcs   []wasmFunc
	exports []wasmExport
	memory  bool
	data    []wasmData
	globals []wasmGlobal
}

type wasmGlobal struct {
	valType  byte
	mutable  bool
	initExpr []byte
}

type wasmData struct {
	offset int32
	bytes  []byte
}

type wasmImport struct {
	module, name string
	typeIdx      uint32
}

type wasmFunc struct {
	typeIdx uint32
	locals  []byte
	body    []byte
}

type wasmExport struct {
	name string
	kind byte // 0x00 func, 0x02 mem
	idx  uint32
}

const (
	valI32 = 0x7f
	valI64 = 0x7e
	valF64 = 0x7c
)

func newWasmModule() *wasmModule {
	return &wasmModule{memory: true}
}

// addType registers a function type and returns its index.
func (m *wasmModule) addType(params, results []byte) uint32 {
	m.types = append(m.types, [2][]byte{params, results})
	return uint32(len(m.types) - 1)
}

// importFunc imports name from module "env" with the given type and
// returns the resulting function index space slot.
func (m *wasmModule) importFunc(name string, typeIdx uint32) uint32 {
	m.imports = append(m.imports, wasmImport{module: "env", name: name, typeIdx: typeIdx})
	return uint32(len(m.imports) - 1)
}

// defineFunc appends a locally-defined function body and returns its index
// in the combined (imports first) function index space.
func (m *wasmModule) defineFunc(typeIdx uint32, body []byte) uint32 {
	m.funcs = append(m.funcs, wasmFunc{typeIdx: typeIdx, body: body})
	return uint32(len(m.imports) + len(m.funcs) - 1)
}

func (m *wasmModule) export(name string, idx uint32) {
	m.exports = append(m.exports, wasmExport{name: name, kind: 0x00, idx: idx})
}

// addGlobal registers a mutable or immutable global and returns its index.
func (m *wasmModule) addGlobal(valType byte, mutable bool, initExpr []byte) uint32 {
	m.globals = append(m.globals, wasmGlobal{valType: valType, mutable: mutable, initExpr: initExpr})
	return uint32(len(m.globals) - 1)
}

// putString writes a string into the module's initial memory at offset and
// returns (offset, len) for use as attach/print_message/etc arguments.
func (m *wasmModule) putString(offset int32, s string) (int32, int32) {
	m.data = append(m.data, wasmData{offset: offset, bytes: []byte(s)})
	return offset, int32(len(s))
}

func uleb(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func sleb(v int64) []byte {
	var out []byte
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

func vec(items [][]byte) []byte {
	out := uleb(uint64(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func namedBytes(s string) []byte {
	return append(uleb(uint64(len(s))), []byte(s)...)
}

func section(id byte, payload []byte) []byte {
	return append(append([]byte{id}, uleb(uint64(len(payload)))...), payload...)
}

// encode produces the final wasm binary.
func (m *wasmModule) encode() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	// Type section.
	var typeItems [][]byte
	for _, t := range m.types {
		entry := []byte{0x60}
		entry = append(entry, uleb(uint64(len(t[0])))...)
		entry = append(entry, t[0]...)
		entry = append(entry, uleb(uint64(len(t[1])))...)
		entry = append(entry, t[1]...)
		typeItems = append(typeItems, entry)
	}
	if len(typeItems) > 0 {
		out = append(out, section(1, vec(typeItems))...)
	}

	// Import section.
	var importItems [][]byte
	for _, imp := range m.imports {
		entry := namedBytes(imp.module)
		entry = append(entry, namedBytes(imp.name)...)
		entry = append(entry, 0x00) // func import
		entry = append(entry, uleb(uint64(imp.typeIdx))...)
		importItems = append(importItems, entry)
	}
	if len(importItems) > 0 {
		out = append(out, section(2, vec(importItems))...)
	}

	// Function section.
	var funcItems [][]byte
	for _, f := range m.funcs {
		funcItems = append(funcItems, uleb(uint64(f.typeIdx)))
	}
	if len(funcItems) > 0 {
		out = append(out, section(3, vec(funcItems))...)
	}

	// Memory section: one memory, min 1 page.
	if m.memory {
		memPayload := append(uleb(1), append([]byte{0x00}, uleb(1)...)...)
		out = append(out, section(5, memPayload)...)
	}

	// Global section.
	var globalItems [][]byte
	for _, g := range m.globals {
		mut := byte(0x00)
		if g.mutable {
			mut = 0x01
		}
		entry := []byte{g.valType, mut}
		entry = append(entry, g.initExpr...)
		entry = append(entry, 0x0b) // end
		globalItems = append(globalItems, entry)
	}
	if len(globalItems) > 0 {
		out = append(out, section(6, vec(globalItems))...)
	}

	// Export section.
	var exportItems [][]byte
	if m.memory {
		entry := namedBytes("memory")
		entry = append(entry, 0x02, 0x00)
		exportItems = append(exportItems, entry)
	}
	for _, e := range m.exports {
		entry := namedBytes(e.name)
		entry = append(entry, e.kind)
		entry = append(entry, uleb(uint64(e.idx))...)
		exportItems = append(exportItems, entry)
	}
	out = append(out, section(7, vec(exportItems))...)

	// Code section.
	var codeItems [][]byte
	for _, f := range m.funcs {
		body := append(uleb(0), f.body...) // no locals declarations
		body = append(body, 0x0b)          // end
		codeItems = append(codeItems, append(uleb(uint64(len(body))), body...))
	}
	if len(codeItems) > 0 {
		out = append(out, section(10, vec(codeItems))...)
	}

	// Data section.
	var dataItems [][]byte
	for _, d := range m.data {
		entry := append([]byte{0x00}, opI32Const(d.offset)...)
		entry = append(entry, 0x0b) // end of offset expr
		entry = append(entry, uleb(uint64(len(d.bytes)))...)
		entry = append(entry, d.bytes...)
		dataItems = append(dataItems, entry)
	}
	if len(dataItems) > 0 {
		out = append(out, section(11, vec(dataItems))...)
	}

	return out
}

// --- instruction helpers ---

func opI32Const(v int32) []byte { return append([]byte{0x41}, sleb(int64(v))...) }
func opI64Const(v int64) []byte { return append([]byte{0x42}, sleb(v)...) }
func opF64Const(v float64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	return append([]byte{0x44}, b...)
}
func opCall(idx uint32) []byte { return append([]byte{0x10}, uleb(uint64(idx))...) }
func opDrop() []byte { return []byte{0x1a} }
func opGlobalGet(idx uint32) []byte { return append([]byte{0x23}, uleb(uint64(idx))...) }
func opGlobalSet(idx uint32) []byte { return append([]byte{0x24}, uleb(uint64(idx))...) }
func opI32Eq() []byte { return []byte{0x46} }
func opI32Add() []byte { return []byte{0x6a} }
func opIfVoid() []byte { return []byte{0x04, 0x40} }
func opElse() []byte { return []byte{0x05} }
func opEnd() []byte { return []byte{0x0b} }

func concat(chunks ...[]byte) []byte {
	var out []byte
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}
