package abi

import "errors"

// These sentinel errors correspond to the argument-fault conditions of
// spec.md §4.3 and §7. Every host binding that traps on a malformed
// argument wraps one of these; the engine adapter is responsible for
// turning the error into a wasm trap at the call site. Traps for an
// invalid process token carry registry.ErrInvalidHandle instead.
var (
	ErrInvalidUTF8     = errors.New("abi: string argument is not valid utf-8")
	ErrOutOfBounds     = errors.New("abi: ptr+len exceeds guest linear memory")
	ErrInvalidTickRate = errors.New("abi: tick rate must be finite and greater than zero")
	ErrInvalidGameTime = errors.New("abi: game time must be finite and non-negative")
)
