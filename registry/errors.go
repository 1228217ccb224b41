package registry

import "errors"

// ErrInvalidHandle is returned when a token does not resolve to a live
// process, either because it was never issued, it was already detached, or
// the registry has been recreated since it was issued.
var ErrInvalidHandle = errors.New("registry: invalid process handle")

// ErrReadFailed is returned when the underlying platform refused a memory
// read: unmapped pages, access denied, or a short read. Partial reads are
// never reported as success.
var ErrReadFailed = errors.New("registry: read failed")

// ErrUnsupportedPlatform is returned by a MemoryReader that has no
// implementation for the host OS.
var ErrUnsupportedPlatform = errors.New("registry: cross-process memory reads are not supported on this platform")
