// Package registry implements the process-attach registry described in
// spec.md §3 and §4.1: a generational slot map from opaque 64-bit guest
// tokens to platform process handles, fronting a process lister and a
// cross-process memory reader.
package registry

// Handle is the opaque 64-bit token the guest holds. The generation lives
// in the upper 32 bits and the slot index (offset by one, so that a valid
// handle is never all-zero) lives in the lower 32 bits, per spec.md §9.
type Handle uint64

// NullHandle is the reserved all-zero token meaning "no process attached".
const NullHandle Handle = 0

func newHandle(generation uint32, index int) Handle {
	return Handle(uint64(generation)<<32 | uint64(uint32(index)+1))
}

func (h Handle) split() (generation uint32, index int, ok bool) {
	if h == NullHandle {
		return 0, 0, false
	}
	low := uint32(h)
	return uint32(h >> 32), int(low) - 1, true
}

type slot struct {
	occupied   bool
	generation uint32
	pid        int32
}

// Registry owns every attached process handle for one module runtime. It is
// exclusively owned by the module runtime (spec.md §4.4) and is not safe for
// concurrent use.
type Registry struct {
	lister ProcessLister
	reader MemoryReader

	slots    []slot
	freeList []int
}

// New returns an empty registry backed by lister and reader.
func New(lister ProcessLister, reader MemoryReader) *Registry {
	return &Registry{lister: lister, reader: reader}
}

// Attach finds a running process whose executable name matches name and
// issues a fresh token for it, per spec.md §4.1. When several processes
// match, it picks the one with the highest CreateTimeMillis, breaking ties
// by the highest PID. It returns NullHandle if name is empty, if the
// process list cannot be refreshed or searched, or if no process matches.
func (r *Registry) Attach(name string) Handle {
	if name == "" {
		return NullHandle
	}
	if err := r.lister.Refresh(); err != nil {
		return NullHandle
	}
	procs, err := r.lister.FindByName(name)
	if err != nil || len(procs) == 0 {
		return NullHandle
	}

	best := procs[0]
	for _, p := range procs[1:] {
		if p.CreateTimeMillis > best.CreateTimeMillis ||
			(p.CreateTimeMillis == best.CreateTimeMillis && p.PID > best.PID) {
			best = p
		}
	}

	return r.insert(best.PID)
}

func (r *Registry) insert(pid int32) Handle {
	if len(r.freeList) > 0 {
		idx := r.freeList[len(r.freeList)-1]
		r.freeList = r.freeList[:len(r.freeList)-1]
		s := &r.slots[idx]
		s.occupied = true
		s.pid = pid
		return newHandle(s.generation, idx)
	}

	idx := len(r.slots)
	r.slots = append(r.slots, slot{occupied: true, generation: 1, pid: pid})
	return newHandle(1, idx)
}

// Detach removes the mapping for token. It fails with ErrInvalidHandle if
// the token is unknown, per spec.md §4.1. The generation is bumped
// immediately so the token can never be reused within this registry's
// lifetime, per spec.md §3 (I2).
func (r *Registry) Detach(token Handle) error {
	idx, s, err := r.resolve(token)
	if err != nil {
		return err
	}
	_ = idx
	s.occupied = false
	s.generation++
	s.pid = 0
	r.freeList = append(r.freeList, idx)
	return nil
}

// Read copies len(buf) bytes from the target's address space starting at
// address into buf, per spec.md §4.1. It fails with ErrInvalidHandle for an
// unknown token and ErrReadFailed if the OS refuses the read, including
// short reads.
func (r *Registry) Read(token Handle, address uint64, buf []byte) error {
	_, s, err := r.resolve(token)
	if err != nil {
		return err
	}
	if err := r.reader.ReadAt(s.pid, address, buf); err != nil {
		return ErrReadFailed
	}
	return nil
}

func (r *Registry) resolve(token Handle) (int, *slot, error) {
	generation, idx, ok := token.split()
	if !ok || idx < 0 || idx >= len(r.slots) {
		return 0, nil, ErrInvalidHandle
	}
	s := &r.slots[idx]
	if !s.occupied || s.generation != generation {
		return 0, nil, ErrInvalidHandle
	}
	return idx, s, nil
}
