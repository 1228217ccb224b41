//go:build linux

package registry

import "golang.org/x/sys/unix"

// LinuxMemoryReader reads target-process memory with process_vm_readv(2),
// the same primitive the original livesplit-auto-splitting crate's
// read-process-memory backend uses on Linux. It requires either running as
// the target's owner with ptrace permission or CAP_SYS_PTRACE.
type LinuxMemoryReader struct{}

// NewMemoryReader returns the platform MemoryReader for the current OS.
func NewMemoryReader() MemoryReader { return LinuxMemoryReader{} }

func (LinuxMemoryReader) ReadAt(pid int32, addr uint64, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	local := []unix.Iovec{{Base: &buf[0], Len: uint64(len(buf))}}
	remote := []unix.RemoteIovec{{Base: uintptr(addr), Len: len(buf)}}
	n, err := unix.ProcessVMReadv(int(pid), local, remote, 0)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return ErrReadFailed
	}
	return nil
}
