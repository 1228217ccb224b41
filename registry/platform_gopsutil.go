package registry

import (
	"context"

	"github.com/shirou/gopsutil/v3/process"
)

// GopsutilLister is the production ProcessLister, backed by
// github.com/shirou/gopsutil/v3/process. gopsutil enumerates processes the
// same way on Linux, Windows and macOS, which is what lets a single
// implementation satisfy the "list processes by executable name"
// collaborator spec.md §1 assumes without pulling in per-OS enumeration
// code here.
type GopsutilLister struct {
	ctx   context.Context
	procs []*process.Process
}

// NewGopsutilLister returns a lister with an empty process table; call
// Refresh (or rely on Attach's implicit refresh) before the first lookup.
func NewGopsutilLister() *GopsutilLister {
	return &GopsutilLister{ctx: context.Background()}
}

func (l *GopsutilLister) Refresh() error {
	procs, err := process.ProcessesWithContext(l.ctx)
	if err != nil {
		return err
	}
	l.procs = procs
	return nil
}

func (l *GopsutilLister) FindByName(name string) ([]ProcessInfo, error) {
	var matches []ProcessInfo
	for _, p := range l.procs {
		n, err := p.NameWithContext(l.ctx)
		if err != nil || n != name {
			continue
		}
		createTime, _ := p.CreateTimeWithContext(l.ctx)
		matches = append(matches, ProcessInfo{
			PID:              p.Pid,
			Name:             n,
			CreateTimeMillis: createTime,
		})
	}
	return matches, nil
}
